package storage

import (
	"context"
	"encoding/json"
	"strings"
	"testing"
)

func TestPublicURL(t *testing.T) {
	got := PublicURL("https://cdn.example.com/", "pets", "/pet_images/1_abc.png")
	if got != "https://cdn.example.com/pets/pet_images/1_abc.png" {
		t.Fatalf("unexpected url %s", got)
	}
}

func TestPublicReadPolicyIsValidJSON(t *testing.T) {
	policy := PublicReadPolicy("pets", "pet_images/")
	var parsed map[string]any
	if err := json.Unmarshal([]byte(policy), &parsed); err != nil {
		t.Fatalf("policy is not json: %v", err)
	}
	if !strings.Contains(policy, "arn:aws:s3:::pets/pet_images/*") {
		t.Fatalf("unexpected resource in %s", policy)
	}
}

func TestMemoryPhotoStore(t *testing.T) {
	s := NewMemoryPhotoStore("http://localhost:8080")
	url, err := s.PutPhoto(context.Background(), "pet_images/1_a.jpg", strings.NewReader("jpeg"), 4, "image/jpeg")
	if err != nil {
		t.Fatalf("put: %v", err)
	}
	if url != "http://localhost:8080/memory/pet_images/1_a.jpg" {
		t.Fatalf("unexpected url %s", url)
	}
	if b, ct, ok := s.Object("pet_images/1_a.jpg"); !ok || string(b) != "jpeg" || ct != "image/jpeg" {
		t.Fatalf("object not stored")
	}
}
