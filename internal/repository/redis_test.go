package repository

import (
	"context"
	"os"
	"strconv"
	"testing"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"

	"tikitaka-go/internal/model"
)

func newTestRedis(t *testing.T) *redis.Client {
	t.Helper()
	addr := os.Getenv("TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("set TEST_REDIS_ADDR to run redis-backed repository tests")
	}
	db := 0
	if v := os.Getenv("TEST_REDIS_DB"); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil {
			db = parsed
		}
	}
	client := redis.NewClient(&redis.Options{Addr: addr, DB: db})
	if err := client.Ping(context.Background()).Err(); err != nil {
		t.Fatalf("ping redis: %v", err)
	}
	t.Cleanup(func() { _ = client.Close() })
	return client
}

func TestRedisDraftRepository(t *testing.T) {
	ctx := context.Background()
	repo := NewDraftRepository(newTestRedis(t))
	sessionID := uuid.NewString()
	t.Cleanup(func() { _ = repo.Delete(ctx, sessionID) })

	if d, err := repo.Get(ctx, sessionID); err != nil || d != nil {
		t.Fatalf("expected no draft, got %v / %v", d, err)
	}
	draft := &model.WizardDraft{SessionID: sessionID, Step: "breed", Pet: model.Pet{Name: "도리", Age: 2}}
	if err := repo.Save(ctx, draft); err != nil {
		t.Fatalf("save: %v", err)
	}
	got, err := repo.Get(ctx, sessionID)
	if err != nil || got == nil || got.Pet.Name != "도리" || got.Step != "breed" {
		t.Fatalf("unexpected draft %+v / %v", got, err)
	}
}

func TestRedisQuotaAndNonce(t *testing.T) {
	ctx := context.Background()
	client := newTestRedis(t)
	quota := NewChatQuotaRepository(client)
	nonces := NewSessionNonceRepository(client)
	sessionID, petID, nonce := uuid.NewString(), uuid.NewString(), uuid.NewString()
	t.Cleanup(func() {
		client.Del(ctx, AdViewsKey(sessionID, petID), SendLockKey(sessionID, petID), NonceKey(nonce))
	})

	if n, _ := quota.IncrAdViews(ctx, sessionID, petID); n != 1 {
		t.Fatalf("expected 1 ad view, got %d", n)
	}
	if n, _ := quota.AdViews(ctx, sessionID, petID); n != 1 {
		t.Fatalf("expected 1 ad view, got %d", n)
	}
	token, ok, _ := quota.AcquireSendLock(ctx, sessionID, petID, time.Minute)
	if !ok {
		t.Fatalf("first lock should succeed")
	}
	if _, ok, _ := quota.AcquireSendLock(ctx, sessionID, petID, time.Minute); ok {
		t.Fatalf("second lock should fail")
	}
	if held, err := quota.RefreshSendLock(ctx, sessionID, petID, "other", time.Minute); err != nil || held {
		t.Fatalf("foreign token must not refresh: %v / %v", held, err)
	}
	_ = quota.ReleaseSendLock(ctx, sessionID, petID, "other")
	if _, ok, _ := quota.AcquireSendLock(ctx, sessionID, petID, time.Minute); ok {
		t.Fatalf("foreign token must not release the lock")
	}
	if held, err := quota.RefreshSendLock(ctx, sessionID, petID, token, time.Minute); err != nil || !held {
		t.Fatalf("holder should refresh: %v / %v", held, err)
	}
	if err := quota.ReleaseSendLock(ctx, sessionID, petID, token); err != nil {
		t.Fatalf("release: %v", err)
	}
	if _, ok, _ := quota.AcquireSendLock(ctx, sessionID, petID, time.Minute); !ok {
		t.Fatalf("released lock should be acquirable")
	}

	if ok, _ := nonces.Claim(ctx, nonce, time.Minute); !ok {
		t.Fatalf("claim should succeed")
	}
	_ = nonces.Bind(ctx, nonce, sessionID, time.Minute)
	if v, _ := nonces.Resolve(ctx, nonce); v != sessionID {
		t.Fatalf("expected %s, got %s", sessionID, v)
	}
}
