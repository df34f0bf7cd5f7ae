package storage

import (
	"bytes"
	"context"
	"io"
	"sync"
)

// MemoryPhotoStore 把照片保存在进程内存中，用于未配置 MinIO 的开发环境和测试。
type MemoryPhotoStore struct {
	mu      sync.RWMutex
	base    string
	objects map[string][]byte
	types   map[string]string
}

// NewMemoryPhotoStore 创建 MemoryPhotoStore，返回的地址以 base 为前缀。
func NewMemoryPhotoStore(base string) *MemoryPhotoStore {
	return &MemoryPhotoStore{
		base:    base,
		objects: make(map[string][]byte),
		types:   make(map[string]string),
	}
}

func (s *MemoryPhotoStore) PutPhoto(ctx context.Context, objectName string, r io.Reader, size int64, contentType string) (string, error) {
	var buf bytes.Buffer
	if _, err := io.Copy(&buf, r); err != nil {
		return "", err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.objects[objectName] = buf.Bytes()
	s.types[objectName] = contentType
	return PublicURL(s.base, "memory", objectName), nil
}

// Object 返回已保存对象的内容与类型。
func (s *MemoryPhotoStore) Object(objectName string) ([]byte, string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	b, ok := s.objects[objectName]
	return b, s.types[objectName], ok
}

// Len 返回已保存对象的数量。
func (s *MemoryPhotoStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.objects)
}
