package blob

import (
	"bytes"
	"context"
	"io"
	"sync"
)

// MemoryStore is the in-process driver used by tests.
type MemoryStore struct {
	mu      sync.RWMutex
	objects map[string]memoryObject
}

type memoryObject struct {
	data        []byte
	contentType string
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{objects: map[string]memoryObject{}}
}

func (s *MemoryStore) Put(_ context.Context, key string, r io.Reader, contentType string) (Info, error) {
	k, err := sanitizeKey(key)
	if err != nil {
		return Info{}, err
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return Info{}, err
	}
	s.mu.Lock()
	s.objects[k] = memoryObject{data: data, contentType: contentType}
	s.mu.Unlock()
	return Info{Key: key, Size: int64(len(data)), ContentType: contentType}, nil
}

func (s *MemoryStore) Get(_ context.Context, key string) (Info, io.ReadCloser, error) {
	k, err := sanitizeKey(key)
	if err != nil {
		return Info{}, nil, err
	}
	s.mu.RLock()
	obj, ok := s.objects[k]
	s.mu.RUnlock()
	if !ok {
		return Info{}, nil, ErrNotFound
	}
	info := Info{Key: key, Size: int64(len(obj.data)), ContentType: obj.contentType}
	return info, io.NopCloser(bytes.NewReader(obj.data)), nil
}

func (s *MemoryStore) Delete(_ context.Context, key string) error {
	k, err := sanitizeKey(key)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.objects[k]; !ok {
		return ErrNotFound
	}
	delete(s.objects, k)
	return nil
}
