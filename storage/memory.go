package storage

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"
)

type memoryObject struct {
	data         []byte
	lastModified time.Time
}

// MemoryStore hält Objekte im Prozessspeicher. Für Tests und Trockenläufe.
type MemoryStore struct {
	mu   sync.RWMutex
	objs map[string]memoryObject
	now  func() time.Time
}

// NewMemoryStore erstellt einen leeren MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{objs: make(map[string]memoryObject), now: func() time.Time { return time.Now().UTC() }}
}

// PutAt legt ein Objekt mit vorgegebenem Änderungszeitpunkt ab.
func (s *MemoryStore) PutAt(key string, data []byte, lastModified time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.objs[key] = memoryObject{data: append([]byte(nil), data...), lastModified: lastModified}
}

// Keys gibt alle Keys sortiert zurück.
func (s *MemoryStore) Keys() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	keys := make([]string, 0, len(s.objs))
	for k := range s.objs {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func (s *MemoryStore) List(_ context.Context, prefix string) ([]Object, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Object, 0, len(s.objs))
	for k, v := range s.objs {
		if strings.HasPrefix(k, prefix) {
			out = append(out, Object{Key: k, Size: int64(len(v.data)), LastModified: v.lastModified})
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out, nil
}

func (s *MemoryStore) Download(_ context.Context, key string) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	obj, ok := s.objs[key]
	if !ok {
		return nil, fmt.Errorf("%s: %w", key, ErrNotFound)
	}
	return append([]byte(nil), obj.data...), nil
}

func (s *MemoryStore) Put(_ context.Context, key string, data []byte) error {
	s.PutAt(key, data, s.now())
	return nil
}

func (s *MemoryStore) Copy(_ context.Context, srcKey, dstKey string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	obj, ok := s.objs[srcKey]
	if !ok {
		return fmt.Errorf("%s: %w", srcKey, ErrNotFound)
	}
	s.objs[dstKey] = memoryObject{data: append([]byte(nil), obj.data...), lastModified: s.now()}
	return nil
}

func (s *MemoryStore) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.objs[key]; !ok {
		return fmt.Errorf("%s: %w", key, ErrNotFound)
	}
	delete(s.objs, key)
	return nil
}
