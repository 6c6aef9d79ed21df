package cachestore

import (
	"context"
	"sync"
)

// MemoryStore is a process-local Store used by tests and by deployments that
// run with Valkey disabled. It mirrors the Valkey hash semantics exactly so
// the cache service behaves identically against either backend.
type MemoryStore struct {
	mu   sync.RWMutex
	docs map[string]map[string]string
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{docs: make(map[string]map[string]string)}
}

func (s *MemoryStore) Get(_ context.Context, key string) (Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	doc, ok := s.docs[key]
	if !ok {
		return nil, nil
	}
	out := make(Document, len(doc))
	for f, v := range doc {
		out[f] = v
	}
	return out, nil
}

func (s *MemoryStore) SetMerged(_ context.Context, key string, fields Document) error {
	if len(fields) == 0 {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	doc, ok := s.docs[key]
	if !ok {
		doc = make(map[string]string, len(fields))
		s.docs[key] = doc
	}
	for f, v := range fields {
		doc[f] = v
	}
	return nil
}

func (s *MemoryStore) SetFull(_ context.Context, key string, doc Document) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	replacement := make(map[string]string, len(doc))
	for f, v := range doc {
		replacement[f] = v
	}
	s.docs[key] = replacement
	return nil
}

func (s *MemoryStore) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.docs, key)
	return nil
}

func (s *MemoryStore) RemoveFields(_ context.Context, key string, fields ...string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	doc, ok := s.docs[key]
	if !ok {
		return nil
	}
	for _, f := range fields {
		delete(doc, f)
	}
	return nil
}

func (s *MemoryStore) BatchDelete(ctx context.Context, keys []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, k := range keys {
		delete(s.docs, k)
	}
	return nil
}

func (s *MemoryStore) BatchRemoveFields(ctx context.Context, keys []string, fields ...string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, k := range keys {
		doc, ok := s.docs[k]
		if !ok {
			continue
		}
		for _, f := range fields {
			delete(doc, f)
		}
	}
	return nil
}

func (s *MemoryStore) Keys(_ context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	keys := make([]string, 0, len(s.docs))
	for k := range s.docs {
		keys = append(keys, k)
	}
	return keys, nil
}

func (s *MemoryStore) Ping(_ context.Context) error { return nil }
