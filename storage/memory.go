package storage

import (
	"context"
	"sync"
)

// MemoryStorage is the in-memory implementation of Storage.
// Suitable for development and testing. Data is lost on restart.
type MemoryStorage struct {
	items  map[string]map[string]any
	mu     sync.RWMutex
	closed bool
}

// NewMemoryStorage creates a new in-memory store.
func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{items: make(map[string]map[string]any)}
}

// Read returns deep copies of the stored items for the requested keys.
func (s *MemoryStorage) Read(ctx context.Context, keys []string) (map[string]map[string]any, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, ErrStoreClosed
	}

	result := make(map[string]map[string]any, len(keys))
	for _, key := range keys {
		item, ok := s.items[key]
		if !ok {
			continue
		}
		clone, err := cloneItem(item)
		if err != nil {
			return nil, err
		}
		result[key] = clone
	}
	return result, nil
}

// Write stores deep copies of the given items.
func (s *MemoryStorage) Write(ctx context.Context, changes map[string]map[string]any) error {
	if len(changes) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrStoreClosed
	}

	for key, item := range changes {
		if key == "" {
			return ErrInvalidInput
		}
		clone, err := cloneItem(item)
		if err != nil {
			return err
		}
		s.items[key] = clone
	}
	return nil
}

// Delete removes the given keys. Missing keys are ignored.
func (s *MemoryStorage) Delete(ctx context.Context, keys []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrStoreClosed
	}

	for _, key := range keys {
		delete(s.items, key)
	}
	return nil
}

// Close closes the store.
func (s *MemoryStorage) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}
