package storage

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// FileStorage is a file-based implementation of Storage.
// Suitable for single-node deployments. Each item is one JSON file whose
// name is the base64url-encoded key.
type FileStorage struct {
	dir    string
	mu     sync.RWMutex
	closed bool
}

// NewFileStorage creates a file-backed store rooted at dir.
func NewFileStorage(dir string) (*FileStorage, error) {
	if dir == "" {
		return nil, ErrInvalidInput
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create storage directory: %w", err)
	}
	return &FileStorage{dir: dir}, nil
}

func (s *FileStorage) path(key string) string {
	name := base64.URLEncoding.EncodeToString([]byte(key))
	return filepath.Join(s.dir, name+".json")
}

// Read loads the requested items from disk.
func (s *FileStorage) Read(ctx context.Context, keys []string) (map[string]map[string]any, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, ErrStoreClosed
	}

	result := make(map[string]map[string]any, len(keys))
	for _, key := range keys {
		data, err := os.ReadFile(s.path(key))
		if os.IsNotExist(err) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("read item %s: %w", key, err)
		}
		var item map[string]any
		if err := json.Unmarshal(data, &item); err != nil {
			return nil, fmt.Errorf("decode item %s: %w", key, err)
		}
		result[key] = item
	}
	return result, nil
}

// Write persists the given items to disk.
func (s *FileStorage) Write(ctx context.Context, changes map[string]map[string]any) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrStoreClosed
	}

	for key, item := range changes {
		if key == "" {
			return ErrInvalidInput
		}
		data, err := json.MarshalIndent(item, "", "  ")
		if err != nil {
			return fmt.Errorf("encode item %s: %w", key, err)
		}
		if err := os.WriteFile(s.path(key), data, 0o644); err != nil {
			return fmt.Errorf("write item %s: %w", key, err)
		}
	}
	return nil
}

// Delete removes the given items from disk. Missing files are ignored.
func (s *FileStorage) Delete(ctx context.Context, keys []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrStoreClosed
	}

	for _, key := range keys {
		if err := os.Remove(s.path(key)); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("delete item %s: %w", key, err)
		}
	}
	return nil
}

// Close closes the store.
func (s *FileStorage) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}
