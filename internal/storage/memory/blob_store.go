// Package memory keeps archive blobs and extraction records in-memory for
// development and tests.
package memory

import (
	"context"
	"fmt"
	"io"
	"sync"

	"github.com/danyelajunebrown/Reparations-is-a-real-number-sub002/internal/scraper"
)

// BlobStore stores artifacts in-memory and returns pseudo URIs.
type BlobStore struct {
	mu   sync.RWMutex
	data map[string][]byte
}

// NewBlobStore creates a new in-memory blob store.
func NewBlobStore() *BlobStore {
	return &BlobStore{data: make(map[string][]byte)}
}

// PutObject persists the content and returns a URI.
func (s *BlobStore) PutObject(_ context.Context, key string, _ string, r io.Reader) (string, error) {
	byteData, err := io.ReadAll(r)
	if err != nil {
		return "", fmt.Errorf("failed to read data from reader: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[key] = byteData
	return fmt.Sprintf("memory://%s", key), nil
}

// GetObject returns a copy of the stored bytes.
func (s *BlobStore) GetObject(_ context.Context, key string) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	data, ok := s.data[key]
	if !ok {
		return nil, fmt.Errorf("object %s: %w", key, scraper.ErrNotFound)
	}
	return append([]byte(nil), data...), nil
}

// Keys lists stored keys.
func (s *BlobStore) Keys() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	keys := make([]string, 0, len(s.data))
	for k := range s.data {
		keys = append(keys, k)
	}
	return keys
}
