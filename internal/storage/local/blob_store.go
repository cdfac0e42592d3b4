// Package local implements a local filesystem blob store.
package local

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/danyelajunebrown/Reparations-is-a-real-number-sub002/internal/scraper"
)

// Config captures the parameters for the local filesystem blob store.
type Config struct {
	// BaseDir is the root directory where blobs will be stored.
	BaseDir string `mapstructure:"base_dir" yaml:"base_dir"`
}

// BlobStore writes archived snapshots to the local filesystem.
type BlobStore struct {
	baseDir string
}

// New creates a new local filesystem-backed blob store.
func New(cfg Config) (*BlobStore, error) {
	if strings.TrimSpace(cfg.BaseDir) == "" {
		return nil, fmt.Errorf("base directory is required")
	}

	info, err := os.Stat(cfg.BaseDir)
	switch {
	case os.IsNotExist(err):
		if mkErr := os.MkdirAll(cfg.BaseDir, 0o750); mkErr != nil {
			return nil, fmt.Errorf("failed to create base directory: %w", mkErr)
		}
	case err != nil:
		return nil, fmt.Errorf("failed to stat base directory: %w", err)
	case !info.IsDir():
		return nil, fmt.Errorf("base directory path is not a directory")
	}

	testFile := filepath.Join(cfg.BaseDir, ".writable_test")
	if err := os.WriteFile(testFile, []byte("test"), 0o600); err != nil {
		return nil, fmt.Errorf("base directory is not writable: %w", err)
	}
	if err := os.Remove(testFile); err != nil {
		return nil, fmt.Errorf("failed to clean up test file: %w", err)
	}

	return &BlobStore{baseDir: cfg.BaseDir}, nil
}

// resolve joins key onto the base directory and rejects traversal.
func (s *BlobStore) resolve(key string) (string, error) {
	if strings.TrimSpace(key) == "" {
		return "", fmt.Errorf("key is required")
	}
	cleanBase := filepath.Clean(s.baseDir)
	full := filepath.Clean(filepath.Join(cleanBase, key))
	if !strings.HasPrefix(full, cleanBase+string(filepath.Separator)) {
		return "", fmt.Errorf("path traversal detected")
	}
	return full, nil
}

// PutObject writes data to a file on the local filesystem and returns a file:// URI.
func (s *BlobStore) PutObject(_ context.Context, key string, _ string, r io.Reader) (string, error) {
	fullPath, err := s.resolve(key)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(filepath.Dir(fullPath), 0o750); err != nil {
		return "", fmt.Errorf("failed to create parent directories: %w", err)
	}

	data, err := io.ReadAll(r)
	if err != nil {
		return "", fmt.Errorf("failed to read data from reader: %w", err)
	}
	if err := os.WriteFile(fullPath, data, 0o600); err != nil {
		return "", fmt.Errorf("failed to write file: %w", err)
	}

	return fmt.Sprintf("file://%s", fullPath), nil
}

// GetObject reads a previously stored file.
func (s *BlobStore) GetObject(_ context.Context, key string) ([]byte, error) {
	fullPath, err := s.resolve(key)
	if err != nil {
		return nil, err
	}
	// #nosec G304 -- path is confined to baseDir by resolve.
	data, err := os.ReadFile(fullPath)
	if errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("object %s: %w", key, scraper.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}
	return data, nil
}
