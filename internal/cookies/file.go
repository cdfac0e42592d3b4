package cookies

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"regexp"
	"time"
)

var unsafeName = regexp.MustCompile(`[^a-zA-Z0-9_.-]+`)

// FileStore keeps one JSON file per category.
type FileStore struct {
	Dir string
	Now func() time.Time
}

// NewFileStore returns a store rooted at dir.
func NewFileStore(dir string) *FileStore {
	return &FileStore{Dir: dir, Now: time.Now}
}

func (s *FileStore) path(category string) string {
	name := unsafeName.ReplaceAllString(category, "_")
	if name == "" {
		name = "default"
	}
	return filepath.Join(s.Dir, name+".json")
}

// Load implements Store. A missing file is an empty jar.
func (s *FileStore) Load(_ context.Context, category string) ([]*http.Cookie, error) {
	data, err := os.ReadFile(s.path(category))
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read cookies: %w", err)
	}
	var records []record
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, fmt.Errorf("decode cookies: %w", err)
	}
	return fromRecords(records, s.now()), nil
}

// Save implements Store. The file is written with 0600 permissions.
func (s *FileStore) Save(_ context.Context, category string, cookies []*http.Cookie) error {
	if err := os.MkdirAll(s.Dir, 0o700); err != nil {
		return fmt.Errorf("create cookie dir: %w", err)
	}
	data, err := json.MarshalIndent(toRecords(cookies), "", "  ")
	if err != nil {
		return fmt.Errorf("encode cookies: %w", err)
	}
	tmp := s.path(category) + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return fmt.Errorf("write cookies: %w", err)
	}
	if err := os.Rename(tmp, s.path(category)); err != nil {
		return fmt.Errorf("replace cookies: %w", err)
	}
	return nil
}

// Clear implements Store.
func (s *FileStore) Clear(_ context.Context, category string) error {
	if err := os.Remove(s.path(category)); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("remove cookies: %w", err)
	}
	return nil
}

func (s *FileStore) now() time.Time {
	if s.Now == nil {
		return time.Now()
	}
	return s.Now()
}
