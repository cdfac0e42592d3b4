package cookies

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/danyelajunebrown/Reparations-is-a-real-number-sub002/internal/sqlitedb"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS cookie_jars (
	category   TEXT PRIMARY KEY,
	cookies    TEXT NOT NULL,
	updated_at TEXT NOT NULL
)`

// SQLiteStore keeps every category's jar in one SQLite file.
type SQLiteStore struct {
	db  *sql.DB
	now func() time.Time
}

// OpenSQLite opens or creates the cookie database at path.
func OpenSQLite(path string) (*SQLiteStore, error) {
	db, err := sqlitedb.Open(path, sqliteSchema)
	if err != nil {
		return nil, err
	}
	return &SQLiteStore{db: db, now: time.Now}, nil
}

// Close closes the database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// Load implements Store.
func (s *SQLiteStore) Load(ctx context.Context, category string) ([]*http.Cookie, error) {
	var data string
	err := s.db.QueryRowContext(ctx, `SELECT cookies FROM cookie_jars WHERE category = ?`, category).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load cookies: %w", err)
	}
	var records []record
	if err := json.Unmarshal([]byte(data), &records); err != nil {
		return nil, fmt.Errorf("decode cookies: %w", err)
	}
	return fromRecords(records, s.now()), nil
}

// Save implements Store.
func (s *SQLiteStore) Save(ctx context.Context, category string, cookies []*http.Cookie) error {
	data, err := json.Marshal(toRecords(cookies))
	if err != nil {
		return fmt.Errorf("encode cookies: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
INSERT INTO cookie_jars (category, cookies, updated_at) VALUES (?, ?, ?)
ON CONFLICT (category) DO UPDATE SET cookies = excluded.cookies, updated_at = excluded.updated_at`,
		category, string(data), s.now().UTC().Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("save cookies: %w", err)
	}
	return nil
}

// Clear implements Store.
func (s *SQLiteStore) Clear(ctx context.Context, category string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM cookie_jars WHERE category = ?`, category); err != nil {
		return fmt.Errorf("clear cookies: %w", err)
	}
	return nil
}
