package ancestry

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/danyelajunebrown/Reparations-is-a-real-number-sub002/internal/sqlitedb"
)

// Checkpoints persists frontiers by root.
type Checkpoints interface {
	Load(ctx context.Context, rootID string) (Frontier, bool, error)
	Save(ctx context.Context, f Frontier) error
}

const checkpointSchema = `
CREATE TABLE IF NOT EXISTS ancestry_frontiers (
	root_id    TEXT PRIMARY KEY,
	state      TEXT NOT NULL,
	visits     INTEGER NOT NULL,
	done       INTEGER NOT NULL,
	updated_at TEXT NOT NULL
)`

// SQLiteCheckpoints stores frontiers as JSON rows in a local SQLite file.
type SQLiteCheckpoints struct {
	db  *sql.DB
	now func() time.Time
}

// OpenCheckpoints opens or creates the checkpoint database at path.
func OpenCheckpoints(path string) (*SQLiteCheckpoints, error) {
	db, err := sqlitedb.Open(path, checkpointSchema)
	if err != nil {
		return nil, err
	}
	return &SQLiteCheckpoints{db: db, now: time.Now}, nil
}

// Close closes the database.
func (s *SQLiteCheckpoints) Close() error {
	return s.db.Close()
}

// Load returns the saved frontier for rootID, if any.
func (s *SQLiteCheckpoints) Load(ctx context.Context, rootID string) (Frontier, bool, error) {
	var state string
	err := s.db.QueryRowContext(ctx, `SELECT state FROM ancestry_frontiers WHERE root_id = ?`, rootID).Scan(&state)
	if errors.Is(err, sql.ErrNoRows) {
		return Frontier{}, false, nil
	}
	if err != nil {
		return Frontier{}, false, fmt.Errorf("load frontier: %w", err)
	}
	var f Frontier
	if err := json.Unmarshal([]byte(state), &f); err != nil {
		return Frontier{}, false, fmt.Errorf("decode frontier: %w", err)
	}
	return f, true, nil
}

// Save upserts f.
func (s *SQLiteCheckpoints) Save(ctx context.Context, f Frontier) error {
	state, err := json.Marshal(f)
	if err != nil {
		return fmt.Errorf("encode frontier: %w", err)
	}
	done := 0
	if f.Done {
		done = 1
	}
	_, err = s.db.ExecContext(ctx, `
INSERT INTO ancestry_frontiers (root_id, state, visits, done, updated_at) VALUES (?, ?, ?, ?, ?)
ON CONFLICT (root_id) DO UPDATE SET
	state = excluded.state,
	visits = excluded.visits,
	done = excluded.done,
	updated_at = excluded.updated_at`,
		f.RootID, string(state), f.Visits, done, s.now().UTC().Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("save frontier: %w", err)
	}
	return nil
}
