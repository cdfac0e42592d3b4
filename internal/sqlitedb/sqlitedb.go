// Package sqlitedb opens the local SQLite files used for cookie jars and
// ancestor-climb checkpoints.
package sqlitedb

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	// Registers the pure-Go "sqlite" driver.
	_ "modernc.org/sqlite"
)

// Memory is the path of a private in-memory database.
const Memory = ":memory:"

var pragmas = []string{
	"PRAGMA journal_mode = WAL",
	"PRAGMA busy_timeout = 10000",
	"PRAGMA synchronous = NORMAL",
	"PRAGMA foreign_keys = ON",
}

// Open opens path, creating parent directories, applies pragmas and runs
// schema. The pool is limited to one connection so pragmas and in-memory
// databases stay consistent.
func Open(path string, schema string) (*sql.DB, error) {
	if path != Memory {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("sqlite mkdir: %w", err)
		}
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("sqlite open: %w", err)
	}
	db.SetMaxOpenConns(1)

	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("sqlite %s: %w", p, err)
		}
	}
	if schema != "" {
		if _, err := db.Exec(schema); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("sqlite schema: %w", err)
		}
	}
	return db, nil
}
