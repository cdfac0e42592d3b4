package sqlitedb

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpenCreatesDirectoryAndSchema(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "nested", "state.db")
	db, err := Open(path, `CREATE TABLE IF NOT EXISTS kv (k TEXT PRIMARY KEY, v TEXT)`)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	_, err = db.Exec(`INSERT INTO kv (k, v) VALUES (?, ?)`, "a", "1")
	require.NoError(t, err)

	var v string
	require.NoError(t, db.QueryRow(`SELECT v FROM kv WHERE k = ?`, "a").Scan(&v))
	assert.Equal(t, "1", v)
	assert.FileExists(t, path)
}

func TestOpenRejectsBadSchema(t *testing.T) {
	t.Parallel()

	_, err := Open(Memory, "CREATE TABLE (")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "sqlite schema")
}
