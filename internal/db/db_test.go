package db

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewSqliteDBInMemory(t *testing.T) {
	db, err := NewSqliteDB()
	require.NoError(t, err)
	defer db.Close()

	var one int
	require.NoError(t, db.Get(&one, "SELECT 1"))
	assert.Equal(t, 1, one)
}

func TestNewSqliteDBFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "access.db")

	db, err := NewSqliteDB(WithPath(path), WithMaxIdleConns(1))
	require.NoError(t, err)
	defer db.Close()

	_, err = db.Exec("CREATE TABLE t (v INTEGER)")
	require.NoError(t, err)

	assert.FileExists(t, path)
}

func TestNewSqliteDBCustomPragmas(t *testing.T) {
	db, err := NewSqliteDB(WithPragmas("PRAGMA foreign_keys=ON;"))
	require.NoError(t, err)
	defer db.Close()

	var enabled int
	require.NoError(t, db.Get(&enabled, "PRAGMA foreign_keys"))
	assert.Equal(t, 1, enabled)
}
