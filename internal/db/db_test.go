package db

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRebind(t *testing.T) {
	pg := Dialect{Driver: DriverPostgres}
	assert.Equal(t, "SELECT 1 FROM sessions WHERE id = $1 AND user_id = $2",
		pg.Rebind("SELECT 1 FROM sessions WHERE id = ? AND user_id = ?"))

	lite := Dialect{Driver: DriverSQLite}
	assert.Equal(t, "SELECT ?", lite.Rebind("SELECT ?"))
}

func TestNewTestDBHasSchema(t *testing.T) {
	conn, err := NewTestDB()
	require.NoError(t, err)
	defer conn.Close()

	for _, table := range []string{"sessions", "resources", "summaries"} {
		var name string
		err := conn.QueryRow(`SELECT name FROM sqlite_master WHERE type='table' AND name=?`, table).Scan(&name)
		require.NoError(t, err, table)
		assert.Equal(t, table, name)
	}
}

func TestInitDBIsIdempotent(t *testing.T) {
	ResetDB()
	defer ResetDB()

	path := filepath.Join(t.TempDir(), "study.db")
	first, err := InitDB(DriverSQLite, path)
	require.NoError(t, err)

	second, err := InitDB(DriverSQLite, path)
	require.NoError(t, err)
	assert.Same(t, first, second)
	assert.Same(t, first, GetDB())
}
