package database

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpenSQLite_SchemaIsReentrant(t *testing.T) {
	path := filepath.Join(t.TempDir(), "parksavvy.db")

	db, err := OpenSQLite(path)
	require.NoError(t, err)
	_, err = db.Exec("INSERT INTO sensor_counts (area_id, current_count) VALUES ('A01', 1)")
	require.NoError(t, err)
	require.NoError(t, db.Close())

	db, err = OpenSQLite(path)
	require.NoError(t, err)
	defer db.Close()

	var n int
	require.NoError(t, db.QueryRow("SELECT COUNT(*) FROM sensor_counts").Scan(&n))
	assert.Equal(t, 1, n)
	require.NoError(t, db.QueryRow("SELECT COUNT(*) FROM area_availability").Scan(&n))
	assert.Equal(t, 0, n)
}
