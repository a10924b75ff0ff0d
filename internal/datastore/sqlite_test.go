package datastore

import (
	"context"
	"database/sql"
	"testing"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestSQLiteFile_ReadableWithPlainDriver checks that the database file the
// store writes is a regular SQLite file other tools can open, by reading it
// back through database/sql without GORM.
func TestSQLiteFile_ReadableWithPlainDriver(t *testing.T) {
	t.Parallel()

	settings := createTestSettings(t)
	ds := New(settings)
	require.NoError(t, ds.Open())

	start := time.Date(2024, 6, 15, 12, 0, 0, 0, time.UTC).UnixNano()
	_, err := ds.CommitFile(context.Background(), "site-a", monoFormat(),
		start, start+3*int64(time.Second), makeMonoSamples(start, 5, -6, 7), 100)
	require.NoError(t, err)
	require.NoError(t, ds.Close())

	db, err := sql.Open("sqlite3", settings.Output.SQLite.Path)
	require.NoError(t, err)
	defer db.Close()

	var sampleCount int
	require.NoError(t, db.QueryRow("SELECT COUNT(*) FROM samples").Scan(&sampleCount))
	assert.Equal(t, 3, sampleCount)

	var name string
	var startNs, endNs int64
	err = db.QueryRow("SELECT name, start_ns, end_ns FROM collections").Scan(&name, &startNs, &endNs)
	require.NoError(t, err)
	assert.Equal(t, "site-a", name)
	assert.Equal(t, start, startNs)
	assert.Equal(t, start+3*int64(time.Second), endNs)
}
