package database

import (
	"context"
	"database/sql"
	"errors"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newDB opens a temp-file database directly; this package cannot use the
// shared test helper without an import cycle.
func newDB(t *testing.T) *DB {
	t.Helper()

	tmpFile, err := os.CreateTemp(t.TempDir(), "test_db_*.db")
	require.NoError(t, err)
	require.NoError(t, tmpFile.Close())

	db, err := New(Config{Path: tmpFile.Name(), Name: "test"})
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func TestNewAndHealthCheck(t *testing.T) {
	db := newDB(t)
	assert.Equal(t, "test", db.Name())
	assert.NoError(t, db.HealthCheck(context.Background()))
}

func TestMaintenanceOperations(t *testing.T) {
	db := newDB(t)
	_, err := db.Exec(`CREATE TABLE things (id INTEGER PRIMARY KEY, v TEXT)`)
	require.NoError(t, err)
	_, err = db.Exec(`INSERT INTO things (v) VALUES (?)`, "a")
	require.NoError(t, err)

	ctx := context.Background()
	assert.NoError(t, db.WALCheckpoint(ctx, "TRUNCATE"))
	assert.NoError(t, db.WALCheckpoint(ctx, "")) // defaults to TRUNCATE
	assert.NoError(t, db.Vacuum(ctx))

	stats, err := db.GetStats()
	require.NoError(t, err)
	assert.Greater(t, stats.PageCount, int64(0))
	assert.Greater(t, stats.PageSize, int64(0))
}

func TestVacuumCancelledContext(t *testing.T) {
	db := newDB(t)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.Error(t, db.Vacuum(ctx))
}

func TestWithTransactionRollsBackOnError(t *testing.T) {
	db := newDB(t)
	_, err := db.Exec(`CREATE TABLE things (id INTEGER PRIMARY KEY, v TEXT)`)
	require.NoError(t, err)

	boom := errors.New("boom")
	err = WithTransaction(db.Conn(), func(tx *sql.Tx) error {
		if _, err := tx.Exec(`INSERT INTO things (v) VALUES (?)`, "a"); err != nil {
			return err
		}
		return boom
	})
	require.ErrorIs(t, err, boom)

	var count int
	require.NoError(t, db.QueryRow(`SELECT COUNT(*) FROM things`).Scan(&count))
	assert.Zero(t, count)
}

func TestWithTransactionCommits(t *testing.T) {
	db := newDB(t)
	_, err := db.Exec(`CREATE TABLE things (id INTEGER PRIMARY KEY, v TEXT)`)
	require.NoError(t, err)

	err = WithTransaction(db.Conn(), func(tx *sql.Tx) error {
		_, err := tx.Exec(`INSERT INTO things (v) VALUES (?)`, "a")
		return err
	})
	require.NoError(t, err)

	var count int
	require.NoError(t, db.QueryRow(`SELECT COUNT(*) FROM things`).Scan(&count))
	assert.Equal(t, 1, count)
}
