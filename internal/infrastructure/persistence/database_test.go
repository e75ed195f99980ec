package persistence

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/erp/stockengine/internal/infrastructure/config"
	"github.com/erp/stockengine/internal/testutil"
)

func TestDatabase_Stats(t *testing.T) {
	t.Run("returns pool statistics of the underlying DB", func(t *testing.T) {
		mdb := testutil.NewMockDB(t)
		db := &Database{DB: mdb.DB}

		stats, err := db.Stats()
		require.NoError(t, err)
		assert.GreaterOrEqual(t, stats.OpenConnections, 0)
		assert.Equal(t, stats.OpenConnections, stats.InUse+stats.Idle)
		assert.GreaterOrEqual(t, stats.WaitCount, int64(0))
		assert.GreaterOrEqual(t, stats.WaitDuration, time.Duration(0))
	})
}

func TestDatabase_Ping(t *testing.T) {
	mdb := testutil.NewMockDB(t)
	db := &Database{DB: mdb.DB}

	assert.NoError(t, db.Ping())
}

func TestDatabase_Close(t *testing.T) {
	mdb := testutil.NewMockDB(t)
	db := &Database{DB: mdb.DB}

	mdb.Mock.ExpectClose()
	require.NoError(t, db.Close())
	mdb.ExpectationsWereMet(t)
}

func TestNewDatabase_ConnectionFailure(t *testing.T) {
	cfg := &config.DatabaseConfig{
		Host:         "127.0.0.1",
		Port:         1,
		User:         "stock",
		Password:     "secret",
		DBName:       "stockengine",
		SSLMode:      "disable",
		MaxOpenConns: 1,
		MaxIdleConns: 1,
	}

	db, err := NewDatabase(cfg)
	assert.Nil(t, db)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "database")
}
