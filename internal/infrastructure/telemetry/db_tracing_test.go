package telemetry

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"
)

type tracedStock struct {
	ID       uint `gorm:"primaryKey"`
	Quantity int
}

func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&tracedStock{}))
	return db
}

func TestDefaultDBTracingConfig(t *testing.T) {
	cfg := DefaultDBTracingConfig()

	assert.False(t, cfg.Enabled)
	assert.Equal(t, 200*time.Millisecond, cfg.SlowQueryThresh)
	assert.Equal(t, "stockengine", cfg.DBName)
	assert.True(t, cfg.WithoutVariables)
}

func TestNewDBTracingPlugin_DefaultsThreshold(t *testing.T) {
	plugin := NewDBTracingPlugin(DBTracingConfig{Enabled: true}, nil)
	assert.Equal(t, 200*time.Millisecond, plugin.config.SlowQueryThresh)
	assert.NotNil(t, plugin.logger)
}

func TestDBTracingPlugin_Disabled(t *testing.T) {
	db := setupTestDB(t)

	plugin := NewDBTracingPlugin(DefaultDBTracingConfig(), zap.NewNop())
	require.NoError(t, plugin.RegisterOtelGorm(db))

	assert.Nil(t, db.Callback().Query().Get("stock_timing:after_query"))
}

func TestDBTracingPlugin_Enabled(t *testing.T) {
	db := setupTestDB(t)

	cfg := DefaultDBTracingConfig()
	cfg.Enabled = true
	require.NoError(t, NewDBTracingPlugin(cfg, zap.NewNop()).RegisterOtelGorm(db))

	assert.NotNil(t, db.Callback().Query().Get("stock_timing:after_query"))
	assert.NotNil(t, db.Callback().Create().Get("stock_timing:before_create"))

	require.NoError(t, db.Create(&tracedStock{Quantity: 3}).Error)
	var row tracedStock
	require.NoError(t, db.First(&row).Error)
	assert.Equal(t, 3, row.Quantity)
}

func TestDBTracingPlugin_LogsSlowRowLocks(t *testing.T) {
	db := setupTestDB(t)
	core, logs := observer.New(zapcore.WarnLevel)

	cfg := DefaultDBTracingConfig()
	cfg.Enabled = true
	cfg.SlowQueryThresh = time.Nanosecond
	require.NoError(t, NewDBTracingPlugin(cfg, zap.New(core)).RegisterOtelGorm(db))

	require.NoError(t, db.Create(&tracedStock{Quantity: 1}).Error)
	var rows []tracedStock
	require.NoError(t, db.Clauses(clause.Locking{Strength: "UPDATE"}).Find(&rows).Error)

	slow := logs.FilterMessage("slow query").All()
	require.NotEmpty(t, slow)

	var sawLock bool
	for _, entry := range slow {
		if entry.ContextMap()["row_lock"] == true {
			sawLock = true
		}
	}
	assert.True(t, sawLock)
}

func TestIsRowLock(t *testing.T) {
	db := setupTestDB(t)

	locked := db.Session(&gorm.Session{DryRun: true}).Clauses(clause.Locking{Strength: "UPDATE"}).Find(&[]tracedStock{})
	assert.True(t, isRowLock(locked))

	plain := db.Session(&gorm.Session{DryRun: true}).Find(&[]tracedStock{})
	assert.False(t, isRowLock(plain))
}
