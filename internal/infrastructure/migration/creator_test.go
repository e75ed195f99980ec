package migration

import (
	"os"
	"path/filepath"
	"testing"
	"testing/fstest"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/erp/stockengine/migrations"
)

func TestSanitizeName(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"add stock index", "add_stock_index"},
		{"Add-Bin-Locations", "add_bin_locations"},
		{"ADD__RETURN__ORDERS", "add_return_orders"},
		{"   spaces   ", "spaces"},
		{"special!@#$chars", "specialchars"},
		{"_leading", "leading"},
		{"trailing_", "trailing"},
		{"", ""},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			assert.Equal(t, tt.expected, sanitizeName(tt.input))
		})
	}
}

func TestCreateMigration(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested", "migrations")
	now := time.Date(2026, 3, 4, 5, 6, 7, 0, time.UTC)

	mf, err := createMigrationAt(dir, "add stock index", "Index stocks by bin code", now)
	require.NoError(t, err)
	assert.Equal(t, "20260304050607", mf.Version)
	assert.Equal(t, filepath.Join(dir, "20260304050607_add_stock_index.up.sql"), mf.UpPath)
	assert.Equal(t, filepath.Join(dir, "20260304050607_add_stock_index.down.sql"), mf.DownPath)

	up, err := os.ReadFile(mf.UpPath)
	require.NoError(t, err)
	assert.Contains(t, string(up), "Index stocks by bin code")
	down, err := os.ReadFile(mf.DownPath)
	require.NoError(t, err)
	assert.Contains(t, string(down), "Rollback")

	t.Run("does not overwrite", func(t *testing.T) {
		_, err := createMigrationAt(dir, "add stock index", "", now)
		assert.Error(t, err)
	})

	t.Run("rejects empty names", func(t *testing.T) {
		_, err := CreateMigration(dir, "!!!", "")
		assert.Error(t, err)
	})
}

func TestListMigrations(t *testing.T) {
	fsys := fstest.MapFS{
		"000002_add_products.up.sql":   {},
		"000002_add_products.down.sql": {},
		"000001_init.up.sql":           {},
		"000001_init.down.sql":         {},
		"README.md":                    {},
		"subdir.up.sql/x":              {},
	}
	names, err := ListMigrations(fsys)
	require.NoError(t, err)
	assert.Equal(t, []string{"000001_init", "000002_add_products"}, names)

	names, err = ListMigrationsDir("/nonexistent/path/to/migrations")
	require.NoError(t, err)
	assert.Empty(t, names)
}

func TestEmbeddedMigrations(t *testing.T) {
	names, err := ListMigrations(migrations.FS)
	require.NoError(t, err)
	assert.Equal(t, []string{
		"20260105090000_create_warehouse_tables",
		"20260105090100_create_stock_tables",
		"20260105090200_create_order_tables",
	}, names)

	for _, name := range names {
		_, err := migrations.FS.Open(name + ".down.sql")
		assert.NoError(t, err, "%s has no rollback", name)
	}
}
