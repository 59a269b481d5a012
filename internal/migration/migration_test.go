package migration

import (
	"io/fs"
	"testing"

	"github.com/glebarez/sqlite"
	billdomain "github.com/smallbiznis/societybill/internal/bill/domain"
	"github.com/smallbiznis/societybill/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

func TestEmbeddedMigrationsArePaired(t *testing.T) {
	entries, err := fs.ReadDir(embeddedMigrations, migrationsDir)
	require.NoError(t, err)

	names := make(map[string]bool, len(entries))
	for _, entry := range entries {
		names[entry.Name()] = true
	}
	for _, base := range []string{"000001_units", "000002_maintenance_rules", "000003_maintenance_bills"} {
		assert.True(t, names[base+".up.sql"], base)
		assert.True(t, names[base+".down.sql"], base)
	}
}

func TestApplyAutoMigratesSQLite(t *testing.T) {
	conn := openMemory(t)

	cfg := config.Config{DBType: "sqlite", DBAutoMigrate: true}
	require.NoError(t, Apply(conn, cfg, zap.NewNop()))

	assert.True(t, conn.Migrator().HasTable(&billdomain.Bill{}))
	assert.True(t, conn.Migrator().HasIndex(&billdomain.Bill{}, "ux_maintenance_bills_unit_month"))
}

func TestApplySkipsWithoutAutoMigrate(t *testing.T) {
	conn := openMemory(t)

	require.NoError(t, Apply(conn, config.Config{DBType: "sqlite"}, zap.NewNop()))
	assert.False(t, conn.Migrator().HasTable(&billdomain.Bill{}))
}

func openMemory(t *testing.T) *gorm.DB {
	t.Helper()
	conn, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{})
	require.NoError(t, err)
	sqlDB, err := conn.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })
	return conn
}
