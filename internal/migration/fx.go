package migration

import (
	"strings"

	"github.com/smallbiznis/societybill/internal/config"
	"github.com/smallbiznis/societybill/pkg/db"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var Module = fx.Module("migrations",
	fx.Invoke(Apply),
)

// Apply runs the postgres migrations, or gorm AutoMigrate for other dialects when enabled.
func Apply(conn *gorm.DB, cfg config.Config, log *zap.Logger) error {
	if strings.EqualFold(strings.TrimSpace(cfg.DBType), db.DialectPostgres) {
		sqlDB, err := conn.DB()
		if err != nil {
			return err
		}
		if err := RunMigrations(sqlDB); err != nil {
			return err
		}
		log.Info("database migrations applied", zap.String("type", cfg.DBType))
		return nil
	}

	if !cfg.DBAutoMigrate {
		log.Warn("schema migration skipped", zap.String("type", cfg.DBType))
		return nil
	}
	if err := AutoMigrate(conn); err != nil {
		return err
	}
	log.Info("schema auto-migrated", zap.String("type", cfg.DBType))
	return nil
}
