package db

import (
	"context"
	"time"

	"github.com/smallbiznis/societybill/internal/config"
	obslogger "github.com/smallbiznis/societybill/internal/observability/logger"
	"github.com/uptrace/opentelemetry-go-extra/otelgorm"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
	gormprometheus "gorm.io/plugin/prometheus"
)

var Module = fx.Module("db",
	fx.Provide(New),
)

// New opens the configured database with zap logging, tracing and pool limits applied.
func New(lc fx.Lifecycle, cfg config.Config, log *zap.Logger) (*gorm.DB, error) {
	dialector, err := Dialect(cfg)
	if err != nil {
		return nil, err
	}

	level := gormlogger.Warn
	if !cfg.IsProduction() {
		level = gormlogger.Info
	}

	conn, err := gorm.Open(dialector, &gorm.Config{
		Logger:         obslogger.NewGormLogger(level, 200*time.Millisecond),
		NowFunc:        func() time.Time { return time.Now().UTC() },
		TranslateError: true,
	})
	if err != nil {
		return nil, err
	}

	if err := conn.Use(otelgorm.NewPlugin()); err != nil {
		return nil, err
	}
	// Pool stats land on the default registry served at /metrics.
	if err := conn.Use(gormprometheus.New(gormprometheus.Config{
		DBName:          cfg.DBName,
		RefreshInterval: 15,
	})); err != nil {
		return nil, err
	}

	sqlDB, err := conn.DB()
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxIdleConns(cfg.DBMaxIdleConn)
	sqlDB.SetMaxOpenConns(cfg.DBMaxOpenConn)
	sqlDB.SetConnMaxLifetime(time.Duration(cfg.DBConnMaxLifetime) * time.Second)
	sqlDB.SetConnMaxIdleTime(time.Duration(cfg.DBConnMaxIdleTime) * time.Second)

	if lc != nil {
		lc.Append(fx.Hook{
			OnStart: func(ctx context.Context) error {
				return sqlDB.PingContext(ctx)
			},
			OnStop: func(context.Context) error {
				log.Info("closing database connections")
				return sqlDB.Close()
			},
		})
	}

	log.Info("database configured", zap.String("type", cfg.DBType), zap.String("host", cfg.DBHost))
	return conn, nil
}
