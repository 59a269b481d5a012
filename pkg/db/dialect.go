package db

import (
	"fmt"
	"strings"

	"github.com/glebarez/sqlite"
	"github.com/smallbiznis/societybill/internal/config"
	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

const (
	DialectPostgres = "postgres"
	DialectMySQL    = "mysql"
	DialectSQLite   = "sqlite"
)

// Dialect builds the gorm dialector for the configured database type.
func Dialect(cfg config.Config) (gorm.Dialector, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.DBType)) {
	case DialectMySQL:
		return mysql.Open(fmt.Sprintf("%s:%s@tcp(%s:%s)/%s?charset=utf8mb4&parseTime=True&loc=UTC",
			cfg.DBUser,
			cfg.DBPassword,
			cfg.DBHost,
			cfg.DBPort,
			cfg.DBName,
		)), nil
	case DialectPostgres:
		return postgres.Open(fmt.Sprintf("host=%s user=%s password=%s dbname=%s port=%s sslmode=%s TimeZone=UTC",
			cfg.DBHost,
			cfg.DBUser,
			cfg.DBPassword,
			cfg.DBName,
			cfg.DBPort,
			cfg.DBSSLMode,
		)), nil
	case DialectSQLite:
		name := strings.TrimSpace(cfg.DBName)
		if name == "" || name == "postgres" {
			name = "societybill.db"
		}
		return sqlite.Open(name + "?_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)"), nil
	default:
		return nil, fmt.Errorf("unsupported %s type", cfg.DBType)
	}
}
