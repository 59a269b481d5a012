package migration

import (
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"io/fs"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	billdomain "github.com/smallbiznis/societybill/internal/bill/domain"
	ruledomain "github.com/smallbiznis/societybill/internal/maintenancerule/domain"
	unitdomain "github.com/smallbiznis/societybill/internal/unit/domain"
	"gorm.io/gorm"
)

const migrationsDir = "sql"

//go:embed sql/*.sql
var embeddedMigrations embed.FS

// RunMigrations applies the embedded postgres schema. The *sql.DB stays open.
func RunMigrations(db *sql.DB) error {
	if db == nil {
		return errors.New("migration database handle is required")
	}

	sub, err := fs.Sub(embeddedMigrations, migrationsDir)
	if err != nil {
		return fmt.Errorf("open migrations: %w", err)
	}

	source, err := iofs.New(sub, ".")
	if err != nil {
		return fmt.Errorf("create migration source: %w", err)
	}

	driver, err := postgres.WithInstance(db, &postgres.Config{})
	if err != nil {
		return fmt.Errorf("create migration driver: %w", err)
	}

	migrator, err := migrate.NewWithInstance("iofs", source, "postgres", driver)
	if err != nil {
		return fmt.Errorf("create migrator: %w", err)
	}

	upErr := migrator.Up()
	if upErr != nil && !errors.Is(upErr, migrate.ErrNoChange) {
		return fmt.Errorf("apply migrations: %w", upErr)
	}
	// Do not call migrator.Close here because it would close the shared *sql.DB.

	return nil
}

// AutoMigrate creates the schema from the gorm models for dialects without SQL migrations.
func AutoMigrate(conn *gorm.DB) error {
	return conn.AutoMigrate(&unitdomain.Unit{}, &ruledomain.Rule{}, &billdomain.Bill{})
}
