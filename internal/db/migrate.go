package db

import (
	"errors"
	"fmt"

	migrate "github.com/golang-migrate/migrate/v4"
	// The following blank imports register the postgres driver and file source for golang-migrate.
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/mmamrila/aiquoting-sub001/internal/config"
	"github.com/mmamrila/aiquoting-sub001/internal/logging"
	"github.com/mmamrila/aiquoting-sub001/internal/models"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// MigrationsSource is where the versioned SQL migrations live.
const MigrationsSource = "file://migrations"

// requiredTables are checked after migrating.
var requiredTables = []string{
	"parts", "parts_enhanced", "clients", "quotes", "quote_items",
	"quote_outcomes", "ai_interactions_enhanced",
	"ai_learning_patterns", "ai_pattern_aggregates",
}

// Migrate brings the schema up to date. With useSQL on a Postgres database the
// versioned SQL files are applied through golang-migrate; otherwise GORM
// AutoMigrate is used (dev and sqlite).
func Migrate(conn *gorm.DB, cfg config.DatabaseConfig, useSQL bool, log *zap.Logger) error {
	log = logging.OrNop(log)
	if useSQL && cfg.Driver != "sqlite" {
		url := ToURLDSN(connectionString(cfg))
		log.Info("running sql migrations", zap.String("source", MigrationsSource), zap.String("dsn", MaskDSN(url)))
		if err := runSQLMigrations(url); err != nil {
			return fmt.Errorf("sql migrations failed: %w", err)
		}
	} else {
		if err := AutoMigrate(conn); err != nil {
			return err
		}
	}

	for _, table := range requiredTables {
		if !conn.Migrator().HasTable(table) {
			return errors.New("missing table after migration: " + table)
		}
	}
	return nil
}

// AutoMigrate creates or updates every model table.
func AutoMigrate(conn *gorm.DB) error {
	for _, m := range models.All() {
		if err := conn.AutoMigrate(m); err != nil {
			return fmt.Errorf("automigrate %T: %w", m, err)
		}
	}
	return nil
}

// runSQLMigrations executes migrations in ./migrations using golang-migrate file source.
func runSQLMigrations(url string) error {
	m, err := migrate.New(MigrationsSource, url)
	if err != nil {
		return err
	}
	defer m.Close()
	if err = m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return err
	}
	return nil
}
