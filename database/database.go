// Package database wählt den GORM-Dialekt und verwaltet das Schema der Zieltabellen.
package database

import (
	"fmt"

	"weightloss-ingest/config"
	"weightloss-ingest/models"

	"github.com/glebarez/sqlite"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Dialector liefert den Dialekt für DB_DRIVER (postgres|sqlite).
func Dialector(cfg *config.Config) (gorm.Dialector, error) {
	switch cfg.DBDriver {
	case "postgres":
		return postgres.Open(cfg.DSN()), nil
	case "sqlite":
		return sqlite.Open(cfg.DBSQLitePath), nil
	default:
		return nil, fmt.Errorf("unknown database driver %s", cfg.DBDriver)
	}
}

// GormConfig ist die gemeinsame GORM-Konfiguration; das GORM-Logging bleibt stumm,
// geloggt wird über zap in den Services.
func GormConfig() *gorm.Config {
	return &gorm.Config{
		Logger:               logger.Default.LogMode(logger.Silent),
		DisableAutomaticPing: true,
	}
}

// Migrate legt die Tabellen file_metadata und weight_loss an bzw. aktualisiert sie.
func Migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(&models.FileMetadata{}, &models.WeightLoss{}); err != nil {
		return fmt.Errorf("auto-migrate: %w", err)
	}
	return nil
}
