package services

import (
	"context"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"go.uber.org/zap/zaptest"
	"gorm.io/gorm"

	"weightloss-ingest/config"
	"weightloss-ingest/database"
)

const sampleCSV = `Sample Number,Variety,Formulation,Number of Samples,WLD0,WLD3,WLD9
1,Hass,A,10,100,95,90
2,Hass,B,10,200,,180
3,Reed,A,,50,NA,
`

// testConfig liefert eine sqlite-Konfiguration in einem temporären Verzeichnis.
func testConfig(t *testing.T) *config.Config {
	t.Helper()
	return &config.Config{
		DBDriver:        "sqlite",
		DBSQLitePath:    filepath.Join(t.TempDir(), "weightloss.db"),
		ConnectTries:    3,
		ConnectBackoff:  time.Millisecond,
		ConnectTimeout:  5 * time.Second,
		InputPrefix:     "InputFiles/",
		ArchivePrefix:   "Archive/",
		FaultyPrefix:    "Faulty/",
		ListTimeout:     5 * time.Second,
		DownloadTimeout: 5 * time.Second,
		CopyTimeout:     5 * time.Second,
		DeleteTimeout:   5 * time.Second,
	}
}

// newTestConnector migriert die Datenbank und gibt einen Connector ohne Wartezeiten zurück.
func newTestConnector(t *testing.T, cfg *config.Config) *Connector {
	t.Helper()
	db := openTestDB(t, cfg)
	if err := database.Migrate(db); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	c := NewConnector(cfg, zaptest.NewLogger(t))
	c.Sleep = func(context.Context, time.Duration) error { return nil }
	return c
}

// openTestDB öffnet einen separaten Handle für Assertions, der beim Testende geschlossen wird.
func openTestDB(t *testing.T, cfg *config.Config) *gorm.DB {
	t.Helper()
	d, err := database.Dialector(cfg)
	if err != nil {
		t.Fatalf("dialector: %v", err)
	}
	db, err := gorm.Open(d, database.GormConfig())
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	return db
}

func countRows(t *testing.T, db *gorm.DB, model any) int64 {
	t.Helper()
	var n int64
	if err := db.Model(model).Count(&n).Error; err != nil {
		t.Fatalf("count: %v", err)
	}
	return n
}

func mustParse(t *testing.T, csv string) *Table {
	t.Helper()
	table, err := ParseTable([]byte(strings.TrimLeft(csv, "\n")))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	return table
}

func ptr[T any](v T) *T { return &v }
