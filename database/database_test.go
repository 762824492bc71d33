package database

import (
	"path/filepath"
	"testing"

	"weightloss-ingest/config"
	"weightloss-ingest/models"

	"gorm.io/gorm"
)

func TestDialectorSelection(t *testing.T) {
	cases := []struct {
		driver string
		name   string
	}{
		{"postgres", "postgres"},
		{"sqlite", "sqlite"},
	}
	for _, tc := range cases {
		cfg := &config.Config{DBDriver: tc.driver, DBHost: "db", DBSQLitePath: filepath.Join(t.TempDir(), "x.db")}
		d, err := Dialector(cfg)
		if err != nil {
			t.Fatalf("%s: %v", tc.driver, err)
		}
		if d.Name() != tc.name {
			t.Fatalf("dialector name = %q, want %q", d.Name(), tc.name)
		}
	}
	if _, err := Dialector(&config.Config{DBDriver: "mssql"}); err == nil {
		t.Fatal("expected error for unknown driver")
	}
}

func TestMigrateCreatesTables(t *testing.T) {
	cfg := &config.Config{DBDriver: "sqlite", DBSQLitePath: filepath.Join(t.TempDir(), "migrate.db")}
	d, err := Dialector(cfg)
	if err != nil {
		t.Fatalf("dialector: %v", err)
	}
	db, err := gorm.Open(d, GormConfig())
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if err := Migrate(db); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	if !db.Migrator().HasTable(&models.FileMetadata{}) || !db.Migrator().HasTable(&models.WeightLoss{}) {
		t.Fatal("tables missing after migrate")
	}
	if !db.Migrator().HasIndex(&models.WeightLoss{}, "idx_weight_loss_key") {
		t.Fatal("weight_loss lookup index missing")
	}
}
