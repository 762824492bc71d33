package config

import (
	"strings"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("DB_DRIVER", "sqlite")
	t.Setenv("STORAGE_DRIVER", "memory")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.ConnectTries != 3 || cfg.ConnectBackoff != 5*time.Second {
		t.Fatalf("unexpected retry defaults: %d %s", cfg.ConnectTries, cfg.ConnectBackoff)
	}
	if cfg.CopyTimeout != 300*time.Second || cfg.DeleteTimeout != 180*time.Second {
		t.Fatalf("unexpected relocation timeouts: %s %s", cfg.CopyTimeout, cfg.DeleteTimeout)
	}
	if cfg.InputPrefix != "InputFiles/" || cfg.ArchivePrefix != "Archive/" || cfg.FaultyPrefix != "Faulty/" {
		t.Fatalf("unexpected prefixes: %+v", cfg)
	}
	if cfg.CronSchedule != "0 */10 * * * *" {
		t.Fatalf("unexpected schedule %q", cfg.CronSchedule)
	}
}

func TestValidate(t *testing.T) {
	base := func() Config {
		return Config{
			DBDriver: "postgres", DBHost: "db", DBUser: "u", DBName: "n",
			StorageDriver: "s3", S3Bucket: "csv-files",
			ConnectTries: 3,
			InputPrefix:  "InputFiles/", ArchivePrefix: "Archive/", FaultyPrefix: "Faulty/",
		}
	}
	cases := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"ok", func(*Config) {}, ""},
		{"missing host", func(c *Config) { c.DBHost = "" }, "DB_HOST"},
		{"unknown db driver", func(c *Config) { c.DBDriver = "mssql" }, "unknown DB_DRIVER"},
		{"missing bucket", func(c *Config) { c.S3Bucket = "" }, "S3_BUCKET"},
		{"unknown storage", func(c *Config) { c.StorageDriver = "azure" }, "unknown STORAGE_DRIVER"},
		{"zero attempts", func(c *Config) { c.ConnectTries = 0 }, "DB_CONNECT_ATTEMPTS"},
		{"nested archive", func(c *Config) { c.ArchivePrefix = "InputFiles/done/" }, "outside the input prefix"},
		{"sqlite needs no host", func(c *Config) { c.DBDriver = "sqlite"; c.DBHost = "" }, ""},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := base()
			tc.mutate(&cfg)
			err := cfg.Validate()
			if tc.wantErr == "" {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tc.wantErr) {
				t.Fatalf("expected error containing %q, got %v", tc.wantErr, err)
			}
		})
	}
}

func TestDSN(t *testing.T) {
	cfg := Config{DBHost: "db", DBUser: "u", DBPassword: "p", DBName: "meal", DBPort: 5432, DBSSLMode: "require", ConnectTimeout: 30 * time.Second}
	want := "host=db user=u password=p dbname=meal port=5432 sslmode=require connect_timeout=30"
	if got := cfg.DSN(); got != want {
		t.Fatalf("dsn = %q, want %q", got, want)
	}
}
