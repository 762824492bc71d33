package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// Config enthält alle Konfigurationsparameter aus Umgebungsvariablen.
type Config struct {
	DBDriver       string        `envconfig:"DB_DRIVER" default:"postgres"`
	DBHost         string        `envconfig:"DB_HOST"`
	DBPort         int           `envconfig:"DB_PORT" default:"5432"`
	DBUser         string        `envconfig:"DB_USER"`
	DBPassword     string        `envconfig:"DB_PASSWORD"`
	DBName         string        `envconfig:"DB_NAME"`
	DBSSLMode      string        `envconfig:"DB_SSLMODE" default:"disable"`
	DBSQLitePath   string        `envconfig:"DB_SQLITE_PATH" default:"weightloss.db"`
	DBAutoMigrate  bool          `envconfig:"DB_AUTO_MIGRATE" default:"true"`
	ConnectTries   int           `envconfig:"DB_CONNECT_ATTEMPTS" default:"3"`
	ConnectBackoff time.Duration `envconfig:"DB_CONNECT_BACKOFF" default:"5s"`
	ConnectTimeout time.Duration `envconfig:"DB_CONNECT_TIMEOUT" default:"30s"`

	StorageDriver string `envconfig:"STORAGE_DRIVER" default:"s3"`
	S3Bucket      string `envconfig:"S3_BUCKET"`
	S3Region      string `envconfig:"S3_REGION" default:"us-east-1"`
	S3Endpoint    string `envconfig:"S3_ENDPOINT"`
	S3AccessKey   string `envconfig:"S3_ACCESS_KEY"`
	S3SecretKey   string `envconfig:"S3_SECRET_KEY"`
	S3PathStyle   bool   `envconfig:"S3_PATH_STYLE" default:"false"`
	FSRoot        string `envconfig:"FS_ROOT" default:"./data"`

	// Bereiche im Object Store, jeweils als Key-Präfix.
	InputPrefix   string `envconfig:"INPUT_PREFIX" default:"InputFiles/"`
	ArchivePrefix string `envconfig:"ARCHIVE_PREFIX" default:"Archive/"`
	FaultyPrefix  string `envconfig:"FAULTY_PREFIX" default:"Faulty/"`
	BackupPrefix  string `envconfig:"BACKUP_PREFIX" default:"Backups/"`

	ListTimeout     time.Duration `envconfig:"LIST_TIMEOUT" default:"60s"`
	DownloadTimeout time.Duration `envconfig:"DOWNLOAD_TIMEOUT" default:"120s"`
	CopyTimeout     time.Duration `envconfig:"COPY_TIMEOUT" default:"300s"`
	DeleteTimeout   time.Duration `envconfig:"DELETE_TIMEOUT" default:"180s"`

	// Cron-Ausdruck mit Sekundenfeld, Standard: alle 10 Minuten.
	CronSchedule string `envconfig:"CRON_SCHEDULE" default:"0 */10 * * * *"`
	RunOnStart   bool   `envconfig:"RUN_ON_START" default:"false"`
	WatchInput   bool   `envconfig:"WATCH_INPUT" default:"false"`

	HTTPPort       string `envconfig:"HTTP_PORT" default:"8080"`
	APISecretKey   string `envconfig:"API_SECRET_KEY"`
	LogDevelopment bool   `envconfig:"LOG_DEVELOPMENT" default:"false"`

	// Anzahl der Backups, die nach einer Sicherung im Backup-Bereich verbleiben.
	KeepBackups int `envconfig:"KEEP_BACKUPS" default:"4"`
}

// DSN gibt den Data Source Name für die PostgreSQL-Verbindung zurück.
func (c *Config) DSN() string {
	return fmt.Sprintf("host=%s user=%s password=%s dbname=%s port=%d sslmode=%s connect_timeout=%d",
		c.DBHost, c.DBUser, c.DBPassword, c.DBName, c.DBPort, c.DBSSLMode, int(c.ConnectTimeout.Seconds()))
}

// Validate prüft die treiberabhängigen Pflichtfelder.
func (c *Config) Validate() error {
	var errs []error
	switch c.DBDriver {
	case "postgres":
		for name, v := range map[string]string{"DB_HOST": c.DBHost, "DB_USER": c.DBUser, "DB_NAME": c.DBName} {
			if v == "" {
				errs = append(errs, fmt.Errorf("%s required for postgres driver", name))
			}
		}
	case "sqlite":
	default:
		errs = append(errs, fmt.Errorf("unknown DB_DRIVER %q", c.DBDriver))
	}
	switch c.StorageDriver {
	case "s3":
		if c.S3Bucket == "" {
			errs = append(errs, errors.New("S3_BUCKET required for s3 driver"))
		}
	case "fs", "memory":
	default:
		errs = append(errs, fmt.Errorf("unknown STORAGE_DRIVER %q", c.StorageDriver))
	}
	if c.ConnectTries < 1 {
		errs = append(errs, errors.New("DB_CONNECT_ATTEMPTS must be at least 1"))
	}
	if c.InputPrefix == "" || c.ArchivePrefix == "" || c.FaultyPrefix == "" {
		errs = append(errs, errors.New("input, archive and faulty prefixes must not be empty"))
	}
	if c.InputPrefix == c.ArchivePrefix || c.InputPrefix == c.FaultyPrefix ||
		strings.HasPrefix(c.ArchivePrefix, c.InputPrefix) || strings.HasPrefix(c.FaultyPrefix, c.InputPrefix) {
		errs = append(errs, errors.New("archive and faulty prefixes must lie outside the input prefix"))
	}
	return errors.Join(errs...)
}

// Load lädt die Konfiguration aus den Umgebungsvariablen.
func Load() (*Config, error) {
	_ = godotenv.Load()
	var c Config
	if err := envconfig.Process("", &c); err != nil {
		return nil, err
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return &c, nil
}
