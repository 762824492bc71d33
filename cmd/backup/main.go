package main

import (
	"bytes"
	"compress/gzip"
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"os/exec"
	"sort"
	"time"

	"weightloss-ingest/config"
	"weightloss-ingest/storage"

	"go.uber.org/zap"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Fehler beim Laden der Konfiguration: %v", err)
	}
	logging, err := zap.NewProduction()
	if err != nil {
		log.Fatalf("can't initialize zap logger: %v", err)
	}
	defer logging.Sync()

	ctx := context.Background()
	logging.Info("Starting backup", zap.String("driver", cfg.DBDriver))

	// 1. Datenbank-Dump erstellen
	var dump []byte
	switch cfg.DBDriver {
	case "postgres":
		dump, err = createDump(ctx, cfg)
	case "sqlite":
		dump, err = readSQLite(cfg.DBSQLitePath)
	default:
		err = fmt.Errorf("unsupported driver %s", cfg.DBDriver)
	}
	if err != nil {
		logging.Fatal("Failed to create database dump", zap.Error(err))
	}

	// 2. Backup in den Object Store hochladen
	store, err := storage.Open(ctx, cfg)
	if err != nil {
		logging.Fatal("Object store setup failed", zap.Error(err))
	}
	key := cfg.BackupPrefix + backupName(cfg.DBDriver, time.Now())
	if err := store.Put(ctx, key, dump); err != nil {
		logging.Fatal("Failed to upload backup", zap.String("key", key), zap.Error(err))
	}
	logging.Info("Backup uploaded", zap.String("key", key), zap.Int("bytes", len(dump)))

	// 3. Alte Backups rotieren
	if err := rotateBackups(ctx, store, cfg.BackupPrefix, cfg.KeepBackups, logging); err != nil {
		logging.Fatal("Failed to rotate backups", zap.Error(err))
	}
	logging.Info("Backup finished")
}

func backupName(driver string, now time.Time) string {
	ext := ".sql.gz"
	if driver == "sqlite" {
		ext = ".db.gz"
	}
	return "backup-" + now.UTC().Format("2006-01-02T15-04-05Z") + ext
}

func createDump(ctx context.Context, cfg *config.Config) ([]byte, error) {
	cmd := exec.CommandContext(ctx, "pg_dump",
		"-h", cfg.DBHost,
		"-p", fmt.Sprint(cfg.DBPort),
		"-U", cfg.DBUser,
		"-d", cfg.DBName,
		"-t", "file_metadata",
		"-t", "weight_loss",
		"-w", // Passwort wird über PGPASSWORD bereitgestellt
	)
	cmd.Env = append(os.Environ(), fmt.Sprintf("PGPASSWORD=%s", cfg.DBPassword))

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, err
	}
	if err := cmd.Start(); err != nil {
		return nil, err
	}
	data, err := compress(stdout)
	if err != nil {
		_ = cmd.Wait()
		return nil, err
	}
	if err := cmd.Wait(); err != nil {
		return nil, err
	}
	return data, nil
}

func readSQLite(path string) ([]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return compress(f)
}

func compress(r io.Reader) ([]byte, error) {
	var buf bytes.Buffer
	gzipWriter := gzip.NewWriter(&buf)
	if _, err := io.Copy(gzipWriter, r); err != nil {
		return nil, err
	}
	if err := gzipWriter.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// rotateBackups behält die keep neuesten Objekte unter prefix und löscht den Rest.
// Fehler beim Löschen einzelner Backups werden nur geloggt.
func rotateBackups(ctx context.Context, store storage.ObjectStore, prefix string, keep int, logging *zap.Logger) error {
	objects, err := store.List(ctx, prefix)
	if err != nil {
		return err
	}
	if len(objects) <= keep {
		logging.Info("No rotation needed", zap.Int("backups", len(objects)), zap.Int("keep", keep))
		return nil
	}

	sort.Slice(objects, func(i, j int) bool {
		if objects[i].LastModified.Equal(objects[j].LastModified) {
			return objects[i].Key > objects[j].Key
		}
		return objects[i].LastModified.After(objects[j].LastModified)
	})

	for _, obj := range objects[keep:] {
		logging.Info("Deleting old backup", zap.String("key", obj.Key))
		if err := store.Delete(ctx, obj.Key); err != nil {
			logging.Warn("Failed to delete old backup", zap.String("key", obj.Key), zap.Error(err))
		}
	}
	return nil
}
