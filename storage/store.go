package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"weightloss-ingest/config"
)

// ErrNotFound wird zurückgegeben, wenn ein Objekt nicht existiert.
var ErrNotFound = errors.New("storage: object not found")

// Object beschreibt ein gelistetes Objekt.
type Object struct {
	Key          string
	Size         int64
	LastModified time.Time
}

// ObjectStore ist die minimale Object-Store-Schnittstelle der Pipeline.
// Alle Aufrufe blockieren; Timeouts werden über ctx gesetzt.
type ObjectStore interface {
	List(ctx context.Context, prefix string) ([]Object, error)
	Download(ctx context.Context, key string) ([]byte, error)
	Put(ctx context.Context, key string, data []byte) error
	Copy(ctx context.Context, srcKey, dstKey string) error
	Delete(ctx context.Context, key string) error
}

// Open wählt den Store anhand von STORAGE_DRIVER (s3|fs|memory).
func Open(ctx context.Context, cfg *config.Config) (ObjectStore, error) {
	switch cfg.StorageDriver {
	case "s3":
		return NewS3Store(ctx, cfg)
	case "fs":
		return NewFSStore(cfg.FSRoot)
	case "memory":
		return NewMemoryStore(), nil
	default:
		return nil, fmt.Errorf("unknown storage driver %s", cfg.StorageDriver)
	}
}
