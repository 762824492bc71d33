package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"weightloss-ingest/models"
	"weightloss-ingest/storage"
)

// flakyStore lässt einzelne Operationen gezielt fehlschlagen.
type flakyStore struct {
	storage.ObjectStore
	failCopy    bool
	failDelete  bool
	panicOnLoad string
}

func (s *flakyStore) Download(ctx context.Context, key string) ([]byte, error) {
	if key == s.panicOnLoad {
		panic("corrupt object handle")
	}
	return s.ObjectStore.Download(ctx, key)
}

func (s *flakyStore) Copy(ctx context.Context, src, dst string) error {
	if s.failCopy {
		return errors.New("copy: service unavailable")
	}
	return s.ObjectStore.Copy(ctx, src, dst)
}

func (s *flakyStore) Delete(ctx context.Context, key string) error {
	if s.failDelete {
		return errors.New("delete: access denied")
	}
	return s.ObjectStore.Delete(ctx, key)
}

func newRelocator(store storage.ObjectStore, logger *zap.Logger) *Relocator {
	return &Relocator{
		Store:         store,
		InputPrefix:   "InputFiles/",
		ArchivePrefix: "Archive/",
		FaultyPrefix:  "Faulty/",
		CopyTimeout:   time.Second,
		DeleteTimeout: time.Second,
		Logger:        logger,
	}
}

func TestRelocatorDestination(t *testing.T) {
	r := newRelocator(storage.NewMemoryStore(), zap.NewNop())
	if got := r.Destination("InputFiles/123_sample.csv", AreaArchive); got != "Archive/123_sample.csv" {
		t.Fatalf("archive destination = %q", got)
	}
	if got := r.Destination("InputFiles/2024/9.csv", AreaFaulty); got != "Faulty/2024/9.csv" {
		t.Fatalf("faulty destination = %q", got)
	}
}

func TestRelocateMovesFile(t *testing.T) {
	mem := storage.NewMemoryStore()
	mem.PutAt("InputFiles/123_sample.csv", []byte(sampleCSV), uploadDate)
	r := newRelocator(mem, zap.NewNop())

	res := r.Relocate(context.Background(), models.SourceFile{Key: "InputFiles/123_sample.csv"}, AreaArchive)
	if res.Err != nil || !res.Copied || !res.Deleted {
		t.Fatalf("unexpected result %+v", res)
	}
	keys := mem.Keys()
	if len(keys) != 1 || keys[0] != "Archive/123_sample.csv" {
		t.Fatalf("unexpected keys after relocation: %v", keys)
	}
}

func TestRelocateCopyFailureKeepsSource(t *testing.T) {
	mem := storage.NewMemoryStore()
	mem.PutAt("InputFiles/1.csv", []byte("x"), uploadDate)
	core, logs := observer.New(zap.ErrorLevel)
	r := newRelocator(&flakyStore{ObjectStore: mem, failCopy: true}, zap.New(core))

	res := r.Relocate(context.Background(), models.SourceFile{Key: "InputFiles/1.csv"}, AreaFaulty)
	if res.Err == nil || res.Copied || res.Deleted {
		t.Fatalf("unexpected result %+v", res)
	}
	if keys := mem.Keys(); len(keys) != 1 || keys[0] != "InputFiles/1.csv" {
		t.Fatalf("source must stay in place: %v", keys)
	}
	if logs.FilterMessage("Failed to copy file, leaving original in place").Len() != 1 {
		t.Fatalf("expected copy failure to be logged, got %v", logs.All())
	}
}

func TestRelocateDeleteFailureIsLogged(t *testing.T) {
	mem := storage.NewMemoryStore()
	mem.PutAt("InputFiles/1.csv", []byte("x"), uploadDate)
	core, logs := observer.New(zap.ErrorLevel)
	r := newRelocator(&flakyStore{ObjectStore: mem, failDelete: true}, zap.New(core))

	res := r.Relocate(context.Background(), models.SourceFile{Key: "InputFiles/1.csv"}, AreaArchive)
	if !res.Copied || res.Deleted || res.Err == nil {
		t.Fatalf("unexpected result %+v", res)
	}
	if keys := mem.Keys(); len(keys) != 2 {
		t.Fatalf("expected copy and original to coexist, got %v", keys)
	}
	entries := logs.FilterMessage("Copied file but failed to delete original").All()
	if len(entries) != 1 || entries[0].ContextMap()["key"] != "InputFiles/1.csv" {
		t.Fatalf("expected delete failure log with key, got %v", logs.All())
	}
}
