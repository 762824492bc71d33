package services

import (
	"context"
	"errors"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest"
	"go.uber.org/zap/zaptest/observer"

	"weightloss-ingest/models"
)

func reshapedSample(t *testing.T) ([]models.FileMetadata, []models.WeightLoss) {
	t.Helper()
	obs, err := Reshape(mustParse(t, sampleCSV), reshapeInput())
	if err != nil {
		t.Fatalf("reshape: %v", err)
	}
	return MetadataRecords(obs), WeightRecords(obs)
}

func TestPersistIsIdempotent(t *testing.T) {
	cfg := testConfig(t)
	conn := newTestConnector(t, cfg)
	p := NewPersister(zaptest.NewLogger(t))
	metas, weights := reshapedSample(t)
	ctx := context.Background()

	session, err := conn.Connect(ctx)
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	first, err := p.Persist(ctx, session, metas, weights)
	if err != nil {
		t.Fatalf("first persist: %v", err)
	}
	if !first.Committed || first.MetadataInserted != 3 || first.WeightsInserted != 9 || first.RowErrors != 0 {
		t.Fatalf("unexpected first result %+v", first)
	}

	session, err = conn.Connect(ctx)
	if err != nil {
		t.Fatalf("reconnect: %v", err)
	}
	second, err := p.Persist(ctx, session, metas, weights)
	if err != nil {
		t.Fatalf("second persist: %v", err)
	}
	// Null-Gewichte (3 Stück im Beispiel) müssen ebenfalls als vorhanden erkannt werden.
	if second.MetadataInserted != 0 || second.WeightsInserted != 0 || second.MetadataSkipped != 3 || second.WeightsSkipped != 9 {
		t.Fatalf("second run inserted duplicates: %+v", second)
	}

	db := openTestDB(t, cfg)
	if n := countRows(t, db, &models.FileMetadata{}); n != 3 {
		t.Fatalf("file_metadata rows = %d, want 3", n)
	}
	if n := countRows(t, db, &models.WeightLoss{}); n != 9 {
		t.Fatalf("weight_loss rows = %d, want 9", n)
	}
	var nulls int64
	db.Model(&models.WeightLoss{}).Where("weight IS NULL").Count(&nulls)
	if nulls != 3 {
		t.Fatalf("null weight rows = %d, want 3", nulls)
	}
}

func TestPersistSkipsFailingRows(t *testing.T) {
	cfg := testConfig(t)
	conn := newTestConnector(t, cfg)
	metas, weights := reshapedSample(t)
	ctx := context.Background()

	db := openTestDB(t, cfg)
	if err := db.Migrator().DropTable(&models.WeightLoss{}); err != nil {
		t.Fatalf("drop table: %v", err)
	}

	session, err := conn.Connect(ctx)
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	res, err := NewPersister(zaptest.NewLogger(t)).Persist(ctx, session, metas, weights)
	if err != nil {
		t.Fatalf("persist: %v", err)
	}
	if !res.Committed || res.MetadataInserted != 3 || res.RowErrors != len(weights) {
		t.Fatalf("expected metadata committed and weight rows skipped, got %+v", res)
	}
	if n := countRows(t, db, &models.FileMetadata{}); n != 3 {
		t.Fatalf("file_metadata rows = %d, want 3", n)
	}
}

func TestPersistDeadConnection(t *testing.T) {
	cfg := testConfig(t)
	conn := newTestConnector(t, cfg)
	metas, weights := reshapedSample(t)
	ctx := context.Background()

	session, err := conn.Connect(ctx)
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	sqlDB, _ := session.DB.DB()
	_ = sqlDB.Close()

	res, err := NewPersister(zaptest.NewLogger(t)).Persist(ctx, session, metas, weights)
	if !errors.Is(err, ErrConnectionDead) {
		t.Fatalf("expected ErrConnectionDead, got %v", err)
	}
	if res.Committed {
		t.Fatal("dead connection must not commit")
	}
	if n := countRows(t, openTestDB(t, cfg), &models.FileMetadata{}); n != 0 {
		t.Fatalf("expected no rows, got %d", n)
	}
}

func TestPersistRollsBackOnCancel(t *testing.T) {
	cfg := testConfig(t)
	conn := newTestConnector(t, cfg)
	metas, weights := reshapedSample(t)

	ctx, cancel := context.WithCancel(context.Background())
	session, err := conn.Connect(ctx)
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	core, logs := observer.New(zapcore.WarnLevel)
	p := NewPersister(zap.New(core))
	// Abbruch nach dem ersten Metadatensatz: der Rest ist ein Fehler auf Transaktionsebene.
	p.afterRow = func(int) { cancel() }

	res, err := p.Persist(ctx, session, metas, weights)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if res.Committed {
		t.Fatal("cancelled batch must not commit")
	}
	if n := countRows(t, openTestDB(t, cfg), &models.FileMetadata{}); n != 0 {
		t.Fatalf("expected rollback, found %d metadata rows", n)
	}
	if n := logs.FilterMessage("Rollback failed").Len(); n != 0 {
		t.Fatalf("rollback of an already aborted transaction logged %d warnings", n)
	}
}
