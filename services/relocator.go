package services

import (
	"context"
	"strings"
	"time"

	"go.uber.org/zap"

	"weightloss-ingest/models"
	"weightloss-ingest/storage"
)

// Area ist der Zielbereich einer verarbeiteten Datei.
type Area int

const (
	AreaArchive Area = iota
	AreaFaulty
)

func (a Area) String() string {
	if a == AreaFaulty {
		return "faulty"
	}
	return "archive"
}

// RelocationResult beschreibt das Ergebnis von Kopieren und Löschen.
type RelocationResult struct {
	Destination string
	Copied      bool
	Deleted     bool
	Err         error
}

// Relocator verschiebt Dateien per Kopieren und anschließendem Löschen.
// Fehler werden geloggt und im Ergebnis vermerkt, aber nie an den Lauf weitergegeben.
type Relocator struct {
	Store         storage.ObjectStore
	InputPrefix   string
	ArchivePrefix string
	FaultyPrefix  string
	CopyTimeout   time.Duration
	DeleteTimeout time.Duration
	Logger        *zap.Logger
}

// Destination bildet den Ziel-Key: Bereichspräfix + Key relativ zum Eingangspräfix.
func (r *Relocator) Destination(key string, area Area) string {
	prefix := r.ArchivePrefix
	if area == AreaFaulty {
		prefix = r.FaultyPrefix
	}
	return prefix + strings.TrimPrefix(key, r.InputPrefix)
}

// Relocate kopiert die Datei in den Zielbereich und löscht danach das Original.
// Schlägt das Kopieren fehl, bleibt das Original liegen.
func (r *Relocator) Relocate(ctx context.Context, file models.SourceFile, area Area) RelocationResult {
	res := RelocationResult{Destination: r.Destination(file.Key, area)}
	log := r.Logger.With(zap.String("key", file.Key), zap.String("destination", res.Destination), zap.Stringer("area", area))

	copyCtx, cancel := context.WithTimeout(ctx, r.CopyTimeout)
	err := r.Store.Copy(copyCtx, file.Key, res.Destination)
	cancel()
	if err != nil {
		relocationFailuresCounter.WithLabelValues("copy").Inc()
		log.Error("Failed to copy file, leaving original in place", zap.Error(err))
		res.Err = err
		return res
	}
	res.Copied = true

	deleteCtx, cancel := context.WithTimeout(ctx, r.DeleteTimeout)
	err = r.Store.Delete(deleteCtx, file.Key)
	cancel()
	if err != nil {
		relocationFailuresCounter.WithLabelValues("delete").Inc()
		log.Error("Copied file but failed to delete original", zap.Error(err))
		res.Err = err
		return res
	}
	res.Deleted = true
	log.Info("File relocated")
	return res
}
