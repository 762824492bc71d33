package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"weightloss-ingest/config"
	"weightloss-ingest/models"
	"weightloss-ingest/storage"
)

// Outcome ist der Endzustand einer Datei innerhalb eines Laufs.
type Outcome string

const (
	OutcomeCommitted      Outcome = "committed"       // gespeichert, ins Archiv verschoben
	OutcomeRejected       Outcome = "rejected"        // Validierung fehlgeschlagen, nach Faulty
	OutcomeReshapeFailed  Outcome = "reshape_failed"  // fehlerhafte Daten, nach Faulty
	OutcomePersistFailed  Outcome = "persist_failed"  // bleibt im Eingangsbereich
	OutcomeDownloadFailed Outcome = "download_failed" // bleibt im Eingangsbereich
	OutcomeFailed         Outcome = "failed"          // unerwarteter Fehler, bleibt liegen
)

// FileReport ist das Ergebnis für eine Datei.
type FileReport struct {
	Key          string            `json:"key"`
	FileCode     string            `json:"file_code,omitempty"`
	Outcome      Outcome           `json:"outcome"`
	Observations int               `json:"observations"`
	Persist      PersistResult     `json:"persist"`
	Relocation   *RelocationResult `json:"-"`
	Destination  string            `json:"destination,omitempty"`
	Error        string            `json:"error,omitempty"`
}

// RunReport fasst einen Lauf zusammen.
type RunReport struct {
	RunID    string       `json:"run_id"`
	Started  time.Time    `json:"started"`
	Finished time.Time    `json:"finished"`
	Files    []FileReport `json:"files"`
}

// Count zählt die Dateien mit dem angegebenen Ergebnis.
func (r RunReport) Count(o Outcome) int {
	n := 0
	for _, f := range r.Files {
		if f.Outcome == o {
			n++
		}
	}
	return n
}

// SessionProvider liefert pro Datei eine neue Datenbank-Session.
type SessionProvider interface {
	Connect(ctx context.Context) (*Session, error)
}

// Pipeline verarbeitet alle Dateien im Eingangsbereich nacheinander:
// Validierung, Reshape, Persistenz und Verschieben.
type Pipeline struct {
	Store           storage.ObjectStore
	Validator       *Validator
	Sessions        SessionProvider
	Persister       *Persister
	Relocator       *Relocator
	InputPrefix     string
	ListTimeout     time.Duration
	DownloadTimeout time.Duration
	Logger          *zap.Logger
}

// NewPipeline verdrahtet die Komponenten anhand der Konfiguration.
func NewPipeline(cfg *config.Config, store storage.ObjectStore, sessions SessionProvider, logger *zap.Logger) *Pipeline {
	return &Pipeline{
		Store:     store,
		Validator: NewValidator(),
		Sessions:  sessions,
		Persister: NewPersister(logger),
		Relocator: &Relocator{
			Store:         store,
			InputPrefix:   cfg.InputPrefix,
			ArchivePrefix: cfg.ArchivePrefix,
			FaultyPrefix:  cfg.FaultyPrefix,
			CopyTimeout:   cfg.CopyTimeout,
			DeleteTimeout: cfg.DeleteTimeout,
			Logger:        logger.With(zap.String("component", "relocator")),
		},
		InputPrefix:     cfg.InputPrefix,
		ListTimeout:     cfg.ListTimeout,
		DownloadTimeout: cfg.DownloadTimeout,
		Logger:          logger.With(zap.String("component", "pipeline")),
	}
}

// Run führt einen vollständigen Lauf aus. Ein Fehler wird nur zurückgegeben, wenn das
// Listing scheitert; Fehler einzelner Dateien stehen im Report.
func (p *Pipeline) Run(ctx context.Context) (report RunReport, err error) {
	report = RunReport{RunID: uuid.NewString(), Started: time.Now().UTC()}
	log := p.Logger.With(zap.String("run_id", report.RunID))
	defer func() {
		report.Finished = time.Now().UTC()
		runDuration.Observe(report.Finished.Sub(report.Started).Seconds())
	}()

	listCtx, cancel := context.WithTimeout(ctx, p.ListTimeout)
	objects, err := p.Store.List(listCtx, p.InputPrefix)
	cancel()
	if err != nil {
		log.Error("Failed to list input files", zap.String("prefix", p.InputPrefix), zap.Error(err))
		return report, fmt.Errorf("list %s: %w", p.InputPrefix, err)
	}
	if len(objects) == 0 {
		log.Info("No input files found")
		return report, nil
	}
	log.Info("Starting run", zap.Int("files", len(objects)))

	for _, obj := range objects {
		if ctx.Err() != nil {
			log.Warn("Run cancelled, remaining files stay in place", zap.Error(ctx.Err()))
			break
		}
		file := models.SourceFile{Key: obj.Key, Size: obj.Size, LastModified: obj.LastModified}
		fr := p.processSafe(ctx, file, log.With(zap.String("file", file.Key)))
		filesProcessedCounter.WithLabelValues(string(fr.Outcome)).Inc()
		report.Files = append(report.Files, fr)
	}

	log.Info("Run finished",
		zap.Int("committed", report.Count(OutcomeCommitted)),
		zap.Int("rejected", report.Count(OutcomeRejected)),
		zap.Int("reshape_failed", report.Count(OutcomeReshapeFailed)),
		zap.Int("persist_failed", report.Count(OutcomePersistFailed)),
		zap.Int("download_failed", report.Count(OutcomeDownloadFailed)),
		zap.Int("failed", report.Count(OutcomeFailed)))
	return report, nil
}

// processSafe fängt Panics einer Datei ab; die Datei bleibt liegen.
func (p *Pipeline) processSafe(ctx context.Context, file models.SourceFile, log *zap.Logger) (fr FileReport) {
	defer func() {
		if r := recover(); r != nil {
			log.Error("Recovered from panic while processing file", zap.Any("panic", r), zap.Stack("stack"))
			fr = FileReport{Key: file.Key, Outcome: OutcomeFailed, Error: fmt.Sprint(r)}
		}
	}()
	return p.ProcessFile(ctx, file, log)
}

// ProcessFile führt eine Datei bis zu ihrem Endzustand.
func (p *Pipeline) ProcessFile(ctx context.Context, file models.SourceFile, log *zap.Logger) FileReport {
	fr := FileReport{Key: file.Key}

	dlCtx, cancel := context.WithTimeout(ctx, p.DownloadTimeout)
	data, err := p.Store.Download(dlCtx, file.Key)
	cancel()
	if err != nil {
		log.Error("Failed to download file", zap.Error(err))
		return p.fail(fr, OutcomeDownloadFailed, err)
	}
	log.Debug("Downloaded file", zap.Int("bytes", len(data)))

	table, err := ParseTable(data)
	if err != nil {
		verr := &ValidationError{Filename: file.Key, Reason: "malformed csv: " + err.Error()}
		log.Warn("Rejecting file", zap.Error(verr))
		return p.relocate(ctx, p.fail(fr, OutcomeRejected, verr), file, AreaFaulty, log)
	}

	code, err := p.Validator.Validate(table.Header, file.Key)
	if err != nil {
		log.Warn("Rejecting file", zap.Error(err))
		return p.relocate(ctx, p.fail(fr, OutcomeRejected, err), file, AreaFaulty, log)
	}
	fr.FileCode = code
	log = log.With(zap.String("file_code", code))

	obs, err := Reshape(table, ReshapeInput{
		Filename:   BaseName(file.Key),
		UploadDate: file.LastModified.UTC(),
		FileCode:   code,
	})
	if err != nil {
		log.Warn("Failed to reshape file", zap.Error(err))
		return p.relocate(ctx, p.fail(fr, OutcomeReshapeFailed, err), file, AreaFaulty, log)
	}
	fr.Observations = len(obs)
	metas, weights := MetadataRecords(obs), WeightRecords(obs)
	log.Debug("Reshaped file", zap.Int("observations", len(obs)), zap.Int("metadata", len(metas)), zap.Int("weights", len(weights)))

	session, err := p.Sessions.Connect(ctx)
	if err != nil {
		log.Error("No database session, file stays in input area", zap.Error(err))
		return p.fail(fr, OutcomePersistFailed, err)
	}
	res, err := p.Persister.Persist(ctx, session, metas, weights)
	fr.Persist = res
	if err != nil || !res.Committed {
		if err == nil {
			err = errors.New("transaction not committed")
		}
		log.Error("Failed to persist file, file stays in input area", zap.Error(err))
		return p.fail(fr, OutcomePersistFailed, err)
	}

	fr.Outcome = OutcomeCommitted
	log.Info("File committed", zap.Int("observations", len(obs)))
	return p.relocate(ctx, fr, file, AreaArchive, log)
}

func (p *Pipeline) fail(fr FileReport, o Outcome, err error) FileReport {
	fr.Outcome = o
	fr.Error = err.Error()
	return fr
}

func (p *Pipeline) relocate(ctx context.Context, fr FileReport, file models.SourceFile, area Area, log *zap.Logger) FileReport {
	res := p.Relocator.Relocate(ctx, file, area)
	fr.Relocation = &res
	fr.Destination = res.Destination
	if res.Err != nil {
		log.Warn("File could not be relocated and will be seen again next run", zap.Stringer("area", area), zap.Error(res.Err))
	}
	return fr
}
