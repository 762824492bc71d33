package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"weightloss-ingest/models"
)

// ErrConnectionDead wird zurückgegeben, wenn die Session vor dem Schreiben nicht mehr antwortet.
var ErrConnectionDead = errors.New("database connection is not alive")

// PersistResult fasst einen Persistenzlauf für eine Datei zusammen.
type PersistResult struct {
	Committed        bool
	MetadataInserted int
	MetadataSkipped  int
	WeightsInserted  int
	WeightsSkipped   int
	RowErrors        int
}

// Persister schreibt Metadaten- und Gewichtszeilen ohne Duplikate.
type Persister struct {
	Logger *zap.Logger

	afterRow func(i int) // Testhaken
}

// NewPersister erstellt einen Persister.
func NewPersister(logger *zap.Logger) *Persister {
	return &Persister{Logger: logger.With(zap.String("component", "persistence"))}
}

type rowOutcome int

const (
	rowInserted rowOutcome = iota
	rowSkipped
	rowFailed
)

// Persist schreibt alle Zeilen einer Datei in einer Transaktion. Jede Zeile läuft unter
// einem eigenen Savepoint: Zeilenfehler werden geloggt und übersprungen, Fehler auf
// Transaktionsebene führen zum Rollback. Die Session wird in jedem Fall geschlossen.
func (p *Persister) Persist(ctx context.Context, session *Session, metas []models.FileMetadata, weights []models.WeightLoss) (res PersistResult, err error) {
	defer func() {
		if cerr := session.Close(); cerr != nil {
			p.Logger.Warn("Failed to close database session", zap.Error(cerr))
		}
	}()

	if err := session.Ping(ctx); err != nil {
		return res, fmt.Errorf("%w: %v", ErrConnectionDead, err)
	}

	tx := session.DB.WithContext(ctx).Begin()
	if tx.Error != nil {
		return res, fmt.Errorf("begin transaction: %w", tx.Error)
	}
	defer func() {
		if !res.Committed {
			if rbErr := tx.Rollback().Error; rbErr != nil && !errors.Is(rbErr, gorm.ErrInvalidTransaction) && !errors.Is(rbErr, sql.ErrTxDone) {
				p.Logger.Warn("Rollback failed", zap.Error(rbErr))
			}
		}
	}()

	for i := range metas {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		rec := metas[i]
		rec.ID = 0
		cond := map[string]any{"group_id": rec.GroupID, "file_code": rec.FileCode}
		outcome, rowErr, fatal := insertIfAbsent(tx, fmt.Sprintf("fm_row_%d", i), &models.FileMetadata{}, cond, &rec)
		if fatal != nil {
			return res, fmt.Errorf("file_metadata row %d: %w", i, fatal)
		}
		switch outcome {
		case rowInserted:
			res.MetadataInserted++
		case rowSkipped:
			res.MetadataSkipped++
			p.Logger.Debug("Metadata row already present", zap.Int64("group_id", rec.GroupID), zap.String("file_code", rec.FileCode))
		case rowFailed:
			res.RowErrors++
			rowErrorsCounter.WithLabelValues(rec.TableName()).Inc()
			p.Logger.Warn("Skipping metadata row",
				zap.Int64("group_id", rec.GroupID), zap.String("file_code", rec.FileCode), zap.Error(rowErr))
		}
		if p.afterRow != nil {
			p.afterRow(i)
		}
	}

	for i := range weights {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		rec := weights[i]
		rec.ID = 0
		cond := map[string]any{
			"group_id":        rec.GroupID,
			"file_code":       rec.FileCode,
			"wld":             rec.WLD,
			"date_difference": rec.DateDifference,
		}
		if rec.Weight == nil {
			cond["weight"] = nil
		} else {
			cond["weight"] = *rec.Weight
		}
		outcome, rowErr, fatal := insertIfAbsent(tx, fmt.Sprintf("wl_row_%d", i), &models.WeightLoss{}, cond, &rec)
		if fatal != nil {
			return res, fmt.Errorf("weight_loss row %d: %w", i, fatal)
		}
		switch outcome {
		case rowInserted:
			res.WeightsInserted++
		case rowSkipped:
			res.WeightsSkipped++
			p.Logger.Debug("Weight row already present", zap.Int64("group_id", rec.GroupID), zap.Int("wld", rec.WLD))
		case rowFailed:
			res.RowErrors++
			rowErrorsCounter.WithLabelValues(rec.TableName()).Inc()
			p.Logger.Warn("Skipping weight row",
				zap.Int64("group_id", rec.GroupID), zap.String("file_code", rec.FileCode),
				zap.Int("wld", rec.WLD), zap.Error(rowErr))
		}
	}

	if err := tx.Commit().Error; err != nil {
		return res, fmt.Errorf("commit: %w", err)
	}
	res.Committed = true

	recordsInsertedCounter.WithLabelValues(models.FileMetadata{}.TableName()).Add(float64(res.MetadataInserted))
	recordsInsertedCounter.WithLabelValues(models.WeightLoss{}.TableName()).Add(float64(res.WeightsInserted))
	recordsSkippedCounter.WithLabelValues(models.FileMetadata{}.TableName()).Add(float64(res.MetadataSkipped))
	recordsSkippedCounter.WithLabelValues(models.WeightLoss{}.TableName()).Add(float64(res.WeightsSkipped))

	p.Logger.Info("Data persisted",
		zap.Int("metadata_inserted", res.MetadataInserted),
		zap.Int("metadata_skipped", res.MetadataSkipped),
		zap.Int("weights_inserted", res.WeightsInserted),
		zap.Int("weights_skipped", res.WeightsSkipped),
		zap.Int("row_errors", res.RowErrors))
	return res, nil
}

// insertIfAbsent zählt passende Zeilen und fügt rec nur ein, wenn keine existiert.
// rowErr ist ein übersprungener Zeilenfehler, fatal bricht die Transaktion ab.
func insertIfAbsent(tx *gorm.DB, savepoint string, model any, cond map[string]any, rec any) (outcome rowOutcome, rowErr, fatal error) {
	if err := tx.SavePoint(savepoint).Error; err != nil {
		return rowFailed, nil, fmt.Errorf("savepoint: %w", err)
	}

	var n int64
	rowErr = tx.Model(model).Where(cond).Count(&n).Error
	if rowErr == nil && n > 0 {
		outcome = rowSkipped
	} else if rowErr == nil {
		rowErr = tx.Create(rec).Error
		outcome = rowInserted
	}

	if rowErr != nil {
		if err := tx.RollbackTo(savepoint).Error; err != nil {
			return rowFailed, rowErr, fmt.Errorf("rollback to savepoint: %w", err)
		}
		return rowFailed, rowErr, nil
	}
	if err := tx.Exec("RELEASE SAVEPOINT " + savepoint).Error; err != nil {
		return rowFailed, nil, fmt.Errorf("release savepoint: %w", err)
	}
	return outcome, nil, nil
}
