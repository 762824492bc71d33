// Package scheduler löst Pipeline-Läufe aus: per Cron, manuell über HTTP oder durch
// neue Dateien im Eingangsverzeichnis. Es läuft höchstens ein Lauf gleichzeitig.
package scheduler

import (
	"context"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"

	"weightloss-ingest/services"
)

// RunFunc führt einen vollständigen Lauf aus.
type RunFunc func(ctx context.Context) (services.RunReport, error)

// Runner serialisiert Läufe. Überschneidende Auslöser werden verworfen, nicht eingereiht.
type Runner struct {
	run     RunFunc
	logger  *zap.Logger
	running atomic.Bool

	mu   sync.RWMutex
	last *services.RunReport
	done chan struct{} // wird am Ende des aktiven Laufs geschlossen
}

// NewRunner erstellt einen Runner für run.
func NewRunner(run RunFunc, logger *zap.Logger) *Runner {
	return &Runner{run: run, logger: logger.With(zap.String("component", "runner"))}
}

// TryRun startet einen Lauf, sofern keiner aktiv ist, und blockiert bis zu dessen Ende.
// Gibt false zurück, wenn bereits ein Lauf aktiv war.
func (r *Runner) TryRun(ctx context.Context, trigger string) bool {
	if !r.acquire(trigger) {
		return false
	}
	defer r.release()
	r.execute(ctx, trigger)
	return true
}

// Start ist wie TryRun, führt den Lauf aber im Hintergrund aus.
func (r *Runner) Start(ctx context.Context, trigger string) bool {
	if !r.acquire(trigger) {
		return false
	}
	go func() {
		defer r.release()
		r.execute(ctx, trigger)
	}()
	return true
}

func (r *Runner) acquire(trigger string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.running.CompareAndSwap(false, true) {
		r.logger.Info("Run already in progress, skipping trigger", zap.String("trigger", trigger))
		return false
	}
	r.done = make(chan struct{})
	return true
}

func (r *Runner) release() {
	r.mu.Lock()
	defer r.mu.Unlock()
	close(r.done)
	r.running.Store(false)
}

// Wait blockiert, bis der aktive Lauf beendet ist, oder bis ctx abläuft.
// Ohne aktiven Lauf kehrt Wait sofort zurück.
func (r *Runner) Wait(ctx context.Context) error {
	r.mu.RLock()
	done := r.done
	r.mu.RUnlock()
	if done == nil {
		return nil
	}
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (r *Runner) execute(ctx context.Context, trigger string) {
	r.logger.Info("Run triggered", zap.String("trigger", trigger))
	report, err := r.run(ctx)
	if err != nil {
		r.logger.Error("Run failed", zap.String("trigger", trigger), zap.String("run_id", report.RunID), zap.Error(err))
	}
	r.mu.Lock()
	r.last = &report
	r.mu.Unlock()
}

// Running meldet, ob gerade ein Lauf aktiv ist.
func (r *Runner) Running() bool {
	return r.running.Load()
}

// Last gibt den Report des letzten abgeschlossenen Laufs zurück.
func (r *Runner) Last() (services.RunReport, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.last == nil {
		return services.RunReport{}, false
	}
	return *r.last, true
}
