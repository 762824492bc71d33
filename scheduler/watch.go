package scheduler

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// Watcher beobachtet ein lokales Eingangsverzeichnis und löst nach einer
// Ruhephase ohne weitere Änderungen Trigger aus.
type Watcher struct {
	Dir      string
	Debounce time.Duration
	Trigger  func()
	Logger   *zap.Logger
}

// NewWatcher erstellt einen Watcher mit 300ms Ruhephase.
func NewWatcher(dir string, trigger func(), logger *zap.Logger) *Watcher {
	return &Watcher{
		Dir:      dir,
		Debounce: 300 * time.Millisecond,
		Trigger:  trigger,
		Logger:   logger.With(zap.String("component", "watcher"), zap.String("dir", dir)),
	}
}

// Run blockiert, bis ctx beendet ist.
func (w *Watcher) Run(ctx context.Context) error {
	if err := os.MkdirAll(w.Dir, 0o755); err != nil {
		return err
	}
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer fw.Close()
	if err := fw.Add(w.Dir); err != nil {
		return err
	}
	w.Logger.Info("Watching input directory")

	tick := w.Debounce / 2
	if tick <= 0 {
		tick = 50 * time.Millisecond
	}
	ticker := time.NewTicker(tick)
	defer ticker.Stop()

	// letzte Änderung; null = nichts ausstehend
	var pending time.Time
	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-fw.Events:
			if !ok {
				return nil
			}
			if !relevant(ev) {
				continue
			}
			w.Logger.Debug("Input changed", zap.String("name", ev.Name), zap.Stringer("op", ev.Op))
			pending = time.Now()
		case <-ticker.C:
			if !pending.IsZero() && time.Since(pending) > w.Debounce {
				pending = time.Time{}
				w.Trigger()
			}
		case err, ok := <-fw.Errors:
			if !ok {
				return nil
			}
			w.Logger.Warn("Watch error", zap.Error(err))
		}
	}
}

// relevant filtert temporäre Dateien (z.B. aus atomaren Schreibvorgängen) heraus.
func relevant(ev fsnotify.Event) bool {
	if strings.HasPrefix(filepath.Base(ev.Name), ".") {
		return false
	}
	return ev.Has(fsnotify.Create) || ev.Has(fsnotify.Write) || ev.Has(fsnotify.Rename)
}
