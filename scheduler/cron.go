package scheduler

import (
	"context"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// cronLogger leitet die Meldungen von robfig/cron an zap weiter.
type cronLogger struct {
	sugar *zap.SugaredLogger
}

// NewCronLogger erstellt einen cron.Logger auf Basis von zap.
func NewCronLogger(logger *zap.Logger) cron.Logger {
	return cronLogger{sugar: logger.With(zap.String("component", "cron")).Sugar()}
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.sugar.Debugw(msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.sugar.Errorw(msg, append(keysAndValues, "error", err)...)
}

// NewCron plant runner nach schedule (mit Sekundenfeld). Panics im Job werden
// abgefangen, noch laufende Jobs werden übersprungen.
func NewCron(ctx context.Context, schedule string, runner *Runner, logger *zap.Logger) (*cron.Cron, error) {
	cl := NewCronLogger(logger)
	c := cron.New(
		cron.WithSeconds(),
		cron.WithLogger(cl),
		cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)),
	)
	if _, err := c.AddFunc(schedule, func() {
		runner.TryRun(ctx, "cron")
	}); err != nil {
		return nil, err
	}
	return c, nil
}
