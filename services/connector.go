package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"weightloss-ingest/config"
	"weightloss-ingest/database"
)

// ErrConnectExhausted signalisiert, dass alle Verbindungsversuche fehlgeschlagen sind.
var ErrConnectExhausted = errors.New("database connect retries exhausted")

// OpenFunc öffnet eine Datenbankverbindung und prüft sie.
type OpenFunc func(ctx context.Context) (*gorm.DB, error)

// Session ist eine exklusiv genutzte Datenbankverbindung für genau einen Persistenzlauf.
type Session struct {
	DB *gorm.DB
}

// Ping führt eine triviale Abfrage als Lebendprüfung aus.
func (s *Session) Ping(ctx context.Context) error {
	return s.DB.WithContext(ctx).Exec("SELECT 1").Error
}

// Close gibt den Verbindungspool der Session frei.
func (s *Session) Close() error {
	sqlDB, err := s.DB.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

type connState int

const (
	stateIdle connState = iota
	stateConnecting
	stateConnected
	stateBackingOff
	stateExhausted
)

func (s connState) String() string {
	switch s {
	case stateIdle:
		return "idle"
	case stateConnecting:
		return "connecting"
	case stateConnected:
		return "connected"
	case stateBackingOff:
		return "backing_off"
	case stateExhausted:
		return "exhausted"
	}
	return "unknown"
}

// Backoff liefert die Wartezeit nach dem attempt-ten Fehlversuch: base * 2^(attempt-1).
func Backoff(base time.Duration, attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	return base << (attempt - 1)
}

// Connector baut Sessions mit begrenzten Wiederholungen und exponentiellem Backoff auf.
type Connector struct {
	Open        OpenFunc
	MaxAttempts int
	BaseDelay   time.Duration
	Sleep       func(ctx context.Context, d time.Duration) error
	Logger      *zap.Logger
}

// NewConnector erstellt einen Connector für die konfigurierte Datenbank.
func NewConnector(cfg *config.Config, logger *zap.Logger) *Connector {
	return &Connector{
		Open:        OpenGorm(cfg),
		MaxAttempts: cfg.ConnectTries,
		BaseDelay:   cfg.ConnectBackoff,
		Sleep:       sleepContext,
		Logger:      logger,
	}
}

// Connect durchläuft Idle -> Connecting -> {Connected | BackingOff -> Connecting | Exhausted}.
// Bei Erschöpfung wird (nil, ErrConnectExhausted) zurückgegeben.
func (c *Connector) Connect(ctx context.Context) (*Session, error) {
	var (
		state   = stateIdle
		attempt int
		session *Session
		lastErr error
	)
	for state != stateConnected && state != stateExhausted {
		switch state {
		case stateIdle:
			state = stateConnecting
		case stateConnecting:
			attempt++
			db, err := c.Open(ctx)
			if err == nil {
				connectAttemptsCounter.WithLabelValues("success").Inc()
				session = &Session{DB: db}
				state = stateConnected
				continue
			}
			connectAttemptsCounter.WithLabelValues("failure").Inc()
			lastErr = err
			c.Logger.Warn("Database connection attempt failed",
				zap.Int("attempt", attempt), zap.Int("max_attempts", c.MaxAttempts), zap.Error(err))
			if attempt >= c.MaxAttempts {
				state = stateExhausted
			} else {
				state = stateBackingOff
			}
		case stateBackingOff:
			delay := Backoff(c.BaseDelay, attempt)
			c.Logger.Debug("Backing off before next connection attempt", zap.Duration("delay", delay))
			if err := c.Sleep(ctx, delay); err != nil {
				lastErr = err
				state = stateExhausted
				continue
			}
			state = stateConnecting
		}
	}
	if state == stateExhausted {
		c.Logger.Error("Database connection retries exhausted", zap.Int("attempts", attempt), zap.Error(lastErr))
		return nil, fmt.Errorf("%w after %d attempts: %v", ErrConnectExhausted, attempt, lastErr)
	}
	c.Logger.Debug("Connected to database", zap.Int("attempt", attempt))
	return session, nil
}

// OpenGorm öffnet über den konfigurierten Dialekt und pingt mit DB_CONNECT_TIMEOUT.
func OpenGorm(cfg *config.Config) OpenFunc {
	return func(ctx context.Context) (*gorm.DB, error) {
		dialector, err := database.Dialector(cfg)
		if err != nil {
			return nil, err
		}
		db, err := gorm.Open(dialector, database.GormConfig())
		if err != nil {
			return nil, fmt.Errorf("open database: %w", err)
		}
		sqlDB, err := db.DB()
		if err != nil {
			return nil, err
		}
		sqlDB.SetMaxOpenConns(2)
		pingCtx, cancel := context.WithTimeout(ctx, cfg.ConnectTimeout)
		defer cancel()
		if err := sqlDB.PingContext(pingCtx); err != nil {
			_ = sqlDB.Close()
			return nil, fmt.Errorf("ping database: %w", err)
		}
		return db, nil
	}
}

func sleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
