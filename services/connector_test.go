package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"go.uber.org/zap/zaptest"
	"gorm.io/gorm"
)

func TestBackoff(t *testing.T) {
	base := 5 * time.Second
	cases := []struct {
		attempt int
		want    time.Duration
	}{
		{0, 5 * time.Second},
		{1, 5 * time.Second},
		{2, 10 * time.Second},
		{3, 20 * time.Second},
	}
	for _, tc := range cases {
		if got := Backoff(base, tc.attempt); got != tc.want {
			t.Fatalf("Backoff(%s, %d) = %s, want %s", base, tc.attempt, got, tc.want)
		}
	}
}

func TestConnectExhaustsAfterThreeAttempts(t *testing.T) {
	attempts := 0
	var delays []time.Duration
	c := &Connector{
		Open: func(context.Context) (*gorm.DB, error) {
			attempts++
			return nil, errors.New("connection refused")
		},
		MaxAttempts: 3,
		BaseDelay:   5 * time.Second,
		Sleep: func(_ context.Context, d time.Duration) error {
			delays = append(delays, d)
			return nil
		},
		Logger: zaptest.NewLogger(t),
	}

	session, err := c.Connect(context.Background())
	if session != nil {
		t.Fatal("expected nil session after exhaustion")
	}
	if !errors.Is(err, ErrConnectExhausted) {
		t.Fatalf("expected ErrConnectExhausted, got %v", err)
	}
	if attempts != 3 {
		t.Fatalf("expected 3 attempts, got %d", attempts)
	}
	if len(delays) != 2 || delays[0] != 5*time.Second || delays[1] != 10*time.Second {
		t.Fatalf("unexpected backoff delays %v", delays)
	}
	for i := 1; i < len(delays); i++ {
		if delays[i] <= delays[i-1] {
			t.Fatalf("delays not strictly increasing: %v", delays)
		}
	}
}

func TestConnectRecoversOnSecondAttempt(t *testing.T) {
	cfg := testConfig(t)
	sqlite := newTestConnector(t, cfg)

	attempts := 0
	c := &Connector{
		Open: func(ctx context.Context) (*gorm.DB, error) {
			attempts++
			if attempts == 1 {
				return nil, errors.New("timeout")
			}
			return sqlite.Open(ctx)
		},
		MaxAttempts: 3,
		BaseDelay:   time.Millisecond,
		Sleep:       func(context.Context, time.Duration) error { return nil },
		Logger:      zaptest.NewLogger(t),
	}
	session, err := c.Connect(context.Background())
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	defer session.Close()
	if attempts != 2 {
		t.Fatalf("expected 2 attempts, got %d", attempts)
	}
	if err := session.Ping(context.Background()); err != nil {
		t.Fatalf("ping: %v", err)
	}
}

func TestConnectStopsWhenContextDone(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	attempts := 0
	c := &Connector{
		Open: func(context.Context) (*gorm.DB, error) {
			attempts++
			cancel()
			return nil, errors.New("refused")
		},
		MaxAttempts: 3,
		BaseDelay:   time.Hour,
		Sleep:       sleepContext,
		Logger:      zaptest.NewLogger(t),
	}
	if _, err := c.Connect(ctx); !errors.Is(err, ErrConnectExhausted) {
		t.Fatalf("expected ErrConnectExhausted, got %v", err)
	}
	if attempts != 1 {
		t.Fatalf("expected no retry after cancellation, got %d attempts", attempts)
	}
}

func TestConnStateString(t *testing.T) {
	if stateBackingOff.String() != "backing_off" || connState(99).String() != "unknown" {
		t.Fatal("unexpected state names")
	}
}
