package tray

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/shelepuginivan/statusbar/internal/metrics"
)

const (
	DefaultMaxAttempts = 5
	DefaultBaseDelay   = 100 * time.Millisecond
)

// Backoff retries a connection with exponentially growing delays. The tray
// host may not be on the bus yet right after a session restart.
type Backoff struct {
	MaxAttempts int
	BaseDelay   time.Duration
	Logger      zerolog.Logger

	// Sleep waits for d or until ctx is done. Defaults to a timer.
	Sleep func(ctx context.Context, d time.Duration) error
}

// Delay returns the wait after the given number of failed attempts:
// BaseDelay * 2^(failures-1).
func (b Backoff) Delay(failures int) time.Duration {
	if failures < 1 {
		return 0
	}

	return b.BaseDelay << (failures - 1)
}

// Retry calls connect until it succeeds or MaxAttempts attempts have failed.
// The error of the last attempt is returned wrapped.
func Retry[T any](ctx context.Context, b Backoff, connect func(context.Context) (T, error)) (T, error) {
	var zero T

	if b.MaxAttempts < 1 {
		b.MaxAttempts = DefaultMaxAttempts
	}

	if b.BaseDelay <= 0 {
		b.BaseDelay = DefaultBaseDelay
	}

	if b.Sleep == nil {
		b.Sleep = sleep
	}

	for attempt := 1; ; attempt++ {
		conn, err := connect(ctx)
		if err == nil {
			metrics.TrayConnectAttempts.WithLabelValues("success").Inc()
			return conn, nil
		}

		metrics.TrayConnectAttempts.WithLabelValues("failure").Inc()

		if attempt >= b.MaxAttempts {
			return zero, fmt.Errorf("tray: connect failed after %d attempts: %w", attempt, err)
		}

		delay := b.Delay(attempt)
		b.Logger.Warn().
			Err(err).
			Int("attempt", attempt).
			Int("max_attempts", b.MaxAttempts).
			Dur("delay", delay).
			Msg("Tray client init failed, retrying")

		if err := b.Sleep(ctx, delay); err != nil {
			return zero, fmt.Errorf("tray: connect: %w", err)
		}
	}
}

func sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
