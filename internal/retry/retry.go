// Package retry provides the attempt/backoff controller that wraps one
// full agent turn. It is an explicit state machine — Idle → Attempting →
// {Succeeded | Backoff → Attempting | FailedClassified | FailedExhausted}
// — so the transitions and caps are unit-testable without real network
// timing.
package retry

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

// State is the controller's position in the attempt state machine.
type State int

const (
	// Idle is the initial state before the first attempt.
	Idle State = iota

	// Attempting means an attempt is in flight.
	Attempting

	// Backoff means a transient failure occurred and the controller is
	// waiting before the next attempt.
	Backoff

	// Succeeded is terminal: an attempt completed without error.
	Succeeded

	// FailedClassified is terminal: the failure was classified as
	// non-retryable and reported immediately, even with attempts left.
	FailedClassified

	// FailedExhausted is terminal: the failure was unclassified, or
	// transient with no attempts remaining. The error is re-raised to
	// the caller rather than silently swallowed.
	FailedExhausted
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Attempting:
		return "attempting"
	case Backoff:
		return "backoff"
	case Succeeded:
		return "succeeded"
	case FailedClassified:
		return "failed_classified"
	case FailedExhausted:
		return "failed_exhausted"
	default:
		return "unknown"
	}
}

// Decision tells the controller what to do with a failed attempt.
type Decision int

const (
	// DecisionRetry marks the failure transient: back off and try again
	// if attempts remain.
	DecisionRetry Decision = iota

	// DecisionStop marks the failure terminal but classified: stop
	// immediately, no further attempts.
	DecisionStop

	// DecisionRaise marks the failure unclassified: stop and re-raise.
	DecisionRaise
)

// Config controls the backoff schedule.
type Config struct {
	// MaxAttempts is the total number of attempts, initial included
	// (default: 3).
	MaxAttempts int

	// InitialDelay is the wait before the first retry (default: 2s).
	InitialDelay time.Duration

	// Multiplier scales the delay after each retry (default: 2.0).
	Multiplier float64

	// Sleep waits for the given duration or until ctx is cancelled,
	// returning false when cancelled. Tests inject a recording stub so
	// the schedule is observable without real timers. Nil means a
	// timer-backed sleep.
	Sleep func(ctx context.Context, d time.Duration) bool
}

// DefaultConfig returns the turn-level retry schedule: 3 total attempts
// with delays of 2s then 4s between them.
func DefaultConfig() Config {
	return Config{
		MaxAttempts:  3,
		InitialDelay: 2 * time.Second,
		Multiplier:   2.0,
	}
}

// Controller runs attempts under the configured schedule.
type Controller struct {
	cfg    Config
	logger *slog.Logger
}

// NewController creates a controller. Zero-value config fields are
// replaced with defaults.
func NewController(cfg Config, logger *slog.Logger) *Controller {
	defaults := DefaultConfig()
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = defaults.MaxAttempts
	}
	if cfg.InitialDelay <= 0 {
		cfg.InitialDelay = defaults.InitialDelay
	}
	if cfg.Multiplier <= 0 {
		cfg.Multiplier = defaults.Multiplier
	}
	if cfg.Sleep == nil {
		cfg.Sleep = sleepCtx
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Controller{cfg: cfg, logger: logger}
}

// Do runs attempt until it succeeds, a terminal decision is reached, or
// attempts are exhausted. decide maps each failure to a Decision; it is
// consulted once per failed attempt. The returned State is one of the
// terminal states; the error is nil only for Succeeded.
func (c *Controller) Do(ctx context.Context, op string, attempt func(ctx context.Context) error, decide func(error) Decision) (State, error) {
	delay := c.cfg.InitialDelay

	for n := 0; n < c.cfg.MaxAttempts; n++ {
		err := attempt(ctx)
		if err == nil {
			if n > 0 {
				c.logger.Info("attempt succeeded after retry",
					"op", op,
					"attempts", n+1,
				)
			}
			return Succeeded, nil
		}

		switch decide(err) {
		case DecisionStop:
			c.logger.Debug("terminal failure, not retrying",
				"op", op,
				"attempt", n+1,
				"error", err,
			)
			return FailedClassified, err

		case DecisionRaise:
			return FailedExhausted, err

		case DecisionRetry:
			if n == c.cfg.MaxAttempts-1 {
				c.logger.Info("retries exhausted",
					"op", op,
					"attempts", n+1,
					"error", err,
				)
				return FailedExhausted, err
			}

			c.logger.Debug("transient failure, backing off",
				"op", op,
				"attempt", n+1,
				"max_attempts", c.cfg.MaxAttempts,
				"next_delay", delay.String(),
				"error", err,
			)

			// A false Sleep usually means ctx was cancelled, but the
			// error must be non-nil either way: every terminal state
			// except Succeeded carries one.
			if !c.cfg.Sleep(ctx, delay) {
				if cerr := ctx.Err(); cerr != nil {
					return FailedExhausted, cerr
				}
				return FailedExhausted, fmt.Errorf("retry: %s: backoff interrupted: %w", op, err)
			}

			delay = time.Duration(float64(delay) * c.cfg.Multiplier)
		}
	}

	// Unreachable: the loop always returns from its final iteration.
	return FailedExhausted, fmt.Errorf("retry: %s: no attempts ran", op)
}

// sleepCtx sleeps for d or until ctx is cancelled. Returns false if cancelled.
func sleepCtx(ctx context.Context, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
