package retry

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// recordingSleep captures the backoff schedule without waiting.
func recordingSleep(delays *[]time.Duration) func(context.Context, time.Duration) bool {
	return func(ctx context.Context, d time.Duration) bool {
		*delays = append(*delays, d)
		return true
	}
}

func TestDoSucceedsFirstAttempt(t *testing.T) {
	var delays []time.Duration
	c := NewController(Config{Sleep: recordingSleep(&delays)}, discardLogger())

	calls := 0
	state, err := c.Do(context.Background(), "op", func(ctx context.Context) error {
		calls++
		return nil
	}, func(error) Decision { t.Fatal("decide called on success"); return DecisionRaise })

	if state != Succeeded || err != nil {
		t.Fatalf("Do() = (%v, %v), want (Succeeded, nil)", state, err)
	}
	if calls != 1 {
		t.Errorf("attempts = %d, want 1", calls)
	}
	if len(delays) != 0 {
		t.Errorf("slept %v, want no sleeps", delays)
	}
}

func TestDoRetrySchedule(t *testing.T) {
	var delays []time.Duration
	c := NewController(Config{Sleep: recordingSleep(&delays)}, discardLogger())

	calls := 0
	state, err := c.Do(context.Background(), "op", func(ctx context.Context) error {
		calls++
		if calls < 3 {
			return errors.New("transient")
		}
		return nil
	}, func(error) Decision { return DecisionRetry })

	if state != Succeeded || err != nil {
		t.Fatalf("Do() = (%v, %v), want (Succeeded, nil)", state, err)
	}
	if calls != 3 {
		t.Errorf("attempts = %d, want 3", calls)
	}
	want := []time.Duration{2 * time.Second, 4 * time.Second}
	if len(delays) != 2 || delays[0] != want[0] || delays[1] != want[1] {
		t.Errorf("delays = %v, want %v", delays, want)
	}
}

func TestDoExhaustion(t *testing.T) {
	var delays []time.Duration
	c := NewController(Config{Sleep: recordingSleep(&delays)}, discardLogger())

	failure := errors.New("still down")
	calls := 0
	state, err := c.Do(context.Background(), "op", func(ctx context.Context) error {
		calls++
		return failure
	}, func(error) Decision { return DecisionRetry })

	if state != FailedExhausted {
		t.Errorf("state = %v, want FailedExhausted", state)
	}
	if !errors.Is(err, failure) {
		t.Errorf("err = %v, want the last attempt error", err)
	}
	if calls != 3 {
		t.Errorf("attempts = %d, want 3", calls)
	}
	// Only two sleeps: there is no backoff after the final attempt.
	if len(delays) != 2 {
		t.Errorf("slept %d times, want 2", len(delays))
	}
}

func TestDoStopIsImmediate(t *testing.T) {
	var delays []time.Duration
	c := NewController(Config{Sleep: recordingSleep(&delays)}, discardLogger())

	failure := errors.New("quota")
	calls := 0
	state, err := c.Do(context.Background(), "op", func(ctx context.Context) error {
		calls++
		return failure
	}, func(error) Decision { return DecisionStop })

	if state != FailedClassified {
		t.Errorf("state = %v, want FailedClassified", state)
	}
	if !errors.Is(err, failure) {
		t.Errorf("err = %v, want attempt error", err)
	}
	if calls != 1 {
		t.Errorf("attempts = %d, want 1", calls)
	}
	if len(delays) != 0 {
		t.Errorf("slept %v, want no sleeps", delays)
	}
}

func TestDoRaiseIsImmediate(t *testing.T) {
	var delays []time.Duration
	c := NewController(Config{Sleep: recordingSleep(&delays)}, discardLogger())

	calls := 0
	state, _ := c.Do(context.Background(), "op", func(ctx context.Context) error {
		calls++
		return errors.New("unknown")
	}, func(error) Decision { return DecisionRaise })

	if state != FailedExhausted {
		t.Errorf("state = %v, want FailedExhausted", state)
	}
	if calls != 1 {
		t.Errorf("attempts = %d, want 1", calls)
	}
}

func TestDoCancelledDuringBackoff(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	c := NewController(Config{
		Sleep: func(ctx context.Context, d time.Duration) bool {
			cancel()
			return false
		},
	}, discardLogger())

	state, err := c.Do(ctx, "op", func(ctx context.Context) error {
		return errors.New("transient")
	}, func(error) Decision { return DecisionRetry })

	if state != FailedExhausted {
		t.Errorf("state = %v, want FailedExhausted", state)
	}
	if !errors.Is(err, context.Canceled) {
		t.Errorf("err = %v, want context.Canceled", err)
	}
}

func TestDoSleepAbortWithLiveContext(t *testing.T) {
	// A Sleep that gives up without the context being cancelled must
	// still yield a non-nil error: callers treat (FailedExhausted, nil)
	// as impossible.
	c := NewController(Config{
		Sleep: func(ctx context.Context, d time.Duration) bool { return false },
	}, discardLogger())

	state, err := c.Do(context.Background(), "op", func(ctx context.Context) error {
		return errors.New("transient")
	}, func(error) Decision { return DecisionRetry })

	if state != FailedExhausted {
		t.Errorf("state = %v, want FailedExhausted", state)
	}
	if err == nil {
		t.Fatal("err = nil, want interrupted-backoff error")
	}
}

func TestNewControllerDefaults(t *testing.T) {
	c := NewController(Config{}, nil)
	if c.cfg.MaxAttempts != 3 {
		t.Errorf("MaxAttempts = %d, want 3", c.cfg.MaxAttempts)
	}
	if c.cfg.InitialDelay != 2*time.Second {
		t.Errorf("InitialDelay = %v, want 2s", c.cfg.InitialDelay)
	}
	if c.cfg.Multiplier != 2.0 {
		t.Errorf("Multiplier = %v, want 2.0", c.cfg.Multiplier)
	}
	if c.cfg.Sleep == nil {
		t.Error("Sleep not defaulted")
	}
}

func TestStateString(t *testing.T) {
	tests := []struct {
		state State
		want  string
	}{
		{Idle, "idle"},
		{Attempting, "attempting"},
		{Backoff, "backoff"},
		{Succeeded, "succeeded"},
		{FailedClassified, "failed_classified"},
		{FailedExhausted, "failed_exhausted"},
		{State(99), "unknown"},
	}
	for _, tt := range tests {
		if got := tt.state.String(); got != tt.want {
			t.Errorf("State(%d).String() = %q, want %q", tt.state, got, tt.want)
		}
	}
}
