package resilience

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fastRetryConfig(attempts int) RetryConfig {
	return RetryConfig{
		MaxAttempts:    attempts,
		InitialBackoff: time.Millisecond,
		MaxBackoff:     5 * time.Millisecond,
		Multiplier:     2.0,
	}
}

func TestDoValRetriesTransientThenSucceeds(t *testing.T) {
	t.Parallel()

	calls := 0
	got, err := DoVal(context.Background(), fastRetryConfig(3), func(context.Context) (string, error) {
		calls++
		if calls < 3 {
			return "", NewTransientError(errors.New("connection dropped"), 503)
		}
		return "ok", nil
	})
	require.NoError(t, err)
	assert.Equal(t, "ok", got)
	assert.Equal(t, 3, calls)
}

func TestDoValStopsOnPermanentError(t *testing.T) {
	t.Parallel()

	permanent := errors.New("bad request")
	calls := 0
	_, err := DoVal(context.Background(), fastRetryConfig(3), func(context.Context) (int, error) {
		calls++
		return 0, permanent
	})
	require.ErrorIs(t, err, permanent)
	assert.Equal(t, 1, calls)
}

func TestDoValExhaustsAttempts(t *testing.T) {
	t.Parallel()

	transient := NewTransientError(errors.New("still down"), 500)
	calls := 0
	_, err := DoVal(context.Background(), fastRetryConfig(3), func(context.Context) (int, error) {
		calls++
		return 0, transient
	})
	require.ErrorIs(t, err, transient)
	assert.Equal(t, 3, calls)
}

type retryAfterError struct {
	after time.Duration
}

func (e *retryAfterError) Error() string   { return "slow down" }
func (e *retryAfterError) Retryable() bool { return true }

func TestDoValHonorsSuggestedDelay(t *testing.T) {
	t.Parallel()

	cfg := fastRetryConfig(2)
	// An absurd computed backoff that the suggested delay must override.
	cfg.InitialBackoff = time.Hour
	cfg.SuggestedDelay = func(err error) time.Duration {
		var ra *retryAfterError
		if errors.As(err, &ra) {
			return ra.after
		}
		return 0
	}

	calls := 0
	start := time.Now()
	got, err := DoVal(context.Background(), cfg, func(context.Context) (string, error) {
		calls++
		if calls == 1 {
			return "", &retryAfterError{after: time.Millisecond}
		}
		return "ok", nil
	})
	require.NoError(t, err)
	assert.Equal(t, "ok", got)
	assert.Equal(t, 2, calls)
	assert.Less(t, time.Since(start), time.Minute)
}

func TestDoValOnRetryCallback(t *testing.T) {
	t.Parallel()

	var attempts []int
	cfg := fastRetryConfig(3)
	cfg.OnRetry = func(attempt int, err error) {
		attempts = append(attempts, attempt)
	}

	calls := 0
	_, err := DoVal(context.Background(), cfg, func(context.Context) (int, error) {
		calls++
		return 0, NewTransientError(errors.New("flaky"), 502)
	})
	require.Error(t, err)
	assert.Equal(t, []int{1, 2}, attempts)
}

func TestDoValStopsOnContextCancel(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	transient := NewTransientError(errors.New("down"), 500)

	calls := 0
	_, err := DoVal(ctx, fastRetryConfig(5), func(context.Context) (int, error) {
		calls++
		cancel()
		return 0, transient
	})
	require.ErrorIs(t, err, transient)
	assert.Equal(t, 1, calls)
}

func TestDoValDefaultsApplied(t *testing.T) {
	t.Parallel()

	// Zero config still makes the default two attempts.
	transient := NewTransientError(errors.New("down"), 500)
	calls := 0
	_, err := DoVal(context.Background(), RetryConfig{InitialBackoff: time.Millisecond}, func(context.Context) (int, error) {
		calls++
		return 0, transient
	})
	require.Error(t, err)
	assert.Equal(t, 2, calls)
}
