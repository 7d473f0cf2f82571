package embedder

import (
	"context"
	"errors"
	"time"
)

// RetryConfig configures exponential backoff for provider calls
type RetryConfig struct {
	MaxRetries int           // attempts, including the first
	BaseDelay  time.Duration // wait after the first failure
	MaxDelay   time.Duration
	Multiplier float64
}

// DefaultRetryConfig returns the API retry policy
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxRetries: MaxRetries,
		BaseDelay:  time.Duration(InitialBackoffMs) * time.Millisecond,
		MaxDelay:   time.Duration(MaxBackoffMs) * time.Millisecond,
		Multiplier: BackoffMultiplier,
	}
}

// next grows a delay by the multiplier, capped at MaxDelay
func (c RetryConfig) next(d time.Duration) time.Duration {
	d = time.Duration(float64(d) * c.Multiplier)
	return min(d, c.MaxDelay)
}

// permanentError marks a failure that retrying cannot fix
type permanentError struct{ err error }

func (e *permanentError) Error() string { return e.err.Error() }
func (e *permanentError) Unwrap() error { return e.err }

func permanent(err error) error { return &permanentError{err: err} }

// retryWithBackoff calls fn until it succeeds or returns a permanent error.
// It also stops when ctx ends or the attempts run out, returning the last error.
func retryWithBackoff[T any](ctx context.Context, config RetryConfig, fn func() (T, error)) (T, error) {
	var zero T
	delay := config.BaseDelay
	timer := time.NewTimer(0)
	<-timer.C
	defer timer.Stop()

	var err error
	for attempt := 1; ; attempt++ {
		var result T
		if result, err = fn(); err == nil {
			return result, nil
		}

		var perm *permanentError
		switch {
		case errors.As(err, &perm):
			return zero, perm.err
		case ctx.Err() != nil:
			return zero, ctx.Err()
		case attempt >= config.MaxRetries:
			return zero, err
		}

		timer.Reset(delay)
		select {
		case <-ctx.Done():
			return zero, ctx.Err()
		case <-timer.C:
		}
		delay = config.next(delay)
	}
}
