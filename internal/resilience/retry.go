package resilience

import (
	"context"
	"errors"
	"math/rand"
	"time"

	"github.com/voxpipe/stt-client/internal/transcription"
)

// RetryConfig contains backoff tuning for the retry handler.
type RetryConfig struct {
	MaxRetries int           // additional attempts after the first
	BaseDelay  time.Duration // delay before the first retry
	MaxDelay   time.Duration // backoff ceiling
	MaxJitter  time.Duration // random addition per delay, [0, MaxJitter)

	// OnRetry, when set, is invoked before each backoff sleep with the
	// 0-indexed retry number and the error that triggered it.
	OnRetry func(attempt int, err error)
}

// DefaultRetryConfig returns the standard backoff tuning.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxRetries: 3,
		BaseDelay:  time.Second,
		MaxDelay:   30 * time.Second,
		MaxJitter:  time.Second,
	}
}

// RetryHandler wraps an operation with bounded retries using exponential
// backoff plus jitter. The jitter spreads concurrent callers so a shared
// outage does not produce a synchronized retry storm.
type RetryHandler struct {
	config RetryConfig
}

// NewRetryHandler builds a handler, filling zero config fields with defaults.
func NewRetryHandler(config RetryConfig) *RetryHandler {
	defaults := DefaultRetryConfig()
	if config.MaxRetries < 0 {
		config.MaxRetries = defaults.MaxRetries
	}
	if config.BaseDelay <= 0 {
		config.BaseDelay = defaults.BaseDelay
	}
	if config.MaxDelay <= 0 {
		config.MaxDelay = defaults.MaxDelay
	}
	if config.MaxJitter < 0 {
		config.MaxJitter = defaults.MaxJitter
	}
	return &RetryHandler{config: config}
}

// Execute runs operation up to MaxRetries+1 times. A failure the predicate
// rejects, or a cancellation, is returned immediately; once the budget is
// exhausted the last failure is wrapped in a MaxRetriesExceeded error.
func (r *RetryHandler) Execute(ctx context.Context, operation func(context.Context) error, isRetryable func(error) bool) error {
	var lastErr error

	for attempt := 0; attempt <= r.config.MaxRetries; attempt++ {
		if attempt > 0 {
			if r.config.OnRetry != nil {
				r.config.OnRetry(attempt-1, lastErr)
			}
			if err := r.sleep(ctx, r.delayFor(attempt-1)); err != nil {
				return transcription.NewCancelled(err)
			}
		}

		err := operation(ctx)
		if err == nil {
			return nil
		}
		if errors.Is(err, context.Canceled) || transcription.CodeOf(err) == transcription.CodeCancelled {
			return err
		}
		if !isRetryable(err) {
			return err
		}
		lastErr = err
	}

	return transcription.NewMaxRetriesExceeded(r.config.MaxRetries+1, lastErr)
}

// delayFor computes min(base * 2^n, max) plus jitter for 0-indexed retry n.
func (r *RetryHandler) delayFor(n int) time.Duration {
	delay := r.config.BaseDelay << uint(n)
	if delay > r.config.MaxDelay || delay <= 0 {
		delay = r.config.MaxDelay
	}
	if r.config.MaxJitter > 0 {
		delay += time.Duration(rand.Int63n(int64(r.config.MaxJitter)))
	}
	return delay
}

// sleep waits out d or returns the context error on cancellation.
func (r *RetryHandler) sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
