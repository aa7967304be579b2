package resilience

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/voxpipe/stt-client/internal/transcription"
)

// BreakerState represents the current state of the circuit breaker.
type BreakerState int

const (
	StateClosed BreakerState = iota
	StateOpen
	StateHalfOpen
)

// String returns the conventional upper-case state name.
func (s BreakerState) String() string {
	switch s {
	case StateOpen:
		return "OPEN"
	case StateHalfOpen:
		return "HALF_OPEN"
	default:
		return "CLOSED"
	}
}

// BreakerConfig contains circuit breaker tuning parameters.
type BreakerConfig struct {
	FailureThreshold int           // consecutive failures before opening
	SuccessThreshold int           // half-open successes before closing
	Cooldown         time.Duration // open duration before the next trial call
}

// DefaultBreakerConfig returns the standard production tuning.
func DefaultBreakerConfig() BreakerConfig {
	return BreakerConfig{
		FailureThreshold: 5,
		SuccessThreshold: 2,
		Cooldown:         60 * time.Second,
	}
}

// BreakerStats is a point-in-time snapshot of breaker bookkeeping.
type BreakerStats struct {
	State           BreakerState `json:"-"`
	StateName       string       `json:"state"`
	FailureCount    int          `json:"failure_count"`
	SuccessCount    int          `json:"success_count"`
	NextAttemptTime time.Time    `json:"next_attempt_time"`
}

// CircuitBreaker gates calls to a single provider based on its recent health.
// One instance exists per provider for the process lifetime; all state
// mutations are serialized behind a mutex so concurrent callers never observe
// a torn transition.
type CircuitBreaker struct {
	config BreakerConfig
	logger *slog.Logger

	// transitions, when a hook is set, carries every state change in order
	// to a dedicated dispatcher goroutine that lives as long as the process.
	transitions chan breakerTransition

	state       BreakerState
	failures    int
	successes   int
	nextAttempt time.Time
	now         func() time.Time

	mu sync.Mutex
}

// NewCircuitBreaker creates a closed breaker. Zero-value config fields fall
// back to the defaults.
func NewCircuitBreaker(config BreakerConfig, logger *slog.Logger) *CircuitBreaker {
	defaults := DefaultBreakerConfig()
	if config.FailureThreshold <= 0 {
		config.FailureThreshold = defaults.FailureThreshold
	}
	if config.SuccessThreshold <= 0 {
		config.SuccessThreshold = defaults.SuccessThreshold
	}
	if config.Cooldown <= 0 {
		config.Cooldown = defaults.Cooldown
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &CircuitBreaker{
		config: config,
		logger: logger,
		state:  StateClosed,
		now:    time.Now,
	}
}

type breakerTransition struct {
	from, to BreakerState
}

// SetStateChangeHook registers a transition observer. Call before the breaker
// is shared across goroutines. Notifications are delivered one at a time in
// transition order, so observers such as state gauges never end up on a stale
// value; the hook must not block for long.
func (cb *CircuitBreaker) SetStateChangeHook(hook func(from, to BreakerState)) {
	cb.transitions = make(chan breakerTransition, 16)
	go func() {
		for tr := range cb.transitions {
			hook(tr.from, tr.to)
		}
	}()
}

// Execute runs operation unless the circuit is open. On success or failure it
// updates breaker state and returns the operation's original error untouched.
// Cancellations and input-validation rejections do not count as provider
// failures.
func (cb *CircuitBreaker) Execute(ctx context.Context, operation func(context.Context) error) error {
	if err := cb.allow(); err != nil {
		return err
	}

	err := operation(ctx)
	if err != nil {
		if countsAsFailure(err) {
			cb.recordFailure()
		}
		return err
	}

	cb.recordSuccess()
	return nil
}

// countsAsFailure reports whether err says anything about provider health.
// Cancellations, rejections of the caller's own input, and empty-content
// results must not trip the circuit: the provider was never the problem.
func countsAsFailure(err error) bool {
	if errors.Is(err, context.Canceled) || transcription.CodeOf(err) == transcription.CodeCancelled {
		return false
	}
	if te, ok := transcription.AsError(err); ok && te.Category == transcription.CategoryValidation {
		return false
	}
	return true
}

// allow decides whether a call may proceed, performing the OPEN -> HALF_OPEN
// transition when the cooldown has elapsed.
func (cb *CircuitBreaker) allow() error {
	cb.mu.Lock()

	if cb.state == StateOpen {
		if cb.now().Before(cb.nextAttempt) {
			wait := cb.nextAttempt.Sub(cb.now()).Round(time.Second)
			cb.mu.Unlock()
			return transcription.NewProviderUnavailable(
				fmt.Sprintf("circuit breaker is open, next attempt in %s", wait), nil)
		}
		cb.transition(StateHalfOpen)
	}

	cb.mu.Unlock()
	return nil
}

func (cb *CircuitBreaker) recordFailure() {
	cb.mu.Lock()

	switch cb.state {
	case StateClosed:
		cb.failures++
		if cb.failures >= cb.config.FailureThreshold {
			cb.nextAttempt = cb.now().Add(cb.config.Cooldown)
			cb.transition(StateOpen)
		}
	case StateHalfOpen:
		// A single trial failure reopens with a fresh cooldown.
		cb.nextAttempt = cb.now().Add(cb.config.Cooldown)
		cb.transition(StateOpen)
	}

	cb.mu.Unlock()
}

func (cb *CircuitBreaker) recordSuccess() {
	cb.mu.Lock()

	switch cb.state {
	case StateClosed:
		cb.failures = 0
	case StateHalfOpen:
		cb.successes++
		if cb.successes >= cb.config.SuccessThreshold {
			cb.transition(StateClosed)
		}
	}

	cb.mu.Unlock()
}

// transition must be called with the lock held. It resets the counters that
// are only meaningful in the new state and queues the change for the hook
// dispatcher, so observers see transitions in the order they happened.
func (cb *CircuitBreaker) transition(to BreakerState) {
	from := cb.state
	if from == to {
		return
	}
	cb.state = to

	switch to {
	case StateClosed:
		cb.failures = 0
		cb.successes = 0
		cb.nextAttempt = time.Time{}
	case StateHalfOpen:
		cb.successes = 0
	}

	cb.logger.Warn("Circuit breaker state changed",
		slog.String("from", from.String()),
		slog.String("to", to.String()),
		slog.Int("failure_count", cb.failures),
	)

	if cb.transitions != nil {
		cb.transitions <- breakerTransition{from: from, to: to}
	}
}

// Reset forces the breaker back to CLOSED with zero counters. Operator escape
// hatch; safe to call at any time.
func (cb *CircuitBreaker) Reset() {
	cb.mu.Lock()
	cb.transition(StateClosed)
	cb.failures = 0
	cb.successes = 0
	cb.nextAttempt = time.Time{}
	cb.mu.Unlock()
}

// State returns the current breaker state.
func (cb *CircuitBreaker) State() BreakerState {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.state
}

// GetStats returns a snapshot of the breaker's bookkeeping.
func (cb *CircuitBreaker) GetStats() BreakerStats {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	return BreakerStats{
		State:           cb.state,
		StateName:       cb.state.String(),
		FailureCount:    cb.failures,
		SuccessCount:    cb.successes,
		NextAttemptTime: cb.nextAttempt,
	}
}
