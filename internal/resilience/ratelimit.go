package resilience

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/voxpipe/stt-client/internal/transcription"
)

// RateLimiterConfig contains request pacing parameters.
type RateLimiterConfig struct {
	RequestsPerWindow int           // granted slots per window
	Window            time.Duration // pacing window
	MaxQueue          int           // queued waiters before rejecting; 0 = unbounded
}

// DefaultRateLimiterConfig paces to the typical provider allowance.
func DefaultRateLimiterConfig() RateLimiterConfig {
	return RateLimiterConfig{
		RequestsPerWindow: 10,
		Window:            time.Minute,
	}
}

// waiter is one queued Acquire call. ready is closed when the slot is
// granted; cancelled is closed by the waiter when its context ends.
type waiter struct {
	ready     chan struct{}
	cancelled chan struct{}
}

// RateLimiter spaces outbound requests so that no two grants happen closer
// together than window/requestsPerWindow. Waiters are served strictly FIFO by
// a single pacing goroutine; capacity pressure delays callers, it never drops
// them, unless MaxQueue is configured, in which case queuing past the cap is
// reported as a rate-limit error.
type RateLimiter struct {
	minInterval time.Duration
	maxQueue    int

	mu        sync.Mutex
	queue     []*waiter
	lastGrant time.Time
	draining  bool
}

// NewRateLimiter validates config and builds an idle limiter.
func NewRateLimiter(config RateLimiterConfig) (*RateLimiter, error) {
	if config.RequestsPerWindow <= 0 {
		return nil, fmt.Errorf("requests per window must be positive, got %d", config.RequestsPerWindow)
	}
	if config.Window <= 0 {
		return nil, fmt.Errorf("window must be positive, got %s", config.Window)
	}
	if config.MaxQueue < 0 {
		return nil, fmt.Errorf("max queue cannot be negative, got %d", config.MaxQueue)
	}

	return &RateLimiter{
		minInterval: config.Window / time.Duration(config.RequestsPerWindow),
		maxQueue:    config.MaxQueue,
	}, nil
}

// MinInterval returns the enforced spacing between grants.
func (l *RateLimiter) MinInterval() time.Duration {
	return l.minInterval
}

// QueueDepth returns the number of callers currently waiting.
func (l *RateLimiter) QueueDepth() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.queue)
}

// Acquire blocks until the caller may issue a request, the context ends, or
// the queue cap rejects the caller. Concurrent callers are granted in arrival
// order, one per interval.
func (l *RateLimiter) Acquire(ctx context.Context) error {
	l.mu.Lock()

	if l.maxQueue > 0 && len(l.queue) >= l.maxQueue {
		depth := len(l.queue)
		l.mu.Unlock()
		return transcription.NewRateLimit(
			fmt.Sprintf("rate limiter queue is full (%d waiting)", depth), 0)
	}

	w := &waiter{
		ready:     make(chan struct{}),
		cancelled: make(chan struct{}),
	}
	l.queue = append(l.queue, w)
	if !l.draining {
		l.draining = true
		go l.drain()
	}
	l.mu.Unlock()

	select {
	case <-w.ready:
		return nil
	case <-ctx.Done():
		close(w.cancelled)
		return transcription.NewCancelled(ctx.Err())
	}
}

// drain releases queued waiters one at a time, waiting out the remainder of
// the interval since the last grant before each release. Cancelled waiters
// are skipped without consuming a slot.
func (l *RateLimiter) drain() {
	for {
		l.mu.Lock()
		if len(l.queue) == 0 {
			l.draining = false
			l.mu.Unlock()
			return
		}
		w := l.queue[0]
		l.queue = l.queue[1:]
		wait := l.minInterval - time.Since(l.lastGrant)
		l.mu.Unlock()

		if wait > 0 {
			timer := time.NewTimer(wait)
			select {
			case <-timer.C:
			case <-w.cancelled:
				timer.Stop()
				continue
			}
		}

		select {
		case <-w.cancelled:
			continue
		default:
		}

		l.mu.Lock()
		l.lastGrant = time.Now()
		l.mu.Unlock()
		close(w.ready)
	}
}
