package resilience

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/voxpipe/stt-client/internal/transcription"
)

func TestRateLimiterConfigValidation(t *testing.T) {
	tests := []struct {
		name    string
		config  RateLimiterConfig
		wantErr bool
	}{
		{"valid", RateLimiterConfig{RequestsPerWindow: 10, Window: time.Minute}, false},
		{"zero requests", RateLimiterConfig{RequestsPerWindow: 0, Window: time.Minute}, true},
		{"zero window", RateLimiterConfig{RequestsPerWindow: 10, Window: 0}, true},
		{"negative queue", RateLimiterConfig{RequestsPerWindow: 10, Window: time.Minute, MaxQueue: -1}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewRateLimiter(tt.config)
			if tt.wantErr && err == nil {
				t.Errorf("Expected error but got none")
			}
			if !tt.wantErr && err != nil {
				t.Errorf("Expected no error but got: %v", err)
			}
		})
	}
}

func TestRateLimiterMinInterval(t *testing.T) {
	limiter, err := NewRateLimiter(RateLimiterConfig{RequestsPerWindow: 10, Window: time.Minute})
	if err != nil {
		t.Fatalf("Failed to create limiter: %v", err)
	}

	if limiter.MinInterval() != 6*time.Second {
		t.Errorf("Expected 6s interval for 10 per minute, got %v", limiter.MinInterval())
	}
}

func TestRateLimiterPacesGrants(t *testing.T) {
	// 20 per second = 50ms spacing; 5 sequential acquisitions need at least
	// 4 full intervals after the first immediate grant.
	limiter, err := NewRateLimiter(RateLimiterConfig{RequestsPerWindow: 20, Window: time.Second})
	if err != nil {
		t.Fatalf("Failed to create limiter: %v", err)
	}

	ctx := context.Background()
	started := time.Now()
	for i := 0; i < 5; i++ {
		if err := limiter.Acquire(ctx); err != nil {
			t.Fatalf("Acquire %d failed: %v", i, err)
		}
	}
	elapsed := time.Since(started)

	if elapsed < 4*limiter.MinInterval() {
		t.Errorf("Expected at least %v of pacing, got %v", 4*limiter.MinInterval(), elapsed)
	}
}

func TestRateLimiterFIFOOrder(t *testing.T) {
	limiter, err := NewRateLimiter(RateLimiterConfig{RequestsPerWindow: 50, Window: time.Second})
	if err != nil {
		t.Fatalf("Failed to create limiter: %v", err)
	}
	ctx := context.Background()

	// Occupy the pacing interval so the goroutines below all queue.
	if err := limiter.Acquire(ctx); err != nil {
		t.Fatalf("Priming acquire failed: %v", err)
	}

	const waiters = 5
	var mu sync.Mutex
	var order []int
	var wg sync.WaitGroup

	for i := 0; i < waiters; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			if err := limiter.Acquire(ctx); err != nil {
				t.Errorf("Acquire %d failed: %v", id, err)
				return
			}
			mu.Lock()
			order = append(order, id)
			mu.Unlock()
		}(i)
		// Stagger arrivals so queue order matches launch order.
		time.Sleep(5 * time.Millisecond)
	}
	wg.Wait()

	for i, id := range order {
		if id != i {
			t.Errorf("Expected FIFO order, got %v", order)
			break
		}
	}
}

func TestRateLimiterQueueCap(t *testing.T) {
	limiter, err := NewRateLimiter(RateLimiterConfig{
		RequestsPerWindow: 1,
		Window:            time.Hour, // effectively frozen after the first grant
		MaxQueue:          2,
	})
	if err != nil {
		t.Fatalf("Failed to create limiter: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// First acquire is granted immediately.
	if err := limiter.Acquire(ctx); err != nil {
		t.Fatalf("Priming acquire failed: %v", err)
	}

	// Fill the queue. The pacer holds one popped waiter outside the queue,
	// so three blocked callers leave two actually queued.
	for i := 0; i < 3; i++ {
		go func() { _ = limiter.Acquire(ctx) }()
	}
	deadline := time.Now().Add(time.Second)
	for limiter.QueueDepth() < 2 {
		if time.Now().After(deadline) {
			t.Fatalf("Waiters never queued, depth %d", limiter.QueueDepth())
		}
		time.Sleep(time.Millisecond)
	}

	err = limiter.Acquire(ctx)
	if transcription.CodeOf(err) != transcription.CodeRateLimit {
		t.Errorf("Expected rate_limit error when queue is full, got %v", err)
	}
}

func TestRateLimiterAcquireCancellation(t *testing.T) {
	limiter, err := NewRateLimiter(RateLimiterConfig{RequestsPerWindow: 1, Window: time.Hour})
	if err != nil {
		t.Fatalf("Failed to create limiter: %v", err)
	}

	// Consume the immediate slot.
	if err := limiter.Acquire(context.Background()); err != nil {
		t.Fatalf("Priming acquire failed: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	err = limiter.Acquire(ctx)
	if transcription.CodeOf(err) != transcription.CodeCancelled {
		t.Errorf("Expected cancelled error, got %v", err)
	}
}

func TestRateLimiterCancelledWaiterDoesNotConsumeSlot(t *testing.T) {
	limiter, err := NewRateLimiter(RateLimiterConfig{RequestsPerWindow: 10, Window: time.Second})
	if err != nil {
		t.Fatalf("Failed to create limiter: %v", err)
	}

	if err := limiter.Acquire(context.Background()); err != nil {
		t.Fatalf("Priming acquire failed: %v", err)
	}

	// Queue a waiter and cancel it before its slot arrives.
	cancelCtx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- limiter.Acquire(cancelCtx) }()
	time.Sleep(10 * time.Millisecond)
	cancel()
	if err := <-done; transcription.CodeOf(err) != transcription.CodeCancelled {
		t.Fatalf("Expected cancelled error, got %v", err)
	}

	// The next caller still gets a normally paced grant.
	ctx, ctxCancel := context.WithTimeout(context.Background(), time.Second)
	defer ctxCancel()
	if err := limiter.Acquire(ctx); err != nil {
		t.Errorf("Expected grant after cancelled waiter, got %v", err)
	}
}
