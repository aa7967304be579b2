// Package resilience provides the failure-mode machinery wrapped around every
// provider call: a per-provider circuit breaker, a FIFO request-pacing rate
// limiter, and a bounded retry handler with exponential backoff and jitter.
package resilience
