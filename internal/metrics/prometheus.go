// Package metrics defines the Prometheus instruments for the transcription
// client. Instruments register against an injected Registerer so tests and
// embedding applications can scope them without process-global state.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics contains all Prometheus metrics for the transcription client.
type Metrics struct {
	// Request metrics
	TranscriptionRequests  prometheus.Counter
	TranscriptionSuccesses prometheus.Counter
	TranscriptionFailures  *prometheus.CounterVec
	TranscriptionDuration  prometheus.Histogram
	TranscriptionRetries   prometheus.Counter
	EmptyTranscripts       prometheus.Counter
	AudioBytes             prometheus.Histogram

	// Circuit breaker metrics
	BreakerState       prometheus.Gauge
	BreakerTransitions *prometheus.CounterVec

	// Rate limiter metrics
	RateLimitQueueDepth prometheus.Gauge
	RateLimitWait       prometheus.Histogram

	// Chunking metrics
	ChunksProcessed prometheus.Counter
	ChunksFailed    prometheus.Counter
}

// NewMetrics creates and registers all metrics against reg. Passing
// prometheus.DefaultRegisterer reproduces the conventional global behavior.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		TranscriptionRequests: factory.NewCounter(prometheus.CounterOpts{
			Name: "stt_transcription_requests_total",
			Help: "Total number of transcription requests sent",
		}),
		TranscriptionSuccesses: factory.NewCounter(prometheus.CounterOpts{
			Name: "stt_transcription_successes_total",
			Help: "Total number of successful transcription requests",
		}),
		TranscriptionFailures: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "stt_transcription_failures_total",
			Help: "Total number of failed transcription requests by error code",
		}, []string{"code"}),
		TranscriptionDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "stt_transcription_duration_seconds",
			Help:    "Duration of transcription requests",
			Buckets: prometheus.ExponentialBuckets(0.1, 2, 10), // 100ms to ~2 minutes
		}),
		TranscriptionRetries: factory.NewCounter(prometheus.CounterOpts{
			Name: "stt_transcription_retries_total",
			Help: "Total number of transcription request retries",
		}),
		EmptyTranscripts: factory.NewCounter(prometheus.CounterOpts{
			Name: "stt_empty_transcripts_total",
			Help: "Total number of structurally valid responses with no recognized text",
		}),
		AudioBytes: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "stt_audio_bytes",
			Help:    "Size of submitted audio buffers in bytes",
			Buckets: prometheus.ExponentialBuckets(1024, 4, 10), // 1KB to ~1GB
		}),

		BreakerState: factory.NewGauge(prometheus.GaugeOpts{
			Name: "stt_circuit_breaker_state",
			Help: "Current circuit breaker state (0=closed, 1=open, 2=half-open)",
		}),
		BreakerTransitions: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "stt_circuit_breaker_transitions_total",
			Help: "Total number of circuit breaker state transitions",
		}, []string{"from", "to"}),

		RateLimitQueueDepth: factory.NewGauge(prometheus.GaugeOpts{
			Name: "stt_rate_limit_queue_depth",
			Help: "Current number of callers waiting for a pacing slot",
		}),
		RateLimitWait: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "stt_rate_limit_wait_seconds",
			Help:    "Time callers spent waiting for a pacing slot",
			Buckets: prometheus.ExponentialBuckets(0.001, 4, 10), // 1ms to ~4.5 minutes
		}),

		ChunksProcessed: factory.NewCounter(prometheus.CounterOpts{
			Name: "stt_audio_chunks_processed_total",
			Help: "Total number of audio chunks transcribed",
		}),
		ChunksFailed: factory.NewCounter(prometheus.CounterOpts{
			Name: "stt_audio_chunks_failed_total",
			Help: "Total number of audio chunks whose transcription failed",
		}),
	}
}

// RecordRequest increments the request counter and observes the buffer size.
func (m *Metrics) RecordRequest(audioBytes int) {
	m.TranscriptionRequests.Inc()
	m.AudioBytes.Observe(float64(audioBytes))
}

// RecordSuccess records a successful transcription and its duration.
func (m *Metrics) RecordSuccess(durationSeconds float64) {
	m.TranscriptionSuccesses.Inc()
	m.TranscriptionDuration.Observe(durationSeconds)
}

// RecordFailure records a failed transcription by error code.
func (m *Metrics) RecordFailure(code string, durationSeconds float64) {
	m.TranscriptionFailures.WithLabelValues(code).Inc()
	m.TranscriptionDuration.Observe(durationSeconds)
}

// RecordRetry increments the retry counter.
func (m *Metrics) RecordRetry() {
	m.TranscriptionRetries.Inc()
}

// RecordEmptyTranscript increments the empty-transcript counter.
func (m *Metrics) RecordEmptyTranscript() {
	m.EmptyTranscripts.Inc()
}

// SetBreakerState sets the breaker state gauge.
func (m *Metrics) SetBreakerState(state float64) {
	m.BreakerState.Set(state)
}

// RecordBreakerTransition counts one breaker state transition.
func (m *Metrics) RecordBreakerTransition(from, to string) {
	m.BreakerTransitions.WithLabelValues(from, to).Inc()
}

// SetRateLimitQueueDepth sets the limiter queue depth gauge.
func (m *Metrics) SetRateLimitQueueDepth(depth int) {
	m.RateLimitQueueDepth.Set(float64(depth))
}

// RecordRateLimitWait observes time spent waiting for a pacing slot.
func (m *Metrics) RecordRateLimitWait(seconds float64) {
	m.RateLimitWait.Observe(seconds)
}

// RecordChunk counts one processed chunk and whether it failed.
func (m *Metrics) RecordChunk(failed bool) {
	m.ChunksProcessed.Inc()
	if failed {
		m.ChunksFailed.Inc()
	}
}
