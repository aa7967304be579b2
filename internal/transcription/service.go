package transcription

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/voxpipe/stt-client/internal/audio"
	"github.com/voxpipe/stt-client/internal/metrics"
)

// Provider is the transcription backend the Service drives. Implementations
// own their resilience pipeline (pacing, breaker, retries).
type Provider interface {
	Name() string
	Transcribe(ctx context.Context, audioData []byte, opts Options) (*Response, error)
	// ValidateAPIKey reports whether key is accepted. Only an auth failure
	// makes it false; any other probe failure returns true plus the
	// classified error so callers can tell reachability apart.
	ValidateAPIKey(ctx context.Context, key string) (bool, error)
	ResetCircuitBreaker()
	EstimateCost(durationSeconds float64, model string) float64
}

// ServiceConfig contains orchestration settings.
type ServiceConfig struct {
	AutoChunk       bool          // split oversized buffers instead of failing
	BreakerCooldown time.Duration // used only for recovery estimates in diagnostics
}

// ServiceStats is a snapshot of orchestration accounting.
type ServiceStats struct {
	Requests        uint64 `json:"requests"`
	ChunkedRequests uint64 `json:"chunked_requests"`
	ChunksAttempted uint64 `json:"chunks_attempted"`
	ChunksFailed    uint64 `json:"chunks_failed"`
	PartialResults  uint64 `json:"partial_results"`
}

// Service is the orchestration layer exposed to the application: it decides
// standard versus chunked transcription, drives per-chunk provider calls
// sequentially, aggregates partial results, and rewrites known failure
// categories into actionable guidance without touching their classification.
type Service struct {
	provider Provider
	chunker  *audio.Chunker
	config   ServiceConfig
	logger   *slog.Logger
	metrics  *metrics.Metrics

	cancelMu sync.Mutex
	cancel   context.CancelFunc

	statsMu sync.Mutex
	stats   ServiceStats
}

// NewService builds the orchestrator.
func NewService(provider Provider, chunker *audio.Chunker, config ServiceConfig, logger *slog.Logger, m *metrics.Metrics) (*Service, error) {
	if provider == nil {
		return nil, fmt.Errorf("provider cannot be nil")
	}
	if chunker == nil {
		return nil, fmt.Errorf("chunker cannot be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}
	if config.BreakerCooldown <= 0 {
		config.BreakerCooldown = 60 * time.Second
	}

	return &Service{
		provider: provider,
		chunker:  chunker,
		config:   config,
		logger:   logger,
		metrics:  m,
	}, nil
}

// Transcribe submits one audio buffer and returns a normalized transcript.
// Oversized buffers are split and processed chunk by chunk when auto-chunking
// is enabled; a single failing chunk does not fail the request as long as at
// least one chunk succeeds.
func (s *Service) Transcribe(ctx context.Context, audioData []byte, opts Options) (*Response, error) {
	ctx, cancel := context.WithCancel(ctx)
	s.setCancel(cancel)
	defer s.clearCancel()

	s.statsMu.Lock()
	s.stats.Requests++
	s.statsMu.Unlock()

	if s.config.AutoChunk && s.chunker.NeedsChunking(len(audioData)) {
		return s.transcribeChunked(ctx, audioData, opts)
	}

	response, err := s.provider.Transcribe(ctx, audioData, opts)
	if err != nil {
		return nil, s.enhanceError(err, len(audioData))
	}
	return response, nil
}

// transcribeChunked splits the buffer and processes the chunks sequentially,
// in order, absorbing per-chunk failures. Sequential processing keeps chunk
// *i*'s text ahead of chunk *i+1*'s and avoids breaker flapping from burst
// failures.
func (s *Service) transcribeChunked(ctx context.Context, audioData []byte, opts Options) (*Response, error) {
	chunks := s.chunker.Split(audioData)

	s.statsMu.Lock()
	s.stats.ChunkedRequests++
	s.statsMu.Unlock()

	s.logger.Info("Transcribing in chunked mode",
		slog.Int("chunks", len(chunks)),
		slog.Int("audio_bytes", len(audioData)),
	)

	started := time.Now()
	texts := make([]string, len(chunks))
	var (
		succeeded     int
		confidenceSum float64
		durationSum   float64
		wordCount     int
		language      string
		model         string
		lastErr       error
		segments      []Segment
	)

	for _, chunk := range chunks {
		if ctx.Err() != nil {
			return nil, NewCancelled(ctx.Err())
		}

		response, err := s.provider.Transcribe(ctx, chunk.Data, opts)

		s.statsMu.Lock()
		s.stats.ChunksAttempted++
		if err != nil {
			s.stats.ChunksFailed++
		}
		s.statsMu.Unlock()
		if s.metrics != nil {
			s.metrics.RecordChunk(err != nil)
		}

		if err != nil {
			if CodeOf(err) == CodeCancelled {
				return nil, err
			}
			lastErr = err
			s.logger.Warn("Chunk transcription failed, continuing",
				slog.Int("chunk", chunk.Index),
				slog.Int("chunk_bytes", len(chunk.Data)),
				slog.String("error", err.Error()),
			)
			continue
		}

		texts[chunk.Index] = response.Text
		succeeded++
		confidenceSum += response.Confidence

		// Chunk-local segment offsets are re-based onto the merged
		// timeline. Failed chunks contribute no known duration, so the
		// timeline covers successful chunks only.
		for _, seg := range response.Segments {
			seg.ID = len(segments)
			seg.Start += durationSum
			seg.End += durationSum
			segments = append(segments, seg)
		}

		durationSum += response.Duration
		wordCount += response.Metadata.WordCount
		if language == "" {
			language = response.Language
		}
		if model == "" {
			model = response.Metadata.Model
		}
	}

	if succeeded == 0 {
		err := NewChunkingFailed(len(chunks), lastErr)
		s.logger.Error("All chunks failed", slog.Int("chunks", len(chunks)))
		return nil, err
	}

	if succeeded < len(chunks) {
		s.statsMu.Lock()
		s.stats.PartialResults++
		s.statsMu.Unlock()
	}

	return &Response{
		Text:       audio.MergeTranscripts(texts),
		Language:   language,
		Confidence: confidenceSum / float64(succeeded),
		Duration:   durationSum,
		Segments:   segments,
		Provider:   s.provider.Name(),
		IsPartial:  succeeded < len(chunks),
		Metadata: Metadata{
			Model:           model,
			ProcessingTime:  time.Since(started),
			WordCount:       wordCount,
			ChunksTotal:     len(chunks),
			ChunksSucceeded: succeeded,
		},
	}, nil
}

// enhanceError rewrites the human-readable message of known failure
// categories into actionable guidance. The machine-readable classification is
// never changed.
func (s *Service) enhanceError(err error, audioBytes int) error {
	te, ok := AsError(err)
	if !ok {
		return err
	}

	switch te.Code {
	case CodeEmptyTranscript:
		return te.WithMessage(te.Message +
			". Try: increase recording volume, confirm the audio actually contains speech, " +
			"and check that the language setting matches the spoken language")
	case CodeInvalidAudio:
		return te.WithMessage(te.Message +
			". Try: re-export the recording in a supported format (WAV, MP3, FLAC, OGG, M4A, WebM) " +
			"and confirm the file is not empty or truncated")
	case CodeServerTimeout:
		rec := s.chunker.RecommendedSettings(audioBytes)
		return te.WithMessage(fmt.Sprintf(
			"%s. Try: enable auto-chunking (this file would be %d chunk(s)), or use the %q model",
			te.Message, rec.EstimatedChunks, rec.SuggestedModel))
	default:
		return err
	}
}

// IsAvailable probes the provider with a minimal real call. Failures that
// indicate the provider cannot be reached (open circuit, outage, timeout,
// throttling) report false; every other failure, including authentication,
// proves the provider answered and reports true.
func (s *Service) IsAvailable(ctx context.Context) bool {
	_, err := s.provider.ValidateAPIKey(ctx, "availability-probe")
	if err == nil {
		return true
	}

	code := CodeOf(err)
	if code == CodeMaxRetries {
		if te, ok := AsError(err); ok {
			code = CodeOf(te.Cause)
		}
	}
	switch code {
	case CodeProviderUnavailable, CodeServerTimeout, CodeRateLimit:
		return false
	default:
		return true
	}
}

// Cancel aborts the in-flight transcription, if any. Best effort; the
// cancellation surfaces to the caller as a Cancelled error.
func (s *Service) Cancel() {
	s.cancelMu.Lock()
	cancel := s.cancel
	s.cancelMu.Unlock()

	if cancel != nil {
		cancel()
	}
}

// ResetCircuitBreaker forces the provider breaker back to CLOSED. Operator
// escape hatch.
func (s *Service) ResetCircuitBreaker() {
	s.provider.ResetCircuitBreaker()
	s.logger.Info("Circuit breaker reset", slog.String("provider", s.provider.Name()))
}

// RecommendedSettings estimates how a buffer of the given size would be
// chunked and which degraded settings would avoid chunking. Advisory only.
func (s *Service) RecommendedSettings(byteLength int) audio.Recommendation {
	return s.chunker.RecommendedSettings(byteLength)
}

// EstimateCost returns the estimated cost for the duration/model pair from
// the provider's static rate table. No network call.
func (s *Service) EstimateCost(durationSeconds float64, model string) float64 {
	return s.provider.EstimateCost(durationSeconds, model)
}

// Analyze classifies a failure for programmatic callers.
func (s *Service) Analyze(err error) ErrorAnalysis {
	return Analyze(err, s.config.BreakerCooldown)
}

// GetStats returns a snapshot of orchestration accounting.
func (s *Service) GetStats() ServiceStats {
	s.statsMu.Lock()
	defer s.statsMu.Unlock()
	return s.stats
}

func (s *Service) setCancel(cancel context.CancelFunc) {
	s.cancelMu.Lock()
	s.cancel = cancel
	s.cancelMu.Unlock()
}

func (s *Service) clearCancel() {
	s.cancelMu.Lock()
	s.cancel = nil
	s.cancelMu.Unlock()
}
