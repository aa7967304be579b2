package deepgram

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/voxpipe/stt-client/internal/audio"
	"github.com/voxpipe/stt-client/internal/metrics"
	"github.com/voxpipe/stt-client/internal/resilience"
	"github.com/voxpipe/stt-client/internal/transcription"
)

const (
	// ProviderName identifies this client in normalized responses.
	ProviderName = "deepgram"

	defaultBaseURL = "https://api.deepgram.com/v1/listen"
	defaultModel   = "nova-2"
	defaultTimeout = 5 * time.Minute
)

// Config contains Deepgram client configuration.
type Config struct {
	BaseURL string
	APIKey  string
	Model   string
	Timeout time.Duration
}

// ClientStats represents client request statistics.
type ClientStats struct {
	TotalRequests   uint64        `json:"total_requests"`
	SuccessRequests uint64        `json:"success_requests"`
	FailedRequests  uint64        `json:"failed_requests"`
	SuccessRate     float64       `json:"success_rate"`
	TotalRetries    uint64        `json:"total_retries"`
	AvgResponseTime time.Duration `json:"avg_response_time"`
}

// Client calls Deepgram's pre-recorded transcription endpoint. One instance
// exists per provider; its breaker and limiter coordinate pacing and health
// state across all concurrent callers.
type Client struct {
	config     Config
	httpClient *http.Client
	limiter    *resilience.RateLimiter
	breaker    *resilience.CircuitBreaker
	retrier    *resilience.RetryHandler
	logger     *slog.Logger
	metrics    *metrics.Metrics

	totalRequests   uint64
	successRequests uint64
	failedRequests  uint64
	totalRetries    uint64
	avgResponseTime time.Duration

	mu sync.RWMutex
}

// NewClient creates a Deepgram client around the supplied resilience
// components. The API key is required; everything else has a default.
func NewClient(
	config Config,
	limiter *resilience.RateLimiter,
	breaker *resilience.CircuitBreaker,
	retryConfig resilience.RetryConfig,
	logger *slog.Logger,
	m *metrics.Metrics,
) (*Client, error) {
	if config.APIKey == "" {
		return nil, fmt.Errorf("API key cannot be empty")
	}
	if config.BaseURL == "" {
		config.BaseURL = defaultBaseURL
	}
	if config.Model == "" {
		config.Model = defaultModel
	}
	if config.Timeout <= 0 {
		config.Timeout = defaultTimeout
	}
	if logger == nil {
		logger = slog.Default()
	}

	c := &Client{
		config: config,
		httpClient: &http.Client{
			Timeout: config.Timeout,
			Transport: &http.Transport{
				MaxIdleConns:        100,
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
			},
		},
		limiter: limiter,
		breaker: breaker,
		logger:  logger,
		metrics: m,
	}

	retryConfig.OnRetry = func(attempt int, err error) {
		c.incrementRetries()
		if m != nil {
			m.RecordRetry()
		}
		logger.Warn("Retrying transcription request",
			slog.Int("retry", attempt),
			slog.String("error", err.Error()),
		)
	}
	c.retrier = resilience.NewRetryHandler(retryConfig)

	return c, nil
}

// Name returns the provider identifier.
func (c *Client) Name() string {
	return ProviderName
}

// ResetCircuitBreaker forces the provider's breaker back to CLOSED.
func (c *Client) ResetCircuitBreaker() {
	c.breaker.Reset()
}

// BreakerStats exposes the breaker snapshot for status reporting.
func (c *Client) BreakerStats() resilience.BreakerStats {
	return c.breaker.GetStats()
}

// Transcribe submits one audio buffer and returns the normalized response.
// The pipeline is rate-limit acquire, then circuit breaker, then the
// retry-wrapped attempt. The audio buffer is never mutated.
func (c *Client) Transcribe(ctx context.Context, audioData []byte, opts transcription.Options) (*transcription.Response, error) {
	requestID := uuid.NewString()
	started := time.Now()
	c.incrementTotal()
	if c.metrics != nil {
		c.metrics.RecordRequest(len(audioData))
	}

	waitStart := time.Now()
	if err := c.limiter.Acquire(ctx); err != nil {
		c.recordOutcome(started, err)
		return nil, err
	}
	if c.metrics != nil {
		c.metrics.RecordRateLimitWait(time.Since(waitStart).Seconds())
		c.metrics.SetRateLimitQueueDepth(c.limiter.QueueDepth())
	}

	var response *transcription.Response
	err := c.breaker.Execute(ctx, func(ctx context.Context) error {
		return c.retrier.Execute(ctx, func(ctx context.Context) error {
			resp, attemptErr := c.attempt(ctx, requestID, audioData, opts)
			if attemptErr != nil {
				return attemptErr
			}
			response = resp
			return nil
		}, transcription.IsRetryable)
	})

	c.recordOutcome(started, err)
	if err != nil {
		return nil, err
	}

	response.Metadata.ProcessingTime = time.Since(started)
	return response, nil
}

// attempt performs one validate-build-post-parse cycle.
func (c *Client) attempt(ctx context.Context, requestID string, audioData []byte, opts transcription.Options) (*transcription.Response, error) {
	validation := audio.Validate(audioData)
	if !validation.Valid {
		return nil, transcription.NewInvalidAudio(validation.Errors[0])
	}
	for _, warning := range validation.Warnings {
		c.logger.Warn("Audio validation warning",
			slog.String("request_id", requestID),
			slog.String("warning", warning),
		)
	}

	model := opts.Model
	if model == "" {
		model = c.config.Model
	}
	query := buildQuery(model, opts)

	requestURL := c.config.BaseURL + "?" + query.Encode()
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, requestURL, bytes.NewReader(audioData))
	if err != nil {
		return nil, fmt.Errorf("failed to create HTTP request: %w", err)
	}
	httpReq.Header.Set("Authorization", "Token "+c.config.APIKey)
	httpReq.Header.Set("Content-Type", audio.ContentType(validation.Metadata.Format))
	httpReq.Header.Set("Accept", "application/json")

	c.logger.Debug("Sending transcription request",
		slog.String("request_id", requestID),
		slog.Int("audio_bytes", len(audioData)),
		slog.String("format", string(validation.Metadata.Format)),
		slog.Any("params", transcription.Redact(queryToMap(query))),
	)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return nil, transcription.NewCancelled(err)
		}
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, transcription.NewServerTimeout("request timed out waiting for the provider")
		}
		return nil, fmt.Errorf("HTTP request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, statusError(resp.StatusCode, body, resp.Header)
	}

	parsed, err := parseResponse(body, model)
	if err != nil {
		if transcription.CodeOf(err) == transcription.CodeEmptyTranscript && c.metrics != nil {
			c.metrics.RecordEmptyTranscript()
		}
		return nil, err
	}
	return parsed, nil
}

// buildQuery encodes transcription options as Deepgram URL query parameters.
// Language "auto" or empty selects provider-side detection.
func buildQuery(model string, opts transcription.Options) url.Values {
	query := url.Values{}
	query.Set("model", model)

	if opts.Language == "" || opts.Language == "auto" {
		query.Set("detect_language", "true")
	} else {
		query.Set("language", opts.Language)
	}

	if opts.Punctuate {
		query.Set("punctuate", "true")
	}
	if opts.SmartFormat {
		query.Set("smart_format", "true")
	}
	if opts.Diarize {
		query.Set("diarize", "true")
	}
	if opts.Numerals {
		query.Set("numerals", "true")
	}
	if opts.ProfanityFilter {
		query.Set("profanity_filter", "true")
	}
	for _, field := range opts.Redact {
		query.Add("redact", field)
	}
	for _, keyword := range opts.Keywords {
		query.Add("keywords", keyword)
	}

	return query
}

// statusError maps a non-2xx response to its taxonomy error. Classification
// happens here, at the point the error is created, never by message sniffing
// downstream.
func statusError(status int, body []byte, header http.Header) error {
	detail := string(body)
	if len(detail) > 200 {
		detail = detail[:200]
	}

	switch {
	case status == http.StatusBadRequest:
		return transcription.NewBadRequest(fmt.Sprintf("provider rejected the request: %s", detail))
	case status == http.StatusUnauthorized:
		return transcription.NewAuthentication("provider rejected the API key")
	case status == http.StatusPaymentRequired:
		return transcription.NewInsufficientCredits("provider account has insufficient credits")
	case status == http.StatusTooManyRequests:
		retryAfter := parseRetryAfter(header.Get("Retry-After"))
		return transcription.NewRateLimit("provider rate limit exceeded", retryAfter)
	case status == http.StatusGatewayTimeout:
		return transcription.NewServerTimeout("provider timed out processing the request")
	case status >= 500:
		return transcription.NewProviderUnavailable(
			fmt.Sprintf("provider returned HTTP %d", status), nil)
	default:
		return transcription.NewBadRequest(fmt.Sprintf("unexpected HTTP %d: %s", status, detail))
	}
}

// parseRetryAfter reads a delay-seconds Retry-After value; malformed or
// HTTP-date values yield zero.
func parseRetryAfter(value string) time.Duration {
	if value == "" {
		return 0
	}
	seconds, err := strconv.Atoi(value)
	if err != nil || seconds < 0 {
		return 0
	}
	return time.Duration(seconds) * time.Second
}

// queryToMap flattens url.Values for redacted debug logging.
func queryToMap(query url.Values) map[string]any {
	out := make(map[string]any, len(query))
	for k, v := range query {
		if len(v) == 1 {
			out[k] = v[0]
		} else {
			out[k] = v
		}
	}
	return out
}

// ValidateAPIKey performs a minimal real transcription call under the
// candidate key. Only an authentication failure proves the key is bad; any
// other failure means the key itself was accepted and is returned alongside
// valid=true so callers can still see why the probe did not succeed.
func (c *Client) ValidateAPIKey(ctx context.Context, key string) (bool, error) {
	probe := &Client{
		config: Config{
			BaseURL: c.config.BaseURL,
			APIKey:  key,
			Model:   c.config.Model,
			Timeout: 15 * time.Second,
		},
		httpClient: &http.Client{Timeout: 15 * time.Second},
		logger:     c.logger,
	}

	_, err := probe.attempt(ctx, uuid.NewString(), minimalProbeWAV(), transcription.Options{})
	if err == nil {
		return true, nil
	}
	if transcription.CodeOf(err) == transcription.CodeAuthentication {
		return false, nil
	}
	return true, err
}

// minimalProbeWAV builds the smallest WAV buffer the validator accepts: a
// canonical 44-byte header followed by a short run of silent samples.
func minimalProbeWAV() []byte {
	const sampleCount = 80 // 10ms at 8kHz
	data := make([]byte, wavProbeHeaderLen+sampleCount*2)
	copy(data[0:4], "RIFF")
	putLE32(data[4:8], uint32(len(data)-8))
	copy(data[8:12], "WAVE")
	copy(data[12:16], "fmt ")
	putLE32(data[16:20], 16)
	putLE16(data[20:22], 1) // PCM
	putLE16(data[22:24], 1) // mono
	putLE32(data[24:28], 8000)
	putLE32(data[28:32], 16000)
	putLE16(data[32:34], 2)
	putLE16(data[34:36], 16)
	copy(data[36:40], "data")
	putLE32(data[40:44], sampleCount*2)
	return data
}

const wavProbeHeaderLen = 44

func putLE16(b []byte, v uint16) {
	b[0] = byte(v)
	b[1] = byte(v >> 8)
}

func putLE32(b []byte, v uint32) {
	b[0] = byte(v)
	b[1] = byte(v >> 8)
	b[2] = byte(v >> 16)
	b[3] = byte(v >> 24)
}

// Statistics bookkeeping.

func (c *Client) incrementTotal() {
	c.mu.Lock()
	c.totalRequests++
	c.mu.Unlock()
}

func (c *Client) incrementRetries() {
	c.mu.Lock()
	c.totalRetries++
	c.mu.Unlock()
}

func (c *Client) recordOutcome(started time.Time, err error) {
	elapsed := time.Since(started)

	c.mu.Lock()
	if err != nil {
		c.failedRequests++
	} else {
		c.successRequests++
	}
	if c.avgResponseTime == 0 {
		c.avgResponseTime = elapsed
	} else {
		c.avgResponseTime = (c.avgResponseTime + elapsed) / 2
	}
	c.mu.Unlock()

	if c.metrics != nil {
		if err != nil {
			code := string(transcription.CodeOf(err))
			if code == "" {
				code = "network"
			}
			c.metrics.RecordFailure(code, elapsed.Seconds())
		} else {
			c.metrics.RecordSuccess(elapsed.Seconds())
		}
	}
}

// GetStats returns current client statistics.
func (c *Client) GetStats() ClientStats {
	c.mu.RLock()
	defer c.mu.RUnlock()

	successRate := float64(0)
	if c.totalRequests > 0 {
		successRate = float64(c.successRequests) / float64(c.totalRequests) * 100
	}

	return ClientStats{
		TotalRequests:   c.totalRequests,
		SuccessRequests: c.successRequests,
		FailedRequests:  c.failedRequests,
		SuccessRate:     successRate,
		TotalRetries:    c.totalRetries,
		AvgResponseTime: c.avgResponseTime,
	}
}
