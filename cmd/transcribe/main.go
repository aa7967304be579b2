package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/voxpipe/stt-client/internal/audio"
	"github.com/voxpipe/stt-client/internal/config"
	"github.com/voxpipe/stt-client/internal/deepgram"
	"github.com/voxpipe/stt-client/internal/metrics"
	"github.com/voxpipe/stt-client/internal/resilience"
	"github.com/voxpipe/stt-client/internal/transcription"
)

const (
	defaultConfigPath = "configs/config.yaml"
	appName           = "stt-client"
	appVersion        = "1.0.0"
)

func main() {
	// Parse command line flags
	configPath := flag.String("config", defaultConfigPath, "Path to configuration file")
	inputPath := flag.String("input", "", "Path to the audio file to transcribe")
	language := flag.String("language", "", "Override the configured language ('auto' to detect)")
	model := flag.String("model", "", "Override the configured model")
	metricsAddr := flag.String("metrics-addr", "", "Expose Prometheus metrics on this address (e.g. :9090)")
	estimateOnly := flag.Bool("estimate", false, "Print the estimated cost and exit without calling the API")
	flag.Parse()

	if *inputPath == "" {
		fmt.Fprintln(os.Stderr, "Usage: transcribe -input <audio-file> [-config <path>] [-language <code>] [-model <name>]")
		os.Exit(2)
	}

	// Load local .env if present, then configuration
	_ = godotenv.Load()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	if *model != "" {
		cfg.Provider.Model = *model
	}
	if *language != "" {
		cfg.Options.Language = *language
	}

	logger := initLogger(cfg.Logging)

	logger.Info("Client starting",
		slog.String("app", appName),
		slog.String("version", appVersion),
		slog.String("config_path", *configPath),
		slog.String("input", *inputPath),
	)

	audioData, err := os.ReadFile(*inputPath)
	if err != nil {
		logger.Error("Failed to read audio file", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// Initialize Prometheus metrics on a dedicated registry
	registry := prometheus.NewRegistry()
	appMetrics := metrics.NewMetrics(registry)

	if *metricsAddr != "" {
		go serveMetrics(*metricsAddr, registry, logger)
	}

	service, err := buildService(cfg, logger, appMetrics)
	if err != nil {
		logger.Error("Failed to build transcription client", slog.String("error", err.Error()))
		os.Exit(1)
	}

	if *estimateOnly {
		printEstimate(service, cfg, audioData)
		return
	}

	// Cancel the in-flight request on SIGINT/SIGTERM
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	go func() {
		sig := <-sigChan
		logger.Info("Received signal, cancelling", slog.String("signal", sig.String()))
		service.Cancel()
	}()

	opts := transcription.Options{
		Model:           cfg.Provider.Model,
		Language:        cfg.Options.Language,
		Punctuate:       cfg.Options.Punctuate,
		SmartFormat:     cfg.Options.SmartFormat,
		Diarize:         cfg.Options.Diarize,
		Numerals:        cfg.Options.Numerals,
		ProfanityFilter: cfg.Options.ProfanityFilter,
		Redact:          cfg.Options.Redact,
		Keywords:        cfg.Options.Keywords,
	}

	response, err := service.Transcribe(context.Background(), audioData, opts)
	if err != nil {
		analysis := service.Analyze(err)
		logger.Error("Transcription failed",
			slog.String("error", err.Error()),
			slog.String("code", string(transcription.CodeOf(err))),
			slog.String("category", string(analysis.Category)),
			slog.Bool("retryable", analysis.Retryable),
		)
		os.Exit(1)
	}

	printResult(response)

	stats := service.GetStats()
	logger.Info("Final client statistics",
		slog.Uint64("requests", stats.Requests),
		slog.Uint64("chunked_requests", stats.ChunkedRequests),
		slog.Uint64("chunks_attempted", stats.ChunksAttempted),
		slog.Uint64("chunks_failed", stats.ChunksFailed),
		slog.Uint64("partial_results", stats.PartialResults),
	)
}

// buildService wires the resilience components, provider client, and
// orchestrator from configuration.
func buildService(cfg *config.Config, logger *slog.Logger, appMetrics *metrics.Metrics) (*transcription.Service, error) {
	limiter, err := resilience.NewRateLimiter(resilience.RateLimiterConfig{
		RequestsPerWindow: cfg.Resilience.RequestsPerWindow,
		Window:            cfg.Resilience.GetWindowDuration(),
		MaxQueue:          cfg.Resilience.MaxQueue,
	})
	if err != nil {
		return nil, fmt.Errorf("rate limiter: %w", err)
	}

	breaker := resilience.NewCircuitBreaker(resilience.BreakerConfig{
		FailureThreshold: cfg.Resilience.FailureThreshold,
		SuccessThreshold: cfg.Resilience.SuccessThreshold,
		Cooldown:         cfg.Resilience.GetCooldownDuration(),
	}, logger)
	breaker.SetStateChangeHook(func(from, to resilience.BreakerState) {
		appMetrics.SetBreakerState(float64(to))
		appMetrics.RecordBreakerTransition(from.String(), to.String())
	})

	client, err := deepgram.NewClient(
		deepgram.Config{
			BaseURL: cfg.Provider.Endpoint,
			APIKey:  cfg.Provider.APIKey,
			Model:   cfg.Provider.Model,
			Timeout: cfg.Provider.GetTimeoutDuration(),
		},
		limiter,
		breaker,
		resilience.RetryConfig{
			MaxRetries: cfg.Resilience.MaxRetries,
			BaseDelay:  cfg.Resilience.GetBaseDelayDuration(),
			MaxDelay:   cfg.Resilience.GetMaxDelayDuration(),
			MaxJitter:  time.Second,
		},
		logger,
		appMetrics,
	)
	if err != nil {
		return nil, fmt.Errorf("deepgram client: %w", err)
	}

	chunker, err := audio.NewChunker(audio.ChunkerConfig{
		MaxChunkBytes: cfg.Audio.GetMaxChunkBytes(),
	})
	if err != nil {
		return nil, fmt.Errorf("chunker: %w", err)
	}

	return transcription.NewService(client, chunker, transcription.ServiceConfig{
		AutoChunk:       cfg.Audio.AutoChunk,
		BreakerCooldown: cfg.Resilience.GetCooldownDuration(),
	}, logger, appMetrics)
}

func printEstimate(service *transcription.Service, cfg *config.Config, audioData []byte) {
	validation := audio.Validate(audioData)
	durationSeconds := 0.0
	if validation.Metadata.WAV != nil {
		durationSeconds = validation.Metadata.WAV.Duration
	}

	cost := service.EstimateCost(durationSeconds, cfg.Provider.Model)
	fmt.Printf("Model:    %s\n", cfg.Provider.Model)
	fmt.Printf("Duration: %.1fs\n", durationSeconds)
	fmt.Printf("Estimate: $%.4f\n", cost)
	if durationSeconds == 0 {
		fmt.Println("Note: duration is only known for WAV input; other formats estimate as $0")
	}
}

func printResult(response *transcription.Response) {
	fmt.Println(response.Text)
	fmt.Println()
	fmt.Printf("Language:   %s\n", response.Language)
	fmt.Printf("Confidence: %.2f\n", response.Confidence)
	fmt.Printf("Duration:   %.1fs\n", response.Duration)
	fmt.Printf("Words:      %d\n", response.Metadata.WordCount)
	fmt.Printf("Processed:  %s\n", response.Metadata.ProcessingTime.Round(time.Millisecond))
	if response.Metadata.ChunksTotal > 1 {
		fmt.Printf("Chunks:     %d/%d succeeded\n",
			response.Metadata.ChunksSucceeded, response.Metadata.ChunksTotal)
	}
	if response.IsPartial {
		fmt.Println("Warning: partial result, some chunks failed")
	}
}

// serveMetrics exposes the Prometheus registry over HTTP.
func serveMetrics(addr string, registry *prometheus.Registry, logger *slog.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))

	logger.Info("Serving metrics", slog.String("address", addr))
	if err := http.ListenAndServe(addr, mux); err != nil {
		logger.Error("Metrics server stopped", slog.String("error", err.Error()))
	}
}

// initLogger creates and configures the structured logger based on configuration
func initLogger(cfg config.LoggingConfig) *slog.Logger {
	var level slog.Level
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{
		Level:     level,
		AddSource: level == slog.LevelDebug,
	}

	var output *os.File
	switch cfg.Output {
	case "stderr", "":
		output = os.Stderr
	case "stdout":
		output = os.Stdout
	default:
		// Assume it's a file path
		file, err := os.OpenFile(cfg.Output, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to open log file %s: %v, falling back to stderr\n", cfg.Output, err)
			output = os.Stderr
		} else {
			output = file
		}
	}

	var handler slog.Handler
	switch cfg.Format {
	case "json":
		handler = slog.NewJSONHandler(output, opts)
	default:
		handler = slog.NewTextHandler(output, opts)
	}

	return slog.New(handler)
}
