package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config represents the complete client configuration
type Config struct {
	Provider   ProviderConfig   `yaml:"provider"`
	Resilience ResilienceConfig `yaml:"resilience"`
	Audio      AudioConfig      `yaml:"audio"`
	Options    OptionsConfig    `yaml:"options"`
	Logging    LoggingConfig    `yaml:"logging"`
}

// ProviderConfig contains transcription provider configuration
type ProviderConfig struct {
	Endpoint string `yaml:"endpoint"`
	APIKey   string `yaml:"api_key"`
	Model    string `yaml:"model"`
	Timeout  int    `yaml:"timeout"` // seconds
}

// ResilienceConfig contains circuit breaker, retry, and rate limit configuration
type ResilienceConfig struct {
	FailureThreshold  int `yaml:"failure_threshold"`
	SuccessThreshold  int `yaml:"success_threshold"`
	Cooldown          int `yaml:"cooldown"` // seconds
	MaxRetries        int `yaml:"max_retries"`
	BaseDelayMS       int `yaml:"base_delay_ms"`
	MaxDelayMS        int `yaml:"max_delay_ms"`
	RequestsPerWindow int `yaml:"requests_per_window"`
	Window            int `yaml:"window"` // seconds
	MaxQueue          int `yaml:"max_queue"`
}

// AudioConfig contains upload limits and chunking behavior
type AudioConfig struct {
	MaxChunkMB int  `yaml:"max_chunk_mb"`
	AutoChunk  bool `yaml:"auto_chunk"`
}

// OptionsConfig contains default transcription feature toggles
type OptionsConfig struct {
	Language        string   `yaml:"language"`
	Punctuate       bool     `yaml:"punctuate"`
	SmartFormat     bool     `yaml:"smart_format"`
	Diarize         bool     `yaml:"diarize"`
	Numerals        bool     `yaml:"numerals"`
	ProfanityFilter bool     `yaml:"profanity_filter"`
	Redact          []string `yaml:"redact"`
	Keywords        []string `yaml:"keywords"`
}

// LoggingConfig contains logging configuration
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
}

// Load reads and parses the configuration file. The DEEPGRAM_API_KEY
// environment variable overrides provider.api_key so that credentials can
// stay out of checked-in files.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	var config Config
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
	}

	if key := os.Getenv("DEEPGRAM_API_KEY"); key != "" {
		config.Provider.APIKey = key
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &config, nil
}

// Validate performs comprehensive validation of the configuration
func (c *Config) Validate() error {
	if err := c.Provider.Validate(); err != nil {
		return fmt.Errorf("provider config: %w", err)
	}

	if err := c.Resilience.Validate(); err != nil {
		return fmt.Errorf("resilience config: %w", err)
	}

	if err := c.Audio.Validate(); err != nil {
		return fmt.Errorf("audio config: %w", err)
	}

	if err := c.Options.Validate(); err != nil {
		return fmt.Errorf("options config: %w", err)
	}

	if err := c.Logging.Validate(); err != nil {
		return fmt.Errorf("logging config: %w", err)
	}

	return nil
}

// Validate validates provider configuration
func (p *ProviderConfig) Validate() error {
	if p.Endpoint == "" {
		return fmt.Errorf("endpoint cannot be empty")
	}

	if !strings.HasPrefix(p.Endpoint, "http://") && !strings.HasPrefix(p.Endpoint, "https://") {
		return fmt.Errorf("endpoint must be an http(s) URL, got '%s'", p.Endpoint)
	}

	if p.APIKey == "" {
		return fmt.Errorf("api_key cannot be empty (set it or the DEEPGRAM_API_KEY environment variable)")
	}

	if p.Timeout < 1 {
		return fmt.Errorf("timeout must be at least 1 second, got %d", p.Timeout)
	}

	return nil
}

// Validate validates resilience configuration
func (r *ResilienceConfig) Validate() error {
	if r.FailureThreshold < 1 {
		return fmt.Errorf("failure_threshold must be at least 1, got %d", r.FailureThreshold)
	}

	if r.SuccessThreshold < 1 {
		return fmt.Errorf("success_threshold must be at least 1, got %d", r.SuccessThreshold)
	}

	if r.Cooldown < 1 {
		return fmt.Errorf("cooldown must be at least 1 second, got %d", r.Cooldown)
	}

	if r.MaxRetries < 0 {
		return fmt.Errorf("max_retries cannot be negative, got %d", r.MaxRetries)
	}

	if r.BaseDelayMS < 1 {
		return fmt.Errorf("base_delay_ms must be at least 1, got %d", r.BaseDelayMS)
	}

	if r.MaxDelayMS < r.BaseDelayMS {
		return fmt.Errorf("max_delay_ms (%d) must be at least base_delay_ms (%d)",
			r.MaxDelayMS, r.BaseDelayMS)
	}

	if r.RequestsPerWindow < 1 {
		return fmt.Errorf("requests_per_window must be at least 1, got %d", r.RequestsPerWindow)
	}

	if r.Window < 1 {
		return fmt.Errorf("window must be at least 1 second, got %d", r.Window)
	}

	if r.MaxQueue < 0 {
		return fmt.Errorf("max_queue cannot be negative, got %d", r.MaxQueue)
	}

	return nil
}

// Validate validates audio configuration
func (a *AudioConfig) Validate() error {
	if a.MaxChunkMB < 1 {
		return fmt.Errorf("max_chunk_mb must be at least 1, got %d", a.MaxChunkMB)
	}

	if a.MaxChunkMB > 2048 {
		return fmt.Errorf("max_chunk_mb cannot exceed 2048, got %d", a.MaxChunkMB)
	}

	return nil
}

// Validate validates transcription option defaults
func (o *OptionsConfig) Validate() error {
	validRedact := map[string]bool{"pci": true, "pii": true, "numbers": true}
	for _, field := range o.Redact {
		if !validRedact[field] {
			return fmt.Errorf("redact entries must be one of [pci, pii, numbers], got '%s'", field)
		}
	}

	return nil
}

// Validate validates logging configuration
func (l *LoggingConfig) Validate() error {
	validLevels := map[string]bool{
		"debug": true, "info": true, "warn": true, "error": true,
	}
	if !validLevels[l.Level] {
		return fmt.Errorf("level must be one of [debug, info, warn, error], got '%s'", l.Level)
	}

	validFormats := map[string]bool{"json": true, "text": true}
	if !validFormats[l.Format] {
		return fmt.Errorf("format must be 'json' or 'text', got '%s'", l.Format)
	}

	return nil
}

// GetTimeoutDuration returns the provider request timeout as a time.Duration
func (p *ProviderConfig) GetTimeoutDuration() time.Duration {
	return time.Duration(p.Timeout) * time.Second
}

// GetCooldownDuration returns the breaker cooldown as a time.Duration
func (r *ResilienceConfig) GetCooldownDuration() time.Duration {
	return time.Duration(r.Cooldown) * time.Second
}

// GetBaseDelayDuration returns the retry base delay as a time.Duration
func (r *ResilienceConfig) GetBaseDelayDuration() time.Duration {
	return time.Duration(r.BaseDelayMS) * time.Millisecond
}

// GetMaxDelayDuration returns the retry delay ceiling as a time.Duration
func (r *ResilienceConfig) GetMaxDelayDuration() time.Duration {
	return time.Duration(r.MaxDelayMS) * time.Millisecond
}

// GetWindowDuration returns the rate limit window as a time.Duration
func (r *ResilienceConfig) GetWindowDuration() time.Duration {
	return time.Duration(r.Window) * time.Second
}

// GetMaxChunkBytes returns the chunk ceiling in bytes
func (a *AudioConfig) GetMaxChunkBytes() int {
	return a.MaxChunkMB << 20
}
