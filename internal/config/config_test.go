package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func validConfig() Config {
	return Config{
		Provider: ProviderConfig{
			Endpoint: "https://api.deepgram.com/v1/listen",
			APIKey:   "test-key",
			Model:    "nova-2",
			Timeout:  300,
		},
		Resilience: ResilienceConfig{
			FailureThreshold:  5,
			SuccessThreshold:  2,
			Cooldown:          60,
			MaxRetries:        3,
			BaseDelayMS:       1000,
			MaxDelayMS:        30000,
			RequestsPerWindow: 10,
			Window:            60,
			MaxQueue:          100,
		},
		Audio: AudioConfig{
			MaxChunkMB: 100,
			AutoChunk:  true,
		},
		Options: OptionsConfig{
			Language:    "en",
			Punctuate:   true,
			SmartFormat: true,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Output: "stdout",
		},
	}
}

func TestConfigValidation(t *testing.T) {
	tests := []struct {
		name        string
		mutate      func(*Config)
		expectError bool
		errorMsg    string
	}{
		{
			name:        "valid configuration",
			mutate:      func(c *Config) {},
			expectError: false,
		},
		{
			name: "empty endpoint",
			mutate: func(c *Config) {
				c.Provider.Endpoint = ""
			},
			expectError: true,
			errorMsg:    "endpoint cannot be empty",
		},
		{
			name: "non-http endpoint",
			mutate: func(c *Config) {
				c.Provider.Endpoint = "ftp://api.deepgram.com"
			},
			expectError: true,
			errorMsg:    "endpoint must be an http(s) URL",
		},
		{
			name: "missing api key",
			mutate: func(c *Config) {
				c.Provider.APIKey = ""
			},
			expectError: true,
			errorMsg:    "api_key cannot be empty",
		},
		{
			name: "zero failure threshold",
			mutate: func(c *Config) {
				c.Resilience.FailureThreshold = 0
			},
			expectError: true,
			errorMsg:    "failure_threshold must be at least 1",
		},
		{
			name: "max delay below base delay",
			mutate: func(c *Config) {
				c.Resilience.BaseDelayMS = 5000
				c.Resilience.MaxDelayMS = 1000
			},
			expectError: true,
			errorMsg:    "max_delay_ms (1000) must be at least base_delay_ms (5000)",
		},
		{
			name: "negative retries",
			mutate: func(c *Config) {
				c.Resilience.MaxRetries = -1
			},
			expectError: true,
			errorMsg:    "max_retries cannot be negative",
		},
		{
			name: "zero requests per window",
			mutate: func(c *Config) {
				c.Resilience.RequestsPerWindow = 0
			},
			expectError: true,
			errorMsg:    "requests_per_window must be at least 1",
		},
		{
			name: "chunk size too small",
			mutate: func(c *Config) {
				c.Audio.MaxChunkMB = 0
			},
			expectError: true,
			errorMsg:    "max_chunk_mb must be at least 1",
		},
		{
			name: "chunk size too large",
			mutate: func(c *Config) {
				c.Audio.MaxChunkMB = 4096
			},
			expectError: true,
			errorMsg:    "max_chunk_mb cannot exceed 2048",
		},
		{
			name: "unknown redaction entry",
			mutate: func(c *Config) {
				c.Options.Redact = []string{"pii", "passwords"}
			},
			expectError: true,
			errorMsg:    "redact entries must be one of",
		},
		{
			name: "invalid log level",
			mutate: func(c *Config) {
				c.Logging.Level = "verbose"
			},
			expectError: true,
			errorMsg:    "level must be one of",
		},
		{
			name: "invalid log format",
			mutate: func(c *Config) {
				c.Logging.Format = "xml"
			},
			expectError: true,
			errorMsg:    "format must be 'json' or 'text'",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			config := validConfig()
			tt.mutate(&config)

			err := config.Validate()
			if tt.expectError {
				if err == nil {
					t.Errorf("Expected error but got none")
				} else if tt.errorMsg != "" && !strings.Contains(err.Error(), tt.errorMsg) {
					t.Errorf("Expected error to contain '%s', got '%s'", tt.errorMsg, err.Error())
				}
			} else {
				if err != nil {
					t.Errorf("Expected no error but got: %v", err)
				}
			}
		})
	}
}

func TestConfigLoad(t *testing.T) {
	tempDir := t.TempDir()

	tests := []struct {
		name        string
		configYAML  string
		expectError bool
		errorMsg    string
	}{
		{
			name: "valid config file",
			configYAML: `
provider:
  endpoint: "https://api.deepgram.com/v1/listen"
  api_key: "test-key"
  model: "nova-2"
  timeout: 300
resilience:
  failure_threshold: 5
  success_threshold: 2
  cooldown: 60
  max_retries: 3
  base_delay_ms: 1000
  max_delay_ms: 30000
  requests_per_window: 10
  window: 60
  max_queue: 100
audio:
  max_chunk_mb: 100
  auto_chunk: true
options:
  language: "en"
  punctuate: true
  smart_format: true
logging:
  level: "info"
  format: "json"
  output: "stdout"
`,
			expectError: false,
		},
		{
			name: "invalid YAML syntax",
			configYAML: `
provider:
  endpoint: "https://api.deepgram.com/v1/listen"
  timeout: not_a_number
`,
			expectError: true,
			errorMsg:    "failed to parse",
		},
		{
			name: "missing required fields",
			configYAML: `
provider:
  endpoint: "https://api.deepgram.com/v1/listen"
  # missing api_key
`,
			expectError: true,
			errorMsg:    "api_key cannot be empty",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			configPath := filepath.Join(tempDir, "config.yaml")
			if err := os.WriteFile(configPath, []byte(tt.configYAML), 0644); err != nil {
				t.Fatalf("Failed to create test config file: %v", err)
			}

			config, err := Load(configPath)

			if tt.expectError {
				if err == nil {
					t.Errorf("Expected error but got none")
				} else if tt.errorMsg != "" && !strings.Contains(err.Error(), tt.errorMsg) {
					t.Errorf("Expected error to contain '%s', got '%s'", tt.errorMsg, err.Error())
				}
			} else {
				if err != nil {
					t.Errorf("Expected no error but got: %v", err)
				} else if config == nil {
					t.Errorf("Expected config to be loaded but got nil")
				}
			}
		})
	}
}

func TestConfigLoadNonexistentFile(t *testing.T) {
	_, err := Load("nonexistent.yaml")
	if err == nil {
		t.Fatalf("Expected error for nonexistent file but got none")
	}
	if !strings.Contains(err.Error(), "failed to read config file") {
		t.Errorf("Expected error about reading file, got: %v", err)
	}
}

func TestConfigLoadEnvOverride(t *testing.T) {
	tempDir := t.TempDir()
	configPath := filepath.Join(tempDir, "config.yaml")

	configYAML := `
provider:
  endpoint: "https://api.deepgram.com/v1/listen"
  api_key: "file-key"
  model: "nova-2"
  timeout: 300
resilience:
  failure_threshold: 5
  success_threshold: 2
  cooldown: 60
  max_retries: 3
  base_delay_ms: 1000
  max_delay_ms: 30000
  requests_per_window: 10
  window: 60
audio:
  max_chunk_mb: 100
logging:
  level: "info"
  format: "json"
  output: "stdout"
`
	if err := os.WriteFile(configPath, []byte(configYAML), 0644); err != nil {
		t.Fatalf("Failed to create test config file: %v", err)
	}

	t.Setenv("DEEPGRAM_API_KEY", "env-key")

	config, err := Load(configPath)
	if err != nil {
		t.Fatalf("Expected no error but got: %v", err)
	}
	if config.Provider.APIKey != "env-key" {
		t.Errorf("Expected environment key to win, got '%s'", config.Provider.APIKey)
	}
}

func TestDurationHelpers(t *testing.T) {
	provider := ProviderConfig{Timeout: 300}
	if provider.GetTimeoutDuration() != 300*time.Second {
		t.Errorf("Expected 300 seconds, got %v", provider.GetTimeoutDuration())
	}

	resilience := ResilienceConfig{
		Cooldown:    60,
		BaseDelayMS: 1500,
		MaxDelayMS:  30000,
		Window:      60,
	}

	if resilience.GetCooldownDuration() != 60*time.Second {
		t.Errorf("Expected 60 seconds, got %v", resilience.GetCooldownDuration())
	}

	if resilience.GetBaseDelayDuration() != 1500*time.Millisecond {
		t.Errorf("Expected 1.5 seconds, got %v", resilience.GetBaseDelayDuration())
	}

	if resilience.GetMaxDelayDuration() != 30*time.Second {
		t.Errorf("Expected 30 seconds, got %v", resilience.GetMaxDelayDuration())
	}

	if resilience.GetWindowDuration() != 60*time.Second {
		t.Errorf("Expected 60 seconds, got %v", resilience.GetWindowDuration())
	}

	audio := AudioConfig{MaxChunkMB: 100}
	if audio.GetMaxChunkBytes() != 100<<20 {
		t.Errorf("Expected %d bytes, got %d", 100<<20, audio.GetMaxChunkBytes())
	}
}
