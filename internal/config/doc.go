// Package config provides configuration loading and validation for the
// transcription client. It handles YAML-based configuration with struct
// validation and supports environment overrides for credentials.
package config
