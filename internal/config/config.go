package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config represents the complete service configuration
type Config struct {
	HTTP          HTTPConfig          `yaml:"http"`
	Session       SessionConfig       `yaml:"session"`
	Bus           BusConfig           `yaml:"bus"`
	Transcription TranscriptionConfig `yaml:"transcription"`
	Summary       SummaryConfig       `yaml:"summary"`
	Store         StoreConfig         `yaml:"store"`
	Logging       LoggingConfig       `yaml:"logging"`
}

// HTTPConfig contains HTTP API server configuration
type HTTPConfig struct {
	Port    int    `yaml:"port"`
	Address string `yaml:"address"`
}

// SessionConfig contains per-session processing parameters
type SessionConfig struct {
	TickInterval     float64 `yaml:"tick_interval"`     // seconds
	FailureThreshold int     `yaml:"failure_threshold"` // consecutive transcription failures
	ChunkDuration    float64 `yaml:"chunk_duration"`    // seconds of content per chunk
}

// BusConfig contains event bus configuration
type BusConfig struct {
	SubscriberBuffer int `yaml:"subscriber_buffer"`
}

// TranscriptionConfig contains transcription backend configuration
type TranscriptionConfig struct {
	Endpoint      string `yaml:"endpoint"`
	APIKey        string `yaml:"api_key"`
	Timeout       int    `yaml:"timeout"` // seconds
	MaxRetries    int    `yaml:"max_retries"`
	MaxConcurrent int    `yaml:"max_concurrent"`
	Language      string `yaml:"language"`
	Model         string `yaml:"model"`
}

// SummaryConfig contains summary service call limits
type SummaryConfig struct {
	CleanupTimeout      int `yaml:"cleanup_timeout"`      // seconds
	SegmentationTimeout int `yaml:"segmentation_timeout"` // seconds
}

// StoreConfig contains snapshot persistence configuration
type StoreConfig struct {
	Path string `yaml:"path"` // empty disables on-disk persistence
}

// LoggingConfig contains logging configuration
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
}

// Load reads and parses the configuration file
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	var config Config
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &config, nil
}

// Validate performs comprehensive validation of the configuration
func (c *Config) Validate() error {
	if err := c.HTTP.Validate(); err != nil {
		return fmt.Errorf("http config: %w", err)
	}

	if err := c.Session.Validate(); err != nil {
		return fmt.Errorf("session config: %w", err)
	}

	if err := c.Bus.Validate(); err != nil {
		return fmt.Errorf("bus config: %w", err)
	}

	if err := c.Transcription.Validate(); err != nil {
		return fmt.Errorf("transcription config: %w", err)
	}

	if err := c.Summary.Validate(); err != nil {
		return fmt.Errorf("summary config: %w", err)
	}

	if err := c.Logging.Validate(); err != nil {
		return fmt.Errorf("logging config: %w", err)
	}

	return nil
}

// Validate validates HTTP configuration
func (h *HTTPConfig) Validate() error {
	if h.Port < 1 || h.Port > 65535 {
		return fmt.Errorf("port must be between 1 and 65535, got %d", h.Port)
	}

	if h.Address == "" {
		return fmt.Errorf("address cannot be empty")
	}

	return nil
}

// Validate validates session processing configuration
func (s *SessionConfig) Validate() error {
	if s.TickInterval <= 0 {
		return fmt.Errorf("tick_interval must be positive, got %f", s.TickInterval)
	}

	if s.FailureThreshold < 1 {
		return fmt.Errorf("failure_threshold must be at least 1, got %d", s.FailureThreshold)
	}

	if s.ChunkDuration <= 0 {
		return fmt.Errorf("chunk_duration must be positive, got %f", s.ChunkDuration)
	}

	return nil
}

// Validate validates event bus configuration
func (b *BusConfig) Validate() error {
	if b.SubscriberBuffer < 1 {
		return fmt.Errorf("subscriber_buffer must be at least 1, got %d", b.SubscriberBuffer)
	}

	return nil
}

// Validate validates transcription configuration
func (t *TranscriptionConfig) Validate() error {
	if t.Endpoint == "" {
		return fmt.Errorf("endpoint cannot be empty")
	}

	if t.Timeout < 1 {
		return fmt.Errorf("timeout must be at least 1 second, got %d", t.Timeout)
	}

	if t.MaxRetries < 0 {
		return fmt.Errorf("max_retries cannot be negative, got %d", t.MaxRetries)
	}

	if t.MaxConcurrent < 1 {
		return fmt.Errorf("max_concurrent must be at least 1, got %d", t.MaxConcurrent)
	}

	return nil
}

// Validate validates summary service limits
func (s *SummaryConfig) Validate() error {
	if s.CleanupTimeout < 1 {
		return fmt.Errorf("cleanup_timeout must be at least 1 second, got %d", s.CleanupTimeout)
	}

	if s.SegmentationTimeout < 1 {
		return fmt.Errorf("segmentation_timeout must be at least 1 second, got %d", s.SegmentationTimeout)
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

// GetTickInterval returns the summary tick interval as a time.Duration
func (s *SessionConfig) GetTickInterval() time.Duration {
	return time.Duration(s.TickInterval * float64(time.Second))
}

// GetChunkDuration returns the chunk duration as a time.Duration
func (s *SessionConfig) GetChunkDuration() time.Duration {
	return time.Duration(s.ChunkDuration * float64(time.Second))
}

// GetTimeoutDuration returns the transcription timeout as a time.Duration
func (t *TranscriptionConfig) GetTimeoutDuration() time.Duration {
	return time.Duration(t.Timeout) * time.Second
}

// GetCleanupTimeout returns the cleanup call limit as a time.Duration
func (s *SummaryConfig) GetCleanupTimeout() time.Duration {
	return time.Duration(s.CleanupTimeout) * time.Second
}

// GetSegmentationTimeout returns the segmentation call limit as a time.Duration
func (s *SummaryConfig) GetSegmentationTimeout() time.Duration {
	return time.Duration(s.SegmentationTimeout) * time.Second
}
