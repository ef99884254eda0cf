package models

import (
	"fmt"
	"strings"
	"time"
)

// Config is the top-level configuration for an upload run.
// Built once at startup and passed by value into the client and runner.
type Config struct {
	Server   ServerConfig  `yaml:"server" json:"server"`
	Upload   UploadConfig  `yaml:"upload" json:"upload"`
	Retry    RetryConfig   `yaml:"retry" json:"retry"`
	Timeouts TimeoutConfig `yaml:"timeouts" json:"timeouts"`
	LogLevel string        `yaml:"log_level" json:"log_level"`
}

// ServerConfig holds the FHIR server location and access credentials
type ServerConfig struct {
	Scheme       string `yaml:"scheme" json:"scheme"`
	Hostname     string `yaml:"hostname" json:"hostname"`
	ClientID     string `yaml:"client_id" json:"client_id"`
	ClientSecret string `yaml:"client_secret" json:"-"`
}

// Credentials identify this client to the access proxy in front of the FHIR server.
// Immutable for the lifetime of the process.
type Credentials struct {
	Hostname     string
	ClientID     string
	ClientSecret string
}

// UploadConfig controls the batch loop
type UploadConfig struct {
	Dir                string  `yaml:"dir" json:"dir"`
	BatchSize          int     `yaml:"batch_size" json:"batch_size"`                       // Files between progress lines
	DelayMs            int64   `yaml:"delay_ms" json:"delay_ms"`                           // Pause after each file
	RateLimitPerSecond float64 `yaml:"rate_limit_per_second" json:"rate_limit_per_second"` // 0 disables the cap
}

// RetryConfig controls retry behavior for transient HTTP failures
type RetryConfig struct {
	MaxRetries        int      `yaml:"max_retries" json:"max_retries"`
	BackoffFactorMs   int64    `yaml:"backoff_factor_ms" json:"backoff_factor_ms"`
	MaxBackoffMs      int64    `yaml:"max_backoff_ms" json:"max_backoff_ms"`
	RetryableStatuses []int    `yaml:"retryable_statuses" json:"retryable_statuses"`
	RetryableMethods  []string `yaml:"retryable_methods" json:"retryable_methods"`
}

// TimeoutConfig holds per-call timeouts. A timeout guards one call, never the batch.
type TimeoutConfig struct {
	ReadSeconds   int `yaml:"read_seconds" json:"read_seconds"`
	UploadSeconds int `yaml:"upload_seconds" json:"upload_seconds"`
}

// DefaultUploadDir is used when PROCESSED_FHIR_DIR is not set
const DefaultUploadDir = "./processed_fhir"

// DefaultConfig returns the configuration used when nothing overrides it
func DefaultConfig() Config {
	return Config{
		Server: ServerConfig{
			Scheme: "https",
		},
		Upload: UploadConfig{
			Dir:       DefaultUploadDir,
			BatchSize: 10,
			DelayMs:   500,
		},
		Retry: RetryConfig{
			MaxRetries:        3,
			BackoffFactorMs:   1000,
			MaxBackoffMs:      30000,
			RetryableStatuses: []int{429, 500, 502, 503, 504},
			RetryableMethods:  []string{"GET", "POST"},
		},
		Timeouts: TimeoutConfig{
			ReadSeconds:   10,
			UploadSeconds: 30,
		},
		LogLevel: "info",
	}
}

// Credentials returns the immutable credential triple
func (s ServerConfig) Credentials() Credentials {
	return Credentials{
		Hostname:     s.Hostname,
		ClientID:     s.ClientID,
		ClientSecret: s.ClientSecret,
	}
}

// BaseURL returns the FHIR R4 base endpoint, e.g. https://fhir.example.com/fhir/R4
func (s ServerConfig) BaseURL() string {
	scheme := s.Scheme
	if scheme == "" {
		scheme = "https"
	}
	return fmt.Sprintf("%s://%s/fhir/R4", scheme, s.Hostname)
}

// MissingCredentials lists the environment variables that are required but empty
func (s ServerConfig) MissingCredentials() []string {
	var missing []string
	if s.Hostname == "" {
		missing = append(missing, "HTTP_HOSTNAME")
	}
	if s.ClientID == "" {
		missing = append(missing, "HTTP_CLIENT_ID")
	}
	if s.ClientSecret == "" {
		missing = append(missing, "HTTP_CLIENT_SECRET")
	}
	return missing
}

// Delay returns the fixed pause between files
func (u UploadConfig) Delay() time.Duration {
	return time.Duration(u.DelayMs) * time.Millisecond
}

// ReadTimeout applies to metadata and search calls
func (t TimeoutConfig) ReadTimeout() time.Duration {
	return time.Duration(t.ReadSeconds) * time.Second
}

// UploadTimeout applies to bundle POSTs
func (t TimeoutConfig) UploadTimeout() time.Duration {
	return time.Duration(t.UploadSeconds) * time.Second
}

// Validate checks the tuning values. Credentials are checked separately so
// the caller can name the missing variables.
func (c *Config) Validate() error {
	if scheme := strings.ToLower(c.Server.Scheme); scheme != "https" && scheme != "http" {
		return fmt.Errorf("server.scheme must be http or https, got %q", c.Server.Scheme)
	}

	if c.Upload.Dir == "" {
		return fmt.Errorf("upload directory is required")
	}

	if c.Upload.BatchSize <= 0 {
		return fmt.Errorf("upload.batch_size must be > 0, got %d", c.Upload.BatchSize)
	}

	if c.Upload.DelayMs < 0 {
		return fmt.Errorf("upload.delay_ms cannot be negative, got %d", c.Upload.DelayMs)
	}

	if c.Upload.RateLimitPerSecond < 0 {
		return fmt.Errorf("upload.rate_limit_per_second cannot be negative, got %v", c.Upload.RateLimitPerSecond)
	}

	if c.Retry.MaxRetries < 0 {
		return fmt.Errorf("retry.max_retries cannot be negative, got %d", c.Retry.MaxRetries)
	}

	if c.Retry.BackoffFactorMs < 0 || c.Retry.MaxBackoffMs < 0 {
		return fmt.Errorf("retry backoff values cannot be negative")
	}

	if c.Retry.MaxBackoffMs < c.Retry.BackoffFactorMs {
		return fmt.Errorf("retry.max_backoff_ms (%d) must be >= retry.backoff_factor_ms (%d)",
			c.Retry.MaxBackoffMs, c.Retry.BackoffFactorMs)
	}

	if c.Timeouts.ReadSeconds <= 0 || c.Timeouts.UploadSeconds <= 0 {
		return fmt.Errorf("timeouts must be > 0 (read=%d, upload=%d)", c.Timeouts.ReadSeconds, c.Timeouts.UploadSeconds)
	}

	return nil
}
