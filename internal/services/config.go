package services

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
	"github.com/trobanga/fhirpush/internal/lib"
	"github.com/trobanga/fhirpush/internal/models"
)

// Environment variables read directly, without the FHIRPUSH_ prefix
var envBindings = map[string]string{
	"server.hostname":      "HTTP_HOSTNAME",
	"server.client_id":     "HTTP_CLIENT_ID",
	"server.client_secret": "HTTP_CLIENT_SECRET",
	"upload.dir":           "PROCESSED_FHIR_DIR",
}

// LoadConfig builds the run configuration.
// Priority order (highest to lowest):
//  1. Environment variables (HTTP_*, PROCESSED_FHIR_DIR, FHIRPUSH_*)
//  2. Variables from envFile (never overriding the real environment)
//  3. Configuration file
//  4. Default values
//
// Missing credentials yield a configuration error before any network activity.
func LoadConfig(configFile string, envFile string) (*models.Config, error) {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, lib.ErrInvalidConfig(fmt.Errorf("failed to load %s: %w", envFile, err))
		}
	}

	v := viper.New()
	if configFile != "" {
		v.SetConfigFile(configFile)
	} else {
		// Search for config in standard locations
		v.SetConfigName("fhirpush")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("$HOME/.config/fhirpush")
		v.AddConfigPath("/etc/fhirpush")
	}

	setDefaults(v)

	v.SetEnvPrefix("FHIRPUSH")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	for key, env := range envBindings {
		if err := v.BindEnv(key, env); err != nil {
			return nil, lib.ErrInvalidConfig(err)
		}
	}

	// Read config file (optional - don't fail if not found)
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, lib.ErrInvalidConfig(fmt.Errorf("failed to read config file: %w", err))
		}
	}

	config := models.Config{
		Server: models.ServerConfig{
			Scheme:       v.GetString("server.scheme"),
			Hostname:     v.GetString("server.hostname"),
			ClientID:     v.GetString("server.client_id"),
			ClientSecret: v.GetString("server.client_secret"),
		},
		Upload: models.UploadConfig{
			Dir:                v.GetString("upload.dir"),
			BatchSize:          v.GetInt("upload.batch_size"),
			DelayMs:            v.GetInt64("upload.delay_ms"),
			RateLimitPerSecond: v.GetFloat64("upload.rate_limit_per_second"),
		},
		Retry: models.RetryConfig{
			MaxRetries:        v.GetInt("retry.max_retries"),
			BackoffFactorMs:   v.GetInt64("retry.backoff_factor_ms"),
			MaxBackoffMs:      v.GetInt64("retry.max_backoff_ms"),
			RetryableStatuses: v.GetIntSlice("retry.retryable_statuses"),
			RetryableMethods:  v.GetStringSlice("retry.retryable_methods"),
		},
		Timeouts: models.TimeoutConfig{
			ReadSeconds:   v.GetInt("timeouts.read_seconds"),
			UploadSeconds: v.GetInt("timeouts.upload_seconds"),
		},
		LogLevel: v.GetString("log_level"),
	}

	if missing := config.Server.MissingCredentials(); len(missing) > 0 {
		return nil, lib.ErrMissingCredentials(missing)
	}

	if err := config.Validate(); err != nil {
		return nil, lib.ErrInvalidConfig(err)
	}

	return &config, nil
}

func setDefaults(v *viper.Viper) {
	defaults := models.DefaultConfig()

	v.SetDefault("server.scheme", defaults.Server.Scheme)
	v.SetDefault("upload.dir", defaults.Upload.Dir)
	v.SetDefault("upload.batch_size", defaults.Upload.BatchSize)
	v.SetDefault("upload.delay_ms", defaults.Upload.DelayMs)
	v.SetDefault("upload.rate_limit_per_second", defaults.Upload.RateLimitPerSecond)
	v.SetDefault("retry.max_retries", defaults.Retry.MaxRetries)
	v.SetDefault("retry.backoff_factor_ms", defaults.Retry.BackoffFactorMs)
	v.SetDefault("retry.max_backoff_ms", defaults.Retry.MaxBackoffMs)
	v.SetDefault("retry.retryable_statuses", defaults.Retry.RetryableStatuses)
	v.SetDefault("retry.retryable_methods", defaults.Retry.RetryableMethods)
	v.SetDefault("timeouts.read_seconds", defaults.Timeouts.ReadSeconds)
	v.SetDefault("timeouts.upload_seconds", defaults.Timeouts.UploadSeconds)
	v.SetDefault("log_level", defaults.LogLevel)
}
