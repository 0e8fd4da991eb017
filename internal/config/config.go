package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"botscan/internal/errors"

	"github.com/go-playground/validator/v10"
)

// Config represents the complete application configuration
type Config struct {
	Server    ServerConfig    `validate:"required"`
	Remote    RemoteConfig    `validate:"required"`
	Database  DatabaseConfig
	Session   SessionConfig   `validate:"required"`
	Metrics   MetricsConfig
	Profiling ProfilingConfig
	LogLevel  string `validate:"oneof=ERROR WARN INFO DEBUG TRACE"`
}

// ServerConfig holds web server settings
type ServerConfig struct {
	Port    string `validate:"required,numeric"`
	GinMode string `validate:"oneof=debug release test"`
}

// RemoteConfig points at the prediction/report/feedback service
type RemoteConfig struct {
	URL       string        `validate:"required,url"`
	Timeout   time.Duration `validate:"gt=0"`
	RateLimit float64       `validate:"gte=0"`
	Burst     int           `validate:"gte=1"`
}

// DatabaseConfig holds scan history storage settings. An empty URL keeps
// history in memory.
type DatabaseConfig struct {
	URL string
}

// Offline reports whether history is kept in memory only
func (d DatabaseConfig) Offline() bool {
	return d.URL == ""
}

// SessionConfig controls per-client session behavior
type SessionConfig struct {
	NarrationScale float64       `validate:"gte=0"`
	NoticeTTL      time.Duration `validate:"gt=0"`
	TTL            time.Duration `validate:"gte=0"`
	SweepInterval  time.Duration `validate:"gt=0"`
}

// MetricsConfig toggles the /metrics endpoint
type MetricsConfig struct {
	Enabled bool
}

// ProfilingConfig holds performance profiling settings
type ProfilingConfig struct {
	Port    string
	Enabled bool
}

// Load reads configuration from environment variables and validates it
func Load() (*Config, error) {
	config := &Config{
		Server:    loadServerConfig(),
		Remote:    loadRemoteConfig(),
		Database:  DatabaseConfig{URL: os.Getenv("DATABASE_URL")},
		Session:   loadSessionConfig(),
		Metrics:   MetricsConfig{Enabled: getEnvBoolOrDefault("METRICS_ENABLED", true)},
		Profiling: loadProfilingConfig(),
		LogLevel:  strings.ToUpper(getEnvOrDefault("LOG_LEVEL", "INFO")),
	}

	if err := validateConfig(config); err != nil {
		return nil, errors.Wrap(err, "configuration validation failed")
	}
	return config, nil
}

func loadServerConfig() ServerConfig {
	return ServerConfig{
		Port:    getEnvOrDefault("PORT", "8080"),
		GinMode: getEnvOrDefault("GIN_MODE", "debug"),
	}
}

func loadRemoteConfig() RemoteConfig {
	return RemoteConfig{
		URL:       getEnvOrDefault("REMOTE_API_URL", "http://localhost:5000/api"),
		Timeout:   getEnvDurationOrDefault("REMOTE_TIMEOUT", 15*time.Second),
		RateLimit: getEnvFloatOrDefault("REMOTE_RATE_LIMIT", 5),
		Burst:     getEnvIntOrDefault("REMOTE_BURST", 5),
	}
}

func loadSessionConfig() SessionConfig {
	return SessionConfig{
		NarrationScale: getEnvFloatOrDefault("NARRATION_SCALE", 1.0),
		NoticeTTL:      getEnvDurationOrDefault("NOTICE_TTL", 5*time.Second),
		TTL:            getEnvDurationOrDefault("SESSION_TTL", 30*time.Minute),
		SweepInterval:  getEnvDurationOrDefault("SESSION_SWEEP_INTERVAL", time.Minute),
	}
}

func loadProfilingConfig() ProfilingConfig {
	return ProfilingConfig{
		Port:    getEnvOrDefault("PPROF_PORT", "6060"),
		Enabled: getEnvBoolOrDefault("PPROF_ENABLED", false),
	}
}

func validateConfig(config *Config) error {
	validate := validator.New()
	if err := validate.Struct(config); err != nil {
		if fieldErrs, ok := err.(validator.ValidationErrors); ok && len(fieldErrs) > 0 {
			fe := fieldErrs[0]
			return errors.ConfigInvalid(fe.Namespace() + " failed " + fe.Tag() + " validation")
		}
		return errors.ConfigInvalid(err.Error())
	}
	return nil
}

// Helper functions for environment variable parsing
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvIntOrDefault(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvFloatOrDefault(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatValue, err := strconv.ParseFloat(value, 64); err == nil {
			return floatValue
		}
	}
	return defaultValue
}

func getEnvBoolOrDefault(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}

func getEnvDurationOrDefault(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}
