// Package config provides configuration loading and validation for the API server.
// It uses koanf to merge environment variables with optional file overrides.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// Config holds all configuration values for the API server.
type Config struct {
	// Server settings
	Port int    `koanf:"port"`
	Env  string `koanf:"env"`

	// Database. Empty means the in-memory store is used.
	DatabaseURL string `koanf:"database_url"`

	// Redis for seen-post tracking. Empty means the in-memory tracker is used.
	RedisAddr string `koanf:"redis_addr"`

	// News API (external out-of-network source)
	NewsAPIKey   string `koanf:"news_api_key"`
	NewsCategory string `koanf:"news_category"`
	NewsCountry  string `koanf:"news_country"`

	// CalibrationPath points to an optional JSON file overriding action
	// weights in the scorer.
	CalibrationPath string `koanf:"calibration_path"`

	// CORS
	CORSAllowedOrigins []string `koanf:"cors_allowed_origins"`

	// Tracing
	TracingEnabled      bool    `koanf:"tracing_enabled"`
	TracingExporter     string  `koanf:"tracing_exporter"`
	TracingOTLPEndpoint string  `koanf:"tracing_otlp_endpoint"`
	TracingSamplingRate float64 `koanf:"tracing_sampling_rate"`
	TracingInsecure     bool    `koanf:"tracing_insecure"`
}

// Configuration validation errors.
var (
	ErrInvalidPort         = errors.New("PORT must be a valid integer")
	ErrInvalidSamplingRate = errors.New("TRACING_SAMPLING_RATE must be between 0.0 and 1.0")
)

// Default values for non-secret configuration.
const (
	DefaultPort            = 8000
	DefaultEnv             = "development"
	DefaultNewsCategory    = "technology"
	DefaultNewsCountry     = "us"
	DefaultTracingExporter = "otlp-http"
	DefaultSamplingRate    = 0.1
)

// Load reads configuration from environment variables and an optional config file.
// Environment variables take precedence over file values.
// Returns the loaded config and a slice of validation errors (empty if valid).
// If a config file path is provided and the file cannot be loaded, an error is returned.
func Load(configFilePath string) (*Config, []error) {
	k := koanf.New(".")
	var loadErrs []error

	// Load from YAML file first if provided (lower precedence)
	if configFilePath != "" {
		if err := k.Load(file.Provider(configFilePath), yaml.Parser()); err != nil {
			return nil, []error{fmt.Errorf("failed to load config file %s: %w", configFilePath, err)}
		}
	}

	port, portErr := getEnvIntOrDefaultMulti([]string{"FORYOU_PORT", "PORT"}, k.Int("port"), DefaultPort)
	if portErr != nil {
		loadErrs = append(loadErrs, portErr)
	}

	samplingRate, rateErr := getEnvFloatOrDefault("TRACING_SAMPLING_RATE", k.Float64("tracing_sampling_rate"), DefaultSamplingRate)
	if rateErr != nil {
		loadErrs = append(loadErrs, rateErr)
	}

	// Build config struct, with env vars taking precedence over file values
	cfg := &Config{
		Port:                port,
		Env:                 getEnvOrDefaultMulti([]string{"FORYOU_ENV", "ENV", "GO_ENV"}, k.String("env"), DefaultEnv),
		DatabaseURL:         getEnvOrKoanf("DATABASE_URL", k, "database_url"),
		RedisAddr:           getEnvOrKoanf("REDIS_ADDR", k, "redis_addr"),
		NewsAPIKey:          getEnvOrKoanf("NEWS_API_KEY", k, "news_api_key"),
		NewsCategory:        getEnvOrDefault("NEWS_CATEGORY", k.String("news_category"), DefaultNewsCategory),
		NewsCountry:         getEnvOrDefault("NEWS_COUNTRY", k.String("news_country"), DefaultNewsCountry),
		CalibrationPath:     getEnvOrKoanf("CALIBRATION_PATH", k, "calibration_path"),
		CORSAllowedOrigins:  getEnvListOrKoanf("CORS_ALLOWED_ORIGINS", k, "cors_allowed_origins"),
		TracingEnabled:      getEnvBoolOrKoanf("TRACING_ENABLED", k, "tracing_enabled"),
		TracingExporter:     getEnvOrDefault("TRACING_EXPORTER", k.String("tracing_exporter"), DefaultTracingExporter),
		TracingOTLPEndpoint: getEnvOrKoanf("TRACING_OTLP_ENDPOINT", k, "tracing_otlp_endpoint"),
		TracingSamplingRate: samplingRate,
		TracingInsecure:     getEnvBoolOrKoanf("TRACING_INSECURE", k, "tracing_insecure"),
	}

	errs := cfg.Validate()
	errs = append(loadErrs, errs...)

	return cfg, errs
}

// getEnvOrKoanf returns the environment variable value if set, otherwise the koanf value.
func getEnvOrKoanf(envKey string, k *koanf.Koanf, koanfKey string) string {
	if val := os.Getenv(envKey); val != "" {
		return val
	}
	return k.String(koanfKey)
}

// getEnvOrDefault returns the environment variable value if set, otherwise the koanf value, or default.
func getEnvOrDefault(envKey string, koanfVal string, defaultVal string) string {
	if val := os.Getenv(envKey); val != "" {
		return val
	}
	if koanfVal != "" {
		return koanfVal
	}
	return defaultVal
}

// getEnvOrDefaultMulti tries multiple environment variable keys in order.
// Returns the first non-empty value found, otherwise the koanf value, or default.
func getEnvOrDefaultMulti(envKeys []string, koanfVal string, defaultVal string) string {
	for _, key := range envKeys {
		if val := os.Getenv(key); val != "" {
			return val
		}
	}
	if koanfVal != "" {
		return koanfVal
	}
	return defaultVal
}

// getEnvListOrKoanf returns a comma-separated environment variable as a slice,
// otherwise the koanf string slice.
func getEnvListOrKoanf(envKey string, k *koanf.Koanf, koanfKey string) []string {
	if val := os.Getenv(envKey); val != "" {
		parts := strings.Split(val, ",")
		out := make([]string, 0, len(parts))
		for _, p := range parts {
			if trimmed := strings.TrimSpace(p); trimmed != "" {
				out = append(out, trimmed)
			}
		}
		return out
	}
	return k.Strings(koanfKey)
}

// getEnvBoolOrKoanf returns the environment variable as bool if set, otherwise the koanf value.
// Unrecognized env values are treated as false.
func getEnvBoolOrKoanf(envKey string, k *koanf.Koanf, koanfKey string) bool {
	if val := os.Getenv(envKey); val != "" {
		switch strings.ToLower(val) {
		case "true", "1", "yes", "on":
			return true
		case "false", "0", "no", "off":
			return false
		}
	}
	return k.Bool(koanfKey)
}

// getEnvIntOrDefaultMulti tries multiple environment variable keys in order.
// Returns the first valid integer value found, otherwise the koanf value, or default.
// Returns an error if any environment variable is set but cannot be parsed as an integer.
func getEnvIntOrDefaultMulti(envKeys []string, koanfVal int, defaultVal int) (int, error) {
	for _, key := range envKeys {
		if val := os.Getenv(key); val != "" {
			i, err := strconv.Atoi(val)
			if err != nil {
				return 0, fmt.Errorf("%s must be a valid integer: %w", key, ErrInvalidPort)
			}
			return i, nil
		}
	}
	if koanfVal != 0 {
		return koanfVal, nil
	}
	return defaultVal, nil
}

// getEnvFloatOrDefault returns the environment variable as float64 if set, otherwise the koanf value, or default.
// Returns an error if the environment variable is set but cannot be parsed as a float.
func getEnvFloatOrDefault(envKey string, koanfVal float64, defaultVal float64) (float64, error) {
	if val := os.Getenv(envKey); val != "" {
		f, err := strconv.ParseFloat(val, 64)
		if err != nil {
			return 0, fmt.Errorf("%s must be a valid float: %w", envKey, err)
		}
		return f, nil
	}
	if koanfVal != 0 {
		return koanfVal, nil
	}
	return defaultVal, nil
}

// Validate checks configuration values for consistency.
// Returns a slice of validation errors (empty if valid).
func (c *Config) Validate() []error {
	var errs []error

	if c.Port <= 0 || c.Port > 65535 {
		errs = append(errs, ErrInvalidPort)
	}
	if c.TracingSamplingRate < 0.0 || c.TracingSamplingRate > 1.0 {
		errs = append(errs, ErrInvalidSamplingRate)
	}

	return errs
}

// LogSummary returns a summary of the configuration suitable for logging.
// All secrets are masked to prevent accidental exposure.
func (c *Config) LogSummary() map[string]string {
	return map[string]string{
		"port":                  fmt.Sprintf("%d", c.Port),
		"env":                   c.Env,
		"database_url":          maskDatabaseURL(c.DatabaseURL),
		"redis_addr":            valueOrNotSet(c.RedisAddr),
		"news_api_key":          maskSecret(c.NewsAPIKey),
		"news_category":         c.NewsCategory,
		"news_country":          c.NewsCountry,
		"calibration_path":      valueOrNotSet(c.CalibrationPath),
		"cors_allowed_origins":  strings.Join(c.CORSAllowedOrigins, ","),
		"tracing_enabled":       fmt.Sprintf("%t", c.TracingEnabled),
		"tracing_exporter":      c.TracingExporter,
		"tracing_otlp_endpoint": valueOrNotSet(c.TracingOTLPEndpoint),
		"tracing_sampling_rate": fmt.Sprintf("%g", c.TracingSamplingRate),
	}
}

func valueOrNotSet(s string) string {
	if s == "" {
		return "<not set>"
	}
	return s
}

// maskSecret masks a secret value, showing only the first 4 characters followed by ****
// If the secret is shorter than 8 characters, it's fully masked.
func maskSecret(s string) string {
	if s == "" {
		return "<not set>"
	}
	if len(s) < 8 {
		return "****"
	}
	return s[:4] + "****"
}

// maskDatabaseURL masks the password in a database URL.
// Supports both postgres:// and postgresql:// schemes.
func maskDatabaseURL(s string) string {
	if s == "" {
		return "<not set>"
	}

	schemeEnd := strings.Index(s, "://")
	if schemeEnd == -1 {
		return maskSecret(s)
	}

	rest := s[schemeEnd+3:]
	atIndex := strings.Index(rest, "@")
	if atIndex == -1 {
		return s // No credentials in URL
	}

	colonIndex := strings.Index(rest[:atIndex], ":")
	if colonIndex == -1 {
		return s // No password (only username)
	}

	scheme := s[:schemeEnd+3]
	user := rest[:colonIndex]
	hostAndPath := rest[atIndex:]

	return scheme + user + ":****" + hostAndPath
}
