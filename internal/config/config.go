package config

import (
	"os"
	"strconv"

	"gotriangle/internal"
	"gotriangle/internal/errors"

	"github.com/go-playground/validator/v10"
)

// Config represents the complete application configuration
type Config struct {
	Analysis AnalysisConfig
	Server   ServerConfig
	Database DatabaseConfig
	Log      LogConfig
}

// AnalysisConfig holds triangle analysis defaults
type AnalysisConfig struct {
	Metric            string  `validate:"required"`
	OutlierZThreshold float64 `validate:"gte=0"`
	Workers           int     `validate:"gte=1,lte=64"`
	Sheet             string
}

// ServerConfig holds HTTP server settings
type ServerConfig struct {
	Port           string `validate:"required,numeric"`
	GinMode        string `validate:"oneof=debug release test"`
	MaxUploadBytes int64  `validate:"gt=0"`
	DataDir        string // root for csv_path lookups; empty disables them
}

// DatabaseConfig holds the optional PostgreSQL source settings
type DatabaseConfig struct {
	URL string `validate:"omitempty,url"`
}

// LogConfig holds logging settings
type LogConfig struct {
	Level string `validate:"oneof=ERROR WARN INFO DEBUG TRACE"`
}

var validate = validator.New()

// Load reads configuration from environment variables and validates it
func Load() (*Config, error) {
	config := &Config{
		Analysis: loadAnalysisConfig(),
		Server:   loadServerConfig(),
		Database: DatabaseConfig{URL: os.Getenv("DATABASE_URL")},
		Log:      LogConfig{Level: internal.NormalizeLogLevel(getEnvOrDefault("LOG_LEVEL", "INFO"))},
	}

	if err := Validate(config); err != nil {
		return nil, err
	}
	return config, nil
}

// Validate checks every field constraint of the configuration
func Validate(config *Config) error {
	if err := validate.Struct(config); err != nil {
		return errors.WithCode(errors.CodeConfigInvalid, errors.Wrap(err, "configuration validation failed"))
	}
	return nil
}

func loadAnalysisConfig() AnalysisConfig {
	return AnalysisConfig{
		Metric:            getEnvOrDefault("TRIANGLE_METRIC", "paid"),
		OutlierZThreshold: getEnvFloatOrDefault("TRIANGLE_OUTLIER_Z", 2.5),
		Workers:           getEnvIntOrDefault("TRIANGLE_WORKERS", 1),
		Sheet:             getEnvOrDefault("TRIANGLE_SHEET", ""),
	}
}

func loadServerConfig() ServerConfig {
	return ServerConfig{
		Port:           getEnvOrDefault("PORT", "8080"),
		GinMode:        getEnvOrDefault("GIN_MODE", "release"),
		MaxUploadBytes: int64(getEnvIntOrDefault("MAX_UPLOAD_BYTES", 32<<20)),
		DataDir:        getEnvOrDefault("DATA_DIR", ""),
	}
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
