/**
 * Configuration for the extraction service.
 *
 * Loads configuration from environment variables with sensible defaults.
 */

package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

// Config holds service configuration.
type Config struct {
	// HTTP server
	Host            string
	Port            int
	RequestTimeout  time.Duration
	ShutdownTimeout time.Duration

	// Upload handling
	MaxUploadSize      int64
	AcceptedMediaTypes []string

	// Rasterization
	RasterTool string
	RasterDPI  int

	// OCR
	OCRLanguages []string

	// Temporary artifact storage
	TempDir string

	// Logging
	LogLevel  string
	LogFormat string
}

// Load loads configuration from environment variables.
func Load() (*Config, error) {
	cfg := &Config{
		Host:               getEnvOrDefault("HOST", "0.0.0.0"),
		Port:               getEnvAsIntOrDefault("PORT", 8080),
		RequestTimeout:     getEnvAsDurationMs("REQUEST_TIMEOUT_MS", 120000),
		ShutdownTimeout:    getEnvAsDurationMs("SHUTDOWN_TIMEOUT_MS", 10000),
		MaxUploadSize:      getEnvAsInt64OrDefault("MAX_UPLOAD_SIZE", 10*1024*1024), // 10 MiB
		AcceptedMediaTypes: getEnvAsCSV("ACCEPTED_MEDIA_TYPES", "application/pdf,image/jpeg,image/png"),
		RasterTool:         getEnvOrDefault("RASTER_TOOL", "pdftoppm"),
		RasterDPI:          getEnvAsIntOrDefault("RASTER_DPI", 150),
		OCRLanguages:       getEnvAsCSV("OCR_LANGUAGES", "eng"),
		TempDir:            getEnvOrDefault("TEMP_DIR", filepath.Join(os.TempDir(), "extract-service")),
		LogLevel:           getEnvOrDefault("LOG_LEVEL", "info"),
		LogFormat:          getEnvOrDefault("LOG_FORMAT", "json"),
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// Validate checks if configuration is valid.
func (c *Config) Validate() error {
	if c.Port < 1 || c.Port > 65535 {
		return fmt.Errorf("PORT must be between 1 and 65535, got %d", c.Port)
	}

	if c.MaxUploadSize < 1024 || c.MaxUploadSize > 100*1024*1024 { // 1KB to 100MB
		return fmt.Errorf("MAX_UPLOAD_SIZE must be between 1KB and 100MB, got %d", c.MaxUploadSize)
	}

	if len(c.AcceptedMediaTypes) == 0 {
		return fmt.Errorf("ACCEPTED_MEDIA_TYPES must not be empty")
	}

	if c.RasterTool == "" {
		return fmt.Errorf("RASTER_TOOL is required")
	}

	if c.RasterDPI < 72 || c.RasterDPI > 600 {
		return fmt.Errorf("RASTER_DPI must be between 72 and 600, got %d", c.RasterDPI)
	}

	if len(c.OCRLanguages) == 0 {
		return fmt.Errorf("OCR_LANGUAGES must not be empty")
	}

	if c.RequestTimeout <= 0 {
		return fmt.Errorf("REQUEST_TIMEOUT_MS must be positive")
	}

	return nil
}

// Accepts reports whether the declared media type is on the allow-list.
func (c *Config) Accepts(mediaType string) bool {
	for _, mt := range c.AcceptedMediaTypes {
		if mt == mediaType {
			return true
		}
	}
	return false
}

// getEnvOrDefault gets environment variable or returns default.
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvAsIntOrDefault gets environment variable as int or returns default.
func getEnvAsIntOrDefault(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}

	return value
}

// getEnvAsInt64OrDefault gets environment variable as int64 or returns default.
func getEnvAsInt64OrDefault(key string, defaultValue int64) int64 {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.ParseInt(valueStr, 10, 64)
	if err != nil {
		return defaultValue
	}

	return value
}

// getEnvAsDurationMs gets environment variable as a millisecond duration.
func getEnvAsDurationMs(key string, defaultMs int) time.Duration {
	return time.Duration(getEnvAsIntOrDefault(key, defaultMs)) * time.Millisecond
}

// getEnvAsCSV gets environment variable as a comma-separated list.
func getEnvAsCSV(key, defaultValue string) []string {
	raw := getEnvOrDefault(key, defaultValue)
	parts := strings.Split(raw, ",")
	values := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			values = append(values, trimmed)
		}
	}
	return values
}
