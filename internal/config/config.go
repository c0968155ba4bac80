// Package config provides configuration management for the Hygieia health engine.
// It handles loading and validation of environment variables and configuration settings.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// Default configuration values
const (
	DefaultPort                 = "8080"
	DefaultLogLevel             = "info"
	DefaultDatabasePath         = "hygieia.db"
	DefaultCheckIntervalMinutes = 5
	DefaultWorkerPoolSize       = 4
	DefaultJobQueueSize         = 64
	DefaultNotifyRateLimit      = 5
	DefaultNotifyBurst          = 10
	DefaultTimezone             = "Local"
	DefaultSMTPPort             = 587

	maxCheckIntervalMinutes = 1440
)

// Config holds all configuration for the application
type Config struct {
	Port                 string
	DatabasePath         string
	LogLevel             string
	CheckIntervalMinutes int
	WorkerPoolSize       int
	JobQueueSize         int
	Timezone             string

	// Notification delivery
	NotifyRateLimit int // sends per second across all channels
	NotifyBurst     int
	SMTPHost        string
	SMTPPort        int
	SMTPFrom        string
	SMTPTo          []string
	SMTPUsername    string
	SMTPPassword    string
	SMSGatewayURL   string
	PushGatewayURL  string

	// Observability
	OTLPEndpoint   string
	TracingConsole bool
}

// Load loads configuration from environment variables
func Load() (*Config, error) {
	// Load .env file if it exists
	if err := godotenv.Load(); err != nil {
		// It's okay if .env file doesn't exist - we'll use environment variables
		_ = err // explicitly ignore the error
	}

	cfg := &Config{
		Port:                 getEnv("PORT", DefaultPort),
		DatabasePath:         getEnv("DATABASE_PATH", DefaultDatabasePath),
		LogLevel:             getEnv("LOG_LEVEL", DefaultLogLevel),
		CheckIntervalMinutes: parseIntEnv("CHECK_INTERVAL_MINUTES", DefaultCheckIntervalMinutes),
		WorkerPoolSize:       parseIntEnv("WORKER_POOL_SIZE", DefaultWorkerPoolSize),
		JobQueueSize:         parseIntEnv("JOB_QUEUE_SIZE", DefaultJobQueueSize),
		Timezone:             getEnv("TIMEZONE", DefaultTimezone),
		NotifyRateLimit:      parseIntEnv("NOTIFY_RATE_LIMIT", DefaultNotifyRateLimit),
		NotifyBurst:          parseIntEnv("NOTIFY_BURST", DefaultNotifyBurst),
		SMTPHost:             getEnv("SMTP_HOST", ""),
		SMTPPort:             parseIntEnv("SMTP_PORT", DefaultSMTPPort),
		SMTPFrom:             getEnv("SMTP_FROM", ""),
		SMTPTo:               parseCSVEnv("SMTP_TO"),
		SMTPUsername:         getEnv("SMTP_USERNAME", ""),
		SMTPPassword:         getEnv("SMTP_PASSWORD", ""),
		SMSGatewayURL:        getEnv("SMS_GATEWAY_URL", ""),
		PushGatewayURL:       getEnv("PUSH_GATEWAY_URL", ""),
		OTLPEndpoint:         getEnv("OTLP_ENDPOINT", ""),
		TracingConsole:       parseBoolEnv("TRACING_CONSOLE", false),
	}

	// Validate required fields
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// validate checks if all configuration fields are consistent
func (c *Config) validate() error {
	if c.DatabasePath == "" {
		return fmt.Errorf("DATABASE_PATH is required")
	}

	// Validate port is a valid number
	if _, err := strconv.Atoi(c.Port); err != nil {
		return fmt.Errorf("PORT must be a valid number: %w", err)
	}

	if c.CheckIntervalMinutes < 1 || c.CheckIntervalMinutes > maxCheckIntervalMinutes {
		return fmt.Errorf("CHECK_INTERVAL_MINUTES must be between 1 and %d", maxCheckIntervalMinutes)
	}

	if c.WorkerPoolSize < 1 {
		return fmt.Errorf("WORKER_POOL_SIZE must be at least 1")
	}

	if c.JobQueueSize < 1 {
		return fmt.Errorf("JOB_QUEUE_SIZE must be at least 1")
	}

	if c.NotifyRateLimit < 1 {
		return fmt.Errorf("NOTIFY_RATE_LIMIT must be at least 1")
	}

	return nil
}

// EmailConfigured reports whether the SMTP channel has the fields it needs
func (c *Config) EmailConfigured() bool {
	return c.SMTPHost != "" && c.SMTPFrom != "" && len(c.SMTPTo) > 0
}

// getEnv gets an environment variable with a fallback value
func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

// parseIntEnv parses an integer environment variable with a fallback value
func parseIntEnv(key string, fallback int) int {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return fallback
}

// parseBoolEnv parses a boolean environment variable with a fallback value
func parseBoolEnv(key string, fallback bool) bool {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseBool(value); err == nil {
			return parsed
		}
	}
	return fallback
}

// parseCSVEnv parses a comma-separated environment variable into a string slice
func parseCSVEnv(key string) []string {
	value := os.Getenv(key)
	if value == "" {
		return nil
	}

	parts := strings.Split(value, ",")
	result := make([]string, 0, len(parts))
	for _, part := range parts {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			result = append(result, trimmed)
		}
	}

	if len(result) == 0 {
		return nil
	}
	return result
}
