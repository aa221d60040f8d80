package config

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"invoicesync/internal/logger"
)

type Config struct {
	// Remote store
	StoreURL         string // Collection base URL, e.g. https://<db>.firebaseio.com/invoices
	StoreAuthToken   string // Optional database secret or ID token, sent as ?auth=
	StoreUseOAuth    bool   // Authenticate with the Google service account instead
	HTTPTimeout      time.Duration
	FetchMaxAttempts int
	FetchBaseDelay   time.Duration
	SanitizeWorkers  int

	// Session
	UserEmail   string
	AdminEmails []string

	// Google Sheets export
	GoogleSheetURL       string
	GoogleSheetWorksheet string

	// Logging Configuration
	LogLevel      string
	LogFormat     string
	LogTimeFormat string
	LogOutput     string
}

func Load() (*Config, error) {
	config := &Config{
		StoreURL:             strings.TrimRight(getEnv("INVOICE_STORE_URL", ""), "/"),
		StoreAuthToken:       getEnv("FIREBASE_AUTH_TOKEN", ""),
		StoreUseOAuth:        getEnv("STORE_USE_OAUTH", "false") == "true",
		HTTPTimeout:          time.Duration(getEnvInt("HTTP_TIMEOUT_SECONDS", 30)) * time.Second,
		FetchMaxAttempts:     getEnvInt("FETCH_MAX_ATTEMPTS", 5),
		FetchBaseDelay:       time.Duration(getEnvInt("FETCH_BASE_DELAY_MS", 1000)) * time.Millisecond,
		SanitizeWorkers:      getEnvInt("SANITIZE_CONCURRENCY", 8),
		UserEmail:            getEnv("INVOICE_USER_EMAIL", ""),
		AdminEmails:          splitList(getEnv("ADMIN_EMAILS", "")),
		GoogleSheetURL:       getEnv("GOOGLE_SHEET_URL", ""),
		GoogleSheetWorksheet: getEnv("GOOGLE_SHEET_WORKSHEET", "Invoices"),
		LogLevel:             getEnv("LOG_LEVEL", "info"),
		LogFormat:            getEnv("LOG_FORMAT", "console"),
		LogTimeFormat:        getEnv("LOG_TIME_FORMAT", "2006-01-02T15:04:05Z07:00"),
		LogOutput:            getEnv("LOG_OUTPUT", "stderr"),
	}

	if err := config.validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return config, nil
}

func (c *Config) validate() error {
	if c.StoreURL == "" {
		return fmt.Errorf("INVOICE_STORE_URL is required")
	}
	u, err := url.Parse(c.StoreURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("INVOICE_STORE_URL must be an http(s) URL, got %q", c.StoreURL)
	}
	if strings.HasSuffix(c.StoreURL, ".json") {
		return fmt.Errorf("INVOICE_STORE_URL must not include the .json suffix")
	}
	if c.FetchMaxAttempts < 1 {
		return fmt.Errorf("FETCH_MAX_ATTEMPTS must be at least 1")
	}
	if c.FetchBaseDelay < 0 {
		return fmt.Errorf("FETCH_BASE_DELAY_MS must not be negative")
	}
	if c.SanitizeWorkers < 1 {
		return fmt.Errorf("SANITIZE_CONCURRENCY must be at least 1")
	}
	if c.HTTPTimeout <= 0 {
		return fmt.Errorf("HTTP_TIMEOUT_SECONDS must be positive")
	}
	return nil
}

// GetLoggerConfig returns a logger configuration from the main config
func (c *Config) GetLoggerConfig() logger.LogConfig {
	return logger.LogConfig{
		Level:      c.LogLevel,
		Format:     c.LogFormat,
		TimeFormat: c.LogTimeFormat,
		Output:     c.LogOutput,
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvInt falls back to the default for unset or non-numeric values.
func getEnvInt(key string, defaultValue int) int {
	value, err := strconv.Atoi(getEnv(key, ""))
	if err != nil {
		return defaultValue
	}
	return value
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
