package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/ncruces/go-strftime"
)

var validBackends = []string{"memory", "sqlite"}

var validLogLevels = []string{"debug", "info", "warn", "error"}

type Config struct {
	// HTTP Server
	Port            string
	ShutdownTimeout time.Duration

	// Backend selection
	DataBackend string

	// Database
	SQLiteDBPath string

	// Memory backend seed
	SeedFile string

	// AMQP
	AMQPURL      string
	AMQPExchange string
	AMQPQueue    string

	// Export worker
	ExportPath     string
	ExportInterval time.Duration

	// Observability
	LogLevel         string
	MetricsNamespace string

	// CSV import defaults
	ImportDelimiter  string
	ImportThousands  string
	ImportDecimal    string
	ImportDateFormat string
}

func Load() *Config {
	cfg := &Config{
		Port:            getEnv("PORT", "8081"),
		ShutdownTimeout: getEnvDuration("SHUTDOWN_TIMEOUT", 10*time.Second),

		DataBackend:  getEnv("DATA_BACKEND", "memory"),
		SQLiteDBPath: getEnv("SQLITE_DB_PATH", "./data/mone.db"),
		SeedFile:     getEnv("SEED_FILE", "./data/seed.yaml"),

		AMQPURL:      getEnv("AMQP_URL", ""),
		AMQPExchange: getEnv("AMQP_EXCHANGE", "mone"),
		AMQPQueue:    getEnv("AMQP_QUEUE", "ledger_events"),

		ExportPath:     getEnv("EXPORT_PATH", "./data/export.yaml"),
		ExportInterval: getEnvDuration("EXPORT_INTERVAL", time.Hour),

		LogLevel:         strings.ToLower(getEnv("LOG_LEVEL", "info")),
		MetricsNamespace: getEnv("METRICS_NAMESPACE", "mone"),

		ImportDelimiter:  getEnv("IMPORT_DELIMITER", ","),
		ImportThousands:  os.Getenv("IMPORT_THOUSANDS"),
		ImportDecimal:    getEnv("IMPORT_DECIMAL", "."),
		ImportDateFormat: getEnv("IMPORT_DATE_FORMAT", "%Y-%m-%d"),
	}

	return cfg
}

// Validate validates the configuration and returns an error if invalid
func (c *Config) Validate() error {
	var errors []string

	// Validate port
	if port, err := strconv.Atoi(c.Port); err != nil {
		errors = append(errors, fmt.Sprintf("invalid port '%s': must be a number", c.Port))
	} else if port < 1 || port > 65535 {
		errors = append(errors, fmt.Sprintf("invalid port %d: must be between 1 and 65535", port))
	}

	if c.ShutdownTimeout < time.Second {
		errors = append(errors, fmt.Sprintf("invalid shutdown timeout %v: must be at least 1 second", c.ShutdownTimeout))
	}

	if !slices.Contains(validBackends, c.DataBackend) {
		errors = append(errors, fmt.Sprintf("invalid data backend '%s': must be one of %v", c.DataBackend, validBackends))
	}

	// Validate SQLite configuration if backend is sqlite
	if c.DataBackend == "sqlite" {
		if c.SQLiteDBPath == "" {
			errors = append(errors, "SQLite database path cannot be empty when using sqlite backend")
		} else {
			// Check if directory exists or can be created
			dir := filepath.Dir(c.SQLiteDBPath)
			if dir != "." && dir != "" {
				if _, err := os.Stat(dir); os.IsNotExist(err) {
					if err := os.MkdirAll(dir, 0755); err != nil {
						errors = append(errors, fmt.Sprintf("cannot create SQLite database directory '%s': %v", dir, err))
					}
				}
			}
		}
	}

	// Validate AMQP URL if provided
	if c.AMQPURL != "" {
		if parsedURL, err := url.Parse(c.AMQPURL); err != nil {
			errors = append(errors, fmt.Sprintf("invalid AMQP URL '%s': %v", c.AMQPURL, err))
		} else if parsedURL.Scheme != "amqp" && parsedURL.Scheme != "amqps" {
			errors = append(errors, fmt.Sprintf("invalid AMQP URL scheme '%s': must be 'amqp' or 'amqps'", parsedURL.Scheme))
		}
		if c.AMQPExchange == "" {
			errors = append(errors, "AMQP exchange name cannot be empty when AMQP URL is provided")
		}
		if c.AMQPQueue == "" {
			errors = append(errors, "AMQP queue name cannot be empty when AMQP URL is provided")
		}
	}

	if c.ExportPath == "" {
		errors = append(errors, "export path cannot be empty")
	}
	if c.ExportInterval < 0 {
		errors = append(errors, fmt.Sprintf("invalid export interval %v: must not be negative", c.ExportInterval))
	}

	if !slices.Contains(validLogLevels, c.LogLevel) {
		errors = append(errors, fmt.Sprintf("invalid log level '%s': must be one of %v", c.LogLevel, validLogLevels))
	}

	if c.MetricsNamespace == "" {
		errors = append(errors, "metrics namespace cannot be empty")
	}

	// Validate import defaults
	if utf8.RuneCountInString(c.ImportDelimiter) != 1 {
		errors = append(errors, fmt.Sprintf("invalid import delimiter '%s': must be a single character", c.ImportDelimiter))
	}
	if c.ImportDecimal == "" {
		errors = append(errors, "import decimal separator cannot be empty")
	} else if c.ImportDecimal == c.ImportThousands {
		errors = append(errors, fmt.Sprintf("import decimal and thousands separators must differ, both are '%s'", c.ImportDecimal))
	}
	if _, err := strftime.Layout(c.ImportDateFormat); err != nil {
		errors = append(errors, fmt.Sprintf("invalid import date format '%s': %v", c.ImportDateFormat, err))
	}

	// Return combined errors
	if len(errors) > 0 {
		return fmt.Errorf("configuration validation failed:\n- %s", strings.Join(errors, "\n- "))
	}

	return nil
}

// ImportDelimiterRune returns the configured CSV delimiter.
func (c *Config) ImportDelimiterRune() rune {
	r, _ := utf8.DecodeRuneInString(c.ImportDelimiter)
	if r == utf8.RuneError {
		return ','
	}
	return r
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
