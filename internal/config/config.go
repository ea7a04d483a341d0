package config

import (
	"io"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"
)

const (
	defaultListenAddr    = ":8080"
	defaultPollingPeriod = 30 * time.Second
	defaultRetryLimit    = 3

	envListenAddr     = "BRICKRUN_LISTEN_ADDR"
	envLogLevel       = "BRICKRUN_LOG_LEVEL"
	envDatabricksHost = "BRICKRUN_DATABRICKS_HOST"
	envDatabricksTok  = "BRICKRUN_DATABRICKS_TOKEN"
	envPollingPeriodS = "BRICKRUN_POLLING_PERIOD_S"
	envRetryLimit     = "BRICKRUN_RETRY_LIMIT"
)

// Config holds application configuration loaded from environment variables.
type Config struct {
	ListenAddr     string
	LogLevel       slog.Level
	DatabricksHost string
	DatabricksTok  string
	PollingPeriod  time.Duration
	RetryLimit     int
}

// Load reads configuration from environment variables with sensible defaults.
func Load() Config {
	cfg := Config{
		ListenAddr:    defaultListenAddr,
		LogLevel:      slog.LevelInfo,
		PollingPeriod: defaultPollingPeriod,
		RetryLimit:    defaultRetryLimit,
	}

	if v := os.Getenv(envListenAddr); v != "" {
		cfg.ListenAddr = v
	}
	if v := os.Getenv(envLogLevel); v != "" {
		cfg.LogLevel = parseLogLevel(v)
	}
	cfg.DatabricksHost = os.Getenv(envDatabricksHost)
	cfg.DatabricksTok = os.Getenv(envDatabricksTok)

	if v := os.Getenv(envPollingPeriodS); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.PollingPeriod = time.Duration(n) * time.Second
		}
	}
	if v := os.Getenv(envRetryLimit); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.RetryLimit = n
		}
	}

	return cfg
}

func parseLogLevel(s string) slog.Level {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// NewLogger creates a structured JSON logger writing to w at the configured level.
func NewLogger(w io.Writer, level slog.Level) *slog.Logger {
	return slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{
		Level: level,
	}))
}
