// Package config reads service settings from the environment.
package config

import (
	"fmt"
	"os"
	"runtime"
	"strconv"
	"time"

	"github.com/meikuraledutech/rbd"
)

type Config struct {
	DatabaseURL string // DATABASE_URL (optional, empty = in-memory store)
	HTTPAddr    string // RBD_HTTP_ADDR (default ":3000")
	DBMaxConns  int32  // RBD_DB_MAX_CONNS (default 10)

	// Analysis settings
	Workers         int           // RBD_WORKERS (default runtime.NumCPU())
	MaxComponents   int           // RBD_MAX_COMPONENTS (default 32, at most 63)
	AnalysisTimeout time.Duration // RBD_ANALYSIS_TIMEOUT (default 30s; 0 = none)
	Mode            rbd.Mode      // RBD_MODE (default "exact")

	// Logging
	LogLevel  string // RBD_LOG_LEVEL (default "info")
	LogFormat string // RBD_LOG_FORMAT (default "json")
}

func Load() (*Config, error) {
	c := &Config{
		DatabaseURL: os.Getenv("DATABASE_URL"),
		HTTPAddr:    envOrDefault("RBD_HTTP_ADDR", ":3000"),
		LogLevel:    envOrDefault("RBD_LOG_LEVEL", "info"),
		LogFormat:   envOrDefault("RBD_LOG_FORMAT", "json"),
	}

	var err error
	if c.Workers, err = intEnv("RBD_WORKERS", runtime.NumCPU()); err != nil {
		return nil, err
	}
	if c.Workers < 1 {
		return nil, fmt.Errorf("RBD_WORKERS: must be at least 1, got %d", c.Workers)
	}

	if c.MaxComponents, err = intEnv("RBD_MAX_COMPONENTS", 32); err != nil {
		return nil, err
	}
	if c.MaxComponents < 1 || c.MaxComponents > 63 {
		return nil, fmt.Errorf("RBD_MAX_COMPONENTS: must be within [1, 63], got %d", c.MaxComponents)
	}

	maxConns, err := intEnv("RBD_DB_MAX_CONNS", 10)
	if err != nil {
		return nil, err
	}
	if maxConns < 1 {
		return nil, fmt.Errorf("RBD_DB_MAX_CONNS: must be at least 1, got %d", maxConns)
	}
	c.DBMaxConns = int32(maxConns)

	c.AnalysisTimeout, err = time.ParseDuration(envOrDefault("RBD_ANALYSIS_TIMEOUT", "30s"))
	if err != nil {
		return nil, fmt.Errorf("RBD_ANALYSIS_TIMEOUT: %w", err)
	}

	if c.Mode, err = rbd.ParseMode(envOrDefault("RBD_MODE", string(rbd.ModeExact))); err != nil {
		return nil, fmt.Errorf("RBD_MODE: %w", err)
	}

	switch c.LogFormat {
	case "json", "text":
	default:
		return nil, fmt.Errorf("RBD_LOG_FORMAT: want json or text, got %q", c.LogFormat)
	}

	return c, nil
}

// AnalyzerOptions turns the analysis settings into rbd.Analyzer options.
func (c *Config) AnalyzerOptions() []rbd.Option {
	return []rbd.Option{
		rbd.WithWorkers(c.Workers),
		rbd.WithMaxComponents(c.MaxComponents),
		rbd.WithTimeout(c.AnalysisTimeout),
		rbd.WithMode(c.Mode),
	}
}

func envOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func intEnv(key string, fallback int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return n, nil
}
