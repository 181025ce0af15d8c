// Package config loads pdfcompress configuration.
//
// Values come from built-in defaults, an optional YAML file and
// PDFCOMPRESS_* environment variables, in increasing order of precedence.
package config

import (
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"go.uber.org/zap/zapcore"
)

// Config holds the complete pdfcompress configuration.
type Config struct {
	Server      ServerConfig      `koanf:"server"`
	Compression CompressionConfig `koanf:"compression"`
	Tool        ToolConfig        `koanf:"tool"`
	Cleanup     CleanupConfig     `koanf:"cleanup"`
	Log         LogConfig         `koanf:"log"`
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Port            int           `koanf:"port"`
	MaxFileSize     int64         `koanf:"max_file_size"`
	ReadTimeout     time.Duration `koanf:"read_timeout"`
	WriteTimeout    time.Duration `koanf:"write_timeout"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout"`

	// RateLimit is compress requests per second per client IP; 0 disables it
	RateLimit float64 `koanf:"rate_limit"`
	RateBurst int     `koanf:"rate_burst"`
}

// CompressionConfig holds pipeline settings.
type CompressionConfig struct {
	ThresholdBytes int64  `koanf:"threshold_bytes"`
	WorkDir        string `koanf:"work_dir"`
	ValidateOutput bool   `koanf:"validate_output"`
}

// ToolConfig locates Ghostscript. An empty Path uses the platform default name.
type ToolConfig struct {
	Path string `koanf:"path"`
}

// CleanupConfig controls the orphan sweep.
type CleanupConfig struct {
	SweepOnStart bool          `koanf:"sweep_on_start"`
	OrphanAge    time.Duration `koanf:"orphan_age"`
}

// LogConfig controls the zap logger.
type LogConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
}

// Validate checks the configuration for values the server cannot run with.
func (c *Config) Validate() error {
	var errs []error

	if c.Server.Port < 1 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Errorf("server.port must be between 1 and 65535, got %d", c.Server.Port))
	}
	if c.Server.MaxFileSize <= 0 {
		errs = append(errs, fmt.Errorf("server.max_file_size must be positive, got %d", c.Server.MaxFileSize))
	}
	if c.Server.WriteTimeout > 0 && c.Server.WriteTimeout < 5*time.Minute {
		// Ghostscript alone may run for five minutes.
		errs = append(errs, fmt.Errorf("server.write_timeout must be at least 5m, got %s", c.Server.WriteTimeout))
	}
	if c.Server.RateLimit < 0 {
		errs = append(errs, fmt.Errorf("server.rate_limit must not be negative, got %v", c.Server.RateLimit))
	}
	if c.Server.RateLimit > 0 && c.Server.RateBurst < 1 {
		errs = append(errs, fmt.Errorf("server.rate_burst must be at least 1 when rate limiting, got %d", c.Server.RateBurst))
	}
	if c.Compression.ThresholdBytes <= 0 {
		errs = append(errs, fmt.Errorf("compression.threshold_bytes must be positive, got %d", c.Compression.ThresholdBytes))
	}
	if c.Compression.WorkDir != "" && !filepath.IsAbs(c.Compression.WorkDir) {
		errs = append(errs, fmt.Errorf("compression.work_dir must be absolute: %s", c.Compression.WorkDir))
	}
	if c.Tool.Path != "" && !filepath.IsAbs(c.Tool.Path) {
		errs = append(errs, fmt.Errorf("tool.path must be absolute: %s", c.Tool.Path))
	}
	if c.Cleanup.OrphanAge <= 0 {
		errs = append(errs, fmt.Errorf("cleanup.orphan_age must be positive, got %s", c.Cleanup.OrphanAge))
	}
	if _, err := zapcore.ParseLevel(c.Log.Level); err != nil {
		errs = append(errs, fmt.Errorf("log.level: %w", err))
	}
	if c.Log.Format != "json" && c.Log.Format != "console" {
		errs = append(errs, fmt.Errorf("log.format must be json or console, got %q", c.Log.Format))
	}

	return errors.Join(errs...)
}
