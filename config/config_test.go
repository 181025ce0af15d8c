package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0600))
	return path
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, int64(100*1024*1024), cfg.Server.MaxFileSize)
	assert.Equal(t, 6*time.Minute, cfg.Server.WriteTimeout)
	assert.Equal(t, int64(5*1024*1024), cfg.Compression.ThresholdBytes)
	assert.True(t, cfg.Compression.ValidateOutput)
	assert.Empty(t, cfg.Compression.WorkDir)
	assert.Empty(t, cfg.Tool.Path)
	assert.True(t, cfg.Cleanup.SweepOnStart)
	assert.Equal(t, 5*time.Minute, cfg.Cleanup.OrphanAge)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)
}

func TestLoad_YAMLFile(t *testing.T) {
	path := writeConfig(t, `
server:
  port: 9191
compression:
  threshold_bytes: 1048576
  validate_output: false
tool:
  path: /usr/local/bin/gs
log:
  format: console
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 9191, cfg.Server.Port)
	assert.Equal(t, int64(1048576), cfg.Compression.ThresholdBytes)
	assert.False(t, cfg.Compression.ValidateOutput)
	assert.Equal(t, "/usr/local/bin/gs", cfg.Tool.Path)
	assert.Equal(t, "console", cfg.Log.Format)
	assert.Equal(t, "info", cfg.Log.Level, "unset fields keep their defaults")
}

func TestLoad_EnvironmentOverridesFile(t *testing.T) {
	path := writeConfig(t, "server:\n  port: 9191\n")
	t.Setenv("PDFCOMPRESS_SERVER_PORT", "7070")
	t.Setenv("PDFCOMPRESS_COMPRESSION_THRESHOLD_BYTES", "2097152")
	t.Setenv("PDFCOMPRESS_CLEANUP_ORPHAN_AGE", "90s")
	t.Setenv("PDFCOMPRESS_CLEANUP_SWEEP_ON_START", "false")
	t.Setenv("PDFCOMPRESS_LOG_LEVEL", "debug")
	t.Setenv("PDFCOMPRESS_SERVER_RATE_LIMIT", "0.5")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 7070, cfg.Server.Port)
	assert.Equal(t, int64(2097152), cfg.Compression.ThresholdBytes)
	assert.Equal(t, 90*time.Second, cfg.Cleanup.OrphanAge)
	assert.False(t, cfg.Cleanup.SweepOnStart)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, 0.5, cfg.Server.RateLimit)
}

func TestLoad_Errors(t *testing.T) {
	t.Run("missing file", func(t *testing.T) {
		_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
		assert.Error(t, err)
	})

	t.Run("malformed yaml", func(t *testing.T) {
		_, err := Load(writeConfig(t, "server: [unclosed"))
		assert.Error(t, err)
	})

	t.Run("file too large", func(t *testing.T) {
		_, err := Load(writeConfig(t, "# "+strings.Repeat("x", maxConfigFileSize)))
		require.Error(t, err)
		assert.Contains(t, err.Error(), "too large")
	})

	t.Run("invalid values", func(t *testing.T) {
		_, err := Load(writeConfig(t, "server:\n  port: 70000\ntool:\n  path: bin/gs\n"))
		require.Error(t, err)
		assert.Contains(t, err.Error(), "server.port")
		assert.Contains(t, err.Error(), "tool.path")
	})
}

func TestConfig_Validate(t *testing.T) {
	valid := func() *Config {
		cfg, err := Load("")
		require.NoError(t, err)
		return cfg
	}

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"defaults", func(*Config) {}, ""},
		{"zero max file size", func(c *Config) { c.Server.MaxFileSize = 0 }, "server.max_file_size"},
		{"short write timeout", func(c *Config) { c.Server.WriteTimeout = time.Minute }, "server.write_timeout"},
		{"no write timeout", func(c *Config) { c.Server.WriteTimeout = 0 }, ""},
		{"negative rate limit", func(c *Config) { c.Server.RateLimit = -1 }, "server.rate_limit"},
		{"rate limit without burst", func(c *Config) { c.Server.RateLimit = 2; c.Server.RateBurst = 0 }, "server.rate_burst"},
		{"zero threshold", func(c *Config) { c.Compression.ThresholdBytes = 0 }, "compression.threshold_bytes"},
		{"relative work dir", func(c *Config) { c.Compression.WorkDir = "tmp" }, "compression.work_dir"},
		{"zero orphan age", func(c *Config) { c.Cleanup.OrphanAge = 0 }, "cleanup.orphan_age"},
		{"bad level", func(c *Config) { c.Log.Level = "loud" }, "log.level"},
		{"bad format", func(c *Config) { c.Log.Format = "xml" }, "log.format"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestEnvKey(t *testing.T) {
	tests := map[string]string{
		"PDFCOMPRESS_SERVER_PORT":                 "server.port",
		"PDFCOMPRESS_SERVER_MAX_FILE_SIZE":        "server.max_file_size",
		"PDFCOMPRESS_COMPRESSION_VALIDATE_OUTPUT": "compression.validate_output",
		"PDFCOMPRESS_TOOL_PATH":                   "tool.path",
		"PDFCOMPRESS_DEBUG":                       "debug",
	}
	for in, want := range tests {
		assert.Equal(t, want, envKey(in), in)
	}
}
