package config

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/rawbytes"
	"github.com/knadh/koanf/v2"
)

const (
	// EnvPrefix marks environment variables read by Load.
	EnvPrefix = "PDFCOMPRESS_"

	maxConfigFileSize = 1024 * 1024 // 1MB
)

// defaults are loaded as the lowest-precedence layer so that boolean fields
// whose default is true survive an unmarshal.
const defaults = `
server:
  port: 8080
  max_file_size: 104857600
  read_timeout: 60s
  write_timeout: 6m
  shutdown_timeout: 30s
  rate_limit: 0
  rate_burst: 5
compression:
  threshold_bytes: 5242880
  work_dir: ""
  validate_output: true
tool:
  path: ""
cleanup:
  sweep_on_start: true
  orphan_age: 5m
log:
  level: info
  format: json
`

// Load reads configuration from defaults, the YAML file at configPath (if
// non-empty) and the environment.
//
// Environment variables split on the first underscore after the prefix:
//
//	PDFCOMPRESS_SERVER_PORT                -> server.port
//	PDFCOMPRESS_COMPRESSION_THRESHOLD_BYTES -> compression.threshold_bytes
//	PDFCOMPRESS_TOOL_PATH                  -> tool.path
func Load(configPath string) (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(rawbytes.Provider([]byte(defaults)), yaml.Parser()); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	if configPath != "" {
		content, err := readConfigFile(configPath)
		if err != nil {
			return nil, err
		}
		if err := k.Load(rawbytes.Provider(content), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", configPath, err)
		}
	}

	if err := k.Load(env.Provider(EnvPrefix, ".", envKey), nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &cfg, nil
}

// envKey maps PDFCOMPRESS_SECTION_FIELD_NAME to section.field_name.
func envKey(s string) string {
	lower := strings.ToLower(strings.TrimPrefix(s, EnvPrefix))
	parts := strings.SplitN(lower, "_", 2)
	if len(parts) == 1 {
		return lower
	}
	return parts[0] + "." + parts[1]
}

func readConfigFile(path string) ([]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open config file: %w", err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}
	if info.Size() > maxConfigFileSize {
		return nil, fmt.Errorf("config file too large: %d bytes (max %d)", info.Size(), maxConfigFileSize)
	}

	content, err := io.ReadAll(f)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	return content, nil
}
