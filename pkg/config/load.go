package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Default returns a configuration with every field set to its default
// value. Boolean fields that default to true are set here so a YAML file
// can still turn them off.
func Default() *Config {
	cfg := &Config{}
	cfg.Transcript.Enabled = DefaultTranscriptEnabled
	cfg.Telemetry.Metrics.Enabled = DefaultMetricsEnabled
	cfg.Roster.Watch = true
	ApplyDefaults(cfg)
	return cfg
}

// LoadConfig loads configuration from a YAML file, applies defaults, and
// validates the result. It does not consult the environment; use
// LoadConfigWithEnvOverrides for that.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read configuration file %q: %w", path, err)
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse configuration file %q: %w", path, err)
	}

	ApplyDefaults(cfg)

	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return cfg, nil
}

// LoadConfigWithEnvOverrides loads configuration from a YAML file and
// applies environment variable overrides. Variables follow the naming
// convention ORACLE_SECTION_FIELD (e.g. ORACLE_SERVER_LISTEN_ADDRESS) and
// always take precedence over file values.
//
// The loading sequence is:
//  1. Load YAML from file
//  2. Apply default values
//  3. Apply environment variable overrides
//  4. Validate the final configuration
func LoadConfigWithEnvOverrides(path string) (*Config, error) {
	cfg, err := LoadConfig(path)
	if err != nil {
		return nil, err
	}

	applyEnvOverrides(cfg)

	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed after environment overrides: %w", err)
	}
	return cfg, nil
}

// applyEnvOverrides applies ORACLE_* environment variable overrides.
func applyEnvOverrides(cfg *Config) {
	// Server overrides
	if val := os.Getenv("ORACLE_SERVER_LISTEN_ADDRESS"); val != "" {
		cfg.Server.ListenAddress = val
	}
	if val := os.Getenv("ORACLE_SERVER_READ_TIMEOUT"); val != "" {
		if d, err := time.ParseDuration(val); err == nil {
			cfg.Server.ReadTimeout = d
		}
	}
	if val := os.Getenv("ORACLE_SERVER_SHUTDOWN_TIMEOUT"); val != "" {
		if d, err := time.ParseDuration(val); err == nil {
			cfg.Server.ShutdownTimeout = d
		}
	}

	// Upstream overrides
	if val := os.Getenv("ORACLE_UPSTREAM_BASE_URL"); val != "" {
		cfg.Upstream.BaseURL = val
	}
	if val := os.Getenv("ORACLE_UPSTREAM_API_KEY"); val != "" {
		cfg.Upstream.APIKey = val
	}

	// Engine overrides
	if val := os.Getenv("ORACLE_ENGINE_CONNECT_TIMEOUT"); val != "" {
		if d, err := time.ParseDuration(val); err == nil {
			cfg.Engine.ConnectTimeout = d
		}
	}
	if val := os.Getenv("ORACLE_ENGINE_OVERALL_TIMEOUT"); val != "" {
		if d, err := time.ParseDuration(val); err == nil {
			cfg.Engine.OverallTimeout = d
		}
	}
	if val := os.Getenv("ORACLE_ENGINE_KEEP_ALIVE_INTERVAL"); val != "" {
		if d, err := time.ParseDuration(val); err == nil {
			cfg.Engine.KeepAliveInterval = d
		}
	}
	if val := os.Getenv("ORACLE_ENGINE_MAX_ARRAY_ITEMS"); val != "" {
		if n, err := strconv.Atoi(val); err == nil {
			cfg.Engine.MaxArrayItems = n
		}
	}
	if val := os.Getenv("ORACLE_ENGINE_MAX_STRING_LEN"); val != "" {
		if n, err := strconv.Atoi(val); err == nil {
			cfg.Engine.MaxStringLen = n
		}
	}

	// Transcript overrides
	if val := os.Getenv("ORACLE_TRANSCRIPT_ENABLED"); val != "" {
		if b, err := strconv.ParseBool(val); err == nil {
			cfg.Transcript.Enabled = b
		}
	}
	if val := os.Getenv("ORACLE_TRANSCRIPT_ARCHIVE_PATH"); val != "" {
		cfg.Transcript.ArchivePath = val
	}

	// Roster overrides
	if val := os.Getenv("ORACLE_ROSTER_DB_PATH"); val != "" {
		cfg.Roster.DBPath = val
	}
	if val := os.Getenv("ORACLE_ROSTER_SEED_FILE"); val != "" {
		cfg.Roster.SeedFile = val
	}

	// Telemetry overrides
	if val := os.Getenv("ORACLE_LOG_LEVEL"); val != "" {
		cfg.Telemetry.Logging.Level = val
	}
	if val := os.Getenv("ORACLE_LOG_FORMAT"); val != "" {
		cfg.Telemetry.Logging.Format = val
	}
	if val := os.Getenv("ORACLE_METRICS_ENABLED"); val != "" {
		if b, err := strconv.ParseBool(val); err == nil {
			cfg.Telemetry.Metrics.Enabled = b
		}
	}
}
