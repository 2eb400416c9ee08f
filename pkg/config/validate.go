package config

import (
	"fmt"
	"net/url"
	"strings"
)

var validLogLevels = map[string]bool{
	"debug": true,
	"info":  true,
	"warn":  true,
	"error": true,
}

var validLogFormats = map[string]bool{
	"json": true,
	"text": true,
}

// Validate checks the configuration for internal consistency and returns
// an error describing the first problem found.
func Validate(cfg *Config) error {
	if err := validateServer(&cfg.Server); err != nil {
		return fmt.Errorf("server: %w", err)
	}
	if err := validateUpstream(&cfg.Upstream); err != nil {
		return fmt.Errorf("upstream: %w", err)
	}
	if err := validateEngine(&cfg.Engine); err != nil {
		return fmt.Errorf("engine: %w", err)
	}
	if err := validateTranscript(&cfg.Transcript); err != nil {
		return fmt.Errorf("transcript: %w", err)
	}
	if err := validateTelemetry(&cfg.Telemetry); err != nil {
		return fmt.Errorf("telemetry: %w", err)
	}
	return nil
}

func validateServer(cfg *ServerConfig) error {
	if cfg.ListenAddress == "" {
		return fmt.Errorf("listen_address must not be empty")
	}
	if cfg.ReadTimeout <= 0 {
		return fmt.Errorf("read_timeout must be positive, got %v", cfg.ReadTimeout)
	}
	if cfg.ShutdownTimeout <= 0 {
		return fmt.Errorf("shutdown_timeout must be positive, got %v", cfg.ShutdownTimeout)
	}
	return nil
}

func validateUpstream(cfg *UpstreamConfig) error {
	if cfg.BaseURL == "" {
		return fmt.Errorf("base_url must not be empty")
	}
	u, err := url.Parse(cfg.BaseURL)
	if err != nil {
		return fmt.Errorf("base_url is not a valid URL: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("base_url scheme must be http or https, got %q", u.Scheme)
	}
	if cfg.APIKey == "" {
		return fmt.Errorf("api_key must not be empty (set ORACLE_UPSTREAM_API_KEY)")
	}
	if cfg.MaxIdleConns < 0 {
		return fmt.Errorf("max_idle_conns must not be negative, got %d", cfg.MaxIdleConns)
	}
	return nil
}

func validateEngine(cfg *EngineConfig) error {
	if cfg.ConnectTimeout <= 0 {
		return fmt.Errorf("connect_timeout must be positive, got %v", cfg.ConnectTimeout)
	}
	if cfg.OverallTimeout <= 0 {
		return fmt.Errorf("overall_timeout must be positive, got %v", cfg.OverallTimeout)
	}
	if cfg.OverallTimeout < cfg.ConnectTimeout {
		return fmt.Errorf("overall_timeout (%v) must not be shorter than connect_timeout (%v)",
			cfg.OverallTimeout, cfg.ConnectTimeout)
	}
	if cfg.KeepAliveInterval <= 0 {
		return fmt.Errorf("keep_alive_interval must be positive, got %v", cfg.KeepAliveInterval)
	}
	if cfg.MaxFrameBuffer <= 0 {
		return fmt.Errorf("max_frame_buffer must be positive, got %d", cfg.MaxFrameBuffer)
	}
	if cfg.MaxAnswerBytes <= 0 {
		return fmt.Errorf("max_answer_bytes must be positive, got %d", cfg.MaxAnswerBytes)
	}
	if cfg.MaxArrayItems <= 0 {
		return fmt.Errorf("max_array_items must be positive, got %d", cfg.MaxArrayItems)
	}
	if cfg.MaxStringLen <= 0 {
		return fmt.Errorf("max_string_len must be positive, got %d", cfg.MaxStringLen)
	}
	return nil
}

func validateTranscript(cfg *TranscriptConfig) error {
	if !cfg.Enabled {
		return nil
	}
	if cfg.RingEntries <= 0 {
		return fmt.Errorf("ring_entries must be positive, got %d", cfg.RingEntries)
	}
	if cfg.RingSessions <= 0 {
		return fmt.Errorf("ring_sessions must be positive, got %d", cfg.RingSessions)
	}
	if cfg.ArchivePath != "" {
		if cfg.RetentionDays <= 0 {
			return fmt.Errorf("retention_days must be positive, got %d", cfg.RetentionDays)
		}
		if strings.TrimSpace(cfg.PruneSchedule) == "" {
			return fmt.Errorf("prune_schedule must not be empty when archiving is enabled")
		}
	}
	return nil
}

func validateTelemetry(cfg *TelemetryConfig) error {
	if !validLogLevels[strings.ToLower(cfg.Logging.Level)] {
		return fmt.Errorf("logging.level must be one of debug, info, warn, error; got %q", cfg.Logging.Level)
	}
	if !validLogFormats[strings.ToLower(cfg.Logging.Format)] {
		return fmt.Errorf("logging.format must be json or text, got %q", cfg.Logging.Format)
	}
	if cfg.Metrics.Enabled && !strings.HasPrefix(cfg.Metrics.Path, "/") {
		return fmt.Errorf("metrics.path must start with /, got %q", cfg.Metrics.Path)
	}
	return nil
}
