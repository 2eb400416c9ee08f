package config

import "time"

// Config is the root configuration structure for the Oracle relay. It
// contains all configuration sections for the HTTP server, the upstream
// chat service, the relay engine, transcripts, roster data, and telemetry.
type Config struct {
	// Server contains the HTTP server configuration including listen
	// address and timeouts.
	Server ServerConfig `yaml:"server"`

	// Upstream contains the connection settings for the hosted chat
	// service.
	Upstream UpstreamConfig `yaml:"upstream"`

	// Engine contains the relay engine tunables: deadlines, keep-alive
	// interval, buffer bounds, and payload size limits.
	Engine EngineConfig `yaml:"engine"`

	// Transcript contains the diagnostic transcript settings.
	Transcript TranscriptConfig `yaml:"transcript"`

	// Roster contains the roster/schedule data store settings.
	Roster RosterConfig `yaml:"roster"`

	// Telemetry contains logging and metrics settings.
	Telemetry TelemetryConfig `yaml:"telemetry"`
}

// ServerConfig contains configuration for the HTTP server.
type ServerConfig struct {
	// ListenAddress is the address and port to listen on.
	// Default: "127.0.0.1:8090"
	ListenAddress string `yaml:"listen_address"`

	// ReadTimeout is the maximum duration for reading the entire
	// request, including the body.
	// Default: 30s
	ReadTimeout time.Duration `yaml:"read_timeout"`

	// IdleTimeout is the maximum time to wait for the next request when
	// keep-alives are enabled.
	// Default: 120s
	IdleTimeout time.Duration `yaml:"idle_timeout"`

	// ShutdownTimeout is the maximum duration to wait for graceful
	// shutdown.
	// Default: 30s
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`

	// MaxHeaderBytes limits request header size.
	// Default: 1048576 (1MB)
	MaxHeaderBytes int `yaml:"max_header_bytes"`
}

// UpstreamConfig contains configuration for the hosted chat service.
type UpstreamConfig struct {
	// BaseURL is the base URL of the chat service API.
	BaseURL string `yaml:"base_url"`

	// APIKey is the bearer credential. Prefer setting it through the
	// ORACLE_UPSTREAM_API_KEY environment variable rather than the
	// config file.
	APIKey string `yaml:"api_key"`

	// MaxIdleConns is the connection pool size.
	// Default: 20
	MaxIdleConns int `yaml:"max_idle_conns"`

	// MaxIdleConnsPerHost is the per-host connection pool size.
	// Default: 10
	MaxIdleConnsPerHost int `yaml:"max_idle_conns_per_host"`

	// IdleConnTimeout is how long idle connections are kept.
	// Default: 90s
	IdleConnTimeout time.Duration `yaml:"idle_conn_timeout"`
}

// EngineConfig contains the relay engine tunables.
type EngineConfig struct {
	// ConnectTimeout is the connect watchdog window, guarding only the
	// connection phase. It is independent of and shorter than the
	// overall deadline.
	// Default: 15s
	ConnectTimeout time.Duration `yaml:"connect_timeout"`

	// OverallTimeout caps the session deadline, covering connect plus
	// streaming to completion. Actions with a shorter declared budget
	// use the budget; the lower of the two governs.
	// Default: 120s
	OverallTimeout time.Duration `yaml:"overall_timeout"`

	// KeepAliveInterval is the wait before synthetic keep-alive records
	// are emitted on a pass-through stream with no frames yet.
	// Default: 10s
	KeepAliveInterval time.Duration `yaml:"keep_alive_interval"`

	// MaxFrameBuffer bounds the frame parser's accumulation buffer, in
	// bytes.
	// Default: 1048576 (1MB)
	MaxFrameBuffer int `yaml:"max_frame_buffer"`

	// MaxAnswerBytes bounds the buffered answer accumulator, in bytes.
	// Default: 4194304 (4MB)
	MaxAnswerBytes int `yaml:"max_answer_bytes"`

	// MaxArrayItems caps payload element arrays.
	// Default: 200
	MaxArrayItems int `yaml:"max_array_items"`

	// MaxStringLen caps payload string fields, in bytes.
	// Default: 2000
	MaxStringLen int `yaml:"max_string_len"`
}

// TranscriptConfig contains the diagnostic transcript settings.
type TranscriptConfig struct {
	// Enabled controls whether transcripts are kept at all.
	// Default: true
	Enabled bool `yaml:"enabled"`

	// RingEntries is the per-session in-memory ring size.
	// Default: 256
	RingEntries int `yaml:"ring_entries"`

	// RingSessions is how many recent sessions the ring retains.
	// Default: 128
	RingSessions int `yaml:"ring_sessions"`

	// ArchivePath is the SQLite archive file. Empty disables the
	// archive (the in-memory ring still works).
	ArchivePath string `yaml:"archive_path"`

	// RetentionDays is how long archived transcripts are kept.
	// Default: 30
	RetentionDays int `yaml:"retention_days"`

	// PruneSchedule is the cron expression for retention pruning.
	// Default: "0 3 * * *"
	PruneSchedule string `yaml:"prune_schedule"`
}

// RosterConfig contains the roster/schedule data store settings.
type RosterConfig struct {
	// DBPath is the SQLite database file for roster data. When empty
	// the roster store is disabled and payloads are relayed without
	// enrichment.
	DBPath string `yaml:"db_path"`

	// SeedFile is the JSON file holding player and schedule data.
	SeedFile string `yaml:"seed_file"`

	// Watch reloads the store when the seed file changes.
	// Default: true
	Watch bool `yaml:"watch"`
}

// TelemetryConfig contains observability settings.
type TelemetryConfig struct {
	// Logging contains structured logging settings.
	Logging LoggingConfig `yaml:"logging"`

	// Metrics contains Prometheus metrics settings.
	Metrics MetricsConfig `yaml:"metrics"`
}

// LoggingConfig contains structured logging settings.
type LoggingConfig struct {
	// Level is the minimum log level ("debug", "info", "warn",
	// "error").
	// Default: "info"
	Level string `yaml:"level"`

	// Format is the output format ("json", "text").
	// Default: "json"
	Format string `yaml:"format"`

	// AddSource includes file:line in log records.
	// Default: false
	AddSource bool `yaml:"add_source"`
}

// MetricsConfig contains Prometheus metrics settings.
type MetricsConfig struct {
	// Enabled controls whether the metrics endpoint is served.
	// Default: true
	Enabled bool `yaml:"enabled"`

	// Namespace is the metric namespace prefix.
	// Default: "oracle"
	Namespace string `yaml:"namespace"`

	// Path is the metrics endpoint path.
	// Default: "/metrics"
	Path string `yaml:"path"`
}
