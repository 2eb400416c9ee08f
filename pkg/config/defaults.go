package config

import "time"

// Default values for configuration fields.
const (
	// Server defaults
	DefaultListenAddress   = "127.0.0.1:8090"
	DefaultReadTimeout     = 30 * time.Second
	DefaultIdleTimeout     = 120 * time.Second
	DefaultShutdownTimeout = 30 * time.Second
	DefaultMaxHeaderBytes  = 1048576 // 1MB

	// Upstream defaults
	DefaultMaxIdleConns        = 20
	DefaultMaxIdleConnsPerHost = 10
	DefaultIdleConnTimeout     = 90 * time.Second

	// Engine defaults
	DefaultConnectTimeout    = 15 * time.Second
	DefaultOverallTimeout    = 120 * time.Second
	DefaultKeepAliveInterval = 10 * time.Second
	DefaultMaxFrameBuffer    = 1 << 20 // 1MB
	DefaultMaxAnswerBytes    = 4 << 20 // 4MB
	DefaultMaxArrayItems     = 200
	DefaultMaxStringLen      = 2000

	// Transcript defaults
	DefaultTranscriptEnabled = true
	DefaultRingEntries       = 256
	DefaultRingSessions      = 128
	DefaultRetentionDays     = 30
	DefaultPruneSchedule     = "0 3 * * *"

	// Telemetry defaults
	DefaultLogLevel         = "info"
	DefaultLogFormat        = "json"
	DefaultMetricsEnabled   = true
	DefaultMetricsNamespace = "oracle"
	DefaultMetricsPath      = "/metrics"
)

// ApplyDefaults fills unset configuration fields with default values.
func ApplyDefaults(cfg *Config) {
	// Server
	if cfg.Server.ListenAddress == "" {
		cfg.Server.ListenAddress = DefaultListenAddress
	}
	if cfg.Server.ReadTimeout == 0 {
		cfg.Server.ReadTimeout = DefaultReadTimeout
	}
	if cfg.Server.IdleTimeout == 0 {
		cfg.Server.IdleTimeout = DefaultIdleTimeout
	}
	if cfg.Server.ShutdownTimeout == 0 {
		cfg.Server.ShutdownTimeout = DefaultShutdownTimeout
	}
	if cfg.Server.MaxHeaderBytes == 0 {
		cfg.Server.MaxHeaderBytes = DefaultMaxHeaderBytes
	}

	// Upstream
	if cfg.Upstream.MaxIdleConns == 0 {
		cfg.Upstream.MaxIdleConns = DefaultMaxIdleConns
	}
	if cfg.Upstream.MaxIdleConnsPerHost == 0 {
		cfg.Upstream.MaxIdleConnsPerHost = DefaultMaxIdleConnsPerHost
	}
	if cfg.Upstream.IdleConnTimeout == 0 {
		cfg.Upstream.IdleConnTimeout = DefaultIdleConnTimeout
	}

	// Engine
	if cfg.Engine.ConnectTimeout == 0 {
		cfg.Engine.ConnectTimeout = DefaultConnectTimeout
	}
	if cfg.Engine.OverallTimeout == 0 {
		cfg.Engine.OverallTimeout = DefaultOverallTimeout
	}
	if cfg.Engine.KeepAliveInterval == 0 {
		cfg.Engine.KeepAliveInterval = DefaultKeepAliveInterval
	}
	if cfg.Engine.MaxFrameBuffer == 0 {
		cfg.Engine.MaxFrameBuffer = DefaultMaxFrameBuffer
	}
	if cfg.Engine.MaxAnswerBytes == 0 {
		cfg.Engine.MaxAnswerBytes = DefaultMaxAnswerBytes
	}
	if cfg.Engine.MaxArrayItems == 0 {
		cfg.Engine.MaxArrayItems = DefaultMaxArrayItems
	}
	if cfg.Engine.MaxStringLen == 0 {
		cfg.Engine.MaxStringLen = DefaultMaxStringLen
	}

	// Transcript
	if cfg.Transcript.RingEntries == 0 {
		cfg.Transcript.RingEntries = DefaultRingEntries
	}
	if cfg.Transcript.RingSessions == 0 {
		cfg.Transcript.RingSessions = DefaultRingSessions
	}
	if cfg.Transcript.RetentionDays == 0 {
		cfg.Transcript.RetentionDays = DefaultRetentionDays
	}
	if cfg.Transcript.PruneSchedule == "" {
		cfg.Transcript.PruneSchedule = DefaultPruneSchedule
	}

	// Telemetry
	if cfg.Telemetry.Logging.Level == "" {
		cfg.Telemetry.Logging.Level = DefaultLogLevel
	}
	if cfg.Telemetry.Logging.Format == "" {
		cfg.Telemetry.Logging.Format = DefaultLogFormat
	}
	if cfg.Telemetry.Metrics.Namespace == "" {
		cfg.Telemetry.Metrics.Namespace = DefaultMetricsNamespace
	}
	if cfg.Telemetry.Metrics.Path == "" {
		cfg.Telemetry.Metrics.Path = DefaultMetricsPath
	}
}
