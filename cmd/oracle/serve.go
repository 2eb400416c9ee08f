package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"gridiron-hq/oracle/pkg/config"
	"gridiron-hq/oracle/pkg/prompt"
	"gridiron-hq/oracle/pkg/relay"
	"gridiron-hq/oracle/pkg/roster"
	"gridiron-hq/oracle/pkg/server"
	"gridiron-hq/oracle/pkg/telemetry/logging"
	"gridiron-hq/oracle/pkg/telemetry/metrics"
	"gridiron-hq/oracle/pkg/transcript"
	"gridiron-hq/oracle/pkg/upstream"
)

var serveFlags struct {
	listenAddress string
	logLevel      string
	dryRun        bool
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the assist relay server",
	Long: `Start the assist relay server with the specified configuration.

Examples:
  # Start with default config
  oracle serve

  # Start with custom config
  oracle serve --config /etc/oracle/config.yaml

  # Override listen address
  oracle serve --listen 0.0.0.0:8090

  # Validate config without starting the server
  oracle serve --dry-run`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().StringVarP(&serveFlags.listenAddress, "listen", "l", "", "override listen address")
	serveCmd.Flags().StringVar(&serveFlags.logLevel, "log-level", "", "override log level (debug, info, warn, error)")
	serveCmd.Flags().BoolVar(&serveFlags.dryRun, "dry-run", false, "validate config without starting the server")
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadConfigWithEnvOverrides(cfgFile)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	if serveFlags.listenAddress != "" {
		cfg.Server.ListenAddress = serveFlags.listenAddress
	}
	if serveFlags.logLevel != "" {
		cfg.Telemetry.Logging.Level = serveFlags.logLevel
	}
	if verbose {
		cfg.Telemetry.Logging.Level = "debug"
	}

	logger, err := logging.New(logging.Config{
		Level:     cfg.Telemetry.Logging.Level,
		Format:    cfg.Telemetry.Logging.Format,
		AddSource: cfg.Telemetry.Logging.AddSource,
	})
	if err != nil {
		return fmt.Errorf("failed to create logger: %w", err)
	}
	slog.SetDefault(logger)

	if serveFlags.dryRun {
		fmt.Println("configuration valid")
		return nil
	}

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	// Roster store with optional seed file and watcher.
	var store *roster.Store
	var watcher *roster.Watcher
	if cfg.Roster.DBPath != "" {
		store, err = roster.NewStore(roster.StoreConfig{DBPath: cfg.Roster.DBPath})
		if err != nil {
			return fmt.Errorf("failed to open roster store: %w", err)
		}
		defer store.Close()

		if cfg.Roster.SeedFile != "" {
			if _, statErr := os.Stat(cfg.Roster.SeedFile); statErr == nil {
				if err := store.SeedFromFile(ctx, cfg.Roster.SeedFile); err != nil {
					return fmt.Errorf("failed to seed roster: %w", err)
				}
				if n, err := store.Count(ctx); err == nil {
					logger.Info("roster seeded", "players", n)
				}
			} else {
				logger.Warn("roster seed file not found, starting empty",
					"seed_file", cfg.Roster.SeedFile)
			}

			if cfg.Roster.Watch {
				watcher, err = roster.NewWatcher(store, cfg.Roster.SeedFile, logger)
				if err != nil {
					return fmt.Errorf("failed to create roster watcher: %w", err)
				}
				go func() {
					if err := watcher.Watch(ctx); err != nil {
						logger.Error("roster watcher exited", "error", err)
					}
				}()
				defer watcher.Stop()
			}
		}
	}

	// Transcript breadcrumb surfaces.
	var ring *transcript.Ring
	var archive *transcript.Archive
	var scheduler *transcript.Scheduler
	if cfg.Transcript.Enabled {
		ring = transcript.NewRing(cfg.Transcript.RingEntries, cfg.Transcript.RingSessions)

		if cfg.Transcript.ArchivePath != "" {
			archive, err = transcript.NewArchive(&transcript.ArchiveConfig{
				Path: cfg.Transcript.ArchivePath,
			})
			if err != nil {
				return fmt.Errorf("failed to open transcript archive: %w", err)
			}
			defer archive.Close()

			scheduler = transcript.NewScheduler(archive, &transcript.RetentionConfig{
				RetentionDays: cfg.Transcript.RetentionDays,
				Schedule:      cfg.Transcript.PruneSchedule,
			})
			if err := scheduler.Start(ctx); err != nil {
				return fmt.Errorf("failed to start retention scheduler: %w", err)
			}
			defer scheduler.Stop()
		}
	}

	// Metrics registry.
	var sessionMetrics *metrics.SessionMetrics
	metricsPath := ""
	if cfg.Telemetry.Metrics.Enabled {
		sessionMetrics = metrics.New(metrics.Config{Namespace: cfg.Telemetry.Metrics.Namespace})
		metricsPath = cfg.Telemetry.Metrics.Path
	}

	// Upstream client and relay engine.
	client := upstream.NewClient(upstream.ClientConfig{
		BaseURL:             cfg.Upstream.BaseURL,
		APIKey:              cfg.Upstream.APIKey,
		MaxIdleConns:        cfg.Upstream.MaxIdleConns,
		MaxIdleConnsPerHost: cfg.Upstream.MaxIdleConnsPerHost,
		IdleConnTimeout:     cfg.Upstream.IdleConnTimeout,
	})

	engine := relay.NewEngine(client, relay.Options{
		ConnectTimeout:    cfg.Engine.ConnectTimeout,
		OverallTimeout:    cfg.Engine.OverallTimeout,
		KeepAliveInterval: cfg.Engine.KeepAliveInterval,
		MaxFrameBuffer:    cfg.Engine.MaxFrameBuffer,
		MaxAnswerBytes:    cfg.Engine.MaxAnswerBytes,
		Limits: prompt.Limits{
			MaxArrayItems: cfg.Engine.MaxArrayItems,
			MaxStringLen:  cfg.Engine.MaxStringLen,
		},
	}, sessionMetrics, ring, archive)

	srv := server.New(&cfg.Server, engine, store, sessionMetrics, metricsPath, logger)
	return srv.Start(ctx)
}
