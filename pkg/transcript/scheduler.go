package transcript

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
)

// RetentionConfig contains configuration for scheduled transcript pruning.
type RetentionConfig struct {
	// RetentionDays is how long finished transcripts are kept.
	// Default: 30
	RetentionDays int

	// Schedule is the cron expression for pruning runs.
	// Default: "0 3 * * *" (daily at 3 AM)
	Schedule string
}

// DefaultRetentionConfig returns the default retention configuration.
func DefaultRetentionConfig() *RetentionConfig {
	return &RetentionConfig{
		RetentionDays: 30,
		Schedule:      "0 3 * * *",
	}
}

// Scheduler prunes the transcript archive on a cron schedule.
type Scheduler struct {
	archive *Archive
	config  *RetentionConfig
	cron    *cron.Cron
	logger  *slog.Logger

	mu      sync.Mutex
	running bool
}

// NewScheduler creates a retention scheduler for archive.
func NewScheduler(archive *Archive, config *RetentionConfig) *Scheduler {
	if config == nil {
		config = DefaultRetentionConfig()
	}
	return &Scheduler{
		archive: archive,
		config:  config,
		cron:    cron.New(),
		logger:  slog.Default().With("component", "transcript.scheduler"),
	}
}

// Start begins scheduled pruning. If no schedule is configured the
// scheduler does nothing.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.config.Schedule == "" {
		s.logger.Info("prune schedule not configured, skipping scheduler")
		return nil
	}

	if _, err := cron.ParseStandard(s.config.Schedule); err != nil {
		return fmt.Errorf("invalid cron schedule %q: %w", s.config.Schedule, err)
	}

	if _, err := s.cron.AddFunc(s.config.Schedule, func() {
		s.runPruning(ctx)
	}); err != nil {
		return fmt.Errorf("failed to schedule pruning: %w", err)
	}

	s.cron.Start()
	s.running = true

	s.logger.Info("transcript retention scheduler started",
		"schedule", s.config.Schedule,
		"retention_days", s.config.RetentionDays,
	)

	go func() {
		<-ctx.Done()
		s.Stop()
	}()

	return nil
}

// runPruning executes one pruning cycle.
func (s *Scheduler) runPruning(ctx context.Context) {
	cutoff := time.Now().AddDate(0, 0, -s.config.RetentionDays)

	deleted, err := s.archive.Prune(ctx, cutoff)
	if err != nil {
		s.logger.Error("scheduled transcript pruning failed", "error", err)
		return
	}

	if deleted > 0 {
		s.logger.Info("scheduled transcript pruning completed",
			"deleted_count", deleted,
			"cutoff", cutoff.Format(time.RFC3339),
		)
	}
}

// Stop halts scheduled pruning.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running {
		return
	}
	s.cron.Stop()
	s.running = false
	s.logger.Info("transcript retention scheduler stopped")
}
