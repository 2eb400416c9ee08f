package transcript

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// ArchiveConfig contains configuration for the SQLite transcript archive.
type ArchiveConfig struct {
	// Path is the database file path.
	Path string

	// MaxOpenConns is the maximum number of open connections.
	// Default: 10
	MaxOpenConns int

	// WALMode enables Write-Ahead Logging for better concurrency.
	// Default: true
	WALMode bool

	// BusyTimeout is how long to wait when the database is locked.
	// Default: 5s
	BusyTimeout time.Duration
}

// DefaultArchiveConfig returns the default archive configuration.
func DefaultArchiveConfig() *ArchiveConfig {
	return &ArchiveConfig{
		Path:         "data/transcripts.db",
		MaxOpenConns: 10,
		WALMode:      true,
		BusyTimeout:  5 * time.Second,
	}
}

// Record is one archived session transcript.
type Record struct {
	// CorrelationID is the session's correlation id.
	CorrelationID string

	// Action is the draft-assistant action that was relayed.
	Action string

	// Mode is the consumption strategy ("buffered", "passthrough").
	Mode string

	// Status is "ok" or the failure kind.
	Status string

	// StartedAt is the session start time.
	StartedAt time.Time

	// Duration is the total session duration.
	Duration time.Duration

	// Frames is the number of frames parsed.
	Frames int64

	// Bytes is the number of upstream bytes consumed.
	Bytes int64

	// Entries is the transcript snapshot taken at session end.
	Entries []Entry
}

// Archive persists finished session transcripts to SQLite.
type Archive struct {
	db     *sql.DB
	config *ArchiveConfig
	logger *slog.Logger
}

const archiveSchema = `
CREATE TABLE IF NOT EXISTS transcripts (
	id             INTEGER PRIMARY KEY AUTOINCREMENT,
	correlation_id TEXT NOT NULL,
	action         TEXT NOT NULL,
	mode           TEXT NOT NULL,
	status         TEXT NOT NULL,
	started_at     TIMESTAMP NOT NULL,
	duration_ms    INTEGER NOT NULL,
	frames         INTEGER NOT NULL,
	bytes          INTEGER NOT NULL,
	entries        TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_transcripts_correlation ON transcripts(correlation_id);
CREATE INDEX IF NOT EXISTS idx_transcripts_started ON transcripts(started_at);
`

// NewArchive opens (and if necessary creates) the archive database.
func NewArchive(config *ArchiveConfig) (*Archive, error) {
	if config == nil {
		config = DefaultArchiveConfig()
	}

	db, err := sql.Open("sqlite3", config.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to open transcript database: %w", err)
	}

	if config.MaxOpenConns > 0 {
		db.SetMaxOpenConns(config.MaxOpenConns)
	}

	if config.WALMode {
		if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
		}
	}
	if config.BusyTimeout > 0 {
		if _, err := db.Exec(fmt.Sprintf("PRAGMA busy_timeout=%d", config.BusyTimeout.Milliseconds())); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to set busy timeout: %w", err)
		}
	}

	if _, err := db.Exec(archiveSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize transcript schema: %w", err)
	}

	return &Archive{
		db:     db,
		config: config,
		logger: slog.Default().With("component", "transcript.archive"),
	}, nil
}

// Save persists one finished session transcript.
func (a *Archive) Save(ctx context.Context, record *Record) error {
	entries, err := json.Marshal(record.Entries)
	if err != nil {
		return fmt.Errorf("failed to encode transcript entries: %w", err)
	}

	_, err = a.db.ExecContext(ctx,
		`INSERT INTO transcripts
		 (correlation_id, action, mode, status, started_at, duration_ms, frames, bytes, entries)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		record.CorrelationID,
		record.Action,
		record.Mode,
		record.Status,
		record.StartedAt.UTC(),
		record.Duration.Milliseconds(),
		record.Frames,
		record.Bytes,
		string(entries),
	)
	if err != nil {
		return fmt.Errorf("failed to insert transcript: %w", err)
	}
	return nil
}

// Load retrieves the archived transcripts for a correlation id, oldest
// first.
func (a *Archive) Load(ctx context.Context, correlationID string) ([]*Record, error) {
	rows, err := a.db.QueryContext(ctx,
		`SELECT correlation_id, action, mode, status, started_at, duration_ms, frames, bytes, entries
		 FROM transcripts WHERE correlation_id = ? ORDER BY started_at`,
		correlationID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query transcripts: %w", err)
	}
	defer rows.Close()

	var records []*Record
	for rows.Next() {
		var rec Record
		var durationMS int64
		var entries string
		if err := rows.Scan(&rec.CorrelationID, &rec.Action, &rec.Mode, &rec.Status,
			&rec.StartedAt, &durationMS, &rec.Frames, &rec.Bytes, &entries); err != nil {
			return nil, fmt.Errorf("failed to scan transcript row: %w", err)
		}
		rec.Duration = time.Duration(durationMS) * time.Millisecond
		if err := json.Unmarshal([]byte(entries), &rec.Entries); err != nil {
			return nil, fmt.Errorf("failed to decode transcript entries: %w", err)
		}
		records = append(records, &rec)
	}
	return records, rows.Err()
}

// Prune deletes transcripts older than cutoff and returns how many rows
// were removed.
func (a *Archive) Prune(ctx context.Context, cutoff time.Time) (int64, error) {
	result, err := a.db.ExecContext(ctx,
		`DELETE FROM transcripts WHERE started_at < ?`, cutoff.UTC())
	if err != nil {
		return 0, fmt.Errorf("failed to prune transcripts: %w", err)
	}
	deleted, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to count pruned transcripts: %w", err)
	}
	return deleted, nil
}

// Count returns the number of archived transcripts.
func (a *Archive) Count(ctx context.Context) (int64, error) {
	var n int64
	if err := a.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM transcripts`).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count transcripts: %w", err)
	}
	return n, nil
}

// Close closes the archive database.
func (a *Archive) Close() error {
	return a.db.Close()
}
