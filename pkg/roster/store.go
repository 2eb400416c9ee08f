package roster

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	_ "modernc.org/sqlite" // SQLite driver
)

// Player is a single roster entry. Fields mirror the element shape
// accepted in assist payloads so lookups can fill gaps directly.
type Player struct {
	Name            string  `json:"name"`
	Position        string  `json:"position"`
	Team            string  `json:"team"`
	Rank            int     `json:"rank,omitempty"`
	ADP             float64 `json:"adp,omitempty"`
	ByeWeek         int     `json:"bye_week,omitempty"`
	ProjectedPoints float64 `json:"projected_points,omitempty"`
	InjuryStatus    string  `json:"injury_status,omitempty"`
}

// Matchup is one entry in a team schedule.
type Matchup struct {
	Team     string `json:"team"`
	Week     int    `json:"week"`
	Opponent string `json:"opponent"`
}

// seedFile is the on-disk JSON shape of a roster seed.
type seedFile struct {
	Players  []Player  `json:"players"`
	Schedule []Matchup `json:"schedule"`
}

// StoreConfig configures the roster store.
type StoreConfig struct {
	// DBPath is the path to the SQLite database file.
	DBPath string

	// BusyTimeout is how long to wait for locks before failing.
	// Default: 5 seconds
	BusyTimeout time.Duration
}

// Store is a SQLite-backed roster store. All methods are safe for
// concurrent use; reloads swap data inside a single transaction so
// readers never observe a half-loaded roster.
type Store struct {
	db        *sql.DB
	mu        sync.RWMutex
	closeOnce sync.Once

	lookupStmt   *sql.Stmt
	opponentStmt *sql.Stmt
}

const rosterSchema = `
CREATE TABLE IF NOT EXISTS players (
	name TEXT NOT NULL COLLATE NOCASE,
	position TEXT NOT NULL,
	team TEXT NOT NULL,
	rank INTEGER,
	adp REAL,
	bye_week INTEGER,
	projected_points REAL,
	injury_status TEXT,
	PRIMARY KEY (name, position)
);

CREATE TABLE IF NOT EXISTS schedule (
	team TEXT NOT NULL,
	week INTEGER NOT NULL,
	opponent TEXT NOT NULL,
	PRIMARY KEY (team, week)
);

CREATE INDEX IF NOT EXISTS idx_players_team ON players(team);
`

// NewStore opens (or creates) the roster database at cfg.DBPath.
func NewStore(cfg StoreConfig) (*Store, error) {
	if cfg.DBPath == "" {
		return nil, fmt.Errorf("db path cannot be empty")
	}
	if cfg.BusyTimeout == 0 {
		cfg.BusyTimeout = 5 * time.Second
	}

	dsn := fmt.Sprintf("%s?_journal_mode=WAL&_busy_timeout=%d&_synchronous=NORMAL",
		cfg.DBPath, int(cfg.BusyTimeout.Milliseconds()))

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open roster database: %w", err)
	}

	// SQLite only supports a single writer.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if _, err := db.Exec(rosterSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize roster schema: %w", err)
	}

	s := &Store{db: db}
	if err := s.prepareStatements(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) prepareStatements() error {
	var err error
	s.lookupStmt, err = s.db.Prepare(`
		SELECT name, position, team, COALESCE(rank, 0), COALESCE(adp, 0),
		       COALESCE(bye_week, 0), COALESCE(projected_points, 0),
		       COALESCE(injury_status, '')
		FROM players WHERE name = ? LIMIT 1`)
	if err != nil {
		return fmt.Errorf("failed to prepare lookup statement: %w", err)
	}
	s.opponentStmt, err = s.db.Prepare(`
		SELECT opponent FROM schedule WHERE team = ? AND week = ? LIMIT 1`)
	if err != nil {
		return fmt.Errorf("failed to prepare opponent statement: %w", err)
	}
	return nil
}

// SeedFromFile replaces the store contents with the players and schedule
// from a JSON seed file. The swap happens in a single transaction.
func (s *Store) SeedFromFile(ctx context.Context, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read seed file %q: %w", path, err)
	}

	var seed seedFile
	if err := json.Unmarshal(data, &seed); err != nil {
		return fmt.Errorf("failed to parse seed file %q: %w", path, err)
	}

	return s.Replace(ctx, seed.Players, seed.Schedule)
}

// Replace swaps the full store contents atomically.
func (s *Store) Replace(ctx context.Context, players []Player, schedule []Matchup) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin roster reload: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM players`); err != nil {
		return fmt.Errorf("failed to clear players: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM schedule`); err != nil {
		return fmt.Errorf("failed to clear schedule: %w", err)
	}

	insertPlayer, err := tx.PrepareContext(ctx, `
		INSERT OR REPLACE INTO players
		(name, position, team, rank, adp, bye_week, projected_points, injury_status)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("failed to prepare player insert: %w", err)
	}
	defer insertPlayer.Close()

	for _, p := range players {
		if strings.TrimSpace(p.Name) == "" {
			continue
		}
		if _, err := insertPlayer.ExecContext(ctx,
			p.Name, p.Position, p.Team, p.Rank, p.ADP,
			p.ByeWeek, p.ProjectedPoints, p.InjuryStatus); err != nil {
			return fmt.Errorf("failed to insert player %q: %w", p.Name, err)
		}
	}

	insertMatchup, err := tx.PrepareContext(ctx, `
		INSERT OR REPLACE INTO schedule (team, week, opponent) VALUES (?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("failed to prepare schedule insert: %w", err)
	}
	defer insertMatchup.Close()

	for _, m := range schedule {
		if m.Team == "" || m.Week <= 0 {
			continue
		}
		if _, err := insertMatchup.ExecContext(ctx, m.Team, m.Week, m.Opponent); err != nil {
			return fmt.Errorf("failed to insert matchup for %q week %d: %w", m.Team, m.Week, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit roster reload: %w", err)
	}
	return nil
}

// Lookup returns the stored player for a name (case-insensitive), or
// false if the player is unknown.
func (s *Store) Lookup(ctx context.Context, name string) (Player, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var p Player
	row := s.lookupStmt.QueryRowContext(ctx, name)
	err := row.Scan(&p.Name, &p.Position, &p.Team, &p.Rank, &p.ADP,
		&p.ByeWeek, &p.ProjectedPoints, &p.InjuryStatus)
	if err == sql.ErrNoRows {
		return Player{}, false, nil
	}
	if err != nil {
		return Player{}, false, fmt.Errorf("failed to look up player %q: %w", name, err)
	}
	return p, true, nil
}

// Opponent returns the scheduled opponent for a team in a given week, or
// false if the matchup is unknown.
func (s *Store) Opponent(ctx context.Context, team string, week int) (string, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var opponent string
	err := s.opponentStmt.QueryRowContext(ctx, team, week).Scan(&opponent)
	if err == sql.ErrNoRows {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("failed to look up opponent for %q week %d: %w", team, week, err)
	}
	return opponent, true, nil
}

// Count returns the number of stored players.
func (s *Store) Count(ctx context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM players`).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count players: %w", err)
	}
	return n, nil
}

// Enrich fills missing roster fields on player elements inside an assist
// payload. It walks arrays of objects keyed by "name" and adds team,
// position, bye week, and opponent context from the store. The payload is
// modified in place; unknown players are left untouched.
func (s *Store) Enrich(ctx context.Context, payload map[string]any, week int) error {
	for _, value := range payload {
		items, ok := value.([]any)
		if !ok {
			continue
		}
		for _, item := range items {
			obj, ok := item.(map[string]any)
			if !ok {
				continue
			}
			name, _ := obj["name"].(string)
			if name == "" {
				continue
			}

			p, found, err := s.Lookup(ctx, name)
			if err != nil {
				return err
			}
			if !found {
				continue
			}

			fillString(obj, "position", p.Position)
			fillString(obj, "team", p.Team)
			fillString(obj, "injury_status", p.InjuryStatus)
			fillNumber(obj, "rank", float64(p.Rank))
			fillNumber(obj, "adp", p.ADP)
			fillNumber(obj, "bye_week", float64(p.ByeWeek))
			fillNumber(obj, "projected_points", p.ProjectedPoints)

			if week > 0 && p.Team != "" {
				if _, present := obj["opponent"]; !present {
					opponent, found, err := s.Opponent(ctx, p.Team, week)
					if err != nil {
						return err
					}
					if found {
						obj["opponent"] = opponent
					}
				}
			}
		}
	}
	return nil
}

// fillString sets obj[key] only when the key is absent or empty.
func fillString(obj map[string]any, key, value string) {
	if value == "" {
		return
	}
	if existing, ok := obj[key].(string); ok && existing != "" {
		return
	}
	if _, present := obj[key]; present {
		if _, isString := obj[key].(string); !isString {
			return
		}
	}
	obj[key] = value
}

// fillNumber sets obj[key] only when the key is absent and the value is
// meaningful.
func fillNumber(obj map[string]any, key string, value float64) {
	if value == 0 {
		return
	}
	if _, present := obj[key]; present {
		return
	}
	obj[key] = value
}

// Close releases the store's database resources.
func (s *Store) Close() error {
	var err error
	s.closeOnce.Do(func() {
		if s.lookupStmt != nil {
			s.lookupStmt.Close()
		}
		if s.opponentStmt != nil {
			s.opponentStmt.Close()
		}
		err = s.db.Close()
	})
	return err
}
