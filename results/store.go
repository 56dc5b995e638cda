// Package results keeps one row per finished game in a sqlite database, so
// that runs can be compared after the fact.
package results

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	_ "modernc.org/sqlite"
)

const schema = `
CREATE TABLE IF NOT EXISTS runs(
	id TEXT PRIMARY KEY,
	started INTEGER NOT NULL,
	layout TEXT NOT NULL,
	learning INTEGER NOT NULL
);
CREATE TABLE IF NOT EXISTS games(
	run_id TEXT NOT NULL REFERENCES runs(id),
	game INTEGER NOT NULL,
	score INTEGER NOT NULL,
	max_tile INTEGER NOT NULL,
	moves INTEGER NOT NULL,
	epsilon REAL NOT NULL,
	td_error REAL NOT NULL,
	duration_ms INTEGER NOT NULL,
	PRIMARY KEY(run_id, game)
);
`

type Run struct {
	ID       string
	Started  time.Time
	Layout   string
	Learning bool
}

type Game struct {
	Game     int
	Score    int
	MaxTile  int
	Moves    int
	Epsilon  float64
	TDError  float64
	Duration time.Duration
}

// RunSummary aggregates the games of one run.
type RunSummary struct {
	Games     int
	MeanScore float64
	BestScore int
	BestTile  int
}

type Store struct {
	db *sql.DB
}

// Open opens (creating if needed) the database at path. Use ":memory:" for
// a throwaway store.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	// One connection: sqlite serializes writers anyway, and ":memory:"
	// databases are per connection.
	db.SetMaxOpenConns(1)
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, err
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating results schema: %w", err)
	}
	log.Debug().Str("path", path).Msg("opened-results-db")
	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) StartRun(ctx context.Context, r Run) error {
	_, err := s.db.ExecContext(ctx,
		"INSERT INTO runs(id, started, layout, learning) VALUES(?,?,?,?)",
		r.ID, r.Started.Unix(), r.Layout, r.Learning)
	return err
}

func (s *Store) Record(ctx context.Context, runID string, g Game) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO games(run_id, game, score, max_tile, moves, epsilon, td_error, duration_ms)
		VALUES(?,?,?,?,?,?,?,?)`,
		runID, g.Game, g.Score, g.MaxTile, g.Moves, g.Epsilon, g.TDError, g.Duration.Milliseconds())
	return err
}

var ErrNoSuchRun = errors.New("no such run")

func (s *Store) Summary(ctx context.Context, runID string) (RunSummary, error) {
	var exists int
	err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM runs WHERE id = ?", runID).Scan(&exists)
	if err != nil {
		return RunSummary{}, err
	}
	if exists == 0 {
		return RunSummary{}, fmt.Errorf("%w: %s", ErrNoSuchRun, runID)
	}
	var rs RunSummary
	err = s.db.QueryRowContext(ctx,
		`SELECT COUNT(*), COALESCE(AVG(score), 0), COALESCE(MAX(score), 0), COALESCE(MAX(max_tile), 0)
		FROM games WHERE run_id = ?`, runID).
		Scan(&rs.Games, &rs.MeanScore, &rs.BestScore, &rs.BestTile)
	return rs, err
}

// Runs lists all runs, most recent first.
func (s *Store) Runs(ctx context.Context) ([]Run, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT id, started, layout, learning FROM runs ORDER BY started DESC, id")
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Run
	for rows.Next() {
		var r Run
		var started int64
		if err := rows.Scan(&r.ID, &started, &r.Layout, &r.Learning); err != nil {
			return nil, err
		}
		r.Started = time.Unix(started, 0)
		out = append(out, r)
	}
	return out, rows.Err()
}
