// Package store keeps a history of detection runs in a SQLite database.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/ironsheep/coin-counter/internal/coins"
)

const schema = `
CREATE TABLE IF NOT EXISTS runs (
	id          INTEGER PRIMARY KEY AUTOINCREMENT,
	image       TEXT     NOT NULL,
	created_at  DATETIME NOT NULL,
	width       INTEGER  NOT NULL,
	height      INTEGER  NOT NULL,
	scale       REAL     NOT NULL,
	candidates  INTEGER  NOT NULL,
	total_cents INTEGER  NOT NULL
);

CREATE TABLE IF NOT EXISTS coins (
	id            INTEGER PRIMARY KEY AUTOINCREMENT,
	run_id        INTEGER NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
	position      INTEGER NOT NULL,
	denomination  TEXT    NOT NULL,
	side          TEXT    NOT NULL,
	match_percent REAL    NOT NULL,
	center_x      REAL    NOT NULL,
	center_y      REAL    NOT NULL,
	major         REAL    NOT NULL,
	minor         REAL    NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_coins_run ON coins(run_id);
`

// Run is one recorded detection.
type Run struct {
	ID         int64       `json:"id"`
	Image      string      `json:"image"`
	CreatedAt  time.Time   `json:"created_at"`
	Width      int         `json:"width"`
	Height     int         `json:"height"`
	Scale      float64     `json:"scale"`
	Candidates int         `json:"candidates"`
	Total      coins.Value `json:"total_cents"`
	Coins      []Coin      `json:"coins"`
}

// Coin is one classified coin of a run.
type Coin struct {
	Position     int                `json:"position"`
	Denomination coins.Denomination `json:"denomination"`
	Side         coins.Side         `json:"side"`
	MatchPercent float64            `json:"match_percent"`
	CenterX      float64            `json:"center_x"`
	CenterY      float64            `json:"center_y"`
	Major        float64            `json:"major"`
	Minor        float64            `json:"minor"`
}

// Store wraps the SQLite connection.
type Store struct {
	conn *sql.DB
	path string
	now  func() time.Time
}

// Open opens or creates the database at path and ensures the schema exists.
func Open(path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	conn, err := sql.Open("sqlite3", path+"?_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	// SQLite serialises writers anyway.
	conn.SetMaxOpenConns(1)
	conn.SetMaxIdleConns(1)

	if _, err := conn.Exec(schema); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to create schema: %w", err)
	}

	return &Store{conn: conn, path: path, now: time.Now}, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	if s.conn != nil {
		return s.conn.Close()
	}
	return nil
}

// Path returns the database file path.
func (s *Store) Path() string {
	return s.path
}

// Record stores the result of one image and its classified coins in a single
// transaction and returns the new run ID.
func (s *Store) Record(ctx context.Context, image string, res *coins.Result) (int64, error) {
	if res == nil {
		return 0, fmt.Errorf("cannot record nil result")
	}

	var id int64
	err := s.execTx(ctx, func(tx *sql.Tx) error {
		r, err := tx.ExecContext(ctx,
			`INSERT INTO runs (image, created_at, width, height, scale, candidates, total_cents)
			 VALUES (?, ?, ?, ?, ?, ?, ?)`,
			image, s.now().UTC(), res.Width, res.Height, res.Scale, len(res.Detections), res.Total.Cents())
		if err != nil {
			return fmt.Errorf("failed to insert run: %w", err)
		}
		if id, err = r.LastInsertId(); err != nil {
			return fmt.Errorf("failed to read run id: %w", err)
		}

		stmt, err := tx.PrepareContext(ctx,
			`INSERT INTO coins (run_id, position, denomination, side, match_percent, center_x, center_y, major, minor)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`)
		if err != nil {
			return fmt.Errorf("failed to prepare coin insert: %w", err)
		}
		defer stmt.Close()

		for i, d := range res.Detections {
			if d.Coin == nil {
				continue
			}
			denom, err := d.Coin.Denomination.MarshalText()
			if err != nil {
				return err
			}
			side, err := d.Coin.Side.MarshalText()
			if err != nil {
				return err
			}
			e := d.Candidate.Ellipse
			if _, err := stmt.ExecContext(ctx, id, i, string(denom), string(side), d.Coin.MatchPercent,
				e.Center.X, e.Center.Y, e.Major, e.Minor); err != nil {
				return fmt.Errorf("failed to insert coin: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return id, nil
}

// Recent returns up to limit runs, newest first, with their coins.
func (s *Store) Recent(ctx context.Context, limit int) ([]Run, error) {
	if limit <= 0 {
		return []Run{}, nil
	}

	rows, err := s.conn.QueryContext(ctx,
		`SELECT id, image, created_at, width, height, scale, candidates, total_cents
		 FROM runs ORDER BY id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query runs: %w", err)
	}

	runs := make([]Run, 0)
	for rows.Next() {
		var r Run
		var total int
		if err := rows.Scan(&r.ID, &r.Image, &r.CreatedAt, &r.Width, &r.Height, &r.Scale, &r.Candidates, &total); err != nil {
			rows.Close()
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		r.Total = coins.Value(total)
		runs = append(runs, r)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, err
	}
	rows.Close()

	for i := range runs {
		if runs[i].Coins, err = s.runCoins(ctx, runs[i].ID); err != nil {
			return nil, err
		}
	}
	return runs, nil
}

func (s *Store) runCoins(ctx context.Context, runID int64) ([]Coin, error) {
	rows, err := s.conn.QueryContext(ctx,
		`SELECT position, denomination, side, match_percent, center_x, center_y, major, minor
		 FROM coins WHERE run_id = ? ORDER BY position`, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to query coins: %w", err)
	}
	defer rows.Close()

	list := make([]Coin, 0)
	for rows.Next() {
		var c Coin
		var denom, side string
		if err := rows.Scan(&c.Position, &denom, &side, &c.MatchPercent, &c.CenterX, &c.CenterY, &c.Major, &c.Minor); err != nil {
			return nil, fmt.Errorf("failed to scan coin: %w", err)
		}
		if err := c.Denomination.UnmarshalText([]byte(denom)); err != nil {
			return nil, err
		}
		if err := c.Side.UnmarshalText([]byte(side)); err != nil {
			return nil, err
		}
		list = append(list, c)
	}
	return list, rows.Err()
}

// execTx runs fn within a transaction.
func (s *Store) execTx(ctx context.Context, fn func(*sql.Tx) error) error {
	tx, err := s.conn.BeginTx(ctx, nil)
	if err != nil {
		return err
	}

	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			return fmt.Errorf("tx error: %v, rollback error: %w", err, rbErr)
		}
		return err
	}
	return tx.Commit()
}
