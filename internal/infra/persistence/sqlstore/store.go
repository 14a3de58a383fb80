// Package sqlstore implements slidebook.Store over database/sql. The sqlite
// and postgres packages supply the driver and placeholder dialect.
package sqlstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"slideapp/internal/slidebook"
)

var _ slidebook.Store = (*Store)(nil)

// timeLayout is fixed width so TEXT columns sort chronologically.
const timeLayout = "2006-01-02T15:04:05.000000000Z"

// Dialect captures the differences between supported databases.
type Dialect struct {
	Name string
	// Placeholder renders the n-th (1-based) bind parameter.
	Placeholder func(n int) string
}

var (
	// SQLite binds with "?".
	SQLite = Dialect{Name: "sqlite", Placeholder: func(int) string { return "?" }}
	// Postgres binds with "$n".
	Postgres = Dialect{Name: "postgres", Placeholder: func(n int) string { return "$" + strconv.Itoa(n) }}
)

// Schema creates the run and location tables. Both dialects accept it.
var Schema = []string{
	`CREATE TABLE IF NOT EXISTS experiment_runs (
		run_id TEXT PRIMARY KEY,
		username TEXT NOT NULL,
		created_at TEXT NOT NULL,
		export_key TEXT NOT NULL DEFAULT '',
		payload_json TEXT NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS experiment_runs_user_idx ON experiment_runs (username, created_at)`,
	`CREATE TABLE IF NOT EXISTS user_storage_locations (
		username TEXT NOT NULL,
		location TEXT NOT NULL,
		last_used_at TEXT NOT NULL,
		PRIMARY KEY (username, location)
	)`,
}

// Store persists runs as JSON payload rows.
type Store struct {
	db      *sql.DB
	dialect Dialect
}

// New applies the schema and returns a Store over db. The Store owns db.
func New(ctx context.Context, db *sql.DB, dialect Dialect) (*Store, error) {
	for _, stmt := range Schema {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return nil, fmt.Errorf("%s schema: %w", dialect.Name, err)
		}
	}
	return &Store{db: db, dialect: dialect}, nil
}

// DB exposes the handle for tests.
func (s *Store) DB() *sql.DB { return s.db }

// bind rewrites "?" markers into the dialect's placeholders.
func (s *Store) bind(query string) string {
	var b strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteString(s.dialect.Placeholder(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

func (s *Store) SaveRun(ctx context.Context, run slidebook.Run) (retErr error) {
	if err := run.Validate(); err != nil {
		return err
	}
	payload, err := json.Marshal(run.Payload)
	if err != nil {
		return fmt.Errorf("encode payload: %w", err)
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() {
		if retErr != nil {
			_ = tx.Rollback()
		}
	}()

	var exists int
	err = tx.QueryRowContext(ctx, s.bind(`SELECT COUNT(*) FROM experiment_runs WHERE run_id = ?`), run.ID).Scan(&exists)
	if err != nil {
		return fmt.Errorf("check run %s: %w", run.ID, err)
	}
	if exists > 0 {
		return fmt.Errorf("%w: %s", slidebook.ErrDuplicateRun, run.ID)
	}
	if _, err := tx.ExecContext(ctx,
		s.bind(`INSERT INTO experiment_runs (run_id, username, created_at, export_key, payload_json) VALUES (?, ?, ?, ?, ?)`),
		run.ID, run.Username, run.CreatedAt.UTC().Format(timeLayout), run.ExportKey, string(payload),
	); err != nil {
		return fmt.Errorf("insert run %s: %w", run.ID, err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit run %s: %w", run.ID, err)
	}
	return nil
}

func (s *Store) ListRuns(ctx context.Context, username string) ([]slidebook.Run, error) {
	rows, err := s.db.QueryContext(ctx,
		s.bind(`SELECT run_id, username, created_at, export_key, payload_json FROM experiment_runs WHERE username = ? ORDER BY created_at DESC, run_id ASC`),
		username,
	)
	if err != nil {
		return nil, fmt.Errorf("select runs: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []slidebook.Run
	for rows.Next() {
		var (
			run       slidebook.Run
			createdAt string
			payload   string
		)
		if err := rows.Scan(&run.ID, &run.Username, &createdAt, &run.ExportKey, &payload); err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		if run.CreatedAt, err = time.Parse(timeLayout, createdAt); err != nil {
			return nil, fmt.Errorf("decode created_at of %s: %w", run.ID, err)
		}
		if err := json.Unmarshal([]byte(payload), &run.Payload); err != nil {
			return nil, fmt.Errorf("decode payload of %s: %w", run.ID, err)
		}
		out = append(out, run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate runs: %w", err)
	}
	return out, nil
}

func (s *Store) RememberLocation(ctx context.Context, username, location string, at time.Time) error {
	if location == "" {
		return nil
	}
	_, err := s.db.ExecContext(ctx,
		s.bind(`INSERT INTO user_storage_locations (username, location, last_used_at) VALUES (?, ?, ?) ON CONFLICT (username, location) DO UPDATE SET last_used_at = excluded.last_used_at`),
		username, location, at.UTC().Format(timeLayout),
	)
	if err != nil {
		return fmt.Errorf("upsert location: %w", err)
	}
	return nil
}

func (s *Store) Locations(ctx context.Context, username string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx,
		s.bind(`SELECT location FROM user_storage_locations WHERE username = ? ORDER BY last_used_at DESC, location ASC`),
		username,
	)
	if err != nil {
		return nil, fmt.Errorf("select locations: %w", err)
	}
	defer func() { _ = rows.Close() }()
	var out []string
	for rows.Next() {
		var loc string
		if err := rows.Scan(&loc); err != nil {
			return nil, fmt.Errorf("scan location: %w", err)
		}
		out = append(out, loc)
	}
	return out, rows.Err()
}

func (s *Store) Close() error {
	if err := s.db.Close(); err != nil && !errors.Is(err, sql.ErrConnDone) {
		return err
	}
	return nil
}
