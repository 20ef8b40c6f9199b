package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"stratbench/internal/domain"

	_ "modernc.org/sqlite" // Pure-Go SQLite driver.
)

// Compile-time interface checks.
var _ ParamStore = (*SQLiteStore)(nil)
var _ RunStore = (*SQLiteStore)(nil)

const schema = `
CREATE TABLE IF NOT EXISTS params (
	key        TEXT PRIMARY KEY,
	kind       TEXT NOT NULL,
	short      INTEGER,
	long       INTEGER,
	ret        TEXT NOT NULL,
	run_id     TEXT NOT NULL DEFAULT '',
	updated_at INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS runs (
	id         TEXT PRIMARY KEY,
	symbol     TEXT NOT NULL,
	kind       TEXT NOT NULL,
	short      INTEGER,
	long       INTEGER,
	ret        TEXT NOT NULL,
	baseline   TEXT NOT NULL,
	bars       INTEGER NOT NULL,
	created_at INTEGER NOT NULL
);

CREATE INDEX IF NOT EXISTS runs_symbol_created ON runs (symbol, created_at);
`

// SQLiteStore implements ParamStore and RunStore backed by a SQLite database.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens (or creates) a SQLite database at dbPath, creates the
// schema and returns a ready-to-use SQLiteStore.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, err
	}
	// A single connection serializes writers; analysis runs write rarely.
	db.SetMaxOpenConns(1)
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}
	return &SQLiteStore{db: db}, nil
}

// Close closes the underlying database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// ---------------------------------------------------------------------------
// ParamStore implementation
// ---------------------------------------------------------------------------

// GetParams returns the parameters stored under key.
func (s *SQLiteStore) GetParams(ctx context.Context, key string) (*domain.SavedParams, bool, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT kind, short, long, ret, run_id, updated_at FROM params WHERE key = ?`, key)

	var (
		kind, ret, runID string
		short, long      sql.NullInt64
		updated          int64
	)
	if err := row.Scan(&kind, &short, &long, &ret, &runID, &updated); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("reading params %s: %w", key, err)
	}

	p, err := decodeParams(kind, short, long, ret)
	if err != nil {
		return nil, false, fmt.Errorf("params %s: %w", key, err)
	}
	p.RunID = runID
	p.UpdatedAt = time.UnixMilli(updated).UTC()
	return p, true, nil
}

// SetParams inserts or replaces the parameters stored under key.
func (s *SQLiteStore) SetParams(ctx context.Context, key string, p domain.SavedParams) error {
	short, long := encodeWindow(p.Window)
	updated := p.UpdatedAt
	if updated.IsZero() {
		updated = time.Now()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO params (key, kind, short, long, ret, run_id, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		key, string(p.Kind), short, long, p.Return.String(), p.RunID, updated.UnixMilli())
	if err != nil {
		return fmt.Errorf("writing params %s: %w", key, err)
	}
	return nil
}

// ---------------------------------------------------------------------------
// RunStore implementation
// ---------------------------------------------------------------------------

// RecordRun inserts r. An empty ID is replaced with a new UUID and a zero
// CreatedAt with the current time.
func (s *SQLiteStore) RecordRun(ctx context.Context, r Run) error {
	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	if r.CreatedAt.IsZero() {
		r.CreatedAt = time.Now()
	}
	short, long := encodeWindow(r.Window)
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO runs (id, symbol, kind, short, long, ret, baseline, bars, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.ID, r.Symbol, string(r.Kind), short, long, r.Return.String(), r.Baseline.String(),
		r.Bars, r.CreatedAt.UnixMilli())
	if err != nil {
		return fmt.Errorf("recording run for %s: %w", r.Symbol, err)
	}
	return nil
}

// ListRuns returns recent runs, newest first.
func (s *SQLiteStore) ListRuns(ctx context.Context, symbol string, limit int) ([]Run, error) {
	if limit <= 0 {
		limit = 100
	}
	q := `SELECT id, symbol, kind, short, long, ret, baseline, bars, created_at FROM runs`
	args := []any{}
	if symbol != "" {
		q += ` WHERE symbol = ?`
		args = append(args, symbol)
	}
	q += ` ORDER BY created_at DESC, id LIMIT ?`
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("listing runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		var (
			r                   Run
			kind, ret, baseline string
			short, long         sql.NullInt64
			created             int64
		)
		if err := rows.Scan(&r.ID, &r.Symbol, &kind, &short, &long, &ret, &baseline, &r.Bars, &created); err != nil {
			return nil, fmt.Errorf("scanning run: %w", err)
		}
		p, err := decodeParams(kind, short, long, ret)
		if err != nil {
			return nil, fmt.Errorf("run %s: %w", r.ID, err)
		}
		if r.Baseline, err = decimal.NewFromString(baseline); err != nil {
			return nil, fmt.Errorf("run %s baseline: %w", r.ID, err)
		}
		r.Kind, r.Window, r.Return = p.Kind, p.Window, p.Return
		r.CreatedAt = time.UnixMilli(created).UTC()
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

func encodeWindow(w *domain.Window) (sql.NullInt64, sql.NullInt64) {
	if w == nil {
		return sql.NullInt64{}, sql.NullInt64{}
	}
	return sql.NullInt64{Int64: int64(w.Short), Valid: true}, sql.NullInt64{Int64: int64(w.Long), Valid: true}
}

func decodeParams(kind string, short, long sql.NullInt64, ret string) (*domain.SavedParams, error) {
	k, err := domain.ParseStrategyKind(kind)
	if err != nil {
		return nil, err
	}
	r, err := decimal.NewFromString(ret)
	if err != nil {
		return nil, fmt.Errorf("return %q: %w", ret, err)
	}
	p := &domain.SavedParams{Kind: k, Return: r}
	if short.Valid && long.Valid {
		p.Window = &domain.Window{Short: int(short.Int64), Long: int(long.Int64)}
	}
	return p, nil
}
