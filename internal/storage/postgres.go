package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	logx "dealtimeline/pkg/logx"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// pgStore is a PostgreSQL-backed Store for shared deployments.
type pgStore struct {
	pool *pgxpool.Pool
	log  logx.Logger
}

func openPostgres(ctx context.Context, cfg Config, log logx.Logger) (Store, error) {
	dsn := strings.TrimSpace(cfg.DSN)
	if dsn == "" {
		return nil, errors.New("storage.dsn is required for postgres driver")
	}
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	s := &pgStore{pool: pool, log: log}
	if err := s.EnsureTables(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return s, nil
}

// EnsureTables creates the runs, schedules and dedup tables if they don't exist.
func (s *pgStore) EnsureTables(ctx context.Context) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS runs (
			id           TEXT PRIMARY KEY,
			at           TIMESTAMPTZ NOT NULL,
			reason       TEXT NOT NULL DEFAULT '',
			project      TEXT NOT NULL DEFAULT '',
			jurisdiction TEXT NOT NULL DEFAULT '',
			ok           BOOLEAN NOT NULL DEFAULT FALSE,
			err          TEXT NOT NULL DEFAULT '',
			tasks        INTEGER NOT NULL DEFAULT 0,
			unresolved   TEXT[] DEFAULT '{}',
			passes       INTEGER NOT NULL DEFAULT 0,
			end_date     TEXT NOT NULL DEFAULT '',
			digest       TEXT NOT NULL DEFAULT '',
			took_ms      BIGINT NOT NULL DEFAULT 0
		)`,
		`CREATE INDEX IF NOT EXISTS idx_runs_at ON runs(at, id)`,
		`CREATE TABLE IF NOT EXISTS schedules (
			run_id TEXT PRIMARY KEY,
			at     TIMESTAMPTZ NOT NULL,
			digest TEXT NOT NULL,
			body   JSONB NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_schedules_at ON schedules(at)`,
		`CREATE TABLE IF NOT EXISTS dedup (
			key   TEXT PRIMARY KEY,
			until BIGINT NOT NULL
		)`,
	}
	for _, q := range stmts {
		if _, err := s.pool.Exec(ctx, q); err != nil {
			return fmt.Errorf("ensure tables: %w", err)
		}
	}
	return nil
}

func (s *pgStore) Close() error {
	if s == nil || s.pool == nil {
		return nil
	}
	s.pool.Close()
	return nil
}

func (s *pgStore) AppendRun(ctx context.Context, r RunRecord) error {
	if r.ID == "" {
		r.ID = NewRunID()
	}
	if r.At.IsZero() {
		r.At = time.Now()
	}
	unresolved := r.Unresolved
	if unresolved == nil {
		unresolved = []string{}
	}
	_, err := s.pool.Exec(ctx, `
		INSERT INTO runs (id, at, reason, project, jurisdiction, ok, err, tasks, unresolved, passes, end_date, digest, took_ms)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`,
		r.ID, r.At.Truncate(time.Microsecond), r.Reason, r.Project, r.Jurisdiction, r.OK, r.Error,
		r.Tasks, unresolved, r.Passes, r.EndDate, r.Digest, r.TookMS)
	if err != nil {
		return fmt.Errorf("append run: %w", err)
	}
	return nil
}

func (s *pgStore) RecentRuns(ctx context.Context, limit int) ([]RunRecord, error) {
	query := `
		SELECT id, at, reason, project, jurisdiction, ok, err, tasks, unresolved, passes, end_date, digest, took_ms
		FROM runs ORDER BY at DESC, id DESC`
	var args []any
	if limit > 0 {
		query += ` LIMIT $1`
		args = append(args, limit)
	}
	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("recent runs: %w", err)
	}
	defer rows.Close()

	var out []RunRecord
	for rows.Next() {
		var r RunRecord
		if err := rows.Scan(&r.ID, &r.At, &r.Reason, &r.Project, &r.Jurisdiction, &r.OK, &r.Error,
			&r.Tasks, &r.Unresolved, &r.Passes, &r.EndDate, &r.Digest, &r.TookMS); err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		if len(r.Unresolved) == 0 {
			r.Unresolved = nil
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func (s *pgStore) SaveSchedule(ctx context.Context, snap Snapshot) error {
	if snap.At.IsZero() {
		snap.At = time.Now()
	}
	_, err := s.pool.Exec(ctx, `
		INSERT INTO schedules (run_id, at, digest, body)
		VALUES ($1, $2, $3, $4::jsonb)
		ON CONFLICT (run_id) DO UPDATE SET at = EXCLUDED.at, digest = EXCLUDED.digest, body = EXCLUDED.body`,
		snap.RunID, snap.At.Truncate(time.Microsecond), snap.Digest, string(snap.Body))
	if err != nil {
		return fmt.Errorf("save schedule: %w", err)
	}
	return nil
}

func (s *pgStore) LatestSchedule(ctx context.Context) (Snapshot, bool, error) {
	var snap Snapshot
	var body string
	err := s.pool.QueryRow(ctx, `
		SELECT run_id, at, digest, body::text FROM schedules ORDER BY at DESC LIMIT 1`).
		Scan(&snap.RunID, &snap.At, &snap.Digest, &body)
	if errors.Is(err, pgx.ErrNoRows) {
		return Snapshot{}, false, nil
	}
	if err != nil {
		return Snapshot{}, false, fmt.Errorf("latest schedule: %w", err)
	}
	snap.Body = []byte(body)
	return snap, true, nil
}

func (s *pgStore) PutDedup(ctx context.Context, key string, until time.Time) error {
	if key == "" {
		return nil
	}
	_, err := s.pool.Exec(ctx, `
		INSERT INTO dedup (key, until) VALUES ($1, $2)
		ON CONFLICT (key) DO UPDATE SET until = EXCLUDED.until`,
		key, until.UnixMilli())
	return err
}

func (s *pgStore) GetDedup(ctx context.Context, key string) (time.Time, bool, error) {
	if key == "" {
		return time.Time{}, false, nil
	}
	var ms int64
	err := s.pool.QueryRow(ctx, `SELECT until FROM dedup WHERE key = $1`, key).Scan(&ms)
	if errors.Is(err, pgx.ErrNoRows) {
		return time.Time{}, false, nil
	}
	if err != nil {
		return time.Time{}, false, err
	}
	return time.UnixMilli(ms), true, nil
}
