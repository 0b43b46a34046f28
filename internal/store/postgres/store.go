// Package postgres provides the Postgres-backed record store.
package postgres

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/stellargo/starcrawl/internal/crawler"
	"github.com/stellargo/starcrawl/internal/store"
)

// Config controls the Postgres connection pool.
type Config struct {
	DSN             string
	MaxConns        int32
	MinConns        int32
	MaxConnLifetime time.Duration
}

// querier is the slice of pgxpool.Pool the store uses; pgxmock satisfies
// it in tests.
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Close()
}

// Store writes records into the repositories table.
type Store struct {
	pool querier
}

var _ store.Store = (*Store)(nil)

const schemaDDL = `
CREATE TABLE IF NOT EXISTS repositories (
	id BIGINT PRIMARY KEY,
	full_name VARCHAR(255) NOT NULL UNIQUE,
	star_count INTEGER NOT NULL DEFAULT 0,
	created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	last_crawled_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
CREATE INDEX IF NOT EXISTS idx_repositories_full_name ON repositories(full_name);
CREATE INDEX IF NOT EXISTS idx_repositories_star_count ON repositories(star_count DESC);
CREATE INDEX IF NOT EXISTS idx_repositories_last_crawled ON repositories(last_crawled_at);
`

// New connects a pool and returns a store backed by it.
func New(ctx context.Context, cfg Config) (*Store, error) {
	if cfg.DSN == "" {
		return nil, fmt.Errorf("postgres dsn is required")
	}
	poolCfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("parse postgres dsn: %w", err)
	}
	if cfg.MaxConns > 0 {
		poolCfg.MaxConns = cfg.MaxConns
	}
	if cfg.MinConns > 0 {
		poolCfg.MinConns = cfg.MinConns
	}
	if cfg.MaxConnLifetime > 0 {
		poolCfg.MaxConnLifetime = cfg.MaxConnLifetime
	}
	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	return &Store{pool: pool}, nil
}

// NewWithPool constructs a store from an existing pool (primarily for
// testing).
func NewWithPool(pool querier) (*Store, error) {
	if pool == nil {
		return nil, fmt.Errorf("pool is required")
	}
	return &Store{pool: pool}, nil
}

// Setup creates the repositories table and its indexes.
func (s *Store) Setup(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, schemaDDL); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}
	return nil
}

// UpsertBatch writes records in one multi-row statement so the batch is
// all-or-nothing. Conflicting rows take the incoming star count and crawl
// timestamp under last-write-wins.
func (s *Store) UpsertBatch(ctx context.Context, records []crawler.Record) (int64, error) {
	if len(records) == 0 {
		return 0, nil
	}

	var sb strings.Builder
	sb.WriteString("INSERT INTO repositories (id, full_name, star_count, last_crawled_at) VALUES ")
	args := make([]any, 0, len(records)*4)
	for i, rec := range records {
		if i > 0 {
			sb.WriteString(", ")
		}
		base := i * 4
		fmt.Fprintf(&sb, "($%d, $%d, $%d, $%d)", base+1, base+2, base+3, base+4)
		args = append(args, rec.ID, rec.FullName, rec.StarCount, rec.LastCrawledAt)
	}
	sb.WriteString(` ON CONFLICT (id) DO UPDATE SET
		star_count = EXCLUDED.star_count,
		last_crawled_at = EXCLUDED.last_crawled_at,
		updated_at = NOW()`)

	tag, err := s.pool.Exec(ctx, sb.String(), args...)
	if err != nil {
		return 0, fmt.Errorf("upsert batch: %w", err)
	}
	return tag.RowsAffected(), nil
}

// Count returns the number of stored records.
func (s *Store) Count(ctx context.Context) (int64, error) {
	var count int64
	err := s.pool.QueryRow(ctx, "SELECT COUNT(*) FROM repositories").Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count repositories: %w", err)
	}
	return count, nil
}

// All returns every stored record ordered by star count descending.
func (s *Store) All(ctx context.Context) ([]crawler.Record, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, full_name, star_count, updated_at, last_crawled_at
		FROM repositories
		ORDER BY star_count DESC`)
	if err != nil {
		return nil, fmt.Errorf("query repositories: %w", err)
	}
	defer rows.Close()

	var records []crawler.Record
	for rows.Next() {
		var rec crawler.Record
		if err := rows.Scan(&rec.ID, &rec.FullName, &rec.StarCount, &rec.UpdatedAt, &rec.LastCrawledAt); err != nil {
			return nil, fmt.Errorf("scan repository row: %w", err)
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate repository rows: %w", err)
	}
	return records, nil
}

// Close releases the underlying pool resources.
func (s *Store) Close() error {
	if s == nil || s.pool == nil {
		return nil
	}
	s.pool.Close()
	return nil
}
