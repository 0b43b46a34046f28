// Package sqlite provides the embedded SQLite record store.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	// SQLite driver registration.
	_ "github.com/mattn/go-sqlite3"

	"github.com/stellargo/starcrawl/internal/crawler"
	"github.com/stellargo/starcrawl/internal/store"
)

// Store writes records into a SQLite database file.
type Store struct {
	db *sql.DB
}

var _ store.Store = (*Store)(nil)

const schemaDDL = `
CREATE TABLE IF NOT EXISTS repositories (
	id INTEGER PRIMARY KEY,
	full_name TEXT NOT NULL UNIQUE,
	star_count INTEGER NOT NULL DEFAULT 0,
	created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
	updated_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
	last_crawled_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
);
CREATE INDEX IF NOT EXISTS idx_repositories_star_count ON repositories(star_count DESC);
CREATE INDEX IF NOT EXISTS idx_repositories_last_crawled ON repositories(last_crawled_at);
`

const upsertSQL = `
INSERT INTO repositories (id, full_name, star_count, last_crawled_at)
VALUES (?, ?, ?, ?)
ON CONFLICT (id) DO UPDATE SET
	star_count = excluded.star_count,
	last_crawled_at = excluded.last_crawled_at,
	updated_at = CURRENT_TIMESTAMP`

// New opens (creating if needed) the database file at path.
func New(path string) (*Store, error) {
	if path == "" {
		return nil, fmt.Errorf("sqlite path is required")
	}
	db, err := sql.Open("sqlite3", path+"?_busy_timeout=5000&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}
	// A single writer keeps batch transactions from contending.
	db.SetMaxOpenConns(1)
	return &Store{db: db}, nil
}

// Setup creates the repositories table and its indexes.
func (s *Store) Setup(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, schemaDDL); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}
	return nil
}

// UpsertBatch writes records row by row inside one transaction, so the
// batch is all-or-nothing.
func (s *Store) UpsertBatch(ctx context.Context, records []crawler.Record) (int64, error) {
	if len(records) == 0 {
		return 0, nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin upsert transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	stmt, err := tx.PrepareContext(ctx, upsertSQL)
	if err != nil {
		return 0, fmt.Errorf("prepare upsert: %w", err)
	}
	defer func() {
		_ = stmt.Close()
	}()

	var affected int64
	for _, rec := range records {
		res, err := stmt.ExecContext(ctx, rec.ID, rec.FullName, rec.StarCount, rec.LastCrawledAt)
		if err != nil {
			return 0, fmt.Errorf("upsert %s: %w", rec.FullName, err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return 0, fmt.Errorf("rows affected for %s: %w", rec.FullName, err)
		}
		affected += n
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit upsert transaction: %w", err)
	}
	return affected, nil
}

// Count returns the number of stored records.
func (s *Store) Count(ctx context.Context) (int64, error) {
	var count int64
	err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM repositories").Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count repositories: %w", err)
	}
	return count, nil
}

// All returns every stored record ordered by star count descending.
func (s *Store) All(ctx context.Context) ([]crawler.Record, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, full_name, star_count, updated_at, last_crawled_at
		FROM repositories
		ORDER BY star_count DESC`)
	if err != nil {
		return nil, fmt.Errorf("query repositories: %w", err)
	}
	defer func() {
		_ = rows.Close()
	}()

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

// Close closes the database file.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}
