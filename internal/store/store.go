// Package store defines the record store abstraction and its shared
// contract: idempotent batch upserts keyed by repository id, with
// interchangeable Postgres, SQLite, and in-memory backends selected at
// construction time.
package store

import (
	"context"

	"github.com/stellargo/starcrawl/internal/crawler"
)

// Store persists harvested records. UpsertBatch is all-or-nothing per
// batch and idempotent: re-applying an identical batch leaves the store
// unchanged, though the reported rows-affected count may differ between
// the two calls.
type Store interface {
	crawler.RecordSink

	// Setup creates the schema if it does not exist.
	Setup(ctx context.Context) error

	// All returns every stored record, ordered by star count descending.
	All(ctx context.Context) ([]crawler.Record, error)

	// Close releases the backend's resources.
	Close() error
}
