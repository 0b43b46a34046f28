// Package memory provides an in-process record store for tests and dry
// runs.
package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/stellargo/starcrawl/internal/crawler"
	"github.com/stellargo/starcrawl/internal/store"
)

// Store keeps records in a map keyed by repository id.
type Store struct {
	mu      sync.RWMutex
	records map[int64]crawler.Record
}

var _ store.Store = (*Store)(nil)

// New creates an empty store.
func New() *Store {
	return &Store{records: make(map[int64]crawler.Record)}
}

// Setup is a no-op; there is no schema.
func (s *Store) Setup(_ context.Context) error {
	return nil
}

// UpsertBatch inserts or replaces each record. Rows affected counts every
// record in the batch, matching the relational backends' upsert tally.
func (s *Store) UpsertBatch(_ context.Context, records []crawler.Record) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, rec := range records {
		s.records[rec.ID] = rec
	}
	return int64(len(records)), nil
}

// Count returns the number of stored records.
func (s *Store) Count(_ context.Context) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return int64(len(s.records)), nil
}

// All returns every stored record ordered by star count descending.
func (s *Store) All(_ context.Context) ([]crawler.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	records := make([]crawler.Record, 0, len(s.records))
	for _, rec := range s.records {
		records = append(records, rec)
	}
	sort.Slice(records, func(i, j int) bool {
		if records[i].StarCount != records[j].StarCount {
			return records[i].StarCount > records[j].StarCount
		}
		return records[i].ID < records[j].ID
	})
	return records, nil
}

// Close is a no-op.
func (s *Store) Close() error {
	return nil
}
