package crawler

import (
	"context"
	"time"
)

// QueryExecutor performs one remote search call. Implementations do no
// retrying or quota handling of their own; both live in this package.
type QueryExecutor interface {
	Search(ctx context.Context, query string, first int, cursor string) (SearchPage, error)
}

// RecordSink persists record batches. UpsertBatch is idempotent and
// all-or-nothing per batch; it returns the number of rows affected.
type RecordSink interface {
	UpsertBatch(ctx context.Context, records []Record) (int64, error)
	Count(ctx context.Context) (int64, error)
}

// Pacer spaces successive remote calls. *rate.Limiter satisfies it.
type Pacer interface {
	Wait(ctx context.Context) error
}

// Clock returns the current time (useful for testing).
type Clock interface {
	Now() time.Time
}

// BatchFunc consumes one batch of parsed records. Returning an error stops
// the shard.
type BatchFunc func(batch []Record) error
