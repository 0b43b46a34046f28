package crawler

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/stellargo/starcrawl/internal/clock/system"
	"github.com/stellargo/starcrawl/internal/metrics"
)

// defaultBatchSize is the search API's per-page maximum.
const defaultBatchSize = 100

// FetcherConfig tunes the paging fetcher.
type FetcherConfig struct {
	BatchSize int
}

// PagingFetcher drives cursor pagination for one shard at a time: gate on
// the governor, execute the search under the retry policy, fold the quota
// report back into the governor, parse, and hand each non-empty batch to
// the caller. Batches within a shard are strictly ordered; the sequence is
// not restartable mid-shard.
type PagingFetcher struct {
	executor  QueryExecutor
	governor  *RateGovernor
	retry     *RetryPolicy
	pacer     Pacer
	clock     Clock
	batchSize int
	logger    *zap.Logger
}

// NewPagingFetcher constructs a fetcher. pacer may be nil to disable
// politeness spacing.
func NewPagingFetcher(
	executor QueryExecutor,
	governor *RateGovernor,
	retry *RetryPolicy,
	pacer Pacer,
	clock Clock,
	cfg FetcherConfig,
	logger *zap.Logger,
) *PagingFetcher {
	if cfg.BatchSize <= 0 || cfg.BatchSize > defaultBatchSize {
		cfg.BatchSize = defaultBatchSize
	}
	if clock == nil {
		clock = system.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PagingFetcher{
		executor:  executor,
		governor:  governor,
		retry:     retry,
		pacer:     pacer,
		clock:     clock,
		batchSize: cfg.BatchSize,
		logger:    logger,
	}
}

// Fetch pages through shard until its results are exhausted or budget
// records have been yielded. budget <= 0 means no cap. Each request asks
// for min(batch size, remaining budget), so the final page is sized to
// avoid overshoot. An item that fails to parse is logged and dropped; a
// page with zero parsed items ends the shard.
func (f *PagingFetcher) Fetch(ctx context.Context, shard Shard, budget int, fn BatchFunc) error {
	cursor := ""
	fetched := 0

	for {
		if budget > 0 && fetched >= budget {
			return nil
		}
		size := f.batchSize
		if budget > 0 {
			if remaining := budget - fetched; remaining < size {
				size = remaining
			}
		}

		if err := f.governor.Acquire(ctx); err != nil {
			return fmt.Errorf("acquire quota: %w", err)
		}
		if f.pacer != nil {
			if err := f.pacer.Wait(ctx); err != nil {
				return fmt.Errorf("pace request: %w", err)
			}
		}

		var page SearchPage
		err := f.retry.Execute(ctx, func(ctx context.Context) error {
			p, err := f.executor.Search(ctx, shard.Query, size, cursor)
			if err != nil {
				return err
			}
			page = p
			return nil
		})
		if err != nil {
			return fmt.Errorf("search %q: %w", shard.Query, err)
		}

		if page.Quota != nil {
			f.governor.Observe(*page.Quota)
		}

		now := f.clock.Now()
		records := make([]Record, 0, len(page.Items))
		for _, item := range page.Items {
			rec, err := ParseRecord(item, now)
			if err != nil {
				f.logger.Warn("skipping unparsable item",
					zap.String("shard", shard.Query),
					zap.Error(err),
				)
				metrics.IncParseFailure()
				continue
			}
			records = append(records, rec)
		}

		if len(records) == 0 {
			f.logger.Debug("no more matches", zap.String("shard", shard.Query))
			return nil
		}

		if err := fn(records); err != nil {
			return err
		}
		fetched += len(records)

		if !page.HasMore {
			return nil
		}
		cursor = page.NextCursor
	}
}
