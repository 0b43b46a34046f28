package crawler

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/stellargo/starcrawl/internal/metrics"
)

// Crawl run defaults.
const (
	defaultTarget    = 100000
	defaultCriterion = "stars:>0"
)

// RunResult reports the outcome of one crawl run. On failure the counters
// still carry the progress made before the error.
type RunResult struct {
	RunID        string `json:"run_id"`
	Success      bool   `json:"success"`
	TotalCrawled int    `json:"total_crawled"`
	TotalBatches int    `json:"total_batches"`
	FinalCount   int64  `json:"final_count"`
	NewRecords   int64  `json:"new_records"`
	Err          error  `json:"-"`
}

// CrawlOrchestrator walks the shard list in order, funnels every fetched
// batch into the record sink, and enforces the global target cap. One
// logical thread of control drives a run; Status may be read concurrently.
type CrawlOrchestrator struct {
	partitioner *QueryPartitioner
	fetcher     *PagingFetcher
	sink        RecordSink
	logger      *zap.Logger

	mu       sync.Mutex
	progress Progress
}

// NewCrawlOrchestrator constructs an orchestrator over the given fetcher
// and sink.
func NewCrawlOrchestrator(
	partitioner *QueryPartitioner,
	fetcher *PagingFetcher,
	sink RecordSink,
	logger *zap.Logger,
) *CrawlOrchestrator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CrawlOrchestrator{
		partitioner: partitioner,
		fetcher:     fetcher,
		sink:        sink,
		logger:      logger,
		progress:    Progress{PerShard: make(map[string]int)},
	}
}

// Run crawls until target records have been fetched or every shard is
// exhausted. Every failure mode resolves into the returned result; Run
// never lets a collaborator panic escape.
func (o *CrawlOrchestrator) Run(ctx context.Context, criterion string, target int) (result RunResult) {
	if target <= 0 {
		target = defaultTarget
	}
	if criterion == "" {
		criterion = defaultCriterion
	}

	result.RunID = uuid.NewString()
	logger := o.logger.With(zap.String("run_id", result.RunID))
	o.resetProgress()

	defer func() {
		if r := recover(); r != nil {
			snap := o.Status()
			result = RunResult{
				RunID:        result.RunID,
				TotalCrawled: snap.TotalFetched,
				TotalBatches: snap.TotalBatches,
				Err:          fmt.Errorf("crawl panicked: %v", r),
			}
		}
		if result.Success {
			metrics.ObserveRun("success")
		} else {
			metrics.ObserveRun("failed")
		}
	}()

	baseline, err := o.sink.Count(ctx)
	if err != nil {
		result.Err = fmt.Errorf("read baseline count: %w", err)
		logger.Error("crawl aborted", zap.Error(result.Err))
		return result
	}

	shards := o.partitioner.Partition(criterion)
	logger.Info("starting crawl",
		zap.String("criterion", criterion),
		zap.Int("target", target),
		zap.Int("shards", len(shards)),
		zap.Int64("baseline_count", baseline),
	)

	for i, shard := range shards {
		fetched := o.Status().TotalFetched
		if fetched >= target {
			logger.Info("target reached",
				zap.Int("target", target),
				zap.Int("shards_unreached", len(shards)-i),
			)
			break
		}

		localCap := shard.Cap
		if remaining := target - fetched; remaining < localCap {
			localCap = remaining
		}

		shardLogger := logger.With(zap.String("shard", shard.Query))
		shardLogger.Info("starting shard",
			zap.Int("index", i+1),
			zap.Int("shards", len(shards)),
			zap.Int("cap", localCap),
			zap.Int("total_fetched", fetched),
		)

		err := o.fetcher.Fetch(ctx, shard, localCap, func(batch []Record) error {
			rows, err := o.sink.UpsertBatch(ctx, batch)
			if err != nil {
				return fmt.Errorf("upsert batch: %w", err)
			}
			snap := o.addBatch(shard.Query, len(batch))
			metrics.AddRecordsFetched(len(batch))
			metrics.AddRowsUpserted(rows)
			metrics.IncBatch()
			shardLogger.Debug("batch persisted",
				zap.Int("batch_size", len(batch)),
				zap.Int64("rows_affected", rows),
				zap.Int("total_fetched", snap.TotalFetched),
				zap.Int("total_batches", snap.TotalBatches),
			)
			return nil
		})
		if err != nil {
			snap := o.Status()
			result.TotalCrawled = snap.TotalFetched
			result.TotalBatches = snap.TotalBatches
			result.Err = fmt.Errorf("shard %q: %w", shard.Query, err)
			logger.Error("crawl failed",
				zap.Error(result.Err),
				zap.Int("total_crawled", snap.TotalFetched),
				zap.Int("total_batches", snap.TotalBatches),
			)
			return result
		}
		metrics.IncShardCompleted()
	}

	finalCount, err := o.sink.Count(ctx)
	if err != nil {
		snap := o.Status()
		result.TotalCrawled = snap.TotalFetched
		result.TotalBatches = snap.TotalBatches
		result.Err = fmt.Errorf("read final count: %w", err)
		logger.Error("crawl failed", zap.Error(result.Err))
		return result
	}

	snap := o.Status()
	result.Success = true
	result.TotalCrawled = snap.TotalFetched
	result.TotalBatches = snap.TotalBatches
	result.FinalCount = finalCount
	result.NewRecords = finalCount - baseline
	logger.Info("crawl complete",
		zap.Int("total_crawled", result.TotalCrawled),
		zap.Int("total_batches", result.TotalBatches),
		zap.Int64("final_count", result.FinalCount),
		zap.Int64("new_records", result.NewRecords),
	)
	return result
}

// Status returns a snapshot of the run's progress counters. Safe to call
// from another goroutine while a run is active.
func (o *CrawlOrchestrator) Status() Progress {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.progress.clone()
}

func (o *CrawlOrchestrator) addBatch(query string, n int) Progress {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.progress.TotalFetched += n
	o.progress.TotalBatches++
	o.progress.PerShard[query] += n
	return o.progress.clone()
}

func (o *CrawlOrchestrator) resetProgress() {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.progress = Progress{PerShard: make(map[string]int)}
}
