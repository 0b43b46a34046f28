package crawler

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// universeExecutor serves a fixed per-query item universe with offset
// cursors, the way the real search API pages through results.
type universeExecutor struct {
	mu       sync.Mutex
	universe map[string][]json.RawMessage
	calls    int
}

func (e *universeExecutor) Search(ctx context.Context, query string, first int, cursor string) (SearchPage, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := ctx.Err(); err != nil {
		return SearchPage{}, err
	}
	e.calls++

	items := e.universe[query]
	start := 0
	if cursor != "" {
		n, err := strconv.Atoi(cursor)
		if err != nil {
			return SearchPage{}, err
		}
		start = n
	}
	if start > len(items) {
		start = len(items)
	}
	end := start + first
	if end > len(items) {
		end = len(items)
	}

	return SearchPage{
		Items:      items[start:end],
		TotalCount: len(items),
		NextCursor: strconv.Itoa(end),
		HasMore:    end < len(items),
	}, nil
}

func (e *universeExecutor) callCount() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.calls
}

// memorySink is an in-process RecordSink with scriptable failures.
type memorySink struct {
	mu         sync.Mutex
	records    map[int64]Record
	batchSizes []int
	failOn     int // 1-based upsert ordinal that fails; 0 = never
	panicOn    int // 1-based upsert ordinal that panics; 0 = never
	upserts    int
}

func newMemorySink() *memorySink {
	return &memorySink{records: make(map[int64]Record)}
}

func (s *memorySink) UpsertBatch(ctx context.Context, records []Record) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.upserts++
	if s.panicOn > 0 && s.upserts == s.panicOn {
		panic("sink exploded")
	}
	if s.failOn > 0 && s.upserts == s.failOn {
		return 0, errors.New("connection refused")
	}
	for _, rec := range records {
		s.records[rec.ID] = rec
	}
	s.batchSizes = append(s.batchSizes, len(records))
	return int64(len(records)), nil
}

func (s *memorySink) Count(context.Context) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return int64(len(s.records)), nil
}

func (s *memorySink) sizes() []int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]int(nil), s.batchSizes...)
}

func newTestOrchestrator(executor QueryExecutor, sink RecordSink) *CrawlOrchestrator {
	governor := NewRateGovernor(GovernorConfig{}, nil, zap.NewNop())
	policy := NewRetryPolicy(RetryConfig{MaxAttempts: 3, InitialDelay: time.Millisecond, MaxDelay: 5 * time.Millisecond}, zap.NewNop())
	fetcher := NewPagingFetcher(executor, governor, policy, nil, nil, FetcherConfig{BatchSize: 100}, zap.NewNop())
	return NewCrawlOrchestrator(NewQueryPartitioner(1000), fetcher, sink, zap.NewNop())
}

func TestRunCrawlsOneShardUniverse(t *testing.T) {
	t.Parallel()

	executor := &universeExecutor{universe: map[string][]json.RawMessage{
		"stars:0": makeItems(1, 250),
	}}
	sink := newMemorySink()

	result := newTestOrchestrator(executor, sink).Run(context.Background(), "stars:>0", 100000)

	require.NoError(t, result.Err)
	require.True(t, result.Success)
	require.NotEmpty(t, result.RunID)
	require.Equal(t, 250, result.TotalCrawled)
	require.Equal(t, 3, result.TotalBatches)
	require.Equal(t, int64(250), result.FinalCount)
	require.Equal(t, int64(250), result.NewRecords)
	require.Equal(t, []int{100, 100, 50}, sink.sizes())
}

func TestRunCountsNewRecordsAgainstBaseline(t *testing.T) {
	t.Parallel()

	executor := &universeExecutor{universe: map[string][]json.RawMessage{
		"stars:0": makeItems(1, 250),
	}}
	sink := newMemorySink()

	// Seed 10 of the 250 IDs so the crawl re-visits them.
	for _, raw := range makeItems(1, 10) {
		rec, err := ParseRecord(raw, time.Now())
		require.NoError(t, err)
		sink.records[rec.ID] = rec
	}

	result := newTestOrchestrator(executor, sink).Run(context.Background(), "stars:>0", 100000)

	require.True(t, result.Success)
	require.Equal(t, 250, result.TotalCrawled)
	require.Equal(t, int64(250), result.FinalCount)
	require.Equal(t, int64(240), result.NewRecords)
}

func TestRunHonorsTargetCap(t *testing.T) {
	t.Parallel()

	executor := &universeExecutor{universe: map[string][]json.RawMessage{
		"stars:0": makeItems(1, 150),
		"stars:1": makeItems(1001, 150),
	}}
	sink := newMemorySink()
	orch := newTestOrchestrator(executor, sink)

	result := orch.Run(context.Background(), "stars:>0", 200)

	require.True(t, result.Success)
	require.Equal(t, 200, result.TotalCrawled)
	require.Equal(t, int64(200), result.FinalCount)

	total := 0
	for _, size := range sink.sizes() {
		total += size
		require.LessOrEqual(t, total, 200, "cumulative writes must never exceed the target")
	}

	progress := orch.Status()
	require.Equal(t, 150, progress.PerShard["stars:0"])
	require.Equal(t, 50, progress.PerShard["stars:1"])
}

func TestRunPreservesPartialProgressOnFailure(t *testing.T) {
	t.Parallel()

	executor := &universeExecutor{universe: map[string][]json.RawMessage{
		"stars:0": makeItems(1, 250),
	}}
	sink := newMemorySink()
	sink.failOn = 2

	result := newTestOrchestrator(executor, sink).Run(context.Background(), "stars:>0", 100000)

	require.False(t, result.Success)
	require.Error(t, result.Err)
	require.Contains(t, result.Err.Error(), "upsert batch")
	require.Equal(t, 100, result.TotalCrawled)
	require.Equal(t, 1, result.TotalBatches)
}

func TestRunNeverLetsAPanicEscape(t *testing.T) {
	t.Parallel()

	executor := &universeExecutor{universe: map[string][]json.RawMessage{
		"stars:0": makeItems(1, 120),
	}}
	sink := newMemorySink()
	sink.panicOn = 2

	var result RunResult
	require.NotPanics(t, func() {
		result = newTestOrchestrator(executor, sink).Run(context.Background(), "stars:>0", 100000)
	})

	require.False(t, result.Success)
	require.Error(t, result.Err)
	require.Contains(t, result.Err.Error(), "crawl panicked")
	require.Equal(t, 100, result.TotalCrawled)
	require.Equal(t, 1, result.TotalBatches)
}

func TestRunVisitsEveryShardWhenuniverseIsEmpty(t *testing.T) {
	t.Parallel()

	executor := &universeExecutor{universe: map[string][]json.RawMessage{}}
	sink := newMemorySink()

	result := newTestOrchestrator(executor, sink).Run(context.Background(), "stars:>0", 100000)

	require.True(t, result.Success)
	require.Zero(t, result.TotalCrawled)
	require.Zero(t, result.TotalBatches)
	require.Zero(t, result.FinalCount)
	require.Equal(t, 99, executor.callCount(), "every shard polled exactly once")
}

func TestRunStopsOnCancellation(t *testing.T) {
	t.Parallel()

	executor := &universeExecutor{universe: map[string][]json.RawMessage{
		"stars:0": makeItems(1, 100),
	}}
	sink := newMemorySink()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	result := newTestOrchestrator(executor, sink).Run(ctx, "stars:>0", 100000)

	require.False(t, result.Success)
	require.ErrorIs(t, result.Err, context.Canceled)
}

func TestRunStatusTracksProgress(t *testing.T) {
	t.Parallel()

	executor := &universeExecutor{universe: map[string][]json.RawMessage{
		"stars:0": makeItems(1, 130),
	}}
	sink := newMemorySink()
	orch := newTestOrchestrator(executor, sink)

	result := orch.Run(context.Background(), "stars:>0", 100000)
	require.True(t, result.Success)

	progress := orch.Status()
	require.Equal(t, result.TotalCrawled, progress.TotalFetched)
	require.Equal(t, result.TotalBatches, progress.TotalBatches)

	sum := 0
	for _, n := range progress.PerShard {
		sum += n
	}
	require.Equal(t, progress.TotalFetched, sum)

	// Snapshots are copies; mutating one must not touch the run's counters.
	progress.PerShard["stars:0"] = 1
	require.Equal(t, 130, orch.Status().PerShard["stars:0"])
}
