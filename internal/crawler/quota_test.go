package crawler

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func TestAcquirePassesAboveBuffer(t *testing.T) {
	t.Parallel()

	g := NewRateGovernor(GovernorConfig{Buffer: 100}, nil, zap.NewNop())
	g.Observe(QuotaReport{Limit: 5000, Remaining: 4500, ResetAt: time.Now().Add(time.Hour), Cost: 1})

	start := time.Now()
	require.NoError(t, g.Acquire(context.Background()))
	require.Less(t, time.Since(start), 50*time.Millisecond)
}

func TestAcquireWaitsUntilReset(t *testing.T) {
	t.Parallel()

	g := NewRateGovernor(GovernorConfig{Buffer: 100, ResetMargin: 10 * time.Millisecond}, nil, zap.NewNop())
	g.Observe(QuotaReport{Limit: 5000, Remaining: 5, ResetAt: time.Now().Add(40 * time.Millisecond), Cost: 1})

	start := time.Now()
	require.NoError(t, g.Acquire(context.Background()))
	require.GreaterOrEqual(t, time.Since(start), 40*time.Millisecond)

	state := g.Snapshot()
	require.Equal(t, 5000, state.Remaining, "budget assumed restored after reset")
}

func TestAcquireSkipsWaitWhenResetPassed(t *testing.T) {
	t.Parallel()

	clock := &fakeClock{now: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
	g := NewRateGovernor(GovernorConfig{Buffer: 100}, clock, zap.NewNop())
	g.Observe(QuotaReport{Limit: 5000, Remaining: 2, ResetAt: clock.Now().Add(-time.Minute), Cost: 1})

	start := time.Now()
	require.NoError(t, g.Acquire(context.Background()))
	require.Less(t, time.Since(start), 50*time.Millisecond)
	require.Equal(t, 5000, g.Snapshot().Remaining)
}

func TestAcquireHonorsCancellation(t *testing.T) {
	t.Parallel()

	g := NewRateGovernor(GovernorConfig{Buffer: 100}, nil, zap.NewNop())
	g.Observe(QuotaReport{Limit: 5000, Remaining: 1, ResetAt: time.Now().Add(time.Hour), Cost: 1})

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()

	start := time.Now()
	err := g.Acquire(ctx)
	require.ErrorIs(t, err, context.Canceled)
	require.Less(t, time.Since(start), time.Second)
}

func TestObserveTrustsLatestReport(t *testing.T) {
	t.Parallel()

	g := NewRateGovernor(GovernorConfig{}, nil, zap.NewNop())
	reset := time.Date(2026, 3, 1, 13, 0, 0, 0, time.UTC)

	g.Observe(QuotaReport{Limit: 5000, Remaining: 40, ResetAt: reset, Cost: 1})
	g.Observe(QuotaReport{Limit: 5000, Remaining: 4900, ResetAt: reset.Add(time.Hour), Cost: 3})

	state := g.Snapshot()
	require.Equal(t, 4900, state.Remaining)
	require.Equal(t, reset.Add(time.Hour), state.ResetAt)
	require.Equal(t, 3, state.LastCost)
}

func TestAcquireSerializesCallers(t *testing.T) {
	t.Parallel()

	g := NewRateGovernor(GovernorConfig{Buffer: 100, ResetMargin: 5 * time.Millisecond}, nil, zap.NewNop())
	g.Observe(QuotaReport{Limit: 5000, Remaining: 3, ResetAt: time.Now().Add(50 * time.Millisecond), Cost: 1})

	start := time.Now()
	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			require.NoError(t, g.Acquire(context.Background()))
		}()
	}
	wg.Wait()

	// One caller waits out the reset and restores the budget; the rest
	// queue behind it and pass without sleeping again.
	elapsed := time.Since(start)
	require.GreaterOrEqual(t, elapsed, 50*time.Millisecond)
	require.Less(t, elapsed, 200*time.Millisecond)
}
