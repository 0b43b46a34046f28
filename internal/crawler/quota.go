package crawler

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/stellargo/starcrawl/internal/clock/system"
	"github.com/stellargo/starcrawl/internal/metrics"
)

// Quota guardrails for the search API.
const (
	defaultQuotaLimit  = 5000
	defaultQuotaBuffer = 100
	defaultResetMargin = 5 * time.Second
)

// QuotaState is the governor's view of the remote API request budget.
// Remaining only moves between reports when a reset instant passes, at
// which point it is assumed restored to Limit until the next report.
type QuotaState struct {
	Limit     int       `json:"limit"`
	Remaining int       `json:"remaining"`
	ResetAt   time.Time `json:"reset_at"`
	LastCost  int       `json:"last_cost"`
}

// GovernorConfig tunes the rate governor.
type GovernorConfig struct {
	Buffer      int
	ResetMargin time.Duration
}

// RateGovernor owns quota state and gates outgoing requests. Acquisition
// and state mutation are serialized under one mutex, so while one caller
// waits out a reset, later callers queue behind it and see the restored
// budget when they enter.
type RateGovernor struct {
	mu     sync.Mutex
	state  QuotaState
	buffer int
	margin time.Duration
	clock  Clock
	logger *zap.Logger
}

// NewRateGovernor builds a governor with sane defaults.
func NewRateGovernor(cfg GovernorConfig, clock Clock, logger *zap.Logger) *RateGovernor {
	if cfg.Buffer <= 0 {
		cfg.Buffer = defaultQuotaBuffer
	}
	if cfg.ResetMargin <= 0 {
		cfg.ResetMargin = defaultResetMargin
	}
	if clock == nil {
		clock = system.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RateGovernor{
		state:  QuotaState{Limit: defaultQuotaLimit, Remaining: defaultQuotaLimit},
		buffer: cfg.Buffer,
		margin: cfg.ResetMargin,
		clock:  clock,
		logger: logger,
	}
}

// Observe updates quota state from the API's self-reported envelope. The
// most recent report always wins.
func (g *RateGovernor) Observe(report QuotaReport) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.state = QuotaState{
		Limit:     report.Limit,
		Remaining: report.Remaining,
		ResetAt:   report.ResetAt,
		LastCost:  report.Cost,
	}
	metrics.SetQuotaRemaining(report.Remaining)
}

// Acquire blocks until the request budget allows another call. When the
// budget sits below the safety buffer the caller sleeps until the reported
// reset instant plus a small margin, honoring ctx cancellation.
func (g *RateGovernor) Acquire(ctx context.Context) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.state.Remaining >= g.buffer {
		return nil
	}

	wait := g.state.ResetAt.Sub(g.clock.Now())
	if wait > 0 {
		wait += g.margin
		g.logger.Info("api quota low, pausing until reset",
			zap.Int("remaining", g.state.Remaining),
			zap.Time("reset_at", g.state.ResetAt),
			zap.Duration("wait", wait),
		)
		metrics.ObserveQuotaPause(wait)
		timer := time.NewTimer(wait)
		defer timer.Stop()
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-timer.C:
		}
		g.logger.Info("api quota reset, resuming")
	}

	// The reset instant has passed; assume a fresh budget until the next
	// report says otherwise.
	g.state.Remaining = g.state.Limit
	return nil
}

// Snapshot returns a copy of the current quota state.
func (g *RateGovernor) Snapshot() QuotaState {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.state
}
