package crawler

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"math"
	"math/big"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/stellargo/starcrawl/internal/metrics"
)

// ErrRetriesExhausted wraps the last failure once every attempt is spent.
var ErrRetriesExhausted = errors.New("retries exhausted")

const (
	defaultMaxAttempts   = 3
	defaultInitialDelay  = 2 * time.Second
	defaultMaxRetryDelay = 60 * time.Second
	retryBase            = 2.0
)

// authMarkers classify errors that must never be retried.
var authMarkers = []string{"unauthorized", "forbidden", "bad credentials"}

// Operation is a unit of fallible work driven by RetryPolicy.
type Operation func(ctx context.Context) error

// RetryConfig tunes the retry policy.
type RetryConfig struct {
	MaxAttempts  int
	InitialDelay time.Duration
	MaxDelay     time.Duration
	Jitter       bool
}

// RetryPolicy wraps operations with bounded exponential backoff. Errors
// that read as credential or permission denials are fatal and surface
// immediately; everything else is retried until the attempt budget is
// spent. Operations must be idempotent; the policy re-invokes them as-is.
type RetryPolicy struct {
	maxAttempts  int
	initialDelay time.Duration
	maxDelay     time.Duration
	jitter       bool
	logger       *zap.Logger
}

// NewRetryPolicy builds a policy with sane defaults.
func NewRetryPolicy(cfg RetryConfig, logger *zap.Logger) *RetryPolicy {
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = defaultMaxAttempts
	}
	if cfg.InitialDelay <= 0 {
		cfg.InitialDelay = defaultInitialDelay
	}
	if cfg.MaxDelay <= 0 {
		cfg.MaxDelay = defaultMaxRetryDelay
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RetryPolicy{
		maxAttempts:  cfg.MaxAttempts,
		initialDelay: cfg.InitialDelay,
		maxDelay:     cfg.MaxDelay,
		jitter:       cfg.Jitter,
		logger:       logger,
	}
}

// Execute runs op, retrying transient failures. Authorization failures and
// context cancellation return unchanged after a single attempt; the error
// returned after the final attempt wraps both ErrRetriesExhausted and the
// last cause.
func (p *RetryPolicy) Execute(ctx context.Context, op Operation) error {
	var lastErr error

	for attempt := 0; attempt < p.maxAttempts; attempt++ {
		err := op(ctx)
		if err == nil {
			return nil
		}
		if IsAuthorizationError(err) {
			p.logger.Error("authorization failure, not retrying", zap.Error(err))
			return err
		}
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return err
		}
		lastErr = err

		if attempt < p.maxAttempts-1 {
			delay := p.backoff(attempt)
			p.logger.Warn("attempt failed, backing off",
				zap.Int("attempt", attempt+1),
				zap.Int("max_attempts", p.maxAttempts),
				zap.Duration("delay", delay),
				zap.Error(err),
			)
			metrics.IncRetry()
			timer := time.NewTimer(delay)
			select {
			case <-ctx.Done():
				timer.Stop()
				return ctx.Err()
			case <-timer.C:
			}
		}
	}

	return fmt.Errorf("%w after %d attempts: %w", ErrRetriesExhausted, p.maxAttempts, lastErr)
}

// backoff returns the delay before the retry following attempt (0-indexed).
// Jitter scales the capped delay by a uniform factor in [0.5, 1.5).
func (p *RetryPolicy) backoff(attempt int) time.Duration {
	delay := float64(p.initialDelay) * math.Pow(retryBase, float64(attempt))
	if delay > float64(p.maxDelay) {
		delay = float64(p.maxDelay)
	}
	if p.jitter {
		delay *= 0.5 + randomFraction()
	}
	return time.Duration(delay)
}

// randomFraction returns a uniform value in [0, 1).
func randomFraction() float64 {
	n, err := rand.Int(rand.Reader, big.NewInt(1<<20))
	if err != nil {
		return 0.5
	}
	return float64(n.Int64()) / float64(1<<20)
}

// IsAuthorizationError reports whether err represents a credential or
// permission denial from the remote API.
func IsAuthorizationError(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	for _, marker := range authMarkers {
		if strings.Contains(msg, marker) {
			return true
		}
	}
	return false
}
