// Package notify publishes run-completion notifications. Downstream
// consumers (dashboards, schedulers) learn a crawl finished without
// polling the store.
package notify

import "context"

// RunCompletion is the message published after every crawl run.
type RunCompletion struct {
	RunID        string `json:"run_id"`
	Success      bool   `json:"success"`
	TotalCrawled int    `json:"total_crawled"`
	TotalBatches int    `json:"total_batches"`
	NewRecords   int64  `json:"new_records"`
	Error        string `json:"error,omitempty"`
}

// Notifier publishes run completions.
type Notifier interface {
	Publish(ctx context.Context, msg RunCompletion) error
	Close() error
}

// NoOpNotifier discards notifications; the default when none is
// configured.
type NoOpNotifier struct{}

// Publish does nothing and always succeeds.
func (NoOpNotifier) Publish(_ context.Context, _ RunCompletion) error {
	return nil
}

// Close does nothing.
func (NoOpNotifier) Close() error {
	return nil
}
