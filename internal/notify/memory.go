package notify

import (
	"context"
	"sync"
)

// MemoryNotifier records published messages in process. For tests.
type MemoryNotifier struct {
	mu       sync.Mutex
	messages []RunCompletion
}

var _ Notifier = (*MemoryNotifier)(nil)

// NewMemoryNotifier creates an empty notifier.
func NewMemoryNotifier() *MemoryNotifier {
	return &MemoryNotifier{}
}

// Publish appends the message.
func (n *MemoryNotifier) Publish(_ context.Context, msg RunCompletion) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.messages = append(n.messages, msg)
	return nil
}

// Messages returns a copy of everything published so far.
func (n *MemoryNotifier) Messages() []RunCompletion {
	n.mu.Lock()
	defer n.mu.Unlock()
	out := make([]RunCompletion, len(n.messages))
	copy(out, n.messages)
	return out
}

// Close does nothing.
func (n *MemoryNotifier) Close() error {
	return nil
}
