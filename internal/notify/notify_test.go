package notify

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestMemoryNotifierRecordsMessages(t *testing.T) {
	t.Parallel()
	n := NewMemoryNotifier()

	msg := RunCompletion{RunID: "run-1", Success: true, TotalCrawled: 250, TotalBatches: 3, NewRecords: 200}
	require.NoError(t, n.Publish(context.Background(), msg))

	got := n.Messages()
	require.Len(t, got, 1)
	require.Equal(t, msg, got[0])
	require.NoError(t, n.Close())
}

func TestNoOpNotifier(t *testing.T) {
	t.Parallel()
	n := NoOpNotifier{}
	require.NoError(t, n.Publish(context.Background(), RunCompletion{RunID: "x"}))
	require.NoError(t, n.Close())
}
