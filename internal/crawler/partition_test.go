package crawler

import (
	"fmt"
	"strconv"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

// parseShardRange extracts the inclusive star range from a shard query.
// The open-ended tail shard reports hi = -1.
func parseShardRange(t *testing.T, query string) (lo, hi int) {
	t.Helper()

	clause := ""
	for _, f := range strings.Fields(query) {
		if strings.HasPrefix(f, "stars:") {
			clause = strings.TrimPrefix(f, "stars:")
		}
	}
	require.NotEmpty(t, clause, "query %q has no stars clause", query)

	switch {
	case strings.HasPrefix(clause, ">"):
		n, err := strconv.Atoi(clause[1:])
		require.NoError(t, err)
		return n + 1, -1
	case strings.Contains(clause, ".."):
		parts := strings.SplitN(clause, "..", 2)
		a, err := strconv.Atoi(parts[0])
		require.NoError(t, err)
		b, err := strconv.Atoi(parts[1])
		require.NoError(t, err)
		return a, b
	default:
		n, err := strconv.Atoi(clause)
		require.NoError(t, err)
		return n, n
	}
}

func TestPartitionCoversStarDomain(t *testing.T) {
	t.Parallel()

	shards := NewQueryPartitioner(1000).Partition("stars:>0")
	require.NotEmpty(t, shards)

	next := 0
	for _, shard := range shards[:len(shards)-1] {
		lo, hi := parseShardRange(t, shard.Query)
		require.Equal(t, next, lo, "gap or overlap before %q", shard.Query)
		require.GreaterOrEqual(t, hi, lo, "inverted range in %q", shard.Query)
		next = hi + 1
	}

	lo, hi := parseShardRange(t, shards[len(shards)-1].Query)
	require.Equal(t, next, lo, "gap before tail shard")
	require.Equal(t, -1, hi, "last shard must be open-ended")
}

func TestPartitionShape(t *testing.T) {
	t.Parallel()

	shards := NewQueryPartitioner(1000).Partition("stars:>0")

	require.Len(t, shards, 99)
	require.Equal(t, "stars:0", shards[0].Query)
	require.Equal(t, "stars:10", shards[10].Query)
	require.Equal(t, "stars:11..20", shards[11].Query)
	require.Equal(t, "stars:91..100", shards[19].Query)
	require.Equal(t, "stars:101..150", shards[20].Query)
	require.Equal(t, "stars:>100000", shards[len(shards)-1].Query)

	prevLo := -1
	for _, shard := range shards {
		require.Equal(t, 1000, shard.Cap)
		lo, _ := parseShardRange(t, shard.Query)
		require.Greater(t, lo, prevLo, "shards must ascend")
		prevLo = lo
	}
}

func TestPartitionPreservesOtherQualifiers(t *testing.T) {
	t.Parallel()

	shards := NewQueryPartitioner(500).Partition("language:go stars:>50")

	require.Len(t, shards, 99)
	for _, shard := range shards {
		require.True(t, strings.HasPrefix(shard.Query, "language:go stars:"), "query %q", shard.Query)
		require.Equal(t, 500, shard.Cap)
	}
}

func TestPartitionDefaultsCap(t *testing.T) {
	t.Parallel()

	for _, shard := range NewQueryPartitioner(0).Partition("") {
		require.Equal(t, defaultShardCap, shard.Cap, fmt.Sprintf("shard %q", shard.Query))
	}
}
