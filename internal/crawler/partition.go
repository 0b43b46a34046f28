package crawler

import (
	"fmt"
	"strings"
)

// defaultShardCap is the search API's per-query result ceiling.
const defaultShardCap = 1000

// QueryPartitioner splits one search criterion into an ordered sequence of
// star-range shards so each shard's expected result count stays under the
// per-query ceiling. The ranges follow the power-law shape of star counts:
// narrow at the dense low end, widening toward the tail.
type QueryPartitioner struct {
	capPerShard int
}

// NewQueryPartitioner builds a partitioner whose shards carry the given
// nominal cardinality bound.
func NewQueryPartitioner(capPerShard int) *QueryPartitioner {
	if capPerShard <= 0 {
		capPerShard = defaultShardCap
	}
	return &QueryPartitioner{capPerShard: capPerShard}
}

// Partition returns the shard list for criterion, ascending by star count.
// Unit ranges cover 0..10, width-10 ranges reach 100, width-50 ranges
// reach 1000, width-500 ranges reach 10000, width-1000 ranges reach 50000,
// and three wide shards cover the tail, the last open-ended. The ranges
// are disjoint and collectively cover every star count from zero up. Any
// stars: qualifier in criterion is replaced by the shard ranges; other
// qualifiers are preserved in every shard query.
func (p *QueryPartitioner) Partition(criterion string) []Shard {
	base := stripStarsClause(criterion)
	shards := make([]Shard, 0, 99)

	add := func(clause string) {
		query := clause
		if base != "" {
			query = base + " " + clause
		}
		shards = append(shards, Shard{Query: query, Cap: p.capPerShard})
	}

	for i := 0; i <= 10; i++ {
		add(fmt.Sprintf("stars:%d", i))
	}
	for start := 11; start < 101; start += 10 {
		add(fmt.Sprintf("stars:%d..%d", start, start+9))
	}
	for start := 101; start < 1001; start += 50 {
		add(fmt.Sprintf("stars:%d..%d", start, start+49))
	}
	for start := 1001; start < 10001; start += 500 {
		add(fmt.Sprintf("stars:%d..%d", start, start+499))
	}
	for start := 10001; start < 50001; start += 1000 {
		add(fmt.Sprintf("stars:%d..%d", start, start+999))
	}
	add("stars:50001..75000")
	add("stars:75001..100000")
	add("stars:>100000")

	return shards
}

// stripStarsClause removes any stars: qualifier from criterion; the shard
// ranges replace it.
func stripStarsClause(criterion string) string {
	fields := strings.Fields(criterion)
	kept := fields[:0]
	for _, f := range fields {
		if strings.HasPrefix(f, "stars:") {
			continue
		}
		kept = append(kept, f)
	}
	return strings.Join(kept, " ")
}
