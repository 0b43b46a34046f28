package crawler

// Progress is a point-in-time view of crawl counters. TotalFetched counts
// records yielded by fetchers; PerShard breaks it down by shard query.
type Progress struct {
	TotalFetched int            `json:"total_fetched"`
	TotalBatches int            `json:"total_batches"`
	PerShard     map[string]int `json:"per_shard"`
}

// clone returns a deep copy so callers can read a snapshot while the run
// keeps mutating the original.
func (p Progress) clone() Progress {
	out := Progress{
		TotalFetched: p.TotalFetched,
		TotalBatches: p.TotalBatches,
		PerShard:     make(map[string]int, len(p.PerShard)),
	}
	for query, n := range p.PerShard {
		out.PerShard[query] = n
	}
	return out
}
