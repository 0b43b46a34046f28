// Package crawler implements the crawl orchestration engine: the star-count
// query partitioner, the shared quota governor, the retry/backoff policy,
// the cursor-paging fetcher, and the orchestrator that turns shard queries
// into bounded, idempotent writes against the record store.
package crawler
