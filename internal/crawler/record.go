// Package crawler defines core types shared across subsystems.
package crawler

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// Record is the immutable value persisted for each harvested repository.
// ID and FullName are both unique keys in the store.
type Record struct {
	ID            int64     `json:"id"`
	FullName      string    `json:"full_name"`
	StarCount     int       `json:"star_count"`
	UpdatedAt     time.Time `json:"updated_at"`
	LastCrawledAt time.Time `json:"last_crawled_at"`
}

// QuotaReport is the API's self-reported quota envelope attached to a
// search response.
type QuotaReport struct {
	Limit     int       `json:"limit"`
	Remaining int       `json:"remaining"`
	ResetAt   time.Time `json:"resetAt"`
	Cost      int       `json:"cost"`
}

// SearchPage is one page of raw search results from the remote executor.
type SearchPage struct {
	Items      []json.RawMessage
	TotalCount int
	NextCursor string
	HasMore    bool
	Quota      *QuotaReport
}

// Shard is one bounded sub-query covering a slice of the star-count space.
// Cap is the nominal cardinality bound the partition scheme aims for; a
// shard that exceeds it in practice is truncated by the fetcher, not an
// error.
type Shard struct {
	Query string
	Cap   int
}

// searchNode mirrors the repository fields requested from the search API.
// Pointer fields distinguish absent values from legitimate zeros.
type searchNode struct {
	DatabaseID     *int64    `json:"databaseId"`
	NameWithOwner  string    `json:"nameWithOwner"`
	StargazerCount *int      `json:"stargazerCount"`
	UpdatedAt      time.Time `json:"updatedAt"`
}

// ParseRecord converts one raw search item into a Record. Items missing the
// identifier, name, or star count fail to parse; callers skip those.
func ParseRecord(raw json.RawMessage, crawledAt time.Time) (Record, error) {
	var node searchNode
	if err := json.Unmarshal(raw, &node); err != nil {
		return Record{}, fmt.Errorf("decode item: %w", err)
	}
	if node.DatabaseID == nil || *node.DatabaseID <= 0 {
		return Record{}, errors.New("item missing databaseId")
	}
	if node.NameWithOwner == "" {
		return Record{}, errors.New("item missing nameWithOwner")
	}
	if node.StargazerCount == nil {
		return Record{}, errors.New("item missing stargazerCount")
	}
	return Record{
		ID:            *node.DatabaseID,
		FullName:      node.NameWithOwner,
		StarCount:     *node.StargazerCount,
		UpdatedAt:     node.UpdatedAt,
		LastCrawledAt: crawledAt,
	}, nil
}
