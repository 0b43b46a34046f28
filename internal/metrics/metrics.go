// Package metrics exposes Prometheus collectors for the crawl engine.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	recordsFetchedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "starcrawl_records_fetched_total",
		Help: "Total number of records fetched and handed to the sink.",
	})

	batchesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "starcrawl_batches_total",
		Help: "Total number of record batches persisted.",
	})

	rowsUpsertedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "starcrawl_rows_upserted_total",
		Help: "Total rows affected by sink upserts.",
	})

	parseFailuresTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "starcrawl_parse_failures_total",
		Help: "Total search items dropped because they failed to parse.",
	})

	retriesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "starcrawl_retries_total",
		Help: "Total retry attempts performed for transient failures.",
	})

	shardsCompletedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "starcrawl_shards_completed_total",
		Help: "Total shard queries fully drained.",
	})

	runsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "starcrawl_runs_total",
		Help: "Total crawl runs, labeled by outcome.",
	}, []string{"status"})

	quotaRemaining = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "starcrawl_quota_remaining",
		Help: "Most recently reported API quota remaining.",
	})

	quotaPauseSeconds = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "starcrawl_quota_pause_seconds",
		Help:    "Histogram of quota-reset pause durations.",
		Buckets: []float64{1, 5, 15, 60, 300, 900, 3600},
	})
)

// Handler returns an http.Handler for exposing Prometheus metrics.
func Handler() http.Handler {
	return promhttp.Handler()
}

// AddRecordsFetched adds n to the fetched-records counter.
func AddRecordsFetched(n int) {
	recordsFetchedTotal.Add(float64(n))
}

// IncBatch increments the persisted-batch counter.
func IncBatch() {
	batchesTotal.Inc()
}

// AddRowsUpserted adds the sink-reported rows-affected count.
func AddRowsUpserted(rows int64) {
	if rows > 0 {
		rowsUpsertedTotal.Add(float64(rows))
	}
}

// IncParseFailure increments the dropped-item counter.
func IncParseFailure() {
	parseFailuresTotal.Inc()
}

// IncRetry increments the retry-attempt counter.
func IncRetry() {
	retriesTotal.Inc()
}

// IncShardCompleted increments the drained-shard counter.
func IncShardCompleted() {
	shardsCompletedTotal.Inc()
}

// ObserveRun increments the run counter for the given outcome.
func ObserveRun(status string) {
	runsTotal.WithLabelValues(status).Inc()
}

// SetQuotaRemaining records the latest reported quota remaining.
func SetQuotaRemaining(remaining int) {
	quotaRemaining.Set(float64(remaining))
}

// ObserveQuotaPause records the duration of a quota-reset pause.
func ObserveQuotaPause(wait time.Duration) {
	quotaPauseSeconds.Observe(wait.Seconds())
}
