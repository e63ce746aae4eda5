// Package metrics defines the Prometheus collectors for index builds and
// query serving and exposes an HTTP handler for scraping.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus collectors. A nil *Metrics is valid and
// records nothing, so components can be used without a registry.
type Metrics struct {
	registry *prometheus.Registry

	DocsIndexedTotal     prometheus.Counter
	BlocksWrittenTotal   prometheus.Counter
	BlockPostingsTotal   prometheus.Counter
	MergeRoundsTotal     prometheus.Counter
	MergeRoundDuration   prometheus.Histogram
	BytesWrittenTotal    *prometheus.CounterVec
	IndexBuildsTotal     *prometheus.CounterVec
	IndexBuildDuration   prometheus.Histogram
	PostingsDecodedTotal prometheus.Counter
	SearchQueriesTotal   *prometheus.CounterVec
	SearchLatency        *prometheus.HistogramVec
	SearchResultsCount   prometheus.Histogram
	CacheHitsTotal       prometheus.Counter
	CacheMissesTotal     prometheus.Counter
}

// New creates all collectors and registers them on a private registry.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		DocsIndexedTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "bsbi_docs_indexed_total",
				Help: "Total documents assigned a doc id.",
			},
		),
		BlocksWrittenTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "bsbi_blocks_written_total",
				Help: "Total partition blocks flushed to disk.",
			},
		),
		BlockPostingsTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "bsbi_block_postings_total",
				Help: "Total posting records written to partition blocks.",
			},
		),
		MergeRoundsTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "bsbi_merge_rounds_total",
				Help: "Total pairwise block merges performed.",
			},
		),
		MergeRoundDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "bsbi_merge_round_duration_seconds",
				Help:    "Duration of a single pairwise block merge.",
				Buckets: prometheus.ExponentialBuckets(0.001, 4, 10),
			},
		),
		BytesWrittenTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "bsbi_bytes_written_total",
				Help: "Posting bytes written by stage (block, merge).",
			},
			[]string{"stage"},
		),
		IndexBuildsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "bsbi_index_builds_total",
				Help: "Total index builds by status and codec.",
			},
			[]string{"status", "codec"},
		),
		IndexBuildDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "bsbi_index_build_duration_seconds",
				Help:    "End-to-end index build latency.",
				Buckets: prometheus.ExponentialBuckets(0.01, 4, 10),
			},
		),
		PostingsDecodedTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "bsbi_query_postings_decoded_total",
				Help: "Total posting lists decoded while answering queries.",
			},
		),
		SearchQueriesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "bsbi_search_queries_total",
				Help: "Total queries by result type (hit, zero_result, unknown_term, error).",
			},
			[]string{"result_type"},
		),
		SearchLatency: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "bsbi_search_latency_seconds",
				Help:    "Query latency in seconds.",
				Buckets: []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
			},
			[]string{"cache_status"},
		),
		SearchResultsCount: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "bsbi_search_results_count",
				Help:    "Number of documents returned per query.",
				Buckets: []float64{0, 1, 5, 10, 25, 50, 100, 1000},
			},
		),
		CacheHitsTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "bsbi_cache_hits_total",
				Help: "Total query result cache hits.",
			},
		),
		CacheMissesTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "bsbi_cache_misses_total",
				Help: "Total query result cache misses.",
			},
		),
	}

	m.registry.MustRegister(
		m.DocsIndexedTotal,
		m.BlocksWrittenTotal,
		m.BlockPostingsTotal,
		m.MergeRoundsTotal,
		m.MergeRoundDuration,
		m.BytesWrittenTotal,
		m.IndexBuildsTotal,
		m.IndexBuildDuration,
		m.PostingsDecodedTotal,
		m.SearchQueriesTotal,
		m.SearchLatency,
		m.SearchResultsCount,
		m.CacheHitsTotal,
		m.CacheMissesTotal,
	)

	return m
}

// Registry exposes the private registry, mainly for tests.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler returns the Prometheus scrape HTTP handler.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) ObserveDocument() {
	if m == nil {
		return
	}
	m.DocsIndexedTotal.Inc()
}

func (m *Metrics) ObserveBlock(postings int, bytes int64) {
	if m == nil {
		return
	}
	m.BlocksWrittenTotal.Inc()
	m.BlockPostingsTotal.Add(float64(postings))
	m.BytesWrittenTotal.WithLabelValues("block").Add(float64(bytes))
}

func (m *Metrics) ObserveMergeRound(d time.Duration, bytes int64) {
	if m == nil {
		return
	}
	m.MergeRoundsTotal.Inc()
	m.MergeRoundDuration.Observe(d.Seconds())
	m.BytesWrittenTotal.WithLabelValues("merge").Add(float64(bytes))
}

func (m *Metrics) ObserveBuild(codec string, d time.Duration, err error) {
	if m == nil {
		return
	}
	status := "success"
	if err != nil {
		status = "failure"
	}
	m.IndexBuildsTotal.WithLabelValues(status, codec).Inc()
	m.IndexBuildDuration.Observe(d.Seconds())
}

func (m *Metrics) ObservePostingDecoded() {
	if m == nil {
		return
	}
	m.PostingsDecodedTotal.Inc()
}

func (m *Metrics) ObserveQuery(resultType string, cacheStatus string, d time.Duration, results int) {
	if m == nil {
		return
	}
	m.SearchQueriesTotal.WithLabelValues(resultType).Inc()
	m.SearchLatency.WithLabelValues(cacheStatus).Observe(d.Seconds())
	m.SearchResultsCount.Observe(float64(results))
}

func (m *Metrics) ObserveCache(hit bool) {
	if m == nil {
		return
	}
	if hit {
		m.CacheHitsTotal.Inc()
		return
	}
	m.CacheMissesTotal.Inc()
}
