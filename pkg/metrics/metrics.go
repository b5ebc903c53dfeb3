// Package metrics provides Prometheus metrics for the oracle function and ledger.
package metrics

import (
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// QuoteFetchesTotal counts quote fetches by source and outcome.
	QuoteFetchesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "quote_fetches_total",
			Help: "Total number of quote fetches from sources",
		},
		[]string{"source", "status"},
	)

	// QuoteFetchDuration is a histogram of quote fetch latencies.
	QuoteFetchDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "quote_fetch_duration_seconds",
			Help:    "Duration of quote fetches",
			Buckets: []float64{.05, .1, .25, .5, 1, 2.5, 5, 10},
		},
		[]string{"source"},
	)

	// PriceAggregationDuration is a histogram of price aggregation duration.
	PriceAggregationDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "price_aggregation_duration_seconds",
			Help:    "Duration of price aggregation operations",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method"},
	)

	// CyclesTotal counts function cycles by outcome.
	CyclesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "function_cycles_total",
			Help: "Total number of aggregation cycles",
		},
		[]string{"trigger", "status"},
	)

	// CycleDuration is a histogram of full cycle durations.
	CycleDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "function_cycle_duration_seconds",
			Help:    "Duration of aggregation cycles",
			Buckets: prometheus.DefBuckets,
		},
	)

	// RefreshSubmissionsTotal counts emitted refresh transactions.
	RefreshSubmissionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "refresh_submissions_total",
			Help: "Total number of refresh transactions emitted or submitted",
		},
		[]string{"target", "status"},
	)

	// LedgerInstructionsTotal counts executed ledger instructions.
	LedgerInstructionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ledger_instructions_total",
			Help: "Total number of ledger instructions executed",
		},
		[]string{"instruction", "result"},
	)

	// FeedRoundTimestamp is the open timestamp of the latest confirmed round per feed.
	FeedRoundTimestamp = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "feed_round_open_timestamp",
			Help: "Unix timestamp of the latest confirmed round of a feed",
		},
		[]string{"feed"},
	)

	// HTTPRequestsTotal is a counter of total HTTP requests.
	HTTPRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"endpoint", "status"},
	)

	// HTTPRequestDuration is a histogram of HTTP request latencies.
	HTTPRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request latencies",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1},
		},
		[]string{"endpoint"},
	)
)

var registerOnce sync.Once

// Init registers all metrics with the default registry.
func Init() {
	registerOnce.Do(func() {
		prometheus.MustRegister(
			QuoteFetchesTotal,
			QuoteFetchDuration,
			PriceAggregationDuration,
			CyclesTotal,
			CycleDuration,
			RefreshSubmissionsTotal,
			LedgerInstructionsTotal,
			FeedRoundTimestamp,
			HTTPRequestsTotal,
			HTTPRequestDuration,
		)
	})
}

// ServeHTTP serves Prometheus metrics on the specified address.
func ServeHTTP(addr, path string) error {
	if path == "" {
		path = "/metrics"
	}
	mux := http.NewServeMux()
	mux.Handle(path, promhttp.Handler())
	server := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	return server.ListenAndServe()
}

// RecordQuoteFetch records one quote fetch.
func RecordQuoteFetch(source string, ok bool, duration time.Duration) {
	status := "success"
	if !ok {
		status = "error"
	}
	QuoteFetchesTotal.WithLabelValues(source, status).Inc()
	QuoteFetchDuration.WithLabelValues(source).Observe(duration.Seconds())
}

// RecordAggregation records a price aggregation operation.
func RecordAggregation(method string, duration time.Duration) {
	PriceAggregationDuration.WithLabelValues(method).Observe(duration.Seconds())
}

// RecordCycle records the outcome of an aggregation cycle.
func RecordCycle(trigger, status string, duration time.Duration) {
	CyclesTotal.WithLabelValues(trigger, status).Inc()
	CycleDuration.Observe(duration.Seconds())
}

// RecordRefreshSubmission records an emitted or submitted refresh transaction.
func RecordRefreshSubmission(target, status string) {
	RefreshSubmissionsTotal.WithLabelValues(target, status).Inc()
}

// RecordInstruction records a ledger instruction result.
func RecordInstruction(name, result string) {
	LedgerInstructionsTotal.WithLabelValues(name, result).Inc()
}

// RecordFeedRound records the open timestamp of a feed's latest round.
func RecordFeedRound(feed string, openTimestamp int64) {
	FeedRoundTimestamp.WithLabelValues(feed).Set(float64(openTimestamp))
}

// RecordHTTPRequest records an HTTP request.
func RecordHTTPRequest(endpoint, status string, duration time.Duration) {
	HTTPRequestsTotal.WithLabelValues(endpoint, status).Inc()
	HTTPRequestDuration.WithLabelValues(endpoint).Observe(duration.Seconds())
}
