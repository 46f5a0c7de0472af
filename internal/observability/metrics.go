// Package observability provides Prometheus metrics for monitoring.
package observability

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the application.
type Metrics struct {
	// Ingestion metrics
	TransfersFetched  prometheus.Counter
	EventsStored      prometheus.Counter
	EventsSkipped     prometheus.Counter
	EventsMalformed   prometheus.Counter
	EventsByKind      *prometheus.CounterVec
	IngestCycleErrors prometheus.Counter
	LastBlockIngested prometheus.Gauge

	// Recompute metrics
	RecomputeRunsTotal  prometheus.Counter
	RecomputeErrors     prometheus.Counter
	RecomputeDuration   prometheus.Histogram
	ScopesRecomputed    prometheus.Counter
	DailyRecordsWritten prometheus.Counter
	AggregatesWritten   prometheus.Counter

	// HTTP metrics
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec

	// Health metrics
	LastSuccessfulIngest    prometheus.Gauge
	LastSuccessfulRecompute prometheus.Gauge
}

// NewMetrics creates a new Metrics instance with all metrics registered.
func NewMetrics(namespace string) *Metrics {
	if namespace == "" {
		namespace = "wallet_pnl_lab"
	}

	return &Metrics{
		TransfersFetched: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ingestion",
			Name:      "transfers_fetched_total",
			Help:      "Total number of token transfers fetched from sources",
		}),
		EventsStored: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ingestion",
			Name:      "events_stored_total",
			Help:      "Total number of transaction events stored",
		}),
		EventsSkipped: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ingestion",
			Name:      "events_skipped_total",
			Help:      "Total number of already-known transaction events skipped",
		}),
		EventsMalformed: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ingestion",
			Name:      "events_malformed_total",
			Help:      "Total number of transfers dropped as malformed",
		}),
		EventsByKind: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ingestion",
			Name:      "events_by_kind_total",
			Help:      "Total number of classified events by operation kind",
		}, []string{"kind"}),
		IngestCycleErrors: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ingestion",
			Name:      "cycle_errors_total",
			Help:      "Total number of failed ingestion cycles",
		}),
		LastBlockIngested: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "ingestion",
			Name:      "last_block",
			Help:      "Highest block number ingested",
		}),

		RecomputeRunsTotal: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "recompute",
			Name:      "runs_total",
			Help:      "Total number of recompute runs",
		}),
		RecomputeErrors: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "recompute",
			Name:      "errors_total",
			Help:      "Total number of per-scope recompute errors",
		}),
		RecomputeDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "recompute",
			Name:      "duration_seconds",
			Help:      "Recompute run duration in seconds",
			Buckets:   prometheus.DefBuckets,
		}),
		ScopesRecomputed: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "recompute",
			Name:      "scopes_total",
			Help:      "Total number of scopes recomputed",
		}),
		DailyRecordsWritten: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "recompute",
			Name:      "daily_records_written_total",
			Help:      "Total number of daily records written",
		}),
		AggregatesWritten: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "recompute",
			Name:      "aggregates_written_total",
			Help:      "Total number of period aggregates written",
		}),

		HTTPRequestsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests by path and status",
		}, []string{"path", "status"}),
		HTTPRequestDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request duration in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"path"}),

		LastSuccessfulIngest: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "health",
			Name:      "last_successful_ingest_timestamp",
			Help:      "Unix timestamp of the last successful ingestion cycle",
		}),
		LastSuccessfulRecompute: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "health",
			Name:      "last_successful_recompute_timestamp",
			Help:      "Unix timestamp of the last successful recompute run",
		}),
	}
}

// Handler returns an HTTP handler for the /metrics endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}

// DefaultMetrics is the default metrics instance.
var DefaultMetrics = NewMetrics("")

// RecordIngestCycle records the outcome of one ingestion cycle.
func RecordIngestCycle(fetched, stored, skipped, malformed int, unixNow int64) {
	DefaultMetrics.TransfersFetched.Add(float64(fetched))
	DefaultMetrics.EventsStored.Add(float64(stored))
	DefaultMetrics.EventsSkipped.Add(float64(skipped))
	DefaultMetrics.EventsMalformed.Add(float64(malformed))
	DefaultMetrics.LastSuccessfulIngest.Set(float64(unixNow))
}

// RecordIngestError increments the failed-cycle counter.
func RecordIngestError() {
	DefaultMetrics.IngestCycleErrors.Inc()
}

// RecordEventKind adds to the per-kind classification counter.
func RecordEventKind(kind string, count int) {
	DefaultMetrics.EventsByKind.WithLabelValues(kind).Add(float64(count))
}

// UpdateLastBlock updates the highest ingested block gauge.
func UpdateLastBlock(block uint64) {
	DefaultMetrics.LastBlockIngested.Set(float64(block))
}

// RecordRecomputeRun records one recompute run.
func RecordRecomputeRun(scopes, records, aggregates, errors int, durationSeconds float64, unixNow int64) {
	DefaultMetrics.RecomputeRunsTotal.Inc()
	DefaultMetrics.RecomputeDuration.Observe(durationSeconds)
	DefaultMetrics.ScopesRecomputed.Add(float64(scopes))
	DefaultMetrics.DailyRecordsWritten.Add(float64(records))
	DefaultMetrics.AggregatesWritten.Add(float64(aggregates))
	DefaultMetrics.RecomputeErrors.Add(float64(errors))
	if errors == 0 {
		DefaultMetrics.LastSuccessfulRecompute.Set(float64(unixNow))
	}
}

// RecordHTTPRequest records one served HTTP request.
func RecordHTTPRequest(path, status string, durationSeconds float64) {
	DefaultMetrics.HTTPRequestsTotal.WithLabelValues(path, status).Inc()
	DefaultMetrics.HTTPRequestDuration.WithLabelValues(path).Observe(durationSeconds)
}
