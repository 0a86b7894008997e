package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	// total requests per endpoint, method and status code
	RequestCount = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "reportstream_requests_total",
			Help: "Total API requests received",
		},
		[]string{"endpoint", "method", "status"},
	)

	// request latency in seconds per endpoint/method
	RequestLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "reportstream_request_duration_seconds",
			Help:    "Histogram of request latencies",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"endpoint", "method"},
	)

	// rows accepted into aggregation and the batch buffer
	RowsProcessed = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "reportstream_rows_processed_total",
			Help: "Total normalized rows accepted",
		},
	)

	// rows dropped during normalization, labelled by reason
	RowsRejected = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "reportstream_rows_rejected_total",
			Help: "Total rows rejected during normalization",
		},
		[]string{"reason"},
	)

	// batches flushed to the row store
	BatchesFlushed = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "reportstream_batches_flushed_total",
			Help: "Total batches bulk-written to the row store",
		},
	)

	// bulk-write retries after a failed batch
	BatchRetries = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "reportstream_batch_retries_total",
			Help: "Total bulk-write retries (including sub-batch re-issues)",
		},
	)

	// batches abandoned after retries were exhausted
	BatchFailures = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "reportstream_batch_failures_total",
			Help: "Total batches abandoned after exhausting retries",
		},
	)

	// ingestions reaching a terminal state, labelled by outcome
	IngestionCount = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "reportstream_ingestions_total",
			Help: "Total ingestions by terminal status",
		},
		[]string{"status"},
	)

	// ingestions currently in flight
	ActiveIngestions = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "reportstream_active_ingestions",
			Help: "Number of ingestions currently being processed",
		},
	)

	// wall time of one full ingestion
	IngestDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "reportstream_ingest_duration_seconds",
			Help:    "Duration of complete file ingestions",
			Buckets: prometheus.ExponentialBuckets(0.1, 2, 12),
		},
	)

	// bytes consumed from upload streams
	BytesRead = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "reportstream_bytes_read_total",
			Help: "Total bytes read from uploaded files",
		},
	)
)

func init() {
	// register all metrics
	prometheus.MustRegister(
		RequestCount,
		RequestLatency,
		RowsProcessed,
		RowsRejected,
		BatchesFlushed,
		BatchRetries,
		BatchFailures,
		IngestionCount,
		ActiveIngestions,
		IngestDuration,
		BytesRead,
	)
}
