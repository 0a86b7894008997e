package observability

import "time"

// MetricsRegistry provides an interface for recording application metrics
// This replaces direct access to global Prometheus metrics with dependency injection
type MetricsRegistry interface {
	// HTTP request metrics
	IncrementRequests(endpoint, method, status string)
	RecordRequestLatency(endpoint, method string, duration time.Duration)

	// Row pipeline metrics
	AddRowsProcessed(n int)
	IncrementRowsRejected(reason string)

	// Bulk-write metrics
	IncrementBatchesFlushed()
	IncrementBatchRetries()
	IncrementBatchFailures()

	// Ingestion lifecycle metrics
	IncrementIngestions(status string)
	IncActiveIngestions()
	DecActiveIngestions()
	RecordIngestDuration(duration time.Duration)
	AddBytesRead(n int64)
}

// PrometheusRegistry implements MetricsRegistry using the global Prometheus metrics
type PrometheusRegistry struct{}

// NewPrometheusRegistry creates a new PrometheusRegistry
func NewPrometheusRegistry() *PrometheusRegistry {
	return &PrometheusRegistry{}
}

func (r *PrometheusRegistry) IncrementRequests(endpoint, method, status string) {
	RequestCount.WithLabelValues(endpoint, method, status).Inc()
}

func (r *PrometheusRegistry) RecordRequestLatency(endpoint, method string, duration time.Duration) {
	RequestLatency.WithLabelValues(endpoint, method).Observe(duration.Seconds())
}

func (r *PrometheusRegistry) AddRowsProcessed(n int) {
	RowsProcessed.Add(float64(n))
}

func (r *PrometheusRegistry) IncrementRowsRejected(reason string) {
	RowsRejected.WithLabelValues(reason).Inc()
}

func (r *PrometheusRegistry) IncrementBatchesFlushed() {
	BatchesFlushed.Inc()
}

func (r *PrometheusRegistry) IncrementBatchRetries() {
	BatchRetries.Inc()
}

func (r *PrometheusRegistry) IncrementBatchFailures() {
	BatchFailures.Inc()
}

func (r *PrometheusRegistry) IncrementIngestions(status string) {
	IngestionCount.WithLabelValues(status).Inc()
}

func (r *PrometheusRegistry) IncActiveIngestions() {
	ActiveIngestions.Inc()
}

func (r *PrometheusRegistry) DecActiveIngestions() {
	ActiveIngestions.Dec()
}

func (r *PrometheusRegistry) RecordIngestDuration(duration time.Duration) {
	IngestDuration.Observe(duration.Seconds())
}

func (r *PrometheusRegistry) AddBytesRead(n int64) {
	BytesRead.Add(float64(n))
}

// NopRegistry is a MetricsRegistry that records nothing. Useful in tests.
type NopRegistry struct{}

// NewNopRegistry creates a new NopRegistry
func NewNopRegistry() *NopRegistry { return &NopRegistry{} }

func (*NopRegistry) IncrementRequests(string, string, string)              {}
func (*NopRegistry) RecordRequestLatency(string, string, time.Duration)    {}
func (*NopRegistry) AddRowsProcessed(int)                                  {}
func (*NopRegistry) IncrementRowsRejected(string)                          {}
func (*NopRegistry) IncrementBatchesFlushed()                              {}
func (*NopRegistry) IncrementBatchRetries()                                {}
func (*NopRegistry) IncrementBatchFailures()                               {}
func (*NopRegistry) IncrementIngestions(string)                            {}
func (*NopRegistry) IncActiveIngestions()                                  {}
func (*NopRegistry) DecActiveIngestions()                                  {}
func (*NopRegistry) RecordIngestDuration(time.Duration)                    {}
func (*NopRegistry) AddBytesRead(int64)                                    {}
