// Package metrics provides Prometheus metrics for entitystore
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for entitystore
type Metrics struct {
	// gRPC request metrics
	GrpcRequestsTotal    *prometheus.CounterVec
	GrpcRequestDuration  *prometheus.HistogramVec
	GrpcRequestsInFlight prometheus.Gauge
	GrpcRateLimitedTotal prometheus.Counter

	// Attribute index metrics
	IndexOperationsTotal   *prometheus.CounterVec
	IndexOperationDuration *prometheus.HistogramVec
	IndexEntities          prometheus.Gauge
	IndexAttributes        prometheus.Gauge
	IndexAssociations      prometheus.Gauge

	// Query metrics
	QueryExecutionsTotal *prometheus.CounterVec
	QueryDuration        prometheus.Histogram
	QueryRecordsScanned  prometheus.Counter
	QueryRecordsReturned prometheus.Counter

	// Storage metrics
	StorageOperationsTotal   *prometheus.CounterVec
	StorageOperationDuration *prometheus.HistogramVec
	StorageBytesWritten      prometheus.Counter

	ServerStartTime time.Time
}

// NewMetrics creates all metrics and registers them on reg.
// A nil reg registers on the default Prometheus registry.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)

	m := &Metrics{
		ServerStartTime: time.Now(),
	}

	m.GrpcRequestsTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Name: "entitystore_grpc_requests_total",
			Help: "Total number of gRPC requests",
		},
		[]string{"method", "status"},
	)

	m.GrpcRequestDuration = factory.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "entitystore_grpc_request_duration_seconds",
			Help:    "Duration of gRPC requests in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method"},
	)

	m.GrpcRequestsInFlight = factory.NewGauge(
		prometheus.GaugeOpts{
			Name: "entitystore_grpc_requests_in_flight",
			Help: "Number of gRPC requests currently being processed",
		},
	)

	m.GrpcRateLimitedTotal = factory.NewCounter(
		prometheus.CounterOpts{
			Name: "entitystore_grpc_rate_limited_total",
			Help: "Total number of gRPC requests rejected by the rate limiter",
		},
	)

	m.IndexOperationsTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Name: "entitystore_index_operations_total",
			Help: "Total number of attribute index operations",
		},
		[]string{"operation", "status"},
	)

	m.IndexOperationDuration = factory.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "entitystore_index_operation_duration_seconds",
			Help:    "Duration of attribute index operations in seconds",
			Buckets: []float64{.0001, .0005, .001, .005, .01, .05, .1, .5, 1, 5},
		},
		[]string{"operation"},
	)

	m.IndexEntities = factory.NewGauge(
		prometheus.GaugeOpts{
			Name: "entitystore_index_entities",
			Help: "Number of entities holding at least one attribute",
		},
	)

	m.IndexAttributes = factory.NewGauge(
		prometheus.GaugeOpts{
			Name: "entitystore_index_attributes",
			Help: "Number of distinct attribute names in the index",
		},
	)

	m.IndexAssociations = factory.NewGauge(
		prometheus.GaugeOpts{
			Name: "entitystore_index_associations",
			Help: "Number of (entity, attribute, value) associations",
		},
	)

	m.QueryExecutionsTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Name: "entitystore_query_executions_total",
			Help: "Total number of query executions",
		},
		[]string{"shape"},
	)

	m.QueryDuration = factory.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "entitystore_query_duration_seconds",
			Help:    "Duration of query executions in seconds",
			Buckets: []float64{.0001, .0005, .001, .005, .01, .05, .1, .5, 1, 5},
		},
	)

	m.QueryRecordsScanned = factory.NewCounter(
		prometheus.CounterOpts{
			Name: "entitystore_query_records_scanned_total",
			Help: "Total number of input records scanned by queries",
		},
	)

	m.QueryRecordsReturned = factory.NewCounter(
		prometheus.CounterOpts{
			Name: "entitystore_query_records_returned_total",
			Help: "Total number of rows returned by queries",
		},
	)

	m.StorageOperationsTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Name: "entitystore_storage_operations_total",
			Help: "Total number of storage backend operations",
		},
		[]string{"backend", "operation", "status"},
	)

	m.StorageOperationDuration = factory.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "entitystore_storage_operation_duration_seconds",
			Help:    "Duration of storage backend operations in seconds",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
		},
		[]string{"backend", "operation"},
	)

	m.StorageBytesWritten = factory.NewCounter(
		prometheus.CounterOpts{
			Name: "entitystore_storage_bytes_written_total",
			Help: "Total number of bytes written to storage backends",
		},
	)

	factory.NewGaugeFunc(
		prometheus.GaugeOpts{
			Name: "entitystore_server_uptime_seconds",
			Help: "Server uptime in seconds",
		},
		func() float64 { return time.Since(m.ServerStartTime).Seconds() },
	)

	return m
}

// RecordGrpcRequest records a gRPC request with its status
func (m *Metrics) RecordGrpcRequest(method string, status string, duration time.Duration) {
	if m == nil {
		return
	}
	m.GrpcRequestsTotal.WithLabelValues(method, status).Inc()
	m.GrpcRequestDuration.WithLabelValues(method).Observe(duration.Seconds())
}

// RecordIndexOperation records an attribute index operation
func (m *Metrics) RecordIndexOperation(operation string, err error, duration time.Duration) {
	if m == nil {
		return
	}
	m.IndexOperationsTotal.WithLabelValues(operation, statusOf(err)).Inc()
	m.IndexOperationDuration.WithLabelValues(operation).Observe(duration.Seconds())
}

// UpdateIndexStats updates the index size gauges
func (m *Metrics) UpdateIndexStats(entities, attributes, associations int) {
	if m == nil {
		return
	}
	m.IndexEntities.Set(float64(entities))
	m.IndexAttributes.Set(float64(attributes))
	m.IndexAssociations.Set(float64(associations))
}

// RecordQuery records a query execution
func (m *Metrics) RecordQuery(shape string, duration time.Duration, scanned, returned int) {
	if m == nil {
		return
	}
	m.QueryExecutionsTotal.WithLabelValues(shape).Inc()
	m.QueryDuration.Observe(duration.Seconds())
	m.QueryRecordsScanned.Add(float64(scanned))
	m.QueryRecordsReturned.Add(float64(returned))
}

// RecordStorageOperation records a storage backend call
func (m *Metrics) RecordStorageOperation(backend, operation string, err error, duration time.Duration, bytesWritten int) {
	if m == nil {
		return
	}
	m.StorageOperationsTotal.WithLabelValues(backend, operation, statusOf(err)).Inc()
	m.StorageOperationDuration.WithLabelValues(backend, operation).Observe(duration.Seconds())
	if bytesWritten > 0 {
		m.StorageBytesWritten.Add(float64(bytesWritten))
	}
}

func statusOf(err error) string {
	if err != nil {
		return "error"
	}
	return "success"
}
