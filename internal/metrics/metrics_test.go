package metrics

import (
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecorders(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics(reg)

	m.RecordGrpcRequest("/svc/Query", "OK", time.Millisecond)
	m.RecordIndexOperation("add", nil, time.Millisecond)
	m.RecordIndexOperation("add", errors.New("bad"), time.Millisecond)
	m.UpdateIndexStats(3, 2, 5)
	m.RecordQuery("filter", time.Millisecond, 10, 4)
	m.RecordStorageOperation("file", "set", nil, time.Millisecond, 128)

	assert.Equal(t, float64(1), testutil.ToFloat64(m.GrpcRequestsTotal.WithLabelValues("/svc/Query", "OK")))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.IndexOperationsTotal.WithLabelValues("add", "success")))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.IndexOperationsTotal.WithLabelValues("add", "error")))
	assert.Equal(t, float64(3), testutil.ToFloat64(m.IndexEntities))
	assert.Equal(t, float64(5), testutil.ToFloat64(m.IndexAssociations))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.QueryExecutionsTotal.WithLabelValues("filter")))
	assert.Equal(t, float64(10), testutil.ToFloat64(m.QueryRecordsScanned))
	assert.Equal(t, float64(128), testutil.ToFloat64(m.StorageBytesWritten))

	families, err := reg.Gather()
	require.NoError(t, err)
	assert.NotEmpty(t, families)
}

func TestNilMetricsAreSafe(t *testing.T) {
	var m *Metrics
	m.RecordGrpcRequest("/svc/Query", "OK", time.Millisecond)
	m.RecordIndexOperation("add", nil, time.Millisecond)
	m.UpdateIndexStats(1, 1, 1)
	m.RecordQuery("scan", time.Millisecond, 0, 0)
	m.RecordStorageOperation("memory", "get", nil, time.Millisecond, 0)
}

func TestSeparateRegistries(t *testing.T) {
	// each registry gets its own collectors, so repeated construction is fine
	assert.NotPanics(t, func() {
		NewMetrics(prometheus.NewRegistry())
		NewMetrics(prometheus.NewRegistry())
	})
}
