package observability

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewMetricsForTesting_Independent(t *testing.T) {
	a := NewMetricsForTesting()
	b := NewMetricsForTesting()

	a.FilesProcessed.WithLabelValues("ingested").Inc()
	a.StationCache.WithLabelValues("hit").Add(3)

	assert.InDelta(t, 1, testutil.ToFloat64(a.FilesProcessed.WithLabelValues("ingested")), 0)
	assert.InDelta(t, 3, testutil.ToFloat64(a.StationCache.WithLabelValues("hit")), 0)
	assert.InDelta(t, 0, testutil.ToFloat64(b.FilesProcessed.WithLabelValues("ingested")), 0)
}

func TestMetrics_RegisterWithRegistry(t *testing.T) {
	m := NewMetricsForTesting()
	reg := prometheus.NewRegistry()
	require.NoError(t, reg.Register(m.PointsWritten))
	require.NoError(t, reg.Register(m.CellsProcessed))

	m.PointsWritten.Add(12)
	m.CellsProcessed.WithLabelValues("failed").Inc()

	n, err := testutil.GatherAndCount(reg, "fcst_ingest_points_written_total", "fcst_ingest_cells_processed_total")
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}
