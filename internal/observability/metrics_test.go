package observability

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewMetricsForTesting_Independent(t *testing.T) {
	a := NewMetricsForTesting()
	b := NewMetricsForTesting()

	a.ReadingsLoaded.WithLabelValues("METR-LA").Add(10)

	assert.InDelta(t, 10, testutil.ToFloat64(a.ReadingsLoaded.WithLabelValues("METR-LA")), 0)
	assert.InDelta(t, 0, testutil.ToFloat64(b.ReadingsLoaded.WithLabelValues("METR-LA")), 0)
}

func TestMetrics_GatherUsesOwnRegistry(t *testing.T) {
	m := NewMetricsForTesting()
	m.CongestionRatio.WithLabelValues("PEMS-BAY").Set(0.0103)
	m.SinkErrors.WithLabelValues("kafka").Inc()

	n, err := testutil.GatherAndCount(m.Gatherer(), "traffic_congestion_congestion_ratio", "traffic_congestion_sink_errors_total")
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}

func TestMetrics_WriteTextfile(t *testing.T) {
	m := NewMetricsForTesting()
	m.CongestionRatio.WithLabelValues("METR-LA").Set(0.1078)
	m.Sensors.WithLabelValues("METR-LA").Set(207)
	m.PipelineRunning.Set(0)

	path := filepath.Join(t.TempDir(), "congestion.prom")
	require.NoError(t, m.WriteTextfile(path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	out := string(data)
	assert.Contains(t, out, `traffic_congestion_congestion_ratio{dataset="METR-LA"} 0.1078`)
	assert.Contains(t, out, `traffic_congestion_sensors{dataset="METR-LA"} 207`)
	assert.Contains(t, out, "# HELP traffic_congestion_pipeline_running")
}

func TestMetrics_WriteTextfileBadPath(t *testing.T) {
	m := NewMetricsForTesting()
	err := m.WriteTextfile(filepath.Join(t.TempDir(), "missing", "dir", "x.prom"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "write metrics textfile")
}
