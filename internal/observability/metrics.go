package observability

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "traffic_congestion"

// Metrics holds the Prometheus counters, histograms, and gauges for the analysis job.
type Metrics struct {
	ReadingsLoaded    *prometheus.CounterVec   // labels: dataset
	ReadingsMissing   *prometheus.CounterVec   // labels: dataset
	ReadingsCongested *prometheus.CounterVec   // labels: dataset
	CongestionRatio   *prometheus.GaugeVec     // labels: dataset
	Sensors           *prometheus.GaugeVec     // labels: dataset
	DatasetFailures   *prometheus.CounterVec   // labels: dataset
	StageDuration     *prometheus.HistogramVec // labels: stage={load,analyze,report}
	SinkErrors        *prometheus.CounterVec   // labels: sink
	PipelineRunning   prometheus.Gauge

	// Geocoding metrics.
	GeocodeRequests    *prometheus.CounterVec   // labels: method={reverse}, outcome={success,error,empty}
	GeocodeCache       *prometheus.CounterVec   // labels: method={reverse}, result={hit,miss}
	GeocodeAPIDuration *prometheus.HistogramVec // labels: method={reverse}
	GeocodeEnabled     prometheus.Gauge

	registry *prometheus.Registry
}

// NewMetrics creates and registers all job metrics with the default Prometheus registry.
func NewMetrics() *Metrics {
	m := newMetrics()
	prometheus.MustRegister(m.collectors()...)
	return m
}

// NewMetricsForTesting creates Metrics on a fresh registry to avoid
// "already registered" panics when called from multiple tests.
func NewMetricsForTesting() *Metrics {
	m := newMetrics()
	m.registry = prometheus.NewRegistry()
	m.registry.MustRegister(m.collectors()...)
	return m
}

func newMetrics() *Metrics {
	return &Metrics{
		ReadingsLoaded: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "readings_loaded_total",
			Help:      "Speed readings loaded per dataset, missing included.",
		}, []string{"dataset"}),
		ReadingsMissing: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "readings_missing_total",
			Help:      "Readings excluded as missing per dataset.",
		}, []string{"dataset"}),
		ReadingsCongested: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "readings_congested_total",
			Help:      "Valid readings classified as congested per dataset.",
		}, []string{"dataset"}),
		CongestionRatio: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "congestion_ratio",
			Help:      "Overall congested fraction of valid readings per dataset.",
		}, []string{"dataset"}),
		Sensors: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "sensors",
			Help:      "Distinct sensors per dataset.",
		}, []string{"dataset"}),
		DatasetFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "dataset_failures_total",
			Help:      "Datasets that could not be loaded.",
		}, []string{"dataset"}),
		StageDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "stage_duration_seconds",
			Help:      "Duration of each pipeline stage.",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.5, 1, 2.5, 5, 10, 30, 60},
		}, []string{"stage"}),
		SinkErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sink_errors_total",
			Help:      "Report sink failures by sink.",
		}, []string{"sink"}),
		PipelineRunning: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "pipeline_running",
			Help:      "1 while the pipeline is running, 0 otherwise.",
		}),
		GeocodeRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "geocode_requests_total",
			Help:      "Geocoding API requests by method and outcome.",
		}, []string{"method", "outcome"}),
		GeocodeCache: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "geocode_cache_total",
			Help:      "Geocoding cache lookups by method and result.",
		}, []string{"method", "result"}),
		GeocodeAPIDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "geocode_api_duration_seconds",
			Help:      "Mapbox API request duration in seconds.",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		}, []string{"method"}),
		GeocodeEnabled: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "geocode_enabled",
			Help:      "1 when geocoding enrichment is enabled, 0 otherwise.",
		}),
	}
}

func (m *Metrics) collectors() []prometheus.Collector {
	return []prometheus.Collector{
		m.ReadingsLoaded,
		m.ReadingsMissing,
		m.ReadingsCongested,
		m.CongestionRatio,
		m.Sensors,
		m.DatasetFailures,
		m.StageDuration,
		m.SinkErrors,
		m.PipelineRunning,
		m.GeocodeRequests,
		m.GeocodeCache,
		m.GeocodeAPIDuration,
		m.GeocodeEnabled,
	}
}

// Gatherer returns the registry the metrics are registered with.
func (m *Metrics) Gatherer() prometheus.Gatherer {
	if m.registry != nil {
		return m.registry
	}
	return prometheus.DefaultGatherer
}

// WriteTextfile writes every gathered metric to path in the node_exporter
// textfile format. The write is atomic.
func (m *Metrics) WriteTextfile(path string) error {
	g := m.Gatherer()
	if m.registry == nil {
		// The default gatherer also carries process and Go runtime collectors,
		// which a one-shot textfile has no use for.
		reg := prometheus.NewRegistry()
		reg.MustRegister(m.collectors()...)
		g = reg
	}
	if err := prometheus.WriteToTextfile(path, g); err != nil {
		return fmt.Errorf("write metrics textfile %s: %w", path, err)
	}
	return nil
}
