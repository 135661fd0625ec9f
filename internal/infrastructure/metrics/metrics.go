// Package metrics provides Prometheus metrics for the analyzer.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const defaultNamespace = "wallet_cluster_analyzer"

// Metrics holds all Prometheus metrics for the application.
// The Record helpers are no-ops on a nil *Metrics.
type Metrics struct {
	registry *prometheus.Registry

	// Analysis metrics
	AnalysesStarted  prometheus.Counter
	AnalysesFinished *prometheus.CounterVec
	AnalysisDuration prometheus.Histogram
	WalletsAnalyzed  prometheus.Counter
	ActiveAnalyses   prometheus.Gauge
	StoredAnalyses   prometheus.Gauge

	// Graph metrics
	TransactionsSkipped prometheus.Counter
	GraphBuildDuration  prometheus.Histogram
	GraphNodes          prometheus.Histogram
	ClustersDetected    prometheus.Histogram

	// Collaborator metrics
	UpstreamRequests *prometheus.CounterVec
	UpstreamLatency  *prometheus.HistogramVec
}

// NewMetrics creates a new Metrics instance registered on its own registry.
func NewMetrics(namespace string) *Metrics {
	if namespace == "" {
		namespace = defaultNamespace
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,

		// Analysis metrics
		AnalysesStarted: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "analysis",
			Name:      "started_total",
			Help:      "Total number of analyses started",
		}),
		AnalysesFinished: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "analysis",
			Name:      "finished_total",
			Help:      "Total number of analyses finished by status",
		}, []string{"status"}),
		AnalysisDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "analysis",
			Name:      "duration_seconds",
			Help:      "End to end analysis duration in seconds",
			Buckets:   []float64{1, 5, 10, 30, 60, 120, 300, 600, 1800},
		}),
		WalletsAnalyzed: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "analysis",
			Name:      "wallets_total",
			Help:      "Total number of wallets submitted for analysis",
		}),
		ActiveAnalyses: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "analysis",
			Name:      "active",
			Help:      "Number of analyses currently running",
		}),
		StoredAnalyses: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "analysis",
			Name:      "stored",
			Help:      "Number of analyses held in the registry",
		}),

		// Graph metrics
		TransactionsSkipped: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "graph",
			Name:      "transactions_skipped_total",
			Help:      "Total number of malformed transactions skipped while building graphs",
		}),
		GraphBuildDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "graph",
			Name:      "build_duration_seconds",
			Help:      "Graph build and clustering duration in seconds",
			Buckets:   prometheus.DefBuckets,
		}),
		GraphNodes: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "graph",
			Name:      "nodes",
			Help:      "Number of nodes per built graph",
			Buckets:   prometheus.ExponentialBuckets(1, 4, 8),
		}),
		ClustersDetected: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "graph",
			Name:      "clusters",
			Help:      "Number of clusters detected per analysis",
			Buckets:   []float64{0, 1, 2, 5, 10, 25, 50, 100},
		}),

		// Collaborator metrics
		UpstreamRequests: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "upstream",
			Name:      "requests_total",
			Help:      "Total number of requests to external services by outcome",
		}, []string{"service", "outcome"}),
		UpstreamLatency: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "upstream",
			Name:      "latency_seconds",
			Help:      "External service call latency in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"service"}),
	}
}

// Registry returns the registry the metrics are registered on.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler returns an HTTP handler for the /metrics endpoint.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// RecordAnalysisStarted records a new analysis over walletCount wallets.
func (m *Metrics) RecordAnalysisStarted(walletCount int) {
	if m == nil {
		return
	}
	m.AnalysesStarted.Inc()
	m.WalletsAnalyzed.Add(float64(walletCount))
	m.ActiveAnalyses.Inc()
}

// RecordAnalysisFinished records the outcome of an analysis.
func (m *Metrics) RecordAnalysisFinished(status string, seconds float64) {
	if m == nil {
		return
	}
	m.AnalysesFinished.WithLabelValues(status).Inc()
	m.AnalysisDuration.Observe(seconds)
	m.ActiveAnalyses.Dec()
}

// RecordGraph records the shape of a built graph.
func (m *Metrics) RecordGraph(nodes, skipped, clusters int, seconds float64) {
	if m == nil {
		return
	}
	m.GraphNodes.Observe(float64(nodes))
	m.TransactionsSkipped.Add(float64(skipped))
	m.ClustersDetected.Observe(float64(clusters))
	m.GraphBuildDuration.Observe(seconds)
}

// RecordUpstream records one call to an external service.
func (m *Metrics) RecordUpstream(service string, seconds float64, err error) {
	if m == nil {
		return
	}
	outcome := "success"
	if err != nil {
		outcome = "error"
	}
	m.UpstreamRequests.WithLabelValues(service, outcome).Inc()
	m.UpstreamLatency.WithLabelValues(service).Observe(seconds)
}

// SetStoredAnalyses updates the registry size gauge.
func (m *Metrics) SetStoredAnalyses(n int) {
	if m == nil {
		return
	}
	m.StoredAnalyses.Set(float64(n))
}
