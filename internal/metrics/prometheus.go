package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Sink receives collection pipeline measurements
type Sink interface {
	ObserveDuration(namespace, collectorType string, d time.Duration)
	IncError(namespace, errorType string)
	AddPods(namespace string, n int)
	SetNodes(namespace string, n int)
}

// Nop discards every measurement
type Nop struct{}

func (Nop) ObserveDuration(string, string, time.Duration) {}
func (Nop) IncError(string, string)                       {}
func (Nop) AddPods(string, int)                           {}
func (Nop) SetNodes(string, int)                          {}

// Prometheus records measurements on its own registry
type Prometheus struct {
	registry *prometheus.Registry

	// Collection pipeline metrics
	collectionDuration *prometheus.HistogramVec
	collectionErrors   *prometheus.CounterVec
	podsProcessed      *prometheus.CounterVec
	nodesCurrent       *prometheus.GaugeVec

	// Exported snapshot metrics
	nodeGauges *nodeGaugeCollector

	// HTTP request metrics
	httpRequestsTotal   *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec
}

// NewPrometheus creates the metric families and registers them, together with the
// Go runtime and process collectors, on a fresh registry
func NewPrometheus() *Prometheus {
	p := &Prometheus{
		registry: prometheus.NewRegistry(),

		collectionDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "k8s_fs_collection_duration_seconds",
				Help:    "Time spent collecting filesystem data",
				Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30}, // 50ms to 30s
			},
			[]string{"namespace", "collector_type"},
		),

		collectionErrors: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "k8s_fs_collection_errors_total",
				Help: "Total number of collection errors",
			},
			[]string{"namespace", "error_type"},
		),

		podsProcessed: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "k8s_fs_pods_processed_total",
				Help: "Total number of pods processed",
			},
			[]string{"namespace"},
		),

		nodesCurrent: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "k8s_fs_nodes_current",
				Help: "Current number of nodes with pods from the namespace",
			},
			[]string{"namespace"},
		),

		nodeGauges: newNodeGaugeCollector(),

		httpRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "k8s_fs_http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "path", "status_code"},
		),

		httpRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "k8s_fs_http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "path", "status_code"},
		),
	}

	p.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		p.collectionDuration,
		p.collectionErrors,
		p.podsProcessed,
		p.nodesCurrent,
		p.nodeGauges,
		p.httpRequestsTotal,
		p.httpRequestDuration,
	)

	return p
}

// Registry returns the underlying registry
func (p *Prometheus) Registry() *prometheus.Registry {
	return p.registry
}

// Handler serves the registry in the Prometheus exposition format
func (p *Prometheus) Handler() http.Handler {
	return promhttp.HandlerFor(p.registry, promhttp.HandlerOpts{Registry: p.registry})
}

// ObserveDuration records how long a collector took for a namespace
func (p *Prometheus) ObserveDuration(namespace, collectorType string, d time.Duration) {
	p.collectionDuration.With(prometheus.Labels{
		"namespace":      namespace,
		"collector_type": collectorType,
	}).Observe(d.Seconds())
}

// IncError counts a collection error
func (p *Prometheus) IncError(namespace, errorType string) {
	p.collectionErrors.With(prometheus.Labels{
		"namespace":  namespace,
		"error_type": errorType,
	}).Inc()
}

// AddPods counts processed pods
func (p *Prometheus) AddPods(namespace string, n int) {
	if n <= 0 {
		return
	}
	p.podsProcessed.With(prometheus.Labels{"namespace": namespace}).Add(float64(n))
}

// SetNodes records how many nodes host pods of the namespace
func (p *Prometheus) SetNodes(namespace string, n int) {
	p.nodesCurrent.With(prometheus.Labels{"namespace": namespace}).Set(float64(n))
}

// ReplaceNodeGauges publishes the per-node gauges of the latest cycle. Nodes absent
// from values stop being reported.
func (p *Prometheus) ReplaceNodeGauges(values []NodeGauge) {
	p.nodeGauges.replace(values)
}

// RecordHTTPRequest records metrics for HTTP requests
func (p *Prometheus) RecordHTTPRequest(method, path string, statusCode int, duration time.Duration) {
	labels := prometheus.Labels{
		"method":      method,
		"path":        path,
		"status_code": strconv.Itoa(statusCode),
	}

	p.httpRequestsTotal.With(labels).Inc()
	p.httpRequestDuration.With(labels).Observe(duration.Seconds())
}
