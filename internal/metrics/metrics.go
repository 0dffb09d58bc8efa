package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics exposes application metrics that are safe to scrape via Prometheus.
type Metrics struct {
	registry            *prometheus.Registry
	httpRequests        *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec
	feedSnapshots       *prometheus.CounterVec
	feedRecords         *prometheus.GaugeVec
	reconcilePasses     prometheus.Counter
	reconcileOps        *prometheus.CounterVec
	reconcileDuration   prometheus.Histogram
	renderedPrimitives  prometheus.Gauge
	placements          *prometheus.CounterVec
	feedWriteFailures   *prometheus.CounterVec
}

// New creates a fresh Metrics registry with HTTP, feed and reconciliation metrics registered.
func New() *Metrics {
	registry := prometheus.NewRegistry()

	httpRequests := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "fleetmap",
		Name:      "http_requests_total",
		Help:      "Count of HTTP requests processed by core-go",
	}, []string{"method", "path", "status"})

	httpRequestDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "fleetmap",
		Name:      "http_request_duration_seconds",
		Help:      "Duration of HTTP requests served by core-go",
		Buckets:   prometheus.DefBuckets,
	}, []string{"method", "path", "status"})

	feedSnapshots := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "fleetmap",
		Name:      "feed_snapshots_total",
		Help:      "Feed snapshots applied, by collection",
	}, []string{"collection"})

	feedRecords := prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "fleetmap",
		Name:      "feed_records",
		Help:      "Records in the latest snapshot of each collection",
	}, []string{"collection"})

	reconcilePasses := prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "fleetmap",
		Name:      "reconcile_passes_total",
		Help:      "Total number of reconciliation passes",
	})

	reconcileOps := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "fleetmap",
		Name:      "reconcile_ops_total",
		Help:      "Primitive operations emitted by the reconciler",
	}, []string{"op"})

	reconcileDuration := prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: "fleetmap",
		Name:      "reconcile_duration_seconds",
		Help:      "Duration of reconciliation passes",
		Buckets:   []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5},
	})

	renderedPrimitives := prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "fleetmap",
		Name:      "rendered_primitives",
		Help:      "Primitives currently owned by the reconciler",
	})

	placements := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "fleetmap",
		Name:      "placements_committed_total",
		Help:      "Placements turned into creation commands, by kind",
	}, []string{"kind"})

	feedWriteFailures := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "fleetmap",
		Name:      "feed_write_failures_total",
		Help:      "Feed writes that failed, by operation",
	}, []string{"operation"})

	registry.MustRegister(
		httpRequests,
		httpRequestDuration,
		feedSnapshots,
		feedRecords,
		reconcilePasses,
		reconcileOps,
		reconcileDuration,
		renderedPrimitives,
		placements,
		feedWriteFailures,
	)

	return &Metrics{
		registry:            registry,
		httpRequests:        httpRequests,
		httpRequestDuration: httpRequestDuration,
		feedSnapshots:       feedSnapshots,
		feedRecords:         feedRecords,
		reconcilePasses:     reconcilePasses,
		reconcileOps:        reconcileOps,
		reconcileDuration:   reconcileDuration,
		renderedPrimitives:  renderedPrimitives,
		placements:          placements,
		feedWriteFailures:   feedWriteFailures,
	}
}

// ObserveHTTPRequest records a single HTTP request/response cycle.
func (m *Metrics) ObserveHTTPRequest(method, path string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	labels := prometheus.Labels{
		"method": method,
		"path":   path,
		"status": strconv.Itoa(status),
	}
	m.httpRequests.With(labels).Inc()
	m.httpRequestDuration.With(labels).Observe(duration.Seconds())
}

// ObserveSnapshot records an applied feed snapshot and its size.
func (m *Metrics) ObserveSnapshot(collection string, records int) {
	if m == nil {
		return
	}
	m.feedSnapshots.WithLabelValues(collection).Inc()
	m.feedRecords.WithLabelValues(collection).Set(float64(records))
}

// ObserveReconcile records one reconciliation pass. ops is keyed by op type.
func (m *Metrics) ObserveReconcile(ops map[string]int, primitives int, duration time.Duration) {
	if m == nil {
		return
	}
	m.reconcilePasses.Inc()
	for op, n := range ops {
		m.reconcileOps.WithLabelValues(op).Add(float64(n))
	}
	m.renderedPrimitives.Set(float64(primitives))
	m.reconcileDuration.Observe(duration.Seconds())
}

func (m *Metrics) IncPlacement(kind string) {
	if m == nil {
		return
	}
	m.placements.WithLabelValues(kind).Inc()
}

func (m *Metrics) IncFeedWriteFailure(operation string) {
	if m == nil {
		return
	}
	m.feedWriteFailures.WithLabelValues(operation).Inc()
}

// Registry exposes the underlying registry for tests and extra collectors.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// Handler exposes the Prometheus registry over HTTP.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte("metrics unavailable"))
		})
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
