// Package metrics holds the process-wide load counters of the gateway and
// exposes them in the Prometheus text format.
//
// The four core series are backed by atomics and exported through
// CounterFunc/GaugeFunc collectors, so a scrape and Snapshot read the same
// values. HTTP instrumentation series live on the same private registry.
// All methods are safe on a nil *Aggregator and never fail.
package metrics

import (
	"net/http"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Namespace prefixes every series exported by the gateway.
const Namespace = "llmgate"

// Aggregator owns the counters and gauges of one gateway process.
type Aggregator struct {
	registry *prometheus.Registry

	requestsTotal  atomic.Uint64
	tokensTotal    atomic.Uint64
	activeRequests atomic.Int64
	modelsLoaded   atomic.Int64

	httpRequestsTotal   *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec
	httpInflight        *prometheus.GaugeVec
	backpressureTotal   *prometheus.CounterVec
}

// Snapshot is a point-in-time read of the core counters.
type Snapshot struct {
	RequestsTotal  uint64
	TokensTotal    uint64
	ActiveRequests int64
	ModelsLoaded   int64
}

// New returns an Aggregator with all counters at zero, registered on a fresh
// Prometheus registry.
func New() *Aggregator {
	a := &Aggregator{registry: prometheus.NewRegistry()}

	a.registry.MustRegister(
		prometheus.NewCounterFunc(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "requests_total",
			Help:      "Total generation requests admitted",
		}, func() float64 { return float64(a.requestsTotal.Load()) }),
		prometheus.NewCounterFunc(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "tokens_total",
			Help:      "Token deltas relayed from backends",
		}, func() float64 { return float64(a.tokensTotal.Load()) }),
		prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace: Namespace,
			Name:      "active_requests",
			Help:      "Generation requests currently holding a slot",
		}, func() float64 { return float64(a.activeRequests.Load()) }),
		prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace: Namespace,
			Name:      "models_loaded",
			Help:      "Models currently registered",
		}, func() float64 { return float64(a.modelsLoaded.Load()) }),
	)

	a.httpRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: Namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests",
		},
		[]string{"path", "method", "status"},
	)
	a.httpRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: Namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "Duration of HTTP requests in seconds",
			// Streams last as long as the decode, so the tail is wide.
			Buckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10, 30, 60},
		},
		[]string{"path", "method", "status"},
	)
	a.httpInflight = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: Namespace,
			Subsystem: "http",
			Name:      "inflight_requests",
			Help:      "In-flight HTTP requests",
		},
		[]string{"path"},
	)
	a.backpressureTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: Namespace,
			Subsystem: "http",
			Name:      "backpressure_total",
			Help:      "Total admission rejections returned as 429",
		},
		[]string{"reason"},
	)
	a.registry.MustRegister(a.httpRequestsTotal, a.httpRequestDuration, a.httpInflight, a.backpressureTotal)
	return a
}

// RequestStarted records an admitted request.
func (a *Aggregator) RequestStarted() {
	if a == nil {
		return
	}
	a.requestsTotal.Add(1)
	a.activeRequests.Add(1)
}

// RequestFinished records the release of an admitted request's slot.
func (a *Aggregator) RequestFinished() {
	if a == nil {
		return
	}
	a.activeRequests.Add(-1)
}

// AddTokens adds n relayed deltas to tokens_total.
func (a *Aggregator) AddTokens(n int) {
	if a == nil || n <= 0 {
		return
	}
	a.tokensTotal.Add(uint64(n))
}

// ModelLoaded increments models_loaded.
func (a *Aggregator) ModelLoaded() {
	if a == nil {
		return
	}
	a.modelsLoaded.Add(1)
}

// ModelRemoved decrements models_loaded.
func (a *Aggregator) ModelRemoved() {
	if a == nil {
		return
	}
	a.modelsLoaded.Add(-1)
}

// Snapshot reads the current core counters.
func (a *Aggregator) Snapshot() Snapshot {
	if a == nil {
		return Snapshot{}
	}
	return Snapshot{
		RequestsTotal:  a.requestsTotal.Load(),
		TokensTotal:    a.tokensTotal.Load(),
		ActiveRequests: a.activeRequests.Load(),
		ModelsLoaded:   a.modelsLoaded.Load(),
	}
}

// ObserveHTTP records one finished HTTP request.
func (a *Aggregator) ObserveHTTP(path, method, status string, d time.Duration) {
	if a == nil {
		return
	}
	a.httpRequestsTotal.WithLabelValues(path, method, status).Inc()
	a.httpRequestDuration.WithLabelValues(path, method, status).Observe(d.Seconds())
}

// TrackInflight increments the in-flight gauge for path and returns the
// matching decrement.
func (a *Aggregator) TrackInflight(path string) func() {
	if a == nil {
		return func() {}
	}
	g := a.httpInflight.WithLabelValues(path)
	g.Inc()
	return g.Dec
}

// IncBackpressure is called when an admission rejection is returned to the client.
func (a *Aggregator) IncBackpressure(reason string) {
	if a == nil {
		return
	}
	if reason == "" {
		reason = "unspecified"
	}
	a.backpressureTotal.WithLabelValues(reason).Inc()
}

// Registry exposes the underlying registry, e.g. for testutil assertions.
func (a *Aggregator) Registry() *prometheus.Registry { return a.registry }

// Handler serves the text exposition of every registered series.
func (a *Aggregator) Handler() http.Handler {
	return promhttp.HandlerFor(a.registry, promhttp.HandlerOpts{
		ErrorHandling: promhttp.ContinueOnError,
	})
}
