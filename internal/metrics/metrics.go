package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the collectors shared by the services. A nil *Metrics is valid
// and records nothing, which keeps tests and optional wiring simple.
type Metrics struct {
	httpRequests     *prometheus.CounterVec
	httpDuration     *prometheus.HistogramVec
	orderAttempts    *prometheus.CounterVec
	stockReductions  *prometheus.CounterVec
	stockLeaks       *prometheus.CounterVec
	reconcilerEvents *prometheus.CounterVec

	gatherer prometheus.Gatherer
}

// New registers every collector on reg with a constant service label.
// Pass prometheus.NewRegistry() in tests to avoid global registration clashes.
func New(reg *prometheus.Registry, service string) *Metrics {
	constLabels := prometheus.Labels{"service": service}

	m := &Metrics{
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name:        "http_requests_total",
			Help:        "HTTP requests handled, by route and status code.",
			ConstLabels: constLabels,
		}, []string{"method", "route", "status"}),
		httpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:        "http_request_duration_seconds",
			Help:        "HTTP request latency.",
			ConstLabels: constLabels,
			Buckets:     prometheus.DefBuckets,
		}, []string{"method", "route"}),
		orderAttempts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name:        "order_attempts_total",
			Help:        "Order creation attempts by final outcome.",
			ConstLabels: constLabels,
		}, []string{"outcome"}),
		stockReductions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name:        "stock_reductions_total",
			Help:        "Stock ledger reduce calls by outcome.",
			ConstLabels: constLabels,
		}, []string{"outcome"}),
		stockLeaks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name:        "stock_leaks_total",
			Help:        "Units of stock reduced for orders that were never stored.",
			ConstLabels: constLabels,
		}, []string{"stage"}),
		reconcilerEvents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name:        "reconciler_events_total",
			Help:        "Stock leak events processed by the reconciler.",
			ConstLabels: constLabels,
		}, []string{"outcome"}),
		gatherer: reg,
	}

	reg.MustRegister(
		m.httpRequests,
		m.httpDuration,
		m.orderAttempts,
		m.stockReductions,
		m.stockLeaks,
		m.reconcilerEvents,
	)
	return m
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{})
}

func (m *Metrics) ObserveHTTP(method, route string, status int, d time.Duration) {
	if m == nil {
		return
	}
	m.httpRequests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	m.httpDuration.WithLabelValues(method, route).Observe(d.Seconds())
}

func (m *Metrics) OrderAttempt(outcome string) {
	if m == nil {
		return
	}
	m.orderAttempts.WithLabelValues(outcome).Inc()
}

func (m *Metrics) StockReduction(outcome string) {
	if m == nil {
		return
	}
	m.stockReductions.WithLabelValues(outcome).Inc()
}

func (m *Metrics) StockLeak(stage string, units int) {
	if m == nil || units <= 0 {
		return
	}
	m.stockLeaks.WithLabelValues(stage).Add(float64(units))
}

func (m *Metrics) ReconcilerEvent(outcome string) {
	if m == nil {
		return
	}
	m.reconcilerEvents.WithLabelValues(outcome).Inc()
}
