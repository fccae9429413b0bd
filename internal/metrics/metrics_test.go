package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestCounters(t *testing.T) {
	t.Parallel()

	m := New(prometheus.NewRegistry(), "orders")
	m.OrderAttempt("committed")
	m.OrderAttempt("committed")
	m.StockLeak("reservation", 3)
	m.StockLeak("reservation", 0)
	m.ObserveHTTP(http.MethodPost, "/orders", http.StatusCreated, 10*time.Millisecond)

	if got := testutil.ToFloat64(m.orderAttempts.WithLabelValues("committed")); got != 2 {
		t.Fatalf("expected 2 committed attempts, got %v", got)
	}
	if got := testutil.ToFloat64(m.stockLeaks.WithLabelValues("reservation")); got != 3 {
		t.Fatalf("expected 3 leaked units, got %v", got)
	}
	if got := testutil.ToFloat64(m.httpRequests.WithLabelValues(http.MethodPost, "/orders", "201")); got != 1 {
		t.Fatalf("expected 1 request, got %v", got)
	}
}

func TestNilMetricsIsNoop(t *testing.T) {
	t.Parallel()

	var m *Metrics
	m.OrderAttempt("committed")
	m.StockReduction("ok")
	m.StockLeak("persist", 1)
	m.ReconcilerEvent("stored")
	m.ObserveHTTP(http.MethodGet, "/", http.StatusOK, time.Millisecond)
}

func TestHandlerExposesService(t *testing.T) {
	t.Parallel()

	m := New(prometheus.NewRegistry(), "catalog")
	m.StockReduction("ok")

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), `stock_reductions_total{outcome="ok",service="catalog"} 1`) {
		t.Fatalf("expected stock reduction sample, got %s", rec.Body.String())
	}
}
