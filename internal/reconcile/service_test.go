package reconcile

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	kafkax "github.com/ariefcatur/go-shop-saga/internal/kafka"
	"github.com/ariefcatur/go-shop-saga/internal/metrics"
	"github.com/ariefcatur/go-shop-saga/internal/orders"
	"github.com/ariefcatur/go-shop-saga/internal/redisx"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/segmentio/kafka-go"
	"go.uber.org/zap/zaptest"
)

var occurred = time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

type memStore struct {
	mu    sync.Mutex
	rows  map[string]Leak
	fail  error
	calls int
}

func newMemStore() *memStore { return &memStore{rows: map[string]Leak{}} }

func (m *memStore) Record(_ context.Context, leaks []Leak) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	if m.fail != nil {
		return 0, m.fail
	}
	n := 0
	for _, l := range leaks {
		k := fmt.Sprintf("%s/%d", l.AttemptID, l.Position)
		if _, ok := m.rows[k]; ok {
			continue
		}
		m.rows[k] = l
		n++
	}
	return n, nil
}

func (m *memStore) List(_ context.Context, limit int) ([]Leak, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Leak, 0, len(m.rows))
	for _, l := range m.rows {
		out = append(out, l)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Position < out[j].Position })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

type fixture struct {
	svc   *Service
	store *memStore
	mr    *miniredis.Miniredis
	reg   *prometheus.Registry
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redisx.New(mr.Addr())
	t.Cleanup(func() { _ = rdb.Close() })

	reg := prometheus.NewRegistry()
	store := newMemStore()
	return &fixture{
		svc: &Service{
			Store:   store,
			Dedup:   &redisx.Deduper{RDB: rdb, Service: "reconciler"},
			Log:     zaptest.NewLogger(t),
			Metrics: metrics.New(reg, "reconciler"),
		},
		store: store,
		mr:    mr,
		reg:   reg,
	}
}

func leakMessage(eventID, eventType string, payload any) kafka.Message {
	env := orders.Envelope{
		EventID:       eventID,
		EventType:     eventType,
		EventVersion:  1,
		OccurredAt:    occurred,
		Producer:      "orders",
		CorrelationID: "a1",
		Payload:       kafkax.MustMarshal(payload),
	}
	return kafka.Message{
		Topic: orders.TopicStockLeaked,
		Value: kafkax.MustMarshal(env),
		Headers: []kafka.Header{
			{Key: "x-event-type", Value: []byte(eventType)},
		},
	}
}

func samplePayload() orders.StockLeakedPayload {
	return orders.StockLeakedPayload{
		AttemptID:  "0b5a3f3e-6a0e-4d7e-9a57-3c2a8b6f1d10",
		UserID:     "u1",
		Stage:      "reservation",
		Reason:     "insufficient stock",
		FailedItem: &orders.ItemQty{Position: 3, ProductID: "p3", Qty: 1},
		Items: []orders.ItemQty{
			{Position: 1, ProductID: "p1", Qty: 1},
			{Position: 2, ProductID: "p2", Qty: 2},
		},
	}
}

func (f *fixture) expectEvents(t *testing.T, lines ...string) {
	t.Helper()
	want := "# HELP reconciler_events_total Stock leak events processed by the reconciler.\n" +
		"# TYPE reconciler_events_total counter\n" + strings.Join(lines, "\n") + "\n"
	if err := testutil.GatherAndCompare(f.reg, strings.NewReader(want), "reconciler_events_total"); err != nil {
		t.Fatalf("unexpected metrics: %v", err)
	}
}

func TestHandleStockLeakedRecords(t *testing.T) {
	t.Parallel()
	f := newFixture(t)

	if err := f.svc.HandleStockLeaked(context.Background(), leakMessage("e1", orders.EventStockLeaked, samplePayload())); err != nil {
		t.Fatalf("handle: %v", err)
	}
	leaks, _ := f.store.List(context.Background(), 10)
	if len(leaks) != 2 {
		t.Fatalf("expected 2 leak rows, got %d", len(leaks))
	}
	l := leaks[1]
	if l.ProductID != "p2" || l.Quantity != 2 || l.OwnerID != "u1" || l.Stage != "reservation" || !l.OccurredAt.Equal(occurred) {
		t.Fatalf("unexpected leak %+v", l)
	}
	if !f.mr.Exists("dedup:reconciler:e1") {
		t.Fatalf("expected dedup mark")
	}
	f.expectEvents(t, `reconciler_events_total{outcome="recorded",service="reconciler"} 1`)
}

func TestHandleStockLeakedSkipsDuplicates(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	m := leakMessage("e1", orders.EventStockLeaked, samplePayload())

	for i := 0; i < 3; i++ {
		if err := f.svc.HandleStockLeaked(context.Background(), m); err != nil {
			t.Fatalf("handle %d: %v", i, err)
		}
	}
	if f.store.calls != 1 {
		t.Fatalf("expected one store write, got %d", f.store.calls)
	}
	f.expectEvents(t,
		`reconciler_events_total{outcome="duplicate",service="reconciler"} 2`,
		`reconciler_events_total{outcome="recorded",service="reconciler"} 1`,
	)
}

func TestHandleStockLeakedRetriesAfterStoreFailure(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	f.store.fail = errors.New("db down")
	m := leakMessage("e1", orders.EventStockLeaked, samplePayload())

	if err := f.svc.HandleStockLeaked(context.Background(), m); err == nil {
		t.Fatalf("expected store error to be returned so the message is not committed")
	}
	if f.mr.Exists("dedup:reconciler:e1") {
		t.Fatalf("expected dedup mark cleared after failure")
	}

	f.store.fail = nil
	if err := f.svc.HandleStockLeaked(context.Background(), m); err != nil {
		t.Fatalf("expected redelivery to succeed, got %v", err)
	}
	if len(f.store.rows) != 2 {
		t.Fatalf("expected rows recorded on redelivery, got %d", len(f.store.rows))
	}
}

func TestHandleStockLeakedDropsUnusableMessages(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ctx := context.Background()

	other := leakMessage("e2", orders.EventOrderCreated, map[string]string{"order_id": "x"})
	garbage := kafka.Message{Value: []byte("{not json")}
	badPayload := kafka.Message{Value: kafkax.MustMarshal(orders.Envelope{
		EventID: "e3", EventType: orders.EventStockLeaked, Payload: json.RawMessage(`"nope"`),
	})}

	for _, m := range []kafka.Message{other, garbage, badPayload} {
		if err := f.svc.HandleStockLeaked(ctx, m); err != nil {
			t.Fatalf("expected message dropped without error, got %v", err)
		}
	}
	if f.store.calls != 0 {
		t.Fatalf("expected no store writes, got %d", f.store.calls)
	}
	f.expectEvents(t,
		`reconciler_events_total{outcome="ignored",service="reconciler"} 1`,
		`reconciler_events_total{outcome="invalid",service="reconciler"} 2`,
	)
}
