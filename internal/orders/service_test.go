package orders

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/ariefcatur/go-shop-saga/internal/clock"
	"github.com/ariefcatur/go-shop-saga/internal/redisx"
	"go.uber.org/zap/zaptest"
)

func newService(t *testing.T, strict bool) (*Service, *MemoryStore, *miniredis.Miniredis, *fakeEvents, *clock.Manual) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redisx.New(mr.Addr())
	t.Cleanup(func() { _ = rdb.Close() })

	store := NewMemoryStore()
	events := &fakeEvents{}
	clk := clock.NewManual(t0)
	svc := &Service{
		Store:   store,
		Policy:  PolicyFor(strict),
		Clock:   clk,
		Cache:   &redisx.StatusCache{RDB: rdb},
		Events:  events,
		Log:     zaptest.NewLogger(t),
		Service: "orders",
	}
	return svc, store, mr, events, clk
}

func TestServiceUpdateStatus(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	svc, store, _, events, clk := newService(t, false)
	_ = store.Create(ctx, storedOrder("a", "u1", t0))
	clk.Advance(time.Minute)

	o, err := svc.UpdateStatus(ctx, "a", "SHIPPED", "admin@example.com")
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if o.Status != StatusShipped || !o.UpdatedAt.Equal(t0.Add(time.Minute)) {
		t.Fatalf("unexpected order %+v", o)
	}

	// permissive by default: going back is allowed
	if _, err := svc.UpdateStatus(ctx, "a", "PENDING", "admin@example.com"); err != nil {
		t.Fatalf("expected SHIPPED->PENDING allowed, got %v", err)
	}

	changed := events.byTopic(TopicOrderStatusChanged)
	if len(changed) != 2 {
		t.Fatalf("expected 2 status events, got %d", len(changed))
	}
	var p OrderStatusChangedPayload
	if err := json.Unmarshal(changed[0].Payload, &p); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if p.From != StatusPending || p.To != StatusShipped || p.ChangedBy != "admin@example.com" {
		t.Fatalf("unexpected payload %+v", p)
	}
}

func TestServiceUpdateStatusErrors(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	svc, store, _, events, _ := newService(t, true)
	_ = store.Create(ctx, storedOrder("a", "u1", t0))

	if _, err := svc.UpdateStatus(ctx, "a", "shipped", "x"); !errors.Is(err, ErrInvalidStatus) {
		t.Fatalf("expected ErrInvalidStatus, got %v", err)
	}
	if _, err := svc.UpdateStatus(ctx, "missing", "SHIPPED", "x"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if _, err := svc.UpdateStatus(ctx, "a", "DELIVERED", "x"); !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("expected strict policy to reject PENDING->DELIVERED, got %v", err)
	}
	if n := len(events.byTopic(TopicOrderStatusChanged)); n != 0 {
		t.Fatalf("expected no events for rejected updates, got %d", n)
	}
}

func TestServiceStatusCache(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	svc, store, mr, _, _ := newService(t, false)
	_ = store.Create(ctx, storedOrder("a", "u1", t0))

	v, err := svc.Status(ctx, "a")
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	if v.Cached || v.Status != StatusPending || v.OwnerID != "u1" {
		t.Fatalf("expected miss served from store, got %+v", v)
	}
	if !mr.Exists("order_status:a") {
		t.Fatalf("expected cache filled on miss")
	}

	v, _ = svc.Status(ctx, "a")
	if !v.Cached || v.OwnerID != "u1" {
		t.Fatalf("expected cache hit with owner, got %+v", v)
	}

	if _, err := svc.UpdateStatus(ctx, "a", "CONFIRMED", "x"); err != nil {
		t.Fatalf("update: %v", err)
	}
	if mr.Exists("order_status:a") {
		t.Fatalf("expected update to drop the cached status")
	}
	v, _ = svc.Status(ctx, "a")
	if v.Cached || v.Status != StatusConfirmed {
		t.Fatalf("expected fresh read from store after update, got %+v", v)
	}
	v, _ = svc.Status(ctx, "a")
	if !v.Cached || v.Status != StatusConfirmed {
		t.Fatalf("expected refilled cache, got %+v", v)
	}

	mr.FastForward(redisx.TTLStatusCache + time.Second)
	v, _ = svc.Status(ctx, "a")
	if v.Cached {
		t.Fatalf("expected expired entry to miss")
	}

	if _, err := svc.Status(ctx, "missing"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestServiceConcurrentUpdatesLeaveCacheConsistent(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	svc, store, _, _, _ := newService(t, false)
	_ = store.Create(ctx, storedOrder("a", "u1", t0))
	if _, err := svc.Status(ctx, "a"); err != nil {
		t.Fatalf("status: %v", err)
	}

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		next := "CONFIRMED"
		if i%2 == 1 {
			next = "SHIPPED"
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := svc.UpdateStatus(ctx, "a", next, "admin"); err != nil {
				t.Errorf("update: %v", err)
			}
		}()
	}
	wg.Wait()

	stored, _ := store.Get(ctx, "a")
	v, err := svc.Status(ctx, "a")
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	if v.Status != stored.Status {
		t.Fatalf("expected cached status %s to match store, got %s", stored.Status, v.Status)
	}
}

func TestServiceStatusWithoutRedis(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	svc, store, mr, _, _ := newService(t, false)
	_ = store.Create(ctx, storedOrder("a", "u1", t0))
	mr.Close()

	v, err := svc.Status(ctx, "a")
	if err != nil {
		t.Fatalf("expected store fallback when cache is down, got %v", err)
	}
	if v.Cached || v.Status != StatusPending {
		t.Fatalf("unexpected view %+v", v)
	}
}
