package redisx

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := New(mr.Addr())
	t.Cleanup(func() { _ = rdb.Close() })
	return mr, rdb
}

func TestIdempotencyLifecycle(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	mr, rdb := newRedis(t)
	idem := &Idempotency{RDB: rdb}

	_, claimed, err := idem.Begin(ctx, "u1", "k1")
	if err != nil || !claimed {
		t.Fatalf("expected first Begin to claim, got claimed=%v err=%v", claimed, err)
	}

	v, claimed, err := idem.Begin(ctx, "u1", "k1")
	if err != nil || claimed || v != IdemPending {
		t.Fatalf("expected pending replay, got %q claimed=%v err=%v", v, claimed, err)
	}

	if _, claimed, _ := idem.Begin(ctx, "u2", "k1"); !claimed {
		t.Fatalf("expected keys to be scoped per user")
	}

	if err := idem.Complete(ctx, "u1", "k1", "order-1"); err != nil {
		t.Fatalf("complete: %v", err)
	}
	v, _, _ = idem.Begin(ctx, "u1", "k1")
	if v != "order-1" {
		t.Fatalf("expected stored order id, got %q", v)
	}
	if ttl := mr.TTL("idem:order:create:u1:k1"); ttl != TTLIdempotency {
		t.Fatalf("expected ttl %s, got %s", TTLIdempotency, ttl)
	}

	if err := idem.Release(ctx, "u2", "k1"); err != nil {
		t.Fatalf("release: %v", err)
	}
	if _, claimed, _ := idem.Begin(ctx, "u2", "k1"); !claimed {
		t.Fatalf("expected released key to be claimable")
	}
}

func TestStatusCache(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	mr, rdb := newRedis(t)
	c := &StatusCache{RDB: rdb}

	if _, ok, err := c.Get(ctx, "o1"); ok || err != nil {
		t.Fatalf("expected miss, got ok=%v err=%v", ok, err)
	}

	at := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	if err := c.Set(ctx, "o1", StatusEntry{Status: "SHIPPED", UpdatedAt: at}); err != nil {
		t.Fatalf("set: %v", err)
	}
	e, ok, err := c.Get(ctx, "o1")
	if err != nil || !ok || e.Status != "SHIPPED" || !e.UpdatedAt.Equal(at) {
		t.Fatalf("unexpected entry %+v ok=%v err=%v", e, ok, err)
	}

	mr.FastForward(TTLStatusCache + time.Second)
	if _, ok, _ := c.Get(ctx, "o1"); ok {
		t.Fatalf("expected entry to expire")
	}

	_ = c.Set(ctx, "o2", StatusEntry{Status: "PENDING"})
	if err := c.Delete(ctx, "o2"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if mr.Exists("order_status:o2") {
		t.Fatalf("expected entry deleted")
	}
	if err := c.Delete(ctx, "never-cached"); err != nil {
		t.Fatalf("expected deleting a missing key to succeed, got %v", err)
	}
}

func TestSagaLogAndDedup(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	mr, rdb := newRedis(t)

	s := &SagaLog{RDB: rdb}
	if err := s.Record(ctx, "a1", map[string]any{"state": "STARTED", "owner_id": "u1"}); err != nil {
		t.Fatalf("record: %v", err)
	}
	if err := s.Record(ctx, "a1", map[string]any{"state": "COMMITTED"}); err != nil {
		t.Fatalf("record: %v", err)
	}
	got, err := s.Load(ctx, "a1")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if got["state"] != "COMMITTED" || got["owner_id"] != "u1" {
		t.Fatalf("unexpected saga hash %v", got)
	}
	if ttl := mr.TTL("saga:a1"); ttl != TTLSaga {
		t.Fatalf("expected saga ttl %s, got %s", TTLSaga, ttl)
	}

	d := &Deduper{RDB: rdb, Service: "reconciler"}
	first, err := d.FirstSeen(ctx, "ev-1")
	if err != nil || !first {
		t.Fatalf("expected first sighting, got %v (%v)", first, err)
	}
	again, _ := d.FirstSeen(ctx, "ev-1")
	if again {
		t.Fatalf("expected duplicate to be detected")
	}
	if !mr.Exists("dedup:reconciler:ev-1") {
		t.Fatalf("expected dedup key to be set")
	}
	_ = d.Forget(ctx, "ev-1")
	if first, _ := d.FirstSeen(ctx, "ev-1"); !first {
		t.Fatalf("expected forgotten id to be processed again")
	}
}
