package catalog

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ariefcatur/go-shop-saga/internal/clock"
	"github.com/shopspring/decimal"
)

var t0 = time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

func seed(t *testing.T, s Store, id string, stock int) {
	t.Helper()
	err := s.Create(context.Background(), &Product{
		ID:         id,
		Name:       "Product " + id,
		Price:      decimal.RequireFromString("9.99"),
		Stock:      stock,
		Categories: []string{"general"},
	})
	if err != nil {
		t.Fatalf("seed %s: %v", id, err)
	}
}

func TestMemoryReduce(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		stock     int
		qty       int
		product   string
		want      int
		wantErr   error
		wantStock int
	}{
		{name: "partial", stock: 5, qty: 2, product: "p1", want: 3, wantStock: 3},
		{name: "exact", stock: 5, qty: 5, product: "p1", want: 0, wantStock: 0},
		{name: "insufficient", stock: 1, qty: 2, product: "p1", wantErr: ErrInsufficientStock, wantStock: 1},
		{name: "zero quantity", stock: 5, qty: 0, product: "p1", wantErr: ErrInvalidQuantity, wantStock: 5},
		{name: "negative quantity", stock: 5, qty: -1, product: "p1", wantErr: ErrInvalidQuantity, wantStock: 5},
		{name: "unknown product", stock: 5, qty: 1, product: "nope", wantErr: ErrNotFound, wantStock: 5},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			ctx := context.Background()
			s := NewMemoryStore(clock.NewManual(t0))
			seed(t, s, "p1", tt.stock)

			got, err := s.Reduce(ctx, tt.product, tt.qty)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("expected error %v, got %v", tt.wantErr, err)
			}
			if err == nil && got != tt.want {
				t.Fatalf("expected remaining %d, got %d", tt.want, got)
			}

			p, err := s.Get(ctx, "p1")
			if err != nil {
				t.Fatalf("get: %v", err)
			}
			if p.Stock != tt.wantStock {
				t.Fatalf("expected stock %d, got %d", tt.wantStock, p.Stock)
			}
		})
	}
}

func TestMemoryReduceConcurrent(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	s := NewMemoryStore(nil)
	seed(t, s, "hot", 50)
	seed(t, s, "cold", 10)

	var (
		wg           sync.WaitGroup
		ok, rejected atomic.Int64
	)
	for i := 0; i < 120; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := s.Reduce(ctx, "hot", 1)
			switch {
			case err == nil:
				ok.Add(1)
			case errors.Is(err, ErrInsufficientStock):
				rejected.Add(1)
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()

	if ok.Load() != 50 || rejected.Load() != 70 {
		t.Fatalf("expected 50 ok and 70 rejected, got %d and %d", ok.Load(), rejected.Load())
	}
	hot, _ := s.Get(ctx, "hot")
	if hot.Stock != 0 {
		t.Fatalf("expected hot stock 0, got %d", hot.Stock)
	}
	cold, _ := s.Get(ctx, "cold")
	if cold.Stock != 10 {
		t.Fatalf("expected cold stock untouched, got %d", cold.Stock)
	}
}

func TestMemoryQueries(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	s := NewMemoryStore(clock.NewManual(t0))
	for _, p := range []*Product{
		{ID: "b", Name: "Wireless Mouse", Description: "2.4GHz", Price: decimal.NewFromInt(20), Stock: 3, Categories: []string{"peripherals"}},
		{ID: "a", Name: "Mechanical Keyboard", Description: "hot-swap switches", Price: decimal.NewFromInt(80), Stock: 1, Categories: []string{"peripherals", "keyboards"}},
		{ID: "c", Name: "Desk Lamp", Description: "warm light", Price: decimal.NewFromInt(15), Stock: 7},
	} {
		if err := s.Create(ctx, p); err != nil {
			t.Fatalf("create %s: %v", p.ID, err)
		}
	}

	all, _ := s.List(ctx)
	if len(all) != 3 || all[0].Name != "Desk Lamp" || all[2].Name != "Wireless Mouse" {
		t.Fatalf("expected name ordering, got %+v", all)
	}

	found, _ := s.Search(ctx, "SWITCH")
	if len(found) != 1 || found[0].ID != "a" {
		t.Fatalf("expected keyboard from description match, got %+v", found)
	}

	periph, _ := s.ByCategory(ctx, "peripherals")
	if len(periph) != 2 {
		t.Fatalf("expected 2 peripherals, got %d", len(periph))
	}

	if err := s.Delete(ctx, "c"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := s.Get(ctx, "c"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound after delete, got %v", err)
	}
	if _, err := s.Reduce(ctx, "c", 1); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected reduce on deleted product to fail, got %v", err)
	}
}

func TestMemorySetStockAndValidation(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	clk := clock.NewManual(t0)
	s := NewMemoryStore(clk)
	seed(t, s, "p1", 2)

	clk.Advance(time.Minute)
	p, err := s.SetStock(ctx, "p1", 40)
	if err != nil {
		t.Fatalf("set stock: %v", err)
	}
	if p.Stock != 40 || !p.UpdatedAt.Equal(t0.Add(time.Minute)) {
		t.Fatalf("unexpected product after set stock: %+v", p)
	}
	if _, err := s.SetStock(ctx, "p1", -1); !errors.Is(err, ErrInvalidProduct) {
		t.Fatalf("expected ErrInvalidProduct, got %v", err)
	}

	bad := &Product{Name: " ", Price: decimal.NewFromInt(1)}
	if err := s.Create(ctx, bad); !errors.Is(err, ErrInvalidProduct) {
		t.Fatalf("expected ErrInvalidProduct for blank name, got %v", err)
	}
	neg := &Product{Name: "x", Price: decimal.NewFromInt(-1)}
	if err := s.Create(ctx, neg); !errors.Is(err, ErrInvalidProduct) {
		t.Fatalf("expected ErrInvalidProduct for negative price, got %v", err)
	}
}
