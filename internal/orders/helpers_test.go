package orders

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/ariefcatur/go-shop-saga/internal/auth"
	"github.com/ariefcatur/go-shop-saga/internal/catalog"
	"github.com/ariefcatur/go-shop-saga/internal/clock"
	"github.com/shopspring/decimal"
)

var (
	testKey = []byte(strings.Repeat("s", 32))
	t0      = time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
)

type keys struct {
	issuer   *auth.Issuer
	verifier *auth.Verifier
}

func newKeys(t *testing.T, clk clock.Clock) keys {
	t.Helper()
	iss, err := auth.NewIssuer(testKey, time.Hour, clk)
	if err != nil {
		t.Fatalf("issuer: %v", err)
	}
	v, err := auth.NewVerifier(testKey, clk)
	if err != nil {
		t.Fatalf("verifier: %v", err)
	}
	return keys{issuer: iss, verifier: v}
}

func (k keys) token(t *testing.T, userID string, role auth.Role) string {
	t.Helper()
	tok, _, err := k.issuer.Issue(userID+"@example.com", userID, role)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	return tok
}

// ledgerReducer adapts an in-process catalog ledger to StockReducer and
// records every call.
type ledgerReducer struct {
	ledger *catalog.MemoryStore

	mu     sync.Mutex
	calls  []string
	tokens []string
}

func newLedger(t *testing.T, stock map[string]int) *ledgerReducer {
	t.Helper()
	s := catalog.NewMemoryStore(nil)
	for id, n := range stock {
		err := s.Create(context.Background(), &catalog.Product{
			ID: id, Name: "Product " + id, Price: decimal.NewFromInt(10), Stock: n,
		})
		if err != nil {
			t.Fatalf("seed %s: %v", id, err)
		}
	}
	return &ledgerReducer{ledger: s}
}

func (l *ledgerReducer) Reduce(ctx context.Context, token, productID string, quantity int) (int, error) {
	l.mu.Lock()
	l.calls = append(l.calls, productID)
	l.tokens = append(l.tokens, token)
	l.mu.Unlock()

	n, err := l.ledger.Reduce(ctx, productID, quantity)
	switch {
	case errors.Is(err, catalog.ErrInsufficientStock):
		return 0, ErrInsufficientStock
	case errors.Is(err, catalog.ErrNotFound):
		return 0, ErrProductNotFound
	}
	return n, err
}

func (l *ledgerReducer) stock(t *testing.T, id string) int {
	t.Helper()
	p, err := l.ledger.Get(context.Background(), id)
	if err != nil {
		t.Fatalf("get %s: %v", id, err)
	}
	return p.Stock
}

func (l *ledgerReducer) callCount() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.calls)
}

type recordedEvent struct {
	topic string
	env   Envelope
}

type fakeEvents struct {
	mu     sync.Mutex
	events []recordedEvent
}

func (f *fakeEvents) Publish(_ context.Context, topic string, env Envelope) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, recordedEvent{topic: topic, env: env})
	return nil
}

func (f *fakeEvents) byTopic(topic string) []Envelope {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []Envelope
	for _, e := range f.events {
		if e.topic == topic {
			out = append(out, e.env)
		}
	}
	return out
}

type fakeAttempts struct {
	mu     sync.Mutex
	states []string
	last   map[string]any
}

func (f *fakeAttempts) Record(_ context.Context, _ string, fields map[string]any) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.states = append(f.states, fields["state"].(string))
	f.last = fields
	return nil
}

type failingStore struct {
	*MemoryStore
	err error
}

func (s failingStore) Create(context.Context, *Order) error { return s.err }

func item(productID string, qty int) Item {
	return Item{ProductID: productID, Name: "Product " + productID, Quantity: qty, UnitPrice: decimal.NewFromInt(10)}
}

func proposal(items ...Item) NewOrder {
	total := decimal.Zero
	for _, it := range items {
		total = total.Add(it.UnitPrice.Mul(decimal.NewFromInt(int64(it.Quantity))))
	}
	return NewOrder{ShippingAddress: "Av. Siempre Viva 742", TotalPrice: total, Items: items}
}
