package catalog

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/ariefcatur/go-shop-saga/internal/clock"
	"github.com/google/uuid"
)

// entry guards one product; Reduce only ever holds this lock, never the map lock.
type entry struct {
	mu      sync.Mutex
	p       Product
	deleted bool
}

type MemoryStore struct {
	mu    sync.RWMutex
	items map[string]*entry
	clock clock.Clock
}

func NewMemoryStore(clk clock.Clock) *MemoryStore {
	if clk == nil {
		clk = clock.NewSystem()
	}
	return &MemoryStore{items: make(map[string]*entry), clock: clk}
}

func (s *MemoryStore) lookup(id string) *entry {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.items[id]
}

func (s *MemoryStore) Reduce(ctx context.Context, productID string, quantity int) (int, error) {
	if quantity <= 0 {
		return 0, ErrInvalidQuantity
	}
	e := s.lookup(productID)
	if e == nil {
		return 0, ErrNotFound
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.deleted {
		return 0, ErrNotFound
	}
	if quantity > e.p.Stock {
		return 0, ErrInsufficientStock
	}
	e.p.Stock -= quantity
	e.p.UpdatedAt = s.clock.Now()
	return e.p.Stock, nil
}

func (s *MemoryStore) Create(ctx context.Context, p *Product) error {
	if err := p.Validate(); err != nil {
		return err
	}
	now := s.clock.Now()
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	p.CreatedAt, p.UpdatedAt = now, now

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.items[p.ID]; ok {
		return fmt.Errorf("%w: id %s already exists", ErrInvalidProduct, p.ID)
	}
	s.items[p.ID] = &entry{p: cloneProduct(*p)}
	return nil
}

func (s *MemoryStore) Get(ctx context.Context, id string) (*Product, error) {
	e := s.lookup(id)
	if e == nil {
		return nil, ErrNotFound
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.deleted {
		return nil, ErrNotFound
	}
	p := cloneProduct(e.p)
	return &p, nil
}

func (s *MemoryStore) List(ctx context.Context) ([]Product, error) {
	return s.filter(func(Product) bool { return true }), nil
}

func (s *MemoryStore) Search(ctx context.Context, q string) ([]Product, error) {
	q = strings.ToLower(strings.TrimSpace(q))
	return s.filter(func(p Product) bool {
		return strings.Contains(strings.ToLower(p.Name), q) ||
			strings.Contains(strings.ToLower(p.Description), q)
	}), nil
}

func (s *MemoryStore) ByCategory(ctx context.Context, category string) ([]Product, error) {
	return s.filter(func(p Product) bool {
		for _, c := range p.Categories {
			if c == category {
				return true
			}
		}
		return false
	}), nil
}

func (s *MemoryStore) Update(ctx context.Context, p *Product) error {
	if err := p.Validate(); err != nil {
		return err
	}
	e := s.lookup(p.ID)
	if e == nil {
		return ErrNotFound
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.deleted {
		return ErrNotFound
	}
	p.CreatedAt = e.p.CreatedAt
	p.UpdatedAt = s.clock.Now()
	e.p = cloneProduct(*p)
	return nil
}

func (s *MemoryStore) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	e, ok := s.items[id]
	delete(s.items, id)
	s.mu.Unlock()
	if !ok {
		return ErrNotFound
	}
	e.mu.Lock()
	e.deleted = true
	e.mu.Unlock()
	return nil
}

func (s *MemoryStore) SetStock(ctx context.Context, id string, stock int) (*Product, error) {
	if stock < 0 {
		return nil, fmt.Errorf("%w: stock must not be negative", ErrInvalidProduct)
	}
	e := s.lookup(id)
	if e == nil {
		return nil, ErrNotFound
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.deleted {
		return nil, ErrNotFound
	}
	e.p.Stock = stock
	e.p.UpdatedAt = s.clock.Now()
	p := cloneProduct(e.p)
	return &p, nil
}

func (s *MemoryStore) filter(keep func(Product) bool) []Product {
	s.mu.RLock()
	entries := make([]*entry, 0, len(s.items))
	for _, e := range s.items {
		entries = append(entries, e)
	}
	s.mu.RUnlock()

	out := make([]Product, 0, len(entries))
	for _, e := range entries {
		e.mu.Lock()
		if !e.deleted && keep(e.p) {
			out = append(out, cloneProduct(e.p))
		}
		e.mu.Unlock()
	}
	sortProducts(out)
	return out
}

func sortProducts(ps []Product) {
	sort.Slice(ps, func(i, j int) bool {
		if ps[i].Name != ps[j].Name {
			return ps[i].Name < ps[j].Name
		}
		return ps[i].ID < ps[j].ID
	})
}

func cloneProduct(p Product) Product {
	p.Categories = append([]string(nil), p.Categories...)
	return p
}
