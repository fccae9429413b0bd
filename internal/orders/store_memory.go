package orders

import (
	"context"
	"sort"
	"sync"
	"time"
)

type MemoryStore struct {
	mu     sync.RWMutex
	orders map[string]*Order
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{orders: make(map[string]*Order)}
}

func (s *MemoryStore) Create(ctx context.Context, o *Order) error {
	c := cloneOrder(*o)
	s.mu.Lock()
	defer s.mu.Unlock()
	s.orders[o.ID] = &c
	return nil
}

func (s *MemoryStore) Get(ctx context.Context, id string) (*Order, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	o, ok := s.orders[id]
	if !ok {
		return nil, ErrNotFound
	}
	c := cloneOrder(*o)
	return &c, nil
}

func (s *MemoryStore) ListByOwner(ctx context.Context, ownerID string) ([]Order, error) {
	return s.list(func(o *Order) bool { return o.OwnerID == ownerID }), nil
}

func (s *MemoryStore) ListAll(ctx context.Context) ([]Order, error) {
	return s.list(func(*Order) bool { return true }), nil
}

func (s *MemoryStore) UpdateStatus(ctx context.Context, id string, next Status, policy TransitionPolicy, at time.Time) (*Order, Status, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.orders[id]
	if !ok {
		return nil, "", ErrNotFound
	}
	prev := o.Status
	if !policy.Allow(prev, next) {
		return nil, prev, ErrInvalidTransition
	}
	o.Status = next
	o.UpdatedAt = at
	c := cloneOrder(*o)
	return &c, prev, nil
}

// Count is used by tests to check that failed attempts store nothing.
func (s *MemoryStore) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.orders)
}

func (s *MemoryStore) list(keep func(*Order) bool) []Order {
	s.mu.RLock()
	out := make([]Order, 0, len(s.orders))
	for _, o := range s.orders {
		if keep(o) {
			out = append(out, cloneOrder(*o))
		}
	}
	s.mu.RUnlock()
	sortNewestFirst(out)
	return out
}

func sortNewestFirst(os []Order) {
	sort.Slice(os, func(i, j int) bool {
		if !os[i].CreatedAt.Equal(os[j].CreatedAt) {
			return os[i].CreatedAt.After(os[j].CreatedAt)
		}
		return os[i].ID > os[j].ID
	})
}
