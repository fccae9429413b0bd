package accounts

import (
	"context"
	"sync"
)

type MemoryStore struct {
	mu      sync.RWMutex
	byEmail map[string]User
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{byEmail: make(map[string]User)}
}

func (s *MemoryStore) Create(ctx context.Context, u *User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.byEmail[u.Email]; ok {
		return ErrEmailTaken
	}
	s.byEmail[u.Email] = *u
	return nil
}

func (s *MemoryStore) ByEmail(ctx context.Context, email string) (*User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	u, ok := s.byEmail[email]
	if !ok {
		return nil, ErrUserNotFound
	}
	return &u, nil
}
