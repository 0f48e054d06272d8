// Package memory is an in-process linkstore.Store.
package memory

import (
	"context"
	"sync"

	"github.com/xraph/escrow/linkstore"
)

var _ linkstore.Store = (*Store)(nil)

type Store struct {
	mu      sync.RWMutex
	records map[string]*linkstore.Record
	order   []string
}

func New() *Store {
	return &Store{records: make(map[string]*linkstore.Record)}
}

func (s *Store) Get(_ context.Context, id string) (*linkstore.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	r, ok := s.records[id]
	if !ok {
		return nil, linkstore.ErrNotFound
	}
	cp := *r
	return &cp, nil
}

// List returns records in creation order.
func (s *Store) List(_ context.Context) ([]*linkstore.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*linkstore.Record, 0, len(s.order))
	for _, id := range s.order {
		cp := *s.records[id]
		out = append(out, &cp)
	}
	return out, nil
}

func (s *Store) Create(_ context.Context, r *linkstore.Record) error {
	if err := r.Validate(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.records[r.ID]; exists {
		return linkstore.ErrAlreadyExists
	}
	cp := *r
	s.records[r.ID] = &cp
	s.order = append(s.order, r.ID)
	return nil
}

func (s *Store) Update(_ context.Context, id string, p linkstore.Patch) (*linkstore.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	r, ok := s.records[id]
	if !ok {
		return nil, linkstore.ErrNotFound
	}
	p.Apply(r)
	cp := *r
	return &cp, nil
}
