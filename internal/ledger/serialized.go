package ledger

import (
	"context"
	"sync"

	"github.com/Veraticus/tripwallet/internal/model"
)

// Serialized funnels every operation on a Store through one lock, making
// the process the single writer of its ledger. It cannot protect against
// other processes; backends with revisions report those as ErrConflict.
type Serialized struct {
	store Store
	mu    sync.Mutex
}

// NewSerialized wraps store.
func NewSerialized(store Store) *Serialized {
	return &Serialized{store: store}
}

// LoadAll implements Store.
func (s *Serialized) LoadAll(ctx context.Context) ([]model.ExpenseRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.store.LoadAll(ctx)
}

// Append implements Store.
func (s *Serialized) Append(ctx context.Context, record model.ExpenseRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.store.Append(ctx, record)
}

// RemoveLast implements Store.
func (s *Serialized) RemoveLast(ctx context.Context) (model.ExpenseRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.store.RemoveLast(ctx)
}

// Remove implements Store.
func (s *Serialized) Remove(ctx context.Context, id string) (model.ExpenseRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.store.Remove(ctx, id)
}

// Reset implements Store.
func (s *Serialized) Reset(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.store.Reset(ctx)
}
