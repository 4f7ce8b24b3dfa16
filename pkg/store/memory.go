package store

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"aiemployee/rulekit/pkg/rules"
)

// MemoryStore keeps rules in an immutable map published through an atomic
// pointer. Readers never block; writers serialize on a mutex, copy the map
// and publish the copy.
type MemoryStore struct {
	snapshot atomic.Pointer[map[string]*rules.Rule]
	mu       sync.Mutex
	closed   atomic.Bool
	now      func() time.Time
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	s := &MemoryStore{now: time.Now}
	empty := map[string]*rules.Rule{}
	s.snapshot.Store(&empty)
	return s
}

// Add stores a copy of rule.
func (s *MemoryStore) Add(ctx context.Context, rule *rules.Rule) error {
	if err := checkRule(rule); err != nil {
		return NewStorageError("memory", "add", err)
	}
	return s.mutate(func(m map[string]*rules.Rule) error {
		if _, ok := m[rule.ID]; ok {
			return ErrRuleExists
		}
		stored := rule.Clone()
		stored.Priority = normalizePriority(stored.Priority)
		now := s.now().UTC()
		if stored.CreatedAt.IsZero() {
			stored.CreatedAt = now
		}
		stored.UpdatedAt = now
		m[rule.ID] = stored
		return nil
	})
}

// Get returns a copy of the stored rule.
func (s *MemoryStore) Get(ctx context.Context, id string) (*rules.Rule, error) {
	if s.closed.Load() {
		return nil, ErrClosed
	}
	rule, ok := (*s.snapshot.Load())[id]
	if !ok {
		return nil, ErrRuleNotFound
	}
	return rule.Clone(), nil
}

// Update replaces a stored rule with a copy of rule.
func (s *MemoryStore) Update(ctx context.Context, rule *rules.Rule) error {
	if err := checkRule(rule); err != nil {
		return NewStorageError("memory", "update", err)
	}
	return s.mutate(func(m map[string]*rules.Rule) error {
		existing, ok := m[rule.ID]
		if !ok {
			return ErrRuleNotFound
		}
		stored := rule.Clone()
		stored.Priority = normalizePriority(stored.Priority)
		stored.CreatedAt = existing.CreatedAt
		stored.UpdatedAt = s.now().UTC()
		m[rule.ID] = stored
		return nil
	})
}

// Delete removes a stored rule.
func (s *MemoryStore) Delete(ctx context.Context, id string) error {
	return s.mutate(func(m map[string]*rules.Rule) error {
		if _, ok := m[id]; !ok {
			return ErrRuleNotFound
		}
		delete(m, id)
		return nil
	})
}

// List returns copies of the rules matching filter.
func (s *MemoryStore) List(ctx context.Context, filter Filter) ([]*rules.Rule, error) {
	if s.closed.Load() {
		return nil, ErrClosed
	}
	current := *s.snapshot.Load()

	out := make([]*rules.Rule, 0, len(current))
	for _, rule := range current {
		if filter.Matches(rule) {
			out = append(out, rule.Clone())
		}
	}
	rules.SortByPriority(out)
	return out, nil
}

// Close marks the store closed. Further calls return ErrClosed.
func (s *MemoryStore) Close() error {
	s.closed.Store(true)
	return nil
}

// mutate applies fn to a private copy of the current map and publishes it
// if fn succeeds.
func (s *MemoryStore) mutate(fn func(m map[string]*rules.Rule) error) error {
	if s.closed.Load() {
		return ErrClosed
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	current := *s.snapshot.Load()
	next := make(map[string]*rules.Rule, len(current)+1)
	for id, rule := range current {
		next[id] = rule
	}

	if err := fn(next); err != nil {
		return err
	}

	s.snapshot.Store(&next)
	return nil
}
