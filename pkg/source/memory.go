package source

import (
	"context"
	"sync"

	"aiemployee/rulekit/pkg/rules"
)

// MemorySource serves a fixed set of rules, replaceable with Set.
type MemorySource struct {
	mu    sync.RWMutex
	rules []*rules.Rule
}

// NewMemorySource creates a source serving copies of list.
func NewMemorySource(list ...*rules.Rule) *MemorySource {
	s := &MemorySource{}
	s.Set(list...)
	return s
}

// Set replaces the served rules.
func (s *MemorySource) Set(list ...*rules.Rule) {
	copied := make([]*rules.Rule, len(list))
	for i, r := range list {
		copied[i] = r.Clone()
	}

	s.mu.Lock()
	s.rules = copied
	s.mu.Unlock()
}

// Load returns copies of the served rules.
func (s *MemorySource) Load(ctx context.Context) ([]*rules.Rule, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*rules.Rule, len(s.rules))
	for i, r := range s.rules {
		out[i] = r.Clone()
	}
	return out, nil
}
