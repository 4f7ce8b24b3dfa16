// Package skillstest provides helpers for testing skill adapters.
package skillstest

import (
	"context"
	"sync"
	"testing"

	"aiemployee/rulekit/pkg/audit"
	"aiemployee/rulekit/pkg/manager"
	"aiemployee/rulekit/pkg/rules"
	"aiemployee/rulekit/pkg/store"
)

// NewManager returns a manager over an in-memory store holding list.
func NewManager(tb testing.TB, list ...*rules.Rule) *manager.Manager {
	tb.Helper()
	ctx := context.Background()

	m, err := manager.New(ctx, store.NewMemoryStore(), nil, nil, nil)
	if err != nil {
		tb.Fatalf("manager.New() error = %v", err)
	}
	tb.Cleanup(func() { m.Close() })

	for _, r := range list {
		if r.Name == "" {
			r.Name = r.ID
		}
		r.Enabled = true
		if ok, err := m.AddRule(ctx, r); !ok || err != nil {
			tb.Fatalf("AddRule(%s) = %v, %v", r.ID, ok, err)
		}
	}
	return m
}

// Rule is a shorthand for an enabled rule with one action.
func Rule(id string, p rules.Priority, conditions rules.ConditionSet, action rules.ActionType, params map[string]any) *rules.Rule {
	return &rules.Rule{
		ID:         id,
		Name:       id,
		Priority:   p,
		Conditions: conditions,
		Actions:    []rules.Action{{Type: action, Parameters: params}},
		Enabled:    true,
	}
}

// Recorder collects audit entries in memory.
type Recorder struct {
	mu      sync.Mutex
	Entries []audit.Entry
}

// Record implements skills.Recorder.
func (r *Recorder) Record(ctx context.Context, entry audit.Entry) (*audit.Record, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Entries = append(r.Entries, entry)
	return audit.NewRecord(entry), nil
}

// Len returns the number of recorded entries.
func (r *Recorder) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.Entries)
}
