package store

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"aiemployee/rulekit/pkg/rules"
)

var (
	// ErrRuleExists indicates a rule with the same ID is already stored.
	ErrRuleExists = errors.New("rule already exists")

	// ErrRuleNotFound indicates no rule with the given ID is stored.
	ErrRuleNotFound = errors.New("rule not found")

	// ErrClosed indicates the store has been closed.
	ErrClosed = errors.New("store closed")
)

// Store persists rules. Implementations are safe for concurrent use and
// never hand out references to their internal state: rules passed in are
// copied, rules returned are copies.
type Store interface {
	// Add stores a new rule. Returns ErrRuleExists if the ID is taken.
	Add(ctx context.Context, rule *rules.Rule) error

	// Get returns the rule with the given ID, or ErrRuleNotFound.
	Get(ctx context.Context, id string) (*rules.Rule, error)

	// Update replaces an existing rule, or returns ErrRuleNotFound.
	// CreatedAt is preserved from the stored rule.
	Update(ctx context.Context, rule *rules.Rule) error

	// Delete removes a rule, or returns ErrRuleNotFound.
	Delete(ctx context.Context, id string) error

	// List returns the rules matching filter ordered by priority (highest
	// first), then name, then ID.
	List(ctx context.Context, filter Filter) ([]*rules.Rule, error)

	// Close releases resources held by the store.
	Close() error
}

// Filter restricts List results. Zero fields match everything.
type Filter struct {
	// Category matches rules of this category, case-insensitively.
	Category string `json:"category,omitempty"`

	// Priority matches rules of this tier. Rules without a priority belong
	// to the default tier.
	Priority rules.Priority `json:"priority,omitempty"`

	// EnabledOnly drops disabled rules.
	EnabledOnly bool `json:"enabled_only,omitempty"`
}

// Matches reports whether rule passes the filter.
func (f Filter) Matches(rule *rules.Rule) bool {
	if f.EnabledOnly && !rule.Enabled {
		return false
	}
	if f.Category != "" && !strings.EqualFold(f.Category, rule.Category) {
		return false
	}
	if f.Priority != "" && normalizePriority(f.Priority) != normalizePriority(rule.Priority) {
		return false
	}
	return true
}

// StorageError represents an error from a storage backend.
type StorageError struct {
	Backend   string // Storage backend type ("sqlite", "memory")
	Operation string // Operation that failed ("add", "list", ...)
	Cause     error  // Underlying error
}

// Error implements the error interface.
func (e *StorageError) Error() string {
	return fmt.Sprintf("storage error [backend=%s, operation=%s]: %v", e.Backend, e.Operation, e.Cause)
}

// Unwrap returns the underlying cause error.
func (e *StorageError) Unwrap() error {
	return e.Cause
}

// NewStorageError creates a new StorageError.
func NewStorageError(backend, operation string, cause error) *StorageError {
	return &StorageError{
		Backend:   backend,
		Operation: operation,
		Cause:     cause,
	}
}

func normalizePriority(p rules.Priority) rules.Priority {
	if p == "" {
		return rules.PriorityDefault
	}
	return rules.Priority(strings.ToLower(string(p)))
}

func checkRule(rule *rules.Rule) error {
	if rule == nil {
		return errors.New("rule cannot be nil")
	}
	if strings.TrimSpace(rule.ID) == "" {
		return errors.New("rule id cannot be empty")
	}
	return nil
}
