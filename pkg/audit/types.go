package audit

import (
	"context"
	"time"
)

// Record is the audit trail of one rule evaluation: which skill asked, about
// what, which rules matched and what was decided.
type Record struct {
	// Identity
	ID      string `json:"id"`      // UUID v4
	Skill   string `json:"skill"`   // Consuming skill, e.g. "policy-enforcer"
	Subject string `json:"subject"` // What was evaluated (action id, request id, ...)

	// Decision
	Allowed      bool          `json:"allowed"`
	Evaluated    int           `json:"evaluated"`     // Rules that produced a result
	MatchedRules []MatchedRule `json:"matched_rules"` // Rules that matched, in evaluation order
	Actions      []string      `json:"actions"`       // Distinct triggered action types

	// Caller context
	Role  string `json:"role,omitempty"`
	Scope string `json:"scope,omitempty"`

	Duration  time.Duration     `json:"duration"`
	Timestamp time.Time         `json:"timestamp"`
	Metadata  map[string]string `json:"metadata,omitempty"`
}

// MatchedRule captures a rule that matched during evaluation.
type MatchedRule struct {
	RuleID   string   `json:"rule_id"`
	RuleName string   `json:"rule_name"`
	Priority string   `json:"priority"`
	Actions  []string `json:"actions"`
	Reason   string   `json:"reason,omitempty"`
}

// Blocked reports whether the evaluation was denied.
func (r *Record) Blocked() bool {
	return !r.Allowed
}

// Clone returns a deep copy of the record.
func (r *Record) Clone() *Record {
	c := *r
	if r.MatchedRules != nil {
		c.MatchedRules = make([]MatchedRule, len(r.MatchedRules))
		for i, m := range r.MatchedRules {
			m.Actions = append([]string(nil), m.Actions...)
			c.MatchedRules[i] = m
		}
	}
	c.Actions = append([]string(nil), r.Actions...)
	if r.Metadata != nil {
		c.Metadata = make(map[string]string, len(r.Metadata))
		for k, v := range r.Metadata {
			c.Metadata[k] = v
		}
	}
	return &c
}

// Query defines filter parameters for audit records. Zero fields match
// everything.
type Query struct {
	// Time range, both inclusive.
	StartTime *time.Time `json:"start_time,omitempty"`
	EndTime   *time.Time `json:"end_time,omitempty"`

	Skill   string `json:"skill,omitempty"`
	Subject string `json:"subject,omitempty"`
	RuleID  string `json:"rule_id,omitempty"` // Records where this rule matched
	Allowed *bool  `json:"allowed,omitempty"`

	// Pagination. Results are newest first.
	Limit  int `json:"limit,omitempty"`
	Offset int `json:"offset,omitempty"`
}

// Matches reports whether record passes the query filters. Pagination is
// not considered.
func (q *Query) Matches(record *Record) bool {
	if q == nil {
		return true
	}
	if q.StartTime != nil && record.Timestamp.Before(*q.StartTime) {
		return false
	}
	if q.EndTime != nil && record.Timestamp.After(*q.EndTime) {
		return false
	}
	if q.Skill != "" && record.Skill != q.Skill {
		return false
	}
	if q.Subject != "" && record.Subject != q.Subject {
		return false
	}
	if q.Allowed != nil && record.Allowed != *q.Allowed {
		return false
	}
	if q.RuleID != "" {
		found := false
		for _, m := range record.MatchedRules {
			if m.RuleID == q.RuleID {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}

// Storage defines the interface for audit storage backends.
// Implementations must be safe for concurrent use.
type Storage interface {
	// Store persists an audit record.
	Store(ctx context.Context, record *Record) error

	// Query returns the records matching query, newest first.
	Query(ctx context.Context, query *Query) ([]*Record, error)

	// Count returns the number of records matching query, ignoring
	// pagination.
	Count(ctx context.Context, query *Query) (int64, error)

	// Delete removes the records matching query and returns how many were
	// removed. Used for retention.
	Delete(ctx context.Context, query *Query) (int64, error)

	// Close releases any resources held by the storage backend.
	Close() error
}
