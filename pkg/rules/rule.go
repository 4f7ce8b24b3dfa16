package rules

import (
	"strings"
	"time"
)

// Exception suppresses a rule for callers whose context matches every
// non-empty qualifier. An exception without qualifiers never matches.
type Exception struct {
	Role  string `json:"role,omitempty" yaml:"role,omitempty"`
	Scope string `json:"scope,omitempty" yaml:"scope,omitempty"`
}

// Caller describes who is asking for an evaluation. It is matched against
// rule exceptions.
type Caller struct {
	Role  string `json:"role,omitempty" yaml:"role,omitempty"`
	Scope string `json:"scope,omitempty" yaml:"scope,omitempty"`
}

// Matches reports whether the exception applies to caller. Roles compare
// case-insensitively, scopes exactly.
func (e Exception) Matches(caller Caller) bool {
	if e.Role == "" && e.Scope == "" {
		return false
	}
	if e.Role != "" && !strings.EqualFold(e.Role, caller.Role) {
		return false
	}
	if e.Scope != "" && e.Scope != caller.Scope {
		return false
	}
	return true
}

// Rule is a named, prioritized condition set plus the actions to trigger on
// match and the exceptions that suppress it.
type Rule struct {
	ID          string       `json:"id" yaml:"id"`
	Name        string       `json:"name" yaml:"name"`
	Description string       `json:"description,omitempty" yaml:"description,omitempty"`
	Category    string       `json:"category,omitempty" yaml:"category,omitempty"`
	Priority    Priority     `json:"priority,omitempty" yaml:"priority,omitempty"`
	Conditions  ConditionSet `json:"conditions" yaml:"conditions"`
	Actions     []Action     `json:"actions" yaml:"actions"`
	Enabled     bool         `json:"enabled" yaml:"enabled"`
	Exceptions  []Exception  `json:"exceptions,omitempty" yaml:"exceptions,omitempty"`
	CreatedAt   time.Time    `json:"created_at" yaml:"-"`
	UpdatedAt   time.Time    `json:"updated_at" yaml:"-"`
}

// Reason returns the text attached to results of this rule.
func (r *Rule) Reason() string {
	if r.Description != "" {
		return r.Description
	}
	return r.Name
}

// ExceptionFor returns the first exception matching caller.
func (r *Rule) ExceptionFor(caller Caller) (Exception, bool) {
	for _, exc := range r.Exceptions {
		if exc.Matches(caller) {
			return exc, true
		}
	}
	return Exception{}, false
}

// HasActionType reports whether the rule has at least one action of type t.
func (r *Rule) HasActionType(t ActionType) bool {
	for _, action := range r.Actions {
		if action.Type == t {
			return true
		}
	}
	return false
}

// Clone returns a copy of the rule that can be modified without affecting
// the original. Condition values and nested parameter values are shared.
func (r *Rule) Clone() *Rule {
	if r == nil {
		return nil
	}
	out := *r
	if r.Conditions != nil {
		out.Conditions = make(ConditionSet, len(r.Conditions))
		copy(out.Conditions, r.Conditions)
	}
	if r.Actions != nil {
		out.Actions = make([]Action, len(r.Actions))
		for i, action := range r.Actions {
			out.Actions[i] = action.clone()
		}
	}
	if r.Exceptions != nil {
		out.Exceptions = make([]Exception, len(r.Exceptions))
		copy(out.Exceptions, r.Exceptions)
	}
	return &out
}
