package rules

import "fmt"

// ActionType tags the effect a matched rule asks the caller to apply.
type ActionType string

const (
	ActionAllow    ActionType = "allow"    // Explicitly allow
	ActionBlock    ActionType = "block"    // Reject the record
	ActionReview   ActionType = "review"   // Hold for manual review
	ActionAlert    ActionType = "alert"    // Raise a notification
	ActionRoute    ActionType = "route"    // Send to a destination
	ActionEscalate ActionType = "escalate" // Escalate to a higher authority
	ActionTag      ActionType = "tag"      // Attach metadata
)

// ActionTypes lists every supported action type.
var ActionTypes = []ActionType{
	ActionAllow, ActionBlock, ActionReview, ActionAlert, ActionRoute, ActionEscalate, ActionTag,
}

// IsValid reports whether t is a supported action type.
func (t ActionType) IsValid() bool {
	for _, known := range ActionTypes {
		if t == known {
			return true
		}
	}
	return false
}

// Action is returned by the engine for the caller to apply. The engine never
// applies actions itself.
type Action struct {
	Type       ActionType     `json:"type" yaml:"type"`
	Parameters map[string]any `json:"parameters,omitempty" yaml:"parameters,omitempty"`
}

// Param returns the parameter value for key, or nil.
func (a Action) Param(key string) any {
	return a.Parameters[key]
}

// StringParam returns the parameter for key rendered as a string.
// Returns def when the parameter is absent.
func (a Action) StringParam(key, def string) string {
	v, ok := a.Parameters[key]
	if !ok || v == nil {
		return def
	}
	if s, ok := v.(string); ok {
		return s
	}
	return fmt.Sprint(v)
}

func (a Action) clone() Action {
	out := Action{Type: a.Type}
	if a.Parameters != nil {
		out.Parameters = make(map[string]any, len(a.Parameters))
		for k, v := range a.Parameters {
			out.Parameters[k] = v
		}
	}
	return out
}
