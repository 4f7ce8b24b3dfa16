package rules

import (
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"gopkg.in/yaml.v3"
)

func TestValidate(t *testing.T) {
	valid := func() *Rule {
		return &Rule{
			ID:         "r1",
			Name:       "large expense",
			Priority:   PriorityHigh,
			Conditions: Where("expense.amount", OperatorGreaterThan, 500),
			Actions:    []Action{{Type: ActionReview}},
			Enabled:    true,
		}
	}

	tests := []struct {
		name    string
		mutate  func(r *Rule)
		wantErr string
	}{
		{name: "valid rule", mutate: func(r *Rule) {}},
		{name: "empty conditions are valid", mutate: func(r *Rule) { r.Conditions = nil }},
		{name: "missing id", mutate: func(r *Rule) { r.ID = "" }, wantErr: "missing required field 'id'"},
		{name: "missing name", mutate: func(r *Rule) { r.Name = " " }, wantErr: "missing required field 'name'"},
		{name: "unknown priority", mutate: func(r *Rule) { r.Priority = "urgent" }, wantErr: "unknown priority"},
		{
			name:    "unknown operator",
			mutate:  func(r *Rule) { r.Conditions[0].Operator = "approximately" },
			wantErr: `unknown operator "approximately"`,
		},
		{
			name:    "missing field",
			mutate:  func(r *Rule) { r.Conditions[0].Field = "" },
			wantErr: "missing field path",
		},
		{
			name:    "malformed field",
			mutate:  func(r *Rule) { r.Conditions[0].Field = "expense..amount" },
			wantErr: "malformed field path",
		},
		{
			name:    "ordering needs number",
			mutate:  func(r *Rule) { r.Conditions = Where("expense.amount", OperatorLessThan, "lots") },
			wantErr: "needs a numeric value",
		},
		{
			name:    "in needs list",
			mutate:  func(r *Rule) { r.Conditions = Where("user.role", OperatorIn, "admin") },
			wantErr: "needs a list value",
		},
		{
			name:    "bad regex",
			mutate:  func(r *Rule) { r.Conditions = Where("text", OperatorMatchesRegex, "[oops") },
			wantErr: "invalid regex pattern",
		},
		{
			name:    "bad logic",
			mutate:  func(r *Rule) { r.Conditions[0].Logic = "XOR" },
			wantErr: "unknown logic",
		},
		{
			name:    "unknown action",
			mutate:  func(r *Rule) { r.Actions = []Action{{Type: "explode"}} },
			wantErr: `unknown action type "explode"`,
		},
		{
			name:    "empty exception",
			mutate:  func(r *Rule) { r.Exceptions = []Exception{{}} },
			wantErr: "needs a role or a scope",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := valid()
			tt.mutate(r)

			err := Validate(r)
			if tt.wantErr == "" {
				if err != nil {
					t.Fatalf("Validate() error = %v, want nil", err)
				}
				return
			}

			var verr *ValidationError
			if !errors.As(err, &verr) {
				t.Fatalf("Validate() error = %v, want *ValidationError", err)
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Validate() error = %q, want substring %q", err, tt.wantErr)
			}
		})
	}
}

func TestConditionSetBuilders(t *testing.T) {
	cs := Where("a", OperatorEquals, 1).Or("b", OperatorEquals, 2).And("c", OperatorEquals, 3)

	if len(cs) != 3 {
		t.Fatalf("len = %d, want 3", len(cs))
	}
	if cs[0].Logic != LogicOr || cs[1].Logic != LogicAnd || cs[2].Logic != "" {
		t.Errorf("logic = %q %q %q, want OR AND \"\"", cs[0].Logic, cs[1].Logic, cs[2].Logic)
	}

	base := Where("a", OperatorEquals, 1)
	_ = base.Or("b", OperatorEquals, 2)
	if base[0].Logic != "" {
		t.Error("builder must not modify the receiver")
	}
}

func TestExceptionMatches(t *testing.T) {
	tests := []struct {
		name   string
		exc    Exception
		caller Caller
		want   bool
	}{
		{"role match is case-insensitive", Exception{Role: "Admin"}, Caller{Role: "admin"}, true},
		{"role mismatch", Exception{Role: "admin"}, Caller{Role: "user"}, false},
		{"scope match", Exception{Scope: "internal"}, Caller{Scope: "internal"}, true},
		{"both required", Exception{Role: "admin", Scope: "internal"}, Caller{Role: "admin"}, false},
		{"both satisfied", Exception{Role: "admin", Scope: "internal"}, Caller{Role: "admin", Scope: "internal"}, true},
		{"empty exception never matches", Exception{}, Caller{}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.exc.Matches(tt.caller); got != tt.want {
				t.Errorf("Matches() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestSortByPriority(t *testing.T) {
	list := []*Rule{
		{ID: "3", Name: "b", Priority: PriorityLow},
		{ID: "2", Name: "a", Priority: PriorityCritical},
		{ID: "1", Name: "c", Priority: ""},
		{ID: "4", Name: "a", Priority: PriorityHigh},
		{ID: "0", Name: "a", Priority: PriorityCritical},
	}

	SortByPriority(list)

	var got []string
	for _, r := range list {
		got = append(got, r.ID)
	}
	want := "0,2,4,1,3"
	if strings.Join(got, ",") != want {
		t.Errorf("order = %v, want %s", got, want)
	}
}

func TestRuleDecodingDefaultsEnabled(t *testing.T) {
	doc := `
id: r1
name: admin alert
priority: critical
conditions:
  - field: user.role
    operator: equals
    value: admin
    logic: or
  - field: user.tags
    operator: in
    value: [ops, sre]
actions:
  - type: alert
    parameters:
      channel: "#security"
`
	var r Rule
	if err := yaml.Unmarshal([]byte(doc), &r); err != nil {
		t.Fatalf("yaml.Unmarshal() error = %v", err)
	}
	if !r.Enabled {
		t.Error("rule should default to enabled")
	}
	if r.Conditions[0].Logic.Normalize() != LogicOr {
		t.Errorf("logic = %q, want OR", r.Conditions[0].Logic)
	}
	if n := r.Conditions[1].Value.Len(); n != 2 {
		t.Errorf("in operand len = %d, want 2", n)
	}
	if got := r.Actions[0].StringParam("channel", ""); got != "#security" {
		t.Errorf("channel = %q", got)
	}

	var disabled Rule
	if err := json.Unmarshal([]byte(`{"id":"r2","name":"off","enabled":false}`), &disabled); err != nil {
		t.Fatalf("json.Unmarshal() error = %v", err)
	}
	if disabled.Enabled {
		t.Error("explicit enabled=false must be kept")
	}

	var implicit Rule
	if err := json.Unmarshal([]byte(`{"id":"r3","name":"on"}`), &implicit); err != nil {
		t.Fatalf("json.Unmarshal() error = %v", err)
	}
	if !implicit.Enabled {
		t.Error("JSON rule should default to enabled")
	}
}

func TestCloneIsIndependent(t *testing.T) {
	orig := &Rule{
		ID:         "r1",
		Conditions: Where("a", OperatorEquals, 1),
		Actions:    []Action{{Type: ActionTag, Parameters: map[string]any{"k": "v"}}},
		Exceptions: []Exception{{Role: "admin"}},
	}

	c := orig.Clone()
	c.Conditions[0].Field = "b"
	c.Actions[0].Parameters["k"] = "changed"
	c.Exceptions[0].Role = "user"

	if orig.Conditions[0].Field != "a" || orig.Actions[0].Parameters["k"] != "v" || orig.Exceptions[0].Role != "admin" {
		t.Errorf("Clone() shares state with original: %+v", orig)
	}
}
