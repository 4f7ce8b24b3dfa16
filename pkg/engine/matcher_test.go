package engine

import (
	"testing"

	"aiemployee/rulekit/pkg/record"
	"aiemployee/rulekit/pkg/rules"
)

func testRecord(t *testing.T) record.Value {
	t.Helper()
	rec, err := record.FromJSON([]byte(`{
		"user": {"role": "Admin", "department": "Finance", "groups": ["ops", "sre"]},
		"action": {"amount": 750, "limit": "1000", "type": "expense", "approved": false},
		"message": {"subject": "URGENT: invoice 4411 overdue", "channel": "email"},
		"empty": null
	}`))
	if err != nil {
		t.Fatalf("FromJSON() error = %v", err)
	}
	return rec
}

func cond(field string, op rules.Operator, value any) rules.Condition {
	return rules.Condition{Field: field, Operator: op, Value: record.FromAny(value)}
}

func TestMatchCondition(t *testing.T) {
	rec := testRecord(t)

	tests := []struct {
		name string
		cond rules.Condition
		want bool
	}{
		// equality
		{"equals case-insensitive", cond("user.role", rules.OperatorEquals, "admin"), true},
		{"equals number", cond("action.amount", rules.OperatorEquals, 750), true},
		{"equals number vs numeric string", cond("action.amount", rules.OperatorEquals, "750"), false},
		{"equals bool", cond("action.approved", rules.OperatorEquals, false), true},
		{"equals null", cond("empty", rules.OperatorEquals, nil), true},
		{"not_equals", cond("user.role", rules.OperatorNotEquals, "user"), true},
		{"not_equals same value", cond("user.role", rules.OperatorNotEquals, "ADMIN"), false},

		// ordering
		{"greater_than", cond("action.amount", rules.OperatorGreaterThan, 500), true},
		{"greater_than equal", cond("action.amount", rules.OperatorGreaterThan, 750), false},
		{"greater_equal", cond("action.amount", rules.OperatorGreaterEqual, 750), true},
		{"less_than numeric string field", cond("action.limit", rules.OperatorLessThan, 2000), true},
		{"less_equal numeric string operand", cond("action.amount", rules.OperatorLessEqual, "750"), true},
		{"ordering non-numeric field", cond("user.role", rules.OperatorGreaterThan, 1), false},
		{"ordering non-numeric operand", cond("action.amount", rules.OperatorLessThan, "many"), false},
		{"ordering bool field", cond("action.approved", rules.OperatorLessThan, 1), false},

		// membership
		{"in", cond("user.department", rules.OperatorIn, []any{"hr", "finance"}), true},
		{"in miss", cond("user.department", rules.OperatorIn, []any{"hr", "legal"}), false},
		{"in numbers", cond("action.amount", rules.OperatorIn, []any{100, 750}), true},
		{"in non-list operand", cond("user.department", rules.OperatorIn, "finance"), false},
		{"not_in", cond("user.department", rules.OperatorNotIn, []any{"hr"}), true},
		{"not_in hit", cond("user.department", rules.OperatorNotIn, []any{"FINANCE"}), false},
		{"not_in non-list operand", cond("user.department", rules.OperatorNotIn, "hr"), false},

		// strings
		{"contains", cond("message.subject", rules.OperatorContains, "invoice"), true},
		{"contains is case-sensitive", cond("message.subject", rules.OperatorContains, "INVOICE"), false},
		{"contains number operand", cond("message.subject", rules.OperatorContains, 4411), true},
		{"contains on list field", cond("user.groups", rules.OperatorContains, "ops"), false},
		{"contains on number field", cond("action.amount", rules.OperatorContains, "75"), false},
		{"starts_with", cond("message.subject", rules.OperatorStartsWith, "URGENT"), true},
		{"ends_with", cond("message.subject", rules.OperatorEndsWith, "overdue"), true},
		{"ends_with list operand", cond("message.subject", rules.OperatorEndsWith, []any{"overdue"}), false},

		// regex
		{"matches_regex", cond("message.subject", rules.OperatorMatchesRegex, `invoice \d+`), true},
		{"matches_regex on number", cond("action.amount", rules.OperatorMatchesRegex, `^7\d\d$`), true},
		{"matches_regex miss", cond("message.channel", rules.OperatorMatchesRegex, `^sms$`), false},
		{"matches_regex invalid pattern", cond("message.subject", rules.OperatorMatchesRegex, `(unclosed`), false},
		{"matches_regex non-string pattern", cond("message.subject", rules.OperatorMatchesRegex, 42), false},

		{"unknown operator", cond("user.role", "approximately", "admin"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := MatchCondition(rec, tt.cond); got != tt.want {
				t.Errorf("MatchCondition(%s %s %v) = %v, want %v",
					tt.cond.Field, tt.cond.Operator, tt.cond.Value, got, tt.want)
			}
		})
	}
}

func TestMatchConditionMissingFieldNeverMatches(t *testing.T) {
	rec := testRecord(t)

	operands := map[rules.Operator]any{
		rules.OperatorIn:           []any{"x"},
		rules.OperatorNotIn:        []any{"x"},
		rules.OperatorGreaterThan:  1,
		rules.OperatorMatchesRegex: ".*",
	}

	for _, op := range rules.Operators {
		value, ok := operands[op]
		if !ok {
			value = "x"
		}
		for _, field := range []string{"user.missing", "action.amount.cents", "user.groups.9", ""} {
			if MatchCondition(rec, cond(field, op, value)) {
				t.Errorf("MatchCondition(%q %s) = true, want false for unresolvable field", field, op)
			}
		}
	}
}

func TestEqualsNotEqualsAreNegations(t *testing.T) {
	rec := testRecord(t)
	fields := []string{"user.role", "action.amount", "action.approved", "user.groups", "empty"}
	operands := []any{"admin", 750, "750", false, nil, []any{"ops", "sre"}}

	for _, f := range fields {
		for _, v := range operands {
			eq := MatchCondition(rec, cond(f, rules.OperatorEquals, v))
			ne := MatchCondition(rec, cond(f, rules.OperatorNotEquals, v))
			if eq == ne {
				t.Errorf("%s vs %v: equals = %v, not_equals = %v", f, v, eq, ne)
			}
		}
	}
}

func TestMatchConditionSet(t *testing.T) {
	rec := testRecord(t)
	yes := cond("user.role", rules.OperatorEquals, "admin")
	no := cond("user.role", rules.OperatorEquals, "guest")

	join := func(conds ...any) rules.ConditionSet {
		var set rules.ConditionSet
		for _, c := range conds {
			switch v := c.(type) {
			case rules.Condition:
				set = append(set, v)
			case rules.Logic:
				set[len(set)-1].Logic = v
			}
		}
		return set
	}

	tests := []struct {
		name string
		set  rules.ConditionSet
		want bool
	}{
		{"empty set matches", nil, true},
		{"single true", join(yes), true},
		{"single false", join(no), false},
		{"default logic is AND", join(yes, no), false},
		{"AND", join(yes, rules.LogicAnd, yes), true},
		{"OR", join(no, rules.LogicOr, yes), true},
		{"lower-case or", join(no, rules.Logic("or"), yes), true},
		// (yes OR no) AND no: left to right, no precedence.
		{"no precedence", join(yes, rules.LogicOr, no, rules.LogicAnd, no), false},
		// (no AND yes) OR yes
		{"false AND then OR recovers", join(no, rules.LogicAnd, yes, rules.LogicOr, yes), true},
		{"logic on last condition ignored", join(yes, rules.LogicOr), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := MatchConditionSet(rec, tt.set); got != tt.want {
				t.Errorf("MatchConditionSet() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestMatchSetTrace(t *testing.T) {
	rec := testRecord(t)
	set := rules.Where("user.role", rules.OperatorEquals, "admin").
		Or("user.role", rules.OperatorEquals, "guest").
		And("action.amount", rules.OperatorGreaterThan, 1000)

	var trace []ConditionTrace
	got := NewMatcher(0).matchSet(rec, set, &trace)
	if got {
		t.Fatal("matchSet() = true, want false")
	}
	if len(trace) != 3 {
		t.Fatalf("trace has %d steps, want 3", len(trace))
	}
	if !trace[1].Skipped || !trace[1].Result {
		t.Errorf("step 1 = %+v, want skipped with running result true", trace[1])
	}
	if trace[2].Skipped || trace[2].Result {
		t.Errorf("step 2 = %+v, want evaluated with result false", trace[2])
	}
}

func TestRegexCache(t *testing.T) {
	c := newRegexCache(2)

	if _, ok := c.get(`a+`); !ok {
		t.Fatal("get(a+) failed")
	}
	if _, ok := c.get(`(`); ok {
		t.Fatal("get(() should fail")
	}
	if c.len() != 2 {
		t.Errorf("len = %d, want 2", c.len())
	}

	// Reaching the limit resets the cache.
	if _, ok := c.get(`b+`); !ok {
		t.Fatal("get(b+) failed")
	}
	if c.len() != 1 {
		t.Errorf("len after reset = %d, want 1", c.len())
	}
}
