package rules

import (
	"strings"

	"aiemployee/rulekit/pkg/record"
)

// Operator represents a comparison operator in a condition.
type Operator string

const (
	OperatorEquals       Operator = "equals"
	OperatorNotEquals    Operator = "not_equals"
	OperatorGreaterThan  Operator = "greater_than"
	OperatorGreaterEqual Operator = "greater_equal"
	OperatorLessThan     Operator = "less_than"
	OperatorLessEqual    Operator = "less_equal"
	OperatorIn           Operator = "in"
	OperatorNotIn        Operator = "not_in"
	OperatorContains     Operator = "contains"
	OperatorStartsWith   Operator = "starts_with"
	OperatorEndsWith     Operator = "ends_with"
	OperatorMatchesRegex Operator = "matches_regex"
)

// Operators lists every supported operator.
var Operators = []Operator{
	OperatorEquals, OperatorNotEquals,
	OperatorGreaterThan, OperatorGreaterEqual, OperatorLessThan, OperatorLessEqual,
	OperatorIn, OperatorNotIn,
	OperatorContains, OperatorStartsWith, OperatorEndsWith,
	OperatorMatchesRegex,
}

// IsValid reports whether op is a supported operator.
func (op Operator) IsValid() bool {
	for _, known := range Operators {
		if op == known {
			return true
		}
	}
	return false
}

// IsOrdering reports whether op compares numerically.
func (op Operator) IsOrdering() bool {
	switch op {
	case OperatorGreaterThan, OperatorGreaterEqual, OperatorLessThan, OperatorLessEqual:
		return true
	}
	return false
}

// Logic joins a condition to the one that follows it.
type Logic string

const (
	LogicAnd Logic = "AND"
	LogicOr  Logic = "OR"
)

// Normalize maps the empty value to AND and upper-cases the rest.
func (l Logic) Normalize() Logic {
	if l == "" {
		return LogicAnd
	}
	return Logic(strings.ToUpper(string(l)))
}

// IsValid reports whether l is AND, OR or empty.
func (l Logic) IsValid() bool {
	switch l.Normalize() {
	case LogicAnd, LogicOr:
		return true
	}
	return false
}

// Condition is a single predicate over a dotted field path of a record.
type Condition struct {
	// Field is a dotted path into the record, e.g. "user.department".
	Field string `json:"field" yaml:"field"`

	// Operator is the comparison to apply.
	Operator Operator `json:"operator" yaml:"operator"`

	// Value is the right-hand operand.
	Value record.Value `json:"value" yaml:"value"`

	// Logic combines this condition's result with the next condition's.
	// It is ignored on the last condition of a set.
	Logic Logic `json:"logic,omitempty" yaml:"logic,omitempty"`
}

// ConditionSet is an ordered, left-to-right combined list of conditions.
// An empty set always matches.
type ConditionSet []Condition

// Where starts a condition set with a single condition.
func Where(field string, op Operator, value any) ConditionSet {
	return ConditionSet{{Field: field, Operator: op, Value: record.FromAny(value)}}
}

// And appends a condition joined to the previous one with AND.
func (cs ConditionSet) And(field string, op Operator, value any) ConditionSet {
	return cs.join(LogicAnd, field, op, value)
}

// Or appends a condition joined to the previous one with OR.
func (cs ConditionSet) Or(field string, op Operator, value any) ConditionSet {
	return cs.join(LogicOr, field, op, value)
}

func (cs ConditionSet) join(logic Logic, field string, op Operator, value any) ConditionSet {
	out := make(ConditionSet, len(cs), len(cs)+1)
	copy(out, cs)
	if len(out) > 0 {
		out[len(out)-1].Logic = logic
	}
	return append(out, Condition{Field: field, Operator: op, Value: record.FromAny(value)})
}
