package engine

import (
	"strings"

	"golang.org/x/text/cases"

	"aiemployee/rulekit/pkg/record"
	"aiemployee/rulekit/pkg/rules"
)

// evaluateOperator compares a resolved field value against a condition
// operand. Type mismatches and unknown operators yield false.
func (m *Matcher) evaluateOperator(op rules.Operator, actual, expected record.Value) bool {
	switch op {
	case rules.OperatorEquals:
		return valuesEqual(actual, expected)

	case rules.OperatorNotEquals:
		return !valuesEqual(actual, expected)

	case rules.OperatorGreaterThan:
		a, b, ok := toNumeric(actual, expected)
		return ok && a > b

	case rules.OperatorGreaterEqual:
		a, b, ok := toNumeric(actual, expected)
		return ok && a >= b

	case rules.OperatorLessThan:
		a, b, ok := toNumeric(actual, expected)
		return ok && a < b

	case rules.OperatorLessEqual:
		a, b, ok := toNumeric(actual, expected)
		return ok && a <= b

	case rules.OperatorIn:
		in, ok := evaluateIn(actual, expected)
		return ok && in

	case rules.OperatorNotIn:
		in, ok := evaluateIn(actual, expected)
		return ok && !in

	case rules.OperatorContains:
		return evaluateString(actual, expected, strings.Contains)

	case rules.OperatorStartsWith:
		return evaluateString(actual, expected, strings.HasPrefix)

	case rules.OperatorEndsWith:
		return evaluateString(actual, expected, strings.HasSuffix)

	case rules.OperatorMatchesRegex:
		return m.evaluateMatches(actual, expected)

	default:
		return false
	}
}

// valuesEqual compares two values. Strings compare under Unicode case
// folding; everything else compares structurally.
func valuesEqual(actual, expected record.Value) bool {
	a, aok := actual.AsString()
	b, bok := expected.AsString()
	if aok && bok {
		return foldEqual(a, b)
	}
	return actual.Equal(expected)
}

// folder is stateless and shared across goroutines.
var folder = cases.Fold()

// foldEqual reports whether a and b are equal under Unicode case folding.
func foldEqual(a, b string) bool {
	if a == b {
		return true
	}
	return folder.String(a) == folder.String(b)
}

// toNumeric coerces both operands for an ordering comparison.
func toNumeric(actual, expected record.Value) (float64, float64, bool) {
	a, ok := actual.ToNumber()
	if !ok {
		return 0, 0, false
	}
	b, ok := expected.ToNumber()
	if !ok {
		return 0, 0, false
	}
	return a, b, true
}

// evaluateIn reports membership of actual in the expected list. The second
// result is false when expected is not a list.
func evaluateIn(actual, expected record.Value) (bool, bool) {
	items, ok := expected.AsList()
	if !ok {
		return false, false
	}
	for _, item := range items {
		if valuesEqual(actual, item) {
			return true, true
		}
	}
	return false, true
}

// evaluateString applies a string predicate. The field must hold a string
// and the operand must be a scalar.
func evaluateString(actual, expected record.Value, pred func(s, substr string) bool) bool {
	s, ok := actual.AsString()
	if !ok {
		return false
	}
	switch expected.Kind() {
	case record.KindString, record.KindNumber, record.KindBool:
		return pred(s, expected.String())
	default:
		return false
	}
}

// evaluateMatches searches for the operand pattern in the stringified field.
func (m *Matcher) evaluateMatches(actual, expected record.Value) bool {
	pattern, ok := expected.AsString()
	if !ok {
		return false
	}
	re, ok := m.regex.get(pattern)
	if !ok {
		return false
	}
	return re.MatchString(actual.String())
}
