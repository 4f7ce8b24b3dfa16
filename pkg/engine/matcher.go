package engine

import (
	"aiemployee/rulekit/pkg/record"
	"aiemployee/rulekit/pkg/rules"
)

// defaultMatcher backs the package-level MatchCondition and MatchConditionSet.
var defaultMatcher = NewMatcher(DefaultRegexCacheSize)

// Matcher evaluates conditions against records. It is safe for concurrent
// use.
type Matcher struct {
	regex *regexCache
}

// NewMatcher creates a matcher whose compiled-regex cache holds up to
// cacheSize patterns. A size of zero disables caching.
func NewMatcher(cacheSize int) *Matcher {
	return &Matcher{regex: newRegexCache(cacheSize)}
}

// MatchCondition evaluates a single condition using the shared matcher.
func MatchCondition(rec record.Value, c rules.Condition) bool {
	return defaultMatcher.Match(rec, c)
}

// MatchConditionSet evaluates a condition set using the shared matcher.
func MatchConditionSet(rec record.Value, set rules.ConditionSet) bool {
	return defaultMatcher.MatchSet(rec, set)
}

// Match evaluates a single condition. A field that does not resolve never
// matches, whatever the operator.
func (m *Matcher) Match(rec record.Value, c rules.Condition) bool {
	actual, ok := rec.Lookup(c.Field)
	if !ok {
		return false
	}
	return m.evaluateOperator(c.Operator, actual, c.Value)
}

// MatchSet folds the conditions strictly left to right. The Logic of
// condition i-1 joins the running result with condition i; there is no
// operator precedence. An empty set matches.
func (m *Matcher) MatchSet(rec record.Value, set rules.ConditionSet) bool {
	return m.matchSet(rec, set, nil)
}

// ConditionTrace records one step of a set evaluation. Result is the
// running result after the step; Skipped marks a step decided without
// evaluating its condition.
type ConditionTrace struct {
	Field    string         `json:"field"`
	Operator rules.Operator `json:"operator"`
	Logic    rules.Logic    `json:"logic,omitempty"`
	Result   bool           `json:"result"`
	Skipped  bool           `json:"skipped,omitempty"`
}

func (m *Matcher) matchSet(rec record.Value, set rules.ConditionSet, trace *[]ConditionTrace) bool {
	if len(set) == 0 {
		return true
	}

	result := m.Match(rec, set[0])
	if trace != nil {
		*trace = append(*trace, ConditionTrace{Field: set[0].Field, Operator: set[0].Operator, Result: result})
	}

	for i := 1; i < len(set); i++ {
		logic := set[i-1].Logic.Normalize()
		c := set[i]

		// The step is decided without evaluating c.
		decided := (logic == rules.LogicOr && result) || (logic != rules.LogicOr && !result)
		if !decided {
			result = m.Match(rec, c)
		}

		if trace != nil {
			*trace = append(*trace, ConditionTrace{
				Field:    c.Field,
				Operator: c.Operator,
				Logic:    logic,
				Result:   result,
				Skipped:  decided,
			})
		}
	}

	return result
}
