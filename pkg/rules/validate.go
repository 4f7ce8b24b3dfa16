package rules

import (
	"fmt"
	"regexp"
	"strings"

	"aiemployee/rulekit/pkg/record"
)

// ValidationError lists every problem found in a rule.
type ValidationError struct {
	RuleID   string
	Problems []string
}

// Error returns the error message.
func (e *ValidationError) Error() string {
	if len(e.Problems) == 1 {
		return fmt.Sprintf("rule %s: validation error: %s", e.RuleID, e.Problems[0])
	}
	return fmt.Sprintf("rule %s: %d validation errors: %s", e.RuleID, len(e.Problems), strings.Join(e.Problems, "; "))
}

// Validate checks the structure of a rule. Evaluation never calls it: a
// malformed condition simply does not match. Validate exists so that rule
// authors and the management API can reject such rules up front.
func Validate(r *Rule) error {
	if r == nil {
		return &ValidationError{Problems: []string{"rule is nil"}}
	}

	var problems []string
	addf := func(format string, args ...any) {
		problems = append(problems, fmt.Sprintf(format, args...))
	}

	if strings.TrimSpace(r.ID) == "" {
		addf("missing required field 'id'")
	}
	if strings.TrimSpace(r.Name) == "" {
		addf("missing required field 'name'")
	}
	if !r.Priority.IsValid() {
		addf("unknown priority %q (expected low, medium, high or critical)", r.Priority)
	}

	for i, cond := range r.Conditions {
		for _, problem := range validateCondition(cond) {
			addf("condition %d: %s", i, problem)
		}
	}

	for i, action := range r.Actions {
		if !action.Type.IsValid() {
			addf("action %d: unknown action type %q", i, action.Type)
		}
	}

	for i, exc := range r.Exceptions {
		if exc.Role == "" && exc.Scope == "" {
			addf("exception %d: needs a role or a scope", i)
		}
	}

	if len(problems) > 0 {
		return &ValidationError{RuleID: r.ID, Problems: problems}
	}
	return nil
}

func validateCondition(c Condition) []string {
	var problems []string

	if strings.TrimSpace(c.Field) == "" {
		problems = append(problems, "missing field path")
	} else if strings.HasPrefix(c.Field, ".") || strings.HasSuffix(c.Field, ".") || strings.Contains(c.Field, "..") {
		problems = append(problems, fmt.Sprintf("malformed field path %q", c.Field))
	}

	if !c.Logic.IsValid() {
		problems = append(problems, fmt.Sprintf("unknown logic %q (expected AND or OR)", c.Logic))
	}

	if !c.Operator.IsValid() {
		problems = append(problems, fmt.Sprintf("unknown operator %q", c.Operator))
		return problems
	}

	switch {
	case c.Operator.IsOrdering():
		if _, ok := c.Value.ToNumber(); !ok {
			problems = append(problems, fmt.Sprintf("operator %s needs a numeric value, got %s", c.Operator, c.Value.Kind()))
		}

	case c.Operator == OperatorIn || c.Operator == OperatorNotIn:
		if c.Value.Kind() != record.KindList {
			problems = append(problems, fmt.Sprintf("operator %s needs a list value, got %s", c.Operator, c.Value.Kind()))
		}

	case c.Operator == OperatorContains || c.Operator == OperatorStartsWith || c.Operator == OperatorEndsWith:
		if k := c.Value.Kind(); k == record.KindList || k == record.KindMap || k == record.KindNull {
			problems = append(problems, fmt.Sprintf("operator %s needs a scalar value, got %s", c.Operator, k))
		}

	case c.Operator == OperatorMatchesRegex:
		pattern, ok := c.Value.AsString()
		if !ok {
			problems = append(problems, fmt.Sprintf("operator %s needs a string pattern, got %s", c.Operator, c.Value.Kind()))
		} else if _, err := regexp.Compile(pattern); err != nil {
			problems = append(problems, fmt.Sprintf("invalid regex pattern %q: %v", pattern, err))
		}
	}

	return problems
}
