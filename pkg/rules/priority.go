package rules

import (
	"sort"
	"strings"
)

// Priority is a rule's severity tier. It orders rules and decides whether a
// block short-circuits evaluation.
type Priority string

const (
	PriorityLow      Priority = "low"
	PriorityMedium   Priority = "medium"
	PriorityHigh     Priority = "high"
	PriorityCritical Priority = "critical"

	// PriorityDefault is used when a rule does not set a priority.
	PriorityDefault = PriorityMedium
)

// Rank returns the numeric tier of p, highest first. Unknown priorities rank
// below low.
func (p Priority) Rank() int {
	switch Priority(strings.ToLower(string(p))) {
	case PriorityCritical:
		return 40
	case PriorityHigh:
		return 30
	case PriorityMedium, "":
		return 20
	case PriorityLow:
		return 10
	default:
		return 0
	}
}

// IsValid reports whether p is a known tier. The empty priority is valid and
// means PriorityDefault.
func (p Priority) IsValid() bool {
	return p.Rank() > 0
}

// IsCritical reports whether p is the highest severity tier.
func (p Priority) IsCritical() bool {
	return p.Rank() == PriorityCritical.Rank()
}

// SortByPriority sorts rules by priority (highest first). Equal priorities
// are ordered by name, then ID, for deterministic ordering.
func SortByPriority(rules []*Rule) {
	sort.SliceStable(rules, func(i, j int) bool {
		ri, rj := rules[i].Priority.Rank(), rules[j].Priority.Rank()
		if ri != rj {
			return ri > rj
		}
		if rules[i].Name != rules[j].Name {
			return rules[i].Name < rules[j].Name
		}
		return rules[i].ID < rules[j].ID
	})
}
