// Package rules defines the rule model shared by every skill: conditions,
// condition sets, rules, actions and exceptions.
//
// A rule is written once, in YAML or JSON, and evaluated by pkg/engine:
//
//	id: large-expense
//	name: Large expense needs review
//	priority: high
//	category: finance
//	conditions:
//	  - field: expense.amount
//	    operator: greater_than
//	    value: 500
//	    logic: AND
//	  - field: expense.category
//	    operator: not_in
//	    value: [travel, training]
//	actions:
//	  - type: review
//	    parameters: {queue: finance}
//	exceptions:
//	  - role: cfo
//
// The logic of a condition joins it to the next one. Conditions are folded
// strictly left to right with no precedence between AND and OR.
package rules
