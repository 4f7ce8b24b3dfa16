// Package engine evaluates rules against records.
//
// # Conditions
//
// A condition resolves its dotted field path in the record and compares the
// result with its operand. A path that does not resolve never matches, for
// every operator including not_equals and not_in. String equality uses
// Unicode case folding. Ordering operators coerce numeric strings. Type
// mismatches, unknown operators and invalid regex patterns evaluate to false;
// evaluation never returns an error and never panics.
//
// # Condition sets
//
// A set is folded strictly left to right. The Logic of each condition joins
// the running result with the next condition, without precedence:
//
//	a OR b AND c   evaluates as   (a OR b) AND c
//
// # Orchestration
//
//	eng, _ := engine.New(nil, logger)
//	allowed, results := eng.IsAllowed(rec, ruleList,
//	    engine.WithCaller(rules.Caller{Role: "admin"}),
//	)
//
// Rules are evaluated in the order given. A critical rule that triggers a
// block stops evaluation of the remaining rules.
package engine
