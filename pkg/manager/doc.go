// Package manager combines a rule store with the evaluation engine.
//
// The manager exposes the rule management surface (AddRule, GetRule,
// UpdateRule, DeleteRule, ListRules) and evaluates records against the
// enabled rules of its store. Evaluation reads an immutable snapshot sorted
// by priority; every successful mutation rebuilds and atomically publishes a
// new snapshot, so evaluations never take a lock.
//
// Rules can also be synchronized from an external source, such as the YAML
// files loaded by package source, with Sync.
//
// Spans are emitted through the global OpenTelemetry tracer provider unless
// WithTracer is given.
package manager
