// Package skills holds what the consuming skills share: a Runner that
// evaluates a record and writes the audit entry, and the Effect view of
// triggered actions that each adapter maps onto its own domain.
//
// Every subpackage follows the same shape. It turns its domain struct into a
// record.Value, runs it through a Runner, and walks Decision.Effects with a
// switch on the action type:
//
//   - policyenforcer: agent actions -> allow/block, violations, alerts
//   - autoapproval: approval requests -> approved/rejected/review/escalated
//   - messagerouter: inbound messages -> destination, tags, escalation
//   - suppression: notifications -> deliver or suppress
//   - businessrules: business events -> tags, alerts, routed tasks
package skills
