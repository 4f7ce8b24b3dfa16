// Package audit records rule evaluation decisions.
//
// Every consuming skill writes one row per decision: the skill, the subject
// that was evaluated, whether it was allowed and which rules matched. NewRecord
// turns engine results into a Record; a Recorder writes records to a Storage
// backend asynchronously.
//
// Backends live in the storage subpackage (SQLite and in-memory). The
// retention subpackage deletes records older than a configured age, either on
// demand or on a cron schedule.
package audit
