package storage

// SchemaVersion is the current audit database schema version.
const SchemaVersion = 1

// Schema creates the audit database schema. Timestamps are unix nanoseconds
// so both SQLite drivers read them back identically.
const Schema = `
CREATE TABLE IF NOT EXISTS audit_records (
    id TEXT PRIMARY KEY,
    skill TEXT NOT NULL,
    subject TEXT NOT NULL,

    allowed INTEGER NOT NULL,
    evaluated INTEGER NOT NULL,
    matched_rules TEXT NOT NULL,
    actions TEXT NOT NULL,

    role TEXT,
    scope TEXT,

    duration_ns INTEGER NOT NULL,
    timestamp INTEGER NOT NULL,
    metadata TEXT
);

CREATE TABLE IF NOT EXISTS schema_version (
    version INTEGER PRIMARY KEY,
    applied_at TIMESTAMP NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_audit_timestamp ON audit_records(timestamp);
CREATE INDEX IF NOT EXISTS idx_audit_skill ON audit_records(skill);
CREATE INDEX IF NOT EXISTS idx_audit_subject ON audit_records(subject);
CREATE INDEX IF NOT EXISTS idx_audit_allowed ON audit_records(allowed);
`

// InsertSchemaVersion records the schema version.
const InsertSchemaVersion = `
INSERT INTO schema_version (version, applied_at)
VALUES (?, datetime('now'))
ON CONFLICT(version) DO NOTHING;
`

// GetSchemaVersion retrieves the current schema version.
const GetSchemaVersion = `
SELECT version FROM schema_version ORDER BY version DESC LIMIT 1;
`

const recordColumns = `id, skill, subject, allowed, evaluated, matched_rules, actions,
	role, scope, duration_ns, timestamp, metadata`
