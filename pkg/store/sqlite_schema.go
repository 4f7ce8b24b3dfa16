package store

// SchemaVersion is the current database schema version.
const SchemaVersion = 1

// Schema contains the SQL statements to create the rule database schema.
// Conditions, actions and exceptions are stored as JSON documents.
const Schema = `
CREATE TABLE IF NOT EXISTS rules (
    id TEXT PRIMARY KEY,
    name TEXT NOT NULL,
    description TEXT NOT NULL DEFAULT '',
    category TEXT NOT NULL DEFAULT '',
    priority TEXT NOT NULL,
    priority_rank INTEGER NOT NULL,
    conditions TEXT NOT NULL,
    actions TEXT NOT NULL,
    exceptions TEXT NOT NULL,
    enabled INTEGER NOT NULL,

    -- Unix nanoseconds
    created_at INTEGER NOT NULL,
    updated_at INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS schema_version (
    version INTEGER PRIMARY KEY,
    applied_at TIMESTAMP NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_rules_order ON rules(priority_rank DESC, name, id);
CREATE INDEX IF NOT EXISTS idx_rules_category ON rules(category COLLATE NOCASE);
CREATE INDEX IF NOT EXISTS idx_rules_enabled ON rules(enabled);
`

// InsertSchemaVersion inserts the schema version into the schema_version table.
const InsertSchemaVersion = `
INSERT INTO schema_version (version, applied_at)
VALUES (?, datetime('now'))
ON CONFLICT(version) DO NOTHING;
`

// GetSchemaVersion retrieves the current schema version from the database.
const GetSchemaVersion = `
SELECT version FROM schema_version ORDER BY version DESC LIMIT 1;
`

const ruleColumns = `id, name, description, category, priority, conditions, actions, exceptions, enabled, created_at, updated_at`
