package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"aiemployee/rulekit/pkg/audit"
	"aiemployee/rulekit/pkg/store"
)

// DefaultQueryLimit caps Query results when the query sets no limit.
const DefaultQueryLimit = 100

// DefaultSQLiteConfig returns the default audit database configuration. It
// shares the connection settings of the rule store.
func DefaultSQLiteConfig() *store.SQLiteConfig {
	config := store.DefaultSQLiteConfig()
	config.Path = "data/audit.db"
	return config
}

// SQLiteStorage implements audit.Storage using SQLite.
type SQLiteStorage struct {
	db     *sql.DB
	config *store.SQLiteConfig
	logger *slog.Logger
}

// NewSQLiteStorage opens the audit database and initializes the schema.
func NewSQLiteStorage(config *store.SQLiteConfig, logger *slog.Logger) (*SQLiteStorage, error) {
	if config == nil {
		config = DefaultSQLiteConfig()
	}
	if config.Driver == "" {
		config.Driver = store.DriverCGO
	}
	if config.Path == "" {
		return nil, audit.NewStorageError("sqlite", "open", errors.New("path cannot be empty"))
	}
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "audit.storage.sqlite")

	db, err := sql.Open(config.Driver, config.DSN())
	if err != nil {
		return nil, audit.NewStorageError("sqlite", "open", err)
	}

	if config.Path == ":memory:" {
		db.SetMaxOpenConns(1)
	} else if config.MaxOpenConns > 0 {
		db.SetMaxOpenConns(config.MaxOpenConns)
	}
	if config.MaxIdleConns > 0 {
		db.SetMaxIdleConns(config.MaxIdleConns)
	}

	s := &SQLiteStorage{
		db:     db,
		config: config,
		logger: logger,
	}

	if err := s.initialize(); err != nil {
		db.Close()
		return nil, err
	}

	logger.Info("audit storage initialized",
		"driver", config.Driver,
		"path", config.Path,
	)
	return s, nil
}

func (s *SQLiteStorage) initialize() error {
	if _, err := s.db.Exec(Schema); err != nil {
		return audit.NewStorageError("sqlite", "create_schema", err)
	}
	if _, err := s.db.Exec(InsertSchemaVersion, SchemaVersion); err != nil {
		return audit.NewStorageError("sqlite", "insert_schema_version", err)
	}

	var version int
	err := s.db.QueryRow(GetSchemaVersion).Scan(&version)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return audit.NewStorageError("sqlite", "get_schema_version", err)
	}
	if version != SchemaVersion {
		return audit.NewStorageError("sqlite", "schema_version_mismatch",
			fmt.Errorf("expected schema version %d, got %d", SchemaVersion, version))
	}
	return nil
}

// Store persists an audit record.
func (s *SQLiteStorage) Store(ctx context.Context, record *audit.Record) error {
	matched, err := json.Marshal(record.MatchedRules)
	if err != nil {
		return audit.NewStorageError("sqlite", "store", err)
	}
	actions, err := json.Marshal(record.Actions)
	if err != nil {
		return audit.NewStorageError("sqlite", "store", err)
	}

	var metadata any
	if len(record.Metadata) > 0 {
		data, err := json.Marshal(record.Metadata)
		if err != nil {
			return audit.NewStorageError("sqlite", "store", err)
		}
		metadata = string(data)
	}

	_, err = s.db.ExecContext(ctx,
		"INSERT INTO audit_records ("+recordColumns+") VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)",
		record.ID, record.Skill, record.Subject,
		boolToInt(record.Allowed), record.Evaluated, string(matched), string(actions),
		record.Role, record.Scope,
		int64(record.Duration), record.Timestamp.UnixNano(), metadata,
	)
	if err != nil {
		return audit.NewStorageError("sqlite", "store", err)
	}
	return nil
}

// Query returns the records matching query, newest first. Without a limit at
// most DefaultQueryLimit records are returned.
func (s *SQLiteStorage) Query(ctx context.Context, query *audit.Query) ([]*audit.Record, error) {
	where, args := buildWhereClause(query)

	sqlQuery := "SELECT " + recordColumns + " FROM audit_records"
	if where != "" {
		sqlQuery += " WHERE " + where
	}
	sqlQuery += " ORDER BY timestamp DESC, id"

	limit := DefaultQueryLimit
	offset := 0
	if query != nil {
		if query.Limit > 0 {
			limit = query.Limit
		}
		offset = query.Offset
	}
	sqlQuery += fmt.Sprintf(" LIMIT %d", limit)
	if offset > 0 {
		sqlQuery += fmt.Sprintf(" OFFSET %d", offset)
	}

	rows, err := s.db.QueryContext(ctx, sqlQuery, args...)
	if err != nil {
		return nil, audit.NewStorageError("sqlite", "query", err)
	}
	defer rows.Close()

	records := []*audit.Record{}
	for rows.Next() {
		record, err := scanRecord(rows)
		if err != nil {
			return nil, audit.NewStorageError("sqlite", "scan", err)
		}
		records = append(records, record)
	}
	if err := rows.Err(); err != nil {
		return nil, audit.NewStorageError("sqlite", "query", err)
	}
	return records, nil
}

// Count returns the number of records matching query.
func (s *SQLiteStorage) Count(ctx context.Context, query *audit.Query) (int64, error) {
	where, args := buildWhereClause(query)

	sqlQuery := "SELECT COUNT(*) FROM audit_records"
	if where != "" {
		sqlQuery += " WHERE " + where
	}

	var count int64
	if err := s.db.QueryRowContext(ctx, sqlQuery, args...).Scan(&count); err != nil {
		return 0, audit.NewStorageError("sqlite", "count", err)
	}
	return count, nil
}

// Delete removes the records matching query.
func (s *SQLiteStorage) Delete(ctx context.Context, query *audit.Query) (int64, error) {
	where, args := buildWhereClause(query)

	sqlQuery := "DELETE FROM audit_records"
	if where != "" {
		sqlQuery += " WHERE " + where
	}

	result, err := s.db.ExecContext(ctx, sqlQuery, args...)
	if err != nil {
		return 0, audit.NewStorageError("sqlite", "delete", err)
	}
	count, err := result.RowsAffected()
	if err != nil {
		return 0, audit.NewStorageError("sqlite", "delete", err)
	}
	return count, nil
}

// Close closes the database.
func (s *SQLiteStorage) Close() error {
	if err := s.db.Close(); err != nil {
		return audit.NewStorageError("sqlite", "close", err)
	}
	s.logger.Info("audit storage closed")
	return nil
}

// buildWhereClause returns the WHERE clause (without the keyword) and its
// arguments.
func buildWhereClause(query *audit.Query) (string, []any) {
	if query == nil {
		return "", nil
	}

	var conditions []string
	var args []any

	if query.StartTime != nil {
		conditions = append(conditions, "timestamp >= ?")
		args = append(args, query.StartTime.UnixNano())
	}
	if query.EndTime != nil {
		conditions = append(conditions, "timestamp <= ?")
		args = append(args, query.EndTime.UnixNano())
	}
	if query.Skill != "" {
		conditions = append(conditions, "skill = ?")
		args = append(args, query.Skill)
	}
	if query.Subject != "" {
		conditions = append(conditions, "subject = ?")
		args = append(args, query.Subject)
	}
	if query.Allowed != nil {
		conditions = append(conditions, "allowed = ?")
		args = append(args, boolToInt(*query.Allowed))
	}
	if query.RuleID != "" {
		// Matches the exact encoding json.Marshal produces for MatchedRule.
		id, _ := json.Marshal(query.RuleID)
		conditions = append(conditions, "instr(matched_rules, ?) > 0")
		args = append(args, `"rule_id":`+string(id))
	}

	return strings.Join(conditions, " AND "), args
}

func scanRecord(rows *sql.Rows) (*audit.Record, error) {
	var (
		record                audit.Record
		allowed               int
		matched, actions      string
		role, scope, metadata sql.NullString
		durationNs, timestamp int64
	)

	err := rows.Scan(
		&record.ID, &record.Skill, &record.Subject,
		&allowed, &record.Evaluated, &matched, &actions,
		&role, &scope,
		&durationNs, &timestamp, &metadata,
	)
	if err != nil {
		return nil, err
	}

	record.Allowed = allowed != 0
	record.Role = role.String
	record.Scope = scope.String
	record.Duration = time.Duration(durationNs)
	record.Timestamp = time.Unix(0, timestamp).UTC()

	if err := json.Unmarshal([]byte(matched), &record.MatchedRules); err != nil {
		return nil, fmt.Errorf("failed to decode matched rules of %s: %w", record.ID, err)
	}
	if err := json.Unmarshal([]byte(actions), &record.Actions); err != nil {
		return nil, fmt.Errorf("failed to decode actions of %s: %w", record.ID, err)
	}
	if metadata.Valid && metadata.String != "" {
		if err := json.Unmarshal([]byte(metadata.String), &record.Metadata); err != nil {
			return nil, fmt.Errorf("failed to decode metadata of %s: %w", record.ID, err)
		}
	}
	return &record, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
