package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"
	_ "modernc.org/sqlite"

	"aiemployee/rulekit/pkg/rules"
)

const (
	// DriverCGO selects github.com/mattn/go-sqlite3.
	DriverCGO = "sqlite3"

	// DriverPure selects modernc.org/sqlite, which needs no C toolchain.
	DriverPure = "sqlite"
)

// SQLiteConfig contains configuration for the SQLite rule store.
type SQLiteConfig struct {
	// Driver is the database/sql driver name: "sqlite3" or "sqlite".
	// Default: "sqlite3"
	Driver string

	// Path is the database file path, or ":memory:".
	Path string

	// MaxOpenConns is the maximum number of open connections to the database.
	// Default: 10 (forced to 1 for ":memory:")
	MaxOpenConns int

	// MaxIdleConns is the maximum number of idle connections.
	// Default: 5
	MaxIdleConns int

	// WALMode enables Write-Ahead Logging mode for better concurrency.
	// Default: true
	WALMode bool

	// BusyTimeout is the duration to wait when the database is locked.
	// Default: 5 seconds
	BusyTimeout time.Duration
}

// DefaultSQLiteConfig returns the default SQLite configuration.
func DefaultSQLiteConfig() *SQLiteConfig {
	return &SQLiteConfig{
		Driver:       DriverCGO,
		Path:         "data/rules.db",
		MaxOpenConns: 10,
		MaxIdleConns: 5,
		WALMode:      true,
		BusyTimeout:  5 * time.Second,
	}
}

// DSN builds the driver-specific data source name. Pragmas are passed on the
// DSN so every pooled connection gets them.
func (c *SQLiteConfig) DSN() string {
	ms := c.BusyTimeout.Milliseconds()
	wal := c.WALMode && c.Path != ":memory:"

	var params []string
	switch c.Driver {
	case DriverPure:
		params = append(params, fmt.Sprintf("_pragma=busy_timeout(%d)", ms))
		if wal {
			params = append(params, "_pragma=journal_mode(WAL)")
		}
	default:
		params = append(params, fmt.Sprintf("_busy_timeout=%d", ms))
		if wal {
			params = append(params, "_journal_mode=WAL")
		}
	}
	return c.Path + "?" + strings.Join(params, "&")
}

// SQLiteStore implements Store using SQLite. Either the cgo driver or the
// pure Go driver can back it; both are registered.
type SQLiteStore struct {
	db     *sql.DB
	config *SQLiteConfig
	mu     sync.Mutex
	logger *slog.Logger
	now    func() time.Time
}

// NewSQLiteStore opens the database and initializes the schema.
func NewSQLiteStore(config *SQLiteConfig, logger *slog.Logger) (*SQLiteStore, error) {
	if config == nil {
		config = DefaultSQLiteConfig()
	}
	if config.Driver == "" {
		config.Driver = DriverCGO
	}
	if config.Driver != DriverCGO && config.Driver != DriverPure {
		return nil, NewStorageError("sqlite", "open", fmt.Errorf("unknown driver %q", config.Driver))
	}
	if config.Path == "" {
		return nil, NewStorageError("sqlite", "open", errors.New("path cannot be empty"))
	}
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "store.sqlite")

	db, err := sql.Open(config.Driver, config.DSN())
	if err != nil {
		return nil, NewStorageError("sqlite", "open", err)
	}

	if config.Path == ":memory:" {
		db.SetMaxOpenConns(1)
	} else if config.MaxOpenConns > 0 {
		db.SetMaxOpenConns(config.MaxOpenConns)
	}
	if config.MaxIdleConns > 0 {
		db.SetMaxIdleConns(config.MaxIdleConns)
	}

	s := &SQLiteStore{
		db:     db,
		config: config,
		logger: logger,
		now:    time.Now,
	}

	if err := s.initialize(); err != nil {
		db.Close()
		return nil, err
	}

	logger.Info("SQLite rule store initialized",
		"driver", config.Driver,
		"path", config.Path,
		"wal_mode", config.WALMode,
	)

	return s, nil
}

// initialize creates the schema and checks its version.
func (s *SQLiteStore) initialize() error {
	if _, err := s.db.Exec(Schema); err != nil {
		return NewStorageError("sqlite", "create_schema", err)
	}

	if _, err := s.db.Exec(InsertSchemaVersion, SchemaVersion); err != nil {
		return NewStorageError("sqlite", "insert_schema_version", err)
	}

	var version int
	err := s.db.QueryRow(GetSchemaVersion).Scan(&version)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return NewStorageError("sqlite", "get_schema_version", err)
	}
	if version != SchemaVersion {
		return NewStorageError("sqlite", "schema_version_mismatch",
			fmt.Errorf("expected schema version %d, got %d", SchemaVersion, version))
	}

	s.logger.Debug("schema version verified", "version", version)
	return nil
}

// Add inserts a new rule.
func (s *SQLiteStore) Add(ctx context.Context, rule *rules.Rule) error {
	if err := checkRule(rule); err != nil {
		return NewStorageError("sqlite", "add", err)
	}

	row, err := encodeRule(rule)
	if err != nil {
		return NewStorageError("sqlite", "add", err)
	}
	now := s.now().UTC()
	if rule.CreatedAt.IsZero() {
		row.createdAt = now.UnixNano()
	}
	row.updatedAt = now.UnixNano()

	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return NewStorageError("sqlite", "add", err)
	}
	defer tx.Rollback()

	var count int
	if err := tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM rules WHERE id = ?`, rule.ID).Scan(&count); err != nil {
		return NewStorageError("sqlite", "add", err)
	}
	if count > 0 {
		return ErrRuleExists
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO rules (`+ruleColumns+`, priority_rank)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		row.id, row.name, row.description, row.category, row.priority,
		row.conditions, row.actions, row.exceptions, row.enabled,
		row.createdAt, row.updatedAt, row.rank,
	)
	if err != nil {
		return NewStorageError("sqlite", "add", err)
	}

	if err := tx.Commit(); err != nil {
		return NewStorageError("sqlite", "add", err)
	}
	return nil
}

// Get returns the rule with the given ID.
func (s *SQLiteStore) Get(ctx context.Context, id string) (*rules.Rule, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+ruleColumns+` FROM rules WHERE id = ?`, id)
	rule, err := scanRule(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrRuleNotFound
	}
	if err != nil {
		return nil, NewStorageError("sqlite", "get", err)
	}
	return rule, nil
}

// Update replaces an existing rule, keeping its creation time.
func (s *SQLiteStore) Update(ctx context.Context, rule *rules.Rule) error {
	if err := checkRule(rule); err != nil {
		return NewStorageError("sqlite", "update", err)
	}

	row, err := encodeRule(rule)
	if err != nil {
		return NewStorageError("sqlite", "update", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	result, err := s.db.ExecContext(ctx, `
		UPDATE rules SET
			name = ?, description = ?, category = ?, priority = ?, priority_rank = ?,
			conditions = ?, actions = ?, exceptions = ?, enabled = ?, updated_at = ?
		WHERE id = ?`,
		row.name, row.description, row.category, row.priority, row.rank,
		row.conditions, row.actions, row.exceptions, row.enabled, s.now().UTC().UnixNano(),
		row.id,
	)
	if err != nil {
		return NewStorageError("sqlite", "update", err)
	}

	n, err := result.RowsAffected()
	if err != nil {
		return NewStorageError("sqlite", "update", err)
	}
	if n == 0 {
		return ErrRuleNotFound
	}
	return nil
}

// Delete removes a rule.
func (s *SQLiteStore) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	result, err := s.db.ExecContext(ctx, `DELETE FROM rules WHERE id = ?`, id)
	if err != nil {
		return NewStorageError("sqlite", "delete", err)
	}

	n, err := result.RowsAffected()
	if err != nil {
		return NewStorageError("sqlite", "delete", err)
	}
	if n == 0 {
		return ErrRuleNotFound
	}
	return nil
}

// List returns rules matching filter in priority order.
func (s *SQLiteStore) List(ctx context.Context, filter Filter) ([]*rules.Rule, error) {
	var (
		where []string
		args  []any
	)
	if filter.Category != "" {
		where = append(where, "category = ? COLLATE NOCASE")
		args = append(args, filter.Category)
	}
	if filter.Priority != "" {
		where = append(where, "priority = ?")
		args = append(args, string(normalizePriority(filter.Priority)))
	}
	if filter.EnabledOnly {
		where = append(where, "enabled = 1")
	}

	query := `SELECT ` + ruleColumns + ` FROM rules`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY priority_rank DESC, name ASC, id ASC"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, NewStorageError("sqlite", "list", err)
	}
	defer rows.Close()

	out := []*rules.Rule{}
	for rows.Next() {
		rule, err := scanRule(rows)
		if err != nil {
			return nil, NewStorageError("sqlite", "scan", err)
		}
		out = append(out, rule)
	}
	if err := rows.Err(); err != nil {
		return nil, NewStorageError("sqlite", "list", err)
	}

	return out, nil
}

// Close closes the database.
func (s *SQLiteStore) Close() error {
	s.logger.Debug("closing SQLite rule store")
	return s.db.Close()
}

// ruleRow is the column form of a rule.
type ruleRow struct {
	id, name, description, category, priority string
	conditions, actions, exceptions             string
	enabled                                     int
	rank                                        int
	createdAt, updatedAt                        int64
}

func encodeRule(rule *rules.Rule) (*ruleRow, error) {
	conditions := rule.Conditions
	if conditions == nil {
		conditions = rules.ConditionSet{}
	}
	conds, err := json.Marshal(conditions)
	if err != nil {
		return nil, fmt.Errorf("encode conditions: %w", err)
	}

	actionList := rule.Actions
	if actionList == nil {
		actionList = []rules.Action{}
	}
	actions, err := json.Marshal(actionList)
	if err != nil {
		return nil, fmt.Errorf("encode actions: %w", err)
	}

	exceptionList := rule.Exceptions
	if exceptionList == nil {
		exceptionList = []rules.Exception{}
	}
	exceptions, err := json.Marshal(exceptionList)
	if err != nil {
		return nil, fmt.Errorf("encode exceptions: %w", err)
	}

	priority := normalizePriority(rule.Priority)
	row := &ruleRow{
		id:          rule.ID,
		name:        rule.Name,
		description: rule.Description,
		category:    rule.Category,
		priority:    string(priority),
		rank:        priority.Rank(),
		conditions:  string(conds),
		actions:     string(actions),
		exceptions:  string(exceptions),
		createdAt:   rule.CreatedAt.UnixNano(),
	}
	if rule.Enabled {
		row.enabled = 1
	}
	return row, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRule(sc scanner) (*rules.Rule, error) {
	var row ruleRow
	err := sc.Scan(
		&row.id, &row.name, &row.description, &row.category, &row.priority,
		&row.conditions, &row.actions, &row.exceptions, &row.enabled,
		&row.createdAt, &row.updatedAt,
	)
	if err != nil {
		return nil, err
	}

	rule := &rules.Rule{
		ID:          row.id,
		Name:        row.name,
		Description: row.description,
		Category:    row.category,
		Priority:    rules.Priority(row.priority),
		Enabled:     row.enabled != 0,
		CreatedAt:   time.Unix(0, row.createdAt).UTC(),
		UpdatedAt:   time.Unix(0, row.updatedAt).UTC(),
	}
	if err := json.Unmarshal([]byte(row.conditions), &rule.Conditions); err != nil {
		return nil, fmt.Errorf("decode conditions of rule %s: %w", row.id, err)
	}
	if err := json.Unmarshal([]byte(row.actions), &rule.Actions); err != nil {
		return nil, fmt.Errorf("decode actions of rule %s: %w", row.id, err)
	}
	if err := json.Unmarshal([]byte(row.exceptions), &rule.Exceptions); err != nil {
		return nil, fmt.Errorf("decode exceptions of rule %s: %w", row.id, err)
	}
	if len(rule.Exceptions) == 0 {
		rule.Exceptions = nil
	}
	return rule, nil
}
