package manager

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"aiemployee/rulekit/pkg/engine"
	"aiemployee/rulekit/pkg/record"
	"aiemployee/rulekit/pkg/rules"
	"aiemployee/rulekit/pkg/store"
)

// TracerName is the instrumentation name used for manager spans.
const TracerName = "aiemployee/rulekit/manager"

// Config contains configuration for the rule manager.
type Config struct {
	// StrictValidation rejects rules that fail rules.Validate on add,
	// update and sync.
	// Default: true
	StrictValidation bool

	// GenerateIDs assigns a UUID to rules added without an ID.
	// Default: true
	GenerateIDs bool
}

// DefaultConfig returns the default manager configuration.
func DefaultConfig() *Config {
	return &Config{
		StrictValidation: true,
		GenerateIDs:      true,
	}
}

// RuleSource supplies rules for Sync.
type RuleSource interface {
	Load(ctx context.Context) ([]*rules.Rule, error)
}

// SyncResult summarizes one Sync call.
type SyncResult struct {
	Added    int
	Updated  int
	Rejected int
}

// Manager owns a rule store and evaluates records against its enabled
// rules. Evaluations read an immutable, priority-sorted snapshot that is
// replaced after every mutation, so in-flight evaluations never observe a
// partial update.
type Manager struct {
	store  store.Store
	engine *engine.Engine
	config *Config
	tracer trace.Tracer
	logger *slog.Logger

	// mu serializes mutations and snapshot rebuilds.
	mu       sync.Mutex
	snapshot atomic.Pointer[[]*rules.Rule]
	loadedAt atomic.Pointer[time.Time]
}

// Option customizes a Manager.
type Option func(*Manager)

// WithTracer sets the tracer used for manager spans. Defaults to the
// global OpenTelemetry tracer provider.
func WithTracer(t trace.Tracer) Option {
	return func(m *Manager) {
		m.tracer = t
	}
}

// New creates a manager and loads the initial snapshot from st.
func New(ctx context.Context, st store.Store, eng *engine.Engine, config *Config, logger *slog.Logger, opts ...Option) (*Manager, error) {
	if st == nil {
		return nil, errors.New("store cannot be nil")
	}
	if config == nil {
		config = DefaultConfig()
	}
	if logger == nil {
		logger = slog.Default()
	}
	if eng == nil {
		var err error
		eng, err = engine.New(nil, logger)
		if err != nil {
			return nil, err
		}
	}

	m := &Manager{
		store:  st,
		engine: eng,
		config: config,
		logger: logger.With("component", "manager"),
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.tracer == nil {
		m.tracer = otel.Tracer(TracerName)
	}

	empty := []*rules.Rule{}
	m.snapshot.Store(&empty)

	if err := m.Refresh(ctx); err != nil {
		return nil, fmt.Errorf("failed to load initial rules: %w", err)
	}
	return m, nil
}

// Evaluate evaluates rec against the current snapshot of enabled rules.
func (m *Manager) Evaluate(ctx context.Context, rec record.Value, opts ...engine.EvalOption) []engine.EvaluationResult {
	_, span := m.tracer.Start(ctx, "rulekit.Evaluate")
	defer span.End()

	list := m.Rules()
	results := m.engine.Evaluate(rec, list, opts...)

	span.SetAttributes(
		attribute.Int("rulekit.rules.snapshot", len(list)),
		attribute.Int("rulekit.rules.evaluated", len(results)),
		attribute.Int("rulekit.rules.matched", len(engine.Matched(results))),
	)
	return results
}

// IsAllowed evaluates rec and reports whether no block action triggered.
func (m *Manager) IsAllowed(ctx context.Context, rec record.Value, opts ...engine.EvalOption) (bool, []engine.EvaluationResult) {
	ctx, span := m.tracer.Start(ctx, "rulekit.IsAllowed")
	defer span.End()

	results := m.Evaluate(ctx, rec, opts...)
	allowed := engine.Allowed(results)
	span.SetAttributes(attribute.Bool("rulekit.allowed", allowed))
	return allowed, results
}

// Rules returns the current snapshot of enabled rules in priority order.
// The slice and the rules must not be modified.
func (m *Manager) Rules() []*rules.Rule {
	return *m.snapshot.Load()
}

// LoadedAt returns when the snapshot was last rebuilt.
func (m *Manager) LoadedAt() time.Time {
	if t := m.loadedAt.Load(); t != nil {
		return *t
	}
	return time.Time{}
}

// AddRule stores a new rule. It returns false if a rule with the same ID
// already exists.
func (m *Manager) AddRule(ctx context.Context, rule *rules.Rule) (bool, error) {
	ctx, span := m.startSpan(ctx, "rulekit.AddRule", rule)
	defer span.End()

	if rule == nil {
		return false, errors.New("rule cannot be nil")
	}
	rule = rule.Clone()
	if rule.ID == "" && m.config.GenerateIDs {
		rule.ID = uuid.NewString()
		span.SetAttributes(attribute.String("rulekit.rule.id", rule.ID))
	}
	if err := m.validate(rule); err != nil {
		recordError(span, err)
		return false, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.store.Add(ctx, rule); err != nil {
		if errors.Is(err, store.ErrRuleExists) {
			return false, nil
		}
		recordError(span, err)
		return false, fmt.Errorf("add rule %s: %w", rule.ID, err)
	}

	m.logger.Info("rule added", "rule_id", rule.ID, "priority", rule.Priority)
	return true, m.refreshLocked(ctx)
}

// GetRule returns the rule with the given ID. The boolean is false when no
// such rule exists.
func (m *Manager) GetRule(ctx context.Context, id string) (*rules.Rule, bool, error) {
	rule, err := m.store.Get(ctx, id)
	if errors.Is(err, store.ErrRuleNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("get rule %s: %w", id, err)
	}
	return rule, true, nil
}

// UpdateRule replaces an existing rule. It returns false if no rule with the
// same ID exists.
func (m *Manager) UpdateRule(ctx context.Context, rule *rules.Rule) (bool, error) {
	ctx, span := m.startSpan(ctx, "rulekit.UpdateRule", rule)
	defer span.End()

	if rule == nil {
		return false, errors.New("rule cannot be nil")
	}
	if err := m.validate(rule); err != nil {
		recordError(span, err)
		return false, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.store.Update(ctx, rule); err != nil {
		if errors.Is(err, store.ErrRuleNotFound) {
			return false, nil
		}
		recordError(span, err)
		return false, fmt.Errorf("update rule %s: %w", rule.ID, err)
	}

	m.logger.Info("rule updated", "rule_id", rule.ID, "enabled", rule.Enabled)
	return true, m.refreshLocked(ctx)
}

// DeleteRule removes a rule. It returns false if no such rule exists.
func (m *Manager) DeleteRule(ctx context.Context, id string) (bool, error) {
	ctx, span := m.tracer.Start(ctx, "rulekit.DeleteRule",
		trace.WithAttributes(attribute.String("rulekit.rule.id", id)))
	defer span.End()

	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.store.Delete(ctx, id); err != nil {
		if errors.Is(err, store.ErrRuleNotFound) {
			return false, nil
		}
		recordError(span, err)
		return false, fmt.Errorf("delete rule %s: %w", id, err)
	}

	m.logger.Info("rule deleted", "rule_id", id)
	return true, m.refreshLocked(ctx)
}

// ListRules returns stored rules matching filter, disabled ones included
// unless the filter excludes them.
func (m *Manager) ListRules(ctx context.Context, filter store.Filter) ([]*rules.Rule, error) {
	list, err := m.store.List(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("list rules: %w", err)
	}
	return list, nil
}

// Refresh rebuilds the evaluation snapshot from the store.
func (m *Manager) Refresh(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.refreshLocked(ctx)
}

// Sync upserts every rule from src into the store and rebuilds the
// snapshot. Rules failing validation are skipped and counted as rejected
// when StrictValidation is on.
func (m *Manager) Sync(ctx context.Context, src RuleSource) (SyncResult, error) {
	ctx, span := m.tracer.Start(ctx, "rulekit.Sync")
	defer span.End()

	var result SyncResult

	loaded, err := src.Load(ctx)
	if err != nil {
		recordError(span, err)
		return result, fmt.Errorf("load rules: %w", err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	for _, rule := range loaded {
		if err := m.validate(rule); err != nil {
			result.Rejected++
			m.logger.Warn("rejecting invalid rule", "rule_id", rule.ID, "error", err)
			continue
		}

		err := m.store.Add(ctx, rule)
		switch {
		case err == nil:
			result.Added++
		case errors.Is(err, store.ErrRuleExists):
			if err := m.store.Update(ctx, rule); err != nil {
				recordError(span, err)
				return result, fmt.Errorf("update rule %s: %w", rule.ID, err)
			}
			result.Updated++
		default:
			recordError(span, err)
			return result, fmt.Errorf("add rule %s: %w", rule.ID, err)
		}
	}

	span.SetAttributes(
		attribute.Int("rulekit.sync.added", result.Added),
		attribute.Int("rulekit.sync.updated", result.Updated),
		attribute.Int("rulekit.sync.rejected", result.Rejected),
	)
	m.logger.Info("rules synced",
		"added", result.Added,
		"updated", result.Updated,
		"rejected", result.Rejected,
	)

	return result, m.refreshLocked(ctx)
}

// Close closes the underlying store.
func (m *Manager) Close() error {
	return m.store.Close()
}

func (m *Manager) refreshLocked(ctx context.Context) error {
	list, err := m.store.List(ctx, store.Filter{EnabledOnly: true})
	if err != nil {
		return fmt.Errorf("refresh snapshot: %w", err)
	}
	rules.SortByPriority(list)

	now := time.Now()
	m.snapshot.Store(&list)
	m.loadedAt.Store(&now)

	m.logger.Debug("rule snapshot rebuilt", "rule_count", len(list))
	return nil
}

func (m *Manager) validate(rule *rules.Rule) error {
	if !m.config.StrictValidation {
		return nil
	}
	return rules.Validate(rule)
}

func (m *Manager) startSpan(ctx context.Context, name string, rule *rules.Rule) (context.Context, trace.Span) {
	var attrs []attribute.KeyValue
	if rule != nil {
		attrs = append(attrs,
			attribute.String("rulekit.rule.id", rule.ID),
			attribute.String("rulekit.rule.priority", string(rule.Priority)),
		)
	}
	return m.tracer.Start(ctx, name, trace.WithAttributes(attrs...))
}

func recordError(span trace.Span, err error) {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
}
