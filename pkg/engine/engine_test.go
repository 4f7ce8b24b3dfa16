package engine

import (
	"errors"
	"reflect"
	"sync"
	"testing"

	"aiemployee/rulekit/pkg/record"
	"aiemployee/rulekit/pkg/rules"
)

func newTestEngine(t *testing.T, cfg *Config, opts ...Option) *Engine {
	t.Helper()
	eng, err := New(cfg, nil, opts...)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	return eng
}

func mustRecord(t *testing.T, doc string) record.Value {
	t.Helper()
	rec, err := record.FromJSON([]byte(doc))
	if err != nil {
		t.Fatalf("FromJSON() error = %v", err)
	}
	return rec
}

func ruleIDs(results []EvaluationResult) []string {
	ids := make([]string, 0, len(results))
	for _, r := range results {
		ids = append(ids, r.RuleID)
	}
	return ids
}

func TestScenarioThreshold(t *testing.T) {
	c := cond("action.amount", rules.OperatorGreaterThan, 500)

	if !MatchCondition(mustRecord(t, `{"action": {"amount": 750}}`), c) {
		t.Error("amount 750 > 500 should match")
	}
	if MatchCondition(mustRecord(t, `{"action": {}}`), c) {
		t.Error("missing amount should not match")
	}
}

func TestScenarioMultipleActions(t *testing.T) {
	eng := newTestEngine(t, nil)
	rule := &rules.Rule{
		ID:         "admin-alert",
		Name:       "Admin alert",
		Priority:   rules.PriorityMedium,
		Conditions: rules.Where("user.role", rules.OperatorEquals, "admin"),
		Actions:    []rules.Action{{Type: rules.ActionAllow}, {Type: rules.ActionAlert}},
		Enabled:    true,
	}

	results := eng.Evaluate(mustRecord(t, `{"user": {"role": "admin"}}`), []*rules.Rule{rule})
	if len(results) != 1 {
		t.Fatalf("got %d results, want 1", len(results))
	}
	r := results[0]
	if !r.Matched {
		t.Error("Matched = false, want true")
	}
	if !r.Triggered(rules.ActionAllow) || !r.Triggered(rules.ActionAlert) {
		t.Errorf("ActionsTriggered = %v, want allow and alert", r.ActionsTriggered)
	}
	if r.Reason != "Admin alert" {
		t.Errorf("Reason = %q, want rule name", r.Reason)
	}
}

func TestScenarioCriticalBlockShortCircuits(t *testing.T) {
	eng := newTestEngine(t, nil)
	list := []*rules.Rule{
		{ID: "before", Name: "before", Priority: rules.PriorityLow, Actions: []rules.Action{{Type: rules.ActionTag}}, Enabled: true},
		{ID: "critical", Name: "critical", Priority: rules.PriorityCritical, Actions: []rules.Action{{Type: rules.ActionBlock}}, Enabled: true},
		{ID: "after", Name: "after", Priority: rules.PriorityHigh, Actions: []rules.Action{{Type: rules.ActionAllow}}, Enabled: true},
	}

	allowed, results := eng.IsAllowed(mustRecord(t, `{}`), list)
	if allowed {
		t.Error("IsAllowed() = true, want false")
	}
	if got := ruleIDs(results); !reflect.DeepEqual(got, []string{"before", "critical"}) {
		t.Errorf("results = %v, want [before critical]", got)
	}
}

func TestNonCriticalBlockDoesNotShortCircuit(t *testing.T) {
	eng := newTestEngine(t, nil)
	list := []*rules.Rule{
		{ID: "high-block", Name: "h", Priority: rules.PriorityHigh, Actions: []rules.Action{{Type: rules.ActionBlock}}, Enabled: true},
		{ID: "next", Name: "n", Actions: []rules.Action{{Type: rules.ActionAlert}}, Enabled: true},
	}

	allowed, results := eng.IsAllowed(mustRecord(t, `{}`), list)
	if allowed {
		t.Error("IsAllowed() = true, want false")
	}
	if len(results) != 2 {
		t.Errorf("got %d results, want 2", len(results))
	}
}

func TestCriticalRuleWithoutMatchDoesNotStop(t *testing.T) {
	eng := newTestEngine(t, nil)
	list := []*rules.Rule{
		{
			ID: "critical", Name: "c", Priority: rules.PriorityCritical, Enabled: true,
			Conditions: rules.Where("user.role", rules.OperatorEquals, "intruder"),
			Actions:    []rules.Action{{Type: rules.ActionBlock}},
		},
		{ID: "next", Name: "n", Actions: []rules.Action{{Type: rules.ActionAllow}}, Enabled: true},
	}

	allowed, results := eng.IsAllowed(mustRecord(t, `{"user": {"role": "staff"}}`), list)
	if !allowed {
		t.Error("IsAllowed() = false, want true")
	}
	if len(results) != 2 || results[0].Matched || len(results[0].ActionsTriggered) != 0 {
		t.Errorf("results = %+v", results)
	}
	if results[0].Reason != "" {
		t.Errorf("Reason on a non-match = %q, want empty", results[0].Reason)
	}
}

func TestScenarioInvalidRegex(t *testing.T) {
	eng := newTestEngine(t, nil)
	rule := &rules.Rule{
		ID: "re", Name: "re", Enabled: true,
		Conditions: rules.Where("text", rules.OperatorMatchesRegex, "[a-"),
		Actions:    []rules.Action{{Type: rules.ActionBlock}},
	}

	allowed, results := eng.IsAllowed(mustRecord(t, `{"text": "anything"}`), []*rules.Rule{rule})
	if !allowed || len(results) != 1 || results[0].Matched {
		t.Errorf("allowed = %v, results = %+v", allowed, results)
	}
}

func TestEvaluateFilters(t *testing.T) {
	eng := newTestEngine(t, nil)
	rec := mustRecord(t, `{"user": {"role": "admin"}}`)

	list := []*rules.Rule{
		{ID: "disabled", Name: "d", Enabled: false},
		{ID: "finance", Name: "f", Category: "Finance", Enabled: true},
		{ID: "security", Name: "s", Category: "security", Enabled: true},
		{
			ID: "excepted", Name: "e", Category: "security", Enabled: true,
			Exceptions: []rules.Exception{{Role: "ADMIN"}},
		},
		nil,
	}

	tests := []struct {
		name string
		opts []EvalOption
		want []string
	}{
		{"no options", nil, []string{"finance", "security", "excepted"}},
		{"category", []EvalOption{WithCategory("finance")}, []string{"finance"}},
		{"caller exception", []EvalOption{WithCaller(rules.Caller{Role: "admin"})}, []string{"finance", "security"}},
		{"exception needs caller match", []EvalOption{WithCaller(rules.Caller{Role: "user"})}, []string{"finance", "security", "excepted"}},
		{
			"category and caller",
			[]EvalOption{WithCategory("SECURITY"), WithCaller(rules.Caller{Role: "admin"})},
			[]string{"security"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ruleIDs(eng.Evaluate(rec, list, tt.opts...))
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("Evaluate() rules = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestEvaluateKeepsCallerOrder(t *testing.T) {
	eng := newTestEngine(t, nil)
	list := []*rules.Rule{
		{ID: "low", Name: "low", Priority: rules.PriorityLow, Enabled: true},
		{ID: "critical", Name: "crit", Priority: rules.PriorityCritical, Enabled: true},
		{ID: "medium", Name: "med", Enabled: true},
	}

	got := ruleIDs(eng.Evaluate(mustRecord(t, `{}`), list))
	if !reflect.DeepEqual(got, []string{"low", "critical", "medium"}) {
		t.Errorf("order = %v", got)
	}
}

func TestEvaluateIsDeterministic(t *testing.T) {
	eng := newTestEngine(t, nil)
	rec := mustRecord(t, `{"user": {"role": "admin", "dept": "finance"}, "amount": 900}`)
	list := []*rules.Rule{
		{
			ID: "a", Name: "a", Enabled: true, Description: "large finance spend",
			Conditions: rules.Where("user.dept", rules.OperatorIn, []any{"finance", "legal"}).
				And("amount", rules.OperatorGreaterEqual, 500),
			Actions: []rules.Action{{Type: rules.ActionReview, Parameters: map[string]any{"queue": "cfo"}}},
		},
		{
			ID: "b", Name: "b", Enabled: true,
			Conditions: rules.Where("user.role", rules.OperatorNotEquals, "admin"),
			Actions:    []rules.Action{{Type: rules.ActionBlock}},
		},
	}

	strip := func(rs []EvaluationResult) []EvaluationResult {
		for i := range rs {
			rs[i].Duration = 0
		}
		return rs
	}

	first := strip(eng.Evaluate(rec, list))
	second := strip(eng.Evaluate(rec, list))
	if !reflect.DeepEqual(first, second) {
		t.Errorf("results differ:\n%+v\n%+v", first, second)
	}
	if first[0].Reason != "large finance spend" {
		t.Errorf("Reason = %q, want description", first[0].Reason)
	}
}

func TestEvaluateTrace(t *testing.T) {
	eng := newTestEngine(t, DefaultConfig().WithTrace(true))
	rule := &rules.Rule{
		ID: "t", Name: "t", Enabled: true,
		Conditions: rules.Where("a", rules.OperatorEquals, 1).Or("b", rules.OperatorEquals, 2),
	}

	results := eng.Evaluate(mustRecord(t, `{"a": 1}`), []*rules.Rule{rule})
	if len(results[0].Trace) != 2 {
		t.Fatalf("trace = %+v, want 2 steps", results[0].Trace)
	}

	untraced := newTestEngine(t, nil).Evaluate(mustRecord(t, `{"a": 1}`), []*rules.Rule{rule})
	if untraced[0].Trace != nil {
		t.Error("trace recorded with tracing disabled")
	}
}

type recordingObserver struct {
	mu         sync.Mutex
	evaluated  []string
	exceptions []string
	summaries  []Summary
}

func (o *recordingObserver) RuleEvaluated(r EvaluationResult) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.evaluated = append(o.evaluated, r.RuleID)
}

func (o *recordingObserver) ExceptionApplied(r *rules.Rule, _ rules.Exception) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.exceptions = append(o.exceptions, r.ID)
}

func (o *recordingObserver) EvaluationCompleted(s Summary) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.summaries = append(o.summaries, s)
}

func TestObserver(t *testing.T) {
	obs := &recordingObserver{}
	eng := newTestEngine(t, nil, WithObserver(obs))

	list := []*rules.Rule{
		{ID: "skip", Name: "s", Enabled: true, Exceptions: []rules.Exception{{Scope: "internal"}}},
		{ID: "hit", Name: "h", Enabled: true, Actions: []rules.Action{{Type: rules.ActionAlert}}},
		{ID: "stop", Name: "x", Priority: rules.PriorityCritical, Enabled: true, Actions: []rules.Action{{Type: rules.ActionBlock}}},
		{ID: "never", Name: "n", Enabled: true},
	}

	eng.Evaluate(mustRecord(t, `{}`), list, WithCaller(rules.Caller{Scope: "internal"}))

	if !reflect.DeepEqual(obs.evaluated, []string{"hit", "stop"}) {
		t.Errorf("evaluated = %v", obs.evaluated)
	}
	if !reflect.DeepEqual(obs.exceptions, []string{"skip"}) {
		t.Errorf("exceptions = %v", obs.exceptions)
	}
	if len(obs.summaries) != 1 {
		t.Fatalf("summaries = %d, want 1", len(obs.summaries))
	}
	s := obs.summaries[0]
	if s.Evaluated != 2 || s.Matched != 2 || s.Exceptions != 1 || s.Allowed || !s.ShortCircuited {
		t.Errorf("summary = %+v", s)
	}
}

func TestNewValidatesConfig(t *testing.T) {
	_, err := New(DefaultConfig().WithRegexCacheSize(-1), nil)
	if !errors.Is(err, ErrInvalidConfig) {
		t.Errorf("New() error = %v, want ErrInvalidConfig", err)
	}
}

func TestEvaluateConcurrent(t *testing.T) {
	eng := newTestEngine(t, nil)
	rec := mustRecord(t, `{"msg": "ticket 42 escalated"}`)
	list := []*rules.Rule{{
		ID: "re", Name: "re", Enabled: true,
		Conditions: rules.Where("msg", rules.OperatorMatchesRegex, `ticket \d+`),
		Actions:    []rules.Action{{Type: rules.ActionRoute, Parameters: map[string]any{"channel": "support"}}},
	}}

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				if rs := eng.Evaluate(rec, list); len(rs) != 1 || !rs[0].Matched {
					t.Errorf("unexpected results %+v", rs)
					return
				}
			}
		}()
	}
	wg.Wait()
}
