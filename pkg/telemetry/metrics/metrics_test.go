package metrics

import (
	"errors"
	"io"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"aiemployee/rulekit/pkg/engine"
	"aiemployee/rulekit/pkg/record"
	"aiemployee/rulekit/pkg/rules"
)

func testCollector(t *testing.T, cfg *Config) *Collector {
	t.Helper()
	if cfg == nil {
		cfg = DefaultConfig()
	}
	return NewCollector(cfg, nil)
}

func testRules() []*rules.Rule {
	return []*rules.Rule{
		{
			ID: "large", Name: "Large", Enabled: true, Priority: rules.PriorityHigh,
			Conditions: rules.Where("amount", rules.OperatorGreaterThan, 100),
			Actions:    []rules.Action{{Type: rules.ActionReview}, {Type: rules.ActionAlert}},
		},
		{
			ID: "vendor", Name: "Vendor", Enabled: true, Priority: rules.PriorityCritical,
			Conditions: rules.Where("vendor", rules.OperatorEquals, "acme"),
			Actions:    []rules.Action{{Type: rules.ActionBlock}},
			Exceptions: []rules.Exception{{Role: "admin"}},
		},
		{
			ID: "never", Name: "Never", Enabled: true,
			Conditions: rules.Where("missing", rules.OperatorEquals, 1),
			Actions:    []rules.Action{{Type: rules.ActionTag}},
		},
	}
}

func TestCollectorObservesEngine(t *testing.T) {
	c := testCollector(t, nil)
	eng, err := engine.New(nil, nil, engine.WithObserver(c))
	if err != nil {
		t.Fatalf("engine.New() error = %v", err)
	}

	rec := record.FromAny(map[string]any{"amount": 500, "vendor": "acme"})
	eng.Evaluate(rec, testRules())
	eng.Evaluate(rec, testRules(), engine.WithCaller(rules.Caller{Role: "admin"}))

	tests := []struct {
		name string
		got  float64
		want float64
	}{
		{"large hits", testutil.ToFloat64(c.rules.evaluationsTotal.WithLabelValues("large", "hit")), 2},
		{"vendor hits", testutil.ToFloat64(c.rules.evaluationsTotal.WithLabelValues("vendor", "hit")), 1},
		{"never misses", testutil.ToFloat64(c.rules.evaluationsTotal.WithLabelValues("never", "miss")), 1},
		{"review actions", testutil.ToFloat64(c.rules.actionsTotal.WithLabelValues("large", "review")), 2},
		{"block actions", testutil.ToFloat64(c.rules.actionsTotal.WithLabelValues("vendor", "block")), 1},
		{"exceptions", testutil.ToFloat64(c.rules.exceptionsTotal.WithLabelValues("vendor")), 1},
		{"blocked evaluations", testutil.ToFloat64(c.evaluations.evaluationsTotal.WithLabelValues("false")), 1},
		{"allowed evaluations", testutil.ToFloat64(c.evaluations.evaluationsTotal.WithLabelValues("true")), 1},
		{"short circuits", testutil.ToFloat64(c.evaluations.shortCircuits), 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.got != tt.want {
				t.Errorf("got %v, want %v", tt.got, tt.want)
			}
		})
	}
}

func TestCollectorDisabled(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Enabled = false
	c := testCollector(t, cfg)

	c.RuleEvaluated(engine.EvaluationResult{RuleID: "x", Matched: true})
	c.SetRulesLoaded(5)

	if got := testutil.CollectAndCount(c.rules.evaluationsTotal); got != 0 {
		t.Errorf("disabled collector recorded %d series", got)
	}
	if got := testutil.ToFloat64(c.evaluations.rulesLoaded); got != 0 {
		t.Errorf("rules_loaded = %v, want 0", got)
	}
}

func TestCollectorCardinality(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MaxRuleCardinality = 2
	c := testCollector(t, cfg)

	for _, id := range []string{"a", "b", "c", "d"} {
		c.RuleEvaluated(engine.EvaluationResult{RuleID: id})
	}

	if got := testutil.ToFloat64(c.rules.evaluationsTotal.WithLabelValues("other", "miss")); got != 2 {
		t.Errorf("other = %v, want 2", got)
	}
	if c.cardinalityLimiter.Count() != 2 {
		t.Errorf("tracked %d rule ids, want 2", c.cardinalityLimiter.Count())
	}
}

func TestGaugesAndReloads(t *testing.T) {
	c := testCollector(t, nil)
	c.SetRulesLoaded(12)
	c.RecordReload(nil)
	c.RecordReload(errors.New("parse error"))
	c.RecordReload(nil)

	if got := testutil.ToFloat64(c.evaluations.rulesLoaded); got != 12 {
		t.Errorf("rules_loaded = %v, want 12", got)
	}
	if got := testutil.ToFloat64(c.evaluations.reloadsTotal.WithLabelValues("success")); got != 2 {
		t.Errorf("successful reloads = %v, want 2", got)
	}
	if got := testutil.ToFloat64(c.evaluations.reloadsTotal.WithLabelValues("error")); got != 1 {
		t.Errorf("failed reloads = %v, want 1", got)
	}
}

func TestHandler(t *testing.T) {
	c := testCollector(t, nil)
	c.SetRulesLoaded(3)

	srv := httptest.NewServer(c.Handler())
	defer srv.Close()

	resp, err := srv.Client().Get(srv.URL)
	if err != nil {
		t.Fatalf("GET /metrics error = %v", err)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)
	if !strings.Contains(string(body), "rulekit_engine_rules_loaded 3") {
		t.Errorf("metrics output missing rules_loaded gauge:\n%s", body)
	}
}
