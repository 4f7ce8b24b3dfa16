package autoapproval

import (
	"context"
	"testing"

	"aiemployee/rulekit/pkg/rules"
	"aiemployee/rulekit/pkg/skills"
	"aiemployee/rulekit/pkg/skills/skillstest"
)

func testRules() []*rules.Rule {
	return []*rules.Rule{
		skillstest.Rule("reject-gambling", rules.PriorityCritical,
			rules.Where("request.description", rules.OperatorMatchesRegex, `(?i)casino|betting`),
			rules.ActionBlock, map[string]any{"message": "gambling expenses are not reimbursable"}),
		skillstest.Rule("escalate-large", rules.PriorityHigh,
			rules.Where("request.amount", rules.OperatorGreaterEqual, 10000),
			rules.ActionEscalate, map[string]any{"to": "cfo"}),
		skillstest.Rule("review-travel", rules.PriorityMedium,
			rules.Where("request.type", rules.OperatorEquals, "travel").
				And("request.amount", rules.OperatorGreaterThan, 500),
			rules.ActionReview, nil),
		skillstest.Rule("approve-small", rules.PriorityLow,
			rules.Where("request.amount", rules.OperatorLessEqual, 100),
			rules.ActionAllow, nil),
	}
}

func TestDecide(t *testing.T) {
	tests := []struct {
		name         string
		config       *Config
		req          Request
		want         Outcome
		wantEscalate string
		wantReasons  int
	}{
		{
			name: "small expense",
			req:  Request{ID: "r1", Type: "meal", Amount: 40},
			want: OutcomeApproved,
		},
		{
			name:        "casino",
			req:         Request{ID: "r2", Type: "meal", Amount: 40, Description: "Dinner at CASINO royale"},
			want:        OutcomeRejected,
			wantReasons: 1,
		},
		{
			name:        "expensive travel",
			req:         Request{ID: "r3", Type: "travel", Amount: 800},
			want:        OutcomeManualReview,
			wantReasons: 1,
		},
		{
			name:         "large travel escalates",
			req:          Request{ID: "r4", Type: "travel", Amount: 12000},
			want:         OutcomeEscalated,
			wantEscalate: "cfo",
			wantReasons:  2,
		},
		{
			name: "mid expense approved by default",
			req:  Request{ID: "r5", Type: "software", Amount: 300},
			want: OutcomeApproved,
		},
		{
			name:        "mid expense needs explicit allow",
			config:      &Config{RequireExplicitAllow: true},
			req:         Request{ID: "r6", Type: "software", Amount: 300},
			want:        OutcomeManualReview,
			wantReasons: 1,
		},
		{
			name:   "small expense with explicit allow",
			config: &Config{RequireExplicitAllow: true},
			req:    Request{ID: "r7", Type: "meal", Amount: 20},
			want:   OutcomeApproved,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := New(skillstest.NewManager(t, testRules()...), tt.config)
			got := a.Decide(context.Background(), tt.req)

			if got.Outcome != tt.want {
				t.Errorf("Outcome = %s, want %s (reasons %v)", got.Outcome, tt.want, got.Reasons)
			}
			if got.EscalateTo != tt.wantEscalate {
				t.Errorf("EscalateTo = %q, want %q", got.EscalateTo, tt.wantEscalate)
			}
			if len(got.Reasons) != tt.wantReasons {
				t.Errorf("Reasons = %v, want %d", got.Reasons, tt.wantReasons)
			}
		})
	}
}

func TestDecideDefaultEscalation(t *testing.T) {
	m := skillstest.NewManager(t, skillstest.Rule("escalate-hr", rules.PriorityMedium,
		rules.Where("request.department", rules.OperatorEquals, "hr"),
		rules.ActionEscalate, nil))

	got := New(m, nil).Decide(context.Background(), Request{ID: "x", Department: "hr"})
	if got.Outcome != OutcomeEscalated || got.EscalateTo != "manager" {
		t.Errorf("Decide() = %+v", got)
	}
	if len(got.RuleIDs) != 1 || got.RuleIDs[0] != "escalate-hr" {
		t.Errorf("RuleIDs = %v", got.RuleIDs)
	}
}

func TestDecideRecords(t *testing.T) {
	rec := &skillstest.Recorder{}
	a := New(skillstest.NewManager(t, testRules()...), nil, skills.WithRecorder(rec))

	got := a.Decide(context.Background(), Request{ID: "exp-9", Type: "meal", Amount: 15, Requester: "kim"})
	if got.AuditID == "" || rec.Len() != 1 {
		t.Fatalf("AuditID = %q, entries = %d", got.AuditID, rec.Len())
	}
	if e := rec.Entries[0]; e.Skill != SkillName || e.Subject != "exp-9" || e.Metadata["requester"] != "kim" {
		t.Errorf("entry = %+v", e)
	}
}

func TestNewLeavesConfigUntouched(t *testing.T) {
	m := skillstest.NewManager(t, skillstest.Rule("escalate-hr", rules.PriorityMedium,
		rules.Where("request.department", rules.OperatorEquals, "hr"),
		rules.ActionEscalate, nil))

	cfg := &Config{RequireExplicitAllow: true}
	a := New(m, cfg)
	if cfg.DefaultEscalation != "" || !cfg.RequireExplicitAllow {
		t.Errorf("New() modified the caller's config: %+v", cfg)
	}

	got := a.Decide(context.Background(), Request{ID: "x", Department: "hr"})
	if got.Outcome != OutcomeEscalated || got.EscalateTo != "manager" {
		t.Errorf("Decide() = %+v", got)
	}
}
