// Package policyenforcer checks actions an AI agent wants to take against
// the rule set before they run.
//
// An action is exposed to rules as:
//
//	action.id, action.type, action.target, action.amount, action.tool
//	agent.name, agent.role
//	data.*      (free-form attributes)
//	time.hour, time.weekday
//
// A block stops the action; review holds it for a human; alert actions
// become Alerts; every matched block or review is reported as a Violation.
package policyenforcer

import (
	"context"
	"time"

	"aiemployee/rulekit/pkg/record"
	"aiemployee/rulekit/pkg/rules"
	"aiemployee/rulekit/pkg/skills"
)

// SkillName is recorded on audit entries.
const SkillName = "policy-enforcer"

// Action is something an agent intends to do.
type Action struct {
	ID        string
	Type      string // e.g. "send_email", "payment", "delete_file"
	Target    string
	Tool      string
	Amount    float64
	Agent     string
	Role      string
	Scope     string
	Data      map[string]any
	Timestamp time.Time
}

// Violation describes a rule that objected to an action.
type Violation struct {
	RuleID   string           `json:"rule_id"`
	RuleName string           `json:"rule_name"`
	Priority rules.Priority   `json:"priority"`
	Action   rules.ActionType `json:"action"`
	Message  string           `json:"message"`
}

// Verdict is the enforcement outcome for one action.
type Verdict struct {
	Allowed        bool            `json:"allowed"`
	RequiresReview bool            `json:"requires_review"`
	Violations     []Violation     `json:"violations,omitempty"`
	Alerts         []skills.Alert  `json:"alerts,omitempty"`
	Tags           []string        `json:"tags,omitempty"`
	AuditID        string          `json:"audit_id,omitempty"`
	Decision       skills.Decision `json:"-"`
}

// Enforcer evaluates agent actions.
type Enforcer struct {
	runner *skills.Runner
}

// New creates an enforcer.
func New(evaluator skills.Evaluator, opts ...skills.Option) *Enforcer {
	return &Enforcer{runner: skills.NewRunner(SkillName, evaluator, opts...)}
}

// Check evaluates action and returns the verdict. The caller is the agent's
// role and scope, matched against rule exceptions.
func (e *Enforcer) Check(ctx context.Context, action Action) Verdict {
	caller := rules.Caller{Role: action.Role, Scope: action.Scope}
	d := e.runner.Run(ctx, action.ID, caller, ToRecord(action), map[string]string{
		"action_type": action.Type,
		"agent":       action.Agent,
	})

	v := Verdict{Allowed: d.Allowed, AuditID: d.AuditID, Decision: d}
	for _, eff := range d.Effects() {
		switch eff.Type {
		case rules.ActionBlock, rules.ActionReview:
			v.Violations = append(v.Violations, Violation{
				RuleID:   eff.RuleID,
				RuleName: eff.RuleName,
				Priority: eff.Priority,
				Action:   eff.Type,
				Message:  eff.Message(),
			})
			if eff.Type == rules.ActionReview {
				v.RequiresReview = true
			}
		case rules.ActionAlert, rules.ActionEscalate:
			v.Alerts = append(v.Alerts, skills.NewAlert(eff))
		case rules.ActionTag:
			v.Tags = skills.AppendUnique(v.Tags, eff.ParamList("tags")...)
		}
	}

	if !v.Allowed {
		e.runner.Logger().Warn("agent action blocked",
			"action_id", action.ID,
			"action_type", action.Type,
			"violations", len(v.Violations),
		)
	}
	return v
}

// ToRecord maps an action to the record evaluated by rules.
func ToRecord(a Action) record.Value {
	ts := a.Timestamp
	if ts.IsZero() {
		ts = time.Now()
	}
	data := a.Data
	if data == nil {
		data = map[string]any{}
	}
	return record.FromAny(map[string]any{
		"action": map[string]any{
			"id":     a.ID,
			"type":   a.Type,
			"target": a.Target,
			"tool":   a.Tool,
			"amount": a.Amount,
		},
		"agent": map[string]any{
			"name": a.Agent,
			"role": a.Role,
		},
		"data": data,
		"time": map[string]any{
			"hour":    ts.Hour(),
			"weekday": ts.Weekday().String(),
		},
	})
}
