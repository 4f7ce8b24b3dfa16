// Package businessrules applies business rules to domain events (an order
// placed, an invoice overdue, a customer churn signal) and turns matched
// actions into follow-up work.
//
// An event is exposed to rules as:
//
//	event.id, event.type, event.source, event.entity
//	event.occurred, event.hour, event.weekday
//	data.*
//
// Route and review actions become Tasks on a queue; escalate actions become
// high-urgency tasks; alert actions become Alerts; tag actions label the
// event. A block marks the event Blocked, meaning downstream automation
// must not proceed.
package businessrules

import (
	"context"
	"time"

	"aiemployee/rulekit/pkg/record"
	"aiemployee/rulekit/pkg/rules"
	"aiemployee/rulekit/pkg/skills"
)

// SkillName is recorded on audit entries.
const SkillName = "business-rules"

// ReviewQueue receives tasks whose action names neither a "queue" nor a
// "destination".
const ReviewQueue = "review"

// Event is a domain event.
type Event struct {
	ID       string
	Type     string
	Source   string
	Entity   string
	Data     map[string]any
	Occurred time.Time
}

// Task is follow-up work produced by a rule.
type Task struct {
	Queue    string         `json:"queue"`
	RuleID   string         `json:"rule_id"`
	Priority rules.Priority `json:"priority"`
	Summary  string         `json:"summary"`
	Escalate bool           `json:"escalate,omitempty"`
	Assignee string         `json:"assignee,omitempty"`
}

// Outcome is the result of applying the rule set to one event.
type Outcome struct {
	Blocked     bool           `json:"blocked"`
	BlockReason string         `json:"block_reason,omitempty"`
	Tasks       []Task         `json:"tasks,omitempty"`
	Alerts      []skills.Alert `json:"alerts,omitempty"`
	Tags        []string       `json:"tags,omitempty"`
	AuditID     string         `json:"audit_id,omitempty"`
}

// Engine applies business rules to events.
type Engine struct {
	runner *skills.Runner
}

// New creates a business rules engine. Use skills.WithCategory to restrict
// evaluation to one rule category.
func New(evaluator skills.Evaluator, opts ...skills.Option) *Engine {
	return &Engine{runner: skills.NewRunner(SkillName, evaluator, opts...)}
}

// Apply evaluates ev.
func (e *Engine) Apply(ctx context.Context, ev Event) Outcome {
	d := e.runner.Run(ctx, ev.ID, rules.Caller{}, ToRecord(ev), map[string]string{
		"event_type": ev.Type,
		"entity":     ev.Entity,
	})

	out := Outcome{AuditID: d.AuditID}
	for _, eff := range d.Effects() {
		switch eff.Type {
		case rules.ActionBlock:
			if !out.Blocked {
				out.Blocked = true
				out.BlockReason = eff.Message()
			}
		case rules.ActionRoute:
			out.Tasks = append(out.Tasks, newTask(eff, eff.ParamOr("queue", eff.ParamOr("destination", ReviewQueue))))
		case rules.ActionReview:
			out.Tasks = append(out.Tasks, newTask(eff, eff.ParamOr("queue", ReviewQueue)))
		case rules.ActionEscalate:
			t := newTask(eff, eff.ParamOr("queue", ReviewQueue))
			t.Escalate = true
			t.Assignee = eff.ParamOr("to", t.Assignee)
			out.Tasks = append(out.Tasks, t)
		case rules.ActionAlert:
			out.Alerts = append(out.Alerts, skills.NewAlert(eff))
		case rules.ActionTag:
			out.Tags = skills.AppendUnique(out.Tags, eff.ParamList("tags")...)
		}
	}

	e.runner.Logger().Info("event processed",
		"event_id", ev.ID,
		"event_type", ev.Type,
		"blocked", out.Blocked,
		"tasks", len(out.Tasks),
	)
	return out
}

func newTask(eff skills.Effect, queue string) Task {
	return Task{
		Queue:    queue,
		RuleID:   eff.RuleID,
		Priority: eff.Priority,
		Summary:  eff.Message(),
		Assignee: eff.Param("assignee"),
	}
}

// ToRecord maps an event to the record evaluated by rules.
func ToRecord(ev Event) record.Value {
	occurred := ev.Occurred
	if occurred.IsZero() {
		occurred = time.Now()
	}
	data := ev.Data
	if data == nil {
		data = map[string]any{}
	}
	return record.FromAny(map[string]any{
		"event": map[string]any{
			"id":       ev.ID,
			"type":     ev.Type,
			"source":   ev.Source,
			"entity":   ev.Entity,
			"occurred": occurred,
			"hour":     occurred.Hour(),
			"weekday":  occurred.Weekday().String(),
		},
		"data": data,
	})
}
