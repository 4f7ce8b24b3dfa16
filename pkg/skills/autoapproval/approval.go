// Package autoapproval decides approval requests (expenses, purchases,
// access grants) without a human where the rule set allows it.
//
// A request is exposed to rules as:
//
//	request.id, request.type, request.amount, request.currency,
//	request.department, request.description
//	requester.name, requester.role
//	attributes.*
//
// Outcomes are resolved by precedence: any block rejects, then escalate,
// then review, and otherwise the request is approved. With
// Config.RequireExplicitAllow, a request no rule explicitly allowed goes to
// manual review instead of being approved.
package autoapproval

import (
	"context"
	"time"

	"aiemployee/rulekit/pkg/record"
	"aiemployee/rulekit/pkg/rules"
	"aiemployee/rulekit/pkg/skills"
)

// SkillName is recorded on audit entries.
const SkillName = "auto-approval"

// Outcome is the result of an approval decision.
type Outcome string

// Outcomes, in increasing precedence.
const (
	OutcomeApproved     Outcome = "approved"
	OutcomeManualReview Outcome = "manual_review"
	OutcomeEscalated    Outcome = "escalated"
	OutcomeRejected     Outcome = "rejected"
)

func (o Outcome) rank() int {
	switch o {
	case OutcomeRejected:
		return 3
	case OutcomeEscalated:
		return 2
	case OutcomeManualReview:
		return 1
	default:
		return 0
	}
}

// Request is an approval request.
type Request struct {
	ID          string
	Type        string
	Amount      float64
	Currency    string
	Department  string
	Description string
	Requester   string
	Role        string
	Attributes  map[string]any
	SubmittedAt time.Time
}

// Decision is the outcome for one request.
type Decision struct {
	Outcome Outcome `json:"outcome"`

	// Reasons holds the message of every rule that contributed to the
	// outcome, in evaluation order.
	Reasons []string `json:"reasons,omitempty"`

	// EscalateTo is the "to" parameter of the first escalate action.
	EscalateTo string `json:"escalate_to,omitempty"`

	// RuleIDs lists the matched rules.
	RuleIDs []string `json:"rule_ids,omitempty"`

	AuditID string `json:"audit_id,omitempty"`
}

// Config configures an Approver.
type Config struct {
	// RequireExplicitAllow sends requests to manual review unless an allow
	// action matched.
	RequireExplicitAllow bool

	// DefaultEscalation is used when an escalate action names no target.
	// Default: "manager"
	DefaultEscalation string
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{DefaultEscalation: "manager"}
}

// Approver decides approval requests.
type Approver struct {
	config *Config
	runner *skills.Runner
}

// New creates an approver. A nil config uses DefaultConfig.
func New(evaluator skills.Evaluator, config *Config, opts ...skills.Option) *Approver {
	cfg := DefaultConfig()
	if config != nil {
		cfg.RequireExplicitAllow = config.RequireExplicitAllow
		if config.DefaultEscalation != "" {
			cfg.DefaultEscalation = config.DefaultEscalation
		}
	}
	return &Approver{
		config: cfg,
		runner: skills.NewRunner(SkillName, evaluator, opts...),
	}
}

// Decide evaluates req.
func (a *Approver) Decide(ctx context.Context, req Request) Decision {
	caller := rules.Caller{Role: req.Role}
	d := a.runner.Run(ctx, req.ID, caller, ToRecord(req), map[string]string{
		"request_type": req.Type,
		"requester":    req.Requester,
	})

	out := Decision{Outcome: OutcomeApproved, RuleIDs: d.MatchedRuleIDs(), AuditID: d.AuditID}
	explicitAllow := false

	raise := func(o Outcome, eff skills.Effect) {
		if o.rank() > out.Outcome.rank() {
			out.Outcome = o
		}
		out.Reasons = append(out.Reasons, eff.Message())
	}

	for _, eff := range d.Effects() {
		switch eff.Type {
		case rules.ActionBlock:
			raise(OutcomeRejected, eff)
		case rules.ActionEscalate:
			raise(OutcomeEscalated, eff)
			if out.EscalateTo == "" {
				out.EscalateTo = eff.ParamOr("to", a.config.DefaultEscalation)
			}
		case rules.ActionReview:
			raise(OutcomeManualReview, eff)
		case rules.ActionAllow:
			explicitAllow = true
		}
	}

	if out.Outcome == OutcomeApproved && a.config.RequireExplicitAllow && !explicitAllow {
		out.Outcome = OutcomeManualReview
		out.Reasons = append(out.Reasons, "no rule approved the request")
	}

	a.runner.Logger().Info("approval decided",
		"request_id", req.ID,
		"outcome", out.Outcome,
		"matched", len(out.RuleIDs),
	)
	return out
}

// ToRecord maps a request to the record evaluated by rules.
func ToRecord(r Request) record.Value {
	attrs := r.Attributes
	if attrs == nil {
		attrs = map[string]any{}
	}
	return record.FromAny(map[string]any{
		"request": map[string]any{
			"id":          r.ID,
			"type":        r.Type,
			"amount":      r.Amount,
			"currency":    r.Currency,
			"department":  r.Department,
			"description": r.Description,
			"submitted":   r.SubmittedAt,
		},
		"requester": map[string]any{
			"name": r.Requester,
			"role": r.Role,
		},
		"attributes": attrs,
	})
}
