// Package messagerouter routes inbound messages (email, chat, tickets) to a
// destination chosen by the rule set.
//
// A message is exposed to rules as:
//
//	message.id, message.channel, message.from, message.to,
//	message.subject, message.body, message.priority
//	message.labels      (list of strings)
//	metadata.*
//
// The first matched route action picks the destination through its
// "destination" parameter. Tag actions add labels, alert actions become
// notifications, escalate actions flag the message and a block drops it.
package messagerouter

import (
	"context"
	"net/mail"
	"strings"
	"time"

	"aiemployee/rulekit/pkg/record"
	"aiemployee/rulekit/pkg/rules"
	"aiemployee/rulekit/pkg/skills"
)

// SkillName is recorded on audit entries.
const SkillName = "message-router"

// DefaultDestination receives messages no route action claimed.
const DefaultDestination = "inbox"

// Message is an inbound message.
type Message struct {
	ID       string
	Channel  string // e.g. "email", "slack"
	From     string
	To       []string
	Subject  string
	Body     string
	Priority string
	Labels   []string
	Metadata map[string]any
	Received time.Time
}

// Route is the routing outcome for one message.
type Route struct {
	Destination   string         `json:"destination"`
	Dropped       bool           `json:"dropped"`
	DropReason    string         `json:"drop_reason,omitempty"`
	Tags          []string       `json:"tags,omitempty"`
	Escalated     bool           `json:"escalated"`
	EscalateTo    string         `json:"escalate_to,omitempty"`
	Notifications []skills.Alert `json:"notifications,omitempty"`
	RuleID        string         `json:"rule_id,omitempty"` // rule that chose the destination
	AuditID       string         `json:"audit_id,omitempty"`
}

// Router routes messages.
type Router struct {
	runner   *skills.Runner
	fallback string
}

// Option configures a Router.
type Option func(*Router)

// WithDefaultDestination sets the destination used when no route matches.
func WithDefaultDestination(dest string) Option {
	return func(r *Router) {
		if dest != "" {
			r.fallback = dest
		}
	}
}

// New creates a router. skillOpts configure the underlying runner.
func New(evaluator skills.Evaluator, opts []Option, skillOpts ...skills.Option) *Router {
	r := &Router{
		runner:   skills.NewRunner(SkillName, evaluator, skillOpts...),
		fallback: DefaultDestination,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Route evaluates msg and returns where it goes.
func (r *Router) Route(ctx context.Context, msg Message) Route {
	d := r.runner.Run(ctx, msg.ID, rules.Caller{}, ToRecord(msg), map[string]string{
		"channel": msg.Channel,
		"from":    msg.From,
	})

	out := Route{AuditID: d.AuditID}
	for _, eff := range d.Effects() {
		switch eff.Type {
		case rules.ActionBlock:
			if !out.Dropped {
				out.Dropped = true
				out.DropReason = eff.Message()
			}
		case rules.ActionRoute:
			if out.Destination == "" {
				if dest := eff.Param("destination"); dest != "" {
					out.Destination = dest
					out.RuleID = eff.RuleID
				}
			}
		case rules.ActionTag:
			out.Tags = skills.AppendUnique(out.Tags, eff.ParamList("tags")...)
		case rules.ActionEscalate:
			out.Escalated = true
			if out.EscalateTo == "" {
				out.EscalateTo = eff.Param("to")
			}
		case rules.ActionAlert:
			out.Notifications = append(out.Notifications, skills.NewAlert(eff))
		}
	}

	if out.Dropped {
		out.Destination = ""
		out.RuleID = ""
		r.runner.Logger().Info("message dropped", "message_id", msg.ID, "reason", out.DropReason)
		return out
	}
	if out.Destination == "" {
		out.Destination = r.fallback
	}

	r.runner.Logger().Debug("message routed",
		"message_id", msg.ID,
		"destination", out.Destination,
		"escalated", out.Escalated,
	)
	return out
}

// ToRecord maps a message to the record evaluated by rules. The sender
// domain is exposed as message.from_domain.
func ToRecord(m Message) record.Value {
	to := make([]any, len(m.To))
	for i, v := range m.To {
		to[i] = v
	}
	labels := make([]any, len(m.Labels))
	for i, v := range m.Labels {
		labels[i] = v
	}
	meta := m.Metadata
	if meta == nil {
		meta = map[string]any{}
	}

	return record.FromAny(map[string]any{
		"message": map[string]any{
			"id":          m.ID,
			"channel":     m.Channel,
			"from":        m.From,
			"from_domain": senderDomain(m.From),
			"to":          to,
			"subject":     m.Subject,
			"body":        m.Body,
			"priority":    m.Priority,
			"labels":      labels,
			"received":    m.Received,
		},
		"metadata": meta,
	})
}

// senderDomain returns the lower-cased domain of an RFC 5322 address,
// accepting both bare and display-name forms.
func senderDomain(from string) string {
	addr := from
	if parsed, err := mail.ParseAddress(from); err == nil {
		addr = parsed.Address
	}
	i := strings.LastIndexByte(addr, '@')
	if i < 0 {
		return ""
	}
	return strings.ToLower(addr[i+1:])
}
