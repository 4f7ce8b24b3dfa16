// Package suppression decides whether a notification should be delivered
// or suppressed, for instance during quiet hours, for duplicates, or for
// noisy sources.
//
// A notification is exposed to rules as:
//
//	notification.id, notification.kind, notification.source,
//	notification.recipient, notification.severity, notification.title,
//	notification.body, notification.count
//	notification.since_last_sent_seconds   (-1 if never sent)
//	time.hour, time.weekday
//	attributes.*
//
// A matched block suppresses the notification. Route actions may redirect
// it through a "channel" parameter and tag actions label it.
package suppression

import (
	"context"
	"time"

	"aiemployee/rulekit/pkg/record"
	"aiemployee/rulekit/pkg/rules"
	"aiemployee/rulekit/pkg/skills"
)

// SkillName is recorded on audit entries.
const SkillName = "notification-suppression"

// Notification is a pending notification.
type Notification struct {
	ID        string
	Kind      string
	Source    string
	Recipient string
	Severity  string
	Title     string
	Body      string

	// Count is how many times this notification fired in the current window.
	Count int

	// LastSent is when an equivalent notification was last delivered.
	LastSent time.Time

	Attributes map[string]any
}

// Result is the delivery decision for one notification.
type Result struct {
	Deliver bool     `json:"deliver"`
	Reason  string   `json:"reason,omitempty"`
	RuleID  string   `json:"rule_id,omitempty"`
	Channel string   `json:"channel,omitempty"`
	Tags    []string `json:"tags,omitempty"`
	AuditID string   `json:"audit_id,omitempty"`
}

// Suppressor filters notifications.
type Suppressor struct {
	runner *skills.Runner
	now    func() time.Time
}

// Option configures a Suppressor.
type Option func(*Suppressor)

// WithClock overrides the clock used for time fields.
func WithClock(now func() time.Time) Option {
	return func(s *Suppressor) {
		if now != nil {
			s.now = now
		}
	}
}

// New creates a suppressor. skillOpts configure the underlying runner.
func New(evaluator skills.Evaluator, opts []Option, skillOpts ...skills.Option) *Suppressor {
	s := &Suppressor{
		runner: skills.NewRunner(SkillName, evaluator, skillOpts...),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Check decides whether n should be delivered.
func (s *Suppressor) Check(ctx context.Context, n Notification) Result {
	d := s.runner.Run(ctx, n.ID, rules.Caller{}, s.toRecord(n), map[string]string{
		"kind":      n.Kind,
		"recipient": n.Recipient,
	})

	res := Result{Deliver: true, AuditID: d.AuditID}
	for _, eff := range d.Effects() {
		switch eff.Type {
		case rules.ActionBlock:
			if res.Deliver {
				res.Deliver = false
				res.Reason = eff.Message()
				res.RuleID = eff.RuleID
			}
		case rules.ActionRoute:
			if res.Channel == "" {
				res.Channel = eff.Param("channel")
			}
		case rules.ActionTag:
			res.Tags = skills.AppendUnique(res.Tags, eff.ParamList("tags")...)
		}
	}

	if !res.Deliver {
		s.runner.Logger().Debug("notification suppressed",
			"notification_id", n.ID,
			"rule_id", res.RuleID,
		)
	}
	return res
}

// Filter returns the notifications in ns that should be delivered, in
// their original order.
func (s *Suppressor) Filter(ctx context.Context, ns []Notification) []Notification {
	out := make([]Notification, 0, len(ns))
	for _, n := range ns {
		if s.Check(ctx, n).Deliver {
			out = append(out, n)
		}
	}
	return out
}

func (s *Suppressor) toRecord(n Notification) record.Value {
	now := s.now()
	since := -1.0
	if !n.LastSent.IsZero() {
		since = now.Sub(n.LastSent).Seconds()
	}
	attrs := n.Attributes
	if attrs == nil {
		attrs = map[string]any{}
	}
	return record.FromAny(map[string]any{
		"notification": map[string]any{
			"id":                      n.ID,
			"kind":                    n.Kind,
			"source":                  n.Source,
			"recipient":               n.Recipient,
			"severity":                n.Severity,
			"title":                   n.Title,
			"body":                    n.Body,
			"count":                   n.Count,
			"since_last_sent_seconds": since,
		},
		"time": map[string]any{
			"hour":    now.Hour(),
			"weekday": now.Weekday().String(),
		},
		"attributes": attrs,
	})
}
