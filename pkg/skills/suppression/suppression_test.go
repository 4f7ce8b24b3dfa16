package suppression

import (
	"context"
	"testing"
	"time"

	"aiemployee/rulekit/pkg/rules"
	"aiemployee/rulekit/pkg/skills"
	"aiemployee/rulekit/pkg/skills/skillstest"
)

var fixedNow = time.Date(2026, 5, 6, 23, 15, 0, 0, time.UTC)

func newSuppressor(t *testing.T, skillOpts ...skills.Option) *Suppressor {
	t.Helper()
	m := skillstest.NewManager(t,
		skillstest.Rule("quiet-hours", rules.PriorityHigh,
			rules.Where("time.hour", rules.OperatorGreaterEqual, 22).
				And("notification.severity", rules.OperatorNotEquals, "critical"),
			rules.ActionBlock, map[string]any{"message": "quiet hours"}),
		skillstest.Rule("dedupe", rules.PriorityMedium,
			rules.Where("notification.since_last_sent_seconds", rules.OperatorGreaterEqual, 0).
				And("notification.since_last_sent_seconds", rules.OperatorLessThan, 600),
			rules.ActionBlock, map[string]any{"message": "sent less than 10 minutes ago"}),
		skillstest.Rule("page-critical", rules.PriorityMedium,
			rules.Where("notification.severity", rules.OperatorEquals, "critical"),
			rules.ActionRoute, map[string]any{"channel": "pager"}),
		skillstest.Rule("tag-noisy", rules.PriorityLow,
			rules.Where("notification.count", rules.OperatorGreaterThan, 10),
			rules.ActionTag, map[string]any{"tags": "noisy"}),
	)
	return New(m, []Option{WithClock(func() time.Time { return fixedNow })}, skillOpts...)
}

func TestCheck(t *testing.T) {
	tests := []struct {
		name        string
		n           Notification
		wantDeliver bool
		wantRule    string
		wantChannel string
		wantTags    int
	}{
		{
			name:     "quiet hours",
			n:        Notification{ID: "n1", Severity: "info"},
			wantRule: "quiet-hours",
		},
		{
			name:        "critical pages through quiet hours",
			n:           Notification{ID: "n2", Severity: "critical"},
			wantDeliver: true,
			wantChannel: "pager",
		},
		{
			name:     "critical duplicate",
			n:        Notification{ID: "n3", Severity: "critical", LastSent: fixedNow.Add(-2 * time.Minute)},
			wantRule: "dedupe",
			// route still contributes a channel even when suppressed
			wantChannel: "pager",
		},
		{
			name:        "critical sent long ago and noisy",
			n:           Notification{ID: "n4", Severity: "critical", LastSent: fixedNow.Add(-time.Hour), Count: 25},
			wantDeliver: true,
			wantChannel: "pager",
			wantTags:    1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := newSuppressor(t).Check(context.Background(), tt.n)

			if got.Deliver != tt.wantDeliver {
				t.Errorf("Deliver = %v, want %v (%+v)", got.Deliver, tt.wantDeliver, got)
			}
			if got.RuleID != tt.wantRule {
				t.Errorf("RuleID = %q, want %q", got.RuleID, tt.wantRule)
			}
			if got.Channel != tt.wantChannel {
				t.Errorf("Channel = %q, want %q", got.Channel, tt.wantChannel)
			}
			if len(got.Tags) != tt.wantTags {
				t.Errorf("Tags = %v, want %d", got.Tags, tt.wantTags)
			}
		})
	}
}

func TestFilter(t *testing.T) {
	s := newSuppressor(t)
	in := []Notification{
		{ID: "a", Severity: "info"},
		{ID: "b", Severity: "critical"},
		{ID: "c", Severity: "warning"},
		{ID: "d", Severity: "critical", LastSent: fixedNow.Add(-time.Minute)},
	}

	out := s.Filter(context.Background(), in)
	if len(out) != 1 || out[0].ID != "b" {
		t.Errorf("Filter() = %+v, want only b", out)
	}
}

func TestSinceLastSent(t *testing.T) {
	s := newSuppressor(t)

	v, _ := s.toRecord(Notification{}).Lookup("notification.since_last_sent_seconds")
	if v.Interface() != -1.0 {
		t.Errorf("never sent = %v, want -1", v.Interface())
	}
	v, _ = s.toRecord(Notification{LastSent: fixedNow.Add(-90 * time.Second)}).Lookup("notification.since_last_sent_seconds")
	if v.Interface() != 90.0 {
		t.Errorf("since = %v, want 90", v.Interface())
	}
}

func TestCheckRecords(t *testing.T) {
	rec := &skillstest.Recorder{}
	s := newSuppressor(t, skills.WithRecorder(rec))

	got := s.Check(context.Background(), Notification{ID: "n-9", Kind: "digest", Recipient: "sam"})
	if got.Deliver || got.AuditID == "" {
		t.Errorf("Check() = %+v", got)
	}
	if rec.Len() != 1 || rec.Entries[0].Metadata["kind"] != "digest" {
		t.Errorf("entries = %+v", rec.Entries)
	}
}
