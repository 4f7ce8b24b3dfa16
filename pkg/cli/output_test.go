package cli

import (
	"bytes"
	"strings"
	"testing"
)

func TestParseFormat(t *testing.T) {
	tests := []struct {
		in      string
		want    OutputFormat
		wantErr bool
	}{
		{"", FormatText, false},
		{"text", FormatText, false},
		{"JSON", FormatJSON, false},
		{" yaml ", FormatYAML, false},
		{"csv", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseFormat(tt.in)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseFormat(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("ParseFormat(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

type ruleRow struct {
	ID       string `json:"id" yaml:"id"`
	Priority string `json:"priority" yaml:"priority"`
}

func TestFormatters(t *testing.T) {
	data := []ruleRow{{ID: "block-guests", Priority: "high"}}

	tests := []struct {
		format OutputFormat
		want   string
	}{
		{FormatJSON, "[\n  {\n    \"id\": \"block-guests\",\n    \"priority\": \"high\"\n  }\n]\n"},
		{FormatYAML, "- id: block-guests\n  priority: high\n"},
		{FormatText, "[{block-guests high}]\n"},
	}
	for _, tt := range tests {
		t.Run(string(tt.format), func(t *testing.T) {
			var buf bytes.Buffer
			if err := NewFormatter(tt.format).FormatTo(&buf, data); err != nil {
				t.Fatalf("FormatTo() error = %v", err)
			}
			if buf.String() != tt.want {
				t.Errorf("FormatTo() = %q, want %q", buf.String(), tt.want)
			}
		})
	}
}

func TestTableText(t *testing.T) {
	table := &Table{Headers: []string{"ID", "PRIORITY"}}
	table.AddRow("a", "critical")
	table.AddRow("longer-id", "low")

	var buf bytes.Buffer
	if err := NewFormatter(FormatText).FormatTo(&buf, table); err != nil {
		t.Fatalf("FormatTo() error = %v", err)
	}

	want := "ID         PRIORITY\n" +
		"a          critical\n" +
		"longer-id  low\n"
	if buf.String() != want {
		t.Errorf("table =\n%s\nwant\n%s", buf.String(), want)
	}
}

func TestLineProgress(t *testing.T) {
	var buf bytes.Buffer
	p := NewProgressReporter(&buf, "import")

	p.Start(3)
	p.Step("a", nil)
	p.Step("b", errTest)
	p.Step("c", nil)
	summary := p.Finish()

	if summary != (Summary{Total: 3, Succeeded: 2, Failed: 1}) {
		t.Errorf("summary = %+v", summary)
	}
	out := buf.String()
	for _, want := range []string{"import [1/3] ✓ a", "import [2/3] ✗ b: boom", "import: 2 succeeded, 1 failed"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}
