package source

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"aiemployee/rulekit/pkg/rules"
)

const yamlDoc = `
rules:
  - id: large-expense
    name: Large expense
    priority: high
    conditions:
      - field: expense.amount
        operator: greater_than
        value: 500
    actions:
      - type: review
  - name: No id
    enabled: false
    conditions: []
    actions:
      - type: tag
        parameters:
          tag: misc
`

const jsonDoc = `[
  {"id": "json-rule", "name": "From JSON", "priority": "low",
   "conditions": [{"field": "a", "operator": "equals", "value": 1}],
   "actions": [{"type": "alert"}]}
]`

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestLoadFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "rules.yaml")
	writeFile(t, path, yamlDoc)

	list, err := LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile() error = %v", err)
	}
	if len(list) != 2 {
		t.Fatalf("got %d rules, want 2", len(list))
	}

	first := list[0]
	if first.ID != "large-expense" || !first.Enabled || first.Priority != rules.PriorityHigh {
		t.Errorf("first rule = %+v", first)
	}
	if n, _ := first.Conditions[0].Value.AsNumber(); n != 500 {
		t.Errorf("condition value = %v, want 500", first.Conditions[0].Value)
	}

	second := list[1]
	if second.Enabled {
		t.Error("explicit enabled: false ignored")
	}
	if second.ID == "" {
		t.Error("missing id was not derived")
	}
	if again, _ := LoadFile(path); again[1].ID != second.ID {
		t.Error("derived id is not stable across loads")
	}
}

func TestParseFormats(t *testing.T) {
	tests := []struct {
		name   string
		data   string
		isJSON bool
		want   int
	}{
		{"yaml document", yamlDoc, false, 2},
		{"yaml list", "- id: a\n  name: a\n", false, 1},
		{"json list", jsonDoc, true, 1},
		{"json document", `{"rules": [{"id": "x", "name": "x"}]}`, true, 1},
		{"empty", "  \n", false, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			list, err := Parse([]byte(tt.data), tt.isJSON)
			if err != nil {
				t.Fatalf("Parse() error = %v", err)
			}
			if len(list) != tt.want {
				t.Errorf("Parse() returned %d rules, want %d", len(list), tt.want)
			}
			if len(list) > 0 && !list[0].Enabled {
				t.Errorf("rule %s should default to enabled", list[0].ID)
			}
		})
	}
}

func TestFileSourceDirectory(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "finance.yaml"), yamlDoc)
	writeFile(t, filepath.Join(dir, "nested", "alerts.json"), jsonDoc)
	writeFile(t, filepath.Join(dir, "nested", "dup.yml"), "- id: json-rule\n  name: duplicate\n")
	writeFile(t, filepath.Join(dir, ".hidden", "secret.yaml"), "- id: hidden\n  name: hidden\n")
	writeFile(t, filepath.Join(dir, "README.md"), "# not rules")
	writeFile(t, filepath.Join(dir, "broken.yaml"), "rules: [unterminated")

	src := NewFileSource(dir, false, nil)
	list, err := src.Load(context.Background())
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	ids := map[string]string{}
	for _, r := range list {
		ids[r.ID] = r.Name
	}
	if len(list) != 3 {
		t.Errorf("Load() returned %d rules (%v), want 3", len(list), ids)
	}
	if _, ok := ids["hidden"]; ok {
		t.Error("hidden directory was loaded")
	}

	strict := NewFileSource(dir, true, nil)
	_, err = strict.Load(context.Background())
	var lerr *LoadError
	if !errors.As(err, &lerr) {
		t.Errorf("strict Load() error = %v, want *LoadError", err)
	}
}

func TestFileSourceMissingPath(t *testing.T) {
	_, err := NewFileSource(filepath.Join(t.TempDir(), "nope"), false, nil).Load(context.Background())
	if err == nil {
		t.Error("Load() error = nil for missing path")
	}
}

func TestMemorySource(t *testing.T) {
	r := &rules.Rule{ID: "a", Name: "a"}
	src := NewMemorySource(r)
	r.Name = "changed"

	list, _ := src.Load(context.Background())
	if list[0].Name != "a" {
		t.Error("MemorySource shares state with caller")
	}

	src.Set()
	if list, _ := src.Load(context.Background()); len(list) != 0 {
		t.Errorf("after Set() got %d rules", len(list))
	}
}

func TestDebouncer(t *testing.T) {
	d := NewDebouncer(20 * time.Millisecond)
	var calls atomic.Int32

	for i := 0; i < 5; i++ {
		d.Trigger(func() { calls.Add(1) })
	}
	time.Sleep(100 * time.Millisecond)
	if got := calls.Load(); got != 1 {
		t.Errorf("callback ran %d times, want 1", got)
	}

	d.Stop()
	d.Trigger(func() { calls.Add(1) })
	time.Sleep(50 * time.Millisecond)
	if got := calls.Load(); got != 1 {
		t.Errorf("callback ran after Stop(): %d", got)
	}
}

func TestWatcherReloadsOnChange(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "rules.yaml")
	writeFile(t, path, yamlDoc)

	cfg := DefaultWatcherConfig(dir)
	cfg.DebounceInterval = 20 * time.Millisecond
	w, err := NewWatcher(cfg, nil)
	if err != nil {
		t.Fatalf("NewWatcher() error = %v", err)
	}

	reloads := make(chan struct{}, 10)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan error, 1)
	go func() {
		done <- w.Watch(ctx, func(context.Context) error {
			reloads <- struct{}{}
			return nil
		})
	}()

	// Give the watcher time to register the directory.
	time.Sleep(50 * time.Millisecond)
	writeFile(t, filepath.Join(dir, "notes.txt"), "ignored")
	writeFile(t, path, jsonDoc)

	select {
	case <-reloads:
	case <-time.After(2 * time.Second):
		t.Fatal("no reload after rule file change")
	}

	if err := w.Stop(); err != nil {
		t.Errorf("Stop() error = %v", err)
	}
	if err := <-done; err != nil {
		t.Errorf("Watch() error = %v", err)
	}
	if err := w.Stop(); err != nil {
		t.Errorf("second Stop() error = %v", err)
	}
}
