package cli

import (
	"fmt"
	"io"
	"os"
	"sync"
)

// ProgressReporter reports progress for batch operations such as rule
// imports.
type ProgressReporter interface {
	Start(total int)
	Step(item string, err error)
	Finish() Summary
}

// Summary is the outcome of a batch operation.
type Summary struct {
	Total     int
	Succeeded int
	Failed    int
}

// LineProgress writes one line per item.
type LineProgress struct {
	mu      sync.Mutex
	writer  io.Writer
	label   string
	total   int
	summary Summary
}

// NewProgressReporter creates a reporter writing to w, or os.Stderr when w
// is nil. label prefixes every line, e.g. "import".
func NewProgressReporter(w io.Writer, label string) *LineProgress {
	if w == nil {
		w = os.Stderr
	}
	return &LineProgress{writer: w, label: label}
}

// Start resets the reporter for total items.
func (p *LineProgress) Start(total int) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.total = total
	p.summary = Summary{Total: total}
}

// Step records one processed item.
func (p *LineProgress) Step(item string, err error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	done := p.summary.Succeeded + p.summary.Failed + 1
	if err != nil {
		p.summary.Failed++
		fmt.Fprintf(p.writer, "%s [%d/%d] ✗ %s: %v\n", p.label, done, p.total, item, err)
		return
	}
	p.summary.Succeeded++
	fmt.Fprintf(p.writer, "%s [%d/%d] ✓ %s\n", p.label, done, p.total, item)
}

// Finish writes the summary line and returns it.
func (p *LineProgress) Finish() Summary {
	p.mu.Lock()
	defer p.mu.Unlock()

	fmt.Fprintf(p.writer, "%s: %d succeeded, %d failed\n", p.label, p.summary.Succeeded, p.summary.Failed)
	return p.summary
}
