package audit

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"aiemployee/rulekit/pkg/engine"
	"aiemployee/rulekit/pkg/rules"
)

// RecorderConfig contains configuration for the audit recorder.
type RecorderConfig struct {
	// Enabled enables audit recording. A disabled recorder drops records.
	Enabled bool

	// AsyncBuffer is the size of the async write channel buffer.
	// Default: 1000
	AsyncBuffer int

	// WriteTimeout is the timeout for writing one record to storage.
	// Default: 5 seconds
	WriteTimeout time.Duration
}

// DefaultRecorderConfig returns the default recorder configuration.
func DefaultRecorderConfig() *RecorderConfig {
	return &RecorderConfig{
		Enabled:      true,
		AsyncBuffer:  1000,
		WriteTimeout: 5 * time.Second,
	}
}

// Entry describes one evaluation to record.
type Entry struct {
	Skill    string
	Subject  string
	Caller   rules.Caller
	Results  []engine.EvaluationResult
	Duration time.Duration
	Metadata map[string]string
}

// NewRecord builds an audit record from an evaluation. Allowed is derived
// from the results.
func NewRecord(entry Entry) *Record {
	record := &Record{
		ID:        uuid.New().String(),
		Skill:     entry.Skill,
		Subject:   entry.Subject,
		Allowed:   engine.Allowed(entry.Results),
		Evaluated: len(entry.Results),
		Role:      entry.Caller.Role,
		Scope:     entry.Caller.Scope,
		Duration:  entry.Duration,
		Timestamp: time.Now().UTC(),
		Actions:   []string{},
	}

	if entry.Duration == 0 {
		for _, r := range entry.Results {
			record.Duration += r.Duration
		}
	}

	seen := make(map[rules.ActionType]bool)
	for _, r := range entry.Results {
		if !r.Matched {
			continue
		}
		matched := MatchedRule{
			RuleID:   r.RuleID,
			RuleName: r.RuleName,
			Priority: string(r.Priority),
			Reason:   r.Reason,
			Actions:  make([]string, 0, len(r.ActionsTriggered)),
		}
		for _, a := range r.ActionsTriggered {
			matched.Actions = append(matched.Actions, string(a.Type))
			if !seen[a.Type] {
				seen[a.Type] = true
				record.Actions = append(record.Actions, string(a.Type))
			}
		}
		record.MatchedRules = append(record.MatchedRules, matched)
	}

	if len(entry.Metadata) > 0 {
		record.Metadata = make(map[string]string, len(entry.Metadata))
		for k, v := range entry.Metadata {
			record.Metadata[k] = v
		}
	}
	return record
}

// Recorder writes audit records to storage in the background so evaluation
// callers never wait on the database.
type Recorder struct {
	storage    Storage
	config     *RecorderConfig
	recordChan chan *Record
	wg         sync.WaitGroup
	done       chan struct{}
	closeOnce  sync.Once
	mu         sync.RWMutex
	closed     bool
	logger     *slog.Logger
}

// NewRecorder creates a recorder and starts its background writer.
func NewRecorder(storage Storage, config *RecorderConfig, logger *slog.Logger) *Recorder {
	if config == nil {
		config = DefaultRecorderConfig()
	}
	cfg := *config
	config = &cfg
	if config.AsyncBuffer <= 0 {
		config.AsyncBuffer = 1000
	}
	if config.WriteTimeout <= 0 {
		config.WriteTimeout = 5 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}

	r := &Recorder{
		storage:    storage,
		config:     config,
		recordChan: make(chan *Record, config.AsyncBuffer),
		done:       make(chan struct{}),
		logger:     logger.With("component", "audit.recorder"),
	}

	r.wg.Add(1)
	go r.worker()

	r.logger.Debug("audit recorder initialized",
		"enabled", config.Enabled,
		"async_buffer", config.AsyncBuffer,
		"write_timeout", config.WriteTimeout,
	)

	return r
}

// Record builds a record from entry and enqueues it. It blocks only while
// the buffer is full, and returns the record so callers can log its ID.
func (r *Recorder) Record(ctx context.Context, entry Entry) (*Record, error) {
	record := NewRecord(entry)
	if err := r.Enqueue(ctx, record); err != nil {
		return nil, err
	}
	return record, nil
}

// Enqueue schedules record for writing.
func (r *Recorder) Enqueue(ctx context.Context, record *Record) error {
	if !r.config.Enabled {
		return nil
	}

	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.closed {
		return ErrRecorderClosed
	}

	select {
	case r.recordChan <- record:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close drains pending records and stops the background writer. The
// storage itself is not closed.
func (r *Recorder) Close() error {
	r.closeOnce.Do(func() {
		r.mu.Lock()
		r.closed = true
		r.mu.Unlock()

		close(r.done)
		r.wg.Wait()
		r.logger.Debug("audit recorder shut down")
	})
	return nil
}

func (r *Recorder) worker() {
	defer r.wg.Done()

	for {
		select {
		case record := <-r.recordChan:
			r.writeRecord(record)

		case <-r.done:
			for {
				select {
				case record := <-r.recordChan:
					r.writeRecord(record)
				default:
					return
				}
			}
		}
	}
}

func (r *Recorder) writeRecord(record *Record) {
	ctx, cancel := context.WithTimeout(context.Background(), r.config.WriteTimeout)
	defer cancel()

	start := time.Now()
	if err := r.storage.Store(ctx, record); err != nil {
		r.logger.Error("failed to store audit record",
			"record_id", record.ID,
			"skill", record.Skill,
			"error", err,
		)
		return
	}

	duration := time.Since(start)
	r.logger.Debug("audit record stored",
		"record_id", record.ID,
		"skill", record.Skill,
		"allowed", record.Allowed,
		"duration_ms", duration.Milliseconds(),
	)

	if duration > r.config.WriteTimeout/2 {
		r.logger.Warn("slow audit write",
			"record_id", record.ID,
			"duration_ms", duration.Milliseconds(),
		)
	}
}
