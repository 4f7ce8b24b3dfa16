package storage

import (
	"context"
	"sort"
	"sync"

	"aiemployee/rulekit/pkg/audit"
)

// MemoryStorage implements audit.Storage with an in-memory map. Records are
// lost on exit; it backs tests and the CLI when no database is configured.
type MemoryStorage struct {
	records map[string]*audit.Record
	mu      sync.RWMutex
}

// NewMemoryStorage creates a new in-memory audit storage.
func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{
		records: make(map[string]*audit.Record),
	}
}

// Store persists a copy of record.
func (s *MemoryStorage) Store(ctx context.Context, record *audit.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.records[record.ID] = record.Clone()
	return nil
}

// Query returns copies of the matching records, newest first.
func (s *MemoryStorage) Query(ctx context.Context, query *audit.Query) ([]*audit.Record, error) {
	s.mu.RLock()
	results := make([]*audit.Record, 0)
	for _, record := range s.records {
		if query.Matches(record) {
			results = append(results, record.Clone())
		}
	}
	s.mu.RUnlock()

	sort.Slice(results, func(i, j int) bool {
		if !results[i].Timestamp.Equal(results[j].Timestamp) {
			return results[i].Timestamp.After(results[j].Timestamp)
		}
		return results[i].ID < results[j].ID
	})

	limit := DefaultQueryLimit
	offset := 0
	if query != nil {
		if query.Limit > 0 {
			limit = query.Limit
		}
		offset = query.Offset
	}

	if offset >= len(results) {
		return []*audit.Record{}, nil
	}
	results = results[offset:]
	if len(results) > limit {
		results = results[:limit]
	}
	return results, nil
}

// Count returns the number of matching records.
func (s *MemoryStorage) Count(ctx context.Context, query *audit.Query) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var count int64
	for _, record := range s.records {
		if query.Matches(record) {
			count++
		}
	}
	return count, nil
}

// Delete removes the matching records.
func (s *MemoryStorage) Delete(ctx context.Context, query *audit.Query) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var count int64
	for id, record := range s.records {
		if query.Matches(record) {
			delete(s.records, id)
			count++
		}
	}
	return count, nil
}

// Close releases the records.
func (s *MemoryStorage) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.records = make(map[string]*audit.Record)
	return nil
}
