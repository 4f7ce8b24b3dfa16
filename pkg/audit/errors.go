package audit

import (
	"errors"
	"fmt"
	"time"

	"aiemployee/rulekit/pkg/store"
)

// ErrRecorderClosed is returned when recording after Close.
var ErrRecorderClosed = errors.New("audit recorder closed")

// StorageError is reported by audit backends. It is the rule store's error
// type so callers can match failures from either with one errors.As.
type StorageError = store.StorageError

// NewStorageError reports a failed audit storage operation.
func NewStorageError(backend, operation string, cause error) *StorageError {
	return store.NewStorageError("audit/"+backend, operation, cause)
}

// PruneError reports a retention pass that could not delete expired
// records.
type PruneError struct {
	Cutoff time.Time
	Cause  error
}

func (e *PruneError) Error() string {
	return fmt.Sprintf("prune records before %s: %v", e.Cutoff.Format(time.RFC3339), e.Cause)
}

func (e *PruneError) Unwrap() error {
	return e.Cause
}
