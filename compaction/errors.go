package compaction

import (
	"errors"
	"fmt"
)

// ErrSummarizationFailed indicates every summarization chunk failed, so no
// summary could be produced at all. Wrapped errors can be tested with
// errors.Is.
var ErrSummarizationFailed = errors.New("compaction: summarization failed")

// CompactionError carries the operation and user whose compaction failed.
type CompactionError struct {
	// Op is the pipeline step that failed, e.g. "summarize", "save".
	Op string

	// UserID identifies the session being compacted.
	UserID string

	// Err is the underlying error.
	Err error

	// Context holds optional diagnostic values such as token counts.
	Context map[string]any
}

func (e *CompactionError) Error() string {
	if e.UserID != "" {
		return fmt.Sprintf("compaction %s (user %s): %v", e.Op, e.UserID, e.Err)
	}
	return fmt.Sprintf("compaction %s: %v", e.Op, e.Err)
}

func (e *CompactionError) Unwrap() error { return e.Err }

// WithContext attaches a diagnostic key/value and returns the error for
// chaining.
func (e *CompactionError) WithContext(key string, value any) *CompactionError {
	if e.Context == nil {
		e.Context = make(map[string]any)
	}
	e.Context[key] = value
	return e
}

func newCompactionError(op, userID string, err error) *CompactionError {
	return &CompactionError{Op: op, UserID: userID, Err: err}
}
