package index

import (
	"errors"
	"fmt"
)

var (
	// ErrClosed is returned when operating on a closed index or writer.
	ErrClosed = errors.New("index is closed")

	// ErrInvalidQuery is the sentinel all query validation failures wrap.
	ErrInvalidQuery = errors.New("invalid query")
)

// InvalidQueryError describes a malformed query. It is user-correctable
// and distinct from index failures.
//
// It satisfies errors.Is(err, ErrInvalidQuery).
type InvalidQueryError struct {
	Reason string
}

func (e *InvalidQueryError) Error() string {
	return fmt.Sprintf("invalid query: %s", e.Reason)
}

func (e *InvalidQueryError) Unwrap() error { return ErrInvalidQuery }

func invalidQueryf(format string, args ...any) error {
	return &InvalidQueryError{Reason: fmt.Sprintf(format, args...)}
}

// WriteError indicates a failure while building or applying index
// documents. Callers should retry with backoff or escalate.
//
// The underlying cause can be accessed via errors.Unwrap.
type WriteError struct {
	Op    string // "upsert", "remove" or "commit"
	ID    string // entry id, empty for batch-level failures
	cause error
}

func (e *WriteError) Error() string {
	if e.ID == "" {
		return fmt.Sprintf("index write %s: %v", e.Op, e.cause)
	}
	return fmt.Sprintf("index write %s %s: %v", e.Op, e.ID, e.cause)
}

func (e *WriteError) Unwrap() error { return e.cause }

// ReadError indicates a failure while executing a query. Queries either
// fully succeed or fail with a ReadError; no partial results leak out.
//
// The underlying cause can be accessed via errors.Unwrap.
type ReadError struct {
	cause error
}

func (e *ReadError) Error() string {
	return fmt.Sprintf("index read: %v", e.cause)
}

func (e *ReadError) Unwrap() error { return e.cause }
