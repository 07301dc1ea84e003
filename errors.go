package txnpool

import (
	"errors"
	"fmt"
)

var (
	// ErrMissingConn is returned by New when no connection is configured
	ErrMissingConn = errors.New("txnpool: connection is required")

	// ErrMissingItemFunc is returned by New when no item callback is configured
	ErrMissingItemFunc = errors.New("txnpool: item callback is required")
)

// ConnError reports a failed begin, commit or rollback call.
type ConnError struct {
	Op  string // "begin", "commit" or "rollback"
	Err error
}

func (e *ConnError) Error() string {
	return fmt.Sprintf("txnpool: %s failed: %v", e.Op, e.Err)
}

func (e *ConnError) Unwrap() error {
	return e.Err
}

// ItemError reports a non-deadlock failure from an item callback.
// The batch has been rolled back and abandoned.
type ItemError struct {
	Err error
}

func (e *ItemError) Error() string {
	return fmt.Sprintf("txnpool: item callback failed: %v", e.Err)
}

func (e *ItemError) Unwrap() error {
	return e.Err
}

// RetryLimitError reports that consecutive deadlocks within one flush cycle
// reached the configured ceiling. The batch has been rolled back and
// abandoned. Err holds the last deadlock error observed.
type RetryLimitError struct {
	Deadlocks int
	Err       error
}

func (e *RetryLimitError) Error() string {
	return fmt.Sprintf("txnpool: giving up after %d consecutive deadlocks: %v", e.Deadlocks, e.Err)
}

func (e *RetryLimitError) Unwrap() error {
	return e.Err
}
