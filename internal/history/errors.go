package history

import (
	"errors"
	"fmt"
	"time"
)

// Errors returned by the history store.
//
// Typed errors match these sentinels with errors.Is:
//
//	if errors.Is(err, history.ErrConcurrentAppend) {
//	    // retry the CI job
//	}
var (
	// ErrRevisionConflict is returned by a Medium when the revision passed
	// to Store is no longer current.
	ErrRevisionConflict = errors.New("revision conflict")

	// ErrOutOfOrder is returned when a run is dated before the latest run
	// already in its group.
	ErrOutOfOrder = errors.New("run is out of order")

	// ErrCorruptHistory is returned when stored content cannot be decoded.
	ErrCorruptHistory = errors.New("corrupt benchmark history")

	// ErrConcurrentAppend is returned when every compare-and-swap attempt
	// lost to another writer.
	ErrConcurrentAppend = errors.New("concurrent append retries exhausted")

	// ErrStoreTimeout is returned when a medium call exceeds its deadline.
	ErrStoreTimeout = errors.New("store operation timed out")

	// ErrNotEmpty is returned by Migrate when the destination already holds
	// history.
	ErrNotEmpty = errors.New("destination already has history")
)

// OutOfOrderError reports a run whose date precedes the group's latest run.
type OutOfOrderError struct {
	Group      string
	Date       int64
	LastDate   int64
	LastCommit string
}

func (e *OutOfOrderError) Error() string {
	return fmt.Sprintf("run date %d is earlier than latest run %s (%d) in group %q",
		e.Date, e.LastCommit, e.LastDate, e.Group)
}

func (e *OutOfOrderError) Is(target error) bool { return target == ErrOutOfOrder }

// CorruptHistoryError wraps the decode failure of stored content. Corrupt
// history is reported, never repaired.
type CorruptHistoryError struct {
	Medium string
	Err    error
}

func (e *CorruptHistoryError) Error() string {
	return fmt.Sprintf("corrupt benchmark history in %s: %v", e.Medium, e.Err)
}

func (e *CorruptHistoryError) Unwrap() error { return e.Err }

func (e *CorruptHistoryError) Is(target error) bool { return target == ErrCorruptHistory }

// ConcurrentAppendError reports an operation that lost every CAS attempt.
type ConcurrentAppendError struct {
	Group    string
	Attempts int
}

func (e *ConcurrentAppendError) Error() string {
	return fmt.Sprintf("group %q: gave up after %d conflicting write attempts", e.Group, e.Attempts)
}

func (e *ConcurrentAppendError) Is(target error) bool { return target == ErrConcurrentAppend }

// StoreTimeoutError reports a medium call that did not finish in time.
type StoreTimeoutError struct {
	Op      string
	Timeout time.Duration
	Err     error
}

func (e *StoreTimeoutError) Error() string {
	if e.Timeout > 0 {
		return fmt.Sprintf("%s timed out after %s: %v", e.Op, e.Timeout, e.Err)
	}
	return fmt.Sprintf("%s timed out: %v", e.Op, e.Err)
}

func (e *StoreTimeoutError) Unwrap() error { return e.Err }

func (e *StoreTimeoutError) Is(target error) bool { return target == ErrStoreTimeout }

// IsRetryable returns true if re-running the whole CI job may succeed.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	return errors.Is(err, ErrConcurrentAppend) || errors.Is(err, ErrStoreTimeout)
}

// IsIntegrity returns true if the error means the stored history or the
// submitted run is inconsistent and a human must look at it.
func IsIntegrity(err error) bool {
	if err == nil {
		return false
	}
	return errors.Is(err, ErrOutOfOrder) || errors.Is(err, ErrCorruptHistory)
}
