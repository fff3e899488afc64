package types

import (
	"fmt"
	"time"

	platformerrors "github.com/jmgilman/go/errors"
)

// Error codes specific to wrapped calls. Codes unknown to the errors
// library classify as permanent, so none of these is ever retried.
const (
	CodeUnhashableArguments platformerrors.ErrorCode = "UNHASHABLE_ARGUMENTS"
	CodeCapacityViolation   platformerrors.ErrorCode = "CACHE_CAPACITY_VIOLATION"
	CodeRetryExhausted      platformerrors.ErrorCode = "RETRY_EXHAUSTED"
	CodeCancelled           platformerrors.ErrorCode = "CANCELLED"
	CodeTimedOut            platformerrors.ErrorCode = "CALL_TIMED_OUT"
	CodeRejectedResult      platformerrors.ErrorCode = "REJECTED_RESULT"
)

var (
	// ErrUnhashableArguments is returned by key derivation when an argument has
	// no deterministic representation. The wrapper skips caching for that call.
	ErrUnhashableArguments = platformerrors.New(CodeUnhashableArguments, "unhashable arguments")

	// ErrCapacityViolation is returned at construction time for an invalid
	// store shape (maxsize < 1, ttl <= 0, unknown policy).
	ErrCapacityViolation = platformerrors.New(CodeCapacityViolation, "cache capacity violation")

	// ErrRetryExhausted matches every *RetryExhaustedError via errors.Is.
	ErrRetryExhausted = platformerrors.New(CodeRetryExhausted, "retry attempts exhausted")

	// ErrCancelled is joined with ctx.Err() when a call is aborted by cancellation.
	ErrCancelled = platformerrors.New(CodeCancelled, "call cancelled")

	// ErrTimedOut is returned when the call deadline does not leave room for
	// the next attempt.
	ErrTimedOut = platformerrors.New(CodeTimedOut, "call timed out")

	// ErrRejectedResult marks a result refused by a result check.
	ErrRejectedResult = platformerrors.New(CodeRejectedResult, "result rejected")
)

// RetryExhaustedError is the terminal failure after every permitted attempt
// failed with a retryable outcome.
type RetryExhaustedError struct {
	Attempts int
	Elapsed  time.Duration
	Last     error
}

func (e *RetryExhaustedError) Error() string {
	return fmt.Sprintf("retry attempts exhausted after %d attempts in %s: %v", e.Attempts, e.Elapsed, e.Last)
}

func (e *RetryExhaustedError) Unwrap() error { return e.Last }

// Is lets errors.Is(err, ErrRetryExhausted) match without unwrapping to Last.
func (e *RetryExhaustedError) Is(target error) bool {
	return target == ErrRetryExhausted
}

// RejectedResultError carries a result refused by a result check.
type RejectedResultError struct {
	Value any
}

func (e *RejectedResultError) Error() string {
	return fmt.Sprintf("result rejected: %v", e.Value)
}

func (e *RejectedResultError) Is(target error) bool {
	return target == ErrRejectedResult
}
