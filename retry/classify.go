package retry

import (
	"errors"

	platformerrors "github.com/jmgilman/go/errors"

	"github.com/krisalay/callcache/types"
)

// Classifier reports whether a failure is transient.
type Classifier func(err error) bool

// transientError marks a failure as retryable without changing what it wraps.
type transientError struct {
	err error
}

func (e *transientError) Error() string { return e.err.Error() }
func (e *transientError) Unwrap() error { return e.err }

// Transient marks err as retryable for the default classifier.
func Transient(err error) error {
	if err == nil {
		return nil
	}
	return &transientError{err: err}
}

// IsTransient reports whether err, or anything it wraps, was marked by Transient.
func IsTransient(err error) bool {
	var te *transientError
	return errors.As(err, &te)
}

// Kinds classifies an error as retryable when it matches any of kinds via errors.Is.
func Kinds(kinds ...error) Classifier {
	return func(err error) bool {
		for _, k := range kinds {
			if errors.Is(err, k) {
				return true
			}
		}
		return false
	}
}

/*
DefaultClassifier returns the classifier used when none is configured.

A failure is retryable when:
- it was marked with Transient
- the errors library classifies it RETRYABLE (timeout, network, rate limit, unavailable)
- it is a result rejected by a result check
- it matches one of kinds

Everything else is fatal.
*/
func DefaultClassifier(kinds ...error) Classifier {
	match := Kinds(kinds...)
	return func(err error) bool {
		if err == nil {
			return false
		}
		return IsTransient(err) ||
			platformerrors.IsRetryable(err) ||
			errors.Is(err, types.ErrRejectedResult) ||
			match(err)
	}
}
