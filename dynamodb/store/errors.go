package store

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrNotFound means the requested primary key is absent.
	ErrNotFound = errors.New("not found")
	// ErrConflict means a uniqueness invariant would be violated.
	ErrConflict = errors.New("conflict")
	// ErrInvalidArgument is a caller error and is never retried.
	ErrInvalidArgument = errors.New("invalid argument")
	// ErrPartialFailure means a multi-item operation completed only some of its writes.
	ErrPartialFailure = errors.New("partial failure")
	// ErrUnavailable is a transient backend error that outlived the retry budget.
	ErrUnavailable = errors.New("store unavailable")
	// ErrConditionFailed is returned by backends when a write condition does not hold.
	// Callers translate it to ErrConflict or ErrNotFound.
	ErrConditionFailed = errors.New("condition failed")
)

// PartialFailureError names the keys a multi-item write could not complete.
// Deleting an already deleted key is a no-op, so callers can retry with Keys.
type PartialFailureError struct {
	Op   string
	Keys []Key
	Err  error
}

func (e *PartialFailureError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s: %d keys incomplete", e.Op, len(e.Keys))
	if e.Err != nil {
		fmt.Fprintf(&b, ": %v", e.Err)
	}
	return b.String()
}

func (e *PartialFailureError) Is(target error) bool {
	return target == ErrPartialFailure
}

func (e *PartialFailureError) Unwrap() error {
	return e.Err
}
