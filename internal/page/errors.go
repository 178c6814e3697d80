package page

import (
	"errors"
	"fmt"
	"time"
)

var (
	// ErrNotFound is returned when a lookup finds no matching element.
	ErrNotFound = errors.New("element not found")

	// ErrTimeout is matched by every *TimeoutError through errors.Is.
	ErrTimeout = errors.New("timed out waiting for page")

	// ErrStale is returned when an element handle no longer belongs to the
	// rendered document, typically after the widget re-rendered.
	ErrStale = errors.New("element is no longer attached to the page")
)

// TimeoutError is returned when a bounded readiness poll expires.
type TimeoutError struct {
	// What describes the condition that was awaited.
	What string

	// After is the configured wait that elapsed.
	After time.Duration

	// Last is the error reported by the final attempt, if any.
	Last error
}

// Error implements the error interface.
func (e *TimeoutError) Error() string {
	if e.Last != nil {
		return fmt.Sprintf("timed out after %s waiting for %s: %v", e.After, e.What, e.Last)
	}
	return fmt.Sprintf("timed out after %s waiting for %s", e.After, e.What)
}

// Is reports whether target is ErrTimeout.
func (e *TimeoutError) Is(target error) bool {
	return target == ErrTimeout
}

// Unwrap returns the error of the final attempt.
func (e *TimeoutError) Unwrap() error {
	return e.Last
}
