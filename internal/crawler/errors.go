package crawler

import (
	"errors"
	"fmt"
	"strings"

	"github.com/nao1215/commentcrawl/internal/page"
)

// ErrEnd is returned by Walker.Next when there are no more threads.
// It is a terminal state rather than a failure.
var ErrEnd = errors.New("no more comment threads")

// ErrUnknownPolicy is returned when an extraction policy name is not recognized.
var ErrUnknownPolicy = errors.New("unknown extraction policy")

// AuthError is returned when a step of the login sequence fails, typically
// because a login control could not be located in time.
type AuthError struct {
	// Step names the login step ("login entry", "account field", ...).
	Step string

	// Err is the underlying error.
	Err error
}

// Error implements the error interface.
func (e *AuthError) Error() string {
	return fmt.Sprintf("login failed at %s: %v", e.Step, e.Err)
}

// Unwrap returns the underlying error.
func (e *AuthError) Unwrap() error {
	return e.Err
}

// ExtractionError is returned when a required field of a comment is missing.
// No partial record is produced for the thread it belongs to.
type ExtractionError struct {
	// Thread is the index of the thread in the feed.
	Thread int

	// Reply is the index of the reply within the thread, or -1 for the
	// top-level comment.
	Reply int

	// Field names the missing field.
	Field string

	// Err is the underlying lookup error.
	Err error
}

// Error implements the error interface.
func (e *ExtractionError) Error() string {
	if e.Reply < 0 {
		return fmt.Sprintf("thread %d: extract %s: %v", e.Thread, e.Field, e.Err)
	}
	return fmt.Sprintf("thread %d reply %d: extract %s: %v", e.Thread, e.Reply, e.Field, e.Err)
}

// Unwrap returns the underlying error.
func (e *ExtractionError) Unwrap() error {
	return e.Err
}

// ExtractionPolicy decides what happens to a thread whose comment cannot be
// extracted.
type ExtractionPolicy int

const (
	// PolicyAbort stops the crawl with the ExtractionError.
	PolicyAbort ExtractionPolicy = iota

	// PolicySkip logs the error, drops the thread and continues.
	PolicySkip
)

// String returns the policy name.
func (p ExtractionPolicy) String() string {
	switch p {
	case PolicySkip:
		return "skip"
	default:
		return "abort"
	}
}

// ParseExtractionPolicy parses "abort" or "skip". Empty means abort.
func ParseExtractionPolicy(s string) (ExtractionPolicy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "abort":
		return PolicyAbort, nil
	case "skip":
		return PolicySkip, nil
	default:
		return PolicyAbort, fmt.Errorf("%w: %q (want abort or skip)", ErrUnknownPolicy, s)
	}
}

// isAbsent reports whether err means an element is not (or no longer) rendered.
func isAbsent(err error) bool {
	return errors.Is(err, page.ErrNotFound) || errors.Is(err, page.ErrStale)
}
