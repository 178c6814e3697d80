package config

import "errors"

// Configuration validation errors.
// These errors are returned by Config.Validate() and provide specific
// information about what is wrong with the configuration.
//
// Design decision: Package-level sentinel errors so callers can use
// errors.Is() while the messages stay readable for users.
var (
	// ErrNoTarget is returned when no target video id or URL is specified.
	ErrNoTarget = errors.New("no target specified: provide a video id or URL")

	// ErrInvalidTimeout is returned when the timeout is negative.
	// Use 0 to disable the per-target limit.
	ErrInvalidTimeout = errors.New("invalid timeout: must be non-negative")

	// ErrInvalidConcurrency is returned when the concurrency is not positive.
	ErrInvalidConcurrency = errors.New("invalid concurrency: must be positive")

	// ErrConflictingReportFormats is returned when both --json and --markdown
	// are specified. Only one output format can be used at a time.
	ErrConflictingReportFormats = errors.New("conflicting report formats: --json and --markdown cannot be used together")

	// ErrInvalidFormat is returned for a default output format other than xlsx or csv.
	ErrInvalidFormat = errors.New("invalid format: must be xlsx or csv")

	// ErrInvalidMaxThreads is returned when the thread limit is negative.
	ErrInvalidMaxThreads = errors.New("invalid max threads: must be non-negative")

	// ErrInvalidMaxReplyPages is returned when the reply page limit is negative.
	ErrInvalidMaxReplyPages = errors.New("invalid max reply pages: must be non-negative")

	// ErrInvalidExtractionPolicy is returned for a policy other than abort or skip.
	ErrInvalidExtractionPolicy = errors.New("invalid extraction policy: must be abort or skip")

	// ErrIncompleteCredentials is returned when only one of account and
	// password is configured.
	ErrIncompleteCredentials = errors.New("incomplete credentials: account and password must be set together")

	// ErrSharedFileOutput is returned when one xlsx or csv file would be
	// written by more than one target, or twice by the same one. Give each
	// target its own file or use a database output.
	ErrSharedFileOutput = errors.New("shared file output: each xlsx or csv file must belong to one target")
)
