package sink

import "errors"

var (
	// ErrUnsupportedOutput is returned when an output URI matches no sink.
	ErrUnsupportedOutput = errors.New("unsupported output")

	// ErrClosed is returned by Emit after Close.
	ErrClosed = errors.New("sink is closed")

	// ErrEmptyTable is returned when a table has no header row.
	ErrEmptyTable = errors.New("table has no header row")
)
