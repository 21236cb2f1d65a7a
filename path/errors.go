package path

import "errors"

// Usage errors. All are reported immediately to the caller and leave the path intact.
var (
	// ErrNotStepped is returned when successor accessors are used before the first Step call.
	ErrNotStepped = errors.New("path has not been stepped")

	// ErrErrored is returned when stepping a path that captured a transfer failure. Use Retry.
	ErrErrored = errors.New("cannot step an errored path")

	// ErrNotErrored is returned when Retry is called on a path with no captured failure.
	ErrNotErrored = errors.New("path has no captured failure to retry")

	// ErrMergeAddrMismatch is returned when merging paths whose current addresses differ.
	ErrMergeAddrMismatch = errors.New("cannot merge paths at different addresses")

	// ErrFilterConflict is returned when an action filter specifies both a read and a write
	// location.
	ErrFilterConflict = errors.New("read-from and write-to filters are mutually exclusive")
)
