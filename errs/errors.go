// Package errs defines the sentinel errors shared across the columnfile
// packages. Call sites wrap these with fmt.Errorf("%w: ...") so callers
// can classify failures with errors.Is while still seeing the detail.
package errs

import "errors"

// Writer misuse errors.
var (
	// ErrFinalized is returned when a writer is used after Finalize.
	ErrFinalized = errors.New("writer already finalized")

	// ErrDuplicateColumn is returned when a single row contains the same
	// column id more than once.
	ErrDuplicateColumn = errors.New("duplicate column in row")
)

// Corruption errors. These are fatal for the enclosing segment; the
// reader does not attempt to resynchronize.
var (
	// ErrBadMagic is returned when a segment header does not start with
	// the expected magic bytes.
	ErrBadMagic = errors.New("bad segment magic")

	// ErrUnknownCompression is returned when a segment declares a
	// compression tag this library does not implement.
	ErrUnknownCompression = errors.New("unknown compression tag")

	// ErrTruncatedBlock is returned when a field block or segment header
	// ends in the middle of an entry.
	ErrTruncatedBlock = errors.New("truncated block")

	// ErrBadVarint is returned when a varint is malformed or overflows.
	ErrBadVarint = errors.New("malformed varint")

	// ErrInvalidPrefix is returned when a run declares a shared prefix
	// longer than the previously reconstructed value.
	ErrInvalidPrefix = errors.New("shared prefix exceeds previous value")

	// ErrInvalidRunFlag is returned when a run entry carries a flag byte
	// that is neither the value nor the null marker.
	ErrInvalidRunFlag = errors.New("invalid run flag")

	// ErrSegmentOrder is returned when segment column descriptors are not
	// in ascending column id order.
	ErrSegmentOrder = errors.New("column descriptors out of order")
)

// Reader misuse errors.
var (
	// ErrColumnNotSelected is returned by Peek/Get for a column that is
	// not part of the current column filter.
	ErrColumnNotSelected = errors.New("column not in current column filter")

	// ErrEndOfFile is returned when rows are requested past the end of
	// the input.
	ErrEndOfFile = errors.New("no more rows")
)
