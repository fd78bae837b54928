package store

import (
	"errors"
)

var (
	// ErrNotFound is returned for lookups on a summary or timeline entry that
	// was never written. Paginated reads never return it: absence of data is
	// an empty page.
	ErrNotFound = errors.New("not found")

	// ErrUnavailable marks transient storage failures. Callers may retry with
	// backoff, but must not assume the operation had no effect: a failed
	// sequence increment may still have consumed an id, and a timed-out
	// append may have been durably written.
	ErrUnavailable = errors.New("storage unavailable")

	// ErrInvalidArgument marks malformed input: missing required fields,
	// non-positive limits, or cursors that do not decode.
	ErrInvalidArgument = errors.New("invalid argument")
)
