// Package errs holds the sentinel error kinds that cross package
// boundaries internal to the write engine: a corrupt data file detected
// below the mergetree package, and a compaction failure detected below
// the root package. The root package re-exports both under its own
// public error kinds so callers always errors.Is against the same
// variable regardless of which layer produced the error.
package errs

import (
	"errors"
	"fmt"
)

var (
	// ErrCorruptFile marks a file the codec rejected as malformed.
	ErrCorruptFile = errors.New("mergetree: corrupt file")

	// ErrCompactionFailed marks a non-fatal compaction failure, reported
	// at the next trigger rather than at the time it occurred.
	ErrCompactionFailed = errors.New("mergetree: compaction failed")
)

// CorruptFile wraps err as a corrupt-file failure with additional context.
func CorruptFile(op string, err error) error {
	return fmt.Errorf("%s: %w: %w", op, ErrCorruptFile, err)
}

// CompactionFailed wraps err as a deferred compaction failure.
func CompactionFailed(err error) error {
	return fmt.Errorf("%w: %w", ErrCompactionFailed, err)
}
