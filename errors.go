package mergetree

// errors.go defines the error kinds surfaced by the write engine.
//
// Propagation policy:
//   - A background compaction failure is logged, wrapped as
//     CompactionFailed and leaves Levels unchanged. It is returned by the
//     compaction manager's next WaitForCompletion: prepareCommit reports
//     it when it joins compaction (waitCompaction or CommitForceCompact),
//     and so does a write blocked by backpressure. TriggerCompaction and a
//     prepareCommit that does not join compaction do not report it.
//   - IoFailure on the synchronous write path poisons the writer.
//   - CorruptFile is always fatal to the surrounding operation.
//   - Cancelled causes orderly cleanup and never leaks partial outputs.

import (
	"errors"
	"fmt"

	"github.com/yaofengchn/flink-table-store/internal/errs"
)

// Sentinel error kinds. Use errors.Is to test for a kind on a wrapped error.
// ErrCorruptFile and ErrCompactionFailed are defined in internal/errs so
// that internal/datafile and internal/compaction, which detect these
// conditions below this package, can return the same sentinel without an
// import cycle back through here.
var (
	// ErrIoFailure marks an error originating from the backing store.
	ErrIoFailure = errors.New("mergetree: io failure")

	// ErrCorruptFile marks a file the codec rejected as malformed.
	ErrCorruptFile = errs.ErrCorruptFile

	// ErrWriterPoisoned marks a writer that observed a fatal flush failure
	// and must not accept further operations.
	ErrWriterPoisoned = errors.New("mergetree: writer poisoned")

	// ErrCompactionFailed marks a non-fatal compaction failure, reported by
	// the next wait for compaction rather than at the time it occurred.
	ErrCompactionFailed = errs.ErrCompactionFailed

	// ErrCancelled marks an operation that was cancelled by its caller.
	ErrCancelled = errors.New("mergetree: cancelled")
)

// IoFailure wraps err as an I/O failure with additional context.
func IoFailure(op string, err error) error {
	return fmt.Errorf("%s: %w: %w", op, ErrIoFailure, err)
}

// CorruptFile wraps err as a corrupt-file failure with additional context.
func CorruptFile(op string, err error) error {
	return errs.CorruptFile(op, err)
}

// WriterPoisoned builds the error returned by every operation on a poisoned
// writer, chaining the original cause that poisoned it.
func WriterPoisoned(cause error) error {
	if cause == nil {
		return ErrWriterPoisoned
	}
	return fmt.Errorf("%w: poisoned by: %w", ErrWriterPoisoned, cause)
}

// CompactionFailed wraps err as a deferred compaction failure.
func CompactionFailed(err error) error {
	return errs.CompactionFailed(err)
}
