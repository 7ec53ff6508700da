package mergetree

import (
	"context"

	"github.com/yaofengchn/flink-table-store/internal/manifest"
)

// CompactManager is consumed by Writer to keep Levels compacted in the
// background. internal/compaction provides the concrete implementations
// (Manager and NoopManager); Writer depends only on this interface so the
// two packages don't import each other.
type CompactManager interface {
	// TriggerCompaction asks the manager to reconsider compaction. If it
	// is idle and the strategy finds a unit, a CompactTask is submitted
	// in the background. A no-op if a compaction is already in flight.
	TriggerCompaction(ctx context.Context) error

	// WaitForCompletion blocks until no compaction is in flight, then
	// returns, and clears, any error the most recently finished
	// compaction failed with. It is the only method that reports a
	// background compaction failure; TriggerCompaction does not.
	WaitForCompletion(ctx context.Context) error

	// ConsumeResult returns and clears the files compacted away and the
	// files produced by every compaction committed since the last call.
	ConsumeResult() (before, after []manifest.DataFileMeta)

	// Close waits for any in-flight compaction to finish, returning its
	// error as WaitForCompletion does, and then refuses further
	// compactions. A running compaction is not cancelled or interrupted.
	Close(ctx context.Context) error
}
