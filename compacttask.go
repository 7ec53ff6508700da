package mergetree

import (
	"context"

	"github.com/yaofengchn/flink-table-store/internal/compaction"
	"github.com/yaofengchn/flink-table-store/internal/manifest"
)

// CompactTask is the standalone compact writer: it recompacts a fixed,
// already-committed file set for one (partition, bucket) into a single
// top-level run, independent of any live Writer. cmd/compactjob drives
// this type directly.
type CompactTask struct {
	partition string
	bucket    int
	files     []DataFileMeta
	committer manifest.Committer
	task      compaction.CompactTask
}

// Run merges every input file into the top level, dropping merged DELETE
// results, and returns the produced files without committing them.
func (t *CompactTask) Run(ctx context.Context, topLevel int) ([]DataFileMeta, error) {
	out, err := t.task.Run(ctx, t.files, topLevel, true)
	if err != nil {
		return nil, IoFailure("compact task", err)
	}
	return out, nil
}

// RunAndCommit runs the compaction and, on success, commits the resulting
// file delta through the WriteCoordinator's Committer.
func (t *CompactTask) RunAndCommit(ctx context.Context, topLevel int) ([]DataFileMeta, error) {
	out, err := t.Run(ctx, topLevel)
	if err != nil {
		return nil, err
	}
	if t.committer == nil {
		return out, nil
	}
	if err := t.committer.Commit(t.partition, t.bucket, nil, t.files, out); err != nil {
		return out, IoFailure("commit compact task", err)
	}
	return out, nil
}
