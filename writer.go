package mergetree

import (
	"context"
	"errors"

	"github.com/yaofengchn/flink-table-store/internal/kv"
	"github.com/yaofengchn/flink-table-store/internal/manifest"
	imt "github.com/yaofengchn/flink-table-store/internal/mergetree"
)

// KeyValue re-exports internal/kv.KeyValue so callers don't need to
// import internal/kv directly.
type KeyValue = kv.KeyValue

// DataFileMeta re-exports internal/manifest.DataFileMeta so callers don't
// need to import internal/manifest directly.
type DataFileMeta = manifest.DataFileMeta

// CommitIncrement is the file delta a Writer accumulated since the last
// PrepareCommit call, handed to the external Committer.
type CommitIncrement struct {
	NewFiles        []DataFileMeta
	CompactedBefore []DataFileMeta
	CompactedAfter  []DataFileMeta
}

// Writer is the write path for one (partition, bucket): Write buffers
// records, Sync flushes them to durable data files, and PrepareCommit
// hands the accumulated file delta to the external manifest service.
//
// A Writer is not safe for concurrent use of Write/Sync/PrepareCommit;
// background compaction runs independently and is safe to overlap with
// any of them.
type Writer struct {
	inner     *imt.Writer
	partition string
	bucket    int
	committer manifest.Committer
}

// Write buffers one record, assigning it the next sequence number in this
// writer's order. It blocks if L0 has reached NumSortedRunStopTrigger
// runs, until background compaction brings the run count back down.
func (w *Writer) Write(ctx context.Context, r KeyValue) error {
	return translateErr(w.inner.Write(ctx, r))
}

// Sync flushes the write buffer to durable data files without waiting on
// any in-flight or newly triggered compaction.
func (w *Writer) Sync(ctx context.Context) error {
	return translateErr(w.inner.Sync(ctx))
}

// PrepareCommit flushes the buffer and, if waitCompaction is true (or
// Options.CommitForceCompact was set), joins any in-flight compaction
// before returning the accumulated CommitIncrement. It does not commit
// the increment; the caller is responsible for handing it to the
// Committer (or use Writer.Commit below to do both).
func (w *Writer) PrepareCommit(ctx context.Context, waitCompaction bool) (CommitIncrement, error) {
	inc, err := w.inner.PrepareCommit(ctx, waitCompaction)
	if err != nil {
		return CommitIncrement{}, translateErr(err)
	}
	return CommitIncrement{
		NewFiles:        inc.NewFiles,
		CompactedBefore: inc.CompactedBefore,
		CompactedAfter:  inc.CompactedAfter,
	}, nil
}

// Commit calls PrepareCommit and, if it produced any file changes, hands
// the increment to the WriteCoordinator's Committer.
func (w *Writer) Commit(ctx context.Context, waitCompaction bool) (CommitIncrement, error) {
	inc, err := w.PrepareCommit(ctx, waitCompaction)
	if err != nil {
		return inc, err
	}
	if len(inc.NewFiles) == 0 && len(inc.CompactedBefore) == 0 && len(inc.CompactedAfter) == 0 {
		return inc, nil
	}
	if w.committer == nil {
		return inc, errors.New("mergetree: writer has no committer configured")
	}
	if err := w.committer.Commit(w.partition, w.bucket, inc.NewFiles, inc.CompactedBefore, inc.CompactedAfter); err != nil {
		return inc, IoFailure("commit", err)
	}
	return inc, nil
}

// Close marks the writer unusable and waits for any in-flight compaction
// to finish; a running compaction is not cancelled.
func (w *Writer) Close(ctx context.Context) error {
	return translateErr(w.inner.Close(ctx))
}

// Levels exposes the writer's current file layout, mainly for tests and
// diagnostics.
func (w *Writer) Levels() []DataFileMeta {
	return w.inner.Levels().Files()
}

func translateErr(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, imt.ErrPoisoned) {
		return WriterPoisoned(err)
	}
	if errors.Is(err, imt.ErrCancelled) {
		return errors.Join(ErrCancelled, err)
	}
	return err
}
