package mergetree

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/yaofengchn/flink-table-store/internal/compression"
	"github.com/yaofengchn/flink-table-store/internal/datafile"
	"github.com/yaofengchn/flink-table-store/internal/kv"
	"github.com/yaofengchn/flink-table-store/internal/levels"
	"github.com/yaofengchn/flink-table-store/internal/logging"
	"github.com/yaofengchn/flink-table-store/internal/manifest"
	"github.com/yaofengchn/flink-table-store/internal/vfs"
)

// WriterConfig carries the subset of the root package's Options a single
// Writer needs, plus the path factories bound to this writer's
// (partition, bucket).
type WriterConfig struct {
	FS                         vfs.FS
	Comparator                 kv.Comparator
	MergeFunction              kv.MergeFunction
	Logger                     logging.Logger
	Compression                compression.Type
	TargetFileSize             int64
	WriteBufferSpillable       bool
	SpillChunkSize             int64
	LocalSortMaxNumFileHandles int
	NumSortedRunStopTrigger    int
	CommitForceCompact         bool

	// EmitChangelog, when true, streams every Write'd record to
	// ChangelogSink before it reaches the buffer (ChangelogInput).
	EmitChangelog bool
	// ChangelogSink receives pre-merge records when EmitChangelog is set.
	ChangelogSink func(kv.KeyValue) error

	// NewDataFilePath returns a fresh path for a new level-0 output file.
	NewDataFilePath func(level int) string
	// NewSpillPath returns a fresh path for a spillable-buffer chunk.
	NewSpillPath func() string
}

// CommitIncrement is the delta of file changes accumulated since the last
// time the caller prepared a commit.
type CommitIncrement struct {
	NewFiles        []manifest.DataFileMeta
	CompactedBefore []manifest.DataFileMeta
	CompactedAfter  []manifest.DataFileMeta
}

// Writer is the online write path for one (partition, bucket): buffer,
// Levels, and the CompactManager that keeps Levels compacted.
//
// Generalizes an in-memory write buffer plus write-controller backpressure
// into a buffer/Levels/CompactManager triple scoped to a single bucket.
type Writer struct {
	cfg        WriterConfig
	buf        buffer
	levels     *levels.Levels
	compactMgr CompactManager

	mu       sync.Mutex
	nextSeq  kv.SequenceNumber
	poisoned error
	closed   bool

	newFiles      []manifest.DataFileMeta
	pendingBefore []manifest.DataFileMeta
	pendingAfter  []manifest.DataFileMeta

	// fatalCount counts Fatalf calls observed through FatalHandler. Set
	// without w.mu since Fatalf can run synchronously from inside a
	// poison() call already holding it; poisoned itself is still the
	// field checkUsable consults.
	fatalCount atomic.Int64
}

// NewWriter builds a Writer over lv (already restored or empty) and
// compactMgr. startSeq is the sequence number given to the first write:
// pass one past the highest sequence number already present in lv, or 0
// for an empty bucket.
func NewWriter(cfg WriterConfig, lv *levels.Levels, compactMgr CompactManager, startSeq kv.SequenceNumber) *Writer {
	var buf buffer
	if cfg.WriteBufferSpillable {
		chunkSize := cfg.SpillChunkSize
		if chunkSize <= 0 {
			chunkSize = cfg.TargetFileSize / 4
		}
		buf = newSpillableBuffer(cfg.MergeFunction, cfg.FS, cfg.NewSpillPath, chunkSize, cfg.LocalSortMaxNumFileHandles)
	} else {
		buf = newInPlaceBuffer(cfg.MergeFunction)
	}
	w := &Writer{cfg: cfg, buf: buf, levels: lv, compactMgr: compactMgr, nextSeq: startSeq}
	if dl, ok := cfg.Logger.(*logging.DefaultLogger); ok {
		dl.SetFatalHandler(func(string) { w.fatalCount.Add(1) })
	}
	return w
}

// FatalCount reports how many times this writer's Logger has invoked
// Fatalf, for tests and observability. It does not affect checkUsable;
// poison() sets w.poisoned directly since FatalHandler runs synchronously
// from inside poison() and must not try to take w.mu itself.
func (w *Writer) FatalCount() int64 { return w.fatalCount.Load() }

// poison marks the writer unusable after a fatal flush/write failure,
// logging through Logger.Fatalf so a *logging.DefaultLogger's FatalHandler
// observes it, and returns cause for the caller to propagate.
func (w *Writer) poison(cause error) error {
	w.poisoned = cause
	if w.cfg.Logger != nil {
		w.cfg.Logger.Fatalf(logging.NSFlush+"writer poisoned: %v", cause)
	}
	return cause
}

// Levels exposes the writer's Levels for compaction strategies and tests.
func (w *Writer) Levels() *levels.Levels { return w.levels }

// Write buffers one record, assigning it the next sequence number in this
// writer's total order, and applies backpressure if L0 has reached
// NumSortedRunStopTrigger runs.
func (w *Writer) Write(ctx context.Context, r kv.KeyValue) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if err := w.checkUsable(); err != nil {
		return err
	}

	if err := w.waitForBackpressureLocked(ctx); err != nil {
		return err
	}

	r.Seq = w.nextSeq
	w.nextSeq++
	if w.cfg.EmitChangelog && w.cfg.ChangelogSink != nil {
		if err := w.cfg.ChangelogSink(r.Clone()); err != nil {
			return w.poison(err)
		}
	}
	if err := w.buf.add(r); err != nil {
		return w.poison(err)
	}
	return nil
}

func (w *Writer) waitForBackpressureLocked(ctx context.Context) error {
	for w.numL0Runs() >= w.cfg.NumSortedRunStopTrigger {
		// Unlocked across both calls: TriggerCompaction may run its unit
		// synchronously (InlineExecutor) and call back into
		// ApplyCompactionUpdate, which takes w.mu itself.
		w.mu.Unlock()
		err := w.compactMgr.TriggerCompaction(ctx)
		if err == nil {
			err = w.compactMgr.WaitForCompletion(ctx)
		}
		w.mu.Lock()
		if err != nil {
			return err
		}
		w.applyCompactionResultLocked()
	}
	return nil
}

func (w *Writer) numL0Runs() int {
	n := 0
	for _, lr := range w.levels.LevelSortedRuns() {
		if lr.Level == 0 {
			n++
		}
	}
	return n
}

// Sync flushes the buffer to durable data files without waiting on
// compaction.
func (w *Writer) Sync(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if err := w.checkUsable(); err != nil {
		return err
	}
	return w.flushLocked(ctx)
}

func (w *Writer) flushLocked(ctx context.Context) error {
	if w.buf.empty() {
		return nil
	}
	records, err := w.buf.drain()
	if err != nil {
		return w.poison(err)
	}
	if len(records) == 0 {
		return nil
	}

	rw := datafile.NewRollingWriter(w.cfg.FS, func() string { return w.cfg.NewDataFilePath(0) }, 0, w.cfg.TargetFileSize, w.cfg.Compression)
	for _, r := range records {
		if err := rw.Add(r); err != nil {
			return w.poison(err)
		}
	}
	metas, err := rw.Finish()
	if err != nil {
		return w.poison(err)
	}

	for _, m := range metas {
		if err := w.levels.Add(0, m); err != nil {
			return w.poison(err)
		}
	}
	w.newFiles = append(w.newFiles, metas...)

	// Unlocked for the same reason as waitForBackpressureLocked: a
	// synchronous compaction (InlineExecutor) calls back into
	// ApplyCompactionUpdate, which takes w.mu itself.
	w.mu.Unlock()
	err = w.compactMgr.TriggerCompaction(ctx)
	w.mu.Lock()
	if err != nil {
		if w.cfg.Logger != nil {
			w.cfg.Logger.Warnf(logging.NSCompact+"trigger after flush failed: %v", err)
		}
	}
	return nil
}

// ApplyCompactionUpdate applies a background compaction's result to this
// writer's Levels under w.mu, so a compaction running on its own goroutine
// never mutates Levels concurrently with a flush.
func (w *Writer) ApplyCompactionUpdate(before, after []manifest.DataFileMeta, outputLevel int) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.levels.Update(before, after, outputLevel)
}

// PrepareCommit flushes the buffer and, if waitCompaction or
// CommitForceCompact is set, joins any in-flight compaction before
// returning the accumulated file delta and clearing it.
func (w *Writer) PrepareCommit(ctx context.Context, waitCompaction bool) (CommitIncrement, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if err := w.checkUsable(); err != nil {
		return CommitIncrement{}, err
	}
	if err := w.flushLocked(ctx); err != nil {
		return CommitIncrement{}, err
	}

	if waitCompaction || w.cfg.CommitForceCompact {
		w.mu.Unlock()
		err := w.compactMgr.WaitForCompletion(ctx)
		w.mu.Lock()
		if err != nil {
			return CommitIncrement{}, err
		}
	}
	w.applyCompactionResultLocked()

	inc := CommitIncrement{NewFiles: w.newFiles}
	w.newFiles = nil
	before, after := w.pendingBefore, w.pendingAfter
	w.pendingBefore, w.pendingAfter = nil, nil
	inc.CompactedBefore = before
	inc.CompactedAfter = after
	return inc, nil
}

func (w *Writer) applyCompactionResultLocked() {
	before, after := w.compactMgr.ConsumeResult()
	if len(before) == 0 && len(after) == 0 {
		return
	}
	w.pendingBefore = append(w.pendingBefore, before...)
	w.pendingAfter = append(w.pendingAfter, after...)
}

// Close marks the writer unusable and closes its CompactManager, which
// waits for any in-flight compaction to finish; a running compaction is
// not cancelled.
func (w *Writer) Close(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return nil
	}
	w.closed = true
	return w.compactMgr.Close(ctx)
}

func (w *Writer) checkUsable() error {
	if w.poisoned != nil {
		return fmt.Errorf("%w: %w", ErrPoisoned, w.poisoned)
	}
	if w.closed {
		return fmt.Errorf("%w: writer closed", ErrCancelled)
	}
	return nil
}
