package mergetree

import (
	"context"
	"testing"

	"github.com/yaofengchn/flink-table-store/internal/compaction"
	"github.com/yaofengchn/flink-table-store/internal/manifest"
	"github.com/yaofengchn/flink-table-store/internal/vfs"
)

func newTestCoordinator(t *testing.T, opts *Options, store *manifest.MemorySnapshots) *WriteCoordinator {
	t.Helper()
	if opts == nil {
		opts = DefaultOptions()
	}
	opts.FS = vfs.NewMemFS()
	opts.NumSortedRunStopTrigger = 1000
	return NewWriteCoordinator(opts, store, store, &manifest.SequentialPathFactory{}, compaction.InlineExecutor{})
}

func TestCreateEmptyWriterWriteCommitRoundTrips(t *testing.T) {
	store := manifest.NewMemorySnapshots()
	coord := newTestCoordinator(t, nil, store)

	w, err := coord.CreateEmptyWriter("p1", 0)
	if err != nil {
		t.Fatalf("create empty writer: %v", err)
	}
	if err := w.Write(context.Background(), KeyValue{Key: []byte("a"), Value: []byte("1")}); err != nil {
		t.Fatalf("write: %v", err)
	}
	if err := w.Write(context.Background(), KeyValue{Key: []byte("b"), Value: []byte("2")}); err != nil {
		t.Fatalf("write: %v", err)
	}

	inc, err := w.Commit(context.Background(), false)
	if err != nil {
		t.Fatalf("commit: %v", err)
	}
	if len(inc.NewFiles) != 1 {
		t.Fatalf("expected 1 new file, got %d", len(inc.NewFiles))
	}

	if _, ok := store.LatestSnapshotID(); !ok {
		t.Fatalf("expected a snapshot to have been committed")
	}

	w2, err := coord.CreateWriter(context.Background(), "p1", 0)
	if err != nil {
		t.Fatalf("create writer from snapshot: %v", err)
	}
	files := w2.Levels()
	if len(files) != 1 {
		t.Fatalf("expected restored writer to see 1 committed file, got %d", len(files))
	}
}

func TestCreateWriterWithNoSnapshotYetIsEmpty(t *testing.T) {
	store := manifest.NewMemorySnapshots()
	coord := newTestCoordinator(t, nil, store)

	w, err := coord.CreateWriter(context.Background(), "p1", 0)
	if err != nil {
		t.Fatalf("create writer: %v", err)
	}
	if len(w.Levels()) != 0 {
		t.Fatalf("expected no files for a never-committed bucket")
	}
}

func TestCreateCompactTaskWithNoSnapshotFails(t *testing.T) {
	store := manifest.NewMemorySnapshots()
	coord := newTestCoordinator(t, nil, store)

	if _, err := coord.CreateCompactTask("p1", 0); err == nil {
		t.Fatalf("expected error creating a compact task with no committed snapshot")
	}
}

func TestCompactTaskRunAndCommitMergesCommittedFiles(t *testing.T) {
	store := manifest.NewMemorySnapshots()
	opts := DefaultOptions()
	opts.WriteCompactionSkip = true
	coord := newTestCoordinator(t, opts, store)

	w, err := coord.CreateEmptyWriter("p1", 0)
	if err != nil {
		t.Fatalf("create writer: %v", err)
	}
	if err := w.Write(context.Background(), KeyValue{Key: []byte("a"), Value: []byte("1")}); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, err := w.Commit(context.Background(), false); err != nil {
		t.Fatalf("commit 1: %v", err)
	}

	w2, err := coord.CreateWriter(context.Background(), "p1", 0)
	if err != nil {
		t.Fatalf("create writer 2: %v", err)
	}
	if err := w2.Write(context.Background(), KeyValue{Key: []byte("a"), Value: []byte("2")}); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, err := w2.Commit(context.Background(), false); err != nil {
		t.Fatalf("commit 2: %v", err)
	}

	task, err := coord.CreateCompactTask("p1", 0)
	if err != nil {
		t.Fatalf("create compact task: %v", err)
	}
	out, err := task.RunAndCommit(context.Background(), opts.NumLevels-1)
	if err != nil {
		t.Fatalf("run and commit: %v", err)
	}
	if len(out) != 1 {
		t.Fatalf("expected the two overlapping L0 files to merge into 1 output file, got %d", len(out))
	}

	w3, err := coord.CreateWriter(context.Background(), "p1", 0)
	if err != nil {
		t.Fatalf("create writer 3: %v", err)
	}
	files := w3.Levels()
	if len(files) != 1 {
		t.Fatalf("expected compacted snapshot to hold 1 file, got %d", len(files))
	}
}

func TestCreateCompactTaskWithExplicitFilesIgnoresLatestSnapshot(t *testing.T) {
	store := manifest.NewMemorySnapshots()
	opts := DefaultOptions()
	opts.WriteCompactionSkip = true
	coord := newTestCoordinator(t, opts, store)

	w, err := coord.CreateEmptyWriter("p1", 0)
	if err != nil {
		t.Fatalf("create writer: %v", err)
	}
	if err := w.Write(context.Background(), KeyValue{Key: []byte("a"), Value: []byte("1")}); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, err := w.Commit(context.Background(), false); err != nil {
		t.Fatalf("commit: %v", err)
	}

	id, ok := store.LatestSnapshotID()
	if !ok {
		t.Fatalf("expected a snapshot to have been committed")
	}
	entries, err := store.Scan(id).WithPartitionFilter("p1").WithBucket(0).Files()
	if err != nil {
		t.Fatalf("scan: %v", err)
	}
	explicit := make([]manifest.DataFileMeta, len(entries))
	for i, e := range entries {
		explicit[i] = e.Meta
	}

	// Committing a second file after capturing the snapshot proves the
	// explicit files argument, not the latest snapshot, drives the task.
	w2, err := coord.CreateWriter(context.Background(), "p1", 0)
	if err != nil {
		t.Fatalf("create writer 2: %v", err)
	}
	if err := w2.Write(context.Background(), KeyValue{Key: []byte("b"), Value: []byte("2")}); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, err := w2.Commit(context.Background(), false); err != nil {
		t.Fatalf("commit 2: %v", err)
	}

	task, err := coord.CreateCompactTask("p1", 0, explicit...)
	if err != nil {
		t.Fatalf("create compact task: %v", err)
	}
	if len(task.files) != 1 {
		t.Fatalf("expected the explicit single-file set to be used, got %d files", len(task.files))
	}
}

func TestChangelogInputStreamsPreMergeRecords(t *testing.T) {
	store := manifest.NewMemorySnapshots()
	opts := DefaultOptions()
	opts.ChangelogProducer = ChangelogInput
	var captured []KeyValue
	opts.ChangelogSink = func(r KeyValue) error {
		captured = append(captured, r)
		return nil
	}
	coord := newTestCoordinator(t, opts, store)

	w, err := coord.CreateEmptyWriter("p1", 0)
	if err != nil {
		t.Fatalf("create writer: %v", err)
	}
	if err := w.Write(context.Background(), KeyValue{Key: []byte("a"), Value: []byte("1")}); err != nil {
		t.Fatalf("write: %v", err)
	}
	if err := w.Write(context.Background(), KeyValue{Key: []byte("a"), Value: []byte("2")}); err != nil {
		t.Fatalf("write: %v", err)
	}

	if len(captured) != 2 {
		t.Fatalf("expected both pre-merge writes to reach the changelog sink, got %d", len(captured))
	}
	if string(captured[1].Value) != "2" {
		t.Fatalf("expected second write's raw value in the changelog, got %q", captured[1].Value)
	}
}

func TestCompactionFilterDropsRecordsDuringCompaction(t *testing.T) {
	store := manifest.NewMemorySnapshots()
	opts := DefaultOptions()
	opts.WriteCompactionSkip = true
	opts.CompactionFilter = func(level int, r KeyValue) (KeyValue, bool) {
		if string(r.Key) == "drop-me" {
			return r, false
		}
		return r, true
	}
	coord := newTestCoordinator(t, opts, store)

	w, err := coord.CreateEmptyWriter("p1", 0)
	if err != nil {
		t.Fatalf("create writer: %v", err)
	}
	if err := w.Write(context.Background(), KeyValue{Key: []byte("drop-me"), Value: []byte("x")}); err != nil {
		t.Fatalf("write: %v", err)
	}
	if err := w.Write(context.Background(), KeyValue{Key: []byte("keep-me"), Value: []byte("y")}); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, err := w.Commit(context.Background(), false); err != nil {
		t.Fatalf("commit: %v", err)
	}

	task, err := coord.CreateCompactTask("p1", 0)
	if err != nil {
		t.Fatalf("create compact task: %v", err)
	}
	out, err := task.RunAndCommit(context.Background(), opts.NumLevels-1)
	if err != nil {
		t.Fatalf("run and commit: %v", err)
	}
	if len(out) != 1 {
		t.Fatalf("expected 1 output file, got %d", len(out))
	}

	w2, err := coord.CreateWriter(context.Background(), "p1", 0)
	if err != nil {
		t.Fatalf("create writer 2: %v", err)
	}
	files := w2.Levels()
	if len(files) != 1 || files[0].RowCount != 1 {
		t.Fatalf("expected the compacted output to hold only the surviving key, got %+v", files)
	}
}

func TestWriteCompactionSkipNeverCompactsL0(t *testing.T) {
	store := manifest.NewMemorySnapshots()
	opts := DefaultOptions()
	opts.WriteCompactionSkip = true
	coord := newTestCoordinator(t, opts, store)

	w, err := coord.CreateEmptyWriter("p1", 0)
	if err != nil {
		t.Fatalf("create writer: %v", err)
	}
	for i := 0; i < 3; i++ {
		if err := w.Write(context.Background(), KeyValue{Key: []byte("k"), Value: []byte("v")}); err != nil {
			t.Fatalf("write %d: %v", i, err)
		}
		if _, err := w.Commit(context.Background(), false); err != nil {
			t.Fatalf("commit %d: %v", i, err)
		}
	}

	if len(w.Levels()) != 3 {
		t.Fatalf("expected one L0 run per flush with compaction skipped, got %d files", len(w.Levels()))
	}
}
