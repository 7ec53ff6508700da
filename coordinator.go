package mergetree

import (
	"context"
	"errors"
	"fmt"

	"github.com/yaofengchn/flink-table-store/internal/compaction"
	"github.com/yaofengchn/flink-table-store/internal/kv"
	"github.com/yaofengchn/flink-table-store/internal/levels"
	"github.com/yaofengchn/flink-table-store/internal/logging"
	"github.com/yaofengchn/flink-table-store/internal/manifest"
	"github.com/yaofengchn/flink-table-store/internal/mergetree"
	"github.com/yaofengchn/flink-table-store/internal/vfs"
)

// WriteCoordinator binds Options to a SnapshotReader, a Committer and a
// PathFactory (external collaborators the write engine consumes but does
// not implement) and hands out Writers scoped to one (partition, bucket)
// at a time.
//
// Generalizes a DB/ColumnFamilyHandle split, which let one process open
// writers against many column families sharing one manifest, into
// partition+bucket scoping over one external manifest service.
type WriteCoordinator struct {
	opts      *Options
	fs        vfs.FS
	snapshots manifest.SnapshotReader
	committer manifest.Committer
	paths     manifest.PathFactory
	exec      compaction.Executor
}

// NewWriteCoordinator builds a WriteCoordinator. opts may be nil, in which
// case DefaultOptions() is used. exec may be nil, in which case
// compaction runs on ordinary goroutines.
func NewWriteCoordinator(opts *Options, snapshots manifest.SnapshotReader, committer manifest.Committer, paths manifest.PathFactory, exec compaction.Executor) *WriteCoordinator {
	if opts == nil {
		opts = DefaultOptions()
	}
	fs := opts.FS
	if fs == nil {
		fs = vfs.Default()
	}
	return &WriteCoordinator{opts: opts, fs: fs, snapshots: snapshots, committer: committer, paths: paths, exec: exec}
}

// CreateWriter restores levels for (partition, bucket) from the latest
// snapshot, if any, and returns a Writer ready to accept writes.
func (c *WriteCoordinator) CreateWriter(ctx context.Context, partition string, bucket int) (*Writer, error) {
	var entries []manifest.ManifestEntry
	if id, ok := c.snapshots.LatestSnapshotID(); ok {
		var err error
		entries, err = c.snapshots.Scan(id).WithPartitionFilter(partition).WithBucket(bucket).Files()
		if err != nil {
			return nil, IoFailure("create writer", err)
		}
	}
	return c.buildWriter(partition, bucket, entries)
}

// CreateEmptyWriter returns a Writer over an empty Levels, ignoring any
// existing snapshot content for (partition, bucket). Used to bootstrap a
// brand new bucket without a snapshot round trip.
func (c *WriteCoordinator) CreateEmptyWriter(partition string, bucket int) (*Writer, error) {
	return c.buildWriter(partition, bucket, nil)
}

func (c *WriteCoordinator) buildWriter(partition string, bucket int, entries []manifest.ManifestEntry) (*Writer, error) {
	cmp := c.opts.Comparator
	if cmp == nil {
		cmp = kv.BytewiseComparator{}
	}
	mergeFn := c.opts.MergeFunction
	if mergeFn == nil {
		mergeFn = kv.LastValueWins{}
	}
	logger := logging.OrDefault(c.opts.Logger)

	lv, err := levels.Restore(cmp, c.opts.NumLevels, entries)
	if err != nil {
		return nil, fmt.Errorf("mergetree: restore levels for %s/%d: %w", partition, bucket, err)
	}

	var maxSeq kv.SequenceNumber
	for _, e := range entries {
		if e.Meta.MaxSeq > maxSeq {
			maxSeq = e.Meta.MaxSeq
		}
	}
	startSeq := maxSeq
	if len(entries) > 0 {
		startSeq++
	}

	newPath := func(level int) string { return c.paths.NewDataFilePath(partition, bucket, level) }

	var filter compaction.Filter
	if c.opts.CompactionFilter != nil {
		filter = compaction.Filter(c.opts.CompactionFilter)
	}
	var changelogSink func(kv.KeyValue) error
	if c.opts.ChangelogSink != nil {
		changelogSink = c.opts.ChangelogSink
	}

	var mgr *compaction.Manager
	var compactMgr mergetree.CompactManager
	if c.opts.WriteCompactionSkip {
		compactMgr = compaction.NoopManager{}
	} else {
		strategy := &compaction.UniversalStrategy{
			NumLevels:                     c.opts.NumLevels,
			MaxSizeAmplificationPercent:   c.opts.MaxSizeAmplificationPercent,
			SortedRunSizeRatio:            c.opts.SortedRunSizeRatio,
			NumSortedRunCompactionTrigger: c.opts.NumSortedRunCompactionTrigger,
			MaxSortedRunNum:               c.opts.MaxSortedRunNum,
		}
		mgr = compaction.NewManager(c.fs, cmp, mergeFn, c.opts.Compression, logger, strategy, lv, c.exec, newPath, c.opts.TargetFileSize)
		mgr.WithFilter(filter)
		if c.opts.ChangelogProducer == ChangelogFullCompaction {
			mgr.WithChangelogSink(changelogSink)
		}
		compactMgr = mgr
	}

	commitForceCompact := c.opts.CommitForceCompact || c.opts.ChangelogProducer == ChangelogFullCompaction

	cfg := mergetree.WriterConfig{
		FS:                         c.fs,
		Comparator:                 cmp,
		MergeFunction:              mergeFn,
		Logger:                     logger,
		Compression:                c.opts.Compression,
		TargetFileSize:             c.opts.TargetFileSize,
		WriteBufferSpillable:       c.opts.WriteBufferSpillable,
		LocalSortMaxNumFileHandles: c.opts.LocalSortMaxNumFileHandles,
		NumSortedRunStopTrigger:    c.opts.NumSortedRunStopTrigger,
		CommitForceCompact:         commitForceCompact,
		EmitChangelog:              c.opts.ChangelogProducer == ChangelogInput,
		ChangelogSink:              changelogSink,
		NewDataFilePath:            newPath,
		NewSpillPath:               func() string { return newPath(-1) },
	}

	inner := mergetree.NewWriter(cfg, lv, compactMgr, startSeq)
	if mgr != nil {
		// Route the background compaction's Levels mutation through the
		// writer's own lock, so it never races a concurrent flush.
		mgr.WithApplyUpdate(inner.ApplyCompactionUpdate)
	}
	return &Writer{inner: inner, partition: partition, bucket: bucket, committer: c.committer}, nil
}

// CreateCompactTask builds a standalone CompactTask that recompacts files
// already committed for (partition, bucket), without going through a live
// Writer's background compaction loop. Intended for an offline compact
// job driven by cmd/compactjob.
//
// files, when non-empty, is compacted as given. When empty or nil, the
// file set falls back to every file committed for (partition, bucket) in
// the latest snapshot.
func (c *WriteCoordinator) CreateCompactTask(partition string, bucket int, files ...manifest.DataFileMeta) (*CompactTask, error) {
	if len(files) == 0 {
		id, ok := c.snapshots.LatestSnapshotID()
		if !ok {
			return nil, errors.New("mergetree: no snapshot to compact")
		}
		entries, err := c.snapshots.Scan(id).WithPartitionFilter(partition).WithBucket(bucket).Files()
		if err != nil {
			return nil, IoFailure("create compact task", err)
		}
		files = make([]manifest.DataFileMeta, len(entries))
		for i, e := range entries {
			files[i] = e.Meta
		}
	}

	cmp := c.opts.Comparator
	if cmp == nil {
		cmp = kv.BytewiseComparator{}
	}
	mergeFn := c.opts.MergeFunction
	if mergeFn == nil {
		mergeFn = kv.LastValueWins{}
	}

	var filter compaction.Filter
	if c.opts.CompactionFilter != nil {
		filter = compaction.Filter(c.opts.CompactionFilter)
	}

	return &CompactTask{
		partition: partition,
		bucket:    bucket,
		files:     files,
		committer: c.committer,
		task: compaction.CompactTask{
			FS:             c.fs,
			Comparator:     cmp,
			MergeFunction:  mergeFn,
			Compression:    c.opts.Compression,
			TargetFileSize: c.opts.TargetFileSize,
			NewPath:        func(level int) string { return c.paths.NewDataFilePath(partition, bucket, level) },
			Filter:         filter,
			ChangelogSink:  c.opts.ChangelogSink,
		},
	}, nil
}
