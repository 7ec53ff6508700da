package compaction

import (
	"context"
	"fmt"
	"sync"

	"github.com/yaofengchn/flink-table-store/internal/compression"
	"github.com/yaofengchn/flink-table-store/internal/datafile"
	"github.com/yaofengchn/flink-table-store/internal/errs"
	"github.com/yaofengchn/flink-table-store/internal/kv"
	"github.com/yaofengchn/flink-table-store/internal/levels"
	"github.com/yaofengchn/flink-table-store/internal/logging"
	"github.com/yaofengchn/flink-table-store/internal/manifest"
	"github.com/yaofengchn/flink-table-store/internal/vfs"
)

// Manager implements mergetree.CompactManager on top of UniversalStrategy,
// running at most one CompactTask at a time on an Executor.
//
// Generalizes a single-job-at-a-time compaction scheduler that ran
// compaction jobs off a shared thread pool keyed by column family, down
// to one Manager per (partition, bucket).
type Manager struct {
	fs          vfs.FS
	cmp         kv.Comparator
	mergeFn     kv.MergeFunction
	compression compression.Type
	logger      logging.Logger
	strategy    *UniversalStrategy
	lv          *levels.Levels
	exec        Executor
	newPath     func(level int) string
	targetFileSize int64
	filter         Filter
	changelogSink  func(kv.KeyValue) error
	applyUpdate    func(before, after []manifest.DataFileMeta, outputLevel int) error

	mu      sync.Mutex
	running bool
	done    chan struct{}
	lastErr error

	resultBefore []manifest.DataFileMeta
	resultAfter  []manifest.DataFileMeta

	closed bool
}

// NewManager builds a Manager driving compactions for lv. targetFileSize
// bounds every compaction output file the same way it bounds flush output
// files.
func NewManager(fs vfs.FS, cmp kv.Comparator, mergeFn kv.MergeFunction, compressionType compression.Type,
	logger logging.Logger, strategy *UniversalStrategy, lv *levels.Levels, exec Executor, newPath func(level int) string,
	targetFileSize int64) *Manager {
	if exec == nil {
		exec = GoExecutor{}
	}
	return &Manager{
		fs:             fs,
		cmp:            cmp,
		mergeFn:        mergeFn,
		compression:    compressionType,
		logger:         logger,
		strategy:       strategy,
		lv:             lv,
		exec:           exec,
		newPath:        newPath,
		targetFileSize: targetFileSize,
	}
}

// WithFilter sets the compaction filter applied to every merged record in
// every background compaction this Manager runs. Returns m for chaining.
func (m *Manager) WithFilter(f Filter) *Manager {
	m.filter = f
	return m
}

// WithChangelogSink sets the sink that receives every merged record
// surviving the filter, for ChangelogFullCompaction. Returns m
// for chaining.
func (m *Manager) WithChangelogSink(sink func(kv.KeyValue) error) *Manager {
	m.changelogSink = sink
	return m
}

// WithApplyUpdate sets the callback that applies a finished compaction's
// before/after file set to Levels. When set, run() calls this instead of
// mutating Levels itself, so a Writer can route the mutation through its
// own lock and keep it serialized with flush. When unset, run() applies
// the update directly to Levels with m.mu released, holding no lock at
// all, which is only safe when nothing else touches the same Levels
// concurrently.
func (m *Manager) WithApplyUpdate(f func(before, after []manifest.DataFileMeta, outputLevel int) error) *Manager {
	m.applyUpdate = f
	return m
}

// TriggerCompaction implements mergetree.CompactManager.
func (m *Manager) TriggerCompaction(ctx context.Context) error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return fmt.Errorf("compaction: manager closed")
	}
	if m.running {
		m.mu.Unlock()
		return nil
	}

	unit, ok := m.strategy.Pick(m.lv.LevelSortedRuns())
	if !ok {
		m.mu.Unlock()
		return nil
	}

	m.running = true
	m.done = make(chan struct{})
	done := m.done
	m.mu.Unlock()

	// exec.Go may run fn synchronously (InlineExecutor), which calls back
	// into m.run and locks m.mu: must not hold the lock across this call.
	m.exec.Go(func() { m.run(unit, done) })
	return nil
}

// WaitForCompletion implements mergetree.CompactManager.
func (m *Manager) WaitForCompletion(ctx context.Context) error {
	m.mu.Lock()
	if !m.running {
		err := m.lastErr
		m.lastErr = nil
		m.mu.Unlock()
		return err
	}
	done := m.done
	m.mu.Unlock()

	select {
	case <-done:
	case <-ctx.Done():
		return ctx.Err()
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	err := m.lastErr
	m.lastErr = nil
	return err
}

// ConsumeResult implements mergetree.CompactManager.
func (m *Manager) ConsumeResult() (before, after []manifest.DataFileMeta) {
	m.mu.Lock()
	defer m.mu.Unlock()
	before, after = m.resultBefore, m.resultAfter
	m.resultBefore, m.resultAfter = nil, nil
	return before, after
}

// Close implements mergetree.CompactManager. It does not interrupt a
// running task; it waits for the current one to finish.
func (m *Manager) Close(ctx context.Context) error {
	err := m.WaitForCompletion(ctx)
	m.mu.Lock()
	m.closed = true
	m.mu.Unlock()
	return err
}

func (m *Manager) run(unit Unit, done chan struct{}) {
	before := unit.InputFiles()
	task := CompactTask{
		FS:             m.fs,
		Comparator:     m.cmp,
		MergeFunction:  m.mergeFn,
		Compression:    m.compression,
		TargetFileSize: m.targetFileSize,
		NewPath:        m.newPath,
		Filter:         m.filter,
		ChangelogSink:  m.changelogSink,
	}
	after, err := task.Run(context.Background(), before, unit.OutputLevel, unit.DropDelete)

	// Apply the Levels mutation outside m.mu: when m.applyUpdate is set
	// (a live Writer), it takes w.mu itself, and m.mu must not be held
	// across that call or the two locks could deadlock against each
	// other under concurrent flush and compaction.
	var applyErr error
	if err == nil {
		if m.applyUpdate != nil {
			applyErr = m.applyUpdate(before, after, unit.OutputLevel)
		} else {
			applyErr = m.lv.Update(before, after, unit.OutputLevel)
		}
	}

	m.mu.Lock()
	m.running = false
	switch {
	case err != nil:
		if m.logger != nil {
			m.logger.Errorf(logging.NSCompact+"unit to level %d failed: %v", unit.OutputLevel, err)
		}
		m.lastErr = errs.CompactionFailed(err)
	case applyErr != nil:
		if m.logger != nil {
			m.logger.Errorf(logging.NSCompact+"apply unit to level %d failed: %v", unit.OutputLevel, applyErr)
		}
		m.lastErr = errs.CompactionFailed(applyErr)
		datafile.Abort(m.fs, after)
	default:
		m.resultBefore = append(m.resultBefore, before...)
		m.resultAfter = append(m.resultAfter, after...)
	}
	m.mu.Unlock()
	close(done)
}
