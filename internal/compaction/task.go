package compaction

import (
	"context"
	"fmt"

	"github.com/yaofengchn/flink-table-store/internal/compression"
	"github.com/yaofengchn/flink-table-store/internal/datafile"
	"github.com/yaofengchn/flink-table-store/internal/kv"
	"github.com/yaofengchn/flink-table-store/internal/manifest"
	"github.com/yaofengchn/flink-table-store/internal/mergetree"
	"github.com/yaofengchn/flink-table-store/internal/vfs"
)

// CompactTask runs one merge-and-rewrite pass over a fixed set of input
// files, independent of any Manager or Levels instance. It backs both
// Manager's background compactions and the standalone compact job that
// recompacts an entire bucket offline.
type CompactTask struct {
	FS             vfs.FS
	Comparator     kv.Comparator
	MergeFunction  kv.MergeFunction
	Compression    compression.Type
	TargetFileSize int64
	NewPath        func(level int) string

	// Filter, if set, is applied to every merged record before it reaches
	// the output file; records it drops never appear in the compacted
	// output.
	Filter Filter

	// ChangelogSink, if set, receives every merged record that survives
	// Filter, in merge order. Used by ChangelogFullCompaction to
	// capture a complete post-merge changelog.
	ChangelogSink func(kv.KeyValue) error
}

// Run merges files (already grouped by BuildSections internally) into
// outputLevel, dropping merged DELETE results when dropDelete is set, and
// returns the produced DataFileMeta. On error, any partial output already
// written is removed before returning.
func (t CompactTask) Run(ctx context.Context, files []manifest.DataFileMeta, outputLevel int, dropDelete bool) ([]manifest.DataFileMeta, error) {
	sections := mergetree.BuildSections(t.Comparator, files)

	var outputs []manifest.DataFileMeta
	// written holds only the files this run created; single-file sections
	// reuse their input file and must never be removed on abort.
	var written []manifest.DataFileMeta
	for _, section := range sections {
		if err := ctx.Err(); err != nil {
			datafile.Abort(t.FS, written)
			return nil, err
		}

		if len(section.Files) == 1 && !dropDelete && t.Filter == nil && t.ChangelogSink == nil {
			meta := section.Files[0]
			meta.Level = outputLevel
			outputs = append(outputs, meta)
			continue
		}

		produced, err := t.mergeSection(section, outputLevel, dropDelete)
		if err != nil {
			datafile.Abort(t.FS, written)
			return nil, fmt.Errorf("compaction: merge section to level %d: %w", outputLevel, err)
		}
		outputs = append(outputs, produced...)
		written = append(written, produced...)
	}
	return outputs, nil
}

func (t CompactTask) mergeSection(section mergetree.Section, outputLevel int, dropDelete bool) ([]manifest.DataFileMeta, error) {
	reader := mergetree.NewReader(t.FS, t.Comparator, t.MergeFunction, dropDelete, []mergetree.Section{section})
	defer reader.Close()

	rw := datafile.NewRollingWriter(t.FS, func() string { return t.NewPath(outputLevel) }, outputLevel, t.TargetFileSize, t.Compression)
	for {
		rec, ok := reader.Next()
		if !ok {
			break
		}
		if t.Filter != nil {
			var keep bool
			rec, keep = t.Filter(outputLevel, rec)
			if !keep {
				continue
			}
		}
		if t.ChangelogSink != nil {
			if err := t.ChangelogSink(rec); err != nil {
				return nil, err
			}
		}
		if err := rw.Add(rec); err != nil {
			return nil, err
		}
	}
	if err := reader.Err(); err != nil {
		return nil, err
	}
	return rw.Finish()
}
