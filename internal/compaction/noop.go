package compaction

import (
	"context"

	"github.com/yaofengchn/flink-table-store/internal/manifest"
)

// NoopManager implements mergetree.CompactManager by never compacting.
// Selected when Options.WriteCompactionSkip is set, for bulk-load writers
// that defer all compaction to a later standalone compact job.
type NoopManager struct{}

// TriggerCompaction implements mergetree.CompactManager.
func (NoopManager) TriggerCompaction(ctx context.Context) error { return nil }

// WaitForCompletion implements mergetree.CompactManager.
func (NoopManager) WaitForCompletion(ctx context.Context) error { return nil }

// ConsumeResult implements mergetree.CompactManager.
func (NoopManager) ConsumeResult() (before, after []manifest.DataFileMeta) { return nil, nil }

// Close implements mergetree.CompactManager.
func (NoopManager) Close(ctx context.Context) error { return nil }
