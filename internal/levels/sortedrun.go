package levels

import "github.com/yaofengchn/flink-table-store/internal/manifest"

// SortedRun is an ordered, non-overlapping sequence of DataFileMeta, sorted
// by MinKey. Every L0 file is its own SortedRun (L0 runs may overlap each
// other); levels 1..N-1 each hold exactly one SortedRun.
//
// Generalized from a Version that kept one []FileMetaData per level
// without distinguishing the "is this one run or many" question L0
// forces on this model.
type SortedRun struct {
	Files []manifest.DataFileMeta
}

// Size returns the sum of file sizes in the run.
func (r SortedRun) Size() uint64 {
	return manifest.TotalSize(r.Files)
}

// Empty reports whether the run has no files.
func (r SortedRun) Empty() bool {
	return len(r.Files) == 0
}
