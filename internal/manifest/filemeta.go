// Package manifest describes the immutable file metadata the write engine
// produces and the external collaborators it consumes to learn the
// current committed file set and to name new files.
//
// Generalized from a single-key-range SST descriptor (FileMetaData,
// FileDescriptor) into a partition/bucket-scoped DataFileMeta, with the
// version-set persistence machinery left to the external manifest
// service this package only consumes.
package manifest

import "github.com/yaofengchn/flink-table-store/internal/kv"

// DataFileMeta is an immutable descriptor of one written data file: its
// name, key range, sequence range, row count, size, and the level it
// belongs to. Two metas overlap iff their [MinKey, MaxKey] ranges
// intersect under the comparator.
type DataFileMeta struct {
	FileName string
	MinKey   []byte
	MaxKey   []byte
	MinSeq   kv.SequenceNumber
	MaxSeq   kv.SequenceNumber
	RowCount uint64
	FileSize uint64
	Level    int
}

// Overlaps reports whether a and b's key ranges intersect under cmp.
func Overlaps(cmp kv.Comparator, a, b DataFileMeta) bool {
	if cmp.Compare(a.MinKey, b.MaxKey) > 0 {
		return false
	}
	if cmp.Compare(b.MinKey, a.MaxKey) > 0 {
		return false
	}
	return true
}

// KeyRange returns the smallest MinKey and largest MaxKey across files,
// or (nil, nil) if files is empty.
func KeyRange(cmp kv.Comparator, files []DataFileMeta) (min, max []byte) {
	for i, f := range files {
		if i == 0 || cmp.Compare(f.MinKey, min) < 0 {
			min = f.MinKey
		}
		if i == 0 || cmp.Compare(f.MaxKey, max) > 0 {
			max = f.MaxKey
		}
	}
	return min, max
}

// TotalSize returns the sum of FileSize across files.
func TotalSize(files []DataFileMeta) uint64 {
	var total uint64
	for _, f := range files {
		total += f.FileSize
	}
	return total
}
