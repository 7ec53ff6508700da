package datafile

import (
	"fmt"

	"github.com/yaofengchn/flink-table-store/internal/compression"
	"github.com/yaofengchn/flink-table-store/internal/kv"
	"github.com/yaofengchn/flink-table-store/internal/manifest"
	"github.com/yaofengchn/flink-table-store/internal/vfs"
)

// PathFunc returns a fresh, unique path for the next rotated output file.
type PathFunc func() string

// RollingWriter accepts a key-ordered stream of records and rotates to a
// new file whenever the accumulated raw size reaches targetFileSize,
// producing one DataFileMeta per file.
//
// Rotation is sized against raw (pre-compression) bytes so the threshold
// is predictable regardless of the configured codec.
type RollingWriter struct {
	fs              vfs.FS
	nextPath        PathFunc
	level           int
	targetFileSize  int64
	compressionType compression.Type

	buf      []byte
	minKey   []byte
	maxKey   []byte
	minSeq   kv.SequenceNumber
	maxSeq   kv.SequenceNumber
	rowCount uint64
	hasRows  bool

	results []manifest.DataFileMeta
}

// NewRollingWriter creates a RollingWriter for one level's output.
func NewRollingWriter(fs vfs.FS, nextPath PathFunc, level int, targetFileSize int64, compressionType compression.Type) *RollingWriter {
	return &RollingWriter{
		fs:              fs,
		nextPath:        nextPath,
		level:           level,
		targetFileSize:  targetFileSize,
		compressionType: compressionType,
	}
}

// Add appends r to the current output file, rotating first if the file
// would otherwise exceed targetFileSize. A single record larger than
// targetFileSize still produces exactly one file containing just that
// record.
func (w *RollingWriter) Add(r kv.KeyValue) error {
	encoded := EncodeRecord(nil, r)

	if w.hasRows && int64(len(w.buf)+len(encoded)) > w.targetFileSize {
		if err := w.rotate(); err != nil {
			return err
		}
	}

	w.buf = append(w.buf, encoded...)
	if !w.hasRows || (kv.BytewiseComparator{}).Compare(r.Key, w.minKey) < 0 {
		w.minKey = append([]byte(nil), r.Key...)
	}
	if !w.hasRows || (kv.BytewiseComparator{}).Compare(r.Key, w.maxKey) > 0 {
		w.maxKey = append([]byte(nil), r.Key...)
	}
	if !w.hasRows || r.Seq < w.minSeq {
		w.minSeq = r.Seq
	}
	if !w.hasRows || r.Seq > w.maxSeq {
		w.maxSeq = r.Seq
	}
	w.rowCount++
	w.hasRows = true
	return nil
}

// Finish flushes any pending data and returns every DataFileMeta produced
// across the writer's lifetime.
func (w *RollingWriter) Finish() ([]manifest.DataFileMeta, error) {
	if w.hasRows {
		if err := w.rotate(); err != nil {
			return nil, err
		}
	}
	return w.results, nil
}

func (w *RollingWriter) rotate() error {
	block, err := encodeBlock(w.buf, w.compressionType)
	if err != nil {
		return err
	}

	path := w.nextPath()
	f, err := w.fs.Create(path)
	if err != nil {
		return fmt.Errorf("datafile: create %q: %w", path, err)
	}
	if _, err := f.Write(block); err != nil {
		_ = f.Close()
		return fmt.Errorf("datafile: write %q: %w", path, err)
	}
	if err := f.Sync(); err != nil {
		_ = f.Close()
		return fmt.Errorf("datafile: sync %q: %w", path, err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("datafile: close %q: %w", path, err)
	}

	w.results = append(w.results, manifest.DataFileMeta{
		FileName: path,
		MinKey:   w.minKey,
		MaxKey:   w.maxKey,
		MinSeq:   w.minSeq,
		MaxSeq:   w.maxSeq,
		RowCount: w.rowCount,
		FileSize: uint64(len(block)),
		Level:    w.level,
	})

	w.buf = nil
	w.minKey, w.maxKey = nil, nil
	w.minSeq, w.maxSeq = 0, 0
	w.rowCount = 0
	w.hasRows = false
	return nil
}

// Abort removes every file named in files from fs, ignoring removal
// errors (e.g. to discard the output of a failed or cancelled
// compaction).
func Abort(fs vfs.FS, files []manifest.DataFileMeta) {
	for _, f := range files {
		_ = fs.Remove(f.FileName)
	}
}
