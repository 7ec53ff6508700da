package datafile

import (
	"fmt"
	"io"

	"github.com/yaofengchn/flink-table-store/internal/kv"
	"github.com/yaofengchn/flink-table-store/internal/manifest"
	"github.com/yaofengchn/flink-table-store/internal/vfs"
)

// Reader yields the records of one data file in on-disk order (which is
// key order, since every file is produced by a RollingWriter fed a
// sorted stream).
type Reader struct {
	fs      vfs.FS
	meta    manifest.DataFileMeta
	records []kv.KeyValue
	pos     int
}

// OpenReader reads and validates meta's file in full, returning a Reader
// positioned before the first record.
func OpenReader(fs vfs.FS, meta manifest.DataFileMeta) (*Reader, error) {
	f, err := fs.Open(meta.FileName)
	if err != nil {
		return nil, fmt.Errorf("datafile: open %q: %w", meta.FileName, err)
	}
	defer f.Close()

	raw, err := io.ReadAll(f)
	if err != nil {
		return nil, fmt.Errorf("datafile: read %q: %w", meta.FileName, err)
	}

	payload, err := decodeBlock(raw)
	if err != nil {
		return nil, fmt.Errorf("datafile: %q: %w", meta.FileName, err)
	}

	records := make([]kv.KeyValue, 0, meta.RowCount)
	for len(payload) > 0 {
		rec, n, err := DecodeRecord(payload)
		if err != nil {
			return nil, fmt.Errorf("datafile: %q: %w", meta.FileName, err)
		}
		records = append(records, rec)
		payload = payload[n:]
	}

	return &Reader{fs: fs, meta: meta, records: records}, nil
}

// Next returns the next record, or ok=false once exhausted.
func (r *Reader) Next() (kv.KeyValue, bool) {
	if r.pos >= len(r.records) {
		return kv.KeyValue{}, false
	}
	rec := r.records[r.pos]
	r.pos++
	return rec, true
}

// Close releases any resources held by the reader. Reader reads files
// eagerly and in full, so Close is a no-op that always returns nil.
func (r *Reader) Close() error { return nil }
