package mergetree

import (
	"fmt"
	"io"

	"github.com/yaofengchn/flink-table-store/internal/datafile"
	"github.com/yaofengchn/flink-table-store/internal/kv"
	"github.com/yaofengchn/flink-table-store/internal/vfs"
)

// writeSpillRun writes records to path as a bare sequence of encoded
// records, with no compression or checksum: spill files are transient,
// local-only intermediates, never handed to the snapshot/manifest service.
func writeSpillRun(fs vfs.FS, path string, records []kv.KeyValue) error {
	f, err := fs.Create(path)
	if err != nil {
		return err
	}
	var buf []byte
	for _, r := range records {
		buf = datafile.EncodeRecord(buf, r)
	}
	if _, err := f.Write(buf); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}

func readSpillRun(fs vfs.FS, path string) ([]kv.KeyValue, error) {
	f, err := fs.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	raw, err := io.ReadAll(f)
	if err != nil {
		return nil, err
	}

	var records []kv.KeyValue
	for len(raw) > 0 {
		rec, n, err := datafile.DecodeRecord(raw)
		if err != nil {
			return nil, fmt.Errorf("corrupt spill run: %w", err)
		}
		records = append(records, rec)
		raw = raw[n:]
	}
	return records, nil
}
