package datafile

import (
	"errors"
	"testing"

	"github.com/yaofengchn/flink-table-store/internal/compression"
	"github.com/yaofengchn/flink-table-store/internal/errs"
	"github.com/yaofengchn/flink-table-store/internal/kv"
	"github.com/yaofengchn/flink-table-store/internal/vfs"
)

func record(key string, seq uint64, val string) kv.KeyValue {
	return kv.KeyValue{Key: []byte(key), Seq: kv.SequenceNumber(seq), Kind: kv.KindAdd, Value: []byte(val)}
}

func TestRecordRoundTrip(t *testing.T) {
	r := record("hello", 7, "world")
	buf := EncodeRecord(nil, r)
	got, n, err := DecodeRecord(buf)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if n != len(buf) {
		t.Fatalf("expected to consume %d bytes, consumed %d", len(buf), n)
	}
	if string(got.Key) != "hello" || string(got.Value) != "world" || got.Seq != 7 || got.Kind != kv.KindAdd {
		t.Fatalf("round trip mismatch: %+v", got)
	}
}

func TestRollingWriterRotatesOnTargetSize(t *testing.T) {
	fs := vfs.NewMemFS()
	n := 0
	pathFn := func() string {
		n++
		return "f" + string(rune('0'+n))
	}

	w := NewRollingWriter(fs, pathFn, 1, 40, compression.SnappyCompression)
	for i := range 10 {
		if err := w.Add(record(string(rune('a'+i)), uint64(i), "0123456789")); err != nil {
			t.Fatalf("add: %v", err)
		}
	}
	metas, err := w.Finish()
	if err != nil {
		t.Fatalf("finish: %v", err)
	}
	if len(metas) < 2 {
		t.Fatalf("expected rotation to produce multiple files, got %d", len(metas))
	}
	for _, m := range metas {
		if m.Level != 1 {
			t.Fatalf("expected level 1, got %d", m.Level)
		}
	}
}

func TestRollingWriterSingleOversizedRecordProducesOneFile(t *testing.T) {
	fs := vfs.NewMemFS()
	w := NewRollingWriter(fs, func() string { return "big" }, 0, 4, compression.SnappyCompression)
	big := make([]byte, 100)
	if err := w.Add(kv.KeyValue{Key: []byte("k"), Seq: 1, Kind: kv.KindAdd, Value: big}); err != nil {
		t.Fatalf("add: %v", err)
	}
	metas, err := w.Finish()
	if err != nil {
		t.Fatalf("finish: %v", err)
	}
	if len(metas) != 1 {
		t.Fatalf("expected exactly one file, got %d", len(metas))
	}
}

func TestWriteThenReadRoundTrip(t *testing.T) {
	fs := vfs.NewMemFS()
	w := NewRollingWriter(fs, func() string { return "data-1" }, 2, 1<<20, compression.ZstdCompression)
	want := []kv.KeyValue{record("a", 1, "1"), record("b", 2, "2"), record("c", 3, "3")}
	for _, r := range want {
		if err := w.Add(r); err != nil {
			t.Fatalf("add: %v", err)
		}
	}
	metas, err := w.Finish()
	if err != nil {
		t.Fatalf("finish: %v", err)
	}
	if len(metas) != 1 {
		t.Fatalf("expected one file, got %d", len(metas))
	}

	reader, err := OpenReader(fs, metas[0])
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer reader.Close()

	var got []kv.KeyValue
	for {
		rec, ok := reader.Next()
		if !ok {
			break
		}
		got = append(got, rec)
	}
	if len(got) != len(want) {
		t.Fatalf("expected %d records, got %d", len(want), len(got))
	}
	for i := range want {
		if string(got[i].Key) != string(want[i].Key) || string(got[i].Value) != string(want[i].Value) {
			t.Fatalf("record %d mismatch: got %+v want %+v", i, got[i], want[i])
		}
	}
}

func TestCorruptFileDetected(t *testing.T) {
	fs := vfs.NewMemFS()
	w := NewRollingWriter(fs, func() string { return "data-1" }, 0, 1<<20, compression.NoCompression)
	if err := w.Add(record("a", 1, "1")); err != nil {
		t.Fatalf("add: %v", err)
	}
	metas, err := w.Finish()
	if err != nil {
		t.Fatalf("finish: %v", err)
	}

	f, err := fs.Create(metas[0].FileName)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := f.Write([]byte("not a valid data file")); err != nil {
		t.Fatalf("write: %v", err)
	}
	_ = f.Close()

	_, err = OpenReader(fs, metas[0])
	if err == nil {
		t.Fatalf("expected corruption to be detected")
	}
	if !errors.Is(err, errs.ErrCorruptFile) {
		t.Fatalf("expected ErrCorruptFile, got %v", err)
	}
}
