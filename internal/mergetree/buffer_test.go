package mergetree

import (
	"testing"

	"github.com/yaofengchn/flink-table-store/internal/kv"
	"github.com/yaofengchn/flink-table-store/internal/vfs"
)

func entry(key string, seq uint64, val string) kv.KeyValue {
	return kv.KeyValue{Key: []byte(key), Seq: kv.SequenceNumber(seq), Kind: kv.KindAdd, Value: []byte(val)}
}

func TestInPlaceBufferDedupsOnInsert(t *testing.T) {
	b := newInPlaceBuffer(kv.LastValueWins{})
	if err := b.add(entry("a", 1, "1")); err != nil {
		t.Fatalf("add: %v", err)
	}
	if err := b.add(entry("a", 2, "2")); err != nil {
		t.Fatalf("add: %v", err)
	}
	if err := b.add(entry("b", 1, "x")); err != nil {
		t.Fatalf("add: %v", err)
	}
	if b.empty() {
		t.Fatalf("expected non-empty buffer")
	}

	out, err := b.drain()
	if err != nil {
		t.Fatalf("drain: %v", err)
	}
	if len(out) != 2 {
		t.Fatalf("expected 2 distinct keys, got %d", len(out))
	}
	if string(out[0].Key) != "a" || string(out[0].Value) != "2" {
		t.Fatalf("expected latest value for a, got %+v", out[0])
	}
	if !b.empty() {
		t.Fatalf("expected buffer empty after drain")
	}
}

func TestSpillableBufferSpillsAndMergesAcrossChunks(t *testing.T) {
	fs := vfs.NewMemFS()
	n := 0
	spillPath := func() string {
		n++
		return "spill-" + string(rune('0'+n))
	}
	// chunkSize tuned so every third 18-byte entry spills the chunk,
	// leaving more runs than the fan-in of 2.
	b := newSpillableBuffer(kv.LastValueWins{}, fs, spillPath, 40, 2)

	for i := 0; i < 6; i++ {
		if err := b.add(entry("k", uint64(i+1), "v")); err != nil {
			t.Fatalf("add %d: %v", i, err)
		}
	}
	if err := b.add(entry("z", 1, "last")); err != nil {
		t.Fatalf("add z: %v", err)
	}

	out, err := b.drain()
	if err != nil {
		t.Fatalf("drain: %v", err)
	}
	if len(out) != 2 {
		t.Fatalf("expected 2 distinct keys after merge, got %d: %+v", len(out), out)
	}
	if string(out[0].Key) != "k" || out[0].Seq != 6 {
		t.Fatalf("expected highest-seq record for k to survive, got %+v", out[0])
	}
	if !b.empty() {
		t.Fatalf("expected buffer empty after drain")
	}
}

func TestMergeRunsCappedFoldsExcessRuns(t *testing.T) {
	runs := [][]kv.KeyValue{
		{entry("a", 1, "1")},
		{entry("a", 2, "2")},
		{entry("a", 3, "3")},
		{entry("b", 1, "b")},
	}
	out, err := mergeRunsCapped(runs, kv.LastValueWins{}, 2)
	if err != nil {
		t.Fatalf("merge: %v", err)
	}
	if len(out) != 2 {
		t.Fatalf("expected 2 distinct keys, got %d", len(out))
	}
	for _, r := range out {
		if string(r.Key) == "a" && string(r.Value) != "3" {
			t.Fatalf("expected highest-seq value for a, got %+v", r)
		}
	}
}
