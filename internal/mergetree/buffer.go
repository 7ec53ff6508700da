package mergetree

import (
	"fmt"
	"sort"

	"github.com/yaofengchn/flink-table-store/internal/kv"
	"github.com/yaofengchn/flink-table-store/internal/vfs"
)

// buffer accumulates writes between flushes.
//
// Keyed by kv.KeyValue.Key; insertion order is meaningful only through
// the already-assigned, writer-global SequenceNumber (assigned before
// buffering, so "drain in key order" and "assign the next sequence
// number" collapse into assignment at insert time — see DESIGN.md).
type buffer interface {
	add(r kv.KeyValue) error
	empty() bool
	approxSize() int64
	// drain returns every buffered record, deduplicated by mergeFn and
	// sorted ascending by key, and resets the buffer to empty.
	drain() ([]kv.KeyValue, error)
}

// inPlaceBuffer sort-merges on every insert: at most one entry per key is
// ever resident. Used when writeBufferSpillable is false.
type inPlaceBuffer struct {
	mergeFn kv.MergeFunction
	entries map[string]kv.KeyValue
	size    int64
}

func newInPlaceBuffer(mergeFn kv.MergeFunction) *inPlaceBuffer {
	return &inPlaceBuffer{mergeFn: mergeFn, entries: make(map[string]kv.KeyValue)}
}

func (b *inPlaceBuffer) add(r kv.KeyValue) error {
	k := string(r.Key)
	existing, ok := b.entries[k]
	if !ok {
		b.entries[k] = r
		b.size += entrySize(r)
		return nil
	}
	b.size -= entrySize(existing)
	merged, keep := b.mergeFn.Merge([]kv.KeyValue{existing, r})
	if !keep {
		delete(b.entries, k)
		return nil
	}
	b.entries[k] = merged
	b.size += entrySize(merged)
	return nil
}

func (b *inPlaceBuffer) empty() bool { return len(b.entries) == 0 }

func (b *inPlaceBuffer) approxSize() int64 { return b.size }

func (b *inPlaceBuffer) drain() ([]kv.KeyValue, error) {
	out := make([]kv.KeyValue, 0, len(b.entries))
	for _, r := range b.entries {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool {
		return kv.BytewiseComparator{}.Compare(out[i].Key, out[j].Key) < 0
	})
	b.entries = make(map[string]kv.KeyValue)
	b.size = 0
	return out, nil
}

func entrySize(r kv.KeyValue) int64 {
	return int64(len(r.Key) + len(r.Value) + 16)
}

// spillableBuffer appends every write to the current in-memory chunk; once
// the chunk reaches chunkSize it is sorted and spilled to fs as a run.
// drain merges the current chunk with every spilled run, capped at fanIn
// sources per merge pass.
//
// Generalized from an external merge-sort pattern that sorts chunks in
// memory, spills them as key files, and merges with a capped-fan-in
// file merger.
type spillableBuffer struct {
	mergeFn     kv.MergeFunction
	fs          vfs.FS
	spillPath   func() string
	chunkSize   int64
	fanIn       int
	current     []kv.KeyValue
	currentSize int64
	spills      []string
}

func newSpillableBuffer(mergeFn kv.MergeFunction, fs vfs.FS, spillPath func() string, chunkSize int64, fanIn int) *spillableBuffer {
	if fanIn < 2 {
		fanIn = 2
	}
	return &spillableBuffer{mergeFn: mergeFn, fs: fs, spillPath: spillPath, chunkSize: chunkSize, fanIn: fanIn}
}

func (b *spillableBuffer) add(r kv.KeyValue) error {
	b.current = append(b.current, r)
	b.currentSize += entrySize(r)
	if b.currentSize >= b.chunkSize {
		return b.spillCurrent()
	}
	return nil
}

func (b *spillableBuffer) empty() bool {
	return len(b.current) == 0 && len(b.spills) == 0
}

func (b *spillableBuffer) approxSize() int64 { return b.currentSize }

func (b *spillableBuffer) spillCurrent() error {
	sortChunk(b.current)
	path := b.spillPath()
	if err := writeSpillRun(b.fs, path, b.current); err != nil {
		return fmt.Errorf("mergetree: spill buffer chunk: %w", err)
	}
	b.spills = append(b.spills, path)
	b.current = nil
	b.currentSize = 0
	return nil
}

func (b *spillableBuffer) drain() ([]kv.KeyValue, error) {
	sortChunk(b.current)

	runs := make([][]kv.KeyValue, 0, len(b.spills)+1)
	if len(b.current) > 0 {
		runs = append(runs, b.current)
	}
	for _, path := range b.spills {
		records, err := readSpillRun(b.fs, path)
		if err != nil {
			return nil, fmt.Errorf("mergetree: read spill run %q: %w", path, err)
		}
		runs = append(runs, records)
	}

	result, err := mergeRunsCapped(runs, b.mergeFn, b.fanIn)
	if err != nil {
		return nil, err
	}

	for _, path := range b.spills {
		_ = b.fs.Remove(path)
	}
	b.current = nil
	b.currentSize = 0
	b.spills = nil
	return result, nil
}

func sortChunk(records []kv.KeyValue) {
	sort.Slice(records, func(i, j int) bool {
		if c := (kv.BytewiseComparator{}).Compare(records[i].Key, records[j].Key); c != 0 {
			return c < 0
		}
		return records[i].Seq < records[j].Seq
	})
}

// mergeRunsCapped merges runs, a set of individually sorted record slices,
// into one deduplicated, sorted slice. No more than fanIn runs are merged
// in a single pass; excess runs are folded down in rounds first.
func mergeRunsCapped(runs [][]kv.KeyValue, mergeFn kv.MergeFunction, fanIn int) ([]kv.KeyValue, error) {
	for len(runs) > fanIn {
		batch := runs[:fanIn]
		merged, err := mergeRunBatch(batch, mergeFn)
		if err != nil {
			return nil, err
		}
		rest := append([][]kv.KeyValue(nil), runs[fanIn:]...)
		runs = append([][]kv.KeyValue{merged}, rest...)
	}
	return mergeRunBatch(runs, mergeFn)
}

func mergeRunBatch(runs [][]kv.KeyValue, mergeFn kv.MergeFunction) ([]kv.KeyValue, error) {
	sources := make([]source, len(runs))
	for i, r := range runs {
		sources[i] = newSliceSource(r)
	}
	var out []kv.KeyValue
	err := mergeSources(sources, kv.BytewiseComparator{}, mergeFn, false, func(r kv.KeyValue) error {
		out = append(out, r)
		return nil
	})
	return out, err
}
