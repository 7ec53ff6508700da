// Package mergetree implements the online write path: an in-memory
// buffer (MergeTreeWriter's buffer), the flush/prepareCommit cycle,
// write-path backpressure, and the lazy k-way section merge consumed by
// reads and by compaction (MergeTreeReader).
//
// Generalized from a MergingIterator (k-way heap merge) plus a memtable
// buffer, replacing an internal-key/WAL-centric design with a plain
// KeyValue model and pluggable MergeFunction.
package mergetree

import (
	"container/heap"

	"github.com/yaofengchn/flink-table-store/internal/kv"
)

// source yields KeyValues in ascending (key, seq) order — ascending seq
// within a key, so merge groups reach MergeFunction.Merge in the order
// its contract requires.
type source interface {
	// peek returns the current record without consuming it.
	peek() (kv.KeyValue, bool)
	// advance consumes the current record.
	advance()
}

// sliceSource adapts an in-memory, pre-sorted slice to source.
type sliceSource struct {
	records []kv.KeyValue
	pos     int
}

func newSliceSource(records []kv.KeyValue) *sliceSource {
	return &sliceSource{records: records}
}

func (s *sliceSource) peek() (kv.KeyValue, bool) {
	if s.pos >= len(s.records) {
		return kv.KeyValue{}, false
	}
	return s.records[s.pos], true
}

func (s *sliceSource) advance() {
	s.pos++
}

type mergeHeapItem struct {
	src source
	key kv.KeyValue
}

type mergeHeap struct {
	items []mergeHeapItem
	cmp   kv.Comparator
}

func (h *mergeHeap) Len() int { return len(h.items) }

func (h *mergeHeap) Less(i, j int) bool {
	a, b := h.items[i].key, h.items[j].key
	if c := h.cmp.Compare(a.Key, b.Key); c != 0 {
		return c < 0
	}
	return a.Seq < b.Seq
}

func (h *mergeHeap) Swap(i, j int) { h.items[i], h.items[j] = h.items[j], h.items[i] }

func (h *mergeHeap) Push(x any) { h.items = append(h.items, x.(mergeHeapItem)) }

func (h *mergeHeap) Pop() any {
	old := h.items
	n := len(old)
	item := old[n-1]
	h.items = old[:n-1]
	return item
}

// mergeSources performs a lazy k-way merge across sources, grouping
// consecutive equal-key records (ascending seq, per the heap ordering),
// invoking mergeFn once per distinct key, and calling emit for every
// surviving result. If dropDelete is true, merged results of kind
// KindDelete are suppressed instead of emitted.
//
func mergeSources(sources []source, cmp kv.Comparator, mergeFn kv.MergeFunction, dropDelete bool, emit func(kv.KeyValue) error) error {
	h := &mergeHeap{cmp: cmp}
	heap.Init(h)
	for _, s := range sources {
		if rec, ok := s.peek(); ok {
			heap.Push(h, mergeHeapItem{src: s, key: rec})
		}
	}

	for h.Len() > 0 {
		groupKey := h.items[0].key.Key
		var group []kv.KeyValue
		for h.Len() > 0 && cmp.Compare(h.items[0].key.Key, groupKey) == 0 {
			item := heap.Pop(h).(mergeHeapItem)
			group = append(group, item.key)
			item.src.advance()
			if rec, ok := item.src.peek(); ok {
				heap.Push(h, mergeHeapItem{src: item.src, key: rec})
			}
		}

		result, ok := mergeFn.Merge(group)
		if !ok {
			continue
		}
		if dropDelete && result.Kind == kv.KindDelete {
			continue
		}
		if err := emit(result); err != nil {
			return err
		}
	}
	return nil
}
