package mergetree

import (
	"fmt"

	"github.com/yaofengchn/flink-table-store/internal/datafile"
	"github.com/yaofengchn/flink-table-store/internal/kv"
	"github.com/yaofengchn/flink-table-store/internal/manifest"
	"github.com/yaofengchn/flink-table-store/internal/vfs"
)

// datafileSource adapts a *datafile.Reader (consume-only) to the
// peek/advance shape mergeSources needs.
type datafileSource struct {
	r       *datafile.Reader
	peeked  kv.KeyValue
	hasPeek bool
	done    bool
}

func newDatafileSource(r *datafile.Reader) *datafileSource {
	return &datafileSource{r: r}
}

func (s *datafileSource) peek() (kv.KeyValue, bool) {
	if s.hasPeek {
		return s.peeked, true
	}
	if s.done {
		return kv.KeyValue{}, false
	}
	rec, ok := s.r.Next()
	if !ok {
		s.done = true
		return kv.KeyValue{}, false
	}
	s.peeked, s.hasPeek = rec, true
	return rec, true
}

func (s *datafileSource) advance() {
	s.hasPeek = false
}

// Section is a set of DataFileMetas whose combined key ranges overlap —
// the unit Reader merges with one k-way pass.
type Section struct {
	Files []manifest.DataFileMeta
}

// Reader lazily merges a sequence of sections into one ordered, forward-
// only stream of KeyValues. It is not safe for concurrent use and is not
// restartable: once consumed (or Close'd), it cannot be reused.
//
// Generalizes a bidirectional table-merging iterator into a one-shot,
// section-aware merge driver, folding in the per-key reduction a
// compaction job would otherwise apply inline while processing entries.
type Reader struct {
	fs         vfs.FS
	cmp        kv.Comparator
	mergeFn    kv.MergeFunction
	dropDelete bool

	sections []Section
	sec      int

	pending []kv.KeyValue
	pos     int

	openReaders []*datafile.Reader
	closed      bool
	err         error
}

// NewReader builds a Reader over sections, to be merged in order with cmp
// and mergeFn. If dropDelete is true, merged KindDelete results are
// suppressed.
func NewReader(fs vfs.FS, cmp kv.Comparator, mergeFn kv.MergeFunction, dropDelete bool, sections []Section) *Reader {
	return &Reader{fs: fs, cmp: cmp, mergeFn: mergeFn, dropDelete: dropDelete, sections: sections}
}

// Next returns the next merged record, or ok=false at end of stream or
// after an error (check Err).
func (r *Reader) Next() (kv.KeyValue, bool) {
	if r.closed || r.err != nil {
		return kv.KeyValue{}, false
	}
	for r.pos >= len(r.pending) {
		r.closeOpenReaders()
		if r.sec >= len(r.sections) {
			return kv.KeyValue{}, false
		}
		if err := r.mergeNextSection(); err != nil {
			r.err = err
			return kv.KeyValue{}, false
		}
	}
	rec := r.pending[r.pos]
	r.pos++
	return rec, true
}

// Err returns the first error encountered while reading, if any.
func (r *Reader) Err() error { return r.err }

// Close releases every underlying file reader. Safe to call after partial
// consumption or after an error.
func (r *Reader) Close() error {
	r.closed = true
	r.closeOpenReaders()
	return r.err
}

func (r *Reader) closeOpenReaders() {
	for _, or := range r.openReaders {
		_ = or.Close()
	}
	r.openReaders = nil
}

func (r *Reader) mergeNextSection() error {
	section := r.sections[r.sec]
	r.sec++

	sources := make([]source, 0, len(section.Files))
	for _, meta := range section.Files {
		dr, err := datafile.OpenReader(r.fs, meta)
		if err != nil {
			return fmt.Errorf("mergetree: open section file %q: %w", meta.FileName, err)
		}
		r.openReaders = append(r.openReaders, dr)
		sources = append(sources, newDatafileSource(dr))
	}

	r.pending = r.pending[:0]
	r.pos = 0
	return mergeSources(sources, r.cmp, r.mergeFn, r.dropDelete, func(rec kv.KeyValue) error {
		r.pending = append(r.pending, rec)
		return nil
	})
}

// BuildSections groups files (typically the files of every SortedRun
// participating in a compaction or a read) into maximal clusters of
// mutually overlapping key ranges. Non-overlapping clusters can be merged
// independently and in any order; Reader merges them in the order given.
func BuildSections(cmp kv.Comparator, files []manifest.DataFileMeta) []Section {
	if len(files) == 0 {
		return nil
	}
	sorted := append([]manifest.DataFileMeta(nil), files...)
	sortFilesByMinKey(cmp, sorted)

	var sections []Section
	cur := Section{Files: []manifest.DataFileMeta{sorted[0]}}
	maxKey := sorted[0].MaxKey
	for _, f := range sorted[1:] {
		if cmp.Compare(f.MinKey, maxKey) <= 0 {
			cur.Files = append(cur.Files, f)
			if cmp.Compare(f.MaxKey, maxKey) > 0 {
				maxKey = f.MaxKey
			}
			continue
		}
		sections = append(sections, cur)
		cur = Section{Files: []manifest.DataFileMeta{f}}
		maxKey = f.MaxKey
	}
	sections = append(sections, cur)
	return sections
}

func sortFilesByMinKey(cmp kv.Comparator, files []manifest.DataFileMeta) {
	for i := 1; i < len(files); i++ {
		for j := i; j > 0 && cmp.Compare(files[j-1].MinKey, files[j].MinKey) > 0; j-- {
			files[j-1], files[j] = files[j], files[j-1]
		}
	}
}
