package mergetree

import (
	"testing"

	"github.com/yaofengchn/flink-table-store/internal/compression"
	"github.com/yaofengchn/flink-table-store/internal/datafile"
	"github.com/yaofengchn/flink-table-store/internal/kv"
	"github.com/yaofengchn/flink-table-store/internal/manifest"
	"github.com/yaofengchn/flink-table-store/internal/vfs"
)

func writeTestFile(t *testing.T, fs vfs.FS, name string, records ...kv.KeyValue) manifest.DataFileMeta {
	t.Helper()
	w := datafile.NewRollingWriter(fs, func() string { return name }, 0, 1<<20, compression.SnappyCompression)
	for _, r := range records {
		if err := w.Add(r); err != nil {
			t.Fatalf("add: %v", err)
		}
	}
	metas, err := w.Finish()
	if err != nil {
		t.Fatalf("finish: %v", err)
	}
	return metas[0]
}

func TestBuildSectionsGroupsOverlappingFiles(t *testing.T) {
	fs := vfs.NewMemFS()
	cmp := kv.BytewiseComparator{}

	a := writeTestFile(t, fs, "a", entry("a", 1, "1"), entry("m", 1, "1"))
	b := writeTestFile(t, fs, "b", entry("m", 2, "2"), entry("z", 1, "1"))
	c := writeTestFile(t, fs, "c", entry("p", 1, "1"), entry("q", 1, "1"))

	sections := BuildSections(cmp, []manifest.DataFileMeta{c, b, a})
	if len(sections) != 1 {
		t.Fatalf("expected all three files to form one overlapping section, got %d", len(sections))
	}
	if len(sections[0].Files) != 3 {
		t.Fatalf("expected 3 files in the section, got %d", len(sections[0].Files))
	}
}

func TestBuildSectionsSeparatesNonOverlappingFiles(t *testing.T) {
	fs := vfs.NewMemFS()
	cmp := kv.BytewiseComparator{}

	a := writeTestFile(t, fs, "a", entry("a", 1, "1"), entry("c", 1, "1"))
	b := writeTestFile(t, fs, "b", entry("x", 1, "1"), entry("z", 1, "1"))

	sections := BuildSections(cmp, []manifest.DataFileMeta{b, a})
	if len(sections) != 2 {
		t.Fatalf("expected 2 disjoint sections, got %d", len(sections))
	}
}

func TestReaderMergesOverlappingFilesInOneSection(t *testing.T) {
	fs := vfs.NewMemFS()
	cmp := kv.BytewiseComparator{}

	a := writeTestFile(t, fs, "a", entry("a", 1, "1"), entry("m", 1, "old"))
	b := writeTestFile(t, fs, "b", entry("m", 2, "new"), entry("z", 1, "1"))

	sections := BuildSections(cmp, []manifest.DataFileMeta{a, b})
	reader := NewReader(fs, cmp, kv.LastValueWins{}, false, sections)
	defer reader.Close()

	var got []kv.KeyValue
	for {
		rec, ok := reader.Next()
		if !ok {
			break
		}
		got = append(got, rec)
	}
	if err := reader.Err(); err != nil {
		t.Fatalf("reader error: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("expected 3 distinct keys, got %d: %+v", len(got), got)
	}
	if string(got[1].Key) != "m" || string(got[1].Value) != "new" {
		t.Fatalf("expected m to resolve to the newer value, got %+v", got[1])
	}
}
