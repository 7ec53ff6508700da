package levels

import (
	"testing"

	"github.com/yaofengchn/flink-table-store/internal/kv"
	"github.com/yaofengchn/flink-table-store/internal/manifest"
)

func meta(name string, min, max string) manifest.DataFileMeta {
	return manifest.DataFileMeta{FileName: name, MinKey: []byte(min), MaxKey: []byte(max)}
}

func TestAddL0NewestFirst(t *testing.T) {
	l := New(kv.BytewiseComparator{}, 3)
	if err := l.Add(0, meta("a", "a", "a")); err != nil {
		t.Fatalf("add: %v", err)
	}
	if err := l.Add(0, meta("b", "b", "b")); err != nil {
		t.Fatalf("add: %v", err)
	}
	runs := l.LevelSortedRuns()
	if len(runs) != 2 {
		t.Fatalf("expected 2 runs, got %d", len(runs))
	}
	if runs[0].Run.Files[0].FileName != "b" {
		t.Fatalf("expected newest L0 run first, got %q", runs[0].Run.Files[0].FileName)
	}
}

func TestAddHigherLevelRejectsOverlap(t *testing.T) {
	l := New(kv.BytewiseComparator{}, 3)
	if err := l.Add(1, meta("a", "a", "m")); err != nil {
		t.Fatalf("add: %v", err)
	}
	if err := l.Add(1, meta("b", "h", "z")); err == nil {
		t.Fatalf("expected overlap error")
	}
	if err := l.Add(1, meta("c", "n", "z")); err != nil {
		t.Fatalf("add non-overlapping file: %v", err)
	}
	if err := l.CheckInvariants(); err != nil {
		t.Fatalf("invariants: %v", err)
	}
}

func TestUpdateRemovesInputsAndInsertsOutputs(t *testing.T) {
	l := New(kv.BytewiseComparator{}, 3)
	a := meta("a", "a", "c")
	b := meta("b", "d", "f")
	if err := l.Add(0, a); err != nil {
		t.Fatalf("add: %v", err)
	}
	if err := l.Add(0, b); err != nil {
		t.Fatalf("add: %v", err)
	}

	merged := meta("merged", "a", "f")
	if err := l.Update([]manifest.DataFileMeta{a, b}, []manifest.DataFileMeta{merged}, 2); err != nil {
		t.Fatalf("update: %v", err)
	}

	runs := l.LevelSortedRuns()
	if len(runs) != 1 {
		t.Fatalf("expected 1 run after compaction, got %d", len(runs))
	}
	if runs[0].Level != 2 || runs[0].Run.Files[0].FileName != "merged" {
		t.Fatalf("unexpected run after update: %+v", runs[0])
	}
	if err := l.CheckInvariants(); err != nil {
		t.Fatalf("invariants: %v", err)
	}
}

func TestUpdateOutputLevelZeroCreatesNewRuns(t *testing.T) {
	l := New(kv.BytewiseComparator{}, 2)
	a := meta("a", "a", "c")
	if err := l.Add(0, a); err != nil {
		t.Fatalf("add: %v", err)
	}
	out1 := meta("out1", "a", "b")
	out2 := meta("out2", "b", "c")
	if err := l.Update([]manifest.DataFileMeta{a}, []manifest.DataFileMeta{out1, out2}, 0); err != nil {
		t.Fatalf("update: %v", err)
	}
	runs := l.LevelSortedRuns()
	if len(runs) != 2 {
		t.Fatalf("expected 2 separate L0 runs, got %d", len(runs))
	}
}

func TestUpdateRejectsOverlapAtOutputLevel(t *testing.T) {
	l := New(kv.BytewiseComparator{}, 2)
	existing := meta("existing", "m", "z")
	if err := l.Add(1, existing); err != nil {
		t.Fatalf("add: %v", err)
	}
	overlapping := meta("bad", "n", "q")
	if err := l.Update(nil, []manifest.DataFileMeta{overlapping}, 1); err == nil {
		t.Fatalf("expected overlap rejection")
	}
}

func TestRestoreAssignsByStoredLevel(t *testing.T) {
	entries := []manifest.ManifestEntry{
		{Meta: meta("a", "a", "c"), Level: 0},
		{Meta: meta("b", "d", "z"), Level: 2},
	}
	l, err := Restore(kv.BytewiseComparator{}, 3, entries)
	if err != nil {
		t.Fatalf("restore: %v", err)
	}
	runs := l.LevelSortedRuns()
	if len(runs) != 2 {
		t.Fatalf("expected 2 runs, got %d", len(runs))
	}
}

func TestNumberOfLevels(t *testing.T) {
	l := New(kv.BytewiseComparator{}, 5)
	if l.NumberOfLevels() != 5 {
		t.Fatalf("expected 5 levels, got %d", l.NumberOfLevels())
	}
}
