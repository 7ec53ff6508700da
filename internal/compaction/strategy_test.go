package compaction

import (
	"testing"

	"github.com/yaofengchn/flink-table-store/internal/levels"
	"github.com/yaofengchn/flink-table-store/internal/manifest"
)

func run(level int, size uint64) levels.LevelRun {
	return levels.LevelRun{Level: level, Run: levels.SortedRun{Files: []manifest.DataFileMeta{{FileSize: size, Level: level}}}}
}

func TestPickSizeAmplification(t *testing.T) {
	s := &UniversalStrategy{NumLevels: 4, MaxSizeAmplificationPercent: 200, SortedRunSizeRatio: 1, NumSortedRunCompactionTrigger: 100, MaxSortedRunNum: 100}
	// newest-first: three L0 runs over an oldest run of the same size, so
	// the non-oldest runs add up to 300% of the oldest.
	runs := []levels.LevelRun{run(0, 10), run(0, 10), run(0, 10), run(3, 10)}
	unit, ok := s.Pick(runs)
	if !ok {
		t.Fatalf("expected amplification trigger to fire")
	}
	if unit.OutputLevel != 3 {
		t.Fatalf("expected output level 3 (top), got %d", unit.OutputLevel)
	}
	if !unit.DropDelete {
		t.Fatalf("expected DropDelete for top-level compaction")
	}
	if len(unit.Runs) != 4 {
		t.Fatalf("expected all runs selected, got %d", len(unit.Runs))
	}
}

func TestPickSizeAmplificationNotTriggeredBelowThreshold(t *testing.T) {
	s := &UniversalStrategy{NumLevels: 4, MaxSizeAmplificationPercent: 200, SortedRunSizeRatio: 1, NumSortedRunCompactionTrigger: 100, MaxSortedRunNum: 100}
	runs := []levels.LevelRun{run(0, 5), run(3, 100)}
	if _, ok := s.Pick(runs); ok {
		t.Fatalf("did not expect a compaction unit")
	}
}

func TestPickSizeRatio(t *testing.T) {
	s := &UniversalStrategy{NumLevels: 5, MaxSizeAmplificationPercent: 1000, SortedRunSizeRatio: 100, NumSortedRunCompactionTrigger: 3, MaxSortedRunNum: 100}
	// newest-first, each roughly the same size as the accumulated prefix:
	// stays within ratio the whole way, so the whole prefix qualifies.
	runs := []levels.LevelRun{run(0, 10), run(0, 10), run(1, 15), run(4, 1000)}
	unit, ok := s.Pick(runs)
	if !ok {
		t.Fatalf("expected size-ratio trigger to fire")
	}
	if len(unit.Runs) != 3 {
		t.Fatalf("expected 3-run prefix, got %d", len(unit.Runs))
	}
	if unit.OutputLevel != 1 {
		t.Fatalf("expected output level 1 (highest spanned), got %d", unit.OutputLevel)
	}
}

func TestPickSizeRatioBelowTriggerCount(t *testing.T) {
	s := &UniversalStrategy{NumLevels: 5, MaxSizeAmplificationPercent: 1000, SortedRunSizeRatio: 100, NumSortedRunCompactionTrigger: 10, MaxSortedRunNum: 100}
	runs := []levels.LevelRun{run(0, 10), run(0, 10), run(4, 1000)}
	if _, ok := s.Pick(runs); ok {
		t.Fatalf("did not expect a compaction unit below the trigger count")
	}
}

func TestPickRunCount(t *testing.T) {
	s := &UniversalStrategy{NumLevels: 5, MaxSizeAmplificationPercent: 1000, SortedRunSizeRatio: 0, NumSortedRunCompactionTrigger: 1000, MaxSortedRunNum: 3}
	runs := []levels.LevelRun{run(0, 1), run(0, 1), run(0, 1), run(4, 1000)}
	unit, ok := s.Pick(runs)
	if !ok {
		t.Fatalf("expected run-count trigger to fire")
	}
	if len(unit.Runs) < 2 {
		t.Fatalf("expected at least 2 runs compacted, got %d", len(unit.Runs))
	}
}

func TestPickPrefersSizeAmplificationOverOthers(t *testing.T) {
	s := &UniversalStrategy{NumLevels: 4, MaxSizeAmplificationPercent: 50, SortedRunSizeRatio: 1000, NumSortedRunCompactionTrigger: 2, MaxSortedRunNum: 100}
	runs := []levels.LevelRun{run(0, 10), run(3, 10)}
	unit, ok := s.Pick(runs)
	if !ok {
		t.Fatalf("expected a unit")
	}
	if unit.OutputLevel != 3 {
		t.Fatalf("expected rule 1 (amplification) to win, got output level %d", unit.OutputLevel)
	}
}

func TestInputFilesFlattensRuns(t *testing.T) {
	u := Unit{Runs: []levels.LevelRun{run(0, 1), run(1, 1)}}
	if len(u.InputFiles()) != 2 {
		t.Fatalf("expected 2 input files")
	}
}
