// Package levels implements the LSM Levels model: level 0 holds many
// possibly-overlapping sorted runs (newest first); levels 1..N-1 each hold
// exactly one non-overlapping SortedRun.
//
// Generalized from a Version+Builder pair that modeled a single global
// multi-level file set for a whole database; here Levels is scoped to
// one writer's (partition, bucket) and is mutated only by that writer
// plus its CompactManager under the writer's lock.
package levels

import (
	"fmt"
	"sort"

	"github.com/yaofengchn/flink-table-store/internal/kv"
	"github.com/yaofengchn/flink-table-store/internal/manifest"
)

// Levels holds a fixed number of level slots, 0..N-1, for one writer.
type Levels struct {
	cmp       kv.Comparator
	numLevels int

	// l0 holds each flushed/compacted-into-L0 file as its own SortedRun,
	// ordered newest first.
	l0 []SortedRun

	// higher[level-1] is the single SortedRun occupying levels[level],
	// for level in [1, numLevels). An empty SortedRun means the level is
	// unoccupied.
	higher []SortedRun
}

// New creates empty Levels with numLevels slots (0..numLevels-1).
func New(cmp kv.Comparator, numLevels int) *Levels {
	if numLevels < 1 {
		numLevels = 1
	}
	return &Levels{
		cmp:       cmp,
		numLevels: numLevels,
		higher:    make([]SortedRun, numLevels-1),
	}
}

// Restore rebuilds Levels from a committed file list (e.g. the latest
// snapshot's entries for this bucket), assigning each file to the level
// recorded for it.
func Restore(cmp kv.Comparator, numLevels int, entries []manifest.ManifestEntry) (*Levels, error) {
	l := New(cmp, numLevels)
	// Each level-0 entry is prepended in the order given, so entries
	// listed oldest-first (as MemorySnapshots stores them) come out
	// newest-first; no other ordering is applied.
	for _, e := range entries {
		if err := l.Add(e.Level, e.Meta); err != nil {
			return nil, fmt.Errorf("levels: restore: %w", err)
		}
	}
	return l, nil
}

// NumberOfLevels returns the constant N.
func (l *Levels) NumberOfLevels() int { return l.numLevels }

// Files returns every file currently held, across all levels.
func (l *Levels) Files() []manifest.DataFileMeta {
	var out []manifest.DataFileMeta
	for _, run := range l.l0 {
		out = append(out, run.Files...)
	}
	for _, run := range l.higher {
		out = append(out, run.Files...)
	}
	return out
}

// Add inserts file into level, maintaining key order and non-overlap for
// level >= 1. Level 0 files are simply prepended as a new newest run.
func (l *Levels) Add(level int, file manifest.DataFileMeta) error {
	if level < 0 || level >= l.numLevels {
		return fmt.Errorf("levels: level %d out of range [0, %d)", level, l.numLevels)
	}
	if level == 0 {
		l.l0 = append([]SortedRun{{Files: []manifest.DataFileMeta{file}}}, l.l0...)
		return nil
	}

	run := &l.higher[level-1]
	for _, existing := range run.Files {
		if manifest.Overlaps(l.cmp, existing, file) {
			return fmt.Errorf("levels: file %q overlaps %q at level %d", file.FileName, existing.FileName, level)
		}
	}
	run.Files = append(run.Files, file)
	sortRunBySmallestKey(l.cmp, run.Files)
	return nil
}

// Update atomically removes before from whichever levels they reside in
// and inserts after at outputLevel. If outputLevel is 0, each file in
// after becomes its own new L0 run; otherwise after must already be
// mutually non-overlapping and becomes (or replaces) the single run at
// outputLevel.
func (l *Levels) Update(before, after []manifest.DataFileMeta, outputLevel int) error {
	if outputLevel < 0 || outputLevel >= l.numLevels {
		return fmt.Errorf("levels: output level %d out of range [0, %d)", outputLevel, l.numLevels)
	}

	removed := make(map[string]bool, len(before))
	for _, f := range before {
		removed[f.FileName] = true
	}

	// Build the new layout on copies and install it only once every check
	// has passed, so a rejected update leaves Levels unchanged.
	l0 := removeFromRuns(l.l0, removed)
	higher := make([]SortedRun, len(l.higher))
	for i := range l.higher {
		higher[i].Files = removeFromSlice(l.higher[i].Files, removed)
	}

	if outputLevel == 0 {
		for _, f := range after {
			f.Level = 0
			l0 = append([]SortedRun{{Files: []manifest.DataFileMeta{f}}}, l0...)
		}
		l.l0, l.higher = l0, higher
		return nil
	}

	run := &higher[outputLevel-1]
	combined := append(append([]manifest.DataFileMeta(nil), run.Files...), after...)
	for i := range combined {
		for j := i + 1; j < len(combined); j++ {
			if manifest.Overlaps(l.cmp, combined[i], combined[j]) {
				return fmt.Errorf("levels: update would overlap files %q and %q at level %d",
					combined[i].FileName, combined[j].FileName, outputLevel)
			}
		}
	}
	for i := range combined {
		combined[i].Level = outputLevel
	}
	sortRunBySmallestKey(l.cmp, combined)
	run.Files = combined
	l.l0, l.higher = l0, higher
	return nil
}

// LevelSortedRuns enumerates every run, L0 first (newest run first), then
// one run per higher level in level order, for consumption by the compact
// strategy. Empty higher levels are omitted.
func (l *Levels) LevelSortedRuns() []LevelRun {
	var out []LevelRun
	for _, run := range l.l0 {
		out = append(out, LevelRun{Level: 0, Run: run})
	}
	for i, run := range l.higher {
		if run.Empty() {
			continue
		}
		out = append(out, LevelRun{Level: i + 1, Run: run})
	}
	return out
}

// LevelRun pairs a SortedRun with the level it occupies.
type LevelRun struct {
	Level int
	Run   SortedRun
}

// CheckInvariants verifies the invariants every mutation must preserve:
// each level >= 1 has at most one run, files within it are
// non-overlapping and key-ordered.
func (l *Levels) CheckInvariants() error {
	for i, run := range l.higher {
		level := i + 1
		for j := 1; j < len(run.Files); j++ {
			if l.cmp.Compare(run.Files[j-1].MinKey, run.Files[j].MinKey) > 0 {
				return fmt.Errorf("levels: level %d not key-ordered", level)
			}
			if manifest.Overlaps(l.cmp, run.Files[j-1], run.Files[j]) {
				return fmt.Errorf("levels: level %d has overlapping files %q and %q",
					level, run.Files[j-1].FileName, run.Files[j].FileName)
			}
		}
	}
	return nil
}

func sortRunBySmallestKey(cmp kv.Comparator, files []manifest.DataFileMeta) {
	sort.Slice(files, func(i, j int) bool {
		return cmp.Compare(files[i].MinKey, files[j].MinKey) < 0
	})
}

func removeFromRuns(runs []SortedRun, removed map[string]bool) []SortedRun {
	out := runs[:0:0]
	for _, run := range runs {
		files := removeFromSlice(run.Files, removed)
		if len(files) > 0 {
			out = append(out, SortedRun{Files: files})
		}
	}
	return out
}

func removeFromSlice(files []manifest.DataFileMeta, removed map[string]bool) []manifest.DataFileMeta {
	out := files[:0:0]
	for _, f := range files {
		if !removed[f.FileName] {
			out = append(out, f)
		}
	}
	return out
}
