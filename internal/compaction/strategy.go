// Package compaction implements the universal (size-tiered) compaction
// strategy and the background CompactManager/CompactTask that applies it.
//
// Follows a RocksDB-style universal compaction picker closely rule-for-
// rule, adapted from a Version/FileMetaData model onto
// levels.Levels/manifest.DataFileMeta.
package compaction

import (
	"github.com/yaofengchn/flink-table-store/internal/levels"
	"github.com/yaofengchn/flink-table-store/internal/manifest"
)

// Unit describes a single compaction to run: merge the files in Runs
// into OutputLevel, dropping merged DELETE results if DropDelete is set.
type Unit struct {
	OutputLevel int
	Runs        []levels.LevelRun
	DropDelete  bool
}

// InputFiles flattens every file across Unit's runs.
func (u Unit) InputFiles() []manifest.DataFileMeta {
	var out []manifest.DataFileMeta
	for _, r := range u.Runs {
		out = append(out, r.Run.Files...)
	}
	return out
}

// UniversalStrategy picks compaction units by evaluating three triggers
// in order: size amplification, size ratio, then run count.
type UniversalStrategy struct {
	NumLevels                     int
	MaxSizeAmplificationPercent   int
	SortedRunSizeRatio            int
	NumSortedRunCompactionTrigger int
	MaxSortedRunNum               int
}

// Pick evaluates the three triggers in order against runs (as returned by
// levels.Levels.LevelSortedRuns: L0 newest-first, then higher levels in
// ascending level order) and returns the first applicable Unit.
func (s *UniversalStrategy) Pick(runs []levels.LevelRun) (Unit, bool) {
	if len(runs) < 2 {
		return Unit{}, false
	}

	if unit, ok := s.pickSizeAmplification(runs); ok {
		return unit, true
	}
	if unit, ok := s.pickSizeRatio(runs); ok {
		return unit, true
	}
	if unit, ok := s.pickRunCount(runs); ok {
		return unit, true
	}
	return Unit{}, false
}

func (s *UniversalStrategy) topLevel() int {
	return s.NumLevels - 1
}

// pickSizeAmplification implements rule 1: compact everything into the
// top level once the non-oldest runs' combined size reaches
// MaxSizeAmplificationPercent of the oldest (largest, presumably highest
// level) run's size.
func (s *UniversalStrategy) pickSizeAmplification(runs []levels.LevelRun) (Unit, bool) {
	oldest := runs[len(runs)-1].Run.Size()
	if oldest == 0 {
		return Unit{}, false
	}
	var rest uint64
	for _, r := range runs[:len(runs)-1] {
		rest += r.Run.Size()
	}
	if rest*100/oldest < uint64(s.MaxSizeAmplificationPercent) {
		return Unit{}, false
	}
	return Unit{OutputLevel: s.topLevel(), Runs: append([]levels.LevelRun(nil), runs...), DropDelete: true}, true
}

// pickSizeRatio implements rule 2: extend a prefix of the newest runs
// while each next run's size stays within SortedRunSizeRatio percent of
// the prefix's accumulated size.
func (s *UniversalStrategy) pickSizeRatio(runs []levels.LevelRun) (Unit, bool) {
	threshold := 100 + s.SortedRunSizeRatio
	sum := runs[0].Run.Size()
	end := 1
	for end < len(runs) {
		next := runs[end].Run.Size()
		if next > sum*uint64(threshold)/100 {
			break
		}
		sum += next
		end++
	}
	if end < s.NumSortedRunCompactionTrigger {
		return Unit{}, false
	}

	prefix := runs[:end]
	outputLevel := highestLevel(prefix)
	return Unit{
		OutputLevel: outputLevel,
		Runs:        append([]levels.LevelRun(nil), prefix...),
		DropDelete:  outputLevel == s.topLevel(),
	}, true
}

// pickRunCount implements rule 3: once the total run count reaches
// MaxSortedRunNum, compact the newest len(runs)-MaxSortedRunNum+1 runs
// (at least two) into one, which leaves at most MaxSortedRunNum runs.
func (s *UniversalStrategy) pickRunCount(runs []levels.LevelRun) (Unit, bool) {
	if len(runs) < s.MaxSortedRunNum {
		return Unit{}, false
	}
	excess := len(runs) - s.MaxSortedRunNum + 1
	if excess < 2 {
		excess = 2
	}
	if excess > len(runs) {
		excess = len(runs)
	}
	prefix := runs[:excess]
	outputLevel := highestLevel(prefix)
	if outputLevel == 0 {
		outputLevel = 1
		if outputLevel > s.topLevel() {
			outputLevel = s.topLevel()
		}
	}
	return Unit{
		OutputLevel: outputLevel,
		Runs:        append([]levels.LevelRun(nil), prefix...),
		DropDelete:  outputLevel == s.topLevel(),
	}, true
}

func highestLevel(runs []levels.LevelRun) int {
	max := 0
	for _, r := range runs {
		if r.Level > max {
			max = r.Level
		}
	}
	return max
}
