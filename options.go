package mergetree

import (
	"github.com/yaofengchn/flink-table-store/internal/compression"
	"github.com/yaofengchn/flink-table-store/internal/kv"
	"github.com/yaofengchn/flink-table-store/internal/logging"
	"github.com/yaofengchn/flink-table-store/internal/vfs"
)

// Logger is an alias for the logging.Logger interface, so callers can
// plug in their own implementation without importing internal/logging.
type Logger = logging.Logger

// CompressionType is an alias for the data-file compression codec.
type CompressionType = compression.Type

// Compression codec constants.
const (
	CompressionNone   = compression.NoCompression
	CompressionSnappy = compression.SnappyCompression
	CompressionLZ4    = compression.LZ4Compression
	CompressionZstd   = compression.ZstdCompression
)

// ChangelogProducer selects which records a Writer sends to
// Options.ChangelogSink.
type ChangelogProducer int

const (
	// ChangelogNone emits no change records.
	ChangelogNone ChangelogProducer = iota
	// ChangelogInput sends every record to the sink as it is written,
	// before it reaches the write buffer. Nothing is sent while
	// compaction runs.
	ChangelogInput
	// ChangelogFullCompaction sends the merged output of each background
	// compaction to the sink and makes prepareCommit join any in-flight
	// compaction, as CommitForceCompact does. It does not start a full
	// merge at commit, so records not yet compacted are not sent.
	ChangelogFullCompaction
)

func (c ChangelogProducer) String() string {
	switch c {
	case ChangelogNone:
		return "none"
	case ChangelogInput:
		return "input"
	case ChangelogFullCompaction:
		return "full-compaction"
	default:
		return "unknown"
	}
}

// Options configures a WriteCoordinator and the writers it creates, a
// flat struct with a matching DefaultOptions constructor rather than a
// functional-options or builder surface, collecting exactly the knobs
// this write engine's MergeTreeWriter and universal compaction strategy
// consume.
type Options struct {
	// FS is the filesystem data files and manifests are read from and
	// written to. If nil, vfs.Default() is used.
	FS vfs.FS

	// Comparator orders keys. If nil, kv.BytewiseComparator is used.
	Comparator kv.Comparator

	// MergeFunction reduces groups of same-key entries to one. If nil,
	// kv.LastValueWins is used.
	MergeFunction kv.MergeFunction

	// Logger receives flush/compaction/manifest activity. If nil, a
	// default WARN-level logger writing to stderr is used.
	Logger Logger

	// Compression is the codec applied to rolling-writer output files.
	Compression CompressionType

	// NumLevels is the number of LSM levels, 0..NumLevels-1.
	NumLevels int

	// TargetFileSize is the rolling-writer rotation threshold: once the
	// current output file reaches this many bytes, it closes and a new
	// one begins.
	TargetFileSize int64

	// WriteBufferSpillable selects the MergeTreeWriter buffer strategy:
	// true spills sorted chunks to disk and merges them at flush time;
	// false keeps a single key-ordered in-memory structure.
	WriteBufferSpillable bool

	// LocalSortMaxNumFileHandles caps the fan-in of the external-sort
	// spill merge when WriteBufferSpillable is true.
	LocalSortMaxNumFileHandles int

	// MaxSizeAmplificationPercent triggers an all-runs compaction into
	// the top level once non-oldest-run size as a percentage of the
	// oldest run's size reaches this threshold.
	MaxSizeAmplificationPercent int

	// SortedRunSizeRatio bounds how much larger the next run may be,
	// as a percentage, for the size-ratio compaction trigger to keep
	// extending its candidate prefix.
	SortedRunSizeRatio int

	// NumSortedRunCompactionTrigger is the minimum candidate-prefix
	// length for the size-ratio trigger to fire.
	NumSortedRunCompactionTrigger int

	// MaxSortedRunNum is the run-count trigger: once the total number
	// of runs reaches this, the newest runs (at least two) are compacted
	// into one, leaving at most MaxSortedRunNum runs.
	MaxSortedRunNum int

	// NumSortedRunStopTrigger is the write-path backpressure threshold:
	// writes block once L0 run count reaches this value.
	NumSortedRunStopTrigger int

	// CommitForceCompact, if true, makes prepareCommit join any
	// in-flight compaction before returning.
	CommitForceCompact bool

	// ChangelogProducer selects which records are sent to ChangelogSink;
	// see the ChangelogProducer constants.
	ChangelogProducer ChangelogProducer

	// ChangelogSink receives change records: under ChangelogInput, each
	// record as it is written; under ChangelogFullCompaction, the merged
	// records of each background compaction. Writers ignore it under
	// ChangelogNone; CreateCompactTask passes it to the standalone task
	// in every mode.
	ChangelogSink func(KeyValue) error

	// CompactionFilter, if set, is applied to every merged record during
	// both background and standalone compaction; it may drop a record or
	// rewrite its value before it reaches the compacted output file.
	CompactionFilter func(outputLevel int, r KeyValue) (KeyValue, bool)

	// WriteCompactionSkip, if true, uses compaction.NoopManager: flushes
	// still append to L0 but nothing is ever compacted. Intended for
	// bulk-load writers.
	WriteCompactionSkip bool
}

// DefaultOptions returns Options defaulted for universal compaction over
// a moderate write-heavy workload.
func DefaultOptions() *Options {
	return &Options{
		FS:                            nil,
		Comparator:                    kv.BytewiseComparator{},
		MergeFunction:                 kv.LastValueWins{},
		Logger:                        nil,
		Compression:                   CompressionSnappy,
		NumLevels:                     5,
		TargetFileSize:                128 << 20,
		WriteBufferSpillable:          false,
		LocalSortMaxNumFileHandles:    32,
		MaxSizeAmplificationPercent:   200,
		SortedRunSizeRatio:            1,
		NumSortedRunCompactionTrigger: 5,
		MaxSortedRunNum:               20,
		NumSortedRunStopTrigger:       25,
		CommitForceCompact:            false,
		ChangelogProducer:             ChangelogNone,
		WriteCompactionSkip:           false,
	}
}
