package compaction

import "github.com/yaofengchn/flink-table-store/internal/kv"

// Filter inspects one merged record during compaction and may drop it or
// rewrite its value before it reaches the compaction output file. It runs
// after MergeFunction has already reduced same-key groups, not per input
// record.
//
// Generalizes a RocksDB-style CompactionFilter (keep/remove/change per
// key) from raw key/value pairs to KeyValue.
type Filter func(outputLevel int, r kv.KeyValue) (kv.KeyValue, bool)
