package manifest

// ManifestEntry is the external manifest service's view of one committed
// data file: its metadata plus the level it currently resides in.
type ManifestEntry struct {
	Meta  DataFileMeta
	Level int
}

// SnapshotReader is the external snapshot/manifest service consumed by the
// write engine. The write engine restores a new Writer from the latest
// committed snapshot and otherwise treats this service as read-only.
type SnapshotReader interface {
	// LatestSnapshotID returns the id of the most recently committed
	// snapshot, or ok=false if the table has never been committed to.
	LatestSnapshotID() (id int64, ok bool)

	// Scan begins a fluent query against the given snapshot.
	Scan(snapshotID int64) Scan
}

// Scan narrows a snapshot query to one partition and bucket before
// listing files, mirroring
// scan(snapshotId).withPartitionFilter(p).withBucket(b).files().
type Scan interface {
	WithPartitionFilter(partition string) Scan
	WithBucket(bucket int) Scan
	Files() ([]ManifestEntry, error)
}

// Committer is the external manifest service's write side: it accepts the
// commit increment produced by a Writer's prepareCommit and durably
// records it. The write engine never writes manifests itself; it only
// hands this collaborator the delta.
type Committer interface {
	Commit(partition string, bucket int, newFiles, compactedBefore, compactedAfter []DataFileMeta) error
}

// PathFactory generates a fresh, unique file path for a
// (partition, bucket, level) tuple. The write engine only consumes it.
type PathFactory interface {
	NewDataFilePath(partition string, bucket int, level int) string
}
