package manifest

import (
	"fmt"
	"sync"
	"sync/atomic"
)

// MemorySnapshots is a minimal in-process SnapshotReader/Committer used by
// tests and by the standalone compact command when no external manifest
// service is wired in. It is not a production manifest implementation:
// the real one lives outside this module.
type MemorySnapshots struct {
	mu      sync.Mutex
	nextID  int64
	entries map[int64]map[string][]ManifestEntry // snapshotID -> key(partition,bucket) -> entries
}

// NewMemorySnapshots returns an empty in-memory snapshot store.
func NewMemorySnapshots() *MemorySnapshots {
	return &MemorySnapshots{entries: make(map[int64]map[string][]ManifestEntry)}
}

func bucketKey(partition string, bucket int) string {
	return fmt.Sprintf("%s/%d", partition, bucket)
}

// LatestSnapshotID implements SnapshotReader.
func (m *MemorySnapshots) LatestSnapshotID() (int64, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.nextID == 0 {
		return 0, false
	}
	return m.nextID, true
}

// Scan implements SnapshotReader.
func (m *MemorySnapshots) Scan(snapshotID int64) Scan {
	return &memoryScan{store: m, snapshotID: snapshotID}
}

// Commit implements Committer. It folds newFiles/compactedBefore/
// compactedAfter into a brand new snapshot derived from the latest one.
func (m *MemorySnapshots) Commit(partition string, bucket int, newFiles, compactedBefore, compactedAfter []DataFileMeta) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	key := bucketKey(partition, bucket)
	var base []ManifestEntry
	if m.nextID != 0 {
		base = append(base, m.entries[m.nextID][key]...)
	}

	removed := make(map[string]bool, len(compactedBefore))
	for _, f := range compactedBefore {
		removed[f.FileName] = true
	}

	var next []ManifestEntry
	for _, e := range base {
		if !removed[e.Meta.FileName] {
			next = append(next, e)
		}
	}
	for _, f := range newFiles {
		next = append(next, ManifestEntry{Meta: f, Level: f.Level})
	}
	for _, f := range compactedAfter {
		next = append(next, ManifestEntry{Meta: f, Level: f.Level})
	}

	id := atomic.AddInt64(&m.nextID, 1)
	snap := make(map[string][]ManifestEntry)
	for k, v := range m.entries[m.nextID-1] {
		if k != key {
			snap[k] = v
		}
	}
	snap[key] = next
	m.entries[id] = snap
	return nil
}

type memoryScan struct {
	store      *MemorySnapshots
	snapshotID int64
	partition  string
	bucket     int
	hasBucket  bool
}

func (s *memoryScan) WithPartitionFilter(partition string) Scan {
	s.partition = partition
	return s
}

func (s *memoryScan) WithBucket(bucket int) Scan {
	s.bucket = bucket
	s.hasBucket = true
	return s
}

func (s *memoryScan) Files() ([]ManifestEntry, error) {
	if !s.hasBucket {
		return nil, fmt.Errorf("manifest: scan requires WithBucket")
	}
	s.store.mu.Lock()
	defer s.store.mu.Unlock()
	key := bucketKey(s.partition, s.bucket)
	entries := s.store.entries[s.snapshotID][key]
	out := make([]ManifestEntry, len(entries))
	copy(out, entries)
	return out, nil
}

// SequentialPathFactory names data files
// "<partition>/<bucket>/<level>/data-<n>.dat", with n a zero-padded,
// monotonically increasing counter, standing in for the external
// path factory this package only consumes.
type SequentialPathFactory struct {
	counter atomic.Uint64
}

// NewDataFilePath implements PathFactory.
func (f *SequentialPathFactory) NewDataFilePath(partition string, bucket int, level int) string {
	n := f.counter.Add(1)
	return fmt.Sprintf("%s/%d/%d/data-%08d.dat", partition, bucket, level, n)
}
