/*
Package mergetree implements the write path of a partitioned, bucketed
LSM-style table storage engine: an in-memory write buffer that flushes to
sorted data files, a Levels model (overlapping runs in L0, one sorted run
per level above), a universal (size-tiered) compaction strategy, and the
WriteCoordinator that ties buffer, levels, and background compaction
together behind a per-(partition, bucket) Writer.

# Usage

	opts := mergetree.DefaultOptions()
	coord := mergetree.NewWriteCoordinator(opts, snapshots, committer, paths, executor)
	w, err := coord.CreateWriter(ctx, "2026-08-01", 3)
	...
	err = w.Write(ctx, mergetree.KeyValue{Key: []byte("a"), Value: []byte("1")})
	...
	inc, err := w.Commit(ctx, false)

# Concurrency

A Writer is single-threaded on its write path: write, sync, and
prepareCommit must not be called concurrently with each other. Background
compaction runs on the executor supplied to NewWriteCoordinator and is safe to
run concurrently with writes; Levels mutations from compaction are
serialized with writer-side mutations under the writer's own lock.

# Scope

This package owns the write path only: buffering, flushing, level
bookkeeping, and compaction. It consumes, but does not implement, a
snapshot/manifest service and a file path factory (internal/manifest).
*/
package mergetree
