// Package checksum guards every data file written by internal/datafile
// against silent corruption: each file footer stores the checksum of its
// row block, and a reader that finds a mismatch reports ErrCorruptFile.
package checksum

import "github.com/zeebo/xxh3"

// Compute returns the XXH3-64 checksum of data.
func Compute(data []byte) uint64 {
	return xxh3.Hash(data)
}

// Verify reports whether data matches the previously computed checksum.
func Verify(data []byte, want uint64) bool {
	return Compute(data) == want
}
