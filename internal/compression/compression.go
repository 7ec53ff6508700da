// Package compression compresses and decompresses the row blocks written
// by the rolling data-file writer (internal/datafile). Each block carries
// a 1-byte compression type indicator followed by the (possibly)
// compressed bytes, so a reader can decompress without external context.
//
// Trimmed to the three real codecs the write engine selects between via
// Options.Compression: a fast default, a mid-ratio option, and a
// high-ratio option.
package compression

import (
	"fmt"

	"github.com/golang/snappy"
	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
)

// Type identifies a compression algorithm.
type Type uint8

const (
	// NoCompression stores blocks uncompressed.
	NoCompression Type = 0x0
	// SnappyCompression is the default: fast, low CPU, modest ratio.
	// Selected for the online rolling writer's ordinary flush/compact path.
	SnappyCompression Type = 0x1
	// LZ4Compression trades a little more CPU for a better ratio than Snappy.
	LZ4Compression Type = 0x2
	// ZstdCompression gives the best ratio at the highest CPU cost. Like
	// the other codecs it is used only when selected via
	// Options.Compression, which online writers and standalone compact
	// tasks share.
	ZstdCompression Type = 0x3
)

// String returns the human-readable name of the compression type.
func (t Type) String() string {
	switch t {
	case NoCompression:
		return "none"
	case SnappyCompression:
		return "snappy"
	case LZ4Compression:
		return "lz4"
	case ZstdCompression:
		return "zstd"
	default:
		return fmt.Sprintf("unknown(%d)", t)
	}
}

// Compress compresses data using the given algorithm.
func Compress(t Type, data []byte) ([]byte, error) {
	switch t {
	case NoCompression:
		return data, nil
	case SnappyCompression:
		return snappy.Encode(nil, data), nil
	case LZ4Compression:
		return compressLZ4(data)
	case ZstdCompression:
		return compressZstd(data)
	default:
		return nil, fmt.Errorf("compression: unsupported type %s", t)
	}
}

// Decompress decompresses data previously produced by Compress with the
// same type. expectedSize, if known, speeds up LZ4 decoding; pass 0 when
// unknown.
func Decompress(t Type, data []byte, expectedSize int) ([]byte, error) {
	switch t {
	case NoCompression:
		return data, nil
	case SnappyCompression:
		return snappy.Decode(nil, data)
	case LZ4Compression:
		return decompressLZ4(data, expectedSize)
	case ZstdCompression:
		return decompressZstd(data)
	default:
		return nil, fmt.Errorf("compression: unsupported type %s", t)
	}
}

func compressLZ4(data []byte) ([]byte, error) {
	dst := make([]byte, lz4.CompressBlockBound(len(data)))
	var ht [1 << 16]int
	n, err := lz4.CompressBlock(data, dst, ht[:])
	if err != nil {
		return nil, fmt.Errorf("lz4 compress block: %w", err)
	}
	if n == 0 {
		// Incompressible input: lz4 signals this by writing nothing.
		// Fall back to storing the raw bytes behind a 0 marker byte.
		return append([]byte{0}, data...), nil
	}
	return append([]byte{1}, dst[:n]...), nil
}

func decompressLZ4(data []byte, expectedSize int) ([]byte, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("lz4 decompress: empty input")
	}
	marker, payload := data[0], data[1:]
	if marker == 0 {
		return payload, nil
	}

	bufSize := max(expectedSize, max(len(payload)*4, 256))
	for range 10 {
		dst := make([]byte, bufSize)
		n, err := lz4.UncompressBlock(payload, dst)
		if err == nil {
			return dst[:n], nil
		}
		bufSize *= 2
	}
	return nil, fmt.Errorf("lz4 uncompress block: buffer too small after retries")
}

func compressZstd(data []byte) ([]byte, error) {
	encoder, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedBestCompression))
	if err != nil {
		return nil, fmt.Errorf("zstd encoder: %w", err)
	}
	defer encoder.Close()
	return encoder.EncodeAll(data, nil), nil
}

func decompressZstd(data []byte) ([]byte, error) {
	decoder, err := zstd.NewReader(nil)
	if err != nil {
		return nil, fmt.Errorf("zstd decoder: %w", err)
	}
	defer decoder.Close()
	return decoder.DecodeAll(data, nil)
}
