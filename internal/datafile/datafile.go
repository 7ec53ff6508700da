// Package datafile implements the rolling writer and reader for the
// immutable, sorted data files that back every DataFileMeta: a stream of
// length-prefixed, checksummed, compressed key/value records.
//
// Combines internal/compression and internal/checksum into the simple
// block-per-file codec this write engine needs in place of a full
// block-based SST format: index blocks, bloom filters, and restart
// points have no home here, since the snapshot/manifest service owns
// file discovery rather than an on-disk index.
package datafile

import (
	"fmt"

	"github.com/yaofengchn/flink-table-store/internal/checksum"
	"github.com/yaofengchn/flink-table-store/internal/compression"
	"github.com/yaofengchn/flink-table-store/internal/encoding"
	"github.com/yaofengchn/flink-table-store/internal/errs"
	"github.com/yaofengchn/flink-table-store/internal/kv"
)

// magic identifies the start of a record block so a reader can detect
// gross corruption before trusting the length prefix.
const magic = 0x4d545332 // "MTS2"

// Footer trailer size: magic(4) + compressedLen(4) + uncompressedLen(4) +
// checksum(8) + compression type(1).
const footerSize = 4 + 4 + 4 + 8 + 1

// EncodeRecord appends kv's wire form to dst: varint key length, key,
// fixed64 sequence+kind trailer, varint value length, value.
func EncodeRecord(dst []byte, r kv.KeyValue) []byte {
	dst = encoding.AppendVarint32(dst, uint32(len(r.Key)))
	dst = append(dst, r.Key...)
	trailer := uint64(r.Seq)<<8 | uint64(r.Kind)
	dst = encoding.AppendFixed64(dst, trailer)
	dst = encoding.AppendVarint32(dst, uint32(len(r.Value)))
	dst = append(dst, r.Value...)
	return dst
}

// DecodeRecord reads one record from src, returning it and the number of
// bytes consumed.
func DecodeRecord(src []byte) (kv.KeyValue, int, error) {
	s := encoding.NewSlice(src)
	keyLen, ok := s.GetVarint32()
	if !ok {
		return kv.KeyValue{}, 0, fmt.Errorf("datafile: truncated key length")
	}
	key, ok := s.GetBytes(int(keyLen))
	if !ok {
		return kv.KeyValue{}, 0, fmt.Errorf("datafile: truncated key")
	}
	trailer, ok := s.GetFixed64()
	if !ok {
		return kv.KeyValue{}, 0, fmt.Errorf("datafile: truncated trailer")
	}
	valLen, ok := s.GetVarint32()
	if !ok {
		return kv.KeyValue{}, 0, fmt.Errorf("datafile: truncated value length")
	}
	val, ok := s.GetBytes(int(valLen))
	if !ok {
		return kv.KeyValue{}, 0, fmt.Errorf("datafile: truncated value")
	}
	rec := kv.KeyValue{
		Key:   append([]byte(nil), key...),
		Seq:   kv.SequenceNumber(trailer >> 8),
		Kind:  kv.Kind(trailer & 0xff),
		Value: append([]byte(nil), val...),
	}
	return rec, len(src) - s.Remaining(), nil
}

// encodeBlock compresses payload and appends a self-describing footer so
// Decompress doesn't need a caller-managed byte range.
func encodeBlock(payload []byte, compressionType compression.Type) ([]byte, error) {
	compressed, err := compression.Compress(compressionType, payload)
	if err != nil {
		return nil, fmt.Errorf("datafile: compress: %w", err)
	}
	sum := checksum.Compute(compressed)

	out := make([]byte, 0, len(compressed)+footerSize)
	out = append(out, compressed...)
	out = encoding.AppendFixed32(out, magic)
	out = encoding.AppendFixed32(out, uint32(len(compressed)))
	out = encoding.AppendFixed32(out, uint32(len(payload)))
	out = encoding.AppendFixed64(out, sum)
	out = append(out, byte(compressionType))
	return out, nil
}

// decodeBlock validates and decompresses a block encoded by encodeBlock.
func decodeBlock(raw []byte) ([]byte, error) {
	if len(raw) < footerSize {
		return nil, errs.CorruptFile("datafile: decode block", fmt.Errorf("block shorter than footer"))
	}
	footer := raw[len(raw)-footerSize:]
	body := raw[:len(raw)-footerSize]

	gotMagic := encoding.DecodeFixed32(footer[0:4])
	if gotMagic != magic {
		return nil, errs.CorruptFile("datafile: decode block", fmt.Errorf("bad magic %x", gotMagic))
	}
	compressedLen := encoding.DecodeFixed32(footer[4:8])
	uncompressedLen := encoding.DecodeFixed32(footer[8:12])
	wantSum := encoding.DecodeFixed64(footer[12:20])
	compressionType := compression.Type(footer[20])

	if int(compressedLen) != len(body) {
		return nil, errs.CorruptFile("datafile: decode block", fmt.Errorf("compressed length mismatch: footer says %d, body is %d", compressedLen, len(body)))
	}
	if !checksum.Verify(body, wantSum) {
		return nil, errs.CorruptFile("datafile: decode block", fmt.Errorf("checksum mismatch"))
	}
	payload, err := compression.Decompress(compressionType, body, int(uncompressedLen))
	if err != nil {
		return nil, errs.CorruptFile("datafile: decode block", fmt.Errorf("decompress: %w", err))
	}
	return payload, nil
}
