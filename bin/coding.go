// Package bin implements the binary primitives shared by the WAL and SSTable
// formats: little-endian fixed-width integers, varint32, and the CRC32 used
// for record and block checksums.
package bin

import (
	"encoding/binary"
	"errors"
)

// ErrVarintOverflow reports a varint32 whose value exceeds 32 bits.
var ErrVarintOverflow = errors.New("varint32 overflows 32 bits")

// ErrVarintTruncated reports a varint32 cut off by the end of the buffer.
var ErrVarintTruncated = errors.New("truncated varint32")

// MaxVarint32Len is the longest possible varint32 encoding.
const MaxVarint32Len = 5

// AppendFixed32 appends v in little-endian order.
func AppendFixed32(b []byte, v uint32) []byte {
	return binary.LittleEndian.AppendUint32(b, v)
}

// AppendFixed64 appends v in little-endian order.
func AppendFixed64(b []byte, v uint64) []byte {
	return binary.LittleEndian.AppendUint64(b, v)
}

// Fixed32 decodes a little-endian uint32 from the first 4 bytes of b.
func Fixed32(b []byte) uint32 {
	return binary.LittleEndian.Uint32(b)
}

// Fixed64 decodes a little-endian uint64 from the first 8 bytes of b.
func Fixed64(b []byte) uint64 {
	return binary.LittleEndian.Uint64(b)
}

// AppendVarint32 appends v using the 7-bits-per-byte varint encoding, low
// bytes first, high bit set on continuation bytes.
func AppendVarint32(b []byte, v uint32) []byte {
	for v >= 0x80 {
		b = append(b, byte(v)|0x80)
		v >>= 7
	}
	return append(b, byte(v))
}

// Varint32 decodes a varint32 from the front of b, returning the value and
// the number of bytes consumed. Fails on a truncated buffer or an encoding
// that overflows 32 bits.
func Varint32(b []byte) (v uint32, n int, err error) {
	var shift uint
	for i := 0; i < len(b) && i < MaxVarint32Len; i++ {
		c := b[i]
		if i == MaxVarint32Len-1 && c > 0x0f {
			// the fifth byte carries only the top four bits of a uint32
			return 0, 0, ErrVarintOverflow
		}
		v |= uint32(c&0x7f) << shift
		if c&0x80 == 0 {
			return v, i + 1, nil
		}
		shift += 7
	}
	if len(b) >= MaxVarint32Len {
		return 0, 0, ErrVarintOverflow
	}
	return 0, 0, ErrVarintTruncated
}

// Varint32Len reports the encoded length of v.
func Varint32Len(v uint32) int {
	n := 1
	for v >= 0x80 {
		v >>= 7
		n++
	}
	return n
}
