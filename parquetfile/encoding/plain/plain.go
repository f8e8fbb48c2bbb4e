// Package plain implements Parquet's PLAIN encoding: fixed-width
// little-endian integers and floats, LSB-first bit-packed booleans, and
// length-prefixed byte arrays. It has no notion of repetition/definition
// levels; those are handled by the rle package and the column writer
// that drives both.
package plain

import (
	"encoding/binary"
	"math"
)

// AppendBoolean packs the i'th boolean value into values, growing it as
// needed. Bits are packed LSB-first within each byte, the order Parquet
// readers expect.
func AppendBoolean(values []byte, i int, v bool) []byte {
	byteIndex := i / 8
	bitIndex := uint(i % 8)
	for len(values) <= byteIndex {
		values = append(values, 0)
	}
	if v {
		values[byteIndex] |= 1 << bitIndex
	}
	return values
}

// DecodeBoolean reads the i'th boolean packed by AppendBoolean.
func DecodeBoolean(values []byte, i int) bool {
	byteIndex := i / 8
	bitIndex := uint(i % 8)
	if byteIndex >= len(values) {
		return false
	}
	return values[byteIndex]&(1<<bitIndex) != 0
}

// AppendInt32 appends v as 4 little-endian bytes.
func AppendInt32(values []byte, v int32) []byte {
	var buf [4]byte
	binary.LittleEndian.PutUint32(buf[:], uint32(v))
	return append(values, buf[:]...)
}

// AppendInt64 appends v as 8 little-endian bytes.
func AppendInt64(values []byte, v int64) []byte {
	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], uint64(v))
	return append(values, buf[:]...)
}

// AppendFloat appends v as 4 little-endian bytes.
func AppendFloat(values []byte, v float32) []byte {
	return AppendInt32(values, int32(math.Float32bits(v)))
}

// AppendDouble appends v as 8 little-endian bytes.
func AppendDouble(values []byte, v float64) []byte {
	return AppendInt64(values, int64(math.Float64bits(v)))
}

// AppendByteArray appends v as a 4-byte little-endian length prefix
// followed by its raw bytes.
func AppendByteArray(values []byte, v []byte) []byte {
	values = AppendInt32(values, int32(len(v)))
	return append(values, v...)
}

// DecodeInt32Slice decodes n consecutive 4-byte little-endian integers.
func DecodeInt32Slice(values []byte, n int) []int32 {
	out := make([]int32, n)
	for i := 0; i < n; i++ {
		out[i] = int32(binary.LittleEndian.Uint32(values[i*4:]))
	}
	return out
}

// DecodeInt64Slice decodes n consecutive 8-byte little-endian integers.
func DecodeInt64Slice(values []byte, n int) []int64 {
	out := make([]int64, n)
	for i := 0; i < n; i++ {
		out[i] = int64(binary.LittleEndian.Uint64(values[i*8:]))
	}
	return out
}

// DecodeFloatSlice decodes n consecutive 4-byte little-endian floats.
func DecodeFloatSlice(values []byte, n int) []float32 {
	out := make([]float32, n)
	for i := 0; i < n; i++ {
		out[i] = math.Float32frombits(binary.LittleEndian.Uint32(values[i*4:]))
	}
	return out
}

// DecodeDoubleSlice decodes n consecutive 8-byte little-endian doubles.
func DecodeDoubleSlice(values []byte, n int) []float64 {
	out := make([]float64, n)
	for i := 0; i < n; i++ {
		out[i] = math.Float64frombits(binary.LittleEndian.Uint64(values[i*8:]))
	}
	return out
}

// ByteArrayIterator walks a buffer of length-prefixed byte arrays,
// as produced by repeated calls to AppendByteArray.
type ByteArrayIterator struct {
	data []byte
	off  int
}

func NewByteArrayIterator(data []byte) *ByteArrayIterator {
	return &ByteArrayIterator{data: data}
}

// Next returns the next byte array and whether one was available.
func (it *ByteArrayIterator) Next() ([]byte, bool) {
	if it.off+4 > len(it.data) {
		return nil, false
	}
	n := int(binary.LittleEndian.Uint32(it.data[it.off:]))
	it.off += 4
	if it.off+n > len(it.data) {
		return nil, false
	}
	v := it.data[it.off : it.off+n]
	it.off += n
	return v, true
}
