// Package rle implements Parquet's RLE/bit-packing hybrid encoding, used
// here for the definition levels of optional columns. It implements the
// scalar run-detection algorithm rather than the vectorized
// word-at-a-time variant larger Parquet libraries use, since ParqueDB's
// columns are one level deep (entities have no repeated/nested groups
// beyond the RelSet value, which this codec stores as a JSON byte
// array rather than a native repeated group).
package rle

import "encoding/binary"

// Encoding packs a stream of non-negative integers, each requiring at
// most BitWidth bits, using runs of RLE where values repeat and
// bit-packed groups of 8 elsewhere.
type Encoding struct {
	BitWidth int
}

const minRunLength = 8

// Encode appends the RLE/bit-packing hybrid encoding of values to dst.
// Each value must fit in BitWidth bits.
func (e *Encoding) Encode(dst []byte, values []int32) []byte {
	i := 0
	for i < len(values) {
		runLen := 1
		for i+runLen < len(values) && values[i+runLen] == values[i] {
			runLen++
		}
		if runLen >= minRunLength || i+runLen == len(values) {
			dst = appendRLERun(dst, runLen, values[i], e.BitWidth)
			i += runLen
			continue
		}
		// Greedily bit-pack until a run of at least minRunLength appears.
		j := i
		for j < len(values) {
			// look ahead for the next sufficiently long run
			k := j
			rl := 1
			for k+rl < len(values) && values[k+rl] == values[k] {
				rl++
			}
			if rl >= minRunLength {
				break
			}
			j += rl
		}
		if j == i {
			j = i + 1
		}
		// A bit-packed run always decodes as whole groups of 8, so a run
		// that is not at the end of the stream must hold a multiple of 8
		// real values rather than zero padding.
		if j < len(values) {
			j = i + ((j-i+7)/8)*8
			if j > len(values) {
				j = len(values)
			}
		}
		groupValues := values[i:j]
		dst = appendBitPackedGroup(dst, groupValues, e.BitWidth)
		i = j
	}
	return dst
}

func appendRLERun(dst []byte, count int, value int32, bitWidth int) []byte {
	header := uint64(count) << 1
	dst = appendUvarint(dst, header)
	byteWidth := (bitWidth + 7) / 8
	buf := make([]byte, 4)
	binary.LittleEndian.PutUint32(buf, uint32(value))
	return append(dst, buf[:byteWidth]...)
}

// appendBitPackedGroup packs values in groups of 8, padding the final
// group with zeros, using the Parquet bit-packed-run header (count of
// 8-value groups, shifted left 1 with the low bit set to mark
// bit-packing rather than RLE).
func appendBitPackedGroup(dst []byte, values []int32, bitWidth int) []byte {
	numGroups := (len(values) + 7) / 8
	header := uint64(numGroups)<<1 | 1
	dst = appendUvarint(dst, header)

	padded := make([]int32, numGroups*8)
	copy(padded, values)

	bitBuf := uint64(0)
	bitCount := 0
	for _, v := range padded {
		bitBuf |= uint64(v) << uint(bitCount)
		bitCount += bitWidth
		for bitCount >= 8 {
			dst = append(dst, byte(bitBuf))
			bitBuf >>= 8
			bitCount -= 8
		}
	}
	if bitCount > 0 {
		dst = append(dst, byte(bitBuf))
	}
	return dst
}

func appendUvarint(dst []byte, v uint64) []byte {
	var buf [10]byte
	n := binary.PutUvarint(buf[:], v)
	return append(dst, buf[:n]...)
}

// Decode reads n values encoded by Encode from src.
func (e *Encoding) Decode(src []byte, n int) ([]int32, error) {
	out := make([]int32, 0, n)
	byteWidth := (e.BitWidth + 7) / 8
	for len(out) < n {
		header, nread := binary.Uvarint(src)
		if nread <= 0 {
			return nil, errTruncated
		}
		src = src[nread:]
		if header&1 == 0 {
			count := int(header >> 1)
			if byteWidth > len(src) {
				return nil, errTruncated
			}
			var buf [4]byte
			copy(buf[:], src[:byteWidth])
			value := int32(binary.LittleEndian.Uint32(buf[:]))
			src = src[byteWidth:]
			for i := 0; i < count; i++ {
				out = append(out, value)
			}
		} else {
			numGroups := int(header >> 1)
			count := numGroups * 8
			needed := (count*e.BitWidth + 7) / 8
			if needed > len(src) {
				return nil, errTruncated
			}
			bitBuf := uint64(0)
			bitCount := 0
			bi := 0
			for i := 0; i < count; i++ {
				for bitCount < e.BitWidth {
					bitBuf |= uint64(src[bi]) << uint(bitCount)
					bi++
					bitCount += 8
				}
				mask := uint64(1)<<uint(e.BitWidth) - 1
				out = append(out, int32(bitBuf&mask))
				bitBuf >>= uint(e.BitWidth)
				bitCount -= e.BitWidth
			}
			src = src[bi:]
		}
	}
	return out[:n], nil
}

type rleError string

func (e rleError) Error() string { return string(e) }

const errTruncated = rleError("rle: truncated input")
