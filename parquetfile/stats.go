package parquetfile

import (
	"bytes"

	"github.com/parquedb/parquedb/parquetfile/format"
)

// updateStats folds v into stats' running min/max, comparing typed Go
// values rather than raw bytes (byte-lexicographic comparison of
// little-endian ints would sort wrong for negative numbers). Min/Max are
// stored PLAIN-encoded, matching how real Parquet readers expect a
// column chunk's statistics to be represented.
func updateStats(stats *format.Statistics, col Column, v any) {
	enc, err := encodeScalar(col, v)
	if err != nil {
		return
	}
	if stats.Min == nil || lessScalar(col, v, decodeMust(col, stats.Min)) {
		stats.Min = enc
	}
	if stats.Max == nil || lessScalar(col, decodeMust(col, stats.Max), v) {
		stats.Max = enc
	}
}

func decodeMust(col Column, enc []byte) any {
	v, _, err := decodeScalar(col, enc)
	if err != nil {
		return nil
	}
	return v
}

func lessScalar(col Column, a, b any) bool {
	switch col.Type {
	case format.Int32, format.Int64:
		an, aok := a.(int64)
		bn, bok := b.(int64)
		if !aok {
			an, _ = toInt64(a)
		}
		if !bok {
			bn, _ = toInt64(b)
		}
		return an < bn
	case format.Float, format.Double:
		af, _ := toFloat64(a)
		bf, _ := toFloat64(b)
		return af < bf
	case format.Boolean:
		ab, _ := a.(bool)
		bb, _ := b.(bool)
		return !ab && bb
	case format.ByteArray, format.FixedLenByteArray:
		ab, _ := toBytes(a)
		bb, _ := toBytes(b)
		return bytes.Compare(ab, bb) < 0
	default:
		return false
	}
}
