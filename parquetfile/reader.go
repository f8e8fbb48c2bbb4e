package parquetfile

import (
	"encoding/binary"
	"fmt"

	"github.com/parquedb/parquedb/parquetfile/compress"
	"github.com/parquedb/parquedb/parquetfile/encoding/plain"
	"github.com/parquedb/parquedb/parquetfile/encoding/rle"
	"github.com/parquedb/parquedb/parquetfile/format"
)

// File is a parsed Parquet file: its footer metadata plus the raw bytes,
// ready for on-demand row-group materialization.
type File struct {
	Meta *format.FileMetaData
	data []byte
}

// OpenFile validates the PAR1 magic at both ends and parses the footer,
// without materializing any row group's data.
func OpenFile(data []byte) (*File, error) {
	if len(data) < len(magic)*2+4 {
		return nil, fmt.Errorf("parquetfile: file too short")
	}
	if string(data[:4]) != string(magic) || string(data[len(data)-4:]) != string(magic) {
		return nil, fmt.Errorf("parquetfile: missing PAR1 magic")
	}
	footerLen := binary.LittleEndian.Uint32(data[len(data)-8 : len(data)-4])
	footerStart := len(data) - 8 - int(footerLen)
	if footerStart < 4 {
		return nil, fmt.Errorf("parquetfile: corrupt footer length")
	}
	meta, err := format.Unmarshal(data[footerStart : len(data)-8])
	if err != nil {
		return nil, fmt.Errorf("parquetfile: parse footer: %w", err)
	}
	return &File{Meta: meta, data: data}, nil
}

// NumRows returns the total row count across every row group, available
// without decoding any column data.
func (f *File) NumRows() int64 { return f.Meta.NumRows }

// ReadRowGroup decodes row group index rg of the file against schema,
// returning one Row per stored record in storage order.
func (f *File) ReadRowGroup(schema *Schema, rg int) ([]Row, error) {
	if rg < 0 || rg >= len(f.Meta.RowGroups) {
		return nil, fmt.Errorf("parquetfile: row group index %d out of range", rg)
	}
	group := f.Meta.RowGroups[rg]
	rows := make([]Row, group.NumRows)
	for i := range rows {
		rows[i] = make(Row, len(schema.Columns))
	}

	for _, cc := range group.Columns {
		colIdx := schema.indexOf(firstOrEmpty(cc.MetaData.PathInSchema))
		if colIdx < 0 {
			continue
		}
		col := schema.Columns[colIdx]
		values, err := readColumnChunk(f.data, &cc, col, int(group.NumRows))
		if err != nil {
			return nil, fmt.Errorf("column %q: %w", col.Name, err)
		}
		for i, v := range values {
			if v != nil {
				rows[i][col.Name] = v
			}
		}
	}
	return rows, nil
}

// ReadAll decodes every row group in order.
func (f *File) ReadAll(schema *Schema) ([]Row, error) {
	var out []Row
	for i := range f.Meta.RowGroups {
		rows, err := f.ReadRowGroup(schema, i)
		if err != nil {
			return nil, err
		}
		out = append(out, rows...)
	}
	return out, nil
}

func firstOrEmpty(path []string) string {
	if len(path) == 0 {
		return ""
	}
	return path[0]
}

func readColumnChunk(data []byte, cc *format.ColumnChunk, col Column, numRows int) ([]any, error) {
	start := cc.FileOffset
	end := start + cc.MetaData.TotalCompressedSize
	if end > int64(len(data)) || start < 0 {
		return nil, fmt.Errorf("chunk offset out of range")
	}
	ph, pageBytes, err := format.UnmarshalPageHeader(data[start:end])
	if err != nil {
		return nil, fmt.Errorf("page header: %w", err)
	}
	if int64(len(pageBytes)) < int64(ph.CompressedPageSize) {
		return nil, fmt.Errorf("truncated page: want %d compressed bytes, have %d", ph.CompressedPageSize, len(pageBytes))
	}
	pageBytes = pageBytes[:ph.CompressedPageSize]

	codec, err := compress.ForCodec(cc.MetaData.Codec)
	if err != nil {
		return nil, err
	}
	page, err := codec.Decode(nil, pageBytes)
	if err != nil {
		return nil, err
	}

	var present []bool
	if col.Optional {
		if len(page) < 4 {
			return nil, fmt.Errorf("truncated definition-level header")
		}
		levelLen := int(binary.LittleEndian.Uint32(page[:4]))
		page = page[4:]
		if levelLen > len(page) {
			return nil, fmt.Errorf("truncated definition-level stream")
		}
		levelBytes := page[:levelLen]
		page = page[levelLen:]
		enc := &rle.Encoding{BitWidth: 1}
		levels, err := enc.Decode(levelBytes, numRows)
		if err != nil {
			return nil, err
		}
		present = make([]bool, numRows)
		for i, lv := range levels {
			present[i] = lv == 1
		}
	} else {
		present = make([]bool, numRows)
		for i := range present {
			present[i] = true
		}
	}

	out := make([]any, numRows)
	off := 0
	for i := 0; i < numRows; i++ {
		if !present[i] {
			continue
		}
		v, n, err := decodeScalar(col, page[off:])
		if err != nil {
			return nil, err
		}
		out[i] = v
		off += n
	}
	return out, nil
}

// decodeScalar decodes one PLAIN-encoded value of col's physical type
// from the front of buf, returning the value and the number of bytes it
// consumed.
func decodeScalar(col Column, buf []byte) (any, int, error) {
	switch col.Type {
	case format.Boolean:
		if len(buf) < 1 {
			return nil, 0, fmt.Errorf("truncated boolean value")
		}
		return buf[0] != 0, 1, nil
	case format.Int32:
		if len(buf) < 4 {
			return nil, 0, fmt.Errorf("truncated int32 value")
		}
		return int64(plain.DecodeInt32Slice(buf[:4], 1)[0]), 4, nil
	case format.Int64:
		if len(buf) < 8 {
			return nil, 0, fmt.Errorf("truncated int64 value")
		}
		return plain.DecodeInt64Slice(buf[:8], 1)[0], 8, nil
	case format.Float:
		if len(buf) < 4 {
			return nil, 0, fmt.Errorf("truncated float value")
		}
		return float64(plain.DecodeFloatSlice(buf[:4], 1)[0]), 4, nil
	case format.Double:
		if len(buf) < 8 {
			return nil, 0, fmt.Errorf("truncated double value")
		}
		return plain.DecodeDoubleSlice(buf[:8], 1)[0], 8, nil
	case format.ByteArray:
		if len(buf) < 4 {
			return nil, 0, fmt.Errorf("truncated byte array length")
		}
		n := int(binary.LittleEndian.Uint32(buf[:4]))
		if len(buf) < 4+n {
			return nil, 0, fmt.Errorf("truncated byte array value")
		}
		v := make([]byte, n)
		copy(v, buf[4:4+n])
		return v, 4 + n, nil
	case format.FixedLenByteArray:
		n := int(col.TypeLength)
		if len(buf) < n {
			return nil, 0, fmt.Errorf("truncated fixed-length value")
		}
		v := make([]byte, n)
		copy(v, buf[:n])
		return v, n, nil
	default:
		return nil, 0, fmt.Errorf("unsupported physical type %v", col.Type)
	}
}
