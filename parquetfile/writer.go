// Package parquetfile assembles and parses single-file Apache Parquet
// files: "PAR1" magic, page-per-column-chunk row groups, a Thrift
// footer, and pluggable compression. It is the layer the engine's write
// and read paths call directly; format, compress, encoding/plain, and
// encoding/rle are its internal building blocks.
package parquetfile

import (
	"bytes"
	"fmt"
	"sort"

	"github.com/parquedb/parquedb/parquetfile/compress"
	"github.com/parquedb/parquedb/parquetfile/encoding/plain"
	"github.com/parquedb/parquedb/parquetfile/encoding/rle"
	"github.com/parquedb/parquedb/parquetfile/format"
)

// Row is one record to encode, keyed by column name. A missing or nil
// key means null for an optional column.
type Row map[string]any

// magic is written at the start and end of every file this codec
// produces, the standard Parquet file delimiter.
var magic = []byte("PAR1")

// WriteOptions configures Write.
type WriteOptions struct {
	// RowGroupSize caps rows per row group; 0 uses a reasonable default.
	RowGroupSize int
	CreatedBy    string
	KeyValues    map[string]string
}

const defaultRowGroupSize = 10000

// Write encodes rows against schema into a complete Parquet file,
// splitting into ceil(len(rows)/RowGroupSize) row groups.
func Write(schema *Schema, rows []Row, opts WriteOptions) ([]byte, error) {
	rowGroupSize := opts.RowGroupSize
	if rowGroupSize <= 0 {
		rowGroupSize = defaultRowGroupSize
	}

	var buf bytes.Buffer
	buf.Write(magic)

	meta := &format.FileMetaData{
		Version:   2,
		NumRows:   int64(len(rows)),
		CreatedBy: opts.CreatedBy,
	}
	meta.Schema = append(meta.Schema, rootSchemaElement(len(schema.Columns)))
	for _, c := range schema.Columns {
		meta.Schema = append(meta.Schema, columnSchemaElement(c))
	}

	for start := 0; start < len(rows); start += rowGroupSize {
		end := start + rowGroupSize
		if end > len(rows) {
			end = len(rows)
		}
		rg, err := writeRowGroup(&buf, schema, rows[start:end])
		if err != nil {
			return nil, fmt.Errorf("parquetfile: row group at offset %d: %w", start, err)
		}
		meta.RowGroups = append(meta.RowGroups, *rg)
	}

	keys := make([]string, 0, len(opts.KeyValues))
	for k := range opts.KeyValues {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		meta.KeyValueMetadata = append(meta.KeyValueMetadata, format.KeyValue{Key: k, Value: opts.KeyValues[k]})
	}

	footer := format.Marshal(meta)
	buf.Write(footer)
	var lenBuf [4]byte
	putUint32LE(lenBuf[:], uint32(len(footer)))
	buf.Write(lenBuf[:])
	buf.Write(magic)

	return buf.Bytes(), nil
}

func rootSchemaElement(numChildren int) format.SchemaElement {
	n := int32(numChildren)
	return format.SchemaElement{Name: "schema", NumChildren: &n}
}

func columnSchemaElement(c Column) format.SchemaElement {
	t := c.Type
	rep := format.Required
	if c.Optional {
		rep = format.Optional
	}
	el := format.SchemaElement{
		Type:           &t,
		RepetitionType: &rep,
		Name:           c.Name,
	}
	if c.Converted != nil {
		ct := *c.Converted
		el.ConvertedType = &ct
	}
	if c.Type == format.FixedLenByteArray && c.TypeLength > 0 {
		tl := c.TypeLength
		el.TypeLength = &tl
	}
	return el
}

func writeRowGroup(buf *bytes.Buffer, schema *Schema, rows []Row) (*format.RowGroup, error) {
	rg := &format.RowGroup{NumRows: int64(len(rows))}

	for _, col := range schema.Columns {
		values := make([]any, len(rows))
		for i, r := range rows {
			values[i] = r[col.Name]
		}
		cc, err := writeColumnChunk(buf, col, values)
		if err != nil {
			return nil, fmt.Errorf("column %q: %w", col.Name, err)
		}
		rg.Columns = append(rg.Columns, *cc)
		rg.TotalBytes += cc.MetaData.TotalCompressedSize
	}
	return rg, nil
}

// writeColumnChunk encodes one column's values as a single page: an
// optional RLE definition-level stream (when the column is nullable)
// followed by PLAIN-encoded non-null values, then compresses the whole
// page with the column's codec.
func writeColumnChunk(buf *bytes.Buffer, col Column, values []any) (*format.ColumnChunk, error) {
	offset := int64(buf.Len())

	var page []byte
	var nullCount int64
	var stats format.Statistics

	if col.Optional {
		defLevels := make([]int32, len(values))
		for i, v := range values {
			if v != nil {
				defLevels[i] = 1
			} else {
				nullCount++
			}
		}
		enc := &rle.Encoding{BitWidth: 1}
		levelBytes := enc.Encode(nil, defLevels)
		page = plain.AppendInt32(page, int32(len(levelBytes)))
		page = append(page, levelBytes...)
	}

	for _, v := range values {
		if v == nil {
			continue
		}
		encoded, err := encodeScalar(col, v)
		if err != nil {
			return nil, err
		}
		page = append(page, encoded...)
		updateStats(&stats, col, v)
	}
	stats.NullCount = nullCount
	stats.HasMinMax = stats.Min != nil || stats.Max != nil

	codec, err := compress.ForCodec(col.Codec)
	if err != nil {
		return nil, err
	}
	compressed, err := codec.Encode(nil, page)
	if err != nil {
		return nil, err
	}

	numValues := int64(len(values))
	header := format.MarshalPageHeader(&format.PageHeader{
		Type:                 format.DataPage,
		UncompressedPageSize: int32(len(page)),
		CompressedPageSize:   int32(len(compressed)),
		DataPageHeader: &format.DataPageHeader{
			NumValues:               int32(numValues),
			Encoding:                format.Plain,
			DefinitionLevelEncoding: format.RLE,
			RepetitionLevelEncoding: format.RLE,
		},
	})
	buf.Write(header)
	buf.Write(compressed)

	return &format.ColumnChunk{
		FileOffset: offset,
		MetaData: format.ColumnMetaData{
			Type:                  col.Type,
			Encodings:             []format.Encoding{format.Plain, format.RLE},
			PathInSchema:          []string{col.Name},
			Codec:                 col.Codec,
			NumValues:             numValues,
			TotalUncompressedSize: int64(len(page)),
			TotalCompressedSize:   int64(len(header)) + int64(len(compressed)),
			DataPageOffset:        offset,
			Statistics:            stats,
		},
	}, nil
}

func encodeScalar(col Column, v any) ([]byte, error) {
	switch col.Type {
	case format.Boolean:
		b, ok := v.(bool)
		if !ok {
			return nil, fmt.Errorf("expected bool, got %T", v)
		}
		if b {
			return []byte{1}, nil
		}
		return []byte{0}, nil
	case format.Int32:
		n, err := toInt64(v)
		if err != nil {
			return nil, err
		}
		return plain.AppendInt32(nil, int32(n)), nil
	case format.Int64:
		n, err := toInt64(v)
		if err != nil {
			return nil, err
		}
		return plain.AppendInt64(nil, n), nil
	case format.Float:
		f, err := toFloat64(v)
		if err != nil {
			return nil, err
		}
		return plain.AppendFloat(nil, float32(f)), nil
	case format.Double:
		f, err := toFloat64(v)
		if err != nil {
			return nil, err
		}
		return plain.AppendDouble(nil, f), nil
	case format.ByteArray:
		b, err := toBytes(v)
		if err != nil {
			return nil, err
		}
		return plain.AppendByteArray(nil, b), nil
	case format.FixedLenByteArray:
		b, err := toBytes(v)
		if err != nil {
			return nil, err
		}
		return b, nil
	default:
		return nil, fmt.Errorf("unsupported physical type %v", col.Type)
	}
}

func toInt64(v any) (int64, error) {
	switch n := v.(type) {
	case int:
		return int64(n), nil
	case int32:
		return int64(n), nil
	case int64:
		return n, nil
	case float64:
		return int64(n), nil
	default:
		return 0, fmt.Errorf("expected integer, got %T", v)
	}
}

func toFloat64(v any) (float64, error) {
	switch n := v.(type) {
	case float32:
		return float64(n), nil
	case float64:
		return n, nil
	case int:
		return float64(n), nil
	case int64:
		return float64(n), nil
	default:
		return 0, fmt.Errorf("expected number, got %T", v)
	}
}

func toBytes(v any) ([]byte, error) {
	switch b := v.(type) {
	case []byte:
		return b, nil
	case string:
		return []byte(b), nil
	default:
		return nil, fmt.Errorf("expected string or []byte, got %T", v)
	}
}

func putUint32LE(b []byte, v uint32) {
	b[0] = byte(v)
	b[1] = byte(v >> 8)
	b[2] = byte(v >> 16)
	b[3] = byte(v >> 24)
}
