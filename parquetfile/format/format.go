// Package format defines the physical structures written into a Parquet
// file's Thrift-encoded footer: schema elements, row groups, column
// chunks, and statistics. It is the wire-level struct set the rest of
// parquetfile builds on, scoped to exactly what ParqueDB's entity/Parquet
// mapping needs rather than the full Parquet Thrift IDL.
package format

// Type is the Parquet physical type.
type Type int32

const (
	Boolean Type = iota
	Int32
	Int64
	Int96
	Float
	Double
	ByteArray
	FixedLenByteArray
)

// FieldRepetitionType controls whether a column is required, optional,
// or repeated (arrays).
type FieldRepetitionType int32

const (
	Required FieldRepetitionType = iota
	Optional
	Repeated
)

// ConvertedType carries the logical annotations ParqueDB's field types
// need: UTF-8 strings, JSON, ENUM, LIST, DECIMAL, and millisecond/
// microsecond timestamps.
type ConvertedType int32

const (
	ConvertedNone   ConvertedType = -1
	UTF8            ConvertedType = 0
	JSON            ConvertedType = 19
	ListConverted   ConvertedType = 3
	Enum            ConvertedType = 4
	Decimal         ConvertedType = 5
	TimestampMillis ConvertedType = 9
	TimestampMicros ConvertedType = 10
)

// CompressionCodec enumerates the pluggable codecs this codec supports.
type CompressionCodec int32

const (
	Uncompressed CompressionCodec = iota
	Snappy
	Gzip
	_reservedLZO
	_reservedBrotli
	Lz4
	Zstd
)

// Encoding enumerates the value encodings this codec emits.
type Encoding int32

const (
	Plain Encoding = 0
	RLE   Encoding = 3
)

// SchemaElement describes one column (or the root message), matching
// Parquet's flat pre-order schema tree serialization.
type SchemaElement struct {
	Type           *Type
	TypeLength     *int32
	RepetitionType *FieldRepetitionType
	Name           string
	NumChildren    *int32
	ConvertedType  *ConvertedType
	Precision      *int32
	Scale          *int32
}

// Statistics holds per-column-chunk min/max/null-count statistics. They
// are written for every chunk; the read path does not consult them to
// skip row groups.
type Statistics struct {
	Min      []byte
	Max      []byte
	NullCount int64
	HasMinMax bool
}

// ColumnMetaData describes one column chunk's encoding, compression,
// location, and statistics.
type ColumnMetaData struct {
	Type                  Type
	Encodings             []Encoding
	PathInSchema          []string
	Codec                 CompressionCodec
	NumValues             int64
	TotalUncompressedSize int64
	TotalCompressedSize   int64
	DataPageOffset        int64
	Statistics            Statistics
}

// ColumnChunk wraps the metadata for one column within a row group.
// Column chunk data always lives in the same file as its footer; this
// codec never splits a chunk across files.
type ColumnChunk struct {
	FileOffset int64
	MetaData   ColumnMetaData
}

// RowGroup is one horizontal slice of the file.
type RowGroup struct {
	Columns    []ColumnChunk
	NumRows    int64
	TotalBytes int64
}

// KeyValue is one footer key/value metadata pair; the engine uses this
// to stamp its creator name and engine version onto each file.
type KeyValue struct {
	Key   string
	Value string
}

// FileMetaData is the root footer struct: schema, row-group statistics,
// and engine-supplied key/value metadata including creator and version.
type FileMetaData struct {
	Version          int32
	Schema           []SchemaElement
	NumRows          int64
	RowGroups        []RowGroup
	KeyValueMetadata []KeyValue
	CreatedBy        string
}
