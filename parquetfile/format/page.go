package format

import (
	"bytes"

	"github.com/parquedb/parquedb/parquetfile/internal/thrift"
)

// PageType identifies the kind of page a PageHeader introduces,
// matching Apache Parquet's parquet.thrift PageType enum.
type PageType int32

const (
	DataPage       PageType = 0
	IndexPage      PageType = 1
	DictionaryPage PageType = 2
	DataPageV2     PageType = 3
)

// DataPageHeader carries the page-level metadata specific to a
// DATA_PAGE: how many values it holds and which encodings were used
// for its definition/repetition-level streams and its values.
type DataPageHeader struct {
	NumValues               int32
	Encoding                Encoding
	DefinitionLevelEncoding Encoding
	RepetitionLevelEncoding Encoding
}

// PageHeader precedes every page's bytes in a column chunk. Real
// Parquet readers (parquet-mr, pyarrow, DuckDB) require one
// immediately before each page; without it a compressed blob is just
// opaque bytes with no declared type, size, or encoding.
type PageHeader struct {
	Type                 PageType
	UncompressedPageSize int32
	CompressedPageSize   int32
	DataPageHeader       *DataPageHeader
}

const (
	fieldPageHeaderType           = 1
	fieldPageHeaderUncompressed   = 2
	fieldPageHeaderCompressed     = 3
	fieldPageHeaderDataPageHeader = 5

	fieldDataPageNumValues        = 1
	fieldDataPageEncoding         = 2
	fieldDataPageDefLevelEncoding = 3
	fieldDataPageRepLevelEncoding = 4
)

// MarshalPageHeader serializes ph using the same Thrift compact
// protocol as the file footer.
func MarshalPageHeader(ph *PageHeader) []byte {
	var buf bytes.Buffer
	w := thrift.NewWriter(&buf)
	w.WriteStructBegin()
	w.WriteI32Field(fieldPageHeaderType, int32(ph.Type))
	w.WriteI32Field(fieldPageHeaderUncompressed, ph.UncompressedPageSize)
	w.WriteI32Field(fieldPageHeaderCompressed, ph.CompressedPageSize)
	if ph.DataPageHeader != nil {
		w.WriteStructFieldBegin(fieldPageHeaderDataPageHeader)
		w.WriteStructBegin()
		dph := ph.DataPageHeader
		w.WriteI32Field(fieldDataPageNumValues, dph.NumValues)
		w.WriteI32Field(fieldDataPageEncoding, int32(dph.Encoding))
		w.WriteI32Field(fieldDataPageDefLevelEncoding, int32(dph.DefinitionLevelEncoding))
		w.WriteI32Field(fieldDataPageRepLevelEncoding, int32(dph.RepetitionLevelEncoding))
		w.WriteStructEnd()
	}
	w.WriteStructEnd()
	return buf.Bytes()
}

// UnmarshalPageHeader parses a PageHeader from the front of data and
// returns it alongside whatever bytes follow it — the page's own
// (possibly compressed) payload. Unknown fields are skipped so a
// header written by a newer version of this package still parses.
func UnmarshalPageHeader(data []byte) (*PageHeader, []byte, error) {
	r := thrift.NewReader(bytes.NewReader(data))
	ph := &PageHeader{}
	r.ReadStructBegin()
	for {
		fh, err := r.ReadFieldBegin()
		if err != nil {
			return nil, nil, err
		}
		if fh.Type == 0 {
			break
		}
		switch fh.ID {
		case fieldPageHeaderType:
			v, err := r.ReadI32()
			if err != nil {
				return nil, nil, err
			}
			ph.Type = PageType(v)
		case fieldPageHeaderUncompressed:
			v, err := r.ReadI32()
			if err != nil {
				return nil, nil, err
			}
			ph.UncompressedPageSize = v
		case fieldPageHeaderCompressed:
			v, err := r.ReadI32()
			if err != nil {
				return nil, nil, err
			}
			ph.CompressedPageSize = v
		case fieldPageHeaderDataPageHeader:
			dph, err := readDataPageHeader(r)
			if err != nil {
				return nil, nil, err
			}
			ph.DataPageHeader = dph
		default:
			if err := r.Skip(fh.Type); err != nil {
				return nil, nil, err
			}
		}
	}
	r.ReadStructEnd()
	rest, err := r.Rest()
	if err != nil {
		return nil, nil, err
	}
	return ph, rest, nil
}

func readDataPageHeader(r *thrift.Reader) (*DataPageHeader, error) {
	dph := &DataPageHeader{}
	r.ReadStructBegin()
	for {
		fh, err := r.ReadFieldBegin()
		if err != nil {
			return nil, err
		}
		if fh.Type == 0 {
			break
		}
		switch fh.ID {
		case fieldDataPageNumValues:
			v, err := r.ReadI32()
			if err != nil {
				return nil, err
			}
			dph.NumValues = v
		case fieldDataPageEncoding:
			v, err := r.ReadI32()
			if err != nil {
				return nil, err
			}
			dph.Encoding = Encoding(v)
		case fieldDataPageDefLevelEncoding:
			v, err := r.ReadI32()
			if err != nil {
				return nil, err
			}
			dph.DefinitionLevelEncoding = Encoding(v)
		case fieldDataPageRepLevelEncoding:
			v, err := r.ReadI32()
			if err != nil {
				return nil, err
			}
			dph.RepetitionLevelEncoding = Encoding(v)
		default:
			if err := r.Skip(fh.Type); err != nil {
				return nil, err
			}
		}
	}
	r.ReadStructEnd()
	return dph, nil
}
