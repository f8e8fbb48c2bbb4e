package format

import (
	"bytes"

	"github.com/parquedb/parquedb/parquetfile/internal/thrift"
)

// Thrift field ids, matching the positions used by Apache Parquet's
// parquet.thrift IDL for the structs this package mirrors.
const (
	fieldSchemaElementType           = 1
	fieldSchemaElementTypeLength     = 2
	fieldSchemaElementRepetitionType = 3
	fieldSchemaElementName           = 4
	fieldSchemaElementNumChildren    = 5
	fieldSchemaElementConvertedType  = 6
	fieldSchemaElementScale          = 7
	fieldSchemaElementPrecision      = 8

	fieldStatsMax       = 1
	fieldStatsMin       = 2
	fieldStatsNullCount = 3

	fieldColumnMetaType       = 1
	fieldColumnMetaEncodings  = 2
	fieldColumnMetaPath       = 3
	fieldColumnMetaCodec      = 4
	fieldColumnMetaNumValues  = 5
	fieldColumnMetaTotalUnc   = 6
	fieldColumnMetaTotalComp  = 7
	fieldColumnMetaDataOffset = 9
	fieldColumnMetaStatistics = 12

	fieldColumnChunkFileOffset = 2
	fieldColumnChunkMetaData   = 3

	fieldRowGroupColumns    = 1
	fieldRowGroupTotalBytes = 2
	fieldRowGroupNumRows    = 3

	fieldKeyValueKey   = 1
	fieldKeyValueValue = 2

	fieldFileMetaVersion   = 1
	fieldFileMetaSchema    = 2
	fieldFileMetaNumRows   = 3
	fieldFileMetaRowGroups = 4
	fieldFileMetaKeyValue  = 5
	fieldFileMetaCreatedBy = 6
)

// Marshal serializes m using the Thrift compact protocol, the exact byte
// layout Parquet readers expect in a file's footer.
func Marshal(m *FileMetaData) []byte {
	var buf bytes.Buffer
	w := thrift.NewWriter(&buf)

	w.WriteStructBegin()
	w.WriteI32Field(fieldFileMetaVersion, m.Version)

	w.WriteListFieldBegin(fieldFileMetaSchema, thrift.CompactStruct, len(m.Schema))
	for _, s := range m.Schema {
		writeSchemaElement(w, &s)
	}

	w.WriteI64Field(fieldFileMetaNumRows, m.NumRows)

	w.WriteListFieldBegin(fieldFileMetaRowGroups, thrift.CompactStruct, len(m.RowGroups))
	for _, rg := range m.RowGroups {
		writeRowGroup(w, &rg)
	}

	if len(m.KeyValueMetadata) > 0 {
		w.WriteListFieldBegin(fieldFileMetaKeyValue, thrift.CompactStruct, len(m.KeyValueMetadata))
		for _, kv := range m.KeyValueMetadata {
			w.WriteStructBegin()
			w.WriteStringField(fieldKeyValueKey, kv.Key)
			w.WriteStringField(fieldKeyValueValue, kv.Value)
			w.WriteStructEnd()
		}
	}

	w.WriteStringField(fieldFileMetaCreatedBy, m.CreatedBy)
	w.WriteStructEnd()

	return buf.Bytes()
}

func writeSchemaElement(w *thrift.Writer, s *SchemaElement) {
	w.WriteStructBegin()
	if s.Type != nil {
		w.WriteI32Field(fieldSchemaElementType, int32(*s.Type))
	}
	if s.TypeLength != nil {
		w.WriteI32Field(fieldSchemaElementTypeLength, *s.TypeLength)
	}
	if s.RepetitionType != nil {
		w.WriteI32Field(fieldSchemaElementRepetitionType, int32(*s.RepetitionType))
	}
	w.WriteStringField(fieldSchemaElementName, s.Name)
	if s.NumChildren != nil {
		w.WriteI32Field(fieldSchemaElementNumChildren, *s.NumChildren)
	}
	if s.ConvertedType != nil {
		w.WriteI32Field(fieldSchemaElementConvertedType, int32(*s.ConvertedType))
	}
	if s.Scale != nil {
		w.WriteI32Field(fieldSchemaElementScale, *s.Scale)
	}
	if s.Precision != nil {
		w.WriteI32Field(fieldSchemaElementPrecision, *s.Precision)
	}
	w.WriteStructEnd()
}

func writeStatistics(w *thrift.Writer, fieldID int16, s *Statistics) {
	w.WriteStructFieldBegin(fieldID)
	w.WriteStructBegin()
	if s.HasMinMax {
		w.WriteBinaryField(fieldStatsMax, s.Max)
		w.WriteBinaryField(fieldStatsMin, s.Min)
	}
	w.WriteI64Field(fieldStatsNullCount, s.NullCount)
	w.WriteStructEnd()
}

func writeColumnMetaData(w *thrift.Writer, fieldID int16, cm *ColumnMetaData) {
	w.WriteStructFieldBegin(fieldID)
	w.WriteStructBegin()
	w.WriteI32Field(fieldColumnMetaType, int32(cm.Type))

	w.WriteListFieldBegin(fieldColumnMetaEncodings, thrift.CompactI32, len(cm.Encodings))
	for _, e := range cm.Encodings {
		writeRawI32(w, int32(e))
	}

	w.WriteListFieldBegin(fieldColumnMetaPath, thrift.CompactBinary, len(cm.PathInSchema))
	for _, p := range cm.PathInSchema {
		writeRawBinary(w, []byte(p))
	}

	w.WriteI32Field(fieldColumnMetaCodec, int32(cm.Codec))
	w.WriteI64Field(fieldColumnMetaNumValues, cm.NumValues)
	w.WriteI64Field(fieldColumnMetaTotalUnc, cm.TotalUncompressedSize)
	w.WriteI64Field(fieldColumnMetaTotalComp, cm.TotalCompressedSize)
	w.WriteI64Field(fieldColumnMetaDataOffset, cm.DataPageOffset)
	writeStatistics(w, fieldColumnMetaStatistics, &cm.Statistics)
	w.WriteStructEnd()
}

func writeColumnChunk(w *thrift.Writer, cc *ColumnChunk) {
	w.WriteStructBegin()
	w.WriteI64Field(fieldColumnChunkFileOffset, cc.FileOffset)
	writeColumnMetaData(w, fieldColumnChunkMetaData, &cc.MetaData)
	w.WriteStructEnd()
}

func writeRowGroup(w *thrift.Writer, rg *RowGroup) {
	w.WriteStructBegin()
	w.WriteListFieldBegin(fieldRowGroupColumns, thrift.CompactStruct, len(rg.Columns))
	for _, cc := range rg.Columns {
		writeColumnChunk(w, &cc)
	}
	w.WriteI64Field(fieldRowGroupTotalBytes, rg.TotalBytes)
	w.WriteI64Field(fieldRowGroupNumRows, rg.NumRows)
	w.WriteStructEnd()
}

func writeRawI32(w *thrift.Writer, v int32) {
	w.WriteRawI32(v)
}

func writeRawBinary(w *thrift.Writer, v []byte) {
	w.WriteRawBinary(v)
}

// Unmarshal parses the Thrift compact protocol bytes produced by Marshal
// back into a FileMetaData. Unknown fields are skipped so a footer
// written by a newer version of this package still parses.
func Unmarshal(data []byte) (*FileMetaData, error) {
	r := thrift.NewReader(bytes.NewReader(data))
	m := &FileMetaData{}
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
		case fieldFileMetaVersion:
			v, err := r.ReadI32()
			if err != nil {
				return nil, err
			}
			m.Version = v
		case fieldFileMetaSchema:
			lh, err := r.ReadListBegin()
			if err != nil {
				return nil, err
			}
			m.Schema = make([]SchemaElement, 0, lh.Size)
			for i := 0; i < lh.Size; i++ {
				s, err := readSchemaElement(r)
				if err != nil {
					return nil, err
				}
				m.Schema = append(m.Schema, s)
			}
		case fieldFileMetaNumRows:
			v, err := r.ReadI64()
			if err != nil {
				return nil, err
			}
			m.NumRows = v
		case fieldFileMetaRowGroups:
			lh, err := r.ReadListBegin()
			if err != nil {
				return nil, err
			}
			m.RowGroups = make([]RowGroup, 0, lh.Size)
			for i := 0; i < lh.Size; i++ {
				rg, err := readRowGroup(r)
				if err != nil {
					return nil, err
				}
				m.RowGroups = append(m.RowGroups, rg)
			}
		case fieldFileMetaKeyValue:
			lh, err := r.ReadListBegin()
			if err != nil {
				return nil, err
			}
			m.KeyValueMetadata = make([]KeyValue, 0, lh.Size)
			for i := 0; i < lh.Size; i++ {
				r.ReadStructBegin()
				var kv KeyValue
				for {
					kvfh, err := r.ReadFieldBegin()
					if err != nil {
						return nil, err
					}
					if kvfh.Type == 0 {
						break
					}
					switch kvfh.ID {
					case fieldKeyValueKey:
						kv.Key, err = r.ReadString()
					case fieldKeyValueValue:
						kv.Value, err = r.ReadString()
					default:
						err = r.Skip(kvfh.Type)
					}
					if err != nil {
						return nil, err
					}
				}
				r.ReadStructEnd()
				m.KeyValueMetadata = append(m.KeyValueMetadata, kv)
			}
		case fieldFileMetaCreatedBy:
			v, err := r.ReadString()
			if err != nil {
				return nil, err
			}
			m.CreatedBy = v
		default:
			if err := r.Skip(fh.Type); err != nil {
				return nil, err
			}
		}
	}
	r.ReadStructEnd()
	return m, nil
}

func readSchemaElement(r *thrift.Reader) (SchemaElement, error) {
	var s SchemaElement
	r.ReadStructBegin()
	for {
		fh, err := r.ReadFieldBegin()
		if err != nil {
			return s, err
		}
		if fh.Type == 0 {
			break
		}
		switch fh.ID {
		case fieldSchemaElementType:
			v, err := r.ReadI32()
			if err != nil {
				return s, err
			}
			t := Type(v)
			s.Type = &t
		case fieldSchemaElementTypeLength:
			v, err := r.ReadI32()
			if err != nil {
				return s, err
			}
			s.TypeLength = &v
		case fieldSchemaElementRepetitionType:
			v, err := r.ReadI32()
			if err != nil {
				return s, err
			}
			rt := FieldRepetitionType(v)
			s.RepetitionType = &rt
		case fieldSchemaElementName:
			v, err := r.ReadString()
			if err != nil {
				return s, err
			}
			s.Name = v
		case fieldSchemaElementNumChildren:
			v, err := r.ReadI32()
			if err != nil {
				return s, err
			}
			s.NumChildren = &v
		case fieldSchemaElementConvertedType:
			v, err := r.ReadI32()
			if err != nil {
				return s, err
			}
			ct := ConvertedType(v)
			s.ConvertedType = &ct
		case fieldSchemaElementScale:
			v, err := r.ReadI32()
			if err != nil {
				return s, err
			}
			s.Scale = &v
		case fieldSchemaElementPrecision:
			v, err := r.ReadI32()
			if err != nil {
				return s, err
			}
			s.Precision = &v
		default:
			if err := r.Skip(fh.Type); err != nil {
				return s, err
			}
		}
	}
	r.ReadStructEnd()
	return s, nil
}

func readStatistics(r *thrift.Reader) (Statistics, error) {
	var s Statistics
	r.ReadStructBegin()
	for {
		fh, err := r.ReadFieldBegin()
		if err != nil {
			return s, err
		}
		if fh.Type == 0 {
			break
		}
		switch fh.ID {
		case fieldStatsMax:
			v, err := r.ReadBinary()
			if err != nil {
				return s, err
			}
			s.Max = v
			s.HasMinMax = true
		case fieldStatsMin:
			v, err := r.ReadBinary()
			if err != nil {
				return s, err
			}
			s.Min = v
			s.HasMinMax = true
		case fieldStatsNullCount:
			v, err := r.ReadI64()
			if err != nil {
				return s, err
			}
			s.NullCount = v
		default:
			if err := r.Skip(fh.Type); err != nil {
				return s, err
			}
		}
	}
	r.ReadStructEnd()
	return s, nil
}

func readColumnMetaData(r *thrift.Reader) (ColumnMetaData, error) {
	var cm ColumnMetaData
	r.ReadStructBegin()
	for {
		fh, err := r.ReadFieldBegin()
		if err != nil {
			return cm, err
		}
		if fh.Type == 0 {
			break
		}
		switch fh.ID {
		case fieldColumnMetaType:
			v, err := r.ReadI32()
			if err != nil {
				return cm, err
			}
			cm.Type = Type(v)
		case fieldColumnMetaEncodings:
			lh, err := r.ReadListBegin()
			if err != nil {
				return cm, err
			}
			cm.Encodings = make([]Encoding, 0, lh.Size)
			for i := 0; i < lh.Size; i++ {
				v, err := r.ReadI32()
				if err != nil {
					return cm, err
				}
				cm.Encodings = append(cm.Encodings, Encoding(v))
			}
		case fieldColumnMetaPath:
			lh, err := r.ReadListBegin()
			if err != nil {
				return cm, err
			}
			cm.PathInSchema = make([]string, 0, lh.Size)
			for i := 0; i < lh.Size; i++ {
				v, err := r.ReadString()
				if err != nil {
					return cm, err
				}
				cm.PathInSchema = append(cm.PathInSchema, v)
			}
		case fieldColumnMetaCodec:
			v, err := r.ReadI32()
			if err != nil {
				return cm, err
			}
			cm.Codec = CompressionCodec(v)
		case fieldColumnMetaNumValues:
			v, err := r.ReadI64()
			if err != nil {
				return cm, err
			}
			cm.NumValues = v
		case fieldColumnMetaTotalUnc:
			v, err := r.ReadI64()
			if err != nil {
				return cm, err
			}
			cm.TotalUncompressedSize = v
		case fieldColumnMetaTotalComp:
			v, err := r.ReadI64()
			if err != nil {
				return cm, err
			}
			cm.TotalCompressedSize = v
		case fieldColumnMetaDataOffset:
			v, err := r.ReadI64()
			if err != nil {
				return cm, err
			}
			cm.DataPageOffset = v
		case fieldColumnMetaStatistics:
			st, err := readStatistics(r)
			if err != nil {
				return cm, err
			}
			cm.Statistics = st
		default:
			if err := r.Skip(fh.Type); err != nil {
				return cm, err
			}
		}
	}
	r.ReadStructEnd()
	return cm, nil
}

func readColumnChunk(r *thrift.Reader) (ColumnChunk, error) {
	var cc ColumnChunk
	r.ReadStructBegin()
	for {
		fh, err := r.ReadFieldBegin()
		if err != nil {
			return cc, err
		}
		if fh.Type == 0 {
			break
		}
		switch fh.ID {
		case fieldColumnChunkFileOffset:
			v, err := r.ReadI64()
			if err != nil {
				return cc, err
			}
			cc.FileOffset = v
		case fieldColumnChunkMetaData:
			cm, err := readColumnMetaData(r)
			if err != nil {
				return cc, err
			}
			cc.MetaData = cm
		default:
			if err := r.Skip(fh.Type); err != nil {
				return cc, err
			}
		}
	}
	r.ReadStructEnd()
	return cc, nil
}

func readRowGroup(r *thrift.Reader) (RowGroup, error) {
	var rg RowGroup
	r.ReadStructBegin()
	for {
		fh, err := r.ReadFieldBegin()
		if err != nil {
			return rg, err
		}
		if fh.Type == 0 {
			break
		}
		switch fh.ID {
		case fieldRowGroupColumns:
			lh, err := r.ReadListBegin()
			if err != nil {
				return rg, err
			}
			rg.Columns = make([]ColumnChunk, 0, lh.Size)
			for i := 0; i < lh.Size; i++ {
				cc, err := readColumnChunk(r)
				if err != nil {
					return rg, err
				}
				rg.Columns = append(rg.Columns, cc)
			}
		case fieldRowGroupTotalBytes:
			v, err := r.ReadI64()
			if err != nil {
				return rg, err
			}
			rg.TotalBytes = v
		case fieldRowGroupNumRows:
			v, err := r.ReadI64()
			if err != nil {
				return rg, err
			}
			rg.NumRows = v
		default:
			if err := r.Skip(fh.Type); err != nil {
				return rg, err
			}
		}
	}
	r.ReadStructEnd()
	return rg, nil
}
