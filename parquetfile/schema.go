package parquetfile

import "github.com/parquedb/parquedb/parquetfile/format"

// Column describes one physical column this codec knows how to write
// and read. ParqueDB's entity rows are flattened to a fixed column set
// by the engine before reaching this package; arbitrary user fields that
// don't map to a declared column are folded into a JSON-encoded
// "$data" byte-array column (see Non-goals on deeply nested structs in
// the codec itself).
type Column struct {
	Name         string
	Type         format.Type
	Optional     bool
	Converted    *format.ConvertedType
	TypeLength   int32
	Codec        format.CompressionCodec
	StatsEnabled bool
}

// Schema is the ordered set of columns a Writer encodes rows against and
// a Reader decodes them back into.
type Schema struct {
	Columns []Column
}

// indexOf returns the position of name in the schema, or -1.
func (s *Schema) indexOf(name string) int {
	for i, c := range s.Columns {
		if c.Name == name {
			return i
		}
	}
	return -1
}
