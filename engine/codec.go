package engine

import (
	"encoding/json"
	"time"

	"github.com/parquedb/parquedb/entity"
	"github.com/parquedb/parquedb/internal/parqueerr"
	"github.com/parquedb/parquedb/parquetfile"
	"github.com/parquedb/parquedb/parquetfile/format"
)

// entitySchema is the fixed column set every engine-written Parquet file
// uses: system fields as native columns, user fields folded into a
// JSON-encoded $data byte-array column. Materializing each registered
// field into its own column is an equivalent alternative; the $data form
// is simpler and sufficient since the read path only ever consumes
// logical entities, never raw columns directly.
var entitySchema = &parquetfile.Schema{
	Columns: []parquetfile.Column{
		{Name: "$id", Type: format.ByteArray},
		{Name: "$type", Type: format.ByteArray},
		{Name: "name", Type: format.ByteArray, Optional: true},
		{Name: "version", Type: format.Int64},
		{Name: "createdAt", Type: format.Int64, Converted: convertedPtr(format.TimestampMicros)},
		{Name: "updatedAt", Type: format.Int64, Converted: convertedPtr(format.TimestampMicros)},
		{Name: "createdBy", Type: format.ByteArray, Optional: true},
		{Name: "updatedBy", Type: format.ByteArray, Optional: true},
		{Name: "deletedAt", Type: format.Int64, Optional: true, Converted: convertedPtr(format.TimestampMicros)},
		{Name: "deletedBy", Type: format.ByteArray, Optional: true},
		{Name: "seq", Type: format.Int64},
		{Name: "$data", Type: format.ByteArray, Converted: convertedPtr(format.JSON)},
	},
}

func convertedPtr(c format.ConvertedType) *format.ConvertedType { return &c }

// entityToRow encodes e plus the sequence number that produced this
// physical row into a parquetfile.Row.
func entityToRow(e *entity.Entity, seq int64) (parquetfile.Row, error) {
	data, err := json.Marshal(e.Fields)
	if err != nil {
		return nil, parqueerr.Wrap(parqueerr.Internal, err, "encode entity fields")
	}
	row := parquetfile.Row{
		"$id":       []byte(e.ID),
		"$type":     []byte(e.Type),
		"version":   e.Version,
		"createdAt": e.CreatedAt.UnixMicro(),
		"updatedAt": e.UpdatedAt.UnixMicro(),
		"seq":       seq,
		"$data":     data,
	}
	if e.Name != "" {
		row["name"] = []byte(e.Name)
	}
	if e.CreatedBy != "" {
		row["createdBy"] = []byte(e.CreatedBy)
	}
	if e.UpdatedBy != "" {
		row["updatedBy"] = []byte(e.UpdatedBy)
	}
	if e.DeletedAt != nil {
		row["deletedAt"] = e.DeletedAt.UnixMicro()
	}
	if e.DeletedBy != "" {
		row["deletedBy"] = []byte(e.DeletedBy)
	}
	return row, nil
}

// rowToEntity decodes a physical row back into an Entity and the
// sequence number that produced it, inverse of entityToRow. Relationship
// fields inside $data are re-hydrated into *entity.RelSet values.
func rowToEntity(row parquetfile.Row) (*entity.Entity, int64, error) {
	id, _ := row["$id"].([]byte)
	typ, _ := row["$type"].([]byte)

	var fields map[string]any
	if data, ok := row["$data"].([]byte); ok && len(data) > 0 {
		if err := json.Unmarshal(data, &fields); err != nil {
			return nil, 0, parqueerr.Wrap(parqueerr.Internal, err, "decode entity fields")
		}
	}
	for k, v := range fields {
		if entity.IsRelSetJSON(v) {
			fields[k] = entity.RelSetFromJSON(v)
		}
	}

	e := &entity.Entity{
		ID:      string(id),
		Type:    string(typ),
		Version: row["version"].(int64),
		Fields:  fields,
	}
	if name, ok := row["name"].([]byte); ok {
		e.Name = string(name)
	}
	if createdAt, ok := row["createdAt"].(int64); ok {
		e.CreatedAt = time.UnixMicro(createdAt).UTC()
	}
	if updatedAt, ok := row["updatedAt"].(int64); ok {
		e.UpdatedAt = time.UnixMicro(updatedAt).UTC()
	}
	if createdBy, ok := row["createdBy"].([]byte); ok {
		e.CreatedBy = string(createdBy)
	}
	if updatedBy, ok := row["updatedBy"].([]byte); ok {
		e.UpdatedBy = string(updatedBy)
	}
	if deletedAt, ok := row["deletedAt"].(int64); ok {
		t := time.UnixMicro(deletedAt).UTC()
		e.DeletedAt = &t
	}
	if deletedBy, ok := row["deletedBy"].([]byte); ok {
		e.DeletedBy = string(deletedBy)
	}

	seq, _ := row["seq"].(int64)
	return e, seq, nil
}
