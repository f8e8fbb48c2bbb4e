package parquetfile_test

import (
	"testing"

	"github.com/parquedb/parquedb/parquetfile"
	"github.com/parquedb/parquedb/parquetfile/format"
)

func testSchema() *parquetfile.Schema {
	return &parquetfile.Schema{
		Columns: []parquetfile.Column{
			{Name: "id", Type: format.ByteArray},
			{Name: "age", Type: format.Int64, Optional: true},
			{Name: "score", Type: format.Double, Optional: true},
			{Name: "active", Type: format.Boolean},
		},
	}
}

func TestWriteReadRoundTrip(t *testing.T) {
	schema := testSchema()
	rows := []parquetfile.Row{
		{"id": []byte("e1"), "age": int64(30), "score": 1.5, "active": true},
		{"id": []byte("e2"), "age": nil, "score": 2.25, "active": false},
		{"id": []byte("e3"), "age": int64(45), "score": nil, "active": true},
	}

	data, err := parquetfile.Write(schema, rows, parquetfile.WriteOptions{
		RowGroupSize: 2,
		CreatedBy:    "parquedb",
		KeyValues:    map[string]string{"namespace": "people"},
	})
	if err != nil {
		t.Fatalf("write: %v", err)
	}

	f, err := parquetfile.OpenFile(data)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if f.NumRows() != 3 {
		t.Fatalf("want 3 rows, got %d", f.NumRows())
	}
	if len(f.Meta.RowGroups) != 2 {
		t.Fatalf("want 2 row groups for RowGroupSize=2, got %d", len(f.Meta.RowGroups))
	}

	got, err := f.ReadAll(schema)
	if err != nil {
		t.Fatalf("read all: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("want 3 rows back, got %d", len(got))
	}

	if string(got[0]["id"].([]byte)) != "e1" || got[0]["age"].(int64) != 30 || got[0]["active"].(bool) != true {
		t.Fatalf("row 0 mismatch: %+v", got[0])
	}
	if _, ok := got[1]["age"]; ok {
		t.Fatalf("row 1 age should be absent (null), got %+v", got[1]["age"])
	}
	if got[1]["score"].(float64) != 2.25 {
		t.Fatalf("row 1 score mismatch: %+v", got[1])
	}
	if _, ok := got[2]["score"]; ok {
		t.Fatalf("row 2 score should be absent (null), got %+v", got[2]["score"])
	}
}

func TestColumnChunkIsFramedByAPageHeader(t *testing.T) {
	schema := &parquetfile.Schema{
		Columns: []parquetfile.Column{
			{Name: "n", Type: format.Int64},
		},
	}
	rows := []parquetfile.Row{{"n": int64(7)}, {"n": int64(8)}}
	data, err := parquetfile.Write(schema, rows, parquetfile.WriteOptions{})
	if err != nil {
		t.Fatalf("write: %v", err)
	}
	f, err := parquetfile.OpenFile(data)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	cc := f.Meta.RowGroups[0].Columns[0]

	start := cc.FileOffset
	end := start + cc.MetaData.TotalCompressedSize
	ph, rest, err := format.UnmarshalPageHeader(data[start:end])
	if err != nil {
		t.Fatalf("expected a Thrift PageHeader immediately before the column chunk's bytes, got: %v", err)
	}
	if ph.Type != format.DataPage {
		t.Fatalf("expected DATA_PAGE, got %v", ph.Type)
	}
	if ph.DataPageHeader == nil || ph.DataPageHeader.NumValues != 2 {
		t.Fatalf("expected a DataPageHeader reporting 2 values, got %+v", ph.DataPageHeader)
	}
	if int64(ph.CompressedPageSize) > int64(len(rest)) {
		t.Fatalf("page header's declared compressed size %d exceeds available bytes %d", ph.CompressedPageSize, len(rest))
	}
}

func TestColumnChunkStatistics(t *testing.T) {
	schema := &parquetfile.Schema{
		Columns: []parquetfile.Column{
			{Name: "n", Type: format.Int64},
		},
	}
	rows := []parquetfile.Row{
		{"n": int64(5)},
		{"n": int64(-10)},
		{"n": int64(42)},
	}
	data, err := parquetfile.Write(schema, rows, parquetfile.WriteOptions{})
	if err != nil {
		t.Fatalf("write: %v", err)
	}
	f, err := parquetfile.OpenFile(data)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	stats := f.Meta.RowGroups[0].Columns[0].MetaData.Statistics
	if !stats.HasMinMax {
		t.Fatalf("expected statistics to be populated")
	}
	if len(stats.Min) != 8 || len(stats.Max) != 8 {
		t.Fatalf("expected 8-byte PLAIN-encoded int64 min/max, got %d/%d bytes", len(stats.Min), len(stats.Max))
	}

	var minVal, maxVal int64
	for i := 7; i >= 0; i-- {
		minVal = minVal<<8 | int64(stats.Min[i])
		maxVal = maxVal<<8 | int64(stats.Max[i])
	}
	if minVal != -10 {
		t.Fatalf("want min -10 (typed comparison, not byte order), got %d", minVal)
	}
	if maxVal != 42 {
		t.Fatalf("want max 42, got %d", maxVal)
	}
}
