package compress_test

import (
	"bytes"
	"testing"

	"github.com/parquedb/parquedb/parquetfile/compress"
	"github.com/parquedb/parquedb/parquetfile/format"
)

func TestRoundTripAllCodecs(t *testing.T) {
	payload := bytes.Repeat([]byte("the quick brown fox jumps over the lazy dog "), 200)

	codecs := []format.CompressionCodec{
		format.Uncompressed,
		format.Snappy,
		format.Gzip,
		format.Lz4,
		format.Zstd,
	}

	for _, c := range codecs {
		codec, err := compress.ForCodec(c)
		if err != nil {
			t.Fatalf("codec %d: %v", c, err)
		}
		enc, err := codec.Encode(nil, payload)
		if err != nil {
			t.Fatalf("codec %d encode: %v", c, err)
		}
		dec, err := codec.Decode(nil, enc)
		if err != nil {
			t.Fatalf("codec %d decode: %v", c, err)
		}
		if !bytes.Equal(dec, payload) {
			t.Fatalf("codec %d: round trip mismatch", c)
		}
	}
}

func TestUnsupportedCodec(t *testing.T) {
	if _, err := compress.ForCodec(format.CompressionCodec(99)); err == nil {
		t.Fatalf("expected error for unknown codec")
	}
}
