// Package compress adapts ParqueDB's pluggable page-compression codecs
// to a single Codec interface, so the column writer never imports a
// compression library directly. Snappy and Zstandard come from
// klauspost/compress, gzip from the standard library's compress/gzip,
// and LZ4 from pierrec/lz4/v4.
package compress

import (
	"bytes"
	"compress/gzip"
	"io"

	"github.com/klauspost/compress/s2"
	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"

	"github.com/parquedb/parquedb/parquetfile/format"
)

// Codec compresses and decompresses one column chunk's page bytes.
type Codec interface {
	Encode(dst, src []byte) ([]byte, error)
	Decode(dst, src []byte) ([]byte, error)
}

// ForCodec returns the Codec implementing c; Uncompressed gets a
// pass-through Codec that copies its input unchanged.
func ForCodec(c format.CompressionCodec) (Codec, error) {
	switch c {
	case format.Uncompressed:
		return nopCodec{}, nil
	case format.Snappy:
		return s2Codec{}, nil
	case format.Gzip:
		return gzipCodec{}, nil
	case format.Lz4:
		return lz4Codec{}, nil
	case format.Zstd:
		return zstdCodec{}, nil
	default:
		return nil, unsupportedCodecError(c)
	}
}

type unsupportedCodecError format.CompressionCodec

func (e unsupportedCodecError) Error() string {
	return "compress: unsupported codec " + itoa(int(e))
}

func itoa(n int) string {
	if n == 0 {
		return "0"
	}
	neg := n < 0
	if neg {
		n = -n
	}
	var buf [20]byte
	i := len(buf)
	for n > 0 {
		i--
		buf[i] = byte('0' + n%10)
		n /= 10
	}
	if neg {
		i--
		buf[i] = '-'
	}
	return string(buf[i:])
}

type nopCodec struct{}

func (nopCodec) Encode(dst, src []byte) ([]byte, error) { return append(dst, src...), nil }
func (nopCodec) Decode(dst, src []byte) ([]byte, error) { return append(dst, src...), nil }

// s2Codec uses klauspost/compress's s2 package, a Snappy-compatible
// format with faster encode/decode; s2.EncodeSnappy produces output any
// Snappy decoder can read via s2's Snappy-compatible block mode.
type s2Codec struct{}

func (s2Codec) Encode(dst, src []byte) ([]byte, error) {
	out := s2.EncodeSnappy(nil, src)
	return append(dst, out...), nil
}

func (s2Codec) Decode(dst, src []byte) ([]byte, error) {
	out, err := s2.Decode(nil, src)
	if err != nil {
		return nil, err
	}
	return append(dst, out...), nil
}

type gzipCodec struct{}

func (gzipCodec) Encode(dst, src []byte) ([]byte, error) {
	var buf bytes.Buffer
	w := gzip.NewWriter(&buf)
	if _, err := w.Write(src); err != nil {
		return nil, err
	}
	if err := w.Close(); err != nil {
		return nil, err
	}
	return append(dst, buf.Bytes()...), nil
}

func (gzipCodec) Decode(dst, src []byte) ([]byte, error) {
	r, err := gzip.NewReader(bytes.NewReader(src))
	if err != nil {
		return nil, err
	}
	defer r.Close()
	out, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	return append(dst, out...), nil
}

type lz4Codec struct{}

func (lz4Codec) Encode(dst, src []byte) ([]byte, error) {
	var buf bytes.Buffer
	w := lz4.NewWriter(&buf)
	if _, err := w.Write(src); err != nil {
		return nil, err
	}
	if err := w.Close(); err != nil {
		return nil, err
	}
	return append(dst, buf.Bytes()...), nil
}

func (lz4Codec) Decode(dst, src []byte) ([]byte, error) {
	r := lz4.NewReader(bytes.NewReader(src))
	out, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	return append(dst, out...), nil
}

type zstdCodec struct{}

func (zstdCodec) Encode(dst, src []byte) ([]byte, error) {
	enc, err := zstd.NewWriter(nil)
	if err != nil {
		return nil, err
	}
	defer enc.Close()
	return enc.EncodeAll(src, dst), nil
}

func (zstdCodec) Decode(dst, src []byte) ([]byte, error) {
	dec, err := zstd.NewReader(nil)
	if err != nil {
		return nil, err
	}
	defer dec.Close()
	return dec.DecodeAll(src, dst)
}
