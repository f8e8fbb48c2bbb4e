package plain_test

import (
	"bytes"
	"testing"

	"github.com/parquedb/parquedb/parquetfile/encoding/plain"
)

func TestAppendBoolean(t *testing.T) {
	values := []byte{}
	for i := 0; i < 100; i++ {
		values = plain.AppendBoolean(values, i, (i%2) != 0)
	}
	if !bytes.Equal(values, []byte{
		0b10101010, 0b10101010, 0b10101010, 0b10101010,
		0b10101010, 0b10101010, 0b10101010, 0b10101010,
		0b10101010, 0b10101010, 0b10101010, 0b10101010,
		0b00001010,
	}) {
		t.Errorf("%08b", values)
	}
	for i := 0; i < 100; i++ {
		if got := plain.DecodeBoolean(values, i); got != ((i % 2) != 0) {
			t.Errorf("bit %d: got %v", i, got)
		}
	}
}

func TestInt32RoundTrip(t *testing.T) {
	var values []byte
	want := []int32{0, 1, -1, 2147483647, -2147483648, 42}
	for _, v := range want {
		values = plain.AppendInt32(values, v)
	}
	got := plain.DecodeInt32Slice(values, len(want))
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("index %d: want %d got %d", i, want[i], got[i])
		}
	}
}

func TestInt64RoundTrip(t *testing.T) {
	var values []byte
	want := []int64{0, 1, -1, 9223372036854775807, -9223372036854775808}
	for _, v := range want {
		values = plain.AppendInt64(values, v)
	}
	got := plain.DecodeInt64Slice(values, len(want))
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("index %d: want %d got %d", i, want[i], got[i])
		}
	}
}

func TestDoubleRoundTrip(t *testing.T) {
	var values []byte
	want := []float64{0, 1.5, -1.5, 3.14159265}
	for _, v := range want {
		values = plain.AppendDouble(values, v)
	}
	got := plain.DecodeDoubleSlice(values, len(want))
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("index %d: want %v got %v", i, want[i], got[i])
		}
	}
}

func TestByteArrayIterator(t *testing.T) {
	var values []byte
	want := []string{"", "a", "hello world", "parquedb"}
	for _, s := range want {
		values = plain.AppendByteArray(values, []byte(s))
	}
	it := plain.NewByteArrayIterator(values)
	for _, s := range want {
		v, ok := it.Next()
		if !ok || string(v) != s {
			t.Fatalf("want %q got %q ok=%v", s, v, ok)
		}
	}
	if _, ok := it.Next(); ok {
		t.Fatalf("expected iterator exhausted")
	}
}
