// Package thrift implements the small subset of the Thrift compact
// protocol needed to encode and decode a Parquet file footer: struct,
// field, list, bool, byte, i16/i32/i64, double, and binary. Apache
// Parquet's on-disk footer is a Thrift-serialized FileMetaData struct;
// this package is the wire-level primitive the parquetfile/format
// package builds its (de)serializer on top of, hand-written and scoped
// to exactly the struct set parquetfile/format needs rather than the
// full generated Thrift IDL.
package thrift

import (
	"bufio"
	"fmt"
	"io"
	"math"
)

// Compact protocol type identifiers (see the Thrift compact protocol
// specification).
const (
	CompactBooleanTrue  = 0x01
	CompactBooleanFalse = 0x02
	CompactByte         = 0x03
	CompactI16          = 0x04
	CompactI32          = 0x05
	CompactI64          = 0x06
	CompactDouble       = 0x07
	CompactBinary       = 0x08
	CompactList         = 0x09
	CompactSet          = 0x0A
	CompactMap          = 0x0B
	CompactStruct       = 0x0C
)

// Writer emits the compact protocol wire format to an underlying
// io.Writer.
type Writer struct {
	w           io.Writer
	lastFieldID []int16
}

// NewWriter wraps w.
func NewWriter(w io.Writer) *Writer {
	return &Writer{w: w}
}

func (w *Writer) writeByte(b byte) error {
	_, err := w.w.Write([]byte{b})
	return err
}

func (w *Writer) writeVarint(v uint64) error {
	var buf [10]byte
	n := 0
	for {
		if v&^0x7F == 0 {
			buf[n] = byte(v)
			n++
			break
		}
		buf[n] = byte(v&0x7F) | 0x80
		n++
		v >>= 7
	}
	_, err := w.w.Write(buf[:n])
	return err
}

func zigzag32(n int32) uint32 { return uint32((n << 1) ^ (n >> 31)) }
func zigzag64(n int64) uint64 { return uint64((n << 1) ^ (n >> 63)) }

// WriteStructBegin pushes a new field-id delta tracking frame, per the
// compact protocol's struct nesting rule (field ids reset per struct).
func (w *Writer) WriteStructBegin() {
	w.lastFieldID = append(w.lastFieldID, 0)
}

// WriteStructEnd writes the STOP marker and pops the frame.
func (w *Writer) WriteStructEnd() error {
	if err := w.writeByte(0x00); err != nil {
		return err
	}
	w.lastFieldID = w.lastFieldID[:len(w.lastFieldID)-1]
	return nil
}

func (w *Writer) curLast() int16 {
	return w.lastFieldID[len(w.lastFieldID)-1]
}

func (w *Writer) setLast(v int16) {
	w.lastFieldID[len(w.lastFieldID)-1] = v
}

// WriteFieldBegin writes a field header for fieldType/id, using the
// short delta form when possible.
func (w *Writer) WriteFieldBegin(fieldType byte, id int16) error {
	last := w.curLast()
	delta := id - last
	if delta > 0 && delta <= 15 {
		if err := w.writeByte(byte(delta)<<4 | fieldType); err != nil {
			return err
		}
		w.setLast(id)
		return nil
	}
	if err := w.writeByte(fieldType); err != nil {
		return err
	}
	if err := w.writeVarint(uint64(zigzag32(int32(id)))); err != nil {
		return err
	}
	w.setLast(id)
	return nil
}

// WriteBoolField writes a BOOLEAN_TRUE/FALSE field header (the compact
// protocol folds the boolean value into the type nibble).
func (w *Writer) WriteBoolField(id int16, v bool) error {
	t := byte(CompactBooleanFalse)
	if v {
		t = CompactBooleanTrue
	}
	return w.WriteFieldBegin(t, id)
}

func (w *Writer) WriteByteField(id int16, v byte) error {
	if err := w.WriteFieldBegin(CompactByte, id); err != nil {
		return err
	}
	return w.writeByte(v)
}

func (w *Writer) WriteI32Field(id int16, v int32) error {
	if err := w.WriteFieldBegin(CompactI32, id); err != nil {
		return err
	}
	return w.writeVarint(uint64(zigzag32(v)))
}

func (w *Writer) WriteI64Field(id int16, v int64) error {
	if err := w.WriteFieldBegin(CompactI64, id); err != nil {
		return err
	}
	return w.writeVarint(zigzag64(v))
}

func (w *Writer) WriteDoubleField(id int16, v float64) error {
	if err := w.WriteFieldBegin(CompactDouble, id); err != nil {
		return err
	}
	bits := doubleBits(v)
	var buf [8]byte
	for i := 0; i < 8; i++ {
		buf[i] = byte(bits)
		bits >>= 8
	}
	_, err := w.w.Write(buf[:])
	return err
}

func (w *Writer) WriteBinaryField(id int16, v []byte) error {
	if err := w.WriteFieldBegin(CompactBinary, id); err != nil {
		return err
	}
	if err := w.writeVarint(uint64(len(v))); err != nil {
		return err
	}
	_, err := w.w.Write(v)
	return err
}

func (w *Writer) WriteStringField(id int16, v string) error {
	return w.WriteBinaryField(id, []byte(v))
}

// WriteStructFieldBegin writes the field header for a nested struct; the
// caller then calls WriteStructBegin/fields/WriteStructEnd.
func (w *Writer) WriteStructFieldBegin(id int16) error {
	return w.WriteFieldBegin(CompactStruct, id)
}

// WriteListFieldBegin writes the field header plus the list header for
// elemType and size; the caller writes size elements of elemType and
// there is no explicit list-end marker in compact protocol.
func (w *Writer) WriteListFieldBegin(id int16, elemType byte, size int) error {
	if err := w.WriteFieldBegin(CompactList, id); err != nil {
		return err
	}
	if size < 15 {
		return w.writeByte(byte(size)<<4 | elemType)
	}
	if err := w.writeByte(0xF0 | elemType); err != nil {
		return err
	}
	return w.writeVarint(uint64(size))
}

func doubleBits(f float64) uint64 {
	return math.Float64bits(f)
}

// WriteRawI32/WriteRawBinary write a single list/set element with no
// field header, the encoding compact-protocol collections actually use
// for their members.
func (w *Writer) WriteRawI32(v int32) error {
	return w.writeVarint(uint64(zigzag32(v)))
}

func (w *Writer) WriteRawBinary(v []byte) error {
	if err := w.writeVarint(uint64(len(v))); err != nil {
		return err
	}
	_, err := w.w.Write(v)
	return err
}

// Reader decodes the compact protocol wire format.
type Reader struct {
	r           *bufio.Reader
	lastFieldID []int16
}

func NewReader(r io.Reader) *Reader {
	return &Reader{r: bufio.NewReader(r)}
}

func (r *Reader) ReadStructBegin() {
	r.lastFieldID = append(r.lastFieldID, 0)
}

func (r *Reader) ReadStructEnd() {
	r.lastFieldID = r.lastFieldID[:len(r.lastFieldID)-1]
}

// Rest drains and returns everything left unread, buffered or not. Used
// once a struct has been fully decoded to recover the raw bytes that
// follow it (e.g. a page's payload immediately after its PageHeader)
// without losing whatever bufio already pulled ahead from the
// underlying reader.
func (r *Reader) Rest() ([]byte, error) {
	return io.ReadAll(r.r)
}

func (r *Reader) readVarint() (uint64, error) {
	var result uint64
	var shift uint
	for {
		b, err := r.r.ReadByte()
		if err != nil {
			return 0, err
		}
		result |= uint64(b&0x7F) << shift
		if b&0x80 == 0 {
			break
		}
		shift += 7
	}
	return result, nil
}

func unzigzag32(v uint32) int32 { return int32(v>>1) ^ -int32(v&1) }
func unzigzag64(v uint64) int64 { return int64(v>>1) ^ -int64(v&1) }

// FieldHeader describes one decoded field header; Type is 0 (STOP) when
// the struct has ended.
type FieldHeader struct {
	Type byte
	ID   int16
	// BoolValue is populated when Type is CompactBooleanTrue/False,
	// since the compact protocol carries bools in the header itself.
	BoolValue bool
}

// ReadFieldBegin reads the next field header within the current struct.
func (r *Reader) ReadFieldBegin() (FieldHeader, error) {
	b, err := r.r.ReadByte()
	if err != nil {
		return FieldHeader{}, err
	}
	if b == 0x00 {
		return FieldHeader{Type: 0}, nil
	}
	last := r.lastFieldID[len(r.lastFieldID)-1]
	delta := (b & 0xF0) >> 4
	t := b & 0x0F
	var id int16
	if delta == 0 {
		zz, err := r.readVarint()
		if err != nil {
			return FieldHeader{}, err
		}
		id = int16(unzigzag32(uint32(zz)))
	} else {
		id = last + int16(delta)
	}
	r.lastFieldID[len(r.lastFieldID)-1] = id

	fh := FieldHeader{Type: t, ID: id}
	if t == CompactBooleanTrue {
		fh.BoolValue = true
	} else if t == CompactBooleanFalse {
		fh.BoolValue = false
	}
	return fh, nil
}

func (r *Reader) ReadByteValue() (byte, error) {
	return r.r.ReadByte()
}

func (r *Reader) ReadI32() (int32, error) {
	zz, err := r.readVarint()
	if err != nil {
		return 0, err
	}
	return unzigzag32(uint32(zz)), nil
}

func (r *Reader) ReadI64() (int64, error) {
	zz, err := r.readVarint()
	if err != nil {
		return 0, err
	}
	return unzigzag64(zz), nil
}

func (r *Reader) ReadDouble() (float64, error) {
	var buf [8]byte
	if _, err := io.ReadFull(r.r, buf[:]); err != nil {
		return 0, err
	}
	var bits uint64
	for i := 7; i >= 0; i-- {
		bits = bits<<8 | uint64(buf[i])
	}
	return math.Float64frombits(bits), nil
}

func (r *Reader) ReadBinary() ([]byte, error) {
	n, err := r.readVarint()
	if err != nil {
		return nil, err
	}
	buf := make([]byte, n)
	if _, err := io.ReadFull(r.r, buf); err != nil {
		return nil, err
	}
	return buf, nil
}

func (r *Reader) ReadString() (string, error) {
	b, err := r.ReadBinary()
	return string(b), err
}

// ListHeader describes a decoded list header.
type ListHeader struct {
	ElemType byte
	Size     int
}

func (r *Reader) ReadListBegin() (ListHeader, error) {
	b, err := r.r.ReadByte()
	if err != nil {
		return ListHeader{}, err
	}
	sizeNibble := (b & 0xF0) >> 4
	elemType := b & 0x0F
	size := int(sizeNibble)
	if sizeNibble == 0x0F {
		n, err := r.readVarint()
		if err != nil {
			return ListHeader{}, err
		}
		size = int(n)
	}
	return ListHeader{ElemType: elemType, Size: size}, nil
}

// Skip discards a value of the given compact type, used to tolerate
// unknown/future fields the way a forward-compatible Thrift reader must.
func (r *Reader) Skip(t byte) error {
	switch t {
	case CompactBooleanTrue, CompactBooleanFalse:
		return nil
	case CompactByte:
		_, err := r.ReadByteValue()
		return err
	case CompactI16, CompactI32:
		_, err := r.ReadI32()
		return err
	case CompactI64:
		_, err := r.ReadI64()
		return err
	case CompactDouble:
		_, err := r.ReadDouble()
		return err
	case CompactBinary:
		_, err := r.ReadBinary()
		return err
	case CompactList, CompactSet:
		lh, err := r.ReadListBegin()
		if err != nil {
			return err
		}
		for i := 0; i < lh.Size; i++ {
			if err := r.Skip(lh.ElemType); err != nil {
				return err
			}
		}
		return nil
	case CompactStruct:
		r.ReadStructBegin()
		for {
			fh, err := r.ReadFieldBegin()
			if err != nil {
				return err
			}
			if fh.Type == 0 {
				break
			}
			if err := r.Skip(fh.Type); err != nil {
				return err
			}
		}
		r.ReadStructEnd()
		return nil
	default:
		return fmt.Errorf("thrift: cannot skip unknown type %d", t)
	}
}
