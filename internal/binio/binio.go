// Package binio provides bounds-checked binary reading from a byte slice
// in either byte order. Both TIFF (either order, declared in the header)
// and SEG-Y (big-endian by convention, little-endian in the wild) are
// decoded through it.
package binio

import (
	"encoding/binary"
	"errors"
	"math"
)

var (
	// ErrShortBuffer is returned when a read cannot complete because the
	// buffer ends first.
	ErrShortBuffer = errors.New("binio: buffer too short")

	// ErrNegativeSize is returned when a size or position is negative.
	ErrNegativeSize = errors.New("binio: negative size")
)

// Reader reads fixed-width values from a byte slice, tracking a position.
type Reader struct {
	data  []byte
	pos   int
	order binary.ByteOrder
}

// NewReader creates a Reader over data using the given byte order.
func NewReader(data []byte, order binary.ByteOrder) *Reader {
	return &Reader{data: data, order: order}
}

// Order returns the byte order the reader decodes with.
func (r *Reader) Order() binary.ByteOrder {
	return r.order
}

// Len returns the number of unread bytes.
func (r *Reader) Len() int {
	if r.pos >= len(r.data) {
		return 0
	}
	return len(r.data) - r.pos
}

// Size returns the total length of the underlying buffer.
func (r *Reader) Size() int {
	return len(r.data)
}

// Pos returns the current read position.
func (r *Reader) Pos() int {
	return r.pos
}

// SetPos moves the read position.
func (r *Reader) SetPos(pos int) error {
	if pos < 0 {
		return ErrNegativeSize
	}
	if pos > len(r.data) {
		return ErrShortBuffer
	}
	r.pos = pos
	return nil
}

// Skip advances the read position by n bytes.
func (r *Reader) Skip(n int) error {
	if n < 0 {
		return ErrNegativeSize
	}
	if r.pos+n > len(r.data) {
		return ErrShortBuffer
	}
	r.pos += n
	return nil
}

// Bytes returns a view of the next n bytes and advances past them.
// The view aliases the underlying buffer.
func (r *Reader) Bytes(n int) ([]byte, error) {
	if n < 0 {
		return nil, ErrNegativeSize
	}
	if r.pos+n > len(r.data) {
		return nil, ErrShortBuffer
	}
	b := r.data[r.pos : r.pos+n]
	r.pos += n
	return b, nil
}

// Slice returns a view of n bytes starting at off without moving the
// read position.
func (r *Reader) Slice(off, n int) ([]byte, error) {
	if off < 0 || n < 0 {
		return nil, ErrNegativeSize
	}
	if off+n > len(r.data) {
		return nil, ErrShortBuffer
	}
	return r.data[off : off+n], nil
}

// ReadUint8 reads an unsigned 8-bit integer.
func (r *Reader) ReadUint8() (uint8, error) {
	if r.pos >= len(r.data) {
		return 0, ErrShortBuffer
	}
	b := r.data[r.pos]
	r.pos++
	return b, nil
}

// ReadInt8 reads a signed 8-bit integer.
func (r *Reader) ReadInt8() (int8, error) {
	b, err := r.ReadUint8()
	return int8(b), err
}

// ReadUint16 reads an unsigned 16-bit integer.
func (r *Reader) ReadUint16() (uint16, error) {
	if r.pos+2 > len(r.data) {
		return 0, ErrShortBuffer
	}
	v := r.order.Uint16(r.data[r.pos:])
	r.pos += 2
	return v, nil
}

// ReadInt16 reads a signed 16-bit integer.
func (r *Reader) ReadInt16() (int16, error) {
	v, err := r.ReadUint16()
	return int16(v), err
}

// ReadUint32 reads an unsigned 32-bit integer.
func (r *Reader) ReadUint32() (uint32, error) {
	if r.pos+4 > len(r.data) {
		return 0, ErrShortBuffer
	}
	v := r.order.Uint32(r.data[r.pos:])
	r.pos += 4
	return v, nil
}

// ReadInt32 reads a signed 32-bit integer.
func (r *Reader) ReadInt32() (int32, error) {
	v, err := r.ReadUint32()
	return int32(v), err
}

// ReadUint64 reads an unsigned 64-bit integer.
func (r *Reader) ReadUint64() (uint64, error) {
	if r.pos+8 > len(r.data) {
		return 0, ErrShortBuffer
	}
	v := r.order.Uint64(r.data[r.pos:])
	r.pos += 8
	return v, nil
}

// ReadInt64 reads a signed 64-bit integer.
func (r *Reader) ReadInt64() (int64, error) {
	v, err := r.ReadUint64()
	return int64(v), err
}

// ReadFloat32 reads an IEEE 754 single-precision float.
func (r *Reader) ReadFloat32() (float32, error) {
	v, err := r.ReadUint32()
	if err != nil {
		return 0, err
	}
	return math.Float32frombits(v), nil
}

// ReadFloat64 reads an IEEE 754 double-precision float.
func (r *Reader) ReadFloat64() (float64, error) {
	v, err := r.ReadUint64()
	if err != nil {
		return 0, err
	}
	return math.Float64frombits(v), nil
}

// Int16At reads a signed 16-bit integer at off without moving the
// read position.
func (r *Reader) Int16At(off int) (int16, error) {
	b, err := r.Slice(off, 2)
	if err != nil {
		return 0, err
	}
	return int16(r.order.Uint16(b)), nil
}

// Int32At reads a signed 32-bit integer at off without moving the
// read position.
func (r *Reader) Int32At(off int) (int32, error) {
	b, err := r.Slice(off, 4)
	if err != nil {
		return 0, err
	}
	return int32(r.order.Uint32(b)), nil
}
