// © Copyright 2025-2026, Query.Farm LLC - https://query.farm
// SPDX-License-Identifier: Apache-2.0

package hyena

import (
	"encoding/binary"
	"fmt"
)

// Element is the closed set of Go types a numeric block can hold. Each maps
// to exactly one dense and one sparse BlockType.
type Element interface {
	int8 | int16 | int32 | int64 | Int128 | uint8 | uint16 | uint32 | uint64 | Uint128
}

// Block is the data of one column in an insert request.
type Block interface {
	Type() BlockType
	Len() int
	encode(w *writer)
}

// ColumnBlock pairs a block with the id of the column it is inserted into.
type ColumnBlock struct {
	ColumnID int64
	Block    Block
}

// elementType returns the dense BlockType matching T.
func elementType[T Element]() BlockType {
	var zero T
	switch any(zero).(type) {
	case int8:
		return I8Dense
	case int16:
		return I16Dense
	case int32:
		return I32Dense
	case int64:
		return I64Dense
	case Int128:
		return I128Dense
	case uint8:
		return U8Dense
	case uint16:
		return U16Dense
	case uint32:
		return U32Dense
	case uint64:
		return U64Dense
	case Uint128:
		return U128Dense
	}
	panic("hyena: unreachable element type")
}

// DenseBlock holds one value per row.
type DenseBlock[T Element] struct {
	typ    BlockType
	Values []T
}

// NewDenseBlock builds a dense block of type typ. typ must be a dense
// numeric type whose element kind is T.
func NewDenseBlock[T Element](typ BlockType, values ...T) (*DenseBlock[T], error) {
	if !typ.Valid() || !typ.IsDense() || typ.IsString() {
		return nil, fmt.Errorf("hyena: cannot build a dense block with %s data type", typ)
	}
	if want := elementType[T](); typ != want {
		return nil, fmt.Errorf("hyena: %s block cannot hold %T values", typ, *new(T))
	}
	return &DenseBlock[T]{typ: typ, Values: values}, nil
}

// Type returns the block type.
func (b *DenseBlock[T]) Type() BlockType { return b.typ }

// Len returns the number of rows.
func (b *DenseBlock[T]) Len() int { return len(b.Values) }

// Append adds values at the end of the block.
func (b *DenseBlock[T]) Append(values ...T) *DenseBlock[T] {
	b.Values = append(b.Values, values...)
	return b
}

func (b *DenseBlock[T]) encode(w *writer) {
	w.count(len(b.Values))
	w.raw(elementBytes(b.Values))
}

// SparseBlock holds (row offset, value) pairs for the rows that have a value.
// Offsets are strictly increasing.
type SparseBlock[T Element] struct {
	typ     BlockType
	Offsets []uint32
	Values  []T
}

// NewSparseBlock builds an empty sparse block of type typ. typ must be a
// sparse type whose element kind is T.
func NewSparseBlock[T Element](typ BlockType) (*SparseBlock[T], error) {
	if !typ.Valid() || !typ.IsSparse() {
		return nil, fmt.Errorf("hyena: cannot build a sparse block with %s data type", typ)
	}
	if want := elementType[T]().Sparse(); typ != want {
		return nil, fmt.Errorf("hyena: %s block cannot hold %T values", typ, *new(T))
	}
	return &SparseBlock[T]{typ: typ}, nil
}

// Type returns the block type.
func (b *SparseBlock[T]) Type() BlockType { return b.typ }

// Len returns the number of stored values.
func (b *SparseBlock[T]) Len() int { return len(b.Values) }

// Add stores value at row offset. Offsets must be added in strictly
// increasing order.
func (b *SparseBlock[T]) Add(offset uint32, value T) error {
	if n := len(b.Offsets); n > 0 && b.Offsets[n-1] >= offset {
		return fmt.Errorf("hyena: sparse offset %d not after %d", offset, b.Offsets[n-1])
	}
	b.Offsets = append(b.Offsets, offset)
	b.Values = append(b.Values, value)
	return nil
}

func (b *SparseBlock[T]) encode(w *writer) {
	w.count(len(b.Values))
	w.raw(elementBytes(b.Values))
	w.count(len(b.Offsets))
	w.raw(offsetBytes(b.Offsets))
}

// StringBlock holds one string per row.
type StringBlock struct {
	Values []string
}

// NewStringBlock builds a StringDense block.
func NewStringBlock(values ...string) *StringBlock {
	return &StringBlock{Values: values}
}

// Type returns StringDense.
func (b *StringBlock) Type() BlockType { return StringDense }

// Len returns the number of rows.
func (b *StringBlock) Len() int { return len(b.Values) }

func (b *StringBlock) encode(w *writer) {
	// Record count followed by the counted string collection.
	w.count(len(b.Values))
	w.count(len(b.Values))
	for _, s := range b.Values {
		w.str(s)
	}
}

// elementBytes lays values out in their little-endian wire form. Unsigned
// 64-bit values keep their bit pattern, which is the two's complement
// signed form the engine expects.
func elementBytes[T Element](values []T) []byte {
	width := elementType[T]().Width()
	out := make([]byte, len(values)*width)
	switch vs := any(values).(type) {
	case []int8:
		for i, v := range vs {
			out[i] = uint8(v)
		}
	case []uint8:
		copy(out, vs)
	case []int16:
		for i, v := range vs {
			binary.LittleEndian.PutUint16(out[i*2:], uint16(v))
		}
	case []uint16:
		for i, v := range vs {
			binary.LittleEndian.PutUint16(out[i*2:], v)
		}
	case []int32:
		for i, v := range vs {
			binary.LittleEndian.PutUint32(out[i*4:], uint32(v))
		}
	case []uint32:
		for i, v := range vs {
			binary.LittleEndian.PutUint32(out[i*4:], v)
		}
	case []int64:
		for i, v := range vs {
			binary.LittleEndian.PutUint64(out[i*8:], uint64(v))
		}
	case []uint64:
		for i, v := range vs {
			binary.LittleEndian.PutUint64(out[i*8:], v)
		}
	case []Int128:
		for i, v := range vs {
			binary.LittleEndian.PutUint64(out[i*16:], v.Lo)
			binary.LittleEndian.PutUint64(out[i*16+8:], uint64(v.Hi))
		}
	case []Uint128:
		for i, v := range vs {
			binary.LittleEndian.PutUint64(out[i*16:], v.Lo)
			binary.LittleEndian.PutUint64(out[i*16+8:], v.Hi)
		}
	}
	return out
}

// elementsFrom parses n little-endian elements of T from b.
func elementsFrom[T Element](b []byte) []T {
	width := elementType[T]().Width()
	n := len(b) / width
	if n == 0 {
		return nil
	}
	out := make([]T, n)
	switch vs := any(out).(type) {
	case []int8:
		for i := range vs {
			vs[i] = int8(b[i])
		}
	case []uint8:
		copy(vs, b)
	case []int16:
		for i := range vs {
			vs[i] = int16(binary.LittleEndian.Uint16(b[i*2:]))
		}
	case []uint16:
		for i := range vs {
			vs[i] = binary.LittleEndian.Uint16(b[i*2:])
		}
	case []int32:
		for i := range vs {
			vs[i] = int32(binary.LittleEndian.Uint32(b[i*4:]))
		}
	case []uint32:
		for i := range vs {
			vs[i] = binary.LittleEndian.Uint32(b[i*4:])
		}
	case []int64:
		for i := range vs {
			vs[i] = int64(binary.LittleEndian.Uint64(b[i*8:]))
		}
	case []uint64:
		for i := range vs {
			vs[i] = binary.LittleEndian.Uint64(b[i*8:])
		}
	case []Int128:
		for i := range vs {
			vs[i] = Int128{Lo: binary.LittleEndian.Uint64(b[i*16:]), Hi: int64(binary.LittleEndian.Uint64(b[i*16+8:]))}
		}
	case []Uint128:
		for i := range vs {
			vs[i] = Uint128{Lo: binary.LittleEndian.Uint64(b[i*16:]), Hi: binary.LittleEndian.Uint64(b[i*16+8:])}
		}
	}
	return out
}

func offsetBytes(offsets []uint32) []byte {
	out := make([]byte, len(offsets)*4)
	for i, o := range offsets {
		binary.LittleEndian.PutUint32(out[i*4:], o)
	}
	return out
}

func offsetsFrom(b []byte) []uint32 {
	if len(b) == 0 {
		return nil
	}
	out := make([]uint32, len(b)/4)
	for i := range out {
		out[i] = binary.LittleEndian.Uint32(b[i*4:])
	}
	return out
}

// decodeBlock reads an insert block payload of type typ.
func decodeBlock(r *sliceReader, typ BlockType) (Block, error) {
	switch typ.Dense() {
	case I8Dense:
		return decodeTypedBlock[int8](r, typ)
	case I16Dense:
		return decodeTypedBlock[int16](r, typ)
	case I32Dense:
		return decodeTypedBlock[int32](r, typ)
	case I64Dense:
		return decodeTypedBlock[int64](r, typ)
	case I128Dense:
		return decodeTypedBlock[Int128](r, typ)
	case U8Dense:
		return decodeTypedBlock[uint8](r, typ)
	case U16Dense:
		return decodeTypedBlock[uint16](r, typ)
	case U32Dense:
		return decodeTypedBlock[uint32](r, typ)
	case U64Dense:
		return decodeTypedBlock[uint64](r, typ)
	case U128Dense:
		return decodeTypedBlock[Uint128](r, typ)
	case StringDense:
		n, err := r.count(0, "string block")
		if err != nil {
			return nil, err
		}
		m, err := r.count(8, "string block strings")
		if err != nil {
			return nil, err
		}
		if m != n {
			return nil, r.fail("string block declares %d rows but carries %d strings", n, m)
		}
		values := makeSlice[string](n)
		for i := range values {
			if values[i], err = r.str("string block value"); err != nil {
				return nil, err
			}
		}
		return &StringBlock{Values: values}, nil
	}
	return nil, r.fail("unknown block type %d", uint32(typ))
}

func decodeTypedBlock[T Element](r *sliceReader, typ BlockType) (Block, error) {
	width := typ.Width()
	n, err := r.count(width, typ.String()+" values")
	if err != nil {
		return nil, err
	}
	data, err := r.take(n*width, typ.String()+" values")
	if err != nil {
		return nil, err
	}
	if typ.IsDense() {
		return &DenseBlock[T]{typ: typ, Values: elementsFrom[T](data)}, nil
	}
	offs, err := readOffsets(r, n)
	if err != nil {
		return nil, err
	}
	return &SparseBlock[T]{typ: typ, Offsets: offsetsFrom(offs), Values: elementsFrom[T](data)}, nil
}

// readOffsets reads the counted offset array of a sparse payload and checks
// it against the value count and for strict ordering.
func readOffsets(r *sliceReader, values int) ([]byte, error) {
	n, err := r.count(4, "sparse offsets")
	if err != nil {
		return nil, err
	}
	if n != values {
		return nil, r.fail("sparse data inconsistent: %d values but %d offsets", values, n)
	}
	offs, err := r.take(n*4, "sparse offsets")
	if err != nil {
		return nil, err
	}
	for i := 1; i < n; i++ {
		if binary.LittleEndian.Uint32(offs[i*4:]) <= binary.LittleEndian.Uint32(offs[(i-1)*4:]) {
			return nil, r.fail("sparse offsets not strictly increasing at index %d", i)
		}
	}
	return offs, nil
}
