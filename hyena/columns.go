// © Copyright 2025-2026, Query.Farm LLC - https://query.farm
// SPDX-License-Identifier: Apache-2.0

package hyena

import (
	"encoding/binary"
	"fmt"
	"sort"

	"github.com/RoaringBitmap/roaring"
)

// ColumnValues is a read-only view over one column of a scan reply. Views
// alias the reply buffer and must not outlive it if the caller reuses it.
//
// Integer accessors return the zero value for rows that hold no value; call
// IsNull first when absence matters. On sparse columns, IsNull and the
// accessors move a forward-only cursor, so rows must be queried in
// non-decreasing order until Reset is called.
type ColumnValues interface {
	// Type returns the block type of the column.
	Type() BlockType
	// Len returns the number of stored elements.
	Len() int
	// IsNull reports whether row has no value.
	IsNull(row int) bool
	// Int64 returns the value at row as a signed integer. Unsigned 64-bit
	// values are returned as their bit pattern; 128-bit values are truncated.
	Int64(row int) int64
	// Uint64 returns the value at row as an unsigned integer.
	Uint64(row int) uint64
	// Bytes returns the raw little-endian element, or the string bytes.
	Bytes(row int) []byte
	// Rows returns the set of rows holding a value.
	Rows() *roaring.Bitmap
	// Reset rewinds the sparse cursor. It is a no-op for other layouts.
	Reset()
}

// EmptyColumn is a column for which the engine returned no data.
type EmptyColumn struct {
	typ BlockType
}

// NewEmptyColumn returns a column with no values.
func NewEmptyColumn(typ BlockType) *EmptyColumn { return &EmptyColumn{typ: typ} }

func (c *EmptyColumn) Type() BlockType       { return c.typ }
func (c *EmptyColumn) Len() int              { return 0 }
func (c *EmptyColumn) IsNull(int) bool       { return true }
func (c *EmptyColumn) Int64(int) int64       { return 0 }
func (c *EmptyColumn) Uint64(int) uint64     { return 0 }
func (c *EmptyColumn) Bytes(int) []byte      { return nil }
func (c *EmptyColumn) Rows() *roaring.Bitmap { return roaring.New() }
func (c *EmptyColumn) Reset()                {}

// numeric reads fixed-width elements out of a byte slice.
type numeric struct {
	typ   BlockType
	width int
	data  []byte
}

func (n numeric) bytesAt(i int) []byte {
	off := i * n.width
	return n.data[off : off+n.width : off+n.width]
}

func (n numeric) int64At(i int) int64 {
	b := n.bytesAt(i)
	signed := n.typ.IsSigned()
	switch n.width {
	case 1:
		if signed {
			return int64(int8(b[0]))
		}
		return int64(b[0])
	case 2:
		v := binary.LittleEndian.Uint16(b)
		if signed {
			return int64(int16(v))
		}
		return int64(v)
	case 4:
		v := binary.LittleEndian.Uint32(b)
		if signed {
			return int64(int32(v))
		}
		return int64(v)
	}
	// 8 and 16 byte elements: the low 64 bits.
	return int64(binary.LittleEndian.Uint64(b))
}

func (n numeric) uint64At(i int) uint64 { return uint64(n.int64At(i)) }

func (n numeric) uint128At(i int) Uint128 {
	if n.width < 16 {
		v := n.int64At(i)
		if n.typ.IsSigned() && v < 0 {
			return Uint128{Hi: ^uint64(0), Lo: uint64(v)}
		}
		return Uint128{Lo: uint64(v)}
	}
	b := n.bytesAt(i)
	return Uint128{Lo: binary.LittleEndian.Uint64(b), Hi: binary.LittleEndian.Uint64(b[8:])}
}

// DenseColumn is a fixed-width numeric column with a value for every row.
type DenseColumn struct {
	numeric
	n int
}

// NewDenseColumn wraps data, which must hold whole elements of typ.
func NewDenseColumn(typ BlockType, data []byte) (*DenseColumn, error) {
	if !typ.Valid() || !typ.IsDense() || typ.IsString() {
		return nil, fmt.Errorf("hyena: %s is not a dense numeric type", typ)
	}
	w := typ.Width()
	if len(data)%w != 0 {
		return nil, fmt.Errorf("hyena: %d bytes is not a whole number of %s elements", len(data), typ)
	}
	return &DenseColumn{numeric: numeric{typ: typ, width: w, data: data}, n: len(data) / w}, nil
}

func (c *DenseColumn) Type() BlockType         { return c.typ }
func (c *DenseColumn) Len() int                { return c.n }
func (c *DenseColumn) IsNull(row int) bool     { return row < 0 || row >= c.n }
func (c *DenseColumn) Int64(row int) int64     { return c.int64At(row) }
func (c *DenseColumn) Uint64(row int) uint64   { return c.uint64At(row) }
func (c *DenseColumn) Uint128(row int) Uint128 { return c.uint128At(row) }
func (c *DenseColumn) Bytes(row int) []byte    { return c.bytesAt(row) }
func (c *DenseColumn) Reset()                  {}

// Int128 returns the value at row as a signed 128-bit integer.
func (c *DenseColumn) Int128(row int) Int128 {
	u := c.uint128At(row)
	return Int128{Hi: int64(u.Hi), Lo: u.Lo}
}

// Rows returns every row index below Len.
func (c *DenseColumn) Rows() *roaring.Bitmap {
	bm := roaring.New()
	bm.AddRange(0, uint64(c.n))
	return bm
}

// SparseColumn stores values only for the rows listed in its offset array.
//
// IsNull, Int64, Uint64 and Bytes advance an internal cursor and never move
// it backwards: query rows in non-decreasing order, or call Reset first.
// Lookup offers random access by binary search without touching the cursor.
// A SparseColumn is not safe for concurrent use.
type SparseColumn struct {
	numeric
	offsets []byte
	n       int
	cursor  int
}

// NewSparseColumn wraps values and the matching 32-bit offsets.
func NewSparseColumn(typ BlockType, values, offsets []byte) (*SparseColumn, error) {
	if !typ.Valid() || !typ.IsSparse() {
		return nil, fmt.Errorf("hyena: %s is not a sparse type", typ)
	}
	w := typ.Width()
	if len(values)%w != 0 || len(offsets)%4 != 0 || len(values)/w != len(offsets)/4 {
		return nil, fmt.Errorf("hyena: sparse data inconsistent: %d value bytes, %d offset bytes", len(values), len(offsets))
	}
	return &SparseColumn{numeric: numeric{typ: typ, width: w, data: values}, offsets: offsets, n: len(offsets) / 4}, nil
}

func (c *SparseColumn) Type() BlockType { return c.typ }
func (c *SparseColumn) Len() int        { return c.n }

// Offset returns the row of the i-th stored value.
func (c *SparseColumn) Offset(i int) uint32 {
	return binary.LittleEndian.Uint32(c.offsets[i*4:])
}

// Cursor returns the index of the stored value the cursor points at.
func (c *SparseColumn) Cursor() int { return c.cursor }

func (c *SparseColumn) seek(row int) bool {
	if row < 0 {
		return false
	}
	for c.cursor < c.n && int64(c.Offset(c.cursor)) < int64(row) {
		c.cursor++
	}
	return c.cursor < c.n && int64(c.Offset(c.cursor)) == int64(row)
}

func (c *SparseColumn) IsNull(row int) bool { return !c.seek(row) }

func (c *SparseColumn) Int64(row int) int64 {
	if !c.seek(row) {
		return 0
	}
	return c.int64At(c.cursor)
}

func (c *SparseColumn) Uint64(row int) uint64 {
	if !c.seek(row) {
		return 0
	}
	return c.uint64At(c.cursor)
}

// Uint128 returns the value at row as an unsigned 128-bit integer.
func (c *SparseColumn) Uint128(row int) Uint128 {
	if !c.seek(row) {
		return Uint128{}
	}
	return c.uint128At(c.cursor)
}

func (c *SparseColumn) Bytes(row int) []byte {
	if !c.seek(row) {
		return nil
	}
	return c.bytesAt(c.cursor)
}

func (c *SparseColumn) Reset() { c.cursor = 0 }

// Lookup returns the index of the value stored for row, using binary search.
func (c *SparseColumn) Lookup(row int) (int, bool) {
	if row < 0 {
		return 0, false
	}
	i := sort.Search(c.n, func(i int) bool { return int64(c.Offset(i)) >= int64(row) })
	if i < c.n && int64(c.Offset(i)) == int64(row) {
		return i, true
	}
	return 0, false
}

// ValueAt returns the i-th stored value as a signed integer.
func (c *SparseColumn) ValueAt(i int) int64 { return c.int64At(i) }

// Rows returns the set of row offsets.
func (c *SparseColumn) Rows() *roaring.Bitmap {
	rows := make([]uint32, c.n)
	for i := range rows {
		rows[i] = c.Offset(i)
	}
	return roaring.BitmapOf(rows...)
}

// StringLayout selects how dense string columns are laid out in scan
// replies.
type StringLayout int

const (
	// StringsSimple is a counted sequence of length-prefixed strings.
	StringsSimple StringLayout = iota
	// StringsMeta is a (start, length) pair per row over a shared blob.
	StringsMeta
)

func (l StringLayout) String() string {
	switch l {
	case StringsSimple:
		return "simple"
	case StringsMeta:
		return "meta"
	}
	return fmt.Sprintf("StringLayout(%d)", int(l))
}

// ParseStringLayout resolves "simple" or "meta".
func ParseStringLayout(s string) (StringLayout, error) {
	switch s {
	case "simple", "":
		return StringsSimple, nil
	case "meta":
		return StringsMeta, nil
	}
	return 0, fmt.Errorf("unknown string layout %q", s)
}

// StringColumn is a dense string column. Every row holds a value.
type StringColumn struct {
	layout StringLayout
	n      int
	// simple layout
	values [][]byte
	// meta layout
	meta []byte
	blob []byte
}

// NewSimpleStringColumn wraps per-row byte slices.
func NewSimpleStringColumn(values [][]byte) *StringColumn {
	return &StringColumn{layout: StringsSimple, n: len(values), values: values}
}

// NewMetaStringColumn wraps a metadata region of 16 bytes per row (start and
// length, both 64-bit) over blob. Every entry must lie inside blob.
func NewMetaStringColumn(meta, blob []byte) (*StringColumn, error) {
	if len(meta)%16 != 0 {
		return nil, fmt.Errorf("hyena: string metadata of %d bytes is not a multiple of 16", len(meta))
	}
	n := len(meta) / 16
	for i := 0; i < n; i++ {
		start := binary.LittleEndian.Uint64(meta[i*16:])
		length := binary.LittleEndian.Uint64(meta[i*16+8:])
		if start > uint64(len(blob)) || length > uint64(len(blob))-start {
			return nil, fmt.Errorf("hyena: string %d [%d+%d] outside blob of %d bytes", i, start, length, len(blob))
		}
	}
	return &StringColumn{layout: StringsMeta, n: n, meta: meta, blob: blob}, nil
}

func (c *StringColumn) Type() BlockType     { return StringDense }
func (c *StringColumn) Len() int            { return c.n }
func (c *StringColumn) IsNull(row int) bool { return row < 0 || row >= c.n }
func (c *StringColumn) Reset()              {}

// Layout returns the wire layout the column was decoded from.
func (c *StringColumn) Layout() StringLayout { return c.layout }

// Int64 panics: string columns have no integer values.
func (c *StringColumn) Int64(int) int64 {
	panic("hyena: string column cannot return integer values")
}

// Uint64 panics: string columns have no integer values.
func (c *StringColumn) Uint64(int) uint64 {
	panic("hyena: string column cannot return integer values")
}

// Bytes returns the string at row without copying.
func (c *StringColumn) Bytes(row int) []byte {
	if c.layout == StringsSimple {
		return c.values[row]
	}
	start := binary.LittleEndian.Uint64(c.meta[row*16:])
	length := binary.LittleEndian.Uint64(c.meta[row*16+8:])
	return c.blob[start : start+length : start+length]
}

// String returns a copy of the string at row.
func (c *StringColumn) String(row int) string { return string(c.Bytes(row)) }

// Rows returns every row index below Len.
func (c *StringColumn) Rows() *roaring.Bitmap {
	bm := roaring.New()
	bm.AddRange(0, uint64(c.n))
	return bm
}

// ColumnValuesOf converts an insert block into a column view. The fake
// engine uses it to answer scans from stored blocks.
func ColumnValuesOf(b Block) (ColumnValues, error) {
	if b == nil || b.Len() == 0 {
		typ := I8Dense
		if b != nil {
			typ = b.Type()
		}
		return NewEmptyColumn(typ), nil
	}
	w := newWriter(64)
	b.encode(w)
	r := newReader(w.bytes())
	n, err := r.count(0, "block")
	if err != nil {
		return nil, err
	}
	return decodeColumnPayload(r, b.Type(), n, StringsSimple)
}

// decodeColumnPayload reads the payload that follows a record count in a
// scan reply.
func decodeColumnPayload(r *sliceReader, typ BlockType, n int, layout StringLayout) (ColumnValues, error) {
	switch {
	case typ.IsString():
		return decodeStringColumn(r, n, layout)
	case typ.IsDense():
		data, err := r.take(n*typ.Width(), typ.String()+" values")
		if err != nil {
			return nil, err
		}
		return NewDenseColumn(typ, data)
	case typ.IsSparse():
		data, err := r.take(n*typ.Width(), typ.String()+" values")
		if err != nil {
			return nil, err
		}
		offs, err := readOffsets(r, n)
		if err != nil {
			return nil, err
		}
		return NewSparseColumn(typ, data, offs)
	}
	return nil, r.fail("unknown block type %d", uint32(typ))
}

func decodeStringColumn(r *sliceReader, n int, layout StringLayout) (ColumnValues, error) {
	if layout == StringsMeta {
		m, err := r.count(16, "string metadata")
		if err != nil {
			return nil, err
		}
		if m != n {
			return nil, r.fail("string column declares %d rows but %d metadata entries", n, m)
		}
		meta, err := r.take(m*16, "string metadata")
		if err != nil {
			return nil, err
		}
		blob, err := r.blob("string blob")
		if err != nil {
			return nil, err
		}
		col, err := NewMetaStringColumn(meta, blob)
		if err != nil {
			return nil, r.fail("%v", err)
		}
		return col, nil
	}
	m, err := r.count(8, "strings")
	if err != nil {
		return nil, err
	}
	if m != n {
		return nil, r.fail("string column declares %d rows but carries %d strings", n, m)
	}
	values := make([][]byte, m)
	for i := range values {
		if values[i], err = r.blob("string value"); err != nil {
			return nil, err
		}
	}
	return NewSimpleStringColumn(values), nil
}

// encodeColumnPayload writes the record count and payload of a column view.
func encodeColumnPayload(w *writer, c ColumnValues, layout StringLayout) {
	w.count(c.Len())
	switch col := c.(type) {
	case *DenseColumn:
		w.raw(col.data)
	case *SparseColumn:
		w.raw(col.data)
		w.count(col.n)
		w.raw(col.offsets)
	case *StringColumn:
		if layout == StringsMeta {
			w.count(col.n)
			var start uint64
			for i := 0; i < col.n; i++ {
				l := uint64(len(col.Bytes(i)))
				w.u64(start)
				w.u64(l)
				start += l
			}
			w.count(int(start))
			for i := 0; i < col.n; i++ {
				w.raw(col.Bytes(i))
			}
			return
		}
		w.count(col.n)
		for i := 0; i < col.n; i++ {
			w.blob(col.Bytes(i))
		}
	}
}
