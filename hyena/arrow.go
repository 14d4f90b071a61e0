// © Copyright 2025-2026, Query.Farm LLC - https://query.farm
// SPDX-License-Identifier: Apache-2.0

package hyena

import (
	"fmt"
	"strconv"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/memory"
)

// Field metadata keys set by ToRecordBatch.
const (
	MetaColumnID  = "hyena.column_id"
	MetaBlockType = "hyena.block_type"
)

// ArrowType returns the Arrow type used for columns of type t. 128-bit
// integers become 16-byte little-endian fixed-size binaries.
func ArrowType(t BlockType) arrow.DataType {
	switch t.Dense() {
	case I8Dense:
		return arrow.PrimitiveTypes.Int8
	case I16Dense:
		return arrow.PrimitiveTypes.Int16
	case I32Dense:
		return arrow.PrimitiveTypes.Int32
	case I64Dense:
		return arrow.PrimitiveTypes.Int64
	case U8Dense:
		return arrow.PrimitiveTypes.Uint8
	case U16Dense:
		return arrow.PrimitiveTypes.Uint16
	case U32Dense:
		return arrow.PrimitiveTypes.Uint32
	case U64Dense:
		return arrow.PrimitiveTypes.Uint64
	case I128Dense, U128Dense:
		return &arrow.FixedSizeBinaryType{ByteWidth: 16}
	}
	return arrow.BinaryTypes.String
}

// ToRecordBatch copies the result into an Arrow record batch with one field
// per column in ascending id order. Field names come from catalog when it
// knows the column, otherwise "col_<id>". Rows without a value are null.
// The caller must release the batch.
func (s *ScanResult) ToRecordBatch(mem memory.Allocator, catalog *Catalog) (arrow.RecordBatch, error) {
	if mem == nil {
		mem = memory.NewGoAllocator()
	}
	ids := s.ColumnIDs()
	rows := s.RowCount()

	fields := make([]arrow.Field, len(ids))
	cols := make([]arrow.Array, 0, len(ids))
	defer func() {
		for _, c := range cols {
			c.Release()
		}
	}()

	for i, id := range ids {
		c := s.Columns[id]
		name := "col_" + strconv.FormatInt(id, 10)
		if catalog != nil {
			if col, ok := catalog.Column(id); ok {
				name = col.Name
			}
		}
		fields[i] = arrow.Field{
			Name:     name,
			Type:     ArrowType(c.Type()),
			Nullable: true,
			Metadata: arrow.NewMetadata(
				[]string{MetaColumnID, MetaBlockType},
				[]string{strconv.FormatInt(id, 10), c.Type().String()},
			),
		}
		arr, err := buildArrowColumn(mem, fields[i].Type, c, rows)
		if err != nil {
			return nil, fmt.Errorf("hyena: column %d: %w", id, err)
		}
		cols = append(cols, arr)
	}

	schema := arrow.NewSchema(fields, nil)
	return array.NewRecordBatch(schema, cols, int64(rows)), nil
}

// rowIndex maps each output row to an element index, or -1 when the row
// has no value.
func rowIndex(c ColumnValues, rows int) []int {
	idx := make([]int, rows)
	for r := range idx {
		idx[r] = -1
	}
	switch col := c.(type) {
	case *SparseColumn:
		for i := 0; i < col.Len(); i++ {
			if off := int(col.Offset(i)); off < rows {
				idx[off] = i
			}
		}
	case *EmptyColumn:
	default:
		for r := 0; r < min(rows, c.Len()); r++ {
			idx[r] = r
		}
	}
	return idx
}

func numericOf(c ColumnValues) (numeric, bool) {
	switch col := c.(type) {
	case *DenseColumn:
		return col.numeric, true
	case *SparseColumn:
		return col.numeric, true
	}
	return numeric{}, false
}

func buildArrowColumn(mem memory.Allocator, dt arrow.DataType, c ColumnValues, rows int) (arrow.Array, error) {
	b := array.NewBuilder(mem, dt)
	defer b.Release()
	b.Reserve(rows)

	num, isNum := numericOf(c)
	strs, _ := c.(*StringColumn)
	for _, i := range rowIndex(c, rows) {
		if i < 0 {
			b.AppendNull()
			continue
		}
		if strs != nil {
			b.(*array.StringBuilder).Append(strs.String(i))
			continue
		}
		if !isNum {
			return nil, fmt.Errorf("unsupported column view %T", c)
		}
		switch bld := b.(type) {
		case *array.Int8Builder:
			bld.Append(int8(num.int64At(i)))
		case *array.Int16Builder:
			bld.Append(int16(num.int64At(i)))
		case *array.Int32Builder:
			bld.Append(int32(num.int64At(i)))
		case *array.Int64Builder:
			bld.Append(num.int64At(i))
		case *array.Uint8Builder:
			bld.Append(uint8(num.uint64At(i)))
		case *array.Uint16Builder:
			bld.Append(uint16(num.uint64At(i)))
		case *array.Uint32Builder:
			bld.Append(uint32(num.uint64At(i)))
		case *array.Uint64Builder:
			bld.Append(num.uint64At(i))
		case *array.FixedSizeBinaryBuilder:
			bld.Append(num.bytesAt(i))
		default:
			return nil, fmt.Errorf("unsupported arrow builder %T", b)
		}
	}
	return b.NewArray(), nil
}
