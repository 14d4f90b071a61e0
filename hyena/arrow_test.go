// © Copyright 2025-2026, Query.Farm LLC - https://query.farm
// SPDX-License-Identifier: Apache-2.0

package hyena

import (
	"testing"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/memory"
	"github.com/stretchr/testify/require"
)

func TestArrowType(t *testing.T) {
	require.Equal(t, arrow.PrimitiveTypes.Int8, ArrowType(I8Sparse))
	require.Equal(t, arrow.PrimitiveTypes.Uint64, ArrowType(U64Dense))
	require.Equal(t, arrow.BinaryTypes.String, ArrowType(StringDense))
	require.True(t, arrow.TypeEqual(&arrow.FixedSizeBinaryType{ByteWidth: 16}, ArrowType(U128Sparse)))
}

func TestScanResultToRecordBatch(t *testing.T) {
	mem := memory.NewCheckedAllocator(memory.NewGoAllocator())
	defer mem.AssertSize(t, 0)

	res := scanResultOf(t, map[int64]Block{
		1: denseOf[int64](t, I64Dense, 10, 20, 30, 40),
		2: sparseOf[uint16](t, U16Sparse, 7), // offset 1
		3: NewStringBlock("a", "b"),
		4: denseOf(t, I128Dense, Int128From(-1)),
	})
	res.Columns[5] = NewEmptyColumn(U8Dense)
	cat := NewCatalog([]Column{{ID: 1, Name: "ts", DataType: I64Dense}}, nil)

	rec, err := res.ToRecordBatch(mem, cat)
	require.NoError(t, err)
	defer rec.Release()

	require.Equal(t, int64(4), rec.NumRows())
	require.Equal(t, int64(5), rec.NumCols())
	schema := rec.Schema()
	require.Equal(t, "ts", schema.Field(0).Name)
	require.Equal(t, "col_2", schema.Field(1).Name)
	id, ok := schema.Field(1).Metadata.GetValue(MetaColumnID)
	require.True(t, ok)
	require.Equal(t, "2", id)
	typ, _ := schema.Field(1).Metadata.GetValue(MetaBlockType)
	require.Equal(t, "U16Sparse", typ)

	ts := rec.Column(0).(*array.Int64)
	require.Equal(t, []int64{10, 20, 30, 40}, ts.Int64Values())

	sparse := rec.Column(1).(*array.Uint16)
	require.True(t, sparse.IsNull(0))
	require.Equal(t, uint16(7), sparse.Value(1))
	require.Equal(t, 3, sparse.NullN())

	strs := rec.Column(2).(*array.String)
	require.Equal(t, "b", strs.Value(1))
	require.True(t, strs.IsNull(2))

	wide := rec.Column(3).(*array.FixedSizeBinary)
	require.Len(t, wide.Value(0), 16)
	require.Equal(t, byte(0xFF), wide.Value(0)[15])

	require.Equal(t, 4, rec.Column(4).NullN())
}

func TestEmptyScanResultToRecordBatch(t *testing.T) {
	rec, err := (&ScanResult{Columns: map[int64]ColumnValues{}}).ToRecordBatch(nil, nil)
	require.NoError(t, err)
	defer rec.Release()
	require.Equal(t, int64(0), rec.NumRows())
	require.Equal(t, 0, rec.Schema().NumFields())
}
