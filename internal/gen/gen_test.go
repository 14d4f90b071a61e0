// © Copyright 2025-2026, Query.Farm LLC - https://query.farm
// SPDX-License-Identifier: Apache-2.0

package gen

import (
	"testing"

	"github.com/Query-farm/hyena-go/hyena"
	"github.com/stretchr/testify/require"
)

func TestTimestampsIncrease(t *testing.T) {
	ts := New(1).Timestamps(100, 500)
	require.Len(t, ts, 500)
	require.Equal(t, int64(100), ts[0])
	for i := 1; i < len(ts); i++ {
		require.Greater(t, ts[i], ts[i-1])
	}
}

func TestBlockEveryType(t *testing.T) {
	g := New(7)
	for _, typ := range hyena.BlockTypes() {
		b, err := g.Block(typ, 64)
		require.NoError(t, err, typ.String())
		require.Equal(t, typ, b.Type())
		if typ.IsDense() {
			require.Equal(t, 64, b.Len())
		} else {
			require.LessOrEqual(t, b.Len(), 64)
		}
	}
}

func TestSparseOffsetsInRange(t *testing.T) {
	g := New(3)
	g.Density = 1
	b, err := g.Block(hyena.U16Sparse, 10)
	require.NoError(t, err)
	sb := b.(*hyena.SparseBlock[uint16])
	require.Equal(t, []uint32{0, 1, 2, 3, 4, 5, 6, 7, 8, 9}, sb.Offsets)
}

func TestSameSeedSameData(t *testing.T) {
	a, err := New(42).Block(hyena.I64Dense, 8)
	require.NoError(t, err)
	b, err := New(42).Block(hyena.I64Dense, 8)
	require.NoError(t, err)
	require.Equal(t, a, b)
}

func TestBatchSkipsBuiltins(t *testing.T) {
	cols := []hyena.Column{
		{ID: 0, Name: "timestamp", DataType: hyena.U64Dense},
		{ID: 1, Name: "source_id", DataType: hyena.U32Dense},
		{ID: 2, Name: "temp", DataType: hyena.I32Dense},
		{ID: 3, Name: "host", DataType: hyena.StringDense},
	}
	ts, blocks, err := New(1).Batch(0, 5, cols)
	require.NoError(t, err)
	require.Len(t, ts, 5)
	require.Len(t, blocks, 2)
	require.Equal(t, int64(2), blocks[0].ColumnID)
	require.Equal(t, hyena.StringDense, blocks[1].Block.Type())

	_, err = New(1).Block(hyena.BlockType(99), 1)
	require.Error(t, err)
}
