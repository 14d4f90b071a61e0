// © Copyright 2025-2026, Query.Farm LLC - https://query.farm
// SPDX-License-Identifier: Apache-2.0

// Package gen produces random insert payloads for load testing and for the
// command line client.
package gen

import (
	"fmt"
	"math/rand/v2"
	"strconv"

	"github.com/Query-farm/hyena-go/hyena"
)

// Generator draws rows from a seeded source so runs are reproducible.
type Generator struct {
	r *rand.Rand
	// Density is the chance that a sparse column has a value in a row.
	Density float64
}

// New returns a generator seeded with seed.
func New(seed uint64) *Generator {
	return &Generator{r: rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15)), Density: 0.3}
}

// Timestamps returns n strictly increasing timestamps starting at start.
func (g *Generator) Timestamps(start int64, n int) []int64 {
	ts := make([]int64, n)
	cur := start
	for i := range ts {
		ts[i] = cur
		cur += 1 + g.r.Int64N(1000)
	}
	return ts
}

// Block returns a random block of typ covering rows rows.
func (g *Generator) Block(typ hyena.BlockType, rows int) (hyena.Block, error) {
	switch typ.Dense() {
	case hyena.I8Dense:
		return build(g, typ, rows, func(r *rand.Rand) int8 { return int8(r.Uint32()) })
	case hyena.I16Dense:
		return build(g, typ, rows, func(r *rand.Rand) int16 { return int16(r.Uint32()) })
	case hyena.I32Dense:
		return build(g, typ, rows, func(r *rand.Rand) int32 { return int32(r.Uint32()) })
	case hyena.I64Dense:
		return build(g, typ, rows, func(r *rand.Rand) int64 { return int64(r.Uint64()) })
	case hyena.I128Dense:
		return build(g, typ, rows, func(r *rand.Rand) hyena.Int128 {
			return hyena.Int128{Hi: int64(r.Uint64()), Lo: r.Uint64()}
		})
	case hyena.U8Dense:
		return build(g, typ, rows, func(r *rand.Rand) uint8 { return uint8(r.Uint32()) })
	case hyena.U16Dense:
		return build(g, typ, rows, func(r *rand.Rand) uint16 { return uint16(r.Uint32()) })
	case hyena.U32Dense:
		return build(g, typ, rows, func(r *rand.Rand) uint32 { return r.Uint32() })
	case hyena.U64Dense:
		return build(g, typ, rows, func(r *rand.Rand) uint64 { return r.Uint64() })
	case hyena.U128Dense:
		return build(g, typ, rows, func(r *rand.Rand) hyena.Uint128 {
			return hyena.Uint128{Hi: r.Uint64(), Lo: r.Uint64()}
		})
	case hyena.StringDense:
		values := make([]string, rows)
		for i := range values {
			values[i] = "v" + strconv.FormatUint(uint64(g.r.Uint32N(100000)), 36)
		}
		return hyena.NewStringBlock(values...), nil
	}
	return nil, fmt.Errorf("gen: unsupported block type %s", typ)
}

func build[T hyena.Element](g *Generator, typ hyena.BlockType, rows int, draw func(*rand.Rand) T) (hyena.Block, error) {
	if typ.IsDense() {
		values := make([]T, rows)
		for i := range values {
			values[i] = draw(g.r)
		}
		return hyena.NewDenseBlock(typ, values...)
	}
	b, err := hyena.NewSparseBlock[T](typ)
	if err != nil {
		return nil, err
	}
	for row := range rows {
		if g.r.Float64() < g.Density {
			if err := b.Add(uint32(row), draw(g.r)); err != nil {
				return nil, err
			}
		}
	}
	return b, nil
}

// Batch fills rows rows for every user column in columns. Built-in columns
// (ids 0 and 1) are skipped because the engine fills them from the
// request.
func (g *Generator) Batch(start int64, rows int, columns []hyena.Column) ([]int64, []hyena.ColumnBlock, error) {
	ts := g.Timestamps(start, rows)
	var blocks []hyena.ColumnBlock
	for _, col := range columns {
		if col.ID < 2 {
			continue
		}
		b, err := g.Block(col.DataType, rows)
		if err != nil {
			return nil, nil, fmt.Errorf("column %s: %w", col.Name, err)
		}
		blocks = append(blocks, hyena.ColumnBlock{ColumnID: col.ID, Block: b})
	}
	return ts, blocks, nil
}
