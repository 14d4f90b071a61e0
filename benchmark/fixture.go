// © Copyright 2025-2026, Query.Farm LLC - https://query.farm
// SPDX-License-Identifier: Apache-2.0

// Package benchmark holds codec and round-trip benchmarks over a
// representative table.
package benchmark

import (
	"fmt"
	"math"

	"github.com/Query-farm/hyena-go/enginetest"
	"github.com/Query-farm/hyena-go/hyena"
	"github.com/Query-farm/hyena-go/internal/gen"
)

// Fixture is a store preloaded with random rows, together with the
// request that loaded it and a full-table scan over it.
type Fixture struct {
	Store  *enginetest.Store
	Insert hyena.InsertRequest
	Scan   *hyena.ScanRequest
	Result *hyena.ScanResult
}

var fixtureColumns = []struct {
	name string
	typ  hyena.BlockType
}{
	{"temp", hyena.I32Dense},
	{"reading", hyena.U64Sparse},
	{"flags", hyena.U8Sparse},
	{"digest", hyena.U128Dense},
	{"host", hyena.StringDense},
}

// NewFixture builds a fixture of rows rows from source 1.
func NewFixture(rows int) (*Fixture, error) {
	store := enginetest.NewStore()
	for _, c := range fixtureColumns {
		if _, apiErr := store.AddColumn(c.name, c.typ); apiErr != nil {
			return nil, apiErr
		}
	}

	ts, blocks, err := gen.New(uint64(rows)).Batch(1, rows, store.Columns())
	if err != nil {
		return nil, err
	}
	ins := hyena.InsertRequest{Source: 1, Timestamps: ts, Columns: blocks}
	if _, apiErr := store.Insert(ins); apiErr != nil {
		return nil, apiErr
	}

	scan := &hyena.ScanRequest{MaxTs: math.MaxInt64}
	for _, c := range store.Columns() {
		scan.Projection = append(scan.Projection, c.ID)
	}
	res, apiErr := store.Scan(scan)
	if apiErr != nil {
		return nil, apiErr
	}
	if len(res.Columns) != len(scan.Projection) {
		return nil, fmt.Errorf("benchmark: scan returned %d of %d columns", len(res.Columns), len(scan.Projection))
	}
	return &Fixture{Store: store, Insert: ins, Scan: scan, Result: res}, nil
}

// ReplyFrame encodes the scan result with the given string layout.
func (f *Fixture) ReplyFrame(layout hyena.StringLayout) []byte {
	return hyena.Codec{Strings: layout}.EncodeReply(&hyena.ScanReply{Result: f.Result})
}
