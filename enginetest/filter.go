// © Copyright 2025-2026, Query.Farm LLC - https://query.farm
// SPDX-License-Identifier: Apache-2.0

package enginetest

import (
	"fmt"
	"math/big"
	"regexp"
	"strings"

	"github.com/Query-farm/hyena-go/hyena"
	"github.com/RoaringBitmap/roaring"
)

// applyFilters narrows candidates to the rows matching filters: a row is
// kept when every filter of at least one group matches. No groups keeps
// every candidate.
func (s *Store) applyFilters(candidates *roaring.Bitmap, filters hyena.OrFilters) (*roaring.Bitmap, *hyena.ApiError) {
	if len(filters) == 0 {
		return candidates, nil
	}
	selected := roaring.New()
	for _, group := range filters {
		matched := candidates.Clone()
		for _, f := range group {
			m, err := s.matchFilter(matched, f)
			if err != nil {
				return nil, err
			}
			matched.And(m)
		}
		selected.Or(matched)
	}
	return selected, nil
}

func (s *Store) matchFilter(rows *roaring.Bitmap, f hyena.ScanFilter) (*roaring.Bitmap, *hyena.ApiError) {
	col, ok := s.column(f.Column)
	if !ok {
		return nil, hyena.NewApiError(hyena.InvalidScanRequest, fmt.Sprintf("unknown filter column %d", f.Column))
	}
	if col.DataType.FilterType() != f.Type {
		return nil, hyena.NewApiError(hyena.InvalidScanRequest,
			fmt.Sprintf("filter type %s does not match column %s of type %s", f.Type, col.Name, col.DataType))
	}
	pred, err := predicate(col.DataType, f)
	if err != nil {
		return nil, hyena.NewApiError(hyena.InvalidScanRequest, err.Error())
	}

	out := roaring.New()
	it := rows.Iterator()
	for it.HasNext() {
		i := it.Next()
		if v, ok := s.rows[i].cell(col.ID); ok && pred(v) {
			out.Add(i)
		}
	}
	return out, nil
}

// predicate compiles f into a test over raw cell bytes of type typ.
func predicate(typ hyena.BlockType, f hyena.ScanFilter) (func([]byte) bool, error) {
	if typ.IsString() {
		return stringPredicate(f.Op, f.Value.Str())
	}
	if f.Op.StringOnly() {
		return nil, fmt.Errorf("operator %s needs a string column", f.Op)
	}
	var operand *big.Int
	if f.Type.IsSigned() {
		operand = f.Value.Int128().Big()
	} else {
		operand = f.Value.Uint128().Big()
	}
	signed := typ.IsSigned()
	return func(raw []byte) bool {
		return compare(f.Op, cellBig(raw, signed).Cmp(operand))
	}, nil
}

func compare(op hyena.ScanComparison, c int) bool {
	switch op {
	case hyena.Lt:
		return c < 0
	case hyena.LtEq:
		return c <= 0
	case hyena.Eq:
		return c == 0
	case hyena.GtEq:
		return c >= 0
	case hyena.Gt:
		return c > 0
	case hyena.NotEq:
		return c != 0
	}
	return false
}

func stringPredicate(op hyena.ScanComparison, operand string) (func([]byte) bool, error) {
	switch op {
	case hyena.StartsWith:
		return func(v []byte) bool { return strings.HasPrefix(string(v), operand) }, nil
	case hyena.EndsWith:
		return func(v []byte) bool { return strings.HasSuffix(string(v), operand) }, nil
	case hyena.Contains:
		return func(v []byte) bool { return strings.Contains(string(v), operand) }, nil
	case hyena.Matches:
		re, err := regexp.Compile(operand)
		if err != nil {
			return nil, fmt.Errorf("bad pattern: %w", err)
		}
		return re.Match, nil
	}
	return func(v []byte) bool { return compare(op, strings.Compare(string(v), operand)) }, nil
}

// cellBig reads a little-endian integer of len(raw) bytes.
func cellBig(raw []byte, signed bool) *big.Int {
	be := make([]byte, len(raw))
	for i, b := range raw {
		be[len(raw)-1-i] = b
	}
	v := new(big.Int).SetBytes(be)
	if signed && len(raw) > 0 && raw[len(raw)-1]&0x80 != 0 {
		v.Sub(v, new(big.Int).Lsh(big.NewInt(1), uint(8*len(raw))))
	}
	return v
}
