// © Copyright 2025-2026, Query.Farm LLC - https://query.farm
// SPDX-License-Identifier: Apache-2.0

package hyena

import (
	"fmt"
	"strings"
)

// BlockType identifies the physical layout of a column: element width,
// signedness and whether the block is dense or sparse. The numeric value is
// the wire ordinal.
type BlockType uint32

const (
	I8Dense BlockType = iota
	I16Dense
	I32Dense
	I64Dense
	I128Dense
	U8Dense
	U16Dense
	U32Dense
	U64Dense
	U128Dense
	I8Sparse
	I16Sparse
	I32Sparse
	I64Sparse
	I128Sparse
	U8Sparse
	U16Sparse
	U32Sparse
	U64Sparse
	U128Sparse
	StringDense

	blockTypeCount
)

var blockTypeNames = [...]string{
	I8Dense:     "I8Dense",
	I16Dense:    "I16Dense",
	I32Dense:    "I32Dense",
	I64Dense:    "I64Dense",
	I128Dense:   "I128Dense",
	U8Dense:     "U8Dense",
	U16Dense:    "U16Dense",
	U32Dense:    "U32Dense",
	U64Dense:    "U64Dense",
	U128Dense:   "U128Dense",
	I8Sparse:    "I8Sparse",
	I16Sparse:   "I16Sparse",
	I32Sparse:   "I32Sparse",
	I64Sparse:   "I64Sparse",
	I128Sparse:  "I128Sparse",
	U8Sparse:    "U8Sparse",
	U16Sparse:   "U16Sparse",
	U32Sparse:   "U32Sparse",
	U64Sparse:   "U64Sparse",
	U128Sparse:  "U128Sparse",
	StringDense: "StringDense",
}

// BlockTypes returns every block type in wire order.
func BlockTypes() []BlockType {
	out := make([]BlockType, 0, blockTypeCount)
	for t := BlockType(0); t < blockTypeCount; t++ {
		out = append(out, t)
	}
	return out
}

// Valid reports whether t is a known block type.
func (t BlockType) Valid() bool { return t < blockTypeCount }

func (t BlockType) String() string {
	if !t.Valid() {
		return fmt.Sprintf("BlockType(%d)", uint32(t))
	}
	return blockTypeNames[t]
}

// ParseBlockType resolves a block type by name, case-insensitively.
func ParseBlockType(name string) (BlockType, error) {
	for t := BlockType(0); t < blockTypeCount; t++ {
		if strings.EqualFold(blockTypeNames[t], name) {
			return t, nil
		}
	}
	return 0, fmt.Errorf("unknown block type %q", name)
}

// IsString reports whether t is the dense string layout.
func (t BlockType) IsString() bool { return t == StringDense }

// IsDense reports whether t stores a value for every row. StringDense is dense.
func (t BlockType) IsDense() bool { return t <= U128Dense || t == StringDense }

// IsSparse reports whether t stores (offset, value) pairs.
func (t BlockType) IsSparse() bool { return t >= I8Sparse && t <= U128Sparse }

// IsSigned reports whether the numeric elements of t are signed.
func (t BlockType) IsSigned() bool {
	return (t >= I8Dense && t <= I128Dense) || (t >= I8Sparse && t <= I128Sparse)
}

// Width returns the element width in bytes, or 0 for strings.
func (t BlockType) Width() int {
	if !t.Valid() || t.IsString() {
		return 0
	}
	return 1 << (uint(t) % 5)
}

// Dense returns the dense variant with the same element kind.
func (t BlockType) Dense() BlockType {
	if t.IsSparse() {
		return t - I8Sparse
	}
	return t
}

// Sparse returns the sparse variant with the same element kind. StringDense
// has no sparse variant and is returned unchanged.
func (t BlockType) Sparse() BlockType {
	if t <= U128Dense {
		return t + I8Sparse
	}
	return t
}

// FilterType returns the scan filter type used to compare values of t.
func (t BlockType) FilterType() FilterType {
	if t.IsString() {
		return FilterString
	}
	// Dense numeric ordinals line up with the numeric filter types.
	return FilterType(t.Dense())
}

// FilterType identifies the scalar type carried by a ScanFilter value.
type FilterType uint32

const (
	FilterI8 FilterType = iota
	FilterI16
	FilterI32
	FilterI64
	FilterI128
	FilterU8
	FilterU16
	FilterU32
	FilterU64
	FilterU128
	FilterString

	filterTypeCount
)

var filterTypeNames = [...]string{
	FilterI8:     "I8",
	FilterI16:    "I16",
	FilterI32:    "I32",
	FilterI64:    "I64",
	FilterI128:   "I128",
	FilterU8:     "U8",
	FilterU16:    "U16",
	FilterU32:    "U32",
	FilterU64:    "U64",
	FilterU128:   "U128",
	FilterString: "String",
}

// Valid reports whether f is a known filter type.
func (f FilterType) Valid() bool { return f < filterTypeCount }

func (f FilterType) String() string {
	if !f.Valid() {
		return fmt.Sprintf("FilterType(%d)", uint32(f))
	}
	return filterTypeNames[f]
}

// ParseFilterType resolves a filter type by name, case-insensitively.
func ParseFilterType(name string) (FilterType, error) {
	for f := FilterType(0); f < filterTypeCount; f++ {
		if strings.EqualFold(filterTypeNames[f], name) {
			return f, nil
		}
	}
	return 0, fmt.Errorf("unknown filter type %q", name)
}

// Width returns the encoded value width in bytes, or 0 for strings.
func (f FilterType) Width() int {
	if !f.Valid() || f == FilterString {
		return 0
	}
	return 1 << (uint(f) % 5)
}

// IsSigned reports whether f is a signed integer type.
func (f FilterType) IsSigned() bool { return f <= FilterI128 }

// ScanComparison is the operator of a ScanFilter.
type ScanComparison uint32

const (
	Lt ScanComparison = iota
	LtEq
	Eq
	GtEq
	Gt
	NotEq
	StartsWith
	EndsWith
	Contains
	Matches

	comparisonCount
)

var comparisonNames = [...]string{
	Lt:         "Lt",
	LtEq:       "LtEq",
	Eq:         "Eq",
	GtEq:       "GtEq",
	Gt:         "Gt",
	NotEq:      "NotEq",
	StartsWith: "StartsWith",
	EndsWith:   "EndsWith",
	Contains:   "Contains",
	Matches:    "Matches",
}

// Valid reports whether c is a known comparison.
func (c ScanComparison) Valid() bool { return c < comparisonCount }

// StringOnly reports whether c applies to string columns only.
func (c ScanComparison) StringOnly() bool { return c >= StartsWith && c < comparisonCount }

func (c ScanComparison) String() string {
	if !c.Valid() {
		return fmt.Sprintf("ScanComparison(%d)", uint32(c))
	}
	return comparisonNames[c]
}

// ParseScanComparison resolves an operator by name, case-insensitively.
func ParseScanComparison(name string) (ScanComparison, error) {
	for c := ScanComparison(0); c < comparisonCount; c++ {
		if strings.EqualFold(comparisonNames[c], name) {
			return c, nil
		}
	}
	return 0, fmt.Errorf("unknown scan comparison %q", name)
}
