// © Copyright 2025-2026, Query.Farm LLC - https://query.farm
// SPDX-License-Identifier: Apache-2.0

package hyena

import (
	"fmt"
	"math/big"
	"slices"
	"strings"

	"github.com/google/uuid"
)

// UnassignedColumnID marks a column whose id has not been assigned by the
// engine yet. Add-column requests carry columns with this id.
const UnassignedColumnID int64 = -1

// Int128 is a signed 128-bit integer in two's complement.
type Int128 struct {
	Hi int64
	Lo uint64
}

// Uint128 is an unsigned 128-bit integer.
type Uint128 struct {
	Hi uint64
	Lo uint64
}

// Int128From sign-extends v.
func Int128From(v int64) Int128 {
	return Int128{Hi: v >> 63, Lo: uint64(v)}
}

// Uint128From zero-extends v.
func Uint128From(v uint64) Uint128 {
	return Uint128{Lo: v}
}

// Big returns x as a big.Int.
func (x Int128) Big() *big.Int {
	b := new(big.Int).SetInt64(x.Hi)
	b.Lsh(b, 64)
	return b.Add(b, new(big.Int).SetUint64(x.Lo))
}

func (x Int128) String() string { return x.Big().String() }

// Big returns x as a big.Int.
func (x Uint128) Big() *big.Int {
	b := new(big.Int).SetUint64(x.Hi)
	b.Lsh(b, 64)
	return b.Or(b, new(big.Int).SetUint64(x.Lo))
}

func (x Uint128) String() string { return x.Big().String() }

// Column describes one column of the engine's catalog.
type Column struct {
	ID       int64
	Name     string
	DataType BlockType
}

func (c Column) String() string {
	return fmt.Sprintf("%s/%d %s", c.Name, c.ID, c.DataType)
}

// PartitionInfo describes a partition available for scanning.
type PartitionInfo struct {
	MinTs    int64
	MaxTs    int64
	ID       uuid.UUID
	Location string
}

func (p PartitionInfo) String() string {
	return fmt.Sprintf("%s [%d-%d]", p.ID, p.MinTs, p.MaxTs)
}

// Catalog is an immutable snapshot of the engine's columns and partitions.
// Columns are ordered by id.
type Catalog struct {
	Columns    []Column
	Partitions []PartitionInfo
}

// NewCatalog returns a catalog with columns sorted by id. The input slices
// are copied.
func NewCatalog(columns []Column, partitions []PartitionInfo) *Catalog {
	cols := slices.Clone(columns)
	slices.SortStableFunc(cols, func(a, b Column) int {
		switch {
		case a.ID < b.ID:
			return -1
		case a.ID > b.ID:
			return 1
		}
		return 0
	})
	return &Catalog{Columns: cols, Partitions: slices.Clone(partitions)}
}

// Column returns the column with the given id.
func (c *Catalog) Column(id int64) (Column, bool) {
	if c == nil {
		return Column{}, false
	}
	i, ok := slices.BinarySearchFunc(c.Columns, id, func(col Column, id int64) int {
		switch {
		case col.ID < id:
			return -1
		case col.ID > id:
			return 1
		}
		return 0
	})
	if !ok {
		return Column{}, false
	}
	return c.Columns[i], true
}

// ColumnByName returns the first column with the given name.
func (c *Catalog) ColumnByName(name string) (Column, bool) {
	if c == nil {
		return Column{}, false
	}
	for _, col := range c.Columns {
		if col.Name == name {
			return col, true
		}
	}
	return Column{}, false
}

func (c *Catalog) String() string {
	cols := make([]string, len(c.Columns))
	for i, col := range c.Columns {
		cols[i] = col.String()
	}
	parts := make([]string, len(c.Partitions))
	for i, p := range c.Partitions {
		parts[i] = p.String()
	}
	return fmt.Sprintf("Columns: [%s], Partitions: [%s]", strings.Join(cols, ", "), strings.Join(parts, ", "))
}

// FilterValue is the operand of a ScanFilter. Numeric operands are held as a
// 128-bit two's complement pattern and narrowed to the filter type's width
// on the wire.
type FilterValue struct {
	lo, hi uint64
	str    string
	isStr  bool
}

// IntValue returns a signed operand.
func IntValue(v int64) FilterValue {
	return FilterValue{lo: uint64(v), hi: uint64(v >> 63)}
}

// UintValue returns an unsigned operand.
func UintValue(v uint64) FilterValue { return FilterValue{lo: v} }

// Int128Value returns a signed 128-bit operand.
func Int128Value(v Int128) FilterValue { return FilterValue{lo: v.Lo, hi: uint64(v.Hi)} }

// Uint128Value returns an unsigned 128-bit operand.
func Uint128Value(v Uint128) FilterValue { return FilterValue{lo: v.Lo, hi: v.Hi} }

// StringValue returns a string operand.
func StringValue(s string) FilterValue { return FilterValue{str: s, isStr: true} }

// IsString reports whether the operand is a string.
func (v FilterValue) IsString() bool { return v.isStr }

// Int64 returns the low 64 bits as a signed integer.
func (v FilterValue) Int64() int64 { return int64(v.lo) }

// Uint64 returns the low 64 bits.
func (v FilterValue) Uint64() uint64 { return v.lo }

// Int128 returns the full signed operand.
func (v FilterValue) Int128() Int128 { return Int128{Hi: int64(v.hi), Lo: v.lo} }

// Uint128 returns the full unsigned operand.
func (v FilterValue) Uint128() Uint128 { return Uint128{Hi: v.hi, Lo: v.lo} }

// Str returns the string operand.
func (v FilterValue) Str() string { return v.str }

func (v FilterValue) String() string {
	if v.isStr {
		return fmt.Sprintf("%q", v.str)
	}
	if v.hi == 0 {
		return fmt.Sprintf("%d", v.lo)
	}
	if v.hi == ^uint64(0) && int64(v.lo) < 0 {
		return fmt.Sprintf("%d", int64(v.lo))
	}
	return fmt.Sprintf("0x%016x%016x", v.hi, v.lo)
}

// Format renders v as an operand of type ft, reading wide patterns as
// signed or unsigned according to ft.
func (v FilterValue) Format(ft FilterType) string {
	switch {
	case v.isStr:
		return fmt.Sprintf("%q", v.str)
	case ft.IsSigned():
		return v.Int128().String()
	default:
		return v.Uint128().String()
	}
}

// ScanFilter is a single comparison of a column against a constant. Type
// must match the column's data type; FilterBuilder enforces this.
type ScanFilter struct {
	Column int64
	Op     ScanComparison
	Type   FilterType
	Value  FilterValue
}

func (f ScanFilter) String() string {
	return fmt.Sprintf("%d %s %s(%s)", f.Column, f.Op, f.Type, f.Value.Format(f.Type))
}

// AndFilters is a conjunction of filters.
type AndFilters []ScanFilter

// OrFilters is a disjunction of conjunctions.
type OrFilters []AndFilters

// ScanRequest selects data to read. An empty PartitionIDs scans all
// partitions. PartitionIDs is a set; duplicates are sent once.
type ScanRequest struct {
	MinTs        int64
	MaxTs        int64
	PartitionIDs []uuid.UUID
	Filters      OrFilters
	Projection   []int64
}
