// © Copyright 2025-2026, Query.Farm LLC - https://query.farm
// SPDX-License-Identifier: Apache-2.0

package hyena

import (
	"errors"
	"fmt"
	"math/big"
)

// FilterBuilder assembles a ScanFilter step by step and validates it on
// Build. A builder created with NewFilterBuilder infers the filter type from
// the catalog entry of the column; NewTypedFilterBuilder takes the filter
// type explicitly and does not need a catalog.
//
//	f, err := hyena.NewFilterBuilder(cat).Column(3).Op(hyena.Gt).Value(10).Build()
type FilterBuilder struct {
	catalog *Catalog
	typ     FilterType
	typed   bool

	column    int64
	hasColumn bool
	op        ScanComparison
	hasOp     bool
	value     any
	hasValue  bool
}

// NewFilterBuilder returns a builder that resolves columns in catalog.
func NewFilterBuilder(catalog *Catalog) *FilterBuilder {
	return &FilterBuilder{catalog: catalog}
}

// NewTypedFilterBuilder returns a builder for filters of type ft.
func NewTypedFilterBuilder(ft FilterType) *FilterBuilder {
	return &FilterBuilder{typ: ft, typed: true}
}

// Column sets the filtered column id.
func (b *FilterBuilder) Column(id int64) *FilterBuilder {
	b.column, b.hasColumn = id, true
	return b
}

// ColumnNamed sets the filtered column by name. The name is resolved on
// Build, so it requires a catalog.
func (b *FilterBuilder) ColumnNamed(name string) *FilterBuilder {
	if b.catalog != nil {
		if c, ok := b.catalog.ColumnByName(name); ok {
			return b.Column(c.ID)
		}
	}
	// Leave the column unset with an id that cannot exist in a catalog.
	b.column, b.hasColumn = UnassignedColumnID, true
	return b
}

// Op sets the comparison.
func (b *FilterBuilder) Op(op ScanComparison) *FilterBuilder {
	b.op, b.hasOp = op, true
	return b
}

// Value sets the operand. Accepted kinds are the Go integer types, Int128,
// Uint128, *big.Int and string.
func (b *FilterBuilder) Value(v any) *FilterBuilder {
	b.value, b.hasValue = v, true
	return b
}

// Build validates the filter.
func (b *FilterBuilder) Build() (ScanFilter, error) {
	var missing []error
	if !b.hasColumn {
		missing = append(missing, errors.New("column is not set"))
	}
	if !b.hasOp {
		missing = append(missing, errors.New("operator is not set"))
	}
	if !b.hasValue {
		missing = append(missing, errors.New("value is not set"))
	}
	if len(missing) > 0 {
		return ScanFilter{}, fmt.Errorf("hyena: incomplete filter: %w", errors.Join(missing...))
	}
	if !b.op.Valid() {
		return ScanFilter{}, fmt.Errorf("hyena: invalid scan comparison %d", uint32(b.op))
	}

	ft := b.typ
	if !b.typed {
		if b.catalog == nil {
			return ScanFilter{}, errors.New("hyena: filter builder has no catalog")
		}
		col, ok := b.catalog.Column(b.column)
		if !ok {
			return ScanFilter{}, fmt.Errorf("hyena: column %d is not in the catalog", b.column)
		}
		ft = col.DataType.FilterType()
	}
	if !ft.Valid() {
		return ScanFilter{}, fmt.Errorf("hyena: invalid filter type %d", uint32(ft))
	}
	if b.op.StringOnly() && ft != FilterString {
		return ScanFilter{}, fmt.Errorf("hyena: %s needs a string column, column %d is %s", b.op, b.column, ft)
	}

	v, err := CoerceFilterValue(ft, b.value)
	if err != nil {
		return ScanFilter{}, fmt.Errorf("hyena: filter on column %d: %w", b.column, err)
	}
	return ScanFilter{Column: b.column, Op: b.op, Type: ft, Value: v}, nil
}

var (
	two128 = new(big.Int).Lsh(big.NewInt(1), 128)
	mask64 = new(big.Int).SetUint64(^uint64(0))
)

// fits reports whether v's 128-bit pattern is representable in ft.
func (v FilterValue) fits(ft FilterType) bool {
	w := ft.Width()
	if w == 0 || w == 16 {
		return true
	}
	bits := uint(w * 8)
	if !ft.IsSigned() {
		return v.hi == 0 && (bits == 64 || v.lo < 1<<bits)
	}
	n := int64(v.lo)
	switch v.hi {
	case 0:
		if n < 0 {
			return false
		}
	case ^uint64(0):
		if n >= 0 {
			return false
		}
	default:
		return false
	}
	if bits == 64 {
		return true
	}
	return n >= -(1<<(bits-1)) && n < 1<<(bits-1)
}

// CoerceFilterValue converts v into an operand of type ft, rejecting values
// that do not fit.
func CoerceFilterValue(ft FilterType, v any) (FilterValue, error) {
	if ft == FilterString {
		s, ok := v.(string)
		if !ok {
			return FilterValue{}, fmt.Errorf("String filter needs a string value, got %T", v)
		}
		return StringValue(s), nil
	}
	n, err := bigOf(v)
	if err != nil {
		return FilterValue{}, err
	}
	bits := uint(ft.Width() * 8)
	var lo, hi *big.Int
	if ft.IsSigned() {
		lo = new(big.Int).Neg(new(big.Int).Lsh(big.NewInt(1), bits-1))
		hi = new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), bits-1), big.NewInt(1))
	} else {
		lo = new(big.Int)
		hi = new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), bits), big.NewInt(1))
	}
	if n.Cmp(lo) < 0 || n.Cmp(hi) > 0 {
		return FilterValue{}, fmt.Errorf("value %s out of range for %s [%s, %s]", n, ft, lo, hi)
	}
	if n.Sign() < 0 {
		n = new(big.Int).Add(n, two128)
	}
	return FilterValue{
		lo: new(big.Int).And(n, mask64).Uint64(),
		hi: new(big.Int).Rsh(n, 64).Uint64(),
	}, nil
}

func bigOf(v any) (*big.Int, error) {
	switch x := v.(type) {
	case int:
		return big.NewInt(int64(x)), nil
	case int8:
		return big.NewInt(int64(x)), nil
	case int16:
		return big.NewInt(int64(x)), nil
	case int32:
		return big.NewInt(int64(x)), nil
	case int64:
		return big.NewInt(x), nil
	case uint:
		return new(big.Int).SetUint64(uint64(x)), nil
	case uint8:
		return new(big.Int).SetUint64(uint64(x)), nil
	case uint16:
		return new(big.Int).SetUint64(uint64(x)), nil
	case uint32:
		return new(big.Int).SetUint64(uint64(x)), nil
	case uint64:
		return new(big.Int).SetUint64(x), nil
	case Int128:
		return x.Big(), nil
	case Uint128:
		return x.Big(), nil
	case *big.Int:
		if x == nil {
			return nil, errors.New("nil *big.Int value")
		}
		return new(big.Int).Set(x), nil
	case string:
		return nil, fmt.Errorf("numeric filter cannot take string value %q", x)
	}
	return nil, fmt.Errorf("unsupported filter value type %T", v)
}
