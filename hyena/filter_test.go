// © Copyright 2025-2026, Query.Farm LLC - https://query.farm
// SPDX-License-Identifier: Apache-2.0

package hyena

import (
	"math"
	"math/big"
	"testing"

	"github.com/stretchr/testify/require"
)

func testCatalog() *Catalog {
	return NewCatalog([]Column{
		{ID: 3, Name: "name", DataType: StringDense},
		{ID: 1, Name: "small", DataType: I8Sparse},
		{ID: 2, Name: "counter", DataType: U64Dense},
		{ID: 4, Name: "huge", DataType: I128Dense},
	}, nil)
}

func TestFilterBuilderInfersType(t *testing.T) {
	cat := testCatalog()

	f, err := NewFilterBuilder(cat).Column(2).Op(GtEq).Value(uint64(math.MaxUint64)).Build()
	require.NoError(t, err)
	require.Equal(t, ScanFilter{Column: 2, Op: GtEq, Type: FilterU64, Value: UintValue(math.MaxUint64)}, f)

	f, err = NewFilterBuilder(cat).Column(1).Op(Lt).Value(-128).Build()
	require.NoError(t, err)
	require.Equal(t, FilterI8, f.Type)
	require.Equal(t, IntValue(-128), f.Value)

	f, err = NewFilterBuilder(cat).ColumnNamed("name").Op(StartsWith).Value("ab").Build()
	require.NoError(t, err)
	require.Equal(t, ScanFilter{Column: 3, Op: StartsWith, Type: FilterString, Value: StringValue("ab")}, f)

	f, err = NewFilterBuilder(cat).Column(4).Op(Eq).Value(Int128{Hi: -1, Lo: 0}).Build()
	require.NoError(t, err)
	require.Equal(t, Int128{Hi: -1, Lo: 0}, f.Value.Int128())
}

func TestFilterBuilderIncomplete(t *testing.T) {
	cat := testCatalog()
	_, err := NewFilterBuilder(cat).Op(Eq).Value(1).Build()
	require.ErrorContains(t, err, "column is not set")
	_, err = NewFilterBuilder(cat).Column(1).Value(1).Build()
	require.ErrorContains(t, err, "operator is not set")
	_, err = NewFilterBuilder(cat).Column(1).Op(Eq).Build()
	require.ErrorContains(t, err, "value is not set")
	_, err = NewFilterBuilder(cat).Build()
	require.Error(t, err)
}

func TestFilterBuilderRejects(t *testing.T) {
	cat := testCatalog()
	cases := map[string]*FilterBuilder{
		"unknown column":      NewFilterBuilder(cat).Column(99).Op(Eq).Value(1),
		"unknown name":        NewFilterBuilder(cat).ColumnNamed("missing").Op(Eq).Value(1),
		"string op on number": NewFilterBuilder(cat).Column(2).Op(Contains).Value(uint64(1)),
		"string on number":    NewFilterBuilder(cat).Column(2).Op(Eq).Value("1"),
		"number on string":    NewFilterBuilder(cat).Column(3).Op(Eq).Value(1),
		"i8 overflow":         NewFilterBuilder(cat).Column(1).Op(Eq).Value(128),
		"i8 underflow":        NewFilterBuilder(cat).Column(1).Op(Eq).Value(-129),
		"negative unsigned":   NewFilterBuilder(cat).Column(2).Op(Eq).Value(-1),
		"unsupported kind":    NewFilterBuilder(cat).Column(2).Op(Eq).Value(1.5),
		"no catalog":          NewFilterBuilder(nil).Column(2).Op(Eq).Value(1),
		"bad op":              NewFilterBuilder(cat).Column(2).Op(ScanComparison(42)).Value(1),
	}
	for name, b := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := b.Build()
			require.Error(t, err)
		})
	}
}

func TestTypedFilterBuilder(t *testing.T) {
	f, err := NewTypedFilterBuilder(FilterU32).Column(1).Op(Eq).Value(5).Build()
	require.NoError(t, err)
	require.Equal(t, ScanFilter{Column: 1, Op: Eq, Type: FilterU32, Value: UintValue(5)}, f)

	_, err = NewTypedFilterBuilder(FilterU32).Column(1).Op(Eq).Value(int64(math.MaxUint32) + 1).Build()
	require.Error(t, err)

	_, err = NewTypedFilterBuilder(FilterType(20)).Column(1).Op(Eq).Value(1).Build()
	require.Error(t, err)
}

func TestCoerceFilterValueRanges(t *testing.T) {
	maxU128 := new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), 128), big.NewInt(1))
	v, err := CoerceFilterValue(FilterU128, maxU128)
	require.NoError(t, err)
	require.Equal(t, Uint128{Hi: math.MaxUint64, Lo: math.MaxUint64}, v.Uint128())

	_, err = CoerceFilterValue(FilterU128, new(big.Int).Add(maxU128, big.NewInt(1)))
	require.Error(t, err)

	_, err = CoerceFilterValue(FilterI128, Uint128{Hi: 1 << 63})
	require.Error(t, err)

	v, err = CoerceFilterValue(FilterI16, int16(math.MinInt16))
	require.NoError(t, err)
	require.Equal(t, int64(math.MinInt16), v.Int64())

	v, err = CoerceFilterValue(FilterI64, int64(math.MinInt64))
	require.NoError(t, err)
	require.Equal(t, IntValue(math.MinInt64), v)

	_, err = CoerceFilterValue(FilterString, 3)
	require.Error(t, err)
}

func TestBuiltFilterEncodes(t *testing.T) {
	f, err := NewFilterBuilder(testCatalog()).Column(1).Op(NotEq).Value(int8(-1)).Build()
	require.NoError(t, err)

	frame, err := EncodeRequest(&ScanRequest{Filters: OrFilters{{f}}})
	require.NoError(t, err)
	req, err := DecodeRequest(frame)
	require.NoError(t, err)
	require.Equal(t, f, req.(*ScanRequest).Filters[0][0])
}

func TestScanFilterStringUsesFilterSignedness(t *testing.T) {
	f := ScanFilter{Column: 4, Op: Eq, Type: FilterI128, Value: Int128Value(Int128{Hi: -1, Lo: 5})}
	require.Contains(t, f.String(), "-18446744073709551611")

	f = ScanFilter{Column: 4, Op: Eq, Type: FilterU128, Value: Uint128Value(Uint128{Hi: math.MaxUint64, Lo: math.MaxUint64})}
	require.Contains(t, f.String(), "340282366920938463463374607431768211455")

	f = ScanFilter{Column: 1, Op: Lt, Type: FilterI16, Value: IntValue(-3)}
	require.Equal(t, "1 Lt I16(-3)", f.String())
}
