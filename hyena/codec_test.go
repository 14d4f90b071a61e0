// © Copyright 2025-2026, Query.Farm LLC - https://query.farm
// SPDX-License-Identifier: Apache-2.0

package hyena

import (
	"encoding/binary"
	"errors"
	"math"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

// le builds an expected frame from little-endian fields. Supported field
// types: uint8, uint32, int64, uint64 and string (raw bytes, no length).
func le(fields ...any) []byte {
	var out []byte
	for _, f := range fields {
		switch v := f.(type) {
		case uint8:
			out = append(out, v)
		case uint32:
			out = binary.LittleEndian.AppendUint32(out, v)
		case int64:
			out = binary.LittleEndian.AppendUint64(out, uint64(v))
		case uint64:
			out = binary.LittleEndian.AppendUint64(out, v)
		case string:
			out = append(out, v...)
		default:
			panic("le: unsupported field")
		}
	}
	return out
}

func wholeScan(f ScanFilter) *ScanRequest {
	return &ScanRequest{
		MinTs:        5,
		MaxTs:        10,
		PartitionIDs: []uuid.UUID{UUIDFromBits(1, 1), UUIDFromBits(2, 2)},
		Filters:      OrFilters{{f}},
		Projection:   []int64{1, 2},
	}
}

func scanPrefix() []any {
	return []any{
		uint32(KindScan),
		int64(5), int64(10),
		uint64(2), uint64(1), uint64(1), uint64(2), uint64(2),
		uint64(2), int64(1), int64(2),
		uint64(1), uint64(1),
		int64(1),
	}
}

func TestEncodeScanRequest(t *testing.T) {
	f := ScanFilter{Column: 1, Op: Eq, Type: FilterU32, Value: UintValue(5)}
	got, err := EncodeRequest(wholeScan(f))
	require.NoError(t, err)

	want := le(append(scanPrefix(), uint32(Eq), uint32(FilterU32), uint32(5))...)
	require.Equal(t, want, got)
}

func TestEncodeScanRequestStringFilter(t *testing.T) {
	f := ScanFilter{Column: 1, Op: Eq, Type: FilterString, Value: StringValue("five")}
	got, err := EncodeRequest(wholeScan(f))
	require.NoError(t, err)

	want := le(append(scanPrefix(), uint32(Eq), uint32(FilterString), uint64(4), "five")...)
	require.Equal(t, want, got)
}

func TestEncodeEmptyScanRequest(t *testing.T) {
	got, err := EncodeRequest(&ScanRequest{MinTs: 5, MaxTs: 10})
	require.NoError(t, err)
	require.Equal(t, le(uint32(KindScan), int64(5), int64(10), uint64(0), uint64(0), uint64(0)), got)
}

func TestScanRequestDeduplicatesPartitions(t *testing.T) {
	id := uuid.New()
	got, err := EncodeRequest(&ScanRequest{PartitionIDs: []uuid.UUID{id, id}})
	require.NoError(t, err)

	req, err := DecodeRequest(got)
	require.NoError(t, err)
	require.Equal(t, []uuid.UUID{id}, req.(*ScanRequest).PartitionIDs)
}

func TestUUIDWireOrder(t *testing.T) {
	id := uuid.MustParse("00000000-0000-0001-0000-000000000002")
	w := newWriter(16)
	w.uuid(id)
	require.Equal(t, le(uint64(1), uint64(2)), w.bytes())

	back, err := newReader(w.bytes()).uuid("id")
	require.NoError(t, err)
	require.Equal(t, id, back)
}

func TestEncodeSimpleRequests(t *testing.T) {
	got, err := EncodeRequest(ListColumnsRequest{})
	require.NoError(t, err)
	require.Equal(t, le(uint32(KindListColumns)), got)

	got, err = EncodeRequest(RefreshCatalogRequest{})
	require.NoError(t, err)
	require.Equal(t, le(uint32(KindRefreshCatalog)), got)

	got, err = EncodeRequest(AddColumnRequest{Name: "ab", Type: U16Sparse})
	require.NoError(t, err)
	require.Equal(t, le(uint32(KindAddColumn), uint64(2), "ab", uint32(U16Sparse)), got)
}

func TestEncodeInsertLayout(t *testing.T) {
	dense, err := NewDenseBlock(I32Dense, int32(-1), 7)
	require.NoError(t, err)
	sparse, err := NewSparseBlock[uint8](U8Sparse)
	require.NoError(t, err)
	require.NoError(t, sparse.Add(4, 9))

	got, err := EncodeRequest(InsertRequest{
		Source:     3,
		Timestamps: []int64{100, 200},
		Columns: []ColumnBlock{
			{ColumnID: 10, Block: dense},
			{ColumnID: 11, Block: sparse},
			{ColumnID: 12, Block: NewStringBlock("x", "")},
		},
	})
	require.NoError(t, err)

	want := le(
		uint32(KindInsert),
		uint64(2), int64(100), int64(200),
		uint32(3),
		uint64(3),
		uint64(1), int64(10), uint32(I32Dense), uint64(2), uint32(0xFFFFFFFF), uint32(7),
		uint64(1), int64(11), uint32(U8Sparse), uint64(1), uint8(9), uint64(1), uint32(4),
		uint64(1), int64(12), uint32(StringDense), uint64(2), uint64(2), uint64(1), "x", uint64(0),
	)
	require.Equal(t, want, got)
}

func TestUint64TwosComplementBoundaries(t *testing.T) {
	values := []uint64{0, math.MaxInt64, 1 << 63, math.MaxUint64}
	block, err := NewDenseBlock(U64Dense, values...)
	require.NoError(t, err)

	frame, err := EncodeRequest(InsertRequest{Columns: []ColumnBlock{{ColumnID: 1, Block: block}}})
	require.NoError(t, err)

	// tag + timestamps + source + block count + marker + id + type + count
	payload := frame[4+8+4+8+8+8+4+8:]
	require.Equal(t, uint64(1)<<63, binary.LittleEndian.Uint64(payload[16:]))
	require.Equal(t, int64(-1), int64(binary.LittleEndian.Uint64(payload[24:])))

	req, err := DecodeRequest(frame)
	require.NoError(t, err)
	decoded := req.(InsertRequest).Columns[0].Block.(*DenseBlock[uint64])
	require.Equal(t, values, decoded.Values)

	view, err := ColumnValuesOf(block)
	require.NoError(t, err)
	for i, v := range values {
		require.Equal(t, v, view.Uint64(i))
	}
}

func denseOf[T Element](t *testing.T, typ BlockType, values ...T) Block {
	t.Helper()
	b, err := NewDenseBlock(typ, values...)
	require.NoError(t, err)
	return b
}

func sparseOf[T Element](t *testing.T, typ BlockType, values ...T) Block {
	t.Helper()
	b, err := NewSparseBlock[T](typ)
	require.NoError(t, err)
	for i, v := range values {
		require.NoError(t, b.Add(uint32(i*3+1), v))
	}
	return b
}

// sampleBlock returns a small block of every BlockType, with values at the
// edges of each element range.
func sampleBlock(t *testing.T, typ BlockType) Block {
	t.Helper()
	switch typ {
	case I8Dense:
		return denseOf[int8](t, typ, math.MinInt8, 0, math.MaxInt8)
	case I16Dense:
		return denseOf[int16](t, typ, math.MinInt16, -1, math.MaxInt16)
	case I32Dense:
		return denseOf[int32](t, typ, math.MinInt32, 2, math.MaxInt32)
	case I64Dense:
		return denseOf[int64](t, typ, math.MinInt64, 3, math.MaxInt64)
	case I128Dense:
		return denseOf(t, typ, Int128{Hi: math.MinInt64}, Int128From(-5), Int128{Hi: math.MaxInt64, Lo: math.MaxUint64})
	case U8Dense:
		return denseOf[uint8](t, typ, 0, math.MaxUint8)
	case U16Dense:
		return denseOf[uint16](t, typ, 0, math.MaxUint16)
	case U32Dense:
		return denseOf[uint32](t, typ, 0, math.MaxUint32)
	case U64Dense:
		return denseOf[uint64](t, typ, 0, math.MaxUint64)
	case U128Dense:
		return denseOf(t, typ, Uint128{}, Uint128{Hi: math.MaxUint64, Lo: math.MaxUint64})
	case I8Sparse:
		return sparseOf[int8](t, typ, -8, 8)
	case I16Sparse:
		return sparseOf[int16](t, typ, -16, 16)
	case I32Sparse:
		return sparseOf[int32](t, typ, -32, 32)
	case I64Sparse:
		return sparseOf[int64](t, typ, -64, 64)
	case I128Sparse:
		return sparseOf(t, typ, Int128From(-128), Int128From(128))
	case U8Sparse:
		return sparseOf[uint8](t, typ, 8, math.MaxUint8)
	case U16Sparse:
		return sparseOf[uint16](t, typ, 16, math.MaxUint16)
	case U32Sparse:
		return sparseOf[uint32](t, typ, 32, math.MaxUint32)
	case U64Sparse:
		return sparseOf[uint64](t, typ, 64, math.MaxUint64)
	case U128Sparse:
		return sparseOf(t, typ, Uint128From(128), Uint128{Hi: 1})
	case StringDense:
		return NewStringBlock("alpha", "", "żółw")
	}
	t.Fatalf("no sample for %s", typ)
	return nil
}

func TestInsertRoundTripEveryBlockType(t *testing.T) {
	for _, typ := range BlockTypes() {
		t.Run(typ.String(), func(t *testing.T) {
			req := InsertRequest{
				Source:     7,
				Timestamps: []int64{1, 2, 3},
				Columns:    []ColumnBlock{{ColumnID: int64(typ), Block: sampleBlock(t, typ)}},
			}
			frame, err := EncodeRequest(req)
			require.NoError(t, err)

			got, err := DecodeRequest(frame)
			require.NoError(t, err)
			require.Equal(t, req, got)
		})
	}
}

func TestRequestRoundTrip(t *testing.T) {
	requests := []Request{
		ListColumnsRequest{},
		RefreshCatalogRequest{},
		AddColumnRequest{Name: "temperature", Type: I128Sparse},
		&ScanRequest{
			MinTs:        -10,
			MaxTs:        math.MaxInt64,
			PartitionIDs: []uuid.UUID{uuid.New(), uuid.New()},
			Filters: OrFilters{
				{
					{Column: 1, Op: Lt, Type: FilterI16, Value: IntValue(-3)},
					{Column: 2, Op: GtEq, Type: FilterU64, Value: UintValue(math.MaxUint64)},
				},
				{
					{Column: 3, Op: Contains, Type: FilterString, Value: StringValue("abc")},
					{Column: 4, Op: NotEq, Type: FilterI128, Value: Int128Value(Int128{Hi: -2, Lo: 9})},
				},
			},
			Projection: []int64{1, 2, 3, 4},
		},
	}
	for _, req := range requests {
		t.Run(req.Kind().String(), func(t *testing.T) {
			frame, err := EncodeRequest(req)
			require.NoError(t, err)
			got, err := DecodeRequest(frame)
			require.NoError(t, err)
			require.Equal(t, req, got)
		})
	}
}

func TestEncodeRequestRejectsBadInput(t *testing.T) {
	_, err := EncodeRequest(AddColumnRequest{Name: "x", Type: BlockType(99)})
	require.Error(t, err)

	_, err = EncodeRequest(InsertRequest{Columns: []ColumnBlock{{ColumnID: 1}}})
	require.Error(t, err)

	_, err = EncodeRequest(wholeScan(ScanFilter{Column: 1, Op: Eq, Type: FilterU8, Value: StringValue("x")}))
	require.Error(t, err)

	_, err = EncodeRequest(nil)
	require.Error(t, err)
}

func TestEncodeFilterRejectsOutOfRange(t *testing.T) {
	bad := []ScanFilter{
		{Column: 1, Op: Eq, Type: FilterU8, Value: UintValue(300)},
		{Column: 1, Op: Eq, Type: FilterU16, Value: IntValue(-1)},
		{Column: 1, Op: Eq, Type: FilterI8, Value: IntValue(128)},
		{Column: 1, Op: Eq, Type: FilterI32, Value: IntValue(math.MinInt32 - 1)},
		{Column: 1, Op: Eq, Type: FilterI64, Value: UintValue(math.MaxUint64)},
		{Column: 1, Op: Eq, Type: FilterU64, Value: Uint128Value(Uint128{Hi: 1})},
	}
	for _, f := range bad {
		_, err := EncodeRequest(wholeScan(f))
		require.Error(t, err, f.String())
	}

	good := []ScanFilter{
		{Column: 1, Op: Eq, Type: FilterU8, Value: UintValue(255)},
		{Column: 1, Op: Eq, Type: FilterI8, Value: IntValue(-128)},
		{Column: 1, Op: Eq, Type: FilterI64, Value: IntValue(math.MinInt64)},
		{Column: 1, Op: Eq, Type: FilterU128, Value: Uint128Value(Uint128{Hi: math.MaxUint64, Lo: math.MaxUint64})},
	}
	for _, f := range good {
		_, err := EncodeRequest(wholeScan(f))
		require.NoError(t, err, f.String())
	}
}

func scanResultOf(t *testing.T, blocks map[int64]Block) *ScanResult {
	t.Helper()
	res := &ScanResult{Columns: map[int64]ColumnValues{}}
	for id, b := range blocks {
		c, err := ColumnValuesOf(b)
		require.NoError(t, err)
		res.Columns[id] = c
	}
	return res
}

func TestReplyRoundTrip(t *testing.T) {
	blocks := map[int64]Block{}
	for _, typ := range BlockTypes() {
		blocks[int64(typ)] = sampleBlock(t, typ)
	}
	scan := scanResultOf(t, blocks)
	scan.Columns[100] = NewEmptyColumn(U32Sparse)

	replies := []Reply{
		&ListColumnsReply{Columns: []Column{{ID: 0, Name: "ts", DataType: U64Dense}, {ID: 3, Name: "name", DataType: StringDense}}},
		&ListColumnsReply{},
		&CatalogReply{Catalog: &Catalog{
			Columns:    []Column{{ID: 1, Name: "a", DataType: I8Sparse}},
			Partitions: []PartitionInfo{{MinTs: 1, MaxTs: 2, ID: uuid.New(), Location: "/data/p1"}},
		}},
		&AddColumnReply{ID: 42},
		&AddColumnReply{Err: NewApiError(ColumnNameAlreadyExists, "a")},
		&AddColumnReply{Err: NewApiError(ColumnIdAlreadyExists, int64(7))},
		&AddColumnReply{Err: NewApiError(ColumnNameCannotBeEmpty, nil)},
		&InsertReply{Count: 3},
		&InsertReply{Err: NewApiError(InconsistentData, "length mismatch")},
		&ScanReply{Result: scan},
		&ScanReply{Err: NewApiError(ScanError, "boom")},
		&SerializeErrorReply{Message: "bad frame"},
	}
	for _, reply := range replies {
		t.Run(reply.Kind().String(), func(t *testing.T) {
			got, err := DecodeReply(EncodeReply(reply))
			require.NoError(t, err)
			require.Equal(t, reply, got)
		})
	}
}

func TestCatalogReplySortsColumns(t *testing.T) {
	frame := EncodeReply(&CatalogReply{Catalog: &Catalog{Columns: []Column{
		{ID: 5, Name: "value", DataType: U64Sparse},
		{ID: 1, Name: "source", DataType: U32Dense},
		{ID: 3, Name: "host", DataType: StringDense},
	}}})
	reply, err := DecodeReply(frame)
	require.NoError(t, err)
	cat := reply.(*CatalogReply).Catalog

	for _, id := range []int64{1, 3, 5} {
		col, ok := cat.Column(id)
		require.True(t, ok, "column %d", id)
		require.Equal(t, id, col.ID)
	}
	f, err := NewFilterBuilder(cat).Column(5).Op(Gt).Value(1).Build()
	require.NoError(t, err)
	require.Equal(t, FilterU64, f.Type)
}

func TestScanReplyMetaStringLayout(t *testing.T) {
	scan := scanResultOf(t, map[int64]Block{5: NewStringBlock("one", "five", "")})
	codec := Codec{Strings: StringsMeta}

	frame := codec.EncodeReply(&ScanReply{Result: scan})
	got, err := codec.DecodeReply(frame)
	require.NoError(t, err)

	col := got.(*ScanReply).Result.Columns[5].(*StringColumn)
	require.Equal(t, StringsMeta, col.Layout())
	require.Equal(t, 3, col.Len())
	require.Equal(t, "one", col.String(0))
	require.Equal(t, "five", col.String(1))
	require.Equal(t, "", col.String(2))

	// The simple decoder must not accept a meta frame.
	_, err = DecodeReply(frame)
	require.ErrorIs(t, err, ErrDeserialization)
}

func TestDecodeScanReplyLayout(t *testing.T) {
	frame := le(
		uint32(KindScan), uint32(0),
		uint64(2),
		// two i16 values, 5 and -1
		int64(1), uint32(I16Dense), uint8(1), uint64(2), uint32(0xFFFF0005),
		int64(2), uint32(U32Sparse), uint8(0),
	)
	reply, err := DecodeReply(frame)
	require.NoError(t, err)
	res := reply.(*ScanReply).Result
	require.Equal(t, []int64{1, 2}, res.ColumnIDs())

	dense := res.Columns[1]
	require.Equal(t, I16Dense, dense.Type())
	require.Equal(t, int64(5), dense.Int64(0))
	require.Equal(t, int64(-1), dense.Int64(1))

	empty, ok := res.Columns[2].(*EmptyColumn)
	require.True(t, ok)
	require.Equal(t, U32Sparse, empty.Type())
	require.True(t, empty.IsNull(0))
}

func TestDecodeRejectsMalformedFrames(t *testing.T) {
	cases := map[string][]byte{
		"empty":              {},
		"short tag":          {1, 0},
		"unknown reply kind": le(uint32(KindFlush)),
		"truncated columns":  le(uint32(KindListColumns), uint64(3)),
		"trailing bytes":     le(uint32(KindListColumns), uint64(0), uint8(1)),
		"bad either flag":    le(uint32(KindInsert), uint32(2)),
		"unknown api error":  le(uint32(KindInsert), uint32(1), uint32(99)),
		"unknown block type": le(uint32(KindScan), uint32(0), uint64(1), int64(1), uint32(77)),
		"bad present flag":   le(uint32(KindScan), uint32(0), uint64(1), int64(1), uint32(I8Dense), uint8(2)),
		"sparse mismatch": le(uint32(KindScan), uint32(0), uint64(1),
			int64(1), uint32(U8Sparse), uint8(1), uint64(2), uint8(1), uint8(2), uint64(1), uint32(0)),
		"unsorted offsets": le(uint32(KindScan), uint32(0), uint64(1),
			int64(1), uint32(U8Sparse), uint8(1), uint64(2), uint8(1), uint8(2), uint64(2), uint32(5), uint32(5)),
		"huge count": le(uint32(KindListColumns), uint64(math.MaxUint64)),
		"string count mismatch": le(uint32(KindScan), uint32(0), uint64(1),
			int64(1), uint32(StringDense), uint8(1), uint64(2), uint64(1), uint64(1), "a"),
		"invalid utf8": le(uint32(KindSerializeError), uint64(1), uint8(0xFF)),
	}
	for name, frame := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := DecodeReply(frame)
			require.Error(t, err)
			require.ErrorIs(t, err, ErrDeserialization)
			var de *DeserializationError
			require.True(t, errors.As(err, &de))
		})
	}
}

func TestDecodeRequestRejectsMalformedFrames(t *testing.T) {
	cases := map[string][]byte{
		"unknown kind":   le(uint32(KindDataCompaction)),
		"bad marker":     le(uint32(KindInsert), uint64(0), uint32(0), uint64(1), uint64(2), int64(1), uint32(0), uint64(0)),
		"bad filter op":  le(uint32(KindScan), int64(0), int64(0), uint64(0), uint64(0), uint64(1), uint64(1), int64(1), uint32(40), uint32(0), uint8(0)),
		"trailing bytes": le(uint32(KindRefreshCatalog), uint8(0)),
	}
	for name, frame := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := DecodeRequest(frame)
			require.ErrorIs(t, err, ErrDeserialization)
		})
	}
}

func TestPeerEnvelopeRoundTrip(t *testing.T) {
	envs := []PeerEnvelope{
		{Type: PeerRequest, MessageID: math.MaxUint64, Payload: []byte{1, 2, 3}},
		{Type: PeerRequest, MessageID: 9},
		{Type: PeerKeepAlive},
		{Type: PeerAbort},
		{Type: PeerCloseConnection},
	}
	for _, env := range envs {
		got, err := DecodePeerEnvelope(env.Encode())
		require.NoError(t, err)
		require.Equal(t, env, got)
	}
	require.Equal(t, le(uint32(PeerKeepAlive)), PeerEnvelope{Type: PeerKeepAlive}.Encode())
	require.Equal(t, le(uint32(PeerRequest), uint64(5), uint8(1), uint64(1), "x"),
		PeerEnvelope{Type: PeerRequest, MessageID: 5, Payload: []byte("x")}.Encode())
}

func TestPeerReplyDecoding(t *testing.T) {
	ka, err := DecodePeerReply(le(uint32(PeerReplyKeepAlive)))
	require.NoError(t, err)
	require.Equal(t, PeerReplyKeepAlive, ka.Type)

	ok, err := DecodePeerReply(le(uint32(PeerResponse), uint64(77), uint32(0), uint8(1), uint64(4), uint32(KindListColumns)))
	require.NoError(t, err)
	require.True(t, ok.OK)
	require.Equal(t, uint64(77), ok.MessageID)
	require.Equal(t, le(uint32(KindListColumns)), ok.Payload)

	failed, err := DecodePeerReply(le(uint32(PeerResponse), uint64(78), uint32(1), uint64(4), "oops"))
	require.NoError(t, err)
	require.False(t, failed.OK)
	require.Equal(t, "oops", failed.Err)

	bare, err := DecodePeerReply(le(uint32(PeerResponse), uint64(79), uint32(1)))
	require.NoError(t, err)
	require.False(t, bare.OK)
	require.Empty(t, bare.Err)

	_, err = DecodePeerReply(le(uint32(PeerResponse), uint64(80), uint32(0), uint8(0)))
	require.ErrorIs(t, err, ErrDeserialization)

	_, err = DecodePeerReply(le(uint32(5)))
	require.ErrorIs(t, err, ErrDeserialization)

	for _, p := range []PeerReply{ok, failed, bare, ka} {
		again, err := DecodePeerReply(p.Encode())
		require.NoError(t, err)
		require.Equal(t, p, again)
	}
}

func TestControlMessages(t *testing.T) {
	require.Equal(t, le(uint32(0)), EncodeControlRequest(ControlCreateSocket))
	typ, err := DecodeControlRequest(le(uint32(0)))
	require.NoError(t, err)
	require.Equal(t, ControlCreateSocket, typ)

	ok := ControlReply{OK: true, ConnectionID: 12, Address: "tcp://127.0.0.1:5000"}
	require.Equal(t, le(uint32(0), uint32(0), uint64(12), uint64(20), "tcp://127.0.0.1:5000"), ok.Encode())
	got, err := DecodeControlReply(ok.Encode())
	require.NoError(t, err)
	require.Equal(t, ok, got)

	refused := ControlReply{Err: "no sockets left"}
	got, err = DecodeControlReply(refused.Encode())
	require.NoError(t, err)
	require.Equal(t, refused, got)

	_, err = DecodeControlReply(le(uint32(3), uint32(0)))
	require.ErrorIs(t, err, ErrDeserialization)
}
