// © Copyright 2025-2026, Query.Farm LLC - https://query.farm
// SPDX-License-Identifier: Apache-2.0

package hyena

import (
	"fmt"

	"github.com/google/uuid"
)

// Kind is the 4-byte tag that opens every request and reply frame.
type Kind uint32

const (
	KindListColumns Kind = iota
	KindInsert
	KindScan
	KindRefreshCatalog
	KindAddColumn
	KindFlush
	KindDataCompaction
	KindSerializeError
	KindOther

	kindCount
)

var kindNames = [...]string{
	KindListColumns:    "ListColumns",
	KindInsert:         "Insert",
	KindScan:           "Scan",
	KindRefreshCatalog: "RefreshCatalog",
	KindAddColumn:      "AddColumn",
	KindFlush:          "Flush",
	KindDataCompaction: "DataCompaction",
	KindSerializeError: "SerializeError",
	KindOther:          "Other",
}

func (k Kind) String() string {
	if k >= kindCount {
		return fmt.Sprintf("Kind(%d)", uint32(k))
	}
	return kindNames[k]
}

// Request is an operation sent to the engine. The set of implementations is
// closed: ListColumnsRequest, RefreshCatalogRequest, AddColumnRequest,
// InsertRequest and *ScanRequest.
type Request interface {
	Kind() Kind
	encode(w *writer) error
}

// ListColumnsRequest asks for every column of the engine.
type ListColumnsRequest struct{}

// RefreshCatalogRequest asks for the current catalog.
type RefreshCatalogRequest struct{}

// AddColumnRequest creates a column. The engine assigns the id.
type AddColumnRequest struct {
	Name string
	Type BlockType
}

// InsertRequest appends rows. Every block is aligned with Timestamps.
type InsertRequest struct {
	Source     uint32
	Timestamps []int64
	Columns    []ColumnBlock
}

func (ListColumnsRequest) Kind() Kind    { return KindListColumns }
func (RefreshCatalogRequest) Kind() Kind { return KindRefreshCatalog }
func (AddColumnRequest) Kind() Kind      { return KindAddColumn }
func (InsertRequest) Kind() Kind         { return KindInsert }
func (*ScanRequest) Kind() Kind          { return KindScan }

func (ListColumnsRequest) encode(*writer) error    { return nil }
func (RefreshCatalogRequest) encode(*writer) error { return nil }

func (r AddColumnRequest) encode(w *writer) error {
	if !r.Type.Valid() {
		return fmt.Errorf("hyena: add column %q: invalid data type %d", r.Name, uint32(r.Type))
	}
	w.str(r.Name)
	w.u32(uint32(r.Type))
	return nil
}

func (r InsertRequest) encode(w *writer) error {
	w.count(len(r.Timestamps))
	for _, ts := range r.Timestamps {
		w.i64(ts)
	}
	w.u32(r.Source)
	w.count(len(r.Columns))
	for i, c := range r.Columns {
		if c.Block == nil {
			return fmt.Errorf("hyena: insert column %d (index %d): nil block", c.ColumnID, i)
		}
		// Each column travels as a single-block list.
		w.u64(1)
		w.i64(c.ColumnID)
		w.u32(uint32(c.Block.Type()))
		c.Block.encode(w)
	}
	return nil
}

func (r *ScanRequest) encode(w *writer) error {
	w.i64(r.MinTs)
	w.i64(r.MaxTs)

	ids := uniqueUUIDs(r.PartitionIDs)
	w.count(len(ids))
	for _, id := range ids {
		w.uuid(id)
	}

	w.count(len(r.Projection))
	for _, col := range r.Projection {
		w.i64(col)
	}

	w.count(len(r.Filters))
	for _, and := range r.Filters {
		w.count(len(and))
		for _, f := range and {
			if err := encodeFilter(w, f); err != nil {
				return err
			}
		}
	}
	return nil
}

func uniqueUUIDs(ids []uuid.UUID) []uuid.UUID {
	if len(ids) < 2 {
		return ids
	}
	seen := make(map[uuid.UUID]struct{}, len(ids))
	out := make([]uuid.UUID, 0, len(ids))
	for _, id := range ids {
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

func encodeFilter(w *writer, f ScanFilter) error {
	if !f.Op.Valid() {
		return fmt.Errorf("hyena: filter on column %d: invalid operator %d", f.Column, uint32(f.Op))
	}
	if !f.Type.Valid() {
		return fmt.Errorf("hyena: filter on column %d: invalid filter type %d", f.Column, uint32(f.Type))
	}
	if (f.Type == FilterString) != f.Value.IsString() {
		return fmt.Errorf("hyena: filter on column %d: %s filter with value %s", f.Column, f.Type, f.Value)
	}
	if !f.Value.fits(f.Type) {
		return fmt.Errorf("hyena: filter on column %d: value %s out of range for %s", f.Column, f.Value, f.Type)
	}
	w.i64(f.Column)
	w.u32(uint32(f.Op))
	w.u32(uint32(f.Type))
	v := f.Value
	switch f.Type.Width() {
	case 0:
		w.str(v.Str())
	case 1:
		w.u8(uint8(v.lo))
	case 2:
		w.u16(uint16(v.lo))
	case 4:
		w.u32(uint32(v.lo))
	case 8:
		w.u64(v.lo)
	case 16:
		w.u128(v.hi, v.lo)
	}
	return nil
}

// EncodeRequest serializes req into a request frame.
func EncodeRequest(req Request) ([]byte, error) {
	if req == nil {
		return nil, fmt.Errorf("hyena: nil request")
	}
	w := newWriter(64)
	w.u32(uint32(req.Kind()))
	if err := req.encode(w); err != nil {
		return nil, err
	}
	return w.bytes(), nil
}

// DecodeRequest parses a request frame. The engine side of the protocol and
// the dump inspector use it.
func DecodeRequest(frame []byte) (Request, error) {
	r := newReader(frame)
	tag, err := r.u32("request kind")
	if err != nil {
		return nil, err
	}
	var req Request
	switch Kind(tag) {
	case KindListColumns:
		req = ListColumnsRequest{}
	case KindRefreshCatalog:
		req = RefreshCatalogRequest{}
	case KindAddColumn:
		req, err = decodeAddColumn(r)
	case KindInsert:
		req, err = decodeInsert(r)
	case KindScan:
		req, err = decodeScan(r)
	default:
		return nil, r.fail("unsupported request kind %s", Kind(tag))
	}
	if err != nil {
		return nil, err
	}
	if err := r.end(Kind(tag).String() + " request"); err != nil {
		return nil, err
	}
	return req, nil
}

func readBlockType(r *sliceReader) (BlockType, error) {
	v, err := r.u32("block type")
	if err != nil {
		return 0, err
	}
	if !BlockType(v).Valid() {
		return 0, r.fail("unknown block type %d", v)
	}
	return BlockType(v), nil
}

func decodeAddColumn(r *sliceReader) (Request, error) {
	name, err := r.str("column name")
	if err != nil {
		return nil, err
	}
	typ, err := readBlockType(r)
	if err != nil {
		return nil, err
	}
	return AddColumnRequest{Name: name, Type: typ}, nil
}

func decodeInsert(r *sliceReader) (Request, error) {
	n, err := r.count(8, "timestamps")
	if err != nil {
		return nil, err
	}
	req := InsertRequest{Timestamps: makeSlice[int64](n)}
	for i := range req.Timestamps {
		if req.Timestamps[i], err = r.i64("timestamp"); err != nil {
			return nil, err
		}
	}
	if req.Source, err = r.u32("source id"); err != nil {
		return nil, err
	}
	// marker + id + type
	n, err = r.count(20, "column blocks")
	if err != nil {
		return nil, err
	}
	req.Columns = makeSlice[ColumnBlock](n)
	for i := range req.Columns {
		marker, err := r.u64("block marker")
		if err != nil {
			return nil, err
		}
		if marker != 1 {
			return nil, r.fail("expected single-block marker 1, got %d", marker)
		}
		id, err := r.i64("column id")
		if err != nil {
			return nil, err
		}
		typ, err := readBlockType(r)
		if err != nil {
			return nil, err
		}
		b, err := decodeBlock(r, typ)
		if err != nil {
			return nil, err
		}
		req.Columns[i] = ColumnBlock{ColumnID: id, Block: b}
	}
	return req, nil
}

func decodeScan(r *sliceReader) (Request, error) {
	req := &ScanRequest{}
	var err error
	if req.MinTs, err = r.i64("min ts"); err != nil {
		return nil, err
	}
	if req.MaxTs, err = r.i64("max ts"); err != nil {
		return nil, err
	}

	n, err := r.count(16, "partition ids")
	if err != nil {
		return nil, err
	}
	req.PartitionIDs = makeSlice[uuid.UUID](n)
	for i := range req.PartitionIDs {
		if req.PartitionIDs[i], err = r.uuid("partition id"); err != nil {
			return nil, err
		}
	}

	if n, err = r.count(8, "projection"); err != nil {
		return nil, err
	}
	req.Projection = makeSlice[int64](n)
	for i := range req.Projection {
		if req.Projection[i], err = r.i64("projected column"); err != nil {
			return nil, err
		}
	}

	if n, err = r.count(8, "or filters"); err != nil {
		return nil, err
	}
	req.Filters = makeSlice[AndFilters](n)
	for i := range req.Filters {
		m, err := r.count(17, "and filters")
		if err != nil {
			return nil, err
		}
		and := makeSlice[ScanFilter](m)
		for j := range and {
			if and[j], err = decodeFilter(r); err != nil {
				return nil, err
			}
		}
		req.Filters[i] = and
	}
	return req, nil
}

func decodeFilter(r *sliceReader) (ScanFilter, error) {
	var f ScanFilter
	var err error
	if f.Column, err = r.i64("filter column"); err != nil {
		return f, err
	}
	op, err := r.u32("filter operator")
	if err != nil {
		return f, err
	}
	if f.Op = ScanComparison(op); !f.Op.Valid() {
		return f, r.fail("unknown scan comparison %d", op)
	}
	ft, err := r.u32("filter type")
	if err != nil {
		return f, err
	}
	if f.Type = FilterType(ft); !f.Type.Valid() {
		return f, r.fail("unknown filter type %d", ft)
	}
	if f.Type == FilterString {
		s, err := r.str("filter value")
		if err != nil {
			return f, err
		}
		f.Value = StringValue(s)
		return f, nil
	}
	b, err := r.take(f.Type.Width(), "filter value")
	if err != nil {
		return f, err
	}
	n := numeric{typ: f.Type.blockType(), width: f.Type.Width(), data: b}
	// Signed values narrower than 128 bits come back sign-extended.
	u := n.uint128At(0)
	f.Value = FilterValue{lo: u.Lo, hi: u.Hi}
	return f, nil
}

// blockType returns the dense block type whose elements f compares against.
func (f FilterType) blockType() BlockType {
	if f == FilterString {
		return StringDense
	}
	return BlockType(f)
}
