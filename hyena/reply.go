// © Copyright 2025-2026, Query.Farm LLC - https://query.farm
// SPDX-License-Identifier: Apache-2.0

package hyena

// Reply is a decoded engine reply. The set of implementations is closed:
// *ListColumnsReply, *AddColumnReply, *InsertReply, *ScanReply,
// *CatalogReply and *SerializeErrorReply.
type Reply interface {
	Kind() Kind
	encode(w *writer, layout StringLayout)
}

// ListColumnsReply lists every column of the engine.
type ListColumnsReply struct {
	Columns []Column
}

// AddColumnReply carries the id of a new column, or the reason it was not
// created.
type AddColumnReply struct {
	ID  int64
	Err *ApiError
}

// InsertReply carries the number of inserted rows, or an error.
type InsertReply struct {
	Count int64
	Err   *ApiError
}

// ScanReply carries scanned data, or an error.
type ScanReply struct {
	Result *ScanResult
	Err    *ApiError
}

// CatalogReply carries a catalog snapshot.
type CatalogReply struct {
	Catalog *Catalog
}

// SerializeErrorReply reports that the engine could not parse the request.
type SerializeErrorReply struct {
	Message string
}

func (*ListColumnsReply) Kind() Kind    { return KindListColumns }
func (*AddColumnReply) Kind() Kind      { return KindAddColumn }
func (*InsertReply) Kind() Kind         { return KindInsert }
func (*ScanReply) Kind() Kind           { return KindScan }
func (*CatalogReply) Kind() Kind        { return KindRefreshCatalog }
func (*SerializeErrorReply) Kind() Kind { return KindSerializeError }

func (r *ListColumnsReply) encode(w *writer, _ StringLayout) { encodeColumns(w, r.Columns) }

func (r *CatalogReply) encode(w *writer, _ StringLayout) {
	var cat Catalog
	if r.Catalog != nil {
		cat = *r.Catalog
	}
	encodeColumns(w, cat.Columns)
	w.count(len(cat.Partitions))
	for _, p := range cat.Partitions {
		w.i64(p.MinTs)
		w.i64(p.MaxTs)
		w.uuid(p.ID)
		w.str(p.Location)
	}
}

func (r *AddColumnReply) encode(w *writer, _ StringLayout) {
	if encodeEither(w, r.Err) {
		w.i64(r.ID)
	}
}

func (r *InsertReply) encode(w *writer, _ StringLayout) {
	if encodeEither(w, r.Err) {
		w.i64(r.Count)
	}
}

func (r *ScanReply) encode(w *writer, layout StringLayout) {
	if !encodeEither(w, r.Err) {
		return
	}
	var res ScanResult
	if r.Result != nil {
		res = *r.Result
	}
	w.count(len(res.Columns))
	for _, id := range res.ColumnIDs() {
		c := res.Columns[id]
		w.i64(id)
		w.u32(uint32(c.Type()))
		if _, empty := c.(*EmptyColumn); empty {
			w.flag(false)
			continue
		}
		w.flag(true)
		encodeColumnPayload(w, c, layout)
	}
}

func (r *SerializeErrorReply) encode(w *writer, _ StringLayout) { w.str(r.Message) }

func encodeColumns(w *writer, cols []Column) {
	w.count(len(cols))
	for _, c := range cols {
		w.u32(uint32(c.DataType))
		w.i64(c.ID)
		w.str(c.Name)
	}
}

// encodeEither writes the ok flag and, for failures, the ApiError. It
// reports whether the caller should write the success payload.
func encodeEither(w *writer, apiErr *ApiError) bool {
	if apiErr == nil {
		w.u32(0)
		return true
	}
	w.u32(1)
	w.u32(uint32(apiErr.Type))
	switch apiErr.Type.Extra() {
	case ExtraInt:
		w.i64(apiErr.IntExtra)
	case ExtraString:
		w.str(apiErr.StrExtra)
	}
	return false
}

// Codec encodes and decodes reply frames. The zero value uses the simple
// string layout.
type Codec struct {
	Strings StringLayout
}

// EncodeReply serializes a reply frame.
func (c Codec) EncodeReply(reply Reply) []byte {
	w := newWriter(64)
	w.u32(uint32(reply.Kind()))
	reply.encode(w, c.Strings)
	return w.bytes()
}

// DecodeReply parses a reply frame. Column views in a scan reply alias frame.
func (c Codec) DecodeReply(frame []byte) (Reply, error) {
	r := newReader(frame)
	tag, err := r.u32("reply kind")
	if err != nil {
		return nil, err
	}
	var reply Reply
	switch Kind(tag) {
	case KindListColumns:
		cols, err := decodeColumns(r)
		if err != nil {
			return nil, err
		}
		reply = &ListColumnsReply{Columns: cols}
	case KindRefreshCatalog:
		cat, err := decodeCatalog(r)
		if err != nil {
			return nil, err
		}
		reply = &CatalogReply{Catalog: cat}
	case KindAddColumn:
		id, apiErr, err := decodeEitherInt(r, "column id")
		if err != nil {
			return nil, err
		}
		reply = &AddColumnReply{ID: id, Err: apiErr}
	case KindInsert:
		n, apiErr, err := decodeEitherInt(r, "row count")
		if err != nil {
			return nil, err
		}
		reply = &InsertReply{Count: n, Err: apiErr}
	case KindScan:
		ok, apiErr, err := decodeEither(r)
		if err != nil {
			return nil, err
		}
		sr := &ScanReply{Err: apiErr}
		if ok {
			if sr.Result, err = decodeScanResult(r, c.Strings); err != nil {
				return nil, err
			}
		}
		reply = sr
	case KindSerializeError:
		msg, err := r.str("serialize error message")
		if err != nil {
			return nil, err
		}
		reply = &SerializeErrorReply{Message: msg}
	default:
		return nil, r.fail("unsupported reply kind %s", Kind(tag))
	}
	if err := r.end(Kind(tag).String() + " reply"); err != nil {
		return nil, err
	}
	return reply, nil
}

// EncodeReply serializes reply with the simple string layout.
func EncodeReply(reply Reply) []byte { return Codec{}.EncodeReply(reply) }

// DecodeReply parses a reply frame with the simple string layout.
func DecodeReply(frame []byte) (Reply, error) { return Codec{}.DecodeReply(frame) }

func decodeColumns(r *sliceReader) ([]Column, error) {
	// type + id + name length
	n, err := r.count(20, "columns")
	if err != nil {
		return nil, err
	}
	cols := makeSlice[Column](n)
	for i := range cols {
		if cols[i].DataType, err = readBlockType(r); err != nil {
			return nil, err
		}
		if cols[i].ID, err = r.i64("column id"); err != nil {
			return nil, err
		}
		if cols[i].Name, err = r.str("column name"); err != nil {
			return nil, err
		}
	}
	return cols, nil
}

func decodeCatalog(r *sliceReader) (*Catalog, error) {
	cols, err := decodeColumns(r)
	if err != nil {
		return nil, err
	}
	// min + max + uuid + location length
	n, err := r.count(40, "partitions")
	if err != nil {
		return nil, err
	}
	parts := makeSlice[PartitionInfo](n)
	for i := range parts {
		p := &parts[i]
		if p.MinTs, err = r.i64("partition min ts"); err != nil {
			return nil, err
		}
		if p.MaxTs, err = r.i64("partition max ts"); err != nil {
			return nil, err
		}
		if p.ID, err = r.uuid("partition id"); err != nil {
			return nil, err
		}
		if p.Location, err = r.str("partition location"); err != nil {
			return nil, err
		}
	}
	return NewCatalog(cols, parts), nil
}

// decodeEither reads the ok flag and, on failure, the ApiError.
func decodeEither(r *sliceReader) (bool, *ApiError, error) {
	flag, err := r.u32("result flag")
	if err != nil {
		return false, nil, err
	}
	switch flag {
	case 0:
		return true, nil, nil
	case 1:
	default:
		return false, nil, r.fail("invalid result flag %d", flag)
	}
	t, err := r.u32("api error type")
	if err != nil {
		return false, nil, err
	}
	apiErr := &ApiError{Type: ApiErrorType(t)}
	if !apiErr.Type.Valid() {
		return false, nil, r.fail("unknown api error type %d", t)
	}
	switch apiErr.Type.Extra() {
	case ExtraInt:
		if apiErr.IntExtra, err = r.i64("api error detail"); err != nil {
			return false, nil, err
		}
	case ExtraString:
		if apiErr.StrExtra, err = r.str("api error detail"); err != nil {
			return false, nil, err
		}
	}
	return false, apiErr, nil
}

func decodeEitherInt(r *sliceReader, what string) (int64, *ApiError, error) {
	ok, apiErr, err := decodeEither(r)
	if err != nil || !ok {
		return 0, apiErr, err
	}
	v, err := r.i64(what)
	return v, nil, err
}

func decodeScanResult(r *sliceReader, layout StringLayout) (*ScanResult, error) {
	// id + type + present flag
	n, err := r.count(13, "scan columns")
	if err != nil {
		return nil, err
	}
	res := &ScanResult{Columns: make(map[int64]ColumnValues, n)}
	for i := 0; i < n; i++ {
		id, err := r.i64("scan column id")
		if err != nil {
			return nil, err
		}
		typ, err := readBlockType(r)
		if err != nil {
			return nil, err
		}
		present, err := r.flag("column data")
		if err != nil {
			return nil, err
		}
		if _, dup := res.Columns[id]; dup {
			return nil, r.fail("column %d appears twice in scan result", id)
		}
		if !present {
			res.Columns[id] = NewEmptyColumn(typ)
			continue
		}
		rows, err := r.count(0, "records")
		if err != nil {
			return nil, err
		}
		c, err := decodeColumnPayload(r, typ, rows, layout)
		if err != nil {
			return nil, err
		}
		res.Columns[id] = c
	}
	return res, nil
}
