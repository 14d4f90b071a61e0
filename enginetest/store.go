// © Copyright 2025-2026, Query.Farm LLC - https://query.farm
// SPDX-License-Identifier: Apache-2.0

package enginetest

import (
	"encoding/binary"
	"fmt"
	"slices"
	"sync"

	"github.com/Query-farm/hyena-go/hyena"
	"github.com/RoaringBitmap/roaring"
	"github.com/google/uuid"
)

// Ids of the columns every store starts with.
const (
	TimestampColumn int64 = 0
	SourceColumn    int64 = 1
)

var partitionNamespace = uuid.MustParse("6f1e0c52-8a55-4a36-9a47-3b1c0a0d5e21")

type row struct {
	ts     int64
	source uint32
	cells  map[int64][]byte
}

// Store is the in-memory table behind an Engine. Rows are kept in insertion
// order; each source owns one partition.
type Store struct {
	mu         sync.RWMutex
	columns    []hyena.Column
	nextID     int64
	rows       []row
	partitions map[uint32]*hyena.PartitionInfo
}

// NewStore returns a store holding only the timestamp and source columns.
func NewStore() *Store {
	return &Store{
		columns: []hyena.Column{
			{ID: TimestampColumn, Name: "timestamp", DataType: hyena.U64Dense},
			{ID: SourceColumn, Name: "source_id", DataType: hyena.U32Dense},
		},
		nextID:     2,
		partitions: make(map[uint32]*hyena.PartitionInfo),
	}
}

// Apply executes req against the store and returns the engine's answer.
func (s *Store) Apply(req hyena.Request) hyena.Reply {
	switch r := req.(type) {
	case hyena.ListColumnsRequest:
		return &hyena.ListColumnsReply{Columns: s.Columns()}
	case hyena.RefreshCatalogRequest:
		return &hyena.CatalogReply{Catalog: s.Catalog()}
	case hyena.AddColumnRequest:
		id, err := s.AddColumn(r.Name, r.Type)
		return &hyena.AddColumnReply{ID: id, Err: err}
	case hyena.InsertRequest:
		n, err := s.Insert(r)
		return &hyena.InsertReply{Count: n, Err: err}
	case *hyena.ScanRequest:
		res, err := s.Scan(r)
		return &hyena.ScanReply{Result: res, Err: err}
	}
	return &hyena.SerializeErrorReply{Message: fmt.Sprintf("unsupported request %s", req.Kind())}
}

// Columns returns the columns ordered by id.
func (s *Store) Columns() []hyena.Column {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.columns)
}

// Catalog returns the columns and one partition per source seen so far.
func (s *Store) Catalog() *hyena.Catalog {
	s.mu.RLock()
	defer s.mu.RUnlock()
	parts := make([]hyena.PartitionInfo, 0, len(s.partitions))
	for _, p := range s.partitions {
		parts = append(parts, *p)
	}
	slices.SortFunc(parts, func(a, b hyena.PartitionInfo) int {
		return slices.Compare(a.ID[:], b.ID[:])
	})
	return hyena.NewCatalog(s.columns, parts)
}

// Rows returns the number of stored rows.
func (s *Store) Rows() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.rows)
}

// AddColumn creates a column and returns its id.
func (s *Store) AddColumn(name string, typ hyena.BlockType) (int64, *hyena.ApiError) {
	if name == "" {
		return hyena.UnassignedColumnID, hyena.NewApiError(hyena.ColumnNameCannotBeEmpty, nil)
	}
	if !typ.Valid() {
		return hyena.UnassignedColumnID, hyena.NewApiError(hyena.CatalogError, fmt.Sprintf("invalid block type %d", uint32(typ)))
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, c := range s.columns {
		if c.Name == name {
			return hyena.UnassignedColumnID, hyena.NewApiError(hyena.ColumnNameAlreadyExists, name)
		}
	}
	id := s.nextID
	s.nextID++
	s.columns = append(s.columns, hyena.Column{ID: id, Name: name, DataType: typ})
	return id, nil
}

func (s *Store) column(id int64) (hyena.Column, bool) {
	i := slices.IndexFunc(s.columns, func(c hyena.Column) bool { return c.ID == id })
	if i < 0 {
		return hyena.Column{}, false
	}
	return s.columns[i], true
}

// Insert appends the rows of req. Either every row is stored or none.
func (s *Store) Insert(req hyena.InsertRequest) (int64, *hyena.ApiError) {
	n := len(req.Timestamps)
	if n == 0 {
		return 0, hyena.NewApiError(hyena.NoData, "insert without timestamps")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	cells := make([]map[int64][]byte, n)
	for i := range cells {
		cells[i] = make(map[int64][]byte)
	}
	for _, cb := range req.Columns {
		col, ok := s.column(cb.ColumnID)
		if !ok || cb.ColumnID == TimestampColumn || cb.ColumnID == SourceColumn {
			return 0, hyena.NewApiError(hyena.InconsistentData, fmt.Sprintf("column %d cannot be inserted", cb.ColumnID))
		}
		if cb.Block == nil || cb.Block.Type() != col.DataType {
			return 0, hyena.NewApiError(hyena.InconsistentData, fmt.Sprintf("column %d expects %s", col.ID, col.DataType))
		}
		if col.DataType.IsDense() && cb.Block.Len() != n {
			return 0, hyena.NewApiError(hyena.InconsistentData,
				fmt.Sprintf("column %d has %d values for %d rows", col.ID, cb.Block.Len(), n))
		}
		values, err := hyena.ColumnValuesOf(cb.Block)
		if err != nil {
			return 0, hyena.NewApiError(hyena.InconsistentData, err.Error())
		}
		it := values.Rows().Iterator()
		for it.HasNext() {
			r := int(it.Next())
			if r >= n {
				return 0, hyena.NewApiError(hyena.InconsistentData,
					fmt.Sprintf("column %d has a value for row %d of %d", col.ID, r, n))
			}
			cells[r][col.ID] = slices.Clone(values.Bytes(r))
		}
	}

	p := s.partition(req.Source)
	for i, ts := range req.Timestamps {
		s.rows = append(s.rows, row{ts: ts, source: req.Source, cells: cells[i]})
		if ts < p.MinTs {
			p.MinTs = ts
		}
		if ts > p.MaxTs {
			p.MaxTs = ts
		}
	}
	return int64(n), nil
}

func (s *Store) partition(source uint32) *hyena.PartitionInfo {
	if p, ok := s.partitions[source]; ok {
		return p
	}
	p := &hyena.PartitionInfo{
		MinTs:    1<<63 - 1,
		MaxTs:    -1 << 63,
		ID:       PartitionID(source),
		Location: fmt.Sprintf("mem://source/%d", source),
	}
	s.partitions[source] = p
	return p
}

// PartitionID returns the id of the partition holding rows of source.
func PartitionID(source uint32) uuid.UUID {
	var key [4]byte
	binary.LittleEndian.PutUint32(key[:], source)
	return uuid.NewSHA1(partitionNamespace, key[:])
}

// cell returns the raw value of column id in r, handling the built-in
// columns.
func (r *row) cell(id int64) ([]byte, bool) {
	switch id {
	case TimestampColumn:
		return binary.LittleEndian.AppendUint64(nil, uint64(r.ts)), true
	case SourceColumn:
		return binary.LittleEndian.AppendUint32(nil, r.source), true
	}
	v, ok := r.cells[id]
	return v, ok
}

// Scan selects rows with MinTs <= ts <= MaxTs in the requested partitions
// (all partitions when none are named) that match the filters, and returns
// the projected columns. Result rows are numbered from zero in insertion
// order.
func (s *Store) Scan(req *hyena.ScanRequest) (*hyena.ScanResult, *hyena.ApiError) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, id := range req.Projection {
		if _, ok := s.column(id); !ok {
			return nil, hyena.NewApiError(hyena.InvalidScanRequest, fmt.Sprintf("unknown projected column %d", id))
		}
	}

	wanted := make(map[uuid.UUID]bool, len(req.PartitionIDs))
	for _, id := range req.PartitionIDs {
		wanted[id] = true
	}
	candidates := roaring.New()
	for i := range s.rows {
		r := &s.rows[i]
		if r.ts < req.MinTs || r.ts > req.MaxTs {
			continue
		}
		if len(wanted) > 0 && !wanted[PartitionID(r.source)] {
			continue
		}
		candidates.Add(uint32(i))
	}

	selected, err := s.applyFilters(candidates, req.Filters)
	if err != nil {
		return nil, err
	}

	res := &hyena.ScanResult{Columns: make(map[int64]hyena.ColumnValues, len(req.Projection))}
	for _, id := range req.Projection {
		col, _ := s.column(id)
		values, cerr := s.project(col, selected)
		if cerr != nil {
			return nil, hyena.NewApiError(hyena.ScanError, cerr.Error())
		}
		res.Columns[id] = values
	}
	return res, nil
}

// project gathers the values of col for the selected rows.
func (s *Store) project(col hyena.Column, selected *roaring.Bitmap) (hyena.ColumnValues, error) {
	var (
		data    []byte
		offsets []byte
		strs    [][]byte
		present int
	)
	out := 0
	it := selected.Iterator()
	for it.HasNext() {
		r := &s.rows[it.Next()]
		v, ok := r.cell(col.ID)
		if ok {
			present++
			if col.DataType.IsString() {
				strs = append(strs, v)
			} else {
				data = append(data, v...)
				offsets = binary.LittleEndian.AppendUint32(offsets, uint32(out))
			}
		}
		out++
	}

	switch {
	case present == 0:
		return hyena.NewEmptyColumn(col.DataType), nil
	case col.DataType.IsString():
		// String replies have no offsets, so a gap would shift every later value.
		if present != out {
			return nil, fmt.Errorf("string column %d has no value in %d of %d selected rows", col.ID, out-present, out)
		}
		return hyena.NewSimpleStringColumn(strs), nil
	case col.DataType.IsSparse():
		return hyena.NewSparseColumn(col.DataType, data, offsets)
	case present == out:
		return hyena.NewDenseColumn(col.DataType, data)
	}
	// Rows inserted before a dense column existed have no value; report the
	// gaps through the sparse layout.
	return hyena.NewSparseColumn(col.DataType.Sparse(), data, offsets)
}
