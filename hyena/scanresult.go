// © Copyright 2025-2026, Query.Farm LLC - https://query.farm
// SPDX-License-Identifier: Apache-2.0

package hyena

import (
	"fmt"
	"slices"
	"strings"
)

// ScanResult maps column ids to decoded column views. Columns for which the
// engine had no data are *EmptyColumn values.
type ScanResult struct {
	Columns map[int64]ColumnValues
}

// Column returns the view for column id.
func (s *ScanResult) Column(id int64) (ColumnValues, bool) {
	if s == nil {
		return nil, false
	}
	c, ok := s.Columns[id]
	return c, ok
}

// ColumnIDs returns the column ids in ascending order.
func (s *ScanResult) ColumnIDs() []int64 {
	ids := make([]int64, 0, len(s.Columns))
	for id := range s.Columns {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}

// RowCount returns one past the highest row holding a value in any column.
func (s *ScanResult) RowCount() int {
	rows := 0
	for _, c := range s.Columns {
		var n int
		switch col := c.(type) {
		case *SparseColumn:
			if col.Len() > 0 {
				n = int(col.Offset(col.Len()-1)) + 1
			}
		default:
			n = c.Len()
		}
		rows = max(rows, n)
	}
	return rows
}

func (s *ScanResult) String() string {
	parts := make([]string, 0, len(s.Columns))
	for _, id := range s.ColumnIDs() {
		c := s.Columns[id]
		parts = append(parts, fmt.Sprintf("{id=%d, type=%s, block=%d}", id, c.Type(), c.Len()))
	}
	return fmt.Sprintf("data=[%s]", strings.Join(parts, ", "))
}
