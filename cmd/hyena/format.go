// © Copyright 2025-2026, Query.Farm LLC - https://query.farm
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"encoding/binary"
	"fmt"
	"io"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/Query-farm/hyena-go/hyena"
	"github.com/dustin/go-humanize"
)

const nullCell = "NULL"

func formatCell(c hyena.ColumnValues, row int) string {
	if c.IsNull(row) {
		return nullCell
	}
	typ := c.Type()
	switch {
	case typ.IsString():
		return string(c.Bytes(row))
	case typ.Width() == 16:
		b := c.Bytes(row)
		lo, hi := binary.LittleEndian.Uint64(b), binary.LittleEndian.Uint64(b[8:])
		if typ.IsSigned() {
			return hyena.Int128{Hi: int64(hi), Lo: lo}.String()
		}
		return hyena.Uint128{Hi: hi, Lo: lo}.String()
	case typ.IsSigned():
		return strconv.FormatInt(c.Int64(row), 10)
	}
	return strconv.FormatUint(c.Uint64(row), 10)
}

func printColumns(w io.Writer, cols []hyena.Column) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tNAME\tTYPE")
	for _, c := range cols {
		fmt.Fprintf(tw, "%d\t%s\t%s\n", c.ID, c.Name, c.DataType)
	}
	return tw.Flush()
}

func printCatalog(w io.Writer, cat *hyena.Catalog) error {
	if err := printColumns(w, cat.Columns); err != nil {
		return err
	}
	fmt.Fprintln(w)
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "PARTITION\tMIN_TS\tMAX_TS\tLOCATION")
	for _, p := range cat.Partitions {
		fmt.Fprintf(tw, "%s\t%d\t%d\t%s\n", p.ID, p.MinTs, p.MaxTs, p.Location)
	}
	return tw.Flush()
}

// printResult writes up to limit rows of res as a table. Column headers use
// catalog names when known.
func printResult(w io.Writer, res *hyena.ScanResult, cat *hyena.Catalog, limit int) error {
	ids := res.ColumnIDs()
	rows := res.RowCount()
	headers := make([]string, len(ids))
	for i, id := range ids {
		headers[i] = "#" + strconv.FormatInt(id, 10)
		if col, ok := cat.Column(id); ok {
			headers[i] = col.Name
		}
		res.Columns[id].Reset()
	}

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, strings.Join(headers, "\t"))
	shown := min(rows, limit)
	cells := make([]string, len(ids))
	for row := range shown {
		for i, id := range ids {
			cells[i] = formatCell(res.Columns[id], row)
		}
		fmt.Fprintln(tw, strings.Join(cells, "\t"))
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	if shown < rows {
		fmt.Fprintf(w, "... %s more rows\n", humanize.Comma(int64(rows-shown)))
	}
	return nil
}
