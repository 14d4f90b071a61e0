// © Copyright 2025-2026, Query.Farm LLC - https://query.farm
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/Query-farm/hyena-go/hyena"
	"github.com/Query-farm/hyena-go/internal/gen"
	"github.com/apache/arrow-go/v18/arrow/ipc"
	"github.com/apache/arrow-go/v18/arrow/memory"
	"github.com/dustin/go-humanize"
	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

func columnsCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "columns",
		Short: "List the engine columns",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			c, err := a.connect()
			if err != nil {
				return err
			}
			cols, err := c.ListColumns(cmd.Context())
			if err != nil {
				return err
			}
			return printColumns(a.out, cols)
		},
	}
}

func catalogCmd(a *app) *cobra.Command {
	var force bool
	cmd := &cobra.Command{
		Use:   "catalog",
		Short: "Show columns and partitions",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			c, err := a.connect()
			if err != nil {
				return err
			}
			cat, err := c.RefreshCatalog(cmd.Context(), force)
			if err != nil {
				return err
			}
			return printCatalog(a.out, cat)
		},
	}
	cmd.Flags().BoolVar(&force, "force", false, "bypass the cached catalog")
	return cmd
}

func addColumnCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "add-column NAME TYPE",
		Short: "Create a column, e.g. add-column temp I32Sparse",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			typ, err := hyena.ParseBlockType(args[1])
			if err != nil {
				return err
			}
			c, err := a.connect()
			if err != nil {
				return err
			}
			id, err := c.AddColumn(cmd.Context(), hyena.Column{Name: args[0], DataType: typ})
			if err != nil {
				return err
			}
			fmt.Fprintf(a.out, "added column %s (%s) with id %d\n", args[0], typ, id)
			return nil
		},
	}
}

func insertCmd(a *app) *cobra.Command {
	var (
		source uint32
		rows   int
		start  int64
		seed   uint64
		only   []string
	)
	cmd := &cobra.Command{
		Use:   "insert",
		Short: "Insert random rows into every user column",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if rows <= 0 {
				return fmt.Errorf("--rows must be positive")
			}
			if source == 0 {
				return fmt.Errorf("--source is required")
			}
			c, err := a.connect()
			if err != nil {
				return err
			}
			cat, err := c.RefreshCatalog(cmd.Context(), false)
			if err != nil {
				return err
			}
			cols := cat.Columns
			if len(only) > 0 {
				cols = cols[:0:0]
				for _, ref := range only {
					col, err := resolveColumn(ref, cat)
					if err != nil {
						return err
					}
					cols = append(cols, col)
				}
			}
			if start == 0 {
				start = time.Now().UnixMicro()
			}
			ts, blocks, err := gen.New(seed).Batch(start, rows, cols)
			if err != nil {
				return err
			}
			began := time.Now()
			n, err := c.Insert(cmd.Context(), source, ts, blocks...)
			if err != nil {
				return err
			}
			fmt.Fprintf(a.out, "inserted %s rows into %d columns in %s\n",
				humanize.Comma(n), len(blocks), time.Since(began).Round(time.Millisecond))
			return nil
		},
	}
	f := cmd.Flags()
	f.Uint32Var(&source, "source", 1, "source id of the rows")
	f.IntVar(&rows, "rows", 1000, "number of rows")
	f.Int64Var(&start, "start", 0, "first timestamp (defaults to now in microseconds)")
	f.Uint64Var(&seed, "seed", 1, "random seed")
	f.StringSliceVar(&only, "columns", nil, "restrict to these columns (names or #id)")
	return cmd
}

func scanCmd(a *app) *cobra.Command {
	var (
		minTs, maxTs int64
		partitions   []string
		project      []string
		filter       string
		limit        int
		arrowOut     string
	)
	cmd := &cobra.Command{
		Use:   "scan",
		Short: "Read columns in a timestamp range",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			c, err := a.connect()
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			cat, err := c.RefreshCatalog(ctx, false)
			if err != nil {
				return err
			}
			req := &hyena.ScanRequest{MinTs: minTs, MaxTs: maxTs}
			for _, p := range partitions {
				id, err := uuid.Parse(p)
				if err != nil {
					return fmt.Errorf("partition %q: %w", p, err)
				}
				req.PartitionIDs = append(req.PartitionIDs, id)
			}
			if len(project) == 0 {
				for _, col := range cat.Columns {
					req.Projection = append(req.Projection, col.ID)
				}
			} else if req.Projection, err = resolveProjection(project, cat); err != nil {
				return err
			}
			if req.Filters, err = parseFilters(filter, cat); err != nil {
				return err
			}

			res, err := c.Scan(ctx, req)
			if err != nil {
				return err
			}
			if arrowOut != "" {
				return a.writeArrow(ctx, arrowOut, res, cat)
			}
			return printResult(a.out, res, cat, limit)
		},
	}
	f := cmd.Flags()
	f.Int64Var(&minTs, "min-ts", 0, "lowest timestamp, inclusive")
	f.Int64Var(&maxTs, "max-ts", math.MaxInt64, "highest timestamp, inclusive")
	f.StringSliceVar(&partitions, "partition", nil, "partition ids to scan (default all)")
	f.StringSliceVar(&project, "project", nil, "columns to return, names or #id (default all)")
	f.StringVar(&filter, "filter", "", `row filter, e.g. "temp > 10 && host startswith web"`)
	f.IntVar(&limit, "limit", 50, "maximum rows to print")
	f.StringVar(&arrowOut, "arrow-out", "", "write the result as an Arrow IPC stream to this location")
	return cmd
}

// writeArrow stores res as a zstd-compressed Arrow IPC stream.
func (a *app) writeArrow(ctx context.Context, uri string, res *hyena.ScanResult, cat *hyena.Catalog) error {
	rec, err := res.ToRecordBatch(memory.DefaultAllocator, cat)
	if err != nil {
		return err
	}
	defer rec.Release()

	out, err := a.files.Create(ctx, uri)
	if err != nil {
		return err
	}
	w := ipc.NewWriter(out, ipc.WithSchema(rec.Schema()), ipc.WithZstd())
	if err := w.Write(rec); err != nil {
		w.Close()
		out.Close()
		return err
	}
	if err := w.Close(); err != nil {
		out.Close()
		return err
	}
	if err := out.Close(); err != nil {
		return err
	}
	fmt.Fprintf(a.out, "wrote %s rows to %s\n", humanize.Comma(rec.NumRows()), uri)
	return nil
}
