// © Copyright 2025-2026, Query.Farm LLC - https://query.farm
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"errors"
	"fmt"
	"math/big"
	"strings"

	"github.com/Query-farm/hyena-go/hyena"
	"github.com/Query-farm/hyena-go/internal/gen"
	"github.com/dustin/go-humanize"
	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

// vectorOptions describe one request frame to generate.
type vectorOptions struct {
	command       string
	columnName    string
	columnType    string
	rows          int
	source        uint32
	ids           []int64
	types         []string
	minTs, maxTs  int64
	randPartition bool
	seed          uint64

	filterColumns []int64
	filterTypes   []string
	filterOps     []string
	filterValues  []string
}

func (o *vectorOptions) blockTypes() ([]hyena.BlockType, error) {
	out := make([]hyena.BlockType, len(o.types))
	for i, name := range o.types {
		t, err := hyena.ParseBlockType(name)
		if err != nil {
			return nil, err
		}
		out[i] = t
	}
	return out, nil
}

func (o *vectorOptions) filters() (hyena.OrFilters, error) {
	n := len(o.filterColumns)
	if len(o.filterTypes) != n || len(o.filterOps) != n || len(o.filterValues) != n {
		return nil, errors.New("--filter-column, --filter-type, --filter-op and --filter-value must be given the same number of times")
	}
	if n == 0 {
		return nil, nil
	}
	and := make(hyena.AndFilters, 0, n)
	for i := range n {
		ft, err := hyena.ParseFilterType(o.filterTypes[i])
		if err != nil {
			return nil, err
		}
		op, err := hyena.ParseScanComparison(o.filterOps[i])
		if err != nil {
			return nil, err
		}
		b := hyena.NewTypedFilterBuilder(ft).Column(o.filterColumns[i]).Op(op)
		if ft == hyena.FilterString {
			b.Value(o.filterValues[i])
		} else {
			v, ok := new(big.Int).SetString(o.filterValues[i], 0)
			if !ok {
				return nil, fmt.Errorf("filter value %q is not an integer", o.filterValues[i])
			}
			b.Value(v)
		}
		f, err := b.Build()
		if err != nil {
			return nil, err
		}
		and = append(and, f)
	}
	return hyena.OrFilters{and}, nil
}

// request builds the request named by o.command.
func (o *vectorOptions) request() (hyena.Request, error) {
	switch strings.ToLower(o.command) {
	case "columns":
		return hyena.ListColumnsRequest{}, nil
	case "catalog":
		return hyena.RefreshCatalogRequest{}, nil
	case "addcolumn":
		if o.columnName == "" || o.columnType == "" {
			return nil, errors.New("addcolumn needs --column-name and --column-type")
		}
		t, err := hyena.ParseBlockType(o.columnType)
		if err != nil {
			return nil, err
		}
		return hyena.AddColumnRequest{Name: o.columnName, Type: t}, nil
	case "insert":
		switch {
		case o.rows <= 0:
			return nil, errors.New("cannot insert 0 rows")
		case o.source == 0:
			return nil, errors.New("insert needs --source")
		case len(o.ids) == 0 || len(o.ids) != len(o.types):
			return nil, errors.New("insert needs matching --id and --type lists")
		}
		types, err := o.blockTypes()
		if err != nil {
			return nil, err
		}
		g := gen.New(o.seed)
		req := hyena.InsertRequest{Source: o.source, Timestamps: g.Timestamps(o.minTs, o.rows)}
		for i, id := range o.ids {
			b, err := g.Block(types[i], o.rows)
			if err != nil {
				return nil, err
			}
			req.Columns = append(req.Columns, hyena.ColumnBlock{ColumnID: id, Block: b})
		}
		return req, nil
	case "scan":
		filters, err := o.filters()
		if err != nil {
			return nil, err
		}
		req := &hyena.ScanRequest{MinTs: o.minTs, MaxTs: o.maxTs, Filters: filters, Projection: o.ids}
		if o.randPartition {
			req.PartitionIDs = []uuid.UUID{uuid.New()}
		}
		return req, nil
	}
	return nil, fmt.Errorf("unknown command %q (want columns, catalog, addcolumn, insert or scan)", o.command)
}

func genVectorsCmd(a *app) *cobra.Command {
	o := &vectorOptions{}
	var output string
	cmd := &cobra.Command{
		Use:   "gen-vectors",
		Short: "Write an encoded request frame to a file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			req, err := o.request()
			if err != nil {
				return err
			}
			frame, err := hyena.EncodeRequest(req)
			if err != nil {
				return err
			}
			if err := a.files.WriteFile(cmd.Context(), output, frame); err != nil {
				return err
			}
			fmt.Fprintf(a.out, "wrote %s %s request to %s\n", humanize.Bytes(uint64(len(frame))), req.Kind(), output)
			return nil
		},
	}
	f := cmd.Flags()
	f.StringVarP(&o.command, "command", "c", "", "columns, catalog, addcolumn, insert or scan")
	f.StringVarP(&output, "output", "o", "", "output location; a .zst suffix compresses")
	f.StringVarP(&o.columnName, "column-name", "n", "", "column name for addcolumn")
	f.StringVar(&o.columnType, "column-type", "", "column type for addcolumn")
	f.IntVarP(&o.rows, "rows", "r", 0, "rows to insert")
	f.Uint32VarP(&o.source, "source", "s", 0, "source id for insert")
	f.Int64SliceVarP(&o.ids, "id", "i", nil, "column ids (insert data columns or scan projection)")
	f.StringSliceVarP(&o.types, "type", "t", nil, "block types matching --id for insert")
	f.Int64VarP(&o.minTs, "min-ts", "m", 0, "lower timestamp bound, or first insert timestamp")
	f.Int64VarP(&o.maxTs, "max-ts", "x", 0, "upper timestamp bound")
	f.BoolVarP(&o.randPartition, "uuid", "u", false, "scan a random partition id")
	f.Uint64Var(&o.seed, "seed", 1, "random seed for insert data")
	f.Int64SliceVarP(&o.filterColumns, "filter-column", "l", nil, "filter column id")
	f.StringSliceVarP(&o.filterTypes, "filter-type", "f", nil, "filter type, e.g. U64 or String")
	f.StringSliceVarP(&o.filterOps, "filter-op", "p", nil, "filter operator, e.g. GtEq")
	f.StringArrayVarP(&o.filterValues, "filter-value", "v", nil, "filter value")
	_ = cmd.MarkFlagRequired("command")
	_ = cmd.MarkFlagRequired("output")
	return cmd
}

// describeReply summarizes a decoded reply on one line.
func describeReply(r hyena.Reply) string {
	switch r := r.(type) {
	case *hyena.ListColumnsReply:
		return fmt.Sprintf("ListColumnsReply(columns=%v)", r.Columns)
	case *hyena.CatalogReply:
		return fmt.Sprintf("CatalogReply(columns=%v, partitions=#%d)", r.Catalog.Columns, len(r.Catalog.Partitions))
	case *hyena.AddColumnReply:
		if r.Err != nil {
			return fmt.Sprintf("AddColumnReply(error=%q)", r.Err.Error())
		}
		return fmt.Sprintf("AddColumnReply(id=%d)", r.ID)
	case *hyena.InsertReply:
		if r.Err != nil {
			return fmt.Sprintf("InsertReply(error=%q)", r.Err.Error())
		}
		return fmt.Sprintf("InsertReply(num=%d)", r.Count)
	case *hyena.ScanReply:
		if r.Err != nil {
			return fmt.Sprintf("ScanReply(error=%q)", r.Err.Error())
		}
		if r.Result == nil {
			return "ScanReply(data=[])"
		}
		return "ScanReply(" + r.Result.String() + ")"
	case *hyena.SerializeErrorReply:
		return fmt.Sprintf("SerializeErrorReply(%q)", r.Message)
	}
	return fmt.Sprintf("%T", r)
}

// describeFrame decodes a dumped peer reply frame, or a bare request frame
// when request is set.
func describeFrame(frame []byte, request bool, codec hyena.Codec) (string, error) {
	if request {
		req, err := hyena.DecodeRequest(frame)
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("%s %+v", req.Kind(), req), nil
	}
	p, err := hyena.DecodePeerReply(frame)
	if err != nil {
		return "", err
	}
	if p.Type == hyena.PeerReplyKeepAlive {
		return "KeepAliveReply", nil
	}
	if !p.OK {
		return fmt.Sprintf("ResponseReplyError(id=%d, message=%q)", p.MessageID, p.Err), nil
	}
	reply, err := codec.DecodeReply(p.Payload)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("Response(id=%d) %s", p.MessageID, describeReply(reply)), nil
}

func parseMsgCmd(a *app) *cobra.Command {
	var request bool
	cmd := &cobra.Command{
		Use:   "parse-msg LOCATION",
		Short: "Decode a dumped peer reply (or request) frame",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			frame, err := a.files.ReadFile(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			text, err := describeFrame(frame, request, hyena.Codec{Strings: a.settings.Client.Strings})
			if err != nil {
				return err
			}
			fmt.Fprintf(a.out, "%s (%s)\n", text, humanize.Bytes(uint64(len(frame))))
			return nil
		},
	}
	cmd.Flags().BoolVar(&request, "request", false, "the frame is a request, not a peer reply")
	return cmd
}
