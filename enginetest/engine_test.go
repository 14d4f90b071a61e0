// © Copyright 2025-2026, Query.Farm LLC - https://query.farm
// SPDX-License-Identifier: Apache-2.0

package enginetest

import (
	"context"
	"io"
	"log/slog"
	"math"
	"strings"
	"testing"
	"time"

	"github.com/Query-farm/hyena-go/hyena"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

var quiet = slog.New(slog.NewTextHandler(io.Discard, nil))

func startEngine(t *testing.T, mutate func(*Options)) *Engine {
	t.Helper()
	opts := Options{
		Address: "inproc://" + strings.ReplaceAll(t.Name(), "/", "-"),
		Logger:  quiet,
	}
	if mutate != nil {
		mutate(&opts)
	}
	e, err := Start(opts)
	require.NoError(t, err)
	t.Cleanup(func() { e.Close() })
	return e
}

func connect(t *testing.T, e *Engine, mutate func(*hyena.Config)) *hyena.Client {
	t.Helper()
	cfg := hyena.DefaultConfig(e.Address())
	cfg.SendTimeout = 2 * time.Second
	cfg.RecvTimeout = 2 * time.Second
	cfg.ReceiveDelay = 0
	cfg.ReceiveInterval = time.Millisecond
	cfg.KeepAliveInterval = time.Hour
	cfg.ReconnectBackoff = 0
	cfg.Logger = quiet
	if mutate != nil {
		mutate(&cfg)
	}
	c, err := hyena.Connect(cfg)
	require.NoError(t, err)
	t.Cleanup(func() { c.Close() })
	return c
}

func TestDefaultPeerAddress(t *testing.T) {
	require.Equal(t, "tcp://127.0.0.1:4569", DefaultPeerAddress("tcp://127.0.0.1:4567", 2))
	require.Equal(t, "inproc://engine.peer-1", DefaultPeerAddress("inproc://engine", 1))
	require.Equal(t, "ipc:///tmp/h.sock.peer-3", DefaultPeerAddress("ipc:///tmp/h.sock", 3))
}

func TestEngineRoundTrip(t *testing.T) {
	e := startEngine(t, nil)
	c := connect(t, e, nil)
	ctx := context.Background()

	require.Equal(t, uint64(1), c.Session().ConnectionID())

	cols, err := c.ListColumns(ctx)
	require.NoError(t, err)
	require.Len(t, cols, 2)

	id, err := c.AddColumn(ctx, hyena.Column{Name: "reading", DataType: hyena.U16Dense})
	require.NoError(t, err)
	_, err = c.AddColumn(ctx, hyena.Column{Name: "reading", DataType: hyena.U16Dense})
	require.ErrorIs(t, err, hyena.ErrApi)

	block, err := hyena.NewDenseBlock[uint16](hyena.U16Dense, 7, 8, 9)
	require.NoError(t, err)
	n, err := c.Insert(ctx, 5, []int64{100, 200, 300}, hyena.ColumnBlock{ColumnID: id, Block: block})
	require.NoError(t, err)
	require.Equal(t, int64(3), n)

	cat, err := c.RefreshCatalog(ctx, true)
	require.NoError(t, err)
	require.Len(t, cat.Columns, 3)
	require.Len(t, cat.Partitions, 1)

	fb, err := c.FilterBuilder(ctx)
	require.NoError(t, err)
	f, err := fb.ColumnNamed("reading").Op(hyena.Gt).Value(7).Build()
	require.NoError(t, err)

	res, err := c.Scan(ctx, &hyena.ScanRequest{
		MinTs:        0,
		MaxTs:        math.MaxInt64,
		PartitionIDs: []uuid.UUID{cat.Partitions[0].ID},
		Filters:      hyena.OrFilters{{f}},
		Projection:   []int64{TimestampColumn, id},
	})
	require.NoError(t, err)
	require.Equal(t, 2, res.RowCount())
	require.Equal(t, uint64(9), res.Columns[id].Uint64(1))
	require.Equal(t, int64(200), res.Columns[TimestampColumn].Int64(0))
}

func TestEngineStringLayouts(t *testing.T) {
	for _, layout := range []hyena.StringLayout{hyena.StringsSimple, hyena.StringsMeta} {
		t.Run(layout.String(), func(t *testing.T) {
			e := startEngine(t, func(o *Options) { o.Strings = layout })
			c := connect(t, e, func(cfg *hyena.Config) { cfg.Strings = layout })
			ctx := context.Background()

			id, err := c.AddColumn(ctx, hyena.Column{Name: "msg", DataType: hyena.StringDense})
			require.NoError(t, err)
			_, err = c.Insert(ctx, 1, []int64{1, 2}, hyena.ColumnBlock{ColumnID: id, Block: hyena.NewStringBlock("hello", "")})
			require.NoError(t, err)

			res, err := c.Scan(ctx, &hyena.ScanRequest{MaxTs: 10, Projection: []int64{id}})
			require.NoError(t, err)
			col := res.Columns[id].(*hyena.StringColumn)
			require.Equal(t, layout, col.Layout())
			require.Equal(t, "hello", col.String(0))
			require.Equal(t, "", col.String(1))
		})
	}
}

func TestEngineOutOfOrderReplies(t *testing.T) {
	e := startEngine(t, func(o *Options) {
		o.ReplyDelay = func(req hyena.Request) time.Duration {
			if req.Kind() == hyena.KindListColumns {
				return 100 * time.Millisecond
			}
			return 0
		}
	})
	c := connect(t, e, nil)
	ctx := context.Background()

	type done struct {
		kind hyena.Kind
		err  error
	}
	finished := make(chan done, 2)
	go func() {
		_, err := c.ListColumns(ctx)
		finished <- done{hyena.KindListColumns, err}
	}()
	require.Eventually(t, func() bool { return e.Requests() == 1 }, time.Second, time.Millisecond)
	go func() {
		_, err := c.RefreshCatalog(ctx, true)
		finished <- done{hyena.KindRefreshCatalog, err}
	}()

	first, second := <-finished, <-finished
	require.NoError(t, first.err)
	require.NoError(t, second.err)
	require.Equal(t, hyena.KindRefreshCatalog, first.kind)
	require.Equal(t, hyena.KindListColumns, second.kind)
}

func TestEngineKeepAliveMissReconnects(t *testing.T) {
	e := startEngine(t, nil)
	e.SetDropKeepAlives(true)
	m := hyena.NewMetrics(prometheus.NewRegistry())
	c := connect(t, e, func(cfg *hyena.Config) {
		cfg.KeepAliveInterval = 20 * time.Millisecond
		cfg.Metrics = m
	})

	require.Eventually(t, func() bool { return e.Handshakes() >= 2 }, 3*time.Second, 5*time.Millisecond)
	e.SetDropKeepAlives(false)
	require.GreaterOrEqual(t, testutil.ToFloat64(m.KeepAliveMisses), float64(1))

	// A replacement connection serves requests once heartbeats flow again.
	require.Eventually(t, func() bool {
		ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
		defer cancel()
		_, err := c.ListColumns(ctx)
		return err == nil
	}, 3*time.Second, 10*time.Millisecond)
}

func TestEngineCloseConnection(t *testing.T) {
	e := startEngine(t, nil)
	c := connect(t, e, nil)
	require.Equal(t, 1, e.Connections())
	require.NoError(t, c.Close())
	require.Eventually(t, func() bool { return e.Connections() == 0 }, time.Second, 5*time.Millisecond)
}
