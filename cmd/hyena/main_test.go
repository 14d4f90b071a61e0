// © Copyright 2025-2026, Query.Farm LLC - https://query.farm
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"path/filepath"
	"strings"
	"testing"

	"github.com/Query-farm/hyena-go/enginetest"
	"github.com/Query-farm/hyena-go/internal/dumpio"
	"github.com/apache/arrow-go/v18/arrow/ipc"
	"github.com/stretchr/testify/require"
)

func startEngine(t *testing.T) *enginetest.Engine {
	t.Helper()
	e, err := enginetest.Start(enginetest.Options{
		Address: "inproc://cli-" + strings.ReplaceAll(t.Name(), "/", "-"),
		Logger:  slog.New(slog.NewTextHandler(io.Discard, nil)),
	})
	require.NoError(t, err)
	t.Cleanup(func() { e.Close() })
	return e
}

// run executes one command line the way main does and returns its output.
func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	t.Setenv("HYENA_SESSION_RECEIVE_DELAY", "0s")
	t.Setenv("HYENA_SESSION_RECEIVE_INTERVAL", "1ms")
	root, a := newRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(io.Discard)
	root.SetArgs(args)
	err := root.Execute()
	a.close()
	return out.String(), err
}

func TestCommandsAgainstEngine(t *testing.T) {
	e := startEngine(t)
	addr := "--address=" + e.Address()

	out, err := run(t, addr, "add-column", "temp", "I32Dense")
	require.NoError(t, err)
	require.Contains(t, out, "added column temp (I32Dense) with id 2")

	_, err = run(t, addr, "add-column", "temp", "I32Dense")
	require.ErrorContains(t, err, "temp")

	out, err = run(t, addr, "columns")
	require.NoError(t, err)
	require.Contains(t, out, "source_id")
	require.Contains(t, out, "temp")

	out, err = run(t, addr, "insert", "--rows", "10", "--source", "3", "--start", "100")
	require.NoError(t, err)
	require.Contains(t, out, "inserted 10 rows into 1 columns")
	require.Equal(t, 10, e.Store().Rows())

	out, err = run(t, addr, "catalog")
	require.NoError(t, err)
	require.Contains(t, out, enginetest.PartitionID(3).String())

	out, err = run(t, addr, "scan", "--project", "temp", "--limit", "4")
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(out, "temp"))
	require.Contains(t, out, "... 6 more rows")

	arrowFile := filepath.Join(t.TempDir(), "scan.arrows")
	out, err = run(t, addr, "scan", "--project", "timestamp,temp", "--arrow-out", arrowFile)
	require.NoError(t, err)
	require.Contains(t, out, "wrote 10 rows")

	r, err := openArrow(t, arrowFile)
	require.NoError(t, err)
	defer r.Release()
	require.True(t, r.Next())
	require.Equal(t, int64(10), r.RecordBatch().NumRows())
	require.Equal(t, 2, int(r.RecordBatch().NumCols()))

	_, err = run(t, addr, "scan", "--filter", "nope = 1")
	require.ErrorContains(t, err, "no column named")
}

func openArrow(t *testing.T, path string) (*ipc.Reader, error) {
	t.Helper()
	data, err := dumpio.Default().ReadFile(context.Background(), path)
	if err != nil {
		return nil, err
	}
	return ipc.NewReader(bytes.NewReader(data))
}

func TestGenVectorsAndParseMsg(t *testing.T) {
	dir := t.TempDir()
	frame := filepath.Join(dir, "insert.bin.zst")

	out, err := run(t, "gen-vectors", "-c", "insert", "-o", frame, "-r", "5", "-s", "2", "-i", "2", "-t", "U16Sparse")
	require.NoError(t, err)
	require.Contains(t, out, "Insert request")

	out, err = run(t, "parse-msg", "--request", frame)
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(out, "Insert {Source:2"))

	_, err = run(t, "gen-vectors", "-c", "insert", "-o", frame)
	require.ErrorContains(t, err, "0 rows")
}

func TestInvalidFlags(t *testing.T) {
	_, err := run(t, "--strings", "fancy", "columns")
	require.ErrorContains(t, err, "string layout")
	_, err = run(t, "--log-level", "loud", "columns")
	require.Error(t, err)
}
