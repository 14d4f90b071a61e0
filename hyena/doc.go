// © Copyright 2025-2026, Query.Farm LLC - https://query.farm
// SPDX-License-Identifier: Apache-2.0

// Package hyena is a client for the Hyena columnar engine, which speaks a
// private little-endian binary protocol over nanomsg sockets.
//
// # Connecting
//
// A session starts with a control handshake: a request/reply socket asks
// the engine for a dedicated peer address, then all traffic moves to a pair
// socket dialed at that address. Every request is wrapped in an envelope
// carrying a random 64-bit message id, so many goroutines can share one
// session and replies may arrive in any order.
//
//	c, err := hyena.Connect(hyena.DefaultConfig("tcp://localhost:4567"))
//	if err != nil {
//		return err
//	}
//	defer c.Close()
//	cols, err := c.ListColumns(ctx)
//
// A background goroutine polls the peer socket and a second one sends
// heartbeats. A send that hits its deadline, or a heartbeat left
// unanswered, makes the session handshake again and carry on. Requests
// already in flight at that moment stay pending until their reply arrives,
// their context is cancelled, or the session is closed.
//
// # Data model
//
// Column data is typed by [BlockType]: five integer widths, signed or
// unsigned, dense or sparse, plus dense strings. Inserts carry [Block]
// values ([DenseBlock], [SparseBlock], [StringBlock]); scans return
// [ColumnValues] views that alias the received frame instead of copying
// it. Sparse views expose a forward-only cursor for ascending access and
// [SparseColumn.Lookup] for random access.
//
// # Scans
//
// A [ScanRequest] selects a time range, an optional set of partitions, a
// projection and filters in disjunctive normal form. [FilterBuilder]
// derives each filter's wire type from the catalog and range-checks the
// operand.
//
// # Errors
//
// Engine-side failures are *[ApiError]; malformed frames are
// *[DeserializationError]; a reply of the wrong kind, or a serialization
// failure reported by the engine, is *[ReplyError]. The sentinels [ErrApi]
// and [ErrDeserialization] match with errors.Is.
package hyena
