// © Copyright 2025-2026, Query.Farm LLC - https://query.farm
// SPDX-License-Identifier: Apache-2.0

// Package enginetest provides an in-memory engine that speaks the hyena
// protocol over nanomsg sockets. It backs the integration tests of the
// client, the examples, and the hyena-fake-engine binary.
//
// The engine keeps columns and rows in memory, answers every request kind
// the client sends, and exposes knobs to misbehave: dropping keep-alives,
// delaying replies, and answering requests out of order.
package enginetest
