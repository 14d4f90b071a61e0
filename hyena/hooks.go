// © Copyright 2025-2026, Query.Farm LLC - https://query.farm
// SPDX-License-Identifier: Apache-2.0

package hyena

import "context"

// RequestHook provides observability callpoints around each engine request.
// Implementations must be safe for concurrent use.
type RequestHook interface {
	OnRequestStart(ctx context.Context, info RequestInfo) (context.Context, HookToken)
	OnRequestEnd(ctx context.Context, token HookToken, info RequestInfo, stats *RequestStatistics, err error)
}

// HookToken is an opaque value returned by OnRequestStart and passed back to
// OnRequestEnd. Only meaningful to the RequestHook that created it.
type HookToken interface{}

// RequestInfo describes a request passed to hooks.
type RequestInfo struct {
	Kind      Kind   // request kind
	MessageID uint64 // correlation id of the peer envelope
	Address   string // control address of the engine
}

// RequestStatistics holds per-request I/O counters.
type RequestStatistics struct {
	RequestBytes int64
	ReplyBytes   int64
	// Resends counts sends repeated after a timeout and reconnect.
	Resends int64
}

// hookChain fans calls out to several hooks.
type hookChain []RequestHook

type chainToken []HookToken

func (c hookChain) OnRequestStart(ctx context.Context, info RequestInfo) (context.Context, HookToken) {
	tokens := make(chainToken, len(c))
	for i, h := range c {
		ctx, tokens[i] = h.OnRequestStart(ctx, info)
	}
	return ctx, tokens
}

func (c hookChain) OnRequestEnd(ctx context.Context, token HookToken, info RequestInfo, stats *RequestStatistics, err error) {
	tokens, _ := token.(chainToken)
	for i := len(c) - 1; i >= 0; i-- {
		var t HookToken
		if i < len(tokens) {
			t = tokens[i]
		}
		c[i].OnRequestEnd(ctx, t, info, stats, err)
	}
}
