// © Copyright 2025-2026, Query.Farm LLC - https://query.farm
// SPDX-License-Identifier: Apache-2.0

package hyena

import (
	"fmt"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// fakeEngine stands in for the engine behind a pair of fake transports.
// Request envelopes are recorded and, when respond is set, answered
// immediately. A nil reply from respond leaves the request pending.
type fakeEngine struct {
	mu            sync.Mutex
	handshakes    int
	refuse        string
	sendErrs      []error
	requests      []PeerEnvelope
	attempts      int
	keepAlives    int
	goodbyes      int
	answerBeats   bool
	respond       func(Request) Reply
	inbox         chan []byte
	closedPeers   int
	dialedAddress []string
}

func newFakeEngine() *fakeEngine {
	return &fakeEngine{inbox: make(chan []byte, 128), answerBeats: true}
}

func (e *fakeEngine) factory(kind SocketKind) (Transport, error) {
	if kind == SocketReq {
		return &fakeControl{engine: e}, nil
	}
	return &fakePeer{engine: e}, nil
}

func (e *fakeEngine) setRespond(fn func(Request) Reply) {
	e.mu.Lock()
	e.respond = fn
	e.mu.Unlock()
}

// push queues a frame for the client.
func (e *fakeEngine) push(frame []byte) { e.inbox <- frame }

func (e *fakeEngine) reply(id uint64, r Reply) {
	e.push(PeerReply{Type: PeerResponse, MessageID: id, OK: true, Payload: EncodeReply(r)}.Encode())
}

func (e *fakeEngine) snapshot() (handshakes, attempts int, requests []PeerEnvelope) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.handshakes, e.attempts, append([]PeerEnvelope(nil), e.requests...)
}

func (e *fakeEngine) requestCount() int {
	_, _, reqs := e.snapshot()
	return len(reqs)
}

type fakeControl struct {
	engine *fakeEngine
	sent   bool
}

func (c *fakeControl) Dial(addr string) error {
	c.engine.mu.Lock()
	c.engine.dialedAddress = append(c.engine.dialedAddress, addr)
	c.engine.mu.Unlock()
	return nil
}

func (c *fakeControl) Send(frame []byte) error {
	if _, err := DecodeControlRequest(frame); err != nil {
		return err
	}
	c.sent = true
	return nil
}

func (c *fakeControl) Recv(bool) ([]byte, error) {
	if !c.sent {
		return nil, fmt.Errorf("recv before send")
	}
	e := c.engine
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.refuse != "" {
		return ControlReply{Err: e.refuse}.Encode(), nil
	}
	e.handshakes++
	return ControlReply{
		OK:           true,
		ConnectionID: uint64(e.handshakes),
		Address:      fmt.Sprintf("inproc://peer-%d", e.handshakes),
	}.Encode(), nil
}

func (c *fakeControl) SetTimeouts(time.Duration, time.Duration) error { return nil }
func (c *fakeControl) Close() error                                   { return nil }

type fakePeer struct {
	engine *fakeEngine
}

func (p *fakePeer) Dial(string) error { return nil }

func (p *fakePeer) Send(frame []byte) error {
	env, err := DecodePeerEnvelope(frame)
	if err != nil {
		return err
	}
	e := p.engine
	e.mu.Lock()
	if env.Type == PeerKeepAlive {
		e.keepAlives++
		answer := e.answerBeats
		e.mu.Unlock()
		if answer {
			e.push(PeerReply{Type: PeerReplyKeepAlive}.Encode())
		}
		return nil
	}
	if env.Type == PeerCloseConnection {
		e.goodbyes++
		e.mu.Unlock()
		return nil
	}
	e.attempts++
	if len(e.sendErrs) > 0 {
		err := e.sendErrs[0]
		e.sendErrs = e.sendErrs[1:]
		e.mu.Unlock()
		return err
	}
	e.requests = append(e.requests, env)
	respond := e.respond
	e.mu.Unlock()

	if respond != nil {
		req, err := DecodeRequest(env.Payload)
		if err != nil {
			e.push(PeerReply{Type: PeerResponse, MessageID: env.MessageID, Err: err.Error()}.Encode())
			return nil
		}
		if r := respond(req); r != nil {
			e.reply(env.MessageID, r)
		}
	}
	return nil
}

func (p *fakePeer) Recv(block bool) ([]byte, error) {
	if block {
		return <-p.engine.inbox, nil
	}
	select {
	case f := <-p.engine.inbox:
		return f, nil
	default:
		return nil, ErrNoMessage
	}
}

func (p *fakePeer) SetTimeouts(time.Duration, time.Duration) error { return nil }

func (p *fakePeer) Close() error {
	p.engine.mu.Lock()
	p.engine.closedPeers++
	p.engine.mu.Unlock()
	return nil
}

func testConfig(e *fakeEngine) Config {
	cfg := DefaultConfig("inproc://control")
	cfg.Transport = e.factory
	cfg.ReceiveDelay = 0
	cfg.ReceiveInterval = time.Millisecond
	cfg.KeepAliveInterval = time.Hour
	cfg.ReconnectBackoff = 0
	cfg.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	return cfg
}

func openSession(t *testing.T, e *fakeEngine, tweak func(*Config)) *Session {
	t.Helper()
	cfg := testConfig(e)
	if tweak != nil {
		tweak(&cfg)
	}
	s, err := NewSession(cfg)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}
