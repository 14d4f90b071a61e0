// © Copyright 2025-2026, Query.Farm LLC - https://query.farm
// SPDX-License-Identifier: Apache-2.0

package hyena

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"
)

// Session multiplexes concurrent requests over one peer connection. Replies
// are matched to callers by message id, so requests may complete in any
// order. Two background goroutines poll for replies and send heartbeats.
//
// A Session is safe for concurrent use.
type Session struct {
	cfg     Config
	log     *slog.Logger
	codec   Codec
	metrics *Metrics
	limiter *rate.Limiter
	newID   func() uint64

	// mu guards conn; every socket operation happens under it.
	mu   sync.Mutex
	conn *conn

	pending sync.Map // uint64 -> *pendingCall
	alive   atomic.Bool
	closed  atomic.Bool

	// hooks is replaced copy-on-write, so Do never sees a chain being built.
	hooks atomic.Pointer[hookChain]

	cancel    context.CancelFunc
	group     *errgroup.Group
	closeOnce sync.Once
	closeErr  error
}

type pendingCall struct {
	done chan callResult
}

type callResult struct {
	reply Reply
	size  int
	err   error
}

// NewSession validates cfg, performs the handshake with the engine and
// starts the receive and keep-alive loops.
func NewSession(cfg Config) (*Session, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	s := &Session{
		cfg:     cfg,
		codec:   Codec{Strings: cfg.Strings},
		metrics: cfg.Metrics,
		newID:   randomMessageID,
		log:     cfg.logger().With("component", "hyena.session", "address", cfg.Address),
	}
	s.limiter = rate.NewLimiter(rate.Inf, 1)
	if cfg.ReconnectBackoff > 0 {
		s.limiter = rate.NewLimiter(rate.Every(cfg.ReconnectBackoff), 1)
	}
	s.conn = &conn{
		factory:     cfg.transport(),
		address:     cfg.Address,
		sendTimeout: cfg.SendTimeout,
		recvTimeout: cfg.RecvTimeout,
		log:         s.log,
	}
	if err := s.conn.handshake(); err != nil {
		return nil, err
	}

	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	s.group, ctx = errgroup.WithContext(ctx)
	s.group.Go(func() error { return s.receiveLoop(ctx) })
	s.group.Go(func() error { return s.keepAliveLoop(ctx) })
	return s, nil
}

// randomMessageID returns the low 64 bits of a random UUID.
func randomMessageID() uint64 {
	_, lo := UUIDBits(uuid.New())
	return lo
}

// SetRequestHook replaces any installed hooks with h. Passing nil removes
// them. Requests already in flight finish with the hooks they started with.
func (s *Session) SetRequestHook(h RequestHook) {
	if h == nil {
		s.hooks.Store(nil)
		return
	}
	s.hooks.Store(&hookChain{h})
}

// AddRequestHook appends a hook after any already installed. It is safe to
// call while requests are running.
func (s *Session) AddRequestHook(h RequestHook) {
	if h == nil {
		return
	}
	for {
		cur := s.hooks.Load()
		var next hookChain
		if cur != nil {
			next = append(next, *cur...)
		}
		next = append(next, h)
		if s.hooks.CompareAndSwap(cur, &next) {
			return
		}
	}
}

func (s *Session) requestHook() RequestHook {
	c := s.hooks.Load()
	switch {
	case c == nil:
		return nil
	case len(*c) == 1:
		return (*c)[0]
	}
	return *c
}

// ConnectionID returns the id the engine assigned to the current peer
// connection.
func (s *Session) ConnectionID() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.conn.id
}

// Do sends req and waits for its reply. Cancelling ctx abandons the wait;
// a reply that arrives afterwards is dropped.
func (s *Session) Do(ctx context.Context, req Request) (Reply, error) {
	if s.closed.Load() {
		return nil, ErrSessionClosed
	}
	payload, err := EncodeRequest(req)
	if err != nil {
		return nil, err
	}

	id := s.newID()
	info := RequestInfo{Kind: req.Kind(), MessageID: id, Address: s.cfg.Address}
	stats := &RequestStatistics{RequestBytes: int64(len(payload))}
	hook := s.requestHook()
	var token HookToken
	if hook != nil {
		ctx, token = hook.OnRequestStart(ctx, info)
	}
	start := time.Now()

	reply, err := s.roundTrip(ctx, id, payload, stats)

	s.metrics.request(req.Kind(), err, time.Since(start).Seconds())
	if hook != nil {
		hook.OnRequestEnd(ctx, token, info, stats, err)
	}
	return reply, err
}

func (s *Session) roundTrip(ctx context.Context, id uint64, payload []byte, stats *RequestStatistics) (Reply, error) {
	call := &pendingCall{done: make(chan callResult, 1)}
	s.pending.Store(id, call)
	s.metrics.pending(1)
	defer s.metrics.pending(-1)

	// Close may have swept the map before the Store above.
	if s.closed.Load() {
		s.pending.Delete(id)
		return nil, ErrSessionClosed
	}

	frame := PeerEnvelope{Type: PeerRequest, MessageID: id, Payload: payload}.Encode()
	resends, err := s.send(ctx, frame)
	stats.Resends = int64(resends)
	if err != nil {
		s.pending.Delete(id)
		return nil, err
	}

	select {
	case res := <-call.done:
		stats.ReplyBytes = int64(res.size)
		return res.reply, res.err
	case <-ctx.Done():
		s.pending.Delete(id)
		return nil, ctx.Err()
	}
}

// send transmits frame, reconnecting and resending after each send
// timeout up to the configured retry bound. It returns the number of
// resends.
func (s *Session) send(ctx context.Context, frame []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	err := s.conn.send(frame)
	resends := 0
	for IsTimeout(err) && resends < s.cfg.SendRetries {
		s.log.Warn("send timed out, reconnecting", "err", err, "attempt", resends+1)
		if rerr := s.reconnectLocked(ctx, reconnectSendTimeout); rerr != nil {
			return resends, fmt.Errorf("hyena: reconnect after send timeout: %w", rerr)
		}
		resends++
		err = s.conn.send(frame)
	}
	return resends, err
}

// reconnectLocked replaces the peer connection. s.mu must be held.
func (s *Session) reconnectLocked(ctx context.Context, reason string) error {
	if err := s.limiter.Wait(ctx); err != nil {
		return err
	}
	s.metrics.reconnect(reason)
	if err := s.conn.reconnect(); err != nil {
		return err
	}
	s.log.Info("reconnected", "reason", reason, "connection_id", s.conn.id)
	return nil
}

func (s *Session) receiveLoop(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return nil
	case <-time.After(s.cfg.ReceiveDelay):
	}
	ticker := time.NewTicker(s.cfg.ReceiveInterval)
	defer ticker.Stop()
	for {
		s.drain()
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}

// drain handles every frame queued on the peer socket.
func (s *Session) drain() {
	for {
		s.mu.Lock()
		frame, err := s.conn.poll()
		s.mu.Unlock()
		if errors.Is(err, ErrNoMessage) {
			return
		}
		if err != nil {
			s.log.Debug("receive failed", "err", err)
			return
		}
		s.handleFrame(frame)
	}
}

func (s *Session) handleFrame(frame []byte) {
	msg, err := DecodePeerReply(frame)
	if err != nil {
		s.log.Error("dropping malformed peer frame", "err", err, "bytes", len(frame))
		return
	}
	if msg.Type == PeerReplyKeepAlive {
		s.alive.Store(true)
		return
	}

	v, ok := s.pending.LoadAndDelete(msg.MessageID)
	if !ok {
		s.metrics.unmatched()
		s.log.Warn("reply for unknown message id", "message_id", msg.MessageID)
		return
	}
	call := v.(*pendingCall)

	res := callResult{size: len(msg.Payload)}
	if msg.OK {
		res.reply, res.err = s.codec.DecodeReply(msg.Payload)
	} else {
		res.err = &PeerError{MessageID: msg.MessageID, Message: msg.Err}
	}
	call.done <- res
}

func (s *Session) keepAliveLoop(ctx context.Context) error {
	beat := PeerEnvelope{Type: PeerKeepAlive}.Encode()
	ticker := time.NewTicker(s.cfg.KeepAliveInterval)
	defer ticker.Stop()
	sent := false
	for {
		s.heartbeat(ctx, beat, sent)
		sent = true
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}

// heartbeat reconnects if the previous beat went unanswered, then sends a
// new one.
func (s *Session) heartbeat(ctx context.Context, beat []byte, previousSent bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if previousSent && !s.alive.Load() {
		s.metrics.keepAliveMiss()
		s.log.Warn("keep-alive unanswered, reconnecting")
		if err := s.reconnectLocked(ctx, reconnectKeepAliveMiss); err != nil {
			if ctx.Err() == nil {
				s.log.Error("reconnect after missed keep-alive failed", "err", err)
			}
			return
		}
	}
	s.alive.Store(false)
	if err := s.conn.send(beat); err != nil {
		s.log.Debug("keep-alive send failed", "err", err)
	}
}

// Close stops the background loops, closes the peer socket and fails every
// request still waiting with ErrSessionClosed. It is safe to call more than
// once.
func (s *Session) Close() error {
	s.closeOnce.Do(func() {
		s.closed.Store(true)
		s.cancel()
		if err := s.group.Wait(); err != nil {
			s.log.Error("session loop error", "err", err)
		}

		s.mu.Lock()
		s.closeErr = s.conn.shutdown()
		s.mu.Unlock()

		s.pending.Range(func(key, _ any) bool {
			if v, ok := s.pending.LoadAndDelete(key); ok {
				v.(*pendingCall).done <- callResult{err: ErrSessionClosed}
			}
			return true
		})
	})
	return s.closeErr
}
