// © Copyright 2025-2026, Query.Farm LLC - https://query.farm
// SPDX-License-Identifier: Apache-2.0

package enginetest

import (
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Query-farm/hyena-go/hyena"
	"github.com/panjf2000/ants/v2"
	"go.nanomsg.org/mangos/v3"
	"go.nanomsg.org/mangos/v3/protocol/pair"
	"go.nanomsg.org/mangos/v3/protocol/rep"

	_ "go.nanomsg.org/mangos/v3/transport/all"
)

// DefaultWorkers is the size of the request worker pool.
const DefaultWorkers = 8

// Options configures an Engine.
type Options struct {
	// Address is the control endpoint to listen on.
	Address string
	// PeerAddress returns the address of the n-th peer socket. Defaults to
	// DefaultPeerAddress.
	PeerAddress func(control string, n uint64) string
	// Workers bounds how many requests are handled at once. Requests on the
	// same connection may complete out of order when it is above one.
	Workers int
	// ReplyDelay, when set, is slept by the worker before answering.
	ReplyDelay func(hyena.Request) time.Duration
	// Strings selects the string layout of scan replies.
	Strings hyena.StringLayout
	// Store is the table served. Defaults to NewStore().
	Store *Store
	// Logger defaults to slog.Default().
	Logger *slog.Logger
}

// DefaultPeerAddress derives a peer address from the control address:
// inproc and ipc endpoints get a suffix, tcp endpoints the next ports.
func DefaultPeerAddress(control string, n uint64) string {
	u, err := url.Parse(control)
	if err == nil && u.Scheme == "tcp" {
		if port, perr := strconv.Atoi(u.Port()); perr == nil && port > 0 {
			return fmt.Sprintf("tcp://%s:%d", u.Hostname(), port+int(n))
		}
	}
	return fmt.Sprintf("%s.peer-%d", control, n)
}

// Engine serves the hyena protocol: a REP control socket hands out PAIR
// peer sockets on which requests are answered.
type Engine struct {
	opts    Options
	log     *slog.Logger
	codec   hyena.Codec
	control mangos.Socket
	pool    *ants.Pool

	mu     sync.Mutex
	peers  map[uint64]mangos.Socket
	nextID uint64

	dropBeats atomic.Bool
	requests  atomic.Int64
	wg        sync.WaitGroup
	closeOnce sync.Once
}

// Start listens on opts.Address and serves until Close.
func Start(opts Options) (*Engine, error) {
	if opts.Address == "" {
		return nil, errors.New("enginetest: address is required")
	}
	if opts.PeerAddress == nil {
		opts.PeerAddress = DefaultPeerAddress
	}
	if opts.Workers <= 0 {
		opts.Workers = DefaultWorkers
	}
	if opts.Store == nil {
		opts.Store = NewStore()
	}
	log := opts.Logger
	if log == nil {
		log = slog.Default()
	}

	pool, err := ants.NewPool(opts.Workers)
	if err != nil {
		return nil, fmt.Errorf("enginetest: worker pool: %w", err)
	}
	control, err := rep.NewSocket()
	if err != nil {
		pool.Release()
		return nil, fmt.Errorf("enginetest: control socket: %w", err)
	}
	if err := control.Listen(opts.Address); err != nil {
		control.Close()
		pool.Release()
		return nil, fmt.Errorf("enginetest: listen %s: %w", opts.Address, err)
	}

	e := &Engine{
		opts:    opts,
		log:     log.With("component", "enginetest", "addr", opts.Address),
		codec:   hyena.Codec{Strings: opts.Strings},
		control: control,
		pool:    pool,
		peers:   make(map[uint64]mangos.Socket),
	}
	e.wg.Add(1)
	go e.serveControl()
	return e, nil
}

// Address returns the control address.
func (e *Engine) Address() string { return e.opts.Address }

// Store returns the table served by the engine.
func (e *Engine) Store() *Store { return e.opts.Store }

// SetDropKeepAlives makes the engine ignore heartbeats while set.
func (e *Engine) SetDropKeepAlives(drop bool) { e.dropBeats.Store(drop) }

// Connections returns the number of open peer sockets.
func (e *Engine) Connections() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.peers)
}

// Handshakes returns how many peer sockets were created so far.
func (e *Engine) Handshakes() uint64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.nextID
}

// Requests returns how many request envelopes were received.
func (e *Engine) Requests() int64 { return e.requests.Load() }

// Close stops serving and closes every socket.
func (e *Engine) Close() error {
	e.closeOnce.Do(func() {
		e.control.Close()
		e.mu.Lock()
		for id, sock := range e.peers {
			sock.Close()
			delete(e.peers, id)
		}
		e.mu.Unlock()
		e.wg.Wait()
		e.pool.Release()
	})
	return nil
}

func (e *Engine) serveControl() {
	defer e.wg.Done()
	for {
		frame, err := e.control.Recv()
		if err != nil {
			if !errors.Is(err, mangos.ErrClosed) {
				e.log.Error("control recv", "err", err)
			}
			return
		}
		reply := e.handleControl(frame)
		if err := e.control.Send(reply.Encode()); err != nil {
			e.log.Error("control send", "err", err)
		}
	}
}

func (e *Engine) handleControl(frame []byte) hyena.ControlReply {
	typ, err := hyena.DecodeControlRequest(frame)
	if err != nil {
		return hyena.ControlReply{Err: err.Error()}
	}

	e.mu.Lock()
	e.nextID++
	id := e.nextID
	e.mu.Unlock()

	addr := e.opts.PeerAddress(e.opts.Address, id)
	sock, err := pair.NewSocket()
	if err != nil {
		return hyena.ControlReply{Type: typ, Err: err.Error()}
	}
	if err := sock.Listen(addr); err != nil {
		sock.Close()
		return hyena.ControlReply{Type: typ, Err: fmt.Sprintf("listen %s: %v", addr, err)}
	}

	e.mu.Lock()
	e.peers[id] = sock
	e.mu.Unlock()

	e.wg.Add(1)
	go e.servePeer(id, sock)
	e.log.Debug("peer created", "id", id, "peer", addr)
	return hyena.ControlReply{Type: typ, OK: true, ConnectionID: id, Address: addr}
}

func (e *Engine) closePeer(id uint64) {
	e.mu.Lock()
	sock, ok := e.peers[id]
	delete(e.peers, id)
	e.mu.Unlock()
	if ok {
		sock.Close()
	}
}

func (e *Engine) servePeer(id uint64, sock mangos.Socket) {
	defer e.wg.Done()
	log := e.log.With("peer", id)
	for {
		frame, err := sock.Recv()
		if err != nil {
			if !errors.Is(err, mangos.ErrClosed) {
				log.Error("peer recv", "err", err)
			}
			return
		}
		env, err := hyena.DecodePeerEnvelope(frame)
		if err != nil {
			log.Warn("bad envelope", "err", err)
			continue
		}
		switch env.Type {
		case hyena.PeerKeepAlive:
			if e.dropBeats.Load() {
				continue
			}
			if err := sock.Send(hyena.PeerReply{Type: hyena.PeerReplyKeepAlive}.Encode()); err != nil {
				log.Warn("keep-alive send", "err", err)
			}
		case hyena.PeerRequest:
			e.requests.Add(1)
			if err := e.pool.Submit(func() { e.answer(log, sock, env) }); err != nil {
				e.answer(log, sock, env)
			}
		case hyena.PeerCloseConnection:
			e.closePeer(id)
			return
		case hyena.PeerAbort:
			log.Debug("abort ignored", "message_id", env.MessageID)
		}
	}
}

func (e *Engine) answer(log *slog.Logger, sock mangos.Socket, env hyena.PeerEnvelope) {
	var reply hyena.Reply
	req, err := hyena.DecodeRequest(env.Payload)
	if err != nil {
		reply = &hyena.SerializeErrorReply{Message: err.Error()}
	} else {
		if e.opts.ReplyDelay != nil {
			time.Sleep(e.opts.ReplyDelay(req))
		}
		reply = e.opts.Store.Apply(req)
	}
	frame := hyena.PeerReply{
		Type:      hyena.PeerResponse,
		MessageID: env.MessageID,
		OK:        true,
		Payload:   e.codec.EncodeReply(reply),
	}.Encode()
	if err := sock.Send(frame); err != nil && !errors.Is(err, mangos.ErrClosed) {
		log.Warn("reply send", "message_id", env.MessageID, "err", err)
	}
}
