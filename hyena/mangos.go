// © Copyright 2025-2026, Query.Farm LLC - https://query.farm
// SPDX-License-Identifier: Apache-2.0

package hyena

import (
	"errors"
	"fmt"
	"time"

	"go.nanomsg.org/mangos/v3"
	"go.nanomsg.org/mangos/v3/protocol/pair"
	"go.nanomsg.org/mangos/v3/protocol/req"

	// tcp, ipc, inproc and websocket transports
	_ "go.nanomsg.org/mangos/v3/transport/all"
)

// pollWait is how long a non-blocking receive waits for a queued frame.
// mangos has no zero-wait receive, so a short deadline stands in for one.
const pollWait = time.Millisecond

// MangosTransport is a Transport over a nanomsg socket.
type MangosTransport struct {
	sock mangos.Socket
	addr string
	recv time.Duration
}

// NewMangosTransport opens a mangos socket of the given kind.
func NewMangosTransport(kind SocketKind) (Transport, error) {
	var (
		sock mangos.Socket
		err  error
	)
	switch kind {
	case SocketReq:
		sock, err = req.NewSocket()
	case SocketPair:
		sock, err = pair.NewSocket()
	default:
		return nil, fmt.Errorf("hyena: unsupported socket kind %s", kind)
	}
	if err != nil {
		return nil, &TransportError{Op: "open " + kind.String(), Err: err}
	}
	return &MangosTransport{sock: sock}, nil
}

// Dial connects the socket to addr, for example tcp://host:4567.
func (t *MangosTransport) Dial(addr string) error {
	t.addr = addr
	if err := t.sock.Dial(addr); err != nil {
		return t.wrap("dial", err)
	}
	return nil
}

// Send transmits one frame.
func (t *MangosTransport) Send(frame []byte) error {
	if err := t.sock.Send(frame); err != nil {
		return t.wrap("send", err)
	}
	return nil
}

// Recv returns the next frame. Without block it waits at most pollWait.
func (t *MangosTransport) Recv(block bool) ([]byte, error) {
	if !block {
		if err := t.sock.SetOption(mangos.OptionRecvDeadline, pollWait); err != nil {
			return nil, t.wrap("recv", err)
		}
		defer t.sock.SetOption(mangos.OptionRecvDeadline, t.recv) //nolint:errcheck
	}
	frame, err := t.sock.Recv()
	if err != nil {
		if !block && errors.Is(err, mangos.ErrRecvTimeout) {
			return nil, ErrNoMessage
		}
		return nil, t.wrap("recv", err)
	}
	return frame, nil
}

// SetTimeouts sets the send and receive deadlines. Zero means no deadline.
func (t *MangosTransport) SetTimeouts(send, recv time.Duration) error {
	if err := t.sock.SetOption(mangos.OptionSendDeadline, send); err != nil {
		return t.wrap("set send deadline", err)
	}
	if err := t.sock.SetOption(mangos.OptionRecvDeadline, recv); err != nil {
		return t.wrap("set recv deadline", err)
	}
	t.recv = recv
	return nil
}

// Close closes the socket. Closing twice is not an error.
func (t *MangosTransport) Close() error {
	if err := t.sock.Close(); err != nil && !errors.Is(err, mangos.ErrClosed) {
		return t.wrap("close", err)
	}
	return nil
}

func (t *MangosTransport) wrap(op string, err error) error {
	if errors.Is(err, mangos.ErrSendTimeout) || errors.Is(err, mangos.ErrRecvTimeout) {
		err = fmt.Errorf("%w: %w", ErrTimeout, err)
	}
	return &TransportError{Op: op, Addr: t.addr, Err: err}
}
