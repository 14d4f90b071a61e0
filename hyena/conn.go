// © Copyright 2025-2026, Query.Farm LLC - https://query.farm
// SPDX-License-Identifier: Apache-2.0

package hyena

import (
	"fmt"
	"log/slog"
	"time"
)

// conn is the physical side of a session: the control handshake and the
// peer socket it yields. It is not safe for concurrent use.
type conn struct {
	factory     TransportFactory
	address     string
	sendTimeout time.Duration
	recvTimeout time.Duration
	log         *slog.Logger

	peer      Transport
	connected bool
	id        uint64
	peerAddr  string
}

// ensure performs the handshake unless already connected.
func (c *conn) ensure() error {
	if c.connected {
		return nil
	}
	return c.handshake()
}

// handshake asks the control endpoint for a dedicated peer address, then
// dials it with a pair socket.
func (c *conn) handshake() error {
	ctl, err := c.open(SocketReq, c.address)
	if err != nil {
		return err
	}
	reply, err := c.createSocket(ctl)
	if cerr := ctl.Close(); cerr != nil {
		c.log.Debug("closing control connection", "err", cerr)
	}
	if err != nil {
		return err
	}
	peer, err := c.open(SocketPair, reply.Address)
	if err != nil {
		return err
	}
	c.peer = peer
	c.connected = true
	c.id = reply.ConnectionID
	c.peerAddr = reply.Address
	c.log.Debug("peer connection established", "connection_id", reply.ConnectionID, "peer", reply.Address)
	return nil
}

func (c *conn) createSocket(ctl Transport) (ControlReply, error) {
	if err := ctl.Send(EncodeControlRequest(ControlCreateSocket)); err != nil {
		return ControlReply{}, fmt.Errorf("hyena: control request: %w", err)
	}
	frame, err := ctl.Recv(true)
	if err != nil {
		return ControlReply{}, fmt.Errorf("hyena: control reply: %w", err)
	}
	reply, err := DecodeControlReply(frame)
	if err != nil {
		return ControlReply{}, fmt.Errorf("hyena: control reply: %w", err)
	}
	if !reply.OK {
		return ControlReply{}, fmt.Errorf("hyena: engine refused peer connection: %s", reply.Err)
	}
	return reply, nil
}

func (c *conn) open(kind SocketKind, addr string) (Transport, error) {
	t, err := c.factory(kind)
	if err != nil {
		return nil, err
	}
	if err := t.SetTimeouts(c.sendTimeout, c.recvTimeout); err != nil {
		t.Close() //nolint:errcheck
		return nil, err
	}
	if err := t.Dial(addr); err != nil {
		t.Close() //nolint:errcheck
		return nil, err
	}
	return t, nil
}

// close drops the peer socket. It is a no-op when disconnected.
func (c *conn) close() error {
	if !c.connected {
		return nil
	}
	c.connected = false
	peer := c.peer
	c.peer = nil
	return peer.Close()
}

// closeWait bounds the goodbye frame sent by shutdown.
const closeWait = 100 * time.Millisecond

// shutdown tells the engine the peer connection is going away, then closes
// it. The goodbye is best effort.
func (c *conn) shutdown() error {
	if !c.connected {
		return nil
	}
	if err := c.peer.SetTimeouts(closeWait, closeWait); err == nil {
		if err := c.peer.Send(PeerEnvelope{Type: PeerCloseConnection}.Encode()); err != nil {
			c.log.Debug("close-connection notice not sent", "err", err)
		}
	}
	return c.close()
}

// reconnect closes the peer socket and handshakes again.
func (c *conn) reconnect() error {
	if err := c.close(); err != nil {
		c.log.Debug("closing stale peer connection", "err", err)
	}
	return c.handshake()
}

func (c *conn) send(frame []byte) error {
	if err := c.ensure(); err != nil {
		return err
	}
	return c.peer.Send(frame)
}

// poll returns the next queued frame, or ErrNoMessage when there is none or
// the connection is down.
func (c *conn) poll() ([]byte, error) {
	if !c.connected {
		return nil, ErrNoMessage
	}
	frame, err := c.peer.Recv(false)
	if IsTimeout(err) {
		return nil, ErrNoMessage
	}
	return frame, err
}
