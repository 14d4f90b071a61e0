// © Copyright 2025-2026, Query.Farm LLC - https://query.farm
// SPDX-License-Identifier: Apache-2.0

package hyena

import (
	"fmt"
	"time"
)

// SocketKind selects the messaging pattern of a transport.
type SocketKind int

const (
	// SocketReq is a request/reply socket, used for the control handshake.
	SocketReq SocketKind = iota
	// SocketPair is an exclusive bidirectional socket, used for the peer
	// connection.
	SocketPair
)

func (k SocketKind) String() string {
	switch k {
	case SocketReq:
		return "req"
	case SocketPair:
		return "pair"
	}
	return fmt.Sprintf("SocketKind(%d)", int(k))
}

// Transport is the minimal socket capability the session needs. A
// Transport is not safe for concurrent use; the session serializes access.
//
// Send and Recv return errors matching ErrTimeout when a deadline expires.
// Recv(false) returns ErrNoMessage when no frame is queued.
type Transport interface {
	Dial(addr string) error
	Send(frame []byte) error
	Recv(block bool) ([]byte, error)
	SetTimeouts(send, recv time.Duration) error
	Close() error
}

// TransportFactory creates an unconnected transport of the given kind.
type TransportFactory func(kind SocketKind) (Transport, error)
