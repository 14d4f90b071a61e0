// © Copyright 2025-2026, Query.Farm LLC - https://query.farm
// SPDX-License-Identifier: Apache-2.0

package hyena

import "fmt"

// PeerRequestType tags frames sent over the peer connection.
type PeerRequestType uint32

const (
	PeerRequest PeerRequestType = iota
	PeerAbort
	PeerCloseConnection
	PeerKeepAlive
)

func (t PeerRequestType) String() string {
	switch t {
	case PeerRequest:
		return "Request"
	case PeerAbort:
		return "Abort"
	case PeerCloseConnection:
		return "CloseConnection"
	case PeerKeepAlive:
		return "KeepAlive"
	}
	return fmt.Sprintf("PeerRequestType(%d)", uint32(t))
}

// PeerReplyType tags frames received over the peer connection.
type PeerReplyType uint32

const (
	PeerResponse PeerReplyType = iota
	PeerReplyKeepAlive
)

func (t PeerReplyType) String() string {
	switch t {
	case PeerResponse:
		return "Response"
	case PeerReplyKeepAlive:
		return "KeepAlive"
	}
	return fmt.Sprintf("PeerReplyType(%d)", uint32(t))
}

// PeerEnvelope is an outgoing peer frame. MessageID and Payload are only
// carried by PeerRequest frames; a nil Payload is encoded as absent.
type PeerEnvelope struct {
	Type      PeerRequestType
	MessageID uint64
	Payload   []byte
}

// Encode serializes the envelope.
func (e PeerEnvelope) Encode() []byte {
	w := newWriter(24 + len(e.Payload))
	w.u32(uint32(e.Type))
	if e.Type == PeerRequest {
		w.u64(e.MessageID)
		w.flag(e.Payload != nil)
		if e.Payload != nil {
			w.blob(e.Payload)
		}
	}
	return w.bytes()
}

// DecodePeerEnvelope parses an outgoing peer frame. Payload aliases frame.
func DecodePeerEnvelope(frame []byte) (PeerEnvelope, error) {
	r := newReader(frame)
	var e PeerEnvelope
	t, err := r.u32("peer request type")
	if err != nil {
		return e, err
	}
	e.Type = PeerRequestType(t)
	switch e.Type {
	case PeerRequest:
		if e.MessageID, err = r.u64("message id"); err != nil {
			return e, err
		}
		present, err := r.flag("request payload")
		if err != nil {
			return e, err
		}
		if present {
			if e.Payload, err = r.blob("request payload"); err != nil {
				return e, err
			}
		}
	case PeerAbort, PeerCloseConnection, PeerKeepAlive:
	default:
		return e, r.fail("unknown peer request type %d", t)
	}
	return e, r.end(e.Type.String() + " envelope")
}

// PeerReply is an incoming peer frame. For a successful Response, Payload
// holds the encoded reply; for a failed one, Err describes the failure.
type PeerReply struct {
	Type      PeerReplyType
	MessageID uint64
	OK        bool
	Payload   []byte
	Err       string
}

// Encode serializes the reply frame.
func (p PeerReply) Encode() []byte {
	w := newWriter(32 + len(p.Payload))
	w.u32(uint32(p.Type))
	if p.Type != PeerResponse {
		return w.bytes()
	}
	w.u64(p.MessageID)
	if p.OK {
		w.u32(0)
		w.flag(true)
		w.blob(p.Payload)
		return w.bytes()
	}
	w.u32(1)
	if p.Err != "" {
		w.str(p.Err)
	}
	return w.bytes()
}

// DecodePeerReply parses an incoming peer frame. Payload aliases frame.
func DecodePeerReply(frame []byte) (PeerReply, error) {
	r := newReader(frame)
	var p PeerReply
	t, err := r.u32("peer reply type")
	if err != nil {
		return p, err
	}
	p.Type = PeerReplyType(t)
	switch p.Type {
	case PeerReplyKeepAlive:
		return p, r.end("keep-alive reply")
	case PeerResponse:
	default:
		return p, r.fail("unknown peer reply type %d", t)
	}
	if p.MessageID, err = r.u64("message id"); err != nil {
		return p, err
	}
	ok, err := r.u32("response flag")
	if err != nil {
		return p, err
	}
	switch ok {
	case 0:
		p.OK = true
		present, err := r.flag("response payload")
		if err != nil {
			return p, err
		}
		if !present {
			return p, r.fail("response for message %d has no payload", p.MessageID)
		}
		if p.Payload, err = r.blob("response payload"); err != nil {
			return p, err
		}
	case 1:
		// The error message is optional; older engines send none.
		if r.remaining() > 0 {
			if p.Err, err = r.str("response error"); err != nil {
				return p, err
			}
		}
	default:
		return p, r.fail("invalid response flag %d", ok)
	}
	return p, r.end("response envelope")
}

// ControlRequestType tags frames on the control connection.
type ControlRequestType uint32

const ControlCreateSocket ControlRequestType = 0

// EncodeControlRequest serializes a control request.
func EncodeControlRequest(t ControlRequestType) []byte {
	w := newWriter(4)
	w.u32(uint32(t))
	return w.bytes()
}

// DecodeControlRequest parses a control request.
func DecodeControlRequest(frame []byte) (ControlRequestType, error) {
	r := newReader(frame)
	t, err := r.u32("control request type")
	if err != nil {
		return 0, err
	}
	if ControlRequestType(t) != ControlCreateSocket {
		return 0, r.fail("unknown control request type %d", t)
	}
	return ControlCreateSocket, r.end("control request")
}

// ControlReply answers a CreateSocket request with the address of a
// dedicated peer connection, or an error message.
type ControlReply struct {
	Type         ControlRequestType
	OK           bool
	ConnectionID uint64
	Address      string
	Err          string
}

// Encode serializes the control reply.
func (c ControlReply) Encode() []byte {
	w := newWriter(32 + len(c.Address) + len(c.Err))
	w.u32(uint32(c.Type))
	if c.OK {
		w.u32(0)
		w.u64(c.ConnectionID)
		w.str(c.Address)
	} else {
		w.u32(1)
		w.str(c.Err)
	}
	return w.bytes()
}

// DecodeControlReply parses a control reply.
func DecodeControlReply(frame []byte) (ControlReply, error) {
	r := newReader(frame)
	var c ControlReply
	t, err := r.u32("control reply type")
	if err != nil {
		return c, err
	}
	if c.Type = ControlRequestType(t); c.Type != ControlCreateSocket {
		return c, r.fail("unknown control reply type %d", t)
	}
	ok, err := r.u32("control reply flag")
	if err != nil {
		return c, err
	}
	switch ok {
	case 0:
		c.OK = true
		if c.ConnectionID, err = r.u64("connection id"); err != nil {
			return c, err
		}
		if c.Address, err = r.str("peer address"); err != nil {
			return c, err
		}
	case 1:
		if c.Err, err = r.str("control error"); err != nil {
			return c, err
		}
	default:
		return c, r.fail("invalid control reply flag %d", ok)
	}
	return c, r.end("control reply")
}
