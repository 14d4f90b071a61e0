// © Copyright 2025-2026, Query.Farm LLC - https://query.farm
// SPDX-License-Identifier: Apache-2.0

package hyena

import (
	"errors"
	"fmt"
)

var (
	// ErrSessionClosed is returned for requests issued on, or still pending
	// when, a session is closed.
	ErrSessionClosed = errors.New("hyena: session closed")

	// ErrTimeout marks transport errors caused by a send or receive deadline.
	// Send timeouts make the session reconnect and retry.
	ErrTimeout = errors.New("hyena: transport timeout")

	// ErrNoMessage is returned by a non-blocking receive when nothing is queued.
	ErrNoMessage = errors.New("hyena: no message available")
)

// ErrDeserialization is a sentinel for use with errors.Is to check whether
// any error in a chain is a *DeserializationError.
var ErrDeserialization = &DeserializationError{}

// DeserializationError reports a malformed frame: truncation, an unknown tag
// or ordinal, or inconsistent counts.
type DeserializationError struct {
	Msg    string
	Offset int
	Err    error
}

func (e *DeserializationError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("hyena: deserialization failed at offset %d: %s: %v", e.Offset, e.Msg, e.Err)
	}
	return fmt.Sprintf("hyena: deserialization failed at offset %d: %s", e.Offset, e.Msg)
}

func (e *DeserializationError) Unwrap() error { return e.Err }

// Is supports errors.Is by matching any *DeserializationError target.
func (e *DeserializationError) Is(target error) bool {
	_, ok := target.(*DeserializationError)
	return ok
}

// ApiErrorType is the kind of a business-level error returned by the engine.
type ApiErrorType uint32

const (
	ColumnNameAlreadyExists ApiErrorType = iota
	ColumnIdAlreadyExists
	ColumnNameCannotBeEmpty
	NoData
	InconsistentData
	InvalidScanRequest
	CatalogError
	ScanError
	Unknown

	apiErrorTypeCount
)

// ExtraKind describes which detail value accompanies an ApiErrorType.
type ExtraKind int

const (
	ExtraNone ExtraKind = iota
	ExtraInt
	ExtraString
)

var apiErrorTypes = [...]struct {
	name  string
	extra ExtraKind
}{
	ColumnNameAlreadyExists: {"ColumnNameAlreadyExists", ExtraString},
	ColumnIdAlreadyExists:   {"ColumnIdAlreadyExists", ExtraInt},
	ColumnNameCannotBeEmpty: {"ColumnNameCannotBeEmpty", ExtraNone},
	NoData:                  {"NoData", ExtraString},
	InconsistentData:        {"InconsistentData", ExtraString},
	InvalidScanRequest:      {"InvalidScanRequest", ExtraString},
	CatalogError:            {"CatalogError", ExtraString},
	ScanError:               {"ScanError", ExtraString},
	Unknown:                 {"Unknown", ExtraString},
}

// Valid reports whether t is a known error type.
func (t ApiErrorType) Valid() bool { return t < apiErrorTypeCount }

// Extra returns the kind of detail value carried with t.
func (t ApiErrorType) Extra() ExtraKind {
	if !t.Valid() {
		return ExtraNone
	}
	return apiErrorTypes[t].extra
}

func (t ApiErrorType) String() string {
	if !t.Valid() {
		return fmt.Sprintf("ApiErrorType(%d)", uint32(t))
	}
	return apiErrorTypes[t].name
}

// ErrApi is a sentinel for use with errors.Is to check whether any error in
// a chain is an *ApiError.
var ErrApi = &ApiError{}

// ApiError is a business-level failure reported by the engine. Which of
// IntExtra and StrExtra is meaningful is decided by Type.Extra().
type ApiError struct {
	Type     ApiErrorType
	IntExtra int64
	StrExtra string
}

// NewApiError builds an ApiError, routing extra to the field its type uses.
// extra may be nil, an int64 or a string.
func NewApiError(t ApiErrorType, extra any) *ApiError {
	e := &ApiError{Type: t}
	switch v := extra.(type) {
	case int64:
		e.IntExtra = v
	case int:
		e.IntExtra = int64(v)
	case string:
		e.StrExtra = v
	}
	return e
}

func (e *ApiError) Error() string {
	switch e.Type.Extra() {
	case ExtraInt:
		return fmt.Sprintf("%s (%d)", e.Type, e.IntExtra)
	case ExtraString:
		return fmt.Sprintf("%s (%s)", e.Type, e.StrExtra)
	}
	return e.Type.String()
}

// Is supports errors.Is by matching any *ApiError target.
func (e *ApiError) Is(target error) bool {
	_, ok := target.(*ApiError)
	return ok
}

// ReplyError is returned when the engine answers with a reply of the wrong
// kind or with a SerializeError reply.
type ReplyError struct {
	Expected Kind
	Got      Kind
	Message  string
}

func (e *ReplyError) Error() string {
	if e.Got == KindSerializeError {
		return fmt.Sprintf("hyena: serialization error: %s", e.Message)
	}
	return fmt.Sprintf("hyena: expected %s reply, got %s", e.Expected, e.Got)
}

// PeerError is returned when the engine answers a request envelope with an
// error response instead of a payload.
type PeerError struct {
	MessageID uint64
	Message   string
}

func (e *PeerError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("hyena: peer reply error for message %d", e.MessageID)
	}
	return fmt.Sprintf("hyena: peer reply error for message %d: %s", e.MessageID, e.Message)
}

// TransportError wraps a socket failure with the operation and address.
type TransportError struct {
	Op   string
	Addr string
	Err  error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("hyena: %s %s: %v", e.Op, e.Addr, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// IsTimeout reports whether err was caused by a transport deadline.
func IsTimeout(err error) bool { return errors.Is(err, ErrTimeout) }
