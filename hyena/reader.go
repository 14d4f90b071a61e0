// © Copyright 2025-2026, Query.Farm LLC - https://query.farm
// SPDX-License-Identifier: Apache-2.0

package hyena

import (
	"encoding/binary"
	"fmt"
	"unicode/utf8"

	"github.com/google/uuid"
)

// sliceReader is a cursor over a received frame. Methods that return slices
// alias the frame; nothing is copied.
type sliceReader struct {
	data []byte
	off  int
}

func newReader(data []byte) *sliceReader {
	return &sliceReader{data: data}
}

func (r *sliceReader) remaining() int { return len(r.data) - r.off }

func (r *sliceReader) fail(format string, args ...any) error {
	return &DeserializationError{Msg: fmt.Sprintf(format, args...), Offset: r.off}
}

func (r *sliceReader) take(n int, what string) ([]byte, error) {
	if n < 0 || n > r.remaining() {
		return nil, r.fail("truncated %s: need %d bytes, have %d", what, n, r.remaining())
	}
	b := r.data[r.off : r.off+n : r.off+n]
	r.off += n
	return b, nil
}

func (r *sliceReader) u8(what string) (uint8, error) {
	b, err := r.take(1, what)
	if err != nil {
		return 0, err
	}
	return b[0], nil
}

func (r *sliceReader) u32(what string) (uint32, error) {
	b, err := r.take(4, what)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(b), nil
}

func (r *sliceReader) u64(what string) (uint64, error) {
	b, err := r.take(8, what)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint64(b), nil
}

func (r *sliceReader) i64(what string) (int64, error) {
	v, err := r.u64(what)
	return int64(v), err
}

// count reads an 8-byte collection length and checks that at least
// elemSize*n bytes remain, so a corrupt length cannot trigger a huge
// allocation.
func (r *sliceReader) count(elemSize int, what string) (int, error) {
	v, err := r.u64(what + " count")
	if err != nil {
		return 0, err
	}
	if v > uint64(r.remaining()) {
		return 0, r.fail("%s count %d exceeds remaining %d bytes", what, v, r.remaining())
	}
	n := int(v)
	if elemSize > 0 && n > r.remaining()/elemSize {
		return 0, r.fail("truncated %s: %d elements of %d bytes, have %d bytes", what, n, elemSize, r.remaining())
	}
	return n, nil
}

func (r *sliceReader) blob(what string) ([]byte, error) {
	n, err := r.count(1, what)
	if err != nil {
		return nil, err
	}
	return r.take(n, what)
}

func (r *sliceReader) str(what string) (string, error) {
	b, err := r.blob(what)
	if err != nil {
		return "", err
	}
	if !utf8.Valid(b) {
		return "", r.fail("%s is not valid UTF-8", what)
	}
	return string(b), nil
}

func (r *sliceReader) flag(what string) (bool, error) {
	b, err := r.u8(what)
	if err != nil {
		return false, err
	}
	switch b {
	case 0:
		return false, nil
	case 1:
		return true, nil
	}
	return false, r.fail("invalid %s flag %d", what, b)
}

func (r *sliceReader) uuid(what string) (uuid.UUID, error) {
	b, err := r.take(16, what)
	if err != nil {
		return uuid.UUID{}, err
	}
	return UUIDFromBits(binary.LittleEndian.Uint64(b[:8]), binary.LittleEndian.Uint64(b[8:])), nil
}

// end fails if unread bytes remain.
func (r *sliceReader) end(what string) error {
	if r.remaining() != 0 {
		return r.fail("%d trailing bytes after %s", r.remaining(), what)
	}
	return nil
}

// UUIDFromBits builds a UUID from its most and least significant 64 bits.
func UUIDFromBits(hi, lo uint64) uuid.UUID {
	var id uuid.UUID
	binary.BigEndian.PutUint64(id[:8], hi)
	binary.BigEndian.PutUint64(id[8:], lo)
	return id
}

// UUIDBits splits a UUID into its most and least significant 64 bits.
func UUIDBits(id uuid.UUID) (hi, lo uint64) {
	return binary.BigEndian.Uint64(id[:8]), binary.BigEndian.Uint64(id[8:])
}

// makeSlice returns nil for n == 0 so decoded empty collections compare
// equal to unset fields.
func makeSlice[T any](n int) []T {
	if n == 0 {
		return nil
	}
	return make([]T, n)
}
