// © Copyright 2025-2026, Query.Farm LLC - https://query.farm
// SPDX-License-Identifier: Apache-2.0

package hyena

import (
	"encoding/binary"

	"github.com/google/uuid"
)

// writer appends little-endian primitives to a growing buffer.
type writer struct {
	buf []byte
}

func newWriter(sizeHint int) *writer {
	return &writer{buf: make([]byte, 0, sizeHint)}
}

func (w *writer) bytes() []byte { return w.buf }

func (w *writer) u8(v uint8) { w.buf = append(w.buf, v) }

func (w *writer) u16(v uint16) { w.buf = binary.LittleEndian.AppendUint16(w.buf, v) }

func (w *writer) u32(v uint32) { w.buf = binary.LittleEndian.AppendUint32(w.buf, v) }

func (w *writer) u64(v uint64) { w.buf = binary.LittleEndian.AppendUint64(w.buf, v) }

func (w *writer) i64(v int64) { w.u64(uint64(v)) }

// u128 writes the low half first, matching a little-endian 128-bit integer.
func (w *writer) u128(hi, lo uint64) {
	w.u64(lo)
	w.u64(hi)
}

func (w *writer) count(n int) { w.u64(uint64(n)) }

func (w *writer) raw(b []byte) { w.buf = append(w.buf, b...) }

func (w *writer) blob(b []byte) {
	w.count(len(b))
	w.raw(b)
}

func (w *writer) str(s string) {
	w.count(len(s))
	w.buf = append(w.buf, s...)
}

func (w *writer) flag(present bool) {
	if present {
		w.u8(1)
	} else {
		w.u8(0)
	}
}

// uuid writes the most significant 64 bits, then the least significant.
func (w *writer) uuid(id uuid.UUID) {
	hi, lo := UUIDBits(id)
	w.u64(hi)
	w.u64(lo)
}
