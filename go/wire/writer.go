// Copyright 2026 Supabase, Inc.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
// http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package wire

import (
	"encoding/binary"
)

// Writer builds one outbound buffer holding one or more complete frontend
// messages. BeginMessage reserves the 4-byte length word and EndMessage
// backfills it, so several messages (e.g. Parse, Describe, Sync) can be
// packed and flushed as a single write.
type Writer struct {
	buf []byte
	// lenAt is the offset of the open message's length word, or -1.
	lenAt int
}

// NewWriter creates a writer over the given backing slice. The slice's
// contents are discarded; its capacity is reused.
func NewWriter(buf []byte) *Writer {
	return &Writer{buf: buf[:0], lenAt: -1}
}

// Bytes returns the accumulated buffer.
func (w *Writer) Bytes() []byte {
	return w.buf
}

// Len returns the current length of the buffer.
func (w *Writer) Len() int {
	return len(w.buf)
}

// Reset resets the writer for reuse, keeping the backing slice.
func (w *Writer) Reset() {
	w.buf = w.buf[:0]
	w.lenAt = -1
}

// BeginMessage starts a new message of the given type, reserving the length
// word. Each BeginMessage must be paired with EndMessage.
func (w *Writer) BeginMessage(msgType byte) {
	w.buf = append(w.buf, msgType)
	w.lenAt = len(w.buf)
	w.buf = append(w.buf, 0, 0, 0, 0)
}

// EndMessage backfills the open message's length word. The length includes
// itself but not the message type byte.
func (w *Writer) EndMessage() {
	binary.BigEndian.PutUint32(w.buf[w.lenAt:], uint32(len(w.buf)-w.lenAt))
	w.lenAt = -1
}

// WriteByte writes a single byte.
func (w *Writer) WriteByte(b byte) {
	w.buf = append(w.buf, b)
}

// WriteBytes writes raw bytes.
func (w *Writer) WriteBytes(b []byte) {
	w.buf = append(w.buf, b...)
}

// WriteUint16 writes a 16-bit unsigned integer in network byte order.
func (w *Writer) WriteUint16(v uint16) {
	var buf [2]byte
	binary.BigEndian.PutUint16(buf[:], v)
	w.buf = append(w.buf, buf[:]...)
}

// WriteUint32 writes a 32-bit unsigned integer in network byte order.
func (w *Writer) WriteUint32(v uint32) {
	var buf [4]byte
	binary.BigEndian.PutUint32(buf[:], v)
	w.buf = append(w.buf, buf[:]...)
}

// WriteInt16 writes a 16-bit signed integer in network byte order.
func (w *Writer) WriteInt16(v int16) {
	w.WriteUint16(uint16(v))
}

// WriteInt32 writes a 32-bit signed integer in network byte order.
func (w *Writer) WriteInt32(v int32) {
	w.WriteUint32(uint32(v))
}

// WriteString writes a null-terminated string.
func (w *Writer) WriteString(s string) {
	w.buf = append(w.buf, []byte(s)...)
	w.buf = append(w.buf, 0)
}

// WriteByteString writes a length-prefixed byte string (4-byte length + data).
// Writes -1 for nil (NULL).
func (w *Writer) WriteByteString(b []byte) {
	if b == nil {
		w.WriteInt32(-1)
		return
	}
	w.WriteInt32(int32(len(b)))
	w.WriteBytes(b)
}
