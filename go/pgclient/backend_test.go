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

package pgclient

import (
	"bufio"
	"encoding/binary"
	"io"
	"log/slog"
	"net"
	"testing"

	"github.com/pgpipe/pgpipe/go/protocol"
	"github.com/pgpipe/pgpipe/go/wire"
)

// backend scripts the server side of a connection over an in-memory pipe.
// Its methods run from a test goroutine; failures are reported with Errorf
// so they surface without crashing the scripted exchange mid-way.
type backend struct {
	t    *testing.T
	conn net.Conn
	r    *bufio.Reader
}

// newTestConn returns a client connection wired to a scriptable backend.
// The server side of the pipe is torn down first during cleanup so that
// late fire-and-forget writes fail fast instead of blocking.
func newTestConn(t *testing.T) (*Conn, *backend) {
	t.Helper()

	clientSide, serverSide := net.Pipe()
	b := &backend{
		t:    t,
		conn: serverSide,
		r:    bufio.NewReader(serverSide),
	}

	c := NewConn(clientSide, &Config{
		Logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	})

	t.Cleanup(func() {
		serverSide.Close()
		c.Close()
	})

	return c, b
}

// recv reads one frontend message.
func (b *backend) recv() wire.Message {
	msgType, err := b.r.ReadByte()
	if err != nil {
		b.t.Errorf("backend: failed to read message type: %v", err)
		return wire.Message{}
	}

	var lenBuf [4]byte
	if _, err := io.ReadFull(b.r, lenBuf[:]); err != nil {
		b.t.Errorf("backend: failed to read message length: %v", err)
		return wire.Message{}
	}
	length := binary.BigEndian.Uint32(lenBuf[:])

	body := make([]byte, length-4)
	if _, err := io.ReadFull(b.r, body); err != nil {
		b.t.Errorf("backend: failed to read message body: %v", err)
		return wire.Message{}
	}

	return wire.Message{Type: msgType, Body: body}
}

// recvUntilSync reads frontend messages through the next Sync, returning all
// of them including the Sync itself.
func (b *backend) recvUntilSync() []wire.Message {
	var msgs []wire.Message
	for {
		msg := b.recv()
		msgs = append(msgs, msg)
		if msg.Type == protocol.MsgSync || msg.Type == 0 {
			return msgs
		}
	}
}

func (b *backend) send(build func(w *wire.Writer)) {
	w := wire.NewWriter(nil)
	build(w)
	if _, err := b.conn.Write(w.Bytes()); err != nil {
		b.t.Errorf("backend: failed to write: %v", err)
	}
}

func (b *backend) sendParseComplete() {
	b.send(func(w *wire.Writer) {
		w.BeginMessage(protocol.MsgParseComplete)
		w.EndMessage()
	})
}

func (b *backend) sendBindComplete() {
	b.send(func(w *wire.Writer) {
		w.BeginMessage(protocol.MsgBindComplete)
		w.EndMessage()
	})
}

func (b *backend) sendCloseComplete() {
	b.send(func(w *wire.Writer) {
		w.BeginMessage(protocol.MsgCloseComplete)
		w.EndMessage()
	})
}

func (b *backend) sendParameterDescription(oids ...uint32) {
	b.send(func(w *wire.Writer) {
		w.BeginMessage(protocol.MsgParameterDescription)
		w.WriteInt16(int16(len(oids)))
		for _, oid := range oids {
			w.WriteUint32(oid)
		}
		w.EndMessage()
	})
}

// fieldDesc is one RowDescription entry.
type fieldDesc struct {
	name     string
	tableOID uint32
	columnID int16
	typeOID  uint32
}

func (b *backend) sendRowDescription(fields ...fieldDesc) {
	b.send(func(w *wire.Writer) {
		w.BeginMessage(protocol.MsgRowDescription)
		w.WriteInt16(int16(len(fields)))
		for _, f := range fields {
			w.WriteString(f.name)
			w.WriteUint32(f.tableOID)
			w.WriteInt16(f.columnID)
			w.WriteUint32(f.typeOID)
			w.WriteInt16(-1) // type size
			w.WriteInt32(-1) // type modifier
			w.WriteInt16(protocol.FormatText)
		}
		w.EndMessage()
	})
}

func (b *backend) sendNoData() {
	b.send(func(w *wire.Writer) {
		w.BeginMessage(protocol.MsgNoData)
		w.EndMessage()
	})
}

// sendDataRow writes a row; nil values become NULL columns.
func (b *backend) sendDataRow(values ...[]byte) {
	b.send(func(w *wire.Writer) {
		w.BeginMessage(protocol.MsgDataRow)
		w.WriteInt16(int16(len(values)))
		for _, v := range values {
			w.WriteByteString(v)
		}
		w.EndMessage()
	})
}

func (b *backend) sendCommandComplete(tag string) {
	b.send(func(w *wire.Writer) {
		w.BeginMessage(protocol.MsgCommandComplete)
		w.WriteString(tag)
		w.EndMessage()
	})
}

func (b *backend) sendEmptyQueryResponse() {
	b.send(func(w *wire.Writer) {
		w.BeginMessage(protocol.MsgEmptyQueryResponse)
		w.EndMessage()
	})
}

func (b *backend) sendPortalSuspended() {
	b.send(func(w *wire.Writer) {
		w.BeginMessage(protocol.MsgPortalSuspended)
		w.EndMessage()
	})
}

func (b *backend) sendReadyForQuery(status protocol.TransactionStatus) {
	b.send(func(w *wire.Writer) {
		w.BeginMessage(protocol.MsgReadyForQuery)
		w.WriteByte(byte(status))
		w.EndMessage()
	})
}

func (b *backend) sendError(severity, code, message string) {
	b.send(func(w *wire.Writer) {
		w.BeginMessage(protocol.MsgErrorResponse)
		w.WriteByte(protocol.FieldSeverity)
		w.WriteString(severity)
		w.WriteByte(protocol.FieldCode)
		w.WriteString(code)
		w.WriteByte(protocol.FieldMessage)
		w.WriteString(message)
		w.WriteByte(0)
		w.EndMessage()
	})
}

func (b *backend) sendParameterStatus(name, value string) {
	b.send(func(w *wire.Writer) {
		w.BeginMessage(protocol.MsgParameterStatus)
		w.WriteString(name)
		w.WriteString(value)
		w.EndMessage()
	})
}

// serveStandardPrepare answers one Parse/Describe/Sync exchange describing a
// single int4 parameter and a single text column named "value".
func (b *backend) serveStandardPrepare() {
	b.recvUntilSync()
	b.sendParseComplete()
	b.sendParameterDescription(23)
	b.sendRowDescription(fieldDesc{name: "value", tableOID: 0, columnID: 0, typeOID: 25})
	b.sendReadyForQuery(protocol.TxnStatusIdle)
}
