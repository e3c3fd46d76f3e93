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

// Package pgclient implements the PostgreSQL extended query protocol:
// preparing statements, binding and executing them, and streaming result
// rows back, over a shared pipelined connection.
//
// The connection itself is handed in already established and authenticated;
// startup, TLS, and authentication are out of scope here. A Conn multiplexes
// concurrently submitted requests over that stream: requests are written in
// submission order and the server answers them in the same order, so a
// single reader goroutine routes every inbound message to the oldest
// outstanding request until its ReadyForQuery arrives.
package pgclient

import (
	"bufio"
	"context"
	"encoding/binary"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/pgpipe/pgpipe/go/bufpool"
	"github.com/pgpipe/pgpipe/go/protocol"
	"github.com/pgpipe/pgpipe/go/wire"
)

const (
	// connBufferSize is the size of read and write buffers.
	connBufferSize = 16 * 1024
)

// requestBuffers recycles outbound request buffers across connections.
var requestBuffers = bufpool.New(256, 64*1024)

// Config holds optional connection settings.
type Config struct {
	// Logger receives protocol-level diagnostics. Defaults to slog.Default().
	Logger *slog.Logger
}

// Conn is a client connection speaking the extended query protocol over an
// established stream. All exported methods are safe for concurrent use.
type Conn struct {
	rw io.ReadWriteCloser

	bufferedReader *bufio.Reader
	bufferedWriter *bufio.Writer

	logger *slog.Logger

	// writeMu serializes request submission so that the order of the
	// pending queue matches the order of requests on the wire.
	writeMu sync.Mutex

	// mu guards pending, readErr, serverParams and txnStatus.
	mu           sync.Mutex
	pending      []*Responses
	readErr      error
	serverParams map[string]string
	txnStatus    protocol.TransactionStatus

	closed    atomic.Bool
	closeOnce sync.Once

	// closing unblocks message delivery to abandoned consumers during Close.
	closing chan struct{}

	// readerDone is closed when the reader goroutine exits.
	readerDone chan struct{}
}

// NewConn wraps an established, authenticated stream and starts the reader.
// The caller hands over ownership of rw; closing the Conn closes it.
func NewConn(rw io.ReadWriteCloser, config *Config) *Conn {
	logger := slog.Default()
	if config != nil && config.Logger != nil {
		logger = config.Logger
	}

	c := &Conn{
		rw:             rw,
		bufferedReader: bufio.NewReaderSize(rw, connBufferSize),
		bufferedWriter: bufio.NewWriterSize(rw, connBufferSize),
		logger:         logger,
		serverParams:   make(map[string]string),
		txnStatus:      protocol.TxnStatusIdle,
		closing:        make(chan struct{}),
		readerDone:     make(chan struct{}),
	}

	go c.readLoop()

	return c
}

// Close terminates the connection. It is idempotent; a best-effort Terminate
// message is sent before the underlying stream is closed.
func (c *Conn) Close() error {
	var err error
	c.closeOnce.Do(func() {
		c.closed.Store(true)

		// Send Terminate (best effort).
		c.writeMu.Lock()
		w := wire.NewWriter(nil)
		wire.Terminate(w)
		_, _ = c.bufferedWriter.Write(w.Bytes())
		_ = c.bufferedWriter.Flush()
		c.writeMu.Unlock()

		close(c.closing)
		err = c.rw.Close()
		<-c.readerDone
	})
	return err
}

// IsClosed returns true if the connection has been closed or its reader has
// failed.
func (c *Conn) IsClosed() bool {
	return c.closed.Load()
}

// TxnStatus returns the transaction status from the most recent
// ReadyForQuery message.
func (c *Conn) TxnStatus() protocol.TransactionStatus {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.txnStatus
}

// ServerParameter returns the latest value the server reported for a
// runtime parameter (via ParameterStatus messages).
func (c *Conn) ServerParameter(name string) (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	v, ok := c.serverParams[name]
	return v, ok
}

// Send submits one request buffer, which must end with a Sync message, and
// returns the reader for that request's responses. Requests are answered in
// submission order.
func (c *Conn) Send(buf []byte) (*Responses, error) {
	if c.closed.Load() {
		return nil, ErrConnClosed
	}

	r := newResponses()

	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	c.mu.Lock()
	if c.readErr != nil {
		err := c.readErr
		c.mu.Unlock()
		return nil, err
	}
	c.pending = append(c.pending, r)
	c.mu.Unlock()

	if _, err := c.bufferedWriter.Write(buf); err != nil {
		c.shutdown()
		return nil, fmt.Errorf("failed to write request: %w", err)
	}
	if err := c.bufferedWriter.Flush(); err != nil {
		c.shutdown()
		return nil, fmt.Errorf("failed to flush request: %w", err)
	}

	return r, nil
}

// sendForget submits a request without waiting for its responses. Used for
// resource cleanup where failures are deliberately unobservable.
func (c *Conn) sendForget(buf []byte) {
	if r, err := c.Send(buf); err == nil {
		r.Abandon()
	}
}

// shutdown tears down the transport after a write failure. The reader
// goroutine observes the closed stream and fails all pending requests.
func (c *Conn) shutdown() {
	c.closed.Store(true)
	_ = c.rw.Close()
}

// getWriter returns a message writer backed by a pooled buffer and the
// function that returns the buffer to the pool.
func (c *Conn) getWriter() (*wire.Writer, func()) {
	buf := requestBuffers.Get(256)
	w := wire.NewWriter(*buf)
	release := func() {
		*buf = w.Bytes()
		requestBuffers.Put(buf)
	}
	return w, release
}

// readLoop reads backend messages and routes them to the oldest pending
// request. Connection-level asynchronous messages (notices, parameter
// status, notifications) never reach a request.
func (c *Conn) readLoop() {
	defer close(c.readerDone)

	for {
		msg, err := c.readMessage()
		if err != nil {
			if c.closed.Load() {
				err = ErrConnClosed
			} else {
				err = fmt.Errorf("failed to read message: %w", err)
			}
			c.failPending(err)
			return
		}

		switch msg.Type {
		case protocol.MsgNoticeResponse:
			diag := parseDiagnostic(protocol.MsgNoticeResponse, msg.Body)
			c.logger.Debug("server notice",
				"severity", diag.Severity,
				"code", diag.Code,
				"message", diag.Message,
			)

		case protocol.MsgParameterStatus:
			c.handleParameterStatus(msg.Body)

		case protocol.MsgNotificationResponse:
			// Pub/sub delivery is out of scope; record that it happened.
			c.logger.Debug("notification received")

		default:
			c.mu.Lock()
			if len(c.pending) == 0 {
				c.mu.Unlock()
				c.closed.Store(true)
				_ = c.rw.Close()
				c.failPending(fmt.Errorf("message received with no outstanding request: %c (0x%02x)", msg.Type, msg.Type))
				return
			}
			r := c.pending[0]
			c.mu.Unlock()

			if msg.Type == protocol.MsgReadyForQuery {
				if len(msg.Body) > 0 {
					c.mu.Lock()
					c.txnStatus = protocol.TransactionStatus(msg.Body[0])
					c.mu.Unlock()
				}
				c.deliver(r, msg)
				c.mu.Lock()
				c.pending = c.pending[1:]
				c.mu.Unlock()
				r.finish(nil)
			} else {
				c.deliver(r, msg)
			}
		}
	}
}

// deliver hands one message to a request's consumer, discarding it if the
// consumer abandoned the request or the connection is closing.
func (c *Conn) deliver(r *Responses, msg wire.Message) {
	select {
	case r.ch <- msg:
	case <-r.abandoned:
	case <-c.closing:
	}
}

// failPending terminates every outstanding request with err and makes
// subsequent Send calls fail fast.
func (c *Conn) failPending(err error) {
	c.mu.Lock()
	c.readErr = err
	pending := c.pending
	c.pending = nil
	c.mu.Unlock()

	for _, r := range pending {
		r.finish(err)
	}
}

// handleParameterStatus records a runtime parameter change reported by the
// server.
func (c *Conn) handleParameterStatus(body []byte) {
	r := wire.NewReader(body)
	name, err := r.ReadString()
	if err != nil {
		c.logger.Warn("malformed ParameterStatus message", "error", err)
		return
	}
	value, err := r.ReadString()
	if err != nil {
		c.logger.Warn("malformed ParameterStatus message", "error", err)
		return
	}

	c.mu.Lock()
	c.serverParams[name] = value
	c.mu.Unlock()
}

// readMessage reads one complete backend message (type, length, body).
func (c *Conn) readMessage() (wire.Message, error) {
	msgType, err := c.bufferedReader.ReadByte()
	if err != nil {
		return wire.Message{}, err
	}

	var lenBuf [protocol.PacketHeaderSize]byte
	if _, err := io.ReadFull(c.bufferedReader, lenBuf[:]); err != nil {
		return wire.Message{}, err
	}
	length := binary.BigEndian.Uint32(lenBuf[:])
	if length < protocol.PacketHeaderSize {
		return wire.Message{}, fmt.Errorf("invalid message length: %d", length)
	}

	bodyLen := int(length - protocol.PacketHeaderSize)
	if bodyLen == 0 {
		return wire.Message{Type: msgType}, nil
	}
	body := make([]byte, bodyLen)
	if _, err := io.ReadFull(c.bufferedReader, body); err != nil {
		return wire.Message{}, err
	}

	return wire.Message{Type: msgType, Body: body}, nil
}

// Responses is the ordered sequence of backend messages answering a single
// request. It is owned by the one in-flight call that created it.
type Responses struct {
	ch chan wire.Message

	// abandoned is closed by the consumer to detach; remaining messages for
	// the request are then discarded by the reader goroutine.
	abandoned   chan struct{}
	abandonOnce sync.Once

	// err is the terminal connection error, set before ch is closed.
	err error
}

func newResponses() *Responses {
	return &Responses{
		ch:        make(chan wire.Message),
		abandoned: make(chan struct{}),
	}
}

// Next returns the next message for this request. ErrorResponse messages are
// converted into *Diagnostic errors. Once the request has completed or the
// connection has died, Next reports ErrConnClosed or the connection error.
func (r *Responses) Next(ctx context.Context) (wire.Message, error) {
	select {
	case <-ctx.Done():
		return wire.Message{}, ctx.Err()
	case msg, ok := <-r.ch:
		if !ok {
			if r.err != nil {
				return wire.Message{}, r.err
			}
			return wire.Message{}, ErrConnClosed
		}
		if msg.Type == protocol.MsgErrorResponse {
			return wire.Message{}, parseDiagnostic(protocol.MsgErrorResponse, msg.Body)
		}
		return msg, nil
	}
}

// Abandon detaches the consumer without blocking. The connection discards
// whatever remains of the request's responses; the connection itself stays
// usable.
func (r *Responses) Abandon() {
	r.abandonOnce.Do(func() {
		close(r.abandoned)
	})
}

// finish marks the request complete. Called only by the reader goroutine.
func (r *Responses) finish(err error) {
	r.err = err
	close(r.ch)
}
