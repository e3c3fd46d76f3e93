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
	"context"
	"strconv"
	"strings"

	"github.com/pgpipe/pgpipe/go/pgtypes"
	"github.com/pgpipe/pgpipe/go/protocol"
	"github.com/pgpipe/pgpipe/go/wire"
)

// Query binds values to a prepared statement and executes it, returning a
// stream of binary-format rows. The statement stays alive for at least the
// lifetime of the stream.
func (c *Conn) Query(ctx context.Context, stmt *Statement, values ...pgtypes.Value) (*RowStream, error) {
	c.logger.Debug("executing statement", "name", stmt.Name(), "query", stmt.Query())

	responses, err := c.sendBindExecute(stmt, values, protocol.FormatBinary)
	if err != nil {
		return nil, err
	}

	return newRowStream(responses, stmt.Clone(), protocol.FormatBinary, true), nil
}

// QueryText prepares and executes a query in one round trip using the
// server's unnamed statement slot. Parameters and results travel in text
// format; a nil parameter is sent as NULL. The returned stream describes
// itself from the server's RowDescription, so no prior Prepare is needed.
func (c *Conn) QueryText(ctx context.Context, query string, params ...*string) (*RowStream, error) {
	c.logger.Debug("executing query", "query", query)

	values := make([]pgtypes.Value, len(params))
	for i, p := range params {
		if p == nil {
			values[i] = pgtypes.Null
		} else {
			values[i] = pgtypes.String(*p)
		}
	}

	w, done := c.getWriter()
	defer done()
	if err := wire.Parse(w, "", query, nil); err != nil {
		return nil, &EncodeError{Err: err}
	}
	paramData := make([][]byte, len(values))
	for i, v := range values {
		data, err := v.Encode(pgtypes.Text)
		if err != nil {
			return nil, &ConversionError{Index: i, Err: err}
		}
		paramData[i] = data
	}
	if err := wire.Bind(w, "", "", nil, paramData, nil); err != nil {
		return nil, &EncodeError{Err: err}
	}
	wire.Describe(w, protocol.TargetStatement, "")
	wire.Execute(w, "", 0)
	wire.Sync(w)

	responses, err := c.Send(w.Bytes())
	if err != nil {
		return nil, err
	}

	stream := newRowStream(responses, nil, protocol.FormatText, true)
	stream.queryText = query
	return stream, nil
}

// QueryPortal resumes an existing portal, fetching at most maxRows rows
// (zero means no limit). A limited execution ends with PortalSuspended; the
// portal may be resumed again with another call.
func (c *Conn) QueryPortal(ctx context.Context, portal *Portal, maxRows int32) (*RowStream, error) {
	c.logger.Debug("executing portal", "portal", portal.Name(), "max_rows", maxRows)

	w, done := c.getWriter()
	defer done()
	wire.Execute(w, portal.Name(), maxRows)
	wire.Sync(w)

	responses, err := c.Send(w.Bytes())
	if err != nil {
		return nil, err
	}

	return newRowStream(responses, portal.Statement().Clone(), portal.Statement().OutputFormat(), false), nil
}

// Exec executes a prepared statement and returns the number of rows
// affected, discarding any result rows. Queries with an unparseable or
// absent row count report zero.
func (c *Conn) Exec(ctx context.Context, stmt *Statement, values ...pgtypes.Value) (uint64, error) {
	c.logger.Debug("executing statement", "name", stmt.Name(), "query", stmt.Query())

	responses, err := c.sendBindExecute(stmt, values, protocol.FormatBinary)
	if err != nil {
		return 0, err
	}
	defer responses.Abandon()

	var affected uint64
	prefix := true
	for {
		msg, err := responses.Next(ctx)
		if err != nil {
			return 0, err
		}
		if prefix {
			switch msg.Type {
			case protocol.MsgParseComplete:
				continue
			case protocol.MsgBindComplete:
				prefix = false
				continue
			case protocol.MsgReadyForQuery:
			default:
				return 0, &UnexpectedMessageError{Tag: msg.Type}
			}
		}
		switch msg.Type {
		case protocol.MsgDataRow:
		case protocol.MsgEmptyQueryResponse:
			affected = 0
		case protocol.MsgCommandComplete:
			r := wire.NewReader(msg.Body)
			tag, err := r.ReadString()
			if err != nil {
				return 0, err
			}
			affected = rowsAffected(tag)
		case protocol.MsgReadyForQuery:
			return affected, nil
		default:
			return 0, &UnexpectedMessageError{Tag: msg.Type}
		}
	}
}

// sendBindExecute writes Bind/Execute/Sync for stmt into one buffer and
// submits it. All parameter values are encoded before any byte is written,
// so an encoding failure leaves the connection untouched.
func (c *Conn) sendBindExecute(stmt *Statement, values []pgtypes.Value, resultFormat int16) (*Responses, error) {
	buf, err := c.encodeBind(stmt, values, "", resultFormat)
	if err != nil {
		return nil, err
	}
	defer buf.release()

	w := buf.writer
	wire.Execute(w, "", 0)
	wire.Sync(w)

	return c.Send(w.Bytes())
}

// bindBuffer holds a pooled writer carrying an encoded Bind message.
type bindBuffer struct {
	writer  *wire.Writer
	release func()
}

// encodeBind validates values against the statement's parameters, encodes
// them, and writes a Bind message for the given portal name into a pooled
// buffer. The caller must release the returned buffer. The writer comes
// from the calling connection, so statements that only exist client-side,
// like those materialized by a self-describing stream, bind the same way
// as prepared ones.
func (c *Conn) encodeBind(stmt *Statement, values []pgtypes.Value, portal string, resultFormat int16) (*bindBuffer, error) {
	params := stmt.Params()
	if len(values) != len(params) {
		return nil, &ParameterCountError{Got: len(values), Expected: len(params)}
	}

	formats := make([]int16, len(values))
	data := make([][]byte, len(values))
	for i, v := range values {
		formats[i] = v.Format(params[i])
		encoded, err := v.Encode(params[i])
		if err != nil {
			return nil, &ConversionError{Index: i, Err: err}
		}
		data[i] = encoded
	}

	w, done := c.getWriter()
	if err := wire.Bind(w, portal, stmt.Name(), formats, data, []int16{resultFormat}); err != nil {
		done()
		return nil, &EncodeError{Err: err}
	}

	return &bindBuffer{writer: w, release: done}, nil
}

// rowsAffected extracts the row count from a CommandComplete tag such as
// "INSERT 0 1" or "DELETE 7". Tags without a trailing count, like "BEGIN",
// report zero.
func rowsAffected(tag string) uint64 {
	idx := strings.LastIndexByte(tag, ' ')
	if idx < 0 {
		return 0
	}
	n, err := strconv.ParseUint(tag[idx+1:], 10, 64)
	if err != nil {
		return 0
	}
	return n
}
