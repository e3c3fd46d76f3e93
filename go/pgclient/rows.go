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

	"github.com/pgpipe/pgpipe/go/pgtypes"
	"github.com/pgpipe/pgpipe/go/protocol"
	"github.com/pgpipe/pgpipe/go/wire"
)

// RowStream is a single-pass iterator over the rows of one execution.
//
//	stream, err := conn.Query(ctx, stmt, values...)
//	if err != nil { ... }
//	defer stream.Close()
//	for stream.Next(ctx) {
//		row := stream.Row()
//		...
//	}
//	if err := stream.Err(); err != nil { ... }
//
// After the stream ends, RowsAffected, CommandTag and ReadyStatus report
// what the server sent alongside the rows.
type RowStream struct {
	responses *Responses
	stmt      *Statement
	format    int16

	// prefix is true while the stream still expects the ParseComplete and
	// BindComplete acknowledgements that precede row data.
	prefix bool

	// queryText is retained by self-describing streams so the materialized
	// statement carries the text it was executed from.
	queryText string

	// pendingParams holds a ParameterDescription seen before the statement
	// is known, for streams that describe themselves.
	pendingParams []pgtypes.Type

	row      *Row
	err      error
	finished bool

	affected    uint64
	hasAffected bool
	tag         string
	hasTag      bool
	ready       protocol.TransactionStatus
	hasReady    bool
}

func newRowStream(responses *Responses, stmt *Statement, format int16, prefix bool) *RowStream {
	return &RowStream{
		responses: responses,
		stmt:      stmt,
		format:    format,
		prefix:    prefix,
	}
}

// Next advances the stream to the next row. It returns false when the
// stream is exhausted or fails; Err distinguishes the two.
func (rs *RowStream) Next(ctx context.Context) bool {
	if rs.finished {
		return false
	}

	for {
		msg, err := rs.responses.Next(ctx)
		if err != nil {
			rs.fail(err)
			return false
		}

		// While draining the acknowledgement prefix, only ParseComplete,
		// BindComplete and ReadyForQuery are legal. ReadyForQuery falls
		// through to the shared handling below.
		if rs.prefix {
			switch msg.Type {
			case protocol.MsgParseComplete:
				continue
			case protocol.MsgBindComplete:
				rs.prefix = false
				continue
			case protocol.MsgReadyForQuery:
			default:
				rs.fail(&UnexpectedMessageError{Tag: msg.Type})
				return false
			}
		}

		switch msg.Type {
		case protocol.MsgDataRow:
			if rs.stmt == nil {
				rs.fail(&UnexpectedMessageError{Tag: msg.Type})
				return false
			}
			row, err := parseDataRow(rs.stmt, msg.Body, rs.format)
			if err != nil {
				rs.fail(err)
				return false
			}
			rs.row = row
			return true

		case protocol.MsgParameterDescription:
			params, err := parseParameterDescription(msg.Body)
			if err != nil {
				rs.fail(err)
				return false
			}
			rs.pendingParams = params

		case protocol.MsgRowDescription:
			columns, err := parseRowDescription(msg.Body)
			if err != nil {
				rs.fail(err)
				return false
			}
			rs.describe(columns)

		case protocol.MsgNoData:
			rs.describe(nil)

		case protocol.MsgCommandComplete:
			r := wire.NewReader(msg.Body)
			tag, err := r.ReadString()
			if err != nil {
				rs.fail(err)
				return false
			}
			rs.tag = tag
			rs.hasTag = true
			rs.affected = rowsAffected(tag)
			rs.hasAffected = true

		case protocol.MsgEmptyQueryResponse, protocol.MsgPortalSuspended:
			// No rows follow, but the request is still in progress until
			// ReadyForQuery.

		case protocol.MsgReadyForQuery:
			r := wire.NewReader(msg.Body)
			if status, err := r.ReadByte(); err == nil {
				rs.ready = protocol.TransactionStatus(status)
				rs.hasReady = true
			}
			rs.finish()
			return false

		default:
			rs.fail(&UnexpectedMessageError{Tag: msg.Type})
			return false
		}
	}
}

// describe materializes the stream's statement from an in-band description,
// pairing the stashed parameter list with the given columns.
func (rs *RowStream) describe(columns []Column) {
	if rs.stmt != nil {
		return
	}
	rs.stmt = newStatement(nil, statementInline, "", rs.queryText, rs.pendingParams, columns, rs.format)
	rs.pendingParams = nil
}

// Row returns the row produced by the last successful Next. It stays valid
// until the next call to Next or Close.
func (rs *RowStream) Row() *Row {
	return rs.row
}

// Err returns the error that terminated the stream, if any. Exhausting all
// rows normally is not an error.
func (rs *RowStream) Err() error {
	return rs.err
}

// Close releases the stream. Undelivered rows are discarded without
// blocking the connection's reader. Close is idempotent and safe to call at
// any point.
func (rs *RowStream) Close() {
	if !rs.finished {
		rs.finished = true
		rs.responses.Abandon()
	}
	rs.releaseStatement()
}

// Statement returns the statement describing the stream's rows, or nil if
// a self-describing stream has not yet seen its description.
func (rs *RowStream) Statement() *Statement {
	return rs.stmt
}

// RowsAffected reports the command's row count once the stream has seen
// CommandComplete.
func (rs *RowStream) RowsAffected() (uint64, bool) {
	return rs.affected, rs.hasAffected
}

// CommandTag reports the raw CommandComplete tag, such as "SELECT 2".
func (rs *RowStream) CommandTag() (string, bool) {
	return rs.tag, rs.hasTag
}

// ReadyStatus reports the transaction status from the final ReadyForQuery.
func (rs *RowStream) ReadyStatus() (protocol.TransactionStatus, bool) {
	return rs.ready, rs.hasReady
}

func (rs *RowStream) fail(err error) {
	rs.err = err
	rs.finished = true
	rs.row = nil
	rs.responses.Abandon()
	rs.releaseStatement()
}

func (rs *RowStream) finish() {
	rs.finished = true
	rs.row = nil
	rs.responses.Abandon()
	rs.releaseStatement()
}

func (rs *RowStream) releaseStatement() {
	// The stream's clone is dropped once iteration is over; the caller's own
	// handle, if any, keeps the statement alive. Close itself only reaches
	// the server for named statements.
	if rs.stmt != nil {
		rs.stmt.Close()
	}
}

// Row is one result row. Column values are raw wire bytes in the stream's
// result format.
type Row struct {
	stmt   *Statement
	values [][]byte
	format int16
}

// parseDataRow decodes a DataRow body against the statement's columns.
func parseDataRow(stmt *Statement, body []byte, format int16) (*Row, error) {
	r := wire.NewReader(body)

	count, err := r.ReadInt16()
	if err != nil {
		return nil, err
	}

	values := make([][]byte, count)
	for i := range count {
		value, err := r.ReadByteString()
		if err != nil {
			return nil, err
		}
		values[i] = value
	}

	return &Row{stmt: stmt, values: values, format: format}, nil
}

// Len returns the number of columns in the row.
func (r *Row) Len() int {
	return len(r.values)
}

// Value returns the raw bytes of column i, or nil for NULL.
func (r *Row) Value(i int) []byte {
	return r.values[i]
}

// IsNull reports whether column i is NULL.
func (r *Row) IsNull(i int) bool {
	return r.values[i] == nil
}

// Values returns all column values. NULL columns are nil slices.
func (r *Row) Values() [][]byte {
	return r.values
}

// Columns returns the column descriptions for the row.
func (r *Row) Columns() []Column {
	return r.stmt.Columns()
}

// Format returns the wire format of the row's values.
func (r *Row) Format() int16 {
	return r.format
}
