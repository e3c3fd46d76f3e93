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
	"runtime"
	"strconv"
	"sync"
	"sync/atomic"

	"github.com/pgpipe/pgpipe/go/pgtypes"
	"github.com/pgpipe/pgpipe/go/protocol"
	"github.com/pgpipe/pgpipe/go/wire"
)

// nextStatementID feeds server-side statement names. It only ever
// increases, so a name is never reused for the life of the process.
var nextStatementID atomic.Uint64

func newStatementName() string {
	return "s" + strconv.FormatUint(nextStatementID.Add(1)-1, 10)
}

// statementKind distinguishes how a statement is identified on the server.
type statementKind int

const (
	// statementNamed holds a server-side name that must be released.
	statementNamed statementKind = iota
	// statementUnnamed uses the server's unnamed statement slot.
	statementUnnamed
	// statementInline retains the query text instead of a name; nothing
	// exists server-side beyond the unnamed slot.
	statementInline
)

// stmtShared is the reference-counted core shared by all handles cloned
// from one prepared statement. Immutable after construction except for the
// reference count.
type stmtShared struct {
	// conn is a back-reference to the creating connection, used only to
	// release the server-side statement. A closed connection means there is
	// nothing left to clean up.
	conn    *Conn
	kind    statementKind
	name    string
	query   string
	params  []pgtypes.Type
	columns []Column
	format  int16

	refs atomic.Int32
}

// release drops one owner. The last owner of a named statement submits a
// fire-and-forget Close to the server; the response is never inspected.
func (s *stmtShared) release() {
	if s.refs.Add(-1) != 0 {
		return
	}
	if s.kind != statementNamed {
		return
	}
	c := s.conn
	if c == nil || c.IsClosed() {
		return
	}

	w, done := c.getWriter()
	defer done()
	wire.Close(w, protocol.TargetStatement, s.name)
	wire.Sync(w)
	c.sendForget(w.Bytes())
}

// Statement is a handle on a prepared query: its expected parameter types
// and the columns it produces. Handles are cheap to Clone and may be shared
// across goroutines; the server-side resource is released when the last
// handle is closed. A statement can only be used with the connection that
// prepared it.
type Statement struct {
	shared *stmtShared

	closeOnce sync.Once
	cleanup   runtime.Cleanup
}

// newStatementHandle wraps shared state in a fresh handle, adding one owner.
// A runtime cleanup backstops handles dropped without Close.
func newStatementHandle(shared *stmtShared) *Statement {
	shared.refs.Add(1)
	s := &Statement{shared: shared}
	s.cleanup = runtime.AddCleanup(s, func(sh *stmtShared) { sh.release() }, shared)
	return s
}

func newStatement(conn *Conn, kind statementKind, name, query string, params []pgtypes.Type, columns []Column, format int16) *Statement {
	return newStatementHandle(&stmtShared{
		conn:    conn,
		kind:    kind,
		name:    name,
		query:   query,
		params:  params,
		columns: columns,
		format:  format,
	})
}

// Clone returns a new handle sharing the same prepared statement.
func (s *Statement) Clone() *Statement {
	return newStatementHandle(s.shared)
}

// Close drops this handle's ownership. Closing the last handle of a named
// statement releases the server-side resource; cleanup failures are
// deliberately unobservable. Close is idempotent per handle.
func (s *Statement) Close() {
	s.closeOnce.Do(func() {
		s.cleanup.Stop()
		s.shared.release()
	})
}

// Name returns the server-side statement name; empty for unnamed and
// inline-text statements.
func (s *Statement) Name() string {
	switch s.shared.kind {
	case statementNamed:
		return s.shared.name
	case statementUnnamed, statementInline:
		return ""
	default:
		return ""
	}
}

// Query returns the text the statement was prepared or executed from.
func (s *Statement) Query() string {
	return s.shared.query
}

// Params returns the expected types of the statement's parameters.
func (s *Statement) Params() []pgtypes.Type {
	return s.shared.params
}

// Columns returns information about the columns produced when the
// statement is queried. Empty for statements that return no rows.
func (s *Statement) Columns() []Column {
	return s.shared.columns
}

// OutputFormat returns the wire format result rows are requested in.
func (s *Statement) OutputFormat() int16 {
	return s.shared.format
}

// Column describes one result-set field.
type Column struct {
	name     string
	tableOID uint32
	columnID int16
	typ      pgtypes.Type
}

// Name returns the name of the column.
func (c Column) Name() string {
	return c.name
}

// TableOID returns the OID of the underlying table, if the column belongs
// to one.
func (c Column) TableOID() (uint32, bool) {
	return c.tableOID, c.tableOID != 0
}

// ColumnID returns the column's ordinal within the underlying table, if
// the column belongs to one.
func (c Column) ColumnID() (int16, bool) {
	return c.columnID, c.columnID != 0
}

// Type returns the resolved type of the column.
func (c Column) Type() pgtypes.Type {
	return c.typ
}
