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
	"sync"
	"sync/atomic"

	"github.com/pgpipe/pgpipe/go/pgtypes"
	"github.com/pgpipe/pgpipe/go/protocol"
	"github.com/pgpipe/pgpipe/go/wire"
)

var nextPortalID atomic.Uint64

func newPortalName() string {
	return "p" + strconv.FormatUint(nextPortalID.Add(1)-1, 10)
}

// Portal is a named server-side cursor created by binding values to a
// prepared statement. Unlike an ordinary execution, a portal can be read
// incrementally with QueryPortal. Portals live until transaction end or
// Close, whichever comes first.
type Portal struct {
	conn      *Conn
	name      string
	stmt      *Statement
	closeOnce sync.Once
}

// Bind creates a named portal from a prepared statement without executing
// it. The portal inherits the statement's result format. Bind must be
// called inside a transaction, since the server drops portals at
// transaction end.
func (c *Conn) Bind(ctx context.Context, stmt *Statement, values ...pgtypes.Value) (*Portal, error) {
	name := newPortalName()

	c.logger.Debug("binding portal", "portal", name, "statement", stmt.Name())

	buf, err := c.encodeBind(stmt, values, name, stmt.OutputFormat())
	if err != nil {
		return nil, err
	}
	w := buf.writer
	wire.Sync(w)

	responses, err := c.Send(w.Bytes())
	buf.release()
	if err != nil {
		return nil, err
	}
	defer responses.Abandon()

	msg, err := responses.Next(ctx)
	if err != nil {
		return nil, err
	}
	if msg.Type != protocol.MsgBindComplete {
		return nil, &UnexpectedMessageError{Tag: msg.Type}
	}

	return &Portal{conn: c, name: name, stmt: stmt.Clone()}, nil
}

// Name returns the portal's server-side name.
func (p *Portal) Name() string {
	return p.name
}

// Statement returns the statement the portal was bound from.
func (p *Portal) Statement() *Statement {
	return p.stmt
}

// Close releases the portal on the server without waiting for an
// acknowledgement, then drops the portal's statement reference. Close is
// idempotent.
func (p *Portal) Close() {
	p.closeOnce.Do(func() {
		if !p.conn.IsClosed() {
			w, done := p.conn.getWriter()
			wire.Close(w, protocol.TargetPortal, p.name)
			wire.Sync(w)
			p.conn.sendForget(w.Bytes())
			done()
		}
		p.stmt.Close()
	})
}
