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
	"fmt"

	"github.com/pgpipe/pgpipe/go/pgtypes"
	"github.com/pgpipe/pgpipe/go/protocol"
	"github.com/pgpipe/pgpipe/go/wire"
)

// Prepare sends a statement to the server for parsing and returns its
// description. typeHints may be shorter than the query's actual parameter
// count; the server infers the rest. With anonymous set, the server's
// unnamed statement slot is used and no cleanup is ever needed; otherwise a
// fresh, never-reused name is allocated and the statement is released when
// the last handle is closed.
func (c *Conn) Prepare(ctx context.Context, query string, typeHints []pgtypes.Type, anonymous bool) (*Statement, error) {
	name := ""
	if !anonymous {
		name = newStatementName()
	}

	if len(typeHints) == 0 {
		c.logger.Debug("preparing query", "name", name, "query", query)
	} else {
		c.logger.Debug("preparing query", "name", name, "query", query, "types", typeHints)
	}

	w, done := c.getWriter()
	defer done()
	if err := wire.Parse(w, name, query, pgtypes.OIDs(typeHints)); err != nil {
		return nil, &EncodeError{Err: err}
	}
	wire.Describe(w, protocol.TargetStatement, name)
	wire.Sync(w)

	responses, err := c.Send(w.Bytes())
	if err != nil {
		return nil, err
	}
	defer responses.Abandon()

	// ParseComplete.
	msg, err := responses.Next(ctx)
	if err != nil {
		return nil, err
	}
	if msg.Type != protocol.MsgParseComplete {
		return nil, &UnexpectedMessageError{Tag: msg.Type}
	}

	// ParameterDescription.
	msg, err = responses.Next(ctx)
	if err != nil {
		return nil, err
	}
	if msg.Type != protocol.MsgParameterDescription {
		return nil, &UnexpectedMessageError{Tag: msg.Type}
	}
	params, err := parseParameterDescription(msg.Body)
	if err != nil {
		return nil, err
	}

	// RowDescription for row-returning queries, NoData otherwise.
	msg, err = responses.Next(ctx)
	if err != nil {
		return nil, err
	}
	var columns []Column
	switch msg.Type {
	case protocol.MsgRowDescription:
		columns, err = parseRowDescription(msg.Body)
		if err != nil {
			return nil, err
		}
	case protocol.MsgNoData:
	default:
		return nil, &UnexpectedMessageError{Tag: msg.Type}
	}

	if anonymous {
		return newStatement(c, statementUnnamed, "", query, params, columns, protocol.FormatBinary), nil
	}
	return newStatement(c, statementNamed, name, query, params, columns, protocol.FormatBinary), nil
}

// parseParameterDescription decodes a ParameterDescription body into
// resolved types. Unknown OIDs degrade to the generic text type.
func parseParameterDescription(body []byte) ([]pgtypes.Type, error) {
	r := wire.NewReader(body)

	count, err := r.ReadInt16()
	if err != nil {
		return nil, fmt.Errorf("failed to read parameter count: %w", err)
	}

	params := make([]pgtypes.Type, count)
	for i := range count {
		oid, err := r.ReadUint32()
		if err != nil {
			return nil, fmt.Errorf("failed to read parameter OID: %w", err)
		}
		params[i] = pgtypes.ForOID(oid)
	}

	return params, nil
}

// parseRowDescription decodes a RowDescription body into columns. Unknown
// type OIDs degrade to the generic text type.
func parseRowDescription(body []byte) ([]Column, error) {
	r := wire.NewReader(body)

	count, err := r.ReadInt16()
	if err != nil {
		return nil, fmt.Errorf("failed to read field count: %w", err)
	}

	columns := make([]Column, count)
	for i := range count {
		name, err := r.ReadString()
		if err != nil {
			return nil, fmt.Errorf("failed to read field name: %w", err)
		}
		tableOID, err := r.ReadUint32()
		if err != nil {
			return nil, fmt.Errorf("failed to read table OID: %w", err)
		}
		columnID, err := r.ReadInt16()
		if err != nil {
			return nil, fmt.Errorf("failed to read attribute number: %w", err)
		}
		typeOID, err := r.ReadUint32()
		if err != nil {
			return nil, fmt.Errorf("failed to read data type OID: %w", err)
		}
		// Type size, modifier and format code are not retained.
		if _, err := r.ReadInt16(); err != nil {
			return nil, fmt.Errorf("failed to read data type size: %w", err)
		}
		if _, err := r.ReadInt32(); err != nil {
			return nil, fmt.Errorf("failed to read type modifier: %w", err)
		}
		if _, err := r.ReadInt16(); err != nil {
			return nil, fmt.Errorf("failed to read format code: %w", err)
		}

		columns[i] = Column{
			name:     name,
			tableOID: tableOID,
			columnID: columnID,
			typ:      pgtypes.ForOID(typeOID),
		}
	}

	return columns, nil
}
