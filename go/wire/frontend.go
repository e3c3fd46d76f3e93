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
	"fmt"
	"math"

	"github.com/pgpipe/pgpipe/go/protocol"
)

// Frontend message encoders. Each appends one complete message to the
// writer. Errors reported here are serialization failures: the request could
// not be framed at all, as opposed to a parameter value failing conversion.

// Parse appends a Parse message.
// name is the statement name (empty for the unnamed statement).
// paramOIDs are the OIDs of parameter types (may be shorter than the query's
// actual parameter count; the server infers the rest).
func Parse(w *Writer, name, query string, paramOIDs []uint32) error {
	if len(paramOIDs) > math.MaxUint16 {
		return fmt.Errorf("parse: too many parameter types: %d", len(paramOIDs))
	}
	w.BeginMessage(protocol.MsgParse)
	w.WriteString(name)
	w.WriteString(query)
	w.WriteInt16(int16(len(paramOIDs)))
	for _, oid := range paramOIDs {
		w.WriteUint32(oid)
	}
	w.EndMessage()
	return nil
}

// Bind appends a Bind message. params holds the already-encoded parameter
// values, nil meaning NULL. paramFormats and resultFormats follow the
// protocol's format-list convention: empty means all-text, a single element
// applies to every item.
func Bind(w *Writer, portal, statement string, paramFormats []int16, params [][]byte, resultFormats []int16) error {
	if len(paramFormats) > math.MaxUint16 {
		return fmt.Errorf("bind: too many parameter formats: %d", len(paramFormats))
	}
	if len(params) > math.MaxUint16 {
		return fmt.Errorf("bind: too many parameters: %d", len(params))
	}
	if len(resultFormats) > math.MaxUint16 {
		return fmt.Errorf("bind: too many result formats: %d", len(resultFormats))
	}
	w.BeginMessage(protocol.MsgBind)
	w.WriteString(portal)
	w.WriteString(statement)

	w.WriteInt16(int16(len(paramFormats)))
	for _, f := range paramFormats {
		w.WriteInt16(f)
	}

	w.WriteInt16(int16(len(params)))
	for _, p := range params {
		if len(p) > math.MaxInt32 {
			return fmt.Errorf("bind: parameter value too large: %d bytes", len(p))
		}
		w.WriteByteString(p)
	}

	w.WriteInt16(int16(len(resultFormats)))
	for _, f := range resultFormats {
		w.WriteInt16(f)
	}
	w.EndMessage()
	return nil
}

// Describe appends a Describe message for a statement or portal.
// kind is protocol.TargetStatement or protocol.TargetPortal.
func Describe(w *Writer, kind byte, name string) {
	w.BeginMessage(protocol.MsgDescribe)
	w.WriteByte(kind)
	w.WriteString(name)
	w.EndMessage()
}

// Execute appends an Execute message. maxRows of zero means unlimited.
func Execute(w *Writer, portal string, maxRows int32) {
	w.BeginMessage(protocol.MsgExecute)
	w.WriteString(portal)
	w.WriteInt32(maxRows)
	w.EndMessage()
}

// Close appends a Close message for a statement or portal.
// kind is protocol.TargetStatement or protocol.TargetPortal.
func Close(w *Writer, kind byte, name string) {
	w.BeginMessage(protocol.MsgClose)
	w.WriteByte(kind)
	w.WriteString(name)
	w.EndMessage()
}

// Sync appends a Sync message.
func Sync(w *Writer) {
	w.BeginMessage(protocol.MsgSync)
	w.EndMessage()
}

// Flush appends a Flush message.
func Flush(w *Writer) {
	w.BeginMessage(protocol.MsgFlush)
	w.EndMessage()
}

// Terminate appends a Terminate message.
func Terminate(w *Writer) {
	w.BeginMessage(protocol.MsgTerminate)
	w.EndMessage()
}
