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
	"strconv"

	"github.com/pgpipe/pgpipe/go/protocol"
	"github.com/pgpipe/pgpipe/go/wire"
)

// Diagnostic represents a PostgreSQL diagnostic message (error or notice).
// The server uses the same wire format for ErrorResponse ('E') and
// NoticeResponse ('N'), differentiated by the MessageType field.
type Diagnostic struct {
	// MessageType is 'E' for ErrorResponse, 'N' for NoticeResponse.
	MessageType      byte
	Severity         string
	Code             string
	Message          string
	Detail           string
	Hint             string
	Position         int32
	InternalPosition int32
	InternalQuery    string
	Where            string
	Schema           string
	Table            string
	Column           string
	DataType         string
	Constraint       string
}

// IsError returns true if this diagnostic represents an error.
func (d *Diagnostic) IsError() bool {
	return d.MessageType == protocol.MsgErrorResponse
}

// IsNotice returns true if this diagnostic represents a notice.
func (d *Diagnostic) IsNotice() bool {
	return d.MessageType == protocol.MsgNoticeResponse
}

// SQLSTATE returns the five-character SQLSTATE error code.
func (d *Diagnostic) SQLSTATE() string {
	return d.Code
}

// IsFatal returns true if the severity indicates the session is terminated.
func (d *Diagnostic) IsFatal() bool {
	return d.Severity == "FATAL" || d.Severity == "PANIC"
}

// Error implements the error interface in the server's native
// "SEVERITY: message" form.
func (d *Diagnostic) Error() string {
	if d == nil {
		return "ERROR: unknown error"
	}
	return d.Severity + ": " + d.Message
}

// parseDiagnostic parses the field list shared by ErrorResponse and
// NoticeResponse bodies. Truncated or unknown fields are skipped rather than
// failing; a partially populated diagnostic is still more useful than none.
func parseDiagnostic(msgType byte, body []byte) *Diagnostic {
	r := wire.NewReader(body)

	diag := &Diagnostic{MessageType: msgType}

	for r.Remaining() > 0 {
		fieldType, err := r.ReadByte()
		if err != nil || fieldType == 0 {
			break
		}

		value, err := r.ReadString()
		if err != nil {
			break
		}

		switch fieldType {
		case protocol.FieldSeverity:
			diag.Severity = value
		case protocol.FieldSeverityV:
			// Non-localized severity; only used when 'S' was absent.
			if diag.Severity == "" {
				diag.Severity = value
			}
		case protocol.FieldCode:
			diag.Code = value
		case protocol.FieldMessage:
			diag.Message = value
		case protocol.FieldDetail:
			diag.Detail = value
		case protocol.FieldHint:
			diag.Hint = value
		case protocol.FieldPosition:
			if pos, err := strconv.ParseInt(value, 10, 32); err == nil {
				diag.Position = int32(pos)
			}
		case protocol.FieldInternalPosition:
			if pos, err := strconv.ParseInt(value, 10, 32); err == nil {
				diag.InternalPosition = int32(pos)
			}
		case protocol.FieldInternalQuery:
			diag.InternalQuery = value
		case protocol.FieldWhere:
			diag.Where = value
		case protocol.FieldSchema:
			diag.Schema = value
		case protocol.FieldTable:
			diag.Table = value
		case protocol.FieldColumn:
			diag.Column = value
		case protocol.FieldDataType:
			diag.DataType = value
		case protocol.FieldConstraint:
			diag.Constraint = value
		}
	}

	return diag
}
