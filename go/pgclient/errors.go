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
	"errors"
	"fmt"
)

// ErrConnClosed is returned once the connection has been closed or its
// reader has failed; every outstanding and subsequent operation reports it.
var ErrConnClosed = errors.New("connection closed")

// UnexpectedMessageError reports an inbound message that did not match the
// protocol step being decoded. It is fatal to the request that received it,
// not to the connection.
type UnexpectedMessageError struct {
	// Tag is the offending message's type byte.
	Tag byte
}

func (e *UnexpectedMessageError) Error() string {
	return fmt.Sprintf("unexpected message type: %c (0x%02x)", e.Tag, e.Tag)
}

// ParameterCountError reports a typed execution whose supplied value count
// does not match the statement's declared parameter count. It is detected
// before any bytes are written.
type ParameterCountError struct {
	Got      int
	Expected int
}

func (e *ParameterCountError) Error() string {
	return fmt.Sprintf("expected %d parameters but got %d", e.Expected, e.Got)
}

// ConversionError reports a parameter value that could not be encoded to its
// wire type. Index is the zero-based position of the failing parameter.
type ConversionError struct {
	Index int
	Err   error
}

func (e *ConversionError) Error() string {
	return fmt.Sprintf("cannot convert parameter %d: %v", e.Index, e.Err)
}

func (e *ConversionError) Unwrap() error {
	return e.Err
}

// EncodeError reports a low-level serialization failure while framing an
// outbound message, as opposed to a value failing conversion.
type EncodeError struct {
	Err error
}

func (e *EncodeError) Error() string {
	return fmt.Sprintf("cannot encode message: %v", e.Err)
}

func (e *EncodeError) Unwrap() error {
	return e.Err
}
