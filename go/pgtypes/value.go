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

package pgtypes

import (
	"fmt"
	"strconv"
	"time"

	"github.com/pgpipe/pgpipe/go/protocol"
)

// Value is a query parameter that knows how to put itself on the wire.
// Each value chooses its own format code, so a single Bind message can mix
// text and binary parameters.
type Value interface {
	// Format reports the wire format this value encodes with when bound to
	// a parameter of type t.
	Format(t Type) int16

	// Encode returns the wire bytes for the value, or nil for SQL NULL.
	// A failure here is a conversion error: the application value cannot be
	// represented as type t.
	Encode(t Type) ([]byte, error)
}

// String is a string parameter sent in text format.
type String string

// Format implements Value.
func (String) Format(Type) int16 { return protocol.FormatText }

// Encode implements Value.
func (v String) Encode(Type) ([]byte, error) { return []byte(v), nil }

// Raw is a pre-encoded binary-format parameter. The caller is responsible
// for the bytes matching the parameter's wire representation.
type Raw []byte

// Format implements Value.
func (Raw) Format(Type) int16 { return protocol.FormatBinary }

// Encode implements Value.
func (v Raw) Encode(Type) ([]byte, error) { return v, nil }

// Null is the SQL NULL parameter.
var Null Value = nullValue{}

type nullValue struct{}

func (nullValue) Format(Type) int16           { return protocol.FormatText }
func (nullValue) Encode(Type) ([]byte, error) { return nil, nil }

// Native wraps a plain Go value as a text-format parameter.
// Supported types: nil, string, []byte, int, int32, int64, uint32, uint64,
// float32, float64, bool, and time.Time. Anything else fails at encode time.
func Native(v any) Value {
	return nativeValue{v}
}

type nativeValue struct {
	v any
}

// Format implements Value.
func (nativeValue) Format(Type) int16 { return protocol.FormatText }

// Encode implements Value.
func (n nativeValue) Encode(Type) ([]byte, error) {
	if n.v == nil {
		return nil, nil // NULL
	}

	switch v := n.v.(type) {
	case string:
		return []byte(v), nil
	case []byte:
		return v, nil
	case int:
		return strconv.AppendInt(nil, int64(v), 10), nil
	case int32:
		return strconv.AppendInt(nil, int64(v), 10), nil
	case int64:
		return strconv.AppendInt(nil, v, 10), nil
	case uint32:
		return strconv.AppendUint(nil, uint64(v), 10), nil
	case uint64:
		return strconv.AppendUint(nil, v, 10), nil
	case float32:
		return strconv.AppendFloat(nil, float64(v), 'f', -1, 32), nil
	case float64:
		return strconv.AppendFloat(nil, v, 'f', -1, 64), nil
	case bool:
		if v {
			return []byte("true"), nil
		}
		return []byte("false"), nil
	case time.Time:
		// RFC3339 is understood by the server's timestamp input routines.
		return []byte(v.Format(time.RFC3339Nano)), nil
	default:
		return nil, fmt.Errorf("unsupported parameter type: %T", n.v)
	}
}

// NativeValues wraps a slice of plain Go values.
func NativeValues(args ...any) []Value {
	values := make([]Value, len(args))
	for i, arg := range args {
		values[i] = Native(arg)
	}
	return values
}
