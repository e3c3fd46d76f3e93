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

// Package pgtypes describes PostgreSQL data types as seen on the wire and
// the boundary through which parameter values encode themselves. The full
// catalog of value conversions lives outside this module; what is needed
// here is OID resolution for statement metadata and an encoding hook for
// query parameters.
package pgtypes

// Type identifies a PostgreSQL data type by OID.
type Type struct {
	oid  uint32
	name string
}

// OID returns the type's object identifier.
func (t Type) OID() uint32 {
	return t.oid
}

// Name returns the type's catalog name.
func (t Type) Name() string {
	return t.name
}

// String implements fmt.Stringer.
func (t Type) String() string {
	return t.name
}

// Well-known scalar types.
var (
	Bool        = Type{16, "bool"}
	Bytea       = Type{17, "bytea"}
	Char        = Type{18, "char"}
	Name        = Type{19, "name"}
	Int8        = Type{20, "int8"}
	Int2        = Type{21, "int2"}
	Int4        = Type{23, "int4"}
	Text        = Type{25, "text"}
	OID         = Type{26, "oid"}
	JSON        = Type{114, "json"}
	Float4      = Type{700, "float4"}
	Float8      = Type{701, "float8"}
	Bpchar      = Type{1042, "bpchar"}
	Varchar     = Type{1043, "varchar"}
	Date        = Type{1082, "date"}
	Time        = Type{1083, "time"}
	Timestamp   = Type{1114, "timestamp"}
	Timestamptz = Type{1184, "timestamptz"}
	Interval    = Type{1186, "interval"}
	Numeric     = Type{1700, "numeric"}
	UUID        = Type{2950, "uuid"}
	JSONB       = Type{3802, "jsonb"}
)

var byOID = map[uint32]Type{}

func init() {
	for _, t := range []Type{
		Bool, Bytea, Char, Name, Int8, Int2, Int4, Text, OID, JSON,
		Float4, Float8, Bpchar, Varchar, Date, Time, Timestamp,
		Timestamptz, Interval, Numeric, UUID, JSONB,
	} {
		byOID[t.oid] = t
	}
}

// ForOID resolves an OID to a known type. OIDs not in the catalog resolve to
// the generic text type rather than failing; statement metadata stays usable
// even when the server speaks of types this package has never heard of.
func ForOID(oid uint32) Type {
	if t, ok := byOID[oid]; ok {
		return t
	}
	return Text
}

// OIDs returns the OIDs of the given types, preserving order.
func OIDs(types []Type) []uint32 {
	if len(types) == 0 {
		return nil
	}
	oids := make([]uint32, len(types))
	for i, t := range types {
		oids[i] = t.oid
	}
	return oids
}
