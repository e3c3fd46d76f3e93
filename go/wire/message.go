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

// Package wire implements encoding and decoding of PostgreSQL wire protocol
// messages. Encoding is pure buffer construction: a Writer packs one or more
// frontend messages into a single outbound byte buffer, and a Reader walks
// the body of a decoded backend message. Neither performs I/O.
package wire

// Message is one decoded backend message: the type byte and the message body
// (excluding the type byte and length word).
type Message struct {
	Type byte
	Body []byte
}
