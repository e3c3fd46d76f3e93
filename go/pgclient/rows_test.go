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
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pgpipe/pgpipe/go/protocol"
	"github.com/pgpipe/pgpipe/go/wire"
)

// feedResponses returns a Responses fed from a fixed script of messages,
// bypassing the connection.
func feedResponses(msgs ...wire.Message) *Responses {
	r := newResponses()
	go func() {
		for _, m := range msgs {
			select {
			case r.ch <- m:
			case <-r.abandoned:
				return
			}
		}
		r.finish(nil)
	}()
	return r
}

func backendMessage(msgType byte, build func(w *wire.Writer)) wire.Message {
	w := wire.NewWriter(nil)
	if build != nil {
		build(w)
	}
	return wire.Message{Type: msgType, Body: w.Bytes()}
}

func dataRowMessage(values ...[]byte) wire.Message {
	return backendMessage(protocol.MsgDataRow, func(w *wire.Writer) {
		w.WriteInt16(int16(len(values)))
		for _, v := range values {
			w.WriteByteString(v)
		}
	})
}

func commandCompleteMessage(tag string) wire.Message {
	return backendMessage(protocol.MsgCommandComplete, func(w *wire.Writer) {
		w.WriteString(tag)
	})
}

func readyMessage(status protocol.TransactionStatus) wire.Message {
	return backendMessage(protocol.MsgReadyForQuery, func(w *wire.Writer) {
		w.WriteByte(byte(status))
	})
}

func TestRowStreamPrefixSequence(t *testing.T) {
	responses := feedResponses(
		backendMessage(protocol.MsgBindComplete, nil),
		backendMessage(protocol.MsgNoData, nil),
		dataRowMessage([]byte("a")),
		dataRowMessage([]byte("b")),
		commandCompleteMessage("SELECT 2"),
		readyMessage(protocol.TxnStatusIdle),
	)
	stream := newRowStream(responses, nil, protocol.FormatText, true)
	defer stream.Close()

	ctx := testContext(t)
	require.True(t, stream.Next(ctx))
	assert.Equal(t, []byte("a"), stream.Row().Value(0))
	require.True(t, stream.Next(ctx))
	assert.Equal(t, []byte("b"), stream.Row().Value(0))
	require.False(t, stream.Next(ctx))
	require.NoError(t, stream.Err())

	affected, ok := stream.RowsAffected()
	assert.True(t, ok)
	assert.EqualValues(t, 2, affected)
	_, ok = stream.ReadyStatus()
	assert.True(t, ok)
}

func TestRowStreamBindCompleteAfterRows(t *testing.T) {
	responses := feedResponses(
		backendMessage(protocol.MsgBindComplete, nil),
		backendMessage(protocol.MsgNoData, nil),
		dataRowMessage([]byte("a")),
		backendMessage(protocol.MsgBindComplete, nil),
	)
	stream := newRowStream(responses, nil, protocol.FormatText, true)
	defer stream.Close()

	ctx := testContext(t)
	require.True(t, stream.Next(ctx))
	require.False(t, stream.Next(ctx))

	var unexpected *UnexpectedMessageError
	require.ErrorAs(t, stream.Err(), &unexpected)
	assert.EqualValues(t, protocol.MsgBindComplete, unexpected.Tag)
}

func TestRowStreamDataRowBeforeBindComplete(t *testing.T) {
	responses := feedResponses(
		backendMessage(protocol.MsgParseComplete, nil),
		dataRowMessage([]byte("early")),
	)
	stream := newRowStream(responses, nil, protocol.FormatText, true)
	defer stream.Close()

	ctx := testContext(t)
	require.False(t, stream.Next(ctx))

	var unexpected *UnexpectedMessageError
	require.ErrorAs(t, stream.Err(), &unexpected)
	assert.EqualValues(t, protocol.MsgDataRow, unexpected.Tag)
}

func TestRowStreamCommandCompleteBeforeBindComplete(t *testing.T) {
	responses := feedResponses(
		commandCompleteMessage("SELECT 0"),
	)
	stream := newRowStream(responses, nil, protocol.FormatText, true)
	defer stream.Close()

	ctx := testContext(t)
	require.False(t, stream.Next(ctx))

	var unexpected *UnexpectedMessageError
	require.ErrorAs(t, stream.Err(), &unexpected)
	assert.EqualValues(t, protocol.MsgCommandComplete, unexpected.Tag)
}

func TestRowStreamDataRowBeforeDescription(t *testing.T) {
	responses := feedResponses(
		dataRowMessage([]byte("early")),
		readyMessage(protocol.TxnStatusIdle),
	)
	stream := newRowStream(responses, nil, protocol.FormatText, false)
	defer stream.Close()

	ctx := testContext(t)
	require.False(t, stream.Next(ctx))

	var unexpected *UnexpectedMessageError
	require.ErrorAs(t, stream.Err(), &unexpected)
	assert.EqualValues(t, protocol.MsgDataRow, unexpected.Tag)
}

func TestRowStreamUnexpectedMessage(t *testing.T) {
	responses := feedResponses(
		backendMessage(protocol.MsgCloseComplete, nil),
	)
	stream := newRowStream(responses, nil, protocol.FormatText, false)
	defer stream.Close()

	ctx := testContext(t)
	require.False(t, stream.Next(ctx))

	var unexpected *UnexpectedMessageError
	require.ErrorAs(t, stream.Err(), &unexpected)
	assert.EqualValues(t, protocol.MsgCloseComplete, unexpected.Tag)
}

func TestRowStreamEmptyQueryResponse(t *testing.T) {
	responses := feedResponses(
		backendMessage(protocol.MsgEmptyQueryResponse, nil),
		readyMessage(protocol.TxnStatusIdle),
	)
	stream := newRowStream(responses, nil, protocol.FormatText, false)
	defer stream.Close()

	ctx := testContext(t)
	require.False(t, stream.Next(ctx))
	require.NoError(t, stream.Err())

	_, ok := stream.CommandTag()
	assert.False(t, ok)
	_, ok = stream.RowsAffected()
	assert.False(t, ok)
	status, ok := stream.ReadyStatus()
	assert.True(t, ok)
	assert.Equal(t, protocol.TxnStatusIdle, status)
}

func TestRowStreamMalformedDataRow(t *testing.T) {
	// Field count claims one column but no value follows.
	truncated := backendMessage(protocol.MsgDataRow, func(w *wire.Writer) {
		w.WriteInt16(1)
	})
	responses := feedResponses(
		backendMessage(protocol.MsgNoData, nil),
		truncated,
	)
	stream := newRowStream(responses, nil, protocol.FormatText, false)
	defer stream.Close()

	ctx := testContext(t)
	require.False(t, stream.Next(ctx))
	require.ErrorIs(t, stream.Err(), io.EOF)
}

func TestRowStreamSelfDescribeStatement(t *testing.T) {
	responses := feedResponses(
		backendMessage(protocol.MsgParameterDescription, func(w *wire.Writer) {
			w.WriteInt16(1)
			w.WriteUint32(23)
		}),
		backendMessage(protocol.MsgRowDescription, func(w *wire.Writer) {
			w.WriteInt16(1)
			w.WriteString("n")
			w.WriteUint32(0)
			w.WriteInt16(0)
			w.WriteUint32(23)
			w.WriteInt16(4)
			w.WriteInt32(-1)
			w.WriteInt16(protocol.FormatText)
		}),
		dataRowMessage([]byte("5")),
		commandCompleteMessage("SELECT 1"),
		readyMessage(protocol.TxnStatusIdle),
	)
	stream := newRowStream(responses, nil, protocol.FormatText, false)
	defer stream.Close()

	ctx := testContext(t)
	require.True(t, stream.Next(ctx))
	assert.Equal(t, []byte("5"), stream.Row().Value(0))

	stmt := stream.Statement()
	require.NotNil(t, stmt)
	require.Len(t, stmt.Params(), 1)
	assert.EqualValues(t, 23, stmt.Params()[0].OID())
	require.Len(t, stmt.Columns(), 1)
	assert.Equal(t, "n", stmt.Columns()[0].Name())

	// Zero table OID and attribute number mean no originating column.
	_, ok := stmt.Columns()[0].TableOID()
	assert.False(t, ok)
	_, ok = stmt.Columns()[0].ColumnID()
	assert.False(t, ok)

	require.False(t, stream.Next(ctx))
	require.NoError(t, stream.Err())
}

func TestRowStreamCloseMidway(t *testing.T) {
	responses := feedResponses(
		backendMessage(protocol.MsgNoData, nil),
		dataRowMessage(nil),
		dataRowMessage(nil),
		commandCompleteMessage("SELECT 2"),
		readyMessage(protocol.TxnStatusIdle),
	)
	stream := newRowStream(responses, nil, protocol.FormatText, false)

	ctx := testContext(t)
	require.True(t, stream.Next(ctx))
	stream.Close()

	require.False(t, stream.Next(ctx))
	require.NoError(t, stream.Err())
	stream.Close() // idempotent
}
