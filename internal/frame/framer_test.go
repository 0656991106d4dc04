// Copyright 2026 The go-braille Authors.
// SPDX-License-Identifier: Apache-2.0
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package frame

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	braille "github.com/tactiledev/go-braille"
)

// lengthVerify is a minimal test protocol: packets start with 0xAA,
// the second byte is the total packet length, legal lengths are 2..8.
func lengthVerify(buf []byte) Verdict {
	if buf[0] != 0xAA {
		return Reject()
	}
	if len(buf) < 2 {
		return More(2)
	}
	total := int(buf[1])
	if total < 2 || total > 8 {
		return Reject()
	}
	if len(buf) < total {
		return More(total)
	}
	return Done()
}

func newTestReader(t *testing.T) (*Reader, *braille.MockTransport) {
	t.Helper()
	mock := braille.NewMockTransport()
	return NewReader(mock, lengthVerify, 16, "mock"), mock
}

func TestReadPacketAssemblesWholePacket(t *testing.T) {
	t.Parallel()

	reader, mock := newTestReader(t)
	mock.Feed([]byte{0xAA, 0x04, 0x01, 0x02})

	packet, err := reader.ReadPacket()
	require.NoError(t, err)
	assert.Equal(t, []byte{0xAA, 0x04, 0x01, 0x02}, packet)
}

func TestReadPacketReturnsCopy(t *testing.T) {
	t.Parallel()

	reader, mock := newTestReader(t)
	mock.Feed([]byte{0xAA, 0x02})
	first, err := reader.ReadPacket()
	require.NoError(t, err)

	mock.Feed([]byte{0xAA, 0x03, 0x55})
	_, err = reader.ReadPacket()
	require.NoError(t, err)

	assert.Equal(t, []byte{0xAA, 0x02}, first, "earlier packet must not alias the assembly buffer")
}

func TestReadPacketResynchronizesOnGarbage(t *testing.T) {
	t.Parallel()

	reader, mock := newTestReader(t)
	mock.Feed([]byte{0x00, 0xFF, 0x13, 0xAA, 0x03, 0x07})

	packet, err := reader.ReadPacket()
	require.NoError(t, err)
	assert.Equal(t, []byte{0xAA, 0x03, 0x07}, packet)
}

func TestReadPacketRescansAfterBadLength(t *testing.T) {
	t.Parallel()

	// 0xAA 0xFF declares an illegal length; the framer must shed one
	// byte at a time and lock onto the second sync byte.
	reader, mock := newTestReader(t)
	mock.Feed([]byte{0xAA, 0xFF, 0xAA, 0x02})

	packet, err := reader.ReadPacket()
	require.NoError(t, err)
	assert.Equal(t, []byte{0xAA, 0x02}, packet)
}

func TestReadPacketIdleChannel(t *testing.T) {
	t.Parallel()

	reader, _ := newTestReader(t)
	_, err := reader.ReadPacket()
	assert.ErrorIs(t, err, braille.ErrNoInput)
}

func TestReadPacketAbandonsStalledPartial(t *testing.T) {
	t.Parallel()

	reader, mock := newTestReader(t)
	mock.Feed([]byte{0xAA, 0x04, 0x01})

	_, err := reader.ReadPacket()
	assert.ErrorIs(t, err, braille.ErrNoInput)

	// The stalled bytes are gone; a fresh packet assembles cleanly.
	mock.Feed([]byte{0xAA, 0x03, 0x09})
	packet, err := reader.ReadPacket()
	require.NoError(t, err)
	assert.Equal(t, []byte{0xAA, 0x03, 0x09}, packet)
}

func TestReadPacketBoundsRunawayLength(t *testing.T) {
	t.Parallel()

	// An always-hungry verifier simulates a length field pointing past
	// the buffer cap. The reader must shed bytes instead of growing
	// without bound, then drain to idle.
	hungry := func(buf []byte) Verdict {
		if buf[0] != 0xAA {
			return Reject()
		}
		return More(1024)
	}
	mock := braille.NewMockTransport()
	reader := NewReader(mock, hungry, 4, "mock")
	mock.Feed([]byte{0xAA, 0xAA, 0xAA, 0xAA, 0xAA, 0xAA})

	_, err := reader.ReadPacket()
	assert.ErrorIs(t, err, braille.ErrNoInput)
}

func TestReadPacketGuardResynchronizes(t *testing.T) {
	t.Parallel()

	// maxSize 3 forces a shift mid-assembly. The oversized prefix
	// AA 05 01 is shed byte by byte until the trailing AA 02 packet
	// comes into frame.
	mock := braille.NewMockTransport()
	reader := NewReader(mock, lengthVerify, 3, "mock")
	mock.Feed([]byte{0xAA, 0x05, 0x01, 0xAA, 0x02})

	packet, err := reader.ReadPacket()
	require.NoError(t, err)
	assert.Equal(t, []byte{0xAA, 0x02}, packet)
}

func TestReadPacketChannelFailure(t *testing.T) {
	t.Parallel()

	reader, mock := newTestReader(t)
	require.NoError(t, mock.Close())

	_, err := reader.ReadPacket()
	require.Error(t, err)
	assert.ErrorIs(t, err, braille.ErrChannelClosed)
	assert.NotErrorIs(t, err, braille.ErrNoInput)
}

func TestPendingTracksQueuedInput(t *testing.T) {
	t.Parallel()

	reader, mock := newTestReader(t)
	assert.False(t, reader.Pending())

	mock.Feed([]byte{0xAA})
	assert.True(t, reader.Pending())
}
