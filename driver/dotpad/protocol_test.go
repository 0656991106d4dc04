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

package dotpad

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	braille "github.com/tactiledev/go-braille"
	"github.com/tactiledev/go-braille/internal/frame"
)

func TestBuildParseRoundTrip(t *testing.T) {
	t.Parallel()

	data := []byte{0x01, 0x02, 0x03, 0xFF}
	packet, err := buildPacket(3, cmdReqDisplayLine, 7, data)
	require.NoError(t, err)

	verdict := verifyPacket(packet)
	assert.Equal(t, frame.Complete, verdict.Kind)

	p, err := parsePacket(packet)
	require.NoError(t, err)
	assert.Equal(t, byte(3), p.Destination)
	assert.Equal(t, cmdReqDisplayLine, p.Command)
	assert.Equal(t, byte(7), p.Sequence)
	assert.Equal(t, data, p.Data)
}

func TestBuildPacketEmptyData(t *testing.T) {
	t.Parallel()

	packet, err := buildPacket(0, cmdReqBoardInfo, 0, nil)
	require.NoError(t, err)
	assert.Len(t, packet, headerSize+envelopeSize)

	p, err := parsePacket(packet)
	require.NoError(t, err)
	assert.Empty(t, p.Data)
}

func TestBuildPacketOversizedData(t *testing.T) {
	t.Parallel()

	_, err := buildPacket(0, cmdReqDisplayLine, 0, make([]byte, maxDataLength+1))
	assert.ErrorIs(t, err, braille.ErrInvalidParameter)
}

func TestVerifyPacketSyncBytes(t *testing.T) {
	t.Parallel()

	assert.Equal(t, frame.Invalid, verifyPacket([]byte{0x00}).Kind)
	assert.Equal(t, frame.Invalid, verifyPacket([]byte{sync1, 0x00}).Kind)
	assert.Equal(t, frame.NeedMore, verifyPacket([]byte{sync1}).Kind)
	assert.Equal(t, frame.NeedMore, verifyPacket([]byte{sync1, sync2}).Kind)
}

func TestVerifyPacketLengthSanity(t *testing.T) {
	t.Parallel()

	// Length field below the envelope floor or above the data ceiling
	// rejects the packet at the header.
	assert.Equal(t, frame.Invalid, verifyPacket([]byte{sync1, sync2, 0x00, 0x00}).Kind)
	assert.Equal(t, frame.Invalid, verifyPacket([]byte{sync1, sync2, 0xFF, 0xFF}).Kind)
}

func TestVerifyPacketTarget(t *testing.T) {
	t.Parallel()

	packet, err := buildPacket(0, cmdReqFirmwareVersion, 0, []byte{0xAB})
	require.NoError(t, err)

	verdict := verifyPacket(packet[:headerSize])
	require.Equal(t, frame.NeedMore, verdict.Kind)
	assert.Equal(t, len(packet), verdict.Target)
}

func TestVerifyPacketBadChecksumStillDelivered(t *testing.T) {
	t.Parallel()

	packet, err := buildPacket(0, cmdRspBoardInfo, 1, make([]byte, 8))
	require.NoError(t, err)
	packet[len(packet)-1] ^= 0xFF

	assert.Equal(t, frame.Complete, verifyPacket(packet).Kind)
}

func TestDisplayResultMeaning(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "incorrect checksum", displayResultMeaning(drcChecksum))
	assert.Contains(t, displayResultMeaning(0x7F), "unknown")
}
