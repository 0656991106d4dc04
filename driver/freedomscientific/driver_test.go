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

package freedomscientific

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	braille "github.com/tactiledev/go-braille"
)

// infoPayload builds an INFO answer from NUL padded fixed fields
func infoPayload(manufacturer, model, firmware string) []byte {
	payload := make([]byte, infoPayloadSize)
	copy(payload[:infoManufacturerSize], manufacturer)
	copy(payload[infoManufacturerSize:infoManufacturerSize+infoModelSize], model)
	copy(payload[infoManufacturerSize+infoModelSize:], firmware)
	return payload
}

// focusResponder simulates a display that identifies as model and
// answers every write with the given response packet.
func focusResponder(t *testing.T, model string, writeResponse []byte) braille.Responder {
	return func(written []byte) []byte {
		p, err := parsePacket(written)
		require.NoError(t, err)
		switch p.Type {
		case pktQuery:
			info, err := buildPacket(pktInfo, 0, 0, 0,
				infoPayload("Freedom Scientific", model, "4.22"))
			require.NoError(t, err)
			return info
		case pktWrite, pktConfig, pktBeep:
			return writeResponse
		}
		return nil
	}
}

func ackPacket() []byte                { return []byte{pktAck, 0, 0, 0} }
func nakPacket(reason byte) []byte     { return []byte{pktNAK, reason, 0, 0} }
func keyPacket(a1, a2, a3 byte) []byte { return []byte{pktKey, a1, a2, a3} }

func connectModel(t *testing.T, model string, writeResponse []byte) (*Driver, *braille.MockTransport) {
	t.Helper()
	transport := braille.NewMockTransport()
	transport.SetResponder(focusResponder(t, model, writeResponse))

	driver := New()
	_, err := driver.Connect(transport)
	require.NoError(t, err)
	return driver, transport
}

// pump runs the read loop until no commands remain, collecting them
func pump(t *testing.T, d *Driver) []braille.Command {
	t.Helper()
	var commands []braille.Command
	for {
		cmd, err := d.ReadCommand()
		if err != nil {
			assert.ErrorIs(t, err, braille.ErrNoCommand)
			return commands
		}
		commands = append(commands, cmd)
	}
}

func TestConnectFocus40(t *testing.T) {
	t.Parallel()

	driver, _ := connectModel(t, "Focus 40", ackPacket())
	caps := driver.caps
	assert.Equal(t, "Focus 40", caps.Model)
	assert.Equal(t, "4.22", caps.FirmwareVersion)
	assert.Equal(t, 40, caps.TextColumns)
	assert.Equal(t, 1, caps.TextRows)
	assert.True(t, caps.HasPerkinsKeys)
	assert.True(t, caps.HasRoutingKeys)
	assert.Equal(t, 40, driver.payloadLimit)
}

func TestConnectPACMate(t *testing.T) {
	t.Parallel()

	driver, _ := connectModel(t, "pm display 20", ackPacket())
	assert.Equal(t, 20, driver.caps.TextColumns)
	assert.False(t, driver.caps.HasPerkinsKeys)
}

func TestConnectUnknownModel(t *testing.T) {
	t.Parallel()

	transport := braille.NewMockTransport()
	transport.SetResponder(focusResponder(t, "Braille Blaster 9000", ackPacket()))

	_, err := New().Connect(transport)
	assert.ErrorIs(t, err, braille.ErrProbeFailed)
}

func TestWriteCellsChunking(t *testing.T) {
	t.Parallel()

	driver, transport := connectModel(t, "Focus 40", ackPacket())

	// Settle the initial forced write so the chunking below reflects
	// the delta alone.
	buf := braille.NewDisplayBuffer(40, 1)
	require.NoError(t, driver.WriteCells(buf))
	pump(t, driver)
	transport.Reset()
	driver.payloadLimit = 8

	cells := make([]byte, 20)
	for i := range cells {
		cells[i] = byte(i + 1)
	}
	buf.SetCells(cells)
	require.NoError(t, driver.WriteCells(buf))

	// Only the first chunk goes out immediately; the rest defer
	// behind it and drain as acknowledgements come back.
	require.Len(t, transport.Writes(), 1)
	pump(t, driver)

	writes := transport.Writes()
	require.Len(t, writes, 3)
	for i, expect := range []struct{ count, offset byte }{{8, 0}, {8, 8}, {4, 16}} {
		p, err := parsePacket(writes[i])
		require.NoError(t, err)
		assert.Equal(t, pktWrite, p.Type)
		assert.Equal(t, expect.count, p.Args[0])
		assert.Equal(t, expect.offset, p.Args[1])
	}

	_, _, changed := buf.ChangedRange()
	assert.False(t, changed)
}

func TestTimeoutNAKShrinksPayloadLimit(t *testing.T) {
	t.Parallel()

	driver, transport := connectModel(t, "Focus 40", nakPacket(nakTimeout))
	transport.Reset()

	buf := braille.NewDisplayBuffer(40, 1)
	buf.SetCells([]byte{0x01, 0x02})
	require.NoError(t, driver.WriteCells(buf))
	pump(t, driver)

	assert.Equal(t, 39, driver.payloadLimit)
	_, _, changed := buf.ChangedRange()
	assert.True(t, changed, "refused cells stay dirty")
}

func TestChecksumNAKKeepsPayloadLimit(t *testing.T) {
	t.Parallel()

	driver, transport := connectModel(t, "Focus 40", nakPacket(nakChecksum))
	transport.Reset()

	buf := braille.NewDisplayBuffer(40, 1)
	buf.SetCells([]byte{0x01})
	require.NoError(t, driver.WriteCells(buf))
	pump(t, driver)

	assert.Equal(t, 40, driver.payloadLimit)
}

func TestUnexpectedAckIgnored(t *testing.T) {
	t.Parallel()

	driver, transport := connectModel(t, "Focus 40", ackPacket())
	transport.Feed(ackPacket())

	_, err := driver.ReadCommand()
	assert.ErrorIs(t, err, braille.ErrNoCommand)
	assert.False(t, driver.engine.RestartNeeded())
}

func TestPanelKeyCommands(t *testing.T) {
	t.Parallel()

	driver, transport := connectModel(t, "Focus 40", ackPacket())
	transport.Feed(keyPacket(0, 1<<panelKeyPanRight, 0))
	transport.Feed(keyPacket(0, 0, 0))
	transport.Feed(keyPacket(0, 1<<panelKeySpace, 0))
	transport.Feed(keyPacket(0, 0, 0))

	commands := pump(t, driver)
	require.Len(t, commands, 2)
	assert.Equal(t, braille.CmdPanRight, commands[0].Type)
	assert.Equal(t, braille.CmdHome, commands[1].Type)
}

func TestPerkinsChord(t *testing.T) {
	t.Parallel()

	driver, transport := connectModel(t, "Focus 40", ackPacket())

	// Dots 1+4 held together, then released. One command, on the
	// final release.
	transport.Feed(keyPacket(0x01, 0, 0))
	transport.Feed(keyPacket(0x09, 0, 0))
	transport.Feed(keyPacket(0x00, 0, 0))

	commands := pump(t, driver)
	require.Len(t, commands, 1)
	assert.Equal(t, braille.Command{Type: braille.CmdPerkins, Arg: 0x09}, commands[0])
}

func TestExtendedKeyCommands(t *testing.T) {
	t.Parallel()

	driver, transport := connectModel(t, "Focus 40", ackPacket())

	ext, err := buildPacket(pktExtKey, 0, 0, 0, []byte{0x01})
	require.NoError(t, err)
	transport.Feed(ext)

	commands := pump(t, driver)
	require.Len(t, commands, 1)
	assert.Equal(t, braille.Command{Type: braille.CmdFunctionKey, Arg: 9}, commands[0])
}

func TestButtonRouting(t *testing.T) {
	t.Parallel()

	// Focus 44 has two hotkeys left of the routing row.
	driver, transport := connectModel(t, "Focus 44", ackPacket())
	transport.Feed([]byte{pktButton, 0, 1, 0})
	transport.Feed([]byte{pktButton, 0, 0, 0})
	transport.Feed([]byte{pktButton, 7, 1, 0})
	transport.Feed([]byte{pktButton, 7, 0, 0})
	transport.Feed([]byte{pktButton, 46, 1, 0})

	commands := pump(t, driver)
	require.Len(t, commands, 3)
	assert.Equal(t, braille.CmdPanLeft, commands[0].Type)
	assert.Equal(t, braille.Command{Type: braille.CmdRouteCursor, Arg: 5}, commands[1])
	assert.Equal(t, braille.CmdPanRight, commands[2].Type)
}

func TestWheelMotion(t *testing.T) {
	t.Parallel()

	driver, transport := connectModel(t, "Focus 40", ackPacket())
	transport.Feed([]byte{pktWheel, 0x0B, 0, 0}) // 3 clicks down
	transport.Feed([]byte{pktWheel, 0x02, 0, 0}) // 2 clicks up

	commands := pump(t, driver)
	require.Len(t, commands, 5)
	for _, cmd := range commands[:3] {
		assert.Equal(t, braille.CmdLineDown, cmd.Type)
	}
	for _, cmd := range commands[3:] {
		assert.Equal(t, braille.CmdLineUp, cmd.Type)
	}
}

func TestConfigureDefersBehindWrite(t *testing.T) {
	t.Parallel()

	driver, transport := connectModel(t, "Focus 40", nil)
	transport.Reset()

	buf := braille.NewDisplayBuffer(40, 1)
	buf.SetCells([]byte{0x01})
	require.NoError(t, driver.WriteCells(buf))
	require.NoError(t, driver.Configure(0x02))

	assert.True(t, driver.engine.Awaiting())
	assert.Equal(t, 1, driver.engine.QueueLen())
	require.Len(t, transport.Writes(), 1)
}
