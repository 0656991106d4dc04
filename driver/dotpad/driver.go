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
	"errors"
	"fmt"
	"time"

	braille "github.com/tactiledev/go-braille"
	"github.com/tactiledev/go-braille/internal/frame"
)

// probeTimeout is the per-request window during the identification
// handshake. The retry policy around Connect handles repetition.
const probeTimeout = 1000 * time.Millisecond

// Scroll key positions after bit reversal
const (
	scrollKeyPanLeft = iota
	scrollKeyPanRight
	scrollKeyLineUp
	scrollKeyLineDown
)

// Driver speaks the DotPad packet protocol. Create one with New, hand
// it to braille.Connect, and use it through the Display facade.
//
// Everything runs cooperatively on the caller's goroutine; there is no
// internal locking and no timer goroutine. Deadlines are checked from
// ReadCommand.
type Driver struct {
	transport braille.Transport
	reader    *frame.Reader
	engine    *braille.AckEngine
	geometry  *Geometry
	caps      *braille.Capabilities
	keys      *braille.KeyGroupState
	commands  []braille.Command
	port      string
	sequence  byte
	chord     byte
	chording  bool
}

// New returns an unconnected DotPad driver
func New() *Driver {
	return &Driver{
		keys: braille.NewKeyGroupState(),
	}
}

// Name returns the protocol name
func (d *Driver) Name() string {
	return "dotpad"
}

// Connect runs the identification handshake: firmware version, device
// name, then board information. The board answer fixes the cell
// geometry and the acknowledgement deadline for the session.
func (d *Driver) Connect(t braille.Transport) (*braille.Capabilities, error) {
	d.transport = t
	d.port = string(t.Type())
	d.reader = frame.NewReader(t, verifyPacket, maxPacketLength, d.port)
	d.engine = braille.NewAckEngine("dotpad", func(packet []byte) error {
		if _, err := t.Write(packet); err != nil {
			return braille.NewChannelError("write", d.port, err, braille.ErrorTypeTransient)
		}
		return nil
	})

	firmware, err := d.probe(cmdReqFirmwareVersion, cmdRspFirmwareVersion)
	if err != nil {
		return nil, err
	}
	name, err := d.probe(cmdReqDeviceName, cmdRspDeviceName)
	if err != nil {
		return nil, err
	}
	board, err := d.probe(cmdReqBoardInfo, cmdRspBoardInfo)
	if err != nil {
		return nil, err
	}

	caps, err := d.applyBoardInfo(board.Data)
	if err != nil {
		return nil, err
	}
	caps.FirmwareVersion = string(firmware.Data)
	caps.Model = string(name.Data)

	d.caps = caps
	braille.Debugf("dotpad: connected to %q firmware %q, %dx%d cells",
		caps.Model, caps.FirmwareVersion, caps.TextColumns, caps.TextRows)
	return caps, nil
}

// probe sends one identification request and waits for its answer,
// dispatching unrelated traffic (early key packets, mostly) on the
// side.
func (d *Driver) probe(request, response uint16) (*Packet, error) {
	packet, err := buildPacket(0, request, d.nextSequence(), nil)
	if err != nil {
		return nil, err
	}
	if _, err := d.transport.Write(packet); err != nil {
		return nil, braille.NewChannelError("probe", d.port, err, braille.ErrorTypeTransient)
	}

	deadline := time.Now().Add(probeTimeout)
	for time.Now().Before(deadline) {
		raw, err := d.reader.ReadPacket()
		if err != nil {
			if errors.Is(err, braille.ErrNoInput) {
				continue
			}
			return nil, err
		}
		p, err := parsePacket(raw)
		if err != nil {
			braille.Debugf("dotpad: discarding undecodable packet during probe: %v", err)
			continue
		}
		if p.Command == response {
			return p, nil
		}
		d.handlePacket(p)
	}
	return nil, fmt.Errorf("%w: no answer to command %04X", braille.ErrProbeFailed, request)
}

// applyBoardInfo turns the 8-byte board answer into capabilities and
// builds the graphic geometry when the board carries a pin matrix.
func (d *Driver) applyBoardInfo(data []byte) (*braille.Capabilities, error) {
	if len(data) < 8 {
		return nil, fmt.Errorf("%w: board information has %d bytes", braille.ErrPacketCorrupted, len(data))
	}

	features := data[0]
	caps := &braille.Capabilities{
		TextColumns:     int(data[1]),
		TextRows:        int(data[2]),
		DotsPerCell:     int(data[5]),
		FunctionKeys:    int(data[7]),
		RefreshTime:     time.Duration(data[6]) * 10 * time.Millisecond,
		HasTextDisplay:  features&hasTextDisplay != 0,
		HasGraphic:      features&hasGraphicDisplay != 0,
		HasFunctionKeys: features&hasFunctionKeys != 0,
		HasPerkinsKeys:  features&hasPerkinsKeys != 0,
		HasRoutingKeys:  features&hasRoutingKeys != 0,
	}
	if caps.HasFunctionKeys && caps.FunctionKeys == 0 {
		caps.FunctionKeys = defaultFunctionKeys
	}
	if !caps.HasTextDisplay && !caps.HasGraphic {
		return nil, fmt.Errorf("%w: board reports no display surface",
			braille.ErrCapabilityMissing)
	}

	if caps.HasGraphic {
		d.geometry = NewGeometry(int(data[3]), int(data[4]), caps.DotsPerCell, 1, 1)
		caps.DotsPerCell = d.geometry.DotsPerCell()
		if !caps.HasTextDisplay {
			// Pure pin-matrix pads expose the logical cell grid as
			// the text surface.
			caps.TextColumns = d.geometry.InternalColumns()
			caps.TextRows = d.geometry.InternalRows()
		}
	}
	if caps.TextColumns < 1 || caps.TextRows < 1 {
		return nil, fmt.Errorf("%w: board reports %dx%d cells",
			braille.ErrProbeFailed, caps.TextColumns, caps.TextRows)
	}

	if caps.RefreshTime > 0 && 2*caps.RefreshTime > braille.DefaultAckTimeout {
		d.engine.SetTimeout(2 * caps.RefreshTime)
	}
	return caps, nil
}

// WriteCells sends the changed part of buf, row by row. Each row goes
// out as one full-row packet through the acknowledgement engine;
// MarkWritten runs only when the row is confirmed.
func (d *Driver) WriteCells(buf *braille.DisplayBuffer) error {
	if d.engine == nil {
		return braille.ErrNotConnected
	}
	d.engine.CheckDeadline(time.Now())
	if d.engine.RestartNeeded() {
		return braille.ErrRestartRequired
	}

	if d.caps.HasTextDisplay {
		return d.writeTextRows(buf)
	}
	return d.writeGraphic(buf)
}

// writeTextRows queues one display-line request per changed row. The
// device wants entire rows, so the per-row delta only gates whether a
// row is sent at all.
func (d *Driver) writeTextRows(buf *braille.DisplayBuffer) error {
	columns := buf.Columns()
	for row := 0; row < buf.Rows(); row++ {
		_, _, changed := buf.RowChangedRange(row)
		if !changed {
			continue
		}
		start := row * columns
		end := start + columns
		cells := append([]byte(nil), buf.Desired(start, end)...)

		if err := d.sendRow(byte(row), cells, func(ok bool) {
			if ok {
				buf.MarkWritten(start, end)
			}
		}); err != nil {
			return err
		}
	}
	return nil
}

// writeGraphic translates the changed logical cells into the pin image
// and queues every dirty pin row. The logical range is marked written
// only after all queued rows confirm.
func (d *Driver) writeGraphic(buf *braille.DisplayBuffer) error {
	from, to, changed := buf.ChangedRange()
	if !changed {
		return nil
	}
	desired := buf.Desired(from, to)
	for i, pattern := range desired {
		d.geometry.PutCell(from+i, pattern)
	}

	rows := d.geometry.DirtyRows()
	if len(rows) == 0 {
		// Nothing moved a pin; the logical delta was cosmetic.
		buf.MarkWritten(from, to)
		return nil
	}
	remaining := len(rows)
	failed := false
	for _, row := range rows {
		cells := append([]byte(nil), d.geometry.RowBytes(row)...)
		err := d.sendRow(byte(row), cells, func(ok bool) {
			remaining--
			if ok {
				d.geometry.ClearDirty(row)
			} else {
				failed = true
			}
			if remaining == 0 && !failed {
				buf.MarkWritten(from, to)
			}
		})
		if err != nil {
			return err
		}
	}
	return nil
}

// sendRow issues one display-line request. The row number rides in the
// destination byte and doubles as the acknowledgement discriminator.
func (d *Driver) sendRow(row byte, cells []byte, handler braille.AckHandler) error {
	packet, err := buildPacket(row, cmdReqDisplayLine, d.nextSequence(), cells)
	if err != nil {
		return err
	}
	name := fmt.Sprintf("display-line %d", row)
	return d.engine.Send(name, packet, uint16(row), handler)
}

// ReadCommand drains pending input and returns the first decoded
// command. It is the driver's heartbeat: acknowledgement deadlines are
// checked here even when no bytes arrived.
func (d *Driver) ReadCommand() (braille.Command, error) {
	if d.engine == nil {
		return braille.Command{}, braille.ErrNotConnected
	}
	d.engine.CheckDeadline(time.Now())
	if d.engine.RestartNeeded() {
		return braille.Command{}, braille.ErrRestartRequired
	}
	if cmd, ok := d.popCommand(); ok {
		return cmd, nil
	}

	for d.reader.Pending() {
		raw, err := d.reader.ReadPacket()
		if err != nil {
			if errors.Is(err, braille.ErrNoInput) {
				break
			}
			return braille.Command{}, err
		}
		p, err := parsePacket(raw)
		if err != nil {
			braille.Debugf("dotpad: discarding undecodable packet: %v", err)
			continue
		}
		d.handlePacket(p)
		if d.engine.RestartNeeded() {
			return braille.Command{}, braille.ErrRestartRequired
		}
	}

	if cmd, ok := d.popCommand(); ok {
		return cmd, nil
	}
	return braille.Command{}, braille.ErrNoCommand
}

func (d *Driver) popCommand() (braille.Command, bool) {
	if len(d.commands) == 0 {
		return braille.Command{}, false
	}
	cmd := d.commands[0]
	d.commands = d.commands[1:]
	return cmd, true
}

// handlePacket dispatches one decoded packet: acknowledgements feed
// the engine, key notifications feed the key state, everything else is
// logged and dropped.
func (d *Driver) handlePacket(p *Packet) {
	switch p.Command {
	case cmdRspDisplayLine:
		if len(p.Data) < 1 {
			braille.Debugf("dotpad: display-line response without result code")
			return
		}
		code := p.Data[0]
		ok := code == drcOK
		if !ok {
			braille.Debugf("dotpad: display-line %d refused: %s", p.Destination, displayResultMeaning(code))
		}
		if !d.engine.Resolve(uint16(p.Destination), ok) {
			braille.Debugf("dotpad: unsolicited display-line response for row %d", p.Destination)
		}

	case cmdNtfDisplayLine:
		// Device-initiated refresh report, informational only.
		braille.Debugf("dotpad: display refresh notification for row %d", p.Destination)

	case cmdNtfKeysScroll:
		d.handleScrollKeys(p.Data)
	case cmdNtfKeysPerkins:
		d.handlePerkinsKeys(p.Data)
	case cmdNtfKeysRouting:
		d.handleRoutingKeys(p.Data)
	case cmdNtfKeysFunction:
		d.handleFunctionKeys(p.Data)

	case cmdNtfError:
		code := byte(0)
		if len(p.Data) > 0 {
			code = p.Data[0]
		}
		braille.Debugf("dotpad: device error notification: %s", errorMeaning(code))

	default:
		braille.Debugf("dotpad: %v: command %04X", braille.ErrUnknownPacket, p.Command)
	}
}

// handleScrollKeys maps scroll key presses straight to pan and line
// commands. Releases carry no meaning for this group.
func (d *Driver) handleScrollKeys(data []byte) {
	for _, event := range d.keys.Update(braille.KeyGroupScroll, braille.ReverseBits(data)) {
		if !event.Pressed {
			continue
		}
		switch event.Number {
		case scrollKeyPanLeft:
			d.queueCommand(braille.Command{Type: braille.CmdPanLeft})
		case scrollKeyPanRight:
			d.queueCommand(braille.Command{Type: braille.CmdPanRight})
		case scrollKeyLineUp:
			d.queueCommand(braille.Command{Type: braille.CmdLineUp})
		case scrollKeyLineDown:
			d.queueCommand(braille.Command{Type: braille.CmdLineDown})
		default:
			braille.Debugf("dotpad: unassigned scroll key %d", event.Number)
		}
	}
}

// handlePerkinsKeys accumulates a chord while any dot key is held and
// emits it as one command when the last key goes up.
func (d *Driver) handlePerkinsKeys(data []byte) {
	for _, event := range d.keys.Update(braille.KeyGroupPerkins, braille.ReverseBits(data)) {
		if event.Pressed && event.Number < 8 {
			d.chord |= 1 << uint(event.Number)
			d.chording = true
		}
	}
	if d.chording && !d.keys.Pressed(braille.KeyGroupPerkins) {
		if d.chord != 0 {
			d.queueCommand(braille.Command{Type: braille.CmdPerkins, Arg: int(d.chord)})
		}
		d.chord = 0
		d.chording = false
	}
}

func (d *Driver) handleRoutingKeys(data []byte) {
	for _, event := range d.keys.Update(braille.KeyGroupRouting, braille.ReverseBits(data)) {
		if event.Pressed {
			d.queueCommand(braille.Command{Type: braille.CmdRouteCursor, Arg: event.Number})
		}
	}
}

func (d *Driver) handleFunctionKeys(data []byte) {
	for _, event := range d.keys.Update(braille.KeyGroupFunction, braille.ReverseBits(data)) {
		if event.Pressed {
			d.queueCommand(braille.Command{Type: braille.CmdFunctionKey, Arg: event.Number + 1})
		}
	}
}

func (d *Driver) queueCommand(cmd braille.Command) {
	braille.Debugf("dotpad: queueing command %v", cmd)
	d.commands = append(d.commands, cmd)
}

func (d *Driver) nextSequence() byte {
	s := d.sequence
	d.sequence++
	return s
}

// Close drops pending acknowledgement state without invoking handlers.
// The transport stays open; its owner closes it.
func (d *Driver) Close() error {
	if d.engine != nil {
		d.engine.Cancel()
	}
	d.keys.Reset()
	d.commands = nil
	d.chord = 0
	d.chording = false
	return nil
}

var _ braille.Driver = (*Driver)(nil)
