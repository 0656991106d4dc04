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
	"bytes"
	"errors"
	"fmt"
	"time"

	braille "github.com/tactiledev/go-braille"
	"github.com/tactiledev/go-braille/internal/frame"
)

// probeTimeout is the window for the INFO answer to the identification
// query.
const probeTimeout = 1000 * time.Millisecond

// ackDiscriminator is the single discriminator for all acknowledged
// requests. ACK and NAK packets carry no correlation with the request;
// the protocol is strictly single in-flight.
const ackDiscriminator uint16 = 0

// Panel key bits within the second byte of the KEY mask
const (
	panelKeyPanLeft = iota
	panelKeyPanRight
	panelKeyLeftRockerUp
	panelKeyLeftRockerDown
	panelKeyRightRockerUp
	panelKeyRightRockerDown
	panelKeySpace
)

// modelEntry is the static identity of one display model. The INFO
// answer names the model; everything else comes from this table.
type modelEntry struct {
	cells      int
	hotkeyBase int
	perkins    bool
}

var models = map[string]modelEntry{
	"Focus 40":      {cells: 40, hotkeyBase: 0, perkins: true},
	"Focus 44":      {cells: 44, hotkeyBase: 2, perkins: true},
	"Focus 70":      {cells: 70, hotkeyBase: 2, perkins: true},
	"Focus 80":      {cells: 80, hotkeyBase: 0, perkins: true},
	"Focus 84":      {cells: 84, hotkeyBase: 2, perkins: true},
	"pm display 20": {cells: 20, hotkeyBase: 1},
	"pm display 40": {cells: 40, hotkeyBase: 1},
}

// Driver speaks the Focus/PAC Mate packet protocol. Like the rest of
// the family it runs cooperatively on the caller's goroutine.
type Driver struct {
	transport    braille.Transport
	reader       *frame.Reader
	engine       *braille.AckEngine
	caps         *braille.Capabilities
	keys         *braille.KeyGroupState
	commands     []braille.Command
	model        modelEntry
	port         string
	payloadLimit int
	chord        byte
	fnBits       byte
	extBits      byte
	chording     bool
}

// New returns an unconnected Focus driver
func New() *Driver {
	return &Driver{
		keys: braille.NewKeyGroupState(),
	}
}

// Name returns the protocol name
func (d *Driver) Name() string {
	return "focus"
}

// Connect sends the identification query and builds capabilities from
// the INFO answer. Unrecognized models fail the probe; guessing cell
// counts writes garbage to the wrong cells.
func (d *Driver) Connect(t braille.Transport) (*braille.Capabilities, error) {
	d.transport = t
	d.port = string(t.Type())
	d.reader = frame.NewReader(t, verifyPacket, maxPacketSize, d.port)
	d.engine = braille.NewAckEngine("focus", func(packet []byte) error {
		if _, err := t.Write(packet); err != nil {
			return braille.NewChannelError("write", d.port, err, braille.ErrorTypeTransient)
		}
		return nil
	})

	info, err := d.probeInfo()
	if err != nil {
		return nil, err
	}
	manufacturer := fixedString(info.Payload, 0, infoManufacturerSize)
	modelName := fixedString(info.Payload, infoManufacturerSize, infoModelSize)
	firmware := fixedString(info.Payload, infoManufacturerSize+infoModelSize, infoFirmwareSize)

	entry, ok := models[modelName]
	if !ok {
		return nil, fmt.Errorf("%w: unrecognized model %q", braille.ErrProbeFailed, modelName)
	}
	d.model = entry
	d.payloadLimit = entry.cells

	caps := &braille.Capabilities{
		Model:           modelName,
		FirmwareVersion: firmware,
		TextColumns:     entry.cells,
		TextRows:        1,
		DotsPerCell:     8,
		HasTextDisplay:  true,
		HasRoutingKeys:  true,
		HasPerkinsKeys:  entry.perkins,
	}
	d.caps = caps
	braille.Debugf("focus: connected to %s %q firmware %q, %d cells",
		manufacturer, modelName, firmware, entry.cells)
	return caps, nil
}

// probeInfo issues the query and waits for the INFO packet, letting
// unrelated traffic through the normal dispatch on the side.
func (d *Driver) probeInfo() (*Packet, error) {
	query, err := buildPacket(pktQuery, 0, 0, 0, nil)
	if err != nil {
		return nil, err
	}
	if _, err := d.transport.Write(query); err != nil {
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
			continue
		}
		if p.Type == pktInfo {
			if len(p.Payload) < infoPayloadSize {
				return nil, fmt.Errorf("%w: short INFO payload (%d bytes)",
					braille.ErrProbeFailed, len(p.Payload))
			}
			return p, nil
		}
		d.handlePacket(p)
	}
	return nil, fmt.Errorf("%w: no INFO answer", braille.ErrProbeFailed)
}

// fixedString extracts a NUL padded fixed-width field
func fixedString(payload []byte, offset, size int) string {
	field := payload[offset : offset+size]
	if i := bytes.IndexByte(field, 0); i >= 0 {
		field = field[:i]
	}
	return string(bytes.TrimRight(field, " "))
}

// WriteCells sends the changed cell range, split into chunks no larger
// than the current payload limit. Each chunk is acknowledged
// separately and marks only its own range written.
func (d *Driver) WriteCells(buf *braille.DisplayBuffer) error {
	if d.engine == nil {
		return braille.ErrNotConnected
	}
	d.engine.CheckDeadline(time.Now())
	if d.engine.RestartNeeded() {
		return braille.ErrRestartRequired
	}

	from, to, changed := buf.ChangedRange()
	if !changed {
		return nil
	}

	// The range is marked written only once every chunk confirms; a
	// single refusal leaves the whole range dirty for the next write.
	remaining := (to - from + d.payloadLimit - 1) / d.payloadLimit
	failed := false
	for start := from; start < to; {
		end := start + d.payloadLimit
		if end > to {
			end = to
		}
		cells := append([]byte(nil), buf.Desired(start, end)...)
		packet, err := buildPacket(pktWrite, 0, byte(start), 0, cells)
		if err != nil {
			return err
		}
		name := fmt.Sprintf("write %d..%d", start, end)
		err = d.engine.Send(name, packet, ackDiscriminator, func(ok bool) {
			remaining--
			if !ok {
				failed = true
			}
			if remaining == 0 && !failed {
				buf.MarkWritten(from, to)
			}
		})
		if err != nil {
			return err
		}
		start = end
	}
	return nil
}

// ReadCommand drains pending input and returns the first decoded
// command, checking the acknowledgement deadline on the way.
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
			braille.Debugf("focus: discarding undecodable packet: %v", err)
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

// Configure sends a configuration packet through the acknowledgement
// engine; it defers behind any write in flight.
func (d *Driver) Configure(flags byte) error {
	if d.engine == nil {
		return braille.ErrNotConnected
	}
	packet, err := buildPacket(pktConfig, flags, 0, 0, nil)
	if err != nil {
		return err
	}
	return d.engine.Send("config", packet, ackDiscriminator, nil)
}

// Beep asks the display to sound its beeper
func (d *Driver) Beep() error {
	if d.engine == nil {
		return braille.ErrNotConnected
	}
	packet, err := buildPacket(pktBeep, 0, 0, 0, nil)
	if err != nil {
		return err
	}
	return d.engine.Send("beep", packet, ackDiscriminator, nil)
}

// handlePacket dispatches one decoded packet
func (d *Driver) handlePacket(p *Packet) {
	switch p.Type {
	case pktAck:
		if !d.engine.Resolve(ackDiscriminator, true) {
			braille.Debugf("focus: unexpected acknowledgement")
		}

	case pktNAK:
		reason := p.Args[0]
		braille.Debugf("focus: request refused: %s", nakMeaning(reason))
		if timeoutClassNAK(reason) {
			d.shrinkPayloadLimit()
		}
		if !d.engine.Resolve(ackDiscriminator, false) {
			braille.Debugf("focus: unexpected negative acknowledgement")
		}

	case pktKey:
		d.handleKeyMask(p.Args)
	case pktExtKey:
		if len(p.Payload) > 0 {
			d.extBits = p.Payload[0]
			d.updateFunctionKeys()
		}
	case pktButton:
		d.handleButton(p.Args)
	case pktWheel:
		d.handleWheel(p.Args[0])

	case pktHVAdj:
		braille.Debugf("focus: ignoring height adjustment report")

	default:
		braille.Debugf("focus: %v: packet type %02X", braille.ErrUnknownPacket, p.Type)
	}
}

// handleKeyMask splits the 24-bit key mask into its groups: dot keys,
// panel keys, and the first function key byte.
func (d *Driver) handleKeyMask(args [3]byte) {
	d.handleDotKeys(args[0])
	d.handlePanelKeys(args[1])
	d.fnBits = args[2]
	d.updateFunctionKeys()
}

// handleDotKeys accumulates a chord while any dot key is held and
// emits it when the last one goes up.
func (d *Driver) handleDotKeys(mask byte) {
	for _, event := range d.keys.Update(braille.KeyGroupPerkins, []byte{mask}) {
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

func (d *Driver) handlePanelKeys(mask byte) {
	for _, event := range d.keys.Update(braille.KeyGroupScroll, []byte{mask}) {
		if !event.Pressed {
			continue
		}
		switch event.Number {
		case panelKeyPanLeft:
			d.queueCommand(braille.Command{Type: braille.CmdPanLeft})
		case panelKeyPanRight:
			d.queueCommand(braille.Command{Type: braille.CmdPanRight})
		case panelKeyLeftRockerUp, panelKeyRightRockerUp:
			d.queueCommand(braille.Command{Type: braille.CmdLineUp})
		case panelKeyLeftRockerDown, panelKeyRightRockerDown:
			d.queueCommand(braille.Command{Type: braille.CmdLineDown})
		case panelKeySpace:
			d.queueCommand(braille.Command{Type: braille.CmdHome})
		default:
			braille.Debugf("focus: unassigned panel key %d", event.Number)
		}
	}
}

func (d *Driver) updateFunctionKeys() {
	for _, event := range d.keys.Update(braille.KeyGroupFunction, []byte{d.fnBits, d.extBits}) {
		if event.Pressed {
			d.queueCommand(braille.Command{Type: braille.CmdFunctionKey, Arg: event.Number + 1})
		}
	}
}

// handleButton translates the routing/hotkey row. Button numbers below
// the routing base act as a left pan, numbers past the cells as a
// right pan; everything between routes the cursor.
func (d *Driver) handleButton(args [3]byte) {
	number, pressed := int(args[0]), args[1] != 0
	if !pressed {
		return
	}
	cell := number - d.model.hotkeyBase
	switch {
	case cell < 0:
		d.queueCommand(braille.Command{Type: braille.CmdPanLeft})
	case cell >= d.model.cells:
		d.queueCommand(braille.Command{Type: braille.CmdPanRight})
	default:
		d.queueCommand(braille.Command{Type: braille.CmdRouteCursor, Arg: cell})
	}
}

// handleWheel turns wheel motion into repeated line movements. The
// argument packs a 3-bit count, a direction bit, and the wheel number.
func (d *Driver) handleWheel(arg byte) {
	count := int(arg & 0x07)
	down := arg&0x08 != 0
	for i := 0; i < count; i++ {
		if down {
			d.queueCommand(braille.Command{Type: braille.CmdLineDown})
		} else {
			d.queueCommand(braille.Command{Type: braille.CmdLineUp})
		}
	}
}

// shrinkPayloadLimit backs the write chunk size off by one cell, with
// a floor of one. Some firmware revisions NAK large writes under load
// and settle once the chunks shrink.
func (d *Driver) shrinkPayloadLimit() {
	if d.payloadLimit > 1 {
		d.payloadLimit--
		braille.Debugf("focus: payload limit reduced to %d", d.payloadLimit)
	}
}

func (d *Driver) popCommand() (braille.Command, bool) {
	if len(d.commands) == 0 {
		return braille.Command{}, false
	}
	cmd := d.commands[0]
	d.commands = d.commands[1:]
	return cmd, true
}

func (d *Driver) queueCommand(cmd braille.Command) {
	braille.Debugf("focus: queueing command %v", cmd)
	d.commands = append(d.commands, cmd)
}

// Close drops pending acknowledgement state without invoking handlers
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
