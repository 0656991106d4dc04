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

// Package brailletest provides test utilities including a wire-level
// DotPad simulator.
//
// VirtualDotPad implements braille.Transport and answers the pad
// protocol at the byte level: identification requests, display line
// acknowledgements, and key notifications on demand. Fault injection
// hooks cover the failure paths a real pad produces: corrupted
// checksums, dropped acknowledgements, and refused display lines.
//
// The simulator deliberately carries its own copy of the wire
// constants rather than importing the driver package, so an encoding
// mistake on either side shows up as a test failure instead of
// cancelling out.
package brailletest

import (
	"encoding/binary"
	"time"

	braille "github.com/tactiledev/go-braille"
	"github.com/tactiledev/go-braille/internal/syncutil"
)

// DotPad wire format
const (
	sync1        = 0xAA
	sync2        = 0x55
	checksumSeed = 0xA5
	headerSize   = 4
	envelopeSize = 5
)

// Command codes
const (
	cmdReqFirmwareVersion uint16 = 0x0000
	cmdRspFirmwareVersion uint16 = 0x0001
	cmdReqDeviceName      uint16 = 0x0100
	cmdRspDeviceName      uint16 = 0x0101
	cmdReqBoardInfo       uint16 = 0x0110
	cmdRspBoardInfo       uint16 = 0x0111
	cmdReqDisplayLine     uint16 = 0x0200
	cmdRspDisplayLine     uint16 = 0x0201
	cmdNtfKeysScroll      uint16 = 0x0302
	cmdNtfKeysPerkins     uint16 = 0x0312
	cmdNtfKeysRouting     uint16 = 0x0322
	cmdNtfKeysFunction    uint16 = 0x0332
)

// Display line result codes
const (
	ResultOK       byte = 0x00
	ResultChecksum byte = 0x01
	ResultBusy     byte = 0x04
)

// Board information feature bits
const (
	FeatureTextDisplay    = 0x01
	FeatureGraphicDisplay = 0x02
	FeatureFunctionKeys   = 0x04
	FeaturePerkinsKeys    = 0x08
	FeatureRoutingKeys    = 0x10
)

// Board describes the identity the virtual pad reports
type Board struct {
	Firmware     string
	Name         string
	Features     byte
	TextColumns  byte
	TextRows     byte
	GraphicCols  byte
	GraphicRows  byte
	DotsPerCell  byte
	RefreshTime  byte
	FunctionKeys byte
}

// TextPad20 is a plain one line, twenty cell text display
func TextPad20() Board {
	return Board{
		Firmware:    "1.0.0",
		Name:        "Virtual Pad 20",
		Features:    FeatureTextDisplay | FeatureRoutingKeys | FeaturePerkinsKeys,
		TextColumns: 20,
		TextRows:    1,
		DotsPerCell: 8,
	}
}

// VirtualDotPad simulates a pad behind a braille.Transport
type VirtualDotPad struct {
	mu         syncutil.Mutex
	board      Board
	input      []byte // bytes waiting for the host
	received   []byte // bytes written by the host, not yet framed
	lines      map[byte][]byte
	writeErr   error
	nextResult byte
	corrupt    bool
	dropAck    bool
	mute       bool
	closed     bool
}

// NewVirtualDotPad creates a simulator reporting the given board
func NewVirtualDotPad(board Board) *VirtualDotPad {
	return &VirtualDotPad{
		board:      board,
		lines:      make(map[byte][]byte),
		nextResult: ResultOK,
	}
}

// InjectChecksumError corrupts the checksum of the next response
func (v *VirtualDotPad) InjectChecksumError() {
	v.mu.Lock()
	v.corrupt = true
	v.mu.Unlock()
}

// DropNextAck swallows the next display line acknowledgement
func (v *VirtualDotPad) DropNextAck() {
	v.mu.Lock()
	v.dropAck = true
	v.mu.Unlock()
}

// Mute silences the pad entirely; every request goes unanswered
func (v *VirtualDotPad) Mute(mute bool) {
	v.mu.Lock()
	v.mute = mute
	v.mu.Unlock()
}

// RefuseNextLine makes the next display line answer carry code
func (v *VirtualDotPad) RefuseNextLine(code byte) {
	v.mu.Lock()
	v.nextResult = code
	v.mu.Unlock()
}

// SetWriteError makes host writes fail with err
func (v *VirtualDotPad) SetWriteError(err error) {
	v.mu.Lock()
	v.writeErr = err
	v.mu.Unlock()
}

// Line returns the cells last written to a display row
func (v *VirtualDotPad) Line(row byte) []byte {
	v.mu.Lock()
	defer v.mu.Unlock()
	return append([]byte(nil), v.lines[row]...)
}

// PressRouting emits a routing key press-and-release for one cell
func (v *VirtualDotPad) PressRouting(cell int) {
	mask := make([]byte, cell/8+1)
	mask[cell/8] = reverseByte(1 << uint(cell%8))
	v.notify(cmdNtfKeysRouting, mask)
	v.notify(cmdNtfKeysRouting, make([]byte, len(mask)))
}

// PressScroll emits a scroll key press-and-release
func (v *VirtualDotPad) PressScroll(key int) {
	v.notify(cmdNtfKeysScroll, []byte{reverseByte(1 << uint(key))})
	v.notify(cmdNtfKeysScroll, []byte{0})
}

// ChordPerkins presses the dot keys in mask together and releases them
func (v *VirtualDotPad) ChordPerkins(mask byte) {
	v.notify(cmdNtfKeysPerkins, []byte{reverseByte(mask)})
	v.notify(cmdNtfKeysPerkins, []byte{0})
}

func (v *VirtualDotPad) notify(cmd uint16, data []byte) {
	v.mu.Lock()
	v.input = append(v.input, v.build(0, cmd, 0, data)...)
	v.mu.Unlock()
}

// ReadByte implements braille.Transport. Like hardware behind a
// drained FIFO it reports no input immediately rather than sleeping.
func (v *VirtualDotPad) ReadByte(_ time.Duration) (byte, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.closed {
		return 0, braille.ErrChannelClosed
	}
	if len(v.input) == 0 {
		return 0, braille.ErrNoInput
	}
	b := v.input[0]
	v.input = v.input[1:]
	return b, nil
}

// AwaitInput implements braille.Transport
func (v *VirtualDotPad) AwaitInput(_ time.Duration) bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	return !v.closed && len(v.input) > 0
}

// Write implements braille.Transport, framing the host bytes and
// answering complete requests.
func (v *VirtualDotPad) Write(p []byte) (int, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.closed {
		return 0, braille.ErrChannelClosed
	}
	if v.writeErr != nil {
		return 0, v.writeErr
	}

	v.received = append(v.received, p...)
	v.processReceived()
	return len(p), nil
}

// Close implements braille.Transport
func (v *VirtualDotPad) Close() error {
	v.mu.Lock()
	v.closed = true
	v.mu.Unlock()
	return nil
}

// Type implements braille.Transport
func (*VirtualDotPad) Type() braille.TransportType {
	return braille.TransportMock
}

var _ braille.Transport = (*VirtualDotPad)(nil)

// processReceived frames and answers buffered host bytes. Called with
// the lock held.
func (v *VirtualDotPad) processReceived() {
	for {
		start := 0
		for start < len(v.received) && v.received[start] != sync1 {
			start++
		}
		v.received = v.received[start:]
		if len(v.received) < headerSize {
			return
		}

		length := int(binary.BigEndian.Uint16(v.received[2:4]))
		total := headerSize + length
		if len(v.received) < total {
			return
		}
		packet := v.received[:total]
		v.received = append([]byte(nil), v.received[total:]...)
		v.handleRequest(packet)
	}
}

func (v *VirtualDotPad) handleRequest(packet []byte) {
	if v.mute {
		return
	}
	destination := packet[4]
	command := binary.BigEndian.Uint16(packet[5:7])
	sequence := packet[7]
	data := packet[8 : len(packet)-1]

	switch command {
	case cmdReqFirmwareVersion:
		v.respond(0, cmdRspFirmwareVersion, sequence, []byte(v.board.Firmware))
	case cmdReqDeviceName:
		v.respond(0, cmdRspDeviceName, sequence, []byte(v.board.Name))
	case cmdReqBoardInfo:
		b := v.board
		v.respond(0, cmdRspBoardInfo, sequence, []byte{
			b.Features, b.TextColumns, b.TextRows, b.GraphicCols,
			b.GraphicRows, b.DotsPerCell, b.RefreshTime, b.FunctionKeys,
		})
	case cmdReqDisplayLine:
		if v.dropAck {
			v.dropAck = false
			return
		}
		result := v.nextResult
		v.nextResult = ResultOK
		if result == ResultOK {
			v.lines[destination] = append([]byte(nil), data...)
		}
		v.respond(destination, cmdRspDisplayLine, sequence, []byte{result})
	}
}

func (v *VirtualDotPad) respond(destination byte, cmd uint16, sequence byte, data []byte) {
	packet := v.build(destination, cmd, sequence, data)
	if v.corrupt {
		v.corrupt = false
		packet[len(packet)-1] ^= 0xFF
	}
	v.input = append(v.input, packet...)
}

func (v *VirtualDotPad) build(destination byte, cmd uint16, sequence byte, data []byte) []byte {
	length := envelopeSize + len(data)
	packet := make([]byte, headerSize+length)
	packet[0] = sync1
	packet[1] = sync2
	binary.BigEndian.PutUint16(packet[2:4], uint16(length))
	packet[4] = destination
	binary.BigEndian.PutUint16(packet[5:7], cmd)
	packet[7] = sequence

	copy(packet[8:], data)
	checksum := byte(checksumSeed)
	for _, b := range packet[4 : len(packet)-1] {
		checksum ^= b
	}
	packet[len(packet)-1] = checksum
	return packet
}

func reverseByte(b byte) byte {
	var out byte
	for i := 0; i < 8; i++ {
		if b&(1<<uint(i)) != 0 {
			out |= 1 << uint(7-i)
		}
	}
	return out
}
