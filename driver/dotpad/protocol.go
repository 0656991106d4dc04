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

// Package dotpad implements the DotPad wire protocol: two sync bytes,
// a big-endian length, destination/command/sequence header, and an
// XOR checksum seeded with 0xA5 over everything after the length.
package dotpad

import (
	"encoding/binary"
	"fmt"

	braille "github.com/tactiledev/go-braille"
	"github.com/tactiledev/go-braille/internal/frame"
)

// Framing constants
const (
	sync1 = 0xAA
	sync2 = 0x55

	checksumSeed = 0xA5

	// headerSize covers both sync bytes and the length field
	headerSize = 4
	// envelopeSize is destination + command + sequence + checksum,
	// the non-data bytes counted by the length field
	envelopeSize = 5

	maxDataLength   = 81
	maxPacketLength = headerSize + envelopeSize + maxDataLength
)

// Command codes. Requests go to the device; responses and
// notifications come back.
const (
	cmdReqFirmwareVersion uint16 = 0x0000
	cmdRspFirmwareVersion uint16 = 0x0001
	cmdReqDeviceName      uint16 = 0x0100
	cmdRspDeviceName      uint16 = 0x0101
	cmdReqBoardInfo       uint16 = 0x0110
	cmdRspBoardInfo       uint16 = 0x0111
	cmdReqDisplayLine     uint16 = 0x0200
	cmdRspDisplayLine     uint16 = 0x0201
	cmdNtfDisplayLine     uint16 = 0x0202
	cmdNtfKeysScroll      uint16 = 0x0302
	cmdNtfKeysPerkins     uint16 = 0x0312
	cmdNtfKeysRouting     uint16 = 0x0322
	cmdNtfKeysFunction    uint16 = 0x0332
	cmdNtfError           uint16 = 0x9902
)

// Display-line response result codes
const (
	drcOK       = 0x00
	drcChecksum = 0x01
	drcLength   = 0x02
	drcSequence = 0x03
	drcBusy     = 0x04
	drcRow      = 0x05
)

// displayResultMeaning maps display-line result codes to readable text
func displayResultMeaning(code byte) string {
	meanings := map[byte]string{
		drcOK:       "success",
		drcChecksum: "incorrect checksum",
		drcLength:   "incorrect length",
		drcSequence: "unexpected sequence number",
		drcBusy:     "display busy",
		drcRow:      "row out of range",
	}
	if m, ok := meanings[code]; ok {
		return m
	}
	return "unknown result"
}

// Error-notification codes (command 0x9902)
const (
	errorChecksum = 0x01
	errorLength   = 0x02
	errorCommand  = 0x03
	errorTimeout  = 0x04
	errorBusy     = 0x05
	errorInternal = 0x06
)

// errorMeaning maps error-notification codes to readable text
func errorMeaning(code byte) string {
	meanings := map[byte]string{
		errorChecksum: "incorrect checksum",
		errorLength:   "incorrect length",
		errorCommand:  "unrecognized command",
		errorTimeout:  "internal timeout",
		errorBusy:     "controller busy",
		errorInternal: "internal failure",
	}
	if m, ok := meanings[code]; ok {
		return m
	}
	return "unknown error"
}

// Board information feature bits
const (
	hasTextDisplay    = 0x01
	hasGraphicDisplay = 0x02
	hasFunctionKeys   = 0x04
	hasPerkinsKeys    = 0x08
	hasRoutingKeys    = 0x10
)

// defaultFunctionKeys is assumed when a board reports function keys
// without a count.
const defaultFunctionKeys = 4

// expectedDataLength is the secondary per-command length check. A
// mismatch is logged but processing continues; firmware in the wild
// pads some responses. -1 means variable.
var expectedDataLength = map[uint16]int{
	cmdRspFirmwareVersion: -1,
	cmdRspDeviceName:      -1,
	cmdRspBoardInfo:       8,
	cmdRspDisplayLine:     1,
	cmdNtfDisplayLine:     1,
	cmdNtfKeysScroll:      1,
	cmdNtfKeysPerkins:     -1,
	cmdNtfKeysRouting:     -1,
	cmdNtfKeysFunction:    1,
	cmdNtfError:           1,
}

// Packet is one decoded DotPad packet
type Packet struct {
	Data        []byte
	Command     uint16
	Destination byte
	Sequence    byte
}

// buildPacket assembles a wire packet around cmd and data.
// destination selects the row for display writes; 0 addresses the
// whole device.
func buildPacket(destination byte, cmd uint16, sequence byte, data []byte) ([]byte, error) {
	if len(data) > maxDataLength {
		return nil, fmt.Errorf("%w: %d byte payload", braille.ErrInvalidParameter, len(data))
	}

	length := envelopeSize + len(data)
	packet := make([]byte, headerSize+length)
	packet[0] = sync1
	packet[1] = sync2
	binary.BigEndian.PutUint16(packet[2:4], uint16(length))
	packet[4] = destination
	binary.BigEndian.PutUint16(packet[5:7], cmd)
	packet[7] = sequence
	copy(packet[8:], data)
	// Checksum covers destination through the last data byte.
	packet[len(packet)-1] = frame.XorChecksum(checksumSeed, packet[4:len(packet)-1])
	return packet, nil
}

// parsePacket decodes a complete wire packet. The framer has already
// judged the envelope, so only the field split happens here.
func parsePacket(raw []byte) (*Packet, error) {
	if len(raw) < headerSize+envelopeSize {
		return nil, fmt.Errorf("%w: %d bytes", braille.ErrPacketCorrupted, len(raw))
	}
	p := &Packet{
		Destination: raw[4],
		Command:     binary.BigEndian.Uint16(raw[5:7]),
		Sequence:    raw[7],
		Data:        append([]byte(nil), raw[8:len(raw)-1]...),
	}

	if want, ok := expectedDataLength[p.Command]; ok && want >= 0 && len(p.Data) != want {
		// Log-only: observed firmware sends cosmetically wrong length
		// fields and the packets are otherwise fine.
		braille.Debugf("dotpad: %v: command %04X has %d data bytes, expected %d",
			braille.ErrLengthMismatch, p.Command, len(p.Data), want)
	}
	return p, nil
}

// verifyPacket is the frame.VerifyFunc for the DotPad envelope.
// A checksum mismatch at the end is logged but the packet is still
// delivered; discarding it is the caller's call to make.
func verifyPacket(buf []byte) frame.Verdict {
	if buf[0] != sync1 {
		return frame.Reject()
	}
	if len(buf) >= 2 && buf[1] != sync2 {
		return frame.Reject()
	}
	if len(buf) < headerSize {
		return frame.More(headerSize)
	}

	length := int(binary.BigEndian.Uint16(buf[2:4]))
	if length < envelopeSize || length > envelopeSize+maxDataLength {
		return frame.Reject()
	}

	target := headerSize + length
	if len(buf) < target {
		return frame.More(target)
	}

	received := buf[target-1]
	computed := frame.XorChecksum(checksumSeed, buf[4:target-1])
	if received != computed {
		braille.Debugf("dotpad: checksum mismatch, received %02X expected %02X", received, computed)
	}
	return frame.Done()
}
