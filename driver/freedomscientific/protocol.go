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

// Package freedomscientific drives Focus and PAC Mate displays.
//
// The wire format is a fixed four byte header (packet type plus three
// arguments). Types with the high bit set carry a payload whose length
// rides in the first argument, followed by a checksum byte chosen so
// the whole packet sums to zero mod 256. Everything else is four bytes
// flat, which keeps resynchronization cheap: any byte that is not a
// known packet type starts a new scan.
package freedomscientific

import (
	"fmt"

	braille "github.com/tactiledev/go-braille"
	"github.com/tactiledev/go-braille/internal/frame"
)

// Packet types. The high bit marks an extended packet with payload.
const (
	pktQuery  byte = 0x00
	pktAck    byte = 0x01
	pktNAK    byte = 0x02
	pktKey    byte = 0x03
	pktButton byte = 0x04
	pktWheel  byte = 0x05
	pktHVAdj  byte = 0x08
	pktBeep   byte = 0x09
	pktConfig byte = 0x0F
	pktInfo   byte = 0x80
	pktWrite  byte = 0x81
	pktExtKey byte = 0x82
)

const (
	headerSize     = 4
	maxPayloadSize = 0xFF
	maxPacketSize  = headerSize + maxPayloadSize + 1
)

// NAK reason codes carried in the first argument
const (
	nakTimeout   byte = 0x30
	nakChecksum  byte = 0x31
	nakType      byte = 0x32
	nakParameter byte = 0x33
	nakSize      byte = 0x34
)

// nakMeaning maps NAK reason codes to readable text
func nakMeaning(code byte) string {
	meanings := map[byte]string{
		nakTimeout:   "packet timed out",
		nakChecksum:  "incorrect checksum",
		nakType:      "unrecognized packet type",
		nakParameter: "invalid argument",
		nakSize:      "payload too long",
	}
	if m, ok := meanings[code]; ok {
		return m
	}
	return "unknown reason"
}

// timeoutClassNAK reports whether a NAK reason indicates the device
// could not keep up with the write, the cue to shrink the payload
// limit.
func timeoutClassNAK(code byte) bool {
	return code == nakTimeout || code == nakSize
}

// INFO payload layout: fixed-width NUL padded strings
const (
	infoManufacturerSize = 24
	infoModelSize        = 16
	infoFirmwareSize     = 8
	infoPayloadSize      = infoManufacturerSize + infoModelSize + infoFirmwareSize
)

// isExtended reports whether a packet type carries a payload
func isExtended(packetType byte) bool {
	return packetType&0x80 != 0
}

// knownPacketType gates resynchronization: a lead byte outside this
// set cannot start a packet.
func knownPacketType(packetType byte) bool {
	switch packetType {
	case pktQuery, pktAck, pktNAK, pktKey, pktButton, pktWheel,
		pktHVAdj, pktBeep, pktConfig, pktInfo, pktWrite, pktExtKey:
		return true
	}
	return false
}

// Packet is one decoded Focus packet
type Packet struct {
	Payload []byte
	Type    byte
	Args    [3]byte
}

// buildPacket assembles a wire packet. Extended types get the payload
// length stamped into the first argument and a trailing checksum that
// zeroes the byte sum.
func buildPacket(packetType, arg1, arg2, arg3 byte, payload []byte) ([]byte, error) {
	if !isExtended(packetType) {
		if len(payload) > 0 {
			return nil, fmt.Errorf("%w: packet %02X cannot carry a payload",
				braille.ErrInvalidParameter, packetType)
		}
		return []byte{packetType, arg1, arg2, arg3}, nil
	}
	if len(payload) > maxPayloadSize {
		return nil, fmt.Errorf("%w: %d byte payload", braille.ErrInvalidParameter, len(payload))
	}

	packet := make([]byte, 0, headerSize+len(payload)+1)
	packet = append(packet, packetType, byte(len(payload)), arg2, arg3)
	packet = append(packet, payload...)
	packet = append(packet, frame.NegatedSum(packet))
	return packet, nil
}

// parsePacket decodes a complete wire packet
func parsePacket(raw []byte) (*Packet, error) {
	if len(raw) < headerSize {
		return nil, fmt.Errorf("%w: %d bytes", braille.ErrPacketCorrupted, len(raw))
	}
	p := &Packet{
		Type: raw[0],
		Args: [3]byte{raw[1], raw[2], raw[3]},
	}
	if isExtended(p.Type) {
		if len(raw) < headerSize+1 {
			return nil, fmt.Errorf("%w: extended packet without checksum", braille.ErrPacketCorrupted)
		}
		p.Payload = append([]byte(nil), raw[headerSize:len(raw)-1]...)
	}
	return p, nil
}

// verifyPacket is the frame.VerifyFunc for the Focus wire format. A
// checksum mismatch on an extended packet is logged but the packet is
// still delivered.
func verifyPacket(buf []byte) frame.Verdict {
	if !knownPacketType(buf[0]) {
		return frame.Reject()
	}
	if !isExtended(buf[0]) {
		if len(buf) < headerSize {
			return frame.More(headerSize)
		}
		return frame.Done()
	}

	if len(buf) < headerSize {
		return frame.More(headerSize)
	}
	target := headerSize + int(buf[1]) + 1
	if len(buf) < target {
		return frame.More(target)
	}
	if !frame.VerifyZeroSum(buf[:target]) {
		braille.Debugf("focus: checksum mismatch on packet %02X", buf[0])
	}
	return frame.Done()
}
