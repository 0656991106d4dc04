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

	braille "github.com/tactiledev/go-braille"
)

// =============================================================================
// Fuzz Tests for Packet Framing
// =============================================================================
// Malformed bytes from hardware (noisy lines, half-plugged connectors,
// firmware resets mid-packet) reach the framer unfiltered, so no input
// may panic it or make it hand back a packet its verifier rejects.
//
// Run with: go test -fuzz=FuzzReadPacket -fuzztime=30s ./internal/frame/

// FuzzReadPacket drains an arbitrary byte stream through the framer and
// checks every extracted packet against the verifier that produced it.
func FuzzReadPacket(f *testing.F) {
	// Valid packets for the length-prefixed test protocol
	f.Add([]byte{0xAA, 0x02})
	f.Add([]byte{0xAA, 0x04, 0x01, 0x02})
	f.Add([]byte{0xAA, 0x08, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00})

	// Garbage, truncation, and resync cases
	f.Add([]byte{})
	f.Add([]byte{0x00})
	f.Add([]byte{0xAA})
	f.Add([]byte{0xAA, 0xFF, 0xAA, 0x02})
	f.Add([]byte{0x13, 0x37, 0xAA, 0x03, 0x07})
	f.Add([]byte{0xAA, 0x05, 0x01})
	f.Add([]byte{0xAA, 0xAA, 0xAA, 0xAA, 0xAA, 0xAA, 0xAA, 0xAA})

	f.Fuzz(func(t *testing.T, stream []byte) {
		mock := braille.NewMockTransport()
		mock.Feed(stream)
		reader := NewReader(mock, lengthVerify, 16, "fuzz")

		// The mock never blocks, so the stream drains in at most
		// len(stream) extractions.
		for i := 0; i < len(stream)+1; i++ {
			packet, err := reader.ReadPacket()
			if err != nil {
				return
			}
			if len(packet) > 16 {
				t.Errorf("packet longer than the buffer cap: %d bytes", len(packet))
			}
			if v := lengthVerify(packet); v.Kind != Complete {
				t.Errorf("framer returned a packet its verifier rejects: % X", packet)
			}
		}
	})
}

// FuzzXorChecksum checks determinism and the self-cancelling trailer
// property the wire protocols rely on.
func FuzzXorChecksum(f *testing.F) {
	f.Add(byte(0xA5), []byte{0x00, 0x02, 0x00, 0x01})
	f.Add(byte(0xA5), []byte{})
	f.Add(byte(0x00), []byte{0xFF})

	f.Fuzz(func(t *testing.T, seed byte, data []byte) {
		chk := XorChecksum(seed, data)
		if chk != XorChecksum(seed, data) {
			t.Error("XorChecksum is not deterministic")
		}
		framed := append(append([]byte{}, data...), chk)
		if got := XorChecksum(seed, framed); got != 0 {
			t.Errorf("checksum over data plus trailer = %#x, want 0", got)
		}
	})
}

// FuzzNegatedSum checks that the additive trailer always re-sums to zero.
func FuzzNegatedSum(f *testing.F) {
	f.Add([]byte{0x81, 0x03, 0x00, 0x00, 0x01, 0x02, 0x03})
	f.Add([]byte{})
	f.Add([]byte{0xFF, 0xFF, 0xFF})

	f.Fuzz(func(t *testing.T, data []byte) {
		framed := append(append([]byte{}, data...), NegatedSum(data))
		if !VerifyZeroSum(framed) {
			t.Errorf("packet with negated-sum trailer does not verify: % X", framed)
		}
	})
}
