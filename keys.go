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

package braille

// KeyGroupState holds the per-group bitmask of currently-pressed keys,
// persisted across reads so each new report can be reduced to press and
// release edges. Reset to all-zero at connect.
type KeyGroupState struct {
	old map[KeyGroup][]byte
}

// NewKeyGroupState creates an empty key state
func NewKeyGroupState() *KeyGroupState {
	return &KeyGroupState{old: make(map[KeyGroup][]byte)}
}

// Reset clears all recorded key state
func (s *KeyGroupState) Reset() {
	s.old = make(map[KeyGroup][]byte)
}

// Pressed reports whether any key in the group is currently down
func (s *KeyGroupState) Pressed(group KeyGroup) bool {
	for _, b := range s.old[group] {
		if b != 0 {
			return true
		}
	}
	return false
}

// Update compares a newly received group bitmask against the stored
// one and returns the resulting key events. Releases are emitted in
// scan order the moment they are seen; presses are buffered and
// appended in ascending key-number order after the whole group has
// been scanned, so a simultaneous multi-key press always reports in a
// stable left-to-right order. The stored mask is updated in place.
func (s *KeyGroupState) Update(group KeyGroup, newBits []byte) []KeyEvent {
	oldBits := s.old[group]
	if len(oldBits) < len(newBits) {
		grown := make([]byte, len(newBits))
		copy(grown, oldBits)
		oldBits = grown
	}

	var events []KeyEvent
	var presses []KeyEvent

	for i := range oldBits {
		var nb byte
		if i < len(newBits) {
			nb = newBits[i]
		}
		diff := oldBits[i] ^ nb
		if diff == 0 {
			oldBits[i] = nb
			continue
		}
		for bit := 0; bit < 8; bit++ {
			mask := byte(1) << bit
			if diff&mask == 0 {
				continue
			}
			number := i*8 + bit
			if nb&mask != 0 {
				presses = append(presses, KeyEvent{Group: group, Number: number, Pressed: true})
			} else {
				events = append(events, KeyEvent{Group: group, Number: number, Pressed: false})
			}
		}
		oldBits[i] = nb
	}

	s.old[group] = oldBits
	return append(events, presses...)
}

// reverseBitsTable maps each byte to its bit-reversed value. Some
// protocols (DotPad) transmit key masks most-significant-key-first.
var reverseBitsTable = buildReverseBitsTable()

func buildReverseBitsTable() [256]byte {
	var table [256]byte
	for i := range table {
		b := byte(i)
		b = b>>4 | b<<4
		b = b>>2&0x33 | b<<2&0xCC
		b = b>>1&0x55 | b<<1&0xAA
		table[i] = b
	}
	return table
}

// ReverseByteBits returns b with its bit order reversed
func ReverseByteBits(b byte) byte {
	return reverseBitsTable[b]
}

// ReverseBits bit-reverses every byte of p in place and returns p
func ReverseBits(p []byte) []byte {
	for i, b := range p {
		p[i] = reverseBitsTable[b]
	}
	return p
}
