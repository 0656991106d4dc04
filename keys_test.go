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

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUpdateEmitsPressEdges(t *testing.T) {
	t.Parallel()

	s := NewKeyGroupState()
	events := s.Update(KeyGroupRouting, []byte{0b0001_0010})
	require.Len(t, events, 2)
	assert.Equal(t, KeyEvent{Group: KeyGroupRouting, Number: 1, Pressed: true}, events[0])
	assert.Equal(t, KeyEvent{Group: KeyGroupRouting, Number: 4, Pressed: true}, events[1])

	// Resending the same mask is not an edge.
	assert.Empty(t, s.Update(KeyGroupRouting, []byte{0b0001_0010}))
}

func TestUpdateReleasesBeforePresses(t *testing.T) {
	t.Parallel()

	s := NewKeyGroupState()
	s.Update(KeyGroupScroll, []byte{0b0001_0010})

	events := s.Update(KeyGroupScroll, []byte{0b0000_1100})
	require.Len(t, events, 4)
	assert.Equal(t, KeyEvent{Group: KeyGroupScroll, Number: 1, Pressed: false}, events[0])
	assert.Equal(t, KeyEvent{Group: KeyGroupScroll, Number: 4, Pressed: false}, events[1])
	assert.Equal(t, KeyEvent{Group: KeyGroupScroll, Number: 2, Pressed: true}, events[2])
	assert.Equal(t, KeyEvent{Group: KeyGroupScroll, Number: 3, Pressed: true}, events[3])
}

func TestUpdateShorterMaskReleasesHighKeys(t *testing.T) {
	t.Parallel()

	s := NewKeyGroupState()
	s.Update(KeyGroupRouting, []byte{0x00, 0x01}) // key 8

	events := s.Update(KeyGroupRouting, []byte{0x00})
	require.Len(t, events, 1)
	assert.Equal(t, KeyEvent{Group: KeyGroupRouting, Number: 8, Pressed: false}, events[0])
}

func TestPressedAndReset(t *testing.T) {
	t.Parallel()

	s := NewKeyGroupState()
	assert.False(t, s.Pressed(KeyGroupPerkins))

	s.Update(KeyGroupPerkins, []byte{0x01})
	assert.True(t, s.Pressed(KeyGroupPerkins))
	assert.False(t, s.Pressed(KeyGroupScroll))

	s.Reset()
	assert.False(t, s.Pressed(KeyGroupPerkins))
}

func TestGroupsAreIndependent(t *testing.T) {
	t.Parallel()

	s := NewKeyGroupState()
	s.Update(KeyGroupRouting, []byte{0x01})
	events := s.Update(KeyGroupFunction, []byte{0x01})
	require.Len(t, events, 1)
	assert.Equal(t, KeyGroupFunction, events[0].Group)
}

func TestReverseBits(t *testing.T) {
	t.Parallel()

	assert.Equal(t, byte(0x80), ReverseByteBits(0x01))
	assert.Equal(t, byte(0xA5), ReverseByteBits(0xA5))
	assert.Equal(t, byte(0x00), ReverseByteBits(0x00))

	p := []byte{0x01, 0x02}
	assert.Equal(t, []byte{0x80, 0x40}, ReverseBits(p))
	assert.Equal(t, []byte{0x80, 0x40}, p, "reversal happens in place")
}
