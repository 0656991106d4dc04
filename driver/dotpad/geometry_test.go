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
)

func TestToInternalDimension(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name            string
		externalCount   int
		externalDots    int
		internalDots    int
		internalSpacing int
		want            int
	}{
		{"forty column pad", 40, 2, 2, 1, 27},
		{"twenty column pad", 20, 2, 2, 1, 13},
		{"no spacing", 40, 2, 2, 0, 39},
		{"ten row pad", 10, 4, 4, 1, 8},
		{"six dot rows", 10, 4, 3, 1, 10},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got := toInternalDimension(tt.externalCount, tt.externalDots, tt.internalDots, tt.internalSpacing)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestGeometryRoundTrip(t *testing.T) {
	t.Parallel()

	g := NewGeometry(40, 10, 8, 1, 1)
	require.Equal(t, 27, g.InternalColumns())
	require.Equal(t, 8, g.InternalRows())

	patterns := []byte{0x00, 0x01, 0xFF, 0xA5, 0x5A, 0x80, 0x40, 0x3F}
	for index := 0; index < g.InternalColumns()*g.InternalRows(); index++ {
		for _, pattern := range patterns {
			g.PutCell(index, pattern)
			assert.Equal(t, pattern, g.GetCell(index),
				"cell %d pattern %02X", index, pattern)
		}
	}
}

func TestGeometryNeighborsIndependent(t *testing.T) {
	t.Parallel()

	g := NewGeometry(40, 10, 8, 1, 1)
	g.PutCell(0, 0xFF)
	g.PutCell(1, 0xA5)
	g.PutCell(g.InternalColumns(), 0x5A)

	assert.Equal(t, byte(0xFF), g.GetCell(0))
	assert.Equal(t, byte(0xA5), g.GetCell(1))
	assert.Equal(t, byte(0x5A), g.GetCell(g.InternalColumns()))

	g.PutCell(0, 0x00)
	assert.Equal(t, byte(0x00), g.GetCell(0))
	assert.Equal(t, byte(0xA5), g.GetCell(1))
}

func TestGeometrySixDot(t *testing.T) {
	t.Parallel()

	g := NewGeometry(20, 4, 6, 1, 1)
	require.Equal(t, 6, g.DotsPerCell())

	// Dots 7 and 8 do not exist on a six dot cell.
	g.PutCell(0, 0xFF)
	assert.Equal(t, byte(0x3F), g.GetCell(0))

	g.PutCell(0, 0x15)
	assert.Equal(t, byte(0x15), g.GetCell(0))
}

func TestGeometryUnknownDotsPerCell(t *testing.T) {
	t.Parallel()

	g := NewGeometry(20, 4, 5, 1, 1)
	assert.Equal(t, 8, g.DotsPerCell())
}

func TestGeometryDirtyRows(t *testing.T) {
	t.Parallel()

	g := NewGeometry(40, 10, 8, 1, 1)
	assert.Empty(t, g.DirtyRows())

	// The first logical row spans external pin rows 0 and part of 1
	// only when the pitch leaves a remainder; at pitch 5 cell row 1
	// starts at pin 5.
	g.PutCell(0, 0xFF)
	rows := g.DirtyRows()
	require.NotEmpty(t, rows)
	assert.Equal(t, []int{0}, rows)

	g.PutCell(g.InternalColumns(), 0xFF)
	assert.Equal(t, []int{0, 1, 2}, g.DirtyRows())

	for _, row := range g.DirtyRows() {
		g.ClearDirty(row)
	}
	assert.Empty(t, g.DirtyRows())

	g.MarkAllDirty()
	assert.Len(t, g.DirtyRows(), g.ExternalRows())
}
