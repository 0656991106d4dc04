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
	braille "github.com/tactiledev/go-braille"
)

// The graphic pad is a uniform pin matrix reported row by row. Each
// wire byte is one external cell: two pin columns of four pins, left
// column in the low nibble, right column in the high nibble, top pin
// in the lowest bit. Logical braille cells sit on their own pitch
// over that matrix, so one logical cell can straddle two external
// bytes horizontally and two external rows vertically.

// colRef locates one vertical segment of a logical pin column within
// the external storage.
type colRef struct {
	row      int  // external row
	col      int  // external cell (byte) index within the row
	column   int  // logical pin column, 0 left or 1 right
	high     bool // right nibble of the external byte
	srcShift uint // offset within the logical column bits
	dstShift uint // offset within the external nibble
	bits     uint // pins in this segment
}

// Geometry is the immutable cell-to-pin mapping for one device,
// computed once from the board information at connect time, plus the
// physical pin image it maintains.
type Geometry struct {
	pins            [][]byte
	refs            [][]colRef
	rowDirty        []bool
	internalColumns int
	internalRows    int
	externalColumns int
	externalRows    int
	dotsPerCell     int
	dotRows         int
}

// toInternalDimension computes how many logical cells of internalDots
// pins (plus internalSpacing pins between cells) fit across a physical
// span of externalCount cells of externalDots pins each.
func toInternalDimension(externalCount, externalDots, internalDots, internalSpacing int) int {
	return ((externalCount*externalDots)-internalDots)/(internalDots+internalSpacing) + 1
}

// NewGeometry builds the mapping for a pad of externalColumns x
// externalRows external cells. columnSpacing and rowSpacing are the
// pin gaps between logical cells. An unrecognized dots-per-cell value
// falls back to 8-dot geometry; construction never fails outright.
func NewGeometry(externalColumns, externalRows, dotsPerCell, columnSpacing, rowSpacing int) *Geometry {
	dotRows := 4
	switch dotsPerCell {
	case 8:
	case 6:
		dotRows = 3
	default:
		braille.Debugf("dotpad: unrecognized dots-per-cell %d, assuming 8", dotsPerCell)
		dotsPerCell = 8
	}
	if columnSpacing < 0 {
		columnSpacing = 0
	}
	if rowSpacing < 0 {
		rowSpacing = 0
	}

	g := &Geometry{
		externalColumns: externalColumns,
		externalRows:    externalRows,
		dotsPerCell:     dotsPerCell,
		dotRows:         dotRows,
		internalColumns: toInternalDimension(externalColumns, 2, 2, columnSpacing),
		internalRows:    toInternalDimension(externalRows, 4, dotRows, rowSpacing),
	}
	if g.internalColumns < 1 {
		g.internalColumns = 1
	}
	if g.internalRows < 1 {
		g.internalRows = 1
	}

	g.pins = make([][]byte, externalRows)
	for r := range g.pins {
		g.pins[r] = make([]byte, externalColumns)
	}
	g.rowDirty = make([]bool, externalRows)

	columnPitch := 2 + columnSpacing
	rowPitch := dotRows + rowSpacing
	g.refs = make([][]colRef, g.internalColumns*g.internalRows)
	for iy := 0; iy < g.internalRows; iy++ {
		for ix := 0; ix < g.internalColumns; ix++ {
			index := iy*g.internalColumns + ix
			py := iy * rowPitch
			for logicalCol := 0; logicalCol < 2; logicalCol++ {
				px := ix*columnPitch + logicalCol
				g.refs[index] = append(g.refs[index], g.columnRefs(logicalCol, px, py)...)
			}
		}
	}
	return g
}

// columnRefs maps one logical pin column at pin position (px, py) to
// its one or two external storage segments.
func (g *Geometry) columnRefs(column, px, py int) []colRef {
	base := colRef{
		col:    px / 2,
		column: column,
		high:   px%2 == 1,
	}

	upper := base
	upper.row = py / 4
	offset := uint(py % 4)
	upper.dstShift = offset
	upperBits := 4 - offset
	if upperBits > uint(g.dotRows) {
		upperBits = uint(g.dotRows)
	}
	upper.bits = upperBits

	refs := []colRef{upper}
	if remaining := uint(g.dotRows) - upperBits; remaining > 0 {
		lower := base
		lower.row = upper.row + 1
		lower.srcShift = upperBits
		lower.dstShift = 0
		lower.bits = remaining
		refs = append(refs, lower)
	}

	// Clamp segments that fall off the bottom of the pad: the last
	// logical row of a tight pitch may only partially exist.
	valid := refs[:0]
	for _, ref := range refs {
		if ref.row < g.externalRows && ref.col < g.externalColumns {
			valid = append(valid, ref)
		}
	}
	return valid
}

// InternalColumns returns the logical cell count per row
func (g *Geometry) InternalColumns() int { return g.internalColumns }

// InternalRows returns the logical row count
func (g *Geometry) InternalRows() int { return g.internalRows }

// ExternalRows returns the physical row count
func (g *Geometry) ExternalRows() int { return g.externalRows }

// DotsPerCell returns the resolved dots-per-cell (6 or 8)
func (g *Geometry) DotsPerCell() int { return g.dotsPerCell }

// splitColumns converts a standard dot byte (bit 0 = dot 1) into its
// two top-to-bottom pin columns.
func (g *Geometry) splitColumns(pattern byte) (left, right byte) {
	if g.dotRows == 3 {
		return pattern & 0x07, (pattern >> 3) & 0x07
	}
	// 8-dot: left column is dots 1,2,3,7; right column dots 4,5,6,8.
	left = pattern&0x07 | pattern>>3&0x08
	right = pattern>>3&0x07 | pattern>>4&0x08
	return left, right
}

// mergeColumns is the inverse of splitColumns
func (g *Geometry) mergeColumns(left, right byte) byte {
	if g.dotRows == 3 {
		return left&0x07 | right<<3&0x38
	}
	return left&0x07 | left<<3&0x40 | right<<3&0x38 | right<<4&0x80
}

// PutCell writes one logical cell's dot pattern into the pin image,
// performing read-modify-write on every external byte the cell
// overlaps and marking the touched rows dirty.
func (g *Geometry) PutCell(index int, pattern byte) {
	if index < 0 || index >= len(g.refs) {
		return
	}
	left, right := g.splitColumns(pattern)
	columns := [2]byte{left, right}

	for _, ref := range g.refs[index] {
		colBits := columns[ref.column]
		mask := byte(1<<ref.bits - 1)
		segment := colBits >> ref.srcShift & mask

		stored := g.pins[ref.row][ref.col]
		nibShift := ref.dstShift
		if ref.high {
			nibShift += 4
		}
		updated := stored&^(mask<<nibShift) | segment<<nibShift
		if updated != stored {
			g.pins[ref.row][ref.col] = updated
			g.rowDirty[ref.row] = true
		}
	}
}

// GetCell reads one logical cell's dot pattern back out of the pin
// image. PutCell(i, GetCell(i)) leaves the storage byte-identical.
func (g *Geometry) GetCell(index int) byte {
	if index < 0 || index >= len(g.refs) {
		return 0
	}
	var columns [2]byte
	for _, ref := range g.refs[index] {
		mask := byte(1<<ref.bits - 1)
		nibShift := ref.dstShift
		if ref.high {
			nibShift += 4
		}
		segment := g.pins[ref.row][ref.col] >> nibShift & mask
		columns[ref.column] |= segment << ref.srcShift
	}
	return g.mergeColumns(columns[0], columns[1])
}

// RowBytes returns the wire image of one external row
func (g *Geometry) RowBytes(row int) []byte {
	return g.pins[row]
}

// DirtyRows returns the external rows touched since their last clear
func (g *Geometry) DirtyRows() []int {
	var rows []int
	for r, dirty := range g.rowDirty {
		if dirty {
			rows = append(rows, r)
		}
	}
	return rows
}

// ClearDirty marks one external row as transmitted
func (g *Geometry) ClearDirty(row int) {
	if row >= 0 && row < len(g.rowDirty) {
		g.rowDirty[row] = false
	}
}

// MarkAllDirty forces full retransmission of the pin image
func (g *Geometry) MarkAllDirty() {
	for r := range g.rowDirty {
		g.rowDirty[r] = true
	}
}
