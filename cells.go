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

// DisplayBuffer tracks the last cell patterns confirmed on the hardware
// against the latest requested ones, so drivers only retransmit the
// sub-range that actually changed. previous is only advanced after a
// confirmed write; a failed write leaves it untouched so the next
// attempt covers the same (possibly grown) range.
type DisplayBuffer struct {
	previous  []byte
	desired   []byte
	rowForced []bool
	columns   int
	rows      int
}

// NewDisplayBuffer allocates a buffer for columns x rows cells.
// All rows start forced so the first write transmits everything.
func NewDisplayBuffer(columns, rows int) *DisplayBuffer {
	if columns < 1 {
		columns = 1
	}
	if rows < 1 {
		rows = 1
	}
	b := &DisplayBuffer{
		previous:  make([]byte, columns*rows),
		desired:   make([]byte, columns*rows),
		rowForced: make([]bool, rows),
		columns:   columns,
		rows:      rows,
	}
	for i := range b.rowForced {
		b.rowForced[i] = true
	}
	return b
}

// Columns returns the cell count per row
func (b *DisplayBuffer) Columns() int { return b.columns }

// Rows returns the row count
func (b *DisplayBuffer) Rows() int { return b.rows }

// Len returns the total cell count
func (b *DisplayBuffer) Len() int { return len(b.desired) }

// SetCells replaces the desired cell patterns. Input longer than the
// display is truncated; shorter input blanks the remainder.
func (b *DisplayBuffer) SetCells(cells []byte) {
	n := copy(b.desired, cells)
	for i := n; i < len(b.desired); i++ {
		b.desired[i] = 0
	}
}

// Desired returns the desired cells for the half-open range [from, to)
func (b *DisplayBuffer) Desired(from, to int) []byte {
	return b.desired[from:to]
}

// ChangedRange computes the minimal changed sub-range between the
// previous and desired buffers, scanning from both ends toward the
// middle. It returns ok=false when the buffers are identical and no
// row is forced.
func (b *DisplayBuffer) ChangedRange() (from, to int, ok bool) {
	return changedRange(b.previous, b.desired, b.forcedSpan())
}

// RowChangedRange computes the changed sub-range within one row,
// expressed in whole-buffer cell indexes. A forced row reports its
// full extent once regardless of content.
func (b *DisplayBuffer) RowChangedRange(row int) (from, to int, ok bool) {
	start := row * b.columns
	end := start + b.columns
	if b.rowForced[row] {
		return start, end, true
	}
	f, t, changed := changedRange(b.previous[start:end], b.desired[start:end], span{})
	if !changed {
		return 0, 0, false
	}
	return start + f, start + t, true
}

// ForceRewrite marks every row for full retransmission on the next
// write, used after a geometry change or driver restart.
func (b *DisplayBuffer) ForceRewrite() {
	for i := range b.rowForced {
		b.rowForced[i] = true
	}
}

// MarkWritten records a confirmed hardware write covering [from, to):
// previous picks up the desired content for that range and any row
// fully covered by it drops its forced flag.
func (b *DisplayBuffer) MarkWritten(from, to int) {
	if from < 0 {
		from = 0
	}
	if to > len(b.desired) {
		to = len(b.desired)
	}
	if from >= to {
		return
	}
	copy(b.previous[from:to], b.desired[from:to])
	for row := range b.rowForced {
		start := row * b.columns
		if from <= start && start+b.columns <= to {
			b.rowForced[row] = false
		}
	}
}

// span is an optional forced range folded into a delta computation
type span struct {
	from, to int
	valid    bool
}

// forcedSpan merges all forced rows into one covering span
func (b *DisplayBuffer) forcedSpan() span {
	s := span{}
	for row, forced := range b.rowForced {
		if !forced {
			continue
		}
		start := row * b.columns
		if !s.valid {
			s = span{from: start, to: start + b.columns, valid: true}
			continue
		}
		if start < s.from {
			s.from = start
		}
		if start+b.columns > s.to {
			s.to = start + b.columns
		}
	}
	return s
}

// changedRange is the two-ended scan every packet driver relies on:
// first mismatch from the left, last mismatch from the right. forced
// widens the result to at least that span.
func changedRange(previous, desired []byte, forced span) (from, to int, ok bool) {
	n := len(previous)

	from = 0
	for from < n && previous[from] == desired[from] {
		from++
	}
	if from == n {
		// Buffers identical; only a forced span still needs sending.
		if forced.valid {
			return forced.from, forced.to, true
		}
		return 0, 0, false
	}

	to = n
	for to > from && previous[to-1] == desired[to-1] {
		to--
	}

	if forced.valid {
		if forced.from < from {
			from = forced.from
		}
		if forced.to > to {
			to = forced.to
		}
	}
	return from, to, true
}
