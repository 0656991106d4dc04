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

import "fmt"

// CommandType identifies an abstract end-user command decoded from
// display key input. Drivers translate their model-specific key codes
// into these; the consuming screen reader never sees raw key groups.
type CommandType int

const (
	// CmdNone is the zero value; never returned as a real command.
	CmdNone CommandType = iota
	// CmdRouteCursor routes the cursor to the cell in Arg.
	CmdRouteCursor
	// CmdPanLeft shifts the window left one display width.
	CmdPanLeft
	// CmdPanRight shifts the window right one display width.
	CmdPanRight
	// CmdLineUp moves the window up one line.
	CmdLineUp
	// CmdLineDown moves the window down one line.
	CmdLineDown
	// CmdHome returns the window to the cursor position.
	CmdHome
	// CmdPerkins carries a completed Perkins chord; Arg holds the dot
	// mask (bit 0 = dot 1 .. bit 7 = dot 8).
	CmdPerkins
	// CmdFunctionKey carries a numbered function key press in Arg.
	CmdFunctionKey
)

// Command is one decoded end-user command.
type Command struct {
	Type CommandType
	Arg  int
}

// String returns a readable form for logs and the CLI.
func (c Command) String() string {
	switch c.Type {
	case CmdNone:
		return "none"
	case CmdRouteCursor:
		return fmt.Sprintf("route(%d)", c.Arg)
	case CmdPanLeft:
		return "pan-left"
	case CmdPanRight:
		return "pan-right"
	case CmdLineUp:
		return "line-up"
	case CmdLineDown:
		return "line-down"
	case CmdHome:
		return "home"
	case CmdPerkins:
		return fmt.Sprintf("perkins(%08b)", c.Arg)
	case CmdFunctionKey:
		return fmt.Sprintf("function(%d)", c.Arg)
	default:
		return fmt.Sprintf("command(%d,%d)", c.Type, c.Arg)
	}
}

// KeyGroup names a cluster of physical keys reported together as one
// bitmask (scroll keys, Perkins keyboard, routing row, ...). The
// values are shared across drivers; not every display has every group.
type KeyGroup int

const (
	// KeyGroupScroll covers panning/rocker keys.
	KeyGroupScroll KeyGroup = iota
	// KeyGroupPerkins covers the 8 dot keys plus space.
	KeyGroupPerkins
	// KeyGroupRouting covers the per-cell cursor routing row.
	KeyGroupRouting
	// KeyGroupFunction covers numbered function keys.
	KeyGroupFunction
)

// KeyEvent is one press or release edge for a key within a group.
type KeyEvent struct {
	Group   KeyGroup
	Number  int
	Pressed bool
}

func (e KeyEvent) String() string {
	edge := "release"
	if e.Pressed {
		edge = "press"
	}
	return fmt.Sprintf("group %d key %d %s", e.Group, e.Number, edge)
}
