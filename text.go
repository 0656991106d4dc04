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

// Dot constants for building cell patterns (bit 0 = dot 1 .. bit 7 =
// dot 8, the universal 8-dot braille byte layout).
const (
	Dot1 byte = 1 << iota
	Dot2
	Dot3
	Dot4
	Dot5
	Dot6
	Dot7
	Dot8
)

// nabccTable maps printable ASCII (0x20..0x7E) to North American
// Computer Braille Code dot patterns. Full text-table support belongs
// to the consuming screen reader; this covers enough for the CLI and
// for WriteWindow convenience.
var nabccTable = [95]byte{
	0x00, // space
	0x2E, // ! 2346
	0x10, // " 5
	0x3C, // # 3456
	0x2B, // $ 1246
	0x29, // % 146
	0x2F, // & 12346
	0x04, // ' 3
	0x37, // ( 12356
	0x3E, // ) 23456
	0x21, // * 16
	0x2C, // + 346
	0x20, // , 6
	0x24, // - 36
	0x28, // . 46
	0x0C, // / 34
	0x34, // 0 356
	0x02, // 1 2
	0x06, // 2 23
	0x12, // 3 25
	0x32, // 4 256
	0x22, // 5 26
	0x16, // 6 235
	0x36, // 7 2356
	0x26, // 8 236
	0x14, // 9 35
	0x31, // : 156
	0x30, // ; 56
	0x23, // < 126
	0x3F, // = 123456
	0x1C, // > 345
	0x39, // ? 1456
	0x48, // @ 4,7
	0x41, // A 1,7
	0x43, // B 12,7
	0x49, // C 14,7
	0x59, // D 145,7
	0x51, // E 15,7
	0x4B, // F 124,7
	0x5B, // G 1245,7
	0x53, // H 125,7
	0x4A, // I 24,7
	0x5A, // J 245,7
	0x45, // K 13,7
	0x47, // L 123,7
	0x4D, // M 134,7
	0x5D, // N 1345,7
	0x55, // O 135,7
	0x4F, // P 1234,7
	0x5F, // Q 12345,7
	0x57, // R 1235,7
	0x4E, // S 234,7
	0x5E, // T 2345,7
	0x65, // U 136,7
	0x67, // V 1236,7
	0x7A, // W 2456,7
	0x6D, // X 1346,7
	0x7D, // Y 13456,7
	0x75, // Z 1356,7
	0x6A, // [ 246,7
	0x73, // \ 1256,7
	0x7B, // ] 12456,7
	0x58, // ^ 45,7
	0x78, // _ 456,7
	0x08, // ` 4
	0x01, // a 1
	0x03, // b 12
	0x09, // c 14
	0x19, // d 145
	0x11, // e 15
	0x0B, // f 124
	0x1B, // g 1245
	0x13, // h 125
	0x0A, // i 24
	0x1A, // j 245
	0x05, // k 13
	0x07, // l 123
	0x0D, // m 134
	0x1D, // n 1345
	0x15, // o 135
	0x0F, // p 1234
	0x1F, // q 12345
	0x17, // r 1235
	0x0E, // s 234
	0x1E, // t 2345
	0x25, // u 136
	0x27, // v 1236
	0x3A, // w 2456
	0x2D, // x 1346
	0x3D, // y 13456
	0x35, // z 1356
	0x77, // { 12356,7
	0x33, // | 1256
	0x7E, // } 23456,7
	0x18, // ~ 45
}

// TextToCells renders ASCII text as computer braille cell patterns.
// Characters outside the printable range come out as the full cell so
// they remain visible on the display.
func TextToCells(text string) []byte {
	cells := make([]byte, len(text))
	for i := 0; i < len(text); i++ {
		ch := text[i]
		if ch < 0x20 || ch > 0x7E {
			cells[i] = 0xFF
			continue
		}
		cells[i] = nabccTable[ch-0x20]
	}
	return cells
}
