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
)

func TestTextToCells(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		text string
		want []byte
	}{
		{"lowercase", "abc", []byte{Dot1, Dot1 | Dot2, Dot1 | Dot4}},
		{"uppercase adds dot 7", "A", []byte{Dot1 | Dot7}},
		{"space", " ", []byte{0x00}},
		{"digits", "12", []byte{Dot2, Dot2 | Dot3}},
		{"control characters fill the cell", "a\tb", []byte{Dot1, 0xFF, Dot1 | Dot2}},
		{"high bytes fill the cell", "\x80", []byte{0xFF}},
		{"empty", "", []byte{}},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, TextToCells(tt.text))
		})
	}
}
