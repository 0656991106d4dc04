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

package detection

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClassify(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		vidpid     string
		protocol   Protocol
		confidence Confidence
	}{
		{"focus blue", "0F4E:0100", ProtocolFocus, High},
		{"focus 14", "0F4E:0114", ProtocolFocus, High},
		{"cp210x bridge", "10C4:EA60", ProtocolDotPad, Medium},
		{"random adapter", "1A86:7523", ProtocolUnknown, Low},
		{"no identifier", "", ProtocolUnknown, Low},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			device := classify(DeviceInfo{Path: "/dev/ttyUSB0", VIDPID: tt.vidpid})
			assert.Equal(t, tt.protocol, device.Protocol)
			assert.Equal(t, tt.confidence, device.Confidence)
		})
	}
}

func TestDeviceInfoString(t *testing.T) {
	t.Parallel()

	matched := DeviceInfo{Path: "/dev/ttyUSB0", Protocol: ProtocolFocus, Confidence: High}
	assert.Equal(t, "focus device at /dev/ttyUSB0 (confidence: high)", matched.String())

	unmatched := DeviceInfo{Path: "/dev/ttyS0"}
	assert.Equal(t, "serial port at /dev/ttyS0 (confidence: low)", unmatched.String())
}
