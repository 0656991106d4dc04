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

// Package detection locates candidate braille display ports. It
// enumerates serial devices, matches USB identifiers against the known
// display hardware, and ranks the results so a caller can try the most
// likely port first. Detection is a hint, not a promise; the protocol
// handshake is still what decides.
package detection

import (
	"fmt"
	"sort"

	braille "github.com/tactiledev/go-braille"
)

// Protocol names the wire protocol a detected device likely speaks
type Protocol string

const (
	// ProtocolDotPad is the DotPad packet protocol
	ProtocolDotPad Protocol = "dotpad"
	// ProtocolFocus is the Focus/PAC Mate packet protocol
	ProtocolFocus Protocol = "focus"
	// ProtocolUnknown marks a serial port with no hardware match
	ProtocolUnknown Protocol = ""
)

// Confidence ranks how likely a port is to be a braille display
type Confidence int

const (
	// Low is any openable serial port
	Low Confidence = iota
	// Medium is a USB serial adapter known to ship on a display
	Medium
	// High is a USB identifier registered to a display vendor
	High
)

func (c Confidence) String() string {
	switch c {
	case High:
		return "high"
	case Medium:
		return "medium"
	default:
		return "low"
	}
}

// DeviceInfo is one detected candidate port
type DeviceInfo struct {
	Path       string
	Name       string
	VIDPID     string
	Protocol   Protocol
	Confidence Confidence
}

func (d DeviceInfo) String() string {
	if d.Protocol == ProtocolUnknown {
		return fmt.Sprintf("serial port at %s (confidence: %s)", d.Path, d.Confidence)
	}
	return fmt.Sprintf("%s device at %s (confidence: %s)", d.Protocol, d.Path, d.Confidence)
}

// knownDevice pairs a USB identifier with its protocol and how
// certain the match is. Bridge chips rank below vendor identifiers
// because anything can sit behind a CP210x.
type knownDevice struct {
	protocol   Protocol
	confidence Confidence
}

var knownDevices = map[string]knownDevice{
	// Freedom Scientific vendor identifiers
	"0F4E:0100": {ProtocolFocus, High},
	"0F4E:0111": {ProtocolFocus, High},
	"0F4E:0114": {ProtocolFocus, High},

	// The pad ships with a CP210x USB bridge
	"10C4:EA60": {ProtocolDotPad, Medium},
}

// Options controls a detection pass
type Options struct {
	// IncludeUnknown keeps serial ports with no hardware match in the
	// result, ranked last.
	IncludeUnknown bool
}

// Detect enumerates candidate ports, best match first
func Detect(opts *Options) ([]DeviceInfo, error) {
	if opts == nil {
		opts = &Options{}
	}

	ports, err := scanPorts()
	if err != nil {
		return nil, braille.NewChannelError("detect", "", err, braille.ErrorTypeTransient)
	}

	var devices []DeviceInfo
	for _, port := range ports {
		device := classify(port)
		if device.Protocol == ProtocolUnknown && !opts.IncludeUnknown {
			braille.Debugf("detection: skipping unmatched port %s (%s)", port.Path, port.VIDPID)
			continue
		}
		devices = append(devices, device)
	}

	sort.SliceStable(devices, func(i, j int) bool {
		return devices[i].Confidence > devices[j].Confidence
	})
	return devices, nil
}

// classify matches one scanned port against the hardware table
func classify(port DeviceInfo) DeviceInfo {
	if known, ok := knownDevices[port.VIDPID]; ok {
		port.Protocol = known.protocol
		port.Confidence = known.confidence
		return port
	}
	port.Protocol = ProtocolUnknown
	port.Confidence = Low
	return port
}
