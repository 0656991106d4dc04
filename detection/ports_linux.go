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

//go:build linux

package detection

import (
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/sys/unix"
)

const sysTTYDir = "/sys/class/tty"

// scanPorts walks the sysfs tty class and returns every USB serial
// port that answers a termios query. Non-USB ports are skipped; the
// supported displays are all USB or bridge attached.
func scanPorts() ([]DeviceInfo, error) {
	entries, err := os.ReadDir(sysTTYDir)
	if err != nil {
		return nil, err
	}

	var ports []DeviceInfo
	for _, entry := range entries {
		if port, ok := scanEntry(entry.Name()); ok {
			ports = append(ports, port)
		}
	}
	return ports, nil
}

func scanEntry(name string) (DeviceInfo, bool) {
	devicePath := filepath.Join(sysTTYDir, name, "device")
	resolved, err := filepath.EvalSymlinks(devicePath)
	if err != nil {
		return DeviceInfo{}, false
	}
	if !strings.Contains(resolved, "/usb") {
		return DeviceInfo{}, false
	}

	port := DeviceInfo{
		Path:   "/dev/" + name,
		Name:   name,
		VIDPID: readVIDPID(resolved),
	}
	if !probePort(port.Path) {
		return DeviceInfo{}, false
	}
	return port, true
}

// readVIDPID walks up the sysfs device tree until it finds the USB
// identifier files.
func readVIDPID(devicePath string) string {
	current := devicePath
	for i := 0; i < 10; i++ {
		vid, vidErr := os.ReadFile(filepath.Join(current, "idVendor"))
		pid, pidErr := os.ReadFile(filepath.Join(current, "idProduct"))
		if vidErr == nil && pidErr == nil {
			return strings.ToUpper(strings.TrimSpace(string(vid)) + ":" + strings.TrimSpace(string(pid)))
		}
		parent := filepath.Dir(current)
		if parent == current || parent == "/" {
			break
		}
		current = parent
	}
	return ""
}

// probePort confirms the node is a live tty by opening it non-blocking
// and asking for its termios state. Ports held exclusively elsewhere
// or backed by nothing fail here and drop out of the scan.
func probePort(path string) bool {
	fd, err := unix.Open(path, unix.O_RDWR|unix.O_NOCTTY|unix.O_NONBLOCK, 0)
	if err != nil {
		return false
	}
	defer func() { _ = unix.Close(fd) }()

	_, err = unix.IoctlGetTermios(fd, unix.TCGETS)
	return err == nil
}
