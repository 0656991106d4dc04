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

// Package serial provides the serial port transport for braille
// displays, whether native RS-232 or a USB CDC bridge. The port is
// held under an advisory file lock for the lifetime of the transport
// so two processes cannot interleave packets on one display.
package serial

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/gofrs/flock"
	goserial "go.bug.st/serial"

	braille "github.com/tactiledev/go-braille"
)

// DefaultBaudRate suits every supported display; the USB bridges
// ignore the line rate anyway.
const DefaultBaudRate = 57600

// minReadTimeout is the floor passed to the port. A zero timeout asks
// the OS for a non-blocking read, which some drivers refuse.
const minReadTimeout = time.Millisecond

// Transport is a braille.Transport over one serial port
type Transport struct {
	port     goserial.Port
	lock     *flock.Flock
	portName string
	pending  byte
	buffered bool
	timeout  time.Duration
}

// Config holds the serial line parameters
type Config struct {
	PortName string
	BaudRate int
}

// Open opens and locks a serial port at 8N1 framing
func Open(config Config) (*Transport, error) {
	if config.PortName == "" {
		return nil, fmt.Errorf("%w: empty port name", braille.ErrInvalidParameter)
	}
	baud := config.BaudRate
	if baud == 0 {
		baud = DefaultBaudRate
	}

	lock := flock.New(lockPath(config.PortName))
	locked, err := lock.TryLock()
	if err != nil {
		return nil, braille.NewChannelError("lock", config.PortName, err, braille.ErrorTypePermanent)
	}
	if !locked {
		return nil, braille.NewChannelError("lock", config.PortName,
			errors.New("port in use by another process"), braille.ErrorTypePermanent)
	}

	mode := &goserial.Mode{
		BaudRate: baud,
		DataBits: 8,
		Parity:   goserial.NoParity,
		StopBits: goserial.OneStopBit,
	}
	port, err := goserial.Open(config.PortName, mode)
	if err != nil {
		_ = lock.Unlock()
		return nil, braille.NewChannelError("open", config.PortName, err, braille.ErrorTypePermanent)
	}

	// Stale bytes from a previous session would confuse the framer.
	if err := port.ResetInputBuffer(); err != nil {
		_ = port.Close()
		_ = lock.Unlock()
		return nil, braille.NewChannelError("flush", config.PortName, err, braille.ErrorTypeTransient)
	}

	braille.Debugf("serial: opened %s at %d baud", config.PortName, baud)
	return &Transport{
		port:     port,
		lock:     lock,
		portName: config.PortName,
		timeout:  -1,
	}, nil
}

// lockPath places the advisory lock beside the system lock directory
// when available, the temp directory otherwise.
func lockPath(portName string) string {
	name := "LCK.." + strings.ReplaceAll(filepath.Base(portName), "/", "_")
	if info, err := os.Stat("/var/lock"); err == nil && info.IsDir() {
		return filepath.Join("/var/lock", name)
	}
	return filepath.Join(os.TempDir(), name)
}

func (t *Transport) setTimeout(timeout time.Duration) error {
	if timeout < minReadTimeout {
		timeout = minReadTimeout
	}
	if timeout == t.timeout {
		return nil
	}
	if err := t.port.SetReadTimeout(timeout); err != nil {
		return braille.NewChannelError("timeout", t.portName, err, braille.ErrorTypeTransient)
	}
	t.timeout = timeout
	return nil
}

// ReadByte implements braille.Transport. A read that produces no byte
// within timeout reports ErrNoInput.
func (t *Transport) ReadByte(timeout time.Duration) (byte, error) {
	if t.buffered {
		t.buffered = false
		return t.pending, nil
	}
	if err := t.setTimeout(timeout); err != nil {
		return 0, err
	}

	var one [1]byte
	n, err := t.port.Read(one[:])
	if err != nil {
		return 0, braille.NewChannelError("read", t.portName, err, braille.ErrorTypeTransient)
	}
	if n == 0 {
		return 0, braille.ErrNoInput
	}
	return one[0], nil
}

// AwaitInput implements braille.Transport. The byte that proves input
// is available is buffered for the next ReadByte.
func (t *Transport) AwaitInput(timeout time.Duration) bool {
	if t.buffered {
		return true
	}
	b, err := t.ReadByte(timeout)
	if err != nil {
		return false
	}
	t.pending = b
	t.buffered = true
	return true
}

// Write implements braille.Transport
func (t *Transport) Write(p []byte) (int, error) {
	n, err := t.port.Write(p)
	if err != nil {
		return n, braille.NewChannelError("write", t.portName, err, braille.ErrorTypeTransient)
	}
	if n < len(p) {
		return n, braille.NewChannelWriteError("write", t.portName)
	}
	return n, nil
}

// Close implements braille.Transport, releasing the port lock
func (t *Transport) Close() error {
	err := t.port.Close()
	if unlockErr := t.lock.Unlock(); unlockErr != nil && err == nil {
		err = unlockErr
	}
	if err != nil {
		return braille.NewChannelError("close", t.portName, err, braille.ErrorTypeTransient)
	}
	return nil
}

// Type implements braille.Transport
func (*Transport) Type() braille.TransportType {
	return braille.TransportSerial
}

// PortName returns the device path this transport was opened on
func (t *Transport) PortName() string {
	return t.portName
}

var _ braille.Transport = (*Transport)(nil)
