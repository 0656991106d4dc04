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

// Package i2c provides a transport for displays wired behind an
// SC16IS750 class I2C-to-UART bridge, the usual arrangement on
// embedded boards without a free USB port. The bridge exposes a
// 16550-style register file over I2C; this package programs it for
// 8N1 and shuttles bytes through its FIFOs.
package i2c

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"periph.io/x/conn/v3/i2c"
	"periph.io/x/conn/v3/i2c/i2creg"
	"periph.io/x/conn/v3/physic"
	"periph.io/x/host/v3"

	braille "github.com/tactiledev/go-braille"
)

// SC16IS750 register addresses. On the wire the register number is
// shifted left three bits; the low bits select the channel on the
// dual-UART variants.
const (
	regRHR   byte = 0x00 // receive holding (read)
	regTHR   byte = 0x00 // transmit holding (write)
	regIER   byte = 0x01
	regFCR   byte = 0x02 // FIFO control (write)
	regLCR   byte = 0x03
	regMCR   byte = 0x04
	regLSR   byte = 0x05
	regTXLVL byte = 0x08 // free space in the TX FIFO
	regRXLVL byte = 0x09 // bytes waiting in the RX FIFO

	// Divisor latch, reachable while LCR bit 7 is set
	regDLL byte = 0x00
	regDLH byte = 0x01
)

const (
	lcrWord8N1        byte = 0x03
	lcrDivisorLatch   byte = 0x80
	fcrEnableAndFlush byte = 0x07
	lsrDataReady      byte = 0x01
)

const (
	// DefaultAddr is the bridge address with A0/A1 strapped high
	DefaultAddr uint16 = 0x4D

	// DefaultBaudRate matches the serial transport
	DefaultBaudRate = 57600

	// crystalHz is the reference oscillator on the common breakout
	// boards; the divisor math assumes it.
	crystalHz = 14745600

	maxClockFreq = 400 * physic.KiloHertz

	// pollInterval paces the RX level polling loop. The bridge has no
	// interrupt line in this wiring, so readiness is polled.
	pollInterval = time.Millisecond
)

// Transport is a braille.Transport over one bridged UART
type Transport struct {
	dev     *i2c.Dev
	bus     i2c.BusCloser
	busName string
}

// Config holds the bus location and line parameters
type Config struct {
	BusName  string
	Addr     uint16
	BaudRate int
}

// New opens the bus, finds the bridge, and programs it for 8N1 at the
// configured rate. The bus name accepts the detection composite form
// "/dev/i2c-1:0x4D" as well as a bare bus path.
func New(config Config) (*Transport, error) {
	if _, err := host.Init(); err != nil {
		return nil, braille.NewChannelError("init", config.BusName, err, braille.ErrorTypePermanent)
	}

	busName, addr := splitBusPath(config.BusName, config.Addr)
	bus, err := i2creg.Open(busName)
	if err != nil {
		return nil, braille.NewChannelError("open", busName, err, braille.ErrorTypePermanent)
	}
	_ = bus.SetSpeed(maxClockFreq)

	if addr == 0 {
		addr = DefaultAddr
	}
	t := &Transport{
		dev:     &i2c.Dev{Addr: addr, Bus: bus},
		bus:     bus,
		busName: busName,
	}

	baud := config.BaudRate
	if baud == 0 {
		baud = DefaultBaudRate
	}
	if err := t.programUART(baud); err != nil {
		_ = bus.Close()
		return nil, err
	}
	braille.Debugf("i2c: bridge on %s addr %#02x at %d baud", busName, addr, baud)
	return t, nil
}

// splitBusPath separates "/dev/i2c-1:0x4D" into its bus and address
func splitBusPath(path string, addr uint16) (string, uint16) {
	bus, suffix, found := strings.Cut(path, ":")
	if found {
		if parsed, err := strconv.ParseUint(suffix, 0, 16); err == nil {
			addr = uint16(parsed)
		}
	}
	return bus, addr
}

// programUART configures the bridge: FIFOs flushed and enabled, baud
// divisor loaded, 8N1 framing.
func (t *Transport) programUART(baud int) error {
	divisor := crystalHz / (16 * baud)
	if divisor < 1 || divisor > 0xFFFF {
		return fmt.Errorf("%w: baud rate %d out of divisor range", braille.ErrInvalidParameter, baud)
	}

	steps := []struct {
		reg byte
		val byte
	}{
		{regLCR, lcrDivisorLatch | lcrWord8N1},
		{regDLL, byte(divisor)},
		{regDLH, byte(divisor >> 8)},
		{regLCR, lcrWord8N1},
		{regFCR, fcrEnableAndFlush},
		{regIER, 0x00},
	}
	for _, step := range steps {
		if err := t.writeRegister(step.reg, step.val); err != nil {
			return err
		}
	}
	return nil
}

func (t *Transport) readRegister(reg byte) (byte, error) {
	var out [1]byte
	if err := t.dev.Tx([]byte{reg << 3}, out[:]); err != nil {
		return 0, braille.NewChannelError("read-register", t.busName, err, braille.ErrorTypeTransient)
	}
	return out[0], nil
}

func (t *Transport) writeRegister(reg, value byte) error {
	if err := t.dev.Tx([]byte{reg << 3, value}, nil); err != nil {
		return braille.NewChannelError("write-register", t.busName, err, braille.ErrorTypeTransient)
	}
	return nil
}

// ReadByte implements braille.Transport, polling the RX FIFO level
// until a byte arrives or timeout lapses.
func (t *Transport) ReadByte(timeout time.Duration) (byte, error) {
	deadline := time.Now().Add(timeout)
	for {
		level, err := t.readRegister(regRXLVL)
		if err != nil {
			return 0, err
		}
		if level > 0 {
			return t.readRegister(regRHR)
		}
		if !time.Now().Before(deadline) {
			return 0, braille.ErrNoInput
		}
		time.Sleep(pollInterval)
	}
}

// AwaitInput implements braille.Transport
func (t *Transport) AwaitInput(timeout time.Duration) bool {
	deadline := time.Now().Add(timeout)
	for {
		level, err := t.readRegister(regRXLVL)
		if err != nil {
			return false
		}
		if level > 0 {
			return true
		}
		if !time.Now().Before(deadline) {
			return false
		}
		time.Sleep(pollInterval)
	}
}

// Write implements braille.Transport, feeding the TX FIFO as space
// frees up. Packets in this family are far smaller than the 64 byte
// FIFO, so the inner loop rarely runs twice.
func (t *Transport) Write(p []byte) (int, error) {
	written := 0
	for written < len(p) {
		free, err := t.readRegister(regTXLVL)
		if err != nil {
			return written, err
		}
		if free == 0 {
			time.Sleep(pollInterval)
			continue
		}
		chunk := p[written:]
		if len(chunk) > int(free) {
			chunk = chunk[:free]
		}
		if err := t.dev.Tx(append([]byte{regTHR << 3}, chunk...), nil); err != nil {
			return written, braille.NewChannelError("write", t.busName, err, braille.ErrorTypeTransient)
		}
		written += len(chunk)
	}
	return written, nil
}

// Close implements braille.Transport, releasing the bus descriptor
func (t *Transport) Close() error {
	if err := t.bus.Close(); err != nil {
		return braille.NewChannelError("close", t.busName, err, braille.ErrorTypeTransient)
	}
	return nil
}

// Type implements braille.Transport
func (*Transport) Type() braille.TransportType {
	return braille.TransportI2C
}

var _ braille.Transport = (*Transport)(nil)
