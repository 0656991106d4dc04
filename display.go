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

// Package braille implements the packet protocol engine shared by
// refreshable braille display drivers: incremental packet framing and
// checksum validation over a raw byte channel, a single-flight
// request/acknowledgement engine with deadlines, delta-tracked cell
// buffers, and key-group edge decoding into an abstract command
// stream. Vendor wire protocols live under driver/, byte channels
// under transport/.
package braille

import (
	"context"
	"fmt"
	"time"
)

const (
	// probeRetryLimit is how many identification attempts Connect makes
	// before giving up.
	probeRetryLimit = 2

	// probeInputTimeout is the per-attempt window for the device to
	// answer an identification request.
	probeInputTimeout = 1000 * time.Millisecond
)

// Capabilities describes a probed display: its model identity, cell
// geometry, and the key/feature set it reported. Built once during
// Connect and immutable afterward.
type Capabilities struct {
	Model           string
	FirmwareVersion string
	TextColumns     int
	TextRows        int
	DotsPerCell     int
	FunctionKeys    int
	RefreshTime     time.Duration
	HasTextDisplay  bool
	HasGraphic      bool
	HasFunctionKeys bool
	HasPerkinsKeys  bool
	HasRoutingKeys  bool
}

// CellCount returns the total number of addressable text cells
func (c *Capabilities) CellCount() int {
	return c.TextColumns * c.TextRows
}

// Driver is one vendor wire protocol behind a Display. Implementations
// (driver/dotpad, driver/freedomscientific) own their framer, ack
// engine, and key state; the Display facade owns the cell buffer and
// lifecycle.
//
// Thread Safety: drivers are NOT thread-safe. The whole engine runs
// cooperatively on the caller's goroutine, matching the single
// in-flight-request protocols these devices speak.
type Driver interface {
	// Name returns the protocol name for logs
	Name() string

	// Connect performs the identification handshake over t and returns
	// the probed capabilities. Called once per Display lifetime.
	Connect(t Transport) (*Capabilities, error)

	// WriteCells transmits the changed range of buf to the device and
	// arranges for MarkWritten on acknowledgement.
	WriteCells(buf *DisplayBuffer) error

	// ReadCommand drains buffered incoming packets and returns the
	// first translated end-user command. ErrNoCommand means no input
	// is pending; ErrRestartRequired means a fatal or missing-ack
	// condition was latched and the owner should reinitialize.
	ReadCommand() (Command, error)

	// Close cancels any pending acknowledgement state. Idempotent.
	// It does not close the Transport; the Display owns that.
	Close() error
}

// DisplayConfig contains configuration options for the Display
type DisplayConfig struct {
	// ProbeRetry configures the identification retry behavior
	ProbeRetry *RetryConfig
	// Trace, when non-nil, collects wire traces attached to errors
	Trace *TraceBuffer
}

// Option is a functional option for Connect
type Option func(*Display) error

// WithProbeRetry overrides the identification retry configuration
func WithProbeRetry(config *RetryConfig) Option {
	return func(d *Display) error {
		if config == nil {
			return fmt.Errorf("%w: nil probe retry config", ErrInvalidParameter)
		}
		d.config.ProbeRetry = config
		return nil
	}
}

// WithTrace attaches a wire trace buffer to lifecycle errors
func WithTrace(tb *TraceBuffer) Option {
	return func(d *Display) error {
		d.config.Trace = tb
		return nil
	}
}

// Display is the four-call driver facade the surrounding daemon works
// with: Connect, WriteWindow/WriteCells, ReadCommand, Close.
//
// Thread Safety: Display is NOT thread-safe. All methods must be
// called from a single goroutine, the same cooperative loop that
// services the rest of the daemon.
type Display struct {
	transport Transport
	driver    Driver
	caps      *Capabilities
	buffer    *DisplayBuffer
	config    *DisplayConfig
	closed    bool
}

// Connect opens a Display over an already-opened Transport using the
// given vendor driver. The identification handshake is retried up to
// the probe limit; on any failure everything constructed so far is
// unwound in reverse order, including the Transport.
func Connect(transport Transport, driver Driver, opts ...Option) (*Display, error) {
	if transport == nil {
		return nil, fmt.Errorf("%w: nil transport", ErrInvalidParameter)
	}
	if driver == nil {
		return nil, fmt.Errorf("%w: nil driver", ErrInvalidParameter)
	}

	display := &Display{
		transport: transport,
		driver:    driver,
		config:    &DisplayConfig{ProbeRetry: ProbeRetryConfig()},
	}
	for _, opt := range opts {
		if err := opt(display); err != nil {
			return nil, err
		}
	}

	// With a trace buffer configured, every wire operation from here on
	// is recorded, including the identification handshake.
	if display.config.Trace != nil {
		display.transport = NewTracedTransport(transport, display.config.Trace)
	}

	var caps *Capabilities
	err := RetryWithConfig(context.Background(), display.config.ProbeRetry, func() error {
		var probeErr error
		caps, probeErr = driver.Connect(display.transport)
		return probeErr
	})
	if err != nil {
		_ = driver.Close()
		_ = display.transport.Close()
		err = fmt.Errorf("%s: %w: %w", driver.Name(), ErrProbeFailed, err)
		if display.config.Trace != nil {
			return nil, display.config.Trace.WrapError(err)
		}
		return nil, err
	}

	display.caps = caps
	display.buffer = NewDisplayBuffer(caps.TextColumns, caps.TextRows)
	Debugf("%s: connected to %s (%dx%d cells, %d dots)",
		driver.Name(), caps.Model, caps.TextColumns, caps.TextRows, caps.DotsPerCell)
	return display, nil
}

// Capabilities returns the probed device capabilities
func (d *Display) Capabilities() *Capabilities {
	return d.caps
}

// Transport returns the underlying byte channel
func (d *Display) Transport() Transport {
	return d.transport
}

// Buffer returns the display's cell buffer
func (d *Display) Buffer() *DisplayBuffer {
	return d.buffer
}

// WriteCells replaces the desired window content and transmits the
// changed range. Transient protocol errors are absorbed (the delta
// stays pending and the next call retries); only a detected fatal
// condition is returned, matching the convention that trouble
// surfaces later through ReadCommand.
func (d *Display) WriteCells(cells []byte) error {
	if d.closed {
		return ErrNotConnected
	}

	d.buffer.SetCells(cells)
	if err := d.driver.WriteCells(d.buffer); err != nil {
		if IsFatal(err) {
			return fmt.Errorf("%s write failed: %w", d.driver.Name(), err)
		}
		// Transient: previous stays untouched, so the next write
		// naturally covers the same (possibly wider) range.
		Debugf("%s: transient write error absorbed: %v", d.driver.Name(), err)
	}
	return nil
}

// WriteWindow renders text through the built-in computer braille
// table and writes it. Cells beyond the text are blanked.
func (d *Display) WriteWindow(text string) error {
	if d.closed {
		return ErrNotConnected
	}
	return d.WriteCells(TextToCells(text))
}

// ReadCommand drains all buffered incoming packets and returns the
// first translated end-user command. It never blocks beyond the
// driver's inter-byte timeouts: ErrNoCommand means nothing is
// pending, ErrRestartRequired means the driver latched a fatal or
// missing-acknowledgement condition and should be reconstructed.
func (d *Display) ReadCommand() (Command, error) {
	if d.closed {
		return Command{}, ErrNotConnected
	}
	return d.driver.ReadCommand()
}

// Close releases the driver state and the byte channel. Idempotent.
// The driver is closed first so no acknowledgement continuation can
// observe a closed channel.
func (d *Display) Close() error {
	if d.closed {
		return nil
	}
	d.closed = true

	driverErr := d.driver.Close()
	transportErr := d.transport.Close()
	if driverErr != nil {
		return fmt.Errorf("%s close failed: %w", d.driver.Name(), driverErr)
	}
	if transportErr != nil {
		return fmt.Errorf("transport close failed: %w", transportErr)
	}
	return nil
}
