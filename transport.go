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
	"time"

	"github.com/tactiledev/go-braille/internal/syncutil"
)

// Transport is the raw byte channel to a braille display.
// This can be implemented by serial, I2C-bridge, or mock backends.
//
// A Transport is exclusively owned by one Display for its lifetime.
// Implementations do not need to be safe for concurrent use.
type Transport interface {
	// ReadByte reads a single byte, blocking up to timeout.
	// It returns ErrNoInput when no byte arrived within the timeout.
	ReadByte(timeout time.Duration) (byte, error)

	// Write sends a buffer to the display in one burst.
	Write(p []byte) (int, error)

	// AwaitInput reports whether at least one byte is readable,
	// waiting up to timeout for one to arrive.
	AwaitInput(timeout time.Duration) bool

	// Close closes the transport connection
	Close() error

	// Type returns the transport type
	Type() TransportType
}

// TransportType represents the type of transport
type TransportType string

const (
	// TransportSerial represents a serial (USB CDC or RS-232) transport.
	TransportSerial TransportType = "serial"
	// TransportI2C represents an I2C UART-bridge transport.
	TransportI2C TransportType = "i2c"
	// TransportMock represents a mock transport for testing
	TransportMock TransportType = "mock"
)

// TracedTransport wraps a Transport and records every write and every
// received byte into a TraceBuffer, so errors wrapped with that buffer
// carry the recent wire traffic.
type TracedTransport struct {
	inner Transport
	trace *TraceBuffer
}

// NewTracedTransport wraps inner so all traffic is recorded into trace.
func NewTracedTransport(inner Transport, trace *TraceBuffer) *TracedTransport {
	return &TracedTransport{inner: inner, trace: trace}
}

// ReadByte reads one byte from the wrapped channel, recording it on success.
func (t *TracedTransport) ReadByte(timeout time.Duration) (byte, error) {
	b, err := t.inner.ReadByte(timeout)
	if err == nil {
		t.trace.RecordRXByte(b)
	}
	return b, err
}

// Write sends a buffer through the wrapped channel, recording the bytes
// that made it onto the wire.
func (t *TracedTransport) Write(p []byte) (int, error) {
	n, err := t.inner.Write(p)
	if n > 0 {
		t.trace.RecordTX(p[:n], "")
	}
	return n, err
}

// AwaitInput reports readability of the wrapped channel.
func (t *TracedTransport) AwaitInput(timeout time.Duration) bool {
	return t.inner.AwaitInput(timeout)
}

// Close closes the wrapped channel.
func (t *TracedTransport) Close() error {
	return t.inner.Close()
}

// Type returns the wrapped channel's transport type.
func (t *TracedTransport) Type() TransportType {
	return t.inner.Type()
}

// Ensure TracedTransport implements Transport
var _ Transport = (*TracedTransport)(nil)

// Responder computes the bytes a simulated display feeds back after
// observing one written packet. Returning nil feeds nothing back.
type Responder func(written []byte) []byte

// MockTransport is a scripted byte channel for driver tests. Incoming
// bytes are queued with Feed or generated by a Responder attached to
// writes; all written packets are recorded for inspection.
type MockTransport struct {
	writeErr  error
	responder Responder
	input     []byte
	writes    [][]byte
	mu        syncutil.Mutex
	connected bool
}

// NewMockTransport creates a new mock transport
func NewMockTransport() *MockTransport {
	return &MockTransport{connected: true}
}

// Feed queues bytes for subsequent ReadByte calls
func (m *MockTransport) Feed(p []byte) {
	m.mu.Lock()
	m.input = append(m.input, p...)
	m.mu.Unlock()
}

// SetResponder attaches a responder invoked after every Write
func (m *MockTransport) SetResponder(r Responder) {
	m.mu.Lock()
	m.responder = r
	m.mu.Unlock()
}

// SetWriteError injects an error returned by subsequent Write calls
func (m *MockTransport) SetWriteError(err error) {
	m.mu.Lock()
	m.writeErr = err
	m.mu.Unlock()
}

// ReadByte implements Transport. The mock never blocks: when the
// input queue is empty it reports ErrNoInput immediately regardless
// of the requested timeout.
func (m *MockTransport) ReadByte(_ time.Duration) (byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.connected {
		return 0, ErrChannelClosed
	}
	if len(m.input) == 0 {
		return 0, ErrNoInput
	}
	b := m.input[0]
	m.input = m.input[1:]
	return b, nil
}

// Write implements Transport
func (m *MockTransport) Write(p []byte) (int, error) {
	m.mu.Lock()
	if !m.connected {
		m.mu.Unlock()
		return 0, ErrChannelClosed
	}
	if m.writeErr != nil {
		err := m.writeErr
		m.mu.Unlock()
		return 0, err
	}

	record := make([]byte, len(p))
	copy(record, p)
	m.writes = append(m.writes, record)
	responder := m.responder
	m.mu.Unlock()

	if responder != nil {
		if reply := responder(record); len(reply) > 0 {
			m.Feed(reply)
		}
	}
	return len(p), nil
}

// AwaitInput implements Transport
func (m *MockTransport) AwaitInput(_ time.Duration) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.connected && len(m.input) > 0
}

// Close implements Transport
func (m *MockTransport) Close() error {
	m.mu.Lock()
	m.connected = false
	m.mu.Unlock()
	return nil
}

// Type implements Transport
func (*MockTransport) Type() TransportType {
	return TransportMock
}

// Writes returns a copy of every buffer written so far
func (m *MockTransport) Writes() [][]byte {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([][]byte, len(m.writes))
	copy(out, m.writes)
	return out
}

// LastWrite returns the most recently written buffer, or nil
func (m *MockTransport) LastWrite() []byte {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.writes) == 0 {
		return nil
	}
	return m.writes[len(m.writes)-1]
}

// Reset clears queued input and recorded writes and reopens the transport
func (m *MockTransport) Reset() {
	m.mu.Lock()
	m.writes = nil
	m.input = nil
	m.connected = true
	m.mu.Unlock()
}

// Ensure MockTransport implements Transport
var _ Transport = (*MockTransport)(nil)
