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
	"errors"
	"fmt"
	"io"
	"strings"
	"syscall"
	"time"
)

// Error categories for retry and restart decisions
var (
	// Channel errors - potentially retryable
	ErrNoInput       = errors.New("no input available")
	ErrChannelWrite  = errors.New("channel write failed")
	ErrChannelRead   = errors.New("channel read failed")
	ErrChannelClosed = errors.New("channel is closed")
	ErrPartialPacket = errors.New("packet abandoned before declared length")

	// Protocol errors - logged, mostly non-fatal
	ErrPacketCorrupted  = errors.New("packet corrupted")
	ErrChecksumMismatch = errors.New("checksum mismatch")
	ErrLengthMismatch   = errors.New("unexpected packet length")
	ErrUnknownPacket    = errors.New("unrecognized packet")

	// Acknowledgement errors
	ErrMissingAck  = errors.New("missing acknowledgement")
	ErrNAKReceived = errors.New("NAK received")

	// Lifecycle errors
	ErrProbeFailed       = errors.New("device identification failed")
	ErrRestartRequired   = errors.New("driver restart required")
	ErrNoCommand         = errors.New("no command available")
	ErrNotConnected      = errors.New("display not connected")
	ErrInvalidParameter  = errors.New("invalid parameter")
	ErrCapabilityMissing = errors.New("device lacks requested capability")
)

// ErrorType represents the category of error for retry logic
type ErrorType int

const (
	// ErrorTypeTransient indicates a potentially retryable error
	ErrorTypeTransient ErrorType = iota
	// ErrorTypePermanent indicates a non-retryable error
	ErrorTypePermanent
	// ErrorTypeTimeout indicates a timeout error (special handling)
	ErrorTypeTimeout
)

// ChannelError wraps byte-channel failures with additional context
type ChannelError struct {
	Err       error     // Underlying error
	Op        string    // Operation that failed
	Port      string    // Port or device identifier
	Type      ErrorType // Error category
	Retryable bool      // Whether the error is retryable
}

func (e *ChannelError) Error() string {
	if e.Port != "" {
		return fmt.Sprintf("%s %s: %v", e.Op, e.Port, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *ChannelError) Unwrap() error {
	return e.Err
}

// DeviceError is an explicit rejection reported by the display itself,
// either as a NAK argument or as an error-notification packet. The code
// is protocol-specific; Reason carries the driver's human-readable
// meaning for it.
type DeviceError struct {
	Protocol string
	Request  string
	Reason   string
	Code     byte
}

func (e *DeviceError) Error() string {
	reason := e.Reason
	if reason == "" {
		reason = "unknown error"
	}
	if e.Request != "" {
		return fmt.Sprintf("%s %s rejected: 0x%02X (%s)", e.Protocol, e.Request, e.Code, reason)
	}
	return fmt.Sprintf("%s error 0x%02X (%s)", e.Protocol, e.Code, reason)
}

// IsTimeoutClass reports whether the device rejection is timeout-like
// (overrun or write timeout), which some drivers react to by shrinking
// their output payload size.
func (e *DeviceError) IsTimeoutClass() bool {
	return strings.Contains(e.Reason, "timeout") ||
		strings.Contains(e.Reason, "timed out") ||
		strings.Contains(e.Reason, "overrun")
}

// IsRetryable returns true if the error is potentially retryable
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}

	var ce *ChannelError
	if errors.As(err, &ce) {
		return ce.Retryable
	}

	var de *DeviceError
	if errors.As(err, &de) {
		// Rejections for transient transmission faults can be retried;
		// anything else means the request itself was wrong.
		return de.IsTimeoutClass() || strings.Contains(de.Reason, "checksum")
	}

	switch {
	case errors.Is(err, ErrNoInput),
		errors.Is(err, ErrChannelRead),
		errors.Is(err, ErrChannelWrite),
		errors.Is(err, ErrPacketCorrupted),
		errors.Is(err, ErrChecksumMismatch),
		errors.Is(err, ErrMissingAck),
		errors.Is(err, ErrNAKReceived),
		errors.Is(err, ErrProbeFailed):
		return true
	default:
		return false
	}
}

// IsFatal returns true if the error indicates the display/connection is
// gone and the owning daemon should reinitialize the driver. This is
// distinct from IsRetryable which covers single-operation retries.
func IsFatal(err error) bool {
	if err == nil {
		return false
	}

	var ce *ChannelError
	if errors.As(err, &ce) {
		return ce.Type == ErrorTypePermanent
	}

	if isDeviceGoneError(err) {
		return true
	}

	switch {
	case errors.Is(err, ErrChannelClosed),
		errors.Is(err, ErrRestartRequired),
		errors.Is(err, io.EOF),
		errors.Is(err, io.ErrClosedPipe):
		return true
	default:
		return false
	}
}

// isDeviceGoneError checks for OS-level errors indicating device
// disconnection. These occur when a USB display is unplugged mid-I/O.
func isDeviceGoneError(err error) bool {
	if err == nil {
		return false
	}

	var errno syscall.Errno
	if errors.As(err, &errno) {
		//nolint:exhaustive // Only checking specific device-gone errors, not all errno values
		switch errno {
		case syscall.EIO, syscall.ENXIO, syscall.ENODEV:
			return true
		}
	}

	return false
}

// Error constructors for consistent error creation

// NewChannelError creates a standard channel error with consistent formatting
func NewChannelError(op, port string, err error, errType ErrorType) *ChannelError {
	return &ChannelError{
		Op:        op,
		Port:      port,
		Err:       err,
		Type:      errType,
		Retryable: errType == ErrorTypeTransient || errType == ErrorTypeTimeout,
	}
}

// NewTimeoutError creates a timeout error for channel operations
func NewTimeoutError(op, port string) *ChannelError {
	return NewChannelError(op, port, ErrNoInput, ErrorTypeTimeout)
}

// NewChannelWriteError creates a write error (transient)
func NewChannelWriteError(op, port string) *ChannelError {
	return NewChannelError(op, port, ErrChannelWrite, ErrorTypeTransient)
}

// NewChannelReadError creates a read error (transient)
func NewChannelReadError(op, port string) *ChannelError {
	return NewChannelError(op, port, ErrChannelRead, ErrorTypeTransient)
}

// NewMissingAckError creates a "missing acknowledgement" error (timeout)
func NewMissingAckError(op, port string) *ChannelError {
	return NewChannelError(op, port, ErrMissingAck, ErrorTypeTimeout)
}

// =============================================================================
// Wire Trace Logging
// =============================================================================
// TraceableError embeds wire-level trace data in errors, allowing consumer
// applications to access debug information when operations fail.

// TraceDirection indicates the direction of wire data
type TraceDirection string

const (
	// TraceTX indicates data sent to the display
	TraceTX TraceDirection = "TX"
	// TraceRX indicates data received from the display
	TraceRX TraceDirection = "RX"
)

// TraceEntry represents a single wire-level operation
type TraceEntry struct {
	Timestamp time.Time
	Direction TraceDirection
	Note      string
	Data      []byte
}

// String formats a trace entry for display
func (e TraceEntry) String() string {
	hexData := formatHexBytes(e.Data)
	if e.Note != "" {
		return fmt.Sprintf("[%s] %s: %s (%s)", e.Timestamp.Format("15:04:05.000"), e.Direction, hexData, e.Note)
	}
	return fmt.Sprintf("[%s] %s: %s", e.Timestamp.Format("15:04:05.000"), e.Direction, hexData)
}

// TraceableError wraps an error with wire-level trace data for debugging.
// Consumer applications can use errors.As() to extract trace information:
//
//	var te *braille.TraceableError
//	if errors.As(err, &te) {
//	    log.Printf("Wire trace:\n%s", te.FormatTrace())
//	}
type TraceableError struct {
	Err       error
	Transport string
	Port      string
	Trace     []TraceEntry
}

// Error implements the error interface
func (e *TraceableError) Error() string {
	return e.Err.Error()
}

// Unwrap returns the underlying error for errors.Is/As compatibility
func (e *TraceableError) Unwrap() error {
	return e.Err
}

// FormatTrace returns a human-readable formatted trace log
func (e *TraceableError) FormatTrace() string {
	if len(e.Trace) == 0 {
		return fmt.Sprintf("[%s:%s] (no trace data)", e.Transport, e.Port)
	}

	var sb strings.Builder
	_, _ = sb.WriteString(fmt.Sprintf("[%s:%s] Wire trace (%d entries):\n", e.Transport, e.Port, len(e.Trace)))

	for _, entry := range e.Trace {
		direction := ">"
		if entry.Direction == TraceRX {
			direction = "<"
		}
		hexData := formatHexBytes(entry.Data)
		if entry.Note != "" {
			_, _ = sb.WriteString(fmt.Sprintf("  %s %s (%s)\n", direction, hexData, entry.Note))
		} else {
			_, _ = sb.WriteString(fmt.Sprintf("  %s %s\n", direction, hexData))
		}
	}

	return sb.String()
}

// formatHexBytes formats a byte slice as space-separated hex values
func formatHexBytes(data []byte) string {
	if len(data) == 0 {
		return "(empty)"
	}
	if len(data) > 32 {
		// Truncate long data with ellipsis
		parts := make([]string, 32)
		for i := 0; i < 32; i++ {
			parts[i] = fmt.Sprintf("%02X", data[i])
		}
		return strings.Join(parts, " ") + fmt.Sprintf(" ... (%d bytes total)", len(data))
	}
	parts := make([]string, len(data))
	for i, b := range data {
		parts[i] = fmt.Sprintf("%02X", b)
	}
	return strings.Join(parts, " ")
}

// TraceBuffer collects trace entries during driver operation.
// It uses a fixed-size circular buffer to limit memory usage.
type TraceBuffer struct {
	transport string
	port      string
	entries   []TraceEntry
	maxSize   int
}

// NewTraceBuffer creates a new trace buffer with the specified capacity
func NewTraceBuffer(transport, port string, maxSize int) *TraceBuffer {
	if maxSize <= 0 {
		maxSize = 16 // Default to 16 entries
	}
	return &TraceBuffer{
		entries:   make([]TraceEntry, 0, maxSize),
		maxSize:   maxSize,
		transport: transport,
		port:      port,
	}
}

// RecordTX records a transmission to the display
func (tb *TraceBuffer) RecordTX(data []byte, note string) {
	tb.record(TraceTX, data, note)
}

// RecordRX records data received from the display
func (tb *TraceBuffer) RecordRX(data []byte, note string) {
	tb.record(TraceRX, data, note)
}

// RecordTimeout records a timeout event
func (tb *TraceBuffer) RecordTimeout(note string) {
	tb.record(TraceRX, nil, "TIMEOUT: "+note)
}

// maxCoalescedRX bounds how many received bytes fold into one entry
// before a burst is split across entries.
const maxCoalescedRX = 32

// RecordRXByte records a single received byte. Consecutive unannotated
// bytes coalesce into one entry so byte-at-a-time channel reads trace
// as bursts rather than one entry per byte.
func (tb *TraceBuffer) RecordRXByte(b byte) {
	if n := len(tb.entries); n > 0 {
		last := &tb.entries[n-1]
		if last.Direction == TraceRX && last.Note == "" && len(last.Data) < maxCoalescedRX {
			last.Data = append(last.Data, b)
			return
		}
	}
	tb.record(TraceRX, []byte{b}, "")
}

// record adds an entry to the buffer, evicting oldest if full
func (tb *TraceBuffer) record(dir TraceDirection, data []byte, note string) {
	// Make a copy of data to avoid aliasing issues
	dataCopy := make([]byte, len(data))
	copy(dataCopy, data)

	entry := TraceEntry{
		Direction: dir,
		Data:      dataCopy,
		Timestamp: time.Now(),
		Note:      note,
	}

	if len(tb.entries) >= tb.maxSize {
		// Shift entries to make room (evict oldest)
		copy(tb.entries, tb.entries[1:])
		tb.entries[len(tb.entries)-1] = entry
	} else {
		tb.entries = append(tb.entries, entry)
	}
}

// WrapError wraps an error with the collected trace data.
// Returns nil if err is nil.
func (tb *TraceBuffer) WrapError(err error) error {
	if err == nil {
		return nil
	}

	entriesCopy := make([]TraceEntry, len(tb.entries))
	copy(entriesCopy, tb.entries)

	return &TraceableError{
		Err:       err,
		Trace:     entriesCopy,
		Transport: tb.transport,
		Port:      tb.port,
	}
}

// Clear resets the trace buffer
func (tb *TraceBuffer) Clear() {
	tb.entries = tb.entries[:0]
}

// HasTrace checks if an error contains trace data
func HasTrace(err error) bool {
	var te *TraceableError
	return errors.As(err, &te)
}

// GetTrace extracts trace data from an error, returning nil if not present
func GetTrace(err error) *TraceableError {
	var te *TraceableError
	if errors.As(err, &te) {
		return te
	}
	return nil
}
