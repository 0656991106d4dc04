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

// Package frame assembles protocol packets from an unreliable byte
// stream. The framer itself is protocol-agnostic: a per-protocol
// VerifyFunc inspects the accumulating prefix and decides whether it
// is invalid, incomplete, or one whole packet. Integrity trailers are
// computed by the checksum codecs in this package.
package frame

import (
	"errors"
	"fmt"
	"time"

	braille "github.com/tactiledev/go-braille"
)

// VerdictKind classifies a prefix of the byte stream
type VerdictKind int

const (
	// Invalid means the prefix can never become a packet; the framer
	// resynchronizes by discarding the first byte.
	Invalid VerdictKind = iota
	// NeedMore means the prefix is a plausible packet start; Target
	// carries the next length worth reading toward.
	NeedMore
	// Complete means the prefix is exactly one whole packet.
	Complete
)

// Verdict is a VerifyFunc result
type Verdict struct {
	Kind   VerdictKind
	Target int
}

// Reject marks the prefix invalid
func Reject() Verdict { return Verdict{Kind: Invalid} }

// More asks for bytes up to target
func More(target int) Verdict { return Verdict{Kind: NeedMore, Target: target} }

// Done marks the prefix as one complete packet
func Done() Verdict { return Verdict{Kind: Complete} }

// VerifyFunc judges the accumulating packet prefix. It is called
// after every received byte with the whole prefix, so it must be a
// pure function of the buffer contents. Checksum mismatches are the
// protocol's business: both supported protocols log them and still
// accept the packet, so VerifyFunc should return Complete for them.
type VerifyFunc func(buf []byte) Verdict

// ByteSource is the read half of a braille byte channel. Satisfied by
// braille.Transport.
type ByteSource interface {
	ReadByte(timeout time.Duration) (byte, error)
	AwaitInput(timeout time.Duration) bool
}

// Timeouts for payload assembly. The first byte of a packet may wait
// on an idle device, so callers give it a generous window; subsequent
// bytes arrive as a burst and get a short inter-byte window.
const (
	DefaultInitialTimeout   = 100 * time.Millisecond
	DefaultInterByteTimeout = 20 * time.Millisecond
)

// Reader drives a ByteSource one byte at a time through a VerifyFunc,
// resynchronizing on invalid prefixes and abandoning packets that
// stall before their declared length.
type Reader struct {
	source           ByteSource
	verify           VerifyFunc
	buf              []byte
	port             string
	maxSize          int
	InitialTimeout   time.Duration
	InterByteTimeout time.Duration
}

// NewReader creates a packet reader for one protocol. maxSize bounds
// the assembly buffer against a runaway length field.
func NewReader(source ByteSource, verify VerifyFunc, maxSize int, port string) *Reader {
	if maxSize < 1 {
		maxSize = 1
	}
	return &Reader{
		source:           source,
		verify:           verify,
		buf:              make([]byte, 0, maxSize),
		maxSize:          maxSize,
		port:             port,
		InitialTimeout:   DefaultInitialTimeout,
		InterByteTimeout: DefaultInterByteTimeout,
	}
}

// Pending reports whether input is already waiting on the channel
func (r *Reader) Pending() bool {
	return r.source.AwaitInput(0)
}

// ReadPacket assembles and returns the next complete packet. It
// returns braille.ErrNoInput when the channel is idle, and the same
// after logging when a partial packet stalls past the inter-byte
// timeout; channel failures are returned wrapped. The returned slice
// is a copy owned by the caller.
func (r *Reader) ReadPacket() ([]byte, error) {
	r.buf = r.buf[:0]

	for {
		timeout := r.InterByteTimeout
		if len(r.buf) == 0 {
			timeout = r.InitialTimeout
		}

		b, err := r.source.ReadByte(timeout)
		if err != nil {
			if len(r.buf) > 0 && isNoInput(err) {
				braille.Debugf("framer %s: %v, discarding %d buffered bytes",
					r.port, braille.ErrPartialPacket, len(r.buf))
			}
			if isNoInput(err) {
				return nil, braille.ErrNoInput
			}
			return nil, fmt.Errorf("framer %s read failed: %w", r.port, err)
		}

		r.buf = append(r.buf, b)
		if packet, ok := r.scan(); ok {
			return packet, nil
		}

		if len(r.buf) >= r.maxSize {
			// Length field ran away; drop the leading byte and let the
			// verifier resynchronize on the remainder.
			braille.Debugf("framer %s: packet exceeded %d bytes, resynchronizing", r.port, r.maxSize)
			r.shift()
		}
	}
}

// scan re-verifies the buffered prefix, discarding leading bytes until
// the verifier accepts it or the buffer empties. Returns the packet
// when the prefix completed.
func (r *Reader) scan() ([]byte, bool) {
	for len(r.buf) > 0 {
		switch v := r.verify(r.buf); v.Kind {
		case Invalid:
			r.shift()
		case NeedMore:
			return nil, false
		case Complete:
			packet := make([]byte, len(r.buf))
			copy(packet, r.buf)
			r.buf = r.buf[:0]
			return packet, true
		}
	}
	return nil, false
}

// shift discards the first buffered byte, restarting acceptance at
// the next one.
func (r *Reader) shift() {
	copy(r.buf, r.buf[1:])
	r.buf = r.buf[:len(r.buf)-1]
}

func isNoInput(err error) bool {
	return errors.Is(err, braille.ErrNoInput)
}
