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
	"fmt"
	"time"
)

const (
	// DefaultAckTimeout bounds the wait for a display to acknowledge a
	// request. DotPad overrides it from the refresh time the board
	// reports at probe.
	DefaultAckTimeout = 500 * time.Millisecond

	// defaultAckMissLimit is how many consecutive missing
	// acknowledgements latch the restart condition.
	defaultAckMissLimit = 3
)

// AckHandler is the continuation resolved when the display answers a
// request. ok is true for an ACK, false for a NAK or a timeout treated
// as one.
type AckHandler func(ok bool)

// pendingAck is one outstanding request awaiting a response. At most
// one exists per engine; devices in this family carry a single
// in-flight request.
type pendingAck struct {
	handler  AckHandler
	name     string
	deadline time.Time
	expect   uint16
}

// deferredRequest is a request queued while another is in flight
type deferredRequest struct {
	handler AckHandler
	name    string
	packet  []byte
	expect  uint16
}

// AckEngine serializes acknowledged requests to a display: it sends a
// packet, arms a deadline, and resolves the pending request when the
// matching ACK/NAK arrives or the deadline lapses. Requests issued
// while one is outstanding are deferred and drained one at a time as
// responses come in.
//
// The engine is cooperative: nothing fires asynchronously. Callers
// check the deadline from their read loop via CheckDeadline.
type AckEngine struct {
	write    func([]byte) error
	pending  *pendingAck
	queue    []deferredRequest
	timeout  time.Duration
	misses   int
	restart  bool
	missLim  int
	protocol string
}

// NewAckEngine creates an engine writing through write, typically a
// closure over the driver's byte channel.
func NewAckEngine(protocol string, write func([]byte) error) *AckEngine {
	return &AckEngine{
		write:    write,
		timeout:  DefaultAckTimeout,
		missLim:  defaultAckMissLimit,
		protocol: protocol,
	}
}

// SetTimeout overrides the acknowledgement deadline for future sends
func (e *AckEngine) SetTimeout(d time.Duration) {
	if d > 0 {
		e.timeout = d
	}
}

// Awaiting reports whether a request is currently in flight
func (e *AckEngine) Awaiting() bool {
	return e.pending != nil
}

// QueueLen returns the number of deferred requests
func (e *AckEngine) QueueLen() int {
	return len(e.queue)
}

// RestartNeeded reports whether repeated missing acknowledgements have
// latched the restart condition. It stays latched until Reset.
func (e *AckEngine) RestartNeeded() bool {
	return e.restart
}

// Send transmits a request expecting a response whose discriminator
// matches expect, invoking handler when it resolves. If a request is
// already awaiting acknowledgement the new one is deferred and issued
// once the handler slot is empty. A channel write failure is returned
// immediately and nothing is armed.
func (e *AckEngine) Send(name string, packet []byte, expect uint16, handler AckHandler) error {
	if e.pending != nil {
		deferred := deferredRequest{
			name:    name,
			packet:  append([]byte(nil), packet...),
			expect:  expect,
			handler: handler,
		}
		e.queue = append(e.queue, deferred)
		Debugf("%s: deferring %s behind pending %s", e.protocol, name, e.pending.name)
		return nil
	}
	return e.transmit(name, packet, expect, handler)
}

func (e *AckEngine) transmit(name string, packet []byte, expect uint16, handler AckHandler) error {
	if err := e.write(packet); err != nil {
		return fmt.Errorf("%s %s write failed: %w", e.protocol, name, err)
	}
	e.pending = &pendingAck{
		name:     name,
		expect:   expect,
		handler:  handler,
		deadline: time.Now().Add(e.timeout),
	}
	return nil
}

// Resolve completes the pending request when discr matches its
// expected discriminator. It reports false, leaving all state intact,
// for an unsolicited or mismatched response. A successful resolution
// clears the miss counter and drains the next deferred request.
func (e *AckEngine) Resolve(discr uint16, ok bool) bool {
	if e.pending == nil || e.pending.expect != discr {
		return false
	}

	pending := e.pending
	e.pending = nil
	if ok {
		e.misses = 0
	}
	if pending.handler != nil {
		pending.handler(ok)
	}
	e.drain()
	return true
}

// CheckDeadline fires the synthetic NAK when the pending request's
// deadline has passed without a response. Repeated misses latch the
// restart condition.
func (e *AckEngine) CheckDeadline(now time.Time) {
	if e.pending == nil || now.Before(e.pending.deadline) {
		return
	}

	pending := e.pending
	e.pending = nil
	e.misses++
	Debugf("%s: %v (%d consecutive)", e.protocol, NewMissingAckError(pending.name, ""), e.misses)
	if e.misses >= e.missLim {
		e.restart = true
	}
	if pending.handler != nil {
		pending.handler(false)
	}
	e.drain()
}

// drain issues the next deferred request, if any. A failed write
// drops that request and tries the next; deferred requests have no
// caller left to hand the error to.
func (e *AckEngine) drain() {
	for e.pending == nil && len(e.queue) > 0 {
		next := e.queue[0]
		e.queue = e.queue[1:]
		if err := e.transmit(next.name, next.packet, next.expect, next.handler); err != nil {
			Debugf("%s: deferred %s failed: %v", e.protocol, next.name, err)
		}
	}
}

// Cancel discards the pending request and the deferred queue without
// invoking handlers. Required before closing the channel so no
// continuation can run after teardown.
func (e *AckEngine) Cancel() {
	e.pending = nil
	e.queue = nil
}

// Reset clears the restart latch and miss counter after the owning
// driver has been reinitialized.
func (e *AckEngine) Reset() {
	e.Cancel()
	e.misses = 0
	e.restart = false
}
