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
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// collectWrites returns an engine whose writes append to the returned
// slice pointer.
func collectWrites() (*AckEngine, *[][]byte) {
	var writes [][]byte
	engine := NewAckEngine("test", func(p []byte) error {
		writes = append(writes, append([]byte(nil), p...))
		return nil
	})
	return engine, &writes
}

func TestSendTransmitsImmediately(t *testing.T) {
	t.Parallel()

	engine, writes := collectWrites()
	var got *bool
	err := engine.Send("first", []byte{1}, 7, func(ok bool) { got = &ok })
	require.NoError(t, err)

	assert.True(t, engine.Awaiting())
	assert.Len(t, *writes, 1)
	assert.Nil(t, got, "handler must wait for the response")
}

func TestSecondSendDefers(t *testing.T) {
	t.Parallel()

	engine, writes := collectWrites()
	require.NoError(t, engine.Send("first", []byte{1}, 1, nil))
	require.NoError(t, engine.Send("second", []byte{2}, 2, nil))

	assert.Len(t, *writes, 1, "second request waits for the first to resolve")
	assert.Equal(t, 1, engine.QueueLen())

	require.True(t, engine.Resolve(1, true))
	assert.Len(t, *writes, 2)
	assert.Equal(t, 0, engine.QueueLen())
	assert.True(t, engine.Awaiting(), "drained request is now pending")
}

func TestResolveInvokesHandler(t *testing.T) {
	t.Parallel()

	engine, _ := collectWrites()
	results := []bool{}
	require.NoError(t, engine.Send("req", []byte{1}, 5, func(ok bool) {
		results = append(results, ok)
	}))

	require.True(t, engine.Resolve(5, false))
	assert.Equal(t, []bool{false}, results)
	assert.False(t, engine.Awaiting())
}

func TestResolveMismatchedDiscriminator(t *testing.T) {
	t.Parallel()

	engine, _ := collectWrites()
	require.NoError(t, engine.Send("req", []byte{1}, 5, nil))

	assert.False(t, engine.Resolve(6, true), "wrong discriminator leaves the request pending")
	assert.True(t, engine.Awaiting())
}

func TestResolveUnsolicited(t *testing.T) {
	t.Parallel()

	engine, _ := collectWrites()
	assert.False(t, engine.Resolve(0, true))
}

func TestDeadlineMissesLatchRestart(t *testing.T) {
	t.Parallel()

	engine, _ := collectWrites()
	engine.SetTimeout(time.Nanosecond)

	naks := 0
	for i := 0; i < 3; i++ {
		require.NoError(t, engine.Send("req", []byte{1}, 0, func(ok bool) {
			if !ok {
				naks++
			}
		}))
		time.Sleep(time.Millisecond)
		engine.CheckDeadline(time.Now())
	}

	assert.Equal(t, 3, naks, "every miss fires a synthetic NAK")
	assert.True(t, engine.RestartNeeded())

	engine.Reset()
	assert.False(t, engine.RestartNeeded())
}

func TestSuccessfulResolveClearsMissCount(t *testing.T) {
	t.Parallel()

	engine, _ := collectWrites()
	engine.SetTimeout(time.Nanosecond)

	for i := 0; i < 2; i++ {
		require.NoError(t, engine.Send("req", []byte{1}, 0, nil))
		time.Sleep(time.Millisecond)
		engine.CheckDeadline(time.Now())
	}
	require.False(t, engine.RestartNeeded())

	// One answered request resets the consecutive count; two more
	// misses are not enough to latch.
	require.NoError(t, engine.Send("req", []byte{1}, 0, nil))
	require.True(t, engine.Resolve(0, true))
	for i := 0; i < 2; i++ {
		require.NoError(t, engine.Send("req", []byte{1}, 0, nil))
		time.Sleep(time.Millisecond)
		engine.CheckDeadline(time.Now())
	}
	assert.False(t, engine.RestartNeeded())
}

func TestCheckDeadlineBeforeExpiry(t *testing.T) {
	t.Parallel()

	engine, _ := collectWrites()
	fired := false
	require.NoError(t, engine.Send("req", []byte{1}, 0, func(bool) { fired = true }))

	engine.CheckDeadline(time.Now())
	assert.False(t, fired)
	assert.True(t, engine.Awaiting())
}

func TestCancelSkipsHandlers(t *testing.T) {
	t.Parallel()

	engine, _ := collectWrites()
	fired := false
	require.NoError(t, engine.Send("first", []byte{1}, 0, func(bool) { fired = true }))
	require.NoError(t, engine.Send("second", []byte{2}, 0, func(bool) { fired = true }))

	engine.Cancel()
	assert.False(t, fired)
	assert.False(t, engine.Awaiting())
	assert.Equal(t, 0, engine.QueueLen())
}

func TestSendWriteFailure(t *testing.T) {
	t.Parallel()

	wantErr := errors.New("wire fell out")
	engine := NewAckEngine("test", func([]byte) error { return wantErr })

	err := engine.Send("req", []byte{1}, 0, nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, wantErr)
	assert.False(t, engine.Awaiting(), "failed write arms nothing")
}
