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

//go:build deadlock

// Package syncutil provides the mutex types used by the engine core,
// mock transport, and session logging. This file is compiled when
// building with -tags=deadlock.
package syncutil

import deadlock "github.com/sasha-s/go-deadlock"

// Mutex is deadlock.Mutex when deadlock detection is enabled.
type Mutex struct {
	deadlock.Mutex
}

// RWMutex is deadlock.RWMutex when deadlock detection is enabled.
type RWMutex struct {
	deadlock.RWMutex
}
