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

package frame

// XorChecksum folds data into a protocol-specific seed with XOR.
// The XOR family is not cryptographic: two flips at the same bit
// position across two bytes cancel. That is a documented property of
// these wire protocols, not a defect.
func XorChecksum(seed byte, data []byte) byte {
	chk := seed
	for _, b := range data {
		chk ^= b
	}
	return chk
}

// Sum computes the additive checksum of a data buffer, a simple
// mod-256 sum of all bytes.
func Sum(data []byte) byte {
	chk := byte(0)
	for _, b := range data {
		chk += b
	}
	return chk
}

// NegatedSum returns the byte that makes Sum(data || result) zero.
// Protocols using it (FreedomScientific) append it so the receiver
// can validate by re-summing the whole packet.
func NegatedSum(data []byte) byte {
	return -Sum(data)
}

// VerifyZeroSum reports whether a packet carrying a NegatedSum
// trailer re-sums to zero.
func VerifyZeroSum(data []byte) bool {
	return Sum(data) == 0
}
