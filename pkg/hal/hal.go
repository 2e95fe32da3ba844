// Copyright 2024 The rvkernel Authors.
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

// Package hal is the hardware abstraction boundary: the console hardware
// model and the interrupt controller it shares with the trap dispatcher.
// The kernel core never touches a real register; it only calls through
// these interfaces, so a test/demo backend can stand in for silicon the
// way a platform package lets its execution context be backed by
// ptrace, KVM, or a subprocess interchangeably.
package hal

// Status bits of the CONSOLE_STATUS register.
const (
	TXStatusBit = 1 << 0
	RXStatusBit = 1 << 1
)

// Console is the memory-mapped UART: a status byte and separate RX/TX
// data registers.
type Console interface {
	// Status returns the current CONSOLE_STATUS byte.
	Status() byte
	// ReadByte reads CONSOLE_RX_DATA. Only valid when Status() has
	// RXStatusBit set.
	ReadByte() byte
	// WriteByte writes CONSOLE_TX_DATA. Only valid when Status() has
	// TXStatusBit set.
	WriteByte(b byte)
}

// PLIC is the platform interrupt controller's claim/complete handshake.
type PLIC interface {
	// Claim borrows the next pending external IRQ, returning its id.
	Claim() uint32
	// Complete returns IRQ id, acknowledging it to the controller.
	Complete(id uint32)
}

// ConsoleIRQ is the platform interrupt id the console reports via
// PLIC.Claim.
const ConsoleIRQ = 10
