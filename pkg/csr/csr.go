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

// Package csr names the RISC-V supervisor-mode CSR bits that the trap
// dispatcher and boot code reason about. The hart itself is simulated (this
// module runs hosted under the Go runtime, not on bare silicon); these
// constants exist so the rest of the kernel can be written against the same
// names a real trap handler would use.
package csr

// Bits of sstatus relevant to a single-hart supervisor-only kernel.
const (
	SSTATUS_SIE  = 1 << 1 // supervisor interrupt enable
	SSTATUS_SPIE = 1 << 5 // supervisor previous interrupt enable
	SSTATUS_SPP  = 1 << 8 // supervisor previous privilege (0 = user, 1 = supervisor)
)

// Bits of sip/sie.
const (
	SIP_SSIP = 1 << 1 // supervisor software interrupt pending (timer, in this design)
	SIP_STIP = 1 << 5 // supervisor timer interrupt pending
	SIP_SEIP = 1 << 9 // supervisor external interrupt pending
)

// Cause values as reported in scause. The high bit distinguishes interrupts
// from exceptions; ExceptionMask strips it off.
const (
	InterruptBit  = uint64(1) << 63
	ExceptionMask = InterruptBit - 1

	CauseSoftwareInterrupt = InterruptBit | 1 // timer tick, delivered as an SSI in this design
	CauseTimerInterrupt    = InterruptBit | 5
	CauseExternalInterrupt = InterruptBit | 9
	CauseEnvCallFromUMode  = 8
	CauseEnvCallFromSMode  = 9
)

// IsInterrupt reports whether scause denotes an interrupt rather than a
// synchronous exception.
func IsInterrupt(scause uint64) bool { return scause&InterruptBit != 0 }

// Cause strips the interrupt bit, leaving the numeric exception/interrupt
// code.
func Cause(scause uint64) uint64 { return scause &^ InterruptBit }
