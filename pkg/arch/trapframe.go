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

// Package arch describes the register-level calling convention user code
// uses to enter the kernel, mirroring (for a single architecture) the role
// gVisor's arch package plays for its supported host architectures: it gives
// the trap dispatcher and syscall table a concrete, named surface to read
// arguments from and write results to instead of passing bare integers
// around.
package arch

// TrapFrame is the saved user register state for one trap. The assembly
// vector that a real boot would install is out of this module's scope;
// TrapFrame is the struct such a vector would have spilled onto the
// kernel stack before calling into Go-equivalent dispatch code.
type TrapFrame struct {
	// A holds a0..a6: a0 is the syscall code on entry and the return value
	// on exit, a1..a6 are arguments in declaration order.
	A [7]uint64

	Sepc    uint64
	Sstatus uint64
	Scause  uint64
	Stval   uint64
}

// Arg is one syscall argument, with narrowing accessors matching the ones
// gVisor's arch.SyscallArguments exposes to syscall implementations.
type Arg uint64

// Int returns the argument as a signed 64-bit integer.
func (a Arg) Int() int64 { return int64(a) }

// Uint returns the argument as an unsigned 64-bit integer.
func (a Arg) Uint() uint64 { return uint64(a) }

// Pointer returns the argument interpreted as a simulated memory address.
func (a Arg) Pointer() uintptr { return uintptr(a) }

// Byte returns the low 8 bits of the argument.
func (a Arg) Byte() byte { return byte(a) }

// SyscallArguments is a0's six successors (a1..a6), the slice of the trap
// frame every syscall handler actually consumes.
type SyscallArguments [6]Arg

// Args extracts the SyscallArguments view of a TrapFrame.
func (tf *TrapFrame) Args() SyscallArguments {
	var out SyscallArguments
	for i := range out {
		out[i] = Arg(tf.A[i+1])
	}
	return out
}

// SetReturn writes a syscall's return value into a0.
func (tf *TrapFrame) SetReturn(v int64) { tf.A[0] = uint64(v) }

// SetArg overwrites argument slot i (0-based, i.e. a1 is index 0). Used
// for syscalls documented as taking a "handle_out" pointer: this module
// has no byte-addressable user address space to write through (that
// belongs to the low-level allocator, an out-of-scope external
// collaborator), so the handle_out register itself is treated as a true
// in/out slot and overwritten with the created handle.
func (tf *TrapFrame) SetArg(i int, v uint64) { tf.A[i+1] = v }

// Code reads the syscall number out of a0 on entry.
func (tf *TrapFrame) Code() uint64 { return tf.A[0] }
