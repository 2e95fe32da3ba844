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

package trap

import (
	"testing"
	"time"

	"github.com/talismancer/rvkernel/pkg/arch"
	"github.com/talismancer/rvkernel/pkg/config"
	"github.com/talismancer/rvkernel/pkg/console"
	"github.com/talismancer/rvkernel/pkg/csr"
	"github.com/talismancer/rvkernel/pkg/hal"
	"github.com/talismancer/rvkernel/pkg/kernel"
	"github.com/talismancer/rvkernel/pkg/syscalls"
)

func newTestDispatcher(t *testing.T) (*kernel.Kernel, *Dispatcher) {
	t.Helper()
	k := kernel.New(config.Default(), kernel.NewArenaAllocator(1<<20), nil)
	hw := hal.NewLoopbackConsole()
	con, err := console.New(k, hw, 16, nil)
	if err != nil {
		t.Fatalf("console.New: %v", err)
	}
	table := syscalls.New(k, con)
	plic := hal.NewFakePLIC()
	return k, New(k, plic, con, hw, table, nil)
}

// TestSyscallRoundTrip exercises the real ecall path end to end: a
// mem_alloc/mem_free pair through Dispatcher.Syscall.
func TestSyscallRoundTrip(t *testing.T) {
	k, d := newTestDispatcher(t)
	userMain := func(any) {
		resp := d.Syscall(syscalls.MemAlloc, 32)
		if int64(resp.A[0]) <= 0 {
			t.Fatalf("mem_alloc a0 = %d, want a positive pointer", int64(resp.A[0]))
		}
		free := d.Syscall(syscalls.MemFree, resp.A[0])
		if free.A[0] != 0 {
			t.Fatalf("mem_free a0 = %d, want 0", int64(free.A[0]))
		}
	}
	if err := k.Boot(userMain, nil); err != nil {
		t.Fatalf("Boot: %v", err)
	}
}

// TestSepcAdvancesByFour verifies a successful ecall advances sepc by
// the width of the instruction that trapped.
func TestSepcAdvancesByFour(t *testing.T) {
	k, d := newTestDispatcher(t)
	userMain := func(any) {
		tf := &arch.TrapFrame{Scause: csr.CauseEnvCallFromUMode, Sepc: 0x1000}
		tf.A[0] = syscalls.ThreadDispatch
		d.HandleTrap(tf)
		if tf.Sepc != 0x1004 {
			t.Fatalf("Sepc = 0x%x, want 0x1004", tf.Sepc)
		}
	}
	if err := k.Boot(userMain, nil); err != nil {
		t.Fatalf("Boot: %v", err)
	}
}

// TestUnknownSyscallNeverReturns verifies an out-of-range syscall code
// parks the calling goroutine in fatal()'s infinite loop instead of
// returning to its caller.
func TestUnknownSyscallNeverReturns(t *testing.T) {
	k, d := newTestDispatcher(t)
	returned := make(chan struct{})

	userMain := func(any) {
		d.Syscall(0x77)
		close(returned) // must never execute
	}
	go k.Boot(userMain, nil)

	select {
	case <-returned:
		t.Fatalf("Syscall(0x77) returned to its caller; want it parked in fatal()")
	case <-time.After(100 * time.Millisecond):
		// expected: userMain never got past the unknown syscall.
	}
}

// TestExternalInterruptRoutesToConsole verifies an external-interrupt
// trap claims the IRQ, routes it to the console driver when it names
// ConsoleIRQ, and acknowledges it via PLIC.Complete.
func TestExternalInterruptRoutesToConsole(t *testing.T) {
	k, d := newTestDispatcher(t)
	plic := d.PLIC.(*hal.FakePLIC)

	userMain := func(any) {
		d.HandleTrap(&arch.TrapFrame{Scause: csr.CauseExternalInterrupt})
	}
	if err := k.Boot(userMain, nil); err != nil {
		t.Fatalf("Boot: %v", err)
	}

	completed := plic.Completed()
	if len(completed) != 1 || completed[0] != hal.ConsoleIRQ {
		t.Fatalf("Completed() = %v, want [%d]", completed, hal.ConsoleIRQ)
	}
}
