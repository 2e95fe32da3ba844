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

// Package trap is the trap dispatcher: it decodes scause, routes timer and
// external interrupts, marshals user-mode environment calls through the
// syscall table, and holds the fatal-trap path for everything else.
//
// The assembly vector that would save the full user register frame onto a
// kernel stack before calling HandleTrap is out of this module's scope;
// arch.TrapFrame is the struct such a vector would have already built.
package trap

import (
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/talismancer/rvkernel/pkg/arch"
	"github.com/talismancer/rvkernel/pkg/console"
	"github.com/talismancer/rvkernel/pkg/csr"
	"github.com/talismancer/rvkernel/pkg/hal"
	"github.com/talismancer/rvkernel/pkg/kernel"
	"github.com/talismancer/rvkernel/pkg/syscalls"
)

// Dispatcher is the single trap entry point this module installs: exactly
// one dispatcher exists, and it owns every collaborator trap handling
// touches.
type Dispatcher struct {
	K       *kernel.Kernel
	PLIC    hal.PLIC
	Con     *console.Driver
	RawUART hal.Console
	Table   *syscalls.Table
	Log     logrus.FieldLogger
}

// New builds a Dispatcher. rawUART is written to directly by the
// fatal-trap path: diagnostics go straight to the UART, bypassing the
// buffered console driver and its worker thread.
func New(k *kernel.Kernel, plic hal.PLIC, con *console.Driver, rawUART hal.Console, table *syscalls.Table, log logrus.FieldLogger) *Dispatcher {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Dispatcher{K: k, PLIC: plic, Con: con, RawUART: rawUART, Table: table, Log: log}
}

// HandleTrap implements the four-way dispatch. It returns normally for
// every cause except the fatal path, which never returns.
func (d *Dispatcher) HandleTrap(tf *arch.TrapFrame) {
	switch tf.Scause {
	case csr.CauseSoftwareInterrupt:
		// Timer tick, delivered as a supervisor software interrupt in this
		// design (see pkg/csr's doc comment); SSIP is conceptually cleared
		// here, ahead of the real timer handler.
		d.K.Tick()
	case csr.CauseExternalInterrupt:
		d.handleExternal()
	case csr.CauseEnvCallFromSMode:
		// Cooperative yield issued from inside the kernel itself.
		d.K.Dispatch()
	case csr.CauseEnvCallFromUMode:
		d.handleUserEcall(tf)
	default:
		d.fatal(tf)
	}
}

func (d *Dispatcher) handleExternal() {
	id := d.PLIC.Claim()
	if id == hal.ConsoleIRQ {
		d.Con.HandleInterrupt()
	}
	d.PLIC.Complete(id)
}

// handleUserEcall copies sepc/sstatus into locals before the handler runs
// (so they survive unchanged across any nested context switch the
// handler triggers), bounds-checks the syscall code against the table,
// and advances sepc by 4 (the width of `ecall`) on the way out. A handler
// that calls thread_exit runs runtime.Goexit internally and this function
// never reaches the restore step for that trap — the caller never
// returns.
func (d *Dispatcher) handleUserEcall(tf *arch.TrapFrame) {
	sepc, sstatus := tf.Sepc, tf.Sstatus
	code := tf.Code()

	sc, ok := d.Table.Lookup(code)
	if !ok {
		d.fatal(tf)
		return
	}

	sc.Fn(tf)

	tf.Sepc = sepc + 4
	tf.Sstatus = sstatus
}

// Syscall is the demo/test-facing analog of the user-mode thin wrapper
// that a real syscall stub would provide: it builds a trap frame for one
// environment call from user mode, with code and up to six arguments in
// a1..a6, and runs it through the same path HandleTrap would for a real
// `ecall`. The returned frame's a0 (and any handle_out slot a handler
// wrote through) can be read back by the caller.
func (d *Dispatcher) Syscall(code uint64, args ...uint64) *arch.TrapFrame {
	tf := &arch.TrapFrame{Scause: csr.CauseEnvCallFromUMode}
	tf.A[0] = code
	for i, a := range args {
		if i >= 6 {
			break
		}
		tf.A[i+1] = a
	}
	d.handleUserEcall(tf)
	return tf
}

// fatal handles the unrecoverable-trap category: diagnostic registers are
// written straight to the raw UART, bypassing the structured logger
// entirely (a fatal trap may occur with the logging path itself wedged),
// and this call never returns, parking the dispatcher in an infinite
// dispatch loop.
func (d *Dispatcher) fatal(tf *arch.TrapFrame) {
	msg := fmt.Sprintf("scause=0x%x sepc=0x%x stval=0x%x\n", tf.Scause, tf.Sepc, tf.Stval)
	for i := 0; i < len(msg); i++ {
		d.RawUART.WriteByte(msg[i])
	}

	for {
		d.K.Dispatch()
	}
}
