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

// Package syscalls is the system-call table: fixed 8-bit codes, each bound
// to a handler that pulls its arguments from the trap frame's a1..a6 slots
// and writes its result back to a0.
//
// Handlers are small per-syscall functions registered under a fixed
// numeric code, rather than a single sprawling switch.
package syscalls

import (
	"sync"

	"github.com/talismancer/rvkernel/pkg/arch"
	"github.com/talismancer/rvkernel/pkg/console"
	"github.com/talismancer/rvkernel/pkg/kernel"
	"github.com/talismancer/rvkernel/pkg/kernelerr"
)

// Fixed syscall codes.
const (
	MemAlloc       = 0x01
	MemFree        = 0x02
	ThreadCreate   = 0x11
	ThreadExit     = 0x12
	ThreadDispatch = 0x13
	ThreadJoin     = 0x14
	SemOpen        = 0x21
	SemClose       = 0x22
	SemWait        = 0x23
	SemSignal      = 0x24
	TimeSleep      = 0x31
	GetChar        = 0x41
	PutChar        = 0x42
)

// Syscall names one table entry.
type Syscall struct {
	Name string
	Fn   func(tf *arch.TrapFrame)
}

// Table is the syscall table bound to one Kernel and one console Driver.
// Codes outside the table are the trap dispatcher's concern (it routes
// them to the fatal-trap path), not Table's — Lookup simply reports
// absence.
type Table struct {
	K   *kernel.Kernel
	Con *console.Driver

	entries map[uint64]Syscall

	mu         sync.Mutex
	bodies     map[uint64]kernel.Body
	nextBodyID uint64
	sems       map[uint64]*kernel.Semaphore
	nextSemID  uint64
}

// New builds a Table wired to k and con.
func New(k *kernel.Kernel, con *console.Driver) *Table {
	t := &Table{
		K:   k,
		Con: con,

		bodies:    map[uint64]kernel.Body{},
		sems:      map[uint64]*kernel.Semaphore{},
		nextSemID: 1, // 0 is never a valid handle
	}
	t.entries = map[uint64]Syscall{
		MemAlloc:       {"mem_alloc", t.memAlloc},
		MemFree:        {"mem_free", t.memFree},
		ThreadCreate:   {"thread_create", t.threadCreate},
		ThreadExit:     {"thread_exit", t.threadExit},
		ThreadDispatch: {"thread_dispatch", t.threadDispatch},
		ThreadJoin:     {"thread_join", t.threadJoin},
		SemOpen:        {"sem_open", t.semOpen},
		SemClose:       {"sem_close", t.semClose},
		SemWait:        {"sem_wait", t.semWait},
		SemSignal:      {"sem_signal", t.semSignal},
		TimeSleep:      {"time_sleep", t.timeSleep},
		GetChar:        {"get_char", t.getChar},
		PutChar:        {"put_char", t.putChar},
	}
	return t
}

// Lookup resolves a syscall code, reporting ok=false for anything outside
// the fixed table; unknown or out-of-range codes route to the
// unknown-trap path instead.
func (t *Table) Lookup(code uint64) (Syscall, bool) {
	sc, ok := t.entries[code]
	return sc, ok
}

// RegisterBody names a thread body so thread_create callers can refer to
// it by a small integer instead of a raw code pointer — this module has no
// loaded user binary to take addresses into, so demos and tests register
// their bodies up front and pass back the id thread_create expects in a2.
func (t *Table) RegisterBody(fn kernel.Body) uint64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	id := t.nextBodyID
	t.nextBodyID++
	t.bodies[id] = fn
	return id
}

func (t *Table) lookupBody(id uint64) (kernel.Body, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	fn, ok := t.bodies[id]
	return fn, ok
}

func (t *Table) registerSem(s *kernel.Semaphore) uint64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	id := t.nextSemID
	t.nextSemID++
	t.sems[id] = s
	return id
}

func (t *Table) lookupSem(handle uint64) (*kernel.Semaphore, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	s, ok := t.sems[handle]
	return s, ok
}

func (t *Table) forgetSem(handle uint64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.sems, handle)
}

// setError writes a sentinel error's negative code to a0. Errors are
// signalled by a negative return in a0 with no other side effects.
func setError(tf *arch.TrapFrame, err error) {
	tf.SetReturn(kernelerr.ToA0(err))
}
