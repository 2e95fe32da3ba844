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

package kernel

import (
	"sync"

	"github.com/talismancer/rvkernel/pkg/list"
)

// State is a TCB's position in the thread lifecycle state machine.
type State int

// The five core TCB states, plus Blocked: a thread waiting inside
// sem.wait() with the post-decrement value negative is a suspension point
// distinct from Sleeping and Joining, but the five-state machine doesn't
// name a state for it. Blocked is this module's bookkeeping label for that
// suspension point (used by Inspect and nowhere else load-bearing); it
// does not change any transition rule.
const (
	Ready State = iota
	Running
	Sleeping
	Joining
	Finished
	Blocked
)

func (s State) String() string {
	switch s {
	case Ready:
		return "ready"
	case Running:
		return "running"
	case Sleeping:
		return "sleeping"
	case Joining:
		return "joining"
	case Finished:
		return "finished"
	case Blocked:
		return "blocked"
	default:
		return "unknown"
	}
}

// ThreadID identifies a TCB for the lifetime of the kernel (never reused).
type ThreadID uint64

// Body is a thread's entry function. A nil Body identifies the bootstrap
// thread: it is never (re)entered by bodyWrapper, since the bootstrap
// thread's initial call stack is whatever called Kernel.Boot.
type Body func(args any)

// TCB is a thread control block.
//
// Every field below is mutated only while the kernel's critical section is
// held (Kernel.mu) — the Go equivalent of "mutated only in kernel mode
// while interrupts are masked". The per-thread resume/cond pair is the
// realization of the context-switch primitive: instead of saving raw
// callee-saved registers and a stack pointer into a Context record, a
// parked TCB is a goroutine blocked in cond.Wait(), and resuming it is
// Signal-ing that same sync.Cond. Go cannot save and restore an arbitrary
// goroutine's machine registers by hand (there is no portable equivalent
// of the assembly swapcontext a bare-metal build would use), so this
// module simulates the "Context" record with the one primitive Go does
// give a program for suspending and resuming a specific strand of
// execution: sync.Cond bound to the kernel's own mutex, which doubles as
// the interrupt-mask critical section.
type TCB struct {
	ID   ThreadID
	body Body
	args any

	// ptr is the storage Allocator.Alloc returned for this TCB (zero for
	// the bootstrap and idle threads, which are never allocated through
	// Allocator). deleteThreadLocked frees it on exit.
	ptr uintptr

	// stackWords is cosmetic: it records the stack size a real
	// createThread would have handed to the allocator, but this module
	// runs each TCB as a goroutine, whose stack the Go runtime grows and
	// shrinks itself. The bootstrap and idle TCBs carry zero.
	stackWords int

	sliceLimit int
	sliceUsed  int
	sleepTicks int

	state    State
	finished bool

	cond *sync.Cond // signaled to resume this TCB; waited on to park it

	joiners *list.Queue[*TCB] // threads blocked in waitForThread(this)

	// Link fields threaded by whichever single Queue currently holds this
	// TCB: the scheduler's ready queue, a semaphore's wait queue, or the
	// kernel's suspended list. Never more than one at a time — those
	// three memberships are mutually exclusive.
	schedNext, schedPrev *TCB

	// Link fields used only when this TCB is parked in some other TCB's
	// joiners queue (waitForThread), which can coincide with this TCB
	// also being on the suspended list above.
	joinNext, joinPrev *TCB
}

func newTCB(id ThreadID, body Body, args any, stackWords, sliceLimit int, mu *sync.Mutex, ptr uintptr) *TCB {
	t := &TCB{
		ID:         id,
		body:       body,
		args:       args,
		stackWords: stackWords,
		sliceLimit: sliceLimit,
		state:      Ready,
		ptr:        ptr,
	}
	t.cond = sync.NewCond(mu)
	t.joiners = list.NewQueue(
		func(x *TCB) *TCB { return x.joinNext },
		func(x, v *TCB) { x.joinNext = v },
		func(x *TCB) *TCB { return x.joinPrev },
		func(x, v *TCB) { x.joinPrev = v },
	)
	return t
}

// IsBootstrap reports whether this TCB is the null-body thread that Boot
// installs for its calling goroutine.
func (t *TCB) IsBootstrap() bool { return t.body == nil }

// State returns the TCB's current lifecycle state.
func (t *TCB) State() State { return t.state }

// Finished reports whether the thread has exited.
func (t *TCB) Finished() bool { return t.finished }
