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
	"github.com/talismancer/rvkernel/pkg/kernelerr"
	"github.com/talismancer/rvkernel/pkg/list"
)

// Semaphore is the kernel's counting semaphore: a strict FIFO wait queue
// and a "dying" flag set by Close.
//
// Invariant: value >= 0 implies the wait queue is empty; value < 0
// implies len(waiters) == -value.
type Semaphore struct {
	k *Kernel

	value   int
	waiters *list.Queue[*TCB]
	dying   bool

	// edgeDriven marks the UART TX-ready semaphore special case: it
	// absorbs a Signal that has no blocked waiter and would otherwise
	// push value positive, so that repeated TX-ready interrupts before
	// the output worker drains them don't accumulate.
	edgeDriven bool

	// pendingDrain counts waiters Close() has woken but that have not
	// yet resumed far enough to observe s.dying. Close yields
	// (dispatchLocked) until it reaches zero rather than freeing storage
	// out from under a waiter that hasn't read s.dying yet (see
	// DESIGN.md for the reasoning behind this drain-barrier design).
	pendingDrain int

	ptr uintptr
}

// OpenSemaphore allocates and constructs a semaphore with the given
// initial value, empty wait queue, not dying.
func OpenSemaphore(k *Kernel, initial int) (*Semaphore, error) {
	return openSemaphore(k, initial, false)
}

// OpenEdgeDrivenSemaphore builds the TX-ready variant. It is used
// internally by pkg/console's UART driver; user code reaches only the
// plain form via the sem_open syscall.
func OpenEdgeDrivenSemaphore(k *Kernel, initial int) (*Semaphore, error) {
	return openSemaphore(k, initial, true)
}

func openSemaphore(k *Kernel, initial int, edgeDriven bool) (*Semaphore, error) {
	k.mu.Lock()
	defer k.mu.Unlock()
	ptr, ok := k.alloc.Alloc(semAllocSize)
	if !ok {
		return nil, kernelerr.ENOMEM
	}
	s := &Semaphore{k: k, value: initial, edgeDriven: edgeDriven, ptr: ptr}
	s.waiters = list.NewQueue(
		func(t *TCB) *TCB { return t.schedNext },
		func(t, v *TCB) { t.schedNext = v },
		func(t *TCB) *TCB { return t.schedPrev },
		func(t, v *TCB) { t.schedPrev = v },
	)
	return s, nil
}

const semAllocSize = 32

// Wait decrements the semaphore's value first, then blocks if the
// post-decrement value is negative. Resumption returns nil normally, or
// kernelerr.ECLOSED if the semaphore was closed while the caller was
// blocked.
func (s *Semaphore) Wait() error {
	s.k.mu.Lock()
	s.value--
	if s.value < 0 {
		caller := s.k.running
		caller.state = Blocked
		s.waiters.PushBack(caller)
		s.k.dispatchLocked(false)
		// Resumed: mu is held again, either because Signal woke us or
		// because Close drained us.
		dying := s.dying
		if dying {
			s.pendingDrain--
		}
		s.k.mu.Unlock()
		if dying {
			return kernelerr.ECLOSED
		}
		return nil
	}
	s.k.mu.Unlock()
	return nil
}

// Signal increments the semaphore's value, then wakes the head of the
// wait queue if the pre-increment value was negative. On the edge-driven
// variant, a Signal that finds no blocked waiter and a non-negative value
// is absorbed rather than accumulated.
func (s *Semaphore) Signal() {
	s.k.mu.Lock()
	defer s.k.mu.Unlock()

	if s.edgeDriven && s.value >= 0 {
		return
	}

	pre := s.value
	s.value++
	if pre < 0 {
		w := s.waiters.PopFront()
		w.state = Ready
		s.k.sched.put(w, false, true)
	}
}

// Close marks the semaphore dying and wakes every waiter with an error
// resume, then frees its storage. It yields the CPU (rather than busy-spinning, and rather than the calling
// goroutine blocking outside the switchTo protocol, which would desync
// the scheduler's bookkeeping from which goroutine is actually making
// progress — see this type's pendingDrain doc comment) until every woken
// waiter has resumed and observed s.dying, so storage is never freed out
// from under a waiter still mid-resume.
func (s *Semaphore) Close() {
	s.k.mu.Lock()
	s.dying = true
	n := s.waiters.Len()
	s.pendingDrain += n
	for !s.waiters.Empty() {
		w := s.waiters.PopFront()
		w.state = Ready
		s.k.sched.put(w, false, true)
	}
	for s.pendingDrain > 0 {
		s.k.dispatchLocked(true)
	}
	s.k.mu.Unlock()

	s.k.alloc.Free(s.ptr)
}

// Value returns the semaphore's raw counter, for tests and the inspect
// CLI; a negative value's magnitude is the wait queue length.
func (s *Semaphore) Value() int {
	s.k.mu.Lock()
	defer s.k.mu.Unlock()
	return s.value
}
