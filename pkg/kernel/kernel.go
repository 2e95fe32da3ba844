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

// Package kernel implements the thread control block layer, the
// scheduler, and the counting semaphore, plus the running/allThreads/
// suspended bookkeeping that ties them together.
//
// This module is hosted under the Go runtime rather than running on bare
// RISC-V silicon, so "a single hart" is realized as: exactly one TCB's
// goroutine ever holds Kernel.mu and runs kernel-mode code at a time. mu
// is the kernel critical section — the software stand-in for masking the
// supervisor interrupt-enable bit. Every exported method here that is a
// suspension point (dispatch, sem wait, sleep, join) blocks by parking
// its calling goroutine on a *sync.Cond bound to mu; see task.go's TCB
// doc comment for why that is this module's realization of the
// context-switch primitive.
package kernel

import (
	"runtime"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/talismancer/rvkernel/pkg/config"
	"github.com/talismancer/rvkernel/pkg/kernelerr"
	"github.com/talismancer/rvkernel/pkg/list"
)

// Kernel is the process-wide kernel state: the single `running` pointer,
// the ready queue, the suspended list, and the thread registry, all
// guarded by mu.
type Kernel struct {
	mu  sync.Mutex
	cfg config.Config
	log logrus.FieldLogger

	sched     *scheduler
	suspended *list.Queue[*TCB]
	threads   *registry
	alloc     Allocator

	running *TCB
	idle    *TCB
	nextID  ThreadID
}

// New constructs a Kernel. alloc backs mem_alloc/mem_free and TCB/SCB
// storage gating; pass kernel.NewArenaAllocator(n) for the default, or a
// kernel.FailingAllocator{} to force allocation failure in tests.
func New(cfg config.Config, alloc Allocator, log logrus.FieldLogger) *Kernel {
	if log == nil {
		log = logrus.StandardLogger()
	}
	k := &Kernel{
		cfg:   cfg,
		log:   log,
		sched: newScheduler(),
		alloc: alloc,
	}
	k.suspended = list.NewQueue(
		func(t *TCB) *TCB { return t.schedNext },
		func(t, v *TCB) { t.schedNext = v },
		func(t *TCB) *TCB { return t.schedPrev },
		func(t, v *TCB) { t.schedPrev = v },
	)
	k.threads = newRegistry()
	return k
}

func (k *Kernel) allocID() ThreadID {
	k.nextID++
	return k.nextID
}

// tcbAllocSize is the Allocator request size for a thread's TCB-plus-stack
// storage, used only to gate success/failure (see Allocator's doc
// comment); it has no bearing on the goroutine's real, runtime-managed
// stack.
func tcbAllocSize(stackWords int) int {
	return 64 + stackWords*8
}

// Boot installs the calling goroutine as the bootstrap thread (a
// null-body TCB representing the kernel's initial execution context),
// starts the idle thread, creates a thread running userMain, and blocks
// until that thread exits — mirroring "the kernel returns to its caller
// (the bootloader) when userMain completes."
func (k *Kernel) Boot(userMain Body, args any) error {
	k.mu.Lock()
	bootstrap := newTCB(k.allocID(), nil, nil, 0, k.cfg.SliceTicks, &k.mu, 0)
	bootstrap.state = Running
	k.threads.add(bootstrap)
	k.running = bootstrap
	k.mu.Unlock()

	k.log.Info("kernel boot: bootstrap thread installed")
	k.startIdle()
	k.log.Info("kernel boot: idle thread started")

	userTCB, err := k.CreateThread(userMain, args, k.cfg.DefaultStackWords)
	if err != nil {
		return err
	}
	k.log.WithField("tid", userTCB.ID).Info("kernel boot: userMain thread created")

	return k.WaitForThread(userTCB)
}

func (k *Kernel) startIdle() {
	k.mu.Lock()
	idle := newTCB(k.allocID(), k.idleBody, nil, 0, k.cfg.SliceTicks, &k.mu, 0)
	k.threads.add(idle)
	k.idle = idle
	k.mu.Unlock()

	go func() {
		k.mu.Lock()
		for k.running != idle {
			idle.cond.Wait()
		}
		k.mu.Unlock()
		idle.body(nil)
	}()
}

// idleBody is never enqueued in the ready queue; pickNext installs it
// directly whenever the ready queue is empty.
func (k *Kernel) idleBody(any) {
	for {
		k.mu.Lock()
		k.dispatchLocked(false)
		k.mu.Unlock()
	}
}

// CreateThread allocates a TCB (returning an error and no TCB on
// allocator failure), builds its goroutine parked until first scheduled,
// records it in the registry, and places it in the ready queue.
func (k *Kernel) CreateThread(body Body, args any, stackWords int) (*TCB, error) {
	if body == nil {
		return nil, kernelerr.EINVAL
	}

	k.mu.Lock()
	ptr, ok := k.alloc.Alloc(tcbAllocSize(stackWords))
	if !ok {
		k.mu.Unlock()
		return nil, kernelerr.ENOMEM
	}
	t := newTCB(k.allocID(), body, args, stackWords, k.cfg.SliceTicks, &k.mu, ptr)
	k.threads.add(t)
	k.sched.put(t, false, false)
	k.mu.Unlock()

	k.log.WithField("tid", t.ID).Debug("thread created")

	go func() {
		k.mu.Lock()
		for k.running != t {
			t.cond.Wait()
		}
		k.mu.Unlock() // bodyWrapper: leave the kernel critical section

		t.body(t.args)

		k.Exit() // marks finished, wakes joiners, switches away; never returns
	}()

	return t, nil
}

// Dispatch is a voluntary yield. The caller is re-added to the ready
// queue (unless it just finished) and the next ready thread (or idle)
// takes over.
func (k *Kernel) Dispatch() {
	k.mu.Lock()
	defer k.mu.Unlock()
	k.dispatchLocked(true)
}

// dispatchLocked must be called with mu held. It is the shared core behind
// the public Dispatch, the timer handler's preemption branch, and every
// blocking primitive that needs to hand the CPU to someone else.
func (k *Kernel) dispatchLocked(putOldInReady bool) {
	old := k.running
	if old != nil && !old.finished && putOldInReady {
		k.sched.put(old, false, true)
	}
	next := k.pickNext()
	if next == old {
		return
	}
	k.switchTo(old, next)
}

func (k *Kernel) pickNext() *TCB {
	if next := k.sched.get(); next != nil {
		return next
	}
	return k.idle
}

// switchTo is the context-switch primitive, realized as described in
// this package's doc comment: parking the outgoing
// goroutine on its own *sync.Cond and waking the incoming one on theirs,
// both bound to mu. old == nil discards the caller's state entirely (used
// by Exit and by deleting the running thread) — in that case mu is
// released explicitly, since there is no "old" goroutine left to hand the
// lock back through a Wait() call.
func (k *Kernel) switchTo(old, next *TCB) {
	k.running = next
	next.state = Running
	next.cond.Signal()

	if old == nil {
		k.mu.Unlock()
		return
	}

	old.sliceUsed = 0
	for k.running != old {
		old.cond.Wait()
	}
}

// Exit is the thread_exit path: it marks the caller finished, wakes
// every joiner, frees its storage, and switches away without ever
// returning to the caller. Safe to call either from bodyWrapper after a
// thread's body returns, or directly as the thread_exit syscall from
// inside a thread's body.
func (k *Kernel) Exit() {
	k.mu.Lock()
	k.deleteThreadLocked(k.running)
	runtime.Goexit()
}

// deleteThreadLocked must be called with mu held, and releases it (via
// switchTo) before returning when victim is the running thread. It wakes
// every joiner of victim and frees victim's storage.
func (k *Kernel) deleteThreadLocked(victim *TCB) {
	for !victim.joiners.Empty() {
		j := victim.joiners.PopFront()
		k.suspended.Remove(j)
		j.state = Ready
		k.sched.put(j, false, true)
	}

	victim.finished = true
	victim.state = Finished
	k.threads.remove(victim.ID)
	if victim.ptr != 0 {
		k.alloc.Free(victim.ptr)
	}

	k.log.WithField("tid", victim.ID).Debug("thread exited")

	if k.running == victim {
		next := k.pickNext()
		k.switchTo(nil, next)
		return
	}
	k.mu.Unlock()
}

// WaitForThread is the thread_join syscall's handler. Joining the caller
// itself, or a handle that is not (or no longer) in the thread registry,
// returns immediately: joining self never blocks, and a destroyed
// thread's handle is likewise a no-op join rather than an error.
func (k *Kernel) WaitForThread(target *TCB) error {
	k.mu.Lock()
	caller := k.running
	if target == nil || target == caller {
		k.mu.Unlock()
		return nil
	}
	if _, ok := k.threads.get(target.ID); !ok {
		k.mu.Unlock()
		return nil
	}

	caller.state = Joining
	k.suspended.PushBack(caller)
	target.joiners.PushBack(caller)
	k.dispatchLocked(false)
	k.mu.Unlock()
	return nil
}

// Sleep is the time_sleep syscall's handler. A caller already sleeping
// gets EBUSY; ticks == 0 returns immediately with no context switch.
func (k *Kernel) Sleep(ticks int) error {
	k.mu.Lock()
	defer k.mu.Unlock()

	caller := k.running
	if caller.sleepTicks != 0 {
		return kernelerr.EBUSY
	}
	if ticks == 0 {
		return nil
	}

	caller.sleepTicks = ticks
	caller.state = Sleeping
	k.suspended.PushBack(caller)
	k.dispatchLocked(false)
	return nil
}

// Tick is the timer handler: it decrements every thread's non-zero sleep
// counter (re-readying any that reach zero, in allThreads order), then
// advances the running thread's time-slice counter, dispatching away
// once it meets the per-thread limit.
func (k *Kernel) Tick() {
	k.mu.Lock()
	defer k.mu.Unlock()

	if k.running == nil {
		return
	}

	k.threads.each(func(t *TCB) {
		if t.sleepTicks == 0 {
			return
		}
		t.sleepTicks--
		if t.sleepTicks == 0 && t.state == Sleeping {
			k.suspended.Remove(t)
			t.state = Ready
			k.sched.put(t, false, false)
		}
	})

	running := k.running
	if running == k.idle {
		return
	}
	running.sliceUsed++
	if running.sliceUsed >= running.sliceLimit {
		running.sliceUsed = 0
		k.dispatchLocked(true)
	}
}

// ThreadByID looks up a live thread by ID, for the thread_join syscall and
// tests. The zero ID never resolves (ThreadID 0 is never
// issued; allocID starts counting at 1).
func (k *Kernel) ThreadByID(id ThreadID) (*TCB, bool) {
	k.mu.Lock()
	defer k.mu.Unlock()
	return k.threads.get(id)
}

// Running returns the thread currently on CPU.
func (k *Kernel) Running() *TCB {
	k.mu.Lock()
	defer k.mu.Unlock()
	return k.running
}

// Snapshot is a point-in-time summary of one TCB, for the inspect CLI.
type Snapshot struct {
	ID         ThreadID
	State      State
	SleepTicks int
	SliceUsed  int
}

// Inspect returns a Snapshot of every live thread, ordered by ID. It is a
// development-only affordance, not part of the trap surface.
func (k *Kernel) Inspect() []Snapshot {
	k.mu.Lock()
	defer k.mu.Unlock()
	out := make([]Snapshot, 0, k.threads.len())
	k.threads.each(func(t *TCB) {
		out = append(out, Snapshot{ID: t.ID, State: t.state, SleepTicks: t.sleepTicks, SliceUsed: t.sliceUsed})
	})
	return out
}

// AllocBytes services the mem_alloc syscall. It shares the same Allocator
// (and therefore the same simulated capacity) that TCB and semaphore
// storage draw from: one allocator backs both heap blocks and kernel
// object storage.
func (k *Kernel) AllocBytes(size int) (uintptr, bool) {
	k.mu.Lock()
	defer k.mu.Unlock()
	return k.alloc.Alloc(size)
}

// FreeBytes services the mem_free syscall.
func (k *Kernel) FreeBytes(ptr uintptr) bool {
	k.mu.Lock()
	defer k.mu.Unlock()
	return k.alloc.Free(ptr)
}

// Lock acquires the kernel critical section for callers outside this
// package. Nothing in this module calls it: pkg/trap and pkg/console reach
// the critical section only through Kernel's and Semaphore's own methods.
func (k *Kernel) Lock() { k.mu.Lock() }

// Unlock releases the kernel critical section acquired by Lock.
func (k *Kernel) Unlock() { k.mu.Unlock() }
