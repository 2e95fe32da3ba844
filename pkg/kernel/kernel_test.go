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
	"sync/atomic"
	"testing"

	"github.com/talismancer/rvkernel/pkg/config"
	"github.com/talismancer/rvkernel/pkg/kernelerr"
)

func testKernel() *Kernel {
	return New(config.Default(), NewArenaAllocator(1<<20), nil)
}

// TestCreationOrderDispatch verifies a boundary behavior: creating more
// threads than there are ready slots still dispatches all of them in
// creation order.
func TestCreationOrderDispatch(t *testing.T) {
	k := testKernel()
	var mu sync.Mutex
	var order []int

	var tcbs []*TCB
	userMain := func(any) {
		for i := 1; i <= 5; i++ {
			id := i
			tcb, err := k.CreateThread(func(any) {
				mu.Lock()
				order = append(order, id)
				mu.Unlock()
			}, nil, 64)
			if err != nil {
				t.Errorf("CreateThread(%d): %v", id, err)
			}
			tcbs = append(tcbs, tcb)
		}
		for _, tcb := range tcbs {
			k.WaitForThread(tcb)
		}
	}
	if err := k.Boot(userMain, nil); err != nil {
		t.Fatalf("Boot: %v", err)
	}

	if len(order) != 5 {
		t.Fatalf("order = %v, want 5 entries", order)
	}
	for i, id := range order {
		if id != i+1 {
			t.Fatalf("order = %v, want [1 2 3 4 5]", order)
		}
	}
}

// TestJoinCompleteness verifies thread_join(T) returns only after T is
// finished, and that multiple joiners all return.
func TestJoinCompleteness(t *testing.T) {
	k := testKernel()
	var counter int32
	var joinersReturned int32

	var childID ThreadID

	userMain := func(any) {
		childTCB, err := k.CreateThread(func(any) {
			for i := 0; i < 5; i++ {
				atomic.AddInt32(&counter, 1)
				k.Dispatch()
			}
		}, nil, 64)
		if err != nil {
			t.Fatalf("CreateThread: %v", err)
		}
		childID = childTCB.ID

		var wg sync.WaitGroup
		for i := 0; i < 3; i++ {
			wg.Add(1)
			joiner, err := k.CreateThread(func(any) {
				k.WaitForThread(childTCB)
				atomic.AddInt32(&joinersReturned, 1)
				wg.Done()
			}, nil, 64)
			if err != nil {
				t.Fatalf("CreateThread joiner: %v", err)
			}
			k.WaitForThread(joiner)
			wg.Wait()
		}
	}
	if err := k.Boot(userMain, nil); err != nil {
		t.Fatalf("Boot: %v", err)
	}

	if counter != 5 {
		t.Fatalf("counter = %d, want 5", counter)
	}
	if joinersReturned != 3 {
		t.Fatalf("joinersReturned = %d, want 3", joinersReturned)
	}
	if _, ok := k.ThreadByID(childID); ok {
		t.Fatalf("child thread's storage should have been released")
	}
}

// TestSleepZeroTicks verifies sleep with ticks = 0 returns immediately,
// with no context switch.
func TestSleepZeroTicks(t *testing.T) {
	k := testKernel()
	userMain := func(any) {
		if err := k.Sleep(0); err != nil {
			t.Errorf("Sleep(0): %v", err)
		}
	}
	if err := k.Boot(userMain, nil); err != nil {
		t.Fatalf("Boot: %v", err)
	}
}

// TestJoinSelf verifies thread_join(self) returns without blocking.
func TestJoinSelf(t *testing.T) {
	k := testKernel()
	userMain := func(any) {
		self := k.Running()
		if err := k.WaitForThread(self); err != nil {
			t.Errorf("WaitForThread(self): %v", err)
		}
	}
	if err := k.Boot(userMain, nil); err != nil {
		t.Fatalf("Boot: %v", err)
	}
}

// TestAllocationFailureThenRecovery verifies thread_create fails cleanly
// against an exhausted allocator and succeeds again once it recovers.
func TestAllocationFailureThenRecovery(t *testing.T) {
	alloc := &toggleAllocator{allow: true, inner: NewArenaAllocator(1 << 20)}
	k := New(config.Default(), alloc, nil)

	var gotErr error
	var recovered bool

	userMain := func(any) {
		alloc.allow = false
		_, gotErr = k.CreateThread(func(any) {}, nil, 64)

		alloc.allow = true
		tcb, err := k.CreateThread(func(any) {}, nil, 64)
		if err != nil {
			t.Errorf("CreateThread after recovery: %v", err)
			return
		}
		recovered = true
		k.WaitForThread(tcb)
	}
	if err := k.Boot(userMain, nil); err != nil {
		t.Fatalf("Boot: %v", err)
	}

	if gotErr != kernelerr.ENOMEM {
		t.Fatalf("CreateThread while exhausted = %v, want ENOMEM", gotErr)
	}
	if !recovered {
		t.Fatalf("CreateThread did not succeed once the allocator recovered")
	}
}

// toggleAllocator fails every Alloc while allow is false and passes
// through to inner while it is true. The test starts it allowing, so Boot
// can allocate the userMain thread, and turns it off inside userMain.
type toggleAllocator struct {
	allow bool
	inner *ArenaAllocator
}

func (a *toggleAllocator) Alloc(size int) (uintptr, bool) {
	if !a.allow {
		return 0, false
	}
	return a.inner.Alloc(size)
}

func (a *toggleAllocator) Free(ptr uintptr) bool {
	return a.inner.Free(ptr)
}
