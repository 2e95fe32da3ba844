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

	"github.com/talismancer/rvkernel/pkg/kernelerr"
)

// TestSemaphoreFIFOOrdering verifies waiters are released in the order
// they blocked, one per signal.
func TestSemaphoreFIFOOrdering(t *testing.T) {
	k := testKernel()
	var mu sync.Mutex
	var order []int
	var sem *Semaphore

	userMain := func(any) {
		s, err := OpenSemaphore(k, 0)
		if err != nil {
			t.Fatalf("OpenSemaphore: %v", err)
		}
		sem = s

		var tcbs []*TCB
		for i := 1; i <= 3; i++ {
			id := i
			tcb, err := k.CreateThread(func(any) {
				sem.Wait()
				mu.Lock()
				order = append(order, id)
				mu.Unlock()
			}, nil, 64)
			if err != nil {
				t.Fatalf("CreateThread(%d): %v", id, err)
			}
			tcbs = append(tcbs, tcb)
		}
		// Let all three threads run up to their Wait() and block.
		for i := 0; i < 3; i++ {
			k.Dispatch()
		}
		for i := 0; i < 3; i++ {
			sem.Signal()
		}
		for _, tcb := range tcbs {
			k.WaitForThread(tcb)
		}
	}
	if err := k.Boot(userMain, nil); err != nil {
		t.Fatalf("Boot: %v", err)
	}

	if len(order) != 3 {
		t.Fatalf("order = %v, want 3 entries", order)
	}
	for i, id := range order {
		if id != i+1 {
			t.Fatalf("order = %v, want [1 2 3]", order)
		}
	}
	if got := sem.Value(); got != 0 {
		t.Fatalf("Value() = %d, want 0", got)
	}
}

// TestSemaphoreWaitSignalInvariant verifies that with n waiters blocked
// and m < n signals delivered, exactly m proceed and the rest remain
// blocked.
func TestSemaphoreWaitSignalInvariant(t *testing.T) {
	k := testKernel()
	var proceeded int32
	var sem *Semaphore

	userMain := func(any) {
		s, err := OpenSemaphore(k, 0)
		if err != nil {
			t.Fatalf("OpenSemaphore: %v", err)
		}
		sem = s

		for i := 0; i < 5; i++ {
			_, err := k.CreateThread(func(any) {
				sem.Wait()
				atomic.AddInt32(&proceeded, 1)
			}, nil, 64)
			if err != nil {
				t.Fatalf("CreateThread: %v", err)
			}
		}
		for i := 0; i < 5; i++ {
			k.Dispatch()
		}
		for i := 0; i < 2; i++ {
			sem.Signal()
		}
		k.Dispatch()
		k.Dispatch()
	}
	if err := k.Boot(userMain, nil); err != nil {
		t.Fatalf("Boot: %v", err)
	}

	if proceeded != 2 {
		t.Fatalf("proceeded = %d, want 2", proceeded)
	}
	if got := sem.Value(); got != -3 {
		t.Fatalf("Value() = %d, want -3 (3 waiters still blocked)", got)
	}
}

// TestSemaphoreCloseWakesAllWaiters verifies closing a semaphore with
// waiters makes every one of them return kernelerr.ECLOSED.
func TestSemaphoreCloseWakesAllWaiters(t *testing.T) {
	k := testKernel()
	var mu sync.Mutex
	var results []error

	userMain := func(any) {
		s, err := OpenSemaphore(k, 0)
		if err != nil {
			t.Fatalf("OpenSemaphore: %v", err)
		}

		var tcbs []*TCB
		for i := 0; i < 3; i++ {
			tcb, err := k.CreateThread(func(any) {
				err := s.Wait()
				mu.Lock()
				results = append(results, err)
				mu.Unlock()
			}, nil, 64)
			if err != nil {
				t.Fatalf("CreateThread: %v", err)
			}
			tcbs = append(tcbs, tcb)
		}
		for i := 0; i < 3; i++ {
			k.Dispatch()
		}

		s.Close()

		for _, tcb := range tcbs {
			k.WaitForThread(tcb)
		}
	}
	if err := k.Boot(userMain, nil); err != nil {
		t.Fatalf("Boot: %v", err)
	}

	if len(results) != 3 {
		t.Fatalf("results = %v, want 3 entries", results)
	}
	for _, err := range results {
		if err != kernelerr.ECLOSED {
			t.Fatalf("waiter result = %v, want ECLOSED", err)
		}
	}
}

// TestEdgeDrivenSemaphoreAbsorbsExtraSignals covers the UART TX-ready
// semaphore's special case: once a blocked waiter has been woken, further
// Signals arriving before it runs again are absorbed instead of
// accumulating value, so a burst of repeated TX-ready
// interrupts doesn't let a later Wait() return without a fresh signal.
func TestEdgeDrivenSemaphoreAbsorbsExtraSignals(t *testing.T) {
	k := testKernel()
	var waitErr error
	var sem *Semaphore

	userMain := func(any) {
		s, err := OpenEdgeDrivenSemaphore(k, 0)
		if err != nil {
			t.Fatalf("OpenEdgeDrivenSemaphore: %v", err)
		}
		sem = s

		tcb, err := k.CreateThread(func(any) {
			waitErr = s.Wait()
		}, nil, 64)
		if err != nil {
			t.Fatalf("CreateThread: %v", err)
		}
		k.Dispatch() // let the waiter block on s

		s.Signal() // wakes the waiter: value -1 -> 0
		s.Signal() // no waiter left; value >= 0, absorbed
		s.Signal() // absorbed again

		k.WaitForThread(tcb)
	}
	if err := k.Boot(userMain, nil); err != nil {
		t.Fatalf("Boot: %v", err)
	}

	if waitErr != nil {
		t.Fatalf("Wait() = %v, want nil", waitErr)
	}
	if got := sem.Value(); got != 0 {
		t.Fatalf("Value() = %d, want 0 (extra signals absorbed)", got)
	}
}
