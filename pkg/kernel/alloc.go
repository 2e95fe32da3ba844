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

import "sync"

// Allocator is the external memory allocator the kernel assumes: a single
// alloc(size) -> pointer|null and free(pointer) -> 0|-1 pair. It backs
// both the mem_alloc/mem_free syscalls and, internally, TCB and semaphore
// storage, so that a test can force an allocation failure without needing
// real low-memory conditions.
//
// This module's own TCB and SCB Go values are always allocated by the Go
// runtime regardless of what Allocator says; Allocator is consulted first,
// as a gate, to decide whether creation is allowed to proceed — the
// allocator is treated as an out-of-scope collaborator the kernel merely
// calls through.
type Allocator interface {
	Alloc(size int) (ptr uintptr, ok bool)
	Free(ptr uintptr) (ok bool)
}

// ArenaAllocator is the default Allocator: a fixed-size byte arena handed
// out by bump allocation, with freed regions tracked on a free list and
// reused first-fit. It is not meant to be fast or space-efficient — it
// exists to give mem_alloc/mem_free and the TCB/SCB gating above a working
// default, since the real allocator is an external collaborator this
// module merely assumes offers this interface.
type ArenaAllocator struct {
	mu    sync.Mutex
	size  int
	bump  uintptr
	free  []region
	alloc map[uintptr]int
}

type region struct {
	ptr  uintptr
	size int
}

// NewArenaAllocator creates an allocator backed by a simulated arena of the
// given size in bytes. The arena holds no real memory; pointers are opaque
// offsets used only to size-check Free and to detect double frees.
func NewArenaAllocator(size int) *ArenaAllocator {
	return &ArenaAllocator{size: size, bump: 1, alloc: make(map[uintptr]int)}
}

// Alloc reserves size bytes, first-fit from the free list, falling back to
// bump allocation from the arena's unused tail. It returns ok=false (a
// null pointer) once the arena is exhausted.
func (a *ArenaAllocator) Alloc(size int) (uintptr, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if size <= 0 {
		return 0, false
	}
	for i, r := range a.free {
		if r.size >= size {
			a.free = append(a.free[:i], a.free[i+1:]...)
			a.alloc[r.ptr] = size
			return r.ptr, true
		}
	}
	if int(a.bump)+size > a.size {
		return 0, false
	}
	ptr := a.bump
	a.bump += uintptr(size)
	a.alloc[ptr] = size
	return ptr, true
}

// Free releases a pointer previously returned by Alloc. It reports false
// (the −1 return a real mem_free syscall would give) on a double free or
// an unknown pointer.
func (a *ArenaAllocator) Free(ptr uintptr) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	size, ok := a.alloc[ptr]
	if !ok {
		return false
	}
	delete(a.alloc, ptr)
	a.free = append(a.free, region{ptr: ptr, size: size})
	return true
}

// FailingAllocator always fails; it exists to test the allocation-failure
// path, where a null return from the allocator makes thread_create return
// −1.
type FailingAllocator struct{}

// Alloc always reports failure.
func (FailingAllocator) Alloc(int) (uintptr, bool) { return 0, false }

// Free always reports failure: there is never anything valid to free.
func (FailingAllocator) Free(uintptr) bool { return false }
