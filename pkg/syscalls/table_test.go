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

package syscalls

import (
	"testing"

	"github.com/talismancer/rvkernel/pkg/arch"
	"github.com/talismancer/rvkernel/pkg/config"
	"github.com/talismancer/rvkernel/pkg/console"
	"github.com/talismancer/rvkernel/pkg/hal"
	"github.com/talismancer/rvkernel/pkg/kernel"
	"github.com/talismancer/rvkernel/pkg/kernelerr"
)

func newTestTable(t *testing.T) (*kernel.Kernel, *Table) {
	t.Helper()
	k := kernel.New(config.Default(), kernel.NewArenaAllocator(1<<20), nil)
	hw := hal.NewLoopbackConsole()
	con, err := console.New(k, hw, 16, nil)
	if err != nil {
		t.Fatalf("console.New: %v", err)
	}
	return k, New(k, con)
}

func TestLookupUnknownCode(t *testing.T) {
	_, table := newTestTable(t)
	if _, ok := table.Lookup(0x99); ok {
		t.Fatalf("Lookup(0x99) found an entry, want none")
	}
}

func TestMemAllocFreeRoundTrip(t *testing.T) {
	k, table := newTestTable(t)
	userMain := func(any) {
		tf := &arch.TrapFrame{}
		tf.A[1] = 64
		table.memAlloc(tf)
		if int64(tf.A[0]) <= 0 {
			t.Fatalf("memAlloc a0 = %d, want a positive pointer", int64(tf.A[0]))
		}
		ptr := tf.A[0]

		free := &arch.TrapFrame{}
		free.A[1] = ptr
		table.memFree(free)
		if free.A[0] != 0 {
			t.Fatalf("memFree a0 = %d, want 0", int64(free.A[0]))
		}
	}
	if err := k.Boot(userMain, nil); err != nil {
		t.Fatalf("Boot: %v", err)
	}
}

func TestMemFreeUnknownPointer(t *testing.T) {
	k, table := newTestTable(t)
	userMain := func(any) {
		tf := &arch.TrapFrame{}
		tf.A[1] = 0xdeadbeef
		table.memFree(tf)
		if int64(tf.A[0]) != kernelerr.EINVAL.Code() {
			t.Fatalf("memFree a0 = %d, want EINVAL", int64(tf.A[0]))
		}
	}
	if err := k.Boot(userMain, nil); err != nil {
		t.Fatalf("Boot: %v", err)
	}
}

func TestThreadJoinUnknownHandleIsNoop(t *testing.T) {
	k, table := newTestTable(t)
	userMain := func(any) {
		tf := &arch.TrapFrame{}
		tf.A[1] = 0xffff // no thread was ever assigned this id
		table.threadJoin(tf)
		if int64(tf.A[0]) != 0 {
			t.Fatalf("threadJoin(unknown) a0 = %d, want 0", int64(tf.A[0]))
		}
	}
	if err := k.Boot(userMain, nil); err != nil {
		t.Fatalf("Boot: %v", err)
	}
}

func TestSemWaitUnknownHandle(t *testing.T) {
	k, table := newTestTable(t)
	userMain := func(any) {
		tf := &arch.TrapFrame{}
		tf.A[1] = 0xffff
		table.semWait(tf)
		if int64(tf.A[0]) != kernelerr.EINVAL.Code() {
			t.Fatalf("semWait(unknown) a0 = %d, want EINVAL", int64(tf.A[0]))
		}
	}
	if err := k.Boot(userMain, nil); err != nil {
		t.Fatalf("Boot: %v", err)
	}
}
