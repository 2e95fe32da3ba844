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
	"github.com/talismancer/rvkernel/pkg/arch"
	"github.com/talismancer/rvkernel/pkg/kernelerr"
)

// memAlloc: a1 = size. Returns the pointer in a0, or a negative error code
// on allocator exhaustion.
func (t *Table) memAlloc(tf *arch.TrapFrame) {
	a := tf.Args()
	ptr, ok := t.K.AllocBytes(int(a[0].Int()))
	if !ok {
		setError(tf, kernelerr.ENOMEM)
		return
	}
	tf.SetReturn(int64(ptr))
}

// memFree: a1 = pointer.
func (t *Table) memFree(tf *arch.TrapFrame) {
	a := tf.Args()
	if !t.K.FreeBytes(uintptr(a[0].Uint())) {
		setError(tf, kernelerr.EINVAL)
		return
	}
	tf.SetReturn(0)
}

// timeSleep: a1 = ticks.
func (t *Table) timeSleep(tf *arch.TrapFrame) {
	a := tf.Args()
	setError(tf, t.K.Sleep(int(a[0].Int())))
}

// getChar blocks until a received byte is available.
func (t *Table) getChar(tf *arch.TrapFrame) {
	tf.SetReturn(int64(t.Con.GetChar()))
}

// putChar: a1 = byte to transmit.
func (t *Table) putChar(tf *arch.TrapFrame) {
	a := tf.Args()
	t.Con.PutChar(a[0].Byte())
}
