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
	"github.com/talismancer/rvkernel/pkg/kernel"
	"github.com/talismancer/rvkernel/pkg/kernelerr"
)

// semOpen: a1 = handle_out, a2 = initial value.
func (t *Table) semOpen(tf *arch.TrapFrame) {
	a := tf.Args()
	s, err := kernel.OpenSemaphore(t.K, int(a[1].Int()))
	if err != nil {
		setError(tf, err)
		return
	}
	tf.SetArg(0, t.registerSem(s))
	tf.SetReturn(0)
}

// semClose: a1 = handle.
func (t *Table) semClose(tf *arch.TrapFrame) {
	a := tf.Args()
	handle := a[0].Uint()
	s, ok := t.lookupSem(handle)
	if !ok {
		setError(tf, kernelerr.EINVAL)
		return
	}
	s.Close()
	t.forgetSem(handle)
	tf.SetReturn(0)
}

// semWait: a1 = handle. Returns kernelerr.ECLOSED (negative in a0) if the
// semaphore was closed while the caller was blocked.
func (t *Table) semWait(tf *arch.TrapFrame) {
	a := tf.Args()
	s, ok := t.lookupSem(a[0].Uint())
	if !ok {
		setError(tf, kernelerr.EINVAL)
		return
	}
	setError(tf, s.Wait())
}

// semSignal: a1 = handle.
func (t *Table) semSignal(tf *arch.TrapFrame) {
	a := tf.Args()
	s, ok := t.lookupSem(a[0].Uint())
	if !ok {
		setError(tf, kernelerr.EINVAL)
		return
	}
	s.Signal()
	tf.SetReturn(0)
}
