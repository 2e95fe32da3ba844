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

// threadCreate: a1 = handle_out, a2 = registered body id, a3 = body
// argument (passed through to the body unchanged), a4 = stack words.
func (t *Table) threadCreate(tf *arch.TrapFrame) {
	a := tf.Args()
	body, ok := t.lookupBody(a[1].Uint())
	if !ok {
		setError(tf, kernelerr.EINVAL)
		return
	}
	stackWords := int(a[3].Uint())
	arg := a[2].Uint()

	tcb, err := t.K.CreateThread(body, arg, stackWords)
	if err != nil {
		setError(tf, err)
		return
	}
	tf.SetArg(0, uint64(tcb.ID))
	tf.SetReturn(0)
}

// threadExit never returns to its caller: Kernel.Exit runs runtime.Goexit
// after marking the thread finished.
func (t *Table) threadExit(tf *arch.TrapFrame) {
	t.K.Exit()
}

// threadDispatch is the user-mode-visible voluntary yield; the kernel
// itself reaches the same underlying Kernel.Dispatch through a separate
// supervisor-mode path.
func (t *Table) threadDispatch(tf *arch.TrapFrame) {
	t.K.Dispatch()
	tf.SetReturn(0)
}

// threadJoin: a1 = handle. Joining self or a handle that no longer names a
// live thread is a documented no-op.
func (t *Table) threadJoin(tf *arch.TrapFrame) {
	a := tf.Args()
	id := kernel.ThreadID(a[0].Uint())
	tcb, _ := t.K.ThreadByID(id)
	t.K.WaitForThread(tcb)
	tf.SetReturn(0)
}
