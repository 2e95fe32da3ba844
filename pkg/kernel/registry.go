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

import "github.com/google/btree"

// registry is the "all created threads" list, realized as an ordered
// btree keyed by ThreadID rather than a linked list: thread_join and the
// timer handler's sleep sweep both need an ordered, total traversal of
// every live thread, and a btree gives that without an extra intrusive-list
// field on TCB purely for bookkeeping that never needs O(1) removal from
// the middle.
type registry struct {
	tree *btree.BTree
}

type tcbItem struct {
	id  ThreadID
	tcb *TCB
}

func (i tcbItem) Less(than btree.Item) bool { return i.id < than.(tcbItem).id }

func newRegistry() *registry {
	return &registry{tree: btree.New(8)}
}

func (r *registry) add(t *TCB) {
	r.tree.ReplaceOrInsert(tcbItem{id: t.ID, tcb: t})
}

func (r *registry) remove(id ThreadID) {
	r.tree.Delete(tcbItem{id: id})
}

func (r *registry) get(id ThreadID) (*TCB, bool) {
	item := r.tree.Get(tcbItem{id: id})
	if item == nil {
		return nil, false
	}
	return item.(tcbItem).tcb, true
}

// each visits every registered TCB in ascending ThreadID order —
// allocation order — which the timer sweep must preserve when it
// re-readies expired sleepers.
func (r *registry) each(fn func(*TCB)) {
	r.tree.Ascend(func(item btree.Item) bool {
		fn(item.(tcbItem).tcb)
		return true
	})
}

func (r *registry) len() int { return r.tree.Len() }
