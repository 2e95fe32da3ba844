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

import "github.com/talismancer/rvkernel/pkg/list"

// scheduler is the FIFO ready queue. All threads are equal priority and
// round-robin; there is no priority scheme.
type scheduler struct {
	ready *list.Queue[*TCB]
}

func newScheduler() *scheduler {
	return &scheduler{
		ready: list.NewQueue(
			func(t *TCB) *TCB { return t.schedNext },
			func(t, v *TCB) { t.schedNext = v },
			func(t *TCB) *TCB { return t.schedPrev },
			func(t, v *TCB) { t.schedPrev = v },
		),
	}
}

// put enqueues tcb. front requests LIFO-at-the-head insertion (unused by
// this design today, but kept since put's callers are symmetric either
// way). ifNotSleeping drops the request if tcb's sleep counter is
// non-zero — a guard against a time-slice expiry reinserting a thread
// that also just started sleeping in the same kernel entry.
func (s *scheduler) put(tcb *TCB, front, ifNotSleeping bool) {
	if ifNotSleeping && tcb.sleepTicks != 0 {
		return
	}
	if front {
		s.ready.PushFront(tcb)
	} else {
		s.ready.PushBack(tcb)
	}
	tcb.state = Ready
}

// get pops and returns the head of the ready queue, or nil if it is empty.
func (s *scheduler) get() *TCB {
	return s.ready.PopFront()
}

// Len reports how many threads are currently ready (not running, not
// blocked).
func (s *scheduler) Len() int { return s.ready.Len() }
