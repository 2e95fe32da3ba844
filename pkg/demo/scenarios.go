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

// Package demo builds the userMain bodies for a handful of concrete
// scenarios, issued entirely through trap.Dispatcher.Syscall — the same
// ecall path real user code would take — rather than by calling the
// kernel package directly, so a demo run exercises the full trap/syscall
// surface end to end.
package demo

import (
	"sync"
	"sync/atomic"

	"github.com/talismancer/rvkernel/pkg/kernel"
	"github.com/talismancer/rvkernel/pkg/syscalls"
	"github.com/talismancer/rvkernel/pkg/trap"
)

const stackWords = 64

func createAndJoin(d *trap.Dispatcher, t *syscalls.Table, bodies ...kernel.Body) {
	handles := make([]uint64, len(bodies))
	for i, body := range bodies {
		id := t.RegisterBody(body)
		resp := d.Syscall(syscalls.ThreadCreate, 0, id, 0, stackWords)
		handles[i] = resp.A[1]
	}
	for _, h := range handles {
		d.Syscall(syscalls.ThreadJoin, h)
	}
}

// PingPong builds a two-thread scenario: threads alternate on a pair of
// semaphores, each printing 'A' once per round. rounds*2 total bytes are
// written to the console regardless of the kernel's configured time
// slice.
func PingPong(d *trap.Dispatcher, t *syscalls.Table, rounds int) kernel.Body {
	return func(any) {
		semA := d.Syscall(syscalls.SemOpen, 0, 1).A[1]
		semB := d.Syscall(syscalls.SemOpen, 0, 0).A[1]

		t1 := func(any) {
			for i := 0; i < rounds; i++ {
				d.Syscall(syscalls.SemWait, semA)
				d.Syscall(syscalls.PutChar, uint64('A'))
				d.Syscall(syscalls.SemSignal, semB)
			}
		}
		t2 := func(any) {
			for i := 0; i < rounds; i++ {
				d.Syscall(syscalls.SemWait, semB)
				d.Syscall(syscalls.PutChar, uint64('A'))
				d.Syscall(syscalls.SemSignal, semA)
			}
		}
		createAndJoin(d, t, t1, t2)

		d.Syscall(syscalls.SemClose, semA)
		d.Syscall(syscalls.SemClose, semB)
	}
}

// ProducerConsumer builds a producer/consumer scenario: a producer writes
// n bytes via put_char, a consumer reads n bytes via get_char, and *out
// collects what the consumer saw (for a loopback console, CR normalised
// to LF).
func ProducerConsumer(d *trap.Dispatcher, t *syscalls.Table, n int, out *[]byte) kernel.Body {
	return func(any) {
		producer := func(any) {
			for i := 0; i < n; i++ {
				d.Syscall(syscalls.PutChar, uint64(byte(i)))
			}
		}
		consumer := func(any) {
			buf := make([]byte, 0, n)
			for i := 0; i < n; i++ {
				buf = append(buf, byte(d.Syscall(syscalls.GetChar).A[0]))
			}
			*out = buf
		}
		createAndJoin(d, t, producer, consumer)
	}
}

// SleepOrdering builds a sleep-ordering scenario: three threads sleep 30,
// 10, and 20 ticks respectively; *order records the ids in wake order.
func SleepOrdering(d *trap.Dispatcher, t *syscalls.Table, order *[]int) kernel.Body {
	return func(any) {
		var mu sync.Mutex
		record := func(id int) {
			mu.Lock()
			*order = append(*order, id)
			mu.Unlock()
		}
		b1 := func(any) { d.Syscall(syscalls.TimeSleep, 30); record(1) }
		b2 := func(any) { d.Syscall(syscalls.TimeSleep, 10); record(2) }
		b3 := func(any) { d.Syscall(syscalls.TimeSleep, 20); record(3) }
		createAndJoin(d, t, b1, b2, b3)
	}
}

// JoinCounter builds a join scenario: a child thread increments *counter
// 5 times, yielding between increments, then exits; the parent joins and
// observes the final count.
func JoinCounter(d *trap.Dispatcher, t *syscalls.Table, counter *int32) kernel.Body {
	return func(any) {
		child := func(any) {
			for i := 0; i < 5; i++ {
				atomic.AddInt32(counter, 1)
				d.Syscall(syscalls.ThreadDispatch)
			}
		}
		createAndJoin(d, t, child)
	}
}
