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

package console

import (
	"testing"

	"github.com/talismancer/rvkernel/pkg/config"
	"github.com/talismancer/rvkernel/pkg/hal"
	"github.com/talismancer/rvkernel/pkg/kernel"
)

func TestByteQueueWrapsAround(t *testing.T) {
	q := newByteQueue(4)
	q.addLast(1)
	q.addLast(2)
	q.addLast(3)
	if got := q.removeFirst(); got != 1 {
		t.Fatalf("removeFirst() = %d, want 1", got)
	}
	q.addLast(4)
	q.addLast(5) // wraps: buf had room at index 0 again

	for _, want := range []byte{2, 3, 4, 5} {
		if got := q.removeFirst(); got != want {
			t.Fatalf("removeFirst() = %d, want %d", got, want)
		}
	}
}

// TestGetCharNormalizesCR verifies RX normalization: a raw '\r' arriving
// from the wire surfaces to get_char as '\n'. Bytes are injected directly
// and each delivered by one HandleInterrupt call, sidestepping the
// output worker entirely.
func TestGetCharNormalizesCR(t *testing.T) {
	k := kernel.New(config.Default(), kernel.NewArenaAllocator(1<<20), nil)
	hw := hal.NewLoopbackConsole()

	userMain := func(any) {
		d, err := New(k, hw, 16, nil)
		if err != nil {
			t.Fatalf("New: %v", err)
		}
		for _, in := range []byte{'x', '\r', 'y'} {
			hw.Inject(in)
			d.HandleInterrupt()
		}
		for _, want := range []byte{'x', '\n', 'y'} {
			if got := d.GetChar(); got != want {
				t.Fatalf("GetChar() = %q, want %q", got, want)
			}
		}
	}
	if err := k.Boot(userMain, nil); err != nil {
		t.Fatalf("Boot: %v", err)
	}
}

// TestPutCharFlushesToHardware verifies bytes handed to put_char
// eventually reach the hardware via the output-worker thread, once
// simulated TX-ready interrupts let it drain outQ. The test alternates
// yielding to the worker and delivering an interrupt until the hardware
// has observed every byte, rather than assuming any fixed interleaving
// between the two threads.
func TestPutCharFlushesToHardware(t *testing.T) {
	k := kernel.New(config.Default(), kernel.NewArenaAllocator(1<<20), nil)
	hw := hal.NewLoopbackConsole()
	want := []byte{'a', 'b', 'c'}

	userMain := func(any) {
		d, err := New(k, hw, 16, nil)
		if err != nil {
			t.Fatalf("New: %v", err)
		}
		for _, b := range want {
			d.PutChar(b)
		}
		for i := 0; i < 50 && len(hw.Written()) < len(want); i++ {
			k.Dispatch()
			d.HandleInterrupt()
		}
	}
	if err := k.Boot(userMain, nil); err != nil {
		t.Fatalf("Boot: %v", err)
	}

	got := hw.Written()
	if len(got) != len(want) {
		t.Fatalf("Written() = %q, want %q", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("Written() = %q, want %q", got, want)
		}
	}
}
