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

package hal

import "sync"

// LoopbackConsole is an in-memory Console for tests and for the demo
// scenarios in `cmd/kernel`'s "demo" subcommand. It is always ready to
// transmit; bytes written to it are captured in order for assertions.
// Bytes injected via Inject become available to ReadByte, simulating an
// incoming RX byte the way a real serial line would.
type LoopbackConsole struct {
	mu     sync.Mutex
	rx     []byte
	tx     []byte
	looped bool
}

// NewLoopbackConsole returns an empty LoopbackConsole.
func NewLoopbackConsole() *LoopbackConsole {
	return &LoopbackConsole{}
}

// EnableLoopback makes every subsequent WriteByte also arrive as an RX
// byte, exercising the put_char/get_char round-trip and CR→LF
// normalization without needing a real serial peer.
func (c *LoopbackConsole) EnableLoopback() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.looped = true
}

// Status reports TXStatusBit always, and RXStatusBit whenever Inject'd
// bytes are still pending.
func (c *LoopbackConsole) Status() byte {
	c.mu.Lock()
	defer c.mu.Unlock()
	s := byte(TXStatusBit)
	if len(c.rx) > 0 {
		s |= RXStatusBit
	}
	return s
}

// ReadByte pops the next pending RX byte.
func (c *LoopbackConsole) ReadByte() byte {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.rx) == 0 {
		return 0
	}
	b := c.rx[0]
	c.rx = c.rx[1:]
	return b
}

// WriteByte appends b to the captured TX stream, and to the RX stream too
// when loopback is enabled.
func (c *LoopbackConsole) WriteByte(b byte) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.tx = append(c.tx, b)
	if c.looped {
		c.rx = append(c.rx, b)
	}
}

// Inject queues b to be delivered as an RX byte on the next poll.
func (c *LoopbackConsole) Inject(b byte) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.rx = append(c.rx, b)
}

// Written returns a copy of every byte written so far.
func (c *LoopbackConsole) Written() []byte {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]byte, len(c.tx))
	copy(out, c.tx)
	return out
}

// HasPendingRX reports whether Inject'd bytes are still waiting to be read.
func (c *LoopbackConsole) HasPendingRX() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.rx) > 0
}

// FakePLIC is a single-device PLIC stand-in: every Claim reports
// ConsoleIRQ, since this module's only interrupt source is the console.
type FakePLIC struct {
	mu        sync.Mutex
	completed []uint32
}

// NewFakePLIC returns a FakePLIC.
func NewFakePLIC() *FakePLIC { return &FakePLIC{} }

// Claim always reports ConsoleIRQ.
func (p *FakePLIC) Claim() uint32 { return ConsoleIRQ }

// Complete records the acknowledgement.
func (p *FakePLIC) Complete(id uint32) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.completed = append(p.completed, id)
}

// Completed returns the IRQ ids acknowledged so far, in order.
func (p *FakePLIC) Completed() []uint32 {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]uint32, len(p.completed))
	copy(out, p.completed)
	return out
}
