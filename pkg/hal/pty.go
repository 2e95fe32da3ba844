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

import (
	"io"
	"sync"

	"github.com/containerd/console"
	"github.com/kr/pty"
)

// PTYConsole backs a Console with one side of a real pseudo-terminal
// pair, for `cmd/kernel`'s interactive demo: the kernel's master side is
// put in raw mode with containerd/console so the output worker's bytes
// reach the terminal unprocessed by line discipline, and a background
// reader goroutine feeds arriving bytes into an RX queue of the same shape
// LoopbackConsole keeps, so PTYConsole and LoopbackConsole satisfy
// hal.Console identically from the kernel's point of view.
type PTYConsole struct {
	master console.Console
	slave  io.Closer

	mu sync.Mutex
	rx []byte
}

// OpenPTYConsole allocates a pty pair, puts the master side in raw mode,
// and starts relaying slave-side input into the Console's RX queue. The
// returned slaveName is the path a user can `cat`/`screen` into to drive
// the simulated serial line.
func OpenPTYConsole() (c *PTYConsole, slaveName string, err error) {
	master, slave, err := pty.Open()
	if err != nil {
		return nil, "", err
	}
	mc, err := console.ConsoleFromFile(master)
	if err != nil {
		slave.Close()
		master.Close()
		return nil, "", err
	}
	if err := mc.SetRaw(); err != nil {
		slave.Close()
		master.Close()
		return nil, "", err
	}

	pc := &PTYConsole{master: mc, slave: slave}
	go pc.relayLoop()
	return pc, slave.Name(), nil
}

func (c *PTYConsole) relayLoop() {
	buf := make([]byte, 1)
	for {
		n, err := c.master.Read(buf)
		if n > 0 {
			c.mu.Lock()
			c.rx = append(c.rx, buf[0])
			c.mu.Unlock()
		}
		if err != nil {
			return
		}
	}
}

// Status reports TXStatusBit always (the pty master is always writable for
// our byte-at-a-time use), and RXStatusBit when relayed input is pending.
func (c *PTYConsole) Status() byte {
	c.mu.Lock()
	defer c.mu.Unlock()
	s := byte(TXStatusBit)
	if len(c.rx) > 0 {
		s |= RXStatusBit
	}
	return s
}

// ReadByte pops the next relayed RX byte.
func (c *PTYConsole) ReadByte() byte {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.rx) == 0 {
		return 0
	}
	b := c.rx[0]
	c.rx = c.rx[1:]
	return b
}

// WriteByte writes b to the pty master, i.e. to whatever is attached to
// the slave side.
func (c *PTYConsole) WriteByte(b byte) {
	c.master.Write([]byte{b})
}

// Close releases the pty pair.
func (c *PTYConsole) Close() error {
	c.slave.Close()
	return c.master.Close()
}
