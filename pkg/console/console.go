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

// Package console is the interrupt-driven UART driver: bounded input and
// output byte queues guarded by four counting semaphores, a dedicated
// output-worker thread, and the ISR halves called from pkg/trap's
// external-interrupt path.
package console

import (
	"errors"
	"sync"
	"time"

	"github.com/cenkalti/backoff"
	"github.com/sirupsen/logrus"

	"github.com/talismancer/rvkernel/pkg/hal"
	"github.com/talismancer/rvkernel/pkg/kernel"
)

// QueueCapacity is the reference capacity for both byte queues: 100 for
// both input and output in the default configuration.
const QueueCapacity = 100

const outputWorkerStackWords = 256

// Driver owns both byte queues and the four semaphores that guard them —
// making explicit that a queue's capacity and its paired semaphores'
// initial values must agree (both derived from the same capacity
// argument to New here, rather than a queue capacity hard-coded
// separately from the semaphores that enforce it).
type Driver struct {
	k   *kernel.Kernel
	hw  hal.Console
	log logrus.FieldLogger

	mu  sync.Mutex // guards inQ/outQ; semaphores separately guard admission counts
	inQ *byteQueue
	outQ *byteQueue

	inEmpty, inFull   *kernel.Semaphore
	outEmpty, outFull *kernel.Semaphore
	txReady           *kernel.Semaphore

	outputWorker *kernel.TCB
}

// New builds a Driver, waits for the UART to report itself ready (a
// bounded backoff rather than an unbounded busy spin), opens the four
// semaphores, and starts the output-worker thread.
func New(k *kernel.Kernel, hw hal.Console, capacity int, log logrus.FieldLogger) (*Driver, error) {
	if log == nil {
		log = logrus.StandardLogger()
	}
	if err := waitUARTReady(hw); err != nil {
		return nil, err
	}

	inEmpty, err := kernel.OpenSemaphore(k, capacity)
	if err != nil {
		return nil, err
	}
	inFull, err := kernel.OpenSemaphore(k, 0)
	if err != nil {
		return nil, err
	}
	outEmpty, err := kernel.OpenSemaphore(k, capacity)
	if err != nil {
		return nil, err
	}
	outFull, err := kernel.OpenSemaphore(k, 0)
	if err != nil {
		return nil, err
	}
	txReady, err := kernel.OpenEdgeDrivenSemaphore(k, 0)
	if err != nil {
		return nil, err
	}

	d := &Driver{
		k: k, hw: hw, log: log,
		inQ: newByteQueue(capacity), outQ: newByteQueue(capacity),
		inEmpty: inEmpty, inFull: inFull,
		outEmpty: outEmpty, outFull: outFull,
		txReady: txReady,
	}

	worker, err := k.CreateThread(d.outputWorkerBody, nil, outputWorkerStackWords)
	if err != nil {
		return nil, err
	}
	d.outputWorker = worker

	return d, nil
}

func waitUARTReady(hw hal.Console) error {
	b := backoff.NewExponentialBackOff()
	b.MaxElapsedTime = 2 * time.Second
	return backoff.Retry(func() error {
		if hw.Status()&hal.TXStatusBit == 0 {
			return errors.New("console: UART not yet ready to transmit")
		}
		return nil
	}, b)
}

// outputWorkerBody is the output-worker loop: outFull.wait(); read byte;
// TXReady.wait(); write to UART; outEmpty.signal().
func (d *Driver) outputWorkerBody(any) {
	for {
		d.outFull.Wait()
		d.mu.Lock()
		b := d.outQ.removeFirst()
		d.mu.Unlock()

		d.txReady.Wait()
		d.hw.WriteByte(b)
		d.outEmpty.Signal()
	}
}

// PutChar implements the put_char syscall handler's body: it runs in the
// caller's own context, never the output worker's.
func (d *Driver) PutChar(b byte) {
	d.outEmpty.Wait()
	d.mu.Lock()
	d.outQ.addLast(b)
	d.mu.Unlock()
	d.outFull.Signal()
}

// GetChar implements the get_char syscall handler's body.
func (d *Driver) GetChar() byte {
	d.inFull.Wait()
	d.mu.Lock()
	b := d.inQ.removeFirst()
	d.mu.Unlock()
	d.inEmpty.Signal()
	return b
}

// HandleInterrupt is the external-interrupt handler: on a set RX status
// bit it normalises CR to LF and enqueues; on a set TX status bit it
// signals the TX-ready semaphore. It is called from pkg/trap once the
// trap dispatcher has matched the claimed IRQ id against hal.ConsoleIRQ.
//
// inEmpty must be sized so this IRQ-context wait can never actually
// block; Driver enforces that by construction (inEmpty's initial value
// equals the input queue's capacity), so the Wait call below is expected
// to return immediately every time.
func (d *Driver) HandleInterrupt() {
	status := d.hw.Status()
	if status&hal.RXStatusBit != 0 {
		d.inEmpty.Wait()
		b := d.hw.ReadByte()
		if b == '\r' {
			b = '\n'
		}
		d.mu.Lock()
		d.inQ.addLast(b)
		d.mu.Unlock()
		d.inFull.Signal()
	}
	if status&hal.TXStatusBit != 0 {
		d.txReady.Signal()
	}
}
