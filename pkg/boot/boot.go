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

// Package boot wires together the kernel, the console driver, the syscall
// table and the trap dispatcher, and drives the simulated hardware that a
// real board's timer and PLIC would otherwise deliver on their own.
package boot

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/talismancer/rvkernel/pkg/arch"
	"github.com/talismancer/rvkernel/pkg/config"
	"github.com/talismancer/rvkernel/pkg/console"
	"github.com/talismancer/rvkernel/pkg/csr"
	"github.com/talismancer/rvkernel/pkg/hal"
	"github.com/talismancer/rvkernel/pkg/kernel"
	"github.com/talismancer/rvkernel/pkg/syscalls"
	"github.com/talismancer/rvkernel/pkg/trap"
)

// DefaultTickInterval is the wall-clock period standing in for one timer
// tick when no real hart is generating them.
const DefaultTickInterval = 2 * time.Millisecond

// Options configures one System.
type Options struct {
	Config       config.Config
	Console      hal.Console
	PLIC         hal.PLIC
	Allocator    kernel.Allocator
	Log          logrus.FieldLogger
	TickInterval time.Duration
}

// System is a fully wired, running kernel instance: the kernel itself, the
// console driver, the syscall table, and the trap dispatcher, plus the
// background goroutines simulating the timer and the PLIC.
type System struct {
	K     *kernel.Kernel
	Con   *console.Driver
	Table *syscalls.Table
	Trap  *trap.Dispatcher

	stop chan struct{}
}

// Start brings up a System: the console driver and basic config
// validation run concurrently through an errgroup, so boot fails
// atomically (propagating, say, exhausted UART-ready retries) rather
// than partially wiring the kernel. On success it starts the simulated
// timer and external-interrupt pumps.
func Start(ctx context.Context, opts Options) (*System, error) {
	if opts.Log == nil {
		opts.Log = logrus.StandardLogger()
	}
	if opts.TickInterval <= 0 {
		opts.TickInterval = DefaultTickInterval
	}
	if opts.Allocator == nil {
		opts.Allocator = kernel.NewArenaAllocator(opts.Config.ArenaBytes)
	}

	k := kernel.New(opts.Config, opts.Allocator, opts.Log)

	var con *console.Driver
	g, _ := errgroup.WithContext(ctx)
	g.Go(func() error {
		c, err := console.New(k, opts.Console, opts.Config.ConsoleQueueCapacity, opts.Log)
		if err != nil {
			return fmt.Errorf("boot: console driver: %w", err)
		}
		con = c
		return nil
	})
	g.Go(func() error {
		if opts.Config.SliceTicks <= 0 {
			return fmt.Errorf("boot: SliceTicks must be positive, got %d", opts.Config.SliceTicks)
		}
		return nil
	})
	g.Go(func() error {
		if opts.PLIC == nil {
			return fmt.Errorf("boot: PLIC is required")
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	table := syscalls.New(k, con)
	dispatcher := trap.New(k, opts.PLIC, con, opts.Console, table, opts.Log)

	sys := &System{K: k, Con: con, Table: table, Trap: dispatcher, stop: make(chan struct{})}
	go sys.runTimer(opts.TickInterval)
	go sys.runExternalPump(opts.Console, opts.TickInterval)

	opts.Log.Info("boot: kernel, console driver, and interrupt pumps are running")
	return sys, nil
}

// Stop halts the simulated timer and interrupt pumps. It does not affect
// threads already created; callers typically call this after Run returns.
func (s *System) Stop() {
	close(s.stop)
}

// Run boots userMain as the kernel's user-main thread and blocks until it
// exits — the kernel returns to its caller only once userMain completes.
func (s *System) Run(userMain kernel.Body, args any) error {
	return s.K.Boot(userMain, args)
}

func (s *System) runTimer(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-s.stop:
			return
		case <-ticker.C:
			s.Trap.HandleTrap(&arch.TrapFrame{Scause: csr.CauseSoftwareInterrupt})
		}
	}
}

// runExternalPump polls the console's status register the way a real PLIC
// would deliver edge-triggered IRQs, at a tighter interval than the timer
// so RX/TX events are observed promptly.
func (s *System) runExternalPump(hw hal.Console, tickInterval time.Duration) {
	ticker := time.NewTicker(tickInterval / 4)
	defer ticker.Stop()
	for {
		select {
		case <-s.stop:
			return
		case <-ticker.C:
			if hw.Status() != 0 {
				s.Trap.HandleTrap(&arch.TrapFrame{Scause: csr.CauseExternalInterrupt})
			}
		}
	}
}
