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

package main

import (
	"context"
	"flag"
	"fmt"
	"time"

	"github.com/google/subcommands"
	"github.com/sirupsen/logrus"

	"github.com/talismancer/rvkernel/pkg/boot"
	"github.com/talismancer/rvkernel/pkg/config"
	"github.com/talismancer/rvkernel/pkg/demo"
	"github.com/talismancer/rvkernel/pkg/hal"
)

// inspectCommand is a development-only affordance, not part of the
// kernel's trap surface: it runs the ping-pong scenario and prints the
// thread table a few times while it's in flight.
type inspectCommand struct {
	samples int
}

func (*inspectCommand) Name() string     { return "inspect" }
func (*inspectCommand) Synopsis() string { return "print the thread table while a demo scenario runs" }
func (*inspectCommand) Usage() string {
	return `inspect [-samples=N]
`
}

func (c *inspectCommand) SetFlags(f *flag.FlagSet) {
	f.IntVar(&c.samples, "samples", 5, "number of thread-table snapshots to print")
}

func (c *inspectCommand) Execute(ctx context.Context, _ *flag.FlagSet, _ ...any) subcommands.ExitStatus {
	log := logrus.StandardLogger()
	con := hal.NewLoopbackConsole()
	con.EnableLoopback()

	sys, err := boot.Start(ctx, boot.Options{
		Config:  config.Default(),
		Console: con,
		PLIC:    hal.NewFakePLIC(),
		Log:     log,
	})
	if err != nil {
		log.WithError(err).Error("inspect: boot failed")
		return subcommands.ExitFailure
	}
	defer sys.Stop()

	done := make(chan error, 1)
	go func() {
		done <- sys.Run(demo.PingPong(sys.Trap, sys.Table, 2000), nil)
	}()

	for i := 0; i < c.samples; i++ {
		select {
		case err := <-done:
			if err != nil {
				log.WithError(err).Error("inspect: run failed")
				return subcommands.ExitFailure
			}
			return subcommands.ExitSuccess
		case <-time.After(2 * time.Millisecond):
		}
		fmt.Printf("--- snapshot %d ---\n", i)
		for _, snap := range sys.K.Inspect() {
			fmt.Printf("thread %d: state=%v sleep=%d slice=%d\n", snap.ID, snap.State, snap.SleepTicks, snap.SliceUsed)
		}
	}
	<-done
	return subcommands.ExitSuccess
}
