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

	"github.com/google/subcommands"
	"github.com/sirupsen/logrus"

	"github.com/talismancer/rvkernel/pkg/boot"
	"github.com/talismancer/rvkernel/pkg/config"
	"github.com/talismancer/rvkernel/pkg/demo"
	"github.com/talismancer/rvkernel/pkg/hal"
)

// demoCommand runs one of the built-in scenario programs to completion
// and prints its observable result.
type demoCommand struct {
	scenario string
	rounds   int
}

func (*demoCommand) Name() string     { return "demo" }
func (*demoCommand) Synopsis() string { return "run a built-in scenario program" }
func (*demoCommand) Usage() string {
	return `demo -scenario=<ping-pong|producer-consumer|sleep-ordering|join-counter>
`
}

func (c *demoCommand) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.scenario, "scenario", "ping-pong", "scenario to run")
	f.IntVar(&c.rounds, "rounds", 3, "rounds for ping-pong (2 prints each)")
}

func (c *demoCommand) Execute(ctx context.Context, _ *flag.FlagSet, _ ...any) subcommands.ExitStatus {
	log := logrus.StandardLogger()
	con := hal.NewLoopbackConsole()
	con.EnableLoopback()

	sys, err := boot.Start(ctx, boot.Options{
		Config:    config.Default(),
		Console:   con,
		PLIC:      hal.NewFakePLIC(),
		Allocator: nil,
		Log:       log,
	})
	if err != nil {
		log.WithError(err).Error("demo: boot failed")
		return subcommands.ExitFailure
	}
	defer sys.Stop()

	switch c.scenario {
	case "ping-pong":
		if err := sys.Run(demo.PingPong(sys.Trap, sys.Table, c.rounds), nil); err != nil {
			log.WithError(err).Error("demo: run failed")
			return subcommands.ExitFailure
		}
		fmt.Printf("output: %s\n", con.Written())

	case "producer-consumer":
		var got []byte
		if err := sys.Run(demo.ProducerConsumer(sys.Trap, sys.Table, 100, &got), nil); err != nil {
			log.WithError(err).Error("demo: run failed")
			return subcommands.ExitFailure
		}
		fmt.Printf("consumed %d bytes, first=%d last=%d\n", len(got), got[0], got[len(got)-1])

	case "sleep-ordering":
		var order []int
		if err := sys.Run(demo.SleepOrdering(sys.Trap, sys.Table, &order), nil); err != nil {
			log.WithError(err).Error("demo: run failed")
			return subcommands.ExitFailure
		}
		fmt.Printf("wake order: %v\n", order)

	case "join-counter":
		var counter int32
		if err := sys.Run(demo.JoinCounter(sys.Trap, sys.Table, &counter), nil); err != nil {
			log.WithError(err).Error("demo: run failed")
			return subcommands.ExitFailure
		}
		fmt.Printf("counter: %d\n", counter)

	default:
		fmt.Printf("unknown scenario %q\n", c.scenario)
		return subcommands.ExitUsageError
	}

	return subcommands.ExitSuccess
}
