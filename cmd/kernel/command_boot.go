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
	"github.com/talismancer/rvkernel/pkg/hal"
	"github.com/talismancer/rvkernel/pkg/kernel"
	"github.com/talismancer/rvkernel/pkg/syscalls"
	"github.com/talismancer/rvkernel/pkg/trap"
)

// bootCommand boots the kernel against a real pseudo-terminal and runs an
// interactive echo userMain until the operator sends Ctrl-D (0x04).
type bootCommand struct {
	configPath string
}

func (*bootCommand) Name() string     { return "boot" }
func (*bootCommand) Synopsis() string { return "boot the kernel against a real pty and echo input" }
func (*bootCommand) Usage() string {
	return `boot [-config=path/to/config.toml]
`
}

func (c *bootCommand) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.configPath, "config", "", "path to a TOML config overriding defaults")
}

func (c *bootCommand) Execute(ctx context.Context, _ *flag.FlagSet, _ ...any) subcommands.ExitStatus {
	log := logrus.StandardLogger()

	cfg := config.Default()
	if c.configPath != "" {
		loaded, err := config.Load(c.configPath)
		if err != nil {
			log.WithError(err).Error("boot: loading config")
			return subcommands.ExitFailure
		}
		cfg = loaded
	}

	pc, slaveName, err := hal.OpenPTYConsole()
	if err != nil {
		log.WithError(err).Error("boot: opening pty")
		return subcommands.ExitFailure
	}
	defer pc.Close()
	fmt.Printf("kernel booted; attach with: cat %s\n", slaveName)

	sys, err := boot.Start(ctx, boot.Options{
		Config: cfg,
		Console: pc,
		PLIC:    hal.NewFakePLIC(),
		Log:     log,
	})
	if err != nil {
		log.WithError(err).Error("boot: starting system")
		return subcommands.ExitFailure
	}
	defer sys.Stop()

	if err := sys.Run(echoMain(sys.Trap), nil); err != nil {
		log.WithError(err).Error("boot: userMain failed")
		return subcommands.ExitFailure
	}
	return subcommands.ExitSuccess
}

const eot = 0x04

// echoMain is the simplest possible userMain: it reads a byte and writes
// it back until the operator sends Ctrl-D.
func echoMain(d *trap.Dispatcher) kernel.Body {
	return func(any) {
		for {
			r := d.Syscall(syscalls.GetChar)
			b := byte(r.A[0])
			if b == eot {
				return
			}
			d.Syscall(syscalls.PutChar, uint64(b))
		}
	}
}
