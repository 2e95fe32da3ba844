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

// Package config loads the kernel's boot-time tunables, following the same
// "flags/file with compiled-in defaults" shape runsc/config uses for the
// sandbox runtime, but via a TOML file rather than command-line flags,
// since this kernel has no process-per-invocation CLI surface of its own
// beyond launching the kernel image.
package config

import "github.com/BurntSushi/toml"

// Config holds the numbers otherwise left as reference constants (a
// default time slice, a queue capacity of 100) so a deployment can tune
// them without recompiling.
type Config struct {
	// SliceTicks is the number of timer ticks a thread runs before
	// preemption.
	SliceTicks int `toml:"slice_ticks"`

	// ConsoleQueueCapacity bounds the input and output byte queues
	// (reference value 100 for both).
	ConsoleQueueCapacity int `toml:"console_queue_capacity"`

	// DefaultStackWords is the stack size new threads are created with
	// when the caller does not specify one explicitly. It is cosmetic in
	// this module: Go manages the real goroutine stack.
	DefaultStackWords int `toml:"default_stack_words"`

	// ArenaBytes sizes the default Allocator's simulated heap arena.
	ArenaBytes int `toml:"arena_bytes"`
}

// Default returns the reference configuration: a fixed default time
// slice and a capacity-100 console queue pair.
func Default() Config {
	return Config{
		SliceTicks:           10,
		ConsoleQueueCapacity: 100,
		DefaultStackWords:    512,
		ArenaBytes:           1 << 20,
	}
}

// Load reads a TOML file at path, applying it on top of Default() so an
// incomplete file only overrides the keys it mentions.
func Load(path string) (Config, error) {
	cfg := Default()
	_, err := toml.DecodeFile(path, &cfg)
	if err != nil {
		return Config{}, err
	}
	return cfg, nil
}
