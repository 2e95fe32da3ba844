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

// Package kernelerr defines the sentinel errors syscall handlers return.
// It follows the same shape as gVisor's errors/linuxerr package:
// package-level sentinels that are themselves errors, plus a mapping from a
// sentinel back to the integer the trap dispatcher writes into a0. Unlike
// linuxerr, the numbering here is kernel-internal rather than POSIX errno —
// the syscall ABI only requires a negative return on failure, not a
// specific errno namespace.
package kernelerr

import "fmt"

// Errno is a negative status code placed in a0 on syscall failure.
type Errno struct {
	code int64
	name string
}

func (e *Errno) Error() string { return e.name }

// Code returns the numeric value this sentinel maps to in a0.
func (e *Errno) Code() int64 { return e.code }

func newErrno(code int64, name string) *Errno {
	if code >= 0 {
		panic(fmt.Sprintf("kernelerr: %s must be negative, got %d", name, code))
	}
	return &Errno{code: code, name: name}
}

// Sentinel errors returned by syscall handlers and kernel-internal
// operations.
var (
	// EINVAL: bad argument — an unknown semaphore handle or thread body
	// id, a nil thread body, or a pointer mem_free does not recognise. It
	// is also the code ToA0 gives errors that are not sentinels of this
	// package.
	EINVAL = newErrno(-1, "EINVAL")

	// ENOMEM: the backing allocator returned null.
	ENOMEM = newErrno(-2, "ENOMEM")

	// ECLOSED: the semaphore was closed while the caller was blocked in wait.
	ECLOSED = newErrno(-3, "ECLOSED")

	// EBUSY: the caller already has a non-zero sleep counter.
	EBUSY = newErrno(-4, "EBUSY")

	// ESRCH: no such thread handle.
	ESRCH = newErrno(-5, "ESRCH")
)

// ToA0 maps err to the a0 value a syscall handler should return. A nil
// error maps to 0. Any error value that isn't one of this package's
// sentinels maps to EINVAL's code, since the syscall ABI has no room for
// anything richer than a negative integer.
func ToA0(err error) int64 {
	if err == nil {
		return 0
	}
	if e, ok := err.(*Errno); ok {
		return e.code
	}
	return EINVAL.code
}
