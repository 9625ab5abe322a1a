/**
 * Copyright (c) 2019, The Strand Authors.
 *
 * Permission to use, copy, modify, and/or distribute this software for any
 * purpose with or without fee is hereby granted, provided that the above
 * copyright notice and this permission notice appear in all copies.
 *
 * THE SOFTWARE IS PROVIDED "AS IS" AND THE AUTHOR DISCLAIMS ALL WARRANTIES
 * WITH REGARD TO THIS SOFTWARE INCLUDING ALL IMPLIED WARRANTIES OF
 * MERCHANTABILITY AND FITNESS. IN NO EVENT SHALL THE AUTHOR BE LIABLE FOR
 * ANY SPECIAL, DIRECT, INDIRECT, OR CONSEQUENTIAL DAMAGES OR ANY DAMAGES
 * WHATSOEVER RESULTING FROM LOSS OF USE, DATA OR PROFITS, WHETHER IN AN
 * ACTION OF CONTRACT, NEGLIGENCE OR OTHER TORTIOUS ACTION, ARISING OUT OF
 * OR IN CONNECTION WITH THE USE OR PERFORMANCE OF THIS SOFTWARE.
 */

package shard

import "sync/atomic"

// runtimeState contains current state of the Runtime. It packs the run state and the number of
// still-live shards into one int64 word so both can be read and updated atomically with CAS.
type runtimeState int64

// runtimeRunState indicates the running state of a Runtime. It is stored in the high 32 bits of
// runtimeState. The low 32 bits in runtimeRunState must be 0.
type runtimeRunState int64

// Enumeration of runtimeRunState
const (
	runtimeRunStateMask int64 = -4294967296 // 0xffffffff00000000

	// Runtime accepts and processes tasks. The constant is the one and the only one in
	// runtimeRunState that sets the HSB. This makes runtimeState with running state be a negative
	// value and thus enables fast check IsRunning.
	runtimeRunStateRunning runtimeRunState = runtimeRunState(runtimeRunStateMask)

	// Shutdown is invoked on the Runtime. Queued tasks are processed but no new tasks will be
	// accepted.
	runtimeRunStateShutdown = 0 // 0x0 << 32

	// All shard loops have exited and no new tasks are accepted.
	runtimeRunStateTerminated = 4294967296 // 0x1 << 32
)

// RunState reads run state from state word.
func (s runtimeState) RunState() runtimeRunState {
	return runtimeRunState(int64(s) & runtimeRunStateMask)
}

// LiveShards returns number of shard loops that have not exited yet.
func (s runtimeState) LiveShards() uint32 {
	return uint32(s & 0xffffffff)
}

// Load loads state word with atomic.LoadInt64 because it is a lock-free variable. This suppresses
// the errors from Go's race detector. On conventional machines (e.g., x86-64), this is the same as
// dereferencing an int64 pointer. See [0] for more details.
//
// [0]: https://golang.org/doc/articles/race_detector.html#Primitive_unprotected_variable
func (s *runtimeState) Load() runtimeState {
	return runtimeState(atomic.LoadInt64((*int64)(s)))
}

// SetRunState sets the run state.
func (s *runtimeState) SetRunState(newRunState runtimeRunState) (oldState runtimeState) {
	for {
		oldState = s.Load()
		if int64(oldState) >= int64(newRunState) {
			// States are only allowed to transition from RUNNING to SHUTDOWN to TERMINATED.
			return
		}

		newState := makeRuntimeState(newRunState, oldState.LiveShards())
		if atomic.CompareAndSwapInt64((*int64)(s), int64(oldState), int64(newState)) {
			return
		}
	}
}

// IsRunning returns true if the run state is runtimeRunStateRunning.
func (s runtimeState) IsRunning() bool {
	return s < 0
}

// IsShutdown returns true if the runtime received a shutdown request.
func (s runtimeState) IsShutdown() bool {
	return s >= runtimeRunStateShutdown
}

// IsTerminated returns true if the runtime is terminated.
func (s runtimeState) IsTerminated() bool {
	return s >= runtimeRunStateTerminated
}

// DecLiveShards decrements the live shard count in the state by 1. Return the new state after
// decrement.
func (s *runtimeState) DecLiveShards() runtimeState {
	return runtimeState(atomic.AddInt64((*int64)(s), int64(-1)))
}

// makeRuntimeState creates a runtimeState from given run state and live shard count.
func makeRuntimeState(runState runtimeRunState, liveShards uint32) runtimeState {
	return runtimeState(int64(runState) | int64(liveShards))
}
