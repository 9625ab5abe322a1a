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

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
)

//===----------------------------------------------------------------------------------------====//
// Config
//===----------------------------------------------------------------------------------------====//

// DefaultTaskQuota is the task quota used when Config.TaskQuota is unset. It matches the order of
// magnitude of one scheduling slice in latency-oriented event loops.
const DefaultTaskQuota = 500 * time.Microsecond

// Config contains options to configure a Runtime.
type Config struct {
	// The number of shards to create (required, must be greater than 0). Each shard owns one
	// goroutine pinned to an OS thread.
	NumShards uint32

	// The time budget one batch of tasks may consume before NeedPreempt starts reporting true on
	// the shard. Defaults to DefaultTaskQuota.
	TaskQuota time.Duration

	// Logger receives runtime lifecycle events. If not set, logging is disabled.
	Logger *zap.Logger
}

// Validate verifies config values.
func (config *Config) Validate() error {
	if config.NumShards == 0 {
		return errors.New(`Runtime: NumShards must be a non-zero value which specifies the number ` +
			`of shards (worker threads) owned by the runtime. If you have no idea, try to set the ` +
			`value to uint32(runtime.GOMAXPROCS(-1)).`)
	}
	return nil
}

//===----------------------------------------------------------------------------------------====//
// Runtime
//===----------------------------------------------------------------------------------------====//

// ErrInvalidShard is returned by SubmitTo when the given shard id is out of range.
var ErrInvalidShard = errors.New("shard: invalid shard id")

// A Runtime owns a fixed set of shards. Shards are created and started by New and stop only when
// the runtime is shut down; there is no dynamic resizing. Tasks are homed on a single shard for
// their entire life, so beyond the runtime's packed state word there is no shared scheduler state
// to contend on.
type Runtime struct {
	// A lock-free word that contains the run state and the live shard count
	state runtimeState

	// Configuration
	config *Config

	logger *zap.Logger

	shards []*Shard

	// Mutex for guarding terminations.
	mutex sync.Mutex

	// Channels that are used for waiting termination. This is guarded by mutex.
	terminations []chan<- bool
}

// New creates a Runtime from given config and starts its shards. The shards begin processing
// submitted work immediately.
func New(config Config) (*Runtime, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	if config.TaskQuota <= 0 {
		config.TaskQuota = DefaultTaskQuota
	}

	logger := config.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	rt := &Runtime{
		state:  makeRuntimeState(runtimeRunStateRunning, config.NumShards),
		config: &config,
		logger: logger,
		shards: make([]*Shard, config.NumShards),
	}

	for i := range rt.shards {
		rt.shards[i] = &Shard{
			runtime: rt,
			id:      uint32(i),
			queue:   newTaskQueue(),
		}
	}

	// Start the event loops only after every shard is constructed: a task on shard 0 may
	// immediately submit to shard N-1.
	for _, s := range rt.shards {
		go s.loop()
	}

	logger.Info("runtime started", zap.Uint32("shards", config.NumShards))
	return rt, nil
}

// ShardCount returns the number of shards owned by the runtime.
func (rt *Runtime) ShardCount() uint32 {
	return uint32(len(rt.shards))
}

// Shard returns the shard with the given id. It panics if id is out of range; use SubmitTo for a
// checked entry point.
func (rt *Runtime) Shard(id uint32) *Shard {
	if id >= rt.ShardCount() {
		panic(fmt.Sprintf("shard: id %d out of range (runtime has %d shards)", id, rt.ShardCount()))
	}
	return rt.shards[id]
}

// CurrentShard returns the shard whose event loop the caller is running on, or (nil, false) when
// called from a goroutine that does not belong to this runtime.
func (rt *Runtime) CurrentShard() (*Shard, bool) {
	for _, s := range rt.shards {
		if s.Local() {
			return s, true
		}
	}
	return nil, false
}

// Shutdown shuts down the runtime. Previously submitted tasks are executed but no new tasks will
// be accepted. It is an no-op if the runtime has already shut down. It returns a channel which
// will receive a notification when all shard loops have exited after the shutdown request.
//
// Tasks parked on a pending future at shutdown are never polled again; they are released once
// their outstanding wakers are.
func (rt *Runtime) Shutdown() (terminated <-chan bool, err error) {
	mutex := &rt.mutex

	// Hold lock for potential modification on rt.terminations. This also avoids races with signals
	// in tryTerminate.
	mutex.Lock()

	// Create a channel for return which notifies the completion of termination.
	termination := make(chan bool, 1)

	// Transition the state to SHUTDOWN. After that, every queue refuses new work.
	prevState := rt.state.SetRunState(runtimeRunStateShutdown)

	if prevState.IsTerminated() {
		// Runtime was already terminated. Fill the returning channel with termination signal.
		termination <- true
	} else {
		// Append a termination to rt.terminations.
		rt.terminations = append(rt.terminations, termination)

		// Transition from RUNNING.
		if prevState.IsRunning() {
			rt.logger.Info("runtime shutting down")
			// Close the queues. This also unblocks shard loops that are waiting for tasks on an
			// empty queue; each loop drains its remaining tasks and exits.
			for _, s := range rt.shards {
				s.queue.Close()
			}
		}
	}

	// Unlock mutex to call tryTerminate.
	mutex.Unlock()

	// Try to advance to TERMINATED.
	rt.tryTerminate()

	return termination, nil
}

// shardStopped is called by each shard loop right before it exits.
func (rt *Runtime) shardStopped() {
	rt.state.DecLiveShards()
	rt.tryTerminate()
}

// tryTerminate tries to transition to TERMINATED if the runtime is shut down and every shard loop
// has exited.
func (rt *Runtime) tryTerminate() {
	// Load state.
	state := rt.state.Load()

	// Quick return if we have not received shutdown request or is already terminated.
	if !state.IsShutdown() || state.IsTerminated() {
		return
	}

	// Quick return if some shard loops are still running.
	if state.LiveShards() > 0 {
		return
	}

	// Lock mutex to send termination signals after transition to TERMINATED.
	mutex := &rt.mutex
	mutex.Lock()
	defer mutex.Unlock()

	if !rt.state.Load().IsTerminated() {
		// Transition to TERMINATED. No shard loop can restart after SHUTDOWN, so the live count
		// stays 0.
		rt.state.SetRunState(runtimeRunStateTerminated)
		rt.logger.Info("runtime terminated")

		// Send termination signals.
		terminations := rt.terminations
		rt.terminations = nil
		for _, termination := range terminations {
			termination <- true
		}
	}
}
