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
	"runtime"
	"sync/atomic"
	"time"

	"github.com/botobag/strand/future"

	"github.com/petermattis/goid"
	"go.uber.org/zap"
)

// A Shard is one worker of a Runtime. It owns a goroutine pinned to an OS thread which runs a
// cooperative, non-preemptive event loop: queued tasks are executed to completion, one at a time,
// without interruption. All state owned by a shard (including the scheduling state of the tasks
// homed on it) is mutated only from that loop; other goroutines interact with the shard purely by
// submitting closures via Submit.
type Shard struct {
	runtime *Runtime
	id      uint32

	// Ready queue of the event loop.
	queue *taskQueue

	// Goroutine id of the event loop, published by the loop on startup. 0 until the loop runs.
	// Compared against the caller's goroutine id by Local.
	loopID int64

	// Task-quota bookkeeping for NeedPreempt. Touched only by the loop goroutine.
	inBatch       bool
	quotaDeadline time.Time
}

// ID returns the shard's index within its runtime, in [0, ShardCount).
func (s *Shard) ID() uint32 {
	return s.id
}

// Runtime returns the runtime that owns the shard.
func (s *Shard) Runtime() *Runtime {
	return s.runtime
}

// Local reports whether the caller is running on this shard's event loop. It is safe to call from
// any goroutine.
func (s *Shard) Local() bool {
	return goid.Get() == atomic.LoadInt64(&s.loopID)
}

// Submit enqueues fn to run on the shard's event loop and returns without waiting for it. This is
// the relocation primitive of the runtime: it may be called from any goroutine, including
// goroutines that do not belong to any runtime, and never blocks the caller. It fails with
// ErrShardStopped once the runtime has been shut down.
func (s *Shard) Submit(fn func()) error {
	return s.queue.Push(&taskFunc{fn: fn})
}

// schedule puts a task on the shard's ready queue. It must only be called from the shard's own
// event loop; the task/waker bridge routes foreign wake requests here via Submit.
func (s *Shard) schedule(t Task) {
	if err := s.queue.Push(t); err != nil {
		// The runtime is shutting down and the loop is draining its queue for the last time. The
		// wake-up is dropped; the task stays inert until its wakers release it.
		s.runtime.logger.Debug("dropping wake-up for stopped shard", zap.Uint32("shard", s.id))
	}
}

// NeedPreempt reports whether the current batch of tasks has exhausted the shard's task quota and
// the running task should yield to the event loop as soon as possible. It must be called from the
// shard's event loop.
func (s *Shard) NeedPreempt() bool {
	return s.inBatch && time.Now().After(s.quotaDeadline)
}

// MaybeYield returns a Future that suspends once if the shard's task quota is exhausted and
// completes immediately otherwise. Long-running tasks should await it periodically to keep the
// shard responsive.
func (s *Shard) MaybeYield() future.Future {
	if s.NeedPreempt() {
		return future.Yield()
	}
	return future.Ready(nil)
}

// loop is the shard's event loop. It runs on a dedicated goroutine until the queue is closed and
// drained, then reports back to the runtime.
func (s *Shard) loop() {
	// One OS thread per shard. Tasks may rely on thread-local effects (cgo, syscall state) staying
	// put between polls.
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()

	atomic.StoreInt64(&s.loopID, goid.Get())
	logger := s.runtime.logger
	logger.Debug("shard loop started", zap.Uint32("shard", s.id))

	quota := s.runtime.config.TaskQuota
	for {
		task := s.queue.Poll()
		if task == nil {
			// Queue was closed and has been drained.
			break
		}

		if !s.inBatch {
			s.inBatch = true
			s.quotaDeadline = time.Now().Add(quota)
		}

		task.RunAndDispose()

		if s.queue.Empty() {
			s.inBatch = false
		}
	}

	atomic.StoreInt64(&s.loopID, 0)
	logger.Debug("shard loop exited", zap.Uint32("shard", s.id))
	s.runtime.shardStopped()
}
