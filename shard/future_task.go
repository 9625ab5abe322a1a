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
	"sync/atomic"

	"github.com/botobag/strand/future"
)

// schedulingState tracks a futureTask with respect to scheduling. It is mutated only on the
// task's home event loop.
type schedulingState uint8

const (
	// Neither scheduled nor running
	schedIdle schedulingState = iota

	// Scheduled for execution - but not running yet
	schedScheduled

	// Being executed right now
	schedExecuting

	// Being executed, but needs to be rescheduled after the poll finishes
	schedExecutingWithPendingWake

	// The future completed and the task is finished. If the task still exists at this point, it is
	// because it is held alive by the wakers.
	schedDone
)

// futureTask polls a future to completion on its home shard. It is the task/waker bridge: it
// satisfies the shard's Task contract, and it is itself the Waker handed to the future's Poll --
// cloned waker handles are simply additional references to the task.
//
// All methods are not thread-safe and must be called from the home shard's event loop, unless
// marked as thread-safe.
type futureTask struct {
	TaskBase

	// Reference count, used by wakers referring to this task to keep it alive.
	//
	// It must be an atomic because the Waker contract allows wakers to be sent to other goroutines
	// (including other shards and goroutines outside the runtime) and used/cloned there. No field
	// of the task other than this count is ever touched from a foreign goroutine: every other
	// mutation is funneled through the home loop via Submit, and the queue's internal locking
	// orders those mutations against the count updates made by the submitting goroutine.
	//
	// The counter starts as 1 and the execution lifecycle holds that implicit reference until the
	// task finishes.
	refCount uint64

	// A waker must be usable from any goroutine, no matter whether managed by the runtime or not.
	// To satisfy this promise the task preserves a handle to its home shard and routes every
	// foreign request through it.
	home *Shard

	// The state of the task with respect to scheduling. The task must be aware of this in order to
	// properly handle wake-ups. Home loop only.
	sched schedulingState

	// The future being driven. Released (set to nil) when the future completes. Home loop only.
	fut future.Future

	// Receives the future's final value. Completed exactly once, on the home loop.
	handle *Handle

	// released guards against double destruction. Home loop only (or the single remaining
	// goroutine once the runtime has terminated).
	released bool

	// Test hook observing destruction; nil outside tests.
	releaseHook func()
}

var (
	_ Task         = (*futureTask)(nil)
	_ future.Waker = (*futureTask)(nil)
)

// newFutureTask creates a task homed on the given shard. The caller must arrange for the first
// RunAndDispose to happen on that shard's event loop.
func newFutureTask(home *Shard, fut future.Future, handle *Handle) *futureTask {
	return &futureTask{
		refCount: 1,
		home:     home,
		fut:      fut,
		handle:   handle,
	}
}

// doWake applies one wake request to the scheduling state machine. Any number of wake requests
// arriving while the task is executing coalesce into a single pending reschedule: wake-ups are
// level-triggered, not edge-counted.
func (t *futureTask) doWake() {
	switch t.sched {
	case schedIdle:
		// Schedule the task for execution.
		t.home.schedule(t)
		t.sched = schedScheduled

	case schedScheduled:
		// No need to do anything, the task is already scheduled.

	case schedExecuting:
		// The task is being executed right now, but we must remember to re-schedule it after it
		// finishes executing.
		t.sched = schedExecutingWithPendingWake

	case schedExecutingWithPendingWake:
		// No need to do anything, the task will be scheduled after it finishes being polled.

	case schedDone:
		// No need to do anything. The task was finished and waking it won't have any effect.
	}
}

// RunAndDispose implements Task. It performs one poll step and settles the scheduling state
// according to the outcome and to any wake requests that arrived during the poll.
func (t *futureTask) RunAndDispose() {
	if !t.home.Local() {
		panic("shard: task executed outside its home shard's event loop")
	}
	if t.sched == schedDone {
		panic("shard: task resumed after completion")
	}

	t.sched = schedExecuting

	// The task itself is the waker; the future receives it as a borrowed reference and must Clone
	// to retain it.
	result, err := t.fut.Poll(t)

	if err != nil || result != future.PollResultPending {
		// An error completes the task the same way a value does; it is delivered to the consumer
		// through the handle rather than torn through the runtime.
		t.sched = schedDone
		t.fut = nil
		t.handle.complete(result, err)

		// Drop the implicit execution reference. This may destroy the task if no waker handles
		// remain outstanding.
		t.decRefLocal()
		return
	}

	if t.sched == schedExecutingWithPendingWake {
		// The task was woken while it was being executed. Schedule it here again so the wake-ups
		// received during the poll result in exactly one re-poll.
		t.home.schedule(t)
		t.sched = schedScheduled
	} else {
		t.sched = schedIdle
	}
}

func (t *futureTask) incRef() {
	atomic.AddUint64(&t.refCount, 1)
}

// decRef drops one reference and returns the new count. Underflow means a waker was used after
// being consumed or disposed; that is a programmer error.
func (t *futureTask) decRef() uint64 {
	newCount := atomic.AddUint64(&t.refCount, ^uint64(0))
	if newCount == ^uint64(0) {
		panic("shard: task reference count underflow")
	}
	return newCount
}

// decRefLocal drops one reference on the home loop, destroying the task when it was the last one.
func (t *futureTask) decRefLocal() {
	if t.decRef() == 0 {
		t.release()
	}
}

// decRefDetached drops one reference after the home loop has terminated. With no loop left, no
// concurrent home-thread access remains and destruction may run on the calling goroutine.
func (t *futureTask) decRefDetached() {
	if t.decRef() == 0 {
		t.release()
	}
}

// release destroys the task. It runs exactly once, after the reference count reached 0. The
// future reference is necessarily gone by now: the implicit execution reference is only dropped
// when the future completes, which releases it first.
func (t *futureTask) release() {
	if t.released {
		panic("shard: task released twice")
	}
	t.released = true

	if t.releaseHook != nil {
		t.releaseHook()
	}
}

//===----------------------------------------------------------------------------------------====//
// future.Waker operations (thread-safe)
//===----------------------------------------------------------------------------------------====//

// Clone implements future.Waker. Thread-safe.
//
// A plain atomic increment suffices: the holder has exclusive use of the new reference until it
// hands it off, and no task field other than the count is read by foreign goroutines, so there is
// nothing else to synchronize with.
func (t *futureTask) Clone() future.Waker {
	t.incRef()
	return t
}

// Wake implements future.Waker. It wakes the task and consumes the waker: the reference backing
// it is sacrificed to perform the wake. Thread-safe.
func (t *futureTask) Wake() error {
	home := t.home
	if home.Local() {
		t.doWake()
		t.decRefLocal()
		return nil
	}

	// The closure takes ownership of the reference backing this waker and releases it on the home
	// loop after the state transition completes.
	if err := home.Submit(func() {
		t.doWake()
		t.decRefLocal()
	}); err != nil {
		// The home loop has terminated; the wake-up is dropped but the reference must still be
		// balanced.
		t.decRefDetached()
	}
	return nil
}

// WakeByRef implements future.Waker. It wakes the task without consuming the waker. Thread-safe.
func (t *futureTask) WakeByRef() error {
	if t.home.Local() {
		// We can get away without changing the reference count.
		t.doWake()
		return nil
	}

	// We must increase the reference count here so that nobody releases the task in the meantime
	// while the wake request waits to run on the home shard.
	t.incRef()
	return t.Wake() // <- this will decrease the reference count
}

// Dispose implements future.Waker. It drops the reference backing the waker; if it was the last
// one, the task is destroyed on its home loop. Thread-safe.
func (t *futureTask) Dispose() {
	if t.decRef() != 0 {
		return
	}

	home := t.home
	if home.Local() {
		t.release()
		return
	}
	// The count already hit 0, so no other reference can resurface the task; the relocated closure
	// has exclusive access.
	if err := home.Submit(t.release); err != nil {
		t.release()
	}
}
