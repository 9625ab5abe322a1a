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
	"sync"
	"sync/atomic"
)

// ErrShardStopped is returned by Submit to indicate the shard no longer accepts work because its
// runtime has been shut down.
var ErrShardStopped = errors.New("shard: stopped")

// taskQueue is the ready queue of a shard. It is essentially a circular linked list which makes
// use of the "intrusive" link in TaskBase to optimize footprint: enqueuing never allocates, and a
// task physically cannot occupy two queue slots at once.
//
// Push may be called from any goroutine; Poll only from the shard's event loop.
type taskQueue struct {
	// Tail of linked list; tail.next is the head of linked list. Guarded by mutex.
	tail Task

	// Number of queued tasks. Maintained with atomics so that Empty can be answered without taking
	// mutex.
	length int64

	// Lock that guards accesses to tail and pollCond.
	mutex sync.Mutex

	// Condition variable for Poll to wait for Push; If the queue is closed, it will be set to nil.
	pollCond *sync.Cond
}

func newTaskQueue() *taskQueue {
	queue := &taskQueue{}
	queue.pollCond = sync.NewCond(&queue.mutex)
	return queue
}

// Push inserts the task at the tail of the queue. It fails with ErrShardStopped once the queue is
// closed. Push never blocks the caller.
func (queue *taskQueue) Push(task Task) error {
	mutex := &queue.mutex
	mutex.Lock()

	// Disallow new element to be added to queue.
	cond := queue.pollCond
	if cond == nil {
		mutex.Unlock()
		return ErrShardStopped
	}

	tail := queue.tail
	empty := tail == nil

	if empty {
		// task is also the head.
		task.setNextTask(task)
	} else {
		// Link head node to task.next.
		task.setNextTask(tail.nextTask())
		// Append task after tail.
		tail.setNextTask(task)
	}
	// Update queue.tail.
	queue.tail = task
	atomic.AddInt64(&queue.length, 1)

	if empty {
		cond.Signal()
	}

	mutex.Unlock()

	return nil
}

// Poll pops one task from the head of the queue, blocking while the queue is open but empty. It
// returns nil once the queue is closed and drained.
func (queue *taskQueue) Poll() Task {
	mutex := &queue.mutex
	mutex.Lock()

	for queue.tail == nil {
		cond := queue.pollCond
		if cond == nil {
			// Closed and drained.
			mutex.Unlock()
			return nil
		}
		// Block on cond to wait for Push. Only do so when the queue is not closed.
		cond.Wait()
	}

	tail := queue.tail
	head := tail.nextTask()

	if tail == head {
		// Become an empty queue.
		queue.tail = nil
	} else {
		// Update head.
		tail.setNextTask(head.nextTask())
	}
	// Help GC.
	head.setNextTask(nil)
	atomic.AddInt64(&queue.length, -1)

	// Unlock mutex for return.
	mutex.Unlock()

	return head
}

// Close stops the queue from accepting new tasks. Tasks that were already submitted remain
// available via Poll; once the queue becomes empty, any call to Poll immediately returns nil.
func (queue *taskQueue) Close() {
	mutex := &queue.mutex
	mutex.Lock()
	cond := queue.pollCond
	if cond != nil {
		// Unblock current waiters.
		cond.Broadcast()
		queue.pollCond = nil
	}
	mutex.Unlock()
}

// Empty returns true if the queue contains no tasks.
func (queue *taskQueue) Empty() bool {
	return atomic.LoadInt64(&queue.length) == 0
}
