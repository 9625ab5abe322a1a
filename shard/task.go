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

// Task represents a unit of work executed by a Shard's event loop. Tasks run to completion
// without interruption; a task that needs to wait must arrange its own rescheduling (see
// futureTask) and return.
//
// Implementations must embed TaskBase which provides the link used by the shard's intrusive run
// queue.
type Task interface {
	// RunAndDispose executes the task. It is invoked exactly once per ready-queue entry, always on
	// the owning shard's event loop. The task may re-enqueue itself before returning.
	RunAndDispose()

	// Accessors for the intrusive run queue link; provided by TaskBase.
	nextTask() Task
	setNextTask(Task)
}

// TaskBase carries the intrusive run-queue link for a Task. Embed it in any type that implements
// Task. The link is owned by the shard's queue and must not be touched by the task itself.
type TaskBase struct {
	next Task
}

func (b *TaskBase) nextTask() Task {
	return b.next
}

func (b *TaskBase) setNextTask(t Task) {
	b.next = t
}

// taskFunc adapts a plain closure, as accepted by Shard.Submit, into a Task.
type taskFunc struct {
	TaskBase
	fn func()
}

var _ Task = (*taskFunc)(nil)

// RunAndDispose implements Task. It calls fn().
func (t *taskFunc) RunAndDispose() {
	t.fn()
}
