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
	"time"

	"github.com/botobag/strand/future"
)

// ErrAwaitTimeout indicates AwaitResult ran out of time waiting for the task's result.
var ErrAwaitTimeout = errors.New("shard: timeout while waiting for task result")

//===----------------------------------------------------------------------------------------====//
// Handle
//===----------------------------------------------------------------------------------------====//

// A Handle tracks a spawned task and delivers the final value of its future to the consumer. It
// is safe to share between goroutines.
type Handle struct {
	done chan struct{}

	// Final value of the future. Written once, on the task's home loop, before done is closed;
	// readers are ordered behind the close.
	result future.PollResult
	err    error
}

func newHandle() *Handle {
	return &Handle{done: make(chan struct{})}
}

// complete records the future's final value and unblocks the waiters. It is called exactly once,
// by the task's run step on the home loop.
func (h *Handle) complete(result future.PollResult, err error) {
	h.result = result
	h.err = err
	close(h.done)
}

// Done returns a channel that is closed once the task's future has completed.
func (h *Handle) Done() <-chan struct{} {
	return h.done
}

// AwaitResult blocks the caller until the task's future completed or timeout. A timeout of 0
// waits indefinitely. Possible return values are:
//
//  1. (nil, ErrAwaitTimeout)
//  2. (result, err): the final value the future completed with.
//
// AwaitResult must not be called from a shard's event loop: it would block every task on the
// shard, and deadlock outright if the awaited task is homed there.
func (h *Handle) AwaitResult(timeout time.Duration) (interface{}, error) {
	if timeout > 0 {
		select {
		case <-h.done:
		case <-time.After(timeout):
			return nil, ErrAwaitTimeout
		}
	} else {
		<-h.done
	}
	return h.result, h.err
}

//===----------------------------------------------------------------------------------------====//
// Spawn / SubmitTo
//===----------------------------------------------------------------------------------------====//

// The SpawnFunc type materializes a future on its eventual home shard. It is invoked exactly
// once, on the target shard's event loop, so it may freely capture and touch shard-local state.
type SpawnFunc func() future.Future

// Spawn creates a task around fut with the current shard as its home and runs it to its first
// suspension point inline, so the caller observes synchronous progress before Spawn returns.
//
// Spawn must be called from this shard's event loop and panics otherwise; use Runtime.SubmitTo to
// spawn from any other goroutine.
func (s *Shard) Spawn(fut future.Future) *Handle {
	if !s.Local() {
		panic("shard: Spawn called outside the shard's event loop (use Runtime.SubmitTo instead)")
	}

	handle := newHandle()
	newFutureTask(s, fut, handle).RunAndDispose()
	return handle
}

// SubmitTo relocates future construction to the given shard: spawn runs on that shard's event
// loop to materialize the future, and the task wrapped around it is homed there and immediately
// run to its first suspension point. SubmitTo may be called from any goroutine and never blocks.
//
// It fails with ErrInvalidShard if id is out of range and ErrShardStopped if the runtime has been
// shut down.
func (rt *Runtime) SubmitTo(id uint32, spawn SpawnFunc) (*Handle, error) {
	if id >= rt.ShardCount() {
		return nil, ErrInvalidShard
	}
	s := rt.shards[id]

	handle := newHandle()
	if err := s.Submit(func() {
		newFutureTask(s, spawn(), handle).RunAndDispose()
	}); err != nil {
		return nil, err
	}
	return handle, nil
}
