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

package future

// yieldFuture implements Future returned by Yield.
type yieldFuture struct {
	yielded bool
}

// Poll implements future.Future. The first poll wakes the task right back up and returns pending,
// which sends the task to the back of its shard's ready queue; the second poll completes with a
// nil value.
func (f *yieldFuture) Poll(waker Waker) (PollResult, error) {
	if f.yielded {
		return nil, nil
	}
	f.yielded = true
	if err := waker.WakeByRef(); err != nil {
		return nil, err
	}
	return PollResultPending, nil
}

// Yield creates a Future that suspends exactly once before completing. Awaiting it gives other
// tasks queued on the same shard a chance to run; see also Shard.MaybeYield in package shard for
// a variant gated on the shard's task quota.
func Yield() Future {
	return &yieldFuture{}
}
