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

// BlockOn drives the given future to completion on the calling goroutine and returns its final
// value. The goroutine parks between polls until the future wakes the supplied waker.
//
// BlockOn is primarily useful in tests and at the boundary of synchronous code. Inside a shard's
// event loop it must not be used: it blocks the loop and thereby every other task on the shard.
func BlockOn(f Future) (PollResult, error) {
	// Buffer one wakeup so wakes delivered while polling are not lost; further wakes during the
	// same poll coalesce into the buffered one.
	wakeup := make(chan struct{}, 1)
	waker := WakerFunc(func() error {
		select {
		case wakeup <- struct{}{}:
		default:
		}
		return nil
	})

	for {
		result, err := f.Poll(waker)
		if err != nil {
			return nil, err
		}
		if result != PollResultPending {
			return result, nil
		}
		<-wakeup
	}
}
