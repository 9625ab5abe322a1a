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

// A Waker is a handle to "wake up" a Future that was previously polled to a pending. Practically,
// it notifies the executor to place the task driving the Future back on its queue of ready tasks.
//
// A Waker is a reference-counted capability. The one passed to Poll is borrowed: a future that
// retains it past the return of Poll must Clone it, and every cloned waker must eventually be
// either woken with Wake (which consumes it) or released with Dispose. All four operations are
// safe to call from any goroutine.
type Waker interface {
	// Wake indicates the associated task is ready to make progress and should be polled again.
	//
	// Executors generally maintain a queue of "ready" tasks; Wake should place the associated
	// task onto this queue. Wake consumes the waker: the reference backing it is released after
	// the wakeup is delivered, and the waker must not be used again.
	Wake() error

	// WakeByRef wakes the associated task without consuming the waker. The waker remains valid
	// and must still be disposed (or woken) later.
	WakeByRef() error

	// Clone acquires an additional reference to the associated task and returns a waker backed
	// by it.
	Clone() Waker

	// Dispose releases the reference backing this waker without waking the task. The waker must
	// not be used again.
	Dispose()
}

// The WakerFunc type is an adapter to allow the use of ordinary functions as Waker. Waking a
// WakerFunc, by value or by reference, calls f(); cloning and disposing are no-ops since there is
// no reference count to maintain.
type WakerFunc func() error

// Wake implements Waker which calls f().
func (f WakerFunc) Wake() error {
	return f()
}

// WakeByRef implements Waker which calls f().
func (f WakerFunc) WakeByRef() error {
	return f()
}

// Clone implements Waker.
func (f WakerFunc) Clone() Waker {
	return f
}

// Dispose implements Waker.
func (f WakerFunc) Dispose() {}

// Type for NopWaker
type nopWaker int

func (nopWaker) Wake() error {
	return nil
}

func (nopWaker) WakeByRef() error {
	return nil
}

func (w nopWaker) Clone() Waker {
	return w
}

func (nopWaker) Dispose() {}

// NopWaker is a Waker that does nothing. It is useful to be used as an initial value for Waker.
const NopWaker nopWaker = 0
