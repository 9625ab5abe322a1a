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

import "errors"

// ErrGateClosed is returned by Enter when the gate has been closed and accepts no new holders.
var ErrGateClosed = errors.New("gate: closed")

// A Gate tracks in-flight operations and lets their owner wait for all of them to drain before
// tearing shared state down. Callers Enter before starting an operation and Leave when it
// completes; Close rejects further Enter calls and returns a Future that resolves once the last
// holder has left.
//
// A Gate is not safe for concurrent use. It is meant to guard state owned by a single shard and
// must only be touched from that shard's event loop.
type Gate struct {
	useCount int
	closed   bool

	// Waker of the task awaiting the future returned by Close; held as a cloned reference.
	waker Waker
}

// IsClosed returns true if Close has been called.
func (g *Gate) IsClosed() bool {
	return g.closed
}

// UseCount returns the number of holders currently inside the gate.
func (g *Gate) UseCount() int {
	return g.useCount
}

// Enter registers a new holder. It fails with ErrGateClosed after Close.
func (g *Gate) Enter() error {
	if g.closed {
		return ErrGateClosed
	}
	g.useCount++
	return nil
}

// Leave unregisters a holder previously registered with Enter. When the last holder leaves a
// closed gate, the task awaiting Close is woken.
func (g *Gate) Leave() {
	g.useCount--
	if g.useCount == 0 && g.closed && g.waker != nil {
		waker := g.waker
		g.waker = nil
		// Wake consumes the cloned reference stored by the close future's Poll.
		_ = waker.Wake()
	}
}

// Close closes the gate and returns a Future that resolves (with a nil value) once every holder
// has left. Close may be called only once.
func (g *Gate) Close() Future {
	g.closed = true
	return gateClosedFuture{g}
}

// gateClosedFuture implements Future returned by Gate.Close.
type gateClosedFuture struct {
	gate *Gate
}

// Poll implements future.Future.
func (f gateClosedFuture) Poll(waker Waker) (PollResult, error) {
	gate := f.gate
	if gate.useCount == 0 {
		return nil, nil
	}

	// Only the most recent waker may receive the wakeup.
	if gate.waker != nil {
		gate.waker.Dispose()
	}
	gate.waker = waker.Clone()

	return PollResultPending, nil
}
