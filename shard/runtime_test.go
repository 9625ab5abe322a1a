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

package shard_test

import (
	"sync/atomic"
	"time"

	"github.com/botobag/strand/future"
	"github.com/botobag/strand/shard"

	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"
)

var _ = Describe("Runtime", func() {
	It("cannot be created with a zero shard count", func() {
		_, err := shard.New(shard.Config{})
		Expect(err.Error()).Should(ContainSubstring("NumShards must be a non-zero value"))
	})

	It("runs submitted closures on the requested shard's loop", func() {
		rt := newRuntime(2)
		defer func() { Expect(shutdownRuntime(rt)).Should(Succeed()) }()

		results := make(chan uint32, 2)
		for id := uint32(0); id < 2; id++ {
			id := id
			s := rt.Shard(id)
			Expect(s.Submit(func() {
				Expect(s.Local()).Should(BeTrue())
				results <- id
			})).Should(Succeed())
		}

		Eventually(results).Should(Receive(Equal(uint32(0))))
		Eventually(results).Should(Receive(Equal(uint32(1))))
	})

	It("is not the home of foreign goroutines", func() {
		rt := newRuntime(2)
		defer func() { Expect(shutdownRuntime(rt)).Should(Succeed()) }()

		_, ok := rt.CurrentShard()
		Expect(ok).Should(BeFalse())
		Expect(rt.Shard(0).Local()).Should(BeFalse())
	})

	It("allows calling shutdown multiple times", func() {
		rt := newRuntime(1)

		const NumShutdownRequests = 10
		terminations := make([]<-chan bool, NumShutdownRequests)
		for i := 0; i < NumShutdownRequests; i++ {
			var err error
			terminations[i], err = rt.Shutdown()
			Expect(err).ShouldNot(HaveOccurred())
		}

		// Block on all terminations.
		for _, termination := range terminations {
			Eventually(termination).Should(Receive())
		}
	})

	It("allows shutdown after termination", func() {
		rt := newRuntime(1)
		Expect(shutdownRuntime(rt)).Should(Succeed())
		Expect(shutdownRuntime(rt)).Should(Succeed())
	})

	It("executes work submitted before shutdown but refuses new work", func() {
		rt := newRuntime(1)
		s := rt.Shard(0)

		// Stall the loop so the shutdown request arrives while work is still queued.
		enterTask := make(chan bool, 1)
		stopTask := make(chan bool)
		var executed int32

		Expect(s.Submit(func() {
			enterTask <- true
			<-stopTask
		})).Should(Succeed())
		Expect(s.Submit(func() {
			atomic.AddInt32(&executed, 1)
		})).Should(Succeed())

		<-enterTask
		terminated, err := rt.Shutdown()
		Expect(err).ShouldNot(HaveOccurred())
		Expect(terminated).ShouldNot(Receive())

		// New work is refused.
		Expect(s.Submit(func() {})).Should(MatchError(shard.ErrShardStopped))
		_, err = rt.SubmitTo(0, func() future.Future { return future.Ready(nil) })
		Expect(err).Should(MatchError(shard.ErrShardStopped))

		// The queued task still runs before the loop exits.
		close(stopTask)
		Eventually(terminated).Should(Receive())
		Expect(atomic.LoadInt32(&executed)).Should(Equal(int32(1)))
	})

	It("reports preemption only after the task quota is exhausted", func() {
		rt, err := shard.New(shard.Config{
			NumShards: 1,
			TaskQuota: time.Millisecond,
		})
		Expect(err).ShouldNot(HaveOccurred())
		defer func() { Expect(shutdownRuntime(rt)).Should(Succeed()) }()

		s := rt.Shard(0)
		results := make(chan []bool, 1)
		Expect(s.Submit(func() {
			fresh := s.NeedPreempt()
			time.Sleep(5 * time.Millisecond)
			exhausted := s.NeedPreempt()
			results <- []bool{fresh, exhausted}
		})).Should(Succeed())

		Eventually(results).Should(Receive(Equal([]bool{false, true})))
	})

	It("yields through MaybeYield only under an exhausted quota", func() {
		rt, err := shard.New(shard.Config{
			NumShards: 1,
			TaskQuota: time.Minute,
		})
		Expect(err).ShouldNot(HaveOccurred())
		defer func() { Expect(shutdownRuntime(rt)).Should(Succeed()) }()

		s := rt.Shard(0)
		handle, err := rt.SubmitTo(0, func() future.Future {
			// Quota untouched: MaybeYield must complete without suspending.
			return s.MaybeYield()
		})
		Expect(err).ShouldNot(HaveOccurred())

		result, err := handle.AwaitResult(time.Minute)
		Expect(err).ShouldNot(HaveOccurred())
		Expect(result).Should(BeNil())
	})

	It("times out AwaitResult on a future that never completes", func() {
		rt := newRuntime(1)
		defer func() { Expect(shutdownRuntime(rt)).Should(Succeed()) }()

		handle, err := rt.SubmitTo(0, func() future.Future {
			return pollFunc(func(waker future.Waker) (future.PollResult, error) {
				return future.PollResultPending, nil
			})
		})
		Expect(err).ShouldNot(HaveOccurred())

		_, err = handle.AwaitResult(10 * time.Millisecond)
		Expect(err).Should(MatchError(shard.ErrAwaitTimeout))
	})
})
