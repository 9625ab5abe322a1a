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
	"sync"

	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"
)

func newTestTask() Task {
	return &taskFunc{fn: func() {}}
}

var _ = Describe("taskQueue: the intrusive ready queue of a shard", func() {
	It("accepts a task", func() {
		queue := newTaskQueue()
		task := newTestTask()
		Expect(queue.Empty()).Should(BeTrue())
		Expect(queue.Push(task)).Should(Succeed())
		Expect(queue.Empty()).Should(BeFalse())
		Expect(queue.Poll()).Should(Equal(task))
		Expect(queue.Empty()).Should(BeTrue())
	})

	It("pops tasks in push order", func() {
		queue := newTaskQueue()
		tasks := []Task{newTestTask(), newTestTask(), newTestTask()}
		for _, task := range tasks {
			Expect(queue.Push(task)).Should(Succeed())
		}
		for _, task := range tasks {
			Expect(queue.Poll()).Should(Equal(task))
		}
		Expect(queue.Empty()).Should(BeTrue())
	})

	It("accepts multiple producers", func() {
		queue := newTaskQueue()

		const NumTestTasks = 100
		tasks := make([]Task, NumTestTasks)
		taskSet := map[Task]bool{}
		for i := 0; i < NumTestTasks; i++ {
			tasks[i] = newTestTask()
			taskSet[tasks[i]] = true
		}

		// Create 10 producers to push the tasks.
		const NumProducers = 10
		var wg sync.WaitGroup
		for i := 0; i < NumProducers; i++ {
			wg.Add(1)
			go func(producerIndex int) {
				defer wg.Done()
				for taskIndex, task := range tasks {
					if taskIndex%NumProducers == producerIndex {
						Expect(queue.Push(task)).Should(Succeed())
					}
				}
			}(i)
		}
		wg.Wait()

		// Drain the queue from this goroutine and check that every task came out exactly once.
		for i := 0; i < NumTestTasks; i++ {
			task := queue.Poll()
			Expect(taskSet).Should(HaveKey(task))
			delete(taskSet, task)
		}
		Expect(queue.Empty()).Should(BeTrue())
	})

	It("can close multiple times", func() {
		queue := newTaskQueue()
		queue.Close()
		queue.Close()
	})

	It("disallows push on closed queue", func() {
		queue := newTaskQueue()
		queue.Close()
		Expect(queue.Push(newTestTask())).Should(MatchError(ErrShardStopped))
	})

	It("drains remaining tasks after close", func() {
		queue := newTaskQueue()
		task := newTestTask()
		Expect(queue.Push(task)).Should(Succeed())
		queue.Close()
		Expect(queue.Poll()).Should(Equal(task))
		Expect(queue.Poll()).Should(BeNil())
	})

	It("unblocks poll on empty closed queue", func() {
		queue := newTaskQueue()
		Expect(queue.Empty()).Should(BeTrue())

		// Use goroutine to poll the empty queue.
		pollStart := make(chan bool, 1)
		pollDone := make(chan bool, 1)
		go func() {
			pollStart <- true
			Expect(queue.Poll()).Should(BeNil())
			pollDone <- true
		}()

		// Wait until goroutine starts.
		<-pollStart

		// Close queue.
		queue.Close()

		// Poll in goroutine should be unblocked and return.
		Eventually(pollDone).Should(Receive())

		// Any future Poll on empty queue will immediately return with nil.
		Expect(queue.Poll()).Should(BeNil())
	})
})
