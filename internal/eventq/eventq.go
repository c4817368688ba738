// Copyright 2026 Google LLC
// SPDX-License-Identifier: Apache-2.0

// Package eventq provides a bounded single-consumer queue that favors recent
// elements: producers never block, and when the queue is full the oldest
// queued element is discarded and counted.
package eventq

import "sync"

// Queue is a bounded FIFO connecting one producer side to one consumer.
// Push never blocks. Pop blocks until an element arrives or the queue is
// closed. Both are safe for concurrent use.
type Queue[T any] struct {
	mu      sync.Mutex
	cond    *sync.Cond
	items   []T
	max     int
	dropped uint64
	closed  bool
}

// New creates a Queue holding at most max elements.
func New[T any](max int) *Queue[T] {
	if max <= 0 {
		panic("capacity must be positive")
	}
	q := &Queue[T]{max: max}
	q.cond = sync.NewCond(&q.mu)
	return q
}

// Push enqueues v, discarding the oldest queued element when the queue is at
// capacity. Pushing to a closed queue is a no-op.
func (q *Queue[T]) Push(v T) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return
	}
	if len(q.items) >= q.max {
		q.items = q.items[1:]
		q.dropped++
	}
	q.items = append(q.items, v)
	q.cond.Signal()
}

// Pop removes and returns the oldest element, blocking until one is available
// or the queue is closed. dropped reports how many elements were discarded
// since the previous Pop. ok is false once the queue is closed and drained.
func (q *Queue[T]) Pop() (v T, dropped uint64, ok bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	for len(q.items) == 0 && !q.closed {
		q.cond.Wait()
	}
	dropped, q.dropped = q.dropped, 0
	if len(q.items) == 0 {
		var zero T
		return zero, dropped, false
	}
	v = q.items[0]
	q.items = q.items[1:]
	return v, dropped, true
}

// Close wakes any blocked Pop. Elements queued before Close remain available.
// Close is idempotent.
func (q *Queue[T]) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return
	}
	q.closed = true
	q.cond.Broadcast()
}

// Len returns the number of queued elements.
func (q *Queue[T]) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}
