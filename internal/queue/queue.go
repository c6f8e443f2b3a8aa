// Package queue provides an unbounded FIFO work queue shared by one producer
// and many consumers.
//
// Consumers block in Pop until an item arrives or the producer calls
// MarkFinished. Items pushed before MarkFinished are always handed out before
// any consumer is told the queue is exhausted.
package queue

import "sync"

// Queue is safe for concurrent use. The zero value is not usable; call New.
type Queue[T any] struct {
	mu       sync.Mutex
	cond     *sync.Cond
	items    []T
	head     int
	finished bool
}

// New returns an empty, open queue.
func New[T any]() *Queue[T] {
	q := &Queue[T]{}
	q.cond = sync.NewCond(&q.mu)
	return q
}

// Push appends item to the tail of the queue. It never blocks on consumers.
func (q *Queue[T]) Push(item T) {
	q.mu.Lock()
	q.items = append(q.items, item)
	q.mu.Unlock()
	q.cond.Signal()
}

// Pop removes and returns the item at the head of the queue, blocking while
// the queue is empty and not finished. It returns false once the queue is
// finished and empty.
func (q *Queue[T]) Pop() (T, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	for q.head == len(q.items) && !q.finished {
		q.cond.Wait()
	}

	var zero T
	if q.head == len(q.items) {
		return zero, false
	}

	item := q.items[q.head]
	q.items[q.head] = zero
	q.head++
	if q.head == len(q.items) {
		q.items = q.items[:0]
		q.head = 0
	}
	return item, true
}

// MarkFinished records that no more items will be pushed and wakes every
// blocked consumer. Calling it more than once has no further effect.
func (q *Queue[T]) MarkFinished() {
	q.mu.Lock()
	q.finished = true
	q.mu.Unlock()
	q.cond.Broadcast()
}

// Len returns the number of items waiting to be popped.
func (q *Queue[T]) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items) - q.head
}

// Finished reports whether MarkFinished has been called.
func (q *Queue[T]) Finished() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.finished
}
