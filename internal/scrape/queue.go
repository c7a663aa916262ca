// Package scrape implements the crawl pipeline: two task queues drained by
// a bounded worker pool that fetches, normalizes, and reconciles catalog
// records into the store.
package scrape

import "sync"

// Queue is an unbounded FIFO task queue with completion tracking. Workers
// Get tasks and must call TaskDone for every task received, success or not;
// Join blocks until every enqueued task has been acknowledged. The product
// queue is joined before the board queue so tasks discovered while draining
// products cannot slip past an already-satisfied barrier.
type Queue[T any] struct {
	mu         sync.Mutex
	cond       *sync.Cond
	items      []T
	unfinished int
	closed     bool
}

// NewQueue returns an empty open queue.
func NewQueue[T any]() *Queue[T] {
	q := &Queue[T]{}
	q.cond = sync.NewCond(&q.mu)
	return q
}

// Put enqueues a task. Panics if the queue is closed; tasks are only ever
// produced before the owning phase's barrier.
func (q *Queue[T]) Put(item T) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		panic("scrape: Put on closed queue")
	}
	q.items = append(q.items, item)
	q.unfinished++
	q.cond.Broadcast()
}

// Get blocks until a task is available or the queue is closed. ok is false
// only on close-and-empty, which is the worker's signal to exit.
func (q *Queue[T]) Get() (item T, ok bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	for len(q.items) == 0 && !q.closed {
		q.cond.Wait()
	}
	if len(q.items) == 0 {
		var zero T
		return zero, false
	}
	item = q.items[0]
	q.items = q.items[1:]
	return item, true
}

// TaskDone acknowledges one previously dequeued task.
func (q *Queue[T]) TaskDone() {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.unfinished <= 0 {
		panic("scrape: TaskDone called more times than Put")
	}
	q.unfinished--
	if q.unfinished == 0 {
		q.cond.Broadcast()
	}
}

// Join blocks until every task ever Put has been acknowledged via TaskDone.
func (q *Queue[T]) Join() {
	q.mu.Lock()
	defer q.mu.Unlock()
	for q.unfinished > 0 {
		q.cond.Wait()
	}
}

// Close wakes all blocked Gets; once drained they return ok=false.
func (q *Queue[T]) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.closed = true
	q.cond.Broadcast()
}

// Len reports how many tasks are currently waiting (not in-flight ones).
func (q *Queue[T]) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

// Unfinished reports enqueued-but-unacknowledged tasks, including in-flight.
func (q *Queue[T]) Unfinished() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.unfinished
}
