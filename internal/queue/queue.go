// Package queue implements the Ready Queue: a thread-safe priority queue
// ordered by (-priority, submissionID), safe for one producer and N
// consumers with no internal waiting on externally-held locks.
//
// The heap itself is the same container/heap idiom used for deterministic
// index traversals in
// samgonzalezalberto-script-weaver/internal/dag/validate.go (intMinHeap) and
// samgonzalezalberto-script-weaver/internal/dag/state_machine.go (the
// FailAndPropagate BFS heap), generalized from a bare int heap to a heap of
// Items ordered by priority then submission order.
package queue

import (
	"container/heap"
	"sync"
)

// Item is anything the Ready Queue can hold.
type Item interface {
	// Priority reports scheduling priority; higher dequeues first.
	Priority() int
	// SubmitID breaks priority ties in submission order (lower first).
	SubmitID() int64
}

// PriorityQueue is a blocking, thread-safe priority queue of Items.
type PriorityQueue struct {
	mu     sync.Mutex
	cond   *sync.Cond
	items  itemHeap
	closed bool
}

// New returns an empty, open PriorityQueue.
func New() *PriorityQueue {
	q := &PriorityQueue{}
	q.cond = sync.NewCond(&q.mu)
	return q
}

// Push enqueues it and wakes one blocked consumer, if any.
func (q *PriorityQueue) Push(it Item) {
	q.mu.Lock()
	heap.Push(&q.items, it)
	q.mu.Unlock()
	q.cond.Signal()
}

// Pop blocks until an Item is available or the queue is closed. ok is false
// only once the queue is closed and drained.
func (q *PriorityQueue) Pop() (it Item, ok bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	for len(q.items) == 0 && !q.closed {
		q.cond.Wait()
	}
	if len(q.items) == 0 {
		return nil, false
	}
	return heap.Pop(&q.items).(Item), true
}

// Len reports the number of currently enqueued items.
func (q *PriorityQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

// Close unblocks every consumer currently or later waiting in Pop. Once
// drained, subsequent Pop calls return (nil, false) immediately.
func (q *PriorityQueue) Close() {
	q.mu.Lock()
	q.closed = true
	q.mu.Unlock()
	q.cond.Broadcast()
}

type itemHeap []Item

func (h itemHeap) Len() int { return len(h) }

func (h itemHeap) Less(i, j int) bool {
	if h[i].Priority() != h[j].Priority() {
		return h[i].Priority() > h[j].Priority()
	}
	return h[i].SubmitID() < h[j].SubmitID()
}

func (h itemHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }

func (h *itemHeap) Push(x any) { *h = append(*h, x.(Item)) }

func (h *itemHeap) Pop() any {
	old := *h
	n := len(old)
	it := old[n-1]
	*h = old[:n-1]
	return it
}
