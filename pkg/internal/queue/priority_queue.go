package queue

import (
	"container/heap"
	"time"
)

// Item is one scheduled entry
type Item[T any] struct {
	Value    T
	Priority int       // breaks ties between equal due times, higher first
	Due      time.Time // when the item becomes ready
	seq      uint64
	index    int
}

// Queue orders values by due time. It is owned by a single goroutine and
// does no locking.
type Queue[T any] struct {
	items itemHeap[T]
	seq   uint64
}

// New creates an empty queue
func New[T any]() *Queue[T] {
	return &Queue[T]{}
}

// Push schedules value at due
func (q *Queue[T]) Push(value T, priority int, due time.Time) {
	q.seq++
	heap.Push(&q.items, &Item[T]{Value: value, Priority: priority, Due: due, seq: q.seq})
}

// Peek returns the earliest item without removing it
func (q *Queue[T]) Peek() (*Item[T], bool) {
	if len(q.items) == 0 {
		return nil, false
	}
	return q.items[0], true
}

// NextReady removes and returns the earliest item whose due time has passed
func (q *Queue[T]) NextReady(now time.Time) (T, bool) {
	var zero T
	if len(q.items) == 0 || now.Before(q.items[0].Due) {
		return zero, false
	}
	item := heap.Pop(&q.items).(*Item[T])
	return item.Value, true
}

// RemoveFunc drops every item for which match returns true and reports how many were removed
func (q *Queue[T]) RemoveFunc(match func(T) bool) int {
	kept := q.items[:0]
	for _, it := range q.items {
		if !match(it.Value) {
			kept = append(kept, it)
		}
	}
	removed := len(q.items) - len(kept)
	for i := len(kept); i < len(q.items); i++ {
		q.items[i] = nil
	}
	q.items = kept
	for i, it := range q.items {
		it.index = i
	}
	heap.Init(&q.items)
	return removed
}

// Contains reports whether any queued value matches
func (q *Queue[T]) Contains(match func(T) bool) bool {
	for _, it := range q.items {
		if match(it.Value) {
			return true
		}
	}
	return false
}

// Len returns the number of items in the queue
func (q *Queue[T]) Len() int {
	return len(q.items)
}

// Clear removes all items
func (q *Queue[T]) Clear() {
	q.items = nil
}

// itemHeap implements heap.Interface
type itemHeap[T any] []*Item[T]

func (h itemHeap[T]) Len() int { return len(h) }

func (h itemHeap[T]) Less(i, j int) bool {
	if !h[i].Due.Equal(h[j].Due) {
		return h[i].Due.Before(h[j].Due)
	}
	if h[i].Priority != h[j].Priority {
		return h[i].Priority > h[j].Priority
	}
	// FIFO among equals
	return h[i].seq < h[j].seq
}

func (h itemHeap[T]) Swap(i, j int) {
	h[i], h[j] = h[j], h[i]
	h[i].index = i
	h[j].index = j
}

func (h *itemHeap[T]) Push(x interface{}) {
	item := x.(*Item[T])
	item.index = len(*h)
	*h = append(*h, item)
}

func (h *itemHeap[T]) Pop() interface{} {
	old := *h
	n := len(old)
	item := old[n-1]
	old[n-1] = nil
	item.index = -1
	*h = old[0 : n-1]
	return item
}
