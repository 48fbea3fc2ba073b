// Package queue provides an unbounded lock-free multi-producer queue.
// It carries cross-thread submissions and dispatched work into an event
// loop; the loop is the only consumer.
package queue

import (
	"sync/atomic"
)

func New[E any]() *Queue[E] {
	q := &Queue[E]{}
	n := &node[E]{}
	q.head.Store(n)
	q.tail.Store(n)
	return q
}

type node[E any] struct {
	entry *E
	next  atomic.Pointer[node[E]]
}

// Queue is a Michael-Scott queue. Enqueue is safe from any goroutine,
// Dequeue and PeekBatch from the single consumer.
type Queue[E any] struct {
	head atomic.Pointer[node[E]]
	tail atomic.Pointer[node[E]]
	len  atomic.Int64
}

func (q *Queue[E]) Enqueue(entry *E) {
	n := &node[E]{}
	n.entry = entry
	for {
		tail := q.tail.Load()
		next := tail.next.Load()
		if tail != q.tail.Load() {
			continue
		}
		if next != nil {
			q.tail.CompareAndSwap(tail, next)
			continue
		}
		if tail.next.CompareAndSwap(nil, n) {
			q.tail.CompareAndSwap(tail, n)
			q.len.Add(1)
			return
		}
	}
}

func (q *Queue[E]) Dequeue() *E {
	for {
		head := q.head.Load()
		tail := q.tail.Load()
		next := head.next.Load()
		if head != q.head.Load() {
			continue
		}
		if head == tail {
			if next == nil {
				return nil
			}
			q.tail.CompareAndSwap(tail, next)
			continue
		}
		entry := next.entry
		if q.head.CompareAndSwap(head, next) {
			next.entry = nil
			q.len.Add(-1)
			return entry
		}
	}
}

// PeekBatch copies up to len(entries) queued entries without consuming
// them. Pair with Advance once the batch has been handled.
func (q *Queue[E]) PeekBatch(entries []*E) (n int64) {
	size := int64(len(entries))
	if size == 0 {
		return
	}
	if qLen := q.Length(); qLen < size {
		size = qLen
	}
	next := q.head.Load().next.Load()
	for i := int64(0); i < size; i++ {
		if next == nil {
			break
		}
		if next.entry == nil {
			break
		}
		entries[i] = next.entry
		n++
		next = next.next.Load()
	}
	return
}

func (q *Queue[E]) Advance(n int64) {
	for i := int64(0); i < n; i++ {
		if entry := q.Dequeue(); entry == nil {
			break
		}
	}
}

func (q *Queue[E]) Length() int64 {
	return q.len.Load()
}
