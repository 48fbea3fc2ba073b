package aio

import (
	"container/heap"
	"time"
)

// timerHeap orders pending deadlines. Owned by one event loop goroutine:
// it bounds the driver wait so a due deadline fires even when no
// completion arrives.
type timerHeap struct {
	items []timerItem
}

type timerItem struct {
	when time.Time
	key  Key
}

func (h *timerHeap) Len() int { return len(h.items) }

func (h *timerHeap) Less(i, j int) bool { return h.items[i].when.Before(h.items[j].when) }

func (h *timerHeap) Swap(i, j int) { h.items[i], h.items[j] = h.items[j], h.items[i] }

func (h *timerHeap) Push(x interface{}) {
	h.items = append(h.items, x.(timerItem))
}

func (h *timerHeap) Pop() interface{} {
	old := h.items
	n := len(old)
	item := old[n-1]
	h.items = old[:n-1]
	return item
}

func (h *timerHeap) add(when time.Time, key Key) {
	heap.Push(h, timerItem{when: when, key: key})
}

// next reports how long the loop may sleep before the earliest deadline is
// due. Negative when nothing is pending.
func (h *timerHeap) next(now time.Time) time.Duration {
	if len(h.items) == 0 {
		return -1
	}
	d := h.items[0].when.Sub(now)
	if d < 0 {
		return 0
	}
	return d
}

// expired pops every deadline at or before now.
func (h *timerHeap) expired(now time.Time) (keys []Key) {
	for len(h.items) > 0 && !h.items[0].when.After(now) {
		item := heap.Pop(h).(timerItem)
		keys = append(keys, item.key)
	}
	return
}

// remove drops the deadline of key, if still pending.
func (h *timerHeap) remove(key Key) {
	for i := range h.items {
		if h.items[i].key == key {
			heap.Remove(h, i)
			return
		}
	}
}
