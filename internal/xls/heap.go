package xls

import "container/heap"

// intervalHeap is the allocation loop's pending min-heap, keyed by
// start position; ties are broken by insertion order.
type intervalHeap struct {
	items []*Interval
	seq   []int64
	next  int64
}

func newIntervalHeap() *intervalHeap { return &intervalHeap{} }

func (h *intervalHeap) Len() int { return len(h.items) }
func (h *intervalHeap) Less(i, j int) bool {
	if h.items[i].Start() != h.items[j].Start() {
		return h.items[i].Start() < h.items[j].Start()
	}
	return h.seq[i] < h.seq[j]
}
func (h *intervalHeap) Swap(i, j int) {
	h.items[i], h.items[j] = h.items[j], h.items[i]
	h.seq[i], h.seq[j] = h.seq[j], h.seq[i]
}
func (h *intervalHeap) Push(x any) {
	h.items = append(h.items, x.(*Interval))
	h.seq = append(h.seq, h.next)
	h.next++
}
func (h *intervalHeap) Pop() any {
	n := len(h.items)
	it := h.items[n-1]
	h.items = h.items[:n-1]
	h.seq = h.seq[:n-1]
	return it
}

func (h *intervalHeap) PushInterval(iv *Interval) { heap.Push(h, iv) }
func (h *intervalHeap) PopInterval() *Interval    { return heap.Pop(h).(*Interval) }
func (h *intervalHeap) Empty() bool               { return h.Len() == 0 }

func (h *intervalHeap) init() { heap.Init(h) }
