// Package queue provides the bounded heaps used to collect nearest neighbours.
package queue

import "container/heap"

// Compile time check to ensure PriorityQueue satisfies the heap interface.
var _ heap.Interface = (*PriorityQueue)(nil)

// Item is a candidate neighbour.
type Item struct {
	Label    int64   // Label identifies the vector.
	Distance float32 // Distance is the priority of the item in the queue.
}

// closer reports whether a ranks before b: smaller distance first, then smaller label.
func closer(a, b Item) bool {
	if a.Distance != b.Distance {
		return a.Distance < b.Distance
	}
	return a.Label < b.Label
}

// PriorityQueue implements heap.Interface over Items.
type PriorityQueue struct {
	Order bool   // Order is false for a min-heap (closest on top) and true for a max-heap.
	Items []Item // Items contains the elements of the priority queue.
}

// Len returns the number of elements in the priority queue.
func (pq *PriorityQueue) Len() int { return len(pq.Items) }

// Less reports whether the element with index i should sort before the element with index j.
func (pq *PriorityQueue) Less(i, j int) bool {
	if !pq.Order {
		return closer(pq.Items[i], pq.Items[j])
	}
	return closer(pq.Items[j], pq.Items[i])
}

// Swap swaps the elements with indexes i and j.
func (pq *PriorityQueue) Swap(i, j int) {
	pq.Items[i], pq.Items[j] = pq.Items[j], pq.Items[i]
}

// Push adds x to the priority queue.
func (pq *PriorityQueue) Push(x any) {
	pq.Items = append(pq.Items, x.(Item))
}

// Pop removes and returns the last element of the backing slice.
func (pq *PriorityQueue) Pop() any {
	old := pq.Items
	n := len(old)
	item := old[n-1]
	pq.Items = old[:n-1]
	return item
}

// Top returns the top element of the priority queue.
func (pq *PriorityQueue) Top() Item {
	return pq.Items[0]
}

// TopK keeps the k closest items seen so far.
type TopK struct {
	k  int
	pq PriorityQueue
}

// NewTopK creates a collector for at most k items.
func NewTopK(k int) *TopK {
	if k < 0 {
		k = 0
	}
	return &TopK{k: k, pq: PriorityQueue{Order: true, Items: make([]Item, 0, k)}}
}

// Offer considers a candidate.
func (t *TopK) Offer(label int64, dist float32) {
	if t.k == 0 {
		return
	}
	it := Item{Label: label, Distance: dist}
	if t.pq.Len() < t.k {
		heap.Push(&t.pq, it)
		return
	}
	if closer(it, t.pq.Top()) {
		t.pq.Items[0] = it
		heap.Fix(&t.pq, 0)
	}
}

// Len returns the number of collected items.
func (t *TopK) Len() int { return t.pq.Len() }

// Sorted drains the collector and returns items closest first.
func (t *TopK) Sorted() []Item {
	out := make([]Item, t.pq.Len())
	for i := len(out) - 1; i >= 0; i-- {
		out[i] = heap.Pop(&t.pq).(Item)
	}
	return out
}
