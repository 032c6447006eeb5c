// Package topk implements per-row k-smallest selection over distance
// matrices and the running best-k accumulator used by batched matching.
package topk

import "math"

// Candidate is a target column with its raw distance and emitted score.
// Score equals Distance unless a normalization was applied.
type Candidate struct {
	Index    int
	Distance float32
	Score    float32
}

// Less reports whether a ranks strictly before b: smaller distance first,
// then lower index. NaN distances rank after every number.
func Less(a, b Candidate) bool {
	an, bn := isNaN(a.Distance), isNaN(b.Distance)
	switch {
	case an && bn:
		return a.Index < b.Index
	case an:
		return false
	case bn:
		return true
	case a.Distance != b.Distance:
		return a.Distance < b.Distance
	}
	return a.Index < b.Index
}

func isNaN(f float32) bool {
	return math.IsNaN(float64(f))
}

// boundedQueue is a binary max-heap (worst candidate on top) holding at most
// capacity candidates. Value-based storage, no container/heap indirection.
type boundedQueue struct {
	items    []Candidate
	capacity int
}

func newBoundedQueue(capacity int) *boundedQueue {
	return &boundedQueue{
		items:    make([]Candidate, 0, capacity),
		capacity: capacity,
	}
}

func (q *boundedQueue) reset(capacity int) {
	q.items = q.items[:0]
	q.capacity = capacity
}

func (q *boundedQueue) len() int {
	return len(q.items)
}

// push offers c. When full, c replaces the top only if it ranks before it.
func (q *boundedQueue) push(c Candidate) {
	if q.capacity <= 0 {
		return
	}
	if len(q.items) < q.capacity {
		q.items = append(q.items, c)
		q.siftUp(len(q.items) - 1)
		return
	}
	if Less(c, q.items[0]) {
		q.items[0] = c
		q.siftDown(0)
	}
}

// drainSorted empties the queue into dst in ascending rank order.
func (q *boundedQueue) drainSorted(dst []Candidate) []Candidate {
	n := len(q.items)
	start := len(dst)
	dst = append(dst, make([]Candidate, n)...)
	for i := n - 1; i >= 0; i-- {
		dst[start+i] = q.items[0]
		last := len(q.items) - 1
		q.items[0] = q.items[last]
		q.items = q.items[:last]
		if len(q.items) > 0 {
			q.siftDown(0)
		}
	}
	return dst
}

// above reports whether item i belongs above item j in the max-heap.
func (q *boundedQueue) above(i, j int) bool {
	return Less(q.items[j], q.items[i])
}

func (q *boundedQueue) siftUp(i int) {
	for i > 0 {
		parent := (i - 1) / 2
		if !q.above(i, parent) {
			break
		}
		q.items[i], q.items[parent] = q.items[parent], q.items[i]
		i = parent
	}
}

func (q *boundedQueue) siftDown(i int) {
	n := len(q.items)
	for {
		left := 2*i + 1
		if left >= n {
			break
		}
		child := left
		if right := left + 1; right < n && q.above(right, left) {
			child = right
		}
		if !q.above(child, i) {
			break
		}
		q.items[i], q.items[child] = q.items[child], q.items[i]
		i = child
	}
}
