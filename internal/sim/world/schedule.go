package world

import "container/heap"

// scheduledEvent fires once the simulated clock reaches at. Ties fire in
// insertion order.
type scheduledEvent struct {
	at   float64
	seq  uint64
	kind string
	run  func(w *World)
}

type eventHeap []scheduledEvent

func (h eventHeap) Len() int { return len(h) }
func (h eventHeap) Less(i, j int) bool {
	if h[i].at != h[j].at {
		return h[i].at < h[j].at
	}
	return h[i].seq < h[j].seq
}
func (h eventHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }
func (h *eventHeap) Push(x any)   { *h = append(*h, x.(scheduledEvent)) }
func (h *eventHeap) Pop() any {
	old := *h
	n := len(old)
	ev := old[n-1]
	old[n-1] = scheduledEvent{}
	*h = old[:n-1]
	return ev
}

type eventQueue struct {
	h       eventHeap
	nextSeq uint64
}

func (q *eventQueue) push(at float64, kind string, run func(w *World)) {
	heap.Push(&q.h, scheduledEvent{at: at, seq: q.nextSeq, kind: kind, run: run})
	q.nextSeq++
}

func (q *eventQueue) Len() int { return q.h.Len() }

// drain runs every event due at or before now. Events pushed while draining
// run in the same call if they are already due.
func (q *eventQueue) drain(w *World, now float64) int {
	n := 0
	for q.h.Len() > 0 && q.h[0].at <= now {
		ev := heap.Pop(&q.h).(scheduledEvent)
		ev.run(w)
		n++
	}
	return n
}
