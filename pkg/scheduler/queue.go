package scheduler

import (
	"container/heap"
	"time"
)

// event is a pending poll of one widget.
type event struct {
	due    time.Time
	widget int
}

// eventQueue is a min-heap of events ordered by due time. Events due at the
// same instant pop in registration order, which keeps runs reproducible.
type eventQueue []event

func (q eventQueue) Len() int { return len(q) }

func (q eventQueue) Less(i, j int) bool {
	if q[i].due.Equal(q[j].due) {
		return q[i].widget < q[j].widget
	}
	return q[i].due.Before(q[j].due)
}

func (q eventQueue) Swap(i, j int) { q[i], q[j] = q[j], q[i] }

func (q *eventQueue) Push(x any) { *q = append(*q, x.(event)) }

func (q *eventQueue) Pop() any {
	old := *q
	n := len(old)
	ev := old[n-1]
	*q = old[:n-1]
	return ev
}

func (q *eventQueue) push(ev event) { heap.Push(q, ev) }

func (q *eventQueue) pop() event { return heap.Pop(q).(event) }
