package queue

import (
	"sync/atomic"

	"github.com/stateforward/go-statum/embedded"
)

// Queue is the run-to-completion event queue. Events posted while the
// machine is mid-dispatch land here and are drained, in order, before
// the dispatch frame returns.
type Queue struct {
	events atomic.Pointer[[]embedded.Event]
}

func New() *Queue {
	var events []embedded.Event
	q := &Queue{}
	q.events.Store(&events)
	return q
}

func (q *Queue) Len() int {
	return len(*q.events.Load())
}

func (q *Queue) Pop() embedded.Event {
	events := *q.events.Load()
	if len(events) == 0 {
		return nil
	}
	event := events[0]
	events = events[1:]
	q.events.Store(&events)
	return event
}

func (q *Queue) Push(event embedded.Event) {
	events := append(*q.events.Load(), event)
	q.events.Store(&events)
}
