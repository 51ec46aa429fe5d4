// Package timers delivers events to a machine after a delay. The engine
// itself owns no timers; these helpers wrap Post externally and can run
// against a virtual clock in tests.
package timers

import (
	"sync"
	"time"

	"github.com/stateforward/go-statum/clock"
	"github.com/stateforward/go-statum/embedded"
)

type Timer struct {
	once    sync.Once
	stopped chan struct{}
	done    chan struct{}
}

// Stop prevents the event from being delivered. Stopping an already fired
// timer is a no-op.
func (timer *Timer) Stop() {
	timer.once.Do(func() {
		close(timer.stopped)
	})
}

// Done is closed once the timer's goroutine returns: after an After timer
// has fired, or after a stopped timer's pending delay has elapsed on its
// clock. Stop alone does not close it.
func (timer *Timer) Done() <-chan struct{} {
	return timer.done
}

// After posts event to poster once d has elapsed on c. Events posted to an
// uninitialized machine are dropped.
func After(poster embedded.Poster, c clock.Clock, d time.Duration, event embedded.Event) *Timer {
	timer := &Timer{
		stopped: make(chan struct{}),
		done:    make(chan struct{}),
	}
	go func() {
		defer close(timer.done)
		c.Sleep(d)
		select {
		case <-timer.stopped:
			return
		default:
		}
		_ = poster.Post(event)
	}()
	return timer
}

// Every posts event to poster each time d elapses on c, until stopped.
func Every(poster embedded.Poster, c clock.Clock, d time.Duration, event embedded.Event) *Timer {
	timer := &Timer{
		stopped: make(chan struct{}),
		done:    make(chan struct{}),
	}
	go func() {
		defer close(timer.done)
		for {
			c.Sleep(d)
			select {
			case <-timer.stopped:
				return
			default:
			}
			_ = poster.Post(event)
		}
	}()
	return timer
}
