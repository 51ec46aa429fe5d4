// Package metrics exposes statum machine activity as Prometheus metrics.
// An Observer's hook methods plug directly into the facade options:
//
//	observer, _ := metrics.New[*storage](prometheus.DefaultRegisterer, "blinky")
//	machine := statum.New(ctx, initial,
//		statum.WithDispatchHook(observer.OnDispatch),
//		statum.WithTransitionHook(observer.OnTransition),
//		statum.WithTrace[*storage](observer.Trace),
//	)
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	statum "github.com/stateforward/go-statum"
)

type Observer[C any] struct {
	machine     string
	dispatches  *prometheus.CounterVec
	transitions *prometheus.CounterVec
	steps       *prometheus.HistogramVec
}

// New registers the observer's collectors with registerer. The machine label
// distinguishes coexisting machines sharing a registry.
func New[C any](registerer prometheus.Registerer, machine string) (*Observer[C], error) {
	observer := &Observer[C]{
		machine: machine,
		dispatches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "statum",
			Name:      "dispatches_total",
			Help:      "Handler invocations, by node and event.",
		}, []string{"machine", "node", "event"}),
		transitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "statum",
			Name:      "transitions_total",
			Help:      "Completed transitions, by source and target leaf.",
		}, []string{"machine", "source", "target"}),
		steps: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "statum",
			Name:      "step_duration_seconds",
			Help:      "Duration of engine steps, by step kind.",
			Buckets:   prometheus.ExponentialBuckets(1e-6, 10, 8),
		}, []string{"machine", "step"}),
	}
	for _, collector := range []prometheus.Collector{observer.dispatches, observer.transitions, observer.steps} {
		if err := registerer.Register(collector); err != nil {
			return nil, err
		}
	}
	return observer, nil
}

func (observer *Observer[C]) OnDispatch(node statum.Superstate[C], event statum.Event) {
	observer.dispatches.WithLabelValues(observer.machine, statum.NameOf(node), event.Name()).Inc()
}

func (observer *Observer[C]) OnTransition(source, target statum.State[C]) {
	observer.transitions.WithLabelValues(observer.machine, statum.NameOf(source), statum.NameOf(target)).Inc()
}

// Trace times each engine step into the step duration histogram.
func (observer *Observer[C]) Trace(step string, elements ...any) func(...any) {
	start := time.Now()
	return func(...any) {
		observer.steps.WithLabelValues(observer.machine, step).Observe(time.Since(start).Seconds())
	}
}
