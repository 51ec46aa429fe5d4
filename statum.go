// Package statum is a hierarchical state machine engine. States and
// superstates are plain Go types implementing a narrow capability protocol;
// the tree is implicit in their Superstate methods. The engine dispatches
// events from the current leaf upward, computes least-common-ancestor
// transition paths, and runs exit and entry actions in UML statechart order
// without allocating.
package statum

import (
	"errors"
	"reflect"
	"sync/atomic"

	"github.com/stateforward/go-statum/embedded"
	"github.com/stateforward/go-statum/queue"
)

var (
	ErrNotInitialized     = errors.New("statum: machine is not initialized")
	ErrAlreadyInitialized = errors.New("statum: machine is already initialized")
	ErrBusy               = errors.New("statum: machine is already handling an event")
)

type Event = embedded.Event

/******* Contracts *******/

// State is implemented by every leaf variant of a machine. Each variant must
// be a distinct Go type; the engine uses the dynamic type as the variant tag.
// Per-state local data lives in the variant's fields.
//
// Superstate returns the immediate parent, rematerialized on every call, or
// nil when the state sits directly under the implicit top. A superstate value
// may carry pointers into the leaf it was produced from; such a value is only
// valid within the dispatch frame that produced it.
type State[C any] interface {
	Handle(ctx C, event Event) Response[C]
	Superstate() Superstate[C]
}

// Superstate is implemented by every interior variant. The shape is identical
// to State; the split keeps leaves and interior nodes distinct in signatures
// such as Transition, which only accepts leaves.
type Superstate[C any] interface {
	Handle(ctx C, event Event) Response[C]
	Superstate() Superstate[C]
}

// Enterer is implemented by states and superstates with an entry action.
type Enterer[C any] interface {
	Entry(ctx C)
}

// Exiter is implemented by states and superstates with an exit action.
type Exiter[C any] interface {
	Exit(ctx C)
}

// Depther lets a variant report its distance from the top directly instead of
// having the engine derive it by walking Superstate. The reported value must
// agree with the walk.
type Depther interface {
	Depth() int
}

type Named = embedded.Named

/******* Response *******/

type responseKind uint8

const (
	responseSuper responseKind = iota
	responseHandled
	responseTransition
)

// Response is the value returned by state and superstate handlers.
type Response[C any] struct {
	kind   responseKind
	target State[C]
}

// Handled consumes the event. No further handlers run and no transition
// happens.
func Handled[C any]() Response[C] {
	return Response[C]{kind: responseHandled}
}

// Super defers the event to the superstate. A Super that bubbles past the
// top is treated as handled.
func Super[C any]() Response[C] {
	return Response[C]{kind: responseSuper}
}

// Transition stops dispatch and moves the machine to target. The transition
// is external: when target is the current state, its exit and entry actions
// still run.
func Transition[C any](target State[C]) Response[C] {
	return Response[C]{kind: responseTransition, target: target}
}

/******* Tree walking *******/

// Depth reports the number of levels between node and the implicit top. A
// state or superstate directly under the top has depth 1; nil has depth 0.
func Depth[C any](node Superstate[C]) int {
	if node == nil {
		return 0
	}
	if fast, ok := node.(Depther); ok {
		return fast.Depth()
	}
	if super := node.Superstate(); super != nil {
		return Depth(super) + 1
	}
	return 1
}

// NameOf returns a stable identity for a state or superstate: its Name when
// the variant implements Named, otherwise the Go type name.
func NameOf(node any) string {
	if named, ok := node.(Named); ok {
		return named.Name()
	}
	t := reflect.TypeOf(node)
	if t == nil {
		return ""
	}
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	return t.Name()
}

func sameVariant(a, b any) bool {
	return reflect.TypeOf(a) == reflect.TypeOf(b)
}

// commonAncestorDepth walks both chains to the depth of their deepest shared
// variant. Chains that never meet run out at the top and yield 0.
func commonAncestorDepth[C any](source, target Superstate[C]) int {
	if source == nil || target == nil {
		return 0
	}
	sourceDepth, targetDepth := Depth(source), Depth(target)
	switch {
	case sourceDepth > targetDepth:
		return commonAncestorDepth(source.Superstate(), target)
	case sourceDepth < targetDepth:
		return commonAncestorDepth(source, target.Superstate())
	case sameVariant(source, target):
		return sourceDepth
	default:
		return commonAncestorDepth(source.Superstate(), target.Superstate())
	}
}

// transitionPath reports how many levels must be exited from source and
// entered toward target. A self transition is one level out, one level in.
func transitionPath[C any](source, target State[C]) (exitLevels, enterLevels int) {
	if sameVariant(source, target) {
		return 1, 1
	}
	sourceDepth := Depth[C](source)
	targetDepth := Depth[C](target)
	sourceSuper, targetSuper := source.Superstate(), target.Superstate()
	if sourceSuper != nil && targetSuper != nil {
		common := commonAncestorDepth(sourceSuper, targetSuper)
		return sourceDepth - common, targetDepth - common
	}
	return sourceDepth, targetDepth
}

/******* Machine *******/

// Trace is invoked at the start of each engine step with the elements
// involved; the returned function is invoked when the step completes.
type Trace func(step string, elements ...any) func(...any)

type Machine[C any] struct {
	storage      C
	state        State[C]
	initialized  bool
	processing   atomic.Bool
	queue        *queue.Queue
	trace        Trace
	onDispatch   func(node Superstate[C], event Event)
	onTransition func(source, target State[C])
}

type Option[C any] func(*Machine[C])

func WithTrace[C any](trace Trace) Option[C] {
	return func(machine *Machine[C]) {
		machine.trace = trace
	}
}

// WithDispatchHook installs a hook that fires immediately before each handler
// call with the node about to be invoked. The node value must not be retained
// past the hook call. The hook must not call back into the machine.
func WithDispatchHook[C any](fn func(node Superstate[C], event Event)) Option[C] {
	return func(machine *Machine[C]) {
		machine.onDispatch = fn
	}
}

// WithTransitionHook installs a hook that fires exactly once per transition,
// after the current state has been updated and all actions have run. The hook
// must not call back into the machine.
func WithTransitionHook[C any](fn func(source, target State[C])) Option[C] {
	return func(machine *Machine[C]) {
		machine.onTransition = fn
	}
}

// New creates an uninitialized machine embedded in the shared storage ctx,
// positioned at initial. No actions run until Init.
func New[C any](ctx C, initial State[C], options ...Option[C]) *Machine[C] {
	machine := &Machine[C]{
		storage: ctx,
		state:   initial,
		queue:   queue.New(),
	}
	for _, option := range options {
		option(machine)
	}
	return machine
}

// State returns the current leaf state. The returned value is live; callers
// must not mutate it.
func (machine *Machine[C]) State() State[C] {
	if machine == nil {
		return nil
	}
	return machine.state
}

// Storage returns the shared storage the machine was created with. Mutating
// it between dispatches is fine; mutating it concurrently with Handle is not.
func (machine *Machine[C]) Storage() C {
	return machine.storage
}

// Init runs the entry actions from the top down to the initial state. It must
// be called exactly once before the first Handle.
func (machine *Machine[C]) Init() error {
	if machine.initialized {
		return ErrAlreadyInitialized
	}
	if !machine.processing.CompareAndSwap(false, true) {
		return ErrBusy
	}
	defer machine.processing.Store(false)
	machine.initialized = true
	if machine.trace != nil {
		defer machine.trace("init", machine.state)()
	}
	machine.enter(machine.state, Depth[C](machine.state))
	machine.process(machine.queue.Pop())
	return nil
}

// Handle dispatches one event and runs to completion: any events posted
// during handling are drained before Handle returns. Handle is not
// re-entrant; a call made while another is in flight fails with ErrBusy.
func (machine *Machine[C]) Handle(event Event) error {
	if !machine.initialized {
		return ErrNotInitialized
	}
	if !machine.processing.CompareAndSwap(false, true) {
		return ErrBusy
	}
	defer machine.processing.Store(false)
	machine.process(event)
	return nil
}

// Post delivers an event without the re-entrancy restriction of Handle: when
// the machine is mid-dispatch the event is queued and processed before the
// in-flight Handle returns, otherwise it is handled immediately.
func (machine *Machine[C]) Post(event Event) error {
	if !machine.initialized {
		return ErrNotInitialized
	}
	if machine.processing.Load() {
		machine.queue.Push(event)
		return nil
	}
	return machine.Handle(event)
}

func (machine *Machine[C]) process(event Event) {
	for event != nil {
		response := machine.dispatch(event)
		if response.kind == responseTransition {
			machine.transition(response.target)
		}
		event = machine.queue.Pop()
	}
}

// dispatch walks from the current leaf toward the top until a handler
// returns something other than Super.
func (machine *Machine[C]) dispatch(event Event) Response[C] {
	var node Superstate[C] = machine.state
	for node != nil {
		if machine.onDispatch != nil {
			machine.onDispatch(node, event)
		}
		var end func(...any)
		if machine.trace != nil {
			end = machine.trace("dispatch", node, event)
		}
		response := node.Handle(machine.storage, event)
		if end != nil {
			end()
		}
		if response.kind != responseSuper {
			return response
		}
		node = node.Superstate()
	}
	return Super[C]()
}

func (machine *Machine[C]) transition(target State[C]) {
	if machine.trace != nil {
		defer machine.trace("transition", machine.state, target)()
	}
	exitLevels, enterLevels := transitionPath[C](machine.state, target)
	source := machine.state
	machine.exit(source, exitLevels)
	machine.state = target
	machine.enter(target, enterLevels)
	if machine.onTransition != nil {
		machine.onTransition(source, target)
	}
}

// enter climbs levels-1 superstates and runs entry actions on the way back
// down, ending with node itself. Stack use is bounded by the tree depth.
func (machine *Machine[C]) enter(node Superstate[C], levels int) {
	switch levels {
	case 0:
	case 1:
		machine.runEntry(node)
	default:
		if super := node.Superstate(); super != nil {
			machine.enter(super, levels-1)
		}
		machine.runEntry(node)
	}
}

// exit runs the exit action of node and then of each superstate above it,
// levels deep.
func (machine *Machine[C]) exit(node Superstate[C], levels int) {
	switch levels {
	case 0:
	case 1:
		machine.runExit(node)
	default:
		machine.runExit(node)
		if super := node.Superstate(); super != nil {
			machine.exit(super, levels-1)
		}
	}
}

func (machine *Machine[C]) runEntry(node Superstate[C]) {
	if machine.trace != nil {
		defer machine.trace("entry", node)()
	}
	if action, ok := node.(Enterer[C]); ok {
		action.Entry(machine.storage)
	}
}

func (machine *Machine[C]) runExit(node Superstate[C]) {
	if machine.trace != nil {
		defer machine.trace("exit", node)()
	}
	if action, ok := node.(Exiter[C]); ok {
		action.Exit(machine.storage)
	}
}
