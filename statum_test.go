package statum_test

import (
	"errors"
	"fmt"
	"testing"

	statum "github.com/stateforward/go-statum"
	"github.com/stretchr/testify/require"
)

type board struct {
	trace   []string
	machine *statum.Machine[*board]
}

func (board *board) record(step string) {
	board.trace = append(board.trace, step)
}

func (board *board) reset() {
	board.trace = nil
}

/******* Blinky: Top → Blinking → {LedOn, LedOff}, plus NotBlinking *******/

type ledOn struct{}

func (state *ledOn) Name() string { return "LedOn" }

func (state *ledOn) Superstate() statum.Superstate[*board] { return &blinking{} }

func (state *ledOn) Entry(board *board) { board.record("entry(LedOn)") }

func (state *ledOn) Exit(board *board) { board.record("exit(LedOn)") }

func (state *ledOn) Handle(board *board, event statum.Event) statum.Response[*board] {
	switch event.Name() {
	case "tick":
		return statum.Transition[*board](&ledOff{})
	case "again":
		return statum.Transition[*board](&ledOn{})
	default:
		return statum.Super[*board]()
	}
}

type ledOff struct{}

func (state *ledOff) Name() string { return "LedOff" }

func (state *ledOff) Superstate() statum.Superstate[*board] { return &blinking{} }

func (state *ledOff) Entry(board *board) { board.record("entry(LedOff)") }

func (state *ledOff) Exit(board *board) { board.record("exit(LedOff)") }

func (state *ledOff) Handle(board *board, event statum.Event) statum.Response[*board] {
	switch event.Name() {
	case "tick":
		return statum.Transition[*board](&ledOn{})
	default:
		return statum.Super[*board]()
	}
}

type blinking struct{}

func (state *blinking) Name() string { return "Blinking" }

func (state *blinking) Superstate() statum.Superstate[*board] { return nil }

func (state *blinking) Entry(board *board) { board.record("entry(Blinking)") }

func (state *blinking) Exit(board *board) { board.record("exit(Blinking)") }

func (state *blinking) Handle(board *board, event statum.Event) statum.Response[*board] {
	switch event.Name() {
	case "press":
		return statum.Transition[*board](&notBlinking{})
	default:
		return statum.Super[*board]()
	}
}

type notBlinking struct{}

func (state *notBlinking) Name() string { return "NotBlinking" }

func (state *notBlinking) Superstate() statum.Superstate[*board] { return nil }

func (state *notBlinking) Entry(board *board) { board.record("entry(NotBlinking)") }

func (state *notBlinking) Exit(board *board) { board.record("exit(NotBlinking)") }

func (state *notBlinking) Handle(board *board, event statum.Event) statum.Response[*board] {
	switch event.Name() {
	case "press":
		return statum.Transition[*board](&ledOn{})
	default:
		return statum.Super[*board]()
	}
}

func TestBlinky(t *testing.T) {
	board := &board{}
	machine := statum.New(board, &ledOn{})

	require.ErrorIs(t, machine.Handle(statum.NewEvent("tick")), statum.ErrNotInitialized)
	require.ErrorIs(t, machine.Post(statum.NewEvent("tick")), statum.ErrNotInitialized)

	require.NoError(t, machine.Init())
	require.Equal(t, []string{"entry(Blinking)", "entry(LedOn)"}, board.trace)
	require.Equal(t, "LedOn", statum.NameOf(machine.State()))
	require.ErrorIs(t, machine.Init(), statum.ErrAlreadyInitialized)

	board.reset()
	require.NoError(t, machine.Handle(statum.NewEvent("tick")))
	require.Equal(t, []string{"exit(LedOn)", "entry(LedOff)"}, board.trace)
	require.Equal(t, "LedOff", statum.NameOf(machine.State()))

	board.reset()
	require.NoError(t, machine.Handle(statum.NewEvent("press")))
	require.Equal(t, []string{"exit(LedOff)", "exit(Blinking)", "entry(NotBlinking)"}, board.trace)
	require.Equal(t, "NotBlinking", statum.NameOf(machine.State()))

	board.reset()
	require.NoError(t, machine.Handle(statum.NewEvent("press")))
	require.Equal(t, []string{"exit(NotBlinking)", "entry(Blinking)", "entry(LedOn)"}, board.trace)
	require.Equal(t, "LedOn", statum.NameOf(machine.State()))
}

func TestUnhandledEventBubblesToTop(t *testing.T) {
	board := &board{}
	machine := statum.New(board, &ledOn{})
	require.NoError(t, machine.Init())
	board.reset()

	require.NoError(t, machine.Handle(statum.NewEvent("unknown")))
	require.Empty(t, board.trace)
	require.Equal(t, "LedOn", statum.NameOf(machine.State()))
}

func TestSelfTransitionIsExternal(t *testing.T) {
	board := &board{}
	machine := statum.New(board, &ledOn{})
	require.NoError(t, machine.Init())
	board.reset()

	require.NoError(t, machine.Handle(statum.NewEvent("again")))
	require.Equal(t, []string{"exit(LedOn)", "entry(LedOn)"}, board.trace)
	require.Equal(t, "LedOn", statum.NameOf(machine.State()))
}

/******* State-local storage *******/

type countingOn struct {
	Count uint32
}

func (state *countingOn) Superstate() statum.Superstate[*board] { return &blinking{} }

func (state *countingOn) Exit(board *board) {
	board.record(fmt.Sprintf("exit(CountingOn,%d)", state.Count))
}

func (state *countingOn) Handle(board *board, event statum.Event) statum.Response[*board] {
	switch event.Name() {
	case "tick":
		state.Count--
		if state.Count == 0 {
			return statum.Transition[*board](&ledOff{})
		}
		return statum.Handled[*board]()
	default:
		return statum.Super[*board]()
	}
}

func TestStateLocalCounter(t *testing.T) {
	board := &board{}
	machine := statum.New(board, &countingOn{Count: 3})
	require.NoError(t, machine.Init())
	board.reset()

	require.NoError(t, machine.Handle(statum.NewEvent("tick")))
	require.Empty(t, board.trace)
	require.NoError(t, machine.Handle(statum.NewEvent("tick")))
	require.Empty(t, board.trace)

	require.NoError(t, machine.Handle(statum.NewEvent("tick")))
	require.Equal(t, []string{"exit(CountingOn,0)", "entry(LedOff)"}, board.trace)
	require.Equal(t, "LedOff", statum.NameOf(machine.State()))
}

/******* Superstate borrowing from the active leaf *******/

type meterChild struct {
	Hits uint32
}

func (state *meterChild) Superstate() statum.Superstate[*board] {
	return &meterParent{hits: &state.Hits}
}

func (state *meterChild) Handle(board *board, event statum.Event) statum.Response[*board] {
	return statum.Super[*board]()
}

type meterParent struct {
	hits *uint32
}

func (state *meterParent) Superstate() statum.Superstate[*board] { return nil }

func (state *meterParent) Handle(board *board, event statum.Event) statum.Response[*board] {
	switch event.Name() {
	case "bump":
		*state.hits++
		return statum.Handled[*board]()
	default:
		return statum.Super[*board]()
	}
}

func TestSuperstateBorrowsLeafData(t *testing.T) {
	board := &board{}
	leaf := &meterChild{}
	machine := statum.New(board, leaf)
	require.NoError(t, machine.Init())

	require.NoError(t, machine.Handle(statum.NewEvent("bump")))
	require.NoError(t, machine.Handle(statum.NewEvent("bump")))
	require.Same(t, leaf, machine.State())
	require.Equal(t, uint32(2), leaf.Hits)
}

/******* Run to completion *******/

type chainFirst struct{}

func (state *chainFirst) Superstate() statum.Superstate[*board] { return nil }

func (state *chainFirst) Exit(board *board) { board.record("exit(First)") }

func (state *chainFirst) Handle(board *board, event statum.Event) statum.Response[*board] {
	switch event.Name() {
	case "start":
		err := board.machine.Handle(statum.NewEvent("nested"))
		board.record(fmt.Sprintf("reentrant=%v", errors.Is(err, statum.ErrBusy)))
		if err := board.machine.Post(statum.NewEvent("follow")); err != nil {
			board.record("post failed")
		}
		return statum.Transition[*board](&chainSecond{})
	default:
		return statum.Super[*board]()
	}
}

type chainSecond struct{}

func (state *chainSecond) Superstate() statum.Superstate[*board] { return nil }

func (state *chainSecond) Entry(board *board) { board.record("entry(Second)") }

func (state *chainSecond) Handle(board *board, event statum.Event) statum.Response[*board] {
	switch event.Name() {
	case "follow":
		board.record("handled(follow)")
		return statum.Handled[*board]()
	default:
		return statum.Super[*board]()
	}
}

func TestRunToCompletion(t *testing.T) {
	board := &board{}
	machine := statum.New(board, &chainFirst{})
	board.machine = machine
	require.NoError(t, machine.Init())
	board.reset()

	require.NoError(t, machine.Handle(statum.NewEvent("start")))
	require.Equal(t, []string{
		"reentrant=true",
		"exit(First)",
		"entry(Second)",
		"handled(follow)",
	}, board.trace)
}

func TestPostWhenIdleHandlesImmediately(t *testing.T) {
	board := &board{}
	machine := statum.New(board, &ledOn{})
	require.NoError(t, machine.Init())
	board.reset()

	require.NoError(t, machine.Post(statum.NewEvent("tick")))
	require.Equal(t, []string{"exit(LedOn)", "entry(LedOff)"}, board.trace)
}

/******* Hooks and tracing *******/

func TestHooks(t *testing.T) {
	board := &board{}
	var dispatched []string
	var transitions []string
	var machine *statum.Machine[*board]
	machine = statum.New(board, &ledOff{},
		statum.WithDispatchHook(func(node statum.Superstate[*board], event statum.Event) {
			dispatched = append(dispatched, statum.NameOf(node)+":"+event.Name())
		}),
		statum.WithTransitionHook(func(source, target statum.State[*board]) {
			// the transition hook observes the updated current state
			transitions = append(transitions, fmt.Sprintf("%s->%s@%s",
				statum.NameOf(source), statum.NameOf(target), statum.NameOf(machine.State())))
		}),
	)
	require.NoError(t, machine.Init())

	require.NoError(t, machine.Handle(statum.NewEvent("press")))
	require.Equal(t, []string{"LedOff:press", "Blinking:press"}, dispatched)
	require.Equal(t, []string{"LedOff->NotBlinking@NotBlinking"}, transitions)
}

func TestTraceObservesSteps(t *testing.T) {
	board := &board{}
	var steps []string
	machine := statum.New(board, &ledOn{},
		statum.WithTrace[*board](func(step string, elements ...any) func(...any) {
			steps = append(steps, step)
			return func(...any) {}
		}),
	)
	require.NoError(t, machine.Init())
	require.NoError(t, machine.Handle(statum.NewEvent("tick")))

	require.Equal(t, []string{
		"init", "entry", "entry",
		"dispatch", "transition", "exit", "entry",
	}, steps)
}

func TestDepthAndNameOf(t *testing.T) {
	require.Equal(t, 2, statum.Depth[*board](&ledOn{}))
	require.Equal(t, 1, statum.Depth[*board](&blinking{}))
	require.Equal(t, 0, statum.Depth[*board](nil))
	require.Equal(t, "LedOn", statum.NameOf(&ledOn{}))
	require.Equal(t, "countingOn", statum.NameOf(&countingOn{}))
}

func BenchmarkDispatch(b *testing.B) {
	board := &board{}
	machine := statum.New(board, &ledOn{})
	if err := machine.Init(); err != nil {
		b.Fatal(err)
	}
	tick := statum.NewEvent("tick")
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if err := machine.Handle(tick); err != nil {
			b.Fatal(err)
		}
		board.trace = board.trace[:0]
	}
}
