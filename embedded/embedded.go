// Package embedded holds the narrow interfaces shared between the statum
// root package and its support packages. Keeping them here breaks the
// import cycle between the engine and packages like queue that only move
// events around.
package embedded

type Event interface {
	Name() string
	Id() string
	Data() any
}

type Named interface {
	Name() string
}

// Poster accepts events for processing. The statum machine satisfies it;
// helpers such as timers deliver through it.
type Poster interface {
	Post(event Event) error
}
