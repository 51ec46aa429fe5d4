package statum

import (
	"github.com/google/uuid"
)

type event struct {
	name string
	id   string
	data any
}

func (event *event) Name() string {
	if event == nil {
		return ""
	}
	return event.name
}

func (event *event) Id() string {
	if event == nil {
		return ""
	}
	return event.id
}

func (event *event) Data() any {
	if event == nil {
		return nil
	}
	return event.data
}

// NewEvent creates an event with an optional payload. Each event carries a
// unique v7 id so traces and hooks can tell apart repeated events with the
// same name.
func NewEvent(name string, maybeData ...any) Event {
	var data any
	if len(maybeData) > 0 {
		data = maybeData[0]
	}
	id := ""
	if uid, err := uuid.NewV7(); err == nil {
		id = uid.String()
	}
	return &event{name: name, id: id, data: data}
}
