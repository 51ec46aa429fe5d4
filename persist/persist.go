// Package persist saves and restores the current state of a statum machine.
// A snapshot holds the state's variant name and its local data; restoring
// yields an uninitialized machine, so the entry chain down to the restored
// state runs again on Init.
package persist

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"

	statum "github.com/stateforward/go-statum"
	"gopkg.in/yaml.v3"
)

var ErrUnknownState = errors.New("persist: unknown state")

// Snapshot is the persisted layout: the variant tag of the current leaf plus
// its local data. Local data must live in exported fields to round-trip.
type Snapshot struct {
	State string          `json:"state"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// Registry maps variant names to factories producing zero values of each
// leaf state, so snapshots can be decoded back into concrete variants.
type Registry[C any] struct {
	factories map[string]func() statum.State[C]
}

func NewRegistry[C any](states ...func() statum.State[C]) *Registry[C] {
	registry := &Registry[C]{factories: map[string]func() statum.State[C]{}}
	for _, factory := range states {
		registry.Register(factory)
	}
	return registry
}

func (registry *Registry[C]) Register(factory func() statum.State[C]) {
	registry.factories[statum.NameOf(factory())] = factory
}

// Save captures the machine's current state. The machine must not be
// mid-dispatch.
func Save[C any](machine *statum.Machine[C]) (*Snapshot, error) {
	state := machine.State()
	if state == nil {
		return nil, fmt.Errorf("persist: machine has no current state")
	}
	data, err := json.Marshal(state)
	if err != nil {
		return nil, fmt.Errorf("persist: encoding %s: %w", statum.NameOf(state), err)
	}
	snapshot := &Snapshot{State: statum.NameOf(state)}
	if string(data) != "{}" {
		snapshot.Data = data
	}
	return snapshot, nil
}

// Restore builds an uninitialized machine positioned at the snapshot's state
// with its local data reloaded. Call Init on the result before handling
// events; entry actions that must not repeat have to be idempotent.
func Restore[C any](registry *Registry[C], snapshot *Snapshot, ctx C, options ...statum.Option[C]) (*statum.Machine[C], error) {
	factory, ok := registry.factories[snapshot.State]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownState, snapshot.State)
	}
	state := factory()
	if len(snapshot.Data) > 0 {
		if err := json.Unmarshal(snapshot.Data, state); err != nil {
			return nil, fmt.Errorf("persist: decoding %s: %w", snapshot.State, err)
		}
	}
	return statum.New(ctx, state, options...), nil
}

func EncodeJSON(writer io.Writer, snapshot *Snapshot) error {
	return json.NewEncoder(writer).Encode(snapshot)
}

func DecodeJSON(reader io.Reader) (*Snapshot, error) {
	snapshot := &Snapshot{}
	if err := json.NewDecoder(reader).Decode(snapshot); err != nil {
		return nil, fmt.Errorf("persist: decoding snapshot: %w", err)
	}
	return snapshot, nil
}

// yamlSnapshot keeps the YAML form human-editable: local data appears as a
// nested mapping rather than an embedded JSON string.
type yamlSnapshot struct {
	State string         `yaml:"state"`
	Data  map[string]any `yaml:"data,omitempty"`
}

func EncodeYAML(writer io.Writer, snapshot *Snapshot) error {
	out := yamlSnapshot{State: snapshot.State}
	if len(snapshot.Data) > 0 {
		if err := json.Unmarshal(snapshot.Data, &out.Data); err != nil {
			return fmt.Errorf("persist: encoding snapshot: %w", err)
		}
	}
	return yaml.NewEncoder(writer).Encode(out)
}

func DecodeYAML(reader io.Reader) (*Snapshot, error) {
	in := yamlSnapshot{}
	if err := yaml.NewDecoder(reader).Decode(&in); err != nil {
		return nil, fmt.Errorf("persist: decoding snapshot: %w", err)
	}
	snapshot := &Snapshot{State: in.State}
	if len(in.Data) > 0 {
		data, err := json.Marshal(in.Data)
		if err != nil {
			return nil, fmt.Errorf("persist: decoding snapshot: %w", err)
		}
		snapshot.Data = data
	}
	return snapshot, nil
}
