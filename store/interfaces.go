// Package store persists each widget instance's opaque state blob, keyed by
// instance ID. The blob is owned entirely by the widget; the store only
// guarantees byte-for-byte round-trip of JSON-serializable values.
package store

import (
	"context"

	"github.com/google/uuid"
)

// State is the opaque, JSON-serializable state blob of one widget instance.
// The host never inspects its contents.
type State map[string]any

// Clone returns a shallow copy of the state.
func (s State) Clone() State {
	out := make(State, len(s))
	for k, v := range s {
		out[k] = v
	}
	return out
}

// StateStore defines persistence operations for widget instance state.
type StateStore interface {
	// Load returns the last persisted state for the widget, or an empty
	// State if none exists. Absence is never an error.
	Load(ctx context.Context, widgetID uuid.UUID) (State, error)
	// Save overwrites the persisted state. Fully idempotent; callers own
	// merge semantics.
	Save(ctx context.Context, widgetID uuid.UUID, state State) error
	// Delete discards the persisted state. Deleting absent state is a no-op.
	Delete(ctx context.Context, widgetID uuid.UUID) error
}
