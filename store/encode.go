package store

import (
	"encoding/json"
	"fmt"
)

// EncodeState serializes a state blob to its canonical JSON form. A nil state
// encodes as an empty object. Failures wrap ErrNotSerializable so callers can
// distinguish bad payloads from backend faults.
func EncodeState(s State) ([]byte, error) {
	if s == nil {
		return []byte("{}"), nil
	}
	data, err := json.Marshal(s)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNotSerializable, err)
	}
	return data, nil
}

// DecodeState parses a persisted JSON blob back into a State. Empty input
// decodes to an empty State.
func DecodeState(data []byte) (State, error) {
	if len(data) == 0 {
		return State{}, nil
	}
	var s State
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("decode state: %w", err)
	}
	if s == nil {
		s = State{}
	}
	return s, nil
}
