package store

import "errors"

// Sentinel errors for store operations.
var (
	// ErrNotSerializable is returned when a state blob cannot be encoded as
	// JSON (functions, channels, circular references). The previously
	// persisted state is left untouched in that case.
	ErrNotSerializable = errors.New("state not serializable")
	// ErrClosed is returned by backends used after Close.
	ErrClosed = errors.New("store closed")
)
