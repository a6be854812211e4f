package bus

import (
	"context"
	"sync"
)

// LocalTransport connects multiple buses in the same process. Every publish
// is fanned out synchronously to every subscriber, including the publisher's
// own bus, which drops the echo by origin.
type LocalTransport struct {
	mu       sync.RWMutex
	handlers []func([]byte)
}

// NewLocalTransport creates an empty in-process transport.
func NewLocalTransport() *LocalTransport {
	return &LocalTransport{}
}

// Publish delivers the envelope to every subscribed handler.
func (t *LocalTransport) Publish(data []byte) error {
	t.mu.RLock()
	handlers := make([]func([]byte), len(t.handlers))
	copy(handlers, t.handlers)
	t.mu.RUnlock()

	for _, h := range handlers {
		h(data)
	}
	return nil
}

// Subscribe adds an inbound handler.
func (t *LocalTransport) Subscribe(handler func(data []byte)) error {
	t.mu.Lock()
	t.handlers = append(t.handlers, handler)
	t.mu.Unlock()
	return nil
}

// Start is a no-op; the local transport is always live.
func (t *LocalTransport) Start(context.Context) error { return nil }

// Stop is a no-op.
func (t *LocalTransport) Stop(context.Context) error { return nil }
