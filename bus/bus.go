// Package bus implements the broadcast pub/sub channel between widgets.
// Unlike pipeline connections, broadcasts are many-to-many and untyped: any
// widget on any canvas that listens for an event name receives every
// emission of that name, stamped with the originating canvas so receivers
// can tell same-canvas from cross-canvas traffic.
package bus

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"

	"github.com/google/uuid"
)

// Envelope is the wire form of one broadcast emission.
type Envelope struct {
	Event      string `json:"event"`
	Payload    any    `json:"payload,omitempty"`
	FromCanvas string `json:"fromCanvas"`
	FromWidget string `json:"fromWidget,omitempty"`
	// Origin identifies the emitting host process so transports that echo
	// publishes back to the publisher can be deduplicated.
	Origin string `json:"origin,omitempty"`
}

// DeliverFunc receives envelopes for one registered widget. The host wires
// this to the widget bridge's DeliverEvent.
type DeliverFunc func(env Envelope)

// Option configures a Bus.
type Option func(*Bus)

// WithLogger sets the bus's structured log sink.
func WithLogger(l *slog.Logger) Option {
	return func(b *Bus) { b.logger = l }
}

// WithOrigin overrides the generated host origin identifier.
func WithOrigin(origin string) Option {
	return func(b *Bus) { b.origin = origin }
}

// WithLegacySink registers a secondary, best-effort delivery channel for
// every emission, mirroring the older postMessage broadcast generation.
// Correctness never depends on the sink being received; failures inside it
// are swallowed.
func WithLegacySink(fn func(Envelope)) Option {
	return func(b *Bus) { b.legacySink = fn }
}

// WithEmitHook registers a callback invoked for every local emission, after
// fan-out. Used for metrics.
func WithEmitHook(fn func(event string)) Option {
	return func(b *Bus) { b.emitHook = fn }
}

type registration struct {
	widgetID uuid.UUID
	canvasID string
	deliver  DeliverFunc
}

// Bus fans broadcast emissions out to every registered widget on every
// canvas of this host, and across hosts through attached transports.
type Bus struct {
	logger     *slog.Logger
	origin     string
	legacySink func(Envelope)
	emitHook   func(event string)

	mu         sync.RWMutex
	listeners  map[uuid.UUID]*registration
	order      []uuid.UUID // registration order, for deterministic fan-out
	transports []BroadcastTransport
}

// New creates a Bus with a unique host origin identifier.
func New(opts ...Option) *Bus {
	b := &Bus{
		logger:    slog.Default(),
		origin:    uuid.NewString(),
		listeners: make(map[uuid.UUID]*registration),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Origin returns the host origin identifier stamped on outbound envelopes.
func (b *Bus) Origin() string { return b.origin }

// Register adds a widget's delivery sink. One sink per widget instance; the
// bridge behind it dispatches per event name. Re-registration replaces.
func (b *Bus) Register(widgetID uuid.UUID, canvasID string, deliver DeliverFunc) {
	b.mu.Lock()
	if _, exists := b.listeners[widgetID]; !exists {
		b.order = append(b.order, widgetID)
	}
	b.listeners[widgetID] = &registration{widgetID: widgetID, canvasID: canvasID, deliver: deliver}
	b.mu.Unlock()
}

// Unregister removes a widget's delivery sink. Emissions after removal are
// no longer delivered to it.
func (b *Bus) Unregister(widgetID uuid.UUID) {
	b.mu.Lock()
	delete(b.listeners, widgetID)
	for i, id := range b.order {
		if id == widgetID {
			b.order = append(b.order[:i], b.order[i+1:]...)
			break
		}
	}
	b.mu.Unlock()
}

// AttachTransport subscribes the bus to a cross-host transport. Envelopes
// published by this bus are forwarded to the transport; inbound envelopes
// from other hosts are fanned out locally. The caller owns Start/Stop.
func (b *Bus) AttachTransport(t BroadcastTransport) error {
	if err := t.Subscribe(b.inbound); err != nil {
		return fmt.Errorf("attach transport: %w", err)
	}
	b.mu.Lock()
	b.transports = append(b.transports, t)
	b.mu.Unlock()
	return nil
}

// Emit broadcasts an event from the given widget and canvas. Delivery is
// best-effort everywhere: local listener failures are isolated inside the
// bridges, transport failures are logged and skipped, and the legacy sink
// may be lost entirely without affecting correctness.
func (b *Bus) Emit(fromWidget uuid.UUID, fromCanvas, event string, payload any) {
	env := Envelope{
		Event:      event,
		Payload:    payload,
		FromCanvas: fromCanvas,
		FromWidget: fromWidget.String(),
		Origin:     b.origin,
	}

	b.deliverLocal(env)

	b.mu.RLock()
	transports := make([]BroadcastTransport, len(b.transports))
	copy(transports, b.transports)
	b.mu.RUnlock()

	if len(transports) > 0 {
		data, err := json.Marshal(env)
		if err != nil {
			b.logger.Error("broadcast envelope not serializable", "event", event, "error", err)
		} else {
			for _, t := range transports {
				if err := t.Publish(data); err != nil {
					b.logger.Warn("broadcast transport publish failed", "event", event, "error", err)
				}
			}
		}
	}

	if b.legacySink != nil {
		func() {
			defer func() {
				if r := recover(); r != nil {
					b.logger.Warn("legacy broadcast sink failed", "event", event, "panic", r)
				}
			}()
			b.legacySink(env)
		}()
	}

	if b.emitHook != nil {
		b.emitHook(event)
	}
}

// deliverLocal fans the envelope out to every registered widget, including
// listeners on the originating canvas. Receivers classify same- vs
// cross-canvas by comparing FromCanvas with their own canvas ID.
func (b *Bus) deliverLocal(env Envelope) {
	b.mu.RLock()
	regs := make([]*registration, 0, len(b.order))
	for _, id := range b.order {
		if r, ok := b.listeners[id]; ok {
			regs = append(regs, r)
		}
	}
	b.mu.RUnlock()

	for _, r := range regs {
		r.deliver(env)
	}
}

// inbound handles an envelope arriving from a transport. Emissions that
// originated on this host are dropped to avoid double delivery.
func (b *Bus) inbound(data []byte) {
	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		b.logger.Warn("dropping malformed broadcast envelope", "error", err)
		return
	}
	if env.Origin == b.origin {
		return
	}
	b.deliverLocal(env)
}

// Start starts all attached transports.
func (b *Bus) Start(ctx context.Context) error {
	b.mu.RLock()
	transports := make([]BroadcastTransport, len(b.transports))
	copy(transports, b.transports)
	b.mu.RUnlock()

	for _, t := range transports {
		if err := t.Start(ctx); err != nil {
			return fmt.Errorf("start broadcast transport: %w", err)
		}
	}
	return nil
}

// Stop stops all attached transports.
func (b *Bus) Stop(ctx context.Context) error {
	b.mu.RLock()
	transports := make([]BroadcastTransport, len(b.transports))
	copy(transports, b.transports)
	b.mu.RUnlock()

	var lastErr error
	for _, t := range transports {
		if err := t.Stop(ctx); err != nil {
			b.logger.Error("failed to stop broadcast transport", "error", err)
			lastErr = err
		}
	}
	return lastErr
}
