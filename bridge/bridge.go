// Package bridge implements the WidgetAPI surface injected into each
// sandboxed widget context. It is the only channel through which a widget
// affects or observes the outside world: lifecycle hooks, typed input
// delivery, output emission, broadcast events and state persistence all pass
// through one Bridge per widget instance.
package bridge

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/hkcm91/stickernest-runtime/bus"
	"github.com/hkcm91/stickernest-runtime/manifest"
	"github.com/hkcm91/stickernest-runtime/store"
)

// MountContext is passed to the widget's mount callback exactly once, after
// the bridge is ready. State holds the previously persisted blob, or an
// empty map for a fresh instance.
type MountContext struct {
	WidgetID uuid.UUID
	CanvasID string
	State    store.State
}

// OutputFunc receives values emitted on an output port. The host wires this
// to the pipeline router.
type OutputFunc func(port string, value any)

// EmitFunc receives broadcast emissions. The host wires this to the event bus.
type EmitFunc func(event string, payload any)

// InputHandler handles one delivery on a named input port.
type InputHandler func(value any)

// EventHandler handles one broadcast envelope.
type EventHandler func(env bus.Envelope)

// Option configures a Bridge.
type Option func(*Bridge)

// WithLogger sets the bridge's structured log sink.
func WithLogger(l *slog.Logger) Option {
	return func(b *Bridge) { b.logger = l }
}

// WithStore sets the state persistence backend.
func WithStore(s store.StateStore) Option {
	return func(b *Bridge) { b.states = s }
}

// WithOutputSink wires EmitOutput to the host's router.
func WithOutputSink(fn OutputFunc) Option {
	return func(b *Bridge) { b.outputSink = fn }
}

// WithEventSink wires Emit to the host's event bus.
func WithEventSink(fn EmitFunc) Option {
	return func(b *Bridge) { b.eventSink = fn }
}

// WithAssetBase sets the base URL used by AssetURL.
func WithAssetBase(base string) Option {
	return func(b *Bridge) { b.assetBase = base }
}

// WithPersistDebounce coalesces state writes: SetState schedules a single
// flush after d instead of writing immediately. Zero (the default) writes
// synchronously. Correctness never depends on the timing; pending writes are
// flushed on Destroy.
func WithPersistDebounce(d time.Duration) Option {
	return func(b *Bridge) { b.persistDebounce = d }
}

// WithHandlerErrorHook registers a callback invoked for every caught
// HandlerError, after it has been logged. Used for metrics.
func WithHandlerErrorHook(fn func(*HandlerError)) Option {
	return func(b *Bridge) { b.onHandlerError = fn }
}

// Bridge is the host-side implementation of the WidgetAPI for one widget
// instance. Widget-facing methods (OnMount, OnInput, EmitOutput, SetState,
// ...) are called from the widget's context; host-facing methods (Mount,
// DeliverInput, DeliverEvent, Destroy) are called by the router, bus and
// canvas lifecycle.
type Bridge struct {
	widgetID uuid.UUID
	canvasID string
	mf       *manifest.WidgetManifest

	states          store.StateStore
	logger          *slog.Logger
	assetBase       string
	outputSink      OutputFunc
	eventSink       EmitFunc
	persistDebounce time.Duration
	onHandlerError  func(*HandlerError)

	mu            sync.Mutex
	state         store.State
	mounted       bool
	destroyed     bool
	onMount       func(MountContext)
	onDestroy     func()
	onStateChange func(store.State)
	inputs        map[string]InputHandler
	normalizers   map[string]NormalizeFunc
	events        map[string][]eventListener
	listenerSeq   uint64

	persistTimer *time.Timer
	dirty        bool
	writeGen     uint64

	// persistMu serializes store writes so a slow Save of an older snapshot
	// can never land after a newer one.
	persistMu sync.Mutex
}

// New creates a Bridge for one widget instance. The zero configuration uses
// an in-memory store and the default logger.
func New(widgetID uuid.UUID, canvasID string, mf *manifest.WidgetManifest, opts ...Option) *Bridge {
	b := &Bridge{
		widgetID:    widgetID,
		canvasID:    canvasID,
		mf:          mf,
		states:      store.NewMemoryStore(),
		logger:      slog.Default(),
		state:       store.State{},
		inputs:      make(map[string]InputHandler),
		normalizers: make(map[string]NormalizeFunc),
		events:      make(map[string][]eventListener),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// WidgetID returns the instance identity.
func (b *Bridge) WidgetID() uuid.UUID { return b.widgetID }

// CanvasID returns the owning canvas.
func (b *Bridge) CanvasID() string { return b.canvasID }

// Manifest returns the widget type descriptor.
func (b *Bridge) Manifest() *manifest.WidgetManifest { return b.mf }

// --- widget-facing registration ---

// OnMount registers the mount callback. Calling it again before Mount
// replaces the prior callback; last registration wins.
func (b *Bridge) OnMount(fn func(MountContext)) {
	b.mu.Lock()
	b.onMount = fn
	b.mu.Unlock()
}

// OnInput registers the handler for a named input port. Re-registration for
// the same port replaces the previous handler; one handler per port.
func (b *Bridge) OnInput(port string, fn InputHandler) {
	b.mu.Lock()
	b.inputs[port] = fn
	b.mu.Unlock()
}

// Normalize installs a payload normalizer applied before the port's input
// handler. Use it to fold duck-typed payload shapes (a bare string vs
// {"color": string}) into one canonical form at the bridge boundary.
func (b *Bridge) Normalize(port string, fn NormalizeFunc) {
	b.mu.Lock()
	b.normalizers[port] = fn
	b.mu.Unlock()
}

// OnStateChange registers a callback fired after every SetState or
// ReplaceState by this instance. It is never triggered by other widgets.
func (b *Bridge) OnStateChange(fn func(store.State)) {
	b.mu.Lock()
	b.onStateChange = fn
	b.mu.Unlock()
}

// OnDestroy registers the teardown callback. It is invoked exactly once,
// before the sandboxed context is torn down.
func (b *Bridge) OnDestroy(fn func()) {
	b.mu.Lock()
	b.onDestroy = fn
	b.mu.Unlock()
}

// eventListener pairs a broadcast handler with the identity its remove
// function uses to find it again.
type eventListener struct {
	id uint64
	fn EventHandler
}

// On registers a broadcast listener for the given event name. Unlike input
// ports, multiple listeners per event are allowed. The manifest's declared
// listens set is documentation, not a gate. The returned function removes
// the listener; calling it more than once is a no-op.
func (b *Bridge) On(event string, fn EventHandler) (remove func()) {
	b.mu.Lock()
	b.listenerSeq++
	id := b.listenerSeq
	b.events[event] = append(b.events[event], eventListener{id: id, fn: fn})
	b.mu.Unlock()

	return func() {
		b.mu.Lock()
		listeners := b.events[event]
		for i, l := range listeners {
			if l.id == id {
				b.events[event] = append(listeners[:i:i], listeners[i+1:]...)
				break
			}
		}
		b.mu.Unlock()
	}
}

// --- widget-facing actions ---

// EmitOutput delivers value to every pipeline connection whose source is
// (this widget, port). Fire-and-forget: failures downstream never surface
// here. Emissions after destroy are dropped.
func (b *Bridge) EmitOutput(port string, value any) {
	b.mu.Lock()
	sink := b.outputSink
	dead := b.destroyed
	b.mu.Unlock()

	if dead || sink == nil {
		return
	}
	sink(port, value)
}

// Emit publishes a broadcast event through the host's event bus. The
// declared emits set is not enforced.
func (b *Bridge) Emit(event string, payload any) {
	b.mu.Lock()
	sink := b.eventSink
	dead := b.destroyed
	b.mu.Unlock()

	if dead || sink == nil {
		return
	}
	sink(event, payload)
}

// SetState shallow-merges partial into the instance state and schedules a
// persist. Keys present in partial overwrite; absent keys are kept.
func (b *Bridge) SetState(partial store.State) {
	b.mu.Lock()
	if b.destroyed {
		b.mu.Unlock()
		return
	}
	for k, v := range partial {
		b.state[k] = v
	}
	b.writeGen++
	gen := b.writeGen
	snapshot := b.state.Clone()
	notify := b.onStateChange
	b.mu.Unlock()

	if notify != nil {
		b.safeInvoke("onStateChange", func() { notify(snapshot) })
	}
	b.schedulePersist(snapshot, gen)
}

// ReplaceState swaps the entire instance state and schedules a persist.
func (b *Bridge) ReplaceState(full store.State) {
	b.mu.Lock()
	if b.destroyed {
		b.mu.Unlock()
		return
	}
	b.state = full.Clone()
	b.writeGen++
	gen := b.writeGen
	snapshot := b.state.Clone()
	notify := b.onStateChange
	b.mu.Unlock()

	if notify != nil {
		b.safeInvoke("onStateChange", func() { notify(snapshot) })
	}
	b.schedulePersist(snapshot, gen)
}

// State returns a copy of the current instance state.
func (b *Bridge) State() store.State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state.Clone()
}

// AssetURL resolves an opaque asset reference to a fetchable URL. Pure
// function, no side effects.
func (b *Bridge) AssetURL(path string) string {
	base := strings.TrimSuffix(b.assetBase, "/")
	path = strings.TrimPrefix(path, "/")
	if base == "" {
		return "/" + path
	}
	return base + "/" + path
}

// Log writes an info-level entry to the structured log sink. Never panics
// regardless of argument shape.
func (b *Bridge) Log(msg string, args ...any) {
	b.logger.Info(msg, b.logAttrs(args)...)
}

// Warn writes a warn-level entry.
func (b *Bridge) Warn(msg string, args ...any) {
	b.logger.Warn(msg, b.logAttrs(args)...)
}

// Error writes an error-level entry.
func (b *Bridge) Error(msg string, args ...any) {
	b.logger.Error(msg, b.logAttrs(args)...)
}

func (b *Bridge) logAttrs(args []any) []any {
	attrs := []any{"widget", b.widgetID.String(), "canvas", b.canvasID}
	if b.mf != nil {
		attrs = append(attrs, "type", b.mf.ID)
	}
	// slog tolerates odd key/value lists; pad rather than drop so nothing
	// a widget logs is lost.
	if len(args)%2 != 0 {
		args = append(args, "(missing)")
	}
	return append(attrs, args...)
}

// --- host-facing lifecycle and delivery ---

// Mount seeds the instance state from the store and invokes the registered
// mount callback once, synchronously. Subsequent calls are no-ops.
func (b *Bridge) Mount(ctx context.Context) error {
	b.mu.Lock()
	if b.mounted || b.destroyed {
		b.mu.Unlock()
		return nil
	}
	b.mounted = true
	states := b.states
	b.mu.Unlock()

	seeded, err := states.Load(ctx, b.widgetID)
	if err != nil {
		// Mount proceeds with empty state; a widget must come up even when
		// the store is unhealthy.
		b.logger.Error("failed to load widget state", "widget", b.widgetID, "error", err)
		seeded = store.State{}
	}

	b.mu.Lock()
	b.state = seeded
	fn := b.onMount
	b.mu.Unlock()

	if fn != nil {
		b.safeInvoke("onMount", func() {
			fn(MountContext{WidgetID: b.widgetID, CanvasID: b.canvasID, State: seeded.Clone()})
		})
	}
	return nil
}

// DeliverInput routes one value to the registered handler for the port.
// Deliveries to a destroyed instance or to an unhandled port are silent
// no-ops. A panic inside the handler is caught, logged and isolated to this
// single delivery.
func (b *Bridge) DeliverInput(port string, value any) {
	b.mu.Lock()
	if b.destroyed {
		b.mu.Unlock()
		return
	}
	fn := b.inputs[port]
	norm := b.normalizers[port]
	b.mu.Unlock()

	if fn == nil {
		return
	}
	if norm != nil {
		value = norm(value)
	}
	b.safeInvoke("onInput:"+port, func() { fn(value) })
}

// DeliverEvent fans one broadcast envelope out to every listener registered
// for its event name. Listener failures are isolated from each other.
func (b *Bridge) DeliverEvent(env bus.Envelope) {
	b.mu.Lock()
	if b.destroyed {
		b.mu.Unlock()
		return
	}
	listeners := b.events[env.Event]
	handlers := make([]EventHandler, len(listeners))
	for i, l := range listeners {
		handlers[i] = l.fn
	}
	b.mu.Unlock()

	for _, fn := range handlers {
		h := fn
		b.safeInvoke("on:"+env.Event, func() { h(env) })
	}
}

// Mounted reports whether the mount callback has already run. A sandbox
// reconnecting to a live instance uses this to replay the mount context
// instead of mounting again.
func (b *Bridge) Mounted() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.mounted
}

// Destroyed reports whether the instance has been torn down.
func (b *Bridge) Destroyed() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.destroyed
}

// Destroy tears the instance down: pending state writes are flushed, the
// registered destroy callback runs exactly once, and all further deliveries
// and emissions become no-ops. Safe to call more than once.
func (b *Bridge) Destroy(ctx context.Context) {
	b.mu.Lock()
	if b.destroyed {
		b.mu.Unlock()
		return
	}
	b.destroyed = true
	if b.persistTimer != nil {
		b.persistTimer.Stop()
		b.persistTimer = nil
	}
	pending := b.dirty
	snapshot := b.state.Clone()
	gen := b.writeGen
	fn := b.onDestroy
	b.mu.Unlock()

	if pending {
		b.persist(ctx, snapshot, gen)
	}
	if fn != nil {
		b.safeInvoke("onDestroy", fn)
	}
}

// Flush writes any pending state immediately. Useful for host checkpoints.
func (b *Bridge) Flush(ctx context.Context) {
	b.mu.Lock()
	if !b.dirty {
		b.mu.Unlock()
		return
	}
	if b.persistTimer != nil {
		b.persistTimer.Stop()
		b.persistTimer = nil
	}
	snapshot := b.state.Clone()
	gen := b.writeGen
	b.mu.Unlock()

	b.persist(ctx, snapshot, gen)
}

func (b *Bridge) schedulePersist(snapshot store.State, gen uint64) {
	if b.persistDebounce <= 0 {
		b.mu.Lock()
		b.dirty = true
		b.mu.Unlock()
		b.persist(context.Background(), snapshot, gen)
		return
	}

	b.mu.Lock()
	b.dirty = true
	if b.persistTimer == nil {
		b.persistTimer = time.AfterFunc(b.persistDebounce, func() {
			b.mu.Lock()
			b.persistTimer = nil
			snap := b.state.Clone()
			g := b.writeGen
			b.mu.Unlock()
			b.persist(context.Background(), snap, g)
		})
	}
	b.mu.Unlock()
}

// persist writes one snapshot to the store. gen identifies the write the
// snapshot belongs to; dirty is only cleared when no newer write happened
// while the Save was in flight, so Destroy and Flush still see it pending.
func (b *Bridge) persist(ctx context.Context, snapshot store.State, gen uint64) {
	b.persistMu.Lock()
	err := b.states.Save(ctx, b.widgetID, snapshot)
	b.persistMu.Unlock()

	b.mu.Lock()
	if err == nil && gen == b.writeGen {
		b.dirty = false
	}
	b.mu.Unlock()

	if err != nil {
		// Serialization failures leave the prior persisted blob untouched;
		// the in-memory state stays ahead of the store until a good write.
		b.logger.Error("failed to persist widget state", "widget", b.widgetID, "error", err)
	}
}

func (b *Bridge) safeInvoke(hook string, fn func()) {
	defer func() {
		if r := recover(); r != nil {
			herr := NewHandlerError(b.widgetID, hook, r)
			b.logger.Error("widget handler failed",
				"widget", b.widgetID,
				"canvas", b.canvasID,
				"hook", hook,
				"error", herr.Err,
			)
			if b.onHandlerError != nil {
				b.onHandlerError(herr)
			}
		}
	}()
	fn()
}
