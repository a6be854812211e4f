// Package host ties the runtime together: it owns the canvases, places and
// removes widget instances, and wires each instance's bridge to the pipeline
// router, the event bus and the state store.
package host

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/hkcm91/stickernest-runtime/bridge"
	"github.com/hkcm91/stickernest-runtime/bus"
	"github.com/hkcm91/stickernest-runtime/pipeline"
	"github.com/hkcm91/stickernest-runtime/registry"
	"github.com/hkcm91/stickernest-runtime/store"
)

// Lifecycle errors.
var (
	ErrUnknownWidgetType = errors.New("widget type not in registry")
	ErrUnknownCanvas     = errors.New("canvas not found")
	ErrUnknownInstance   = errors.New("widget instance not found")
	ErrCanvasExists      = errors.New("canvas already exists")
)

// Option configures a Host.
type Option func(*Host)

// WithLogger sets the host's structured log sink.
func WithLogger(l *slog.Logger) Option {
	return func(h *Host) { h.logger = l }
}

// WithStore sets the state persistence backend shared by all instances.
func WithStore(s store.StateStore) Option {
	return func(h *Host) { h.states = s }
}

// WithBus supplies a pre-built event bus, typically one with cross-host
// transports attached.
func WithBus(b *bus.Bus) Option {
	return func(h *Host) { h.bus = b }
}

// WithRouter supplies a pre-built pipeline router.
func WithRouter(r *pipeline.Router) Option {
	return func(h *Host) { h.router = r }
}

// WithAssetBase sets the base URL for widget asset resolution.
func WithAssetBase(base string) Option {
	return func(h *Host) { h.assetBase = base }
}

// WithPersistDebounce sets the per-instance state write debounce.
func WithPersistDebounce(d time.Duration) Option {
	return func(h *Host) { h.persistDebounce = d }
}

// WithHandlerErrorHook forwards every caught widget handler failure, after
// it has been logged. Used for metrics.
func WithHandlerErrorHook(fn func(*bridge.HandlerError)) Option {
	return func(h *Host) { h.onHandlerError = fn }
}

// WithWidgetGauge registers a callback invoked with +1 on placement and -1
// on removal. Used for metrics.
func WithWidgetGauge(fn func(delta int)) Option {
	return func(h *Host) { h.widgetGauge = fn }
}

// Instance is one placed widget: its identity, its catalog type and the
// bridge that carries every interaction with it.
type Instance struct {
	ID     uuid.UUID
	TypeID string
	Bridge *bridge.Bridge
}

// Host owns the canvases of one runtime process.
type Host struct {
	logger          *slog.Logger
	registry        *registry.Registry
	router          *pipeline.Router
	bus             *bus.Bus
	states          store.StateStore
	assetBase       string
	persistDebounce time.Duration
	onHandlerError  func(*bridge.HandlerError)
	widgetGauge     func(delta int)

	mu       sync.RWMutex
	canvases map[string]*Canvas
}

// New creates a Host over the given widget catalog. Without options it uses
// an in-memory store, a fresh router and a transport-less bus.
func New(reg *registry.Registry, opts ...Option) *Host {
	h := &Host{
		logger:   slog.Default(),
		registry: reg,
		states:   store.NewMemoryStore(),
		canvases: make(map[string]*Canvas),
	}
	for _, opt := range opts {
		opt(h)
	}
	if h.router == nil {
		h.router = pipeline.NewRouter(pipeline.WithLogger(h.logger))
	}
	if h.bus == nil {
		h.bus = bus.New(bus.WithLogger(h.logger))
	}
	return h
}

// Registry returns the widget catalog.
func (h *Host) Registry() *registry.Registry {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.registry
}

// ReplaceRegistry swaps the widget catalog used for future placements.
// Already placed instances keep running with their original manifests.
func (h *Host) ReplaceRegistry(reg *registry.Registry) {
	h.mu.Lock()
	h.registry = reg
	h.mu.Unlock()
	h.logger.Info("widget registry replaced", "widgets", reg.Len())
}

// Router returns the pipeline router.
func (h *Host) Router() *pipeline.Router { return h.router }

// Bus returns the event bus.
func (h *Host) Bus() *bus.Bus { return h.bus }

// CreateCanvas registers a new empty canvas under the given ID.
func (h *Host) CreateCanvas(id string) (*Canvas, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, exists := h.canvases[id]; exists {
		return nil, fmt.Errorf("%w: %s", ErrCanvasExists, id)
	}
	c := &Canvas{
		id:      id,
		host:    h,
		widgets: make(map[uuid.UUID]*Instance),
	}
	h.canvases[id] = c
	h.logger.Info("canvas created", "canvas", id)
	return c, nil
}

// Canvas looks up a canvas by ID.
func (h *Host) Canvas(id string) (*Canvas, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	c, ok := h.canvases[id]
	return c, ok
}

// RemoveCanvas destroys every widget on the canvas and removes it.
func (h *Host) RemoveCanvas(ctx context.Context, id string) error {
	h.mu.Lock()
	c, ok := h.canvases[id]
	delete(h.canvases, id)
	h.mu.Unlock()

	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownCanvas, id)
	}
	for _, inst := range c.Instances() {
		if err := c.Remove(ctx, inst.ID); err != nil {
			h.logger.Error("failed to remove widget during canvas teardown",
				"canvas", id, "widget", inst.ID, "error", err)
		}
	}
	h.logger.Info("canvas removed", "canvas", id)
	return nil
}

// FindInstance locates a widget instance across all canvases.
func (h *Host) FindInstance(widgetID uuid.UUID) (*Instance, *Canvas, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for _, c := range h.canvases {
		c.mu.RLock()
		inst, ok := c.widgets[widgetID]
		c.mu.RUnlock()
		if ok {
			return inst, c, true
		}
	}
	return nil, nil, false
}

// Connect wires an output port of one instance to an input port of another.
// Both ports must be declared in the respective manifests.
func (h *Host) Connect(sourceWidgetID uuid.UUID, outputPort string, targetWidgetID uuid.UUID, inputPort string) error {
	return h.router.Connect(sourceWidgetID, outputPort, targetWidgetID, inputPort)
}

// Disconnect removes one pipeline edge.
func (h *Host) Disconnect(sourceWidgetID uuid.UUID, outputPort string, targetWidgetID uuid.UUID, inputPort string) {
	h.router.Disconnect(sourceWidgetID, outputPort, targetWidgetID, inputPort)
}

// Shutdown removes every canvas and stops the bus transports.
func (h *Host) Shutdown(ctx context.Context) error {
	h.mu.RLock()
	ids := make([]string, 0, len(h.canvases))
	for id := range h.canvases {
		ids = append(ids, id)
	}
	h.mu.RUnlock()

	for _, id := range ids {
		if err := h.RemoveCanvas(ctx, id); err != nil {
			h.logger.Error("failed to remove canvas during shutdown", "canvas", id, "error", err)
		}
	}
	return h.bus.Stop(ctx)
}

// Canvas is one widget surface. Placement order is preserved for listings
// and snapshots.
type Canvas struct {
	id   string
	host *Host

	mu      sync.RWMutex
	widgets map[uuid.UUID]*Instance
	order   []uuid.UUID
}

// ID returns the canvas identifier.
func (c *Canvas) ID() string { return c.id }

// Place creates an instance of the given widget type with a fresh ID. The
// instance is wired to the router, bus and store but not yet mounted; call
// Mount after the widget's handlers are registered.
func (c *Canvas) Place(typeID string) (*Instance, error) {
	return c.PlaceWithID(uuid.New(), typeID)
}

// PlaceWithID places an instance under a caller-chosen ID, which lets a
// snapshot restore reuse the original identity so persisted state is found
// again.
func (c *Canvas) PlaceWithID(widgetID uuid.UUID, typeID string) (*Instance, error) {
	w, ok := c.host.Registry().Get(typeID)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownWidgetType, typeID)
	}

	h := c.host
	br := bridge.New(widgetID, c.id, w.Manifest,
		bridge.WithLogger(h.logger),
		bridge.WithStore(h.states),
		bridge.WithAssetBase(h.assetBase),
		bridge.WithPersistDebounce(h.persistDebounce),
		bridge.WithHandlerErrorHook(h.onHandlerError),
		bridge.WithOutputSink(func(port string, value any) {
			h.router.Route(widgetID, port, value)
		}),
		bridge.WithEventSink(func(event string, payload any) {
			h.bus.Emit(widgetID, c.id, event, payload)
		}),
	)

	inst := &Instance{ID: widgetID, TypeID: typeID, Bridge: br}

	c.mu.Lock()
	if _, dup := c.widgets[widgetID]; dup {
		c.mu.Unlock()
		return nil, fmt.Errorf("widget %s already placed on canvas %s", widgetID, c.id)
	}
	c.widgets[widgetID] = inst
	c.order = append(c.order, widgetID)
	c.mu.Unlock()

	h.router.AddWidget(widgetID, c.id, w.Manifest, br)
	h.bus.Register(widgetID, c.id, br.DeliverEvent)

	if h.widgetGauge != nil {
		h.widgetGauge(1)
	}
	h.logger.Info("widget placed", "canvas", c.id, "widget", widgetID, "type", typeID)
	return inst, nil
}

// Mount seeds the instance's state from the store and fires its mount
// callback.
func (c *Canvas) Mount(ctx context.Context, widgetID uuid.UUID) error {
	c.mu.RLock()
	inst, ok := c.widgets[widgetID]
	c.mu.RUnlock()

	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownInstance, widgetID)
	}
	return inst.Bridge.Mount(ctx)
}

// Remove tears an instance down: it is pruned from the router and bus first
// so no new deliveries reach it, then its bridge is destroyed, which flushes
// pending state and fires the destroy callback exactly once.
func (c *Canvas) Remove(ctx context.Context, widgetID uuid.UUID) error {
	c.mu.Lock()
	inst, ok := c.widgets[widgetID]
	if ok {
		delete(c.widgets, widgetID)
		for i, id := range c.order {
			if id == widgetID {
				c.order = append(c.order[:i], c.order[i+1:]...)
				break
			}
		}
	}
	c.mu.Unlock()

	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownInstance, widgetID)
	}

	h := c.host
	h.router.RemoveWidget(widgetID)
	h.bus.Unregister(widgetID)
	inst.Bridge.Destroy(ctx)

	if h.widgetGauge != nil {
		h.widgetGauge(-1)
	}
	h.logger.Info("widget removed", "canvas", c.id, "widget", widgetID, "type", inst.TypeID)
	return nil
}

// Instance looks up a placed widget by ID.
func (c *Canvas) Instance(widgetID uuid.UUID) (*Instance, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	inst, ok := c.widgets[widgetID]
	return inst, ok
}

// Instances lists placed widgets in placement order.
func (c *Canvas) Instances() []*Instance {
	c.mu.RLock()
	defer c.mu.RUnlock()

	out := make([]*Instance, 0, len(c.order))
	for _, id := range c.order {
		out = append(out, c.widgets[id])
	}
	return out
}

// Len reports how many widgets are placed on the canvas.
func (c *Canvas) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.order)
}
