// Package pipeline maintains the directed graph of port-to-port connections
// between widget instances and routes output emissions to the connected
// input handlers. Edges are established by user or AI wiring actions, never
// by widgets themselves.
package pipeline

import (
	"log/slog"
	"sync"

	"github.com/google/uuid"

	"github.com/hkcm91/stickernest-runtime/manifest"
)

// InputSink receives routed values for one widget. The widget bridge
// implements it; deliveries to a destroyed bridge are silent no-ops.
type InputSink interface {
	DeliverInput(port string, value any)
}

// Connection is one directed edge of the pipeline graph.
type Connection struct {
	SourceWidgetID uuid.UUID
	OutputPort     string
	TargetWidgetID uuid.UUID
	InputPort      string
}

type endpoint struct {
	widgetID uuid.UUID
	canvasID string
	ports    *manifest.Ports
	sink     InputSink
}

// Option configures a Router.
type Option func(*Router)

// WithLogger sets the router's structured log sink.
func WithLogger(l *slog.Logger) Option {
	return func(r *Router) { r.logger = l }
}

// WithDeliveryHook registers a callback invoked after each Route call with
// the fan-out size. Used for metrics.
func WithDeliveryHook(fn func(outputPort string, targets int)) Option {
	return func(r *Router) { r.deliveryHook = fn }
}

// Router owns the pipeline connection graph for one host.
type Router struct {
	logger       *slog.Logger
	deliveryHook func(outputPort string, targets int)

	mu        sync.RWMutex
	endpoints map[uuid.UUID]*endpoint
	// edges maps source widget -> output port -> ordered target list.
	edges map[uuid.UUID]map[string][]Connection
}

// NewRouter creates an empty Router.
func NewRouter(opts ...Option) *Router {
	r := &Router{
		logger:    slog.Default(),
		endpoints: make(map[uuid.UUID]*endpoint),
		edges:     make(map[uuid.UUID]map[string][]Connection),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// AddWidget registers a widget instance and its resolved port list. Port
// warnings from the manifest reconciliation are logged once here.
func (r *Router) AddWidget(widgetID uuid.UUID, canvasID string, m *manifest.WidgetManifest, sink InputSink) {
	ports := manifest.ResolvePorts(m)
	for _, w := range ports.Warnings {
		r.logger.Warn("manifest port mismatch", "widget", widgetID, "type", m.ID, "detail", w.String())
	}

	r.mu.Lock()
	r.endpoints[widgetID] = &endpoint{
		widgetID: widgetID,
		canvasID: canvasID,
		ports:    ports,
		sink:     sink,
	}
	r.mu.Unlock()
}

// RemoveWidget deregisters a widget and prunes every connection referencing
// it as source or target. No dangling edges survive.
func (r *Router) RemoveWidget(widgetID uuid.UUID) {
	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.endpoints, widgetID)
	delete(r.edges, widgetID)

	for src, byPort := range r.edges {
		for port, conns := range byPort {
			kept := conns[:0]
			for _, c := range conns {
				if c.TargetWidgetID != widgetID {
					kept = append(kept, c)
				}
			}
			if len(kept) == 0 {
				delete(byPort, port)
			} else {
				byPort[port] = kept
			}
		}
		if len(byPort) == 0 {
			delete(r.edges, src)
		}
	}
}

// Connect establishes a directed edge. Both ports must be declared in the
// respective manifests' resolved port lists. Connecting the same edge twice
// is a no-op, never a duplicate delivery.
func (r *Router) Connect(sourceWidgetID uuid.UUID, outputPort string, targetWidgetID uuid.UUID, inputPort string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	src, ok := r.endpoints[sourceWidgetID]
	if !ok {
		return ErrUnknownWidget
	}
	dst, ok := r.endpoints[targetWidgetID]
	if !ok {
		return ErrUnknownWidget
	}
	if !src.ports.HasOutput(outputPort) {
		return &InvalidPortError{WidgetID: sourceWidgetID, Port: outputPort, Direction: DirectionOutput}
	}
	if !dst.ports.HasInput(inputPort) {
		return &InvalidPortError{WidgetID: targetWidgetID, Port: inputPort, Direction: DirectionInput}
	}

	conn := Connection{
		SourceWidgetID: sourceWidgetID,
		OutputPort:     outputPort,
		TargetWidgetID: targetWidgetID,
		InputPort:      inputPort,
	}

	byPort := r.edges[sourceWidgetID]
	if byPort == nil {
		byPort = make(map[string][]Connection)
		r.edges[sourceWidgetID] = byPort
	}
	for _, existing := range byPort[outputPort] {
		if existing == conn {
			return nil
		}
	}
	byPort[outputPort] = append(byPort[outputPort], conn)

	r.logger.Info("pipeline connected",
		"source", sourceWidgetID, "outputPort", outputPort,
		"target", targetWidgetID, "inputPort", inputPort,
	)
	return nil
}

// Disconnect removes one edge. Removing an absent edge is a no-op.
func (r *Router) Disconnect(sourceWidgetID uuid.UUID, outputPort string, targetWidgetID uuid.UUID, inputPort string) {
	conn := Connection{
		SourceWidgetID: sourceWidgetID,
		OutputPort:     outputPort,
		TargetWidgetID: targetWidgetID,
		InputPort:      inputPort,
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	byPort := r.edges[sourceWidgetID]
	if byPort == nil {
		return
	}
	conns := byPort[outputPort]
	for i, c := range conns {
		if c == conn {
			byPort[outputPort] = append(conns[:i], conns[i+1:]...)
			break
		}
	}
	if len(byPort[outputPort]) == 0 {
		delete(byPort, outputPort)
	}
	if len(byPort) == 0 {
		delete(r.edges, sourceWidgetID)
	}
}

// Connections returns a snapshot of every edge whose source is the given
// widget and output port, in wiring order.
func (r *Router) Connections(sourceWidgetID uuid.UUID, outputPort string) []Connection {
	r.mu.RLock()
	defer r.mu.RUnlock()

	conns := r.edges[sourceWidgetID][outputPort]
	out := make([]Connection, len(conns))
	copy(out, conns)
	return out
}

// Route delivers value to every connection whose source is (sourceWidgetID,
// outputPort). Deliveries are synchronous and in wiring order, which gives
// FIFO per edge for a serially emitting source; order across different
// targets is unspecified by contract. A failure inside one target's handler
// is isolated by that target's bridge and never affects the others. Targets
// removed since wiring are dropped, not queued.
func (r *Router) Route(sourceWidgetID uuid.UUID, outputPort string, value any) {
	r.mu.RLock()
	conns := r.edges[sourceWidgetID][outputPort]
	type delivery struct {
		sink InputSink
		port string
	}
	deliveries := make([]delivery, 0, len(conns))
	for _, c := range conns {
		if ep, ok := r.endpoints[c.TargetWidgetID]; ok {
			deliveries = append(deliveries, delivery{sink: ep.sink, port: c.InputPort})
		}
	}
	r.mu.RUnlock()

	for _, d := range deliveries {
		d.sink.DeliverInput(d.port, value)
	}

	if r.deliveryHook != nil {
		r.deliveryHook(outputPort, len(deliveries))
	}
}
