package pipeline

import (
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"

	"github.com/google/uuid"

	"github.com/hkcm91/stickernest-runtime/manifest"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func counterManifest() *manifest.WidgetManifest {
	return &manifest.WidgetManifest{
		ID:      "stickernest.counter",
		Version: "1.0.0",
		Kind:    manifest.KindInteractive,
		Inputs:  map[string]manifest.PortSpec{"counter.set": {Type: manifest.TypeNumber}},
		Outputs: map[string]manifest.PortSpec{"counter.value": {Type: manifest.TypeNumber}},
		IO: manifest.IO{
			Inputs:  []string{"counter.set"},
			Outputs: []string{"counter.value"},
		},
		Size: manifest.Size{Width: 200, Height: 120},
	}
}

// recordingSink captures deliveries for one fake widget.
type recordingSink struct {
	mu     sync.Mutex
	values []any
	ports  []string
	fail   bool
}

func (s *recordingSink) DeliverInput(port string, value any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fail {
		// A real bridge isolates handler panics; this sink simulates one
		// that has already swallowed the failure.
		return
	}
	s.ports = append(s.ports, port)
	s.values = append(s.values, value)
}

func (s *recordingSink) received() []any {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]any, len(s.values))
	copy(out, s.values)
	return out
}

func addCounter(t *testing.T, r *Router, canvas string) (uuid.UUID, *recordingSink) {
	t.Helper()
	id := uuid.New()
	sink := &recordingSink{}
	r.AddWidget(id, canvas, counterManifest(), sink)
	return id, sink
}

func TestRouter_PointToPointDelivery(t *testing.T) {
	r := NewRouter(WithLogger(testLogger()))
	a, _ := addCounter(t, r, "canvas-main")
	b, sinkB := addCounter(t, r, "canvas-main")

	if err := r.Connect(a, "counter.value", b, "counter.set"); err != nil {
		t.Fatalf("Connect failed: %v", err)
	}
	r.Route(a, "counter.value", float64(7))

	got := sinkB.received()
	if len(got) != 1 || got[0] != float64(7) {
		t.Errorf("expected exactly [7], got %v", got)
	}
}

func TestRouter_ConnectUnknownWidget(t *testing.T) {
	r := NewRouter(WithLogger(testLogger()))
	a, _ := addCounter(t, r, "canvas-main")

	if err := r.Connect(a, "counter.value", uuid.New(), "counter.set"); !errors.Is(err, ErrUnknownWidget) {
		t.Errorf("expected ErrUnknownWidget, got %v", err)
	}
}

func TestRouter_ConnectUndeclaredPort(t *testing.T) {
	r := NewRouter(WithLogger(testLogger()))
	a, _ := addCounter(t, r, "canvas-main")
	b, sinkB := addCounter(t, r, "canvas-main")

	err := r.Connect(a, "counter.bogus", b, "counter.set")
	var ipe *InvalidPortError
	if !errors.As(err, &ipe) {
		t.Fatalf("expected InvalidPortError, got %v", err)
	}
	if ipe.Direction != DirectionOutput || ipe.Port != "counter.bogus" {
		t.Errorf("unexpected error detail: %+v", ipe)
	}

	err = r.Connect(a, "counter.value", b, "counter.bogus")
	if !errors.As(err, &ipe) {
		t.Fatalf("expected InvalidPortError, got %v", err)
	}
	if ipe.Direction != DirectionInput {
		t.Errorf("direction = %q, want input", ipe.Direction)
	}

	// the failed connections must not have been created
	r.Route(a, "counter.value", float64(1))
	if got := sinkB.received(); len(got) != 0 {
		t.Errorf("expected no deliveries over rejected edges, got %v", got)
	}
}

func TestRouter_ConnectIsIdempotent(t *testing.T) {
	r := NewRouter(WithLogger(testLogger()))
	a, _ := addCounter(t, r, "canvas-main")
	b, sinkB := addCounter(t, r, "canvas-main")

	for i := 0; i < 3; i++ {
		if err := r.Connect(a, "counter.value", b, "counter.set"); err != nil {
			t.Fatalf("Connect #%d failed: %v", i, err)
		}
	}
	r.Route(a, "counter.value", float64(5))

	if got := sinkB.received(); len(got) != 1 {
		t.Errorf("duplicate edge produced %d deliveries, want 1", len(got))
	}
}

func TestRouter_FanOutReachesAllTargets(t *testing.T) {
	r := NewRouter(WithLogger(testLogger()))
	a, _ := addCounter(t, r, "canvas-main")
	b, sinkB := addCounter(t, r, "canvas-main")
	c, sinkC := addCounter(t, r, "canvas-other") // cross-canvas edge

	if err := r.Connect(a, "counter.value", b, "counter.set"); err != nil {
		t.Fatalf("Connect failed: %v", err)
	}
	if err := r.Connect(a, "counter.value", c, "counter.set"); err != nil {
		t.Fatalf("Connect failed: %v", err)
	}

	r.Route(a, "counter.value", float64(42))

	if got := sinkB.received(); len(got) != 1 || got[0] != float64(42) {
		t.Errorf("target B: got %v", got)
	}
	if got := sinkC.received(); len(got) != 1 || got[0] != float64(42) {
		t.Errorf("target C: got %v", got)
	}
}

func TestRouter_FailingTargetDoesNotAffectOthers(t *testing.T) {
	r := NewRouter(WithLogger(testLogger()))
	a, _ := addCounter(t, r, "canvas-main")
	b, sinkB := addCounter(t, r, "canvas-main")
	c, sinkC := addCounter(t, r, "canvas-main")
	sinkB.fail = true

	if err := r.Connect(a, "counter.value", b, "counter.set"); err != nil {
		t.Fatalf("Connect failed: %v", err)
	}
	if err := r.Connect(a, "counter.value", c, "counter.set"); err != nil {
		t.Fatalf("Connect failed: %v", err)
	}

	r.Route(a, "counter.value", float64(1))

	if got := sinkC.received(); len(got) != 1 {
		t.Errorf("healthy target must still receive its delivery, got %v", got)
	}
}

func TestRouter_PerEdgeFIFO(t *testing.T) {
	r := NewRouter(WithLogger(testLogger()))
	a, _ := addCounter(t, r, "canvas-main")
	b, sinkB := addCounter(t, r, "canvas-main")

	if err := r.Connect(a, "counter.value", b, "counter.set"); err != nil {
		t.Fatalf("Connect failed: %v", err)
	}
	for i := 0; i < 20; i++ {
		r.Route(a, "counter.value", float64(i))
	}

	got := sinkB.received()
	if len(got) != 20 {
		t.Fatalf("expected 20 deliveries, got %d", len(got))
	}
	for i, v := range got {
		if v != float64(i) {
			t.Fatalf("delivery %d = %v, order broken", i, v)
		}
	}
}

func TestRouter_RemoveWidgetPrunesEdges(t *testing.T) {
	r := NewRouter(WithLogger(testLogger()))
	a, _ := addCounter(t, r, "canvas-main")
	b, sinkB := addCounter(t, r, "canvas-main")

	if err := r.Connect(a, "counter.value", b, "counter.set"); err != nil {
		t.Fatalf("Connect failed: %v", err)
	}

	r.RemoveWidget(b)
	r.Route(a, "counter.value", float64(1)) // silent no-op, not an error

	if got := sinkB.received(); len(got) != 0 {
		t.Errorf("removed widget received %v", got)
	}
	if conns := r.Connections(a, "counter.value"); len(conns) != 0 {
		t.Errorf("dangling edges after removal: %v", conns)
	}

	// removing the source prunes its outgoing edges too
	c, _ := addCounter(t, r, "canvas-main")
	if err := r.Connect(a, "counter.value", c, "counter.set"); err != nil {
		t.Fatalf("Connect failed: %v", err)
	}
	r.RemoveWidget(a)
	if conns := r.Connections(a, "counter.value"); len(conns) != 0 {
		t.Errorf("edges survived source removal: %v", conns)
	}
}

func TestRouter_RouteFromUnwiredPortIsNoop(t *testing.T) {
	r := NewRouter(WithLogger(testLogger()))
	a, _ := addCounter(t, r, "canvas-main")
	r.Route(a, "counter.value", float64(1)) // nothing connected: must not panic
}

func TestRouter_Disconnect(t *testing.T) {
	r := NewRouter(WithLogger(testLogger()))
	a, _ := addCounter(t, r, "canvas-main")
	b, sinkB := addCounter(t, r, "canvas-main")

	if err := r.Connect(a, "counter.value", b, "counter.set"); err != nil {
		t.Fatalf("Connect failed: %v", err)
	}
	r.Disconnect(a, "counter.value", b, "counter.set")
	r.Route(a, "counter.value", float64(1))

	if got := sinkB.received(); len(got) != 0 {
		t.Errorf("expected no delivery after disconnect, got %v", got)
	}

	// disconnecting an absent edge is a no-op
	r.Disconnect(a, "counter.value", b, "counter.set")
}

func TestRouter_UnionPortsAreConnectable(t *testing.T) {
	// A port declared only in io.inputs (not the inputs map) is still a
	// valid connection target after reconciliation.
	r := NewRouter(WithLogger(testLogger()))
	m := counterManifest()
	m.IO.Inputs = append(m.IO.Inputs, "counter.step")

	a, _ := addCounter(t, r, "canvas-main")
	b := uuid.New()
	sinkB := &recordingSink{}
	r.AddWidget(b, "canvas-main", m, sinkB)

	if err := r.Connect(a, "counter.value", b, "counter.step"); err != nil {
		t.Errorf("io-only port must be connectable, got %v", err)
	}
}
