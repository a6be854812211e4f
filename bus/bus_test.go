package bus

import (
	"io"
	"log/slog"
	"sync"
	"testing"

	"github.com/google/uuid"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// recorder collects envelopes delivered to one fake widget.
type recorder struct {
	mu   sync.Mutex
	envs []Envelope
}

func (r *recorder) deliver(env Envelope) {
	r.mu.Lock()
	r.envs = append(r.envs, env)
	r.mu.Unlock()
}

func (r *recorder) all() []Envelope {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Envelope, len(r.envs))
	copy(out, r.envs)
	return out
}

func TestBus_EmitReachesAllCanvases(t *testing.T) {
	b := New(WithLogger(testLogger()))

	sameCanvas := &recorder{}
	otherCanvas := &recorder{}
	emitter := uuid.New()

	b.Register(uuid.New(), "canvas-x", sameCanvas.deliver)
	b.Register(uuid.New(), "canvas-y", otherCanvas.deliver)

	b.Emit(emitter, "canvas-x", "entity:selected", map[string]any{"id": "sticker-3"})

	for name, rec := range map[string]*recorder{"same": sameCanvas, "other": otherCanvas} {
		envs := rec.all()
		if len(envs) != 1 {
			t.Fatalf("%s-canvas listener: expected 1 envelope, got %d", name, len(envs))
		}
		if envs[0].FromCanvas != "canvas-x" {
			t.Errorf("%s-canvas listener: fromCanvas = %q, want canvas-x", name, envs[0].FromCanvas)
		}
		if envs[0].Event != "entity:selected" {
			t.Errorf("%s-canvas listener: event = %q", name, envs[0].Event)
		}
	}
}

func TestBus_FromCanvasClassification(t *testing.T) {
	// A receiver on the origin canvas sees FromCanvas == its own canvas;
	// a receiver elsewhere sees the origin canvas and can classify the
	// broadcast as cross-canvas.
	b := New(WithLogger(testLogger()))

	var sameIsLocal, crossIsLocal bool
	b.Register(uuid.New(), "canvas-x", func(env Envelope) {
		sameIsLocal = env.FromCanvas == "canvas-x"
	})
	b.Register(uuid.New(), "canvas-y", func(env Envelope) {
		crossIsLocal = env.FromCanvas == "canvas-y"
	})

	b.Emit(uuid.New(), "canvas-x", "color:sync", "#ff5c8a")

	if !sameIsLocal {
		t.Error("same-canvas receiver must classify the broadcast as local")
	}
	if crossIsLocal {
		t.Error("cross-canvas receiver must classify the broadcast as remote")
	}
}

func TestBus_UnregisterStopsDelivery(t *testing.T) {
	b := New(WithLogger(testLogger()))
	rec := &recorder{}
	id := uuid.New()

	b.Register(id, "canvas-x", rec.deliver)
	b.Emit(uuid.New(), "canvas-x", "e", nil)
	b.Unregister(id)
	b.Emit(uuid.New(), "canvas-x", "e", nil)

	if got := len(rec.all()); got != 1 {
		t.Errorf("expected 1 delivery, got %d", got)
	}
}

func TestBus_LocalTransportBridgesHosts(t *testing.T) {
	transport := NewLocalTransport()

	hostA := New(WithLogger(testLogger()), WithOrigin("host-a"))
	hostB := New(WithLogger(testLogger()), WithOrigin("host-b"))
	if err := hostA.AttachTransport(transport); err != nil {
		t.Fatalf("attach A: %v", err)
	}
	if err := hostB.AttachTransport(transport); err != nil {
		t.Fatalf("attach B: %v", err)
	}

	recA := &recorder{}
	recB := &recorder{}
	hostA.Register(uuid.New(), "canvas-a", recA.deliver)
	hostB.Register(uuid.New(), "canvas-b", recB.deliver)

	hostA.Emit(uuid.New(), "canvas-a", "entity:selected", "x")

	// Local listener: exactly one delivery, not a duplicate via the echo.
	if got := len(recA.all()); got != 1 {
		t.Errorf("host A listener: expected 1 delivery (echo dropped), got %d", got)
	}
	envsB := recB.all()
	if len(envsB) != 1 {
		t.Fatalf("host B listener: expected 1 delivery, got %d", len(envsB))
	}
	if envsB[0].FromCanvas != "canvas-a" || envsB[0].Origin != "host-a" {
		t.Errorf("unexpected envelope across transport: %+v", envsB[0])
	}
}

func TestBus_MalformedInboundIsDropped(t *testing.T) {
	transport := NewLocalTransport()
	b := New(WithLogger(testLogger()))
	if err := b.AttachTransport(transport); err != nil {
		t.Fatalf("attach: %v", err)
	}
	rec := &recorder{}
	b.Register(uuid.New(), "canvas-x", rec.deliver)

	if err := transport.Publish([]byte("{not json")); err != nil {
		t.Fatalf("publish: %v", err)
	}
	if got := len(rec.all()); got != 0 {
		t.Errorf("expected malformed envelope to be dropped, got %d deliveries", got)
	}
}

func TestBus_LegacySinkIsBestEffort(t *testing.T) {
	var legacy []Envelope
	b := New(WithLogger(testLogger()), WithLegacySink(func(env Envelope) {
		legacy = append(legacy, env)
		panic("legacy channel broke")
	}))
	rec := &recorder{}
	b.Register(uuid.New(), "canvas-x", rec.deliver)

	b.Emit(uuid.New(), "canvas-x", "e", nil) // must not panic out

	if len(legacy) != 1 {
		t.Errorf("expected legacy sink to receive the envelope, got %d", len(legacy))
	}
	if got := len(rec.all()); got != 1 {
		t.Errorf("primary delivery must be unaffected by legacy failure, got %d", got)
	}
}

func TestBus_UndeclaredEventStillDelivered(t *testing.T) {
	// The declared emits/listens sets are documentation; the bus never
	// rejects an event name.
	b := New(WithLogger(testLogger()))
	rec := &recorder{}
	b.Register(uuid.New(), "canvas-x", rec.deliver)

	b.Emit(uuid.New(), "canvas-x", "totally:undeclared", nil)
	if got := len(rec.all()); got != 1 {
		t.Errorf("expected delivery of undeclared event, got %d", got)
	}
}
