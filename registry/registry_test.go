package registry

import (
	"io"
	"log/slog"
	"testing"

	"github.com/hkcm91/stickernest-runtime/manifest"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func bundle(id string, kind manifest.Kind) Widget {
	return Widget{
		Manifest: &manifest.WidgetManifest{
			ID:      id,
			Version: "1.0.0",
			Kind:    kind,
			Size:    manifest.Size{Width: 100, Height: 100},
		},
		HTML: "<!DOCTYPE html><html><body>" + id + "</body></html>",
	}
}

func TestRegistry_LookupAndListing(t *testing.T) {
	r := New(testLogger(),
		bundle("stickernest.counter", manifest.KindInteractive),
		bundle("stickernest.timer", manifest.KindDisplay),
		bundle("stickernest.scene", manifest.Kind3D),
	)

	if r.Len() != 3 {
		t.Fatalf("Len = %d, want 3", r.Len())
	}
	if !r.Has("stickernest.timer") {
		t.Error("expected timer to be registered")
	}
	if r.Has("stickernest.unknown") {
		t.Error("unexpected widget in catalog")
	}

	w, ok := r.Get("stickernest.counter")
	if !ok || w.Manifest.Kind != manifest.KindInteractive {
		t.Errorf("Get returned %+v ok=%v", w, ok)
	}

	all := r.AllManifests()
	if len(all) != 3 || all[0].ID != "stickernest.counter" || all[2].ID != "stickernest.scene" {
		t.Errorf("AllManifests order wrong: %v", ids(all))
	}

	displays := r.ManifestsByKind(manifest.KindDisplay)
	if len(displays) != 1 || displays[0].ID != "stickernest.timer" {
		t.Errorf("ManifestsByKind = %v", ids(displays))
	}
}

func ids(ms []*manifest.WidgetManifest) []string {
	out := make([]string, len(ms))
	for i, m := range ms {
		out[i] = m.ID
	}
	return out
}

func TestRegistry_SizelessManifestLoads(t *testing.T) {
	w := bundle("stickernest.backdrop", manifest.KindContainer)
	w.Manifest.Size = manifest.Size{} // host-sized widget, no geometry declared

	r := New(testLogger(), w)

	if !r.Has("stickernest.backdrop") {
		t.Fatalf("size-less widget rejected: %v", r.Rejected())
	}
}

func TestRegistry_InvalidManifestExcludedOthersLoad(t *testing.T) {
	bad := bundle("stickernest.broken", manifest.KindDisplay)
	bad.Manifest.Size.Width = -1

	r := New(testLogger(),
		bundle("stickernest.counter", manifest.KindInteractive),
		bad,
		bundle("stickernest.timer", manifest.KindDisplay),
	)

	if r.Len() != 2 {
		t.Errorf("Len = %d, want 2", r.Len())
	}
	if r.Has("stickernest.broken") {
		t.Error("invalid widget must be excluded")
	}
	if _, rejected := r.Rejected()["stickernest.broken"]; !rejected {
		t.Errorf("expected rejection record, got %v", r.Rejected())
	}
}

func TestRegistry_DuplicateIDKeepsFirst(t *testing.T) {
	first := bundle("stickernest.counter", manifest.KindInteractive)
	second := bundle("stickernest.counter", manifest.KindDisplay)

	r := New(testLogger(), first, second)

	if r.Len() != 1 {
		t.Fatalf("Len = %d, want 1", r.Len())
	}
	w, _ := r.Get("stickernest.counter")
	if w.Manifest.Kind != manifest.KindInteractive {
		t.Error("expected the first registration to win")
	}
	if _, rejected := r.Rejected()["stickernest.counter"]; !rejected {
		t.Error("expected duplicate to be recorded as rejected")
	}
}

func TestRegistry_NilManifestRejected(t *testing.T) {
	r := New(testLogger(), Widget{HTML: "<html></html>"})
	if r.Len() != 0 {
		t.Errorf("Len = %d, want 0", r.Len())
	}
	if len(r.Rejected()) != 1 {
		t.Errorf("expected 1 rejection, got %v", r.Rejected())
	}
}
