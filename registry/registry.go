// Package registry holds the catalog of first-party widget types. The
// catalog is built once from an explicit, ordered list of widget bundles and
// is immutable afterwards; all lookups are pure reads.
package registry

import (
	"fmt"
	"log/slog"

	"github.com/hkcm91/stickernest-runtime/manifest"
)

// Widget is one catalog entry: a manifest plus the widget body, either an
// inline HTML document or a named component reference.
type Widget struct {
	Manifest  *manifest.WidgetManifest
	HTML      string // complete <!DOCTYPE html> document, if inline
	Component string // component reference, if not inline
}

// Registry is the immutable widget catalog.
type Registry struct {
	logger   *slog.Logger
	widgets  map[string]Widget
	order    []string
	rejected map[string]error
}

// New builds a Registry from an ordered list of widget bundles. A bundle
// whose manifest fails validation, or whose id duplicates an earlier one, is
// excluded and recorded in Rejected; the remaining bundles load normally.
func New(logger *slog.Logger, widgets ...Widget) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	r := &Registry{
		logger:   logger,
		widgets:  make(map[string]Widget, len(widgets)),
		rejected: make(map[string]error),
	}

	for i, w := range widgets {
		if w.Manifest == nil {
			key := fmt.Sprintf("bundle[%d]", i)
			r.rejected[key] = fmt.Errorf("widget bundle has no manifest")
			logger.Error("widget excluded from registry", "widget", key, "error", r.rejected[key])
			continue
		}
		id := w.Manifest.ID
		if err := manifest.Validate(w.Manifest); err != nil {
			if id == "" {
				id = fmt.Sprintf("bundle[%d]", i)
			}
			r.rejected[id] = err
			logger.Error("widget excluded from registry", "widget", id, "error", err)
			continue
		}
		if _, dup := r.widgets[id]; dup {
			r.rejected[id] = fmt.Errorf("duplicate widget id %q", id)
			logger.Error("widget excluded from registry", "widget", id, "error", r.rejected[id])
			continue
		}
		r.widgets[id] = w
		r.order = append(r.order, id)
	}

	logger.Info("widget registry built", "widgets", len(r.order), "rejected", len(r.rejected))
	return r
}

// Get returns the catalog entry for the given widget type id.
func (r *Registry) Get(id string) (Widget, bool) {
	w, ok := r.widgets[id]
	return w, ok
}

// Has reports whether the widget type id is in the catalog.
func (r *Registry) Has(id string) bool {
	_, ok := r.widgets[id]
	return ok
}

// AllManifests lists every catalog manifest in registration order.
func (r *Registry) AllManifests() []*manifest.WidgetManifest {
	out := make([]*manifest.WidgetManifest, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, r.widgets[id].Manifest)
	}
	return out
}

// ManifestsByKind lists catalog manifests of one kind, in registration order.
func (r *Registry) ManifestsByKind(kind manifest.Kind) []*manifest.WidgetManifest {
	var out []*manifest.WidgetManifest
	for _, id := range r.order {
		if m := r.widgets[id].Manifest; m.Kind == kind {
			out = append(out, m)
		}
	}
	return out
}

// Rejected returns the bundles excluded at build time, keyed by widget id.
func (r *Registry) Rejected() map[string]error {
	out := make(map[string]error, len(r.rejected))
	for k, v := range r.rejected {
		out[k] = v
	}
	return out
}

// Len reports how many widget types are in the catalog.
func (r *Registry) Len() int { return len(r.order) }
