package host

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"github.com/hkcm91/stickernest-runtime/manifest"
	"github.com/hkcm91/stickernest-runtime/pipeline"
)

// Placement records one widget on a canvas.
type Placement struct {
	WidgetID uuid.UUID `json:"widgetId"`
	Type     string    `json:"type"`
}

// Edge records one pipeline connection.
type Edge struct {
	SourceWidgetID uuid.UUID `json:"sourceWidgetId"`
	OutputPort     string    `json:"outputPort"`
	TargetWidgetID uuid.UUID `json:"targetWidgetId"`
	InputPort      string    `json:"inputPort"`
}

// Snapshot is the serializable layout of one canvas: which widgets are
// placed and how they are wired. Widget state is not part of it; state lives
// in the store keyed by widget ID, so restoring a snapshot with the original
// IDs brings the state back too.
type Snapshot struct {
	CanvasID string      `json:"canvasId"`
	Widgets  []Placement `json:"widgets"`
	Edges    []Edge      `json:"edges"`
}

// Snapshot captures the canvas layout. Edges whose source is on this canvas
// are included even when the target lives on another canvas.
func (c *Canvas) Snapshot() Snapshot {
	snap := Snapshot{CanvasID: c.id}

	for _, inst := range c.Instances() {
		snap.Widgets = append(snap.Widgets, Placement{WidgetID: inst.ID, Type: inst.TypeID})

		ports := manifest.ResolvePorts(inst.Bridge.Manifest())
		for _, out := range ports.Outputs {
			for _, conn := range c.host.router.Connections(inst.ID, out) {
				snap.Edges = append(snap.Edges, Edge{
					SourceWidgetID: conn.SourceWidgetID,
					OutputPort:     conn.OutputPort,
					TargetWidgetID: conn.TargetWidgetID,
					InputPort:      conn.InputPort,
				})
			}
		}
	}
	return snap
}

// Restore places the snapshot's widgets under their original IDs, mounts
// them and rewires the recorded edges. Widgets whose type has left the
// catalog, and edges whose endpoints are missing, are logged and skipped so
// a partially restorable snapshot still brings back what it can.
func (c *Canvas) Restore(ctx context.Context, snap Snapshot) error {
	h := c.host

	for _, p := range snap.Widgets {
		if _, err := c.PlaceWithID(p.WidgetID, p.Type); err != nil {
			h.logger.Warn("skipping widget during restore",
				"canvas", c.id, "widget", p.WidgetID, "type", p.Type, "error", err)
			continue
		}
		if err := c.Mount(ctx, p.WidgetID); err != nil {
			h.logger.Error("failed to mount restored widget",
				"canvas", c.id, "widget", p.WidgetID, "error", err)
		}
	}

	for _, e := range snap.Edges {
		err := h.router.Connect(e.SourceWidgetID, e.OutputPort, e.TargetWidgetID, e.InputPort)
		switch {
		case err == nil:
		case errors.Is(err, pipeline.ErrUnknownWidget):
			h.logger.Warn("edge endpoint missing during restore",
				"canvas", c.id, "source", e.SourceWidgetID, "target", e.TargetWidgetID)
		default:
			h.logger.Warn("skipping edge during restore",
				"canvas", c.id, "source", e.SourceWidgetID, "target", e.TargetWidgetID, "error", err)
		}
	}
	return nil
}
