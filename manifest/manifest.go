// Package manifest defines the static descriptor for a widget type: its
// identity, typed input/output ports, capability flags, sizing constraints
// and skin slots. Manifests are authored once per widget type and are
// immutable at runtime.
package manifest

// Kind classifies a widget for the host's placement and rendering layer.
type Kind string

// Known widget kinds.
const (
	KindDisplay     Kind = "display"
	KindInteractive Kind = "interactive"
	KindContainer   Kind = "container"
	Kind2D          Kind = "2d"
	Kind3D          Kind = "3d"
	KindCharacter   Kind = "character"
	KindHybrid      Kind = "hybrid"
)

// KnownKinds returns all widget kinds accepted by validation.
func KnownKinds() []Kind {
	return []Kind{KindDisplay, KindInteractive, KindContainer, Kind2D, Kind3D, KindCharacter, KindHybrid}
}

// PortType is the declared value type carried by a port.
type PortType string

// Known port value types.
const (
	TypeString  PortType = "string"
	TypeNumber  PortType = "number"
	TypeBoolean PortType = "boolean"
	TypeObject  PortType = "object"
	TypeArray   PortType = "array"
	TypeTrigger PortType = "trigger"
	TypeEvent   PortType = "event"
	TypeAny     PortType = "any"
)

// KnownPortTypes returns all port value types accepted by validation.
func KnownPortTypes() []PortType {
	return []PortType{TypeString, TypeNumber, TypeBoolean, TypeObject, TypeArray, TypeTrigger, TypeEvent, TypeAny}
}

// PortSpec describes a single named input or output port.
type PortSpec struct {
	Type        PortType `json:"type" yaml:"type"`
	Description string   `json:"description,omitempty" yaml:"description,omitempty"`
	Default     any      `json:"default,omitempty" yaml:"default,omitempty"`
}

// IO lists the canonical, ordered port names used for programmatic and
// AI-assisted pipeline wiring. It is expected, but not required, to mirror
// the keys of the Inputs/Outputs maps; see ResolvePorts.
type IO struct {
	Inputs  []string `json:"inputs,omitempty" yaml:"inputs,omitempty"`
	Outputs []string `json:"outputs,omitempty" yaml:"outputs,omitempty"`
}

// Events declares which broadcast event names a widget emits and listens
// for. The sets are documentation for tooling; the bus does not enforce them.
type Events struct {
	Emits   []string `json:"emits,omitempty" yaml:"emits,omitempty"`
	Listens []string `json:"listens,omitempty" yaml:"listens,omitempty"`
}

// Capabilities holds host-side interaction flags (draggable, resizable,
// rotatable, supports3d, isDesignTool, ...). Kept as an open map so new
// flags never require a schema change.
type Capabilities map[string]bool

// Size constrains host-side layout of a placed widget.
type Size struct {
	Width           int     `json:"width" yaml:"width"`
	Height          int     `json:"height" yaml:"height"`
	MinWidth        int     `json:"minWidth,omitempty" yaml:"minWidth,omitempty"`
	MinHeight       int     `json:"minHeight,omitempty" yaml:"minHeight,omitempty"`
	MaxWidth        int     `json:"maxWidth,omitempty" yaml:"maxWidth,omitempty"`
	MaxHeight       int     `json:"maxHeight,omitempty" yaml:"maxHeight,omitempty"`
	AspectRatio     float64 `json:"aspectRatio,omitempty" yaml:"aspectRatio,omitempty"`
	LockAspectRatio bool    `json:"lockAspectRatio,omitempty" yaml:"lockAspectRatio,omitempty"`
	ScaleMode       string  `json:"scaleMode,omitempty" yaml:"scaleMode,omitempty"`
}

// SkinSlot declares a single themeable CSS-variable override point.
type SkinSlot struct {
	Name         string `json:"name" yaml:"name"`
	Type         string `json:"type" yaml:"type"`
	DefaultValue any    `json:"defaultValue,omitempty" yaml:"defaultValue,omitempty"`
	Variable     string `json:"variable" yaml:"variable"`
	Description  string `json:"description,omitempty" yaml:"description,omitempty"`
}

// Skin declares a widget's theming surface.
type Skin struct {
	Themeable     bool       `json:"themeable" yaml:"themeable"`
	DefaultSkin   string     `json:"defaultSkin,omitempty" yaml:"defaultSkin,omitempty"`
	Slots         []SkinSlot `json:"slots,omitempty" yaml:"slots,omitempty"`
	UsesVariables []string   `json:"usesVariables,omitempty" yaml:"usesVariables,omitempty"`
}

// WidgetManifest is the full static descriptor of a widget type.
type WidgetManifest struct {
	ID           string              `json:"id" yaml:"id"`
	Version      string              `json:"version" yaml:"version"`
	Kind         Kind                `json:"kind" yaml:"kind"`
	Inputs       map[string]PortSpec `json:"inputs,omitempty" yaml:"inputs,omitempty"`
	Outputs      map[string]PortSpec `json:"outputs,omitempty" yaml:"outputs,omitempty"`
	IO           IO                  `json:"io,omitempty" yaml:"io,omitempty"`
	Events       Events              `json:"events,omitempty" yaml:"events,omitempty"`
	Capabilities Capabilities        `json:"capabilities,omitempty" yaml:"capabilities,omitempty"`
	Size         Size                `json:"size" yaml:"size"`
	Skin         *Skin               `json:"skin,omitempty" yaml:"skin,omitempty"`
}

// ListensFor reports whether the manifest declares the given broadcast event
// name in its listens set.
func (m *WidgetManifest) ListensFor(event string) bool {
	for _, e := range m.Events.Listens {
		if e == event {
			return true
		}
	}
	return false
}

// HasCapability reports whether the named capability flag is set.
func (m *WidgetManifest) HasCapability(name string) bool {
	return m.Capabilities[name]
}
