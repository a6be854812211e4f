package manifest

import (
	"fmt"
	"strings"
)

// ValidationError represents a single validation failure with the path to the
// offending field and a human-readable message.
type ValidationError struct {
	Path    string // dot-separated path (e.g. "size.minWidth")
	Message string
}

func (e *ValidationError) Error() string {
	if e.Path != "" {
		return fmt.Sprintf("%s: %s", e.Path, e.Message)
	}
	return e.Message
}

// ValidationErrors collects multiple validation failures for one manifest.
type ValidationErrors []*ValidationError

func (ve ValidationErrors) Error() string {
	msgs := make([]string, len(ve))
	for i, e := range ve {
		msgs[i] = e.Error()
	}
	return fmt.Sprintf("manifest validation failed with %d error(s):\n  - %s",
		len(ve), strings.Join(msgs, "\n  - "))
}

// ValidationOption configures validation behaviour.
type ValidationOption func(*validationOpts)

type validationOpts struct {
	extraKinds     []Kind
	skipKindCheck  bool
	variablePrefix string
	requireSize    bool
}

// WithExtraKinds registers additional widget kinds as valid (e.g. for
// experimental widget families not yet in the core enum).
func WithExtraKinds(kinds ...Kind) ValidationOption {
	return func(o *validationOpts) {
		o.extraKinds = append(o.extraKinds, kinds...)
	}
}

// WithSkipKindCheck disables validation of the kind field entirely.
func WithSkipKindCheck() ValidationOption {
	return func(o *validationOpts) { o.skipKindCheck = true }
}

// WithVariablePrefix overrides the required prefix for skin slot variables.
// The default is the CSS custom-property prefix "--".
func WithVariablePrefix(prefix string) ValidationOption {
	return func(o *validationOpts) { o.variablePrefix = prefix }
}

// WithRequireSize makes width and height mandatory. By default a size-less
// manifest is valid; the host supplies a default geometry. Hosts that cannot
// do that opt in to the stricter check.
func WithRequireSize() ValidationOption {
	return func(o *validationOpts) { o.requireSize = true }
}

// Validate checks a manifest for structural problems, returning all detected
// failures. Unknown or extra fields are never an error; the schema is
// forward-compatible by design. Returns nil if the manifest is valid.
func Validate(m *WidgetManifest, opts ...ValidationOption) error {
	o := validationOpts{variablePrefix: "--"}
	for _, fn := range opts {
		fn(&o)
	}

	var errs ValidationErrors

	if m.ID == "" {
		errs = append(errs, &ValidationError{Path: "id", Message: "id is required"})
	}
	if strings.ContainsAny(m.ID, " \t\n") {
		errs = append(errs, &ValidationError{Path: "id", Message: "id must not contain whitespace"})
	}

	if !o.skipKindCheck && m.Kind != "" {
		known := false
		for _, k := range append(KnownKinds(), o.extraKinds...) {
			if m.Kind == k {
				known = true
				break
			}
		}
		if !known {
			errs = append(errs, &ValidationError{
				Path:    "kind",
				Message: fmt.Sprintf("unknown kind %q", m.Kind),
			})
		}
	}

	errs = append(errs, validateSize(&m.Size, &o)...)
	errs = append(errs, validatePorts("inputs", m.Inputs)...)
	errs = append(errs, validatePorts("outputs", m.Outputs)...)

	if m.Skin != nil {
		for i, slot := range m.Skin.Slots {
			prefix := fmt.Sprintf("skin.slots[%d]", i)
			if slot.Name == "" {
				errs = append(errs, &ValidationError{
					Path:    prefix + ".name",
					Message: "slot name is required",
				})
			}
			if !strings.HasPrefix(slot.Variable, o.variablePrefix) {
				errs = append(errs, &ValidationError{
					Path:    prefix + ".variable",
					Message: fmt.Sprintf("variable %q must start with %q", slot.Variable, o.variablePrefix),
				})
			}
		}
	}

	if len(errs) == 0 {
		return nil
	}
	return errs
}

func validateSize(s *Size, o *validationOpts) ValidationErrors {
	var errs ValidationErrors

	if o.requireSize {
		if s.Width <= 0 {
			errs = append(errs, &ValidationError{Path: "size.width", Message: "width must be positive"})
		}
		if s.Height <= 0 {
			errs = append(errs, &ValidationError{Path: "size.height", Message: "height must be positive"})
		}
	} else {
		if s.Width < 0 {
			errs = append(errs, &ValidationError{Path: "size.width", Message: "width must not be negative"})
		}
		if s.Height < 0 {
			errs = append(errs, &ValidationError{Path: "size.height", Message: "height must not be negative"})
		}
	}
	if s.MaxWidth > 0 && s.MinWidth > s.MaxWidth {
		errs = append(errs, &ValidationError{
			Path:    "size.minWidth",
			Message: fmt.Sprintf("minWidth %d exceeds maxWidth %d", s.MinWidth, s.MaxWidth),
		})
	}
	if s.MaxHeight > 0 && s.MinHeight > s.MaxHeight {
		errs = append(errs, &ValidationError{
			Path:    "size.minHeight",
			Message: fmt.Sprintf("minHeight %d exceeds maxHeight %d", s.MinHeight, s.MaxHeight),
		})
	}
	if s.AspectRatio < 0 {
		errs = append(errs, &ValidationError{Path: "size.aspectRatio", Message: "aspectRatio must not be negative"})
	}
	return errs
}

func validatePorts(section string, ports map[string]PortSpec) ValidationErrors {
	var errs ValidationErrors

	knownTypes := make(map[PortType]bool)
	for _, t := range KnownPortTypes() {
		knownTypes[t] = true
	}

	for name, spec := range ports {
		if name == "" {
			errs = append(errs, &ValidationError{
				Path:    section,
				Message: "port name must not be empty",
			})
			continue
		}
		// An absent type means "any"; only reject types outside the enum.
		if spec.Type != "" && !knownTypes[spec.Type] {
			errs = append(errs, &ValidationError{
				Path:    fmt.Sprintf("%s[%s].type", section, name),
				Message: fmt.Sprintf("unknown port type %q", spec.Type),
			})
		}
	}
	return errs
}
