package manifest

import (
	"fmt"
	"sort"
)

// PortWarning records a declared-vs-actual mismatch found while resolving a
// manifest's ports. Mismatches are never errors: the widget catalog contains
// real widgets whose io lists and port maps drift apart, and both halves
// remain usable.
type PortWarning struct {
	Section string // "inputs" or "outputs"
	Port    string
	Message string
}

func (w PortWarning) String() string {
	return fmt.Sprintf("%s[%s]: %s", w.Section, w.Port, w.Message)
}

// Ports is the authoritative, ordered view of a manifest's ports produced by
// ResolvePorts. Pipeline connections are validated against it.
type Ports struct {
	Inputs   []string
	Outputs  []string
	Warnings []PortWarning
}

// HasInput reports whether the named input port exists.
func (p *Ports) HasInput(name string) bool { return contains(p.Inputs, name) }

// HasOutput reports whether the named output port exists.
func (p *Ports) HasOutput(name string) bool { return contains(p.Outputs, name) }

func contains(list []string, name string) bool {
	for _, n := range list {
		if n == name {
			return true
		}
	}
	return false
}

// ResolvePorts reconciles the Inputs/Outputs maps with the ordered io lists
// into one authoritative port list per direction. The union of both views is
// retained: a name present in only one of them stays usable and is recorded
// as a warning. Order is the io list order first, then any remaining map
// keys in lexical order.
func ResolvePorts(m *WidgetManifest) *Ports {
	p := &Ports{}
	p.Inputs, p.Warnings = resolveSection("inputs", m.Inputs, m.IO.Inputs, p.Warnings)
	p.Outputs, p.Warnings = resolveSection("outputs", m.Outputs, m.IO.Outputs, p.Warnings)
	return p
}

func resolveSection(section string, specs map[string]PortSpec, declared []string, warnings []PortWarning) ([]string, []PortWarning) {
	seen := make(map[string]bool)
	var ports []string

	for _, name := range declared {
		if seen[name] {
			continue
		}
		seen[name] = true
		ports = append(ports, name)
		if _, ok := specs[name]; !ok {
			warnings = append(warnings, PortWarning{
				Section: section,
				Port:    name,
				Message: fmt.Sprintf("declared in io.%s but missing from the %s map", section, section),
			})
		}
	}

	var rest []string
	for name := range specs {
		if !seen[name] {
			rest = append(rest, name)
		}
	}
	sort.Strings(rest)
	for _, name := range rest {
		// A map with no io list at all is the common legacy shape; the map
		// alone is authoritative then and no warning applies.
		if len(declared) > 0 {
			warnings = append(warnings, PortWarning{
				Section: section,
				Port:    name,
				Message: fmt.Sprintf("present in the %s map but missing from io.%s", section, section),
			})
		}
	}
	ports = append(ports, rest...)

	return ports, warnings
}
