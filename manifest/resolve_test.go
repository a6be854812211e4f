package manifest

import (
	"reflect"
	"testing"
)

func TestResolvePorts_ConsistentManifest(t *testing.T) {
	p := ResolvePorts(validManifest())

	if want := []string{"counter.set", "counter.reset"}; !reflect.DeepEqual(p.Inputs, want) {
		t.Errorf("inputs = %v, want %v", p.Inputs, want)
	}
	if want := []string{"counter.value"}; !reflect.DeepEqual(p.Outputs, want) {
		t.Errorf("outputs = %v, want %v", p.Outputs, want)
	}
	if len(p.Warnings) != 0 {
		t.Errorf("expected no warnings, got %v", p.Warnings)
	}
}

func TestResolvePorts_IOListOrderWins(t *testing.T) {
	m := validManifest()
	m.IO.Inputs = []string{"counter.reset", "counter.set"}
	p := ResolvePorts(m)
	if want := []string{"counter.reset", "counter.set"}; !reflect.DeepEqual(p.Inputs, want) {
		t.Errorf("inputs = %v, want %v", p.Inputs, want)
	}
}

func TestResolvePorts_UnionRetainsBothSides(t *testing.T) {
	m := validManifest()
	// declared in io only
	m.IO.Inputs = append(m.IO.Inputs, "counter.step")
	// present in map only
	m.Outputs["counter.overflow"] = PortSpec{Type: TypeTrigger}

	p := ResolvePorts(m)

	if !p.HasInput("counter.step") {
		t.Error("expected io-only input to be retained")
	}
	if !p.HasOutput("counter.overflow") {
		t.Error("expected map-only output to be retained")
	}
	if len(p.Warnings) != 2 {
		t.Fatalf("expected 2 warnings, got %d: %v", len(p.Warnings), p.Warnings)
	}
}

func TestResolvePorts_NoPhantomPorts(t *testing.T) {
	// Every resolved port must come from at least one of the two views.
	m := validManifest()
	m.IO.Inputs = append(m.IO.Inputs, "extra.in")
	m.Inputs["map.only"] = PortSpec{Type: TypeAny}
	p := ResolvePorts(m)

	declared := make(map[string]bool)
	for name := range m.Inputs {
		declared[name] = true
	}
	for _, name := range m.IO.Inputs {
		declared[name] = true
	}
	for _, name := range p.Inputs {
		if !declared[name] {
			t.Errorf("resolved port %q appears in neither view", name)
		}
	}
}

func TestResolvePorts_MapOnlyManifestHasNoWarnings(t *testing.T) {
	// Legacy widgets declare only the port maps, no io lists.
	m := validManifest()
	m.IO = IO{}
	p := ResolvePorts(m)

	if len(p.Warnings) != 0 {
		t.Errorf("expected no warnings for map-only manifest, got %v", p.Warnings)
	}
	// map keys come out sorted
	if want := []string{"counter.reset", "counter.set"}; !reflect.DeepEqual(p.Inputs, want) {
		t.Errorf("inputs = %v, want %v", p.Inputs, want)
	}
}

func TestResolvePorts_DuplicateIOEntriesCollapse(t *testing.T) {
	m := validManifest()
	m.IO.Inputs = []string{"counter.set", "counter.set", "counter.reset"}
	p := ResolvePorts(m)
	if want := []string{"counter.set", "counter.reset"}; !reflect.DeepEqual(p.Inputs, want) {
		t.Errorf("inputs = %v, want %v", p.Inputs, want)
	}
}
