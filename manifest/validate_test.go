package manifest

import (
	"errors"
	"strings"
	"testing"
)

func validManifest() *WidgetManifest {
	return &WidgetManifest{
		ID:      "stickernest.counter",
		Version: "1.2.0",
		Kind:    KindInteractive,
		Inputs: map[string]PortSpec{
			"counter.set":   {Type: TypeNumber, Description: "set the count"},
			"counter.reset": {Type: TypeTrigger},
		},
		Outputs: map[string]PortSpec{
			"counter.value": {Type: TypeNumber},
		},
		IO: IO{
			Inputs:  []string{"counter.set", "counter.reset"},
			Outputs: []string{"counter.value"},
		},
		Size: Size{Width: 200, Height: 120, MinWidth: 120, MinHeight: 80},
	}
}

func TestValidate_ValidManifest(t *testing.T) {
	if err := Validate(validManifest()); err != nil {
		t.Fatalf("expected valid manifest, got %v", err)
	}
}

func TestValidate_MissingID(t *testing.T) {
	m := validManifest()
	m.ID = ""
	err := Validate(m)
	if err == nil {
		t.Fatal("expected error for missing id")
	}
	var ve ValidationErrors
	if !errors.As(err, &ve) {
		t.Fatalf("expected ValidationErrors, got %T", err)
	}
	if !strings.Contains(ve.Error(), "id is required") {
		t.Errorf("unexpected message: %v", ve)
	}
}

func TestValidate_UnknownKind(t *testing.T) {
	m := validManifest()
	m.Kind = "hologram"
	if err := Validate(m); err == nil {
		t.Fatal("expected error for unknown kind")
	}
	if err := Validate(m, WithExtraKinds("hologram")); err != nil {
		t.Fatalf("expected extra kind to be accepted, got %v", err)
	}
	if err := Validate(m, WithSkipKindCheck()); err != nil {
		t.Fatalf("expected kind check to be skipped, got %v", err)
	}
}

func TestValidate_SizelessManifestAccepted(t *testing.T) {
	m := validManifest()
	m.Size = Size{}
	if err := Validate(m); err != nil {
		t.Fatalf("expected size-less manifest to be valid, got %v", err)
	}
	if err := Validate(m, WithRequireSize()); err == nil {
		t.Fatal("expected error with WithRequireSize")
	}
}

func TestValidate_NegativeSizeRejected(t *testing.T) {
	m := validManifest()
	m.Size.Width = -1
	err := Validate(m)
	if err == nil {
		t.Fatal("expected error for negative width")
	}
	if !strings.Contains(err.Error(), "size.width") {
		t.Errorf("expected size.width path, got %v", err)
	}
}

func TestValidate_SizeMinExceedsMax(t *testing.T) {
	m := validManifest()
	m.Size.MinWidth = 500
	m.Size.MaxWidth = 300
	err := Validate(m)
	if err == nil {
		t.Fatal("expected error for minWidth > maxWidth")
	}
	if !strings.Contains(err.Error(), "size.minWidth") {
		t.Errorf("expected size.minWidth path, got %v", err)
	}

	m = validManifest()
	m.Size.MinHeight = 400
	m.Size.MaxHeight = 100
	if err := Validate(m); err == nil {
		t.Fatal("expected error for minHeight > maxHeight")
	}
}

func TestValidate_NoMaxMeansUnbounded(t *testing.T) {
	m := validManifest()
	m.Size.MinWidth = 500 // no MaxWidth set
	if err := Validate(m); err != nil {
		t.Fatalf("expected unset max to be unbounded, got %v", err)
	}
}

func TestValidate_SkinSlotVariablePrefix(t *testing.T) {
	m := validManifest()
	m.Skin = &Skin{
		Themeable: true,
		Slots: []SkinSlot{
			{Name: "accent", Type: "color", Variable: "--sn-accent"},
			{Name: "bg", Type: "color", Variable: "sn-bg"},
		},
	}
	err := Validate(m)
	if err == nil {
		t.Fatal("expected error for unprefixed skin variable")
	}
	if !strings.Contains(err.Error(), "skin.slots[1].variable") {
		t.Errorf("expected slot path in error, got %v", err)
	}
}

func TestValidate_UnknownPortType(t *testing.T) {
	m := validManifest()
	m.Inputs["weird"] = PortSpec{Type: "matrix"}
	if err := Validate(m); err == nil {
		t.Fatal("expected error for unknown port type")
	}
}

func TestValidate_EmptyPortTypeMeansAny(t *testing.T) {
	m := validManifest()
	m.Inputs["loose"] = PortSpec{}
	if err := Validate(m); err != nil {
		t.Fatalf("expected empty port type to be accepted, got %v", err)
	}
}

func TestValidate_CollectsAllErrors(t *testing.T) {
	m := &WidgetManifest{Kind: "bogus", Size: Size{Width: -1, Height: -1}}
	err := Validate(m)
	var ve ValidationErrors
	if !errors.As(err, &ve) {
		t.Fatalf("expected ValidationErrors, got %T", err)
	}
	if len(ve) < 3 {
		t.Errorf("expected at least 3 errors, got %d: %v", len(ve), ve)
	}
}
