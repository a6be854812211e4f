package manifest

import (
	"encoding/json"
	"fmt"

	"gopkg.in/yaml.v3"
)

// ParseJSON decodes a manifest from its canonical JSON form. Unknown fields
// are ignored for forward compatibility.
func ParseJSON(data []byte) (*WidgetManifest, error) {
	var m WidgetManifest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("parse manifest json: %w", err)
	}
	return &m, nil
}

// ParseYAML decodes a manifest from YAML. Host-authored widget catalogs use
// YAML; widgets themselves ship JSON.
func ParseYAML(data []byte) (*WidgetManifest, error) {
	var m WidgetManifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("parse manifest yaml: %w", err)
	}
	return &m, nil
}
