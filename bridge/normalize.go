package bridge

// NormalizeFunc folds a duck-typed port payload into its canonical shape
// before the input handler sees it. Several legacy widgets accept both a
// bare value and an object wrapping it under a well-known key; normalizers
// replace the per-widget typeof checks with one documented rule per port.
type NormalizeFunc func(value any) any

// StringOrField returns a normalizer that accepts either a bare string or an
// object carrying the string under the given field. Anything else passes
// through unchanged.
//
//	b.Normalize("color.set", bridge.StringOrField("color"))
//	// "#ff5c8a" and {"color": "#ff5c8a"} both reach the handler as "#ff5c8a"
func StringOrField(field string) NormalizeFunc {
	return func(value any) any {
		switch v := value.(type) {
		case string:
			return v
		case map[string]any:
			if s, ok := v[field].(string); ok {
				return s
			}
		}
		return value
	}
}

// FieldOrSelf returns a normalizer that unwraps an object to the given field
// when present, of any type, and otherwise passes the value through.
func FieldOrSelf(field string) NormalizeFunc {
	return func(value any) any {
		if m, ok := value.(map[string]any); ok {
			if inner, ok := m[field]; ok {
				return inner
			}
		}
		return value
	}
}
