package catalog

// Metadata is the typed view of an item's JSON metadata bag.
// Keys holding a value of the wrong type are treated as absent.
type Metadata struct {
	LegacyValue    string
	HasLegacyValue bool

	// Path is the dotted context path of a rule field
	Path string

	// IsActive and IsFinal override the default lifecycle classification of a status
	IsActive *bool
	IsFinal  *bool

	// AllowedTransitions lists target slugs for metadata-driven status machines
	AllowedTransitions    []string
	HasAllowedTransitions bool

	// RequiresValue is nil when absent; see RequiresValueOr
	RequiresValue  *bool
	RequiresField  bool
	RequiresConfig bool

	Color       string
	Description string
}

func parseMetadata(raw map[string]any) Metadata {
	var m Metadata
	if raw == nil {
		return m
	}

	if v, ok := raw["legacyValue"].(string); ok {
		m.LegacyValue = v
		m.HasLegacyValue = true
	}
	if v, ok := raw["path"].(string); ok {
		m.Path = v
	}
	m.IsActive = boolPtr(raw["isActive"])
	m.IsFinal = boolPtr(raw["isFinal"])

	if transitions, ok := stringSlice(raw["allowedTransitions"]); ok {
		m.AllowedTransitions = transitions
		m.HasAllowedTransitions = true
	}

	m.RequiresValue = boolPtr(raw["requiresValue"])
	if v, ok := raw["requiresField"].(bool); ok {
		m.RequiresField = v
	}
	if v, ok := raw["requiresConfig"].(bool); ok {
		m.RequiresConfig = v
	}

	if v, ok := raw["color"].(string); ok {
		m.Color = v
	}
	if v, ok := raw["description"].(string); ok {
		m.Description = v
	}

	return m
}

// RequiresValueOr returns the requiresValue flag, or fallback when the key is absent.
// Operators fall back to true, action types to false.
func (m Metadata) RequiresValueOr(fallback bool) bool {
	if m.RequiresValue == nil {
		return fallback
	}
	return *m.RequiresValue
}

func boolPtr(v any) *bool {
	b, ok := v.(bool)
	if !ok {
		return nil
	}
	return &b
}

// stringSlice accepts both []string (Go callers) and []any (decoded JSON/YAML).
// Any non-string element invalidates the whole list.
func stringSlice(v any) ([]string, bool) {
	switch list := v.(type) {
	case []string:
		out := make([]string, len(list))
		copy(out, list)
		return out, true
	case []any:
		out := make([]string, 0, len(list))
		for _, elem := range list {
			s, ok := elem.(string)
			if !ok {
				return nil, false
			}
			out = append(out, s)
		}
		return out, true
	default:
		return nil, false
	}
}
