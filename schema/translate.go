package schema

// Dialect captures the wire-format quirks of one provider's tool schema
// acceptance rules. The translation algorithm is shared; only these flags
// differ between providers.
type Dialect struct {
	Name string

	// PatchEmptyObjects inserts a placeholder string property into object
	// nodes that declare no fields, for providers that reject function
	// parameter schemas with empty properties.
	PatchEmptyObjects bool

	// RequireArrayItems forces an items schema onto every array node,
	// defaulting to {type: string} when the element type is unknown.
	RequireArrayItems bool

	// EmitDefaults includes default values as a "default" key on nodes
	// produced from a default wrapper.
	EmitDefaults bool
}

// Predefined dialects for the supported providers.
var (
	DialectAnthropic = Dialect{Name: "anthropic", PatchEmptyObjects: true, RequireArrayItems: true, EmitDefaults: true}
	DialectOpenAI    = Dialect{Name: "openai", PatchEmptyObjects: true, RequireArrayItems: true, EmitDefaults: true}
	DialectGemini    = Dialect{Name: "gemini", PatchEmptyObjects: true, RequireArrayItems: true}
	DialectOllama    = Dialect{Name: "ollama", PatchEmptyObjects: true, RequireArrayItems: true, EmitDefaults: true}
)

// placeholderField is injected into empty object nodes when the dialect
// requires at least one property.
const placeholderField = "_"

// Translate renders a typed schema tree into a JSON-Schema-like map with
// the keys {type, properties, required, items, enum, description}.
//
// The translation is deliberately lenient: nodes that cannot be classified
// fall back to {type: string} rather than failing, so a translator gap
// never blocks tool registration. A nil root translates to an empty object
// (patched per dialect).
func Translate(t *Type, d Dialect) map[string]any {
	inner, _, def, desc := resolve(t)
	node := translateNode(inner, d)
	if desc != "" {
		node["description"] = desc
	}
	if def != nil && d.EmitDefaults {
		node["default"] = def
	}
	return node
}

func translateNode(t *Type, d Dialect) map[string]any {
	if t == nil {
		return translateObject(&Type{Kind: KindObject}, d)
	}
	switch t.Kind {
	case KindString:
		return map[string]any{"type": "string"}
	case KindNumber:
		return map[string]any{"type": "number"}
	case KindInteger:
		return map[string]any{"type": "integer"}
	case KindBoolean:
		return map[string]any{"type": "boolean"}
	case KindEnum:
		values := make([]any, len(t.Values))
		for i, v := range t.Values {
			values[i] = v
		}
		return map[string]any{"type": "string", "enum": values}
	case KindArray:
		return translateArray(t, d)
	case KindObject:
		return translateObject(t, d)
	default:
		// Unresolvable node: fall back to string.
		return map[string]any{"type": "string"}
	}
}

func translateArray(t *Type, d Dialect) map[string]any {
	node := map[string]any{"type": "array"}
	inner, _, _, desc := resolve(t.Elem)
	if inner == nil {
		if d.RequireArrayItems {
			node["items"] = map[string]any{"type": "string"}
		}
		return node
	}
	items := translateNode(inner, d)
	if desc != "" {
		items["description"] = desc
	}
	node["items"] = items
	return node
}

func translateObject(t *Type, d Dialect) map[string]any {
	properties := make(map[string]any)
	var required []string

	for _, field := range t.Fields {
		inner, optional, def, desc := resolve(field.Type)

		var prop map[string]any
		if inner == nil {
			// A field with no resolvable type is forced to string; this
			// matters especially for fields literally named "type", which
			// several providers reject when left without a type key.
			prop = map[string]any{"type": "string"}
		} else {
			prop = translateNode(inner, d)
		}
		if desc != "" {
			prop["description"] = desc
		}
		if def != nil && d.EmitDefaults {
			prop["default"] = def
		}
		properties[field.Name] = prop

		if !optional {
			required = append(required, field.Name)
		}
	}

	if len(properties) == 0 && d.PatchEmptyObjects {
		properties[placeholderField] = map[string]any{
			"type":        "string",
			"description": "unused",
		}
	}

	node := map[string]any{
		"type":       "object",
		"properties": properties,
	}
	if len(required) > 0 {
		node["required"] = required
	}
	return node
}
