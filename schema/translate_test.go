package schema

import (
	"reflect"
	"testing"
)

func TestTranslateScalars(t *testing.T) {
	tests := []struct {
		name     string
		node     *Type
		expected string
	}{
		{"string", String(), "string"},
		{"number", Number(), "number"},
		{"integer", Integer(), "integer"},
		{"boolean", Boolean(), "boolean"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			node := Translate(tt.node, DialectAnthropic)
			if node["type"] != tt.expected {
				t.Errorf("Expected type %q, got %v", tt.expected, node["type"])
			}
		})
	}
}

func TestTranslateObjectRequiredOrder(t *testing.T) {
	schema := Object(
		F("city", String()),
		F("units", Optional(Enum("metric", "imperial"))),
		F("days", Integer()),
	)

	node := Translate(schema, DialectOpenAI)
	required, ok := node["required"].([]string)
	if !ok {
		t.Fatalf("Expected required to be []string, got %T", node["required"])
	}
	// required preserves field declaration order and skips optional fields
	if !reflect.DeepEqual(required, []string{"city", "days"}) {
		t.Errorf("Expected required [city days], got %v", required)
	}
}

func TestTranslateEmptyObjectPatched(t *testing.T) {
	node := Translate(Object(), DialectAnthropic)
	properties, ok := node["properties"].(map[string]any)
	if !ok {
		t.Fatalf("Expected properties map, got %T", node["properties"])
	}
	placeholder, ok := properties["_"].(map[string]any)
	if !ok {
		t.Fatal("Expected placeholder property in empty object")
	}
	if placeholder["type"] != "string" {
		t.Errorf("Expected placeholder type string, got %v", placeholder["type"])
	}
	if _, present := node["required"]; present {
		t.Error("Placeholder must not appear in required")
	}
}

func TestTranslateEmptyObjectUnpatched(t *testing.T) {
	d := Dialect{Name: "plain"}
	node := Translate(Object(), d)
	properties := node["properties"].(map[string]any)
	if len(properties) != 0 {
		t.Errorf("Expected no properties without patching, got %v", properties)
	}
}

func TestTranslateNilRoot(t *testing.T) {
	node := Translate(nil, DialectAnthropic)
	if node["type"] != "object" {
		t.Errorf("Expected nil root to become object, got %v", node["type"])
	}
	properties := node["properties"].(map[string]any)
	if _, ok := properties["_"]; !ok {
		t.Error("Expected nil root to be patched like an empty object")
	}
}

func TestTranslateEnum(t *testing.T) {
	node := Translate(Enum("celsius", "fahrenheit"), DialectOllama)
	if node["type"] != "string" {
		t.Errorf("Expected enum type string, got %v", node["type"])
	}
	values, ok := node["enum"].([]any)
	if !ok {
		t.Fatalf("Expected enum values []any, got %T", node["enum"])
	}
	if len(values) != 2 || values[0] != "celsius" || values[1] != "fahrenheit" {
		t.Errorf("Unexpected enum values: %v", values)
	}
}

func TestTranslateArrayItems(t *testing.T) {
	node := Translate(Array(Integer()), DialectGemini)
	items, ok := node["items"].(map[string]any)
	if !ok {
		t.Fatal("Expected items schema on array node")
	}
	if items["type"] != "integer" {
		t.Errorf("Expected items type integer, got %v", items["type"])
	}
}

func TestTranslateArrayWithoutElem(t *testing.T) {
	// Unknown element type defaults to string items when required.
	node := Translate(Array(nil), DialectAnthropic)
	items, ok := node["items"].(map[string]any)
	if !ok {
		t.Fatal("Expected default items schema on elementless array")
	}
	if items["type"] != "string" {
		t.Errorf("Expected default items type string, got %v", items["type"])
	}

	plain := Translate(Array(nil), Dialect{Name: "plain"})
	if _, present := plain["items"]; present {
		t.Error("Expected no items when dialect does not require them")
	}
}

func TestTranslateDefaults(t *testing.T) {
	schema := Object(
		F("units", Default(String(), "metric")),
	)

	node := Translate(schema, DialectOpenAI)
	properties := node["properties"].(map[string]any)
	units := properties["units"].(map[string]any)
	if units["default"] != "metric" {
		t.Errorf("Expected default metric, got %v", units["default"])
	}
	if _, present := node["required"]; present {
		t.Error("Field with default must not be required")
	}

	// Gemini drops defaults.
	geminiNode := Translate(schema, DialectGemini)
	geminiUnits := geminiNode["properties"].(map[string]any)["units"].(map[string]any)
	if _, present := geminiUnits["default"]; present {
		t.Error("Expected no default key for dialect without EmitDefaults")
	}
}

func TestTranslateNestedWrappers(t *testing.T) {
	// Optional(Default(...)) resolves to the inner type with both effects.
	schema := Object(
		F("limit", Optional(Default(Integer().Describe("max results"), 10))),
	)
	node := Translate(schema, DialectAnthropic)
	properties := node["properties"].(map[string]any)
	limit := properties["limit"].(map[string]any)
	if limit["type"] != "integer" {
		t.Errorf("Expected integer after unwrapping, got %v", limit["type"])
	}
	if limit["default"] != 10 {
		t.Errorf("Expected default 10, got %v", limit["default"])
	}
	if limit["description"] != "max results" {
		t.Errorf("Expected description to survive unwrapping, got %v", limit["description"])
	}
}

func TestTranslateUnresolvableFieldBecomesString(t *testing.T) {
	// A field whose wrapper chain ends in nil still renders as a typed
	// string property.
	schema := Object(
		F("type", Optional(nil)),
	)
	node := Translate(schema, DialectOpenAI)
	properties := node["properties"].(map[string]any)
	prop := properties["type"].(map[string]any)
	if prop["type"] != "string" {
		t.Errorf("Expected string fallback, got %v", prop["type"])
	}
}

func TestTranslateDescriptions(t *testing.T) {
	schema := Object(
		F("city", String().Describe("City name")),
	).Describe("Weather query")

	node := Translate(schema, DialectAnthropic)
	if node["description"] != "Weather query" {
		t.Errorf("Expected root description, got %v", node["description"])
	}
	city := node["properties"].(map[string]any)["city"].(map[string]any)
	if city["description"] != "City name" {
		t.Errorf("Expected field description, got %v", city["description"])
	}
}

func TestTranslateDeepNesting(t *testing.T) {
	schema := Object(
		F("matrix", Array(Array(Number()))),
		F("tags", Array(Enum("a", "b"))),
		F("meta", Object(
			F("empty", Object()),
		)),
	)

	node := Translate(schema, DialectAnthropic)
	properties := node["properties"].(map[string]any)

	matrix := properties["matrix"].(map[string]any)
	inner := matrix["items"].(map[string]any)
	if inner["type"] != "array" {
		t.Errorf("Expected nested array, got %v", inner["type"])
	}
	if inner["items"].(map[string]any)["type"] != "number" {
		t.Error("Expected number at matrix leaf")
	}

	meta := properties["meta"].(map[string]any)
	empty := meta["properties"].(map[string]any)["empty"].(map[string]any)
	if _, ok := empty["properties"].(map[string]any)["_"]; !ok {
		t.Error("Expected nested empty object to be patched")
	}
}

// FuzzTranslate drives randomly shaped trees through every dialect and
// checks the structural invariants the providers depend on.
func FuzzTranslate(f *testing.F) {
	f.Add(uint64(0), 3)
	f.Add(uint64(42), 5)
	f.Add(uint64(99), 1)

	dialects := []Dialect{DialectAnthropic, DialectOpenAI, DialectGemini, DialectOllama}

	f.Fuzz(func(t *testing.T, seed uint64, depth int) {
		if depth < 0 {
			depth = -depth
		}
		depth = depth%4 + 1
		tree := randomType(&seed, depth)

		for _, d := range dialects {
			node := Translate(tree, d)
			checkNode(t, d, node)
		}
	})
}

func randomType(seed *uint64, depth int) *Type {
	next := func(n int) int {
		*seed = *seed*6364136223846793005 + 1442695040888963407
		return int(*seed>>33) % n
	}
	if depth <= 0 {
		switch next(5) {
		case 0:
			return String()
		case 1:
			return Number()
		case 2:
			return Integer()
		case 3:
			return Boolean()
		default:
			return Enum("a", "b", "c")
		}
	}
	switch next(5) {
	case 0:
		return Array(randomType(seed, depth-1))
	case 1:
		n := next(3)
		fields := make([]Field, 0, n)
		for i := 0; i < n; i++ {
			fields = append(fields, F(string(rune('a'+i)), randomType(seed, depth-1)))
		}
		return Object(fields...)
	case 2:
		return Optional(randomType(seed, depth-1))
	case 3:
		return Default(randomType(seed, depth-1), "x")
	default:
		return randomType(seed, depth-1)
	}
}

// checkNode recursively verifies a translated node: every node carries a
// type key, object nodes with patching never have empty properties, array
// nodes with RequireArrayItems always carry items, and no wrapper kinds
// leak through.
func checkNode(t *testing.T, d Dialect, node map[string]any) {
	t.Helper()

	typ, ok := node["type"].(string)
	if !ok {
		t.Fatalf("Node missing type key: %v", node)
	}

	switch typ {
	case "object":
		properties, ok := node["properties"].(map[string]any)
		if !ok {
			t.Fatalf("Object node missing properties: %v", node)
		}
		if d.PatchEmptyObjects && len(properties) == 0 {
			t.Error("Empty object not patched")
		}
		if required, present := node["required"]; present {
			for _, name := range required.([]string) {
				if _, exists := properties[name]; !exists {
					t.Errorf("Required field %q not in properties", name)
				}
			}
		}
		for _, prop := range properties {
			checkNode(t, d, prop.(map[string]any))
		}
	case "array":
		items, present := node["items"]
		if d.RequireArrayItems && !present {
			t.Error("Array node missing items")
		}
		if present {
			checkNode(t, d, items.(map[string]any))
		}
	case "string", "number", "integer", "boolean":
	default:
		t.Errorf("Unexpected node type %q", typ)
	}

	if !d.EmitDefaults {
		if _, present := node["default"]; present {
			t.Error("Default emitted for dialect without EmitDefaults")
		}
	}
}
