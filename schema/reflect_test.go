package schema

import (
	"testing"
)

type weatherParams struct {
	City  string   `json:"city" jsonschema:"description=City name"`
	Units string   `json:"units,omitempty" jsonschema:"enum=metric,enum=imperial"`
	Days  int      `json:"days"`
	Tags  []string `json:"tags,omitempty"`
	Limit *int     `json:"limit"`

	hidden string //nolint:unused // exercises unexported-field skipping
}

func TestTypeOfStruct(t *testing.T) {
	schema := TypeOf[weatherParams]()
	if schema.Kind != KindObject {
		t.Fatalf("Expected object, got kind %d", schema.Kind)
	}
	if len(schema.Fields) != 5 {
		t.Fatalf("Expected 5 fields, got %d", len(schema.Fields))
	}

	byName := make(map[string]*Type)
	for _, f := range schema.Fields {
		byName[f.Name] = f.Type
	}

	city := byName["city"]
	if city.Kind != KindString {
		t.Errorf("Expected city to be string, got kind %d", city.Kind)
	}
	if city.Description != "City name" {
		t.Errorf("Expected city description from tag, got %q", city.Description)
	}

	// omitempty + enum tag: optional wrapper around an enum node
	units := byName["units"]
	if units.Kind != KindOptional {
		t.Fatalf("Expected units to be optional, got kind %d", units.Kind)
	}
	if units.Inner.Kind != KindEnum {
		t.Errorf("Expected units inner to be enum, got kind %d", units.Inner.Kind)
	}

	if byName["days"].Kind != KindInteger {
		t.Error("Expected days to be integer")
	}

	tags := byName["tags"]
	if tags.Kind != KindOptional || tags.Inner.Kind != KindArray {
		t.Error("Expected tags to be optional array")
	}

	// pointer fields become optional
	limit := byName["limit"]
	if limit.Kind != KindOptional || limit.Inner.Kind != KindInteger {
		t.Error("Expected limit to be optional integer")
	}
}

func TestTypeOfRequiredOverride(t *testing.T) {
	type params struct {
		Name string `json:"name,omitempty" jsonschema:"required"`
	}
	schema := TypeOf[params]()
	if schema.Fields[0].Type.Kind == KindOptional {
		t.Error("Expected required tag to override omitempty")
	}
}

func TestTypeOfJSONDash(t *testing.T) {
	type params struct {
		Keep string `json:"keep"`
		Skip string `json:"-"`
	}
	schema := TypeOf[params]()
	if len(schema.Fields) != 1 || schema.Fields[0].Name != "keep" {
		t.Errorf("Expected only keep field, got %v", schema.Fields)
	}
}

func TestTypeOfMapAndRecursion(t *testing.T) {
	type node struct {
		Meta     map[string]any `json:"meta"`
		Children []node         `json:"children"`
	}
	schema := TypeOf[node]()

	byName := make(map[string]*Type)
	for _, f := range schema.Fields {
		byName[f.Name] = f.Type
	}
	if byName["meta"].Kind != KindObject {
		t.Error("Expected map field to become free-form object")
	}
	// self-reference degrades to string at the cycle point
	children := byName["children"]
	if children.Kind != KindArray || children.Elem.Kind != KindString {
		t.Error("Expected recursive element to degrade to string")
	}
}

func TestTypeOfTranslates(t *testing.T) {
	node := Translate(TypeOf[weatherParams](), DialectOpenAI)
	required, ok := node["required"].([]string)
	if !ok {
		t.Fatal("Expected required list")
	}
	// city and days are required; units/tags are omitempty, limit is a pointer
	expected := map[string]bool{"city": true, "days": true}
	if len(required) != len(expected) {
		t.Fatalf("Expected %d required fields, got %v", len(expected), required)
	}
	for _, name := range required {
		if !expected[name] {
			t.Errorf("Unexpected required field %q", name)
		}
	}
}
