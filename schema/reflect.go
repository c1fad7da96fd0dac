package schema

import (
	"reflect"
	"strings"
)

// TypeOf derives a typed schema tree from a Go struct type using
// reflection. Field names follow the json tag when present; pointer
// fields and fields marked omitempty become optional. The jsonschema
// struct tag customizes individual fields:
//
//	jsonschema:"description=City name,enum=metric,enum=imperial"
//	jsonschema:"required"
//
// Types that cannot be expressed fall back to string, consistent with
// the translator's leniency policy.
func TypeOf[T any]() *Type {
	t := reflect.TypeFor[T]()
	for t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	return fromReflect(t, make(map[reflect.Type]bool))
}

func fromReflect(t reflect.Type, seen map[reflect.Type]bool) *Type {
	switch t.Kind() {
	case reflect.String:
		return String()
	case reflect.Bool:
		return Boolean()
	case reflect.Float32, reflect.Float64:
		return Number()
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return Integer()
	case reflect.Slice, reflect.Array:
		return Array(fromReflect(t.Elem(), seen))
	case reflect.Ptr:
		return Optional(fromReflect(t.Elem(), seen))
	case reflect.Map:
		// Free-form objects have no declared fields; the translator
		// patches them per dialect.
		return Object()
	case reflect.Struct:
		if seen[t] {
			// Self-referential types cannot be expressed; degrade to string.
			return String()
		}
		seen[t] = true
		defer delete(seen, t)
		return structType(t, seen)
	default:
		return String()
	}
}

func structType(t reflect.Type, seen map[reflect.Type]bool) *Type {
	var fields []Field
	for i := 0; i < t.NumField(); i++ {
		sf := t.Field(i)
		if !sf.IsExported() {
			continue
		}

		name := sf.Name
		omitEmpty := false
		if tag := sf.Tag.Get("json"); tag != "" {
			if tag == "-" {
				continue
			}
			parts := strings.Split(tag, ",")
			if parts[0] != "" {
				name = parts[0]
			}
			for _, opt := range parts[1:] {
				if opt == "omitempty" {
					omitEmpty = true
				}
			}
		}

		ft := fromReflect(sf.Type, seen)
		ft, forcedRequired := applySchemaTag(ft, sf.Tag.Get("jsonschema"))

		optional := omitEmpty || sf.Type.Kind() == reflect.Ptr
		if optional && !forcedRequired && ft.Kind != KindOptional && ft.Kind != KindDefault {
			ft = Optional(ft)
		}

		fields = append(fields, F(name, ft))
	}
	return Object(fields...)
}

// applySchemaTag applies jsonschema tag directives to a derived type and
// reports whether the field was explicitly marked required.
func applySchemaTag(t *Type, tag string) (*Type, bool) {
	if tag == "" {
		return t, false
	}

	required := false
	var enumValues []string
	for _, item := range strings.Split(tag, ",") {
		key, value, hasValue := strings.Cut(item, "=")
		switch {
		case key == "description" && hasValue:
			t.Description = value
		case key == "enum" && hasValue:
			enumValues = append(enumValues, value)
		case key == "required" && !hasValue:
			required = true
		}
	}

	if len(enumValues) > 0 && t.Kind == KindString {
		enum := Enum(enumValues...)
		enum.Description = t.Description
		t = enum
	}
	return t, required
}
