// Package schema provides a typed parameter schema tree and a single
// translator that renders it into the JSON-Schema-like structures the
// provider wire formats accept. Provider differences are captured in a
// small per-provider Dialect quirk table rather than per-provider
// walkers, so the translation logic cannot drift between providers.
package schema

// Kind classifies a schema node.
type Kind int

const (
	KindString Kind = iota
	KindNumber
	KindInteger
	KindBoolean
	KindObject
	KindArray
	KindEnum

	// Wrapper kinds. These are resolved to their inner type before
	// classification; they only affect required-field computation and
	// default values.
	KindOptional
	KindDefault
)

// Type is one node of a typed parameter schema tree.
type Type struct {
	Kind        Kind
	Description string

	// Fields is populated for object nodes, in declaration order.
	Fields []Field

	// Elem is the element type for array nodes.
	Elem *Type

	// Values holds the allowed literals for enum nodes.
	Values []string

	// Inner is the wrapped type for optional/default nodes.
	Inner *Type

	// DefaultValue is the value carried by a default wrapper.
	DefaultValue any
}

// Field is a named member of an object node.
type Field struct {
	Name string
	Type *Type
}

// String returns a string schema node.
func String() *Type { return &Type{Kind: KindString} }

// Number returns a floating-point number schema node.
func Number() *Type { return &Type{Kind: KindNumber} }

// Integer returns an integer schema node.
func Integer() *Type { return &Type{Kind: KindInteger} }

// Boolean returns a boolean schema node.
func Boolean() *Type { return &Type{Kind: KindBoolean} }

// Array returns an array schema node with the given element type.
func Array(elem *Type) *Type { return &Type{Kind: KindArray, Elem: elem} }

// Enum returns a string enumeration node with the given allowed values.
func Enum(values ...string) *Type { return &Type{Kind: KindEnum, Values: values} }

// Object returns an object schema node with the given fields.
func Object(fields ...Field) *Type { return &Type{Kind: KindObject, Fields: fields} }

// F constructs a named field for use with Object.
func F(name string, t *Type) Field { return Field{Name: name, Type: t} }

// Optional wraps a type so the enclosing field is excluded from the
// object's required list.
func Optional(t *Type) *Type { return &Type{Kind: KindOptional, Inner: t} }

// Default wraps a type with a default value; like Optional, the enclosing
// field is excluded from the required list.
func Default(t *Type, value any) *Type {
	return &Type{Kind: KindDefault, Inner: t, DefaultValue: value}
}

// Describe attaches a description to the node and returns it.
func (t *Type) Describe(desc string) *Type {
	t.Description = desc
	return t
}

// resolve unwraps optional/default wrappers, reporting whether any wrapper
// was present and collecting the first description and default found along
// the way. A nil node resolves to nil.
func resolve(t *Type) (inner *Type, optional bool, def any, desc string) {
	for t != nil {
		if desc == "" {
			desc = t.Description
		}
		switch t.Kind {
		case KindOptional:
			optional = true
			t = t.Inner
		case KindDefault:
			optional = true
			if def == nil {
				def = t.DefaultValue
			}
			t = t.Inner
		default:
			return t, optional, def, desc
		}
	}
	return nil, optional, def, desc
}
