package partition

import (
	"maps"

	"github.com/Sternrassler/eikon-data-client/pkg/wire"
)

// Field is a field name with optional parameters such as currency or scale.
// Fields are immutable once built.
type Field struct {
	name   string
	params map[string]string
}

// NewField builds a field. The parameter map is copied.
func NewField(name string, params map[string]string) Field {
	f := Field{name: name}
	if len(params) > 0 {
		f.params = maps.Clone(params)
	}
	return f
}

// Fields builds parameterless fields from bare names.
func Fields(names ...string) []Field {
	fields := make([]Field, len(names))
	for i, n := range names {
		fields[i] = Field{name: n}
	}
	return fields
}

// Name returns the field name.
func (f Field) Name() string { return f.name }

// Params returns a copy of the field parameters.
func (f Field) Params() map[string]string { return maps.Clone(f.params) }

func (f Field) spec() wire.FieldSpec {
	return wire.FieldSpec{Name: f.name, Parameters: maps.Clone(f.params)}
}
