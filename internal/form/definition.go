package form

import (
	"slices"

	"github.com/rotisserie/eris"
)

// Definition is a named, ordered set of fields describing one kind of
// extractable record. It is built once at startup and shared read-only.
type Definition struct {
	name   string
	fields []*FieldDefinition
	byName map[string]*FieldDefinition
}

// NewDefinition builds a form from field specs. Field names must be unique.
func NewDefinition(name string, specs ...FieldSpec) (*Definition, error) {
	if name == "" {
		return nil, eris.New("form: definition name is required")
	}
	d := &Definition{
		name:   name,
		fields: make([]*FieldDefinition, 0, len(specs)),
		byName: make(map[string]*FieldDefinition, len(specs)),
	}
	for _, spec := range specs {
		f, err := NewField(spec)
		if err != nil {
			return nil, eris.Wrapf(err, "form: definition %s", name)
		}
		if _, dup := d.byName[f.Name()]; dup {
			return nil, eris.Errorf("form: definition %s has duplicate field %s", name, f.Name())
		}
		d.fields = append(d.fields, f)
		d.byName[f.Name()] = f
	}
	return d, nil
}

// MustDefinition is like NewDefinition but panics on an invalid schema. It is
// meant for static form configuration.
func MustDefinition(name string, specs ...FieldSpec) *Definition {
	d, err := NewDefinition(name, specs...)
	if err != nil {
		panic(err)
	}
	return d
}

// Name returns the form name.
func (d *Definition) Name() string { return d.name }

// Fields returns the fields in declaration order.
func (d *Definition) Fields() []*FieldDefinition {
	return slices.Clone(d.fields)
}

// Field looks up a field by name.
func (d *Definition) Field(name string) (*FieldDefinition, bool) {
	f, ok := d.byName[name]
	return f, ok
}

// FieldNames returns the field names in declaration order.
func (d *Definition) FieldNames() []string {
	names := make([]string, len(d.fields))
	for i, f := range d.fields {
		names[i] = f.Name()
	}
	return names
}

// Specs returns the field configuration in declaration order.
func (d *Definition) Specs() []FieldSpec {
	specs := make([]FieldSpec, len(d.fields))
	for i, f := range d.fields {
		specs[i] = f.Spec()
	}
	return specs
}
