// Package form defines extractable record schemas: typed field definitions
// grouped into a named form, the per-field validation that coerces model
// output into stored values, and the FormData record bound to a form.
package form

import (
	"slices"

	"github.com/rotisserie/eris"
)

// FieldType is the declared type of a form field.
type FieldType string

// Supported field types.
const (
	TypeText        FieldType = "text"
	TypeHTML        FieldType = "html"
	TypeNumber      FieldType = "number"
	TypeDate        FieldType = "date"
	TypePhoneNumber FieldType = "phonenumber"
	TypeSelect      FieldType = "select"
	TypeRadio       FieldType = "radio"
	TypeBool        FieldType = "bool"
)

// Valid reports whether t is a known field type.
func (t FieldType) Valid() bool {
	switch t {
	case TypeText, TypeHTML, TypeNumber, TypeDate, TypePhoneNumber, TypeSelect, TypeRadio, TypeBool:
		return true
	default:
		return false
	}
}

// HasOptions reports whether values of this type must be one of the field options.
func (t FieldType) HasOptions() bool {
	return t == TypeSelect || t == TypeRadio
}

// Option is one allowed (label, value) pair of a select or radio field.
type Option struct {
	Label string `json:"label" yaml:"label"`
	Value string `json:"value" yaml:"value"`
}

// FieldSpec is the static configuration of a field.
type FieldSpec struct {
	Name        string    `json:"name" yaml:"name"`
	Type        FieldType `json:"type" yaml:"type"`
	Label       string    `json:"label" yaml:"label"`
	Description string    `json:"description,omitempty" yaml:"description,omitempty"`
	Options     []Option  `json:"options,omitempty" yaml:"options,omitempty"`

	// IgnoreInPrompt fields are filled in by code, not by the model.
	IgnoreInPrompt  bool `json:"ignore_in_prompt,omitempty" yaml:"ignore_in_prompt,omitempty"`
	IgnoreInDisplay bool `json:"ignore_in_display,omitempty" yaml:"ignore_in_display,omitempty"`
	IgnoreInEmail   bool `json:"ignore_in_email,omitempty" yaml:"ignore_in_email,omitempty"`

	DefaultValue any `json:"default_value,omitempty" yaml:"default_value,omitempty"`
}

// FieldDefinition is an immutable, validated FieldSpec.
type FieldDefinition struct {
	spec FieldSpec
}

// NewField validates spec and returns the field definition.
func NewField(spec FieldSpec) (*FieldDefinition, error) {
	if spec.Name == "" {
		return nil, eris.New("form: field name is required")
	}
	if !spec.Type.Valid() {
		return nil, eris.Errorf("form: field %s has unknown type %q", spec.Name, spec.Type)
	}
	if spec.Type.HasOptions() && len(spec.Options) == 0 {
		return nil, eris.Errorf("form: %s field %s requires options", spec.Type, spec.Name)
	}
	if spec.Label == "" {
		spec.Label = spec.Name
	}
	spec.Options = slices.Clone(spec.Options)
	return &FieldDefinition{spec: spec}, nil
}

// Name returns the field name, unique within its form.
func (f *FieldDefinition) Name() string { return f.spec.Name }

func (f *FieldDefinition) Type() FieldType { return f.spec.Type }

func (f *FieldDefinition) Label() string { return f.spec.Label }

func (f *FieldDefinition) Description() string { return f.spec.Description }

func (f *FieldDefinition) IgnoreInPrompt() bool { return f.spec.IgnoreInPrompt }

func (f *FieldDefinition) IgnoreInDisplay() bool { return f.spec.IgnoreInDisplay }

func (f *FieldDefinition) IgnoreInEmail() bool { return f.spec.IgnoreInEmail }

func (f *FieldDefinition) DefaultValue() any { return f.spec.DefaultValue }

// Options returns a copy of the field options in declaration order.
func (f *FieldDefinition) Options() []Option {
	return slices.Clone(f.spec.Options)
}

// Spec returns a copy of the field configuration.
func (f *FieldDefinition) Spec() FieldSpec {
	s := f.spec
	s.Options = slices.Clone(f.spec.Options)
	return s
}
