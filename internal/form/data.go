package form

import (
	"encoding/json"
	"errors"
	"maps"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

// ErrUnknownField is returned when setting a field the form does not define.
var ErrUnknownField = errors.New("form: unknown field")

// Data is one populated record of a Definition. Every key in the record is a
// field of the bound definition.
type Data struct {
	def    *Definition
	values map[string]any
}

// NewData returns an empty record bound to def.
func NewData(def *Definition) *Data {
	return &Data{def: def, values: make(map[string]any)}
}

// Definition returns the bound form.
func (d *Data) Definition() *Definition { return d.def }

// Set validates value for the named field and stores it.
func (d *Data) Set(name string, value any) error {
	f, ok := d.def.Field(name)
	if !ok {
		return eris.Wrapf(ErrUnknownField, "field %s.%s (known: %v)", d.def.Name(), name, d.def.FieldNames())
	}
	d.values[name] = f.ValidateAndFix(value)
	return nil
}

// Populate sets every key of raw, dropping keys the form does not define with
// a warning, then fills field defaults for anything still missing.
func (d *Data) Populate(raw map[string]any) {
	for _, name := range sortedKeys(raw) {
		if err := d.Set(name, raw[name]); err != nil {
			zap.L().Warn("form: skipping unknown field",
				zap.String("form", d.def.Name()),
				zap.String("field", name),
				zap.Strings("known", d.def.FieldNames()),
			)
		}
	}
	d.applyDefaults()
}

func (d *Data) applyDefaults() {
	for _, f := range d.def.fields {
		if f.spec.DefaultValue == nil || d.values[f.Name()] != nil {
			continue
		}
		zap.L().Debug("form: filling in default value",
			zap.String("form", d.def.Name()),
			zap.String("field", f.Name()),
			zap.Any("default", f.spec.DefaultValue),
		)
		d.values[f.Name()] = f.ValidateAndFix(f.spec.DefaultValue)
	}
}

// Value returns the stored value and whether the field was set.
func (d *Data) Value(name string) (any, bool) {
	v, ok := d.values[name]
	return v, ok
}

// String returns the stored value when it is a string.
func (d *Data) String(name string) string {
	s, _ := d.values[name].(string)
	return s
}

// Time returns the stored value when it is a date.
func (d *Data) Time(name string) (time.Time, bool) {
	t, ok := d.values[name].(time.Time)
	return t, ok
}

// DisplayValue renders the named field for humans. Unknown fields render as "None".
func (d *Data) DisplayValue(name string) string {
	f, ok := d.def.Field(name)
	if !ok {
		return "None"
	}
	return f.DisplayValue(d.values[name])
}

// ToDict returns a copy of the stored values for persistence.
func (d *Data) ToDict() map[string]any {
	return maps.Clone(d.values)
}

// ToDisplayTuples returns (label, display value) rows in field order,
// skipping fields hidden from display.
func (d *Data) ToDisplayTuples() []DisplayTuple {
	return d.tuples(func(f *FieldDefinition) bool { return f.IgnoreInDisplay() })
}

// ToEmailTuples is ToDisplayTuples for email bodies.
func (d *Data) ToEmailTuples() []DisplayTuple {
	return d.tuples(func(f *FieldDefinition) bool { return f.IgnoreInEmail() })
}

func (d *Data) tuples(skip func(*FieldDefinition) bool) []DisplayTuple {
	out := make([]DisplayTuple, 0, len(d.def.fields))
	for _, f := range d.def.fields {
		if skip(f) {
			continue
		}
		out = append(out, DisplayTuple{Label: f.Label(), Value: f.DisplayValue(d.values[f.Name()])})
	}
	return out
}

// IsEmpty reports whether no field holds a value.
func (d *Data) IsEmpty() bool {
	for _, v := range d.values {
		if v != nil {
			return false
		}
	}
	return true
}

// MarshalJSON encodes the stored values; dates encode as RFC 3339 UTC.
func (d *Data) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.values)
}
