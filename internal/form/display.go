package form

import (
	"fmt"
	"strings"
	"time"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// DateDisplayLayout renders dates like "Oct 15 2026, 1PM PDT".
const DateDisplayLayout = "Jan 02 2006, 3PM MST"

// Fields that must be filled in by a human when the model left them empty.
var requiredForDisplay = map[string]bool{"name": true, "phone": true}

// Fields whose values are person names and get word-capitalized.
var personNameFields = map[string]bool{"firstname": true, "lastname": true}

var titleCaser = cases.Title(language.Und)

// DisplayValue renders a stored value for humans: spreadsheets, emails and
// the CLI. Option values show their label, dates show in the reference
// timezone.
func (f *FieldDefinition) DisplayValue(value any) string {
	if value == nil {
		if requiredForDisplay[f.spec.Name] {
			return "None - Please fill in"
		}
		return "None"
	}

	if f.spec.Type.HasOptions() {
		s := stringify(value)
		for _, o := range f.spec.Options {
			if o.Value == s {
				return o.Label
			}
		}
		return s
	}

	switch f.spec.Type {
	case TypeDate:
		t, ok := value.(time.Time)
		if !ok {
			v := f.validateDate(value)
			if v == nil {
				return "None"
			}
			t = v.(time.Time)
		}
		return t.In(settings.Location).Format(DateDisplayLayout)
	case TypeBool:
		if b, ok := value.(bool); ok {
			if b {
				return "Yes"
			}
			return "No"
		}
	}

	if personNameFields[f.spec.Name] {
		return titleCaser.String(fmt.Sprint(value))
	}
	return stringify(value)
}

// DisplayTuple is one (label, human-readable value) row.
type DisplayTuple struct {
	Label string `json:"label" yaml:"label"`
	Value string `json:"value" yaml:"value"`
}

// String renders the tuple as "Label: Value".
func (t DisplayTuple) String() string {
	return t.Label + ": " + t.Value
}

// FormatTuples renders tuples one per line, as used in plain-text emails.
func FormatTuples(tuples []DisplayTuple) string {
	lines := make([]string, len(tuples))
	for i, t := range tuples {
		lines[i] = t.String()
	}
	return strings.Join(lines, "\n")
}
