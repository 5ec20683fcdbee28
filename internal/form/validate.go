package form

import (
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
	"time"
	_ "time/tzdata" // reference timezone must resolve on minimal images

	"github.com/araddon/dateparse"
	"github.com/nyaruka/phonenumbers"
	"go.uber.org/zap"
)

// Settings controls locale-dependent validation and display.
type Settings struct {
	// Location is the reference timezone for dates given without a zone and
	// for human-readable date display.
	Location *time.Location
	// ReferenceHour pins zone-less dates to this local hour.
	ReferenceHour int
	// PhoneRegion is the default region used to parse phone numbers.
	PhoneRegion string
}

// DefaultSettings pins zone-less dates to 1PM Pacific and parses US numbers.
func DefaultSettings() Settings {
	loc, err := time.LoadLocation("America/Los_Angeles")
	if err != nil {
		loc = time.UTC
	}
	return Settings{Location: loc, ReferenceHour: 13, PhoneRegion: "US"}
}

var (
	settings = DefaultSettings()
	nowFunc  = time.Now
)

// Configure replaces the package settings. Call it once at startup.
func Configure(s Settings) {
	def := DefaultSettings()
	if s.Location == nil {
		s.Location = def.Location
	}
	if s.ReferenceHour < 0 || s.ReferenceHour > 23 {
		s.ReferenceHour = def.ReferenceHour
	}
	if s.PhoneRegion == "" {
		s.PhoneRegion = def.PhoneRegion
	}
	settings = s
}

// CurrentSettings returns the active settings.
func CurrentSettings() Settings { return settings }

var zoneProbe = time.FixedZone("probe", 5*3600+30*60)

var nullStrings = map[string]bool{"none": true, "null": true, "unknown": true}

// ValidateAndFix coerces a raw model value into the stored representation
// for this field. It never fails: an unrecognized shape is logged and
// becomes nil so the rest of the record survives.
func (f *FieldDefinition) ValidateAndFix(value any) any {
	if value == nil {
		return nil
	}
	if s, ok := value.(string); ok && nullStrings[strings.ToLower(strings.TrimSpace(s))] {
		return nil
	}

	if inner, ok := unwrapDefinitionEcho(value); ok {
		return f.ValidateAndFix(inner)
	}

	switch f.spec.Type {
	case TypeText, TypeHTML:
		return f.validateText(value)
	case TypeNumber:
		return f.validateNumber(value)
	case TypeDate:
		return f.validateDate(value)
	case TypePhoneNumber:
		return f.validatePhoneNumber(value)
	case TypeSelect, TypeRadio:
		return f.validateSelect(value)
	case TypeBool:
		return f.validateBool(value)
	default:
		zap.L().Warn("form: no validator for field type",
			zap.String("field", f.spec.Name),
			zap.String("type", string(f.spec.Type)),
		)
		return nil
	}
}

// unwrapDefinitionEcho handles the model answering with the whole field
// definition, e.g. {"label": "Task Title", "type": "text", "value": "Call Jane"}.
// "type" is required so select answers shaped {"label", "value"} are left to
// the select decoder.
func unwrapDefinitionEcho(value any) (any, bool) {
	m, ok := value.(map[string]any)
	if !ok {
		return nil, false
	}
	_, hasLabel := m["label"]
	_, hasType := m["type"]
	inner, hasValue := m["value"]
	if hasLabel && hasType && hasValue {
		return inner, true
	}
	return nil, false
}

func (f *FieldDefinition) invalid(expected string, value any) {
	zap.L().Warn("form: invalid field value",
		zap.String("field", f.spec.Name),
		zap.String("type", string(f.spec.Type)),
		zap.String("expected", expected),
		zap.String("given", fmt.Sprintf("%v", value)),
		zap.String("given_type", fmt.Sprintf("%T", value)),
	)
}

func (f *FieldDefinition) validateText(value any) any {
	switch v := value.(type) {
	case string:
		return v
	case []any:
		lines := make([]string, len(v))
		for i, item := range v {
			lines[i] = "* " + stringify(item)
		}
		return strings.Join(lines, "\n")
	case map[string]any:
		keys := sortedKeys(v)
		lines := make([]string, len(keys))
		for i, k := range keys {
			lines[i] = "* " + k + ": " + stringify(v[k])
		}
		return strings.Join(lines, "\n")
	default:
		f.invalid("text", value)
		return stringify(value)
	}
}

func (f *FieldDefinition) validateNumber(value any) any {
	switch v := value.(type) {
	case int:
		return v
	case int64:
		return int(v)
	case float64:
		if !fitsInt(v) {
			break
		}
		return int(v)
	case bool:
		if v {
			return 1
		}
		return 0
	case json.Number:
		if n, err := v.Int64(); err == nil {
			return int(n)
		}
	case string:
		s := strings.TrimSpace(v)
		if n, err := strconv.Atoi(s); err == nil {
			return n
		}
		if fl, err := strconv.ParseFloat(s, 64); err == nil && fl == math.Trunc(fl) && fitsInt(fl) {
			return int(fl)
		}
	}
	f.invalid("int", value)
	return nil
}

// fitsInt reports whether v truncates to an int without overflow.
func fitsInt(v float64) bool {
	return !math.IsNaN(v) && v >= math.MinInt64 && v < math.MaxInt64
}

func (f *FieldDefinition) validateDate(value any) any {
	switch v := value.(type) {
	case time.Time:
		return v.UTC()
	case string:
		return parseLooseDate(v, f)
	default:
		zap.L().Warn("form: unrecognized date type",
			zap.String("field", f.spec.Name),
			zap.String("given_type", fmt.Sprintf("%T", value)),
		)
		return nil
	}
}

// parseLooseDate parses a free-form date. Dates without a zone are pinned to
// the reference hour in the reference timezone. Unparseable input becomes
// "now" because downstream sorting assumes every record has a date.
func parseLooseDate(s string, f *FieldDefinition) time.Time {
	s = strings.TrimSpace(s)
	inUTC, err := dateparse.ParseIn(s, time.UTC)
	if err != nil {
		zap.L().Warn("form: cannot parse date, defaulting to now",
			zap.String("field", f.spec.Name),
			zap.String("given", s),
			zap.Error(err),
		)
		return nowFunc().UTC()
	}

	// Input that carries its own zone or offset parses to the same instant
	// regardless of the default location.
	inProbe, err := dateparse.ParseIn(s, zoneProbe)
	if err == nil && inProbe.Equal(inUTC) {
		if !unresolvedZone(inUTC) {
			return inUTC.UTC()
		}
		// A zone abbreviation is only meaningful relative to a location;
		// the reference timezone knows its own (PST, PDT).
		if inRef, err := dateparse.ParseIn(s, settings.Location); err == nil && !unresolvedZone(inRef) {
			return inRef.UTC()
		}
		name, _ := inUTC.Zone()
		zap.L().Warn("form: unknown timezone abbreviation, treating date as zone-less",
			zap.String("field", f.spec.Name),
			zap.String("given", s),
			zap.String("zone", name),
		)
	}

	y, m, d := inUTC.Date()
	return time.Date(y, m, d, settings.ReferenceHour, 0, 0, 0, settings.Location).UTC()
}

// unresolvedZone reports whether t carries a zone abbreviation that time
// could not map to an offset. Such zones get a zero offset under their own
// name.
func unresolvedZone(t time.Time) bool {
	name, offset := t.Zone()
	if offset != 0 {
		return false
	}
	switch name {
	case "", "UTC", "GMT", "Z":
		return false
	}
	return true
}

func (f *FieldDefinition) validatePhoneNumber(value any) any {
	var raw string
	switch v := value.(type) {
	case string:
		raw = v
	case float64:
		raw = strconv.FormatFloat(v, 'f', -1, 64)
	case int:
		raw = strconv.Itoa(v)
	default:
		f.invalid("phone number string", value)
		return nil
	}

	num, err := phonenumbers.Parse(raw, settings.PhoneRegion)
	if err != nil {
		f.invalid("parseable phone number", value)
		return nil
	}
	if !phonenumbers.IsValidNumber(num) {
		f.invalid("valid phone number", value)
		return nil
	}
	return phonenumbers.Format(num, phonenumbers.E164)
}

func (f *FieldDefinition) validateSelect(value any) any {
	switch v := value.(type) {
	case string:
		if opt, ok := f.matchOption(v); ok {
			return opt.Value
		}
		f.invalid("option label or value", value)
		return nil
	case float64, int, bool:
		return f.validateSelect(stringify(v))
	case map[string]any:
		// {"label": "Call", "value": "CALL"}
		if inner, ok := v["value"]; ok {
			return f.validateSelect(inner)
		}
	case []any:
		// ["Not Started", "NOT_STARTED"]
		switch len(v) {
		case 0:
		case 2:
			return f.validateSelect(v[1])
		default:
			zap.L().Warn("form: unexpected number of list items for an options field",
				zap.String("field", f.spec.Name),
				zap.Int("items", len(v)),
			)
			return f.validateSelect(v[0])
		}
	}
	f.invalid("option", value)
	return nil
}

// matchOption resolves s against option values first, then labels, then
// both case-insensitively.
func (f *FieldDefinition) matchOption(s string) (Option, bool) {
	s = strings.TrimSpace(s)
	for _, o := range f.spec.Options {
		if o.Value == s {
			return o, true
		}
	}
	for _, o := range f.spec.Options {
		if o.Label == s {
			return o, true
		}
	}
	for _, o := range f.spec.Options {
		if strings.EqualFold(o.Value, s) || strings.EqualFold(o.Label, s) {
			return o, true
		}
	}
	return Option{}, false
}

func (f *FieldDefinition) validateBool(value any) any {
	switch v := value.(type) {
	case bool:
		return v
	case float64:
		return v != 0
	case int:
		return v != 0
	case string:
		switch strings.ToLower(strings.TrimSpace(v)) {
		case "true", "yes", "y", "1":
			return true
		case "false", "no", "n", "0":
			return false
		}
	}
	f.invalid("bool", value)
	return nil
}

func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// stringify renders scalars with fmt and composite values as JSON.
func stringify(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case map[string]any, []any:
		b, err := json.Marshal(t)
		if err != nil {
			return fmt.Sprint(t)
		}
		return string(b)
	default:
		return fmt.Sprint(t)
	}
}
