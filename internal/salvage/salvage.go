// Package salvage recovers JSON values from free-form model output. Models are
// asked to "return JSON" but wrap it in prose, code fences or Python-repr
// quoting; Parse applies a fixed sequence of repairs until one yields valid
// JSON.
package salvage

import (
	"encoding/json"
	"fmt"
	"regexp"
	"sort"
	"strings"

	"go.uber.org/zap"
)

// RefusalPrefixes are responses that mean the model declined the task. They
// are rejected before any repair is attempted.
var RefusalPrefixes = []string{
	"Sorry, it is not possible to create a json dict",
	"Sorry, as an AI language model",
	"The note does not mention any person",
}

var (
	codeFenceRe     = regexp.MustCompile("(?s)```[a-zA-Z]*[ \\t]*\\n?(.*?)\\s*```")
	doubleCommaRe   = regexp.MustCompile(`,\s*,`)
	outputMarkerRe  = regexp.MustCompile(`(?i)output:`)
	trailingCommaRe = regexp.MustCompile(`,(\s*[\]}])`)
	stringLiteralRe = regexp.MustCompile(`"(?:[^"\\]|\\.)*"`)
	lineContinueRe  = regexp.MustCompile(`\\+\n\s*`)

	// Python dict repr artifacts. Each pattern anchors the single quote to
	// JSON structure ({ [ : , } ]) on at least one side, so apostrophes
	// inside values are left alone.
	quoteFixes = []struct {
		re   *regexp.Regexp
		repl string
	}{
		{regexp.MustCompile(`\{(\s*)'`), `{$1"`},
		{regexp.MustCompile(`\[(\s*)'`), `[$1"`},
		{regexp.MustCompile(`'(\s*):`), `"$1:`},
		{regexp.MustCompile(`'(\s*),(\s*)'`), `"$1,$2"`},
		{regexp.MustCompile(`, '`), `, "`},
		{regexp.MustCompile(`,(\n\s*)'`), `,$1"`},
		{regexp.MustCompile(`: '`), `: "`},
		{regexp.MustCompile(`'(\s*)\}`), `"$1}`},
		{regexp.MustCompile(`'(\s*)\]`), `"$1]`},
	}
)

// repairs run in order; the text is re-decoded after each one.
var repairs = []func(string) string{
	func(s string) string { return codeFenceRe.ReplaceAllString(s, "$1") },
	func(s string) string {
		s = doubleCommaRe.ReplaceAllString(s, ",")
		for _, fix := range quoteFixes {
			s = fix.re.ReplaceAllString(s, fix.repl)
		}
		return s
	},
	func(s string) string {
		if loc := outputMarkerRe.FindStringIndex(s); loc != nil {
			return s[loc[1]:]
		}
		return s
	},
	func(s string) string {
		s = strings.ReplaceAll(s, "<br>\n", "\n")
		s = strings.ReplaceAll(s, "<br />\n", "\n")
		return trailingCommaRe.ReplaceAllString(s, "$1")
	},
	func(s string) string {
		s = stringLiteralRe.ReplaceAllStringFunc(s, func(lit string) string {
			return strings.ReplaceAll(lit, "\n", `\n`)
		})
		s = lineContinueRe.ReplaceAllString(s, `\n`)
		if !strings.Contains(s, "[") && strings.Contains(s, "]") {
			s = strings.ReplaceAll(s, "]", "")
		}
		return s
	},
}

// Parse returns the JSON value recovered from raw and true, or nil and false
// when nothing usable could be salvaged. Valid JSON input is returned as
// json.Unmarshal would decode it.
func Parse(raw string) (any, bool) {
	return parse(raw, true)
}

func parse(raw string, debug bool) (any, bool) {
	if strings.TrimSpace(raw) == "" {
		return nil, false
	}
	for _, prefix := range RefusalPrefixes {
		if strings.HasPrefix(strings.TrimSpace(raw), prefix) {
			if debug {
				zap.L().Warn("salvage: model refused the task", zap.String("response", truncate(raw)))
			}
			return nil, false
		}
	}

	// Repairs below can corrupt valid JSON, so try the untouched text first,
	// then the same text without trailing commas.
	if v, ok := decodeLenient(raw); ok {
		return v, true
	}

	text := raw
	for _, step := range repairs {
		text = step(text)
		if v, ok := decodeLenient(text); ok {
			return v, true
		}
	}

	start := strings.IndexAny(text, "{[")
	end := strings.LastIndexAny(text, "}]")
	if start >= 0 && end > start {
		sub := text[start : end+1]
		if len(sub)*2 >= len(text) {
			if v, ok := decode(sub); ok {
				return v, true
			}
		} else if debug {
			zap.L().Warn("salvage: response is likely not JSON",
				zap.Int("start", start),
				zap.Int("end", end),
				zap.String("candidate", truncate(sub)),
			)
		}
	}

	if items, ok := bulletList(text); ok {
		return items, true
	}

	if debug {
		zap.L().Warn("salvage: giving up on decoding",
			zap.String("original", truncate(raw)),
			zap.String("transformed", truncate(text)),
		)
	}
	return nil, false
}

func decode(s string) (any, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, false
	}
	var v any
	if err := json.Unmarshal([]byte(s), &v); err != nil {
		return nil, false
	}
	return v, true
}

func decodeLenient(s string) (any, bool) {
	if v, ok := decode(s); ok {
		return v, true
	}
	if stripped := stripTrailingCommas(s); stripped != s {
		return decode(stripped)
	}
	return nil, false
}

// stripTrailingCommas drops commas that directly precede a closing bracket or
// brace, skipping string literals so their contents are never touched.
func stripTrailingCommas(s string) string {
	var sb strings.Builder
	sb.Grow(len(s))
	inString, escaped := false, false
	for i := 0; i < len(s); i++ {
		c := s[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			sb.WriteByte(c)
			continue
		}
		if c == '"' {
			inString = true
		}
		if c == ',' {
			j := i + 1
			for j < len(s) && strings.IndexByte(" \t\r\n", s[j]) >= 0 {
				j++
			}
			if j < len(s) && (s[j] == ']' || s[j] == '}') {
				continue
			}
		}
		sb.WriteByte(c)
	}
	return sb.String()
}

// bulletList treats text whose non-empty lines (all but at most one) start
// with "-" as a flat list of strings.
func bulletList(text string) ([]any, bool) {
	var lines []string
	for _, l := range strings.Split(text, "\n") {
		if strings.TrimSpace(l) != "" {
			lines = append(lines, strings.TrimSpace(l))
		}
	}
	if len(lines) < 2 {
		return nil, false
	}
	var items []any
	for _, l := range lines {
		if strings.HasPrefix(l, "-") {
			items = append(items, strings.TrimSpace(strings.TrimPrefix(l, "-")))
		}
	}
	if len(items)+1 < len(lines) {
		return nil, false
	}
	zap.L().Debug("salvage: decoded bullet list",
		zap.Int("bullets", len(items)),
		zap.Int("lines", len(lines)),
	)
	return items, true
}

// ToPlaintext degrades a JSON answer into flat text for callers that expected
// free text: lists are space-joined, objects become "key: value" pairs.
// Anything that is not a list or object is returned unchanged.
func ToPlaintext(raw string) string {
	v, ok := parse(raw, false)
	if !ok {
		return raw
	}
	switch t := v.(type) {
	case []any, map[string]any:
		return Flatten(t)
	default:
		return raw
	}
}

// ToStringList recovers a list of strings: object values are listed in key
// order, list items are flattened to plain text. Anything else is empty.
func ToStringList(raw string) []string {
	v, ok := Parse(raw)
	if !ok {
		return nil
	}
	switch t := v.(type) {
	case map[string]any:
		zap.L().Warn("salvage: expected a list, got an object; using its values",
			zap.String("response", truncate(raw)))
		out := make([]string, 0, len(t))
		for _, k := range sortedKeys(t) {
			out = append(out, Flatten(t[k]))
		}
		return out
	case []any:
		out := make([]string, 0, len(t))
		for _, item := range t {
			out = append(out, Flatten(item))
		}
		return out
	default:
		zap.L().Error("salvage: unexpected response type for list",
			zap.String("type", fmt.Sprintf("%T", v)))
		return nil
	}
}

// Flatten renders a decoded JSON value as plain text. nil becomes "None".
func Flatten(v any) string {
	switch t := v.(type) {
	case nil:
		return "None"
	case string:
		return t
	case []any:
		parts := make([]string, len(t))
		for i, item := range t {
			parts[i] = Flatten(item)
		}
		return strings.Join(parts, " ")
	case map[string]any:
		parts := make([]string, 0, len(t))
		for _, k := range sortedKeys(t) {
			parts = append(parts, k+": "+Flatten(t[k]))
		}
		return strings.Join(parts, " ")
	default:
		return fmt.Sprint(t)
	}
}

func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func truncate(s string) string {
	const limit = 500
	if len(s) <= limit {
		return s
	}
	return s[:limit] + " ... (truncated for logging readability)"
}
