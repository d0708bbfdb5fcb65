// Package normalize coerces loosely-typed model output into typed fields.
//
// Coercion never fails on a field value: unparseable numbers are treated as
// absent and unparseable dates are kept as cleaned text. The only error is a
// payload that is not a JSON object.
package normalize

import (
	"encoding/json"
	"errors"
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// ErrNotObject is returned when the payload is not a JSON object.
var ErrNotObject = errors.New("payload is not a JSON object")

// FieldType is the primitive a field is coerced to.
type FieldType int

const (
	Text FieldType = iota
	Bool
	Int
	Float
)

// Field declares one schema entry.
type Field struct {
	Name string
	Type FieldType
}

// Schema is the ordered set of fields a payload is coerced to.
type Schema []Field

var nullish = map[string]struct{}{
	"":              {},
	"-":             {},
	"n/a":           {},
	"na":            {},
	"none":          {},
	"null":          {},
	"nil":           {},
	"unknown":       {},
	"not specified": {},
	"not available": {},
}

var (
	numberRe       = regexp.MustCompile(`-?\d+(?:\.\d+)?`)
	ordinalRe      = regexp.MustCompile(`(?i)(\d)(st|nd|rd|th)`)
	currencyWordRe = regexp.MustCompile(`(?i)\b(usd|us\$|dollars?|eur|euro|gbp|pounds?|lkr|rs|inr)\b`)
	magnitudeRe    = regexp.MustCompile(`(?i)^\s*(k|m|b|thousand|million|billion)\b`)

	currencySymbols = strings.NewReplacer("$", " ", "€", " ", "£", " ")
)

var magnitudes = map[string]float64{
	"k":        1e3,
	"thousand": 1e3,
	"m":        1e6,
	"million":  1e6,
	"b":        1e9,
	"billion":  1e9,
}

// dateLayouts are tried in order; the first successful parse wins.
var dateLayouts = []string{
	"2006-1-2",
	"2006/1/2",
	"1/2/2006",
	"2/1/2006",
	"2-1-2006",
	"January 2, 2006",
	"Jan 2, 2006",
	"2 January 2006",
	"2 Jan 2006",
}

// Coerce returns a copy of payload restricted to the schema's fields with
// each value coerced to its declared type. Unknown keys are dropped and
// missing keys are omitted. Numeric fields whose value is null, blank,
// boolean or unparseable are omitted too, so the caller's default applies.
func Coerce(payload any, schema Schema) (map[string]any, error) {
	obj, ok := payload.(map[string]any)
	if !ok {
		return nil, ErrNotObject
	}

	out := make(map[string]any, len(schema))
	for _, f := range schema {
		raw, present := obj[f.Name]
		if !present {
			continue
		}
		switch f.Type {
		case Bool:
			out[f.Name] = ToBool(raw)
		case Int:
			if n, ok := ToNumber(raw); ok {
				out[f.Name] = int64(n)
			}
		case Float:
			if n, ok := ToNumber(raw); ok {
				out[f.Name] = n
			}
		default:
			out[f.Name] = ToText(raw, f.Name)
		}
	}
	return out, nil
}

// ToBool coerces v to a boolean. Unrecognised values are false.
func ToBool(v any) bool {
	switch t := v.(type) {
	case bool:
		return t
	case string:
		switch strings.ToLower(strings.TrimSpace(t)) {
		case "true", "yes", "y", "1":
			return true
		}
		return false
	}
	if n, ok := asFloat(v); ok {
		return n != 0
	}
	return false
}

// ToNumber coerces v to a finite float. The second result is false when v
// carries no usable number.
func ToNumber(v any) (float64, bool) {
	switch t := v.(type) {
	case nil, bool:
		return 0, false
	case string:
		return parseNumber(t)
	}
	n, ok := asFloat(v)
	if !ok || !finite(n) {
		return 0, false
	}
	return n, true
}

func parseNumber(s string) (float64, bool) {
	text := strings.TrimSpace(s)
	if isNullish(text) {
		return 0, false
	}

	negative := strings.HasPrefix(text, "(") && strings.HasSuffix(text, ")")
	if negative {
		text = strings.TrimSpace(text[1 : len(text)-1])
	}

	text = strings.ReplaceAll(text, ",", "")
	text = currencyWordRe.ReplaceAllString(text, "")
	text = currencySymbols.Replace(text)
	text = collapseSpace(text)

	loc := numberRe.FindStringIndex(text)
	if loc == nil {
		return 0, false
	}
	n, err := strconv.ParseFloat(text[loc[0]:loc[1]], 64)
	if err != nil {
		return 0, false
	}

	if m := magnitudeRe.FindStringSubmatch(text[loc[1]:]); m != nil {
		n *= magnitudes[strings.ToLower(m[1])]
	}
	if negative {
		n = -n
	}
	if !finite(n) {
		return 0, false
	}
	return n, true
}

// ToText stringifies v, collapses whitespace and maps nullish tokens to "".
// Fields whose name contains "date" are reformatted as YYYY-MM-DD when the
// text parses as a known date layout.
func ToText(v any, fieldName string) string {
	var text string
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		text = t
	case map[string]any, []any:
		b, err := json.Marshal(t)
		if err != nil {
			return ""
		}
		text = string(b)
	case float64:
		text = strconv.FormatFloat(t, 'f', -1, 64)
	case bool:
		text = strconv.FormatBool(t)
	default:
		b, err := json.Marshal(t)
		if err != nil {
			return ""
		}
		text = strings.Trim(string(b), `"`)
	}

	text = collapseSpace(text)
	if isNullish(text) {
		return ""
	}

	if strings.Contains(strings.ToLower(fieldName), "date") {
		if iso, ok := ParseDate(text); ok {
			return iso
		}
	}
	return text
}

// ParseDate parses s against the known layouts after stripping ordinal
// suffixes and returns it as YYYY-MM-DD.
func ParseDate(s string) (string, bool) {
	normalized := collapseSpace(ordinalRe.ReplaceAllString(strings.TrimSpace(s), "${1}"))
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, normalized); err == nil {
			return t.Format(time.DateOnly), true
		}
	}
	return "", false
}

func asFloat(v any) (float64, bool) {
	switch t := v.(type) {
	case float64:
		return t, true
	case float32:
		return float64(t), true
	case int:
		return float64(t), true
	case int64:
		return float64(t), true
	case json.Number:
		n, err := t.Float64()
		return n, err == nil
	}
	return 0, false
}

func isNullish(s string) bool {
	_, ok := nullish[strings.ToLower(s)]
	return ok
}

func collapseSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

func finite(n float64) bool {
	return !math.IsNaN(n) && !math.IsInf(n, 0)
}
