// Package fields reads loosely shaped JSON objects through ordered lists of alternate key
// spellings. The RaniaMart API has changed casing and naming between versions, so every read
// goes through a Field that names the spellings it accepts and the value used when none match.
package fields

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// Object is a decoded JSON object. Numbers are kept as json.Number.
type Object map[string]any

// Field is one entry of a lookup table.
type Field struct {
	Name    string
	Keys    []string
	Default string
}

// F builds a Field whose canonical name is the first key.
func F(def string, keys ...string) Field {
	return Field{Name: keys[0], Keys: keys, Default: def}
}

// Decode parses raw into an Object. Anything other than a JSON object is an error.
func Decode(raw []byte) (Object, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, fmt.Errorf("decode json: %w", err)
	}
	obj, ok := v.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("expected json object, got %T", v)
	}
	return obj, nil
}

var envelopeKeys = []string{"data", "Data"}

// Unwrap returns the payload inside a {"data": ...} envelope, or obj itself when there is none.
func Unwrap(obj Object) Object {
	for _, k := range envelopeKeys {
		if inner, ok := obj[k].(map[string]any); ok {
			return inner
		}
	}
	return obj
}

// Lookup returns the first value under f.Keys that is neither null nor the empty string.
func (o Object) Lookup(f Field) (any, bool) {
	for _, k := range f.Keys {
		v, ok := o[k]
		if !ok || v == nil {
			continue
		}
		if s, isStr := v.(string); isStr && s == "" {
			continue
		}
		return v, true
	}
	return nil, false
}

// Has reports whether any spelling of f is present with a usable value.
func (o Object) Has(f Field) bool {
	_, ok := o.Lookup(f)
	return ok
}

// String returns f as text, or f.Default.
func (o Object) String(f Field) string {
	v, ok := o.Lookup(f)
	if !ok {
		return f.Default
	}
	switch t := v.(type) {
	case string:
		return t
	case json.Number:
		return t.String()
	case bool:
		if t {
			return "true"
		}
		return "false"
	default:
		return f.Default
	}
}

// Int returns f as a whole number. JSON numbers and numeric strings are accepted, fractions are
// rounded half away from zero. Anything unparsable yields f.Default (or 0).
func (o Object) Int(f Field) int64 {
	if n, ok := o.IntOK(f); ok {
		return n
	}
	d, err := decimal.NewFromString(f.Default)
	if err != nil {
		return 0
	}
	return d.Round(0).IntPart()
}

// IntOK is Int that also reports whether a parsable value was present.
func (o Object) IntOK(f Field) (int64, bool) {
	v, ok := o.Lookup(f)
	if !ok {
		return 0, false
	}
	var (
		d   decimal.Decimal
		err error
	)
	switch t := v.(type) {
	case json.Number:
		d, err = decimal.NewFromString(t.String())
	case string:
		d, err = decimal.NewFromString(strings.TrimSpace(t))
	case float64:
		d = decimal.NewFromFloat(t)
	default:
		return 0, false
	}
	if err != nil {
		return 0, false
	}
	return d.Round(0).IntPart(), true
}

// Object returns the nested object under f.
func (o Object) Object(f Field) (Object, bool) {
	v, ok := o.Lookup(f)
	if !ok {
		return nil, false
	}
	m, ok := v.(map[string]any)
	return m, ok
}

// List returns the objects inside the array under f. Non-object elements are skipped.
func (o Object) List(f Field) ([]Object, bool) {
	v, ok := o.Lookup(f)
	if !ok {
		return nil, false
	}
	arr, ok := v.([]any)
	if !ok {
		return nil, false
	}
	out := make([]Object, 0, len(arr))
	for _, el := range arr {
		if m, isObj := el.(map[string]any); isObj {
			out = append(out, m)
		}
	}
	return out, true
}
