package model

import (
	"strconv"
	"strings"
)

// Attributes is a flat mapping from field name to a scalar or a short list of
// strings. Values typically come from JSON so numbers may arrive as float64
// or as numeric strings, and lists as []any.
type Attributes map[string]any

// Number returns the numeric value stored at key.
func (a Attributes) Number(key string) (float64, bool) {
	switch v := a[key].(type) {
	case float64:
		return v, true
	case float32:
		return float64(v), true
	case int:
		return float64(v), true
	case int32:
		return float64(v), true
	case int64:
		return float64(v), true
	case uint:
		return float64(v), true
	case uint32:
		return float64(v), true
	case uint64:
		return float64(v), true
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		if err != nil {
			return 0, false
		}
		return f, true
	}
	return 0, false
}

// String returns the trimmed value stored at key as text. Lists are joined
// with commas and numbers are formatted without trailing zeros, so values
// decoded from JSON read the same as values built in Go. It returns "" when
// the key is absent or holds something else.
func (a Attributes) String(key string) string {
	switch v := a[key].(type) {
	case string:
		return strings.TrimSpace(v)
	case []string, []any:
		return strings.Join(a.Strings(key), ",")
	case bool:
		return strconv.FormatBool(v)
	}
	if f, ok := a.Number(key); ok {
		return strconv.FormatFloat(f, 'f', -1, 64)
	}
	return ""
}

// Strings returns the list stored at key. A plain string is split on commas.
// Blank items are dropped.
func (a Attributes) Strings(key string) []string {
	var raw []string
	switch v := a[key].(type) {
	case []string:
		raw = v
	case []any:
		raw = make([]string, 0, len(v))
		for _, item := range v {
			switch x := item.(type) {
			case string:
				raw = append(raw, x)
			case float64:
				raw = append(raw, strconv.FormatFloat(x, 'f', -1, 64))
			case bool:
				raw = append(raw, strconv.FormatBool(x))
			}
		}
	case string:
		raw = strings.Split(v, ",")
	default:
		return nil
	}

	out := make([]string, 0, len(raw))
	for _, s := range raw {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}

// Has reports whether key holds a usable, non-empty value.
func (a Attributes) Has(key string) bool {
	if _, ok := a.Number(key); ok {
		return true
	}
	return len(a.Strings(key)) > 0
}
