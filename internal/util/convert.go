package util

import (
	"encoding/json"
	"strconv"
	"strings"
)

// ToFloat attempts to coerce v into a float64.
//
// Numeric columns read through a dict cursor sometimes come back as
// strings (NUMERIC in Postgres), so numeric strings are accepted.
func ToFloat(v any) (float64, bool) {
	switch x := v.(type) {
	case float64:
		return x, true
	case int:
		return float64(x), true
	case int64:
		return float64(x), true
	case json.Number:
		f, err := x.Float64()
		if err != nil {
			return 0, false
		}
		return f, true
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(x), 64)
		if err != nil {
			return 0, false
		}
		return f, true
	default:
		return 0, false
	}
}
