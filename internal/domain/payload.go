package domain

import (
	"encoding/json"
	"strconv"
)

// PayloadString extracts a payload value as a string. Chat payloads arrive
// as decoded JSON, so numeric product ids may be float64 or json.Number.
func PayloadString(payload map[string]any, key string) string {
	v, ok := payload[key]
	if !ok || v == nil {
		return ""
	}
	switch t := v.(type) {
	case string:
		return t
	case json.Number:
		return t.String()
	case float64:
		if t == float64(int64(t)) {
			return strconv.FormatInt(int64(t), 10)
		}
		return strconv.FormatFloat(t, 'f', -1, 64)
	case int:
		return strconv.Itoa(t)
	case int64:
		return strconv.FormatInt(t, 10)
	default:
		return ""
	}
}

// PayloadInt extracts a payload value as an int, returning def when the
// value is absent or not numeric.
func PayloadInt(payload map[string]any, key string, def int) int {
	v, ok := payload[key]
	if !ok || v == nil {
		return def
	}
	switch t := v.(type) {
	case int:
		return t
	case int64:
		return int(t)
	case float64:
		return int(t)
	case json.Number:
		n, err := t.Int64()
		if err != nil {
			return def
		}
		return int(n)
	case string:
		n, err := strconv.Atoi(t)
		if err != nil {
			return def
		}
		return n
	default:
		return def
	}
}

// ItemCount reports the number of entries in a list-valued payload or
// state-data field, tolerating both typed and JSON-decoded slices.
func ItemCount(v any) int {
	switch t := v.(type) {
	case []CartItem:
		return len(t)
	case []any:
		return len(t)
	case []map[string]any:
		return len(t)
	default:
		return 0
	}
}
