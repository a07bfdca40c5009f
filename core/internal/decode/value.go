package decode

import (
	"go.mongodb.org/mongo-driver/v2/bson"
)

// Value converts the document and array types the driver produces into
// map[string]any and []any, recursively. Scalars are returned as is.
func Value(v any) any {
	switch val := v.(type) {
	case bson.D:
		m := make(map[string]any, len(val))
		for _, e := range val {
			m[e.Key] = Value(e.Value)
		}
		return m
	case bson.M:
		return mapValue(val)
	case map[string]any:
		return mapValue(val)
	case bson.A:
		return sliceValue(val)
	case []any:
		return sliceValue(val)
	case bson.Raw:
		var m bson.M
		if err := bson.Unmarshal(val, &m); err != nil {
			return val
		}
		return mapValue(m)
	default:
		return v
	}
}

func mapValue(src map[string]any) map[string]any {
	m := make(map[string]any, len(src))
	for k, vv := range src {
		m[k] = Value(vv)
	}
	return m
}

func sliceValue(src []any) []any {
	s := make([]any, len(src))
	for i, item := range src {
		s[i] = Value(item)
	}
	return s
}

// Doc returns v as a document map. ok is false when v is not a document.
func Doc(v any) (map[string]any, bool) {
	switch val := v.(type) {
	case bson.D, bson.M, map[string]any, bson.Raw:
		m, ok := Value(val).(map[string]any)
		return m, ok
	}
	return nil, false
}

// Array returns v as a slice. ok is false when v is not an array.
func Array(v any) ([]any, bool) {
	switch val := v.(type) {
	case bson.A:
		return []any(val), true
	case []any:
		return val, true
	case []map[string]any:
		s := make([]any, len(val))
		for i, m := range val {
			s[i] = m
		}
		return s, true
	}
	return nil, false
}
