package model

import (
	"fmt"
	"math"
	"reflect"
	"sort"
)

// normalize converts v to the canonical representation stored inside a
// ConfigNode: bool, int64, float64, string, []any or map[string]any.
// The second result is false when v carries no value (nil, absent node).
func normalize(v any) (any, bool) {
	switch t := v.(type) {
	case nil:
		return nil, false
	case bool, string, int64, float64:
		return t, true
	case int:
		return int64(t), true
	case int8:
		return int64(t), true
	case int16:
		return int64(t), true
	case int32:
		return int64(t), true
	case uint8:
		return int64(t), true
	case uint16:
		return int64(t), true
	case uint32:
		return int64(t), true
	case uint:
		return normalizeUint(uint64(t)), true
	case uint64:
		return normalizeUint(t), true
	case float32:
		return float64(t), true
	case ConfigNode:
		if !t.Exists() {
			return nil, false
		}
		return t.AsMap(), true
	case *ConfigNode:
		if t == nil {
			return nil, false
		}
		return normalize(*t)
	case map[string]any:
		return normalizeMap(t), true
	case []any:
		out := make([]any, 0, len(t))
		for _, e := range t {
			if nv, ok := normalize(e); ok {
				out = append(out, nv)
			}
		}
		return out, true
	case fmt.Stringer:
		return t.String(), true
	}

	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Slice, reflect.Array:
		if rv.Kind() == reflect.Slice && rv.IsNil() {
			return nil, false
		}
		out := make([]any, 0, rv.Len())
		for i := 0; i < rv.Len(); i++ {
			if nv, ok := normalize(rv.Index(i).Interface()); ok {
				out = append(out, nv)
			}
		}
		return out, true
	case reflect.Map:
		if rv.IsNil() {
			return nil, false
		}
		if rv.Type().Key().Kind() != reflect.String {
			return fmt.Sprint(v), true
		}
		m := make(map[string]any, rv.Len())
		iter := rv.MapRange()
		for iter.Next() {
			if nv, ok := normalize(iter.Value().Interface()); ok {
				m[iter.Key().String()] = nv
			}
		}
		return m, true
	case reflect.Pointer:
		if rv.IsNil() {
			return nil, false
		}
		return normalize(rv.Elem().Interface())
	case reflect.String:
		return rv.String(), true
	case reflect.Bool:
		return rv.Bool(), true
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return rv.Int(), true
	case reflect.Float32, reflect.Float64:
		return rv.Float(), true
	}
	return fmt.Sprint(v), true
}

func normalizeUint(u uint64) any {
	if u > math.MaxInt64 {
		return float64(u)
	}
	return int64(u)
}

func normalizeMap(in map[string]any) map[string]any {
	out := make(map[string]any, len(in))
	for k, v := range in {
		if nv, ok := normalize(v); ok {
			out[k] = nv
		}
	}
	return out
}

// deepCopy copies normalized values so callers cannot mutate node internals.
func deepCopy(v any) any {
	switch t := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, e := range t {
			out[k] = deepCopy(e)
		}
		return out
	case []any:
		out := make([]any, len(t))
		for i, e := range t {
			out[i] = deepCopy(e)
		}
		return out
	default:
		return v
	}
}

// Normalize returns the canonical form of v as stored in a ConfigNode,
// or nil when v carries no value.
func Normalize(v any) any {
	nv, _ := normalize(v)
	return nv
}

// ValueEqual compares two values by their canonical form. Integers and
// floats holding the same number are equal.
func ValueEqual(a, b any) bool {
	na, okA := normalize(a)
	nb, okB := normalize(b)
	if !okA || !okB {
		return okA == okB
	}
	return canonicalEqual(na, nb)
}

func canonicalEqual(a, b any) bool {
	switch x := a.(type) {
	case int64:
		switch y := b.(type) {
		case int64:
			return x == y
		case float64:
			return float64(x) == y
		}
		return false
	case float64:
		switch y := b.(type) {
		case float64:
			return x == y
		case int64:
			return x == float64(y)
		}
		return false
	case map[string]any:
		y, ok := b.(map[string]any)
		if !ok || len(x) != len(y) {
			return false
		}
		for k, v := range x {
			w, ok := y[k]
			if !ok || !canonicalEqual(v, w) {
				return false
			}
		}
		return true
	case []any:
		y, ok := b.([]any)
		if !ok || len(x) != len(y) {
			return false
		}
		for i := range x {
			if !canonicalEqual(x[i], y[i]) {
				return false
			}
		}
		return true
	default:
		return a == b
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

func sortStrings(s []string) {
	sort.Strings(s)
}
