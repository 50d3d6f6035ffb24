package templatize

import (
	"fmt"
	"sort"
)

// transform walks a decoded JSON structure and returns a copy in which every string value has been passed through
// fn. Map keys are left unchanged.
func transform(value any, fn func(string) string) any {
	switch v := value.(type) {
	case string:
		return fn(v)
	case []any:
		result := make([]any, len(v))
		for i, n := range v {
			result[i] = transform(n, fn)
		}
		return result
	case []string:
		result := make([]string, len(v))
		for i, n := range v {
			result[i] = fn(n)
		}
		return result
	case map[string]any:
		result := make(map[string]any, len(v))
		for k, n := range v {
			result[k] = transform(n, fn)
		}
		return result
	case map[any]any:
		result := make(map[any]any, len(v))
		for k, n := range v {
			result[k] = transform(n, fn)
		}
		return result
	default:
		return value
	}
}

// visit calls fn for every string value in the structure. Maps are visited in key order so the results are stable.
func visit(value any, fn func(string)) {
	switch v := value.(type) {
	case string:
		fn(v)
	case []any:
		for _, n := range v {
			visit(n, fn)
		}
	case []string:
		for _, n := range v {
			fn(n)
		}
	case map[string]any:
		keys := make([]string, 0, len(v))
		for k := range v {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			visit(v[k], fn)
		}
	case map[any]any:
		keys := make([]any, 0, len(v))
		for k := range v {
			keys = append(keys, k)
		}
		sort.Slice(keys, func(i, j int) bool {
			return fmt.Sprint(keys[i]) < fmt.Sprint(keys[j])
		})
		for _, k := range keys {
			visit(v[k], fn)
		}
	}
}
