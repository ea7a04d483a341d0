package payload

import (
	"fmt"
	"reflect"
	"regexp"
)

// RenderFunc renders template placeholders in a scalar string using the
// given context. It must be pure: no I/O, same input yields same output.
type RenderFunc func(s string, ctx map[string]string) (string, error)

// Render walks the document and applies fn to every scalar string leaf,
// keeping the container structure intact. Non-string scalars pass through
// unchanged. Rendering runs before type coercion so placeholders are
// resolved while values are still in their native type.
func Render(v any, fn RenderFunc, ctx map[string]string) (any, error) {
	if fn == nil {
		return v, nil
	}
	return renderValue(v, fn, ctx)
}

func renderValue(v any, fn RenderFunc, ctx map[string]string) (any, error) {
	if s, ok := v.(string); ok {
		return fn(s, ctx)
	}

	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Map:
		if rv.Type().Key().Kind() != reflect.String {
			return v, nil
		}
		out := make(map[string]any, rv.Len())
		iter := rv.MapRange()
		for iter.Next() {
			key := iter.Key().String()
			rendered, err := renderValue(iter.Value().Interface(), fn, ctx)
			if err != nil {
				return nil, fmt.Errorf("render %s: %w", key, err)
			}
			out[key] = rendered
		}
		return out, nil
	case reflect.Slice, reflect.Array:
		out := make([]any, rv.Len())
		for i := 0; i < rv.Len(); i++ {
			rendered, err := renderValue(rv.Index(i).Interface(), fn, ctx)
			if err != nil {
				return nil, err
			}
			out[i] = rendered
		}
		return out, nil
	}

	return v, nil
}

var placeholderPattern = regexp.MustCompile(`\{\{\s*([A-Za-z_][A-Za-z0-9_]*)\s*\}\}`)

// DefaultRenderer substitutes {{ name }} placeholders with values from the
// render context. Placeholders without a matching context key are left
// untouched.
func DefaultRenderer(s string, ctx map[string]string) (string, error) {
	rendered := placeholderPattern.ReplaceAllStringFunc(s, func(m string) string {
		name := placeholderPattern.FindStringSubmatch(m)[1]
		if v, ok := ctx[name]; ok {
			return v
		}
		return m
	})
	return rendered, nil
}
