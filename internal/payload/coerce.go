package payload

import (
	"encoding/json"
	"fmt"
	"math"
	"reflect"
	"strconv"
	"strings"
)

// Coerce walks the document and converts every scalar leaf to its string
// representation, which is the form the remote runs API accepts. Container
// structure is preserved; any sequence-like value (slice or array of any
// element type) is normalized to []any. A leaf that is not a number, bool
// or string fails with a ConfigurationError naming the offending key path
// and concrete type. Coerce is idempotent.
func Coerce(v any) (any, error) {
	return coerceValue(v, "json")
}

func coerceValue(v any, path string) (any, error) {
	switch t := v.(type) {
	case string:
		return t, nil
	case bool:
		return strconv.FormatBool(t), nil
	case json.Number:
		return string(t), nil
	}

	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.String:
		return rv.String(), nil
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return strconv.FormatInt(rv.Int(), 10), nil
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return strconv.FormatUint(rv.Uint(), 10), nil
	case reflect.Float32, reflect.Float64:
		return formatFloat(rv.Float()), nil
	case reflect.Slice, reflect.Array:
		out := make([]any, rv.Len())
		for i := 0; i < rv.Len(); i++ {
			coerced, err := coerceValue(rv.Index(i).Interface(), fmt.Sprintf("%s[%d]", path, i))
			if err != nil {
				return nil, err
			}
			out[i] = coerced
		}
		return out, nil
	case reflect.Map:
		if rv.Type().Key().Kind() != reflect.String {
			return nil, typeError(v, path)
		}
		out := make(map[string]any, rv.Len())
		iter := rv.MapRange()
		for iter.Next() {
			key := iter.Key().String()
			coerced, err := coerceValue(iter.Value().Interface(), path+"["+key+"]")
			if err != nil {
				return nil, err
			}
			out[key] = coerced
		}
		return out, nil
	}

	return nil, typeError(v, path)
}

func typeError(v any, path string) *ConfigurationError {
	return &ConfigurationError{
		Reason: fmt.Sprintf("type %T used for parameter %s is not a number or a string", v, path),
	}
}

// formatFloat renders a float so that integral values keep a trailing ".0"
// (1.0 -> "1.0"), keeping the wire form distinguishable from integers.
func formatFloat(f float64) string {
	s := strconv.FormatFloat(f, 'g', -1, 64)
	if !strings.ContainsAny(s, ".eE") && !math.IsInf(f, 0) && !math.IsNaN(f) {
		s += ".0"
	}
	return s
}
