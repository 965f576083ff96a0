package ngstate

import (
	"encoding/json"
	"fmt"
	"math"
	"reflect"
	"strconv"
)

// Normalize recursively converts a value into a JSON-safe form built only from
// float64, int64, uint64, string, bool, nil, []interface{} and
// map[string]interface{}.  Numeric types of any width (including named types),
// arrays, slices, pointers, json.Number and maps with non-string keys are
// converted.  Non-finite floats become nil.
func Normalize(v interface{}) (interface{}, error) {
	if v == nil {
		return nil, nil
	}
	if rv := reflect.ValueOf(v); rv.Kind() == reflect.Ptr && rv.IsNil() {
		return nil, nil
	}
	switch x := v.(type) {
	case json.Number:
		if i, err := x.Int64(); err == nil {
			return i, nil
		}
		f, err := x.Float64()
		if err != nil {
			return nil, Typef("bad json number %q", string(x))
		}
		return normFloat(f), nil
	case json.Marshaler:
		b, err := x.MarshalJSON()
		if err != nil {
			return nil, err
		}
		var out interface{}
		if err := json.Unmarshal(b, &out); err != nil {
			return nil, err
		}
		return Normalize(out)
	}
	return normalizeValue(reflect.ValueOf(v))
}

func normFloat(f float64) interface{} {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return nil
	}
	return f
}

func normalizeValue(rv reflect.Value) (interface{}, error) {
	switch rv.Kind() {
	case reflect.Invalid:
		return nil, nil
	case reflect.Bool:
		return rv.Bool(), nil
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return rv.Int(), nil
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		return rv.Uint(), nil
	case reflect.Float32, reflect.Float64:
		return normFloat(rv.Float()), nil
	case reflect.String:
		return rv.String(), nil
	case reflect.Ptr, reflect.Interface:
		if rv.IsNil() {
			return nil, nil
		}
		return Normalize(rv.Elem().Interface())
	case reflect.Slice:
		if rv.IsNil() {
			return nil, nil
		}
		fallthrough
	case reflect.Array:
		out := make([]interface{}, rv.Len())
		for i := 0; i < rv.Len(); i++ {
			elem, err := Normalize(rv.Index(i).Interface())
			if err != nil {
				return nil, err
			}
			out[i] = elem
		}
		return out, nil
	case reflect.Map:
		if rv.IsNil() {
			return nil, nil
		}
		out := make(map[string]interface{}, rv.Len())
		iter := rv.MapRange()
		for iter.Next() {
			key, err := mapKey(iter.Key())
			if err != nil {
				return nil, err
			}
			elem, err := Normalize(iter.Value().Interface())
			if err != nil {
				return nil, err
			}
			out[key] = elem
		}
		return out, nil
	case reflect.Struct:
		b, err := json.Marshal(rv.Interface())
		if err != nil {
			return nil, err
		}
		var out interface{}
		if err := json.Unmarshal(b, &out); err != nil {
			return nil, err
		}
		return out, nil
	}
	return nil, Typef("can't normalize value of type %s", rv.Type())
}

func mapKey(k reflect.Value) (string, error) {
	switch k.Kind() {
	case reflect.String:
		return k.String(), nil
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return strconv.FormatInt(k.Int(), 10), nil
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return strconv.FormatUint(k.Uint(), 10), nil
	case reflect.Interface:
		if k.IsNil() {
			return "", Typef("nil map key")
		}
		return mapKey(k.Elem())
	}
	return "", Typef("can't use %s as a JSON object key", k.Type())
}

// AsFloat converts a normalized-able scalar into a float64.  Null and
// non-finite values are validation errors.
func AsFloat(v interface{}) (float64, error) {
	n, err := Normalize(v)
	if err != nil {
		return 0, err
	}
	switch x := n.(type) {
	case float64:
		return x, nil
	case int64:
		return float64(x), nil
	case uint64:
		return float64(x), nil
	case string:
		f, err := strconv.ParseFloat(x, 64)
		if err != nil {
			return 0, Typef("can't convert %q to a number", x)
		}
		return f, nil
	case nil:
		return 0, Validationf("null value is not a number")
	}
	return 0, Typef("can't convert %T to a number", v)
}

// AsFloats converts a list-like value into a slice of float64.
func AsFloats(v interface{}) ([]float64, error) {
	switch x := v.(type) {
	case []float64:
		out := make([]float64, len(x))
		copy(out, x)
		return out, nil
	case NdFloat64:
		return []float64(x.Duplicate()), nil
	case Vector3d:
		return x.Slice(), nil
	}
	n, err := Normalize(v)
	if err != nil {
		return nil, err
	}
	list, ok := n.([]interface{})
	if !ok {
		return nil, Typef("expected a list of numbers, got %T", v)
	}
	out := make([]float64, len(list))
	for i, elem := range list {
		if out[i], err = AsFloat(elem); err != nil {
			return nil, err
		}
	}
	return out, nil
}

// AsUint64 converts a normalized-able scalar, including decimal strings as used
// for segment ids in viewer documents, into a uint64.
func AsUint64(v interface{}) (uint64, error) {
	n, err := Normalize(v)
	if err != nil {
		return 0, err
	}
	switch x := n.(type) {
	case uint64:
		return x, nil
	case int64:
		if x < 0 {
			return 0, Validationf("negative id %d", x)
		}
		return uint64(x), nil
	case float64:
		if x < 0 || x != math.Trunc(x) || x >= math.MaxUint64 {
			return 0, Validationf("%v is not a valid id", x)
		}
		return uint64(x), nil
	case string:
		id, err := strconv.ParseUint(x, 10, 64)
		if err != nil {
			return 0, Validationf("%q is not a valid id", x)
		}
		return id, nil
	}
	return 0, Typef("can't convert %T to an id", v)
}

// AsUint64s converts a scalar or list-like value into a slice of uint64 ids.
// A scalar becomes a single-element slice.
func AsUint64s(v interface{}) ([]uint64, error) {
	switch x := v.(type) {
	case []uint64:
		out := make([]uint64, len(x))
		copy(out, x)
		return out, nil
	case nil:
		return nil, nil
	}
	n, err := Normalize(v)
	if err != nil {
		return nil, err
	}
	list, ok := n.([]interface{})
	if !ok {
		id, err := AsUint64(n)
		if err != nil {
			return nil, err
		}
		return []uint64{id}, nil
	}
	out := make([]uint64, len(list))
	for i, elem := range list {
		if out[i], err = AsUint64(elem); err != nil {
			return nil, err
		}
	}
	return out, nil
}

// AsStrings converts a scalar or list-like value into a slice of strings.
func AsStrings(v interface{}) ([]string, error) {
	switch x := v.(type) {
	case []string:
		out := make([]string, len(x))
		copy(out, x)
		return out, nil
	case string:
		return []string{x}, nil
	case nil:
		return nil, nil
	}
	n, err := Normalize(v)
	if err != nil {
		return nil, err
	}
	list, ok := n.([]interface{})
	if !ok {
		return []string{fmt.Sprint(n)}, nil
	}
	out := make([]string, 0, len(list))
	for _, elem := range list {
		if elem == nil {
			continue
		}
		if s, ok := elem.(string); ok {
			out = append(out, s)
		} else {
			out = append(out, fmt.Sprint(elem))
		}
	}
	return out, nil
}
