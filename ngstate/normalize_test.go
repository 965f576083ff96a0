package ngstate

import (
	"errors"
	"math"
	"reflect"
	"testing"
)

type resolution [3]float32

func TestNormalize(t *testing.T) {
	in := map[interface{}]interface{}{
		uint64(12):  []int16{1, 2, 3},
		"res":       resolution{4, 4, 40},
		"nested":    map[string][]float32{"a": {0.5}},
		"nan":       math.NaN(),
		"dtype":     T_float32,
		"pointer":   &Vector3d{1, 2, 3},
		"nilslice":  []int(nil),
		"boolean":   true,
		"character": "x",
	}
	got, err := Normalize(in)
	if err != nil {
		t.Fatalf("unable to normalize: %v\n", err)
	}
	expected := map[string]interface{}{
		"12":        []interface{}{int64(1), int64(2), int64(3)},
		"res":       []interface{}{float64(4), float64(4), float64(40)},
		"nested":    map[string]interface{}{"a": []interface{}{0.5}},
		"nan":       nil,
		"dtype":     "float32",
		"pointer":   []interface{}{float64(1), float64(2), float64(3)},
		"nilslice":  nil,
		"boolean":   true,
		"character": "x",
	}
	if !reflect.DeepEqual(got, expected) {
		t.Errorf("expected %v, got %v\n", expected, got)
	}
}

func TestNormalizeBadKey(t *testing.T) {
	_, err := Normalize(map[Vector3d]int{{1, 2, 3}: 1})
	if !errors.Is(err, ErrType) {
		t.Errorf("expected type error for vector keys, got %v\n", err)
	}
}

func TestAsUint64s(t *testing.T) {
	ids, err := AsUint64s([]interface{}{"123", 456, uint32(7), 8.0})
	if err != nil {
		t.Fatalf("unexpected error: %v\n", err)
	}
	if !reflect.DeepEqual(ids, []uint64{123, 456, 7, 8}) {
		t.Errorf("bad ids: %v\n", ids)
	}
	ids, err = AsUint64s(uint64(99))
	if err != nil || len(ids) != 1 || ids[0] != 99 {
		t.Errorf("scalar id should become single element slice, got %v (%v)\n", ids, err)
	}
	if _, err = AsUint64s([]interface{}{-1}); !errors.Is(err, ErrValidation) {
		t.Errorf("expected validation error for negative id, got %v\n", err)
	}
}

func TestAsFloats(t *testing.T) {
	f, err := AsFloats([]int{4, 4, 40})
	if err != nil {
		t.Fatalf("unexpected error: %v\n", err)
	}
	if !reflect.DeepEqual(f, []float64{4, 4, 40}) {
		t.Errorf("bad floats: %v\n", f)
	}
	if _, err := AsFloats("nope"); !errors.Is(err, ErrType) {
		t.Errorf("expected type error, got %v\n", err)
	}
}

func TestDataTypeCasting(t *testing.T) {
	tests := []struct {
		from, to DataType
		ok       bool
	}{
		{T_int64, T_int32, true},
		{T_uint64, T_int32, true},
		{T_int32, T_float32, true},
		{T_float64, T_float32, true},
		{T_float32, T_int32, false},
		{T_int16, T_uint16, false},
	}
	for _, tc := range tests {
		if got := tc.from.CanCast(tc.to); got != tc.ok {
			t.Errorf("CanCast(%s -> %s): expected %t, got %t\n", tc.from, tc.to, tc.ok, got)
		}
	}
	if T_uint8.Fits(256) || !T_uint8.Fits(255) || T_int32.Fits(1.5) {
		t.Errorf("bad range checking\n")
	}
	if T_int64.Downcast32() != T_int32 || T_uint8.Downcast32() != T_uint8 {
		t.Errorf("bad downcasting\n")
	}
}

func TestNdFloat64Ratio(t *testing.T) {
	r, err := NdFloat64{8, 8, 40}.Ratio(NdFloat64{4, 4, 40})
	if err != nil {
		t.Fatalf("unexpected error: %v\n", err)
	}
	if !r.Equals(NdFloat64{2, 2, 1}) {
		t.Errorf("bad ratio: %v\n", r)
	}
	if _, err := (NdFloat64{1, 1, 1}).Ratio(NdFloat64{1, 0, 1}); !errors.Is(err, ErrPrecondition) {
		t.Errorf("expected precondition error on zero resolution, got %v\n", err)
	}
}

func TestUnmappedDataError(t *testing.T) {
	var err error = &UnmappedDataError{Owner: "synapses", Keys: []string{"", "pts"}}
	if !errors.Is(err, ErrUnmapped) {
		t.Errorf("UnmappedDataError should match ErrUnmapped\n")
	}
	if err.Error() != `"synapses" has unmapped data for datamap key(s) <none>, "pts"` {
		t.Errorf("unexpected message: %s\n", err)
	}
}

func TestUnits(t *testing.T) {
	scale, base, err := ToBaseUnit(4, "nm")
	if err != nil || base != "m" || scale != 4e-9 {
		t.Errorf("expected 4e-9 m, got %v %s (%v)\n", scale, base, err)
	}
	back, err := FromBaseUnit(scale, base, "nm")
	if err != nil || back != 4 {
		t.Errorf("expected 4 nm back, got %v (%v)\n", back, err)
	}
	if _, _, err := SplitUnit("furlong"); !errors.Is(err, ErrValidation) {
		t.Errorf("expected validation error on unknown unit, got %v\n", err)
	}
	if f, b, _ := SplitUnit("ms"); f != 1e-3 || b != "s" {
		t.Errorf("bad split of ms: %v %s\n", f, b)
	}
	if _, err := FromBaseUnit(1, "s", "nm"); !errors.Is(err, ErrValidation) {
		t.Errorf("expected validation error for mismatched base units\n")
	}
}

func TestAsFloatNull(t *testing.T) {
	if _, err := AsFloat(nil); !errors.Is(err, ErrValidation) {
		t.Errorf("expected validation error for null, got %v\n", err)
	}
	if _, err := AsFloats([]interface{}{1.0, nil, 3.0}); !errors.Is(err, ErrValidation) {
		t.Errorf("expected validation error for null element, got %v\n", err)
	}
}
