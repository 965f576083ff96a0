/*
   This file handles the numeric data types that can appear in viewer documents,
   e.g., the data_type of a number-valued segment property.
*/

package ngstate

import (
	"encoding/json"
	"fmt"
	"math"
)

// DataType is a unique ID for each numeric type, e.g., a uint8 or a float32.
type DataType uint8

const (
	T_uint8 DataType = iota
	T_int8
	T_uint16
	T_int16
	T_uint32
	T_int32
	T_uint64
	T_int64
	T_float32
	T_float64
)

// DataKind groups data types into unsigned, signed and floating point kinds,
// ordered so that a cast from one kind to an equal or later kind is same-kind.
type DataKind uint8

const (
	UnsignedKind DataKind = iota
	SignedKind
	FloatKind
)

var typeBytes = map[DataType]int32{
	T_uint8:   1,
	T_int8:    1,
	T_uint16:  2,
	T_int16:   2,
	T_uint32:  4,
	T_int32:   4,
	T_uint64:  8,
	T_int64:   8,
	T_float32: 4,
	T_float64: 8,
}

var typeNames = map[DataType]string{
	T_uint8:   "uint8",
	T_int8:    "int8",
	T_uint16:  "uint16",
	T_int16:   "int16",
	T_uint32:  "uint32",
	T_int32:   "int32",
	T_uint64:  "uint64",
	T_int64:   "int64",
	T_float32: "float32",
	T_float64: "float64",
}

// DataTypeBytes returns the # of bytes for a given type.
func DataTypeBytes(t DataType) int32 {
	return typeBytes[t]
}

// ParseDataType returns the DataType for a name like "uint16".
func ParseDataType(s string) (DataType, error) {
	for t, name := range typeNames {
		if name == s {
			return t, nil
		}
	}
	return 0, Validationf("unknown data type %q", s)
}

func (t DataType) String() string {
	if name, found := typeNames[t]; found {
		return name
	}
	return fmt.Sprintf("DataType(%d)", uint8(t))
}

// Kind returns whether the type is unsigned, signed or floating point.
func (t DataType) Kind() DataKind {
	switch t {
	case T_uint8, T_uint16, T_uint32, T_uint64:
		return UnsignedKind
	case T_int8, T_int16, T_int32, T_int64:
		return SignedKind
	default:
		return FloatKind
	}
}

// CanCast returns true if values of type t can be cast to type to without
// changing kind in a lossy direction: unsigned -> signed -> float is allowed,
// widening or narrowing within a kind is allowed, float -> integer is not.
func (t DataType) CanCast(to DataType) bool {
	return to.Kind() >= t.Kind()
}

// Fits returns true if v can be represented by the data type without loss
// of its integral part or overflow.
func (t DataType) Fits(v float64) bool {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return false
	}
	switch t {
	case T_float32:
		return math.Abs(v) <= math.MaxFloat32
	case T_float64:
		return true
	}
	if v != math.Trunc(v) {
		return false
	}
	switch t {
	case T_uint8:
		return v >= 0 && v <= math.MaxUint8
	case T_int8:
		return v >= math.MinInt8 && v <= math.MaxInt8
	case T_uint16:
		return v >= 0 && v <= math.MaxUint16
	case T_int16:
		return v >= math.MinInt16 && v <= math.MaxInt16
	case T_uint32:
		return v >= 0 && v <= math.MaxUint32
	case T_int32:
		return v >= math.MinInt32 && v <= math.MaxInt32
	case T_uint64:
		return v >= 0 && v < math.MaxUint64
	case T_int64:
		return v >= math.MinInt64 && v < math.MaxInt64
	}
	return false
}

// Downcast32 returns the 32-bit type of the same kind for 64-bit types and
// the type itself otherwise.
func (t DataType) Downcast32() DataType {
	switch t {
	case T_uint64:
		return T_uint32
	case T_int64:
		return T_int32
	case T_float64:
		return T_float32
	}
	return t
}

// MarshalJSON implements the json.Marshaler interface.
func (t DataType) MarshalJSON() ([]byte, error) {
	name, found := typeNames[t]
	if !found {
		return nil, fmt.Errorf("unknown data type: %d", uint8(t))
	}
	return json.Marshal(name)
}

// UnmarshalJSON implements the json.Unmarshaler interface.
func (t *DataType) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	dt, err := ParseDataType(s)
	if err != nil {
		return err
	}
	*t = dt
	return nil
}
