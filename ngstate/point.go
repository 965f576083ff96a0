package ngstate

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Vector3d is a 3D vector of 64-bit floats, the coordinate type of annotation geometry.
type Vector3d [3]float64

// StringToVector3d parses a string of format "%f<sep>%f<sep>%f".
func StringToVector3d(str, separator string) (Vector3d, error) {
	elems := strings.Split(str, separator)
	if len(elems) != 3 {
		return Vector3d{}, fmt.Errorf("can't convert string %q (length %d) to Vector3d", str, len(elems))
	}
	var v Vector3d
	var err error
	for i, elem := range elems {
		v[i], err = strconv.ParseFloat(strings.TrimSpace(elem), 64)
		if err != nil {
			return Vector3d{}, err
		}
	}
	return v, nil
}

// VectorFromSlice returns a Vector3d from a slice with exactly three elements.
func VectorFromSlice(f []float64) (Vector3d, error) {
	if len(f) != 3 {
		return Vector3d{}, Validationf("expected 3 coordinates, got %d", len(f))
	}
	return Vector3d{f[0], f[1], f[2]}, nil
}

// Distance returns the distance between two points a and b.
func (v Vector3d) Distance(x Vector3d) float64 {
	dx := x[0] - v[0]
	dy := x[1] - v[1]
	dz := x[2] - v[2]
	return math.Sqrt(dx*dx + dy*dy + dz*dz)
}

func (v Vector3d) Subtract(x Vector3d) Vector3d {
	return Vector3d{v[0] - x[0], v[1] - x[1], v[2] - x[2]}
}

func (v Vector3d) Add(x Vector3d) Vector3d {
	return Vector3d{v[0] + x[0], v[1] + x[1], v[2] + x[2]}
}

// Mult returns the elementwise product of two vectors.
func (v Vector3d) Mult(x Vector3d) Vector3d {
	return Vector3d{v[0] * x[0], v[1] * x[1], v[2] * x[2]}
}

func (v Vector3d) DivideScalar(x float64) Vector3d {
	return Vector3d{v[0] / x, v[1] / x, v[2] / x}
}

// Slice returns the vector as a newly allocated slice.
func (v Vector3d) Slice() []float64 {
	return []float64{v[0], v[1], v[2]}
}

func (v Vector3d) String() string {
	return fmt.Sprintf("(%g,%g,%g)", v[0], v[1], v[2])
}

// NdFloat64 is an N-dimensional slice of float64, e.g., a voxel resolution.
type NdFloat64 []float64

// StringToNdFloat64 parses a string of format "%f<sep>%f<sep>..." into a slice of float64.
func StringToNdFloat64(str, separator string) (nd NdFloat64, err error) {
	elems := strings.Split(str, separator)
	nd = make(NdFloat64, len(elems))
	for i, elem := range elems {
		nd[i], err = strconv.ParseFloat(strings.TrimSpace(elem), 64)
		if err != nil {
			return nil, err
		}
	}
	return
}

// Duplicate returns a copy, or nil for a nil receiver.
func (n NdFloat64) Duplicate() NdFloat64 {
	if n == nil {
		return nil
	}
	dup := make(NdFloat64, len(n))
	copy(dup, n)
	return dup
}

// Equals returns true if both have identical elements.
func (n NdFloat64) Equals(x NdFloat64) bool {
	if len(n) != len(x) {
		return false
	}
	for i := range n {
		if n[i] != x[i] {
			return false
		}
	}
	return true
}

// Ratio returns the elementwise quotient n / denom.  A zero component in the
// denominator is an ErrPrecondition rather than a silent infinity.
func (n NdFloat64) Ratio(denom NdFloat64) (NdFloat64, error) {
	if len(n) != len(denom) {
		return nil, Validationf("can't divide %d-d resolution by %d-d resolution", len(n), len(denom))
	}
	out := make(NdFloat64, len(n))
	for i := range n {
		if denom[i] == 0 {
			return nil, Preconditionf("zero component in resolution %v at dimension %d", []float64(denom), i)
		}
		out[i] = n[i] / denom[i]
	}
	return out, nil
}
