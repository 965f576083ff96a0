package statebuilder

import (
	"gonum.org/v1/gonum/mat"

	"github.com/janelia-flyem/ngstate/ngstate"
)

// CoordSpaceTransform maps an input coordinate space into an output space by an
// affine matrix of N rows and N+1 columns, where N is the output rank.  Any field
// may be nil; a nil matrix is the identity.
type CoordSpaceTransform struct {
	Input  *CoordSpace
	Output *CoordSpace
	Matrix *mat.Dense
}

// NewCoordSpaceTransform returns a transform after validating the matrix shape.
// The matrix is given row by row and may be nil.
func NewCoordSpaceTransform(input, output *CoordSpace, matrix [][]float64) (*CoordSpaceTransform, error) {
	t := &CoordSpaceTransform{Input: input, Output: output}
	if len(matrix) == 0 {
		return t, nil
	}
	rows, cols := len(matrix), len(matrix[0])
	if cols != rows+1 {
		return nil, ngstate.Validationf("transform matrix must be N x (N+1), got %d x %d", rows, cols)
	}
	if output != nil && output.Rank() != rows {
		return nil, ngstate.Validationf("transform matrix has %d rows but output space has rank %d", rows, output.Rank())
	}
	if input != nil && input.Rank() != rows {
		return nil, ngstate.Validationf("transform matrix has %d rows but input space has rank %d", rows, input.Rank())
	}
	data := make([]float64, 0, rows*cols)
	for i, row := range matrix {
		if len(row) != cols {
			return nil, ngstate.Validationf("transform matrix row %d has %d columns, expected %d", i, len(row), cols)
		}
		data = append(data, row...)
	}
	t.Matrix = mat.NewDense(rows, cols, data)
	return t, nil
}

// Apply maps a point from the input space into the output space.
func (t *CoordSpaceTransform) Apply(point []float64) ([]float64, error) {
	if t.Matrix == nil {
		return append([]float64{}, point...), nil
	}
	rows, cols := t.Matrix.Dims()
	if len(point) != cols-1 {
		return nil, ngstate.Validationf("can't apply %d x %d transform to %d-d point", rows, cols, len(point))
	}
	linear := t.Matrix.Slice(0, rows, 0, cols-1)
	var out mat.VecDense
	out.MulVec(linear, mat.NewVecDense(len(point), append([]float64{}, point...)))
	out.AddVec(&out, t.Matrix.ColView(cols-1))
	return out.RawVector().Data, nil
}

// ToWire returns the viewer's transform object, or nil if there is no output space.
func (t *CoordSpaceTransform) ToWire() (map[string]interface{}, error) {
	if t == nil || t.Output == nil {
		return nil, nil
	}
	out, err := t.Output.ToWire()
	if err != nil {
		return nil, err
	}
	wire := map[string]interface{}{"outputDimensions": out}
	if t.Input != nil {
		in, err := t.Input.ToWire()
		if err != nil {
			return nil, err
		}
		wire["inputDimensions"] = in
	}
	if t.Matrix != nil {
		rows, _ := t.Matrix.Dims()
		m := make([][]float64, rows)
		for i := range m {
			m[i] = mat.Row(nil, i, t.Matrix)
		}
		wire["matrix"] = m
	}
	return wire, nil
}

func (t *CoordSpaceTransform) clone() *CoordSpaceTransform {
	if t == nil {
		return nil
	}
	dup := *t
	if t.Matrix != nil {
		dup.Matrix = mat.DenseCopyOf(t.Matrix)
	}
	return &dup
}
