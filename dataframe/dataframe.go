/*
	Package dataframe provides tabular data support over Apache Arrow records: column lookup,
	conversion of typed arrow arrays into plain Go values, construction of records from Go
	slices, and reading/writing Arrow IPC files.
*/
package dataframe

import (
	"fmt"

	"github.com/apache/arrow/go/v14/arrow"
	"github.com/apache/arrow/go/v14/arrow/array"
	"github.com/apache/arrow/go/v14/arrow/memory"

	"github.com/janelia-flyem/ngstate/ngstate"
)

// Pool is the allocator used for all records built by this package.
var Pool memory.Allocator = memory.NewGoAllocator()

// Column gives a named column to be built into a record.  Values may be one of
// []string, []int64, []int32, []uint64, []uint32, []float64, []float32, []bool,
// []ngstate.Vector3d, [][]ngstate.Vector3d, [][]float64, [][]uint64, [][]string or []interface{}.
// An []interface{} column infers its type from its first non-nil element and
// stores nil elements as nulls.
type Column struct {
	Name   string
	Values interface{}
}

// New builds a record from columns of equal length.
func New(cols ...Column) (arrow.Record, error) {
	fields := make([]arrow.Field, len(cols))
	arrays := make([]arrow.Array, len(cols))
	defer func() {
		for _, arr := range arrays {
			if arr != nil {
				arr.Release()
			}
		}
	}()
	nrows := -1
	for i, col := range cols {
		arr, err := buildArray(col.Values)
		if err != nil {
			return nil, fmt.Errorf("column %q: %w", col.Name, err)
		}
		arrays[i] = arr
		if nrows >= 0 && arr.Len() != nrows {
			return nil, ngstate.Validationf("column %q has %d rows, expected %d", col.Name, arr.Len(), nrows)
		}
		nrows = arr.Len()
		fields[i] = arrow.Field{Name: col.Name, Type: arr.DataType(), Nullable: true}
	}
	if nrows < 0 {
		nrows = 0
	}
	schema := arrow.NewSchema(fields, nil)
	return array.NewRecord(schema, arrays, int64(nrows)), nil
}

func buildArray(values interface{}) (arrow.Array, error) {
	switch v := values.(type) {
	case []string:
		b := array.NewStringBuilder(Pool)
		defer b.Release()
		b.AppendValues(v, nil)
		return b.NewArray(), nil
	case []int64:
		b := array.NewInt64Builder(Pool)
		defer b.Release()
		b.AppendValues(v, nil)
		return b.NewArray(), nil
	case []int32:
		b := array.NewInt32Builder(Pool)
		defer b.Release()
		b.AppendValues(v, nil)
		return b.NewArray(), nil
	case []uint64:
		b := array.NewUint64Builder(Pool)
		defer b.Release()
		b.AppendValues(v, nil)
		return b.NewArray(), nil
	case []uint32:
		b := array.NewUint32Builder(Pool)
		defer b.Release()
		b.AppendValues(v, nil)
		return b.NewArray(), nil
	case []float64:
		b := array.NewFloat64Builder(Pool)
		defer b.Release()
		b.AppendValues(v, nil)
		return b.NewArray(), nil
	case []float32:
		b := array.NewFloat32Builder(Pool)
		defer b.Release()
		b.AppendValues(v, nil)
		return b.NewArray(), nil
	case []bool:
		b := array.NewBooleanBuilder(Pool)
		defer b.Release()
		b.AppendValues(v, nil)
		return b.NewArray(), nil
	case []ngstate.Vector3d:
		lists := make([][]float64, len(v))
		for i, vec := range v {
			lists[i] = vec.Slice()
		}
		return buildArray(lists)
	case [][]ngstate.Vector3d:
		b := array.NewListBuilder(Pool, arrow.ListOf(arrow.PrimitiveTypes.Float64))
		defer b.Release()
		pb := b.ValueBuilder().(*array.ListBuilder)
		vb := pb.ValueBuilder().(*array.Float64Builder)
		for _, path := range v {
			if path == nil {
				b.AppendNull()
				continue
			}
			b.Append(true)
			for _, p := range path {
				pb.Append(true)
				vb.AppendValues(p.Slice(), nil)
			}
		}
		return b.NewArray(), nil
	case [][]float64:
		b := array.NewListBuilder(Pool, arrow.PrimitiveTypes.Float64)
		defer b.Release()
		vb := b.ValueBuilder().(*array.Float64Builder)
		for _, list := range v {
			if list == nil {
				b.AppendNull()
				continue
			}
			b.Append(true)
			vb.AppendValues(list, nil)
		}
		return b.NewArray(), nil
	case [][]uint64:
		b := array.NewListBuilder(Pool, arrow.PrimitiveTypes.Uint64)
		defer b.Release()
		vb := b.ValueBuilder().(*array.Uint64Builder)
		for _, list := range v {
			if list == nil {
				b.AppendNull()
				continue
			}
			b.Append(true)
			vb.AppendValues(list, nil)
		}
		return b.NewArray(), nil
	case [][]string:
		b := array.NewListBuilder(Pool, arrow.BinaryTypes.String)
		defer b.Release()
		vb := b.ValueBuilder().(*array.StringBuilder)
		for _, list := range v {
			if list == nil {
				b.AppendNull()
				continue
			}
			b.Append(true)
			vb.AppendValues(list, nil)
		}
		return b.NewArray(), nil
	case []interface{}:
		return buildNullable(v)
	}
	return nil, ngstate.Typef("unsupported column values of type %T", values)
}

// buildNullable builds a column from loosely typed values where nil is a null.
func buildNullable(values []interface{}) (arrow.Array, error) {
	var proto interface{}
	for _, v := range values {
		if v != nil {
			proto = v
			break
		}
	}
	valid := make([]bool, len(values))
	for i, v := range values {
		valid[i] = v != nil
	}
	switch proto.(type) {
	case nil, string:
		b := array.NewStringBuilder(Pool)
		defer b.Release()
		for i, v := range values {
			if !valid[i] {
				b.AppendNull()
				continue
			}
			s, ok := v.(string)
			if !ok {
				return nil, ngstate.Typef("mixed column types: %T among strings", v)
			}
			b.Append(s)
		}
		return b.NewArray(), nil
	case bool:
		b := array.NewBooleanBuilder(Pool)
		defer b.Release()
		for i, v := range values {
			if !valid[i] {
				b.AppendNull()
				continue
			}
			x, ok := v.(bool)
			if !ok {
				return nil, ngstate.Typef("mixed column types: %T among bools", v)
			}
			b.Append(x)
		}
		return b.NewArray(), nil
	case int, int64, int32, uint64, uint32:
		b := array.NewInt64Builder(Pool)
		defer b.Release()
		for i, v := range values {
			if !valid[i] {
				b.AppendNull()
				continue
			}
			n, err := ngstate.Normalize(v)
			if err != nil {
				return nil, err
			}
			switch x := n.(type) {
			case int64:
				b.Append(x)
			case uint64:
				b.Append(int64(x))
			default:
				return nil, ngstate.Typef("mixed column types: %T among integers", v)
			}
		}
		return b.NewArray(), nil
	default:
		b := array.NewFloat64Builder(Pool)
		defer b.Release()
		for i, v := range values {
			if !valid[i] {
				b.AppendNull()
				continue
			}
			f, err := ngstate.AsFloat(v)
			if err != nil {
				return nil, err
			}
			b.Append(f)
		}
		return b.NewArray(), nil
	}
}
