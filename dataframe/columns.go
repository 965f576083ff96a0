package dataframe

import (
	"github.com/apache/arrow/go/v14/arrow"
	"github.com/apache/arrow/go/v14/arrow/array"

	"github.com/janelia-flyem/ngstate/ngstate"
)

// HasColumn returns true if the record has a column with the given name.
func HasColumn(rec arrow.Record, name string) bool {
	return len(rec.Schema().FieldIndices(name)) > 0
}

// ColumnArray returns the first column with the given name.
func ColumnArray(rec arrow.Record, name string) (arrow.Array, error) {
	indices := rec.Schema().FieldIndices(name)
	if len(indices) == 0 {
		return nil, ngstate.NotFoundf("no column %q in table", name)
	}
	return rec.Column(indices[0]), nil
}

// ColumnValues returns all values of the named column as plain Go values.
func ColumnValues(rec arrow.Record, name string) ([]interface{}, error) {
	arr, err := ColumnArray(rec, name)
	if err != nil {
		return nil, err
	}
	return Values(arr)
}

// Values converts every element of an arrow array into plain Go values.
func Values(arr arrow.Array) ([]interface{}, error) {
	out := make([]interface{}, arr.Len())
	for i := range out {
		v, err := Value(arr, i)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

// Value converts the i-th element of an arrow array into a plain Go value
// drawn from int64, uint64, float64, string, bool, nil and []interface{}.
func Value(arr arrow.Array, i int) (interface{}, error) {
	if arr.IsNull(i) {
		return nil, nil
	}
	switch a := arr.(type) {
	case *array.Int8:
		return int64(a.Value(i)), nil
	case *array.Int16:
		return int64(a.Value(i)), nil
	case *array.Int32:
		return int64(a.Value(i)), nil
	case *array.Int64:
		return a.Value(i), nil
	case *array.Uint8:
		return uint64(a.Value(i)), nil
	case *array.Uint16:
		return uint64(a.Value(i)), nil
	case *array.Uint32:
		return uint64(a.Value(i)), nil
	case *array.Uint64:
		return a.Value(i), nil
	case *array.Float32:
		return ngstate.Normalize(a.Value(i))
	case *array.Float64:
		return ngstate.Normalize(a.Value(i))
	case *array.String:
		return a.Value(i), nil
	case *array.LargeString:
		return a.Value(i), nil
	case *array.Boolean:
		return a.Value(i), nil
	case *array.Dictionary:
		return Value(a.Dictionary(), a.GetValueIndex(i))
	case *array.List:
		start, end := a.ValueOffsets(i)
		return sliceValues(a.ListValues(), start, end)
	case *array.LargeList:
		start, end := a.ValueOffsets(i)
		return sliceValues(a.ListValues(), start, end)
	case *array.FixedSizeList:
		n := int64(a.DataType().(*arrow.FixedSizeListType).Len())
		start := int64(a.Data().Offset()+i) * n
		return sliceValues(a.ListValues(), start, start+n)
	}
	return nil, ngstate.Typef("unsupported arrow column type %s", arr.DataType())
}

func sliceValues(values arrow.Array, start, end int64) ([]interface{}, error) {
	out := make([]interface{}, 0, end-start)
	for j := start; j < end; j++ {
		v, err := Value(values, int(j))
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}

// DataType returns the numeric data type of an arrow column, or false if the
// column is not numeric.
func DataType(arr arrow.Array) (ngstate.DataType, bool) {
	dt := arr.DataType()
	if dict, ok := dt.(*arrow.DictionaryType); ok {
		dt = dict.ValueType
	}
	switch dt.ID() {
	case arrow.UINT8:
		return ngstate.T_uint8, true
	case arrow.INT8:
		return ngstate.T_int8, true
	case arrow.UINT16:
		return ngstate.T_uint16, true
	case arrow.INT16:
		return ngstate.T_int16, true
	case arrow.UINT32:
		return ngstate.T_uint32, true
	case arrow.INT32:
		return ngstate.T_int32, true
	case arrow.UINT64:
		return ngstate.T_uint64, true
	case arrow.INT64:
		return ngstate.T_int64, true
	case arrow.FLOAT32:
		return ngstate.T_float32, true
	case arrow.FLOAT64:
		return ngstate.T_float64, true
	}
	return 0, false
}

// IsBool returns true for boolean columns.
func IsBool(arr arrow.Array) bool {
	return arr.DataType().ID() == arrow.BOOL
}
