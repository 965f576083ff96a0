package dataframe

import (
	"errors"
	"path/filepath"
	"reflect"
	"testing"

	"github.com/janelia-flyem/ngstate/ngstate"
)

func TestNewAndValues(t *testing.T) {
	rec, err := New(
		Column{Name: "pt_root_id", Values: []uint64{10, 20}},
		Column{Name: "pt_position", Values: []ngstate.Vector3d{{1, 2, 3}, {4, 5, 6}}},
		Column{Name: "cell_type", Values: []interface{}{"chc", nil}},
		Column{Name: "size", Values: []float32{1.5, 2}},
		Column{Name: "tags", Values: [][]string{{"a", "b"}, nil}},
	)
	if err != nil {
		t.Fatalf("unable to build record: %v\n", err)
	}
	defer rec.Release()

	if rec.NumRows() != 2 || rec.NumCols() != 5 {
		t.Fatalf("expected 2x5 record, got %dx%d\n", rec.NumRows(), rec.NumCols())
	}
	if !HasColumn(rec, "size") || HasColumn(rec, "nope") {
		t.Errorf("bad HasColumn results\n")
	}
	if _, err := ColumnArray(rec, "nope"); !errors.Is(err, ngstate.ErrNotFound) {
		t.Errorf("expected not found error, got %v\n", err)
	}

	ids, err := ColumnValues(rec, "pt_root_id")
	if err != nil {
		t.Fatalf("bad column values: %v\n", err)
	}
	if !reflect.DeepEqual(ids, []interface{}{uint64(10), uint64(20)}) {
		t.Errorf("bad ids: %v\n", ids)
	}
	pts, _ := ColumnValues(rec, "pt_position")
	expected := []interface{}{
		[]interface{}{1.0, 2.0, 3.0},
		[]interface{}{4.0, 5.0, 6.0},
	}
	if !reflect.DeepEqual(pts, expected) {
		t.Errorf("expected %v, got %v\n", expected, pts)
	}
	types, _ := ColumnValues(rec, "cell_type")
	if !reflect.DeepEqual(types, []interface{}{"chc", nil}) {
		t.Errorf("bad nullable strings: %v\n", types)
	}
	tags, _ := ColumnValues(rec, "tags")
	if !reflect.DeepEqual(tags, []interface{}{[]interface{}{"a", "b"}, nil}) {
		t.Errorf("bad list of strings: %v\n", tags)
	}
	col, _ := ColumnArray(rec, "size")
	if dt, ok := DataType(col); !ok || dt != ngstate.T_float32 {
		t.Errorf("expected float32 column, got %s\n", dt)
	}
}

func TestMismatchedColumns(t *testing.T) {
	_, err := New(
		Column{Name: "a", Values: []int64{1, 2}},
		Column{Name: "b", Values: []int64{1}},
	)
	if !errors.Is(err, ngstate.ErrValidation) {
		t.Errorf("expected validation error on mismatched column lengths, got %v\n", err)
	}
}

func TestIPCRoundTrip(t *testing.T) {
	rec, err := New(
		Column{Name: "id", Values: []int64{1, 2, 3}},
		Column{Name: "label", Values: []string{"a", "b", "c"}},
	)
	if err != nil {
		t.Fatalf("unable to build record: %v\n", err)
	}
	defer rec.Release()

	fname := filepath.Join(t.TempDir(), "table.arrow")
	n, err := WriteFile(fname, rec)
	if err != nil {
		t.Fatalf("unable to write arrow file: %v\n", err)
	}
	if n == 0 {
		t.Errorf("expected non-zero file size\n")
	}
	rec2, err := ReadFile(fname)
	if err != nil {
		t.Fatalf("unable to read arrow file: %v\n", err)
	}
	defer rec2.Release()
	labels, err := ColumnValues(rec2, "label")
	if err != nil {
		t.Fatalf("bad column values: %v\n", err)
	}
	if !reflect.DeepEqual(labels, []interface{}{"a", "b", "c"}) {
		t.Errorf("bad labels after round trip: %v\n", labels)
	}
}
