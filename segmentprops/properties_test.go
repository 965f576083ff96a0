package segmentprops

import (
	"encoding/json"
	"errors"
	"reflect"
	"testing"

	"github.com/janelia-flyem/ngstate/dataframe"
	"github.com/janelia-flyem/ngstate/ngstate"
)

func makeProperties(t *testing.T) *SegmentProperties {
	tags, err := NewTagProperty([]string{"#excitatory", "inhibitory cell"}, [][]int{{0}, {1}, {}}, nil)
	if err != nil {
		t.Fatalf("unable to make tag property: %v\n", err)
	}
	size, err := NewNumberProperty("size", []float64{1.5, 2, 3.25})
	if err != nil {
		t.Fatalf("unable to make number property: %v\n", err)
	}
	count, err := NewNumberProperty("count", []int64{1, 200, 3})
	if err != nil {
		t.Fatalf("unable to make number property: %v\n", err)
	}
	region := NewStringProperty("region", []string{"a", "b", "c"})
	region.Description = "brain region"
	props, err := New([]uint64{10, 20, 30},
		NewLabelProperty([]string{"cell a", "cell b", "cell c"}),
		NewDescriptionProperty([]string{"first", "second", "third"}),
		tags, region, size, count,
	)
	if err != nil {
		t.Fatalf("unable to make segment properties: %v\n", err)
	}
	return props
}

func TestRoundTrip(t *testing.T) {
	props := makeProperties(t)
	if props.Tags.Tags[0] != "excitatory" || props.Tags.Tags[1] != "inhibitory_cell" {
		t.Errorf("tags not cleaned: %v\n", props.Tags.Tags)
	}

	d := props.ToDict()
	if d["@type"] != DocumentType {
		t.Errorf("bad @type: %v\n", d["@type"])
	}
	if err := Validate(d); err != nil {
		t.Fatalf("document failed validation: %v\n", err)
	}
	decoded, err := FromDict(d)
	if err != nil {
		t.Fatalf("unable to decode: %v\n", err)
	}
	if decoded.Len() != props.Len() {
		t.Errorf("expected %d ids after round trip, got %d\n", props.Len(), decoded.Len())
	}
	if len(decoded.Properties()) != len(props.Properties()) {
		t.Errorf("expected %d properties after round trip, got %d\n", len(props.Properties()), len(decoded.Properties()))
	}
	if !reflect.DeepEqual(decoded.PropertyDescription(), props.PropertyDescription()) {
		t.Errorf("property description changed: %v -> %v\n", props.PropertyDescription(), decoded.PropertyDescription())
	}
	if decoded.Strings[0].Description != "brain region" {
		t.Errorf("lost string description\n")
	}
	if !reflect.DeepEqual(decoded.Tags.Values, [][]int{{0}, {1}, {}}) {
		t.Errorf("bad tag values after round trip: %v\n", decoded.Tags.Values)
	}

	data, err := json.Marshal(props)
	if err != nil {
		t.Fatalf("unable to marshal: %v\n", err)
	}
	fromJSON, err := FromJSON(data)
	if err != nil {
		t.Fatalf("unable to decode JSON: %v\n", err)
	}
	if !reflect.DeepEqual(fromJSON.IDs, []uint64{10, 20, 30}) {
		t.Errorf("bad ids: %v\n", fromJSON.IDs)
	}
}

func TestPropertyDescription(t *testing.T) {
	desc := makeProperties(t).PropertyDescription()
	if len(desc) != 6 {
		t.Fatalf("expected 6 properties, got %d\n", len(desc))
	}
	expected := []PropertyInfo{
		{ID: "label", Type: LabelType},
		{ID: "description", Type: DescriptionType},
		{ID: "tags", Type: TagsType},
		{ID: "region", Type: StringType},
		{ID: "size", Type: NumberType, DataType: "float32"},
		{ID: "count", Type: NumberType, DataType: "int32"},
	}
	if !reflect.DeepEqual(desc, expected) {
		t.Errorf("expected %v, got %v\n", expected, desc)
	}
}

func TestSchemaRejects(t *testing.T) {
	bad := []string{
		`{"@type": "something_else", "inline": {"ids": [], "properties": []}}`,
		`{"@type": "neuroglancer_segment_properties", "inline": {"ids": ["abc"], "properties": []}}`,
		`{"@type": "neuroglancer_segment_properties", "inline": {"ids": ["1"], "properties": [{"id": "n", "type": "number", "values": [1]}]}}`,
	}
	for i, doc := range bad {
		if _, err := FromJSON([]byte(doc)); !errors.Is(err, ngstate.ErrValidation) {
			t.Errorf("document %d: expected validation error, got %v\n", i, err)
		}
	}
}

func TestLengthMismatch(t *testing.T) {
	_, err := New([]uint64{1, 2, 3}, NewLabelProperty([]string{"a", "b"}))
	if !errors.Is(err, ngstate.ErrValidation) {
		t.Errorf("expected validation error for short label property, got %v\n", err)
	}
	_, err = New([]uint64{1}, NewLabelProperty([]string{"a"}), NewLabelProperty([]string{"b"}))
	if !errors.Is(err, ngstate.ErrValidation) {
		t.Errorf("expected validation error for two label properties, got %v\n", err)
	}
	if _, err := NewTagProperty([]string{"a"}, [][]int{{1}}, nil); !errors.Is(err, ngstate.ErrValidation) {
		t.Errorf("expected validation error for out of range tag index, got %v\n", err)
	}
	if _, err := NewTagProperty([]string{"a b", "a_b"}, nil, nil); !errors.Is(err, ngstate.ErrValidation) {
		t.Errorf("expected validation error for duplicate cleaned tags, got %v\n", err)
	}
}

func TestNumberTypes(t *testing.T) {
	tests := []struct {
		values   interface{}
		dataType []ngstate.DataType
		expected ngstate.DataType
		bad      bool
	}{
		{values: []int64{1, 2}, expected: ngstate.T_int32},
		{values: []uint64{1, 2}, expected: ngstate.T_uint32},
		{values: []int64{1 << 40}, expected: ngstate.T_float32},
		{values: []float64{0.5}, expected: ngstate.T_float32},
		{values: []uint8{7}, expected: ngstate.T_uint8},
		{values: []interface{}{1, -2}, expected: ngstate.T_int32},
		{values: []int64{300}, dataType: []ngstate.DataType{ngstate.T_int16}, expected: ngstate.T_int16},
		{values: []int64{300}, dataType: []ngstate.DataType{ngstate.T_uint8}, bad: true},
		{values: []float64{1}, dataType: []ngstate.DataType{ngstate.T_int32}, bad: true},
		{values: []float64{1}, dataType: []ngstate.DataType{ngstate.T_float64}, bad: true},
		{values: []interface{}{1, nil}, bad: true},
		{values: "abc", bad: true},
	}
	for i, tc := range tests {
		p, err := NewNumberProperty("n", tc.values, tc.dataType...)
		if tc.bad {
			if err == nil {
				t.Errorf("test %d: expected error, got type %s\n", i, p.DataType)
			}
			continue
		}
		if err != nil {
			t.Errorf("test %d: unexpected error: %v\n", i, err)
			continue
		}
		if p.DataType != tc.expected {
			t.Errorf("test %d: expected %s, got %s\n", i, tc.expected, p.DataType)
		}
	}
}

func TestFromDataframe(t *testing.T) {
	rec, err := dataframe.New(
		dataframe.Column{Name: "pt_root_id", Values: []uint64{1, 2, 3}},
		dataframe.Column{Name: "cell_type", Values: []string{"chc", "basket", "pyr"}},
		dataframe.Column{Name: "size", Values: []float64{1.5, 2, 3}},
		dataframe.Column{Name: "count", Values: []int64{1, 2, 3}},
		dataframe.Column{Name: "region", Values: []interface{}{"a", nil, "b"}},
		dataframe.Column{Name: "layer", Values: []interface{}{"L1", "L2", nil}},
		dataframe.Column{Name: "is_a", Values: []bool{true, false, true}},
		dataframe.Column{Name: "is_b", Values: []bool{false, false, true}},
	)
	if err != nil {
		t.Fatalf("unable to build record: %v\n", err)
	}
	defer rec.Release()

	props, err := FromDataframe(rec, FrameOptions{
		LabelCol:        "cell_type",
		NumberCols:      []string{"size", "count"},
		TagValueCols:    []string{"region", "layer"},
		TagDescriptions: map[string]string{"a": "region a"},
	})
	if err != nil {
		t.Fatalf("unable to build properties: %v\n", err)
	}
	if props.Len() != 3 || props.Label == nil || len(props.Numbers) != 2 {
		t.Fatalf("bad properties: %v\n", props.PropertyDescription())
	}
	if props.Numbers[0].DataType != ngstate.T_float32 || props.Numbers[1].DataType != ngstate.T_int32 {
		t.Errorf("bad number types: %s, %s\n", props.Numbers[0].DataType, props.Numbers[1].DataType)
	}
	if !reflect.DeepEqual(props.Tags.Tags, []string{"a", "b", "L1", "L2"}) {
		t.Errorf("bad tag vocabulary: %v\n", props.Tags.Tags)
	}
	if !reflect.DeepEqual(props.Tags.Values, [][]int{{0, 2}, {3}, {1}}) {
		t.Errorf("bad tag values: %v\n", props.Tags.Values)
	}
	if !reflect.DeepEqual(props.Tags.TagDescriptions, []string{"region a", "b", "L1", "L2"}) {
		t.Errorf("bad tag descriptions: %v\n", props.Tags.TagDescriptions)
	}

	props, err = FromDataframe(rec, FrameOptions{TagBoolCols: []string{"is_a", "is_b"}})
	if err != nil {
		t.Fatalf("unable to build bool tag properties: %v\n", err)
	}
	if !reflect.DeepEqual(props.Tags.Values, [][]int{{0}, {}, {0, 1}}) {
		t.Errorf("bad bool tag values: %v\n", props.Tags.Values)
	}

	_, err = FromDataframe(rec, FrameOptions{TagValueCols: []string{"region"}, TagBoolCols: []string{"is_a"}})
	if !errors.Is(err, ngstate.ErrValidation) {
		t.Errorf("expected validation error for both tag options, got %v\n", err)
	}
	_, err = FromDataframe(rec, FrameOptions{TagValueCols: []string{"region", "region"}})
	if !errors.Is(err, ngstate.ErrValidation) {
		t.Errorf("expected validation error for repeated tags across columns, got %v\n", err)
	}
	_, err = FromDataframe(rec, FrameOptions{NumberCols: []string{"cell_type"}})
	if !errors.Is(err, ngstate.ErrType) {
		t.Errorf("expected type error for string number column, got %v\n", err)
	}
	_, err = FromDataframe(rec, FrameOptions{IDCol: "nope"})
	if !errors.Is(err, ngstate.ErrNotFound) {
		t.Errorf("expected not found error for missing id column, got %v\n", err)
	}
}
