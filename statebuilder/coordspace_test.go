package statebuilder

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/janelia-flyem/ngstate/ngstate"
)

func TestCoordSpaceValidation(t *testing.T) {
	if _, err := NewCoordSpace([]float64{4, 4}); !errors.Is(err, ngstate.ErrValidation) {
		t.Errorf("expected validation error for 2 resolutions and 3 names, got %v\n", err)
	}
	if _, err := NewCoordSpace([]float64{4, 4, 40}, WithUnits("nm", "nm")); !errors.Is(err, ngstate.ErrValidation) {
		t.Errorf("expected validation error for 2 units and 3 names, got %v\n", err)
	}
	if _, err := NewCoordSpace([]float64{4, 4, 40}, WithUnits("parsec")); !errors.Is(err, ngstate.ErrValidation) {
		t.Errorf("expected validation error for unknown unit, got %v\n", err)
	}
	empty, err := NewCoordSpace(nil, WithNames(), WithUnits())
	if err != nil {
		t.Fatalf("empty coordinate space should be allowed: %v\n", err)
	}
	b, err := json.Marshal(empty)
	if err != nil {
		t.Fatalf("can't marshal empty coordinate space: %v\n", err)
	}
	if string(b) != "{}" {
		t.Errorf("expected {} for empty dimensions, got %s\n", string(b))
	}
}

func TestCoordSpaceWire(t *testing.T) {
	cs, err := NewCoordSpace([]float64{4, 4, 40})
	if err != nil {
		t.Fatalf("bad coordinate space: %v\n", err)
	}
	b, err := json.Marshal(cs)
	if err != nil {
		t.Fatalf("can't marshal: %v\n", err)
	}
	expected := `{"x":[4e-9,"m"],"y":[4e-9,"m"],"z":[4e-8,"m"]}`
	if string(b) != expected {
		t.Errorf("expected %s, got %s\n", expected, string(b))
	}

	var back CoordSpace
	if err := json.Unmarshal(b, &back); err != nil {
		t.Fatalf("can't unmarshal dimensions: %v\n", err)
	}
	if !back.Equals(cs) {
		t.Errorf("round trip gave %v %v %v\n", back.Names(), back.Resolution(), back.Units())
	}

	zyx, err := NewCoordSpace([]float64{40, 8, 8}, WithNames("z", "y", "x"), WithUnits("nm"))
	if err != nil {
		t.Fatalf("bad coordinate space: %v\n", err)
	}
	b, _ = json.Marshal(zyx)
	if string(b) != `{"z":[4e-8,"m"],"y":[8e-9,"m"],"x":[8e-9,"m"]}` {
		t.Errorf("axis order not preserved: %s\n", string(b))
	}

	secs, err := NewCoordSpace([]float64{1, 2}, WithNames("x", "t"), WithUnits("um", "ms"))
	if err != nil {
		t.Fatalf("bad coordinate space: %v\n", err)
	}
	b, _ = json.Marshal(secs)
	if string(b) != `{"x":[0.000001,"m"],"t":[0.002,"s"]}` {
		t.Errorf("bad base unit conversion: %s\n", string(b))
	}
}

func TestDimensionsFromMap(t *testing.T) {
	var m map[string]interface{}
	if err := json.Unmarshal([]byte(`{"z":[4e-8,"m"],"x":[4e-9,"m"],"y":[4e-9,"m"],"t":[1,"s"]}`), &m); err != nil {
		t.Fatal(err)
	}
	dims, err := DimensionsFromMap(m, DefaultAxes...)
	if err != nil {
		t.Fatalf("bad dimensions: %v\n", err)
	}
	names := []string{"x", "y", "z", "t"}
	if len(dims) != 4 {
		t.Fatalf("expected 4 dimensions, got %v\n", dims)
	}
	for i, d := range dims {
		if d.Name != names[i] {
			t.Errorf("expected dimension %d to be %s, got %s\n", i, names[i], d.Name)
		}
	}
	cs, err := CoordSpaceFromWire(dims)
	if err != nil {
		t.Fatalf("can't convert: %v\n", err)
	}
	if !cs.Resolution().Equals(ngstate.NdFloat64{4, 4, 40, 1}) {
		t.Errorf("bad resolution from wire: %v\n", cs.Resolution())
	}
	if cs.Units()[3] != "s" || cs.Units()[0] != "nm" {
		t.Errorf("bad units from wire: %v\n", cs.Units())
	}
}

func TestTransform(t *testing.T) {
	out, _ := NewCoordSpace([]float64{8, 8, 40})
	if _, err := NewCoordSpaceTransform(nil, out, [][]float64{{1, 0, 0}, {0, 1, 0}}); !errors.Is(err, ngstate.ErrValidation) {
		t.Errorf("expected validation error on bad matrix shape, got %v\n", err)
	}
	tr, err := NewCoordSpaceTransform(nil, out, [][]float64{
		{2, 0, 0, 10},
		{0, 2, 0, 20},
		{0, 0, 1, 30},
	})
	if err != nil {
		t.Fatalf("bad transform: %v\n", err)
	}
	p, err := tr.Apply([]float64{1, 2, 3})
	if err != nil {
		t.Fatalf("can't apply transform: %v\n", err)
	}
	if !ngstate.NdFloat64(p).Equals(ngstate.NdFloat64{12, 24, 33}) {
		t.Errorf("expected [12 24 33], got %v\n", p)
	}
	wire, err := tr.ToWire()
	if err != nil {
		t.Fatalf("can't serialize transform: %v\n", err)
	}
	if _, found := wire["outputDimensions"]; !found {
		t.Errorf("expected outputDimensions in %v\n", wire)
	}
	if _, found := wire["inputDimensions"]; found {
		t.Errorf("unexpected inputDimensions in %v\n", wire)
	}
	if m, ok := wire["matrix"].([][]float64); !ok || m[1][3] != 20 {
		t.Errorf("bad matrix in wire transform: %v\n", wire["matrix"])
	}
	empty := &CoordSpaceTransform{}
	if w, err := empty.ToWire(); w != nil || err != nil {
		t.Errorf("expected nil wire transform without output, got %v %v\n", w, err)
	}
}

func TestSourceWire(t *testing.T) {
	s := NewSource("precomputed://gs://bucket/seg")
	w, err := s.ToWire()
	if err != nil || w != "precomputed://gs://bucket/seg" {
		t.Errorf("plain source should serialize to its url, got %v (%v)\n", w, err)
	}
	s.Resolution = ngstate.NdFloat64{8, 8, 40}
	s.DisableDefaultSubsources = true
	s.Subsources = map[string]bool{"mesh": true}
	w, err = s.ToWire()
	if err != nil {
		t.Fatalf("can't serialize source: %v\n", err)
	}
	m := w.(map[string]interface{})
	if m["url"] != "precomputed://gs://bucket/seg" || m["enableDefaultSubsources"] != false {
		t.Errorf("bad source object: %v\n", m)
	}
	transform, ok := m["transform"].(map[string]interface{})
	if !ok {
		t.Fatalf("expected a transform synthesized from resolution, got %v\n", m)
	}
	b, _ := json.Marshal(transform["outputDimensions"])
	if string(b) != `{"x":[8e-9,"m"],"y":[8e-9,"m"],"z":[4e-8,"m"]}` {
		t.Errorf("bad synthesized transform: %s\n", string(b))
	}
	if s.Transform != nil {
		t.Errorf("serialization should not set the source transform\n")
	}
}
