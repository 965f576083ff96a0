package colors

import (
	"errors"
	"image/color"
	"testing"

	"github.com/janelia-flyem/ngstate/ngstate"
)

func TestParse(t *testing.T) {
	tests := []struct {
		in       interface{}
		expected string
	}{
		{"red", "#ff0000"},
		{"Tomato", "#ff6347"},
		{"#ABC", "#aabbcc"},
		{"00ff7f", "#00ff7f"},
		{[]float64{1, 0.5, 0}, "#ff8000"},
		{[3]float32{0, 0, 1}, "#0000ff"},
		{[]int{255, 255, 0}, "#ffff00"},
		{color.RGBA{R: 1, G: 2, B: 3, A: 255}, "#010203"},
	}
	for _, tc := range tests {
		got, err := Parse(tc.in)
		if err != nil {
			t.Errorf("unexpected error parsing %v: %v\n", tc.in, err)
			continue
		}
		if got != tc.expected {
			t.Errorf("parse %v: expected %s, got %s\n", tc.in, tc.expected, got)
		}
	}
}

func TestParseBad(t *testing.T) {
	if _, err := Parse("notacolor"); !errors.Is(err, ngstate.ErrValidation) {
		t.Errorf("expected validation error, got %v\n", err)
	}
	if _, err := Parse([]float64{2, 0, 0}); !errors.Is(err, ngstate.ErrValidation) {
		t.Errorf("expected validation error for out of range float, got %v\n", err)
	}
	if _, err := Parse(struct{}{}); err == nil {
		t.Errorf("expected error for struct color\n")
	}
	if _, err := Parse([]float64{1, 0}); !errors.Is(err, ngstate.ErrValidation) {
		t.Errorf("expected validation error for 2 component color, got %v\n", err)
	}
}
