package statebuilder

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/janelia-flyem/ngstate/ngstate"
)

// DefaultUnit is the unit of every axis unless WithUnits is given.
const DefaultUnit = "nm"

// DefaultAxes are the axis names unless WithNames is given.
var DefaultAxes = []string{"x", "y", "z"}

// CoordSpace is an ordered list of named axes, each with a resolution and unit.
// It is immutable once built.
type CoordSpace struct {
	names      []string
	resolution []float64
	units      []string
}

type coordSpaceOptions struct {
	names    []string
	units    []string
	setNames bool
}

// CoordSpaceOption modifies the construction of a CoordSpace.
type CoordSpaceOption func(*coordSpaceOptions)

// WithUnits sets the units of each axis.  A single unit applies to every axis.
func WithUnits(units ...string) CoordSpaceOption {
	return func(o *coordSpaceOptions) {
		o.units = units
	}
}

// WithNames sets the axis names.
func WithNames(names ...string) CoordSpaceOption {
	return func(o *coordSpaceOptions) {
		o.names = names
		o.setNames = true
	}
}

// NewCoordSpace returns a coordinate space with the given per-axis resolution.
// Axes default to x, y, z in nanometers.
func NewCoordSpace(resolution []float64, opts ...CoordSpaceOption) (*CoordSpace, error) {
	o := coordSpaceOptions{units: []string{DefaultUnit}}
	for _, opt := range opts {
		opt(&o)
	}
	names := DefaultAxes
	if o.setNames {
		names = o.names
	}
	units := o.units
	if len(units) == 1 && len(names) != 1 {
		units = make([]string, len(names))
		for i := range units {
			units[i] = o.units[0]
		}
	}
	if len(names) != len(units) {
		return nil, ngstate.Validationf("coordinate space has %d names but %d units", len(names), len(units))
	}
	if len(names) != len(resolution) {
		return nil, ngstate.Validationf("coordinate space has %d names but %d resolution values", len(names), len(resolution))
	}
	for _, u := range units {
		if _, _, err := ngstate.SplitUnit(u); err != nil {
			return nil, err
		}
	}
	cs := &CoordSpace{
		names:      make([]string, len(names)),
		resolution: make([]float64, len(resolution)),
		units:      make([]string, len(units)),
	}
	copy(cs.names, names)
	copy(cs.resolution, resolution)
	copy(cs.units, units)
	return cs, nil
}

// Rank returns the number of axes.
func (c *CoordSpace) Rank() int {
	return len(c.names)
}

// Names returns the axis names.
func (c *CoordSpace) Names() []string {
	return append([]string{}, c.names...)
}

// Resolution returns the per-axis resolution in each axis' unit.
func (c *CoordSpace) Resolution() ngstate.NdFloat64 {
	return append(ngstate.NdFloat64{}, c.resolution...)
}

// Units returns the per-axis units.
func (c *CoordSpace) Units() []string {
	return append([]string{}, c.units...)
}

// Equals returns true if both coordinate spaces have identical axes.
func (c *CoordSpace) Equals(x *CoordSpace) bool {
	if c == nil || x == nil {
		return c == x
	}
	if c.Rank() != x.Rank() {
		return false
	}
	for i := range c.names {
		if c.names[i] != x.names[i] || c.resolution[i] != x.resolution[i] || c.units[i] != x.units[i] {
			return false
		}
	}
	return true
}

// ToWire returns the dimensions object of the viewer, with each scale expressed
// in its SI base unit.
func (c *CoordSpace) ToWire() (Dimensions, error) {
	dims := make(Dimensions, c.Rank())
	for i, name := range c.names {
		scale, base, err := ngstate.ToBaseUnit(c.resolution[i], c.units[i])
		if err != nil {
			return nil, err
		}
		dims[i] = Dimension{Name: name, Scale: scale, Unit: base}
	}
	return dims, nil
}

// CoordSpaceFromWire converts a dimensions object into a coordinate space, with
// meter axes expressed in nanometers.
func CoordSpaceFromWire(dims Dimensions) (*CoordSpace, error) {
	names := make([]string, len(dims))
	resolution := make([]float64, len(dims))
	units := make([]string, len(dims))
	for i, d := range dims {
		_, base, err := ngstate.SplitUnit(d.Unit)
		if err != nil {
			return nil, err
		}
		units[i] = d.Unit
		resolution[i] = d.Scale
		if base == "m" {
			if resolution[i], err = ngstate.FromBaseUnit(d.Scale*factorOf(d.Unit), "m", DefaultUnit); err != nil {
				return nil, err
			}
			units[i] = DefaultUnit
		}
		names[i] = d.Name
	}
	return NewCoordSpace(resolution, WithNames(names...), WithUnits(units...))
}

func factorOf(unit string) float64 {
	f, _, err := ngstate.SplitUnit(unit)
	if err != nil {
		return 1
	}
	return f
}

// MarshalJSON writes the wire dimensions object.
func (c *CoordSpace) MarshalJSON() ([]byte, error) {
	dims, err := c.ToWire()
	if err != nil {
		return nil, err
	}
	return json.Marshal(dims)
}

// UnmarshalJSON reads a wire dimensions object.
func (c *CoordSpace) UnmarshalJSON(b []byte) error {
	var dims Dimensions
	if err := json.Unmarshal(b, &dims); err != nil {
		return err
	}
	cs, err := CoordSpaceFromWire(dims)
	if err != nil {
		return err
	}
	*c = *cs
	return nil
}

// Dimension is one axis of the wire dimensions object.
type Dimension struct {
	Name  string
	Scale float64
	Unit  string
}

// Dimensions is the wire form of a coordinate space, a JSON object mapping axis
// names to [scale, unit] pairs.  Axis order is significant and preserved.
type Dimensions []Dimension

// MarshalJSON writes the axes in order.
func (d Dimensions) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, dim := range d {
		if i > 0 {
			buf.WriteByte(',')
		}
		name, err := json.Marshal(dim.Name)
		if err != nil {
			return nil, err
		}
		pair, err := json.Marshal([]interface{}{dim.Scale, dim.Unit})
		if err != nil {
			return nil, err
		}
		buf.Write(name)
		buf.WriteByte(':')
		buf.Write(pair)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// UnmarshalJSON reads the axes in document order.
func (d *Dimensions) UnmarshalJSON(b []byte) error {
	dec := json.NewDecoder(bytes.NewReader(b))
	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return ngstate.Typef("dimensions must be a JSON object, got %s", string(b))
	}
	var dims Dimensions
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return err
		}
		name, ok := tok.(string)
		if !ok {
			return ngstate.Typef("bad dimension name %v", tok)
		}
		var pair []interface{}
		if err := dec.Decode(&pair); err != nil {
			return fmt.Errorf("dimension %q: %w", name, err)
		}
		if len(pair) != 2 {
			return ngstate.Validationf("dimension %q should be a [scale, unit] pair", name)
		}
		scale, ok1 := pair[0].(float64)
		unit, ok2 := pair[1].(string)
		if !ok1 || !ok2 {
			return ngstate.Typef("dimension %q should be a [scale, unit] pair, got %v", name, pair)
		}
		dims = append(dims, Dimension{Name: name, Scale: scale, Unit: unit})
	}
	if _, err := dec.Token(); err != nil {
		return err
	}
	*d = dims
	return nil
}

// DimensionsFromMap converts a decoded JSON dimensions object, whose key order
// is lost, into Dimensions ordered by the given axis names followed by any
// remaining axes sorted by name.
func DimensionsFromMap(m map[string]interface{}, order ...string) (Dimensions, error) {
	var dims Dimensions
	seen := make(map[string]bool, len(m))
	add := func(name string) error {
		pair, ok := m[name].([]interface{})
		if !ok || len(pair) != 2 {
			return ngstate.Typef("dimension %q should be a [scale, unit] pair", name)
		}
		scale, err := ngstate.AsFloat(pair[0])
		if err != nil {
			return err
		}
		unit, _ := pair[1].(string)
		dims = append(dims, Dimension{Name: name, Scale: scale, Unit: unit})
		seen[name] = true
		return nil
	}
	for _, name := range order {
		if _, found := m[name]; found {
			if err := add(name); err != nil {
				return nil, err
			}
		}
	}
	for _, name := range sortedKeys(m) {
		if !seen[name] {
			if err := add(name); err != nil {
				return nil, err
			}
		}
	}
	return dims, nil
}
