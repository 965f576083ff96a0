package statebuilder

import (
	"github.com/janelia-flyem/ngstate/ngstate"
)

// Source is a data source of a layer.
type Source struct {
	URL string

	// Resolution, if set and Transform is nil, synthesizes a transform whose output
	// space has this resolution in nanometers.
	Resolution ngstate.NdFloat64
	Transform  *CoordSpaceTransform

	Subsources               map[string]bool
	DisableDefaultSubsources bool
}

// NewSource returns a source for the given URL.
func NewSource(url string) *Source {
	return &Source{URL: url}
}

func (s *Source) isPlain() bool {
	return s.Resolution == nil && s.Transform == nil && len(s.Subsources) == 0 && !s.DisableDefaultSubsources
}

// ToWire returns the viewer's source value: the bare URL when nothing else is set,
// else a source object.
func (s *Source) ToWire() (interface{}, error) {
	if s.isPlain() {
		return s.URL, nil
	}
	wire := map[string]interface{}{"url": s.URL}
	transform := s.Transform
	if transform == nil && s.Resolution != nil {
		output, err := NewCoordSpace(s.Resolution)
		if err != nil {
			return nil, err
		}
		transform = &CoordSpaceTransform{Output: output}
	}
	tw, err := transform.ToWire()
	if err != nil {
		return nil, err
	}
	if tw != nil {
		wire["transform"] = tw
	}
	if len(s.Subsources) > 0 {
		subsources := make(map[string]interface{}, len(s.Subsources))
		for k, v := range s.Subsources {
			subsources[k] = v
		}
		wire["subsources"] = subsources
	}
	if s.DisableDefaultSubsources {
		wire["enableDefaultSubsources"] = false
	}
	return wire, nil
}

func (s *Source) clone() *Source {
	dup := *s
	dup.Resolution = s.Resolution.Duplicate()
	dup.Transform = s.Transform.clone()
	if s.Subsources != nil {
		dup.Subsources = make(map[string]bool, len(s.Subsources))
		for k, v := range s.Subsources {
			dup.Subsources[k] = v
		}
	}
	return &dup
}
