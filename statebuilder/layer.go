package statebuilder

import (
	"fmt"

	"github.com/janelia-flyem/ngstate/ngstate"
)

// LayerType is the wire type of a layer.
type LayerType string

const (
	ImageLayerType        LayerType = "image"
	SegmentationLayerType LayerType = "segmentation"
	AnnotationLayerType   LayerType = "annotation"
)

// Layer is one of *ImageLayer, *SegmentationLayer or *AnnotationLayer.
type Layer interface {
	Named
	Type() LayerType

	// IsStatic returns true if the layer holds no unfilled DataMap.
	IsStatic() bool

	// DatamapKeys returns the keys of unfilled DataMaps.
	DatamapKeys() []string

	// ToNeuroglancerLayer returns the viewer's layer object.
	ToNeuroglancerLayer() (map[string]interface{}, error)

	base() *LayerWithSource
	cloneLayer() Layer
	applyDatamap(e datamapEntry, v interface{}) error
	toWire(ctx *wireContext) (map[string]interface{}, error)
}

// wireContext carries viewer-level settings into layer serialization.
type wireContext struct {
	dimensions *CoordSpace
}

// LayerWithSource holds the fields common to every layer type.
type LayerWithSource struct {
	name     string
	Visible  bool
	Archived bool
	Shader   string

	sources  []*Source
	datamaps datamapRegistry
}

func newLayerWithSource(name string) LayerWithSource {
	return LayerWithSource{name: name, Visible: true}
}

// Name returns the layer name.
func (l *LayerWithSource) Name() string {
	return l.name
}

// Sources returns the layer sources.
func (l *LayerWithSource) Sources() []*Source {
	return append([]*Source{}, l.sources...)
}

// IsStatic returns true if the layer holds no unfilled DataMap.
func (l *LayerWithSource) IsStatic() bool {
	return l.datamaps.isStatic()
}

// DatamapKeys returns the keys of unfilled DataMaps.
func (l *LayerWithSource) DatamapKeys() []string {
	return l.datamaps.keys()
}

// AddSource adds a URL string, *Source, Source or *DataMap, or a list of these.
// A DataMap is filled later by a URL or source value.
func (l *LayerWithSource) AddSource(value interface{}) error {
	sources, err := l.toSources(value)
	if err != nil {
		return err
	}
	l.sources = append(l.sources, sources...)
	return nil
}

// toSources converts everything before adding any of it, so a bad element
// leaves the layer unchanged.
func (l *LayerWithSource) toSources(value interface{}) ([]*Source, error) {
	var pending []*DataMap
	var sources []*Source
	var add func(v interface{}) error
	add = func(v interface{}) error {
		switch x := v.(type) {
		case string:
			sources = append(sources, NewSource(x))
		case *Source:
			if x == nil {
				return ngstate.Typef("nil source")
			}
			sources = append(sources, x.clone())
		case Source:
			sources = append(sources, x.clone())
		case *DataMap:
			pending = append(pending, x)
		case []string:
			for _, s := range x {
				sources = append(sources, NewSource(s))
			}
		case []*Source:
			for _, s := range x {
				if err := add(s); err != nil {
					return err
				}
			}
		case []interface{}:
			for _, elem := range x {
				if _, nested := elem.([]interface{}); nested {
					return ngstate.Typef("nested source lists are not supported")
				}
				if err := add(elem); err != nil {
					return err
				}
			}
		default:
			return ngstate.Typef("can't use %T as a layer source", v)
		}
		return nil
	}
	if err := add(value); err != nil {
		return nil, err
	}
	for _, dm := range pending {
		l.datamaps.register(dm, slotSource, nil)
	}
	return sources, nil
}

func (l *LayerWithSource) base() *LayerWithSource {
	return l
}

func (l *LayerWithSource) cloneBase() LayerWithSource {
	dup := *l
	dup.sources = make([]*Source, len(l.sources))
	for i, s := range l.sources {
		dup.sources[i] = s.clone()
	}
	dup.datamaps = l.datamaps.clone()
	return dup
}

// applySource fills a source DataMap.
func (l *LayerWithSource) applySource(v interface{}) error {
	return l.AddSource(v)
}

// commonWire returns the fields shared by all layer types.
func (l *LayerWithSource) commonWire(t LayerType) (map[string]interface{}, error) {
	wire := map[string]interface{}{
		"type": string(t),
		"name": l.name,
	}
	switch len(l.sources) {
	case 0:
	case 1:
		src, err := l.sources[0].ToWire()
		if err != nil {
			return nil, fmt.Errorf("layer %q: %w", l.name, err)
		}
		wire["source"] = src
	default:
		srcs := make([]interface{}, len(l.sources))
		for i, s := range l.sources {
			src, err := s.ToWire()
			if err != nil {
				return nil, fmt.Errorf("layer %q: %w", l.name, err)
			}
			srcs[i] = src
		}
		wire["source"] = srcs
	}
	if !l.Visible {
		wire["visible"] = false
	}
	if l.Archived {
		wire["archived"] = true
	}
	if l.Shader != "" {
		wire["shader"] = l.Shader
	}
	return wire, nil
}

// mapLayer resolves DataMaps on a copy of the layer.  A nil mapping returns the
// layer itself.
func mapLayer[L Layer](l L, values interface{}) (L, error) {
	dv := toDataValues(values)
	if dv == nil {
		return l, nil
	}
	dup := l.cloneLayer().(L)
	if err := dup.base().datamaps.resolve(dv, dup.applyDatamap); err != nil {
		var zero L
		return zero, fmt.Errorf("layer %q: %w", l.Name(), err)
	}
	return dup, nil
}

// serializeLayer checks that every DataMap was filled before serializing.
func serializeLayer(l Layer, ctx *wireContext) (map[string]interface{}, error) {
	if err := l.base().datamaps.check(l.Name()); err != nil {
		return nil, err
	}
	return l.toWire(ctx)
}
