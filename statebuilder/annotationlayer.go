package statebuilder

import (
	"fmt"

	"github.com/janelia-flyem/ngstate/colors"
	"github.com/janelia-flyem/ngstate/ngstate"
)

// LocalAnnotationsURL is the source of annotations stored in the state itself.
const LocalAnnotationsURL = "local://annotations"

// LinkCapabilities are the relationships an annotation layer may have to a
// segmentation layer.
var LinkCapabilities = []string{"segments", "meshes", "skeletons"}

// AnnotationLayer holds annotations, either stored in the state or read from
// a source.
type AnnotationLayer struct {
	LayerWithSource

	// Tags is the tag registry.  A tag's index is its bit in every annotation's
	// property vector.  At most MaxTagCount tags are serialized.
	Tags []string

	// Resolution of annotation coordinates in the layer.  If nil, the viewer
	// dimensions are used.
	Resolution ngstate.NdFloat64

	// Color is a "#rrggbb" string set with SetColor.
	Color string

	annotations []Annotation
	linked      map[string]string
}

// NewAnnotationLayer returns an annotation layer storing its annotations in the state.
func NewAnnotationLayer(name string) *AnnotationLayer {
	return &AnnotationLayer{LayerWithSource: newLayerWithSource(name)}
}

func (l *AnnotationLayer) Type() LayerType { return AnnotationLayerType }

// Annotations returns the annotations of the layer.
func (l *AnnotationLayer) Annotations() []Annotation {
	return append([]Annotation{}, l.annotations...)
}

// LinkedSegmentation returns the linked segmentation layer per capability.
func (l *AnnotationLayer) LinkedSegmentation() map[string]string {
	out := make(map[string]string, len(l.linked))
	for k, v := range l.linked {
		out[k] = v
	}
	return out
}

// AddTags appends tags not already in the registry.
func (l *AnnotationLayer) AddTags(tags ...string) *AnnotationLayer {
	for _, tag := range tags {
		if !containsString(l.Tags, tag) {
			l.Tags = append(l.Tags, tag)
		}
	}
	return l
}

// SetColor sets the annotation color from a color name, hex string or RGB triple.
func (l *AnnotationLayer) SetColor(c interface{}) error {
	hex, err := colors.Parse(c)
	if err != nil {
		return err
	}
	l.Color = hex
	return nil
}

// SetLinkedSegmentation links the layer to a segmentation layer given by name,
// by *SegmentationLayer, or as a map of capability to layer name.
func (l *AnnotationLayer) SetLinkedSegmentation(value interface{}) error {
	linked := make(map[string]string)
	switch x := value.(type) {
	case string:
		if x != "" {
			linked["segments"] = x
		}
	case *SegmentationLayer:
		linked["segments"] = x.Name()
	case map[string]string:
		for k, v := range x {
			linked[k] = v
		}
	case map[string]interface{}:
		for k, v := range x {
			name, ok := v.(string)
			if !ok {
				return ngstate.Typef("linked segmentation layer for %q must be a name, got %T", k, v)
			}
			linked[k] = name
		}
	default:
		return ngstate.Typef("can't link segmentation given %T", value)
	}
	for k := range linked {
		if !containsString(LinkCapabilities, k) {
			return ngstate.Validationf("unknown linked segmentation capability %q, expected one of %v", k, LinkCapabilities)
		}
	}
	l.linked = linked
	return nil
}

// AddAnnotations adds an Annotation, a list of them ([]Annotation or []interface{}
// holding only annotations), or a *DataMap that defers the list.  Annotation ids
// must be unique within the layer.
func (l *AnnotationLayer) AddAnnotations(annos interface{}) error {
	var added []Annotation
	switch x := annos.(type) {
	case *DataMap:
		l.datamaps.register(x, slotAnnotations, nil)
		return nil
	case Annotation:
		added = []Annotation{x}
	case []Annotation:
		added = x
	case []interface{}:
		for i, elem := range x {
			a, ok := elem.(Annotation)
			if !ok {
				return ngstate.Typef("element %d is a %T, not an annotation", i, elem)
			}
			added = append(added, a)
		}
	default:
		return ngstate.Typef("can't add %T as annotations", annos)
	}
	return l.appendAnnotations(added, nil)
}

// appendAnnotations adds annotations and any new tags after checking ids.
func (l *AnnotationLayer) appendAnnotations(added []Annotation, newTags []string) error {
	ids := make(map[string]bool, len(l.annotations)+len(added))
	for _, a := range l.annotations {
		ids[a.Base().ID] = true
	}
	for _, a := range added {
		if a == nil {
			return ngstate.Typef("nil annotation")
		}
		id := a.Base().ID
		if ids[id] {
			return ngstate.Validationf("duplicate annotation id %q in layer %q", id, l.name)
		}
		ids[id] = true
	}
	l.annotations = append(l.annotations, added...)
	l.AddTags(newTags...)
	return nil
}

// WithDatamap returns a copy of the layer with DataMaps filled from values.
func (l *AnnotationLayer) WithDatamap(values interface{}) (*AnnotationLayer, error) {
	return mapLayer(l, values)
}

// Map fills DataMaps from values, in place or on a copy.
func (l *AnnotationLayer) Map(values interface{}, inplace bool) (*AnnotationLayer, error) {
	mapped, err := mapLayer(l, values)
	if err != nil || !inplace {
		return mapped, err
	}
	*l = *mapped
	return l, nil
}

func (l *AnnotationLayer) ToNeuroglancerLayer() (map[string]interface{}, error) {
	return serializeLayer(l, &wireContext{})
}

func (l *AnnotationLayer) cloneLayer() Layer {
	dup := *l
	dup.LayerWithSource = l.cloneBase()
	dup.Tags = append([]string(nil), l.Tags...)
	dup.Resolution = l.Resolution.Duplicate()
	dup.annotations = make([]Annotation, len(l.annotations))
	for i, a := range l.annotations {
		dup.annotations[i] = a.Clone()
	}
	if l.linked != nil {
		dup.linked = l.LinkedSegmentation()
	}
	return &dup
}

func (l *AnnotationLayer) applyDatamap(e datamapEntry, v interface{}) error {
	switch e.slot {
	case slotSource:
		return l.applySource(v)
	case slotAnnotations:
		return l.AddAnnotations(v)
	case slotPoints:
		return l.AddPoints(v, e.args.(PointColumns))
	case slotLines:
		return l.AddLines(v, e.args.(LineColumns))
	case slotEllipsoids:
		return l.AddEllipsoids(v, e.args.(EllipsoidColumns))
	case slotBoxes:
		return l.AddBoxes(v, e.args.(BoxColumns))
	case slotPolylines:
		return l.AddPolylines(v, e.args.(PolylineColumns))
	}
	return ngstate.Typef("annotation layer %q has no datamap slot %d", l.name, e.slot)
}

// resolution returns the coordinate resolution of the layer, if known.
func (l *AnnotationLayer) resolution(ctx *wireContext) ngstate.NdFloat64 {
	if l.Resolution != nil {
		return l.Resolution
	}
	if ctx.dimensions != nil && ctx.dimensions.Rank() == 3 {
		return ctx.dimensions.Resolution()
	}
	return nil
}

func (l *AnnotationLayer) toWire(ctx *wireContext) (map[string]interface{}, error) {
	tags := uniqueStrings(l.Tags)
	if len(tags) > MaxTagCount {
		return nil, ngstate.Validationf("annotation layer %q has %d tags, more than the maximum %d", l.name, len(tags), MaxTagCount)
	}
	wire, err := l.commonWire(AnnotationLayerType)
	if err != nil {
		return nil, err
	}
	if len(l.linked) > 0 {
		linked := make(map[string]interface{}, len(l.linked))
		for k, v := range l.linked {
			linked[k] = v
		}
		wire["linkedSegmentationLayer"] = linked
	}
	if l.Color != "" {
		wire["annotationColor"] = l.Color
	}
	if len(tags) > 0 {
		props := MakeAnnotationProperties(tags, 0)
		bindings, err := MakeBindings(props, nil)
		if err != nil {
			return nil, err
		}
		wire["annotationProperties"] = props
		wire["toolBindings"] = bindings
	}
	if len(l.sources) > 0 {
		return wire, nil
	}

	res := l.resolution(ctx)
	if res != nil {
		output, err := NewCoordSpace(res)
		if err != nil {
			return nil, fmt.Errorf("annotation layer %q: %w", l.name, err)
		}
		dims, err := output.ToWire()
		if err != nil {
			return nil, err
		}
		wire["source"] = map[string]interface{}{
			"url":       LocalAnnotationsURL,
			"transform": map[string]interface{}{"outputDimensions": dims},
		}
	} else {
		wire["source"] = LocalAnnotationsURL
	}
	tagMap := makeTagMap(tags)
	annos := make([]interface{}, len(l.annotations))
	for i, a := range l.annotations {
		if annos[i], err = a.ToWire(tagMap, res); err != nil {
			return nil, fmt.Errorf("annotation layer %q: %w", l.name, err)
		}
	}
	wire["annotations"] = annos
	return wire, nil
}

// uniqueStrings returns the list without repeats, keeping first occurrences.
func uniqueStrings(list []string) []string {
	out := make([]string, 0, len(list))
	for _, elem := range list {
		if !containsString(out, elem) {
			out = append(out, elem)
		}
	}
	return out
}

func containsString(list []string, s string) bool {
	for _, elem := range list {
		if elem == s {
			return true
		}
	}
	return false
}
