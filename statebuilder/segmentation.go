package statebuilder

import (
	"reflect"
	"sort"
	"strconv"

	"github.com/janelia-flyem/ngstate/colors"
	"github.com/janelia-flyem/ngstate/ngstate"
)

// ViewOptions are the display settings of a segmentation layer.  Nil fields are
// left unchanged by SetViewOptions.
type ViewOptions struct {
	SelectedAlpha    *float64
	NotSelectedAlpha *float64
	Alpha3D          *float64
	MeshSilhouette   *float64
	HideSegmentZero  *bool
}

// SegmentationLayer displays segmentation and a selection of its segments.
type SegmentationLayer struct {
	LayerWithSource

	segments      map[uint64]bool
	segmentColors map[uint64]string
	view          ViewOptions
}

// NewSegmentationLayer returns a segmentation layer, with optional source as
// accepted by AddSource.
func NewSegmentationLayer(name string, source interface{}) (*SegmentationLayer, error) {
	l := &SegmentationLayer{
		LayerWithSource: newLayerWithSource(name),
		segments:        make(map[uint64]bool),
		segmentColors:   make(map[uint64]string),
	}
	if source != nil {
		if err := l.AddSource(source); err != nil {
			return nil, err
		}
	}
	return l, nil
}

func (l *SegmentationLayer) Type() LayerType { return SegmentationLayerType }

// AddSkeletonSource adds a source serving only skeletons.
func (l *SegmentationLayer) AddSkeletonSource(url string) {
	l.sources = append(l.sources, &Source{
		URL:                      url,
		Subsources:               map[string]bool{"skeletons": true},
		DisableDefaultSubsources: true,
	})
}

// Segments returns a copy of the segment ids mapped to their visibility.
func (l *SegmentationLayer) Segments() map[uint64]bool {
	out := make(map[uint64]bool, len(l.segments))
	for id, visible := range l.segments {
		out[id] = visible
	}
	return out
}

// SegmentColors returns a copy of the segment colors.
func (l *SegmentationLayer) SegmentColors() map[uint64]string {
	out := make(map[uint64]string, len(l.segmentColors))
	for id, c := range l.segmentColors {
		out[id] = c
	}
	return out
}

// AddSegments selects segments given as a list of ids, all with the given
// visibility (default visible), or as a map of id to visibility.  A *DataMap
// defers the ids.  Ids already selected take the new visibility.
func (l *SegmentationLayer) AddSegments(ids interface{}, visible ...bool) error {
	vis := true
	if len(visible) > 0 {
		vis = visible[0]
	}
	if dm, ok := ids.(*DataMap); ok {
		l.datamaps.register(dm, slotSegments, vis)
		return nil
	}
	selection, err := toSegmentSelection(ids, vis)
	if err != nil {
		return err
	}
	if l.segments == nil {
		l.segments = make(map[uint64]bool, len(selection))
	}
	for id, v := range selection {
		l.segments[id] = v
	}
	return nil
}

func toSegmentSelection(ids interface{}, visible bool) (map[uint64]bool, error) {
	switch x := ids.(type) {
	case map[uint64]bool:
		out := make(map[uint64]bool, len(x))
		for id, v := range x {
			out[id] = v
		}
		return out, nil
	case map[string]interface{}:
		return selectionFromMap(x)
	}
	if rv := reflect.ValueOf(ids); rv.Kind() == reflect.Map {
		n, err := ngstate.Normalize(ids)
		if err != nil {
			return nil, err
		}
		m, _ := n.(map[string]interface{})
		return selectionFromMap(m)
	}
	list, err := ngstate.AsUint64s(ids)
	if err != nil {
		return nil, err
	}
	out := make(map[uint64]bool, len(list))
	for _, id := range list {
		out[id] = visible
	}
	return out, nil
}

func selectionFromMap(m map[string]interface{}) (map[uint64]bool, error) {
	out := make(map[uint64]bool, len(m))
	for k, v := range m {
		id, err := ngstate.AsUint64(k)
		if err != nil {
			return nil, err
		}
		b, ok := v.(bool)
		if !ok {
			return nil, ngstate.Typef("visibility of segment %d must be a bool, got %T", id, v)
		}
		out[id] = b
	}
	return out, nil
}

// AddSegmentColors sets segment colors from a map of id to a color name, hex
// string or RGB triple.  A *DataMap defers the map.
func (l *SegmentationLayer) AddSegmentColors(segColors interface{}) error {
	if dm, ok := segColors.(*DataMap); ok {
		l.datamaps.register(dm, slotSegmentColors, nil)
		return nil
	}
	parsed := make(map[uint64]string)
	switch x := segColors.(type) {
	case map[uint64]string:
		for id, c := range x {
			hex, err := colors.Parse(c)
			if err != nil {
				return err
			}
			parsed[id] = hex
		}
	case map[uint64]interface{}:
		for id, c := range x {
			hex, err := colors.Parse(c)
			if err != nil {
				return err
			}
			parsed[id] = hex
		}
	default:
		if reflect.ValueOf(segColors).Kind() != reflect.Map {
			return ngstate.Typef("segment colors must be a map of id to color, got %T", segColors)
		}
		n, err := ngstate.Normalize(segColors)
		if err != nil {
			return err
		}
		m, _ := n.(map[string]interface{})
		for k, c := range m {
			id, err := ngstate.AsUint64(k)
			if err != nil {
				return err
			}
			hex, err := colors.Parse(c)
			if err != nil {
				return err
			}
			parsed[id] = hex
		}
	}
	if l.segmentColors == nil {
		l.segmentColors = make(map[uint64]string, len(parsed))
	}
	for id, hex := range parsed {
		l.segmentColors[id] = hex
	}
	return nil
}

// SetViewOptions changes the display settings given as non-nil fields.
func (l *SegmentationLayer) SetViewOptions(opts ViewOptions) *SegmentationLayer {
	if opts.SelectedAlpha != nil {
		l.view.SelectedAlpha = opts.SelectedAlpha
	}
	if opts.NotSelectedAlpha != nil {
		l.view.NotSelectedAlpha = opts.NotSelectedAlpha
	}
	if opts.Alpha3D != nil {
		l.view.Alpha3D = opts.Alpha3D
	}
	if opts.MeshSilhouette != nil {
		l.view.MeshSilhouette = opts.MeshSilhouette
	}
	if opts.HideSegmentZero != nil {
		l.view.HideSegmentZero = opts.HideSegmentZero
	}
	return l
}

// ViewOptions returns the display settings.
func (l *SegmentationLayer) ViewOptions() ViewOptions {
	return l.view
}

// WithDatamap returns a copy of the layer with DataMaps filled from values.
func (l *SegmentationLayer) WithDatamap(values interface{}) (*SegmentationLayer, error) {
	return mapLayer(l, values)
}

// Map fills DataMaps from values, in place or on a copy.
func (l *SegmentationLayer) Map(values interface{}, inplace bool) (*SegmentationLayer, error) {
	mapped, err := mapLayer(l, values)
	if err != nil || !inplace {
		return mapped, err
	}
	*l = *mapped
	return l, nil
}

func (l *SegmentationLayer) ToNeuroglancerLayer() (map[string]interface{}, error) {
	return serializeLayer(l, &wireContext{})
}

func (l *SegmentationLayer) cloneLayer() Layer {
	dup := *l
	dup.LayerWithSource = l.cloneBase()
	dup.segments = l.Segments()
	dup.segmentColors = l.SegmentColors()
	return &dup
}

func (l *SegmentationLayer) applyDatamap(e datamapEntry, v interface{}) error {
	switch e.slot {
	case slotSource:
		return l.applySource(v)
	case slotSegments:
		return l.AddSegments(v, e.args.(bool))
	case slotSegmentColors:
		return l.AddSegmentColors(v)
	}
	return ngstate.Typef("segmentation layer %q has no datamap slot %d", l.name, e.slot)
}

func sortedIDs(m map[uint64]bool) []uint64 {
	ids := make([]uint64, 0, len(m))
	for id := range m {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

func (l *SegmentationLayer) toWire(ctx *wireContext) (map[string]interface{}, error) {
	wire, err := l.commonWire(SegmentationLayerType)
	if err != nil {
		return nil, err
	}
	if len(l.segments) > 0 {
		segments := make([]string, 0, len(l.segments))
		for _, id := range sortedIDs(l.segments) {
			s := strconv.FormatUint(id, 10)
			if !l.segments[id] {
				s = "!" + s
			}
			segments = append(segments, s)
		}
		wire["segments"] = segments
	}
	if len(l.segmentColors) > 0 {
		segColors := make(map[string]interface{}, len(l.segmentColors))
		for id, c := range l.segmentColors {
			segColors[strconv.FormatUint(id, 10)] = c
		}
		wire["segmentColors"] = segColors
	}
	if l.view.SelectedAlpha != nil {
		wire["selectedAlpha"] = *l.view.SelectedAlpha
	}
	if l.view.NotSelectedAlpha != nil {
		wire["notSelectedAlpha"] = *l.view.NotSelectedAlpha
	}
	if l.view.Alpha3D != nil {
		wire["objectAlpha"] = *l.view.Alpha3D
	}
	if l.view.MeshSilhouette != nil {
		wire["meshSilhouetteRendering"] = *l.view.MeshSilhouette
	}
	if l.view.HideSegmentZero != nil {
		wire["hideSegmentZero"] = *l.view.HideSegmentZero
	}
	return wire, nil
}
