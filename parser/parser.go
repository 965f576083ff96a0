/*
	Package parser reads viewer states produced elsewhere: layer listings, tag dictionaries,
	per-type annotation extraction, a tabular view of every annotation and multicut markers.

	Two dialects are understood.  States with a "dimensions" object come from the mainline
	viewer and its spelunker deployment.  States without one use the older seunglab layout,
	where the resolution lives under navigation.pose.position.voxelSize, tags are listed in
	annotationTags and annotations refer to them through tagIds.
*/
package parser

import (
	"bytes"
	"encoding/json"
	"math"
	"regexp"
	"sort"
	"strconv"

	"github.com/janelia-flyem/ngstate/ngstate"
	"github.com/janelia-flyem/ngstate/statebuilder"
)

// State is a decoded viewer state.
type State map[string]interface{}

// Dialect identifies the layout of a state.
type Dialect uint8

const (
	// Spelunker states carry a "dimensions" object.
	Spelunker Dialect = iota

	// Seunglab states carry a voxel size in the navigation pose.
	Seunglab
)

func (d Dialect) String() string {
	if d == Seunglab {
		return "seunglab"
	}
	return "spelunker"
}

const (
	imageLayerType      = "image"
	segmentationType    = "segmentation"
	graphSegmentation   = "segmentation_with_graph"
	annotationLayerType = "annotation"
)

// Parse decodes a JSON viewer state.  Numbers are kept exact so that 64-bit
// segment ids survive.
func Parse(data []byte) (State, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var s State
	if err := dec.Decode(&s); err != nil {
		return nil, ngstate.Typef("unable to decode viewer state: %v", err)
	}
	if s == nil {
		return nil, ngstate.Typef("viewer state is not a JSON object")
	}
	return s, nil
}

// Dialect returns the dialect of the state.
func (s State) Dialect() Dialect {
	if _, found := s["dimensions"]; found {
		return Spelunker
	}
	return Seunglab
}

func (s State) layers() []map[string]interface{} {
	raw, _ := s["layers"].([]interface{})
	layers := make([]map[string]interface{}, 0, len(raw))
	for _, r := range raw {
		if l, ok := r.(map[string]interface{}); ok {
			layers = append(layers, l)
		}
	}
	return layers
}

func stringField(m map[string]interface{}, key string) string {
	s, _ := m[key].(string)
	return s
}

func boolField(m map[string]interface{}, key string) bool {
	b, _ := m[key].(bool)
	return b
}

func isSegmentation(layerType string) bool {
	return layerType == segmentationType || layerType == graphSegmentation
}

// LayerNames returns the name of every layer in order.
func LayerNames(s State) []string {
	layers := s.layers()
	names := make([]string, len(layers))
	for i, l := range layers {
		names[i] = stringField(l, "name")
	}
	return names
}

func filterLayers(s State, includeArchived bool, match func(layerType string) bool) []string {
	var names []string
	for _, l := range s.layers() {
		if !match(stringField(l, "type")) {
			continue
		}
		if boolField(l, "archived") && !includeArchived {
			continue
		}
		names = append(names, stringField(l, "name"))
	}
	return names
}

// ImageLayers returns the names of image layers.
func ImageLayers(s State, includeArchived bool) []string {
	return filterLayers(s, includeArchived, func(t string) bool { return t == imageLayerType })
}

// SegmentationLayers returns the names of segmentation layers, including
// graph-backed ones.
func SegmentationLayers(s State, includeArchived bool) []string {
	return filterLayers(s, includeArchived, isSegmentation)
}

// AnnotationLayers returns the names of annotation layers.
func AnnotationLayers(s State, includeArchived bool) []string {
	return filterLayers(s, includeArchived, func(t string) bool { return t == annotationLayerType })
}

// GetLayer returns the first layer with the given name.
func GetLayer(s State, name string) (map[string]interface{}, error) {
	for _, l := range s.layers() {
		if stringField(l, "name") == name {
			return l, nil
		}
	}
	return nil, ngstate.NotFoundf("no layer named %q in state", name)
}

var tagPropertyID = regexp.MustCompile(`^tag(\d+)$`)

// TagDictionary returns the tag labels of an annotation layer keyed by tag id.
func TagDictionary(s State, layerName string) (map[int]string, error) {
	layer, err := GetLayer(s, layerName)
	if err != nil {
		return nil, err
	}
	tags := make(map[int]string)
	if s.Dialect() == Seunglab {
		raw, _ := layer["annotationTags"].([]interface{})
		for _, r := range raw {
			t, ok := r.(map[string]interface{})
			if !ok {
				continue
			}
			id, err := intValue(t["id"])
			if err != nil {
				return nil, err
			}
			tags[id] = stringField(t, "label")
		}
		return tags, nil
	}
	for _, p := range annotationProperties(layer) {
		if id, ok := tagNumber(stringField(p, "id")); ok {
			tags[id] = stringField(p, "tag")
		}
	}
	return tags, nil
}

func annotationProperties(layer map[string]interface{}) []map[string]interface{} {
	raw, _ := layer["annotationProperties"].([]interface{})
	props := make([]map[string]interface{}, 0, len(raw))
	for _, r := range raw {
		if p, ok := r.(map[string]interface{}); ok {
			props = append(props, p)
		}
	}
	return props
}

func tagNumber(propID string) (int, bool) {
	m := tagPropertyID.FindStringSubmatch(propID)
	if m == nil {
		return 0, false
	}
	n, err := strconv.Atoi(m[1])
	return n, err == nil
}

func sortedTagIDs(tags map[int]string) []int {
	ids := make([]int, 0, len(tags))
	for id := range tags {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	return ids
}

func intValue(v interface{}) (int, error) {
	if v == nil {
		return 0, ngstate.Typef("missing integer value")
	}
	f, err := ngstate.AsFloat(v)
	if err != nil {
		return 0, ngstate.Typef("bad integer value %v: %v", v, err)
	}
	if math.IsNaN(f) || math.IsInf(f, 0) || f != math.Trunc(f) {
		return 0, ngstate.Typef("bad integer value %v", v)
	}
	return int(f), nil
}

// Resolution returns the voxel resolution of the state in nanometers.
func Resolution(s State) (ngstate.NdFloat64, error) {
	if s.Dialect() == Spelunker {
		dims, _ := s["dimensions"].(map[string]interface{})
		return resolutionFromDimensions(dims)
	}
	nav, _ := s["navigation"].(map[string]interface{})
	pose, _ := nav["pose"].(map[string]interface{})
	pos, _ := pose["position"].(map[string]interface{})
	if pos["voxelSize"] == nil {
		return nil, ngstate.NotFoundf("no voxel size in state navigation")
	}
	res, err := ngstate.AsFloats(pos["voxelSize"])
	if err != nil {
		return nil, err
	}
	return ngstate.NdFloat64(res), nil
}

func resolutionFromDimensions(dims map[string]interface{}) (ngstate.NdFloat64, error) {
	if len(dims) == 0 {
		return nil, ngstate.NotFoundf("no dimensions in state")
	}
	wire, err := statebuilder.DimensionsFromMap(dims, statebuilder.DefaultAxes...)
	if err != nil {
		return nil, err
	}
	space, err := statebuilder.CoordSpaceFromWire(wire)
	if err != nil {
		return nil, err
	}
	return space.Resolution(), nil
}

// LayerResolution returns the resolution of a layer's annotation coordinates.
// A spelunker layer whose source transform has output dimensions uses them, a
// seunglab layer with a voxelSize uses it, and otherwise the state resolution
// applies.
func LayerResolution(s State, layerName string) (ngstate.NdFloat64, error) {
	layer, err := GetLayer(s, layerName)
	if err != nil {
		return nil, err
	}
	if s.Dialect() == Seunglab {
		if vs, found := layer["voxelSize"]; found {
			res, err := ngstate.AsFloats(vs)
			if err != nil {
				return nil, err
			}
			return ngstate.NdFloat64(res), nil
		}
		return Resolution(s)
	}
	src := layer["source"]
	if list, ok := src.([]interface{}); ok && len(list) > 0 {
		src = list[0]
	}
	if m, ok := src.(map[string]interface{}); ok {
		tf, _ := m["transform"].(map[string]interface{})
		if dims, ok := tf["outputDimensions"].(map[string]interface{}); ok {
			return resolutionFromDimensions(dims)
		}
	}
	return Resolution(s)
}

// Position returns the viewer position in voxels, if any.
func Position(s State) ([]float64, error) {
	if s.Dialect() == Spelunker {
		if s["position"] == nil {
			return nil, nil
		}
		return ngstate.AsFloats(s["position"])
	}
	nav, _ := s["navigation"].(map[string]interface{})
	pose, _ := nav["pose"].(map[string]interface{})
	pos, _ := pose["position"].(map[string]interface{})
	if pos["voxelCoordinates"] == nil {
		return nil, nil
	}
	return ngstate.AsFloats(pos["voxelCoordinates"])
}
