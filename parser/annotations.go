package parser

import (
	"fmt"

	"github.com/janelia-flyem/ngstate/ngstate"
	"github.com/janelia-flyem/ngstate/statebuilder"
)

// Kind is the wire type of an annotation.
type Kind string

const (
	PointKind    = Kind(statebuilder.PointType)
	LineKind     = Kind(statebuilder.LineType)
	SphereKind   = Kind(statebuilder.EllipsoidType)
	BoxKind      = Kind(statebuilder.BoundingBoxType)
	PolylineKind = Kind(statebuilder.PolylineType)

	// GroupKind annotations collect other annotations in seunglab states.
	GroupKind Kind = "collection"
)

// Kinds lists every annotation kind understood by the parser.
var Kinds = []Kind{PointKind, LineKind, SphereKind, BoxKind, GroupKind, PolylineKind}

// GeometryFields returns the wire fields holding the geometry of the kind.
func (k Kind) GeometryFields() []string {
	switch k {
	case PointKind:
		return []string{"point"}
	case LineKind, BoxKind:
		return []string{"pointA", "pointB"}
	case SphereKind:
		return []string{"center", "radii"}
	case GroupKind:
		return []string{"source"}
	case PolylineKind:
		return []string{"points"}
	}
	return nil
}

// Field selects optional columns of an annotation query.
type Field uint8

const (
	FieldDescription Field = 1 << iota
	FieldLinkedSegmentations
	FieldTags
	FieldGroup
	FieldID

	AllFields = FieldDescription | FieldLinkedSegmentations | FieldTags | FieldGroup | FieldID
)

// Annotations are the annotations of one kind in a layer, held as parallel
// columns.
type Annotations struct {
	Kind Kind

	// Points holds the geometry vectors of each annotation in the order of
	// Kind.GeometryFields, or every vertex for polylines.
	Points [][]ngstate.Vector3d

	Descriptions        []string
	LinkedSegmentations [][]uint64
	Tags                [][]int
	Groups              []string
	IDs                 []string

	fields Field
}

// Len returns the number of annotations.
func (a *Annotations) Len() int {
	return len(a.Points)
}

// Values returns the geometry columns followed by the requested optional
// columns in the order description, linked segmentations, tags, group, id.
// Point-like geometry columns are []ngstate.Vector3d and polyline vertices are
// [][]ngstate.Vector3d.
func (a *Annotations) Values() []interface{} {
	var out []interface{}
	if a.Kind == PolylineKind {
		out = append(out, a.Points)
	} else {
		for j := range a.Kind.GeometryFields() {
			col := make([]ngstate.Vector3d, len(a.Points))
			for i, pts := range a.Points {
				col[i] = pts[j]
			}
			out = append(out, col)
		}
	}
	if a.fields&FieldDescription != 0 {
		out = append(out, a.Descriptions)
	}
	if a.fields&FieldLinkedSegmentations != 0 {
		out = append(out, a.LinkedSegmentations)
	}
	if a.fields&FieldTags != 0 {
		out = append(out, a.Tags)
	}
	if a.fields&FieldGroup != 0 {
		out = append(out, a.Groups)
	}
	if a.fields&FieldID != 0 {
		out = append(out, a.IDs)
	}
	return out
}

func (a *Annotations) add(r *annotationRow) {
	a.Points = append(a.Points, r.points)
	if a.fields&FieldDescription != 0 {
		a.Descriptions = append(a.Descriptions, r.description)
	}
	if a.fields&FieldLinkedSegmentations != 0 {
		a.LinkedSegmentations = append(a.LinkedSegmentations, r.segments)
	}
	if a.fields&FieldTags != 0 {
		a.Tags = append(a.Tags, r.tags)
	}
	if a.fields&FieldGroup != 0 {
		a.Groups = append(a.Groups, r.group)
	}
	if a.fields&FieldID != 0 {
		a.IDs = append(a.IDs, r.id)
	}
}

// PointAnnotations returns the point annotations of a layer.
func PointAnnotations(s State, layerName string, fields Field) (*Annotations, error) {
	return KindAnnotations(s, layerName, PointKind, fields)
}

// LineAnnotations returns the line annotations of a layer.
func LineAnnotations(s State, layerName string, fields Field) (*Annotations, error) {
	return KindAnnotations(s, layerName, LineKind, fields)
}

// BoxAnnotations returns the bounding box annotations of a layer.
func BoxAnnotations(s State, layerName string, fields Field) (*Annotations, error) {
	return KindAnnotations(s, layerName, BoxKind, fields)
}

// SphereAnnotations returns the ellipsoid annotations of a layer.
func SphereAnnotations(s State, layerName string, fields Field) (*Annotations, error) {
	return KindAnnotations(s, layerName, SphereKind, fields)
}

// GroupAnnotations returns the group annotations of a layer.
func GroupAnnotations(s State, layerName string, fields Field) (*Annotations, error) {
	return KindAnnotations(s, layerName, GroupKind, fields)
}

// PolylineAnnotations returns the polyline annotations of a layer.
func PolylineAnnotations(s State, layerName string, fields Field) (*Annotations, error) {
	return KindAnnotations(s, layerName, PolylineKind, fields)
}

// KindAnnotations returns the annotations of the given kind in a layer.
func KindAnnotations(s State, layerName string, kind Kind, fields Field) (*Annotations, error) {
	rows, err := layerAnnotations(s, layerName)
	if err != nil {
		return nil, err
	}
	out := &Annotations{Kind: kind, fields: fields}
	for _, r := range rows {
		if r.kind == kind {
			out.add(r)
		}
	}
	return out, nil
}

// annotationRow is one decoded annotation.
type annotationRow struct {
	kind        Kind
	points      []ngstate.Vector3d
	description string
	segments    []uint64
	tags        []int
	group       string
	id          string
}

// layerAnnotations decodes every annotation of a known kind in a layer, in
// document order.
func layerAnnotations(s State, layerName string) ([]*annotationRow, error) {
	layer, err := GetLayer(s, layerName)
	if err != nil {
		return nil, err
	}
	// Spelunker tags are 0/1 entries of "props" aligned with the tag properties.
	var propTags []int
	var propIsTag []bool
	if s.Dialect() == Spelunker {
		for _, p := range annotationProperties(layer) {
			n, ok := tagNumber(stringField(p, "id"))
			propTags = append(propTags, n)
			propIsTag = append(propIsTag, ok)
		}
	}
	raw, _ := layer["annotations"].([]interface{})
	rows := make([]*annotationRow, 0, len(raw))
	for i, r := range raw {
		a, ok := r.(map[string]interface{})
		if !ok {
			continue
		}
		kind := Kind(stringField(a, "type"))
		if kind.GeometryFields() == nil {
			ngstate.Debugf("Skipping annotation %d of layer %q with unknown type %q\n", i, layerName, kind)
			continue
		}
		row, err := decodeAnnotation(a, kind)
		if err != nil {
			return nil, fmt.Errorf("layer %q annotation %d: %w", layerName, i, err)
		}
		if s.Dialect() == Seunglab {
			if row.tags, err = intList(a["tagIds"]); err != nil {
				return nil, err
			}
		} else {
			props, _ := a["props"].([]interface{})
			row.tags = []int{}
			for j, p := range props {
				if j >= len(propIsTag) || !propIsTag[j] {
					continue
				}
				if v, err := intValue(p); err == nil && v != 0 {
					row.tags = append(row.tags, propTags[j])
				}
			}
		}
		rows = append(rows, row)
	}
	return rows, nil
}

func decodeAnnotation(a map[string]interface{}, kind Kind) (*annotationRow, error) {
	row := &annotationRow{
		kind:        kind,
		description: stringField(a, "description"),
		group:       stringField(a, "parentId"),
		id:          stringField(a, "id"),
	}
	if kind == PolylineKind {
		raw, _ := a["points"].([]interface{})
		for _, p := range raw {
			v, err := vector(p)
			if err != nil {
				return nil, err
			}
			row.points = append(row.points, v)
		}
	} else {
		for _, field := range kind.GeometryFields() {
			v, err := vector(a[field])
			if err != nil {
				return nil, fmt.Errorf("field %q: %w", field, err)
			}
			row.points = append(row.points, v)
		}
	}
	segs, err := flattenSegments(a["segments"])
	if err != nil {
		return nil, err
	}
	row.segments = segs
	return row, nil
}

func vector(v interface{}) (ngstate.Vector3d, error) {
	f, err := ngstate.AsFloats(v)
	if err != nil {
		return ngstate.Vector3d{}, err
	}
	return ngstate.VectorFromSlice(f)
}

// flattenSegments reads a flat seunglab segment list or the nested spelunker
// one.
func flattenSegments(v interface{}) ([]uint64, error) {
	out := []uint64{}
	list, _ := v.([]interface{})
	for _, elem := range list {
		if nested, ok := elem.([]interface{}); ok {
			ids, err := ngstate.AsUint64s(nested)
			if err != nil {
				return nil, err
			}
			out = append(out, ids...)
			continue
		}
		id, err := ngstate.AsUint64(elem)
		if err != nil {
			return nil, err
		}
		out = append(out, id)
	}
	return out, nil
}

func intList(v interface{}) ([]int, error) {
	out := []int{}
	list, _ := v.([]interface{})
	for _, elem := range list {
		n, err := intValue(elem)
		if err != nil {
			return nil, err
		}
		out = append(out, n)
	}
	return out, nil
}
