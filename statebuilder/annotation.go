package statebuilder

import (
	"strconv"

	"github.com/twinj/uuid"

	"github.com/janelia-flyem/ngstate/ngstate"
)

// AnnotationType is the wire discriminator of an annotation.
type AnnotationType string

const (
	PointType       AnnotationType = "point"
	LineType        AnnotationType = "line"
	EllipsoidType   AnnotationType = "ellipsoid"
	BoundingBoxType AnnotationType = "axis_aligned_bounding_box"
	PolylineType    AnnotationType = "polyline"
)

// Annotation is one of *PointAnnotation, *LineAnnotation, *EllipsoidAnnotation,
// *BoundingBoxAnnotation or *PolylineAnnotation.
type Annotation interface {
	Type() AnnotationType
	Base() *AnnotationBase

	// ScalePoints rescales the geometry from the annotation's own resolution into
	// the target resolution and clears the annotation's resolution.  It does
	// nothing if the annotation has no resolution.
	ScalePoints(target ngstate.NdFloat64) error

	// ToWire returns the viewer's annotation object.  The tag map gives the bit
	// position of each layer tag.  Geometry is scaled into layerResolution if the
	// annotation has its own resolution.  The annotation itself is unchanged.
	ToWire(tagMap map[string]int, layerResolution ngstate.NdFloat64) (map[string]interface{}, error)

	Clone() Annotation

	coords() []*ngstate.Vector3d
	geometryWire(wire map[string]interface{})
}

// AnnotationBase holds the fields common to all annotation types.
type AnnotationBase struct {
	ID          string
	Description string

	// Segments are groups of linked segment ids.
	Segments [][]uint64

	// Tags are looked up in the layer tag registry at serialization.  Tags missing
	// from the registry are ignored.
	Tags []string

	// Resolution of the geometry coordinates, if different from the layer's.
	Resolution ngstate.NdFloat64

	// Props holds one 0/1 value per layer tag.
	Props []int
}

// AnnotationOption sets optional fields of an annotation.
type AnnotationOption func(*AnnotationBase)

// WithID sets the annotation id instead of generating one.
func WithID(id string) AnnotationOption {
	return func(b *AnnotationBase) {
		b.ID = id
	}
}

// WithDescription sets the annotation description.
func WithDescription(description string) AnnotationOption {
	return func(b *AnnotationBase) {
		b.Description = description
	}
}

// WithSegments links the annotation to a single group of segment ids.
func WithSegments(ids ...uint64) AnnotationOption {
	return func(b *AnnotationBase) {
		if len(ids) > 0 {
			b.Segments = [][]uint64{append([]uint64{}, ids...)}
		}
	}
}

// WithSegmentGroups links the annotation to several groups of segment ids.
func WithSegmentGroups(groups ...[]uint64) AnnotationOption {
	return func(b *AnnotationBase) {
		b.Segments = nil
		for _, g := range groups {
			b.Segments = append(b.Segments, append([]uint64{}, g...))
		}
	}
}

// WithTags sets the annotation tags.
func WithTags(tags ...string) AnnotationOption {
	return func(b *AnnotationBase) {
		b.Tags = append([]string{}, tags...)
	}
}

// WithResolution sets the resolution of the annotation's coordinates.
func WithResolution(resolution ...float64) AnnotationOption {
	return func(b *AnnotationBase) {
		b.Resolution = append(ngstate.NdFloat64{}, resolution...)
	}
}

func newAnnotationBase(opts []AnnotationOption) AnnotationBase {
	var b AnnotationBase
	for _, opt := range opts {
		opt(&b)
	}
	if b.ID == "" {
		b.ID = uuid.NewV4().String()
	}
	return b
}

// Base returns the common annotation fields.
func (b *AnnotationBase) Base() *AnnotationBase {
	return b
}

// InitializePropertyList sets the property vector to n zeros.
func (b *AnnotationBase) InitializePropertyList(n int) {
	b.Props = make([]int, n)
}

// SetTagID sets the i-th property.
func (b *AnnotationBase) SetTagID(i int) error {
	if i < 0 || i >= len(b.Props) {
		return ngstate.Validationf("tag index %d out of range for %d properties", i, len(b.Props))
	}
	b.Props[i] = 1
	return nil
}

// SetTags sets the property of every annotation tag found in the tag map.
func (b *AnnotationBase) SetTags(tagMap map[string]int) {
	for _, tag := range b.Tags {
		i, found := tagMap[tag]
		if !found {
			ngstate.Debugf("annotation %s tag %q is not in the layer tags, ignoring\n", b.ID, tag)
			continue
		}
		if err := b.SetTagID(i); err != nil {
			ngstate.Debugf("annotation %s: %v\n", b.ID, err)
		}
	}
}

func (b *AnnotationBase) cloneBase() AnnotationBase {
	dup := *b
	dup.Segments = nil
	for _, g := range b.Segments {
		dup.Segments = append(dup.Segments, append([]uint64{}, g...))
	}
	dup.Tags = append([]string(nil), b.Tags...)
	dup.Resolution = b.Resolution.Duplicate()
	dup.Props = append([]int(nil), b.Props...)
	return dup
}

func (b *AnnotationBase) baseWire(t AnnotationType) map[string]interface{} {
	wire := map[string]interface{}{
		"type": string(t),
		"id":   b.ID,
	}
	if b.Description != "" {
		wire["description"] = b.Description
	}
	var segments [][]string
	for _, g := range b.Segments {
		if len(g) == 0 {
			continue
		}
		group := make([]string, len(g))
		for i, id := range g {
			group[i] = strconv.FormatUint(id, 10)
		}
		segments = append(segments, group)
	}
	if len(segments) > 0 {
		wire["segments"] = segments
	}
	if len(b.Props) > 0 {
		wire["props"] = append([]int{}, b.Props...)
	}
	return wire
}

func scalePoints(a Annotation, target ngstate.NdFloat64) error {
	b := a.Base()
	if b.Resolution == nil {
		return nil
	}
	factor, err := b.Resolution.Ratio(target)
	if err != nil {
		return err
	}
	f, err := ngstate.VectorFromSlice(factor)
	if err != nil {
		return err
	}
	for _, p := range a.coords() {
		*p = p.Mult(f)
	}
	b.Resolution = nil
	return nil
}

func toWire(a Annotation, tagMap map[string]int, layerResolution ngstate.NdFloat64) (map[string]interface{}, error) {
	dup := a.Clone()
	b := dup.Base()
	if len(tagMap) > 0 {
		b.InitializePropertyList(len(tagMap))
		b.SetTags(tagMap)
	}
	if layerResolution != nil {
		if err := dup.ScalePoints(layerResolution); err != nil {
			return nil, err
		}
	}
	wire := b.baseWire(dup.Type())
	dup.geometryWire(wire)
	return wire, nil
}

// PointAnnotation is a single point.
type PointAnnotation struct {
	AnnotationBase
	Point ngstate.Vector3d
}

// NewPoint returns a point annotation.
func NewPoint(point ngstate.Vector3d, opts ...AnnotationOption) *PointAnnotation {
	return &PointAnnotation{AnnotationBase: newAnnotationBase(opts), Point: point}
}

func (a *PointAnnotation) Type() AnnotationType { return PointType }

func (a *PointAnnotation) ScalePoints(target ngstate.NdFloat64) error {
	return scalePoints(a, target)
}

func (a *PointAnnotation) ToWire(tagMap map[string]int, layerResolution ngstate.NdFloat64) (map[string]interface{}, error) {
	return toWire(a, tagMap, layerResolution)
}

func (a *PointAnnotation) Clone() Annotation {
	return &PointAnnotation{AnnotationBase: a.cloneBase(), Point: a.Point}
}

func (a *PointAnnotation) coords() []*ngstate.Vector3d {
	return []*ngstate.Vector3d{&a.Point}
}

func (a *PointAnnotation) geometryWire(wire map[string]interface{}) {
	wire["point"] = a.Point.Slice()
}

// LineAnnotation is a line segment between two points.
type LineAnnotation struct {
	AnnotationBase
	PointA ngstate.Vector3d
	PointB ngstate.Vector3d
}

// NewLine returns a line annotation.
func NewLine(pointA, pointB ngstate.Vector3d, opts ...AnnotationOption) *LineAnnotation {
	return &LineAnnotation{AnnotationBase: newAnnotationBase(opts), PointA: pointA, PointB: pointB}
}

func (a *LineAnnotation) Type() AnnotationType { return LineType }

func (a *LineAnnotation) ScalePoints(target ngstate.NdFloat64) error {
	return scalePoints(a, target)
}

func (a *LineAnnotation) ToWire(tagMap map[string]int, layerResolution ngstate.NdFloat64) (map[string]interface{}, error) {
	return toWire(a, tagMap, layerResolution)
}

func (a *LineAnnotation) Clone() Annotation {
	return &LineAnnotation{AnnotationBase: a.cloneBase(), PointA: a.PointA, PointB: a.PointB}
}

func (a *LineAnnotation) coords() []*ngstate.Vector3d {
	return []*ngstate.Vector3d{&a.PointA, &a.PointB}
}

func (a *LineAnnotation) geometryWire(wire map[string]interface{}) {
	wire["pointA"] = a.PointA.Slice()
	wire["pointB"] = a.PointB.Slice()
}

// EllipsoidAnnotation is an axis-aligned ellipsoid.
type EllipsoidAnnotation struct {
	AnnotationBase
	Center ngstate.Vector3d
	Radii  ngstate.Vector3d
}

// NewEllipsoid returns an ellipsoid annotation.
func NewEllipsoid(center, radii ngstate.Vector3d, opts ...AnnotationOption) *EllipsoidAnnotation {
	return &EllipsoidAnnotation{AnnotationBase: newAnnotationBase(opts), Center: center, Radii: radii}
}

func (a *EllipsoidAnnotation) Type() AnnotationType { return EllipsoidType }

func (a *EllipsoidAnnotation) ScalePoints(target ngstate.NdFloat64) error {
	return scalePoints(a, target)
}

func (a *EllipsoidAnnotation) ToWire(tagMap map[string]int, layerResolution ngstate.NdFloat64) (map[string]interface{}, error) {
	return toWire(a, tagMap, layerResolution)
}

func (a *EllipsoidAnnotation) Clone() Annotation {
	return &EllipsoidAnnotation{AnnotationBase: a.cloneBase(), Center: a.Center, Radii: a.Radii}
}

func (a *EllipsoidAnnotation) coords() []*ngstate.Vector3d {
	return []*ngstate.Vector3d{&a.Center, &a.Radii}
}

func (a *EllipsoidAnnotation) geometryWire(wire map[string]interface{}) {
	wire["center"] = a.Center.Slice()
	wire["radii"] = a.Radii.Slice()
}

// BoundingBoxAnnotation is an axis-aligned box given by opposite corners.
type BoundingBoxAnnotation struct {
	AnnotationBase
	PointA ngstate.Vector3d
	PointB ngstate.Vector3d
}

// NewBoundingBox returns a bounding box annotation.
func NewBoundingBox(pointA, pointB ngstate.Vector3d, opts ...AnnotationOption) *BoundingBoxAnnotation {
	return &BoundingBoxAnnotation{AnnotationBase: newAnnotationBase(opts), PointA: pointA, PointB: pointB}
}

func (a *BoundingBoxAnnotation) Type() AnnotationType { return BoundingBoxType }

func (a *BoundingBoxAnnotation) ScalePoints(target ngstate.NdFloat64) error {
	return scalePoints(a, target)
}

func (a *BoundingBoxAnnotation) ToWire(tagMap map[string]int, layerResolution ngstate.NdFloat64) (map[string]interface{}, error) {
	return toWire(a, tagMap, layerResolution)
}

func (a *BoundingBoxAnnotation) Clone() Annotation {
	return &BoundingBoxAnnotation{AnnotationBase: a.cloneBase(), PointA: a.PointA, PointB: a.PointB}
}

func (a *BoundingBoxAnnotation) coords() []*ngstate.Vector3d {
	return []*ngstate.Vector3d{&a.PointA, &a.PointB}
}

func (a *BoundingBoxAnnotation) geometryWire(wire map[string]interface{}) {
	wire["pointA"] = a.PointA.Slice()
	wire["pointB"] = a.PointB.Slice()
}

// PolylineAnnotation is a path through one or more points.
type PolylineAnnotation struct {
	AnnotationBase
	Points []ngstate.Vector3d
}

// NewPolyline returns a polyline annotation.  At least one point is required.
func NewPolyline(points []ngstate.Vector3d, opts ...AnnotationOption) (*PolylineAnnotation, error) {
	if len(points) == 0 {
		return nil, ngstate.Validationf("polyline needs at least one point")
	}
	return &PolylineAnnotation{
		AnnotationBase: newAnnotationBase(opts),
		Points:         append([]ngstate.Vector3d{}, points...),
	}, nil
}

func (a *PolylineAnnotation) Type() AnnotationType { return PolylineType }

func (a *PolylineAnnotation) ScalePoints(target ngstate.NdFloat64) error {
	return scalePoints(a, target)
}

func (a *PolylineAnnotation) ToWire(tagMap map[string]int, layerResolution ngstate.NdFloat64) (map[string]interface{}, error) {
	return toWire(a, tagMap, layerResolution)
}

func (a *PolylineAnnotation) Clone() Annotation {
	return &PolylineAnnotation{AnnotationBase: a.cloneBase(), Points: append([]ngstate.Vector3d{}, a.Points...)}
}

func (a *PolylineAnnotation) coords() []*ngstate.Vector3d {
	out := make([]*ngstate.Vector3d, len(a.Points))
	for i := range a.Points {
		out[i] = &a.Points[i]
	}
	return out
}

func (a *PolylineAnnotation) geometryWire(wire map[string]interface{}) {
	points := make([][]float64, len(a.Points))
	for i, p := range a.Points {
		points[i] = p.Slice()
	}
	wire["points"] = points
}

// ToVector converts a list-like value of three numbers, e.g., a decoded JSON list
// or an array of any numeric type, into a Vector3d.
func ToVector(v interface{}) (ngstate.Vector3d, error) {
	f, err := ngstate.AsFloats(v)
	if err != nil {
		return ngstate.Vector3d{}, err
	}
	return ngstate.VectorFromSlice(f)
}
