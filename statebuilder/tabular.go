package statebuilder

import (
	"fmt"

	"github.com/apache/arrow/go/v14/arrow"

	"github.com/janelia-flyem/ngstate/dataframe"
	"github.com/janelia-flyem/ngstate/ngstate"
)

// AnnotationColumns names the optional columns read for every tabular annotation.
// A point column is either a single list column or three columns with the
// suffixes _x, _y and _z.
type AnnotationColumns struct {
	// Segment holds a linked segment id or a list of them.
	Segment string

	Description string

	// ID holds annotation ids.  Ids are generated if not given.
	ID string

	// Tag holds a tag or a list of tags per row.
	Tag string

	// TagBools are boolean columns, each named for the tag it sets.
	TagBools []string

	// DataResolution is the resolution of the coordinates in the table, if
	// different from the layer's.
	DataResolution ngstate.NdFloat64
}

// PointColumns names the columns read by AddPoints.
type PointColumns struct {
	Point string
	AnnotationColumns
}

// LineColumns names the columns read by AddLines.
type LineColumns struct {
	PointA string
	PointB string
	AnnotationColumns
}

// EllipsoidColumns names the columns read by AddEllipsoids.
type EllipsoidColumns struct {
	Center string
	Radii  string
	AnnotationColumns
}

// BoxColumns names the columns read by AddBoxes.
type BoxColumns struct {
	PointA string
	PointB string
	AnnotationColumns
}

// PolylineColumns names the columns read by AddPolylines.  The Points column
// holds a list of points per row.
type PolylineColumns struct {
	Points string
	AnnotationColumns
}

// AddPoints adds one point annotation per row of an arrow.Record.  A *DataMap
// defers the table.
func (l *AnnotationLayer) AddPoints(data interface{}, cols PointColumns) error {
	if dm, ok := data.(*DataMap); ok {
		l.datamaps.register(dm, slotPoints, cols)
		return nil
	}
	rec, err := asRecord(data)
	if err != nil {
		return err
	}
	point, err := vectorColumn(rec, cols.Point)
	if err != nil {
		return err
	}
	return l.addRows(rec, cols.AnnotationColumns, func(i int, opts []AnnotationOption) (Annotation, error) {
		p, err := point(i)
		if err != nil {
			return nil, err
		}
		return NewPoint(p, opts...), nil
	})
}

// AddLines adds one line annotation per row of an arrow.Record.  A *DataMap
// defers the table.
func (l *AnnotationLayer) AddLines(data interface{}, cols LineColumns) error {
	if dm, ok := data.(*DataMap); ok {
		l.datamaps.register(dm, slotLines, cols)
		return nil
	}
	rec, err := asRecord(data)
	if err != nil {
		return err
	}
	pointA, pointB, err := vectorColumnPair(rec, cols.PointA, cols.PointB)
	if err != nil {
		return err
	}
	return l.addRows(rec, cols.AnnotationColumns, func(i int, opts []AnnotationOption) (Annotation, error) {
		a, b, err := vectorPair(pointA, pointB, i)
		if err != nil {
			return nil, err
		}
		return NewLine(a, b, opts...), nil
	})
}

// AddEllipsoids adds one ellipsoid annotation per row of an arrow.Record.  A
// *DataMap defers the table.
func (l *AnnotationLayer) AddEllipsoids(data interface{}, cols EllipsoidColumns) error {
	if dm, ok := data.(*DataMap); ok {
		l.datamaps.register(dm, slotEllipsoids, cols)
		return nil
	}
	rec, err := asRecord(data)
	if err != nil {
		return err
	}
	center, radii, err := vectorColumnPair(rec, cols.Center, cols.Radii)
	if err != nil {
		return err
	}
	return l.addRows(rec, cols.AnnotationColumns, func(i int, opts []AnnotationOption) (Annotation, error) {
		c, r, err := vectorPair(center, radii, i)
		if err != nil {
			return nil, err
		}
		return NewEllipsoid(c, r, opts...), nil
	})
}

// AddBoxes adds one bounding box annotation per row of an arrow.Record.  A
// *DataMap defers the table.
func (l *AnnotationLayer) AddBoxes(data interface{}, cols BoxColumns) error {
	if dm, ok := data.(*DataMap); ok {
		l.datamaps.register(dm, slotBoxes, cols)
		return nil
	}
	rec, err := asRecord(data)
	if err != nil {
		return err
	}
	pointA, pointB, err := vectorColumnPair(rec, cols.PointA, cols.PointB)
	if err != nil {
		return err
	}
	return l.addRows(rec, cols.AnnotationColumns, func(i int, opts []AnnotationOption) (Annotation, error) {
		a, b, err := vectorPair(pointA, pointB, i)
		if err != nil {
			return nil, err
		}
		return NewBoundingBox(a, b, opts...), nil
	})
}

// AddPolylines adds one polyline annotation per row of an arrow.Record.  A
// *DataMap defers the table.
func (l *AnnotationLayer) AddPolylines(data interface{}, cols PolylineColumns) error {
	if dm, ok := data.(*DataMap); ok {
		l.datamaps.register(dm, slotPolylines, cols)
		return nil
	}
	rec, err := asRecord(data)
	if err != nil {
		return err
	}
	arr, err := dataframe.ColumnArray(rec, cols.Points)
	if err != nil {
		return err
	}
	return l.addRows(rec, cols.AnnotationColumns, func(i int, opts []AnnotationOption) (Annotation, error) {
		v, err := dataframe.Value(arr, i)
		if err != nil {
			return nil, err
		}
		list, ok := v.([]interface{})
		if !ok {
			return nil, ngstate.Typef("row %d of column %q is not a list of points", i, cols.Points)
		}
		points := make([]ngstate.Vector3d, len(list))
		for j, elem := range list {
			if points[j], err = ToVector(elem); err != nil {
				return nil, fmt.Errorf("row %d of column %q: %w", i, cols.Points, err)
			}
		}
		return NewPolyline(points, opts...)
	})
}

func asRecord(data interface{}) (arrow.Record, error) {
	rec, ok := data.(arrow.Record)
	if !ok || rec == nil {
		return nil, ngstate.Typef("tabular annotations must be an arrow.Record or a *DataMap, got %T", data)
	}
	return rec, nil
}

type vectorGetter func(i int) (ngstate.Vector3d, error)

// vectorColumn reads points from a list column or from split _x, _y, _z columns.
func vectorColumn(rec arrow.Record, name string) (vectorGetter, error) {
	if name == "" {
		return nil, ngstate.Validationf("no point column given")
	}
	if dataframe.HasColumn(rec, name) {
		arr, err := dataframe.ColumnArray(rec, name)
		if err != nil {
			return nil, err
		}
		return func(i int) (ngstate.Vector3d, error) {
			v, err := dataframe.Value(arr, i)
			if err != nil {
				return ngstate.Vector3d{}, err
			}
			if v == nil {
				return ngstate.Vector3d{}, ngstate.Validationf("row %d of column %q: null coordinate", i, name)
			}
			p, err := ToVector(v)
			if err != nil {
				return p, fmt.Errorf("row %d of column %q: %w", i, name, err)
			}
			return p, nil
		}, nil
	}
	var split [3]arrow.Array
	for d, suffix := range []string{"_x", "_y", "_z"} {
		arr, err := dataframe.ColumnArray(rec, name+suffix)
		if err != nil {
			return nil, ngstate.NotFoundf("no point column %q or split columns %s_x, %s_y, %s_z", name, name, name, name)
		}
		split[d] = arr
	}
	suffixes := [3]string{"_x", "_y", "_z"}
	return func(i int) (ngstate.Vector3d, error) {
		var p ngstate.Vector3d
		for d, arr := range split {
			col := name + suffixes[d]
			v, err := dataframe.Value(arr, i)
			if err != nil {
				return p, err
			}
			if v == nil {
				return p, ngstate.Validationf("row %d of column %q: null coordinate", i, col)
			}
			if p[d], err = ngstate.AsFloat(v); err != nil {
				return p, fmt.Errorf("row %d of column %q: %w", i, col, err)
			}
		}
		return p, nil
	}, nil
}

func vectorColumnPair(rec arrow.Record, nameA, nameB string) (vectorGetter, vectorGetter, error) {
	a, err := vectorColumn(rec, nameA)
	if err != nil {
		return nil, nil, err
	}
	b, err := vectorColumn(rec, nameB)
	if err != nil {
		return nil, nil, err
	}
	return a, b, nil
}

func vectorPair(a, b vectorGetter, i int) (ngstate.Vector3d, ngstate.Vector3d, error) {
	pa, err := a(i)
	if err != nil {
		return pa, ngstate.Vector3d{}, err
	}
	pb, err := b(i)
	return pa, pb, err
}

// addRows builds every row's annotation before changing the layer.  Tags found in
// the table are appended to the tag registry in order of appearance.
func (l *AnnotationLayer) addRows(rec arrow.Record, cols AnnotationColumns, build func(i int, opts []AnnotationOption) (Annotation, error)) error {
	optional := func(name string) (arrow.Array, error) {
		if name == "" {
			return nil, nil
		}
		return dataframe.ColumnArray(rec, name)
	}
	segment, err := optional(cols.Segment)
	if err != nil {
		return err
	}
	description, err := optional(cols.Description)
	if err != nil {
		return err
	}
	idCol, err := optional(cols.ID)
	if err != nil {
		return err
	}
	tagCol, err := optional(cols.Tag)
	if err != nil {
		return err
	}
	tagBools := make([]arrow.Array, len(cols.TagBools))
	for j, name := range cols.TagBools {
		if tagBools[j], err = dataframe.ColumnArray(rec, name); err != nil {
			return err
		}
		if !dataframe.IsBool(tagBools[j]) {
			return ngstate.Typef("tag column %q must be boolean, got %s", name, tagBools[j].DataType())
		}
	}

	nrows := int(rec.NumRows())
	added := make([]Annotation, 0, nrows)
	var newTags []string
	for i := 0; i < nrows; i++ {
		var opts []AnnotationOption
		if segment != nil {
			v, err := dataframe.Value(segment, i)
			if err != nil {
				return err
			}
			ids, err := ngstate.AsUint64s(v)
			if err != nil {
				return fmt.Errorf("row %d of column %q: %w", i, cols.Segment, err)
			}
			opts = append(opts, WithSegments(ids...))
		}
		if description != nil {
			if v, err := dataframe.Value(description, i); err != nil {
				return err
			} else if s, ok := v.(string); ok {
				opts = append(opts, WithDescription(s))
			}
		}
		if idCol != nil {
			v, err := dataframe.Value(idCol, i)
			if err != nil {
				return err
			}
			if v != nil {
				opts = append(opts, WithID(fmt.Sprint(v)))
			}
		}
		var tags []string
		if tagCol != nil {
			v, err := dataframe.Value(tagCol, i)
			if err != nil {
				return err
			}
			if tags, err = ngstate.AsStrings(v); err != nil {
				return fmt.Errorf("row %d of column %q: %w", i, cols.Tag, err)
			}
		}
		for j, arr := range tagBools {
			if !arr.IsNull(i) {
				if v, _ := dataframe.Value(arr, i); v == true {
					tags = append(tags, cols.TagBools[j])
				}
			}
		}
		for _, tag := range tags {
			if !containsString(l.Tags, tag) && !containsString(newTags, tag) {
				newTags = append(newTags, tag)
			}
		}
		if len(tags) > 0 {
			opts = append(opts, WithTags(tags...))
		}
		if cols.DataResolution != nil {
			opts = append(opts, WithResolution(cols.DataResolution...))
		}
		a, err := build(i, opts)
		if err != nil {
			return err
		}
		added = append(added, a)
	}
	return l.appendAnnotations(added, newTags)
}
