package parser

import (
	"math"

	"github.com/apache/arrow/go/v14/arrow"

	"github.com/janelia-flyem/ngstate/dataframe"
	"github.com/janelia-flyem/ngstate/ngstate"
)

// FrameOptions modifies the table built by AnnotationDataframe.
type FrameOptions struct {
	// ExpandTags adds a boolean column per distinct tag label.
	ExpandTags bool

	// PointResolution, if set, rescales every layer's geometry from its native
	// resolution to this one.
	PointResolution ngstate.NdFloat64

	// SplitPoints writes point and pointB as _x, _y and _z columns.
	SplitPoints bool

	IncludeArchived bool
}

// Columns of the annotation table, before any expanded tag columns.
var FrameColumns = []string{
	"layer", "anno_type", "point", "pointB", "linked_segmentation",
	"tags", "group_id", "description", "anno_id",
}

type frameRow struct {
	layer  string
	row    *annotationRow
	labels map[int]string
}

// AnnotationDataframe returns one row per annotation across every annotation
// layer.  The point column holds the first geometry vector of an annotation and
// pointB the second, which is null for points, groups and polylines.
func AnnotationDataframe(s State, opts FrameOptions) (arrow.Record, error) {
	if opts.PointResolution != nil && len(opts.PointResolution) != 3 {
		return nil, ngstate.Validationf("point resolution must have 3 components, got %d", len(opts.PointResolution))
	}
	var rows []frameRow
	var tagLabels []string
	labelSeen := make(map[string]bool)
	for _, name := range AnnotationLayers(s, opts.IncludeArchived) {
		layerRows, err := layerAnnotations(s, name)
		if err != nil {
			return nil, err
		}
		if opts.PointResolution != nil {
			if err := rescale(s, name, layerRows, opts.PointResolution); err != nil {
				return nil, err
			}
		}
		labels, err := TagDictionary(s, name)
		if err != nil {
			return nil, err
		}
		for _, id := range sortedTagIDs(labels) {
			if !labelSeen[labels[id]] {
				labelSeen[labels[id]] = true
				tagLabels = append(tagLabels, labels[id])
			}
		}
		for _, r := range layerRows {
			rows = append(rows, frameRow{layer: name, row: r, labels: labels})
		}
	}

	n := len(rows)
	layers := make([]string, n)
	types := make([]string, n)
	pointA := make([]ngstate.Vector3d, n)
	pointB := make([][]float64, n)
	segments := make([][]uint64, n)
	tags := make([][]uint64, n)
	groups := make([]interface{}, n)
	descriptions := make([]interface{}, n)
	ids := make([]string, n)
	for i, fr := range rows {
		r := fr.row
		layers[i] = fr.layer
		types[i] = string(r.kind)
		if len(r.points) > 0 {
			pointA[i] = r.points[0]
		}
		if len(r.points) > 1 && r.kind != PolylineKind {
			pointB[i] = r.points[1].Slice()
		}
		segments[i] = r.segments
		tags[i] = make([]uint64, len(r.tags))
		for j, t := range r.tags {
			tags[i][j] = uint64(t)
		}
		if r.group != "" {
			groups[i] = r.group
		}
		if r.description != "" {
			descriptions[i] = r.description
		}
		ids[i] = r.id
	}

	cols := []dataframe.Column{
		{Name: "layer", Values: layers},
		{Name: "anno_type", Values: types},
	}
	if opts.SplitPoints {
		cols = append(cols, splitColumns("point", pointA, nil)...)
		cols = append(cols, splitColumns("pointB", nil, pointB)...)
	} else {
		cols = append(cols,
			dataframe.Column{Name: "point", Values: pointA},
			dataframe.Column{Name: "pointB", Values: pointB},
		)
	}
	cols = append(cols,
		dataframe.Column{Name: "linked_segmentation", Values: segments},
		dataframe.Column{Name: "tags", Values: tags},
		dataframe.Column{Name: "group_id", Values: groups},
		dataframe.Column{Name: "description", Values: descriptions},
		dataframe.Column{Name: "anno_id", Values: ids},
	)
	if opts.ExpandTags {
		for _, label := range tagLabels {
			flags := make([]bool, n)
			for i, fr := range rows {
				for _, t := range fr.row.tags {
					if l, found := fr.labels[t]; found && l == label {
						flags[i] = true
						break
					}
				}
			}
			cols = append(cols, dataframe.Column{Name: label, Values: flags})
		}
	}
	return dataframe.New(cols...)
}

// splitColumns writes x, y and z columns from either complete vectors or
// optional ones, where missing vectors become NaN.
func splitColumns(prefix string, vecs []ngstate.Vector3d, optional [][]float64) []dataframe.Column {
	n := len(vecs)
	if vecs == nil {
		n = len(optional)
	}
	axes := [3][]float64{make([]float64, n), make([]float64, n), make([]float64, n)}
	for i := 0; i < n; i++ {
		for d := 0; d < 3; d++ {
			switch {
			case vecs != nil:
				axes[d][i] = vecs[i][d]
			case optional[i] != nil:
				axes[d][i] = optional[i][d]
			default:
				axes[d][i] = math.NaN()
			}
		}
	}
	return []dataframe.Column{
		{Name: prefix + "_x", Values: axes[0]},
		{Name: prefix + "_y", Values: axes[1]},
		{Name: prefix + "_z", Values: axes[2]},
	}
}

// rescale converts the geometry of a layer from its native resolution to the
// target one.
func rescale(s State, layerName string, rows []*annotationRow, target ngstate.NdFloat64) error {
	native, err := LayerResolution(s, layerName)
	if err != nil {
		return err
	}
	if len(native) < 3 {
		return ngstate.Validationf("layer %q resolution %v has fewer than 3 axes", layerName, []float64(native))
	}
	factor, err := ngstate.NdFloat64(native[:3]).Ratio(target)
	if err != nil {
		return err
	}
	scale := ngstate.Vector3d{factor[0], factor[1], factor[2]}
	for _, r := range rows {
		for i := range r.points {
			r.points[i] = r.points[i].Mult(scale)
		}
	}
	return nil
}
