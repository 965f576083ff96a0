package parser

import (
	"errors"
	"reflect"
	"testing"

	"github.com/janelia-flyem/ngstate/dataframe"
	"github.com/janelia-flyem/ngstate/ngstate"
	"github.com/janelia-flyem/ngstate/statebuilder"
)

const seunglabState = `{
	"navigation": {"pose": {"position": {"voxelSize": [4, 4, 40], "voxelCoordinates": [100, 200, 30]}}},
	"layers": [
		{"type": "image", "name": "img", "source": "precomputed://gs://bucket/img"},
		{"type": "segmentation_with_graph", "name": "seg", "source": "graphene://https://example.org/seg",
		 "graphOperationMarker": [
			{"annotations": [{"type": "point", "id": "s1", "point": [10, 20, 30], "segments": ["111", "999"]}], "tags": []},
			{"annotations": [{"type": "point", "id": "k1", "point": [40, 50, 60], "segments": ["222", "999"]}], "tags": []}
		 ]},
		{"type": "annotation", "name": "synapses",
		 "annotationTags": [{"id": 1, "label": "ChC"}],
		 "annotations": [
			{"type": "point", "id": "p1", "point": [1, 2, 3], "tagIds": [1], "segments": ["864691135939"]},
			{"type": "point", "id": "p2", "point": [4, 5, 6], "tagIds": []},
			{"type": "point", "id": "p3", "point": [7, 8, 9], "tagIds": [1]},
			{"type": "point", "id": "p4", "point": [10, 11, 12], "tagIds": [], "description": "odd"},
			{"type": "point", "id": "p5", "point": [13, 14, 15], "tagIds": [1], "parentId": "g1"},
			{"type": "point", "id": "p6", "point": [16, 17, 18]},
			{"type": "collection", "id": "g1", "source": [13, 14, 15], "childAnnotationIds": ["p5"]}
		 ]},
		{"type": "annotation", "name": "old", "archived": true,
		 "annotations": [{"type": "line", "id": "l1", "pointA": [0, 0, 0], "pointB": [1, 1, 1]}]}
	]
}`

func parseFixture(t *testing.T, data string) State {
	s, err := Parse([]byte(data))
	if err != nil {
		t.Fatalf("unable to parse state: %v\n", err)
	}
	return s
}

func TestLayerQueries(t *testing.T) {
	s := parseFixture(t, seunglabState)
	if s.Dialect() != Seunglab {
		t.Errorf("expected seunglab dialect, got %s\n", s.Dialect())
	}
	if names := LayerNames(s); !reflect.DeepEqual(names, []string{"img", "seg", "synapses", "old"}) {
		t.Errorf("bad layer names: %v\n", names)
	}
	if names := ImageLayers(s, false); !reflect.DeepEqual(names, []string{"img"}) {
		t.Errorf("bad image layers: %v\n", names)
	}
	if names := SegmentationLayers(s, false); !reflect.DeepEqual(names, []string{"seg"}) {
		t.Errorf("bad segmentation layers: %v\n", names)
	}
	if names := AnnotationLayers(s, false); !reflect.DeepEqual(names, []string{"synapses"}) {
		t.Errorf("bad annotation layers: %v\n", names)
	}
	if names := AnnotationLayers(s, true); !reflect.DeepEqual(names, []string{"synapses", "old"}) {
		t.Errorf("bad annotation layers with archived: %v\n", names)
	}
	if _, err := GetLayer(s, "nope"); !errors.Is(err, ngstate.ErrNotFound) {
		t.Errorf("expected not found error, got %v\n", err)
	}
	res, err := Resolution(s)
	if err != nil || !res.Equals(ngstate.NdFloat64{4, 4, 40}) {
		t.Errorf("bad resolution %v: %v\n", res, err)
	}
	pos, err := Position(s)
	if err != nil || !reflect.DeepEqual(pos, []float64{100, 200, 30}) {
		t.Errorf("bad position %v: %v\n", pos, err)
	}
	tags, err := TagDictionary(s, "synapses")
	if err != nil {
		t.Fatalf("bad tag dictionary: %v\n", err)
	}
	if !reflect.DeepEqual(tags, map[int]string{1: "ChC"}) {
		t.Errorf("expected {1: ChC}, got %v\n", tags)
	}
}

func TestPointAnnotations(t *testing.T) {
	s := parseFixture(t, seunglabState)
	annos, err := PointAnnotations(s, "synapses", FieldDescription|FieldTags|FieldID)
	if err != nil {
		t.Fatalf("unable to get points: %v\n", err)
	}
	if annos.Len() != 6 {
		t.Fatalf("expected 6 points, got %d\n", annos.Len())
	}
	values := annos.Values()
	if len(values) != 4 {
		t.Fatalf("expected geometry, description, tags and id columns, got %d columns\n", len(values))
	}
	if pts := values[0].([]ngstate.Vector3d); pts[2] != (ngstate.Vector3d{7, 8, 9}) {
		t.Errorf("bad third point: %v\n", pts[2])
	}
	if desc := values[1].([]string); desc[3] != "odd" || desc[0] != "" {
		t.Errorf("bad descriptions: %v\n", desc)
	}
	if tags := values[2].([][]int); !reflect.DeepEqual(tags[0], []int{1}) || len(tags[1]) != 0 {
		t.Errorf("bad tags: %v\n", tags)
	}
	if ids := values[3].([]string); ids[0] != "p1" || ids[5] != "p6" {
		t.Errorf("bad ids: %v\n", ids)
	}

	annos, err = PointAnnotations(s, "synapses", FieldLinkedSegmentations|FieldGroup)
	if err != nil {
		t.Fatalf("unable to get points: %v\n", err)
	}
	if !reflect.DeepEqual(annos.LinkedSegmentations[0], []uint64{864691135939}) {
		t.Errorf("bad linked segmentation: %v\n", annos.LinkedSegmentations[0])
	}
	if annos.Groups[4] != "g1" || annos.Groups[0] != "" {
		t.Errorf("bad groups: %v\n", annos.Groups)
	}

	groups, err := GroupAnnotations(s, "synapses", 0)
	if err != nil {
		t.Fatalf("unable to get groups: %v\n", err)
	}
	if groups.Len() != 1 || groups.Points[0][0] != (ngstate.Vector3d{13, 14, 15}) {
		t.Errorf("bad group annotations: %v\n", groups.Points)
	}
	lines, err := LineAnnotations(s, "old", 0)
	if err != nil {
		t.Fatalf("unable to get lines: %v\n", err)
	}
	values = lines.Values()
	if len(values) != 2 || values[1].([]ngstate.Vector3d)[0] != (ngstate.Vector3d{1, 1, 1}) {
		t.Errorf("bad line values: %v\n", values)
	}
	if _, err := PointAnnotations(s, "nope", 0); !errors.Is(err, ngstate.ErrNotFound) {
		t.Errorf("expected not found error, got %v\n", err)
	}
}

func TestAnnotationDataframe(t *testing.T) {
	s := parseFixture(t, seunglabState)
	rec, err := AnnotationDataframe(s, FrameOptions{ExpandTags: true})
	if err != nil {
		t.Fatalf("unable to build annotation table: %v\n", err)
	}
	defer rec.Release()
	if rec.NumRows() != 7 {
		t.Fatalf("expected 7 rows, got %d\n", rec.NumRows())
	}
	for _, col := range FrameColumns {
		if !dataframe.HasColumn(rec, col) {
			t.Errorf("missing column %q\n", col)
		}
	}
	chc, err := dataframe.ColumnValues(rec, "ChC")
	if err != nil {
		t.Fatalf("no expanded tag column: %v\n", err)
	}
	expected := []interface{}{true, false, true, false, true, false, false}
	if !reflect.DeepEqual(chc, expected) {
		t.Errorf("expected ChC column %v, got %v\n", expected, chc)
	}
	types, _ := dataframe.ColumnValues(rec, "anno_type")
	if types[6] != "collection" || types[0] != "point" {
		t.Errorf("bad types: %v\n", types)
	}
	desc, _ := dataframe.ColumnValues(rec, "description")
	if desc[3] != "odd" || desc[0] != nil {
		t.Errorf("bad descriptions: %v\n", desc)
	}

	rec2, err := AnnotationDataframe(s, FrameOptions{PointResolution: ngstate.NdFloat64{8, 8, 40}, SplitPoints: true, IncludeArchived: true})
	if err != nil {
		t.Fatalf("unable to build rescaled table: %v\n", err)
	}
	defer rec2.Release()
	if rec2.NumRows() != 8 {
		t.Errorf("expected 8 rows with archived layer, got %d\n", rec2.NumRows())
	}
	if dataframe.HasColumn(rec2, "point") || !dataframe.HasColumn(rec2, "pointB_z") {
		t.Errorf("expected split point columns\n")
	}
	xs, _ := dataframe.ColumnValues(rec2, "point_x")
	zs, _ := dataframe.ColumnValues(rec2, "point_z")
	if xs[0] != 0.5 || zs[0] != 3.0 {
		t.Errorf("expected rescaled first point (0.5, _, 3), got x %v z %v\n", xs[0], zs[0])
	}

	if _, err := AnnotationDataframe(s, FrameOptions{PointResolution: ngstate.NdFloat64{8, 8}}); !errors.Is(err, ngstate.ErrValidation) {
		t.Errorf("expected validation error for 2-d point resolution, got %v\n", err)
	}
}

func TestExtractMulticut(t *testing.T) {
	s := parseFixture(t, seunglabState)
	mc, err := ExtractMulticut(s, "seg")
	if err != nil {
		t.Fatalf("unable to extract multicut: %v\n", err)
	}
	if len(mc.Points) != 2 || mc.Points[1] != (ngstate.Vector3d{40, 50, 60}) {
		t.Errorf("bad multicut points: %v\n", mc.Points)
	}
	if !reflect.DeepEqual(mc.Sides, []string{"source", "sink"}) {
		t.Errorf("bad sides: %v\n", mc.Sides)
	}
	if !reflect.DeepEqual(mc.SupervoxelIDs, []uint64{111, 222}) {
		t.Errorf("bad supervoxels: %v\n", mc.SupervoxelIDs)
	}
	if mc.RootID != 999 {
		t.Errorf("expected root 999, got %d\n", mc.RootID)
	}
	if mc2, err := ExtractMulticut(s, ""); err != nil || mc2.RootID != 999 {
		t.Errorf("expected sole segmentation layer to be used: %v\n", err)
	}

	ambiguous := parseFixture(t, `{"layers": [
		{"type": "segmentation", "name": "a", "source": "precomputed://gs://a"},
		{"type": "segmentation", "name": "b", "source": "precomputed://gs://b"}
	]}`)
	if _, err := ExtractMulticut(ambiguous, ""); !errors.Is(err, ngstate.ErrPrecondition) {
		t.Errorf("expected precondition error for two segmentation layers, got %v\n", err)
	}
	mc, err = ExtractMulticut(ambiguous, "a")
	if err != nil || len(mc.Points) != 0 {
		t.Errorf("expected empty multicut for layer without markers: %v\n", err)
	}
}

func TestSpelunkerRoundTrip(t *testing.T) {
	dims, err := statebuilder.NewCoordSpace([]float64{4, 4, 40})
	if err != nil {
		t.Fatalf("bad coordinate space: %v\n", err)
	}
	v := statebuilder.NewViewerState(statebuilder.WithDimensions(dims))
	v.SetPosition(ngstate.NdFloat64{1000, 2000, 300})
	v.SetInferCoordinates(false)

	layer := statebuilder.NewAnnotationLayer("synapses").AddTags("ChC", "basket")
	annos := []statebuilder.Annotation{
		statebuilder.NewPoint(ngstate.Vector3d{1, 2, 3}, statebuilder.WithID("a"), statebuilder.WithTags("basket"), statebuilder.WithSegments(12, 34)),
		statebuilder.NewPoint(ngstate.Vector3d{4, 5, 6}, statebuilder.WithID("b"), statebuilder.WithDescription("second")),
		statebuilder.NewLine(ngstate.Vector3d{0, 0, 0}, ngstate.Vector3d{8, 8, 8}, statebuilder.WithID("c"), statebuilder.WithTags("ChC", "basket")),
	}
	if err := layer.AddAnnotations(annos); err != nil {
		t.Fatalf("unable to add annotations: %v\n", err)
	}
	if err := v.AddLayer(layer); err != nil {
		t.Fatalf("unable to add layer: %v\n", err)
	}
	data, err := v.ToJSONString(0)
	if err != nil {
		t.Fatalf("unable to serialize state: %v\n", err)
	}

	s := parseFixture(t, data)
	if s.Dialect() != Spelunker {
		t.Errorf("expected spelunker dialect\n")
	}
	res, err := LayerResolution(s, "synapses")
	if err != nil || !res.Equals(ngstate.NdFloat64{4, 4, 40}) {
		t.Errorf("bad layer resolution %v: %v\n", res, err)
	}
	tags, err := TagDictionary(s, "synapses")
	if err != nil || !reflect.DeepEqual(tags, map[int]string{0: "ChC", 1: "basket"}) {
		t.Errorf("bad tag dictionary %v: %v\n", tags, err)
	}
	points, err := PointAnnotations(s, "synapses", AllFields)
	if err != nil {
		t.Fatalf("unable to get points: %v\n", err)
	}
	if points.Len() != 2 {
		t.Fatalf("expected 2 points, got %d\n", points.Len())
	}
	if !reflect.DeepEqual(points.Tags, [][]int{{1}, {}}) {
		t.Errorf("bad point tags: %v\n", points.Tags)
	}
	if !reflect.DeepEqual(points.LinkedSegmentations[0], []uint64{12, 34}) {
		t.Errorf("bad linked segmentation: %v\n", points.LinkedSegmentations[0])
	}
	if points.Descriptions[1] != "second" || points.IDs[0] != "a" {
		t.Errorf("bad descriptions %v or ids %v\n", points.Descriptions, points.IDs)
	}
	lines, err := LineAnnotations(s, "synapses", FieldTags)
	if err != nil || lines.Len() != 1 || !reflect.DeepEqual(lines.Tags[0], []int{0, 1}) {
		t.Errorf("bad line annotations: %v\n", err)
	}
}

func TestTagDictionaryBadIDs(t *testing.T) {
	for _, id := range []string{`null`, `1.5`, `"x"`} {
		s := parseFixture(t, `{
	"navigation": {"pose": {"position": {"voxelSize": [4, 4, 40]}}},
	"layers": [{"type": "annotation", "name": "a", "annotationTags": [{"id": `+id+`, "label": "t"}], "annotations": []}]
}`)
		if _, err := TagDictionary(s, "a"); !errors.Is(err, ngstate.ErrType) {
			t.Errorf("tag id %s: expected type error, got %v\n", id, err)
		}
	}
	s := parseFixture(t, `{
	"navigation": {"pose": {"position": {"voxelSize": [4, 4, 40]}}},
	"layers": [{"type": "annotation", "name": "a", "annotationTags": [{"label": "t"}], "annotations": []}]
}`)
	if _, err := TagDictionary(s, "a"); !errors.Is(err, ngstate.ErrType) {
		t.Errorf("missing tag id: expected type error, got %v\n", err)
	}
}
