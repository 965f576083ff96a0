package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/janelia-flyem/ngstate/config"
	"github.com/janelia-flyem/ngstate/dataframe"
)

const testState = `{
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
			{"type": "point", "id": "p1", "point": [1, 2, 3], "tagIds": [1]},
			{"type": "point", "id": "p2", "point": [4, 5, 6], "tagIds": []},
			{"type": "line", "id": "l1", "pointA": [0, 0, 0], "pointB": [8, 8, 8]}
		 ]}
	]
}`

func writeState(t *testing.T) (dir, filename string) {
	dir = t.TempDir()
	filename = filepath.Join(dir, "state.json")
	if err := os.WriteFile(filename, []byte(testState), 0644); err != nil {
		t.Fatalf("unable to write state: %v\n", err)
	}
	return
}

func TestLayersCommand(t *testing.T) {
	_, filename := writeState(t)
	var out bytes.Buffer
	if err := DoCommand(&out, config.Default(), []string{"layers", filename}); err != nil {
		t.Fatalf("layers command failed: %v\n", err)
	}
	got := out.String()
	for _, want := range []string{"Dialect: seunglab", "image        img", "segmentation seg", "synapses (2 point, 1 line)"} {
		if !strings.Contains(got, want) {
			t.Errorf("expected %q in layers output:\n%s\n", want, got)
		}
	}
	if err := DoCommand(&out, config.Default(), []string{"layers"}); err == nil {
		t.Errorf("expected error with missing state argument\n")
	}
	if err := DoCommand(&out, config.Default(), []string{"bogus"}); err == nil {
		t.Errorf("expected error for unknown command\n")
	}
}

func TestAnnotationsCommand(t *testing.T) {
	dir, filename := writeState(t)
	outfile := filepath.Join(dir, "annos.arrow")
	var out bytes.Buffer
	args := []string{"annotations", "-expand-tags", "-split-points", "-resolution", "8,8,40", filename, outfile}
	if err := DoCommand(&out, config.Default(), args); err != nil {
		t.Fatalf("annotations command failed: %v\n", err)
	}
	rec, err := dataframe.ReadFile(outfile)
	if err != nil {
		t.Fatalf("unable to read written annotations: %v\n", err)
	}
	defer rec.Release()
	if rec.NumRows() != 3 {
		t.Errorf("expected 3 annotations, got %d\n", rec.NumRows())
	}
	for _, col := range []string{"point_x", "pointB_z", "ChC", "layer"} {
		if !dataframe.HasColumn(rec, col) {
			t.Errorf("expected column %q in written annotations\n", col)
		}
	}
	if !strings.Contains(out.String(), "Wrote 3 annotations") {
		t.Errorf("bad annotations output: %s\n", out.String())
	}

	args = []string{"annotations", "-resolution", "8,8", filename, outfile}
	if err := DoCommand(&out, config.Default(), args); err == nil {
		t.Errorf("expected error for two-component resolution\n")
	}
}

func TestMulticutCommand(t *testing.T) {
	_, filename := writeState(t)
	var out bytes.Buffer
	if err := DoCommand(&out, config.Default(), []string{"multicut", filename}); err != nil {
		t.Fatalf("multicut command failed: %v\n", err)
	}
	got := out.String()
	if !strings.Contains(got, "Root 999") || !strings.Contains(got, "supervoxel 111") || !strings.Contains(got, "sink") {
		t.Errorf("bad multicut output:\n%s\n", got)
	}
}

func TestSegpropsCommand(t *testing.T) {
	dir := t.TempDir()
	table := filepath.Join(dir, "cells.arrow")
	rec, err := dataframe.New(
		dataframe.Column{Name: "pt_root_id", Values: []uint64{10, 20}},
		dataframe.Column{Name: "cell_type", Values: []string{"chc", "pyr"}},
		dataframe.Column{Name: "volume", Values: []float64{1.5, 2.5}},
	)
	if err != nil {
		t.Fatalf("unable to build table: %v\n", err)
	}
	_, err = dataframe.WriteFile(table, rec)
	rec.Release()
	if err != nil {
		t.Fatalf("unable to write table: %v\n", err)
	}

	outfile := filepath.Join(dir, "props.json")
	var out bytes.Buffer
	args := []string{"segprops", "-label-col", "cell_type", "-number-cols", "volume", table, outfile}
	if err := DoCommand(&out, config.Default(), args); err != nil {
		t.Fatalf("segprops command failed: %v\n", err)
	}
	data, err := os.ReadFile(outfile)
	if err != nil {
		t.Fatalf("unable to read segment properties: %v\n", err)
	}
	var doc struct {
		Type   string `json:"@type"`
		Inline struct {
			IDs []string `json:"ids"`
		} `json:"inline"`
	}
	if err := json.Unmarshal(data, &doc); err != nil {
		t.Fatalf("bad segment properties JSON: %v\n", err)
	}
	if doc.Type != "neuroglancer_segment_properties" || len(doc.Inline.IDs) != 2 || doc.Inline.IDs[0] != "10" {
		t.Errorf("bad segment properties: %s\n", data)
	}
	if !strings.Contains(out.String(), "Wrote 2 segments with 2 properties") {
		t.Errorf("bad segprops output: %s\n", out.String())
	}

	args = []string{"segprops", "-number-cols", "cell_type", table, outfile}
	if err := DoCommand(&out, config.Default(), args); err == nil {
		t.Errorf("expected error for non-numeric number column\n")
	}
}

func TestInfoCommand(t *testing.T) {
	dataDir := t.TempDir()
	info := `{"@type": "neuroglancer_multiscale_volume", "type": "segmentation", "data_type": "uint64",
		"num_channels": 1, "scales": [{"key": "8_8_40", "resolution": [8, 8, 40], "size": [1000, 1000, 100],
		"voxel_offset": [0, 0, 0], "chunk_sizes": [[64, 64, 64]], "encoding": "raw"}]}`
	if err := os.WriteFile(filepath.Join(dataDir, "info"), []byte(info), 0644); err != nil {
		t.Fatalf("unable to write info: %v\n", err)
	}
	cfg := config.Default()
	cfg.Cache.Dir = filepath.Join(t.TempDir(), "cache")

	var out bytes.Buffer
	if err := DoCommand(&out, cfg, []string{"info", "precomputed://file://" + dataDir}); err != nil {
		t.Fatalf("info command failed: %v\n", err)
	}
	got := out.String()
	if !strings.Contains(got, "segmentation volume") || !strings.Contains(got, "100,000,000 voxels") || !strings.Contains(got, "Center: [500 500 50]") {
		t.Errorf("bad info output:\n%s\n", got)
	}
}
