package sourceinfo

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/klauspost/compress/gzip"
	"gocloud.dev/blob/memblob"

	"github.com/janelia-flyem/ngstate/ngstate"
	"github.com/janelia-flyem/ngstate/statebuilder"
)

var sampleInfo = `
{
	"@type": "neuroglancer_multiscale_volume",
	"type": "image",
	"data_type": "uint8",
	"num_channels": 1,
	"scales": [
	  {
		"chunk_sizes": [[64, 64, 64]],
		"encoding": "jpeg",
		"key": "4_4_40",
		"resolution": [4.0, 4.0, 40.0],
		"size": [1000, 2000, 300],
		"voxel_offset": [10, 20, 30]
	  },
	  {
		"chunk_sizes": [[64, 64, 64]],
		"encoding": "jpeg",
		"key": "8_8_40",
		"resolution": [8.0, 8.0, 40.0],
		"size": [500, 1000, 300],
		"voxel_offset": [5, 10, 30]
	  }
	]
}`

func checkInfo(t *testing.T, info *statebuilder.SourceInfo) {
	if !info.Resolution.Equals(ngstate.NdFloat64{4, 4, 40}) {
		t.Errorf("expected finest resolution (4, 4, 40), got %v\n", info.Resolution)
	}
	if !info.Center().Equals(ngstate.NdFloat64{510, 1020, 180}) {
		t.Errorf("bad center: %v\n", info.Center())
	}
}

func TestInspectFile(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "info"), []byte(sampleInfo), 0644); err != nil {
		t.Fatalf("unable to write info: %v\n", err)
	}
	in := New(1 << 20)
	ctx := context.Background()
	source := "precomputed://file://" + dir
	info, err := in.Inspect(ctx, source)
	if err != nil {
		t.Fatalf("unable to inspect %q: %v\n", source, err)
	}
	checkInfo(t, info)

	if _, err := in.Inspect(ctx, source); err != nil {
		t.Fatalf("unable to inspect %q again: %v\n", source, err)
	}
	if attempts, hits := in.Stats(); attempts != 2 || hits != 1 {
		t.Errorf("expected 2 attempts with 1 cache hit, got %d and %d\n", attempts, hits)
	}

	vol, err := in.Volume(ctx, source)
	if err != nil {
		t.Fatalf("unable to get volume: %v\n", err)
	}
	if len(vol.Scales) != 2 || vol.VolumeType != "image" || vol.Scales[1].Key != "8_8_40" {
		t.Errorf("bad volume: %+v\n", vol)
	}

	empty := t.TempDir()
	if _, err := in.Inspect(ctx, "precomputed://file://"+empty); !errors.Is(err, ngstate.ErrNotFound) {
		t.Errorf("expected not found error for missing info, got %v\n", err)
	}
	if _, err := in.Inspect(ctx, "precomputed://ftp://example.org/vol"); !errors.Is(err, ngstate.ErrValidation) {
		t.Errorf("expected validation error for unsupported scheme, got %v\n", err)
	}
}

func TestInspectGzipBucket(t *testing.T) {
	var buf bytes.Buffer
	zw := gzip.NewWriter(&buf)
	if _, err := zw.Write([]byte(sampleInfo)); err != nil {
		t.Fatalf("unable to compress: %v\n", err)
	}
	if err := zw.Close(); err != nil {
		t.Fatalf("unable to close gzip writer: %v\n", err)
	}

	ctx := context.Background()
	b := memblob.OpenBucket(nil)
	defer b.Close()
	if err := b.WriteAll(ctx, "vol/info", buf.Bytes(), nil); err != nil {
		t.Fatalf("unable to write to bucket: %v\n", err)
	}
	in := New(0, WithBucket("mem://test", b))
	info, err := in.Inspect(ctx, "precomputed://mem://test/vol")
	if err != nil {
		t.Fatalf("unable to inspect bucket source: %v\n", err)
	}
	checkInfo(t, info)
	if _, err := in.Inspect(ctx, "precomputed://mem://test/other"); !errors.Is(err, ngstate.ErrNotFound) {
		t.Errorf("expected not found error, got %v\n", err)
	}
}

func TestInspectHTTP(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/vol/info" {
			http.NotFound(w, r)
			return
		}
		w.Write([]byte(sampleInfo))
	}))
	defer srv.Close()

	in := New(1<<20, WithHTTPClient(srv.Client()))
	ctx := context.Background()
	info, err := in.Inspect(ctx, "precomputed://"+srv.URL+"/vol/")
	if err != nil {
		t.Fatalf("unable to inspect web source: %v\n", err)
	}
	checkInfo(t, info)
	if _, err := in.Inspect(ctx, "precomputed://"+srv.URL+"/missing"); !errors.Is(err, ngstate.ErrNotFound) {
		t.Errorf("expected not found error, got %v\n", err)
	}
}

func TestViewerInference(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "info"), []byte(sampleInfo), 0644); err != nil {
		t.Fatalf("unable to write info: %v\n", err)
	}
	img, err := statebuilder.NewImageLayer("img", "precomputed://file://"+dir)
	if err != nil {
		t.Fatalf("unable to make image layer: %v\n", err)
	}
	v := statebuilder.NewViewerState(statebuilder.WithSourceInspector(New(1 << 20)))
	if err := v.AddLayer(img); err != nil {
		t.Fatalf("unable to add layer: %v\n", err)
	}
	state, err := v.ToNeuroglancerState()
	if err != nil {
		t.Fatalf("unable to build state: %v\n", err)
	}
	pos, ok := state["position"].([]float64)
	if !ok || len(pos) != 3 || pos[0] != 510 {
		t.Errorf("expected inferred position centered on the volume, got %v\n", state["position"])
	}
	if _, found := state["dimensions"]; !found {
		t.Errorf("expected inferred dimensions\n")
	}
}

func TestDiskCache(t *testing.T) {
	dataDir := t.TempDir()
	infoFile := filepath.Join(dataDir, "info")
	if err := os.WriteFile(infoFile, []byte(sampleInfo), 0644); err != nil {
		t.Fatalf("unable to write info: %v\n", err)
	}
	cacheDir := filepath.Join(t.TempDir(), "cache")
	dc, err := OpenDiskCache(cacheDir)
	if err != nil {
		t.Fatalf("unable to open disk cache: %v\n", err)
	}
	ctx := context.Background()
	source := "precomputed://file://" + dataDir
	if _, err := New(0, WithDiskCache(dc)).Inspect(ctx, source); err != nil {
		t.Fatalf("unable to inspect %q: %v\n", source, err)
	}
	if err := dc.Close(); err != nil {
		t.Fatalf("unable to close disk cache: %v\n", err)
	}

	// The source is gone but a reopened cache still has its document.
	if err := os.Remove(infoFile); err != nil {
		t.Fatalf("unable to remove info: %v\n", err)
	}
	if dc, err = OpenDiskCache(cacheDir); err != nil {
		t.Fatalf("unable to reopen disk cache: %v\n", err)
	}
	defer dc.Close()
	in := New(0, WithDiskCache(dc))
	info, err := in.Inspect(ctx, source)
	if err != nil {
		t.Fatalf("unable to inspect %q from disk cache: %v\n", source, err)
	}
	checkInfo(t, info)
	if attempts, hits := in.Stats(); attempts != 1 || hits != 1 {
		t.Errorf("expected disk cache hit, got %d attempts and %d hits\n", attempts, hits)
	}
	if _, err := New(0).Inspect(ctx, source); !errors.Is(err, ngstate.ErrNotFound) {
		t.Errorf("expected not found without disk cache, got %v\n", err)
	}

	if err := dc.Put("other", []byte("abc"), 0); err != nil {
		t.Fatalf("unable to put: %v\n", err)
	}
	if data, found, err := dc.Get("other"); err != nil || !found || string(data) != "abc" {
		t.Errorf("bad cached value %q (found %t): %v\n", data, found, err)
	}
	if _, found, err := dc.Get("missing"); err != nil || found {
		t.Errorf("expected missing key, got found %t: %v\n", found, err)
	}
	if _, err := OpenDiskCache(""); !errors.Is(err, ngstate.ErrValidation) {
		t.Errorf("expected validation error for empty directory, got %v\n", err)
	}
}
