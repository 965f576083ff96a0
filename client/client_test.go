package client

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/janelia-flyem/ngstate/config"
	"github.com/janelia-flyem/ngstate/ngstate"
	"github.com/janelia-flyem/ngstate/statebuilder"
)

const datastackJSON = `{
	"aligned_volume": {"image_source": "precomputed://gs://bucket/em"},
	"segmentation_source": "graphene://https://example.org/segmentation/table/seg",
	"skeleton_source": "precomputed://gs://bucket/skeletons",
	"viewer_resolution_x": 4,
	"viewer_resolution_y": 4,
	"viewer_resolution_z": 40
}`

func newInfoServer(t *testing.T, body string) *httptest.Server {
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer secret" {
			t.Errorf("bad authorization header %q\n", r.Header.Get("Authorization"))
		}
		if r.URL.Path != "/api/v2/datastack/full/minnie" {
			http.NotFound(w, r)
			return
		}
		io.WriteString(w, body)
	}))
}

func TestDatasetInfo(t *testing.T) {
	srv := newInfoServer(t, datastackJSON)
	defer srv.Close()

	site := config.Site{Name: "test", InfoServer: srv.URL, Datastack: "minnie"}
	c := NewInfoClient(site, "secret", WithHTTPClient(srv.Client()))
	info, err := c.DatasetInfo(context.Background())
	if err != nil {
		t.Fatalf("unable to get dataset info: %v\n", err)
	}
	if info.ImageSource != "precomputed://gs://bucket/em" || info.SkeletonSource == "" {
		t.Errorf("bad dataset info: %+v\n", info)
	}
	if !info.ViewerResolution.Equals(ngstate.NdFloat64{4, 4, 40}) {
		t.Errorf("bad viewer resolution: %v\n", info.ViewerResolution)
	}

	v := statebuilder.NewViewerState()
	err = v.AddLayersFromClient(context.Background(), c, statebuilder.ClientLayerOptions{SkeletonSource: true, SelectSegmentation: true})
	if err != nil {
		t.Fatalf("unable to add layers from client: %v\n", err)
	}
	if names := v.LayerNames(); len(names) != 2 || names[0] != "imagery" || names[1] != "segmentation" {
		t.Errorf("bad layers from client: %v\n", names)
	}
	if v.Dimensions() == nil || !v.Dimensions().Resolution().Equals(ngstate.NdFloat64{4, 4, 40}) {
		t.Errorf("expected dimensions from viewer resolution\n")
	}

	missing := NewInfoClient(config.Site{Name: "test", InfoServer: srv.URL, Datastack: "other"}, "secret", WithHTTPClient(srv.Client()))
	if _, err := missing.DatasetInfo(context.Background()); !errors.Is(err, ngstate.ErrNotFound) {
		t.Errorf("expected not found error for unknown datastack, got %v\n", err)
	}
	if _, err := NewInfoClient(config.Site{Name: "bare"}, "").DatasetInfo(context.Background()); !errors.Is(err, ngstate.ErrPrecondition) {
		t.Errorf("expected precondition error without info server, got %v\n", err)
	}
}

func TestPartialDatasetInfo(t *testing.T) {
	srv := newInfoServer(t, `{"segmentation_source": "precomputed://gs://bucket/seg"}`)
	defer srv.Close()

	c := NewInfoClient(config.Site{InfoServer: srv.URL, Datastack: "minnie"}, "secret", WithHTTPClient(srv.Client()))
	info, err := c.DatasetInfo(context.Background())
	if err != nil {
		t.Fatalf("unable to get dataset info: %v\n", err)
	}
	if info.ImageSource != "" || info.ViewerResolution != nil || info.SegmentationSource == "" {
		t.Errorf("expected only a segmentation source, got %+v\n", info)
	}
}

func TestShorten(t *testing.T) {
	var posted string
	var numeric bool
	var srv *httptest.Server
	srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/post" {
			http.NotFound(w, r)
			return
		}
		b, _ := io.ReadAll(r.Body)
		posted = string(b)
		if numeric {
			io.WriteString(w, "1234")
		} else {
			fmt.Fprintf(w, "%q", srv.URL+"/1234")
		}
	}))
	defer srv.Close()

	site := config.Site{Name: "test", ViewerURL: "https://viewer.example.org/", StateServer: srv.URL}
	s := NewStateServer(site, "secret", WithHTTPClient(srv.Client()))
	expected := "https://viewer.example.org/?json_url=" + url.QueryEscape(srv.URL+"/1234")

	short, err := s.Shorten(context.Background(), `{"layers":[]}`)
	if err != nil {
		t.Fatalf("unable to shorten: %v\n", err)
	}
	if short != expected {
		t.Errorf("expected %q, got %q\n", expected, short)
	}
	if posted != `{"layers":[]}` {
		t.Errorf("bad posted state: %s\n", posted)
	}

	numeric = true
	if short, err = s.Shorten(context.Background(), `{}`); err != nil || short != expected {
		t.Errorf("bad shortened link from numeric id %q: %v\n", short, err)
	}

	long, err := s.URL(`{"layers":[]}`)
	if err != nil {
		t.Fatalf("unable to make URL: %v\n", err)
	}
	if !strings.HasPrefix(long, "https://viewer.example.org/#!") {
		t.Errorf("bad long URL: %s\n", long)
	}

	dims, _ := statebuilder.NewCoordSpace([]float64{4, 4, 40})
	v := statebuilder.NewViewerState(statebuilder.WithDimensions(dims), statebuilder.WithLinkMaker(s))
	v.SetInferCoordinates(false)
	numeric = false
	link, err := v.ToLink(context.Background(), "", true)
	if err != nil {
		t.Fatalf("unable to make link: %v\n", err)
	}
	if !strings.Contains(link, "json_url=") || !strings.Contains(posted, `"dimensions"`) {
		t.Errorf("bad link %s for posted state %s\n", link, posted)
	}

	noServer := NewStateServer(config.Site{Name: "bare", ViewerURL: "https://viewer.example.org"}, "")
	if _, err := noServer.Shorten(context.Background(), "{}"); !errors.Is(err, ngstate.ErrPrecondition) {
		t.Errorf("expected precondition error without state server, got %v\n", err)
	}
}
