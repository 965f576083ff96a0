package statebuilder

import (
	"context"
	"fmt"
	"html"
	"net/url"
	"strings"

	"github.com/janelia-flyem/ngstate/config"
	"github.com/janelia-flyem/ngstate/ngstate"
)

// DatasetInfo holds the default sources and resolution of a dataset.  Any field
// may be empty.
type DatasetInfo struct {
	ImageSource        string
	SegmentationSource string
	SkeletonSource     string
	ViewerResolution   ngstate.NdFloat64
}

// InfoClient looks up dataset defaults from an info service.
type InfoClient interface {
	DatasetInfo(ctx context.Context) (*DatasetInfo, error)
}

// SourceInfo describes the finest scale of a volume source.
type SourceInfo struct {
	URL string

	// Resolution in nanometers per voxel.
	Resolution  ngstate.NdFloat64
	Size        []int64
	VoxelOffset []int64
}

// Center returns the center of the volume in voxel coordinates.
func (s *SourceInfo) Center() ngstate.NdFloat64 {
	center := make(ngstate.NdFloat64, len(s.Size))
	for i, n := range s.Size {
		var offset int64
		if i < len(s.VoxelOffset) {
			offset = s.VoxelOffset[i]
		}
		center[i] = float64(offset) + float64(n)/2
	}
	return center
}

// SourceInspector reads the description of a volume source.
type SourceInspector interface {
	Inspect(ctx context.Context, source string) (*SourceInfo, error)
}

// LinkMaker converts a JSON state into a viewer URL, optionally uploading the
// state to get a short URL.
type LinkMaker interface {
	URL(stateJSON string) (string, error)
	Shorten(ctx context.Context, stateJSON string) (string, error)
}

// SiteURL returns the viewer URL holding the whole state in its fragment.
func SiteURL(site config.Site, stateJSON string) (string, error) {
	if site.ViewerURL == "" {
		return "", ngstate.Preconditionf("site %q has no viewer URL", site.Name)
	}
	return strings.TrimSuffix(site.ViewerURL, "/") + "/#!" + url.PathEscape(stateJSON), nil
}

// siteLinks is the LinkMaker used when none is given.  It can't shorten.
type siteLinks struct {
	site config.Site
}

func (s siteLinks) URL(stateJSON string) (string, error) {
	return SiteURL(s.site, stateJSON)
}

func (s siteLinks) Shorten(ctx context.Context, stateJSON string) (string, error) {
	return "", ngstate.Preconditionf("no state server available to shorten links for site %q", s.site.Name)
}

// HTMLLink returns an anchor element opening the URL in a new tab.
func HTMLLink(u, text string) string {
	if text == "" {
		text = "Neuroglancer Link"
	}
	return fmt.Sprintf(`<a href="%s" target="_blank">%s</a>`, html.EscapeString(u), html.EscapeString(text))
}
