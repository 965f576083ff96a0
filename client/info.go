package client

import (
	"context"
	"net/http"
	"net/url"
	"strings"

	"github.com/janelia-flyem/ngstate/config"
	"github.com/janelia-flyem/ngstate/ngstate"
	"github.com/janelia-flyem/ngstate/statebuilder"
)

// InfoClient looks up datastack defaults from a site's info service.  It
// implements statebuilder.InfoClient.
type InfoClient struct {
	site   config.Site
	client *http.Client
}

// NewInfoClient returns a client for the site's info server and datastack.
func NewInfoClient(site config.Site, token string, opts ...Option) *InfoClient {
	return &InfoClient{site: site, client: newHTTPClient(token, opts)}
}

type datastackInfo struct {
	AlignedVolume struct {
		ImageSource string `json:"image_source"`
	} `json:"aligned_volume"`
	SegmentationSource string   `json:"segmentation_source"`
	SkeletonSource     string   `json:"skeleton_source"`
	ViewerResolutionX  *float64 `json:"viewer_resolution_x"`
	ViewerResolutionY  *float64 `json:"viewer_resolution_y"`
	ViewerResolutionZ  *float64 `json:"viewer_resolution_z"`
}

// DatasetInfo returns the default sources and resolution of the site's
// datastack.  Fields the service doesn't supply are left empty.
func (c *InfoClient) DatasetInfo(ctx context.Context) (*statebuilder.DatasetInfo, error) {
	if c.site.InfoServer == "" || c.site.Datastack == "" {
		return nil, ngstate.Preconditionf("site %q needs an info server and datastack", c.site.Name)
	}
	endpoint := strings.TrimSuffix(c.site.InfoServer, "/") + "/api/v2/datastack/full/" + url.PathEscape(c.site.Datastack)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return nil, err
	}
	what := "datastack " + c.site.Datastack
	body, err := readResponse(resp, what)
	if err != nil {
		return nil, err
	}
	var d datastackInfo
	if err := decodeJSON(body, &d, what); err != nil {
		return nil, err
	}
	info := &statebuilder.DatasetInfo{
		ImageSource:        d.AlignedVolume.ImageSource,
		SegmentationSource: d.SegmentationSource,
		SkeletonSource:     d.SkeletonSource,
	}
	if d.ViewerResolutionX != nil && d.ViewerResolutionY != nil && d.ViewerResolutionZ != nil {
		info.ViewerResolution = ngstate.NdFloat64{*d.ViewerResolutionX, *d.ViewerResolutionY, *d.ViewerResolutionZ}
	}
	ngstate.Debugf("Datastack %q info: %+v\n", c.site.Datastack, *info)
	return info, nil
}
