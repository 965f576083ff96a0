package client

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/janelia-flyem/ngstate/config"
	"github.com/janelia-flyem/ngstate/ngstate"
	"github.com/janelia-flyem/ngstate/statebuilder"
)

// StateServer uploads states to a site's state server.  It implements
// statebuilder.LinkMaker.
type StateServer struct {
	site   config.Site
	client *http.Client
}

// NewStateServer returns a link maker for the site.
func NewStateServer(site config.Site, token string, opts ...Option) *StateServer {
	return &StateServer{site: site, client: newHTTPClient(token, opts)}
}

// URL returns the viewer URL holding the whole state.
func (s *StateServer) URL(stateJSON string) (string, error) {
	return statebuilder.SiteURL(s.site, stateJSON)
}

// Shorten uploads the state and returns a viewer URL that loads it from the
// state server.
func (s *StateServer) Shorten(ctx context.Context, stateJSON string) (string, error) {
	if s.site.StateServer == "" {
		return "", ngstate.Preconditionf("site %q has no state server", s.site.Name)
	}
	if s.site.ViewerURL == "" {
		return "", ngstate.Preconditionf("site %q has no viewer URL", s.site.Name)
	}
	server := strings.TrimSuffix(s.site.StateServer, "/")
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, server+"/post", strings.NewReader(stateJSON))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := s.client.Do(req)
	if err != nil {
		return "", err
	}
	body, err := readResponse(resp, "state upload")
	if err != nil {
		return "", err
	}
	stateURL, err := parseStateURL(server, body)
	if err != nil {
		return "", err
	}
	ngstate.Debugf("Uploaded %d byte state to %s\n", len(stateJSON), stateURL)
	return strings.TrimSuffix(s.site.ViewerURL, "/") + "/?json_url=" + url.QueryEscape(stateURL), nil
}

// parseStateURL reads the upload response, either the URL of the stored state
// or its numeric id on the server.
func parseStateURL(server string, body []byte) (string, error) {
	var v interface{}
	dec := json.NewDecoder(strings.NewReader(string(body)))
	dec.UseNumber()
	if err := dec.Decode(&v); err != nil {
		return "", ngstate.Typef("error decoding state upload response: %v", err)
	}
	switch x := v.(type) {
	case string:
		return x, nil
	case json.Number:
		return fmt.Sprintf("%s/%s", server, x), nil
	}
	return "", ngstate.Typef("unexpected state upload response %s", body)
}
