/*
	Package client talks to the remote services of a viewer site: the dataset info service,
	which supplies default sources and resolution for a datastack, and the state server,
	which stores states and returns short links.  Requests carry the configured bearer
	token.
*/
package client

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"golang.org/x/oauth2"

	"github.com/janelia-flyem/ngstate/config"
	"github.com/janelia-flyem/ngstate/ngstate"
)

type options struct {
	base *http.Client
}

// Option modifies a client.
type Option func(*options)

// WithHTTPClient sets the client that carries requests.  The bearer token, if
// any, is added on top of it.
func WithHTTPClient(c *http.Client) Option {
	return func(o *options) {
		o.base = c
	}
}

// newHTTPClient returns a client adding the token as a bearer token.
func newHTTPClient(token string, opts []Option) *http.Client {
	o := options{base: http.DefaultClient}
	for _, opt := range opts {
		opt(&o)
	}
	if token == "" {
		return o.base
	}
	ctx := context.WithValue(context.Background(), oauth2.HTTPClient, o.base)
	return oauth2.NewClient(ctx, oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token, TokenType: "Bearer"}))
}

// New returns the info client and state server of a configured site.
func New(cfg *config.Config, siteName string, opts ...Option) (*InfoClient, *StateServer, error) {
	site, err := cfg.Site(siteName)
	if err != nil {
		return nil, nil, err
	}
	token, err := cfg.Token()
	if err != nil {
		return nil, nil, err
	}
	return NewInfoClient(site, token, opts...), NewStateServer(site, token, opts...), nil
}

// readResponse returns the body of a successful response.
func readResponse(resp *http.Response, what string) ([]byte, error) {
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	switch resp.StatusCode {
	case http.StatusOK, http.StatusCreated:
		return body, nil
	case http.StatusNotFound:
		return nil, ngstate.NotFoundf("%s not found", what)
	}
	return nil, fmt.Errorf("unexpected status code %d returned for %s: %s", resp.StatusCode, what, body)
}

func decodeJSON(body []byte, v interface{}, what string) error {
	if err := json.Unmarshal(body, v); err != nil {
		return ngstate.Typef("error decoding %s: %v", what, err)
	}
	return nil
}
