/*
	Package config holds the explicit, passed-in configuration for building viewer states:
	the target viewer sites, authentication for remote services, logging and caching.
	Configuration is loaded from a TOML file or taken from Default().
*/
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/BurntSushi/toml"

	"github.com/janelia-flyem/ngstate/ngstate"
)

const (
	// DefaultSiteName is the site used when none is configured.
	DefaultSiteName = "spelunker"

	// DefaultSourceInfoMB is the default size of the source info cache.
	DefaultSourceInfoMB = 16
)

// Site describes a deployment of the viewer and its companion services.
type Site struct {
	Name        string `toml:"-"`
	ViewerURL   string `toml:"viewer_url"`
	StateServer string `toml:"state_server"`
	InfoServer  string `toml:"info_server"`
	Datastack   string `toml:"datastack"`
}

type authConfig struct {
	Token     string
	TokenFile string `toml:"token_file"`
}

type cacheConfig struct {
	SourceInfoMB int `toml:"source_info_mb"`
	Dir          string
}

// Config is the parsed TOML configuration.
type Config struct {
	DefaultSite string `toml:"default_site"`
	Sites       map[string]Site
	Auth        authConfig
	Logging     ngstate.LogConfig
	Cache       cacheConfig

	location string
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		DefaultSite: DefaultSiteName,
		Sites: map[string]Site{
			"spelunker": {
				Name:        "spelunker",
				ViewerURL:   "https://spelunker.cave-explorer.org",
				StateServer: "https://global.daf-apis.com/nglstate/api/v1",
			},
			"neuroglancer": {
				Name:      "neuroglancer",
				ViewerURL: "https://neuroglancer-demo.appspot.com",
			},
		},
		Cache: cacheConfig{SourceInfoMB: DefaultSourceInfoMB},
	}
}

// LoadConfig loads configuration from a TOML file.  Sites given in the file are
// added to (or replace) the built-in sites.
func LoadConfig(filename string) (*Config, error) {
	if filename == "" {
		return nil, fmt.Errorf("no TOML configuration file provided")
	}
	c := Default()
	var tc Config
	if _, err := toml.DecodeFile(filename, &tc); err != nil {
		return nil, fmt.Errorf("could not decode TOML config: %v", err)
	}
	if tc.DefaultSite != "" {
		c.DefaultSite = tc.DefaultSite
	}
	for name, site := range tc.Sites {
		c.Sites[name] = site
	}
	c.Auth = tc.Auth
	c.Logging = tc.Logging
	if tc.Cache.SourceInfoMB != 0 {
		c.Cache.SourceInfoMB = tc.Cache.SourceInfoMB
	}
	c.Cache.Dir = tc.Cache.Dir
	c.location = filename
	if err := c.convertPathsToAbsolute(filename); err != nil {
		return nil, fmt.Errorf("could not convert relative paths to absolute paths in TOML config: %v", err)
	}
	if _, err := c.Site(""); err != nil {
		return nil, err
	}
	ngstate.Debugf("Loaded configuration from %s with sites %v\n", filename, c.SiteNames())
	return c, nil
}

// Some settings in the TOML can be given as relative paths.
// This function converts them in-place to absolute paths,
// assuming the given paths were relative to the TOML file's own directory.
func (c *Config) convertPathsToAbsolute(configPath string) error {
	configDir := filepath.Dir(configPath)

	// [logging].logfile
	if c.Logging.Logfile != "" && !filepath.IsAbs(c.Logging.Logfile) {
		abs, err := filepath.Abs(filepath.Join(configDir, c.Logging.Logfile))
		if err != nil {
			return fmt.Errorf("error converting logfile setting to absolute path")
		}
		c.Logging.Logfile = abs
	}

	// [auth].token_file
	if c.Auth.TokenFile != "" && !filepath.IsAbs(c.Auth.TokenFile) {
		abs, err := filepath.Abs(filepath.Join(configDir, c.Auth.TokenFile))
		if err != nil {
			return fmt.Errorf("error converting token_file setting to absolute path")
		}
		c.Auth.TokenFile = abs
	}

	// [cache].dir
	if c.Cache.Dir != "" && !filepath.IsAbs(c.Cache.Dir) {
		abs, err := filepath.Abs(filepath.Join(configDir, c.Cache.Dir))
		if err != nil {
			return fmt.Errorf("error converting cache dir setting to absolute path")
		}
		c.Cache.Dir = abs
	}
	return nil
}

// Location returns the file the configuration was loaded from, if any.
func (c *Config) Location() string {
	return c.location
}

// Site returns the named site, or the default site if name is empty.
func (c *Config) Site(name string) (Site, error) {
	if name == "" {
		name = c.DefaultSite
	}
	site, found := c.Sites[name]
	if !found {
		return Site{}, ngstate.NotFoundf("site %q is not configured (known sites: %s)", name, strings.Join(c.SiteNames(), ", "))
	}
	site.Name = name
	return site, nil
}

// SiteNames returns the sorted names of configured sites.
func (c *Config) SiteNames() []string {
	names := make([]string, 0, len(c.Sites))
	for name := range c.Sites {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Token returns the authentication token, reading the token file if no token
// was given inline.
func (c *Config) Token() (string, error) {
	if c.Auth.Token != "" {
		return c.Auth.Token, nil
	}
	if c.Auth.TokenFile == "" {
		return "", nil
	}
	b, err := os.ReadFile(c.Auth.TokenFile)
	if err != nil {
		return "", fmt.Errorf("unable to read token file %q: %v", c.Auth.TokenFile, err)
	}
	return strings.TrimSpace(string(b)), nil
}

// CacheDir returns the directory of the persistent source info cache, or the
// empty string if none is configured.
func (c *Config) CacheDir() string {
	return c.Cache.Dir
}

// SourceInfoCacheBytes returns the configured size of the source info cache in bytes.
func (c *Config) SourceInfoCacheBytes() int {
	return c.Cache.SourceInfoMB << 20
}
