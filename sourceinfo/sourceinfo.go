/*
	Package sourceinfo reads the "info" document of precomputed volume sources so viewer
	states can infer their resolution and initial position.  Sources may live in Google
	Cloud Storage, on the local file system, on any web server, or in buckets registered
	with WithBucket.  Fetched documents are kept in a byte cache, optionally backed by a
	DiskCache that survives across runs, and concurrent lookups of one source share a
	single fetch.
*/
package sourceinfo

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"path"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/coocood/freecache"
	"github.com/klauspost/compress/gzip"
	"golang.org/x/sync/singleflight"

	"gocloud.dev/blob"
	"gocloud.dev/blob/fileblob"
	"gocloud.dev/blob/gcsblob"
	"gocloud.dev/gcerrors"
	"gocloud.dev/gcp"

	"github.com/janelia-flyem/ngstate/ngstate"
	"github.com/janelia-flyem/ngstate/statebuilder"
)

const (
	// PrecomputedPrefix marks precomputed sources in viewer states.
	PrecomputedPrefix = "precomputed://"

	// VolumeType is the "@type" of a precomputed volume info document.
	VolumeType = "neuroglancer_multiscale_volume"

	infoKey = "info"
)

// Scale is one resolution level of a volume.
type Scale struct {
	ChunkSizes  [][]int64 `json:"chunk_sizes"`
	Encoding    string    `json:"encoding"`
	Key         string    `json:"key"`
	Resolution  []float64 `json:"resolution"`
	Size        []int64   `json:"size"`
	VoxelOffset []int64   `json:"voxel_offset"`
}

// Volume is a precomputed volume info document.
type Volume struct {
	StoreType     string  `json:"@type"`
	VolumeType    string  `json:"type"`
	DataType      string  `json:"data_type"`
	NumChannels   int     `json:"num_channels"`
	Scales        []Scale `json:"scales"`
	MeshDir       string  `json:"mesh"`
	SkelDir       string  `json:"skeletons"`
	LabelPropsDir string  `json:"segment_properties"`
}

// Inspector fetches and caches volume info documents.  It implements
// statebuilder.SourceInspector and is safe for concurrent use.
type Inspector struct {
	cache  *freecache.Cache
	disk   *DiskCache
	expire int
	group  singleflight.Group
	client *http.Client

	bucketsMu sync.RWMutex
	buckets   map[string]*blob.Bucket

	attempts uint64
	hits     uint64
}

// Option modifies an Inspector.
type Option func(*Inspector)

// WithHTTPClient sets the client used for http and https sources.
func WithHTTPClient(c *http.Client) Option {
	return func(in *Inspector) {
		in.client = c
	}
}

// WithBucket serves sources whose URL starts with prefix, e.g., "mem://test",
// from an already opened bucket.  The rest of the URL path is the key prefix
// within the bucket.
func WithBucket(prefix string, b *blob.Bucket) Option {
	return func(in *Inspector) {
		in.buckets[strings.TrimSuffix(prefix, "/")] = b
	}
}

// WithDiskCache backs the memory cache with a disk cache.  The caller owns the
// disk cache and closes it.
func WithDiskCache(dc *DiskCache) Option {
	return func(in *Inspector) {
		in.disk = dc
	}
}

// WithExpiration sets the lifetime of cached documents in seconds.  Zero, the
// default, keeps them until evicted.
func WithExpiration(seconds int) Option {
	return func(in *Inspector) {
		in.expire = seconds
	}
}

// New returns an Inspector whose cache holds about cacheBytes of documents.  A
// non-positive size disables caching.
func New(cacheBytes int, opts ...Option) *Inspector {
	in := &Inspector{
		client:  http.DefaultClient,
		buckets: make(map[string]*blob.Bucket),
	}
	if cacheBytes > 0 {
		in.cache = freecache.NewCache(cacheBytes)
		ngstate.Debugf("Created freecache of ~ %d MB for source info.\n", cacheBytes>>20)
	}
	for _, opt := range opts {
		opt(in)
	}
	return in
}

// Stats returns the number of lookups and the number served from the cache.
func (in *Inspector) Stats() (attempts, hits uint64) {
	return atomic.LoadUint64(&in.attempts), atomic.LoadUint64(&in.hits)
}

// Inspect returns the finest scale of a volume source.
func (in *Inspector) Inspect(ctx context.Context, source string) (*statebuilder.SourceInfo, error) {
	vol, err := in.Volume(ctx, source)
	if err != nil {
		return nil, err
	}
	if len(vol.Scales) == 0 {
		return nil, ngstate.Validationf("source %q has no scales", source)
	}
	finest := vol.Scales[0]
	return &statebuilder.SourceInfo{
		URL:         source,
		Resolution:  ngstate.NdFloat64(append([]float64{}, finest.Resolution...)),
		Size:        append([]int64{}, finest.Size...),
		VoxelOffset: append([]int64{}, finest.VoxelOffset...),
	}, nil
}

// Volume returns the decoded info document of a volume source.
func (in *Inspector) Volume(ctx context.Context, source string) (*Volume, error) {
	data, err := in.info(ctx, source)
	if err != nil {
		return nil, err
	}
	var vol Volume
	if err := json.Unmarshal(data, &vol); err != nil {
		return nil, ngstate.Typef("bad info document for %q: %v", source, err)
	}
	if vol.StoreType != "" && vol.StoreType != VolumeType {
		return nil, ngstate.Validationf("source %q has @type %q, not %q", source, vol.StoreType, VolumeType)
	}
	return &vol, nil
}

// info returns the raw info document, from the cache if possible.
func (in *Inspector) info(ctx context.Context, source string) ([]byte, error) {
	location := strings.TrimSuffix(strings.TrimPrefix(source, PrecomputedPrefix), "/")
	atomic.AddUint64(&in.attempts, 1)
	key := []byte(location)
	if in.cache != nil {
		data, err := in.cache.Get(key)
		if err != nil && err != freecache.ErrNotFound {
			return nil, err
		}
		if data != nil {
			atomic.AddUint64(&in.hits, 1)
			return data, nil
		}
	}
	v, err, shared := in.group.Do(location, func() (interface{}, error) {
		if in.disk != nil {
			data, found, err := in.disk.Get(location)
			if err != nil {
				ngstate.Warningf("Unable to read disk cache for %q: %v\n", location, err)
			} else if found {
				atomic.AddUint64(&in.hits, 1)
				in.remember(key, data)
				return data, nil
			}
		}
		data, err := in.fetch(ctx, location)
		if err != nil {
			return nil, err
		}
		if data, err = maybeGunzip(data); err != nil {
			return nil, err
		}
		in.remember(key, data)
		if in.disk != nil {
			ttl := time.Duration(in.expire) * time.Second
			if err := in.disk.Put(location, data, ttl); err != nil {
				ngstate.Warningf("Unable to write disk cache for %q: %v\n", location, err)
			}
		}
		return data, nil
	})
	if err != nil {
		return nil, err
	}
	if shared {
		ngstate.Debugf("Shared info fetch for %q\n", location)
	}
	return v.([]byte), nil
}

func (in *Inspector) remember(key, data []byte) {
	if in.cache == nil {
		return
	}
	if err := in.cache.Set(key, data, in.expire); err != nil {
		ngstate.Warningf("Unable to cache info for %q: %v\n", key, err)
	}
}

func (in *Inspector) fetch(ctx context.Context, location string) ([]byte, error) {
	timedLog := ngstate.NewTimeLog()
	defer timedLog.Debugf("Fetched info for %q", location)

	in.bucketsMu.RLock()
	for prefix, b := range in.buckets {
		if location == prefix || strings.HasPrefix(location, prefix+"/") {
			in.bucketsMu.RUnlock()
			return readInfo(ctx, b, strings.TrimPrefix(strings.TrimPrefix(location, prefix), "/"), location)
		}
	}
	in.bucketsMu.RUnlock()

	u, err := url.Parse(location)
	if err != nil {
		return nil, ngstate.Validationf("bad source URL %q: %v", location, err)
	}
	switch u.Scheme {
	case "gs":
		return in.fetchGCS(ctx, u, location)
	case "file":
		b, err := fileblob.OpenBucket(u.Path, nil)
		if err != nil {
			return nil, ngstate.NotFoundf("can't open directory %q: %v", u.Path, err)
		}
		defer b.Close()
		return readInfo(ctx, b, "", location)
	case "http", "https":
		return in.fetchHTTP(ctx, location)
	}
	return nil, ngstate.Validationf("unsupported source %q", location)
}

func (in *Inspector) fetchGCS(ctx context.Context, u *url.URL, location string) ([]byte, error) {
	// See https://cloud.google.com/docs/authentication/production
	// for more info on alternatives.
	creds, err := gcp.DefaultCredentials(ctx)
	if err != nil {
		return nil, err
	}
	client, err := gcp.NewHTTPClient(gcp.DefaultTransport(), gcp.CredentialsTokenSource(creds))
	if err != nil {
		return nil, err
	}
	b, err := gcsblob.OpenBucket(ctx, client, u.Host, nil)
	if err != nil {
		return nil, fmt.Errorf("can't open bucket %q: %v", u.Host, err)
	}
	defer b.Close()
	return readInfo(ctx, b, strings.TrimPrefix(u.Path, "/"), location)
}

func (in *Inspector) fetchHTTP(ctx context.Context, location string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, location+"/"+infoKey, nil)
	if err != nil {
		return nil, err
	}
	resp, err := in.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode == http.StatusNotFound {
		return nil, ngstate.NotFoundf("no info document at %q", location)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetching info for %q: status %d", location, resp.StatusCode)
	}
	return io.ReadAll(resp.Body)
}

func readInfo(ctx context.Context, b *blob.Bucket, prefix, location string) ([]byte, error) {
	key := infoKey
	if prefix != "" {
		key = path.Join(prefix, infoKey)
	}
	data, err := b.ReadAll(ctx, key)
	if err != nil {
		if gcerrors.Code(err) == gcerrors.NotFound {
			return nil, ngstate.NotFoundf("no info document at %q", location)
		}
		return nil, err
	}
	return data, nil
}

// maybeGunzip uncompresses gzip data and returns anything else unchanged.
func maybeGunzip(in []byte) ([]byte, error) {
	if len(in) < 2 || in[0] != 0x1f || in[1] != 0x8b {
		return in, nil
	}
	zr, err := gzip.NewReader(bytes.NewReader(in))
	if err != nil {
		return nil, fmt.Errorf("can't uncompress gzip data: %v", err)
	}
	defer zr.Close()
	out, err := io.ReadAll(zr)
	if err != nil {
		return nil, fmt.Errorf("can't read gzip data: %v", err)
	}
	return out, nil
}
