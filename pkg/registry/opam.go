package registry

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/sadiqj/opamsnap/pkg/cache"
	"github.com/sadiqj/opamsnap/pkg/retry"
)

// DefaultOpamURL is the default opam repository index API.
const DefaultOpamURL = "https://opam.ocaml.org/api"

// Opam is a client for the opam repository index API.
//
// All methods are safe for concurrent use.
type Opam struct {
	*client
	baseURL string
}

// OpamOption configures an Opam client.
type OpamOption func(*opamConfig)

type opamConfig struct {
	baseURL  string
	timeout  time.Duration
	policy   retry.Policy
	cache    cache.Cache
	cacheTTL time.Duration
	refresh  bool
}

// WithBaseURL points the client at a different index server, e.g. a local
// mirror. The default is DefaultOpamURL.
func WithBaseURL(u string) OpamOption {
	return func(c *opamConfig) { c.baseURL = u }
}

// WithTimeout sets the per-request timeout.
func WithTimeout(d time.Duration) OpamOption {
	return func(c *opamConfig) { c.timeout = d }
}

// WithRetryPolicy sets the retry policy for transient failures.
func WithRetryPolicy(p retry.Policy) OpamOption {
	return func(c *opamConfig) { c.policy = p }
}

// WithCache caches registry responses in the given store. Cached documents
// stay fresh for ttl; zero means cache.DefaultTTL.
func WithCache(store cache.Cache, ttl time.Duration) OpamOption {
	return func(c *opamConfig) {
		c.cache = store
		c.cacheTTL = ttl
	}
}

// WithRefresh bypasses cached responses and refetches everything.
func WithRefresh(refresh bool) OpamOption {
	return func(c *opamConfig) { c.refresh = refresh }
}

// NewOpam creates an opam registry client.
func NewOpam(opts ...OpamOption) *Opam {
	cfg := opamConfig{baseURL: DefaultOpamURL}
	for _, opt := range opts {
		opt(&cfg)
	}
	return &Opam{
		client: newClient(clientOptions{
			Timeout:  cfg.timeout,
			Policy:   cfg.policy,
			Cache:    cfg.cache,
			CacheTTL: cfg.cacheTTL,
			Refresh:  cfg.refresh,
		}),
		baseURL: strings.TrimRight(cfg.baseURL, "/"),
	}
}

// ListNames enumerates every package in the repository index.
func (o *Opam) ListNames(ctx context.Context) ([]string, error) {
	var resp struct {
		Packages []string `json:"packages"`
	}
	if err := o.cachedJSON(ctx, cache.IndexKey, o.baseURL+"/packages", &resp); err != nil {
		return nil, fmt.Errorf("list packages: %w", err)
	}
	return resp.Packages, nil
}

// FetchPackage retrieves the version list and opam metadata for name.
func (o *Opam) FetchPackage(ctx context.Context, name string) (*Package, error) {
	var resp opamPackage
	u := fmt.Sprintf("%s/packages/%s", o.baseURL, url.PathEscape(name))
	if err := o.cachedJSON(ctx, cache.PackageKey(name), u, &resp); err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, name)
		}
		return nil, err
	}

	pkg := &Package{
		Name:     resp.Name,
		Versions: resp.Versions,
		Synopsis: resp.Synopsis,
		License:  resp.License,
		Homepage: resp.Homepage,
		DevRepo:  resp.DevRepo,
	}
	if pkg.Name == "" {
		pkg.Name = name
	}
	return pkg, nil
}

// opamPackage mirrors the index API's package document. The metadata fields
// come from the latest version's opam file; absent fields decode as "".
type opamPackage struct {
	Name     string   `json:"name"`
	Versions []string `json:"versions"`
	Synopsis string   `json:"synopsis"`
	License  string   `json:"license"`
	Homepage string   `json:"homepage"`
	DevRepo  string   `json:"dev_repo"`
}

var _ Registry = (*Opam)(nil)
