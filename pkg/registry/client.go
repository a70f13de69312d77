package registry

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/sadiqj/opamsnap/pkg/cache"
	"github.com/sadiqj/opamsnap/pkg/retry"
)

// client wraps an http.Client with the status classification, JSON decoding,
// and response caching shared by registry implementations.
type client struct {
	http      *http.Client
	userAgent string
	policy    retry.Policy
	cache     cache.Cache
	cacheTTL  time.Duration
	refresh   bool
}

// clientOptions configures the shared HTTP layer.
type clientOptions struct {
	Timeout   time.Duration // per-request; zero means 30s
	UserAgent string
	Policy    retry.Policy
	Cache     cache.Cache   // nil disables caching
	CacheTTL  time.Duration // zero means cache.DefaultTTL
	Refresh   bool          // bypass cached responses
}

func newClient(opts clientOptions) *client {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	ua := opts.UserAgent
	if ua == "" {
		ua = "opamsnap/1.0"
	}
	policy := opts.Policy
	if policy.Attempts == 0 {
		policy = retry.Default
	}
	store := opts.Cache
	if store == nil {
		store = cache.NewNullCache()
	}
	ttl := opts.CacheTTL
	if ttl == 0 {
		ttl = cache.DefaultTTL
	}
	return &client{
		http:      &http.Client{Timeout: timeout},
		userAgent: ua,
		policy:    policy,
		cache:     store,
		cacheTTL:  ttl,
		refresh:   opts.Refresh,
	}
}

// cachedJSON serves v from the cache when possible, fetching and storing
// the raw document otherwise. Cache errors degrade to plain fetches.
func (c *client) cachedJSON(ctx context.Context, key, url string, v any) error {
	if !c.refresh {
		if data, hit, err := c.cache.Get(ctx, key); err == nil && hit {
			if err := json.Unmarshal(data, v); err == nil {
				return nil
			}
			_ = c.cache.Delete(ctx, key)
		}
	}
	if err := c.getJSON(ctx, url, v); err != nil {
		return err
	}
	if data, err := json.Marshal(v); err == nil {
		_ = c.cache.Set(ctx, key, data, c.cacheTTL)
	}
	return nil
}

// getJSON fetches url and decodes the response into v, retrying transient
// failures under the client's policy.
func (c *client) getJSON(ctx context.Context, url string, v any) error {
	return c.policy.Do(ctx, func() error {
		return c.doJSON(ctx, url, v)
	})
}

func (c *client) doJSON(ctx context.Context, url string, v any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		// Connection failures and client timeouts are transient.
		return retry.Retryable(fmt.Errorf("registry request: %w", err))
	}
	defer resp.Body.Close()

	if err := checkStatus(resp.StatusCode, url); err != nil {
		return err
	}
	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		return fmt.Errorf("decode %s: %w", url, err)
	}
	return nil
}

// checkStatus maps HTTP statuses onto the transient/permanent taxonomy.
func checkStatus(code int, url string) error {
	switch {
	case code == http.StatusOK:
		return nil
	case code == http.StatusNotFound:
		return ErrNotFound
	case code == http.StatusTooManyRequests:
		return retry.Retryable(fmt.Errorf("rate limited: %s", url))
	case code >= 500:
		return retry.Retryable(fmt.Errorf("registry unavailable: status %d from %s", code, url))
	default:
		return fmt.Errorf("unexpected status %d from %s", code, url)
	}
}
