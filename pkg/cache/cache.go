// Package cache provides a byte-oriented response cache for registry
// clients. A file backend serves CLI runs; the null backend disables
// caching without changing call sites.
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"time"
)

// DefaultTTL is how long registry responses stay fresh. Package metadata
// changes rarely, so a day is a reasonable ceiling.
const DefaultTTL = 24 * time.Hour

// Cache stores opaque byte values with per-entry expiry.
type Cache interface {
	// Get retrieves a value. The second return reports a hit.
	Get(ctx context.Context, key string) ([]byte, bool, error)

	// Set stores a value. A zero ttl means no expiry.
	Set(ctx context.Context, key string, data []byte, ttl time.Duration) error

	// Delete removes a value. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error

	// Close releases any resources held by the cache.
	Close() error
}

// Hash returns the hex SHA-256 of data, used for cache file naming.
func Hash(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// PackageKey is the cache key for one package's registry document.
func PackageKey(name string) string {
	return "opam:pkg:" + name
}

// IndexKey is the cache key for the registry's package name index.
const IndexKey = "opam:index"
