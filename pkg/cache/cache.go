// Package cache stores placement results and rendered artifacts.
//
// All backends implement [Cache], a byte-oriented key/value store with
// per-entry expiration:
//
//   - [FileCache]: one JSON file per entry under a directory, for the CLI
//   - [RedisCache]: a shared Redis instance, for the HTTP server and for
//     teams that share results across machines
//   - [NullCache]: stores nothing, used when caching is disabled
//
// Keys are built by a [Keyer] from content hashes, so identical netlists
// placed with identical options map to the same entry regardless of file
// names. Values are opaque to the cache; the pipeline stores JSON.
package cache

import (
	"context"
	"time"
)

// Default expirations per entry type.
const (
	TTLPlacement = 7 * 24 * time.Hour
	TTLArtifact  = 7 * 24 * time.Hour
)

// Cache is a key/value store for serialized results.
//
// Get reports a miss as (nil, false, nil); an error means the backend
// failed, not that the key is absent. A ttl of zero stores without expiry.
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, data []byte, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
	Close() error
}

// NullCache misses on every lookup and discards every write. The runner
// falls back to it when no cache is configured, and --no-cache selects it.
type NullCache struct{}

// NewNullCache returns a cache that stores nothing.
func NewNullCache() Cache { return NullCache{} }

// Get always misses.
func (NullCache) Get(context.Context, string) ([]byte, bool, error) { return nil, false, nil }

// Set discards data.
func (NullCache) Set(context.Context, string, []byte, time.Duration) error { return nil }

// Delete is a no-op.
func (NullCache) Delete(context.Context, string) error { return nil }

// Close is a no-op.
func (NullCache) Close() error { return nil }

var _ Cache = NullCache{}
