// Package cache provides a TTL response cache with stale reads. Entries
// that outlive their TTL stop being served as fresh hits but remain
// retrievable through GetStale, which the service layer uses as a fallback
// when the upstream is down.
package cache

import (
	"context"
	"time"
)

// Store is a byte-valued TTL cache. Values are opaque; callers marshal
// their own payloads so memory and Redis backends behave identically.
type Store interface {
	// Get returns the value for key when it exists and is still fresh.
	Get(ctx context.Context, key string) ([]byte, bool)

	// GetStale returns the value for key even after its TTL has lapsed,
	// along with whether the entry is still fresh. A missing key returns
	// (nil, false, false).
	GetStale(ctx context.Context, key string) (value []byte, fresh bool, ok bool)

	// Set stores value under key with the given freshness window.
	Set(ctx context.Context, key string, value []byte, ttl time.Duration)
}
