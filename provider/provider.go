// Package provider defines the byte store behind the query result cache.
//
// Values are framed result entries. Implementations must hand back exactly
// the bytes that were stored: no re-encoding, no added metadata. The keyspace
// "result:<ns>:" belongs to certsync; foreign values under it are treated as
// corrupt and deleted on read.
package provider

import (
	"context"
	"time"
)

// Provider is a minimal byte store with TTLs, safe for concurrent use.
type Provider interface {
	// Get returns (value, true, nil) on hit and (nil, false, nil) on miss.
	Get(ctx context.Context, key string) ([]byte, bool, error)

	// Set stores value for ttl (ttl <= 0: no expiry, or the store's own
	// window). cost may be ignored. ok=false means the store refused the
	// write under pressure.
	Set(ctx context.Context, key string, value []byte, cost int64, ttl time.Duration) (ok bool, err error)

	Del(ctx context.Context, key string) error
	Close(ctx context.Context) error
}
