// Package genstore keeps a generation counter per invalidation tag.
//
// A query result is stored together with the generation its tag had when the
// request was issued. Mutations bump the tags they affect, which makes every
// result stored under an older generation unreadable.
package genstore

import (
	"context"
	"time"
)

// GenStore abstracts where tag generations live.
type GenStore interface {
	// Snapshot returns the current generation of tag; unknown tags are 0.
	Snapshot(ctx context.Context, tag string) (uint64, error)
	// Bump atomically increments tag and returns the new generation.
	Bump(ctx context.Context, tag string) (uint64, error)
	// Cleanup forgets tags not bumped within retention (no-op when the
	// backend expires keys itself).
	Cleanup(retention time.Duration)
	Close(context.Context) error
}
