package certsync

import (
	"context"
	"time"

	gen "github.com/unkn0wn-root/certsync/genstore"
	"github.com/unkn0wn-root/certsync/internal/util"
	"github.com/unkn0wn-root/certsync/internal/wire"
	pr "github.com/unkn0wn-root/certsync/provider"
	"github.com/unkn0wn-root/certsync/transport"
)

// resultCache keeps fulfilled query responses so a repeated query can be
// answered without a request. Entries carry the generation of the query's
// tag at the time the request was issued (CAS): a mutation that bumps the tag
// while the query is in flight prevents the stale write, and any entry from
// an older generation is dropped on read.
type resultCache struct {
	ns       string
	provider pr.Provider
	gens     gen.GenStore
	ttl      time.Duration
	log      Logger
	hooks    Hooks
	now      func() time.Time
}

func (c *resultCache) storageKey(key RequestKey) string {
	return util.HashedKey("result:"+c.ns, string(key))
}

// snapshotGen returns ok=false when the generation store fails; callers then
// neither read nor write, since any generation would be a guess.
func (c *resultCache) snapshotGen(ctx context.Context, tag string) (uint64, bool) {
	g, err := c.gens.Snapshot(ctx, tag)
	if err != nil {
		c.log.Warn("gen snapshot error", Fields{"tag": tag, "err": err})
		return 0, false
	}
	return g, true
}

func (c *resultCache) get(ctx context.Context, key RequestKey, observedGen uint64) (wire.Entry, bool) {
	sk := c.storageKey(key)
	raw, ok, err := c.provider.Get(ctx, sk)
	if err != nil {
		c.log.Debug("result get failed", Fields{"key": key, "err": err})
		return wire.Entry{}, false
	}
	if !ok {
		return wire.Entry{}, false
	}
	ent, err := wire.Decode(raw)
	if err != nil {
		c.selfHeal(ctx, sk, "corrupt")
		return wire.Entry{}, false
	}
	if ent.Gen != observedGen {
		c.selfHeal(ctx, sk, "gen_mismatch")
		return wire.Entry{}, false
	}
	if c.now().Sub(ent.FulfilledAt) > c.ttl {
		c.selfHeal(ctx, sk, "expired")
		return wire.Entry{}, false
	}
	return ent, true
}

// put stores res iff tag is still at observedGen.
func (c *resultCache) put(ctx context.Context, key RequestKey, tag string, observedGen uint64, res transport.Response, at time.Time) {
	cur, ok := c.snapshotGen(ctx, tag)
	if !ok {
		return
	}
	if cur != observedGen {
		c.log.Debug("result put skipped (gen moved)", Fields{"key": key, "tag": tag, "obs": observedGen, "cur": cur})
		return
	}
	b, err := wire.Encode(wire.Entry{
		Gen:         observedGen,
		FulfilledAt: at,
		ContentType: res.ContentType,
		Body:        res.Body,
	})
	if err != nil {
		c.log.Debug("result encode failed", Fields{"key": key, "err": err})
		return
	}
	sk := c.storageKey(key)
	stored, err := c.provider.Set(ctx, sk, b, int64(len(b)), c.ttl)
	if err != nil {
		c.log.Warn("result put failed", Fields{"key": key, "err": err})
		return
	}
	if !stored {
		c.hooks.ProviderSetRejected(sk)
		c.log.Debug("result put rejected by provider (pressure)", Fields{"key": key})
	}
}

func (c *resultCache) drop(ctx context.Context, key RequestKey, reason string) {
	c.selfHeal(ctx, c.storageKey(key), reason)
}

func (c *resultCache) selfHeal(ctx context.Context, storageKey, reason string) {
	_ = c.provider.Del(ctx, storageKey)
	c.hooks.ResultSelfHeal(storageKey, reason)
	c.log.Debug("result entry dropped", Fields{"storageKey": storageKey, "reason": reason})
}

// invalidate bumps every tag; entries under older generations become
// unreadable.
func (c *resultCache) invalidate(ctx context.Context, tags []string) {
	for _, tag := range tags {
		g, err := c.gens.Bump(ctx, tag)
		if err != nil {
			c.hooks.GenBumpError(tag, err)
			c.log.Error("gen bump error", Fields{"tag": tag, "err": err})
			continue
		}
		c.log.Debug("invalidated tag", Fields{"tag": tag, "newGen": g})
	}
}

func (c *resultCache) close(ctx context.Context) error {
	_ = c.gens.Close(ctx)
	return c.provider.Close(ctx)
}
