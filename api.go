package certsync

import (
	"context"
	"fmt"
	"time"

	"github.com/unkn0wn-root/certsync/codec"
	gen "github.com/unkn0wn-root/certsync/genstore"
	pr "github.com/unkn0wn-root/certsync/provider"
	"github.com/unkn0wn-root/certsync/transport"
)

const (
	defaultNamespace    = "certificates"
	defaultResultTTL    = 60 * time.Second
	defaultGenSweep     = time.Hour
	defaultGenRetention = 24 * time.Hour
)

// Options configure a Client. Only Executor is required.
type Options struct {
	Executor transport.Executor

	Codecs *codec.Registry // nil => codec.DefaultRegistry()
	Logger Logger          // nil => NopLogger
	Hooks  Hooks           // nil => NopHooks

	// Result cache. Disabled unless Provider is set.
	Namespace          string        // storage key prefix; "" => "certificates"
	Provider           pr.Provider   // nil => no result cache
	GenStore           gen.GenStore  // nil => gen.Local
	ResultTTL          time.Duration // 0 => 60s, counted from fulfilment
	GenCleanupInterval time.Duration // 0 => 1h
	GenRetention       time.Duration // 0 => 24h; must exceed ResultTTL

	// now is replaced in tests.
	now func() time.Time
}

// Client issues certificate operations and keeps the Store in sync with
// their outcomes. It is safe for concurrent use.
type Client struct {
	e *engine
}

func New(opts Options) (*Client, error) {
	if opts.Executor == nil {
		return nil, fmt.Errorf("certsync: executor is required")
	}

	e := &engine{
		store:    newStore(),
		exec:     opts.Executor,
		codecs:   opts.Codecs,
		log:      coalesce[Logger](opts.Logger, NopLogger{}),
		hooks:    coalesce[Hooks](opts.Hooks, NopHooks{}),
		now:      opts.now,
		inflight: make(map[RequestKey]*record),
	}
	if e.codecs == nil {
		e.codecs = codec.DefaultRegistry()
	}
	if e.now == nil {
		e.now = time.Now
	}

	if opts.Provider != nil {
		ttl := coalesce[time.Duration](opts.ResultTTL, defaultResultTTL)
		gs := opts.GenStore
		if gs == nil {
			// a forgotten tag reads as generation 0 again, which would revive
			// entries written before its first bump
			retention := coalesce[time.Duration](opts.GenRetention, defaultGenRetention)
			if ttl >= retention {
				return nil, fmt.Errorf("certsync: result TTL %s must be shorter than gen retention %s", ttl, retention)
			}
			gs = gen.NewLocal(
				coalesce[time.Duration](opts.GenCleanupInterval, defaultGenSweep),
				retention,
			)
		}
		e.results = &resultCache{
			ns:       coalesce[string](opts.Namespace, defaultNamespace),
			provider: opts.Provider,
			gens:     gs,
			ttl:      ttl,
			log:      e.log,
			hooks:    e.hooks,
			now:      e.now,
		}
	}

	return &Client{e: e}, nil
}

// FetchAllCertificates fetches the user's certificates. On success the list
// replaces Snapshot.List.
func (c *Client) FetchAllCertificates(ctx context.Context, args ListArgs) *Handle[[]Certificate] {
	return initiate(ctx, c.e, listEndpoint, args)
}

// FindCertificate fetches one certificate. On success it becomes
// Snapshot.Current.
func (c *Client) FindCertificate(ctx context.Context, args FindArgs) *Handle[Certificate] {
	return initiate(ctx, c.e, findEndpoint, args)
}

// CompleteIcpCertificate marks a certificate complete. On success the
// returned certificate replaces Snapshot.Current.
func (c *Client) CompleteIcpCertificate(ctx context.Context, args CompleteArgs) *Handle[Certificate] {
	return initiate(ctx, c.e, completeEndpoint, args)
}

// MintCertificate requests an on-chain mint. On success the returned minting
// record is merged into Snapshot.Current and the transaction data is kept in
// Snapshot.MintingTxData.
func (c *Client) MintCertificate(ctx context.Context, args MintArgs) *Handle[MintResponse] {
	return initiate(ctx, c.e, mintEndpoint, args)
}

// Snapshot returns the latest committed state. The value shares unchanged
// parts with earlier and later snapshots; treat it as read-only or Clone it.
func (c *Client) Snapshot() Snapshot { return c.e.store.Snapshot() }

// Subscribe is Store().Subscribe. Delivered snapshots are read-only; Clone
// before modifying.
func (c *Client) Subscribe(fn func(Snapshot)) (unsubscribe func()) {
	return c.e.store.Subscribe(fn)
}

func (c *Client) Store() *Store { return c.e.store }

func (c *Client) Stats() Stats { return c.e.stats() }

// Close rejects new calls and waits for running ones to settle, then closes
// the result cache. Pending handles still resolve.
func (c *Client) Close(ctx context.Context) error { return c.e.close(ctx) }

// coalesce returns def when v is the zero value of T.
func coalesce[T comparable](v, def T) T {
	var zero T
	if v == zero {
		return def
	}
	return v
}
