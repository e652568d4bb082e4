package certsync

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/unkn0wn-root/certsync/codec"
	"github.com/unkn0wn-root/certsync/internal/util"
	"github.com/unkn0wn-root/certsync/transport"
)

// RequestKey identifies a call by operation and normalized arguments,
// e.g. findCertificate({"id":"A","locale":"es"}).
type RequestKey string

// record is the request shared by every handle with the same key. It stays
// in the engine's table while handles reference it: a fulfilled query record
// answers identical calls until its last handle unsubscribes. Rejected and
// mutation records leave the table on settlement.
//
// payload, err, fulfilledAt and fromCache are written once, before done is
// closed, and only read after.
type record struct {
	op        string
	key       RequestKey
	kind      opKind
	tag       string // query invalidation tag, "" for mutations
	done      chan struct{}
	startedAt time.Time

	// guarded by engine.mu
	refs    int
	settled bool
	stale   bool // invalidated while pending; dropped on settlement

	payload     any
	err         error
	fulfilledAt time.Time
	fromCache   bool
}

// retained reports whether a settled record should stay in the table.
// Caller holds engine.mu.
func (r *record) retained() bool {
	return r.kind == kindQuery && r.err == nil && !r.stale && r.refs > 0
}

// Stats is a point-in-time view of the engine's record table.
type Stats struct {
	InFlight    int // records awaiting settlement
	Retained    int // fulfilled query records still referenced by handles
	Subscribers int // handles attached to either
}

type engine struct {
	store   *Store
	exec    transport.Executor
	codecs  *codec.Registry
	results *resultCache // nil when no provider is configured
	log     Logger
	hooks   Hooks
	now     func() time.Time

	mu       sync.Mutex
	inflight map[RequestKey]*record
	closed   bool
	running  sync.WaitGroup
}

func keyFor[A, R any](ep endpoint[A, R], args A) RequestKey {
	return RequestKey(util.Canonical(ep.name, ep.keyArgs(args)))
}

// initiate attaches to the live record for the call's key, pending or
// fulfilled, or starts a new one. ForceRefetch never attaches to a settled
// record. The call runs detached from ctx cancellation: unsubscribing or
// cancelling never aborts it, and its result is always reconciled.
func initiate[A, R any](ctx context.Context, e *engine, ep endpoint[A, R], args A) *Handle[R] {
	key := keyFor(ep, args)
	if ep.validate != nil {
		if err := ep.validate(args); err != nil {
			return rejectedHandle[R](e, ep.name, key, err)
		}
	}

	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return rejectedHandle[R](e, ep.name, key, ErrClosed)
	}
	if rec, ok := e.inflight[key]; ok && !(rec.settled && forced(ep, args)) {
		rec.refs++
		n, settled := rec.refs, rec.settled
		e.mu.Unlock()
		e.hooks.RequestDeduplicated(ep.name, string(key), n)
		e.log.Debug("attached to live request", Fields{"op": ep.name, "key": key, "subscribers": n, "settled": settled})
		return newHandle[R](e, rec)
	}
	// a forced refetch replaces a settled record; its handles keep it
	rec := &record{
		op:        ep.name,
		key:       key,
		kind:      ep.kind,
		done:      make(chan struct{}),
		startedAt: e.now(),
		refs:      1,
	}
	if ep.tag != nil {
		rec.tag = ep.tag(args)
	}
	e.inflight[key] = rec
	e.running.Add(1)
	e.mu.Unlock()

	e.hooks.RequestStarted(ep.name, string(key))
	e.log.Debug("request started", Fields{"op": ep.name, "key": key})

	go run(context.WithoutCancel(ctx), e, ep, args, rec)
	return newHandle[R](e, rec)
}

func run[A, R any](ctx context.Context, e *engine, ep endpoint[A, R], args A, rec *record) {
	defer e.running.Done()

	payload, err := fetch(ctx, e, ep, args, rec)
	if err == nil {
		reconcile(e, ep, args, rec, payload)
		if ep.kind == kindMutation && ep.invalidates != nil {
			tags := ep.invalidates(args)
			e.evict(tags)
			if e.results != nil {
				e.results.invalidate(ctx, tags)
			}
		}
	} else {
		e.log.Warn("request failed", Fields{"op": ep.name, "key": rec.key, "err": err})
	}
	e.settle(rec, payload, err)
}

// fetch answers from the result cache when allowed, otherwise executes and
// decodes the call.
func fetch[A, R any](ctx context.Context, e *engine, ep endpoint[A, R], args A, rec *record) (R, error) {
	var zero R

	cacheable := ep.kind == kindQuery && e.results != nil && rec.tag != ""
	var obsGen uint64
	if cacheable {
		obsGen, cacheable = e.results.snapshotGen(ctx, rec.tag)
	}
	if cacheable && !forced(ep, args) {
		if ent, ok := e.results.get(ctx, rec.key, obsGen); ok {
			v, err := codec.Decode[R](e.codecs, ent.ContentType, ent.Body)
			if err == nil {
				rec.fromCache = true
				rec.fulfilledAt = ent.FulfilledAt
				e.hooks.ResultCacheHit(ep.name, string(rec.key))
				return v, nil
			}
			e.results.drop(ctx, rec.key, "decode")
		}
	}

	req := ep.request(args)
	res, err := e.exec.Execute(ctx, req)
	if err != nil {
		return zero, asTransportError(req, err)
	}
	v, err := codec.Decode[R](e.codecs, res.ContentType, res.Body)
	if err != nil {
		return zero, &TransportError{
			Kind:       transport.KindDecode,
			Method:     methodOf(req),
			URL:        req.Path,
			StatusCode: res.StatusCode,
			Err:        err,
		}
	}
	rec.fulfilledAt = e.now()
	if cacheable {
		e.results.put(ctx, rec.key, rec.tag, obsGen, res, rec.fulfilledAt)
	}
	return v, nil
}

// reconcile folds payload into the store. The reconciliation receives its own
// copy so handles and snapshots never share mutable values.
func reconcile[A, R any](e *engine, ep endpoint[A, R], args A, rec *record, payload R) {
	_, err := e.store.apply(func(prior Snapshot) (Snapshot, error) {
		own := payload
		if ep.clone != nil {
			own = ep.clone(payload)
		}
		return ep.reconcile(prior, args, own)
	})
	if err == nil {
		return
	}
	var skipped *ReconciliationSkipped
	if errors.As(err, &skipped) {
		e.hooks.ReconciliationSkipped(ep.name, string(rec.key), skipped.Reason)
		e.log.Debug("reconciliation skipped", Fields{"op": ep.name, "key": rec.key, "reason": skipped.Reason})
		return
	}
	e.log.Error("reconciliation failed", Fields{"op": ep.name, "key": rec.key, "err": err})
}

func (e *engine) settle(rec *record, payload any, err error) {
	e.mu.Lock()
	rec.payload, rec.err = payload, err
	rec.settled = true
	if !rec.retained() && e.inflight[rec.key] == rec {
		delete(e.inflight, rec.key)
	}
	orphaned := rec.refs == 0
	close(rec.done)
	e.mu.Unlock()

	took := e.now().Sub(rec.startedAt)
	e.hooks.RequestSettled(rec.op, string(rec.key), took, err)
	if err == nil {
		e.log.Debug("request fulfilled", Fields{"op": rec.op, "key": rec.key, "took": took, "cached": rec.fromCache})
	}
	if orphaned {
		e.hooks.OrphanedSettlement(rec.op, string(rec.key))
		e.log.Debug("settled without subscribers", Fields{"op": rec.op, "key": rec.key})
	}
}

// rejectedHandle returns a handle on a settled record that never entered
// the table; no request is made.
func rejectedHandle[R any](e *engine, op string, key RequestKey, err error) *Handle[R] {
	rec := &record{op: op, key: key, done: make(chan struct{}), refs: 1, settled: true, err: err}
	close(rec.done)
	e.log.Debug("request rejected", Fields{"op": op, "key": key, "err": err})
	return newHandle[R](e, rec)
}

// unsubscribe drops a reference. The last reference to a settled record
// tears it down; a pending record is torn down when it settles.
func (e *engine) unsubscribe(rec *record) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if rec.refs > 0 {
		rec.refs--
	}
	if rec.refs == 0 && rec.settled && e.inflight[rec.key] == rec {
		delete(e.inflight, rec.key)
	}
}

// evict drops query records whose tag a mutation just invalidated, so the
// next identical call refetches. Pending ones are marked and dropped when
// they settle.
func (e *engine) evict(tags []string) {
	if len(tags) == 0 {
		return
	}
	set := make(map[string]struct{}, len(tags))
	for _, t := range tags {
		set[t] = struct{}{}
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	for key, rec := range e.inflight {
		if _, ok := set[rec.tag]; !ok || rec.kind != kindQuery {
			continue
		}
		if rec.settled {
			delete(e.inflight, key)
			continue
		}
		rec.stale = true
	}
}

func (e *engine) stats() Stats {
	e.mu.Lock()
	defer e.mu.Unlock()
	var s Stats
	for _, rec := range e.inflight {
		if rec.settled {
			s.Retained++
		} else {
			s.InFlight++
		}
		s.Subscribers += rec.refs
	}
	return s
}

func forced[A, R any](ep endpoint[A, R], args A) bool {
	return ep.force != nil && ep.force(args)
}

// close stops accepting calls and waits for running ones until ctx is done.
func (e *engine) close(ctx context.Context) error {
	e.mu.Lock()
	e.closed = true
	e.mu.Unlock()

	done := make(chan struct{})
	go func() {
		e.running.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		return ctx.Err()
	}
	if e.results != nil {
		return e.results.close(ctx)
	}
	return nil
}

func asTransportError(req transport.Request, err error) error {
	var te *TransportError
	if errors.As(err, &te) {
		return err
	}
	return &TransportError{Kind: transport.KindNetwork, Method: methodOf(req), URL: req.Path, Err: err}
}

func methodOf(req transport.Request) string {
	if req.Method == "" {
		return "GET"
	}
	return req.Method
}
