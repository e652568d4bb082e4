package certsync

import "time"

// Hooks lightweight callbacks for high-signal events.
// Implementations MUST be cheap and non-blocking: they run on the request
// path. Wrap slow sinks with hooks/async.
type Hooks interface {
	// A new record was created and the executor is about to be called.
	RequestStarted(op, key string)

	// A caller attached to an in-flight record instead of issuing a call.
	// subscribers includes the new caller.
	RequestDeduplicated(op, key string, subscribers int)

	// A record settled. err is nil on success.
	RequestSettled(op, key string, took time.Duration, err error)

	// A success response did not meet the merge precondition.
	ReconciliationSkipped(op, key, reason string)

	// A record settled after every handle had unsubscribed. Its result was
	// still reconciled into the store.
	OrphanedSettlement(op, key string)

	// A query was answered from the result cache.
	ResultCacheHit(op, key string)

	// A result entry was deleted on read.
	// reason ∈ {"corrupt", "gen_mismatch", "expired", "decode"}
	ResultSelfHeal(storageKey, reason string)

	// Provider returned ok=false on Set (backpressure/eviction).
	ProviderSetRejected(storageKey string)

	// Generation store failed to bump a tag after a mutation.
	GenBumpError(tag string, err error)
}

// NopHooks is the default no-op
type NopHooks struct{}

func (NopHooks) RequestStarted(string, string)                       {}
func (NopHooks) RequestDeduplicated(string, string, int)             {}
func (NopHooks) RequestSettled(string, string, time.Duration, error) {}
func (NopHooks) ReconciliationSkipped(string, string, string)        {}
func (NopHooks) OrphanedSettlement(string, string)                   {}
func (NopHooks) ResultCacheHit(string, string)                       {}
func (NopHooks) ResultSelfHeal(string, string)                       {}
func (NopHooks) ProviderSetRejected(string)                          {}
func (NopHooks) GenBumpError(string, error)                          {}
