// Package sloghooks logs certsync hook events with log/slog.
package sloghooks

import (
	"crypto/sha256"
	"encoding/hex"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/unkn0wn-root/certsync"
)

type Options struct {
	// Sampling to avoid floods; 0/1 = log all.
	SelfHealEvery uint64
	DedupEvery    uint64
	// Log every settled request at Debug. Failures are always logged.
	LogSettled bool
	// Optional key redactor. Request keys carry wallet addresses and
	// signatures, so the default is a SHA-256 prefix.
	Redact func(string) string
}

type Hooks struct {
	l    *slog.Logger
	opts Options

	selfHealCtr atomic.Uint64
	dedupCtr    atomic.Uint64
}

var _ certsync.Hooks = (*Hooks)(nil)

func New(l *slog.Logger, opts Options) *Hooks {
	return &Hooks{l: l, opts: opts}
}

func (h *Hooks) redact(k string) string {
	if h.opts.Redact != nil {
		return h.opts.Redact(k)
	}
	sum := sha256.Sum256([]byte(k))
	return hex.EncodeToString(sum[:8])
}

func sample(n uint64, ctr *atomic.Uint64) bool {
	if n == 0 || n == 1 {
		return true
	}
	return ctr.Add(1)%n == 0
}

func (h *Hooks) RequestStarted(op, key string) {
	if h.l == nil {
		return
	}
	h.l.Debug("certsync.request_started", "op", op, "key", h.redact(key))
}

func (h *Hooks) RequestDeduplicated(op, key string, subscribers int) {
	if h.l == nil || !sample(h.opts.DedupEvery, &h.dedupCtr) {
		return
	}
	h.l.Debug("certsync.request_deduplicated",
		"op", op,
		"key", h.redact(key),
		"subscribers", subscribers)
}

func (h *Hooks) RequestSettled(op, key string, took time.Duration, err error) {
	if h.l == nil {
		return
	}
	if err != nil {
		h.l.Warn("certsync.request_failed",
			"op", op,
			"key", h.redact(key),
			"took", took,
			"err", err)
		return
	}
	if h.opts.LogSettled {
		h.l.Debug("certsync.request_settled", "op", op, "key", h.redact(key), "took", took)
	}
}

func (h *Hooks) ReconciliationSkipped(op, key, reason string) {
	if h.l == nil {
		return
	}
	h.l.Info("certsync.reconciliation_skipped",
		"op", op,
		"key", h.redact(key),
		"reason", reason)
}

func (h *Hooks) OrphanedSettlement(op, key string) {
	if h.l == nil {
		return
	}
	h.l.Debug("certsync.orphaned_settlement", "op", op, "key", h.redact(key))
}

func (h *Hooks) ResultCacheHit(op, key string) {
	if h.l == nil {
		return
	}
	h.l.Debug("certsync.result_cache_hit", "op", op, "key", h.redact(key))
}

func (h *Hooks) ResultSelfHeal(storageKey, reason string) {
	if h.l == nil || !sample(h.opts.SelfHealEvery, &h.selfHealCtr) {
		return
	}
	h.l.Debug("certsync.result_self_heal",
		"key", h.redact(storageKey),
		"reason", reason)
}

func (h *Hooks) ProviderSetRejected(storageKey string) {
	if h.l == nil {
		return
	}
	h.l.Warn("certsync.provider_set_rejected", "key", h.redact(storageKey))
}

func (h *Hooks) GenBumpError(tag string, err error) {
	if h.l == nil {
		return
	}
	h.l.Error("certsync.gen_bump_error",
		"tag", tag,
		"err", err)
}
