package ratelimit

import (
	"context"
	"hash/fnv"
	"log"
	"sync"
	"time"
)

// lockShards is the number of per-client mutex shards. Requests from
// the same client always hash to the same shard, which is what makes
// the read-modify-write on a record atomic.
const lockShards = 64

// Engine owns all admission records and decides allow/deny per request.
// It performs no I/O of its own beyond the injected RecordStore; trips
// into BLOCKED/PENALIZED are reported on the Decision for the caller to
// persist as security events.
type Engine struct {
	store RecordStore
	cfg   Config
	locks [lockShards]sync.Mutex
	now   func() time.Time
}

// Option tunes engine construction.
type Option func(*Engine)

// WithClock replaces the wall clock, letting tests drive window
// rollover and penalty expiry without sleeping.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

func NewEngine(store RecordStore, cfg Config, opts ...Option) *Engine {
	e := &Engine{
		store: store,
		cfg:   cfg,
		now:   time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Config returns the engine's policy, for analytics export.
func (e *Engine) Config() Config { return e.cfg }

func (e *Engine) shard(clientKey string) *sync.Mutex {
	h := fnv.New32a()
	h.Write([]byte(clientKey))
	return &e.locks[h.Sum32()%lockShards]
}

// CheckAdmission decides whether a request from clientKey against an
// endpoint category is admitted. Safe for concurrent use: two in-flight
// requests from the same client are serialized, so both can never be
// admitted on the same remaining slot.
//
// Fail policy is open: when the record store is unreachable the request
// is admitted with FailOpen set, because denying all traffic over a
// bookkeeping fault is worse for availability than under-enforcing.
func (e *Engine) CheckAdmission(clientKey, category string) Decision {
	limit := e.cfg.Limit(category)
	key := recordKey(clientKey, category)

	lock := e.shard(clientKey)
	lock.Lock()
	defer lock.Unlock()

	prev, err := e.store.Get(key)
	if err != nil {
		log.Printf("ratelimit: record store get %s: %v (failing open)", key, err)
		return Decision{Allowed: true, Remaining: limit.HardThreshold, State: StateOK, FailOpen: true}
	}

	var rec Record
	if prev != nil {
		rec = *prev
	}

	next, dec := advance(rec, limit, e.now())

	if err := e.store.Set(key, &next); err != nil {
		// The decision itself stands; only the bookkeeping was lost.
		// A denial is still a denial, so it is not flagged as fail-open.
		log.Printf("ratelimit: record store set %s: %v", key, err)
		if dec.Allowed {
			dec.FailOpen = true
		}
	}
	return dec
}

// RecordSnapshot is a read-only copy of one category's record, with the
// state derived at snapshot time.
type RecordSnapshot struct {
	Category     string     `json:"category"`
	State        State      `json:"state"`
	Count        int        `json:"count"`
	Limit        int        `json:"limit"`
	Window       string     `json:"window"`
	Violations   int        `json:"violations"`
	BlockedUntil *time.Time `json:"blockedUntil,omitempty"`
	LastSeen     time.Time  `json:"lastSeen"`
}

// ClientInfo returns read-only snapshots of every category record held
// for clientKey. No side effects: reading never resets counters.
func (e *Engine) ClientInfo(clientKey string) ([]RecordSnapshot, error) {
	now := e.now()

	var out []RecordSnapshot
	err := e.store.ForEach(func(key string, rec Record) bool {
		ck, category := splitRecordKey(key)
		if ck != clientKey {
			return true
		}
		limit := e.cfg.Limit(category)
		snap := RecordSnapshot{
			Category:   category,
			State:      rec.StateAt(limit, now),
			Count:      rec.Count,
			Limit:      limit.HardThreshold,
			Window:     limit.Window.String(),
			Violations: rec.Violations,
			LastSeen:   rec.LastSeen,
		}
		if !rec.BlockedUntil.IsZero() && now.Before(rec.BlockedUntil) {
			until := rec.BlockedUntil
			snap.BlockedUntil = &until
		}
		out = append(out, snap)
		return true
	})
	return out, err
}

// ClearClient removes every category record for clientKey, returning
// the client to a fresh OK state on its next request. Idempotent.
func (e *Engine) ClearClient(clientKey string) error {
	lock := e.shard(clientKey)
	lock.Lock()
	defer lock.Unlock()

	var keys []string
	err := e.store.ForEach(func(key string, _ Record) bool {
		if ck, _ := splitRecordKey(key); ck == clientKey {
			keys = append(keys, key)
		}
		return true
	})
	if err != nil {
		return err
	}
	for _, key := range keys {
		if err := e.store.Delete(key); err != nil {
			return err
		}
	}
	return nil
}

// EvictIdle removes records idle longer than the configured TTL and
// returns how many were dropped. Records with an unexpired block are
// kept so eviction can never shorten a penalty. Safe to run while
// checks are in flight; a record recreated right after eviction is
// simply a fresh client.
func (e *Engine) EvictIdle(now time.Time) int {
	var stale []string
	_ = e.store.ForEach(func(key string, rec Record) bool {
		if !rec.BlockedUntil.IsZero() && now.Before(rec.BlockedUntil) {
			return true
		}
		if now.Sub(rec.LastSeen) > e.cfg.IdleTTL {
			stale = append(stale, key)
		}
		return true
	})

	evicted := 0
	for _, key := range stale {
		if err := e.store.Delete(key); err != nil {
			log.Printf("ratelimit: evict %s: %v", key, err)
			continue
		}
		evicted++
	}
	return evicted
}

// StartEvictor runs EvictIdle on a ticker until ctx is cancelled.
func (e *Engine) StartEvictor(ctx context.Context, interval time.Duration) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if n := e.EvictIdle(e.now()); n > 0 {
					log.Printf("ratelimit: evicted %d idle records", n)
				}
			}
		}
	}()
}

// ForEachRecord exposes read-only iteration over live records for the
// analytics aggregator. fn receives copies.
func (e *Engine) ForEachRecord(fn func(clientKey, category string, rec Record) bool) error {
	return e.store.ForEach(func(key string, rec Record) bool {
		ck, category := splitRecordKey(key)
		return fn(ck, category, rec)
	})
}

// Now reports the engine's current clock reading; analytics derives
// states against the same clock the engine decides with.
func (e *Engine) Now() time.Time { return e.now() }
