// Package analytics computes point-in-time operator views over the
// rate-limit engine's live records. It holds no state of its own and
// never mutates what it reads.
package analytics

import (
	"time"

	"github.com/hudsor01/abuseguard/internal/ratelimit"
)

// Aggregator derives snapshots from engine state on demand.
type Aggregator struct {
	engine *ratelimit.Engine
}

func NewAggregator(engine *ratelimit.Engine) *Aggregator {
	return &Aggregator{engine: engine}
}

// Snapshot is the point-in-time summary served to operators.
type Snapshot struct {
	TrackedRecords   int `json:"trackedRecords"`
	ActiveClients    int `json:"activeClients"`
	WarnedClients    int `json:"warnedClients"`
	BlockedClients   int `json:"blockedClients"`
	PenalizedClients int `json:"penalizedClients"`
	// LoadFactor is the fraction of tracked clients currently not OK,
	// usable to tighten or relax thresholds.
	LoadFactor float64   `json:"loadFactor"`
	Timestamp  time.Time `json:"timestamp"`
}

// CategoryMetrics is the per-category slice of the metrics export.
type CategoryMetrics struct {
	Tracked   int `json:"tracked"`
	Warned    int `json:"warned"`
	Blocked   int `json:"blocked"`
	Penalized int `json:"penalized"`

	HardThreshold int    `json:"hardThreshold"`
	Window        string `json:"window"`
}

// MetricsPayload is the full export for a monitoring system to scrape.
type MetricsPayload struct {
	Snapshot   Snapshot                   `json:"snapshot"`
	Categories map[string]CategoryMetrics `json:"categories"`
}

// Snapshot walks the live records once and counts clients by their
// worst state. Read-only: reading never resets counters.
func (a *Aggregator) Snapshot() Snapshot {
	snap, _ := a.collect()
	return snap
}

// ExportMetrics combines the snapshot with per-category breakdowns.
// O(number of tracked records); safe to call frequently.
func (a *Aggregator) ExportMetrics() MetricsPayload {
	snap, categories := a.collect()
	return MetricsPayload{Snapshot: snap, Categories: categories}
}

// stateRank orders states so a client in several categories is counted
// under its worst one.
func stateRank(s ratelimit.State) int {
	switch s {
	case ratelimit.StatePenalized:
		return 3
	case ratelimit.StateBlocked:
		return 2
	case ratelimit.StateWarned:
		return 1
	default:
		return 0
	}
}

func (a *Aggregator) collect() (Snapshot, map[string]CategoryMetrics) {
	now := a.engine.Now()
	cfg := a.engine.Config()

	worst := make(map[string]ratelimit.State)
	categories := make(map[string]CategoryMetrics)
	tracked := 0

	_ = a.engine.ForEachRecord(func(clientKey, category string, rec ratelimit.Record) bool {
		tracked++
		limit := cfg.Limit(category)
		state := rec.StateAt(limit, now)

		if prev, ok := worst[clientKey]; !ok || stateRank(state) > stateRank(prev) {
			worst[clientKey] = state
		}

		cm := categories[category]
		cm.Tracked++
		switch state {
		case ratelimit.StateWarned:
			cm.Warned++
		case ratelimit.StateBlocked:
			cm.Blocked++
		case ratelimit.StatePenalized:
			cm.Penalized++
		}
		cm.HardThreshold = limit.HardThreshold
		cm.Window = limit.Window.String()
		categories[category] = cm
		return true
	})

	snap := Snapshot{
		TrackedRecords: tracked,
		ActiveClients:  len(worst),
		Timestamp:      now,
	}
	notOK := 0
	for _, state := range worst {
		switch state {
		case ratelimit.StateWarned:
			snap.WarnedClients++
			notOK++
		case ratelimit.StateBlocked:
			snap.BlockedClients++
			notOK++
		case ratelimit.StatePenalized:
			snap.PenalizedClients++
			notOK++
		}
	}
	if len(worst) > 0 {
		snap.LoadFactor = float64(notOK) / float64(len(worst))
	}
	return snap, categories
}
