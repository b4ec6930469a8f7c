package ratelimit

import "time"

// State is the admission state of one (client, category) pair.
type State string

const (
	StateOK        State = "OK"
	StateWarned    State = "WARNED"
	StateBlocked   State = "BLOCKED"
	StatePenalized State = "PENALIZED"
)

// Reason explains a denial in a Decision.
type Reason string

const (
	ReasonRateLimit    Reason = "rate_limit"
	ReasonPenaltyBlock Reason = "penalty_block"
)

// Record is the per-(client, category) counter state. It is JSON-tagged
// so the Redis-backed store can serialize it unchanged.
type Record struct {
	Count       int       `json:"count"`
	WindowStart time.Time `json:"window_start"`
	// Violations counts consecutive windows that tripped the hard
	// threshold. It decays by one per clean window.
	Violations int `json:"violations"`
	// ViolatedWindow marks the current window as already tripped, so
	// decay only applies to clean windows.
	ViolatedWindow bool `json:"violated_window"`
	// BlockedUntil is zero when no block is active. Once set it is only
	// cleared by expiry or an explicit administrative reset.
	BlockedUntil time.Time `json:"blocked_until,omitempty"`
	Penalized    bool      `json:"penalized"`
	LastSeen     time.Time `json:"last_seen"`
}

// Decision is the admission result for one request.
type Decision struct {
	Allowed    bool
	Remaining  int
	RetryAfter time.Duration
	// Reason is set only on denial.
	Reason Reason
	State  State
	// Tripped is true when this request transitioned the client into
	// BLOCKED or PENALIZED; callers persist the security event, keeping
	// the engine free of I/O.
	Tripped bool
	// FailOpen is true when the record store failed and the request was
	// admitted without bookkeeping.
	FailOpen bool
}

// StateAt derives the observable state of a record without mutating it.
func (r Record) StateAt(limit CategoryLimit, now time.Time) State {
	if !r.BlockedUntil.IsZero() && now.Before(r.BlockedUntil) {
		if r.Penalized {
			return StatePenalized
		}
		return StateBlocked
	}
	if now.Sub(r.WindowStart) < limit.Window && r.Count >= limit.SoftThreshold {
		return StateWarned
	}
	return StateOK
}

// advance is the pure transition function: given the prior record, the
// category policy and the current time, it returns the next record and
// the admission decision. All clock reads happen in the caller so the
// transitions are unit-testable without sleeping.
func advance(r Record, limit CategoryLimit, now time.Time) (Record, Decision) {
	if r.WindowStart.IsZero() {
		r.WindowStart = now
	}

	// Active block: deny without touching window bookkeeping beyond the
	// counter, which still tallies denied checks.
	if !r.BlockedUntil.IsZero() && now.Before(r.BlockedUntil) {
		r.Count++
		r.LastSeen = now
		d := Decision{
			Allowed:    false,
			Remaining:  0,
			RetryAfter: r.BlockedUntil.Sub(now),
			Reason:     ReasonRateLimit,
			State:      StateBlocked,
		}
		if r.Penalized {
			d.Reason = ReasonPenaltyBlock
			d.State = StatePenalized
		}
		return r, d
	}

	// Expired block: the client served its time; start a fresh window.
	// A served penalty also resets the violation history.
	if !r.BlockedUntil.IsZero() {
		r.BlockedUntil = time.Time{}
		if r.Penalized {
			r.Penalized = false
			r.Violations = 0
		}
		r.Count = 0
		r.WindowStart = now
		r.ViolatedWindow = false
	}

	// Window rollover: reset the counter; a clean window decays the
	// consecutive-violation count by one.
	if now.Sub(r.WindowStart) >= limit.Window {
		if !r.ViolatedWindow && r.Violations > 0 {
			r.Violations--
		}
		r.Count = 0
		r.WindowStart = now
		r.ViolatedWindow = false
	}

	r.Count++
	r.LastSeen = now

	if r.Count > limit.HardThreshold {
		r.Violations++
		r.ViolatedWindow = true

		if r.Violations >= limit.EscalationThreshold {
			r.Penalized = true
			penalty := time.Duration(float64(limit.BlockDuration) * limit.EscalationFactor)
			r.BlockedUntil = now.Add(penalty)
			return r, Decision{
				Allowed:    false,
				RetryAfter: penalty,
				Reason:     ReasonPenaltyBlock,
				State:      StatePenalized,
				Tripped:    true,
			}
		}

		r.BlockedUntil = now.Add(limit.BlockDuration)
		return r, Decision{
			Allowed:    false,
			RetryAfter: limit.BlockDuration,
			Reason:     ReasonRateLimit,
			State:      StateBlocked,
			Tripped:    true,
		}
	}

	state := StateOK
	if r.Count >= limit.SoftThreshold {
		state = StateWarned
	}
	return r, Decision{
		Allowed:   true,
		Remaining: limit.HardThreshold - r.Count,
		State:     state,
	}
}
