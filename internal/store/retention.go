package store

import "time"

// DefaultHorizon is how long decisions are remembered.
const DefaultHorizon = 72 * time.Hour

// Retention drops decision records older than Horizon.
type Retention struct {
	Horizon time.Duration
	Now     Clock
}

// NewRetention returns a retention filter using the wall clock.
func NewRetention(horizon time.Duration) Retention {
	return Retention{Horizon: horizon, Now: time.Now}
}

// Keep reports whether a record decided at t is still within the horizon.
// The boundary is inclusive and records without a timestamp are kept.
func (r Retention) Keep(t time.Time) bool {
	cutoff, ok := r.Cutoff()
	if !ok || t.IsZero() {
		return true
	}
	return !t.Before(cutoff)
}

// Cutoff returns the oldest decision time still kept. ok is false when
// nothing expires.
func (r Retention) Cutoff() (cutoff time.Time, ok bool) {
	if r.Horizon <= 0 {
		return time.Time{}, false
	}
	now := time.Now
	if r.Now != nil {
		now = r.Now
	}
	return now().Add(-r.Horizon), true
}

// Filter returns the records within the horizon, preserving order,
// and the number of records dropped.
func Filter[T Record](r Retention, records []T) ([]T, int) {
	kept := make([]T, 0, len(records))
	for _, rec := range records {
		if r.Keep(rec.DecidedAt()) {
			kept = append(kept, rec)
		}
	}
	return kept, len(records) - len(kept)
}
