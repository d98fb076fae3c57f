package velocity

import (
	"sync"

	"optionflow/internal/models"
)

type trackerKey struct {
	symbol string
	strike float64
	side   models.OptionSide
}

// Registry owns the velocity trackers for all contracts, keyed by
// (symbol, strike, side). Appends for a given key are serialized through
// the registry lock; each tracker's history is owned exclusively here.
type Registry struct {
	mu       sync.Mutex
	trackers map[trackerKey]*Tracker
	capacity int
}

// NewRegistry creates a registry whose trackers hold capacity samples each.
func NewRegistry(capacity int) *Registry {
	return &Registry{
		trackers: make(map[trackerKey]*Tracker),
		capacity: capacity,
	}
}

// Record appends one snapshot to its contract's tracker, creating the
// tracker on first sight, and returns the OI delta against the previous
// observation (0 for a first observation).
func (r *Registry) Record(snap models.OISnapshot) int64 {
	r.mu.Lock()
	defer r.mu.Unlock()

	k := trackerKey{symbol: snap.Symbol, strike: snap.Strike, side: snap.Side}
	t, ok := r.trackers[k]
	if !ok {
		t = NewTracker(snap.Symbol, snap.Strike, snap.Side, r.capacity)
		r.trackers[k] = t
	}

	var delta int64
	if t.Len() > 0 {
		delta = snap.OI - t.LatestOI()
	}
	t.AddSnapshot(snap)
	return delta
}

// RecordCycle feeds one scan cycle's snapshots for an instrument through
// the registry and returns the per-contract OI deltas the structure
// detector consumes.
func (r *Registry) RecordCycle(snaps []models.OISnapshot) map[models.StrikeKey]int64 {
	deltas := make(map[models.StrikeKey]int64, len(snaps))
	for _, snap := range snaps {
		deltas[models.StrikeKey{Strike: snap.Strike, Side: snap.Side}] = r.Record(snap)
	}
	return deltas
}

// Tracker returns the tracker for a contract, or nil if it has never been
// observed.
func (r *Registry) Tracker(symbol string, strike float64, side models.OptionSide) *Tracker {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.trackers[trackerKey{symbol: symbol, strike: strike, side: side}]
}

// MaxZScore returns the largest velocity z-score across an instrument's
// tracked contracts, the abnormality signal the verdict context carries.
func (r *Registry) MaxZScore(symbol string) float64 {
	r.mu.Lock()
	defer r.mu.Unlock()

	var max float64
	for k, t := range r.trackers {
		if k.symbol != symbol {
			continue
		}
		if z := t.VelocityZScore(); z > max {
			max = z
		}
	}
	return max
}

// Size returns the number of tracked contracts.
func (r *Registry) Size() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.trackers)
}
