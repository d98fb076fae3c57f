// Package velocity tracks open-interest change rate, acceleration and
// statistical abnormality per contract. Position = OI, velocity = dOI/dt,
// acceleration = d2OI/dt2.
package velocity

import (
	"math"
	"time"

	"optionflow/internal/models"
)

const (
	// DefaultCapacity holds 3 hours of history at the 3-minute scan cadence.
	DefaultCapacity = 60
	// sampleCadenceMinutes is the assumed spacing between snapshots, used to
	// convert window minutes into bar counts.
	sampleCadenceMinutes = 3

	// rollingWindowBars is the sub-window for the z-score baseline series.
	rollingWindowBars = 5
	// minBaselinePoints is the minimum baseline series length for a defined
	// z-score.
	minBaselinePoints = 10

	accelOffsetBars = 10
	accelWindowBars = 5
)

// Freshness classifies whether a contract's activity is new positioning or
// unwinding, from its volume-to-OI ratio.
type Freshness string

const (
	ExtremeFresh  Freshness = "EXTREME_FRESH"  // nearly all volume is fresh positions
	MostlyFresh   Freshness = "MOSTLY_FRESH"   // unusual, new money entering
	Mixed         Freshness = "MIXED"          // normal two-way activity
	MostlyClosing Freshness = "MOSTLY_CLOSING" // low conviction, positions unwinding
	Unknown       Freshness = "UNKNOWN"        // no samples yet
)

type sample struct {
	ts     time.Time
	oi     int64
	volume int64
}

// Tracker owns the bounded OI/volume history for one (symbol, strike, side)
// contract. The history is a fixed-capacity ring buffer; the oldest sample
// is evicted on overflow. Only AddSnapshot mutates state and callers must
// serialize appends per tracker; all reads are non-destructive.
type Tracker struct {
	Symbol string
	Strike float64
	Side   models.OptionSide

	buf  []sample
	head int // index of the oldest sample
	size int
}

// NewTracker creates a tracker with the given history capacity. A capacity
// of 0 or less selects DefaultCapacity.
func NewTracker(symbol string, strike float64, side models.OptionSide, capacity int) *Tracker {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Tracker{
		Symbol: symbol,
		Strike: strike,
		Side:   side,
		buf:    make([]sample, capacity),
	}
}

// AddSnapshot appends one observation, evicting the oldest when full.
func (t *Tracker) AddSnapshot(snap models.OISnapshot) {
	s := sample{ts: snap.Timestamp, oi: snap.OI, volume: snap.Volume}
	if t.size < len(t.buf) {
		t.buf[(t.head+t.size)%len(t.buf)] = s
		t.size++
		return
	}
	t.buf[t.head] = s
	t.head = (t.head + 1) % len(t.buf)
}

// Len returns the number of samples currently held.
func (t *Tracker) Len() int {
	return t.size
}

// LatestOI returns the most recent open interest, or 0 with no samples.
func (t *Tracker) LatestOI() int64 {
	if t.size == 0 {
		return 0
	}
	return t.at(t.size - 1).oi
}

// at returns the i-th sample in chronological order.
func (t *Tracker) at(i int) sample {
	return t.buf[(t.head+i)%len(t.buf)]
}

// Velocity returns the OI change per minute over the most recent window,
// using the earliest and latest samples inside it. Returns 0 with fewer
// than 2 samples.
func (t *Tracker) Velocity(windowMinutes int) float64 {
	if t.size < 2 {
		return 0
	}

	windowBars := windowMinutes / sampleCadenceMinutes
	if windowBars < 1 {
		windowBars = 1
	}
	n := windowBars + 1
	if n > t.size {
		n = t.size
	}

	first := t.at(t.size - n)
	last := t.at(t.size - 1)
	return rate(first, last)
}

// Acceleration reports whether velocity is speeding up or slowing down: the
// recent 15-minute velocity minus a shorter-window velocity further back in
// the history (a discrete second derivative).
func (t *Tracker) Acceleration() float64 {
	return t.Velocity(15) - t.velocityAtOffset(accelOffsetBars, accelWindowBars)
}

// VelocityZScore standardizes the current velocity against the rolling
// series of sub-window velocities across the whole history. Z > 2 is
// statistically unusual, Z > 3 extreme. Returns 0 when the baseline series
// has fewer than 10 points or zero variance.
func (t *Tracker) VelocityZScore() float64 {
	baseline := t.rollingVelocities(rollingWindowBars)
	if len(baseline) < minBaselinePoints {
		return 0
	}

	var sum float64
	for _, v := range baseline {
		sum += v
	}
	mean := sum / float64(len(baseline))

	var variance float64
	for _, v := range baseline {
		d := v - mean
		variance += d * d
	}
	std := math.Sqrt(variance / float64(len(baseline)))
	if std == 0 {
		return 0
	}

	return (t.Velocity(15) - mean) / std
}

// VolumeOIDivergence classifies the latest sample's volume-to-OI ratio.
// Volume well above OI means fresh money; volume far below OI means mostly
// closing of existing positions.
func (t *Tracker) VolumeOIDivergence() Freshness {
	if t.size == 0 {
		return Unknown
	}
	last := t.at(t.size - 1)

	oi := last.oi
	if oi < 1 {
		oi = 1
	}
	ratio := float64(last.volume) / float64(oi)

	switch {
	case ratio > 1.2:
		return ExtremeFresh
	case ratio > 0.6:
		return MostlyFresh
	case ratio > 0.3:
		return Mixed
	default:
		return MostlyClosing
	}
}

// rollingVelocities slides a fixed sub-window across the history, producing
// the baseline series for the z-score.
func (t *Tracker) rollingVelocities(window int) []float64 {
	if t.size <= window {
		return nil
	}
	out := make([]float64, 0, t.size-window)
	for i := window; i < t.size; i++ {
		out = append(out, rate(t.at(i-window), t.at(i)))
	}
	return out
}

// velocityAtOffset computes velocity over a windowBars-wide span ending
// offsetBars back from the newest sample.
func (t *Tracker) velocityAtOffset(offsetBars, windowBars int) float64 {
	end := t.size - offsetBars
	if end >= t.size {
		end = t.size - 1
	}
	start := end - windowBars
	if start < 0 {
		start = 0
	}
	if end <= 0 || start >= end {
		return 0
	}
	return rate(t.at(start), t.at(end))
}

// rate is the per-minute OI change between two samples, with the elapsed
// time floored to one minute to guard the denominator.
func rate(first, last sample) float64 {
	deltaOI := float64(last.oi - first.oi)
	deltaMin := last.ts.Sub(first.ts).Seconds() / 60
	if deltaMin < 1 {
		deltaMin = 1
	}
	return deltaOI / deltaMin
}
