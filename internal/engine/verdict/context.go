package verdict

import (
	"optionflow/internal/analysis"
	"optionflow/internal/engine/exposure"
	"optionflow/internal/engine/structure"
)

// VWAPPosition is the instrument's position relative to VWAP, supplied by
// the technical collaborator.
type VWAPPosition string

const (
	VWAPAbove   VWAPPosition = "ABOVE"
	VWAPBelow   VWAPPosition = "BELOW"
	VWAPUnknown VWAPPosition = ""
)

// Context aggregates every signal the synthesizer weighs. Zero values mean
// "not supplied" and are replaced by the documented defaults in normalize;
// an empty detection list and a zero exposure snapshot read as a
// neutral-leaning context, never as an error.
type Context struct {
	Symbol string

	// MomentumScore is the composite momentum reading, 0-100.
	MomentumScore float64
	// OIRegime is the instrument-level buildup classification.
	OIRegime analysis.OIRegime
	// Exposure is the cycle's dealer exposure snapshot.
	Exposure exposure.Snapshot
	// VelocityZScore is the largest per-contract OI velocity z-score.
	VelocityZScore float64
	// Detections are the cycle's structure detections.
	Detections []structure.Detection

	// FlowNetChange is the institutional net position change in contracts;
	// beyond +/-5000 it scores directionally.
	FlowNetChange float64
	// PCR is the put-call ratio by OI. Default 1.0.
	PCR float64
	// IVRank is the IV percentile over the lookback, 0-100. Default 50.
	IVRank float64

	ATMStrike float64
	// ATMDistancePct is how far the nearest significant strike sits from
	// spot, in percent.
	ATMDistancePct float64
	// DaysToExpiry defaults to 7 when not supplied.
	DaysToExpiry float64
	SpotPrice    float64
	// PriceChangeToday is the day's move in percent.
	PriceChangeToday float64
	// ATRPct is the 14-period average true range as a percent of price.
	// Default 2.0; it scales targets and stops.
	ATRPct float64

	VWAPPosition VWAPPosition
	// RSI is the 14-period RSI. Default 50.
	RSI float64
}

// normalize applies the documented defaults for unsupplied fields.
func (c Context) normalize() Context {
	if c.PCR == 0 {
		c.PCR = 1.0
	}
	if c.IVRank == 0 {
		c.IVRank = 50
	}
	if c.DaysToExpiry == 0 {
		c.DaysToExpiry = 7
	}
	if c.ATRPct == 0 {
		c.ATRPct = 2.0
	}
	if c.RSI == 0 {
		c.RSI = 50
	}
	return c
}
