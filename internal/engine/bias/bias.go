// Package bias computes the macro composite bias score feeding the verdict
// context: institutional capital flow, dealer gamma regime, PCR momentum and
// a volatility-regime adjustment.
package bias

// Label is the closed set of composite bias readings.
type Label string

const (
	StronglyBullish Label = "STRONGLY_BULLISH"
	BullishBias     Label = "BULLISH"
	NeutralBias     Label = "NEUTRAL"
	BearishBias     Label = "BEARISH"
	StronglyBearish Label = "STRONGLY_BEARISH"
)

// Weights holds the component weights of the composite.
type Weights struct {
	Macro       float64
	GEX         float64
	PCRVelocity float64
	VIXAdjust   float64
}

// DefaultWeights returns the standard component weights.
func DefaultWeights() Weights {
	return Weights{
		Macro:       0.25,
		GEX:         0.25,
		PCRVelocity: 0.30,
		VIXAdjust:   0.20,
	}
}

const (
	// flowScaleCr maps +/-2000 Cr of combined institutional flow to a full
	// +/-1.0 macro score.
	flowScaleCr = 2000.0
	fiiWeight   = 0.75
	diiWeight   = 0.25

	// gexScaleCr maps +/-100 Cr of net GEX to a full score.
	gexScaleCr = 100.0

	// pcrVelocityScale: a 0.02/min PCR change saturates the score.
	pcrVelocityScale  = 0.02
	pcrWindowMinutes  = 15.0
	vixHighWatermark  = 20.0
	vixHighAdjustment = -0.20
)

// Components holds the composite score and its parts, all in [-1, +1].
type Components struct {
	MacroScore    float64
	GEXScore      float64
	PCRVelocity   float64
	VIXAdjustment float64
	FinalScore    float64
	Label         Label
}

// Engine computes macro composite bias scores. Stateless and pure.
type Engine struct {
	weights Weights

	// gexBullishWhenNegative applies the dealer-exposure sign convention:
	// negative net GEX (dealers amplify moves) scores as directionally
	// favorable. Flipping it restores the stabilizing-is-bullish reading.
	gexBullishWhenNegative bool
}

// NewEngine creates a bias engine with default weights and the
// dealer-exposure GEX convention.
func NewEngine() *Engine {
	return &Engine{weights: DefaultWeights(), gexBullishWhenNegative: true}
}

// NewEngineWithConvention creates a bias engine selecting the GEX sign
// convention explicitly.
func NewEngineWithConvention(weights Weights, gexBullishWhenNegative bool) *Engine {
	return &Engine{weights: weights, gexBullishWhenNegative: gexBullishWhenNegative}
}

// Compute builds the composite bias from the macro inputs: FII/DII net flow
// in Crore, net market GEX in Crore, the current and 15-minutes-ago PCR,
// and the volatility index level.
func (e *Engine) Compute(fiiNetCr, diiNetCr, netGEXCr, pcrNow, pcrPrev, vix float64) Components {
	c := Components{
		MacroScore:    clip((fiiNetCr*fiiWeight + diiNetCr*diiWeight) / flowScaleCr),
		PCRVelocity:   clip(((pcrNow - pcrPrev) / pcrWindowMinutes) / pcrVelocityScale),
		VIXAdjustment: 0,
	}

	gex := netGEXCr / gexScaleCr
	if e.gexBullishWhenNegative {
		gex = -gex
	}
	c.GEXScore = clip(gex)

	if vix > vixHighWatermark {
		c.VIXAdjustment = vixHighAdjustment
	}

	c.FinalScore = clip(
		c.MacroScore*e.weights.Macro +
			c.GEXScore*e.weights.GEX +
			c.PCRVelocity*e.weights.PCRVelocity +
			c.VIXAdjustment*e.weights.VIXAdjust,
	)
	c.Label = labelFor(c.FinalScore)

	return c
}

func labelFor(score float64) Label {
	switch {
	case score >= 0.65:
		return StronglyBullish
	case score >= 0.40:
		return BullishBias
	case score <= -0.65:
		return StronglyBearish
	case score <= -0.40:
		return BearishBias
	default:
		return NeutralBias
	}
}

func clip(v float64) float64 {
	if v > 1 {
		return 1
	}
	if v < -1 {
		return -1
	}
	return v
}
