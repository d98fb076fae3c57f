package verdict

import (
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"optionflow/internal/analysis"
	"optionflow/internal/engine/structure"
)

// trapCtxGen generates contexts whose trap components are driven by five
// independent booleans, so the expected additive score is known exactly.
func trapCtxGen() gopter.Gen {
	return gopter.CombineGens(
		gen.Bool(), // late move
		gen.Bool(), // straddle near expiry
		gen.Bool(), // hedge cluster
		gen.Bool(), // illiquid strike
		gen.Bool(), // rich IV
	).Map(func(vals []interface{}) Context {
		ctx := Context{
			DaysToExpiry: 7,
			IVRank:       50,
			SpotPrice:    19000,
		}
		if vals[0].(bool) {
			ctx.OIRegime = analysis.LongUnwinding
			ctx.PriceChangeToday = 4.0
		}
		if vals[1].(bool) {
			ctx.DaysToExpiry = 1
			ctx.Detections = append(ctx.Detections, structure.Detection{
				Structure: structure.Straddle,
				Bias:      structure.Neutral,
			})
		}
		if vals[2].(bool) {
			for i := 0; i < 3; i++ {
				ctx.Detections = append(ctx.Detections, structure.Detection{
					Structure: structure.ProtectivePutHedge,
					Bias:      structure.Neutral,
				})
			}
		}
		if vals[3].(bool) {
			ctx.ATMDistancePct = 9
		}
		if vals[4].(bool) {
			ctx.IVRank = 85
		}
		return ctx
	})
}

func expectedTrapScore(ctx Context) int {
	score := 0
	if ctx.OIRegime == analysis.LongUnwinding && ctx.PriceChangeToday > 3 {
		score += trapLateMove
	}
	straddles := 0
	hedges := 0
	for _, det := range ctx.Detections {
		switch det.Structure {
		case structure.Straddle:
			straddles++
		case structure.ProtectivePutHedge:
			hedges++
		}
	}
	if straddles > 0 && ctx.DaysToExpiry < 2 {
		score += trapStraddleExpiry
	}
	if hedges > 2 {
		score += trapHedgeCluster
	}
	if ctx.ATMDistancePct > 8 {
		score += trapIlliquidStrike
	}
	if ctx.IVRank > 80 {
		score += trapRichIV
	}
	if score > 100 {
		score = 100
	}
	return score
}

// Property: the trap score is strictly additive over its components and
// capped at 100.
func TestProperty_TrapScoreAdditiveCapped(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200

	properties := gopter.NewProperties(parameters)
	s := NewSynthesizer()

	properties.Property("trap score equals the sum of fired components, capped", prop.ForAll(
		func(ctx Context) bool {
			got := s.trapScore(ctx.normalize())
			return got == expectedTrapScore(ctx) && got >= 0 && got <= 100
		},
		trapCtxGen(),
	))

	properties.TestingRun(t)
}

// Property: any context whose trap score exceeds 70 yields TRAP_WARNING no
// matter how strong the directional signals are.
func TestProperty_TrapOverridesAnyDirection(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200

	properties := gopter.NewProperties(parameters)
	s := NewSynthesizer()

	properties.Property("trap above threshold forces TRAP_WARNING", prop.ForAll(
		func(ctx Context, momentum, flow float64, bullish bool) bool {
			ctx.MomentumScore = momentum
			ctx.FlowNetChange = flow
			if bullish {
				ctx.VWAPPosition = VWAPAbove
				ctx.Detections = append(ctx.Detections, structure.Detection{
					Structure:  structure.NakedCallBuy,
					Bias:       structure.Bullish,
					Conviction: structure.High,
					Confidence: 0.9,
				})
			}

			v := s.Generate(ctx)
			if expectedTrapScore(ctx) > trapThreshold {
				return v.Class == TrapWarning && v.EntryType == EntrySkip
			}
			return v.Class != TrapWarning
		},
		trapCtxGen(),
		gen.Float64Range(0, 100),
		gen.Float64Range(-20000, 20000),
		gen.Bool(),
	))

	properties.TestingRun(t)
}
