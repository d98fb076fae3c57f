// Package verdict synthesizes every pipeline signal into a single
// actionable recommendation, sized for momentum trades of one hour to five
// days. A trap filter runs before any directional scoring: the most
// expensive mistake is acting on a signal that is really hedging, expiry
// decay or a late-stage move.
package verdict

import (
	"fmt"
	"math"

	"optionflow/internal/analysis"
	"optionflow/internal/engine/structure"
)

// Class is the closed set of verdict outcomes.
type Class string

const (
	StrongBuy   Class = "STRONG_BUY"
	BuyWatch    Class = "BUY_WATCH"
	Neutral     Class = "NEUTRAL"
	SellWatch   Class = "SELL_WATCH"
	StrongSell  Class = "STRONG_SELL"
	TrapWarning Class = "TRAP_WARNING"
)

// HoldingPeriod labels the intended trade horizon.
type HoldingPeriod string

const (
	Intraday     HoldingPeriod = "INTRADAY"
	OneToThree   HoldingPeriod = "1-3 DAYS"
	OneToFive    HoldingPeriod = "1-5 DAYS"
	WaitAndWatch HoldingPeriod = "WAIT"
	NotTradable  HoldingPeriod = "N/A"
)

// EntryType is the recommended entry vehicle.
type EntryType string

const (
	EntrySpotOrCall     EntryType = "STOCK / CE BUY"
	EntryNakedCall      EntryType = "NAKED CE BUY"
	EntryNakedPut       EntryType = "NAKED PE BUY"
	EntryBullCallSpread EntryType = "BULL CALL SPREAD"
	EntryBearPutSpread  EntryType = "BEAR PUT SPREAD"
	EntryWait           EntryType = "WAIT"
	EntrySkip           EntryType = "SKIP"
)

// RiskLevel grades the setup's risk.
type RiskLevel string

const (
	RiskHighReward     RiskLevel = "HIGH REWARD/RISK"
	RiskHighNearExpiry RiskLevel = "HIGH (near expiry)"
	RiskMedium         RiskLevel = "MEDIUM"
	RiskHigh           RiskLevel = "HIGH"
)

// Verdict is the terminal output of the pipeline.
type Verdict struct {
	Class         Class
	ConfidencePct int
	HoldingPeriod HoldingPeriod
	TargetMovePct float64
	RiskLevel     RiskLevel
	EntryType     EntryType
	EntryStrike   float64 // 0 when no strike applies
	StopLoss      float64
	KeyReasons    []string // at most 4
	RedFlags      []string
}

// Scoring constants. All static; the synthesizer is deterministic.
const (
	trapThreshold = 70

	trapLateMove       = 40 // long unwinding after a >3% move: sell-the-news
	trapStraddleExpiry = 35 // straddle with <2 DTE: theta dominates
	trapHedgeCluster   = 30 // >2 protective hedges mistaken for bearishness
	trapIlliquidStrike = 25 // nearest significant strike >8% from spot
	trapRichIV         = 20 // IV rank >80: options overpriced

	gexExplosiveLevel  = -20_000_000
	gexHighRewardLevel = -50_000_000
	flowSignificant    = 5000
)

// convictionWeight maps a detection's conviction to its score weight.
func convictionWeight(c structure.Conviction) float64 {
	switch c {
	case structure.High:
		return 20
	case structure.Medium:
		return 12
	case structure.Low:
		return 6
	default:
		return 10
	}
}

// Synthesizer generates verdicts from assembled contexts. Stateless and
// safe for concurrent use.
type Synthesizer struct{}

// NewSynthesizer creates a verdict synthesizer.
func NewSynthesizer() *Synthesizer {
	return &Synthesizer{}
}

// Generate produces the cycle's verdict. It always emits one, including
// Neutral, rather than refusing to answer; only malformed input upstream
// aborts a cycle.
func (s *Synthesizer) Generate(ctx Context) Verdict {
	ctx = ctx.normalize()

	trapScore := s.trapScore(ctx)
	if trapScore > trapThreshold {
		return Verdict{
			Class:         TrapWarning,
			ConfidencePct: trapScore,
			HoldingPeriod: NotTradable,
			RiskLevel:     RiskHigh,
			EntryType:     EntrySkip,
			RedFlags:      s.trapReasons(ctx),
		}
	}

	bull := s.bullStrength(ctx)
	bear := s.bearStrength(ctx)
	net := bull - bear

	var (
		class      Class
		confidence int
		holding    HoldingPeriod
	)

	switch {
	case net > 35 && ctx.MomentumScore > 75:
		class = StrongBuy
		confidence = minInt(95, 60+net/2)
		holding = Intraday
		if ctx.VelocityZScore > 2.5 {
			holding = OneToThree
		}
	case net > 20 && ctx.MomentumScore > 60:
		class = BuyWatch
		confidence = minInt(80, 50+net)
		holding = OneToFive
	case net < -35 && ctx.MomentumScore > 75:
		class = StrongSell
		confidence = minInt(95, 60+(-net)/2)
		holding = OneToThree
	case net < -20 && ctx.MomentumScore > 60:
		class = SellWatch
		confidence = minInt(80, 50+(-net))
		holding = OneToFive
	default:
		class = Neutral
		confidence = 40
		holding = WaitAndWatch
	}

	entryType, entryStrike := s.recommendEntry(class, ctx)

	return Verdict{
		Class:         class,
		ConfidencePct: confidence,
		HoldingPeriod: holding,
		TargetMovePct: s.estimateTarget(class, ctx),
		RiskLevel:     s.assessRisk(ctx),
		EntryType:     entryType,
		EntryStrike:   entryStrike,
		StopLoss:      s.stopLoss(class, ctx),
		KeyReasons:    s.keyReasons(ctx),
		RedFlags:      s.redFlags(ctx),
	}
}

// trapScore detects fake smart-money signals. Strictly additive, capped
// at 100.
func (s *Synthesizer) trapScore(ctx Context) int {
	score := 0

	// Move already played out, longs exiting: sell the news.
	if ctx.OIRegime == analysis.LongUnwinding && ctx.PriceChangeToday > 3 {
		score += trapLateMove
	}
	if countStructure(ctx.Detections, structure.Straddle) > 0 && ctx.DaysToExpiry < 2 {
		score += trapStraddleExpiry
	}
	if countStructure(ctx.Detections, structure.ProtectivePutHedge) > 2 {
		score += trapHedgeCluster
	}
	if ctx.ATMDistancePct > 8 {
		score += trapIlliquidStrike
	}
	if ctx.IVRank > 80 {
		score += trapRichIV
	}

	return minInt(100, score)
}

func (s *Synthesizer) bullStrength(ctx Context) int {
	var score float64

	switch ctx.OIRegime {
	case analysis.LongBuildup:
		score += 25
	case analysis.ShortCovering:
		score += 15
	}
	// Negative GEX: dealers amplify any breakout.
	if ctx.Exposure.GEX < gexExplosiveLevel {
		score += 15
	}
	for _, det := range ctx.Detections {
		if det.Bias == structure.Bullish {
			score += convictionWeight(det.Conviction) * det.Confidence
		}
	}
	if ctx.FlowNetChange > flowSignificant {
		score += 15
	}
	if ctx.VWAPPosition == VWAPAbove {
		score += 10
	}
	if ctx.RSI < 40 {
		score += 8 // oversold but building
	}
	if ctx.Exposure.VEX < 0 {
		score += 8 // IV drop forces dealer buying
	}

	return int(score)
}

func (s *Synthesizer) bearStrength(ctx Context) int {
	var score float64

	switch ctx.OIRegime {
	case analysis.ShortBuildup:
		score += 25
	case analysis.LongUnwinding:
		score += 15
	}
	for _, det := range ctx.Detections {
		if det.Bias == structure.Bearish {
			score += convictionWeight(det.Conviction) * det.Confidence
		}
	}
	if ctx.FlowNetChange < -flowSignificant {
		score += 15
	}
	if ctx.VWAPPosition == VWAPBelow {
		score += 10
	}
	if ctx.RSI > 70 {
		score += 8
	}

	return int(score)
}

// recommendEntry picks the entry vehicle. Spreads when options are rich or
// expiry is near (risk-limited), naked longs when options are cheap.
func (s *Synthesizer) recommendEntry(class Class, ctx Context) (EntryType, float64) {
	switch class {
	case StrongBuy, BuyWatch:
		switch {
		case ctx.IVRank > 60 || ctx.DaysToExpiry < 3:
			return EntryBullCallSpread, ctx.ATMStrike
		case ctx.IVRank < 35:
			return EntryNakedCall, ctx.ATMStrike
		default:
			return EntrySpotOrCall, ctx.ATMStrike
		}
	case StrongSell:
		if ctx.IVRank > 60 {
			return EntryBearPutSpread, ctx.ATMStrike
		}
		return EntryNakedPut, ctx.ATMStrike
	default:
		return EntryWait, 0
	}
}

func (s *Synthesizer) estimateTarget(class Class, ctx Context) float64 {
	switch class {
	case StrongBuy, StrongSell:
		return round2(ctx.ATRPct * 2.5)
	case BuyWatch, SellWatch:
		return round2(ctx.ATRPct * 1.5)
	default:
		return 0
	}
}

func (s *Synthesizer) stopLoss(class Class, ctx Context) float64 {
	offset := ctx.ATRPct / 100 * 0.8
	switch class {
	case StrongBuy, BuyWatch:
		return round2(ctx.SpotPrice * (1 - offset))
	case StrongSell, SellWatch:
		return round2(ctx.SpotPrice * (1 + offset))
	default:
		return 0
	}
}

func (s *Synthesizer) assessRisk(ctx Context) RiskLevel {
	if ctx.Exposure.GEX < gexHighRewardLevel && ctx.IVRank < 30 {
		return RiskHighReward
	}
	if ctx.DaysToExpiry < 2 {
		return RiskHighNearExpiry
	}
	return RiskMedium
}

// keyReasons assembles up to 4 bullets from the strongest contributors.
func (s *Synthesizer) keyReasons(ctx Context) []string {
	var reasons []string

	if ctx.OIRegime == analysis.LongBuildup || ctx.OIRegime == analysis.ShortCovering {
		reasons = append(reasons, fmt.Sprintf("OI: %s confirms direction", ctx.OIRegime))
	}
	if ctx.VelocityZScore > 2 {
		reasons = append(reasons, fmt.Sprintf("OI velocity %.1f sigma above normal: institutional urgency", ctx.VelocityZScore))
	}
	for i, det := range ctx.Detections {
		if i >= 2 {
			break
		}
		reasons = append(reasons, "Detected: "+det.Rationale)
	}
	if ctx.FlowNetChange > 0 {
		reasons = append(reasons, fmt.Sprintf("FII adding longs: +%.0f contracts", ctx.FlowNetChange))
	}
	if ctx.Exposure.GEX < 0 {
		reasons = append(reasons, "Negative GEX: dealers forced to amplify any breakout")
	}

	if len(reasons) > 4 {
		reasons = reasons[:4]
	}
	return reasons
}

func (s *Synthesizer) trapReasons(ctx Context) []string {
	var reasons []string

	if ctx.IVRank > 80 {
		reasons = append(reasons, fmt.Sprintf("IV rank %.0f%%: options overpriced, bad time to buy", ctx.IVRank))
	}
	if countStructure(ctx.Detections, structure.ProtectivePutHedge) > 0 {
		reasons = append(reasons, "Put activity is hedging by longs, not directional bearish bets")
	}
	if countStructure(ctx.Detections, structure.Straddle) > 0 {
		reasons = append(reasons, "Straddle = uncertainty play, no clear direction signal")
	}
	if ctx.OIRegime == analysis.LongUnwinding && ctx.PriceChangeToday > 3 {
		reasons = append(reasons, fmt.Sprintf("Already moved %.1f%% today with longs unwinding, late entry", ctx.PriceChangeToday))
	}

	return reasons
}

func (s *Synthesizer) redFlags(ctx Context) []string {
	var flags []string

	if ctx.DaysToExpiry < 2 {
		flags = append(flags, "Near expiry: theta decay risk very high")
	}
	if ctx.IVRank > 70 {
		flags = append(flags, fmt.Sprintf("IV rank %.0f%%: options expensive", ctx.IVRank))
	}
	if ctx.PCR > 1.8 || ctx.PCR < 0.4 {
		flags = append(flags, "PCR extreme: possible contrarian reversal zone")
	}

	return flags
}

func countStructure(dets []structure.Detection, s structure.TradeStructure) int {
	n := 0
	for _, det := range dets {
		if det.Structure == s {
			n++
		}
	}
	return n
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
