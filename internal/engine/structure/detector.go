// Package structure infers multi-leg position structures from per-strike OI
// change patterns. When two strikes' OI moves in the same direction in the
// same scan window, that is almost certainly one coordinated spread, not two
// independent naked bets.
package structure

import (
	"fmt"
	"math"
	"sort"

	"optionflow/internal/models"
)

// TradeStructure is the closed set of position structures the detector can
// report.
type TradeStructure string

const (
	NakedCallBuy       TradeStructure = "NAKED_CALL_BUY"
	NakedPutBuy        TradeStructure = "NAKED_PUT_BUY"
	BullCallSpread     TradeStructure = "BULL_CALL_SPREAD"
	BearPutSpread      TradeStructure = "BEAR_PUT_SPREAD"
	CallRatioSpread    TradeStructure = "CALL_RATIO_SPREAD"
	StrangleBuy        TradeStructure = "STRANGLE_BUY"
	Straddle           TradeStructure = "STRADDLE"
	BullishPutWrite    TradeStructure = "BULLISH_PUT_WRITE"
	BearishCallWrite   TradeStructure = "BEARISH_CALL_WRITE"
	ProtectivePutHedge TradeStructure = "PROTECTIVE_PUT_HEDGE"
)

// Bias is the directional reading of a structure.
type Bias string

const (
	Bullish Bias = "BULLISH"
	Bearish Bias = "BEARISH"
	Neutral Bias = "NEUTRAL"
)

// Premium is the net premium direction of a structure.
type Premium string

const (
	Debit  Premium = "DEBIT"  // buyer pays
	Credit Premium = "CREDIT" // writer collects
)

// Conviction grades how strongly a structure supports its bias.
type Conviction string

const (
	High   Conviction = "HIGH"
	Medium Conviction = "MEDIUM"
	Low    Conviction = "LOW"
)

// Leg identifies one leg of a detected structure.
type Leg struct {
	Strike float64
	Side   models.OptionSide
}

// Detection is one inferred structure, produced fresh each cycle and
// consumed immediately by the verdict synthesizer.
type Detection struct {
	Structure  TradeStructure
	Confidence float64 // 0.0 - 1.0
	BuyLeg     *Leg
	SellLeg    *Leg
	Premium    Premium
	Bias       Bias
	Conviction Conviction
	Rationale  string
}

// Config holds the detection thresholds.
type Config struct {
	// SignificanceFloor is the minimum absolute OI change worth classifying.
	SignificanceFloor int64
	// SimilarityRatio is the minimum magnitude similarity (smaller/larger)
	// for two legs to count as one coordinated trade.
	SimilarityRatio float64
	// RatioSpreadThreshold flags a ratio spread rather than a 1:1 spread.
	RatioSpreadThreshold float64
	// StraddleATMBand is the combined ATM distance, as a fraction of ATM,
	// under which a mixed pair reads as a straddle.
	StraddleATMBand float64
}

// DefaultConfig returns the stock detection thresholds.
func DefaultConfig() Config {
	return Config{
		SignificanceFloor:    500,
		SimilarityRatio:      0.4,
		RatioSpreadThreshold: 2.5,
		StraddleATMBand:      0.03,
	}
}

// Detector classifies one cycle's OI deltas into position structures.
// Thresholds are fixed at construction; the detector is stateless and pure.
type Detector struct {
	cfg Config
}

// NewDetector creates a structure detector with the default thresholds.
func NewDetector() *Detector {
	return NewDetectorWithConfig(DefaultConfig())
}

// NewDetectorWithConfig creates a structure detector with explicit
// thresholds. Zero-value fields fall back to the defaults.
func NewDetectorWithConfig(cfg Config) *Detector {
	def := DefaultConfig()
	if cfg.SignificanceFloor <= 0 {
		cfg.SignificanceFloor = def.SignificanceFloor
	}
	if cfg.SimilarityRatio <= 0 {
		cfg.SimilarityRatio = def.SimilarityRatio
	}
	if cfg.RatioSpreadThreshold <= 0 {
		cfg.RatioSpreadThreshold = def.RatioSpreadThreshold
	}
	if cfg.StraddleATMBand <= 0 {
		cfg.StraddleATMBand = def.StraddleATMBand
	}
	return &Detector{cfg: cfg}
}

// Identify turns a batch of per-contract OI deltas into structure
// detections. priceChangePct is the instrument's % price change over the
// same window; atmStrike anchors moneyness.
func (d *Detector) Identify(oiDeltas map[models.StrikeKey]int64, priceChangePct, atmStrike float64) []Detection {
	significant := d.filterSignificant(oiDeltas)
	if len(significant) == 0 {
		return nil
	}

	// Deterministic iteration order for pair discovery.
	keys := make([]models.StrikeKey, 0, len(significant))
	for k := range significant {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].Strike != keys[j].Strike {
			return keys[i].Strike < keys[j].Strike
		}
		return keys[i].Side < keys[j].Side
	})

	var detections []Detection
	consumed := make(map[models.StrikeKey]bool)

	for _, pair := range d.findCorrelatedPairs(keys, significant) {
		det := d.classifySpread(pair, significant, atmStrike)
		if det != nil {
			detections = append(detections, *det)
			consumed[pair.a] = true
			consumed[pair.b] = true
		}
	}

	for _, k := range keys {
		if consumed[k] {
			continue
		}
		det := classifyNaked(k, significant[k], atmStrike, priceChangePct)
		if det != nil {
			detections = append(detections, *det)
		}
	}

	return detections
}

func (d *Detector) filterSignificant(oiDeltas map[models.StrikeKey]int64) map[models.StrikeKey]int64 {
	out := make(map[models.StrikeKey]int64, len(oiDeltas))
	for k, v := range oiDeltas {
		if v == 0 {
			continue
		}
		if abs64(v) <= d.cfg.SignificanceFloor {
			continue
		}
		out[k] = v
	}
	return out
}

type pair struct {
	a, b models.StrikeKey
}

// findCorrelatedPairs flags candidate spread pairs: same OI delta sign and
// magnitudes within the similarity ratio, on the same option side (vertical
// spreads) or across sides when both legs are being bought (straddles and
// strangles).
func (d *Detector) findCorrelatedPairs(keys []models.StrikeKey, deltas map[models.StrikeKey]int64) []pair {
	var pairs []pair
	for i := 0; i < len(keys); i++ {
		for j := i + 1; j < len(keys); j++ {
			a, b := keys[i], keys[j]
			ca, cb := deltas[a], deltas[b]

			sameSide := a.Side == b.Side
			sameDirection := (ca > 0 && cb > 0) || (ca < 0 && cb < 0)
			bothBought := ca > 0 && cb > 0

			smaller, larger := abs64(ca), abs64(cb)
			if smaller > larger {
				smaller, larger = larger, smaller
			}
			if larger < 1 {
				larger = 1
			}
			similar := float64(smaller)/float64(larger) > d.cfg.SimilarityRatio

			if sameDirection && similar && (sameSide || bothBought) {
				pairs = append(pairs, pair{a: a, b: b})
			}
		}
	}
	return pairs
}

func (d *Detector) classifySpread(p pair, deltas map[models.StrikeKey]int64, atm float64) *Detection {
	ca, cb := deltas[p.a], deltas[p.b]

	lower, upper := p.a.Strike, p.b.Strike
	if lower > upper {
		lower, upper = upper, lower
	}

	larger, smaller := abs64(ca), abs64(cb)
	if smaller > larger {
		smaller, larger = larger, smaller
	}
	if smaller < 1 {
		smaller = 1
	}
	isRatioSpread := float64(larger)/float64(smaller) > d.cfg.RatioSpreadThreshold

	bothCalls := p.a.Side == models.SideCall && p.b.Side == models.SideCall
	bothPuts := p.a.Side == models.SidePut && p.b.Side == models.SidePut

	switch {
	case bothCalls && isRatioSpread:
		premium := Debit
		if cb > ca {
			premium = Credit // larger write leg
		}
		return &Detection{
			Structure:  CallRatioSpread,
			Confidence: 0.72,
			BuyLeg:     &Leg{Strike: lower, Side: models.SideCall},
			SellLeg:    &Leg{Strike: upper, Side: models.SideCall},
			Premium:    premium,
			Bias:       Bullish,
			Conviction: Medium,
			Rationale:  fmt.Sprintf("Call ratio spread %.0f/%.0f: mildly bullish, capped upside", lower, upper),
		}
	case bothCalls:
		return &Detection{
			Structure:  BullCallSpread,
			Confidence: 0.80,
			BuyLeg:     &Leg{Strike: lower, Side: models.SideCall},
			SellLeg:    &Leg{Strike: upper, Side: models.SideCall},
			Premium:    Debit,
			Bias:       Bullish,
			Conviction: High,
			Rationale:  fmt.Sprintf("Bull call spread %.0f/%.0f: debit spread, limited risk, bullish bias", lower, upper),
		}
	case bothPuts:
		return &Detection{
			Structure:  BearPutSpread,
			Confidence: 0.80,
			BuyLeg:     &Leg{Strike: upper, Side: models.SidePut},
			SellLeg:    &Leg{Strike: lower, Side: models.SidePut},
			Premium:    Debit,
			Bias:       Bearish,
			Conviction: High,
			Rationale:  fmt.Sprintf("Bear put spread %.0f/%.0f: debit spread, bearish bias", upper, lower),
		}
	default:
		// One call + one put: straddle near the money, strangle away.
		distanceATM := math.Abs(p.a.Strike-atm) + math.Abs(p.b.Strike-atm)
		if atm > 0 && distanceATM < atm*d.cfg.StraddleATMBand {
			return &Detection{
				Structure:  Straddle,
				Confidence: 0.75,
				BuyLeg:     &Leg{Strike: p.a.Strike, Side: p.a.Side},
				Premium:    Debit,
				Bias:       Neutral,
				Conviction: High,
				Rationale:  fmt.Sprintf("Straddle near %.0f: betting on a big move either direction", atm),
			}
		}
		return &Detection{
			Structure:  StrangleBuy,
			Confidence: 0.70,
			BuyLeg:     &Leg{Strike: lower, Side: p.a.Side},
			Premium:    Debit,
			Bias:       Neutral,
			Conviction: Medium,
			Rationale:  fmt.Sprintf("Strangle %.0f/%.0f: event play, needs a big move to profit", lower, upper),
		}
	}
}

// classifyNaked applies the ordered solo-leg heuristics. The protective
// hedge case must come first: an OTM put spike after an up move is longs
// buying protection, not a bearish signal, and the verdict engine relies on
// that distinction.
func classifyNaked(k models.StrikeKey, change int64, atm, priceChangePct float64) *Detection {
	if atm <= 0 {
		return nil
	}
	moneyness := (k.Strike - atm) / atm * 100

	isOTMPut := k.Side == models.SidePut && moneyness < 0
	isHedge := isOTMPut && math.Abs(moneyness) > 5 && priceChangePct > 1.0
	isWriterCall := k.Side == models.SideCall && change > 0 && priceChangePct < -0.3
	isWriterPut := k.Side == models.SidePut && change > 0 && priceChangePct > 0.3

	switch {
	case isHedge:
		return &Detection{
			Structure:  ProtectivePutHedge,
			Confidence: 0.65,
			BuyLeg:     &Leg{Strike: k.Strike, Side: models.SidePut},
			Premium:    Debit,
			Bias:       Neutral,
			Conviction: Low,
			Rationale:  fmt.Sprintf("Hedge buying %.0f PE: institutions protecting longs, not a bearish signal", k.Strike),
		}
	case isWriterCall:
		return &Detection{
			Structure:  BearishCallWrite,
			Confidence: 0.75,
			SellLeg:    &Leg{Strike: k.Strike, Side: models.SideCall},
			Premium:    Credit,
			Bias:       Bearish,
			Conviction: High,
			Rationale:  fmt.Sprintf("Call writer at %.0f: selling resistance, bearish conviction", k.Strike),
		}
	case isWriterPut:
		return &Detection{
			Structure:  BullishPutWrite,
			Confidence: 0.78,
			SellLeg:    &Leg{Strike: k.Strike, Side: models.SidePut},
			Premium:    Credit,
			Bias:       Bullish,
			Conviction: High,
			Rationale:  fmt.Sprintf("Put writer at %.0f: strong bullish signal, collecting premium at support", k.Strike),
		}
	case k.Side == models.SideCall && change > 0:
		confidence := 0.85
		if moneyness >= 5 {
			confidence = 0.70
		}
		conviction := High
		if math.Abs(moneyness) >= 3 {
			conviction = Medium
		}
		return &Detection{
			Structure:  NakedCallBuy,
			Confidence: confidence,
			BuyLeg:     &Leg{Strike: k.Strike, Side: models.SideCall},
			Premium:    Debit,
			Bias:       Bullish,
			Conviction: conviction,
			Rationale: fmt.Sprintf("Naked call buy %.0f CE (%.1f%% from ATM): pure directional bullish bet, %d contracts",
				k.Strike, math.Abs(moneyness), abs64(change)),
		}
	case k.Side == models.SidePut && change > 0:
		confidence := 0.85
		if math.Abs(moneyness) >= 5 {
			confidence = 0.70
		}
		return &Detection{
			Structure:  NakedPutBuy,
			Confidence: confidence,
			BuyLeg:     &Leg{Strike: k.Strike, Side: models.SidePut},
			Premium:    Debit,
			Bias:       Bearish,
			Conviction: High,
			Rationale: fmt.Sprintf("Naked put buy %.0f PE: pure bearish directional, %d contracts",
				k.Strike, abs64(change)),
		}
	}

	return nil
}

func abs64(v int64) int64 {
	if v < 0 {
		return -v
	}
	return v
}
