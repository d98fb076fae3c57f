// Package analysis derives chain-level statistics: put-call ratios, OI
// walls, max pain and the OI buildup regime.
package analysis

import (
	"optionflow/internal/models"
)

// OIRegime classifies the joint price/OI move of an instrument.
type OIRegime string

const (
	LongBuildup   OIRegime = "LONG_BUILDUP"   // price up, OI up
	ShortCovering OIRegime = "SHORT_COVERING" // price up, OI down
	ShortBuildup  OIRegime = "SHORT_BUILDUP"  // price down, OI up
	LongUnwinding OIRegime = "LONG_UNWINDING" // price down, OI down
	RegimeNeutral OIRegime = "NEUTRAL"
)

// ClassifyBuildup maps a price change and an OI change to the buildup
// regime grid.
func ClassifyBuildup(priceChange, oiChange float64) OIRegime {
	switch {
	case priceChange > 0 && oiChange > 0:
		return LongBuildup
	case priceChange > 0 && oiChange < 0:
		return ShortCovering
	case priceChange < 0 && oiChange > 0:
		return ShortBuildup
	case priceChange < 0 && oiChange < 0:
		return LongUnwinding
	default:
		return RegimeNeutral
	}
}

// ChainStats holds per-cycle chain aggregates.
type ChainStats struct {
	PCROI       float64
	PCRVolume   float64
	TotalCallOI int64
	TotalPutOI  int64
	CallWall    float64 // strike with the highest call OI (resistance)
	PutWall     float64 // strike with the highest put OI (support)
	MaxPain     float64 // strike minimizing option-writer losses
}

// Analyze computes chain statistics over a priced chain. An empty chain
// yields zeroed stats.
func Analyze(chain models.PricedChain) ChainStats {
	var stats ChainStats
	if len(chain) == 0 {
		return stats
	}

	var callVol, putVol int64
	var maxCallOI, maxPutOI int64

	for _, row := range chain {
		if c := row.Call; c != nil {
			stats.TotalCallOI += c.OI
			callVol += c.Volume
			if c.OI > maxCallOI {
				maxCallOI = c.OI
				stats.CallWall = row.Strike
			}
		}
		if p := row.Put; p != nil {
			stats.TotalPutOI += p.OI
			putVol += p.Volume
			if p.OI > maxPutOI {
				maxPutOI = p.OI
				stats.PutWall = row.Strike
			}
		}
	}

	if stats.TotalCallOI > 0 {
		stats.PCROI = float64(stats.TotalPutOI) / float64(stats.TotalCallOI)
	}
	if callVol > 0 {
		stats.PCRVolume = float64(putVol) / float64(callVol)
	}
	stats.MaxPain = maxPain(chain)

	return stats
}

// maxPain returns the expiry level at which option writers lose the least:
// call writers pay out above their strike, put writers below theirs.
func maxPain(chain models.PricedChain) float64 {
	var best float64
	bestLoss := -1.0

	for _, candidate := range chain {
		price := candidate.Strike
		var loss float64

		for _, row := range chain {
			if c := row.Call; c != nil && row.Strike < price {
				loss += (price - row.Strike) * float64(c.OI)
			}
			if p := row.Put; p != nil && row.Strike > price {
				loss += (row.Strike - price) * float64(p.OI)
			}
		}

		if bestLoss < 0 || loss < bestLoss {
			bestLoss = loss
			best = price
		}
	}

	return best
}
