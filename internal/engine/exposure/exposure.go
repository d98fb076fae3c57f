// Package exposure aggregates dealer hedging exposures across a priced
// option chain. The sign convention encodes the market-maker model: dealers
// are net short calls and net short puts against retail flow, so their
// hedging book carries short gamma on the call side and long gamma on the
// put side.
package exposure

import (
	"sort"

	"optionflow/internal/models"
)

// DefaultLotSize is used when a chain row carries no lot size.
const DefaultLotSize = 50

// Snapshot holds the aggregate dealer exposures for one scan cycle.
// Derived per cycle from the full priced chain; the aggregator retains
// nothing.
type Snapshot struct {
	GEX        float64 // gamma exposure, per 1% move
	DEX        float64 // delta exposure (dealer book delta)
	VEX        float64 // vanna exposure, hedge drift per IV move
	CEX        float64 // charm exposure, hedge drift per day
	FlipStrike float64 // level where cumulative GEX changes sign; 0 if none
}

// Aggregator computes dealer exposure snapshots. Stateless and safe for
// concurrent use.
type Aggregator struct {
	defaultLot int
}

// NewAggregator creates an exposure aggregator with the standard lot
// fallback.
func NewAggregator() *Aggregator {
	return NewAggregatorWithLot(DefaultLotSize)
}

// NewAggregatorWithLot creates an aggregator with an explicit lot fallback
// for rows carrying none.
func NewAggregatorWithLot(lot int) *Aggregator {
	if lot <= 0 {
		lot = DefaultLotSize
	}
	return &Aggregator{defaultLot: lot}
}

// Calculate sums per-strike dealer exposures across the chain. Rows with
// missing legs or Greeks contribute zero for the missing side; one
// incomplete row never aborts the aggregation. An empty chain yields a zero
// snapshot.
func (a *Aggregator) Calculate(chain models.PricedChain, spot float64) Snapshot {
	var snap Snapshot

	for _, row := range chain {
		lot := float64(a.lotSize(row))

		if c := row.Call; c != nil {
			// Dealer short call: short gamma, negative book delta.
			snap.GEX += -c.Greeks.Gamma * float64(c.OI) * lot * spot * spot * 0.01
			snap.DEX += -c.Greeks.Delta * float64(c.OI) * lot
			snap.VEX += -c.Greeks.Vanna * float64(c.OI) * lot * spot * c.IV
			snap.CEX += -c.Greeks.Charm * float64(c.OI) * lot
		}
		if p := row.Put; p != nil {
			// Dealer short put: long gamma. Put delta is already negative,
			// so the DEX term stays additive in sign.
			snap.GEX += p.Greeks.Gamma * float64(p.OI) * lot * spot * spot * 0.01
			snap.DEX += -p.Greeks.Delta * float64(p.OI) * lot
			snap.VEX += -p.Greeks.Vanna * float64(p.OI) * lot * spot * p.IV
			snap.CEX += -p.Greeks.Charm * float64(p.OI) * lot
		}
	}

	snap.FlipStrike = a.flipLevel(chain, spot)
	return snap
}

// flipLevel approximates the strike separating dealer-stabilizing from
// dealer-destabilizing hedging regimes: the midpoint between adjacent
// strikes where the cumulative GEX profile first crosses zero, scanning low
// to high. Returns 0 when the profile never changes sign.
func (a *Aggregator) flipLevel(chain models.PricedChain, spot float64) float64 {
	if len(chain) < 2 {
		return 0
	}

	sorted := make(models.PricedChain, len(chain))
	copy(sorted, chain)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Strike < sorted[j].Strike })

	type point struct {
		strike     float64
		cumulative float64
	}

	profile := make([]point, 0, len(sorted))
	var cumulative float64

	for _, row := range sorted {
		lot := float64(a.lotSize(row))
		var net float64
		if c := row.Call; c != nil {
			net += -c.Greeks.Gamma * float64(c.OI) * lot * spot * spot * 0.01
		}
		if p := row.Put; p != nil {
			net += p.Greeks.Gamma * float64(p.OI) * lot * spot * spot * 0.01
		}
		cumulative += net
		profile = append(profile, point{strike: row.Strike, cumulative: cumulative})
	}

	for i := 1; i < len(profile); i++ {
		prev, curr := profile[i-1], profile[i]
		if (prev.cumulative > 0 && curr.cumulative < 0) ||
			(prev.cumulative < 0 && curr.cumulative > 0) {
			return (prev.strike + curr.strike) / 2
		}
	}

	return 0
}

func (a *Aggregator) lotSize(row models.PricedStrike) int {
	if row.LotSize <= 0 {
		return a.defaultLot
	}
	return row.LotSize
}
