// Package models defines the market data types shared across the scanner.
package models

import "time"

// OptionSide identifies the option type of a contract.
type OptionSide string

const (
	// SideCall is a call option (CE in NSE convention).
	SideCall OptionSide = "CE"
	// SidePut is a put option (PE in NSE convention).
	SidePut OptionSide = "PE"
)

// Valid reports whether the side is one of the known option types.
func (s OptionSide) Valid() bool {
	return s == SideCall || s == SidePut
}

// LegQuote holds the raw market quote for one option contract.
type LegQuote struct {
	LTP    float64
	OI     int64
	Volume int64
	IV     float64 // quoted IV if the feed supplies one; 0 means unquoted
}

// StrikeQuote is one strike row of a chain snapshot. Either side may be
// missing when the feed has no quote for it.
type StrikeQuote struct {
	Strike  float64
	LotSize int
	Call    *LegQuote
	Put     *LegQuote
}

// ChainSnapshot is one scan cycle's option chain for a single instrument
// and expiry, as delivered by the fetch layer. Rows are immutable once
// ingested.
type ChainSnapshot struct {
	Symbol       string
	Timestamp    time.Time
	Expiry       time.Time
	SpotPrice    float64
	FuturesPrice float64
	DaysToExpiry float64
	Strikes      []StrikeQuote
}

// ATMStrike returns the listed strike closest to the spot price, or 0 for
// an empty chain.
func (c *ChainSnapshot) ATMStrike() float64 {
	var atm float64
	best := -1.0
	for _, row := range c.Strikes {
		d := row.Strike - c.SpotPrice
		if d < 0 {
			d = -d
		}
		if best < 0 || d < best {
			best = d
			atm = row.Strike
		}
	}
	return atm
}

// Greeks holds the model price and sensitivities of a single option leg.
// Vega is per 1 vol point, theta per calendar day.
type Greeks struct {
	Price float64
	Delta float64
	Gamma float64
	Vega  float64
	Theta float64
	Vanna float64 // dDelta/dIV
	Charm float64 // dDelta/dT
	Vomma float64 // dVega/dIV
	Speed float64 // dGamma/dF
}

// PricedLeg is a leg quote with its solved IV and Greeks attached. Recomputed
// every cycle, never mutated in place.
type PricedLeg struct {
	LegQuote
	Side   OptionSide
	Strike float64
	IV     float64
	Greeks Greeks
}

// PricedStrike is one strike row of a priced chain.
type PricedStrike struct {
	Strike  float64
	LotSize int
	Call    *PricedLeg
	Put     *PricedLeg
}

// PricedChain is a fully priced option chain, ordered as ingested.
type PricedChain []PricedStrike

// OISnapshot is one open-interest observation for a single contract, keyed
// into a velocity tracker's history.
type OISnapshot struct {
	Timestamp time.Time
	Symbol    string
	Strike    float64
	Side      OptionSide
	OI        int64
	Volume    int64
}

// StrikeKey identifies a (strike, side) contract within one instrument.
type StrikeKey struct {
	Strike float64
	Side   OptionSide
}
