// Package pricing implements Black-76 option pricing for futures-based
// contracts. Indian index options settle against futures, so the model takes
// the futures price, not spot.
package pricing

import (
	"math"

	"optionflow/internal/models"
)

const (
	// DefaultRiskFreeRate is the continuously-compounded risk-free rate
	// (India 10Y G-Sec).
	DefaultRiskFreeRate = 0.065

	// minTimeToExpiry floors T at one hour, expressed in years.
	minTimeToExpiry = 1.0 / 365.0 / 24.0
	// minVolatility floors sigma to keep d1 finite.
	minVolatility = 0.001

	ivInitialGuess  = 0.30
	ivFloor         = 0.001
	ivCeiling       = 5.0
	ivEpsilon       = 1e-8
	ivMaxIterations = 100
	// vegaUnderflow is the Jacobian magnitude below which the IV search
	// cannot make progress (deep OTM, negligible time value).
	vegaUnderflow = 1e-10
)

// Engine prices option legs and solves implied volatility. It is stateless
// and safe for concurrent use.
type Engine struct {
	riskFreeRate float64
}

// NewEngine creates a pricing engine with the given risk-free rate. A rate
// of 0 selects DefaultRiskFreeRate.
func NewEngine(riskFreeRate float64) *Engine {
	if riskFreeRate == 0 {
		riskFreeRate = DefaultRiskFreeRate
	}
	return &Engine{riskFreeRate: riskFreeRate}
}

// PriceAndGreeks computes the Black-76 price and first to third order Greeks
// for a single leg. Degenerate inputs are clamped, never rejected: T is
// floored to one hour and sigma to 0.1%, so the pipeline keeps producing a
// best-effort result on market noise.
//
// Vega is scaled per 1 vol point, theta per calendar day. Gamma and vega are
// side-independent; delta, theta, vanna and charm follow the put-call
// relationships.
func (e *Engine) PriceAndGreeks(futures, strike, timeToExpiry, sigma float64, side models.OptionSide) models.Greeks {
	if timeToExpiry <= 0 {
		timeToExpiry = minTimeToExpiry
	}
	if sigma <= 0 {
		sigma = minVolatility
	}

	r := e.riskFreeRate
	sqrtT := math.Sqrt(timeToExpiry)

	d1 := (math.Log(futures/strike) + 0.5*sigma*sigma*timeToExpiry) / (sigma * sqrtT)
	d2 := d1 - sigma*sqrtT

	expRT := math.Exp(-r * timeToExpiry)
	nd1 := normCDF(d1)
	nd2 := normCDF(d2)
	nmD1 := normCDF(-d1)
	nmD2 := normCDF(-d2)
	pdfD1 := normPDF(d1)

	var g models.Greeks

	if side == models.SideCall {
		g.Price = expRT * (futures*nd1 - strike*nd2)
		g.Delta = expRT * nd1
	} else {
		g.Price = expRT * (strike*nmD2 - futures*nmD1)
		g.Delta = expRT * (nd1 - 1)
	}

	// Gamma and vega are identical for calls and puts.
	g.Gamma = expRT * pdfD1 / (futures * sigma * sqrtT)
	g.Vega = futures * expRT * pdfD1 * sqrtT / 100

	thetaBase := -(futures * expRT * pdfD1 * sigma / (2 * sqrtT)) / 365
	if side == models.SideCall {
		g.Theta = thetaBase - r*strike*expRT*nd2/365
	} else {
		g.Theta = thetaBase + r*strike*expRT*nmD2/365
	}

	g.Vanna = -expRT * (d2 / sigma) * pdfD1

	charm := expRT * pdfD1 * (2*r*timeToExpiry - d2*sigma*sqrtT) / (2 * timeToExpiry * sigma * sqrtT)
	if side == models.SideCall {
		g.Charm = charm
	} else {
		g.Charm = -charm
	}

	g.Vomma = g.Vega * d1 * d2 / sigma
	g.Speed = -g.Gamma * (1 + d1/(sigma*sqrtT)) / futures

	return g
}

// ImpliedVolatility solves for the volatility that reproduces marketPrice
// under Black-76, via Newton-Raphson with the model vega as Jacobian.
//
// The iterate is clamped to [0.1%, 500%] each step. Non-convergence after the
// iteration cap returns the last iterate: a quality signal, not a failure.
// A market price at or below intrinsic has no time value to invert and
// returns the 0.1% floor immediately.
func (e *Engine) ImpliedVolatility(marketPrice, futures, strike, timeToExpiry float64, side models.OptionSide) float64 {
	if timeToExpiry <= 0 || marketPrice <= 0 {
		return 0.0
	}

	intrinsic := futures - strike
	if side == models.SidePut {
		intrinsic = strike - futures
	}
	if intrinsic < 0 {
		intrinsic = 0
	}
	if marketPrice <= intrinsic {
		return ivFloor
	}

	sigma := ivInitialGuess
	for i := 0; i < ivMaxIterations; i++ {
		g := e.PriceAndGreeks(futures, strike, timeToExpiry, sigma, side)
		diff := g.Price - marketPrice
		if math.Abs(diff) < ivEpsilon {
			break
		}

		// Vega is scaled per vol point; the Jacobian needs per unit.
		vega := g.Vega * 100
		if math.Abs(vega) < vegaUnderflow {
			break
		}

		sigma -= diff / vega
		if sigma < ivFloor {
			sigma = ivFloor
		} else if sigma > ivCeiling {
			sigma = ivCeiling
		}
	}

	return sigma
}

// PriceChain solves IV and Greeks for every quoted leg of a snapshot and
// returns the priced chain the aggregators consume. Legs without a positive
// last price are carried through unpriced (zero Greeks) rather than dropped,
// so one stale quote never aborts the cycle.
func (e *Engine) PriceChain(snap *models.ChainSnapshot) models.PricedChain {
	if snap == nil || len(snap.Strikes) == 0 {
		return nil
	}

	timeToExpiry := snap.DaysToExpiry / 365.0
	chain := make(models.PricedChain, 0, len(snap.Strikes))

	for _, row := range snap.Strikes {
		priced := models.PricedStrike{
			Strike:  row.Strike,
			LotSize: row.LotSize,
		}
		if row.Call != nil {
			priced.Call = e.priceLeg(row.Call, row.Strike, snap.FuturesPrice, timeToExpiry, models.SideCall)
		}
		if row.Put != nil {
			priced.Put = e.priceLeg(row.Put, row.Strike, snap.FuturesPrice, timeToExpiry, models.SidePut)
		}
		chain = append(chain, priced)
	}

	return chain
}

func (e *Engine) priceLeg(q *models.LegQuote, strike, futures, timeToExpiry float64, side models.OptionSide) *models.PricedLeg {
	leg := &models.PricedLeg{
		LegQuote: *q,
		Side:     side,
		Strike:   strike,
	}

	if q.LTP <= 0 || timeToExpiry <= 0 {
		return leg
	}

	iv := q.IV
	if iv <= 0 {
		iv = e.ImpliedVolatility(q.LTP, futures, strike, timeToExpiry, side)
	}
	leg.IV = iv
	leg.Greeks = e.PriceAndGreeks(futures, strike, timeToExpiry, iv, side)

	return leg
}

// normCDF is the standard normal cumulative distribution function.
func normCDF(x float64) float64 {
	return 0.5 * math.Erfc(-x/math.Sqrt2)
}

// normPDF is the standard normal probability density function.
func normPDF(x float64) float64 {
	return math.Exp(-0.5*x*x) / math.Sqrt(2*math.Pi)
}
