package pricing

import (
	"math"
	"testing"
	"time"

	"optionflow/internal/models"
)

func TestATMDeltaNearHalf(t *testing.T) {
	e := NewEngine(0)

	// Futures at the strike, short-dated, moderate vol.
	call := e.PriceAndGreeks(19000, 19000, 7.0/365, 0.15, models.SideCall)
	put := e.PriceAndGreeks(19000, 19000, 7.0/365, 0.15, models.SidePut)

	if math.Abs(call.Delta-0.5) > 0.05 {
		t.Errorf("ATM call delta = %.4f, want ~0.5", call.Delta)
	}
	if math.Abs(put.Delta+0.5) > 0.05 {
		t.Errorf("ATM put delta = %.4f, want ~-0.5", put.Delta)
	}
}

func TestGammaVegaSideIndependent(t *testing.T) {
	e := NewEngine(0)

	strikes := []float64{18500, 19000, 19500}
	for _, k := range strikes {
		call := e.PriceAndGreeks(19000, k, 10.0/365, 0.18, models.SideCall)
		put := e.PriceAndGreeks(19000, k, 10.0/365, 0.18, models.SidePut)

		if math.Abs(call.Gamma-put.Gamma) > 1e-12 {
			t.Errorf("strike %.0f: call gamma %.8f != put gamma %.8f", k, call.Gamma, put.Gamma)
		}
		if math.Abs(call.Vega-put.Vega) > 1e-12 {
			t.Errorf("strike %.0f: call vega %.6f != put vega %.6f", k, call.Vega, put.Vega)
		}
		if call.Gamma < 0 || call.Vega < 0 {
			t.Errorf("strike %.0f: gamma/vega negative: %.8f / %.6f", k, call.Gamma, call.Vega)
		}
	}
}

func TestThetaNegativeWithTimeValue(t *testing.T) {
	e := NewEngine(0)

	g := e.PriceAndGreeks(19000, 19000, 7.0/365, 0.15, models.SideCall)
	if g.Theta >= 0 {
		t.Errorf("ATM call theta = %.6f, want negative", g.Theta)
	}
	g = e.PriceAndGreeks(19000, 19200, 7.0/365, 0.15, models.SidePut)
	if g.Theta >= 0 {
		t.Errorf("ITM put theta = %.6f, want negative", g.Theta)
	}
}

func TestDegenerateInputsClamped(t *testing.T) {
	e := NewEngine(0)

	// Zero and negative T/sigma must not panic or produce NaN.
	cases := []struct {
		t, sigma float64
	}{
		{0, 0.15},
		{-1, 0.15},
		{7.0 / 365, 0},
		{7.0 / 365, -0.5},
		{0, 0},
	}
	for _, c := range cases {
		g := e.PriceAndGreeks(19000, 19000, c.t, c.sigma, models.SideCall)
		if math.IsNaN(g.Price) || math.IsInf(g.Price, 0) {
			t.Errorf("T=%v sigma=%v: price = %v", c.t, c.sigma, g.Price)
		}
		if math.IsNaN(g.Gamma) || math.IsNaN(g.Delta) {
			t.Errorf("T=%v sigma=%v: non-finite greeks", c.t, c.sigma)
		}
	}
}

func TestImpliedVolatilityRoundTrip(t *testing.T) {
	e := NewEngine(0)

	vols := []float64{0.10, 0.15, 0.25, 0.40, 0.80}
	for _, sigma := range vols {
		g := e.PriceAndGreeks(19000, 19200, 14.0/365, sigma, models.SideCall)
		got := e.ImpliedVolatility(g.Price, 19000, 19200, 14.0/365, models.SideCall)
		if math.Abs(got-sigma) > 1e-4 {
			t.Errorf("round trip: in %.4f out %.4f", sigma, got)
		}
	}
}

func TestImpliedVolatilityIntrinsicFloor(t *testing.T) {
	e := NewEngine(0)

	// Deep ITM call quoted at intrinsic: no time value to invert.
	iv := e.ImpliedVolatility(1000, 20000, 19000, 7.0/365, models.SideCall)
	if iv != ivFloor {
		t.Errorf("at-intrinsic price: iv = %v, want floor %v", iv, ivFloor)
	}
	// Below intrinsic too.
	iv = e.ImpliedVolatility(500, 20000, 19000, 7.0/365, models.SideCall)
	if iv != ivFloor {
		t.Errorf("sub-intrinsic price: iv = %v, want floor %v", iv, ivFloor)
	}
	// Nonpositive inputs.
	if iv := e.ImpliedVolatility(0, 19000, 19000, 7.0/365, models.SideCall); iv != 0 {
		t.Errorf("zero price: iv = %v, want 0", iv)
	}
	if iv := e.ImpliedVolatility(100, 19000, 19000, 0, models.SideCall); iv != 0 {
		t.Errorf("zero T: iv = %v, want 0", iv)
	}
}

func TestDeepITMShortDatedPricesAtIntrinsic(t *testing.T) {
	e := NewEngine(0)

	// Low vol and ~2 DTE leave an 8% ITM call with time value beyond double
	// precision: the model price collapses to intrinsic, and the solver
	// floors rather than inverting.
	futures, strike := 19000.0, 19000.0*0.92
	tte := 2.0 / 365
	sigma := 0.08

	price := e.PriceAndGreeks(futures, strike, tte, sigma, models.SideCall).Price
	intrinsic := futures - strike
	if price > intrinsic+1e-9 {
		t.Fatalf("price = %v, expected collapse to intrinsic %v", price, intrinsic)
	}

	if iv := e.ImpliedVolatility(price, futures, strike, tte, models.SideCall); iv != ivFloor {
		t.Errorf("iv = %v, want floor %v for a no-time-value quote", iv, ivFloor)
	}
}

func TestPriceChain(t *testing.T) {
	e := NewEngine(0)

	g := e.PriceAndGreeks(19050, 19000, 7.0/365, 0.15, models.SideCall)
	snap := &models.ChainSnapshot{
		Symbol:       "NIFTY",
		Timestamp:    time.Now(),
		SpotPrice:    19020,
		FuturesPrice: 19050,
		DaysToExpiry: 7,
		Strikes: []models.StrikeQuote{
			{
				Strike:  19000,
				LotSize: 50,
				Call:    &models.LegQuote{LTP: g.Price, OI: 100000, Volume: 40000},
				Put:     &models.LegQuote{LTP: 90, OI: 80000, Volume: 30000},
			},
			{
				Strike:  19100,
				LotSize: 50,
				Call:    &models.LegQuote{LTP: 0, OI: 5000}, // stale quote, carried unpriced
			},
		},
	}

	chain := e.PriceChain(snap)
	if len(chain) != 2 {
		t.Fatalf("priced chain length = %d, want 2", len(chain))
	}

	call := chain[0].Call
	if call == nil {
		t.Fatal("call leg missing")
	}
	if math.Abs(call.IV-0.15) > 1e-3 {
		t.Errorf("solved call IV = %.4f, want ~0.15", call.IV)
	}
	if call.Greeks.Gamma <= 0 {
		t.Errorf("call gamma = %v, want > 0", call.Greeks.Gamma)
	}
	if chain[1].Call.IV != 0 || chain[1].Call.Greeks.Price != 0 {
		t.Errorf("unpriceable leg should carry zero IV/greeks, got %v / %v",
			chain[1].Call.IV, chain[1].Call.Greeks.Price)
	}

	if got := e.PriceChain(nil); got != nil {
		t.Errorf("nil snapshot: got %v, want nil", got)
	}
}

func TestPriceAndGreeksDeterministic(t *testing.T) {
	e := NewEngine(0)

	a := e.PriceAndGreeks(19000, 19200, 10.0/365, 0.22, models.SidePut)
	b := e.PriceAndGreeks(19000, 19200, 10.0/365, 0.22, models.SidePut)
	if a != b {
		t.Errorf("identical inputs produced different greeks: %+v vs %+v", a, b)
	}
}
