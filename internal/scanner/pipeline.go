// Package scanner wires the full scan cycle: fetch a chain snapshot, price
// it, aggregate dealer exposures, track OI velocity, detect structures and
// synthesize the cycle's verdict. One Scan call is one cycle; the only
// cross-cycle state lives in the velocity registry and the per-symbol
// previous-cycle cache.
package scanner

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"optionflow/internal/analysis"
	"optionflow/internal/engine/bias"
	"optionflow/internal/engine/exposure"
	"optionflow/internal/engine/pricing"
	"optionflow/internal/engine/structure"
	"optionflow/internal/engine/velocity"
	"optionflow/internal/engine/verdict"
	apperrors "optionflow/internal/errors"
	"optionflow/internal/feed"
	"optionflow/internal/logging"
	"optionflow/internal/models"
	"optionflow/pkg/utils"
)

// rupeesPerCrore converts raw exposure values to Crore for the bias engine.
const rupeesPerCrore = 1e7

// MacroInputs carries the cycle's externally sourced signals: institutional
// flows, the volatility index and the technical collaborator's readings.
// Zero values fall back to the verdict context defaults.
type MacroInputs struct {
	FIINetCr float64
	DIINetCr float64
	VIX      float64

	MomentumScore float64
	IVRank        float64
	ATRPct        float64
	RSI           float64
	VWAPPosition  verdict.VWAPPosition
	// FlowNetChange is the institutional net position change in contracts.
	FlowNetChange    float64
	PriceChangeToday float64
}

// Result is one completed scan cycle.
type Result struct {
	Symbol     string
	ScannedAt  time.Time
	Snapshot   *models.ChainSnapshot
	Priced     models.PricedChain
	Stats      analysis.ChainStats
	Exposure   exposure.Snapshot
	Regime     analysis.OIRegime
	Detections []structure.Detection
	Bias       bias.Components
	Verdict    verdict.Verdict
	Elapsed    time.Duration
}

// Recorder persists completed scan results. A persistence failure is logged
// and never fails the cycle.
type Recorder interface {
	SaveScan(res *Result) error
}

// Scanner runs scan cycles. Safe for concurrent use across symbols; cycles
// for the same symbol must be serialized by the caller (the poll loop does).
type Scanner struct {
	source      feed.ChainSource
	pricer      *pricing.Engine
	exposures   *exposure.Aggregator
	velocities  *velocity.Registry
	detector    *structure.Detector
	biasEngine  *bias.Engine
	synthesizer *verdict.Synthesizer
	recorder    Recorder
	retry       utils.RetryConfig
	logger      zerolog.Logger

	mu   sync.Mutex
	prev map[string]cycleState
}

// cycleState is the per-symbol carry-over between consecutive cycles.
type cycleState struct {
	spot    float64
	totalOI int64
	pcr     float64
}

// Option configures a Scanner.
type Option func(*Scanner)

// WithRecorder attaches a persistence sink.
func WithRecorder(r Recorder) Option {
	return func(s *Scanner) { s.recorder = r }
}

// WithPricer overrides the default pricing engine.
func WithPricer(p *pricing.Engine) Option {
	return func(s *Scanner) { s.pricer = p }
}

// WithAggregator overrides the default exposure aggregator.
func WithAggregator(a *exposure.Aggregator) Option {
	return func(s *Scanner) { s.exposures = a }
}

// WithBiasEngine overrides the default macro bias engine.
func WithBiasEngine(e *bias.Engine) Option {
	return func(s *Scanner) { s.biasEngine = e }
}

// WithDetector overrides the default structure detector.
func WithDetector(d *structure.Detector) Option {
	return func(s *Scanner) { s.detector = d }
}

// WithRetry overrides the chain fetch retry policy.
func WithRetry(cfg utils.RetryConfig) Option {
	return func(s *Scanner) {
		cfg.NonRetryable = append(cfg.NonRetryable, nonRetryable...)
		s.retry = cfg
	}
}

// Bad input never gets better on a retry; only transient fetch failures do.
var nonRetryable = []error{
	apperrors.ErrMalformedChain,
	apperrors.ErrEmptySnapshot,
	apperrors.ErrDataNotFound,
}

// New creates a scanner over a chain source.
func New(source feed.ChainSource, registry *velocity.Registry, logger zerolog.Logger, opts ...Option) *Scanner {
	s := &Scanner{
		source:      source,
		pricer:      pricing.NewEngine(0),
		exposures:   exposure.NewAggregator(),
		velocities:  registry,
		detector:    structure.NewDetector(),
		biasEngine:  bias.NewEngine(),
		synthesizer: verdict.NewSynthesizer(),
		logger:      logger.With().Str("component", "scanner").Logger(),
	}
	s.retry = utils.DefaultRetryConfig()
	s.retry.NonRetryable = nonRetryable
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Scan runs one full cycle for a symbol. Malformed chain data aborts the
// cycle with an error; every numeric degeneracy downstream is absorbed and
// still produces a verdict.
func (s *Scanner) Scan(ctx context.Context, symbol string, macro MacroInputs) (*Result, error) {
	started := time.Now()

	snap, err := utils.RetryWithResult(ctx, s.retry, func() (*models.ChainSnapshot, error) {
		return s.source.Load(ctx, symbol)
	})
	if err != nil {
		s.logger.Error().Err(err).Str("symbol", symbol).Msg("Chain fetch failed, dropping cycle")
		return nil, fmt.Errorf("load chain for %s: %w", symbol, err)
	}
	s.logger.Debug().
		Str("symbol", symbol).
		Int("strikes", len(snap.Strikes)).
		Float64("spot", snap.SpotPrice).
		Msg("Chain snapshot loaded")

	priced := s.pricer.PriceChain(snap)
	exp := s.exposures.Calculate(priced, snap.SpotPrice)
	s.logger.Debug().
		Str("symbol", symbol).
		Float64("gex", exp.GEX).
		Float64("dex", exp.DEX).
		Float64("flip", exp.FlipStrike).
		Msg("Dealer exposures aggregated")

	deltas := s.velocities.RecordCycle(feed.OIObservations(snap))
	stats := analysis.Analyze(priced)

	prev := s.swapState(symbol, snap, stats)
	priceChangePct := 0.0
	if prev.spot > 0 {
		priceChangePct = (snap.SpotPrice - prev.spot) / prev.spot * 100
	}
	oiChange := float64(stats.TotalCallOI+stats.TotalPutOI) - float64(prev.totalOI)
	if prev.totalOI == 0 {
		oiChange = 0
	}
	regime := analysis.ClassifyBuildup(priceChangePct, oiChange)

	atm := snap.ATMStrike()
	detections := s.detector.Identify(deltas, priceChangePct, atm)
	for _, det := range detections {
		logging.LogDetection(s.logger, symbol,
			string(det.Structure), string(det.Bias), det.Confidence, det.Rationale)
	}

	pcrPrev := prev.pcr
	if pcrPrev == 0 {
		pcrPrev = stats.PCROI
	}
	biasComp := s.biasEngine.Compute(
		macro.FIINetCr, macro.DIINetCr,
		exp.GEX/rupeesPerCrore,
		stats.PCROI, pcrPrev,
		macro.VIX,
	)

	priceChangeToday := macro.PriceChangeToday
	if priceChangeToday == 0 {
		priceChangeToday = priceChangePct
	}
	atmDistancePct := 0.0
	if snap.SpotPrice > 0 && atm > 0 {
		atmDistancePct = (atm - snap.SpotPrice) / snap.SpotPrice * 100
		if atmDistancePct < 0 {
			atmDistancePct = -atmDistancePct
		}
	}

	vctx := verdict.Context{
		Symbol:           symbol,
		MomentumScore:    macro.MomentumScore,
		OIRegime:         regime,
		Exposure:         exp,
		VelocityZScore:   s.velocities.MaxZScore(symbol),
		Detections:       detections,
		FlowNetChange:    macro.FlowNetChange,
		PCR:              stats.PCROI,
		IVRank:           macro.IVRank,
		ATMStrike:        atm,
		ATMDistancePct:   atmDistancePct,
		DaysToExpiry:     snap.DaysToExpiry,
		SpotPrice:        snap.SpotPrice,
		PriceChangeToday: priceChangeToday,
		ATRPct:           macro.ATRPct,
		VWAPPosition:     macro.VWAPPosition,
		RSI:              macro.RSI,
	}
	v := s.synthesizer.Generate(vctx)

	res := &Result{
		Symbol:     symbol,
		ScannedAt:  snap.Timestamp,
		Snapshot:   snap,
		Priced:     priced,
		Stats:      stats,
		Exposure:   exp,
		Regime:     regime,
		Detections: detections,
		Bias:       biasComp,
		Verdict:    v,
		Elapsed:    time.Since(started),
	}

	if s.recorder != nil {
		if err := s.recorder.SaveScan(res); err != nil {
			s.logger.Warn().Err(err).Str("symbol", symbol).Msg("Failed to persist scan result")
		}
	}

	logging.LogVerdict(s.logger.With().
		Str("regime", string(regime)).
		Str("bias", string(biasComp.Label)).
		Dur("elapsed", res.Elapsed).
		Logger(), symbol, string(v.Class), v.ConfidencePct, string(v.EntryType))

	return res, nil
}

// swapState returns the previous cycle state for a symbol and stores the
// current one.
func (s *Scanner) swapState(symbol string, snap *models.ChainSnapshot, stats analysis.ChainStats) cycleState {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.prev == nil {
		s.prev = make(map[string]cycleState)
	}
	prev := s.prev[symbol]
	s.prev[symbol] = cycleState{
		spot:    snap.SpotPrice,
		totalOI: stats.TotalCallOI + stats.TotalPutOI,
		pcr:     stats.PCROI,
	}
	return prev
}
