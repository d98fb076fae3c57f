package scanner

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"optionflow/internal/analysis"
	"optionflow/internal/engine/structure"
	"optionflow/internal/engine/velocity"
	apperrors "optionflow/internal/errors"
	"optionflow/internal/models"
	"optionflow/pkg/utils"
)

type stubSource struct {
	snaps []*models.ChainSnapshot
	calls int
	err   error
}

func (s *stubSource) Load(ctx context.Context, symbol string) (*models.ChainSnapshot, error) {
	if s.err != nil {
		s.calls++
		return nil, s.err
	}
	i := s.calls
	if i >= len(s.snaps) {
		i = len(s.snaps) - 1
	}
	s.calls++
	return s.snaps[i], nil
}

type stubRecorder struct {
	saved []*Result
	err   error
}

func (r *stubRecorder) SaveScan(res *Result) error {
	if r.err != nil {
		return r.err
	}
	r.saved = append(r.saved, res)
	return nil
}

func testSnapshot(ts time.Time, spot float64, callOI19100 int64) *models.ChainSnapshot {
	leg := func(ltp float64, oi int64) *models.LegQuote {
		return &models.LegQuote{LTP: ltp, OI: oi, Volume: oi / 4}
	}
	return &models.ChainSnapshot{
		Symbol:       "NIFTY",
		Timestamp:    ts,
		SpotPrice:    spot,
		FuturesPrice: spot + 25,
		DaysToExpiry: 7,
		Strikes: []models.StrikeQuote{
			{Strike: 18900, LotSize: 50, Call: leg(145.5, 40000), Put: leg(52.3, 90000)},
			{Strike: 19000, LotSize: 50, Call: leg(98.0, 60000), Put: leg(88.0, 70000)},
			{Strike: 19100, LotSize: 50, Call: leg(62.0, callOI19100), Put: leg(130.0, 30000)},
		},
	}
}

func TestScanCycle(t *testing.T) {
	base := time.Date(2025, 1, 6, 10, 30, 0, 0, time.UTC)
	source := &stubSource{snaps: []*models.ChainSnapshot{
		testSnapshot(base, 19000, 50000),
		testSnapshot(base.Add(3*time.Minute), 19050, 55000),
	}}
	recorder := &stubRecorder{}
	s := New(source, velocity.NewRegistry(velocity.DefaultCapacity), zerolog.Nop(), WithRecorder(recorder))

	first, err := s.Scan(context.Background(), "NIFTY", MacroInputs{})
	if err != nil {
		t.Fatalf("first scan: %v", err)
	}
	if first.Verdict.Class == "" {
		t.Errorf("first cycle should still produce a verdict")
	}
	if len(first.Detections) != 0 {
		t.Errorf("first cycle has no OI deltas, got detections %v", first.Detections)
	}
	if first.Stats.PCROI <= 0 {
		t.Errorf("PCR not computed: %+v", first.Stats)
	}
	if first.Exposure.GEX == 0 {
		t.Errorf("exposure not aggregated")
	}

	second, err := s.Scan(context.Background(), "NIFTY", MacroInputs{MomentumScore: 70})
	if err != nil {
		t.Fatalf("second scan: %v", err)
	}
	if second.Regime != analysis.LongBuildup {
		t.Errorf("price up + OI up regime = %s, want LONG_BUILDUP", second.Regime)
	}

	found := false
	for _, det := range second.Detections {
		if det.Structure == structure.NakedCallBuy && det.BuyLeg != nil && det.BuyLeg.Strike == 19100 {
			found = true
		}
	}
	if !found {
		t.Errorf("+5000 call OI at 19100 should detect a naked call buy, got %v", second.Detections)
	}

	if len(recorder.saved) != 2 {
		t.Errorf("recorder saved %d results, want 2", len(recorder.saved))
	}
}

func TestScanSourceFailure(t *testing.T) {
	source := &stubSource{err: errors.New("feed down")}
	s := New(source, velocity.NewRegistry(velocity.DefaultCapacity), zerolog.Nop(),
		WithRetry(utils.RetryConfig{MaxAttempts: 3, InitialDelay: time.Millisecond, MaxDelay: time.Millisecond, BackoffFactor: 1}))

	if _, err := s.Scan(context.Background(), "NIFTY", MacroInputs{}); err == nil {
		t.Fatalf("source failure must abort the cycle")
	}
	if source.calls != 3 {
		t.Errorf("transient failure fetched %d times, want 3 attempts", source.calls)
	}
}

func TestScanMalformedChainNotRetried(t *testing.T) {
	source := &stubSource{err: apperrors.NewChainError("NIFTY", 2, "strike", nil)}
	s := New(source, velocity.NewRegistry(velocity.DefaultCapacity), zerolog.Nop(),
		WithRetry(utils.RetryConfig{MaxAttempts: 3, InitialDelay: time.Millisecond, MaxDelay: time.Millisecond, BackoffFactor: 1}))

	_, err := s.Scan(context.Background(), "NIFTY", MacroInputs{})
	if !errors.Is(err, apperrors.ErrMalformedChain) {
		t.Fatalf("Scan error = %v, want ErrMalformedChain", err)
	}
	if source.calls != 1 {
		t.Errorf("malformed chain fetched %d times, want 1 attempt", source.calls)
	}
}

func TestScanRecorderFailureDoesNotAbort(t *testing.T) {
	base := time.Date(2025, 1, 6, 10, 30, 0, 0, time.UTC)
	source := &stubSource{snaps: []*models.ChainSnapshot{testSnapshot(base, 19000, 50000)}}
	s := New(source, velocity.NewRegistry(velocity.DefaultCapacity), zerolog.Nop(),
		WithRecorder(&stubRecorder{err: errors.New("disk full")}))

	if _, err := s.Scan(context.Background(), "NIFTY", MacroInputs{}); err != nil {
		t.Fatalf("recorder failure must not fail the cycle: %v", err)
	}
}

func TestRunStopsOnCancel(t *testing.T) {
	base := time.Date(2025, 1, 6, 10, 30, 0, 0, time.UTC)
	source := &stubSource{snaps: []*models.ChainSnapshot{testSnapshot(base, 19000, 50000)}}
	s := New(source, velocity.NewRegistry(velocity.DefaultCapacity), zerolog.Nop())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- s.Run(ctx, []string{"NIFTY"}, 10*time.Millisecond, nil)
	}()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Errorf("Run returned %v, want context.Canceled", err)
		}
	case <-time.After(time.Second):
		t.Fatalf("Run did not stop after cancellation")
	}

	if source.calls < 1 {
		t.Errorf("loop never scanned")
	}
}
