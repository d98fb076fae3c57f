package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"optionflow/internal/analysis"
	"optionflow/internal/engine/bias"
	"optionflow/internal/engine/exposure"
	"optionflow/internal/engine/structure"
	"optionflow/internal/engine/verdict"
	"optionflow/internal/models"
	"optionflow/internal/scanner"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	s, err := NewSQLiteStore(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("NewSQLiteStore: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func sampleResult(ts time.Time) *scanner.Result {
	return &scanner.Result{
		Symbol:    "NIFTY",
		ScannedAt: ts,
		Snapshot:  &models.ChainSnapshot{Symbol: "NIFTY", SpotPrice: 19000},
		Stats:     analysis.ChainStats{PCROI: 1.12, MaxPain: 19000},
		Exposure:  exposure.Snapshot{GEX: -180_500_000, DEX: -5000, FlipStrike: 19050},
		Regime:    analysis.LongBuildup,
		Detections: []structure.Detection{
			{
				Structure:  structure.NakedCallBuy,
				Bias:       structure.Bullish,
				Conviction: structure.High,
				Confidence: 0.85,
				Rationale:  "Naked call buy 19100 CE",
			},
		},
		Bias: bias.Components{FinalScore: 0.42, Label: bias.BullishBias},
		Verdict: verdict.Verdict{
			Class:         verdict.StrongBuy,
			ConfidencePct: 88,
			HoldingPeriod: verdict.Intraday,
			EntryType:     verdict.EntryNakedCall,
			EntryStrike:   19000,
			TargetMovePct: 5.0,
			StopLoss:      18696,
			RiskLevel:     verdict.RiskMedium,
			KeyReasons:    []string{"OI: LONG_BUILDUP confirms direction"},
			RedFlags:      nil,
		},
	}
}

func TestSaveScanRoundTrip(t *testing.T) {
	s := newTestStore(t)
	ts := time.Date(2025, 1, 6, 10, 30, 0, 0, time.UTC)

	if err := s.SaveScan(sampleResult(ts)); err != nil {
		t.Fatalf("SaveScan: %v", err)
	}

	verdicts, err := s.GetVerdicts(context.Background(), VerdictFilter{Symbol: "NIFTY"})
	if err != nil {
		t.Fatalf("GetVerdicts: %v", err)
	}
	if len(verdicts) != 1 {
		t.Fatalf("verdicts = %d, want 1", len(verdicts))
	}
	rec := verdicts[0]
	if rec.Class != "STRONG_BUY" || rec.ConfidencePct != 88 || rec.BiasLabel != "BULLISH" {
		t.Errorf("verdict record wrong: %+v", rec)
	}
	if len(rec.KeyReasons) != 1 {
		t.Errorf("key reasons not round-tripped: %v", rec.KeyReasons)
	}

	exps, err := s.GetExposureHistory(context.Background(), "NIFTY", ts.Add(-time.Hour), ts.Add(time.Hour))
	if err != nil {
		t.Fatalf("GetExposureHistory: %v", err)
	}
	if len(exps) != 1 || exps[0].GEX != -180_500_000 || exps[0].FlipStrike != 19050 {
		t.Errorf("exposure record wrong: %+v", exps)
	}

	dets, err := s.GetDetections(context.Background(), "NIFTY", 10)
	if err != nil {
		t.Fatalf("GetDetections: %v", err)
	}
	if len(dets) != 1 || dets[0].Structure != "NAKED_CALL_BUY" {
		t.Errorf("detection record wrong: %+v", dets)
	}
}

func TestGetVerdictsFilters(t *testing.T) {
	s := newTestStore(t)
	base := time.Date(2025, 1, 6, 10, 0, 0, 0, time.UTC)

	for i := 0; i < 5; i++ {
		res := sampleResult(base.Add(time.Duration(i) * 3 * time.Minute))
		if i%2 == 1 {
			res.Verdict.Class = verdict.Neutral
		}
		if err := s.SaveScan(res); err != nil {
			t.Fatalf("SaveScan: %v", err)
		}
	}

	strong, err := s.GetVerdicts(context.Background(), VerdictFilter{Symbol: "NIFTY", Class: "STRONG_BUY"})
	if err != nil {
		t.Fatalf("GetVerdicts: %v", err)
	}
	if len(strong) != 3 {
		t.Errorf("STRONG_BUY rows = %d, want 3", len(strong))
	}

	limited, err := s.GetVerdicts(context.Background(), VerdictFilter{Symbol: "NIFTY", Limit: 2})
	if err != nil {
		t.Fatalf("GetVerdicts: %v", err)
	}
	if len(limited) != 2 {
		t.Errorf("limited rows = %d, want 2", len(limited))
	}
	// Newest first.
	if limited[0].Timestamp.Before(limited[1].Timestamp) {
		t.Errorf("verdicts not ordered newest first")
	}
}

func TestPrune(t *testing.T) {
	s := newTestStore(t)

	old := sampleResult(time.Now().AddDate(0, 0, -40))
	fresh := sampleResult(time.Now())
	if err := s.SaveScan(old); err != nil {
		t.Fatal(err)
	}
	if err := s.SaveScan(fresh); err != nil {
		t.Fatal(err)
	}

	if err := s.Prune(context.Background(), 30); err != nil {
		t.Fatalf("Prune: %v", err)
	}

	verdicts, err := s.GetVerdicts(context.Background(), VerdictFilter{Symbol: "NIFTY"})
	if err != nil {
		t.Fatal(err)
	}
	if len(verdicts) != 1 {
		t.Errorf("rows after prune = %d, want 1", len(verdicts))
	}

	// retainDays 0 keeps everything.
	if err := s.Prune(context.Background(), 0); err != nil {
		t.Fatalf("Prune(0): %v", err)
	}
}
