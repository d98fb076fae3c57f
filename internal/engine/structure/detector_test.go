package structure

import (
	"reflect"
	"testing"

	"optionflow/internal/models"
)

func key(strike float64, side models.OptionSide) models.StrikeKey {
	return models.StrikeKey{Strike: strike, Side: side}
}

func findStructure(dets []Detection, s TradeStructure) *Detection {
	for i := range dets {
		if dets[i].Structure == s {
			return &dets[i]
		}
	}
	return nil
}

func TestBullCallSpread(t *testing.T) {
	d := NewDetector()
	deltas := map[models.StrikeKey]int64{
		key(19000, models.SideCall): 5000,
		key(19100, models.SideCall): 4500,
	}

	dets := d.Identify(deltas, 0.5, 19000)
	det := findStructure(dets, BullCallSpread)
	if det == nil {
		t.Fatalf("expected BULL_CALL_SPREAD, got %+v", dets)
	}
	if det.Bias != Bullish || det.Premium != Debit || det.Conviction != High {
		t.Errorf("bull call spread attributes wrong: %+v", det)
	}
	if det.BuyLeg == nil || det.BuyLeg.Strike != 19000 || det.SellLeg == nil || det.SellLeg.Strike != 19100 {
		t.Errorf("legs wrong: buy %+v sell %+v", det.BuyLeg, det.SellLeg)
	}
	// Both legs consumed: no naked detections alongside.
	if len(dets) != 1 {
		t.Errorf("expected single detection, got %d", len(dets))
	}
}

func TestBearPutSpread(t *testing.T) {
	d := NewDetector()
	deltas := map[models.StrikeKey]int64{
		key(18900, models.SidePut): 6000,
		key(18800, models.SidePut): 5000,
	}

	dets := d.Identify(deltas, -0.2, 19000)
	det := findStructure(dets, BearPutSpread)
	if det == nil {
		t.Fatalf("expected BEAR_PUT_SPREAD, got %+v", dets)
	}
	if det.Bias != Bearish || det.BuyLeg.Strike != 18900 || det.SellLeg.Strike != 18800 {
		t.Errorf("bear put spread wrong: %+v", det)
	}
}

func TestNearThresholdPairIsPlainSpread(t *testing.T) {
	d := NewDetector()
	// Similarity 0.403, magnitude ratio 2.48: passes pairing, stays below
	// the ratio-spread cutoff.
	deltas := map[models.StrikeKey]int64{
		key(19000, models.SideCall): 5000,
		key(19200, models.SideCall): 12400,
	}

	dets := d.Identify(deltas, 0.5, 19000)
	if det := findStructure(dets, BullCallSpread); det == nil {
		t.Fatalf("expected BULL_CALL_SPREAD for near-threshold pair, got %+v", dets)
	}
}

func TestCallRatioSpreadClassification(t *testing.T) {
	// White-box: the ratio-spread branch needs magnitudes beyond the pairing
	// similarity gate, so exercise the classifier directly.
	deltas := map[models.StrikeKey]int64{
		key(19000, models.SideCall): 3000,
		key(19200, models.SideCall): 9000,
	}
	p := pair{a: key(19000, models.SideCall), b: key(19200, models.SideCall)}

	det := NewDetector().classifySpread(p, deltas, 19000)
	if det == nil || det.Structure != CallRatioSpread {
		t.Fatalf("expected CALL_RATIO_SPREAD, got %+v", det)
	}
	if det.Premium != Credit {
		t.Errorf("larger upper write leg should read credit, got %v", det.Premium)
	}
	if det.Bias != Bullish || det.Conviction != Medium {
		t.Errorf("ratio spread attributes wrong: %+v", det)
	}
}

func TestStraddleNearATM(t *testing.T) {
	d := NewDetector()
	deltas := map[models.StrikeKey]int64{
		key(19000, models.SideCall): 4000,
		key(19000, models.SidePut):  3800,
	}

	dets := d.Identify(deltas, 0.1, 19000)
	det := findStructure(dets, Straddle)
	if det == nil {
		t.Fatalf("expected STRADDLE, got %+v", dets)
	}
	if det.Bias != Neutral || det.Conviction != High {
		t.Errorf("straddle attributes wrong: %+v", det)
	}
}

func TestStrangleAwayFromATM(t *testing.T) {
	d := NewDetector()
	deltas := map[models.StrikeKey]int64{
		key(19500, models.SideCall): 4000,
		key(18500, models.SidePut):  3800,
	}

	dets := d.Identify(deltas, 0.1, 19000)
	det := findStructure(dets, StrangleBuy)
	if det == nil {
		t.Fatalf("expected STRANGLE_BUY, got %+v", dets)
	}
	if det.Bias != Neutral || det.Conviction != Medium {
		t.Errorf("strangle attributes wrong: %+v", det)
	}
}

func TestNakedPutBuy(t *testing.T) {
	d := NewDetector()
	deltas := map[models.StrikeKey]int64{
		key(18900, models.SidePut): 8000,
	}

	dets := d.Identify(deltas, -1.5, 19000)
	det := findStructure(dets, NakedPutBuy)
	if det == nil {
		t.Fatalf("expected NAKED_PUT_BUY, got %+v", dets)
	}
	if det.Bias != Bearish || det.Premium != Debit {
		t.Errorf("naked put buy attributes wrong: %+v", det)
	}
	if det.Confidence != 0.85 {
		t.Errorf("near-money put confidence = %v, want 0.85", det.Confidence)
	}
}

func TestProtectiveHedgeNotBearish(t *testing.T) {
	d := NewDetector()
	// Far OTM put spike while price rallied: protection, not direction.
	deltas := map[models.StrikeKey]int64{
		key(17800, models.SidePut): 9000,
	}

	dets := d.Identify(deltas, 1.8, 19000)
	det := findStructure(dets, ProtectivePutHedge)
	if det == nil {
		t.Fatalf("expected PROTECTIVE_PUT_HEDGE, got %+v", dets)
	}
	if det.Bias != Neutral || det.Conviction != Low {
		t.Errorf("hedge must read neutral/low, got %+v", det)
	}
}

func TestCallWriting(t *testing.T) {
	d := NewDetector()
	// Rising call OI with price falling: writers selling resistance.
	deltas := map[models.StrikeKey]int64{
		key(19200, models.SideCall): 7000,
	}

	dets := d.Identify(deltas, -0.8, 19000)
	det := findStructure(dets, BearishCallWrite)
	if det == nil {
		t.Fatalf("expected BEARISH_CALL_WRITE, got %+v", dets)
	}
	if det.Bias != Bearish || det.Premium != Credit || det.Conviction != High {
		t.Errorf("call write attributes wrong: %+v", det)
	}
}

func TestPutWriting(t *testing.T) {
	d := NewDetector()
	deltas := map[models.StrikeKey]int64{
		key(18900, models.SidePut): 7000,
	}

	dets := d.Identify(deltas, 0.8, 19000)
	det := findStructure(dets, BullishPutWrite)
	if det == nil {
		t.Fatalf("expected BULLISH_PUT_WRITE, got %+v", dets)
	}
	if det.Bias != Bullish || det.Premium != Credit {
		t.Errorf("put write attributes wrong: %+v", det)
	}
}

func TestSignificanceFloor(t *testing.T) {
	d := NewDetector()
	deltas := map[models.StrikeKey]int64{
		key(19000, models.SideCall): 400, // below floor
		key(19100, models.SideCall): 0,   // exactly zero
		key(19200, models.SidePut):  -300,
	}

	if dets := d.Identify(deltas, 0.5, 19000); len(dets) != 0 {
		t.Errorf("sub-threshold deltas should yield nothing, got %+v", dets)
	}
	if dets := d.Identify(nil, 0.5, 19000); len(dets) != 0 {
		t.Errorf("empty deltas should yield nothing, got %+v", dets)
	}
}

func TestDissimilarMagnitudesNotPaired(t *testing.T) {
	d := NewDetector()
	// Same side, same direction, but 10x apart: two independent bets.
	deltas := map[models.StrikeKey]int64{
		key(19000, models.SideCall): 10000,
		key(19100, models.SideCall): 900,
	}

	dets := d.Identify(deltas, 0.5, 19000)
	if findStructure(dets, BullCallSpread) != nil {
		t.Fatalf("dissimilar legs must not pair: %+v", dets)
	}
	if findStructure(dets, NakedCallBuy) == nil {
		t.Errorf("expected naked call detections, got %+v", dets)
	}
}

func TestIdentifyDeterministic(t *testing.T) {
	d := NewDetector()
	deltas := map[models.StrikeKey]int64{
		key(19000, models.SideCall): 5000,
		key(19100, models.SideCall): 4500,
		key(18800, models.SidePut):  8000,
		key(18600, models.SidePut):  700,
	}

	first := d.Identify(deltas, -0.5, 19000)
	second := d.Identify(deltas, -0.5, 19000)
	if !reflect.DeepEqual(first, second) {
		t.Errorf("identical inputs produced different detections:\n%+v\n%+v", first, second)
	}
}

func TestConfigurableThresholds(t *testing.T) {
	// A 4000-contract move clears the stock floor but not a raised one.
	deltas := map[models.StrikeKey]int64{
		key(19100, models.SideCall): 4000,
	}

	stock := NewDetector()
	if dets := stock.Identify(deltas, 0.5, 19000); len(dets) != 1 {
		t.Fatalf("stock floor should classify the move, got %+v", dets)
	}

	strict := NewDetectorWithConfig(Config{SignificanceFloor: 5000})
	if dets := strict.Identify(deltas, 0.5, 19000); len(dets) != 0 {
		t.Errorf("raised floor should suppress the move, got %+v", dets)
	}
}

func TestZeroConfigFallsBackToDefaults(t *testing.T) {
	d := NewDetectorWithConfig(Config{})
	if d.cfg != DefaultConfig() {
		t.Errorf("zero config resolved to %+v, want defaults", d.cfg)
	}
}
