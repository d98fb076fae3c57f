package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"optionflow/internal/engine/bias"
	"optionflow/internal/engine/exposure"
	"optionflow/internal/engine/pricing"
	"optionflow/internal/engine/structure"
	"optionflow/internal/engine/velocity"
	"optionflow/internal/engine/verdict"
	"optionflow/internal/feed"
	"optionflow/internal/scanner"
	"optionflow/pkg/utils"
)

func newScanCmd(app *App) *cobra.Command {
	var (
		watch    bool
		momentum float64
		ivRank   float64
		vix      float64
		fiiNet   float64
		diiNet   float64
		atrPct   float64
		rsi      float64
		flowNet  float64
		vwap     string
	)

	cmd := &cobra.Command{
		Use:   "scan [symbols...]",
		Short: "Run scan cycles and print verdicts",
		Long: `Scan runs the full signal pipeline for each symbol: price the chain,
aggregate dealer exposures, track OI velocity, detect position structures
and synthesize a verdict. Without --watch it runs one cycle per symbol.

Technical readings the chain cannot supply (momentum, IV rank, ATR, RSI,
VWAP position) and macro flows are passed as flags.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)

			symbols := args
			if len(symbols) == 0 {
				symbols = app.Config.Scan.Symbols
			}
			if app.Config.Scan.DataDir == "" {
				return fmt.Errorf("no data directory configured; set scan.data_dir or OPTIONFLOW_DATA_DIR")
			}

			if !output.IsJSON() {
				status := utils.GetMarketStatus()
				line := fmt.Sprintf("Market: %s", status)
				if status == utils.MarketOpen {
					line += fmt.Sprintf("  (closes in %s)", FormatDuration(utils.TimeUntilMarketClose()))
				}
				output.Dim("%s", line)
			}

			source := feed.NewCSVSource(app.Config.Scan.DataDir)
			registry := velocity.NewRegistry(app.Config.Engine.VelocityCapacity)
			opts := []scanner.Option{
				scanner.WithPricer(pricing.NewEngine(app.Config.Engine.RiskFreeRate)),
				scanner.WithAggregator(exposure.NewAggregatorWithLot(app.Config.Engine.DefaultLotSize)),
				scanner.WithDetector(structure.NewDetectorWithConfig(structure.Config{
					SignificanceFloor:    app.Config.Engine.SignificanceFloor,
					SimilarityRatio:      app.Config.Engine.SimilarityRatio,
					RatioSpreadThreshold: app.Config.Engine.RatioSpreadThreshold,
				})),
				scanner.WithBiasEngine(bias.NewEngineWithConvention(bias.Weights{
					Macro:       app.Config.Bias.MacroWeight,
					GEX:         app.Config.Bias.GEXWeight,
					PCRVelocity: app.Config.Bias.PCRVelocityWeight,
					VIXAdjust:   app.Config.Bias.VIXWeight,
				}, app.Config.Bias.GEXBullishWhenNegative)),
			}
			if app.Store != nil {
				opts = append(opts, scanner.WithRecorder(app.Store))
			}
			sc := scanner.New(source, registry, app.Logger, opts...)

			macro := scanner.MacroInputs{
				FIINetCr:      fiiNet,
				DIINetCr:      diiNet,
				VIX:           vix,
				MomentumScore: momentum,
				IVRank:        ivRank,
				ATRPct:        atrPct,
				RSI:           rsi,
				FlowNetChange: flowNet,
				VWAPPosition:  verdict.VWAPPosition(vwap),
			}

			if watch {
				return sc.Run(cmd.Context(), symbols, app.Config.Scan.Interval,
					func(string) scanner.MacroInputs { return macro })
			}

			for _, symbol := range symbols {
				res, err := sc.Scan(cmd.Context(), symbol, macro)
				if err != nil {
					output.Error("Scan %s failed: %v", symbol, err)
					continue
				}
				if output.IsJSON() {
					if err := output.JSON(res); err != nil {
						return err
					}
					continue
				}
				renderScan(output, res)
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&watch, "watch", false, "keep scanning on the configured interval")
	cmd.Flags().Float64Var(&momentum, "momentum", 0, "composite momentum score 0-100")
	cmd.Flags().Float64Var(&ivRank, "iv-rank", 0, "IV percentile 0-100")
	cmd.Flags().Float64Var(&vix, "vix", 0, "India VIX level")
	cmd.Flags().Float64Var(&fiiNet, "fii", 0, "FII net flow in Crore")
	cmd.Flags().Float64Var(&diiNet, "dii", 0, "DII net flow in Crore")
	cmd.Flags().Float64Var(&atrPct, "atr", 0, "ATR as percent of price")
	cmd.Flags().Float64Var(&rsi, "rsi", 0, "14-period RSI")
	cmd.Flags().Float64Var(&flowNet, "flow", 0, "institutional net position change in contracts")
	cmd.Flags().StringVar(&vwap, "vwap", "", "price position vs VWAP: ABOVE or BELOW")

	return cmd
}

func renderScan(output *Output, res *scanner.Result) {
	v := res.Verdict

	output.Println()
	output.Bold("%s  %s", res.Symbol, FormatDateTime(res.ScannedAt))
	output.Printf("  Spot: %.2f   PCR: %s   Max Pain: %s   Regime: %s\n",
		res.Snapshot.SpotPrice, FormatPCR(res.Stats.PCROI),
		FormatStrike(res.Stats.MaxPain), output.BiasText(string(res.Regime)))
	output.Printf("  GEX: %s   DEX: %s   Flip: %s   Bias: %s (%.2f)\n",
		output.Signed(res.Exposure.GEX, FormatCompact(res.Exposure.GEX)),
		FormatCompact(res.Exposure.DEX),
		FormatStrike(res.Exposure.FlipStrike),
		output.BiasText(string(res.Bias.Label)), res.Bias.FinalScore)

	if len(res.Detections) > 0 {
		output.Println()
		output.Bold("  Detected structures")
		for _, det := range res.Detections {
			output.Printf("    %s [%s/%s, %.0f%%] %s\n",
				det.Structure, output.BiasText(string(det.Bias)), det.Conviction,
				det.Confidence*100, output.DimText(det.Rationale))
		}
	}

	output.Println()
	output.Printf("  Verdict: %s  (%d%% confidence, %s)\n",
		output.VerdictText(string(v.Class)), v.ConfidencePct, v.HoldingPeriod)
	output.Printf("  Entry: %s", v.EntryType)
	if v.EntryStrike > 0 {
		output.Printf(" @ %s", FormatStrike(v.EntryStrike))
	}
	output.Println()
	if v.TargetMovePct > 0 {
		output.Printf("  Target: %s   Stop: %.2f   Risk: %s\n",
			FormatPercent(v.TargetMovePct), v.StopLoss, v.RiskLevel)
	}
	for _, reason := range v.KeyReasons {
		output.Printf("    + %s\n", reason)
	}
	for _, flag := range v.RedFlags {
		output.Warning("    ! %s", flag)
	}
}
