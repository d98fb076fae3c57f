package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"optionflow/internal/analysis"
	"optionflow/internal/engine/exposure"
	"optionflow/internal/engine/pricing"
	"optionflow/internal/feed"
)

func newChainCmd(app *App) *cobra.Command {
	var full bool

	cmd := &cobra.Command{
		Use:   "chain <symbol>",
		Short: "Show the priced option chain with Greeks and walls",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			symbol := args[0]

			if app.Config.Scan.DataDir == "" {
				return fmt.Errorf("no data directory configured; set scan.data_dir or OPTIONFLOW_DATA_DIR")
			}

			source := feed.NewCSVSource(app.Config.Scan.DataDir)
			snap, err := source.Load(cmd.Context(), symbol)
			if err != nil {
				return err
			}

			pricer := pricing.NewEngine(app.Config.Engine.RiskFreeRate)
			priced := pricer.PriceChain(snap)
			stats := analysis.Analyze(priced)
			exp := exposure.NewAggregator().Calculate(priced, snap.SpotPrice)

			if output.IsJSON() {
				return output.JSON(map[string]interface{}{
					"snapshot": snap,
					"stats":    stats,
					"exposure": exp,
				})
			}

			output.Println()
			output.Bold("%s  Spot %.2f  Futures %.2f  DTE %.1f", symbol,
				snap.SpotPrice, snap.FuturesPrice, snap.DaysToExpiry)
			output.Printf("  PCR (OI): %s   PCR (Vol): %s\n",
				FormatPCR(stats.PCROI), FormatPCR(stats.PCRVolume))
			output.Printf("  Call Wall: %s   Put Wall: %s   Max Pain: %s\n",
				FormatStrike(stats.CallWall), FormatStrike(stats.PutWall),
				FormatStrike(stats.MaxPain))
			output.Printf("  GEX: %s   DEX: %s   VEX: %s   Flip: %s\n",
				output.Signed(exp.GEX, FormatCompact(exp.GEX)),
				FormatCompact(exp.DEX), FormatCompact(exp.VEX),
				FormatStrike(exp.FlipStrike))
			output.Println()

			atm := snap.ATMStrike()
			table := NewTable(output,
				"CALL OI", "CALL IV", "CALL LTP", "STRIKE", "PUT LTP", "PUT IV", "PUT OI")
			for _, row := range priced {
				if !full && atm > 0 {
					// Default view: 5% band around ATM.
					dist := (row.Strike - atm) / atm
					if dist > 0.05 || dist < -0.05 {
						continue
					}
				}

				callOI, callIV, callLTP := "-", "-", "-"
				if c := row.Call; c != nil {
					callOI = FormatOI(c.OI)
					callIV = FormatIV(c.IV)
					callLTP = fmt.Sprintf("%.2f", c.LTP)
				}
				putOI, putIV, putLTP := "-", "-", "-"
				if p := row.Put; p != nil {
					putOI = FormatOI(p.OI)
					putIV = FormatIV(p.IV)
					putLTP = fmt.Sprintf("%.2f", p.LTP)
				}

				strike := FormatStrike(row.Strike)
				if row.Strike == atm {
					strike = output.BoldText(strike + " *")
				}
				table.AddRow(callOI, callIV, callLTP, strike, putLTP, putIV, putOI)
			}
			table.Render()
			output.Dim("  * ATM strike")

			return nil
		},
	}

	cmd.Flags().BoolVar(&full, "full", false, "show every strike instead of the ATM band")
	return cmd
}
