package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"optionflow/internal/store"
)

func newVerdictsCmd(app *App) *cobra.Command {
	var (
		class string
		limit int
	)

	cmd := &cobra.Command{
		Use:   "verdicts <symbol>",
		Short: "Show stored verdict history for a symbol",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			if app.Store == nil {
				return fmt.Errorf("store unavailable")
			}

			records, err := app.Store.GetVerdicts(cmd.Context(), store.VerdictFilter{
				Symbol: args[0],
				Class:  class,
				Limit:  limit,
			})
			if err != nil {
				return err
			}

			if output.IsJSON() {
				return output.JSON(records)
			}
			if len(records) == 0 {
				output.Dim("No stored verdicts for %s", args[0])
				return nil
			}

			table := NewTable(output, "TIME", "VERDICT", "CONF", "ENTRY", "SPOT", "REGIME", "BIAS")
			for _, rec := range records {
				table.AddRow(
					FormatDateTime(rec.Timestamp),
					output.VerdictText(rec.Class),
					fmt.Sprintf("%d%%", rec.ConfidencePct),
					rec.EntryType,
					fmt.Sprintf("%.2f", rec.SpotPrice),
					output.BiasText(rec.Regime),
					output.BiasText(rec.BiasLabel),
				)
			}
			table.Render()
			return nil
		},
	}

	cmd.Flags().StringVar(&class, "class", "", "filter by verdict class (e.g. STRONG_BUY)")
	cmd.Flags().IntVar(&limit, "limit", 20, "maximum rows to show")
	return cmd
}
