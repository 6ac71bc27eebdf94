package commands

import (
	"fmt"
	"uoa-collector/internal/uoa"
	"uoa-collector/lib/cmdutil"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"
)

var (
	summaryMin     string
	summarySymbols []string
	summaryType    string
)

func init() {
	summaryCmd.Flags().StringVar(&summaryMin, "min", uoa.DefaultPremiumThreshold.String(), "only count trades whose premium is above this")
	summaryCmd.Flags().StringSliceVar(&summarySymbols, "symbol", nil, "only include these symbols")
	summaryCmd.Flags().StringVar(&summaryType, "type", "", "only include Call or Put contracts")
	rootCmd.AddCommand(summaryCmd)
}

var summaryCmd = &cobra.Command{
	Use:   "summary <file.csv>",
	Short: "Prints the total premium (last x 100 x volume) per symbol of a consolidated file.",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		threshold, err := decimal.NewFromString(summaryMin)
		if err != nil {
			cmdutil.Fatal("invalid --min", err)
		}
		ds, err := uoa.ReadCSV(args[0])
		if err != nil {
			cmdutil.Fatal("failed to read file", err)
		}

		premiums, skipped, err := uoa.PremiumBySymbol(ds, uoa.PremiumQuery{
			Min:     threshold,
			Symbols: summarySymbols,
			Type:    summaryType,
		})
		if err != nil {
			cmdutil.Fatal("failed to summarize", err)
		}

		t := cmdutil.NewTable()
		t.AppendHeader(table.Row{"Symbol", "Premium", "Trades"})
		total := decimal.Zero
		for _, p := range premiums {
			t.AppendRow(table.Row{p.Symbol, p.Premium.StringFixed(2), p.Trades})
			total = total.Add(p.Premium)
		}
		t.AppendFooter(table.Row{"Total", total.StringFixed(2), ""})
		t.SetColumnConfigs([]table.ColumnConfig{
			{Number: 2, Align: text.AlignRight, AlignFooter: text.AlignRight},
			{Number: 3, Align: text.AlignRight},
		})
		t.Render()

		if skipped > 0 {
			fmt.Printf("%d rows skipped because their last price or volume is not a number\n", skipped)
		}
	},
}
