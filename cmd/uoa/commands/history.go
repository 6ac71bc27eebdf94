package commands

import (
	"fmt"
	"time"
	"uoa-collector/internal/runlog"
	"uoa-collector/lib/cmdutil"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
)

var historyLimit int

func init() {
	historyCmd.Flags().IntVarP(&historyLimit, "limit", "n", 10, "how many runs to show")
	rootCmd.AddCommand(historyCmd)
}

func sourceSummary(sources []runlog.SourceRun) string {
	out := ""
	for i, s := range sources {
		if i > 0 {
			out += "\n"
		}
		out += fmt.Sprintf("%s: %s (%d)", s.Source, s.Status, s.Rows)
	}
	return out
}

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Lists the most recent collection runs.",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		cfg := loadConfig()
		db, err := cfg.History.OpenDB()
		if err != nil {
			cmdutil.Fatal("failed to open run history", err)
		}
		defer db.Close()

		runs, err := runlog.NewStore(db).Recent(cmd.Context(), historyLimit)
		if err != nil {
			cmdutil.Fatal("failed to read run history", err)
		}

		t := cmdutil.NewTable()
		t.AppendHeader(table.Row{"Started", "Status", "Rows", "Sources", "Output", "Error"})
		for _, run := range runs {
			t.AppendRow(table.Row{
				run.StartedAt.Local().Format(time.DateTime),
				run.Status,
				run.Rows,
				sourceSummary(run.Sources),
				run.Output,
				run.Error,
			})
		}
		t.Render()
	},
}
