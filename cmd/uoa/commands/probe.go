package commands

import (
	"fmt"
	"os"
	"strings"
	"uoa-collector/internal/components/telemetry"
	"uoa-collector/internal/scrapers/barchart"
	"uoa-collector/lib/cmdutil"
	"uoa-collector/lib/restyutil"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
)

var probeDumpDir string

func init() {
	probeCmd.Flags().StringVar(&probeDumpDir, "dump", "", "write the raw http exchanges to this directory")
	rootCmd.AddCommand(probeCmd)
}

var probeCmd = &cobra.Command{
	Use:   "probe",
	Short: "Checks over plain http that the login page is reachable and still matches the configured selectors.",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		cfg := loadConfig()

		userAgent := ""
		if len(cfg.Barchart.UserAgents) > 0 {
			userAgent = cfg.Barchart.UserAgents[0]
		}
		prober, err := barchart.NewProber(cfg.Barchart, userAgent, telemetry.SlogAPI{})
		if err != nil {
			cmdutil.Fatal("failed to create prober", err)
		}
		if probeDumpDir != "" {
			dump, err := restyutil.NewDirDump(probeDumpDir)
			if err != nil {
				cmdutil.Fatal("failed to create dump directory", err)
			}
			prober.Capture(dump)
		}
		result, err := prober.Probe(cmd.Context())
		if err != nil {
			cmdutil.Fatal("failed to probe login page", err)
		}

		t := cmdutil.NewTable()
		t.AppendRows([]table.Row{
			{"URL", result.URL},
			{"Status", result.Status},
			{"Blocked", result.Blocked},
			{"Missing selectors", strings.Join(result.Missing, ", ")},
		})
		t.Render()

		if !result.OK() {
			fmt.Fprintln(os.Stderr, "the login page does not look as expected")
			os.Exit(1)
		}
	},
}
