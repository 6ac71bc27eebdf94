package commands

import (
	"log/slog"
	"time"
	"uoa-collector/internal/components/chrono"
	"uoa-collector/internal/uoa"
	"uoa-collector/lib/cmdutil"

	"github.com/spf13/cobra"
)

func init() {
	mergeCmd.Flags().StringVarP(&mergeOutputDir, "output", "o", "", "directory to write the combined file to (defaults to pipeline.output_dir)")
	rootCmd.AddCommand(mergeCmd)
}

var mergeOutputDir string

var mergeCmd = &cobra.Command{
	Use:   "merge <file.csv>...",
	Short: "Concatenates the given csv files into one UOA_Combined_<timestamp>.csv file.",
	Args:  cobra.MinimumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		cfg := loadConfig()
		clock, err := chrono.NewStandardImpl(cfg.Timezone)
		if err != nil {
			cmdutil.Fatal("failed to load timezone", err)
		}

		dir := mergeOutputDir
		if dir == "" {
			dir = cfg.Pipeline.OutputDir
		}
		path, ds, err := uoa.MergeFiles(args, dir, uoa.CombinedPrefix, clock.Now())
		if err != nil {
			cmdutil.Fatal("failed to merge files", err)
		}
		slog.Info("combined files", "files", len(args), "output", path, "rows", ds.Len(), "at", clock.Now().Format(time.DateTime))
	},
}
