package commands

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"
	"uoa-collector/internal/components/browser"
	"uoa-collector/internal/components/chrono"
	"uoa-collector/internal/components/telemetry"
	"uoa-collector/internal/config"
	"uoa-collector/internal/pipeline"
	"uoa-collector/internal/runlog"
	"uoa-collector/lib/cmdutil"

	"github.com/spf13/cobra"
)

var (
	configPath string
	verbose    bool
)

var rootCmd = &cobra.Command{
	Use:   "uoa",
	Short: "uoa downloads the unusual options activity listings and consolidates them into one csv file.",
	Args:  cobra.NoArgs,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		telemetry.InitSlog(os.Stderr, verbose)
	},
	Run: func(cmd *cobra.Command, args []string) {
		collect(cmd.Context())
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", config.DefaultFile, "path to the configuration file")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "log debug output")
}

func Execute() {
	ctx := cmdutil.SignalContext()
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func loadConfig() config.Config {
	cfg, err := config.Load(configPath)
	if err != nil {
		cmdutil.Fatal("failed to read config", err)
	}
	return cfg
}

func openHistory(cfg runlog.Config) (*runlog.Store, func()) {
	db, err := cfg.OpenDB()
	if err != nil {
		slog.Warn("run history is unavailable", "err", err)
		return nil, func() {}
	}
	store := runlog.NewStore(db)
	return &store, func() { db.Close() }
}

var setupTelemetry = telemetry.SetupFromEnv

// collect runs the pipeline once. Failures that the pipeline handled are
// logged and the process still exits normally.
func collect(ctx context.Context) {
	if err := runCollect(ctx, loadConfig()); err != nil {
		cmdutil.Fatal("failed to load timezone", err)
	}
}

// runCollect returns only the errors that prevent a run from starting.
// Telemetry is set up only once those checks pass.
func runCollect(ctx context.Context, cfg config.Config) error {
	clock, err := chrono.NewStandardImpl(cfg.Timezone)
	if err != nil {
		return err
	}

	tel, err := setupTelemetry(ctx, "uoa-collector")
	if err != nil {
		slog.Warn("failed to setup telemetry", "err", err)
	}
	defer tel.Shutdown(context.WithoutCancel(ctx))

	history, closeHistory := openHistory(cfg.History)
	defer closeHistory()

	orchestrator := pipeline.Orchestrator{
		Barchart: cfg.Barchart,
		Pipeline: cfg.Pipeline,
		Launcher: browser.ChromeLauncher{
			ExecPath:      cfg.Barchart.ChromePath,
			ActionTimeout: cfg.Barchart.ControlTimeout(),
		},
		Credentials: cfg.CredentialProvider(),
		Clock:       clock,
		History:     history,
		Tel:         telemetry.SlogAPI{},
	}

	slog.Info("starting collection", "at", clock.Now().Format(time.DateTime))
	report, err := orchestrator.Run(ctx)
	if err != nil {
		slog.Error("collection aborted", "run_id", report.RunID, "err", err)
		return nil
	}

	for _, source := range report.Sources {
		if source.Status != pipeline.SourceCompleted {
			slog.Warn("source skipped", "source", source.Source, "status", source.Status, "err", source.Err)
		}
	}
	switch report.Status {
	case pipeline.RunEmpty:
		slog.Warn("no data found to consolidate", "run_id", report.RunID)
	case pipeline.RunCompleted:
		slog.Info(
			"consolidated data",
			"run_id", report.RunID,
			"output", report.Output,
			"rows", report.Rows,
			"took", report.FinishedAt.Sub(report.StartedAt).Round(time.Second).String(),
		)
	}
	return nil
}
