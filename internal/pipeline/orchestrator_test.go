package pipeline

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
	"uoa-collector/internal/components/browser"
	"uoa-collector/internal/components/browser/browsertest"
	"uoa-collector/internal/components/chrono"
	"uoa-collector/internal/components/staging"
	"uoa-collector/internal/components/telemetry"
	"uoa-collector/internal/runlog"
	"uoa-collector/internal/scrapers/barchart"
	"uoa-collector/internal/uoa"
	"uoa-collector/lib/configutil"

	"github.com/stretchr/testify/require"
)

const (
	username   = "trader@example.com"
	password   = "hunter2"
	stocksURL  = "https://portal.test/options/unusual-activity/stocks"
	etfsURL    = "https://portal.test/options/unusual-activity/etfs"
	indicesURL = "https://portal.test/options/unusual-activity/indices"
)

var runTime = time.Date(2024, 12, 20, 16, 8, 57, 0, time.UTC)

func export(symbol string, rows int) string {
	var b strings.Builder
	b.WriteString("Symbol,Type,Strike,Exp Date,Last,Bid,Ask,Volume\n")
	for i := 0; i < rows; i++ {
		fmt.Fprintf(&b, "%s,Call,%d,12/20/24,1.50,1.45,1.55,%d\n", symbol, 100+i, 500+i)
	}
	b.WriteString("\"Downloaded from Barchart.com as of 12-20-2024 04:08pm CST\"\n")
	return b.String()
}

type fixture struct {
	orchestrator Orchestrator
	launcher     *browsertest.Launcher
	tel          *telemetry.RecordingAPI
	cfg          barchart.Config
}

func newFixture(t *testing.T, exports map[string]browsertest.Export) fixture {
	t.Helper()

	var cfg barchart.Config
	require.NoError(t, configutil.Finalize(&cfg, func(c *barchart.Config) {
		c.LoginURL = "https://portal.test/login"
		c.Sources = []barchart.Source{
			{Name: "Stocks", URL: stocksURL},
			{Name: "ETFs", URL: etfsURL},
			{Name: "Indices", URL: indicesURL},
		}
	}))
	cfg.AuthTimeoutSeconds = 1
	cfg.SettleDelaySeconds = 0
	cfg.PollIntervalMs = 1
	cfg.PollIterations = 5

	launcher := &browsertest.Launcher{Site: browsertest.Site{
		Login: browsertest.LoginForm{
			URL:              cfg.LoginURL,
			EmailSelector:    cfg.Selectors.Email,
			PasswordSelector: cfg.Selectors.Password,
			SubmitSelector:   cfg.Selectors.Submit,
			Username:         username,
			Password:         password,
			RedirectURL:      "https://portal.test/my/watchlist",
		},
		ExportSelector: cfg.Selectors.Export,
		Exports:        exports,
		Overlays:       2,
	}}

	dir := t.TempDir()
	tel := &telemetry.RecordingAPI{}
	return fixture{
		orchestrator: Orchestrator{
			Barchart: cfg,
			Pipeline: Config{
				StagingDir: filepath.Join(dir, "downloads"),
				OutputDir:  filepath.Join(dir, "UOAdataToVisualize"),
				Watermark:  uoa.DefaultWatermark,
			},
			Launcher:    launcher,
			Credentials: barchart.StaticCredentials{Username: username, Password: password},
			Clock:       chrono.Fixed{Time: runTime},
			Tel:         tel,
		},
		launcher: launcher,
		tel:      tel,
		cfg:      cfg,
	}
}

func (f fixture) driver(t *testing.T) *browsertest.Driver {
	t.Helper()
	drivers := f.launcher.Drivers()
	require.Len(t, drivers, 1)
	return drivers[0]
}

func TestRunSkipsTimedOutSource(t *testing.T) {
	f := newFixture(t, map[string]browsertest.Export{
		stocksURL:  {Name: "unusual-stocks.csv", Content: export("AAPL", 10)},
		etfsURL:    {Name: "unusual-etfs.csv", Partial: true},
		indicesURL: {Name: "unusual-indices.csv", Content: export("SPX", 5)},
	})

	report, err := f.orchestrator.Run(context.Background())
	require.NoError(t, err)
	require.Equal(t, RunCompleted, report.Status)
	require.NotEmpty(t, report.RunID)
	require.Equal(t, 15, report.Rows)
	require.Equal(t, filepath.Join(f.orchestrator.Pipeline.OutputDir, "UOA_20241220_160857.csv"), report.Output)

	require.Len(t, report.Sources, 3)
	require.Equal(t, SourceCompleted, report.Sources[0].Status)
	require.Equal(t, 10, report.Sources[0].Rows)
	require.Equal(t, 1, report.Sources[0].Removed)
	require.Equal(t, SourceTimedOut, report.Sources[1].Status)
	require.ErrorIs(t, report.Sources[1].Err, staging.ErrDownloadTimeout)
	require.Equal(t, SourceCompleted, report.Sources[2].Status)
	require.Equal(t, 5, report.Sources[2].Rows)

	skips := f.tel.Find(telemetry.LevelWarning, "ETFs: "+report_orchestrator_source)
	require.Len(t, skips, 1)
	require.ErrorIs(t, skips[0].Err(), staging.ErrDownloadTimeout)

	added := f.tel.Find(telemetry.LevelCount, report_orchestrator_rows_added)
	require.Len(t, added, 2)
	require.Equal(t, "Stocks: "+report_orchestrator_rows_added, added[0].ID)
	require.EqualValues(t, 10, added[0].Count)
	require.EqualValues(t, 5, added[1].Count)

	contents, err := os.ReadFile(report.Output)
	require.NoError(t, err)
	require.NotContains(t, string(contents), uoa.DefaultWatermark)

	ds, err := uoa.ReadCSV(report.Output)
	require.NoError(t, err)
	require.Equal(t, 15, ds.Len())
	require.Equal(t, "AAPL", ds.Rows[0][0])
	require.Equal(t, "SPX", ds.Rows[14][0])

	// staged files are removed once consolidated, the partial download is left alone
	entries, err := os.ReadDir(f.orchestrator.Pipeline.StagingDir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	require.Equal(t, "unusual-etfs.csv.crdownload", entries[0].Name())

	require.Equal(t, 1, f.driver(t).Closes())
}

func TestRunWithoutData(t *testing.T) {
	f := newFixture(t, map[string]browsertest.Export{
		stocksURL: {Name: "unusual-stocks.csv", Partial: true},
	})

	report, err := f.orchestrator.Run(context.Background())
	require.NoError(t, err)
	require.Equal(t, RunEmpty, report.Status)
	require.Empty(t, report.Output)
	require.Len(t, report.Sources, 3)
	for _, source := range report.Sources {
		require.NotEqual(t, SourceCompleted, source.Status)
	}
	require.Len(t, f.tel.FindErr(telemetry.LevelWarning, uoa.ErrEmptyDataset), 1)

	_, err = os.Stat(f.orchestrator.Pipeline.OutputDir)
	require.ErrorIs(t, err, os.ErrNotExist)
	require.Equal(t, 1, f.driver(t).Closes())
}

func TestRunAuthenticationFailure(t *testing.T) {
	f := newFixture(t, map[string]browsertest.Export{
		stocksURL: {Name: "unusual-stocks.csv", Content: export("AAPL", 1)},
	})
	f.orchestrator.Credentials = barchart.StaticCredentials{Username: username, Password: "wrong"}

	report, err := f.orchestrator.Run(context.Background())
	require.ErrorIs(t, err, barchart.ErrAuthenticationTimeout)
	require.Equal(t, RunFailed, report.Status)
	require.Empty(t, report.Sources)

	driver := f.driver(t)
	require.Equal(t, []string{f.cfg.LoginURL}, driver.Navigations())
	require.Equal(t, 1, driver.Closes())

	_, err = os.Stat(f.orchestrator.Pipeline.OutputDir)
	require.ErrorIs(t, err, os.ErrNotExist)
}

type panickyLauncher struct {
	inner *browsertest.Launcher
}

type panickyDriver struct {
	*browsertest.Driver
}

func (p panickyLauncher) Launch(ctx context.Context, opts browser.Options) (browser.Driver, error) {
	driver, err := p.inner.Launch(ctx, opts)
	if err != nil {
		return nil, err
	}
	return panickyDriver{Driver: driver.(*browsertest.Driver)}, nil
}

func (d panickyDriver) Navigate(ctx context.Context, url string) error {
	if url == stocksURL {
		panic("renderer crashed")
	}
	return d.Driver.Navigate(ctx, url)
}

func TestRunRecoversPanics(t *testing.T) {
	f := newFixture(t, map[string]browsertest.Export{})
	f.orchestrator.Launcher = panickyLauncher{inner: f.launcher}

	report, err := f.orchestrator.Run(context.Background())
	require.ErrorIs(t, err, ErrPanic)
	require.Equal(t, RunFailed, report.Status)
	require.Len(t, f.tel.FindErr(telemetry.LevelBroken, ErrPanic), 1)
	require.Equal(t, 1, f.driver(t).Closes())
}

func TestRunCancelled(t *testing.T) {
	f := newFixture(t, map[string]browsertest.Export{})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	report, err := f.orchestrator.Run(ctx)
	require.ErrorIs(t, err, context.Canceled)
	require.Equal(t, RunFailed, report.Status)
	require.Equal(t, 1, f.driver(t).Closes())
}

func TestRunRecordsHistory(t *testing.T) {
	db, err := runlog.Config{File: ":memory:"}.OpenDB()
	require.NoError(t, err)
	defer db.Close()
	store := runlog.NewStore(db)

	f := newFixture(t, map[string]browsertest.Export{
		stocksURL: {Name: "unusual-stocks.csv", Content: export("AAPL", 3)},
		etfsURL:   {Name: "unusual-etfs.csv", Partial: true},
	})
	f.orchestrator.History = &store

	report, err := f.orchestrator.Run(context.Background())
	require.NoError(t, err)

	runs, err := store.Recent(context.Background(), 5)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	require.Equal(t, report.RunID, runs[0].ID)
	require.Equal(t, string(RunCompleted), runs[0].Status)
	require.Equal(t, 3, runs[0].Rows)
	require.Len(t, runs[0].Sources, 3)
	require.Equal(t, string(SourceTimedOut), runs[0].Sources[1].Status)
	require.NotEmpty(t, runs[0].Sources[1].Error)
}
