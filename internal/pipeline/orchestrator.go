// Package pipeline runs one collection: log in, fetch every source, strip the
// watermark and consolidate whatever was downloaded into a single csv file.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"os"
	"runtime/debug"
	"uoa-collector/internal/components/assert"
	"uoa-collector/internal/components/browser"
	"uoa-collector/internal/components/chrono"
	"uoa-collector/internal/components/staging"
	"uoa-collector/internal/components/telemetry"
	"uoa-collector/internal/runlog"
	"uoa-collector/internal/scrapers/barchart"
	"uoa-collector/internal/uoa"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

var (
	tracer = otel.Tracer("uoa-collector/internal/pipeline")
	meter  = otel.Meter("uoa-collector/internal/pipeline")
)

// ErrPanic wraps a panic recovered during a run.
var ErrPanic = errors.New("collection run panicked")

const (
	report_orchestrator_run        = "orchestrator.run"
	report_orchestrator_preflight  = "orchestrator.preflight"
	report_orchestrator_source     = "orchestrator.source"
	report_orchestrator_rows_added = "orchestrator.rows-added"
	report_orchestrator_history    = "orchestrator.history"
)

// Orchestrator wires the collection steps together. Launcher, Credentials and
// Tel are required, the rest have usable zero values.
type Orchestrator struct {
	Barchart    barchart.Config
	Pipeline    Config
	Launcher    browser.Launcher
	Credentials barchart.CredentialProvider
	Clock       chrono.API
	// Rand picks the user agent, nil uses the global source.
	Rand *rand.Rand
	// History records every run when set.
	History *runlog.Store
	Tel     telemetry.API
}

func (o Orchestrator) clock() chrono.API {
	if o.Clock == nil {
		return chrono.StandardImpl{}
	}
	return o.Clock
}

// Run performs one collection. Sources that fail are skipped and recorded in
// the report, a run where every source was skipped writes nothing and still
// returns a nil error. Failing to log in aborts the run with an error.
//
// The browser session is always closed exactly once before Run returns.
func (o Orchestrator) Run(ctx context.Context) (report Report, err error) {
	assert.NotNil(o.Launcher)
	assert.NotNil(o.Credentials)
	assert.NotNil(o.Tel)

	report = Report{
		RunID:     uuid.NewString(),
		StartedAt: o.clock().Now(),
	}

	ctx, span := tracer.Start(
		ctx, "Orchestrator.Run",
		trace.WithAttributes(attribute.String("run_id", report.RunID)),
	)
	defer span.End()

	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: %v", ErrPanic, r)
			o.Tel.ReportBroken(report_orchestrator_run, err, string(debug.Stack()))
		}
		report.FinishedAt = o.clock().Now()
		if err != nil {
			report.Status = RunFailed
			report.Err = err
			span.RecordError(err)
			span.SetStatus(codes.Error, "run failed")
		}
		o.record(ctx, report)
	}()

	if o.Pipeline.Preflight {
		o.preflight(ctx)
	}

	session, err := barchart.OpenSession(ctx, o.Launcher, o.Barchart, o.Pipeline.StagingDir, o.Rand, o.Tel)
	if err != nil {
		return report, fmt.Errorf("open session: %w", err)
	}
	defer session.Close()

	err = session.Authenticate(ctx, o.Credentials)
	if err != nil {
		return report, err
	}

	rowsCounter, err := meter.Int64Counter(
		"uoa.rows",
		metric.WithDescription("rows collected per source"),
	)
	if err != nil {
		o.Tel.ReportWarning(report_orchestrator_run, fmt.Errorf("create rows counter: %w", err))
	}

	var consolidator uoa.Consolidator
	for _, source := range o.Barchart.Sources {
		if err := ctx.Err(); err != nil {
			return report, err
		}

		result := o.collect(ctx, session, source, &consolidator)
		report.Sources = append(report.Sources, result)
		if result.Status == SourceCompleted && rowsCounter != nil {
			rowsCounter.Add(ctx, int64(result.Rows), metric.WithAttributes(
				attribute.String("source", source.Name),
			))
		}
	}
	if err := ctx.Err(); err != nil {
		return report, err
	}

	path, ds, err := consolidator.Write(o.Pipeline.OutputDir, uoa.OutputPrefix, o.clock().Now())
	if errors.Is(err, uoa.ErrEmptyDataset) {
		o.Tel.ReportWarning(report_orchestrator_run, err)
		report.Status = RunEmpty
		return report, nil
	}
	if err != nil {
		o.Tel.ReportBroken(report_orchestrator_run, err)
		return report, err
	}

	report.Status = RunCompleted
	report.Output = path
	report.Rows = ds.Len()
	o.Tel.ReportCount(report_orchestrator_run, int64(report.Rows))
	return report, nil
}

// collect fetches, sanitizes and parses one source. The staged file is only
// removed once its rows are in the consolidator.
func (o Orchestrator) collect(
	ctx context.Context,
	session *barchart.Session,
	source barchart.Source,
	consolidator *uoa.Consolidator,
) SourceResult {
	tel := telemetry.NewScopedAPI(source.Name, o.Tel)
	result := SourceResult{Source: source.Name}

	skip := func(status SourceStatus, err error) SourceResult {
		result.Status = status
		result.Err = err
		tel.ReportWarning(report_orchestrator_source, "skipping source", err)
		return result
	}

	fetcher := barchart.Fetcher{Config: o.Barchart, Clock: o.Clock, Tel: tel}
	staged, err := fetcher.Fetch(ctx, session, source)
	if errors.Is(err, staging.ErrDownloadTimeout) {
		return skip(SourceTimedOut, err)
	}
	if err != nil {
		return skip(SourceFailed, err)
	}

	removed, err := uoa.Sanitize(staged.Path, o.Pipeline.watermark())
	if err != nil {
		return skip(SourceFailed, fmt.Errorf("sanitize %s: %w", staged.Path, err))
	}
	result.Removed = removed

	ds, err := uoa.ReadCSV(staged.Path)
	if err != nil {
		return skip(SourceFailed, err)
	}
	consolidator.Add(source.Name, ds)

	err = os.Remove(staged.Path)
	if err != nil {
		tel.ReportWarning(report_orchestrator_source, fmt.Errorf("remove staged file: %w", err))
	}

	result.Status = SourceCompleted
	result.Rows = ds.Len()
	tel.ReportCount(report_orchestrator_rows_added, int64(result.Rows))
	return result
}

func (o Orchestrator) preflight(ctx context.Context) {
	userAgent := ""
	if len(o.Barchart.UserAgents) > 0 {
		userAgent = o.Barchart.UserAgents[0]
	}
	prober, err := barchart.NewProber(o.Barchart, userAgent, o.Tel)
	if err != nil {
		o.Tel.ReportWarning(report_orchestrator_preflight, err)
		return
	}
	result, err := prober.Probe(ctx)
	if err != nil {
		o.Tel.ReportWarning(report_orchestrator_preflight, err)
		return
	}
	if !result.OK() {
		o.Tel.ReportWarning(report_orchestrator_preflight, "login page does not look as expected", result.Status, result.Blocked, result.Missing)
	}
}

func (o Orchestrator) record(ctx context.Context, report Report) {
	if o.History == nil {
		return
	}
	// recorded even when the run was cancelled
	err := o.History.Record(context.WithoutCancel(ctx), report.run())
	if err != nil {
		o.Tel.ReportWarning(report_orchestrator_history, err)
	}
}
