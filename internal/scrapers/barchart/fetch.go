package barchart

import (
	"context"
	"errors"
	"fmt"
	"uoa-collector/internal/components/chrono"
	"uoa-collector/internal/components/staging"
	"uoa-collector/internal/components/telemetry"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Fetcher downloads the export of one source at a time through an
// authenticated session.
type Fetcher struct {
	Config Config
	Clock  chrono.API
	Tel    telemetry.API
}

func (f Fetcher) clock() chrono.API {
	if f.Clock == nil {
		return chrono.StandardImpl{}
	}
	return f.Clock
}

// Fetch navigates to the source, activates its export control and waits for
// the download to land in the session's staging directory, where it is renamed
// to the source's canonical name.
//
// A download that never completes within the poll budget returns
// staging.ErrDownloadTimeout.
func (f Fetcher) Fetch(ctx context.Context, session *Session, source Source) (staging.StagedFile, error) {
	ctx, span := tracer.Start(
		ctx, "Fetcher.Fetch",
		trace.WithAttributes(attribute.String("source", source.Name)),
	)
	defer span.End()

	fail := func(err error) (staging.StagedFile, error) {
		err = fmt.Errorf("fetch %s: %w", source.Name, err)
		if errors.Is(err, staging.ErrDownloadTimeout) {
			f.Tel.ReportWarning(report_fetcher_fetch, err)
		} else {
			f.Tel.ReportBroken(report_fetcher_fetch, err)
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, "fetch failed")
		return staging.StagedFile{}, err
	}

	if !session.Authenticated() {
		return fail(ErrNotAuthenticated)
	}

	task := staging.NewTask(source.Name)
	driver := session.driver
	selector := f.Config.Selectors.Export

	if err := driver.Navigate(ctx, source.URL); err != nil {
		return fail(fmt.Errorf("navigate to %s: %w", source.URL, err))
	}
	if err := chrono.Sleep(ctx, f.Config.SettleDelay()); err != nil {
		return fail(err)
	}
	if err := driver.WaitVisible(ctx, selector, f.Config.ControlTimeout()); err != nil {
		return fail(fmt.Errorf("export control: %w", err))
	}
	if err := driver.Activate(ctx, selector); err != nil {
		return fail(fmt.Errorf("activate export control: %w", err))
	}
	if err := task.Trigger(f.clock().Now()); err != nil {
		return fail(err)
	}

	poller := staging.Poller{
		Dir:        session.DownloadDir(),
		Interval:   f.Config.PollInterval(),
		Iterations: f.Config.PollIterations,
		Exclude:    f.Config.CanonicalNames(),
		Tel:        f.Tel,
	}
	staged, err := poller.Await(ctx, task, staging.CanonicalName(source.Name))
	if err != nil {
		return fail(err)
	}

	f.Tel.ReportDebug(report_fetcher_fetch, source.Name, staged.Path)
	return staged, nil
}
