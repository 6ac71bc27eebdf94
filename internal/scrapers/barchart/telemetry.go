package barchart

import "go.opentelemetry.io/otel"

var tracer = otel.Tracer("uoa-collector/internal/scrapers/barchart")

const (
	report_session_open           = "session.open"
	report_session_authenticate   = "session.authenticate"
	report_session_close          = "session.close"
	report_session_remove_overlay = "session.remove-overlay"
	report_fetcher_fetch          = "fetcher.fetch"
	report_prober_probe           = "prober.probe"
)
