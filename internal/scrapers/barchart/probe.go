package barchart

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"time"
	"uoa-collector/internal/components/telemetry"
	"uoa-collector/lib/restyutil"

	cloudflarebp "github.com/DaRealFreak/cloudflare-bp-go"
	"github.com/PuerkitoBio/goquery"
	"github.com/go-resty/resty/v2"
)

// ProbeResult describes what a plain http client sees on the login page.
type ProbeResult struct {
	URL    string
	Status int
	// Blocked is set when the response looks like a bot challenge instead of the login page.
	Blocked bool
	// Missing lists the login form selectors that matched nothing.
	Missing []string
}

func (r ProbeResult) OK() bool {
	return r.Status == http.StatusOK && !r.Blocked && len(r.Missing) == 0
}

// Prober checks that the portal is reachable and that the login form still
// matches the configured selectors, without starting a browser.
type Prober struct {
	cfg  Config
	http *resty.Client
	tel  telemetry.API
}

func NewProber(cfg Config, userAgent string, tel telemetry.API) (*Prober, error) {
	loginUrl, err := url.Parse(cfg.LoginURL)
	if err != nil {
		return nil, err
	}

	client := resty.New()
	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, err
	}
	client.SetCookieJar(jar)
	client.GetClient().Transport = cloudflarebp.AddCloudFlareByPass(client.GetClient().Transport)
	if userAgent != "" {
		client.SetHeader("user-agent", userAgent)
	}
	client.SetRedirectPolicy(resty.DomainCheckRedirectPolicy(loginUrl.Hostname()))
	client.SetTimeout(30 * time.Second)

	telemetry.InstrumentResty(client, tel)

	return &Prober{cfg: cfg, http: client, tel: tel}, nil
}

// Capture writes every http exchange of the probe to `out`.
func (p *Prober) Capture(out restyutil.Dump) {
	restyutil.Capture(p.http, out, func(err error) {
		p.tel.ReportWarning(report_prober_probe, err)
	})
}

var challengeMarkers = []string{
	"cf-chl",
	"challenge-platform",
	"Just a moment...",
}

func (p *Prober) Probe(ctx context.Context) (ProbeResult, error) {
	ctx, span := tracer.Start(ctx, "Prober.Probe")
	defer span.End()

	result := ProbeResult{URL: p.cfg.LoginURL}
	res, err := p.http.R().
		SetContext(ctx).
		Get(p.cfg.LoginURL)
	if err != nil {
		p.tel.ReportBroken(report_prober_probe, fmt.Errorf("get login page: %w", err))
		return result, err
	}
	result.Status = res.StatusCode()

	body := res.Body()
	for _, marker := range challengeMarkers {
		if bytes.Contains(body, []byte(marker)) {
			result.Blocked = true
			break
		}
	}
	if result.Status == http.StatusForbidden || result.Status == http.StatusServiceUnavailable {
		result.Blocked = true
	}
	if result.Blocked {
		p.tel.ReportWarning(report_prober_probe, "login page is behind a bot challenge", result.Status)
		return result, nil
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		p.tel.ReportBroken(report_prober_probe, fmt.Errorf("parse login page: %w", err))
		return result, err
	}
	selectors := p.cfg.Selectors
	for _, selector := range []string{selectors.Email, selectors.Password, selectors.Submit} {
		if strings.TrimSpace(selector) == "" {
			continue
		}
		if doc.Find(selector).Length() == 0 {
			result.Missing = append(result.Missing, selector)
		}
	}
	if len(result.Missing) > 0 {
		p.tel.ReportWarning(report_prober_probe, "login form selectors matched nothing", result.Missing)
	}
	return result, nil
}
