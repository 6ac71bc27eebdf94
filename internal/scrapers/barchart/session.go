package barchart

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"
	"uoa-collector/internal/components/assert"
	"uoa-collector/internal/components/browser"
	"uoa-collector/internal/components/chrono"
	"uoa-collector/internal/components/telemetry"

	"go.opentelemetry.io/otel/codes"
)

// ErrAuthenticationTimeout means the login did not complete within the auth timeout.
var ErrAuthenticationTimeout = errors.New("authentication did not complete in time")

// ErrNotAuthenticated is returned when a source is fetched through a session
// that never logged in or was already closed.
var ErrNotAuthenticated = errors.New("session is not authenticated")

const locationPollInterval = 250 * time.Millisecond

// Session is one browser bound to a staging directory. It is not safe for
// concurrent use, sources are fetched one after another.
type Session struct {
	driver      browser.Driver
	cfg         Config
	tel         telemetry.API
	downloadDir string
	userAgent   string

	authenticated bool
	closed        bool
}

func pickUserAgent(pool []string, rnd *rand.Rand) string {
	if len(pool) == 0 {
		return ""
	}
	if rnd == nil {
		return pool[rand.IntN(len(pool))]
	}
	return pool[rnd.IntN(len(pool))]
}

// OpenSession creates `stagingDir` and launches a browser that downloads into it.
// The user agent is drawn from cfg.UserAgents with `rnd`, a nil `rnd` uses the
// global source.
func OpenSession(
	ctx context.Context,
	launcher browser.Launcher,
	cfg Config,
	stagingDir string,
	rnd *rand.Rand,
	tel telemetry.API,
) (*Session, error) {
	assert.NotNil(launcher)
	assert.NotNil(tel)

	dir, err := filepath.Abs(stagingDir)
	if err != nil {
		return nil, err
	}
	err = os.MkdirAll(dir, 0755)
	if err != nil {
		tel.ReportBroken(report_session_open, fmt.Errorf("create staging dir: %w", err), dir)
		return nil, err
	}
	leftovers, err := filepath.Glob(filepath.Join(dir, "*.csv"))
	if err == nil && len(leftovers) > 0 {
		tel.ReportWarning(report_session_open, "staging directory already holds csv files, they may be picked up as downloads", leftovers)
	}

	userAgent := pickUserAgent(cfg.UserAgents, rnd)
	driver, err := launcher.Launch(ctx, browser.Options{
		DownloadDir: dir,
		UserAgent:   userAgent,
		Headless:    cfg.IsHeadless(),
	})
	if err != nil {
		tel.ReportBroken(report_session_open, fmt.Errorf("launch browser: %w", err))
		return nil, fmt.Errorf("launch browser: %w", err)
	}
	tel.ReportDebug(report_session_open, dir, userAgent)

	return &Session{
		driver:      driver,
		cfg:         cfg,
		tel:         tel,
		downloadDir: dir,
		userAgent:   userAgent,
	}, nil
}

func (s *Session) Authenticated() bool {
	return s != nil && s.authenticated && !s.closed
}

func (s *Session) DownloadDir() string {
	return s.downloadDir
}

func (s *Session) UserAgent() string {
	return s.userAgent
}

// removeOverlays is best-effort, ads that survive only get a warning.
func (s *Session) removeOverlays(ctx context.Context) {
	if s.cfg.Selectors.Overlay == "" {
		return
	}
	n, err := s.driver.RemoveElements(ctx, s.cfg.Selectors.Overlay)
	if err != nil {
		s.tel.ReportWarning(report_session_remove_overlay, err)
		return
	}
	if n > 0 {
		s.tel.ReportDebug(report_session_remove_overlay, n)
	}
}

func (s *Session) onLoginPage(location string) bool {
	if location == "" {
		return true
	}
	parsed, err := url.Parse(location)
	if err != nil {
		return true
	}
	return strings.TrimSuffix(parsed.Path, "/") == strings.TrimSuffix(s.cfg.LoginPath, "/")
}

func (s *Session) awaitRedirect(ctx context.Context) error {
	timeout := s.cfg.AuthTimeout()
	waitCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	for {
		location, err := s.driver.Location(waitCtx)
		if err == nil && !s.onLoginPage(location) {
			return nil
		}
		if sleepErr := chrono.Sleep(waitCtx, locationPollInterval); sleepErr != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			if err != nil {
				return fmt.Errorf("read location: %w", err)
			}
			return fmt.Errorf("still on %s after %s", location, timeout)
		}
	}
}

// Authenticate logs in through the login form. Missing credentials are not
// fatal here: empty values are submitted and the failure surfaces as
// ErrAuthenticationTimeout wrapping ErrConfig. The session is left open on
// failure, closing it is the caller's job.
func (s *Session) Authenticate(ctx context.Context, provider CredentialProvider) error {
	if s.closed {
		return fmt.Errorf("authenticate: %w", ErrNotAuthenticated)
	}

	ctx, span := tracer.Start(ctx, "Session.Authenticate")
	defer span.End()

	creds, credErr := provider.Credentials()
	if credErr != nil {
		s.tel.ReportWarning(report_session_authenticate, credErr)
		creds = Credentials{}
	}

	fail := func(err error) error {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if credErr != nil {
			err = fmt.Errorf("%w: %w", err, credErr)
		}
		err = fmt.Errorf("%w: %w", ErrAuthenticationTimeout, err)
		s.tel.ReportBroken(report_session_authenticate, err)
		span.RecordError(err)
		span.SetStatus(codes.Error, "authentication failed")
		return err
	}

	selectors := s.cfg.Selectors
	if err := s.driver.Navigate(ctx, s.cfg.LoginURL); err != nil {
		return fail(fmt.Errorf("navigate to %s: %w", s.cfg.LoginURL, err))
	}
	s.removeOverlays(ctx)

	if err := s.driver.WaitVisible(ctx, selectors.Email, s.cfg.AuthTimeout()); err != nil {
		return fail(fmt.Errorf("login form: %w", err))
	}
	if err := s.driver.Type(ctx, selectors.Email, creds.Username); err != nil {
		return fail(fmt.Errorf("fill email: %w", err))
	}
	if err := s.driver.Type(ctx, selectors.Password, creds.Password); err != nil {
		return fail(fmt.Errorf("fill password: %w", err))
	}
	if err := s.driver.Activate(ctx, selectors.Submit); err != nil {
		return fail(fmt.Errorf("submit: %w", err))
	}
	if err := s.awaitRedirect(ctx); err != nil {
		return fail(err)
	}

	s.authenticated = true
	s.tel.ReportDebug(report_session_authenticate, "logged in")
	return nil
}

// Close quits the browser. It is safe to call more than once and on a nil session.
func (s *Session) Close() error {
	if s == nil || s.closed {
		return nil
	}
	s.closed = true
	s.authenticated = false

	err := s.driver.Close()
	if err != nil {
		s.tel.ReportWarning(report_session_close, err)
	}
	return err
}
