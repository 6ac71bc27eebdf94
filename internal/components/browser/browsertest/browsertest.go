// Package browsertest provides an in-memory browser.Launcher that simulates a
// login form and export links which deposit files into the download directory.
package browsertest

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
	"uoa-collector/internal/components/browser"
)

// ErrTimeout is returned by WaitVisible when the element never shows up.
var ErrTimeout = errors.New("browsertest: wait timed out")

// LoginForm describes the fake login page.
type LoginForm struct {
	URL              string
	EmailSelector    string
	PasswordSelector string
	SubmitSelector   string
	Username         string
	Password         string
	// RedirectURL is where a successful submit lands.
	RedirectURL string
}

// Export describes what clicking the export control on a page downloads.
type Export struct {
	Name    string
	Content string
	// Partial leaves only an in-progress `<Name>.crdownload` behind, the
	// download never completes.
	Partial bool
}

// Site is the behavior shared by every driver of a Launcher.
type Site struct {
	Login          LoginForm
	ExportSelector string
	// Exports is keyed by page URL, pages without an entry never download anything.
	Exports map[string]Export
	// Overlays is how many elements RemoveElements reports on each call.
	Overlays   int
	OverlayErr error
}

// Launcher is a browser.Launcher backed by Site.
type Launcher struct {
	Site      Site
	LaunchErr error

	mu      sync.Mutex
	drivers []*Driver
}

func (l *Launcher) Launch(_ context.Context, opts browser.Options) (browser.Driver, error) {
	if l.LaunchErr != nil {
		return nil, l.LaunchErr
	}
	d := &Driver{site: l.Site, opts: opts, typed: map[string]string{}}
	l.mu.Lock()
	l.drivers = append(l.drivers, d)
	l.mu.Unlock()
	return d, nil
}

// Drivers returns every driver launched so far.
func (l *Launcher) Drivers() []*Driver {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]*Driver, len(l.drivers))
	copy(out, l.drivers)
	return out
}

// Driver is a fake browser tab.
type Driver struct {
	site Site
	opts browser.Options

	mu          sync.Mutex
	location    string
	typed       map[string]string
	navigations []string
	activations []string
	closes      int
}

func (d *Driver) Options() browser.Options {
	return d.opts
}

func (d *Driver) Navigate(ctx context.Context, url string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	d.location = url
	d.navigations = append(d.navigations, url)
	return nil
}

func (d *Driver) RemoveElements(_ context.Context, _ string) (int, error) {
	if d.site.OverlayErr != nil {
		return 0, d.site.OverlayErr
	}
	return d.site.Overlays, nil
}

func (d *Driver) visible(selector string) bool {
	login := d.site.Login
	if d.location == login.URL {
		switch selector {
		case login.EmailSelector, login.PasswordSelector, login.SubmitSelector:
			return true
		}
	}
	if selector == d.site.ExportSelector {
		_, ok := d.site.Exports[d.location]
		return ok
	}
	return false
}

func (d *Driver) WaitVisible(ctx context.Context, selector string, _ time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.visible(selector) {
		return fmt.Errorf("%w: %s", ErrTimeout, selector)
	}
	return nil
}

func (d *Driver) Type(_ context.Context, selector, text string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.visible(selector) {
		return fmt.Errorf("%w: %s", browser.ErrElementNotFound, selector)
	}
	d.typed[selector] += text
	return nil
}

func (d *Driver) Activate(_ context.Context, selector string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.visible(selector) {
		return fmt.Errorf("%w: %s", browser.ErrElementNotFound, selector)
	}
	d.activations = append(d.activations, selector)

	login := d.site.Login
	if selector == login.SubmitSelector {
		if d.typed[login.EmailSelector] == login.Username &&
			d.typed[login.PasswordSelector] == login.Password &&
			login.Username != "" {
			d.location = login.RedirectURL
		}
		return nil
	}

	export := d.site.Exports[d.location]
	name := export.Name
	if export.Partial {
		name += ".crdownload"
	}
	return os.WriteFile(filepath.Join(d.opts.DownloadDir, name), []byte(export.Content), 0644)
}

func (d *Driver) Location(_ context.Context) (string, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.location, nil
}

func (d *Driver) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.closes++
	return nil
}

// Closes is how many times Close was called.
func (d *Driver) Closes() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.closes
}

// Navigations lists every URL navigated to, in order.
func (d *Driver) Navigations() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]string, len(d.navigations))
	copy(out, d.navigations)
	return out
}

// Activations lists every selector activated, in order.
func (d *Driver) Activations() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]string, len(d.activations))
	copy(out, d.activations)
	return out
}
