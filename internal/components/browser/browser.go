// Package browser wraps a browser-automation engine behind the handful of
// operations the scrapers need, so that scrapers can be tested against a fake.
package browser

import (
	"context"
	"errors"
	"time"
)

// ErrElementNotFound is returned when a selector matches nothing.
var ErrElementNotFound = errors.New("browser: element not found")

// Options configure a launched browser.
type Options struct {
	// DownloadDir is where the browser deposits downloads, it must be absolute.
	DownloadDir string
	UserAgent   string
	Headless    bool
}

// Driver is one live browser tab. Selectors are CSS selectors.
//
// note: fault injection point
type Driver interface {
	Navigate(ctx context.Context, url string) error
	// RemoveElements detaches every element matching selector from the DOM and
	// returns how many were removed.
	RemoveElements(ctx context.Context, selector string) (int, error)
	// WaitVisible blocks until an element matching selector is visible or
	// timeout elapses.
	WaitVisible(ctx context.Context, selector string, timeout time.Duration) error
	// Type focuses the element and types text into it.
	Type(ctx context.Context, selector, text string) error
	// Activate calls element.click() from script instead of dispatching a
	// pointer event, overlays cannot intercept it.
	Activate(ctx context.Context, selector string) error
	// Location returns the current URL of the tab.
	Location(ctx context.Context) (string, error)
	Close() error
}

// Launcher starts browsers.
type Launcher interface {
	Launch(ctx context.Context, opts Options) (Driver, error)
}
