package browser

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	cdpbrowser "github.com/chromedp/cdproto/browser"
	"github.com/chromedp/chromedp"
)

// ChromeLauncher launches a local Chrome/Chromium through chromedp.
type ChromeLauncher struct {
	// ExecPath overrides chrome discovery when set.
	ExecPath string
	// ActionTimeout bounds actions that have no explicit timeout of their own.
	ActionTimeout time.Duration
}

func (l ChromeLauncher) Launch(ctx context.Context, opts Options) (Driver, error) {
	allocOpts := append(
		chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", opts.Headless),
		chromedp.DisableGPU,
		chromedp.NoSandbox,
		chromedp.Flag("disable-software-rasterizer", true),
		chromedp.Flag("ignore-certificate-errors", true),
		chromedp.Flag("disable-dev-shm-usage", true),
	)
	if opts.UserAgent != "" {
		allocOpts = append(allocOpts, chromedp.UserAgent(opts.UserAgent))
	}
	if l.ExecPath != "" {
		allocOpts = append(allocOpts, chromedp.ExecPath(l.ExecPath))
	}

	allocCtx, allocCancel := chromedp.NewExecAllocator(ctx, allocOpts...)
	tabCtx, tabCancel := chromedp.NewContext(allocCtx)

	actionTimeout := l.ActionTimeout
	if actionTimeout <= 0 {
		actionTimeout = 15 * time.Second
	}
	d := &chromeDriver{
		tab:           tabCtx,
		actionTimeout: actionTimeout,
		cancel: func() {
			tabCancel()
			allocCancel()
		},
	}

	// the first Run starts the browser process and must use the tab context
	// itself, cancelling a context derived for it would close the browser.
	err := chromedp.Run(tabCtx, cdpbrowser.SetDownloadBehavior(cdpbrowser.SetDownloadBehaviorBehaviorAllow).
		WithDownloadPath(opts.DownloadDir).
		WithEventsEnabled(true),
	)
	if err != nil {
		d.cancel()
		return nil, fmt.Errorf("launch chrome: %w", err)
	}
	return d, nil
}

type chromeDriver struct {
	tab           context.Context
	actionTimeout time.Duration
	cancel        func()
}

// run executes actions on the tab, bounded by timeout (if positive) and by the
// cancellation of the caller's ctx.
func (d *chromeDriver) run(ctx context.Context, timeout time.Duration, actions ...chromedp.Action) error {
	var (
		runCtx context.Context
		cancel context.CancelFunc
	)
	if timeout > 0 {
		runCtx, cancel = context.WithTimeout(d.tab, timeout)
	} else {
		runCtx, cancel = context.WithCancel(d.tab)
	}
	defer cancel()
	stop := context.AfterFunc(ctx, cancel)
	defer stop()

	return chromedp.Run(runCtx, actions...)
}

func jsString(s string) string {
	encoded, _ := json.Marshal(s)
	return string(encoded)
}

func (d *chromeDriver) Navigate(ctx context.Context, url string) error {
	return d.run(ctx, 0, chromedp.Navigate(url))
}

func (d *chromeDriver) RemoveElements(ctx context.Context, selector string) (int, error) {
	script := fmt.Sprintf(`(() => {
	const found = document.querySelectorAll(%s);
	found.forEach((el) => el.remove());
	return found.length;
})()`, jsString(selector))

	var removed int
	err := d.run(ctx, d.actionTimeout, chromedp.Evaluate(script, &removed))
	return removed, err
}

func (d *chromeDriver) WaitVisible(ctx context.Context, selector string, timeout time.Duration) error {
	return d.run(ctx, timeout, chromedp.WaitVisible(selector, chromedp.ByQuery))
}

func (d *chromeDriver) Type(ctx context.Context, selector, text string) error {
	return d.run(ctx, d.actionTimeout, chromedp.SendKeys(selector, text, chromedp.ByQuery))
}

func (d *chromeDriver) Activate(ctx context.Context, selector string) error {
	script := fmt.Sprintf(`(() => {
	const el = document.querySelector(%s);
	if (!el) {
		return false;
	}
	el.click();
	return true;
})()`, jsString(selector))

	var clicked bool
	err := d.run(ctx, d.actionTimeout, chromedp.Evaluate(script, &clicked))
	if err != nil {
		return err
	}
	if !clicked {
		return fmt.Errorf("%w: %s", ErrElementNotFound, selector)
	}
	return nil
}

func (d *chromeDriver) Location(ctx context.Context) (string, error) {
	var location string
	err := d.run(ctx, d.actionTimeout, chromedp.Location(&location))
	return location, err
}

func (d *chromeDriver) Close() error {
	err := chromedp.Cancel(d.tab)
	d.cancel()
	return err
}
