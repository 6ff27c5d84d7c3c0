// Package browser owns the single automated browser session of a crawl.
package browser

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/RamiroDLO/HSLU-CIP-FS2025-206/config"
	"github.com/RamiroDLO/HSLU-CIP-FS2025-206/models"
	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/launcher/flags"
	"github.com/go-rod/rod/lib/proto"
	"github.com/go-rod/stealth"
	"github.com/ysmood/gson"
)

// ErrAlreadyStarted is returned by Start when a session is already open.
var ErrAlreadyStarted = errors.New("browser session already started")

// ErrNotStarted is returned by page operations before Start.
var ErrNotStarted = errors.New("browser session not started")

// Controller manages one browser process and one tab. It does no scraping.
// It is not safe for concurrent page operations; Stop may be called from any goroutine.
type Controller struct {
	cfg    config.BrowserConfig
	signal *Signal

	mu       sync.Mutex
	launcher *launcher.Launcher
	browser  *rod.Browser
	page     *rod.Page
	router   *rod.HijackRouter
}

// New creates a Controller. Manual challenge resolution waits on signal.
func New(cfg config.BrowserConfig, signal *Signal) *Controller {
	if signal == nil {
		signal = NewSignal()
	}
	return &Controller{cfg: cfg, signal: signal}
}

// Signal returns the resolution signal AwaitManualResolution blocks on.
func (c *Controller) Signal() *Signal { return c.signal }

// Start launches Chromium with fingerprint-reducing flags and opens one tab.
// A second Start without Stop returns ErrAlreadyStarted.
func (c *Controller) Start(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.launcher != nil || c.browser != nil {
		return ErrAlreadyStarted
	}

	l := launcher.New().
		Context(ctx).
		Headless(c.cfg.Headless).
		NoSandbox(c.cfg.NoSandbox)

	if c.cfg.BrowserBin != "" {
		l = l.Bin(c.cfg.BrowserBin)
	}
	if c.cfg.Proxy != "" {
		l = l.Proxy(c.cfg.Proxy)
	}

	// ── Stealth flags ────────────────────────────────────────────────
	l.Set(flags.Flag("disable-blink-features"), "AutomationControlled")
	l.Delete(flags.Flag("enable-automation"))
	l.Set(flags.Flag("disable-features"), "TranslateUI")
	l.Set(flags.Flag("disable-popup-blocking"))
	l.Set(flags.Flag("disable-dev-shm-usage"))
	l.Set(flags.Flag("disable-extensions"))
	l.Set(flags.Flag("no-first-run"))
	l.Set(flags.Flag("window-size"), "1366,900")
	if c.cfg.UserAgent != "" {
		l.Set(flags.Flag("user-agent"), c.cfg.UserAgent)
	}

	controlURL, err := l.Launch()
	if err != nil {
		// Cleanup would block on a process that never started.
		if l.PID() != 0 {
			l.Kill()
		}
		return models.NewLaunchError("failed to launch browser", err)
	}
	c.launcher = l
	slog.Info("browser: launched", "controlURL", controlURL, "headless", c.cfg.Headless)

	browser := rod.New().ControlURL(controlURL)
	if err := browser.Connect(); err != nil {
		c.releaseLocked()
		return models.NewLaunchError("failed to connect to browser", err)
	}
	c.browser = browser

	page, err := browser.Page(proto.TargetCreateTarget{})
	if err != nil {
		c.releaseLocked()
		return models.NewLaunchError("failed to open tab", err)
	}
	c.page = page

	if _, err := page.EvalOnNewDocument(stealth.JS); err != nil {
		slog.Warn("browser: stealth injection failed, proceeding without stealth", "error", err)
	}
	_ = proto.NetworkSetExtraHTTPHeaders{
		Headers: toHeadersMap(map[string]string{
			"Accept-Language": "de-CH,de;q=0.9,en;q=0.8",
		}),
	}.Call(page)

	c.router = setupHijack(page, c.cfg.BlockedResourceTypes, c.cfg.BlockTrackers)
	return nil
}

// Navigate loads url and waits until the document is loaded and the DOM settles.
func (c *Controller) Navigate(ctx context.Context, url string) error {
	page, err := c.current()
	if err != nil {
		return models.NewNavigationError("navigate", err)
	}
	navCtx, cancel := context.WithTimeout(ctx, c.cfg.NavigationTimeout)
	defer cancel()

	p := page.Context(navCtx)
	if err := p.Navigate(url); err != nil {
		return categorizeError(err, "navigation to "+url+" failed")
	}
	if err := p.WaitLoad(); err != nil {
		return categorizeError(err, "page load did not complete")
	}
	if err := p.WaitDOMStable(300*time.Millisecond, 0.1); err != nil {
		slog.Debug("browser: WaitDOMStable did not converge, proceeding with current DOM", "error", err)
	}
	return nil
}

// HTML returns the current rendered document.
func (c *Controller) HTML(ctx context.Context) (string, error) {
	page, err := c.current()
	if err != nil {
		return "", err
	}
	p := page.Context(ctx)
	html, err := p.HTML()
	if err != nil {
		return "", categorizeError(err, "failed to read page HTML")
	}
	return html, nil
}

// DetectChallenge is a point-in-time check of the current page for bot
// verification markers. Read failures count as "no challenge".
func (c *Controller) DetectChallenge(ctx context.Context) bool {
	html, err := c.HTML(ctx)
	if err != nil {
		slog.Debug("browser: challenge check could not read page", "error", err)
		return false
	}
	return IsChallenge(html)
}

// AwaitManualResolution blocks until the operator signals that the challenge
// in the browser window is solved. There is no timeout; only ctx ends the wait.
func (c *Controller) AwaitManualResolution(ctx context.Context) error {
	slog.Warn("browser: bot challenge detected, solve it in the browser window and signal to continue")
	if err := c.signal.Await(ctx); err != nil {
		return err
	}
	slog.Info("browser: manual resolution received")
	if page, err := c.current(); err == nil {
		p := page.Context(ctx)
		_ = p.WaitDOMStable(300*time.Millisecond, 0.1)
	}
	return nil
}

// Click clicks the first element matching selector. It reports false
// without error when nothing matches.
func (c *Controller) Click(ctx context.Context, selector string) (bool, error) {
	page, err := c.current()
	if err != nil {
		return false, err
	}
	return clickIfPresent(ctx, page, selector)
}

// ScrollToBottom jumps to the end of the document.
func (c *Controller) ScrollToBottom(ctx context.Context) error {
	page, err := c.current()
	if err != nil {
		return err
	}
	return scrollToBottom(ctx, page)
}

// LoadListings scrolls through the page in steps so lazy cards render.
func (c *Controller) LoadListings(ctx context.Context) error {
	page, err := c.current()
	if err != nil {
		return err
	}
	return scrollSteps(ctx, page, lazyLoadSteps)
}

// WaitSettled waits, bounded by the navigation timeout, for the DOM to stop changing.
func (c *Controller) WaitSettled(ctx context.Context) error {
	page, err := c.current()
	if err != nil {
		return err
	}
	waitCtx, cancel := context.WithTimeout(ctx, c.cfg.NavigationTimeout)
	defer cancel()
	p := page.Context(waitCtx)
	if err := p.WaitDOMStable(300*time.Millisecond, 0.1); err != nil {
		return categorizeError(err, "page did not settle")
	}
	return nil
}

// RemoveOverlays strips fixed-position consent and popup layers.
func (c *Controller) RemoveOverlays(ctx context.Context) {
	if page, err := c.current(); err == nil {
		removeOverlays(page.Context(ctx))
	}
}

// Stop releases the tab, the browser and the launcher process. It is safe to
// call after a failed Start, twice, or from a signal handler.
func (c *Controller) Stop() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.releaseLocked()
	return nil
}

func (c *Controller) releaseLocked() {
	if c.router != nil {
		_ = c.router.Stop()
		c.router = nil
	}
	if c.page != nil {
		_ = c.page.Close()
		c.page = nil
	}
	if c.browser != nil {
		if err := c.browser.Close(); err != nil {
			slog.Debug("browser: close failed, killing process", "error", err)
		}
		c.browser = nil
	}
	if c.launcher != nil {
		c.launcher.Kill()
		c.launcher.Cleanup()
		c.launcher = nil
		slog.Info("browser: stopped")
	}
}

func (c *Controller) current() (*rod.Page, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.page == nil {
		return nil, ErrNotStarted
	}
	return c.page, nil
}

// toHeadersMap converts a plain string map to the proto.NetworkHeaders type
// (map[string]gson.JSON) required by NetworkSetExtraHTTPHeaders.
func toHeadersMap(headers map[string]string) proto.NetworkHeaders {
	m := make(proto.NetworkHeaders, len(headers))
	for k, v := range headers {
		m[k] = gson.New(v)
	}
	return m
}

// categorizeError wraps raw rod errors into navigation CrawlErrors.
func categorizeError(err error, msg string) *models.CrawlError {
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return models.NewNavigationError(msg+": timeout", err)
	case errors.Is(err, context.Canceled):
		return models.NewNavigationError("canceled", err)
	default:
		return models.NewNavigationError(msg, err)
	}
}
