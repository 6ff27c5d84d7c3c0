// Package navigator advances a result list page by page and recognises its end.
package navigator

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/RamiroDLO/HSLU-CIP-FS2025-206/models"
	"github.com/RamiroDLO/HSLU-CIP-FS2025-206/simhash"
)

// Page is the subset of the browser session the navigator drives.
type Page interface {
	HTML(ctx context.Context) (string, error)
	Click(ctx context.Context, selector string) (bool, error)
	ScrollToBottom(ctx context.Context) error
	WaitSettled(ctx context.Context) error
}

// overlayRemover is implemented by sessions that can strip overlays by script.
type overlayRemover interface {
	RemoveOverlays(ctx context.Context)
}

// NextSelectors is the next-page control cascade, most specific first.
var NextSelectors = []string{
	`button[aria-label="next page"]`,
	`[data-testid="pagination-next"]`,
	`button[aria-label*="next"]`,
	`button[aria-label*="Next"]`,
	`.pagination button:last-child`,
}

const (
	consentAccept    = "#onetrust-accept-btn-handler"
	consentContainer = "#onetrust-consent-sdk"
	listingLinks     = `a[href*="/de/d/"]`

	// settleAttempts bounds how often Advance re-reads the page waiting for new listings.
	settleAttempts = 3
)

// Navigator is used by one crawl loop only.
type Navigator struct {
	page     Page
	maxPages int

	consentHandled bool
	end            models.StopReason

	// Set between a next-page click and the render it triggers. A retried
	// Advance from the same page only re-verifies against baseline.
	pending  bool
	from     int
	baseline uint64
}

// New creates a Navigator. maxPages of 0 means no page ceiling.
func New(page Page, maxPages int) *Navigator {
	return &Navigator{page: page, maxPages: maxPages}
}

// DismissConsentOverlay accepts the cookie banner once per session. It
// reports whether a banner was dismissed; a missing banner is not an error.
func (n *Navigator) DismissConsentOverlay(ctx context.Context) bool {
	if n.consentHandled {
		return false
	}
	n.consentHandled = true

	clicked, err := n.page.Click(ctx, consentAccept)
	if err != nil {
		slog.Debug("navigator: consent click failed", "error", err)
	}
	if clicked && err == nil {
		slog.Info("navigator: cookie consent accepted")
		_ = n.page.WaitSettled(ctx)
		return true
	}

	html, herr := n.page.HTML(ctx)
	if herr != nil || !strings.Contains(html, strings.TrimPrefix(consentContainer, "#")) {
		return false
	}
	if r, ok := n.page.(overlayRemover); ok {
		r.RemoveOverlays(ctx)
		slog.Info("navigator: consent overlay removed by script")
		return true
	}
	return false
}

// HasNextPage reports whether a page after current (1-based) exists. When it
// returns false, EndReason tells a page-cap stop from an exhausted site.
func (n *Navigator) HasNextPage(ctx context.Context, current int) (bool, error) {
	if n.clicked(current) {
		return true, nil
	}
	if n.maxPages > 0 && current >= n.maxPages {
		n.end = models.StopPageCap
		return false, nil
	}
	_, selector, enabled, err := n.inspect(ctx)
	if err != nil {
		return false, err
	}
	if selector == "" || !enabled {
		n.end = models.StopSiteExhausted
		return false, nil
	}
	return true, nil
}

// EndReason is the terminal condition seen by the last HasNextPage that returned false.
func (n *Navigator) EndReason() models.StopReason {
	return n.end
}

// Advance clicks the next-page control and waits until a different listing
// set is rendered. Without a next page it fails with NavigationExhausted.
// When an earlier call already clicked from current, Advance does not click
// again and only waits for that click to take effect.
func (n *Navigator) Advance(ctx context.Context, current int) error {
	if !n.clicked(current) {
		if err := n.click(ctx, current); err != nil {
			return err
		}
	} else {
		slog.Debug("navigator: awaiting earlier click", "from", current)
	}

	for attempt := 1; attempt <= settleAttempts; attempt++ {
		if err := n.page.WaitSettled(ctx); err != nil {
			slog.Debug("navigator: page did not settle", "attempt", attempt, "error", err)
		}
		after, err := n.page.HTML(ctx)
		if err != nil {
			return models.NewNavigationError("read page after click", err)
		}
		if fp := Fingerprint(after); fp != 0 && !simhash.Similar(n.baseline, fp, simhash.UnchangedThreshold) {
			n.pending = false
			slog.Debug("navigator: advanced", "from", current, "to", current+1)
			return nil
		}
	}
	return models.NewNavigationError(fmt.Sprintf("page %d still shown after clicking next", current), nil)
}

func (n *Navigator) clicked(current int) bool {
	return n.pending && n.from == current
}

// click records the current listing set as baseline and presses next.
func (n *Navigator) click(ctx context.Context, current int) error {
	n.pending = false
	ok, err := n.HasNextPage(ctx, current)
	if err != nil {
		return err
	}
	if !ok {
		return models.NewCrawlError(models.ErrKindNavigationExhausted, string(n.end), nil)
	}

	html, selector, _, err := n.inspect(ctx)
	if err != nil {
		return err
	}
	baseline := Fingerprint(html)

	clicked, err := n.page.Click(ctx, selector)
	if err != nil {
		return models.NewNavigationError("click next page", err)
	}
	if !clicked {
		return models.NewNavigationError(fmt.Sprintf("next-page control %q disappeared", selector), nil)
	}
	n.pending, n.from, n.baseline = true, current, baseline
	return nil
}

// inspect scrolls to the pagination bar and locates the next-page control.
func (n *Navigator) inspect(ctx context.Context) (html, selector string, enabled bool, err error) {
	if err := n.page.ScrollToBottom(ctx); err != nil {
		slog.Debug("navigator: scroll to pagination failed", "error", err)
	}
	html, err = n.page.HTML(ctx)
	if err != nil {
		return "", "", false, models.NewNavigationError("read page", err)
	}
	selector, enabled, err = NextControl(html)
	return html, selector, enabled, err
}

// NextControl finds the first next-page selector present in html and
// whether that control is enabled.
func NextControl(html string) (selector string, enabled bool, err error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return "", false, fmt.Errorf("parse page: %w", err)
	}
	for _, sel := range NextSelectors {
		btn := doc.Find(sel).First()
		if btn.Length() == 0 {
			continue
		}
		return sel, !disabled(btn), nil
	}
	return "", false, nil
}

func disabled(btn *goquery.Selection) bool {
	if _, ok := btn.Attr("disabled"); ok {
		return true
	}
	if v, _ := btn.Attr("aria-disabled"); strings.EqualFold(v, "true") {
		return true
	}
	class, _ := btn.Attr("class")
	return strings.Contains(strings.ToLower(class), "disabled")
}

// Fingerprint hashes the set of listing links on a page.
func Fingerprint(html string) uint64 {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return 0
	}
	var urls []string
	doc.Find(listingLinks).Each(func(_ int, s *goquery.Selection) {
		if href, ok := s.Attr("href"); ok {
			urls = append(urls, strings.SplitN(href, "?", 2)[0])
		}
	})
	if len(urls) == 0 {
		return simhash.Fingerprint(doc.Find("body").Text())
	}
	return simhash.FingerprintTokens(urls)
}
