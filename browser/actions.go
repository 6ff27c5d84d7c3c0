package browser

import (
	"context"
	"fmt"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/proto"
)

const (
	// actionTimeout is the per-action deadline.
	actionTimeout = 10 * time.Second

	// lazyLoadSteps is how many viewport-sized slices the result list is scrolled in.
	lazyLoadSteps = 5

	scrollPause = 700 * time.Millisecond
)

// clickIfPresent clicks the first match of selector without waiting for it to appear.
func clickIfPresent(ctx context.Context, page *rod.Page, selector string) (bool, error) {
	actionCtx, cancel := context.WithTimeout(ctx, actionTimeout)
	defer cancel()
	p := page.Context(actionCtx)

	has, el, err := p.Has(selector)
	if err != nil {
		return false, fmt.Errorf("query %q: %w", selector, err)
	}
	if !has {
		return false, nil
	}
	_ = el.ScrollIntoView()
	if err := el.Click(proto.InputMouseButtonLeft, 1); err != nil {
		return true, fmt.Errorf("click %q: %w", selector, err)
	}
	return true, nil
}

func scrollToBottom(ctx context.Context, page *rod.Page) error {
	actionCtx, cancel := context.WithTimeout(ctx, actionTimeout)
	defer cancel()
	p := page.Context(actionCtx)
	if _, err := p.Eval(`() => window.scrollTo(0, document.body.scrollHeight)`); err != nil {
		return fmt.Errorf("scroll to bottom: %w", err)
	}
	return sleep(ctx, scrollPause)
}

// scrollSteps scrolls down in equal steps, then back to the top and to the
// middle, pausing between steps so lazy-loaded cards render.
func scrollSteps(ctx context.Context, page *rod.Page, steps int) error {
	actionCtx, cancel := context.WithTimeout(ctx, time.Duration(steps+3)*actionTimeout)
	defer cancel()
	p := page.Context(actionCtx)

	res, err := p.Eval(`() => document.body.scrollHeight`)
	if err != nil {
		return fmt.Errorf("failed to get document height: %w", err)
	}
	height := res.Value.Int()

	for i := 1; i <= steps; i++ {
		y := height * i / steps
		if _, err := p.Eval(`y => window.scrollTo(0, y)`, y); err != nil {
			return fmt.Errorf("scroll step %d failed: %w", i, err)
		}
		if err := sleep(actionCtx, scrollPause); err != nil {
			return err
		}
	}
	if _, err := p.Eval(`() => window.scrollTo(0, 0)`); err != nil {
		return fmt.Errorf("scroll to top: %w", err)
	}
	if err := sleep(actionCtx, scrollPause); err != nil {
		return err
	}
	if _, err := p.Eval(`y => window.scrollTo(0, y)`, height/2); err != nil {
		return fmt.Errorf("scroll to middle: %w", err)
	}
	return sleep(actionCtx, scrollPause)
}

func sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// removeOverlays injects JS to remove fixed/sticky positioned consent and
// popup layers that cover the result list.
func removeOverlays(p *rod.Page) {
	const js = `() => {
		const selectors = [
			'#onetrust-consent-sdk', '[class*="cookie"]', '[class*="consent"]',
			'[id*="cookie"]', '[id*="consent"]', '[class*="overlay"]',
			'[class*="popup"]', '[id*="popup"]', '[class*="modal"]',
		];
		for (const sel of selectors) {
			document.querySelectorAll(sel).forEach(el => {
				const style = window.getComputedStyle(el);
				if (style.position === 'fixed' || style.position === 'sticky' || el.id === 'onetrust-consent-sdk') {
					el.remove();
				}
			});
		}
		// Modals often lock scrolling on body/html.
		document.documentElement.style.overflow = '';
		document.body.style.overflow = '';
	}`
	_, _ = p.Eval(js)
}
