package navigator

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/RamiroDLO/HSLU-CIP-FS2025-206/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakePage renders pages[current]. Clicking the next control moves forward
// unless stuck is set. With lag set, the next page shows up only on the
// lag-th HTML read after the click.
type fakePage struct {
	pages   []string
	current int
	stuck   bool
	lag     int
	landIn  int
	consent bool
	clicks  []string
	removed int
	htmlErr error
}

func (f *fakePage) HTML(context.Context) (string, error) {
	if f.htmlErr != nil {
		return "", f.htmlErr
	}
	if f.landIn > 0 {
		f.landIn--
		if f.landIn == 0 {
			f.current++
		}
	}
	return f.pages[f.current], nil
}

func (f *fakePage) Click(_ context.Context, selector string) (bool, error) {
	f.clicks = append(f.clicks, selector)
	if selector == consentAccept {
		if f.consent {
			f.consent = false
			return true, nil
		}
		return false, nil
	}
	sel, enabled, err := NextControl(f.pages[f.current])
	if err != nil || sel != selector {
		return false, err
	}
	if enabled && !f.stuck && f.current+1 < len(f.pages) && f.landIn == 0 {
		if f.lag > 0 {
			f.landIn = f.lag
		} else {
			f.current++
		}
	}
	return true, nil
}

func (f *fakePage) ScrollToBottom(context.Context) error { return nil }
func (f *fakePage) WaitSettled(context.Context) error { return nil }
func (f *fakePage) RemoveOverlays(context.Context) { f.removed++ }

func resultPage(n int, next string) string {
	var b strings.Builder
	b.WriteString("<html><body><ul>")
	for i := 0; i < 20; i++ {
		fmt.Fprintf(&b, `<li><a href="/de/d/car-%d-%d?src=list">Car %d</a></li>`, n, i, i)
	}
	b.WriteString("</ul><nav class=\"pagination\">")
	b.WriteString(next)
	b.WriteString("</nav></body></html>")
	return b.String()
}

const (
	enabledNext  = `<button aria-label="next page">›</button>`
	disabledNext = `<button aria-label="next page" disabled>›</button>`
)

func TestNextControl(t *testing.T) {
	tests := []struct {
		name    string
		html    string
		wantSel string
		enabled bool
	}{
		{"aria label", enabledNext, NextSelectors[0], true},
		{"disabled attribute", disabledNext, NextSelectors[0], false},
		{"aria-disabled", `<button aria-label="next page" aria-disabled="true">›</button>`, NextSelectors[0], false},
		{"disabled class", `<a data-testid="pagination-next" class="btn btn--Disabled">›</a>`, NextSelectors[1], false},
		{"test id", `<a data-testid="pagination-next">›</a>`, NextSelectors[1], true},
		{"partial label", `<button aria-label="Go to Next results">›</button>`, NextSelectors[3], true},
		{"last pagination button", `<div class="pagination"><button>1</button><button>2</button></div>`, NextSelectors[4], true},
		{"no control", `<p>Keine weiteren Ergebnisse</p>`, "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sel, enabled, err := NextControl("<html><body>" + tt.html + "</body></html>")
			require.NoError(t, err)
			assert.Equal(t, tt.wantSel, sel)
			assert.Equal(t, tt.enabled, enabled)
		})
	}
}

func TestHasNextPage(t *testing.T) {
	ctx := context.Background()

	t.Run("enabled control", func(t *testing.T) {
		n := New(&fakePage{pages: []string{resultPage(1, enabledNext)}}, 0)
		ok, err := n.HasNextPage(ctx, 1)
		require.NoError(t, err)
		assert.True(t, ok)
	})

	t.Run("disabled control ends the site", func(t *testing.T) {
		n := New(&fakePage{pages: []string{resultPage(1, disabledNext)}}, 0)
		ok, err := n.HasNextPage(ctx, 1)
		require.NoError(t, err)
		assert.False(t, ok)
		assert.Equal(t, models.StopSiteExhausted, n.EndReason())
	})

	t.Run("missing control ends the site", func(t *testing.T) {
		n := New(&fakePage{pages: []string{resultPage(1, "")}}, 0)
		ok, err := n.HasNextPage(ctx, 1)
		require.NoError(t, err)
		assert.False(t, ok)
		assert.Equal(t, models.StopSiteExhausted, n.EndReason())
	})

	t.Run("page cap", func(t *testing.T) {
		n := New(&fakePage{pages: []string{resultPage(1, enabledNext)}}, 3)
		ok, err := n.HasNextPage(ctx, 2)
		require.NoError(t, err)
		assert.True(t, ok)

		ok, err = n.HasNextPage(ctx, 3)
		require.NoError(t, err)
		assert.False(t, ok)
		assert.Equal(t, models.StopPageCap, n.EndReason())
	})

	t.Run("read failure", func(t *testing.T) {
		n := New(&fakePage{pages: []string{""}, htmlErr: errors.New("target closed")}, 0)
		_, err := n.HasNextPage(ctx, 1)
		assert.True(t, models.IsKind(err, models.ErrKindNavigation))
	})
}

func TestAdvance(t *testing.T) {
	ctx := context.Background()

	t.Run("moves to the next page", func(t *testing.T) {
		p := &fakePage{pages: []string{resultPage(1, enabledNext), resultPage(2, disabledNext)}}
		n := New(p, 0)
		require.NoError(t, n.Advance(ctx, 1))
		assert.Equal(t, 1, p.current)
		assert.Contains(t, p.clicks, NextSelectors[0])
	})

	t.Run("last page is exhausted", func(t *testing.T) {
		p := &fakePage{pages: []string{resultPage(1, disabledNext)}}
		n := New(p, 0)
		err := n.Advance(ctx, 1)
		assert.ErrorIs(t, err, models.ErrNavigationExhausted)
		assert.Empty(t, p.clicks)
	})

	t.Run("page cap is exhausted", func(t *testing.T) {
		p := &fakePage{pages: []string{resultPage(1, enabledNext), resultPage(2, enabledNext)}}
		n := New(p, 1)
		err := n.Advance(ctx, 1)
		assert.ErrorIs(t, err, models.ErrNavigationExhausted)
		assert.Equal(t, models.StopPageCap, n.EndReason())
	})

	t.Run("slow render is awaited without a second click", func(t *testing.T) {
		p := &fakePage{
			pages: []string{resultPage(1, enabledNext), resultPage(2, enabledNext), resultPage(3, disabledNext)},
			lag:   settleAttempts + 1,
		}
		n := New(p, 0)

		err := n.Advance(ctx, 1)
		require.Error(t, err)
		assert.True(t, models.IsKind(err, models.ErrKindNavigation))
		assert.Equal(t, 0, p.current)

		ok, err := n.HasNextPage(ctx, 1)
		require.NoError(t, err)
		assert.True(t, ok, "an outstanding click still counts as a next page")

		require.NoError(t, n.Advance(ctx, 1))
		assert.Equal(t, 1, p.current)
		assert.Len(t, p.clicks, 1)

		p.lag = 0
		require.NoError(t, n.Advance(ctx, 2))
		assert.Equal(t, 2, p.current)
		assert.Len(t, p.clicks, 2)
	})

	t.Run("unchanged listings fail the step", func(t *testing.T) {
		p := &fakePage{pages: []string{resultPage(1, enabledNext), resultPage(2, enabledNext)}, stuck: true}
		n := New(p, 0)
		err := n.Advance(ctx, 1)
		require.Error(t, err)
		assert.True(t, models.IsKind(err, models.ErrKindNavigation))
		assert.Equal(t, 0, p.current)
	})
}

func TestDismissConsentOverlay(t *testing.T) {
	ctx := context.Background()

	t.Run("clicks accept once", func(t *testing.T) {
		p := &fakePage{pages: []string{resultPage(1, enabledNext)}, consent: true}
		n := New(p, 0)
		assert.True(t, n.DismissConsentOverlay(ctx))
		assert.False(t, n.DismissConsentOverlay(ctx), "second call is a no-op")
		assert.Equal(t, []string{consentAccept}, p.clicks)
	})

	t.Run("no banner", func(t *testing.T) {
		p := &fakePage{pages: []string{resultPage(1, enabledNext)}}
		n := New(p, 0)
		assert.False(t, n.DismissConsentOverlay(ctx))
		assert.Zero(t, p.removed)
	})

	t.Run("banner without button is removed by script", func(t *testing.T) {
		p := &fakePage{pages: []string{`<html><body><div id="onetrust-consent-sdk"></div></body></html>`}}
		n := New(p, 0)
		assert.True(t, n.DismissConsentOverlay(ctx))
		assert.Equal(t, 1, p.removed)
	})
}

func TestFingerprint(t *testing.T) {
	a := Fingerprint(resultPage(1, enabledNext))
	b := Fingerprint(resultPage(1, disabledNext))
	c := Fingerprint(resultPage(2, enabledNext))
	assert.NotZero(t, a)
	assert.Equal(t, a, b, "pagination markup does not affect the listing fingerprint")
	assert.NotEqual(t, a, c)
}
