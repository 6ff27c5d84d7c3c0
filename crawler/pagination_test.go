package crawler

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/RamiroDLO/HSLU-CIP-FS2025-206/models"
	"github.com/RamiroDLO/HSLU-CIP-FS2025-206/navigator"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// slowSite is a browser whose next page renders lag HTML reads after the
// click, driven through the real navigator.
type slowSite struct {
	pages   int
	current int
	lag     int
	landIn  int

	clicks    int
	extracted []int
}

var (
	_ Browser        = (*slowSite)(nil)
	_ Extractor      = (*slowSite)(nil)
	_ navigator.Page = (*slowSite)(nil)
)

func (s *slowSite) render(p int) string {
	var b strings.Builder
	fmt.Fprintf(&b, "<!--page-%d--><html><body><ul>", p)
	for i := 0; i < 3; i++ {
		fmt.Fprintf(&b, `<li><a href="/de/d/car-%d-%d">Car</a></li>`, p, i)
	}
	b.WriteString(`</ul><nav class="pagination"><button aria-label="next page"`)
	if p+1 >= s.pages {
		b.WriteString(" disabled")
	}
	b.WriteString(`>›</button></nav></body></html>`)
	return b.String()
}

func (s *slowSite) HTML(context.Context) (string, error) {
	if s.landIn > 0 {
		s.landIn--
		if s.landIn == 0 {
			s.current++
		}
	}
	return s.render(s.current), nil
}

func (s *slowSite) Click(_ context.Context, selector string) (bool, error) {
	if selector != navigator.NextSelectors[0] {
		return false, nil
	}
	s.clicks++
	if s.current+1 < s.pages && s.landIn == 0 {
		s.landIn = s.lag
	}
	return true, nil
}

func (s *slowSite) Start(context.Context) error { return nil }
func (s *slowSite) Navigate(context.Context, string) error { return nil }
func (s *slowSite) DetectChallenge(context.Context) bool { return false }
func (s *slowSite) AwaitManualResolution(context.Context) error { return nil }
func (s *slowSite) LoadListings(context.Context) error { return nil }
func (s *slowSite) ScrollToBottom(context.Context) error { return nil }
func (s *slowSite) WaitSettled(context.Context) error { return nil }
func (s *slowSite) Stop() error { return nil }

func (s *slowSite) Extract(html string) ([]models.ExtractionOutcome, error) {
	var idx int
	if _, err := fmt.Sscanf(html, "<!--page-%d-->", &idx); err != nil {
		return nil, err
	}
	s.extracted = append(s.extracted, idx)
	return []models.ExtractionOutcome{okOutcome(0, fmt.Sprintf("https://www.autoscout24.ch/de/d/car-%d", idx))}, nil
}

func TestRun_SlowPaginationVisitsEveryPage(t *testing.T) {
	tests := []struct {
		name    string
		retries int
	}{
		{"settled within retries", 2},
		{"settled on next iteration", 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			site := &slowSite{pages: 6, lag: 4}
			cfg := testConfig(100)
			cfg.PageRetries = tt.retries
			sink := &memSink{}

			o := New(cfg, site, navigator.New(site, 0), site, sink, nil)
			report := o.Run(context.Background())

			require.NotNil(t, report)
			assert.Equal(t, models.StopSiteExhausted, report.StopReason)
			assert.Equal(t, []int{0, 1, 2, 3, 4, 5}, site.extracted)
			assert.Equal(t, 6, report.Pages)
			assert.Equal(t, 6, report.Collected)
			assert.Equal(t, 5, site.clicks, "one click per page turn")
		})
	}
}
