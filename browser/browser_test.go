package browser

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIsChallenge(t *testing.T) {
	tests := []struct {
		name string
		html string
		want bool
	}{
		{"cloudflare interstitial", `<html><head><title>Just a moment...</title></head><body><div id="cf-challenge-running"></div></body></html>`, true},
		{"hcaptcha widget", `<html><body><div class="h-captcha" data-sitekey="x"></div></body></html>`, true},
		{"heading only", `<html><body><h1>Verify you are human</h1></body></html>`, true},
		{"turnstile iframe", `<html><body><iframe src="https://challenges.cloudflare.com/cdn-cgi/x"></iframe></body></html>`, true},
		{"result page", `<html><head><title>Autos kaufen | AutoScout24</title></head><body><h1>12'345 Angebote</h1><article>VW Golf</article></body></html>`, false},
		{"challenger in card title", `<html><head><title>Dodge kaufen | AutoScout24</title></head><body><ul><li class="css-0"><article><h2>Dodge Challenger SRT Hellcat</h2><p>CHF 54'900.-</p></article></li></ul></body></html>`, false},
		{"challenge word in page heading", `<html><body><h2>Challenge Cup Angebote</h2></body></html>`, false},
		{"security check heading in card", `<html><body><article><h2>Security Check bestanden</h2></article></body></html>`, false},
		{"empty", ``, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsChallenge(tt.html))
		})
	}
}

func TestSignal_ResolveReleasesWaiter(t *testing.T) {
	s := NewSignal()
	done := make(chan error, 1)
	go func() { done <- s.Await(context.Background()) }()

	require.Eventually(t, s.Pending, time.Second, 5*time.Millisecond)
	assert.True(t, s.Resolve())
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("Await did not return after Resolve")
	}
	assert.False(t, s.Pending())
}

func TestSignal_StaleResolveIsDropped(t *testing.T) {
	s := NewSignal()
	assert.False(t, s.Resolve(), "nobody waiting")

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	err := s.Await(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded, "earlier Resolve must not release a later wait")
}

func TestResolveOnInput(t *testing.T) {
	s := NewSignal()
	done := make(chan error, 1)
	go func() { done <- s.Await(context.Background()) }()
	require.Eventually(t, s.Pending, time.Second, 5*time.Millisecond)

	ResolveOnInput(strings.NewReader("\n"), s)
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("input line did not resolve the wait")
	}
}

func TestIsTrackerDomain(t *testing.T) {
	assert.True(t, isTrackerDomain("www.google-analytics.com"))
	assert.True(t, isTrackerDomain("securepubads.g.doubleclick.net"))
	assert.False(t, isTrackerDomain("www.autoscout24.ch"))
	assert.False(t, isTrackerDomain("analytics.com"))
}

func TestControllerBeforeStart(t *testing.T) {
	c := New(testBrowserConfig(), nil)
	_, err := c.HTML(context.Background())
	assert.ErrorIs(t, err, ErrNotStarted)
	assert.False(t, c.DetectChallenge(context.Background()))
	assert.NoError(t, c.Stop(), "Stop before Start is a no-op")
	assert.NoError(t, c.Stop())
}
